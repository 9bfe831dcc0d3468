// Package app defines the App struct that composes the application's main dependencies.
//
// It owns the lifecycle of:
//   - configuration
//   - logger + optional New Relic service wrapper
//   - database pool
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/deppfellow/comment-smiles/internal/config"
	"github.com/deppfellow/comment-smiles/internal/database"
	"github.com/rs/zerolog"

	loggerPkg "github.com/deppfellow/comment-smiles/internal/logger"
)

// App is the application container that holds shared resources.
type App struct {
	// Config holds all environment/config values for the app.
	Config *config.Config

	// Logger is the application's main structured logger.
	Logger *zerolog.Logger

	// LoggerService optionally holds the New Relic application instance.
	LoggerService *loggerPkg.LoggerService

	// DB holds the PostgreSQL pool wrapper.
	DB *database.Database
}

// New constructs an App and initializes core dependencies.
//
// Initialization performed:
//   - PostgreSQL pool + optional New Relic tracing (pinged before returning)
//   - schema migrations, when migrate is true
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger, loggerService *loggerPkg.LoggerService, migrate bool) (*App, error) {
	if migrate {
		if err := database.Migrate(ctx, logger, cfg); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	db, err := database.New(cfg, logger, loggerService)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return &App{
		Config:        cfg,
		Logger:        logger,
		LoggerService: loggerService,
		DB:            db,
	}, nil
}

// Bootstrap loads configuration from the environment and builds an App with
// its logger, New Relic service and migrated database.
func Bootstrap(ctx context.Context) (*App, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	loggerService, err := loggerPkg.NewLoggerService(&cfg.Observability)
	if err != nil {
		return nil, err
	}

	logger := loggerPkg.NewLogger(&cfg.Observability, loggerService)

	a, err := New(ctx, cfg, logger, loggerService, true)
	if err != nil {
		loggerService.Shutdown()
		return nil, err
	}
	return a, nil
}

// HealthCheck reports whether the database answers a ping.
func (a *App) HealthCheck(ctx context.Context) error {
	if err := a.DB.HealthCheck(ctx); err != nil {
		a.Logger.Error().Err(err).Msg("database health check failed")

		if nrApp := a.LoggerService.GetApplication(); nrApp != nil {
			nrApp.RecordCustomEvent("HealthCheckError", map[string]any{
				"check": "database",
				"error": err.Error(),
			})
		}
		return fmt.Errorf("database health check: %w", err)
	}
	return nil
}

// Shutdown closes the database pool and flushes New Relic. An expired ctx
// is reported alongside any close error.
func (a *App) Shutdown(ctx context.Context) error {
	var errList []error

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			errList = append(errList, fmt.Errorf("failed to close database connection: %w", err))
		}
	}

	if err := ctx.Err(); err != nil {
		errList = append(errList, err)
	}

	a.LoggerService.Shutdown()

	return errors.Join(errList...)
}
