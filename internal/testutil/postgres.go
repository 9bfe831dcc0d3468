// Package testutil provides a disposable PostgreSQL server for integration tests.
package testutil

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/deppfellow/comment-smiles/internal/config"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const postgresImage = "postgres:16-alpine"

// Postgres is one container shared by a test package. Each test gets its own
// database on it, so sequences start at 1 and no state leaks between tests.
//
// The container starts on first use; TestMain should call Terminate.
type Postgres struct {
	once      sync.Once
	startErr  error
	container *postgres.PostgresContainer
	admin     *pgxpool.Pool
	dsn       string
	seq       atomic.Int64
}

func (p *Postgres) start(ctx context.Context) error {
	container, err := postgres.Run(ctx,
		postgresImage,
		postgres.WithDatabase("postgres"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return fmt.Errorf("start postgres container: %w", err)
	}
	p.container = container

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return fmt.Errorf("postgres connection string: %w", err)
	}
	p.dsn = dsn

	admin, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	p.admin = admin
	return nil
}

// NewDatabase creates an empty database and returns a config pointing at it.
// The test is skipped in -short mode or when no container runtime is usable.
func (p *Postgres) NewDatabase(t *testing.T) *config.Config {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	p.once.Do(func() { p.startErr = p.start(ctx) })
	require.NoError(t, p.startErr)

	name := fmt.Sprintf("test_%d", p.seq.Add(1))
	ident := pgx.Identifier{name}.Sanitize()

	_, err := p.admin.Exec(ctx, "CREATE DATABASE "+ident)
	require.NoError(t, err)
	t.Cleanup(func() {
		if _, err := p.admin.Exec(context.Background(), "DROP DATABASE IF EXISTS "+ident+" WITH (FORCE)"); err != nil {
			t.Logf("Warning: failed to drop database %s: %s", name, err)
		}
	})

	u, err := url.Parse(p.dsn)
	require.NoError(t, err)
	u.Path = "/" + name

	cfg := config.DefaultConfig()
	cfg.Primary.Env = "test"
	cfg.Database.URL = u.String()
	cfg.Observability.Environment = "test"
	return cfg
}

// Terminate stops the container if it was started.
func (p *Postgres) Terminate(ctx context.Context) error {
	if p.admin != nil {
		p.admin.Close()
	}
	if p.container == nil {
		return nil
	}
	return p.container.Terminate(ctx)
}
