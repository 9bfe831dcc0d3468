package app

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/deppfellow/comment-smiles/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pg testutil.Postgres

func TestMain(m *testing.M) {
	code := m.Run()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = pg.Terminate(ctx)

	os.Exit(code)
}

func TestApp(t *testing.T) {
	ctx := context.Background()
	log := zerolog.Nop()

	t.Run("Should migrate, report healthy and shut down", func(t *testing.T) {
		cfg := pg.NewDatabase(t)

		a, err := New(ctx, cfg, &log, nil, true)
		require.NoError(t, err)

		assert.NoError(t, a.HealthCheck(ctx))
		assert.NoError(t, a.Shutdown(ctx))
		assert.Error(t, a.HealthCheck(ctx))
	})

	t.Run("Should report an expired shutdown context", func(t *testing.T) {
		cfg := pg.NewDatabase(t)

		a, err := New(ctx, cfg, &log, nil, false)
		require.NoError(t, err)

		expired, cancel := context.WithCancel(ctx)
		cancel()
		assert.ErrorIs(t, a.Shutdown(expired), context.Canceled)
	})

	t.Run("Should bootstrap from the environment", func(t *testing.T) {
		cfg := pg.NewDatabase(t)
		t.Setenv("COMMENTS_DATABASE__URL", cfg.Database.URL)
		t.Setenv("COMMENTS_OBSERVABILITY__LOGGING__LEVEL", "error")

		a, err := Bootstrap(ctx)
		require.NoError(t, err)
		t.Cleanup(func() { _ = a.Shutdown(context.Background()) })

		assert.Equal(t, cfg.Database.URL, a.Config.Database.URL)
		assert.Nil(t, a.LoggerService.GetApplication())
		assert.NoError(t, a.HealthCheck(ctx))
	})
}
