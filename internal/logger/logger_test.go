package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/deppfellow/comment-smiles/internal/config"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerService(t *testing.T) {
	t.Run("Should stay disabled without a license key", func(t *testing.T) {
		svc, err := NewLoggerService(config.DefaultObservabilityConfig())
		require.NoError(t, err)
		assert.Nil(t, svc.GetApplication())
		assert.NotPanics(t, svc.Shutdown)
	})

	t.Run("Should tolerate a nil service", func(t *testing.T) {
		var svc *LoggerService
		assert.Nil(t, svc.GetApplication())
		assert.NotPanics(t, svc.Shutdown)
	})
}

func TestNewLogger(t *testing.T) {
	t.Run("Should write JSON with service fields", func(t *testing.T) {
		cfg := config.DefaultObservabilityConfig()
		var buf bytes.Buffer

		log := newLogger(cfg, nil, &buf)
		log.Info().Msg("hello")

		var record map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		assert.Equal(t, "hello", record["message"])
		assert.Equal(t, config.ServiceName, record["service"])
		assert.Equal(t, "development", record["environment"])
	})

	t.Run("Should write through the New Relic writer when the agent is set up", func(t *testing.T) {
		app, err := newrelic.NewApplication(
			newrelic.ConfigAppName(config.ServiceName),
			newrelic.ConfigLicense("0123456789012345678901234567890123456789"),
			newrelic.ConfigEnabled(false),
		)
		require.NoError(t, err)
		svc := &LoggerService{nrApp: app}
		t.Cleanup(svc.Shutdown)

		cfg := config.DefaultObservabilityConfig()
		cfg.Logging.Format = "console"
		cfg.NewRelic.LicenseKey = "0123456789012345678901234567890123456789"
		var buf bytes.Buffer

		log := newLogger(cfg, svc, &buf)
		log.Info().Msg("forwarded")

		assert.Contains(t, buf.String(), "forwarded")
		assert.Contains(t, buf.String(), config.ServiceName)
	})

	t.Run("Should honour the configured level", func(t *testing.T) {
		cfg := config.DefaultObservabilityConfig()
		cfg.Logging.Level = "warn"
		var buf bytes.Buffer

		log := newLogger(cfg, nil, &buf)
		log.Info().Msg("dropped")
		assert.Zero(t, buf.Len())
		assert.Equal(t, zerolog.WarnLevel, log.GetLevel())
	})
}

func TestNewPgxLogger(t *testing.T) {
	var buf bytes.Buffer
	log := newPgxLogger(zerolog.DebugLevel, &buf)
	log.Debug().Str("sql", "select 1").Msg("Query")

	assert.Contains(t, buf.String(), "select 1")
	assert.Contains(t, buf.String(), "database")
}

func TestGetPgxTraceLogLevel(t *testing.T) {
	assert.Equal(t, int(tracelog.LogLevelDebug), GetPgxTraceLogLevel(zerolog.DebugLevel))
	assert.Equal(t, int(tracelog.LogLevelInfo), GetPgxTraceLogLevel(zerolog.InfoLevel))
	assert.Equal(t, int(tracelog.LogLevelError), GetPgxTraceLogLevel(zerolog.FatalLevel))
	assert.Equal(t, int(tracelog.LogLevelNone), GetPgxTraceLogLevel(zerolog.Disabled))
}
