package database

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/deppfellow/comment-smiles/internal/config"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type recordingTracer struct {
	name  string
	calls *[]string
}

type tracerKey string

func (r *recordingTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, _ pgx.TraceQueryStartData) context.Context {
	*r.calls = append(*r.calls, r.name+":start")
	return context.WithValue(ctx, tracerKey(r.name), true)
}

func (r *recordingTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, _ pgx.TraceQueryEndData) {
	*r.calls = append(*r.calls, r.name+":end")
	if ctx.Value(tracerKey(r.name)) == nil {
		*r.calls = append(*r.calls, r.name+":lost-context")
	}
}

func TestMultiTracer(t *testing.T) {
	t.Run("Should call every tracer in order and thread the context", func(t *testing.T) {
		var calls []string
		mt := &multiTracer{tracers: []any{
			&recordingTracer{name: "a", calls: &calls},
			"not a tracer",
			&recordingTracer{name: "b", calls: &calls},
		}}

		ctx := mt.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT 1"})
		mt.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{})

		assert.Equal(t, []string{"a:start", "b:start", "a:end", "b:end"}, calls)
	})
}

func TestSlowQueryTracer(t *testing.T) {
	newTracer := func(buf *bytes.Buffer, elapsed time.Duration) *slowQueryTracer {
		log := zerolog.New(buf)
		tracer := newSlowQueryTracer(&log, 50*time.Millisecond)
		base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		calls := 0
		tracer.now = func() time.Time {
			calls++
			if calls == 1 {
				return base
			}
			return base.Add(elapsed)
		}
		return tracer
	}

	t.Run("Should warn about queries over the threshold", func(t *testing.T) {
		var buf bytes.Buffer
		tracer := newTracer(&buf, 80*time.Millisecond)

		ctx := tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT pg_sleep(1)"})
		tracer.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{Err: errors.New("canceled")})

		assert.Contains(t, buf.String(), `"message":"slow query"`)
		assert.Contains(t, buf.String(), "pg_sleep")
		assert.Contains(t, buf.String(), `"error":"canceled"`)
	})

	t.Run("Should stay quiet for fast queries", func(t *testing.T) {
		var buf bytes.Buffer
		tracer := newTracer(&buf, 10*time.Millisecond)

		ctx := tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT 1"})
		tracer.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{})

		assert.Zero(t, buf.Len())
	})

	t.Run("Should ignore an end without a start", func(t *testing.T) {
		var buf bytes.Buffer
		tracer := newTracer(&buf, time.Hour)

		tracer.TraceQueryEnd(context.Background(), nil, pgx.TraceQueryEndData{})
		assert.Zero(t, buf.Len())
	})
}

func TestBuildTracer(t *testing.T) {
	log := zerolog.Nop()

	t.Run("Should return nil when nothing is enabled", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Observability.Logging.SlowQueryThreshold = 0

		assert.Nil(t, buildTracer(cfg, &log, nil))
	})

	t.Run("Should use the slow query tracer alone", func(t *testing.T) {
		cfg := config.DefaultConfig()

		assert.IsType(t, &slowQueryTracer{}, buildTracer(cfg, &log, nil))
	})

	t.Run("Should chain the SQL log in local env", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Primary.Env = "local"

		tracer := buildTracer(cfg, &log, nil)
		mt, ok := tracer.(*multiTracer)
		assert.True(t, ok)
		if ok {
			assert.IsType(t, &tracelog.TraceLog{}, mt.tracers[0])
			assert.IsType(t, &slowQueryTracer{}, mt.tracers[1])
		}
	})
}
