package repository

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	loggerPkg "github.com/deppfellow/comment-smiles/internal/logger"
	"github.com/deppfellow/comment-smiles/internal/sqlerr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/zerolog"
)

// Session is the store boundary every repository is built on.
//
// *pgxpool.Pool satisfies it, and so does a pgxmock pool in tests.
type Session interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// psql builds statements with Postgres placeholders ($1, $2, ...).
var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// runInTx is the unit-of-work for writes: it begins a transaction, runs fn,
// and commits when fn succeeds. Errors and panics roll the transaction back.
// The connection goes back to the pool either way.
func runInTx(ctx context.Context, db Session, log *zerolog.Logger, fn func(pgx.Tx) error) (err error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			rollback(ctx, tx, log, fmt.Errorf("panic: %v", p))
			panic(p)
		}
		if err != nil {
			rollback(ctx, tx, log, err)
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			err = fmt.Errorf("committing transaction: %w", commitErr)
		}
	}()

	return fn(tx)
}

// loggerOrNop returns log, or a disabled logger when log is nil.
func loggerOrNop(log *zerolog.Logger) *zerolog.Logger {
	if log == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return log
}

func rollback(ctx context.Context, tx pgx.Tx, log *zerolog.Logger, cause error) {
	l := loggerPkg.WithTraceContext(*loggerOrNop(log), newrelic.FromContext(ctx))
	code := string(sqlerr.ErrCode(cause))

	if rbErr := tx.Rollback(ctx); rbErr != nil {
		l.Warn().Err(rbErr).AnErr("cause", cause).Str("sql_code", code).Msg("transaction rollback failed")
		return
	}
	l.Debug().Err(cause).Str("sql_code", code).Msg("transaction rolled back")
}
