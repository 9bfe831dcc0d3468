package repository

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/deppfellow/comment-smiles/internal/errs"
	"github.com/deppfellow/comment-smiles/internal/model"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nopLogger() *zerolog.Logger {
	log := zerolog.Nop()
	return &log
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestRunInTx(t *testing.T) {
	ctx := context.Background()

	t.Run("Should commit when the callback succeeds", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectCommit()

		err := runInTx(ctx, mock, nopLogger(), func(pgx.Tx) error { return nil })
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Should roll back and return the callback error", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		cause := errors.New("statement failed")
		err := runInTx(ctx, mock, nopLogger(), func(pgx.Tx) error { return cause })
		assert.ErrorIs(t, err, cause)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Should roll back and re-panic", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		assert.PanicsWithValue(t, "boom", func() {
			_ = runInTx(ctx, mock, nopLogger(), func(pgx.Tx) error { panic("boom") })
		})
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Should report a failed commit", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectCommit().WillReturnError(errors.New("connection reset"))

		err := runInTx(ctx, mock, nopLogger(), func(pgx.Tx) error { return nil })
		assert.ErrorContains(t, err, "committing transaction: connection reset")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Should not run the callback when begin fails", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectBegin().WillReturnError(errors.New("pool closed"))

		called := false
		err := runInTx(ctx, mock, nopLogger(), func(pgx.Tx) error {
			called = true
			return nil
		})
		assert.ErrorContains(t, err, "beginning transaction")
		assert.False(t, called)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Should log the database error category on rollback", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		var buf bytes.Buffer
		log := zerolog.New(&buf).Level(zerolog.DebugLevel)
		cause := &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation}

		err := runInTx(ctx, mock, &log, func(pgx.Tx) error { return cause })
		assert.ErrorIs(t, err, cause)
		assert.Contains(t, buf.String(), `"sql_code":"foreign_key_violation"`)
		assert.Contains(t, buf.String(), "transaction rolled back")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepositoriesWithoutLogger(t *testing.T) {
	ctx := context.Background()

	t.Run("Should roll back a failed smile write with a nil logger", func(t *testing.T) {
		mock := newMock(t)
		repo := NewSmileRepository(mock, nil)

		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO smile`).
			WithArgs("funny").
			WillReturnError(errors.New("broken pipe"))
		mock.ExpectRollback()

		assert.NotPanics(t, func() {
			_, err := repo.Create(ctx, &model.Smile{Value: "funny"})
			assert.ErrorIs(t, err, &errs.PersistenceError{})
		})
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Should roll back a failed comment removal with a nil logger", func(t *testing.T) {
		mock := newMock(t)
		repo := NewCommentRepository(mock, nil)

		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM comment_smile`).
			WithArgs(int64(3)).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))
		mock.ExpectExec(`DELETE FROM comment WHERE`).
			WithArgs(int64(3)).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))
		mock.ExpectRollback()

		assert.NotPanics(t, func() {
			err := repo.Remove(ctx, &model.Comment{ID: 3})
			assert.ErrorIs(t, err, errs.ErrNotFound)
		})
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
