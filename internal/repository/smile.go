package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/deppfellow/comment-smiles/internal/model"
	"github.com/deppfellow/comment-smiles/internal/sqlerr"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const smileTable = "smile"

var smileColumns = []string{"id", "value"}

// errNilEntity is returned when a write is given a nil entity.
var errNilEntity = errors.New("entity is nil")

// SmileRepository persists Smile rows.
type SmileRepository struct {
	db  Session
	log *zerolog.Logger
}

func NewSmileRepository(db Session, log *zerolog.Logger) *SmileRepository {
	return &SmileRepository{db: db, log: loggerOrNop(log)}
}

// Create inserts s and sets its store-generated ID.
func (r *SmileRepository) Create(ctx context.Context, s *model.Smile) (*model.Smile, error) {
	const op = "create smile"
	if s == nil {
		return nil, sqlerr.HandleError(op, nil, errNilEntity)
	}

	query, args, err := psql.Insert(smileTable).
		Columns("value").
		Values(s.Value).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return nil, sqlerr.HandleError(op, s, fmt.Errorf("building query: %w", err))
	}

	var id int64
	err = runInTx(ctx, r.db, r.log, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, query, args...).Scan(&id)
	})
	if err != nil {
		return nil, sqlerr.HandleError(op, s, err)
	}

	s.ID = id
	return s, nil
}

// Get returns the smile with the given id, or nil if there is none.
func (r *SmileRepository) Get(ctx context.Context, id int64) (*model.Smile, error) {
	const op = "get smile"

	query, args, err := psql.Select(smileColumns...).
		From(smileTable).
		Where("id = ?", id).
		ToSql()
	if err != nil {
		return nil, sqlerr.HandleError(op, id, fmt.Errorf("building query: %w", err))
	}

	var smile model.Smile
	if err := pgxscan.Get(ctx, r.db, &smile, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, sqlerr.HandleError(op, id, err)
	}
	return &smile, nil
}

// GetAll returns every smile ordered by id.
func (r *SmileRepository) GetAll(ctx context.Context) ([]model.Smile, error) {
	const op = "get all smiles"

	query, args, err := psql.Select(smileColumns...).
		From(smileTable).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, sqlerr.HandleError(op, nil, fmt.Errorf("building query: %w", err))
	}

	smiles := []model.Smile{}
	if err := pgxscan.Select(ctx, r.db, &smiles, query, args...); err != nil {
		return nil, sqlerr.HandleError(op, nil, err)
	}
	return smiles, nil
}
