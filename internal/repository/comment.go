package repository

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/deppfellow/comment-smiles/internal/errs"
	"github.com/deppfellow/comment-smiles/internal/model"
	"github.com/deppfellow/comment-smiles/internal/sqlerr"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const (
	commentTable      = "comment"
	commentSmileTable = "comment_smile"
)

var commentColumns = []string{"id", "content"}

// commentSmileRow is one smile joined through the association table.
type commentSmileRow struct {
	CommentID int64  `db:"comment_id"`
	ID        int64  `db:"id"`
	Value     string `db:"value"`
}

// CommentRepository persists Comment rows and their links to smiles.
//
// Smile rows are referenced, never written: creating a comment only inserts
// association rows, and removing one only deletes them.
type CommentRepository struct {
	db  Session
	log *zerolog.Logger
}

func NewCommentRepository(db Session, log *zerolog.Logger) *CommentRepository {
	return &CommentRepository{db: db, log: loggerOrNop(log)}
}

// Create inserts c and links it to c.Smiles in order.
//
// Every smile must already be stored. A smile without a row fails the
// foreign key and the whole write is rolled back.
func (r *CommentRepository) Create(ctx context.Context, c *model.Comment) (*model.Comment, error) {
	const op = "create comment"
	if c == nil {
		return nil, sqlerr.HandleError(op, nil, errNilEntity)
	}

	insertComment, args, err := psql.Insert(commentTable).
		Columns("content").
		Values(c.Content).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return nil, sqlerr.HandleError(op, c, fmt.Errorf("building query: %w", err))
	}

	var id int64
	err = runInTx(ctx, r.db, r.log, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, insertComment, args...).Scan(&id); err != nil {
			return fmt.Errorf("insert comment: %w", err)
		}
		if len(c.Smiles) == 0 {
			return nil
		}

		smileIDs := make([]int64, len(c.Smiles))
		positions := make([]int32, len(c.Smiles))
		for i, smile := range c.Smiles {
			smileIDs[i] = smile.ID
			positions[i] = int32(i)
		}

		// Arrays keep the parameter count at three whatever the number of smiles.
		insertLinks, linkArgs, err := psql.Insert(commentSmileTable).
			Columns("comment_id", "smile_id", "position").
			Select(squirrel.Select().
				Column("?::bigint", id).
				Column("unnest(?::bigint[])", smileIDs).
				Column("unnest(?::int[])", positions)).
			ToSql()
		if err != nil {
			return fmt.Errorf("building query: %w", err)
		}
		if _, err := tx.Exec(ctx, insertLinks, linkArgs...); err != nil {
			return fmt.Errorf("insert comment smiles: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, sqlerr.HandleError(op, c, err)
	}

	c.ID = id
	return c, nil
}

// Get returns the comment with the given id and its smiles in stored order,
// or nil if there is none.
func (r *CommentRepository) Get(ctx context.Context, id int64) (*model.Comment, error) {
	const op = "get comment"

	query, args, err := psql.Select(commentColumns...).
		From(commentTable).
		Where("id = ?", id).
		ToSql()
	if err != nil {
		return nil, sqlerr.HandleError(op, id, fmt.Errorf("building query: %w", err))
	}

	var comment model.Comment
	if err := pgxscan.Get(ctx, r.db, &comment, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, sqlerr.HandleError(op, id, err)
	}

	links, err := r.loadSmiles(ctx, id)
	if err != nil {
		return nil, sqlerr.HandleError(op, id, err)
	}
	comment.Smiles = make([]model.Smile, 0, len(links))
	for _, link := range links {
		comment.Smiles = append(comment.Smiles, model.Smile{ID: link.ID, Value: link.Value})
	}
	return &comment, nil
}

// GetAll returns every comment ordered by id, each with its smiles.
func (r *CommentRepository) GetAll(ctx context.Context) ([]model.Comment, error) {
	const op = "get all comments"

	query, args, err := psql.Select(commentColumns...).
		From(commentTable).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, sqlerr.HandleError(op, nil, fmt.Errorf("building query: %w", err))
	}

	comments := []model.Comment{}
	if err := pgxscan.Select(ctx, r.db, &comments, query, args...); err != nil {
		return nil, sqlerr.HandleError(op, nil, err)
	}
	if len(comments) == 0 {
		return comments, nil
	}

	ids := make([]int64, len(comments))
	byID := make(map[int64]*model.Comment, len(comments))
	for i := range comments {
		comments[i].Smiles = []model.Smile{}
		ids[i] = comments[i].ID
		byID[comments[i].ID] = &comments[i]
	}

	links, err := r.loadSmiles(ctx, ids...)
	if err != nil {
		return nil, sqlerr.HandleError(op, nil, err)
	}
	for _, link := range links {
		if c, ok := byID[link.CommentID]; ok {
			c.Smiles = append(c.Smiles, model.Smile{ID: link.ID, Value: link.Value})
		}
	}
	return comments, nil
}

// loadSmiles fetches the smiles linked to the given comments, grouped by
// comment and in stored order.
func (r *CommentRepository) loadSmiles(ctx context.Context, commentIDs ...int64) ([]commentSmileRow, error) {
	query, args, err := psql.Select("cs.comment_id", "s.id", "s.value").
		From(commentSmileTable + " cs").
		Join(smileTable + " s ON s.id = cs.smile_id").
		Where("cs.comment_id = ANY(?)", commentIDs).
		OrderBy("cs.comment_id", "cs.position").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}

	var links []commentSmileRow
	if err := pgxscan.Select(ctx, r.db, &links, query, args...); err != nil {
		return nil, fmt.Errorf("load comment smiles: %w", err)
	}
	return links, nil
}

// Remove deletes c's association rows and then c itself. The linked smiles
// are left in place.
//
// Removing a comment that isn't stored fails with errs.ErrNotFound.
func (r *CommentRepository) Remove(ctx context.Context, c *model.Comment) error {
	const op = "remove comment"
	if c == nil {
		return sqlerr.HandleError(op, nil, errNilEntity)
	}

	deleteLinks, linkArgs, err := psql.Delete(commentSmileTable).Where("comment_id = ?", c.ID).ToSql()
	if err != nil {
		return sqlerr.HandleError(op, c.ID, fmt.Errorf("building query: %w", err))
	}
	deleteComment, args, err := psql.Delete(commentTable).Where("id = ?", c.ID).ToSql()
	if err != nil {
		return sqlerr.HandleError(op, c.ID, fmt.Errorf("building query: %w", err))
	}

	err = runInTx(ctx, r.db, r.log, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, deleteLinks, linkArgs...); err != nil {
			return fmt.Errorf("delete comment smiles: %w", err)
		}
		tag, err := tx.Exec(ctx, deleteComment, args...)
		if err != nil {
			return fmt.Errorf("delete comment: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return errs.ErrNotFound
		}
		return nil
	})
	return sqlerr.HandleError(op, c.ID, err)
}
