// Package repository handles all interactions with the database.
//
// It contains the SQL statements and methods to fetch, persist or delete
// comments and smiles. Every write runs in its own transaction and every
// failure is returned as an *errs.PersistenceError.
package repository

import (
	"github.com/deppfellow/comment-smiles/internal/app"
	"github.com/rs/zerolog"
)

// Repositories is a container for all repository instances.
type Repositories struct {
	Smiles   *SmileRepository
	Comments *CommentRepository
}

// NewRepositories builds every repository on the app's shared pool and logger.
func NewRepositories(a *app.App) *Repositories {
	return newRepositories(a.DB.Pool, a.Logger)
}

func newRepositories(db Session, log *zerolog.Logger) *Repositories {
	return &Repositories{
		Smiles:   NewSmileRepository(db, log),
		Comments: NewCommentRepository(db, log),
	}
}
