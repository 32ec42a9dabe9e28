// Package postgres implements the identity and enrollment stores on PostgreSQL.
// Every method joins the transaction carried on the context when there is one.
package postgres

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"

	"registrar/pkg/platform/tx"
)

// Store persists principals, student records and courses in PostgreSQL.
type Store struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

func New(db *sql.DB) *Store {
	return &Store{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (s *Store) exec(ctx context.Context) tx.Executor {
	return tx.Exec(ctx, s.db)
}
