// Package mysql implements store.Store on top of a MySQL database whose
// schema is managed by the database package's migrations
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"madrasah/internal/store"

	"github.com/google/uuid"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	Db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{Db: db}
}

func newId(current string) string {
	if current != "" {
		return current
	}
	return uuid.NewString()
}

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

// withTx runs fn inside a transaction that is committed when fn returns
// nil and rolled back otherwise
func (s *Store) withTx(ctx context.Context, fnSource string, fn func(tx *sql.Tx) error) error {
	if s.Db == nil {
		return fmt.Errorf("%s: missing db input: %w", fnSource, ErrorDatabaseUndefined)
	}
	tx, err := s.Db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: failed to begin transaction: %w", fnSource, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: failed to commit transaction: %w", fnSource, err)
	}
	return nil
}
