// CLAUDE:SUMMARY SQLite persistence for surgeon documents and their operation journal.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hazyhaar/surgeon/dbopen"

	_ "modernc.org/sqlite"
)

// Store wraps the database handle shared by the document and journal tables.
type Store struct {
	DB *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(Schema))
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	return &Store{DB: db}, nil
}

// New wraps an already opened database. The schema must be applied.
func New(db *sql.DB) *Store {
	return &Store{DB: db}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.DB.Close()
}

// Update runs fn in a transaction with busy retry.
func (s *Store) Update(ctx context.Context, fn func(*sql.Tx) error) error {
	return dbopen.RunTx(ctx, s.DB, fn)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
