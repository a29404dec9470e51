// CLAUDE:SUMMARY CRUD operations for the documents table.
package store

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"time"

	"golang.org/x/crypto/blake2b"
)

// ErrNotFound is returned by writes that target a missing document.
var ErrNotFound = errors.New("store: document not found")

// Document is a persisted HTML document.
type Document struct {
	ID        string `json:"id"`
	Markup    string `json:"markup,omitempty"`
	Hash      string `json:"hash"`
	SourceURL string `json:"source_url,omitempty"`
	Full      bool   `json:"full"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

const documentColumns = `id, markup, hash, source_url, full_doc, created_at, updated_at`

// HashMarkup returns the hex BLAKE2b-256 digest of markup. It changes with
// every mutation, audit attributes included.
func HashMarkup(markup string) string {
	sum := blake2b.Sum256([]byte(markup))
	return hex.EncodeToString(sum[:])
}

// PutDocument inserts d or replaces the markup of an existing document.
// CreatedAt is preserved across replacements.
func (s *Store) PutDocument(ctx context.Context, d *Document) error {
	return s.Update(ctx, func(tx *sql.Tx) error {
		return putDocument(ctx, tx, d)
	})
}

func putDocument(ctx context.Context, tx *sql.Tx, d *Document) error {
	now := time.Now().UnixMilli()
	if d.CreatedAt == 0 {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	d.Hash = HashMarkup(d.Markup)

	_, err := tx.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES (?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			markup = excluded.markup,
			hash = excluded.hash,
			source_url = excluded.source_url,
			full_doc = excluded.full_doc,
			updated_at = excluded.updated_at`,
		d.ID, d.Markup, d.Hash, d.SourceURL, boolInt(d.Full), d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return tx.QueryRowContext(ctx, `SELECT created_at FROM documents WHERE id = ?`, d.ID).Scan(&d.CreatedAt)
}

// GetDocument retrieves a document by ID. Returns nil, nil when absent.
func (s *Store) GetDocument(ctx context.Context, id string) (*Document, error) {
	d := &Document{}
	var full int
	err := s.DB.QueryRowContext(ctx, `
		SELECT `+documentColumns+` FROM documents WHERE id = ?`, id).Scan(
		&d.ID, &d.Markup, &d.Hash, &d.SourceURL, &full, &d.CreatedAt, &d.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	d.Full = full != 0
	return d, nil
}

// ListDocuments returns every document without its markup, most recently
// updated first.
func (s *Store) ListDocuments(ctx context.Context) ([]*Document, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, hash, source_url, full_doc, created_at, updated_at
		FROM documents ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		d := &Document{}
		var full int
		if err := rows.Scan(&d.ID, &d.Hash, &d.SourceURL, &full, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		d.Full = full != 0
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// DeleteDocument removes a document and, by cascade, its journal.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
