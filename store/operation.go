// CLAUDE:SUMMARY Operation journal: one row per mutating call, written in the same transaction as the markup.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Operation kinds.
const (
	KindPut        = "put"
	KindImport     = "import"
	KindApply      = "apply"
	KindRollback   = "rollback"
	KindClearAudit = "clear_audit"
)

// Operation is one journal entry.
type Operation struct {
	ID         string          `json:"id"`
	DocumentID string          `json:"document_id"`
	Kind       string          `json:"kind"`
	ChangeSet  string          `json:"change_set,omitempty"`
	Detail     json.RawMessage `json:"detail,omitempty"`
	Count      int             `json:"count"`
	CreatedAt  int64           `json:"created_at"`
}

// Commit saves the document markup and journals op atomically.
// op.DocumentID is forced to d.ID.
func (s *Store) Commit(ctx context.Context, d *Document, op *Operation) error {
	return s.Update(ctx, func(tx *sql.Tx) error {
		if err := putDocument(ctx, tx, d); err != nil {
			return fmt.Errorf("put document: %w", err)
		}
		op.DocumentID = d.ID
		if err := insertOperation(ctx, tx, op); err != nil {
			return fmt.Errorf("journal: %w", err)
		}
		return nil
	})
}

func insertOperation(ctx context.Context, tx *sql.Tx, op *Operation) error {
	if op.CreatedAt == 0 {
		op.CreatedAt = time.Now().UnixMilli()
	}
	detail := string(op.Detail)
	if detail == "" {
		detail = "{}"
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO operations (id, document_id, kind, change_set, detail, count, created_at)
		VALUES (?,?,?,?,?,?,?)`,
		op.ID, op.DocumentID, op.Kind, op.ChangeSet, detail, op.Count, op.CreatedAt,
	)
	return err
}

// Journal returns the operations recorded for a document, oldest first.
func (s *Store) Journal(ctx context.Context, documentID string) ([]*Operation, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, document_id, kind, change_set, detail, count, created_at
		FROM operations WHERE document_id = ?
		ORDER BY created_at, rowid`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ops []*Operation
	for rows.Next() {
		op := &Operation{}
		var detail string
		if err := rows.Scan(&op.ID, &op.DocumentID, &op.Kind, &op.ChangeSet, &detail, &op.Count, &op.CreatedAt); err != nil {
			return nil, err
		}
		op.Detail = json.RawMessage(detail)
		ops = append(ops, op)
	}
	return ops, rows.Err()
}
