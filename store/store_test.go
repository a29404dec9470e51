package store

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hazyhaar/surgeon/dbopen"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(dbopen.OpenMemory(t, dbopen.WithSchema(Schema)))
}

func TestDocument_PutGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d := &Document{ID: "doc1", Markup: `<p class="a">x</p>`, SourceURL: "https://example.com"}
	if err := s.PutDocument(ctx, d); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := s.GetDocument(ctx, "doc1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("document not found")
	}
	if got.Markup != d.Markup || got.SourceURL != d.SourceURL || got.Full {
		t.Fatalf("got %+v", got)
	}
	if got.Hash != HashMarkup(d.Markup) || len(got.Hash) != 64 {
		t.Fatalf("hash: %q", got.Hash)
	}
	if got.CreatedAt == 0 || got.UpdatedAt < got.CreatedAt {
		t.Fatalf("timestamps: %+v", got)
	}
}

func TestDocument_GetMissing(t *testing.T) {
	s := newTestStore(t)
	got, err := s.GetDocument(context.Background(), "nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestDocument_ReplaceKeepsCreatedAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.PutDocument(ctx, &Document{ID: "doc1", Markup: "<p>1</p>", CreatedAt: 42}); err != nil {
		t.Fatalf("put: %v", err)
	}
	d := &Document{ID: "doc1", Markup: "<p>2</p>", Full: true}
	if err := s.PutDocument(ctx, d); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if d.CreatedAt != 42 {
		t.Fatalf("created_at after replace: got %d", d.CreatedAt)
	}

	got, _ := s.GetDocument(ctx, "doc1")
	if got.Markup != "<p>2</p>" || !got.Full || got.CreatedAt != 42 {
		t.Fatalf("got %+v", got)
	}
	if got.Hash == HashMarkup("<p>1</p>") {
		t.Fatal("hash not updated on replace")
	}
}

func TestDocument_ListAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		if err := s.PutDocument(ctx, &Document{ID: id, Markup: "<p></p>"}); err != nil {
			t.Fatalf("put %s: %v", id, err)
		}
	}

	docs, err := s.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("list: got %d docs", len(docs))
	}
	for _, d := range docs {
		if d.Markup != "" {
			t.Fatalf("list should omit markup, got %q", d.Markup)
		}
	}

	if err := s.DeleteDocument(ctx, "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteDocument(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: got %v", err)
	}
	docs, _ = s.ListDocuments(ctx)
	if len(docs) != 1 || docs[0].ID != "b" {
		t.Fatalf("after delete: %+v", docs)
	}
}

func TestCommit_Journal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d := &Document{ID: "doc1", Markup: "<p>1</p>"}
	if err := s.Commit(ctx, d, &Operation{ID: "op1", Kind: KindPut}); err != nil {
		t.Fatalf("commit put: %v", err)
	}
	d.Markup = `<p class="x">1</p>`
	detail, _ := json.Marshal(map[string]any{"selector": "p"})
	if err := s.Commit(ctx, d, &Operation{ID: "op2", Kind: KindApply, ChangeSet: "cs1", Detail: detail, Count: 1}); err != nil {
		t.Fatalf("commit apply: %v", err)
	}

	ops, err := s.Journal(ctx, "doc1")
	if err != nil {
		t.Fatalf("journal: %v", err)
	}
	if len(ops) != 2 {
		t.Fatalf("journal: got %d ops", len(ops))
	}
	if ops[0].Kind != KindPut || string(ops[0].Detail) != "{}" {
		t.Fatalf("op[0]: %+v", ops[0])
	}
	if ops[1].Kind != KindApply || ops[1].ChangeSet != "cs1" || ops[1].Count != 1 || ops[1].DocumentID != "doc1" {
		t.Fatalf("op[1]: %+v", ops[1])
	}
	if string(ops[1].Detail) != `{"selector":"p"}` {
		t.Fatalf("op[1] detail: %s", ops[1].Detail)
	}
}

func TestCommit_FailedJournalKeepsMarkup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Commit(ctx, &Document{ID: "doc1", Markup: "<p>1</p>"}, &Operation{ID: "op1", Kind: KindPut}); err != nil {
		t.Fatalf("commit: %v", err)
	}
	// Duplicate operation id rolls back the markup update.
	err := s.Commit(ctx, &Document{ID: "doc1", Markup: "<p>2</p>"}, &Operation{ID: "op1", Kind: KindApply})
	if err == nil {
		t.Fatal("expected journal error")
	}
	got, _ := s.GetDocument(ctx, "doc1")
	if got.Markup != "<p>1</p>" {
		t.Fatalf("markup after failed commit: %q", got.Markup)
	}
}

func TestDelete_CascadesJournal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Commit(ctx, &Document{ID: "doc1", Markup: "<p></p>"}, &Operation{ID: "op1", Kind: KindPut}); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := s.DeleteDocument(ctx, "doc1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	ops, err := s.Journal(ctx, "doc1")
	if err != nil {
		t.Fatalf("journal: %v", err)
	}
	if len(ops) != 0 {
		t.Fatalf("journal after delete: %d ops", len(ops))
	}
}

func TestOpen_File(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "data", "surgeon.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	if err := s.PutDocument(context.Background(), &Document{ID: "x", Markup: "<p></p>"}); err != nil {
		t.Fatalf("put: %v", err)
	}
}
