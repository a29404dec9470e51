// CLAUDE:SUMMARY Document service: loads persisted markup into a surgeon session, applies/rolls back/clears change sets and journals every mutation.
// Package surgery exposes surgeon sessions over persisted documents, through
// Go calls, HTTP (chi) and MCP tools.
package surgery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hazyhaar/surgeon/audit"
	"github.com/hazyhaar/surgeon/changes"
	"github.com/hazyhaar/surgeon/fetch"
	"github.com/hazyhaar/surgeon/idgen"
	"github.com/hazyhaar/surgeon/safe"
	"github.com/hazyhaar/surgeon/store"
	"github.com/hazyhaar/surgeon/surgeon"
)

var (
	// ErrNotFound is returned when the target document does not exist.
	ErrNotFound = errors.New("surgery: document not found")
	// ErrBadRequest wraps every caller error: bad selector, unknown change
	// type, malformed filter.
	ErrBadRequest = errors.New("surgery: bad request")
)

// Config holds the session defaults of the service.
type Config struct {
	Audit        bool
	FullDocument bool
	Sanitize     bool
}

// Service applies change sets to documents held in a store.
// Each call opens its own session; sessions are never shared.
type Service struct {
	store   *store.Store
	cfg     Config
	fetcher *fetch.Fetcher
	logger  *slog.Logger
	newID   idgen.Generator
	newOpID idgen.Generator
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithFetcher enables Import.
func WithFetcher(f *fetch.Fetcher) Option { return func(s *Service) { s.fetcher = f } }

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

// WithIDGenerator sets the generator used for change-set and journal ids.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(s *Service) { s.newID, s.newOpID = gen, gen }
}

// WithClock sets the clock stamped into audit records.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// New creates a Service over st.
func New(st *store.Store, cfg Config, opts ...Option) *Service {
	s := &Service{
		store:  st,
		cfg:    cfg,
		logger: slog.Default(),
		newID:   idgen.Default,
		newOpID: idgen.Prefixed("op_", idgen.UUIDv7()),
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ChangeSpec is one queued change: a registered type tag and its argument.
type ChangeSpec struct {
	Type string `json:"type"`
	Arg  string `json:"arg"`
}

// ApplyRequest describes a change set to run against a document.
type ApplyRequest struct {
	DocumentID  string       `json:"document_id"`
	Selector    string       `json:"selector"`
	Mode        string       `json:"mode,omitempty"` // css (default) | xpath
	ChangeSetID string       `json:"change_set_id,omitempty"`
	Changes     []ChangeSpec `json:"changes"`
	Select      []string     `json:"select,omitempty"` // CSS filters a node must match
	Reject      []string     `json:"reject,omitempty"` // CSS filters a node must not match
}

// ApplyResult reports a run. Errors lists per-node failures; the other
// nodes were still changed.
type ApplyResult struct {
	DocumentID  string   `json:"document_id"`
	ChangeSetID string   `json:"change_set_id"`
	RunTime     string   `json:"run_time"`
	Changes     []string `json:"changes"`
	Matched     int      `json:"matched"`
	Changed     int      `json:"changed"`
	Errors      []string `json:"errors,omitempty"`
	Markup      string   `json:"markup,omitempty"`
}

// RollbackRequest selects audit records to revert. Times use RFC 3339;
// empty fields are ignored.
type RollbackRequest struct {
	DocumentID  string `json:"document_id"`
	ChangeSetID string `json:"change_set_id,omitempty"`
	ChangedAt   string `json:"changed_at,omitempty"`
	ChangedFrom string `json:"changed_from,omitempty"`
}

// RollbackResult reports a rollback.
type RollbackResult struct {
	DocumentID string   `json:"document_id"`
	Reverted   int      `json:"reverted"`
	Errors     []string `json:"errors,omitempty"`
}

// ClearResult reports an audit wipe.
type ClearResult struct {
	DocumentID string `json:"document_id"`
	Cleaned    int    `json:"cleaned"`
}

// PutRequest stores markup under an id. Full overrides the configured
// full-document default.
type PutRequest struct {
	DocumentID string `json:"document_id"`
	Markup     string `json:"markup"`
	Full       *bool  `json:"full,omitempty"`
}

// Put parses, optionally sanitises and stores markup, replacing any
// document with the same id.
func (s *Service) Put(ctx context.Context, req *PutRequest) (*store.Document, error) {
	if err := checkID(req.DocumentID); err != nil {
		return nil, err
	}
	full := s.cfg.FullDocument
	if req.Full != nil {
		full = *req.Full
	}
	return s.save(ctx, req.DocumentID, req.Markup, "", full, store.KindPut, nil)
}

// Import fetches pageURL and stores it as documentID.
func (s *Service) Import(ctx context.Context, documentID, pageURL string) (*store.Document, error) {
	if s.fetcher == nil {
		return nil, fmt.Errorf("%w: import is disabled", ErrBadRequest)
	}
	if err := checkID(documentID); err != nil {
		return nil, err
	}
	if pageURL == "" {
		return nil, fmt.Errorf("%w: url is required", ErrBadRequest)
	}
	res, err := s.fetcher.Fetch(ctx, pageURL)
	if errors.Is(err, safe.ErrSSRF) || errors.Is(err, safe.ErrUnsafeScheme) {
		return nil, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	if err != nil {
		return nil, fmt.Errorf("surgery: import: %w", err)
	}
	detail := map[string]any{"url": pageURL, "rendered": res.Rendered, "sufficient": res.Sufficient}
	return s.save(ctx, documentID, string(res.HTML), pageURL, true, store.KindImport, detail)
}

func (s *Service) save(ctx context.Context, id, markup, sourceURL string, full bool, kind string, detail any) (*store.Document, error) {
	sess, err := surgeon.New(markup, s.sessionOpts(full, s.cfg.Sanitize)...)
	if err != nil {
		return nil, fmt.Errorf("surgery: parse: %w", err)
	}
	normalised, err := sess.Render()
	if err != nil {
		return nil, fmt.Errorf("surgery: render: %w", err)
	}
	doc := &store.Document{ID: id, Markup: normalised, SourceURL: sourceURL, Full: full}
	if err := s.store.Commit(ctx, doc, s.operation(kind, "", 0, detail)); err != nil {
		return nil, fmt.Errorf("surgery: save: %w", err)
	}
	s.logger.Info("surgery: stored", "document", id, "kind", kind, "size", len(normalised))
	return doc, nil
}

// Get returns a stored document.
func (s *Service) Get(ctx context.Context, id string) (*store.Document, error) {
	doc, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("surgery: get: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return doc, nil
}

// List returns every stored document without markup.
func (s *Service) List(ctx context.Context) ([]*store.Document, error) {
	return s.store.ListDocuments(ctx)
}

// Delete removes a document and its journal.
func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.store.DeleteDocument(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return err
}

// Journal returns the operations recorded against a document.
func (s *Service) Journal(ctx context.Context, id string) ([]*store.Operation, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.store.Journal(ctx, id)
}

// Markdown renders a stored document as Markdown.
func (s *Service) Markdown(ctx context.Context, id string) (string, error) {
	_, sess, err := s.open(ctx, id)
	if err != nil {
		return "", err
	}
	return sess.Markdown()
}

// ChangeTypes lists the registered change type tags.
func (s *Service) ChangeTypes() []string {
	return changes.Types()
}

// Apply runs req against the stored document and saves the result.
func (s *Service) Apply(ctx context.Context, req *ApplyRequest) (*ApplyResult, error) {
	doc, sess, err := s.open(ctx, req.DocumentID)
	if err != nil {
		return nil, err
	}
	cs, res, err := s.run(sess, req)
	if err != nil {
		return nil, err
	}

	doc.Markup, err = sess.Render()
	if err != nil {
		return nil, fmt.Errorf("surgery: render: %w", err)
	}
	op := s.operation(store.KindApply, cs.ID(), res.Changed, req)
	if err := s.store.Commit(ctx, doc, op); err != nil {
		return nil, fmt.Errorf("surgery: save: %w", err)
	}

	s.logger.Info("surgery: applied",
		"document", doc.ID, "change_set", cs.ID(),
		"matched", res.Matched, "changed", res.Changed, "errors", len(res.Errors))
	return res, nil
}

// Preview runs req against a copy of the stored document and returns the
// resulting markup without saving it.
func (s *Service) Preview(ctx context.Context, req *ApplyRequest) (*ApplyResult, error) {
	_, sess, err := s.open(ctx, req.DocumentID)
	if err != nil {
		return nil, err
	}
	_, res, err := s.run(sess, req)
	if err != nil {
		return nil, err
	}
	if res.Markup, err = sess.Render(); err != nil {
		return nil, fmt.Errorf("surgery: render: %w", err)
	}
	return res, nil
}

func (s *Service) run(sess *surgeon.Session, req *ApplyRequest) (*surgeon.ChangeSet, *ApplyResult, error) {
	if strings.TrimSpace(req.Selector) == "" {
		return nil, nil, fmt.Errorf("%w: selector is required", ErrBadRequest)
	}

	var cs *surgeon.ChangeSet
	switch strings.ToLower(req.Mode) {
	case "", "css":
		cs = sess.CSS(req.Selector)
	case "xpath":
		cs = sess.XPath(req.Selector)
	default:
		return nil, nil, fmt.Errorf("%w: unknown mode %q", ErrBadRequest, req.Mode)
	}
	if req.ChangeSetID != "" {
		cs.WithID(req.ChangeSetID)
	}
	for _, c := range req.Changes {
		cs.Queue(c.Type, c.Arg)
	}
	for _, sel := range req.Select {
		cs.SelectCSS(sel)
	}
	for _, sel := range req.Reject {
		cs.RejectCSS(sel)
	}
	if err := cs.Err(); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}

	runErr := cs.Run()
	return cs, &ApplyResult{
		DocumentID:  req.DocumentID,
		ChangeSetID: cs.ID(),
		RunTime:     cs.RunTime().Format(audit.TimeLayout),
		Changes:     cs.Changes(),
		Matched:     len(cs.Nodes()),
		Changed:     cs.ChangedNodesCount(),
		Errors:      errorList(runErr),
	}, nil
}

// Rollback reverts the matching audit records of a document and saves it.
func (s *Service) Rollback(ctx context.Context, req *RollbackRequest) (*RollbackResult, error) {
	f, err := parseFilter(req)
	if err != nil {
		return nil, err
	}
	doc, sess, err := s.open(ctx, req.DocumentID)
	if err != nil {
		return nil, err
	}

	n, runErr := sess.Rollback(f)
	res := &RollbackResult{DocumentID: doc.ID, Reverted: n, Errors: errorList(runErr)}

	if doc.Markup, err = sess.Render(); err != nil {
		return nil, fmt.Errorf("surgery: render: %w", err)
	}
	if err := s.store.Commit(ctx, doc, s.operation(store.KindRollback, req.ChangeSetID, n, req)); err != nil {
		return nil, fmt.Errorf("surgery: save: %w", err)
	}
	s.logger.Info("surgery: rolled back", "document", doc.ID, "change_set", req.ChangeSetID, "reverted", n)
	return res, nil
}

// ClearAudit drops every audit trail of a document and saves it.
func (s *Service) ClearAudit(ctx context.Context, id string) (*ClearResult, error) {
	doc, sess, err := s.open(ctx, id)
	if err != nil {
		return nil, err
	}
	n := sess.ClearAudit()
	if doc.Markup, err = sess.Render(); err != nil {
		return nil, fmt.Errorf("surgery: render: %w", err)
	}
	if err := s.store.Commit(ctx, doc, s.operation(store.KindClearAudit, "", n, nil)); err != nil {
		return nil, fmt.Errorf("surgery: save: %w", err)
	}
	s.logger.Info("surgery: audit cleared", "document", doc.ID, "nodes", n)
	return &ClearResult{DocumentID: doc.ID, Cleaned: n}, nil
}

func (s *Service) open(ctx context.Context, id string) (*store.Document, *surgeon.Session, error) {
	if err := checkID(id); err != nil {
		return nil, nil, err
	}
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	sess, err := surgeon.New(doc.Markup, s.sessionOpts(doc.Full, false)...)
	if err != nil {
		return nil, nil, fmt.Errorf("surgery: parse %s: %w", id, err)
	}
	return doc, sess, nil
}

func checkID(id string) error {
	if err := safe.ValidateIdentifier(id); err != nil {
		return fmt.Errorf("%w: document_id: %w", ErrBadRequest, err)
	}
	return nil
}

func (s *Service) sessionOpts(full, sanitize bool) []surgeon.Option {
	return []surgeon.Option{
		surgeon.WithAudit(s.cfg.Audit),
		surgeon.WithFullDocument(full),
		surgeon.WithSanitize(sanitize),
		surgeon.WithLogger(s.logger),
		surgeon.WithIDGenerator(s.newID),
		surgeon.WithClock(s.now),
	}
}

func (s *Service) operation(kind, changeSet string, count int, detail any) *store.Operation {
	op := &store.Operation{
		ID:        s.newOpID(),
		Kind:      kind,
		ChangeSet: changeSet,
		Count:     count,
	}
	if detail != nil {
		if data, err := json.Marshal(detail); err == nil {
			op.Detail = data
		}
	}
	return op
}

func parseFilter(req *RollbackRequest) (surgeon.Filter, error) {
	f := surgeon.Filter{ChangeSetID: req.ChangeSetID}
	for _, p := range []struct {
		name string
		in   string
		out  *time.Time
	}{
		{"changed_at", req.ChangedAt, &f.ChangedAt},
		{"changed_from", req.ChangedFrom, &f.ChangedFrom},
	} {
		if p.in == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339Nano, p.in)
		if err != nil {
			return f, fmt.Errorf("%w: %s: %v", ErrBadRequest, p.name, err)
		}
		*p.out = audit.Truncate(t)
	}
	return f, nil
}

// errorList flattens a joined error into its messages.
func errorList(err error) []string {
	if err == nil {
		return nil
	}
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range j.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}
