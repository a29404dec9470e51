// CLAUDE:SUMMARY Document session: owns the parsed tree, hands out change sets, fans rollback/clear-audit over audited nodes.
// Package surgeon queues structural changes over selected HTML nodes, applies
// them in one pass, and can revert them later from the audit trail each
// change leaves on the node it touched.
//
// Usage:
//
//	s, _ := surgeon.New(`<div class="a">x</div>`, surgeon.WithAudit(true))
//	err := s.CSS(".a").ReplaceTagName("span").AddCSSClass("b").Run()
//	n, err := s.Rollback(surgeon.Filter{})
//
// A Session is not safe for concurrent use.
package surgeon

import (
	"errors"
	"log/slog"
	"time"

	"golang.org/x/net/html"

	"github.com/hazyhaar/surgeon/audit"
	"github.com/hazyhaar/surgeon/htmldoc"
	"github.com/hazyhaar/surgeon/idgen"
)

// Session owns one parsed document.
type Session struct {
	doc       *htmldoc.Document
	parseOpts htmldoc.Options
	audit     bool
	logger    *slog.Logger
	newID     idgen.Generator
	now       func() time.Time
}

// Option configures a Session.
type Option func(*Session)

// WithAudit enables or disables audit trails. Disabled by default.
func WithAudit(enabled bool) Option {
	return func(s *Session) { s.audit = enabled }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithIDGenerator sets the generator for default change set IDs.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(s *Session) { s.newID = gen }
}

// WithClock sets the clock stamping change set runs.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithFullDocument parses the markup as a complete HTML document instead of
// a body fragment.
func WithFullDocument(full bool) Option {
	return func(s *Session) { s.parseOpts.FullDocument = full }
}

// WithSanitize cleans the markup with the htmldoc policy before parsing.
func WithSanitize(sanitize bool) Option {
	return func(s *Session) { s.parseOpts.Sanitize = sanitize }
}

// New parses markup and returns a session over it. Empty markup gives an
// empty document on which every operation is a zero-count no-op.
func New(markup string, opts ...Option) (*Session, error) {
	s := &Session{
		logger: slog.Default(),
		newID:  idgen.Default,
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}

	doc, err := htmldoc.Parse(markup, s.parseOpts)
	if err != nil {
		return nil, err
	}
	s.doc = doc
	return s, nil
}

// AuditEnabled reports whether changes applied through this session leave
// audit records.
func (s *Session) AuditEnabled() bool { return s.audit }

// Document returns the underlying tree.
func (s *Session) Document() *htmldoc.Document { return s.doc }

// Clone returns an independent session over a deep copy of the document,
// sharing configuration. Used for previews.
func (s *Session) Clone() *Session {
	c := *s
	c.doc = s.doc.Clone()
	return &c
}

// HTML serialises the current tree.
func (s *Session) HTML() string { return s.doc.String() }

// Render serialises the current tree, reporting render failures.
func (s *Session) Render() (string, error) { return s.doc.Render() }

// CSS selects nodes with a CSS selector. An invalid selector is reported by
// the returned change set's Run and Err.
func (s *Session) CSS(selector string) *ChangeSet {
	nodes, err := s.doc.CSS(selector)
	cs := newChangeSet(nodes, s)
	cs.fail(err)
	return cs
}

// XPath selects nodes with an XPath expression, in the same document order
// CSS uses.
func (s *Session) XPath(expr string) *ChangeSet {
	nodes, err := s.doc.XPath(expr)
	cs := newChangeSet(nodes, s)
	cs.fail(err)
	return cs
}

// Nodes wraps an explicit selection. The nodes must belong to this
// session's document.
func (s *Session) Nodes(nodes []*html.Node) *ChangeSet {
	return newChangeSet(nodes, s)
}

// Rollback reverts the records matching f on every audited node and returns
// the number of records reverted. A node whose trail cannot be read or
// reverted is reported in the joined error; the other nodes are still processed.
func (s *Session) Rollback(f Filter) (int, error) {
	total := 0
	var errs []error
	for _, n := range s.doc.ElementsWithAttr(audit.Attribute) {
		count, err := RevertNode(n, f)
		total += count
		if err != nil {
			errs = append(errs, err)
		}
	}
	err := errors.Join(errs...)
	s.logger.Debug("surgeon: rollback",
		"change_set", f.ChangeSetID, "reverted", total, "failed_nodes", len(errs))
	return total, err
}

// ClearAudit drops the audit trail of every audited node without reverting
// anything. It returns the number of nodes cleaned, not records.
func (s *Session) ClearAudit() int {
	total := 0
	for _, n := range s.doc.ElementsWithAttr(audit.Attribute) {
		total += CleanNode(n)
	}
	s.logger.Debug("surgeon: clear audit", "nodes", total)
	return total
}

// Trail is the audit history of one node.
type Trail struct {
	Node    *html.Node
	Records []audit.Record
}

// Trails returns the trail of every audited node in document order.
// Corrupt trails are skipped and reported in the joined error.
func (s *Session) Trails() ([]Trail, error) {
	var out []Trail
	var errs []error
	for _, n := range s.doc.ElementsWithAttr(audit.Attribute) {
		recs, err := audit.Read(n)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if len(recs) > 0 {
			out = append(out, Trail{Node: n, Records: recs})
		}
	}
	return out, errors.Join(errs...)
}
