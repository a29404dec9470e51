// CLAUDE:SUMMARY ChangeSet: fluent queue of changes over a node selection with ordered select/reject filters; Run applies them.
package surgeon

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/net/html"

	"github.com/hazyhaar/surgeon/audit"
	"github.com/hazyhaar/surgeon/changes"
	"github.com/hazyhaar/surgeon/htmldoc"
)

var (
	// ErrIDLocked is returned when a change set ID is set a second time or
	// after the first run.
	ErrIDLocked = errors.New("surgeon: change set id already fixed")

	// ErrEmptyID is returned when a change set ID is set to "".
	ErrEmptyID = errors.New("surgeon: empty change set id")
)

// Predicate decides whether a filter matches a node.
type Predicate func(n *html.Node) bool

type filterKind int

const (
	include filterKind = iota
	exclude
)

type filter struct {
	kind filterKind
	pred Predicate
}

// excludes reports whether the filter keeps n out of the run.
func (f filter) excludes(n *html.Node) bool {
	match := f.pred(n)
	if f.kind == include {
		return !match
	}
	return match
}

// ChangeSet is a batch of queued changes bound to a node selection.
// Builder methods return the change set for chaining; the first builder
// error is kept and returned by Run, which then mutates nothing.
type ChangeSet struct {
	session    *Session
	id         string
	idSet      bool
	runs       int
	runTime    time.Time
	nodes      []*html.Node
	changeList []changes.Change
	filters    []filter
	changed    []*html.Node
	err        error
}

func newChangeSet(nodes []*html.Node, s *Session) *ChangeSet {
	return &ChangeSet{
		session: s,
		id:      s.newID(),
		nodes:   nodes,
	}
}

func (cs *ChangeSet) fail(err error) {
	if err != nil && cs.err == nil {
		cs.err = err
	}
}

// ID returns the change set identity written into audit records.
func (cs *ChangeSet) ID() string { return cs.id }

// WithID replaces the generated ID. It may be called once, before the first run.
func (cs *ChangeSet) WithID(id string) *ChangeSet {
	switch {
	case id == "":
		cs.fail(ErrEmptyID)
	case cs.idSet || cs.runs > 0:
		cs.fail(fmt.Errorf("%w: %s", ErrIDLocked, cs.id))
	default:
		cs.id = id
		cs.idSet = true
	}
	return cs
}

// Queue builds a change of the registered type typ and appends it.
func (cs *ChangeSet) Queue(typ, arg string) *ChangeSet {
	c, err := changes.Build(typ, arg)
	if err != nil {
		cs.fail(err)
		return cs
	}
	return cs.Add(c)
}

// Add appends an already built change.
func (cs *ChangeSet) Add(c changes.Change) *ChangeSet {
	cs.changeList = append(cs.changeList, c)
	return cs
}

// AddCSSClass queues adding class to each node's class list.
func (cs *ChangeSet) AddCSSClass(class string) *ChangeSet {
	return cs.Queue(changes.TypeAddCSSClass, class)
}

// ReplaceTagName queues renaming each node to name.
func (cs *ChangeSet) ReplaceTagName(name string) *ChangeSet {
	return cs.Queue(changes.TypeReplaceTagName, name)
}

// RemoveAttribute queues deleting attr from each node.
func (cs *ChangeSet) RemoveAttribute(attr string) *ChangeSet {
	return cs.Queue(changes.TypeRemoveAttribute, attr)
}

// Select keeps only nodes for which pred is true.
func (cs *ChangeSet) Select(pred Predicate) *ChangeSet {
	cs.filters = append(cs.filters, filter{kind: include, pred: pred})
	return cs
}

// Reject drops nodes for which pred is true.
func (cs *ChangeSet) Reject(pred Predicate) *ChangeSet {
	cs.filters = append(cs.filters, filter{kind: exclude, pred: pred})
	return cs
}

// SelectCSS keeps only nodes matching the CSS selector.
func (cs *ChangeSet) SelectCSS(selector string) *ChangeSet {
	m, err := htmldoc.CompileCSS(selector)
	if err != nil {
		cs.fail(err)
		return cs
	}
	return cs.Select(m.Match)
}

// RejectCSS drops nodes matching the CSS selector.
func (cs *ChangeSet) RejectCSS(selector string) *ChangeSet {
	m, err := htmldoc.CompileCSS(selector)
	if err != nil {
		cs.fail(err)
		return cs
	}
	return cs.Reject(m.Match)
}

// admits evaluates filters in registration order; the first one excluding
// n stops evaluation.
func (cs *ChangeSet) admits(n *html.Node) bool {
	for _, f := range cs.filters {
		if f.excludes(n) {
			return false
		}
	}
	return true
}

// Run stamps a fresh run time and applies every queued change, in order, to
// every admitted node, in selection order. Nodes where at least one change
// applied are appended to ChangedNodes. A change set may run more than once;
// each run appends new records.
//
// A node whose audit trail is corrupt is skipped and reported in the joined
// error; the remaining nodes are still processed.
func (cs *ChangeSet) Run() error {
	if cs.err != nil {
		return cs.err
	}

	cs.runTime = audit.Truncate(cs.session.now())
	cs.runs++
	stamp := audit.Stamp{ChangeSet: cs.id, ChangedAt: cs.runTime}
	aud := audit.For(cs.session.audit)

	applied := 0
	var errs []error
	for _, n := range cs.nodes {
		if len(cs.changeList) == 0 || !cs.admits(n) {
			continue
		}
		touched := false
		for _, c := range cs.changeList {
			ok, err := changes.Apply(c, n, aud, stamp)
			if err != nil {
				errs = append(errs, fmt.Errorf("surgeon: %s on <%s>: %w", c.Type(), n.Data, err))
				break
			}
			if ok {
				touched = true
				applied++
			}
		}
		if touched {
			cs.changed = append(cs.changed, n)
		}
	}

	cs.session.logger.Debug("surgeon: run",
		"change_set", cs.id, "nodes", len(cs.nodes), "changes", len(cs.changeList),
		"applied", applied, "audit", aud.Enabled(), "failed_nodes", len(errs))
	return errors.Join(errs...)
}

// Changes describes every queued change, in queue order.
func (cs *ChangeSet) Changes() []string {
	out := make([]string, 0, len(cs.changeList))
	for _, c := range cs.changeList {
		out = append(out, c.Describe())
	}
	return out
}

// Nodes returns the selection the change set is bound to.
func (cs *ChangeSet) Nodes() []*html.Node { return cs.nodes }

// ChangedNodes returns the nodes changed by all runs so far, in order.
func (cs *ChangeSet) ChangedNodes() []*html.Node { return cs.changed }

// ChangedNodesCount returns len(ChangedNodes()).
func (cs *ChangeSet) ChangedNodesCount() int { return len(cs.changed) }

// RunTime returns the stamp of the latest run (zero before the first run).
func (cs *ChangeSet) RunTime() time.Time { return cs.runTime }

// Err returns the first builder error, if any.
func (cs *ChangeSet) Err() error { return cs.err }
