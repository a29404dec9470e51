// CLAUDE:SUMMARY Node-level rollback (filtered revert of audit records) and audit cleaning.
package surgeon

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/net/html"

	"github.com/hazyhaar/surgeon/audit"
	"github.com/hazyhaar/surgeon/changes"
)

// Filter selects audit records to revert. Zero fields are ignored; a zero
// Filter selects every record.
type Filter struct {
	// ChangeSetID matches records of one change set.
	ChangeSetID string
	// ChangedAt matches records stamped exactly at this instant, to the
	// millisecond.
	ChangedAt time.Time
	// ChangedFrom matches records stamped at or after this instant, to the
	// millisecond.
	ChangedFrom time.Time
}

// Match reports whether rec is selected by every dimension set on f.
// Times are truncated to milliseconds like the records they compare to.
func (f Filter) Match(rec audit.Record) bool {
	if f.ChangeSetID != "" && rec.ChangeSet != f.ChangeSetID {
		return false
	}
	if !f.ChangedAt.IsZero() && !rec.ChangedAt.Equal(audit.Truncate(f.ChangedAt)) {
		return false
	}
	if !f.ChangedFrom.IsZero() && rec.ChangedAt.Before(audit.Truncate(f.ChangedFrom)) {
		return false
	}
	return true
}

// RevertNode reverts the records of n's trail selected by f, rewrites the
// trail with what is left and returns how many were reverted.
//
// Records are undone newest first, the reverse of trail order, so changes
// that build on each other (a tag renamed twice, several attributes
// removed) unwind to the original markup. A record whose revert fails
// (unknown type, unusable fields) stays in the trail and its error is
// joined into the result; records reverted before it are not restored.
func RevertNode(n *html.Node, f Filter) (int, error) {
	trail, err := audit.Read(n)
	if err != nil {
		return 0, err
	}

	done := make([]bool, len(trail))
	reverted := 0
	var errs []error
	for i := len(trail) - 1; i >= 0; i-- {
		rec := trail[i]
		if !f.Match(rec) {
			continue
		}
		if err := changes.Revert(n, rec); err != nil {
			errs = append(errs, fmt.Errorf("surgeon: revert %s on <%s>: %w", rec.Type, n.Data, err))
			continue
		}
		done[i] = true
		reverted++
	}

	remaining := make([]audit.Record, 0, len(trail)-reverted)
	for i, rec := range trail {
		if !done[i] {
			remaining = append(remaining, rec)
		}
	}
	if err := audit.Rewrite(n, remaining); err != nil {
		errs = append(errs, err)
	}
	return reverted, errors.Join(errs...)
}

// CleanNode drops n's audit trail without reverting anything. It always
// counts as one cleaned node.
func CleanNode(n *html.Node) int {
	// Rewriting to an empty trail only removes the attribute; it cannot fail.
	_ = audit.Rewrite(n, nil)
	return 1
}
