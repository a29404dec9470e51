// CLAUDE:SUMMARY Reads, appends and rewrites a node's audit trail; Noop auditor for audit-disabled sessions.
package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/surgeon/htmldoc"
)

// ErrCorruptAuditTrail is returned when the audit attribute holds something
// that is not a JSON array of records.
var ErrCorruptAuditTrail = errors.New("audit: corrupt audit trail")

// Auditor records applied changes on a node.
type Auditor interface {
	// Append adds rec at the end of the node's trail.
	Append(n *html.Node, rec Record) error
	// Enabled reports whether records are written at all.
	Enabled() bool
}

// Node is the Auditor that stores the trail in the node itself.
type Node struct{}

// Append implements Auditor.
func (Node) Append(n *html.Node, rec Record) error { return Append(n, rec) }

// Enabled implements Auditor.
func (Node) Enabled() bool { return true }

// Noop discards records. Used when a session runs with auditing disabled:
// mutations still happen, nothing is read or written.
type Noop struct{}

// Append implements Auditor.
func (Noop) Append(*html.Node, Record) error { return nil }

// Enabled implements Auditor.
func (Noop) Enabled() bool { return false }

// For returns the Node auditor when enabled, Noop otherwise.
func For(enabled bool) Auditor {
	if enabled {
		return Node{}
	}
	return Noop{}
}

// Has reports whether n carries an audit attribute.
func Has(n *html.Node) bool {
	return htmldoc.HasAttr(n, Attribute)
}

// Read parses the node's trail. A missing or blank attribute is an empty
// trail; anything unparsable is ErrCorruptAuditTrail.
func Read(n *html.Node) ([]Record, error) {
	recs, err := Decode(htmldoc.Attr(n, Attribute))
	if err != nil {
		return nil, fmt.Errorf("<%s>: %w", n.Data, err)
	}
	return recs, nil
}

// Append reads the trail, adds rec and writes it back.
func Append(n *html.Node, rec Record) error {
	recs, err := Read(n)
	if err != nil {
		return err
	}
	return Rewrite(n, append(recs, rec))
}

// Rewrite sets the trail to exactly recs. An empty slice removes the
// attribute; the attribute never holds an empty array.
func Rewrite(n *html.Node, recs []Record) error {
	if len(recs) == 0 {
		htmldoc.RemoveAttr(n, Attribute)
		return nil
	}
	data, err := Encode(recs)
	if err != nil {
		return err
	}
	htmldoc.SetAttr(n, Attribute, data)
	return nil
}

// Encode serialises a trail to the attribute value.
func Encode(recs []Record) (string, error) {
	data, err := json.Marshal(recs)
	if err != nil {
		return "", fmt.Errorf("audit: encode: %w", err)
	}
	return string(data), nil
}

// Decode parses an attribute value into a trail.
func Decode(s string) ([]Record, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var recs []Record
	if err := json.Unmarshal([]byte(s), &recs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptAuditTrail, err)
	}
	return recs, nil
}
