package changes

import (
	"fmt"

	"golang.org/x/net/html"

	"github.com/hazyhaar/surgeon/audit"
	"github.com/hazyhaar/surgeon/htmldoc"
)

// TypeReplaceTagName is the audit type tag of ReplaceTagName.
const TypeReplaceTagName = "replace_tag_name"

// ReplaceTagName renames the element.
type ReplaceTagName struct {
	Base
	Name string
}

// NewReplaceTagName validates name and returns the change.
func NewReplaceTagName(name string) (Change, error) {
	if !validName(name) {
		return nil, fmt.Errorf("%w: tag name %q", ErrInvalidArgument, name)
	}
	return ReplaceTagName{Name: name}, nil
}

func (c ReplaceTagName) Type() string { return TypeReplaceTagName }

func (c ReplaceTagName) Payload(n *html.Node) audit.Fields {
	return audit.Fields{"old": n.Data, "new": c.Name}
}

func (c ReplaceTagName) Mutate(n *html.Node) { htmldoc.Rename(n, c.Name) }

func (c ReplaceTagName) Describe() string { return "replace tag name with " + c.Name }

func revertReplaceTagName(n *html.Node, rec audit.Record) error {
	old := rec.StringField("old")
	if old == "" {
		return fmt.Errorf("%w: %s without old name", ErrInvalidRecord, rec.Type)
	}
	htmldoc.Rename(n, old)
	return nil
}

// validName accepts tag and attribute names: non-empty, no whitespace,
// quotes, '=', '<', '>' or '/'.
func validName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch r {
		case ' ', '\t', '\n', '\r', '\f', '"', '\'', '=', '<', '>', '/':
			return false
		}
	}
	return true
}

func init() {
	Register(Variant{
		Type:   TypeReplaceTagName,
		New:    NewReplaceTagName,
		Revert: revertReplaceTagName,
	})
}
