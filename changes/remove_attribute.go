package changes

import (
	"fmt"

	"golang.org/x/net/html"

	"github.com/hazyhaar/surgeon/audit"
	"github.com/hazyhaar/surgeon/htmldoc"
)

// TypeRemoveAttribute is the audit type tag of RemoveAttribute.
const TypeRemoveAttribute = "remove_attribute"

// RemoveAttribute deletes an attribute. The removed value and its position
// are recorded so revert puts it back where it was.
type RemoveAttribute struct {
	Base
	Attribute string
}

// NewRemoveAttribute validates the attribute name and returns the change.
// The audit attribute itself cannot be removed this way.
func NewRemoveAttribute(attr string) (Change, error) {
	if !validName(attr) || attr == audit.Attribute {
		return nil, fmt.Errorf("%w: attribute %q", ErrInvalidArgument, attr)
	}
	return RemoveAttribute{Attribute: attr}, nil
}

func (c RemoveAttribute) Type() string { return TypeRemoveAttribute }

// Applicable requires the attribute to be present with a non-empty value.
func (c RemoveAttribute) Applicable(n *html.Node) bool {
	return htmldoc.Attr(n, c.Attribute) != ""
}

func (c RemoveAttribute) Payload(n *html.Node) audit.Fields {
	return audit.Fields{
		"attribute": c.Attribute,
		"value":     htmldoc.Attr(n, c.Attribute),
		"index":     htmldoc.AttrIndex(n, c.Attribute),
	}
}

func (c RemoveAttribute) Mutate(n *html.Node) { htmldoc.RemoveAttr(n, c.Attribute) }

func (c RemoveAttribute) Describe() string { return "remove attribute " + c.Attribute }

// revertRemoveAttribute re-sets the recorded value. Without a usable index
// the attribute is appended.
func revertRemoveAttribute(n *html.Node, rec audit.Record) error {
	attr := rec.StringField("attribute")
	if attr == "" {
		return fmt.Errorf("%w: %s without attribute", ErrInvalidRecord, rec.Type)
	}
	idx, ok := rec.IntField("index")
	if !ok {
		idx = -1
	}
	htmldoc.InsertAttr(n, attr, rec.StringField("value"), idx)
	return nil
}

func init() {
	Register(Variant{
		Type:   TypeRemoveAttribute,
		New:    NewRemoveAttribute,
		Revert: revertRemoveAttribute,
	})
}
