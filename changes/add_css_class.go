package changes

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/surgeon/audit"
	"github.com/hazyhaar/surgeon/htmldoc"
)

// TypeAddCSSClass is the audit type tag of AddCSSClass.
const TypeAddCSSClass = "add_css_class"

// AddCSSClass appends a class to the node's class list.
type AddCSSClass struct {
	Base
	Class string
}

// NewAddCSSClass validates class and returns the change.
func NewAddCSSClass(class string) (Change, error) {
	if class == "" || strings.ContainsAny(class, " \t\n\r\f") {
		return nil, fmt.Errorf("%w: css class %q", ErrInvalidArgument, class)
	}
	return AddCSSClass{Class: class}, nil
}

func (c AddCSSClass) Type() string { return TypeAddCSSClass }

// Applicable is false when the class is already present, so the change
// never introduces a duplicate.
func (c AddCSSClass) Applicable(n *html.Node) bool {
	return !htmldoc.HasClass(n, c.Class)
}

func (c AddCSSClass) Payload(*html.Node) audit.Fields {
	return audit.Fields{"class": c.Class}
}

func (c AddCSSClass) Mutate(n *html.Node) {
	htmldoc.SetClasses(n, append(htmldoc.Classes(n), c.Class))
}

func (c AddCSSClass) Describe() string { return "add css class " + c.Class }

// revertAddCSSClass removes the recorded class. Records carrying
// existed_before=true (written by older trails) left the list untouched and
// revert to nothing.
func revertAddCSSClass(n *html.Node, rec audit.Record) error {
	if rec.BoolField("existed_before") {
		return nil
	}
	class := rec.StringField("class")
	if class == "" {
		return fmt.Errorf("%w: %s without class", ErrInvalidRecord, rec.Type)
	}
	classes := slices.DeleteFunc(htmldoc.Classes(n), func(c string) bool { return c == class })
	htmldoc.SetClasses(n, classes)
	return nil
}

func init() {
	Register(Variant{
		Type:   TypeAddCSSClass,
		New:    NewAddCSSClass,
		Revert: revertAddCSSClass,
	})
}
