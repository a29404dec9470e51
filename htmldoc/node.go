// CLAUDE:SUMMARY Attribute, tag-name and class-list helpers over *html.Node.
package htmldoc

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ClassAttr is the attribute holding an element's class list.
const ClassAttr = "class"

// ClassSeparator joins and splits class lists.
const ClassSeparator = " "

// Attr returns the value of an attribute on a node.
func Attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}

// HasAttr checks if a node has a specific attribute.
func HasAttr(n *html.Node, key string) bool {
	return AttrIndex(n, key) >= 0
}

// AttrIndex returns the position of key in the attribute list, or -1.
func AttrIndex(n *html.Node, key string) int {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return i
		}
	}
	return -1
}

// SetAttr sets key to val, in place when the attribute exists, appended otherwise.
func SetAttr(n *html.Node, key, val string) {
	if i := AttrIndex(n, key); i >= 0 {
		n.Attr[i].Val = val
		return
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// InsertAttr sets key to val. An existing attribute is updated in place;
// otherwise the attribute is inserted at index, clamped to the list bounds.
func InsertAttr(n *html.Node, key, val string, index int) {
	if i := AttrIndex(n, key); i >= 0 {
		n.Attr[i].Val = val
		return
	}
	if index < 0 || index > len(n.Attr) {
		index = len(n.Attr)
	}
	n.Attr = append(n.Attr, html.Attribute{})
	copy(n.Attr[index+1:], n.Attr[index:])
	n.Attr[index] = html.Attribute{Key: key, Val: val}
}

// RemoveAttr deletes key from the node. It reports whether it was present.
func RemoveAttr(n *html.Node, key string) bool {
	i := AttrIndex(n, key)
	if i < 0 {
		return false
	}
	n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
	return true
}

// Rename changes the element's tag name.
func Rename(n *html.Node, name string) {
	n.Data = name
	n.DataAtom = atom.Lookup([]byte(name))
}

// Classes splits the class attribute on single spaces. A missing or empty
// attribute yields nil.
func Classes(n *html.Node) []string {
	v := Attr(n, ClassAttr)
	if v == "" {
		return nil
	}
	return strings.Split(v, ClassSeparator)
}

// HasClass reports whether class is in the node's class list.
func HasClass(n *html.Node, class string) bool {
	for _, c := range Classes(n) {
		if c == class {
			return true
		}
	}
	return false
}

// SetClasses writes the class list back. An empty list removes the class
// attribute entirely.
func SetClasses(n *html.Node, classes []string) {
	if len(classes) == 0 {
		RemoveAttr(n, ClassAttr)
		return
	}
	SetAttr(n, ClassAttr, strings.Join(classes, ClassSeparator))
}
