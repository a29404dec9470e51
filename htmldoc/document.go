// CLAUDE:SUMMARY Parses markup into an x/net/html tree, renders it back and walks it in document order.
// Package htmldoc is the document layer under surgeon: a parsed HTML tree,
// serialisation, node attribute helpers and CSS/XPath selection.
package htmldoc

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Options controls how markup is parsed.
type Options struct {
	// FullDocument parses the input as a complete document (html/head/body
	// are synthesised when missing). The default parses a body fragment and
	// renders it back without the synthesised wrapper.
	FullDocument bool

	// Sanitize runs the input through the sanitising policy before parsing.
	Sanitize bool
}

// Document is a parsed HTML tree. The root is always a DocumentNode; in
// fragment mode its children are the top-level fragment nodes.
type Document struct {
	root *html.Node
	full bool
}

// Parse parses markup. Empty markup yields an empty document.
func Parse(markup string, opts Options) (*Document, error) {
	if opts.Sanitize {
		markup = Sanitize(markup)
	}

	if opts.FullDocument {
		root, err := html.Parse(strings.NewReader(markup))
		if err != nil {
			return nil, fmt.Errorf("htmldoc: parse document: %w", err)
		}
		return &Document{root: root, full: true}, nil
	}

	root := &html.Node{Type: html.DocumentNode}
	if markup == "" {
		return &Document{root: root}, nil
	}

	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(markup), body)
	if err != nil {
		return nil, fmt.Errorf("htmldoc: parse fragment: %w", err)
	}
	for _, n := range nodes {
		root.AppendChild(n)
	}
	return &Document{root: root}, nil
}

// Empty returns a document with no nodes.
func Empty() *Document {
	return &Document{root: &html.Node{Type: html.DocumentNode}}
}

// Root returns the DocumentNode at the top of the tree.
func (d *Document) Root() *html.Node { return d.root }

// FullDocument reports whether the document was parsed in full-document mode.
func (d *Document) FullDocument() bool { return d.full }

// Render serialises the tree.
func (d *Document) Render() (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, d.root); err != nil {
		return "", fmt.Errorf("htmldoc: render: %w", err)
	}
	return buf.String(), nil
}

// String renders the tree, returning an empty string on failure.
func (d *Document) String() string {
	s, _ := d.Render()
	return s
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	return &Document{root: cloneNode(d.root), full: d.full}
}

// Elements returns every element node in document order.
func (d *Document) Elements() []*html.Node {
	var out []*html.Node
	Walk(d.root, func(n *html.Node) {
		if n.Type == html.ElementNode {
			out = append(out, n)
		}
	})
	return out
}

// ElementsWithAttr returns, in document order, every element carrying key.
func (d *Document) ElementsWithAttr(key string) []*html.Node {
	var out []*html.Node
	Walk(d.root, func(n *html.Node) {
		if n.Type == html.ElementNode && HasAttr(n, key) {
			out = append(out, n)
		}
	})
	return out
}

// Walk visits n and its descendants in pre-order (document order).
func Walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		Walk(c, fn)
	}
}

func cloneNode(n *html.Node) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
	}
	if len(n.Attr) > 0 {
		c.Attr = make([]html.Attribute, len(n.Attr))
		copy(c.Attr, n.Attr)
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		c.AppendChild(cloneNode(child))
	}
	return c
}
