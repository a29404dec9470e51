// CLAUDE:SUMMARY CSS (cascadia) and XPath (htmlquery) selection returning element nodes in document order.
package htmldoc

import (
	"errors"
	"fmt"
	"sort"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// ErrInvalidSelector is returned when a CSS selector or XPath expression
// cannot be compiled.
var ErrInvalidSelector = errors.New("htmldoc: invalid selector")

// Matcher reports whether a single node matches a compiled selector.
type Matcher interface {
	Match(n *html.Node) bool
}

// CompileCSS compiles a CSS selector group.
func CompileCSS(selector string) (Matcher, error) {
	m, err := cascadia.ParseGroup(selector)
	if err != nil {
		return nil, fmt.Errorf("%w: css %q: %v", ErrInvalidSelector, selector, err)
	}
	return m, nil
}

// CSS returns the elements matching selector, in document order.
func (d *Document) CSS(selector string) ([]*html.Node, error) {
	m, err := cascadia.ParseGroup(selector)
	if err != nil {
		return nil, fmt.Errorf("%w: css %q: %v", ErrInvalidSelector, selector, err)
	}
	return d.inOrder(cascadia.QueryAll(d.root, m)), nil
}

// XPath returns the elements selected by expr, in document order.
// Non-element results (text, comments) are dropped.
func (d *Document) XPath(expr string) ([]*html.Node, error) {
	nodes, err := htmlquery.QueryAll(d.root, expr)
	if err != nil {
		return nil, fmt.Errorf("%w: xpath %q: %v", ErrInvalidSelector, expr, err)
	}
	return d.inOrder(nodes), nil
}

// inOrder keeps the element nodes that belong to this tree, drops
// duplicates, and sorts them by pre-order position.
func (d *Document) inOrder(nodes []*html.Node) []*html.Node {
	if len(nodes) == 0 {
		return nil
	}
	pos := make(map[*html.Node]int)
	i := 0
	Walk(d.root, func(n *html.Node) {
		pos[n] = i
		i++
	})

	seen := make(map[*html.Node]bool, len(nodes))
	out := make([]*html.Node, 0, len(nodes))
	for _, n := range nodes {
		if n == nil || n.Type != html.ElementNode || seen[n] {
			continue
		}
		if _, ok := pos[n]; !ok {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.SliceStable(out, func(a, b int) bool { return pos[out[a]] < pos[out[b]] })
	return out
}
