// CLAUDE:SUMMARY Process-wide change-type registry: type tag -> constructor + stateless revert. Filled from init().
package changes

import (
	"errors"
	"fmt"
	"sort"

	"golang.org/x/net/html"

	"github.com/hazyhaar/surgeon/audit"
)

// ErrUnknownChangeType is returned when an audit record names a type tag no
// registered variant owns.
var ErrUnknownChangeType = errors.New("changes: unknown change type")

// RevertFunc undoes exactly the mutation described by rec on n. It depends
// on nothing but its arguments.
type RevertFunc func(n *html.Node, rec audit.Record) error

// Variant is the registry entry of one change kind.
type Variant struct {
	Type   string
	New    func(arg string) (Change, error)
	Revert RevertFunc
}

// registry is written only from init functions and read-only afterwards.
var registry = map[string]Variant{}

// Register adds a variant. Call it from the variant's init function;
// a duplicate or incomplete registration is a programming error and panics.
func Register(v Variant) {
	if v.Type == "" || v.New == nil || v.Revert == nil {
		panic(fmt.Sprintf("changes: incomplete variant registration %q", v.Type))
	}
	if _, dup := registry[v.Type]; dup {
		panic(fmt.Sprintf("changes: variant %q registered twice", v.Type))
	}
	registry[v.Type] = v
}

// Lookup returns the variant registered under typ.
func Lookup(typ string) (Variant, error) {
	v, ok := registry[typ]
	if !ok {
		return Variant{}, fmt.Errorf("%w: %q", ErrUnknownChangeType, typ)
	}
	return v, nil
}

// Build constructs a change of type typ through its registered constructor.
func Build(typ, arg string) (Change, error) {
	v, err := Lookup(typ)
	if err != nil {
		return nil, err
	}
	return v.New(arg)
}

// Revert undoes rec on n through the variant that produced it.
func Revert(n *html.Node, rec audit.Record) error {
	v, err := Lookup(rec.Type)
	if err != nil {
		return err
	}
	return v.Revert(n, rec)
}

// Types returns every registered type tag, sorted.
func Types() []string {
	out := make([]string, 0, len(registry))
	for t := range registry {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
