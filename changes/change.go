// CLAUDE:SUMMARY Change contract (applicable/payload/mutate/describe), abstract Base and the audited Apply step.
// Package changes defines the revertible mutations surgeon can queue on a
// node, and the process-wide registry mapping a type tag to its behaviour.
package changes

import (
	"errors"
	"fmt"

	"golang.org/x/net/html"

	"github.com/hazyhaar/surgeon/audit"
)

var (
	// ErrAbstractMethod is the panic value raised when a Change relies on a
	// Base method that a concrete variant must provide.
	ErrAbstractMethod = errors.New("changes: abstract method")

	// ErrInvalidArgument is returned when a change is built with an unusable parameter.
	ErrInvalidArgument = errors.New("changes: invalid argument")

	// ErrInvalidRecord is returned when an audit record lacks a field its revert needs.
	ErrInvalidRecord = errors.New("changes: invalid audit record")
)

// Change is one queued mutation kind plus its parameter. Values are
// immutable; the same Change is applied once per admitted node per run.
type Change interface {
	// Type is the registry tag written into audit records.
	Type() string
	// Applicable reports whether applying to n would change anything.
	Applicable(n *html.Node) bool
	// Payload returns the variant audit fields, computed before Mutate.
	Payload(n *html.Node) audit.Fields
	// Mutate changes n in place.
	Mutate(n *html.Node)
	// Describe is a one-line human summary.
	Describe() string
}

// Base supplies the default Applicable. Variants embed it and must override
// everything else; the remaining methods panic with ErrAbstractMethod.
type Base struct{}

func (Base) Applicable(*html.Node) bool { return true }

func (Base) Type() string { panic(abstract("Type")) }

func (Base) Payload(*html.Node) audit.Fields { panic(abstract("Payload")) }

func (Base) Mutate(*html.Node) { panic(abstract("Mutate")) }

func (Base) Describe() string { panic(abstract("Describe")) }

func abstract(method string) error {
	return fmt.Errorf("%w: %s is not implemented by this change", ErrAbstractMethod, method)
}

// Apply runs c against n. It is a no-op returning false when c is not
// applicable. Otherwise the payload is captured, n is mutated and one
// record stamped with s is appended through a.
//
// With an enabled auditor, a corrupt trail on n aborts before the mutation
// so the node never ends up changed without a matching record.
func Apply(c Change, n *html.Node, a audit.Auditor, s audit.Stamp) (bool, error) {
	if !c.Applicable(n) {
		return false, nil
	}

	if !a.Enabled() {
		c.Mutate(n)
		return true, nil
	}

	if _, err := audit.Read(n); err != nil {
		return false, err
	}
	rec := audit.New(s, c.Type(), c.Payload(n))
	c.Mutate(n)
	if err := a.Append(n, rec); err != nil {
		return true, err
	}
	return true, nil
}
