package changes

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/net/html"

	"github.com/hazyhaar/surgeon/audit"
	"github.com/hazyhaar/surgeon/htmldoc"
)

var testStamp = audit.Stamp{ChangeSet: "cs-1", ChangedAt: time.Date(2024, 1, 2, 3, 4, 5, 6_000_000, time.UTC)}

func parse(t *testing.T, markup string) (*htmldoc.Document, *html.Node) {
	t.Helper()
	d, err := htmldoc.Parse(markup, htmldoc.Options{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return d, d.Elements()[0]
}

func build(t *testing.T, typ, arg string) Change {
	t.Helper()
	c, err := Build(typ, arg)
	if err != nil {
		t.Fatalf("build %s(%q): %v", typ, arg, err)
	}
	return c
}

func TestRegistry_Types(t *testing.T) {
	want := []string{TypeAddCSSClass, TypeRemoveAttribute, TypeReplaceTagName}
	if diff := cmp.Diff(want, Types()); diff != "" {
		t.Fatalf("types (-want +got):\n%s", diff)
	}
}

func TestRegistry_Unknown(t *testing.T) {
	if _, err := Lookup("explode"); !errors.Is(err, ErrUnknownChangeType) {
		t.Fatalf("lookup: got %v", err)
	}
	if _, err := Build("explode", "x"); !errors.Is(err, ErrUnknownChangeType) {
		t.Fatalf("build: got %v", err)
	}
	_, n := parse(t, `<p>x</p>`)
	if err := Revert(n, audit.Record{Type: "explode"}); !errors.Is(err, ErrUnknownChangeType) {
		t.Fatalf("revert: got %v", err)
	}
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	Register(Variant{Type: TypeAddCSSClass, New: NewAddCSSClass, Revert: revertAddCSSClass})
}

func TestBase_AbstractMethods(t *testing.T) {
	type bare struct{ Base }
	var c Change = bare{}

	if !c.Applicable(nil) {
		t.Fatal("default Applicable should be true")
	}
	for name, call := range map[string]func(){
		"Type":     func() { c.Type() },
		"Payload":  func() { c.Payload(nil) },
		"Mutate":   func() { c.Mutate(nil) },
		"Describe": func() { c.Describe() },
	} {
		func() {
			defer func() {
				err, _ := recover().(error)
				if !errors.Is(err, ErrAbstractMethod) {
					t.Fatalf("%s: recovered %v, want ErrAbstractMethod", name, err)
				}
			}()
			call()
		}()
	}
}

func TestBuild_InvalidArguments(t *testing.T) {
	cases := []struct{ typ, arg string }{
		{TypeAddCSSClass, ""},
		{TypeAddCSSClass, "a b"},
		{TypeReplaceTagName, ""},
		{TypeReplaceTagName, "di v"},
		{TypeRemoveAttribute, ""},
		{TypeRemoveAttribute, audit.Attribute},
	}
	for _, tc := range cases {
		if _, err := Build(tc.typ, tc.arg); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("%s(%q): got %v, want ErrInvalidArgument", tc.typ, tc.arg, err)
		}
	}
}

func TestDescribe(t *testing.T) {
	cases := map[string]Change{
		"add css class foo":         build(t, TypeAddCSSClass, "foo"),
		"replace tag name with nav": build(t, TypeReplaceTagName, "nav"),
		"remove attribute href":     build(t, TypeRemoveAttribute, "href"),
	}
	for want, c := range cases {
		if got := c.Describe(); got != want {
			t.Errorf("Describe: got %q, want %q", got, want)
		}
	}
}

func TestApply_RecordsAndReverts(t *testing.T) {
	cases := []struct {
		name    string
		markup  string
		typ     string
		arg     string
		applied string
		fields  audit.Fields
	}{
		{
			name:    "add class to existing list",
			markup:  `<div class="a">x</div>`,
			typ:     TypeAddCSSClass,
			arg:     "b",
			applied: `<div class="a b">x</div>`,
			fields:  audit.Fields{"class": "b"},
		},
		{
			name:    "add class without class attribute",
			markup:  `<div id="i">x</div>`,
			typ:     TypeAddCSSClass,
			arg:     "b",
			applied: `<div id="i" class="b">x</div>`,
			fields:  audit.Fields{"class": "b"},
		},
		{
			name:    "replace tag name",
			markup:  `<div class="a">x</div>`,
			typ:     TypeReplaceTagName,
			arg:     "span",
			applied: `<span class="a">x</span>`,
			fields:  audit.Fields{"old": "div", "new": "span"},
		},
		{
			name:    "remove middle attribute",
			markup:  `<a href="/x" title="t" rel="r">l</a>`,
			typ:     TypeRemoveAttribute,
			arg:     "title",
			applied: `<a href="/x" rel="r">l</a>`,
			fields:  audit.Fields{"attribute": "title", "value": "t", "index": 1},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, n := parse(t, tc.markup)
			c := build(t, tc.typ, tc.arg)

			ok, err := Apply(c, n, audit.Noop{}, testStamp)
			if err != nil || !ok {
				t.Fatalf("apply: %v, %v", ok, err)
			}
			if got := d.String(); got != tc.applied {
				t.Fatalf("applied: got %q, want %q", got, tc.applied)
			}

			// Payload is computed on the original node, so replay on a fresh copy.
			_, fresh := parse(t, tc.markup)
			if diff := cmp.Diff(tc.fields, c.Payload(fresh)); diff != "" {
				t.Fatalf("payload (-want +got):\n%s", diff)
			}

			rec := audit.New(testStamp, c.Type(), c.Payload(fresh))
			// Round-trip through JSON so revert sees what a stored trail holds.
			enc, err := audit.Encode([]audit.Record{rec})
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			recs, err := audit.Decode(enc)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if err := Revert(n, recs[0]); err != nil {
				t.Fatalf("revert: %v", err)
			}
			if got := d.String(); got != tc.markup {
				t.Fatalf("reverted: got %q, want %q", got, tc.markup)
			}
		})
	}
}

func TestApply_AuditedAppendsRecord(t *testing.T) {
	_, n := parse(t, `<div>x</div>`)
	ok, err := Apply(build(t, TypeReplaceTagName, "p"), n, audit.Node{}, testStamp)
	if err != nil || !ok {
		t.Fatalf("apply: %v, %v", ok, err)
	}
	recs, err := audit.Read(n)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("records: got %d, want 1", len(recs))
	}
	r := recs[0]
	if r.ChangeSet != "cs-1" || r.Type != TypeReplaceTagName || r.StringField("old") != "div" {
		t.Fatalf("record: %+v", r)
	}
	if !r.ChangedAt.Equal(testStamp.ChangedAt) {
		t.Fatalf("ChangedAt: got %v", r.ChangedAt)
	}
}

func TestApply_ApplicabilityGuard(t *testing.T) {
	d, n := parse(t, `<div class="a">x</div>`)
	c := build(t, TypeAddCSSClass, "x")

	for i, want := range []bool{true, false} {
		ok, err := Apply(c, n, audit.Node{}, testStamp)
		if err != nil {
			t.Fatalf("apply %d: %v", i, err)
		}
		if ok != want {
			t.Fatalf("apply %d: got %v, want %v", i, ok, want)
		}
	}
	if htmldoc.Attr(n, "class") != "a x" {
		t.Fatalf("class: got %q in %s", htmldoc.Attr(n, "class"), d.String())
	}
	recs, _ := audit.Read(n)
	if len(recs) != 1 {
		t.Fatalf("records: got %d, want 1", len(recs))
	}
}

func TestApply_RemoveAttributeNotApplicable(t *testing.T) {
	for _, markup := range []string{`<a>l</a>`, `<a title="">l</a>`} {
		_, n := parse(t, markup)
		ok, err := Apply(build(t, TypeRemoveAttribute, "title"), n, audit.Node{}, testStamp)
		if err != nil || ok {
			t.Fatalf("%s: apply %v, %v", markup, ok, err)
		}
		if audit.Has(n) {
			t.Fatalf("%s: audit written for skipped change", markup)
		}
	}
}

func TestApply_CorruptTrailLeavesNodeUntouched(t *testing.T) {
	d, n := parse(t, `<div data-surgeon-audit="nope">x</div>`)
	ok, err := Apply(build(t, TypeReplaceTagName, "p"), n, audit.Node{}, testStamp)
	if !errors.Is(err, audit.ErrCorruptAuditTrail) || ok {
		t.Fatalf("apply: %v, %v", ok, err)
	}
	if got := d.String(); got != `<div data-surgeon-audit="nope">x</div>` {
		t.Fatalf("node mutated: %q", got)
	}
}

func TestRevert_AddCSSClassLegacyExistedBefore(t *testing.T) {
	d, n := parse(t, `<p class="a b">x</p>`)
	rec := audit.New(testStamp, TypeAddCSSClass, audit.Fields{"class": "b", "existed_before": true})
	if err := Revert(n, rec); err != nil {
		t.Fatalf("revert: %v", err)
	}
	if got := d.String(); got != `<p class="a b">x</p>` {
		t.Fatalf("revert touched a pre-existing class: %q", got)
	}
}

func TestRevert_InvalidRecords(t *testing.T) {
	_, n := parse(t, `<p>x</p>`)
	for _, typ := range []string{TypeAddCSSClass, TypeReplaceTagName, TypeRemoveAttribute} {
		if err := Revert(n, audit.New(testStamp, typ, nil)); !errors.Is(err, ErrInvalidRecord) {
			t.Errorf("%s: got %v, want ErrInvalidRecord", typ, err)
		}
	}
}

func TestRevert_RemoveAttributeWithoutIndexAppends(t *testing.T) {
	d, n := parse(t, `<a href="/x">l</a>`)
	rec := audit.New(testStamp, TypeRemoveAttribute, audit.Fields{"attribute": "title", "value": "t"})
	if err := Revert(n, rec); err != nil {
		t.Fatalf("revert: %v", err)
	}
	if got := d.String(); got != `<a href="/x" title="t">l</a>` {
		t.Fatalf("got %q", got)
	}
}
