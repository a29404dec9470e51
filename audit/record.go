// CLAUDE:SUMMARY Audit record type and its JSON wire format (change_set, changed_at, type, variant fields).
// Package audit reads and writes the per-node audit trail: a JSON array of
// records stored in the data-surgeon-audit attribute of the node it describes.
package audit

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"
)

// Attribute is the reserved attribute holding a node's audit trail.
const Attribute = "data-surgeon-audit"

// TimeLayout is the changed_at wire format: ISO-8601, UTC, milliseconds.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// Wire keys shared by every record.
const (
	KeyChangeSet = "change_set"
	KeyChangedAt = "changed_at"
	KeyType      = "type"
)

// Fields holds the variant-specific part of a record.
type Fields map[string]any

// Record is one entry of a node's audit trail.
type Record struct {
	ChangeSet string
	ChangedAt time.Time
	Type      string
	Fields    Fields
}

// Stamp carries the change set identity and run time written into every
// record produced by one run.
type Stamp struct {
	ChangeSet string
	ChangedAt time.Time
}

// Truncate normalises t to the precision the wire format keeps.
func Truncate(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// New builds a record from a stamp, a type tag and variant fields.
func New(s Stamp, typ string, f Fields) Record {
	return Record{
		ChangeSet: s.ChangeSet,
		ChangedAt: Truncate(s.ChangedAt),
		Type:      typ,
		Fields:    f,
	}
}

// StringField returns a variant field as a string ("" if absent or not a string).
func (r Record) StringField(key string) string {
	s, _ := r.Fields[key].(string)
	return s
}

// BoolField returns a variant field as a bool (false if absent or not a bool).
func (r Record) BoolField(key string) bool {
	b, _ := r.Fields[key].(bool)
	return b
}

// IntField returns a numeric variant field. ok is false when the field is absent
// or not a whole number.
func (r Record) IntField(key string) (int, bool) {
	switch v := r.Fields[key].(type) {
	case float64:
		if v != float64(int(v)) {
			return 0, false
		}
		return int(v), true
	case int:
		return v, true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	}
	return 0, false
}

// Equal reports whether two records are the same entry.
func (r Record) Equal(o Record) bool {
	a, err1 := json.Marshal(r)
	b, err2 := json.Marshal(o)
	return err1 == nil && err2 == nil && bytes.Equal(a, b)
}

// MarshalJSON writes the shared keys first, then the variant fields in
// sorted key order so that a trail re-serialises byte for byte.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	write := func(key string, val any) error {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return err
		}
		v, err := json.Marshal(val)
		if err != nil {
			return fmt.Errorf("audit: field %s: %w", key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
		return nil
	}

	if err := write(KeyChangeSet, r.ChangeSet); err != nil {
		return nil, err
	}
	if err := write(KeyChangedAt, r.ChangedAt.UTC().Format(TimeLayout)); err != nil {
		return nil, err
	}
	if err := write(KeyType, r.Type); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		switch k {
		case KeyChangeSet, KeyChangedAt, KeyType:
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := write(k, r.Fields[k]); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a record; every key other than the shared ones lands
// in Fields.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var rec Record
	if v, ok := raw[KeyChangeSet]; ok {
		if err := json.Unmarshal(v, &rec.ChangeSet); err != nil {
			return fmt.Errorf("%s: %w", KeyChangeSet, err)
		}
	}
	if v, ok := raw[KeyType]; ok {
		if err := json.Unmarshal(v, &rec.Type); err != nil {
			return fmt.Errorf("%s: %w", KeyType, err)
		}
	}
	if v, ok := raw[KeyChangedAt]; ok {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return fmt.Errorf("%s: %w", KeyChangedAt, err)
		}
		t, err := parseTime(s)
		if err != nil {
			return fmt.Errorf("%s: %w", KeyChangedAt, err)
		}
		rec.ChangedAt = t
	}
	if rec.Type == "" {
		return errors.New("record without type")
	}

	for k, v := range raw {
		switch k {
		case KeyChangeSet, KeyChangedAt, KeyType:
			continue
		}
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return fmt.Errorf("%s: %w", k, err)
		}
		if rec.Fields == nil {
			rec.Fields = Fields{}
		}
		rec.Fields[k] = val
	}

	*r = rec
	return nil
}

// parseTime accepts the canonical layout and any RFC 3339 variant, so
// trails written with another offset or precision still load.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(TimeLayout, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return Truncate(t), nil
}
