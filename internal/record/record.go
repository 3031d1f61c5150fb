package record

import (
	"bytes"

	"github.com/goccy/go-json"
)

// Schema is the shared, immutable field layout of a dataset's records.
type Schema struct {
	names []string
	types []FieldType
	index map[string]int
}

// SchemaOf returns the record layout declared by spec.
func SchemaOf(spec Spec) *Schema { return newSchema(spec) }

func newSchema(spec Spec) *Schema {
	s := &Schema{
		names: spec.Names(),
		types: make([]FieldType, len(spec)),
		index: make(map[string]int, len(spec)),
	}
	for i, f := range spec {
		s.types[i] = f.Type
		s.index[f.Target] = i
	}
	return s
}

// Names returns the field names in declared order.
func (s *Schema) Names() []string {
	return append([]string(nil), s.names...)
}

// Index returns the position of name, or -1.
func (s *Schema) Index(name string) int {
	if i, ok := s.index[name]; ok {
		return i
	}
	return -1
}

// Type returns the declared type of name.
func (s *Schema) Type(name string) (FieldType, bool) {
	i, ok := s.index[name]
	if !ok {
		return 0, false
	}
	return s.types[i], true
}

// Has reports whether name is a field of the schema.
func (s *Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Record is a typed row. Values are float64 for number fields, int64 for
// integer fields and string for string fields. A Record is never mutated
// after the mapper creates it; With returns a modified copy.
type Record struct {
	schema *Schema
	values []any
}

// Schema returns the record's field layout.
func (r Record) Schema() *Schema { return r.schema }

// Len returns the number of fields.
func (r Record) Len() int { return len(r.values) }

// Get returns the value of field name.
func (r Record) Get(name string) (any, bool) {
	if r.schema == nil {
		return nil, false
	}
	i := r.schema.Index(name)
	if i < 0 {
		return nil, false
	}
	return r.values[i], true
}

// Value returns the value of field name, or nil.
func (r Record) Value(name string) any {
	v, _ := r.Get(name)
	return v
}

// At returns the i-th value in declared order.
func (r Record) At(i int) any { return r.values[i] }

// With returns a copy of r with field name set to v. Unknown names return r
// unchanged.
func (r Record) With(name string, v any) Record {
	i := r.schema.Index(name)
	if i < 0 {
		return r
	}
	vals := append([]any(nil), r.values...)
	vals[i] = v
	return Record{schema: r.schema, values: vals}
}

// Fields calls fn for every field in declared order.
func (r Record) Fields(fn func(name string, value any)) {
	for i, n := range r.schema.names {
		fn(n, r.values[i])
	}
}

// MarshalJSON writes the record as an object with keys in declared order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if r.schema != nil {
		for i, n := range r.schema.names {
			if i > 0 {
				buf.WriteByte(',')
			}
			k, err := json.Marshal(n)
			if err != nil {
				return nil, err
			}
			buf.Write(k)
			buf.WriteByte(':')
			v, err := json.Marshal(r.values[i])
			if err != nil {
				return nil, err
			}
			buf.Write(v)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// New builds a record directly from values aligned with spec. It is meant for
// tests and for callers that already hold typed data.
func New(spec Spec, values ...any) Record {
	vals := make([]any, len(spec))
	copy(vals, values)
	return Record{schema: newSchema(spec), values: vals}
}
