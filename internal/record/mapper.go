package record

import (
	"math"

	"observatory/internal/normalize"
)

// Mapped is the detailed outcome of mapping one row.
type Mapped struct {
	Record Record
	// Missing lists required targets with no matching source column.
	Missing []string
	// Invalid lists numeric targets whose cell carried content that could not
	// be read as a number (the value was replaced by 0).
	Invalid []string
}

// Mapper applies a Spec to raw rows. Build one per dataset with NewMapper.
//
// A Mapper caches the alias resolution of the last header it saw, so rows
// from the same table resolve their columns once. It is not safe for
// concurrent use; datasets each get their own.
type Mapper struct {
	spec   Spec
	schema *Schema
	norm   normalize.Normalizer

	lastLabels []string
	lastIdx    []int
}

// NewMapper validates spec and returns a mapper using n for coercion.
func NewMapper(spec Spec, n normalize.Normalizer) (*Mapper, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &Mapper{spec: spec, schema: newSchema(spec), norm: n}, nil
}

// Schema returns the layout of the records this mapper produces.
func (m *Mapper) Schema() *Schema { return m.schema }

// MapRow maps raw with the default normalizer. It is a pure function: the
// same input always yields the same record and missing list. spec is assumed
// valid; use NewMapper to validate it first.
func MapRow(raw RawRow, spec Spec) (Record, []string) {
	m := &Mapper{spec: spec, schema: newSchema(spec), norm: normalize.Default}
	out := m.MapDetailed(raw)
	return out.Record, out.Missing
}

// Map maps raw and returns the record plus the required targets it lacked.
func (m *Mapper) Map(raw RawRow) (Record, []string) {
	out := m.MapDetailed(raw)
	return out.Record, out.Missing
}

// MapDetailed maps raw and also reports cells that failed numeric coercion.
func (m *Mapper) MapDetailed(raw RawRow) Mapped {
	idx := m.resolve(raw.Labels)
	values := make([]any, len(m.spec))

	var out Mapped
	for i, f := range m.spec {
		col := idx[i]
		if col < 0 {
			if f.Required {
				out.Missing = append(out.Missing, f.Target)
			}
			values[i] = m.defaultValue(f)
			continue
		}

		var cell any
		if col < len(raw.Cells) {
			cell = raw.Cells[col]
		}

		v, ok := m.coerce(f.Type, cell)
		if !ok {
			out.Invalid = append(out.Invalid, f.Target)
		}
		values[i] = v
	}

	out.Record = Record{schema: m.schema, values: values}
	return out
}

// resolve returns, per field, the column index of the first alias present in
// labels (or -1).
func (m *Mapper) resolve(labels []string) []int {
	if m.lastIdx != nil && sameSlice(labels, m.lastLabels) {
		return m.lastIdx
	}

	idx := make([]int, len(m.spec))
	for i, f := range m.spec {
		idx[i] = -1
	aliases:
		for _, alias := range f.SourceAliases() {
			for c, l := range labels {
				if l == alias {
					idx[i] = c
					break aliases
				}
			}
		}
	}

	m.lastLabels = labels
	m.lastIdx = idx
	return idx
}

// sameSlice reports whether a and b share a backing array and length, which
// is how rows of one table carry their header.
func sameSlice(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return true
	}
	return &a[0] == &b[0]
}

func (m *Mapper) coerce(t FieldType, cell any) (any, bool) {
	switch t {
	case FieldInteger:
		f, ok := m.norm.NumberOK(cell)
		i, inRange := toInteger(f)
		return i, ok && inRange
	case FieldString:
		return m.norm.Text(cell), true
	default:
		return m.norm.NumberOK(cell)
	}
}

func (m *Mapper) defaultValue(f FieldSpec) any {
	v, _ := m.coerce(f.Type, f.Default)
	return v
}

// toInteger rounds half away from zero. Values outside the int64 range
// become 0.
func toInteger(f float64) (int64, bool) {
	r := math.Round(f)
	if r >= math.MaxInt64 || r <= math.MinInt64 {
		return 0, false
	}
	return int64(r), true
}
