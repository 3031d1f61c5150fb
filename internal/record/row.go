package record

// RawRow is one source row: cells keyed by column label, in source column
// order. Rows read from the same table share their Labels slice.
type RawRow struct {
	Labels []string
	Cells  []any
	// Line is the 1-based record number in the source, when known.
	Line int
}

// NewRawRow pairs labels with cells. Missing trailing cells read as nil.
func NewRawRow(labels []string, cells []any) RawRow {
	return RawRow{Labels: labels, Cells: cells}
}

// Get returns the cell under label. The first column with that exact label
// wins; ok is false when no column carries it.
func (r RawRow) Get(label string) (v any, ok bool) {
	for i, l := range r.Labels {
		if l != label {
			continue
		}
		if i < len(r.Cells) {
			return r.Cells[i], true
		}
		return nil, true
	}
	return nil, false
}

// Map returns the row as a label->cell map. Intended for diagnostics; the
// mapper never needs it.
func (r RawRow) Map() map[string]any {
	out := make(map[string]any, len(r.Labels))
	for i, l := range r.Labels {
		if _, dup := out[l]; dup {
			continue
		}
		if i < len(r.Cells) {
			out[l] = r.Cells[i]
		} else {
			out[l] = nil
		}
	}
	return out
}
