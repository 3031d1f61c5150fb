package dataset

import (
	"fmt"
	"strings"
)

// Diagnostics summarizes row-level defects of one build. Defects never fail
// a build; they were absorbed into defaults.
type Diagnostics struct {
	// RowsRead counts source rows; RowsKept those in the document.
	RowsRead int
	RowsKept int
	// RowsDropped counts incomplete rows removed by WithDropIncomplete.
	RowsDropped int

	// IncompleteRows counts rows with at least one missing required field.
	IncompleteRows int
	// Missing is the union of missing required fields, in first-seen order.
	Missing       []string
	MissingCounts map[string]int

	// InvalidCells counts cells whose content could not be read as a number.
	InvalidCells  int
	Invalid       []string
	InvalidCounts map[string]int

	// FirstDefectLine is the source line of the first defective row, or 0.
	FirstDefectLine int
}

func newDiagnostics() Diagnostics {
	return Diagnostics{
		MissingCounts: make(map[string]int),
		InvalidCounts: make(map[string]int),
	}
}

func (d *Diagnostics) observe(line int, missing, invalid []string) {
	d.RowsRead++
	if len(missing) == 0 && len(invalid) == 0 {
		return
	}
	if d.FirstDefectLine == 0 {
		d.FirstDefectLine = line
	}
	if len(missing) > 0 {
		d.IncompleteRows++
	}
	for _, f := range missing {
		if d.MissingCounts[f] == 0 {
			d.Missing = append(d.Missing, f)
		}
		d.MissingCounts[f]++
	}
	for _, f := range invalid {
		if d.InvalidCounts[f] == 0 {
			d.Invalid = append(d.Invalid, f)
		}
		d.InvalidCounts[f]++
		d.InvalidCells++
	}
}

// Clean reports whether no row had a defect.
func (d Diagnostics) Clean() bool {
	return d.IncompleteRows == 0 && d.InvalidCells == 0
}

// String is a one-line summary for logs.
func (d Diagnostics) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "rows_read=%d rows_kept=%d", d.RowsRead, d.RowsKept)
	if d.RowsDropped > 0 {
		fmt.Fprintf(&b, " rows_dropped=%d", d.RowsDropped)
	}
	if d.IncompleteRows > 0 {
		fmt.Fprintf(&b, " rows_incomplete=%d missing=%s", d.IncompleteRows, strings.Join(d.Missing, ","))
	}
	if d.InvalidCells > 0 {
		fmt.Fprintf(&b, " invalid_cells=%d invalid=%s", d.InvalidCells, strings.Join(d.Invalid, ","))
	}
	if d.FirstDefectLine > 0 {
		fmt.Fprintf(&b, " first_defect_line=%d", d.FirstDefectLine)
	}
	return b.String()
}
