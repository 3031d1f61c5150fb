package dataset

import (
	"observatory/internal/aggregate"
	"observatory/internal/record"
)

// Document is the assembled output of one dataset. KPI and Derived keep the
// declared order of their aggregates.
type Document struct {
	Metadata Metadata
	KPI      []Entry
	Rows     []record.Record
	Derived  []Entry
}

type Metadata struct {
	Title  string
	Source string
	// LastUpdated is the build date, YYYY-MM-DD.
	LastUpdated string
	RowCount    int
	// Checksum fingerprints Rows; it changes only when the data does.
	Checksum string
}

// Entry is one named aggregate result.
type Entry struct {
	Name   string
	Result aggregate.Result
}

// KPIValue returns the kpi entry called name.
func (d Document) KPIValue(name string) (aggregate.Result, bool) {
	return find(d.KPI, name)
}

// DerivedValue returns the derived entry called name.
func (d Document) DerivedValue(name string) (aggregate.Result, bool) {
	return find(d.Derived, name)
}

func find(entries []Entry, name string) (aggregate.Result, bool) {
	for _, e := range entries {
		if e.Name == name {
			return e.Result, true
		}
	}
	return aggregate.Result{}, false
}
