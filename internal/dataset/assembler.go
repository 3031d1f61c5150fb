package dataset

import (
	"time"

	"observatory/internal/aggregate"
	"observatory/internal/record"
)

// Build maps rows, runs the aggregates and assembles the document.
//
// Every row is kept in source order unless the plan drops incomplete rows.
// Scalar and share results go under KPI, list results under Derived. An
// empty input yields a valid document with no rows and empty-safe KPIs.
//
// Errors:
//   - An aggregate fault when an aggregate would produce a non-finite
//     number. The diagnostics are still returned.
func (p *Plan) Build(rows []record.RawRow, meta Meta) (Document, Diagnostics, error) {
	mapper, err := record.NewMapper(p.fields, p.norm)
	if err != nil {
		return Document{}, Diagnostics{}, err
	}

	diag := newDiagnostics()
	records := make([]record.Record, 0, len(rows))

	for _, raw := range rows {
		out := mapper.MapDetailed(raw)
		diag.observe(raw.Line, out.Missing, out.Invalid)

		if p.dropIncomplete && len(out.Missing) > 0 {
			diag.RowsDropped++
			continue
		}
		records = append(records, out.Record)
	}
	diag.RowsKept = len(records)

	results, err := aggregate.Aggregator{Norm: p.norm}.ComputeAll(records, p.aggregates)
	if err != nil {
		return Document{}, diag, err
	}

	doc := Document{
		Metadata: Metadata{
			Title:       meta.Title,
			Source:      meta.Source,
			LastUpdated: p.now().Format(time.DateOnly),
			RowCount:    len(records),
			Checksum:    Fingerprint(records),
		},
		KPI:     []Entry{},
		Rows:    records,
		Derived: []Entry{},
	}
	for i, s := range p.aggregates {
		e := Entry{Name: s.Name, Result: results[i]}
		if s.Shape() == aggregate.ShapeList {
			doc.Derived = append(doc.Derived, e)
		} else {
			doc.KPI = append(doc.KPI, e)
		}
	}
	return doc, diag, nil
}

// BuildDataset compiles a plan and builds one document.
func BuildDataset(
	rows []record.RawRow,
	fields record.Spec,
	aggregates []aggregate.Spec,
	meta Meta,
	opts ...Option,
) (Document, Diagnostics, error) {
	p, err := Compile(fields, aggregates, opts...)
	if err != nil {
		return Document{}, Diagnostics{}, err
	}
	return p.Build(rows, meta)
}
