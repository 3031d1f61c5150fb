// Package dataset assembles one output document from raw rows: it maps every
// row to a typed record, runs the declared aggregates and collects row-level
// diagnostics.
package dataset

import (
	"time"

	"observatory/internal/aggregate"
	"observatory/internal/normalize"
	"observatory/internal/record"
)

// Meta is the caller-provided part of the document metadata.
type Meta struct {
	Title  string
	Source string
}

// Plan is a compiled, validated dataset definition. A Plan is immutable and
// safe for concurrent use; each Build gets its own mapper.
type Plan struct {
	fields     record.Spec
	aggregates []aggregate.Spec
	schema     *record.Schema

	norm           normalize.Normalizer
	dropIncomplete bool
	now            func() time.Time
}

type Option func(*Plan)

// WithNormalizer sets the cell coercion rules. The default is
// normalize.Default.
func WithNormalizer(n normalize.Normalizer) Option {
	return func(p *Plan) { p.norm = n }
}

// WithDropIncomplete removes rows that lack a required field from the
// document rows and from aggregation. Off by default: rows are never dropped
// unless asked.
func WithDropIncomplete(drop bool) Option {
	return func(p *Plan) { p.dropIncomplete = drop }
}

// WithClock replaces time.Now for the lastUpdated stamp.
func WithClock(now func() time.Time) Option {
	return func(p *Plan) {
		if now != nil {
			p.now = now
		}
	}
}

// Compile validates fields and aggregates and returns a plan.
//
// Errors:
//   - A configuration fault for duplicate or empty targets, invalid field
//     types, and aggregates that reference unknown fields or are otherwise
//     malformed. No row is looked at.
func Compile(fields record.Spec, aggregates []aggregate.Spec, opts ...Option) (*Plan, error) {
	if err := fields.Validate(); err != nil {
		return nil, err
	}
	schema := record.SchemaOf(fields)
	if err := aggregate.Validate(schema, aggregates); err != nil {
		return nil, err
	}

	p := &Plan{
		fields:     append(record.Spec(nil), fields...),
		aggregates: append([]aggregate.Spec(nil), aggregates...),
		schema:     schema,
		norm:       normalize.Default,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Fields returns the record spec of the plan.
func (p *Plan) Fields() record.Spec { return append(record.Spec(nil), p.fields...) }

// Aggregates returns the aggregate specs in declared order.
func (p *Plan) Aggregates() []aggregate.Spec {
	return append([]aggregate.Spec(nil), p.aggregates...)
}

// Schema returns the layout of the records the plan produces.
func (p *Plan) Schema() *record.Schema { return p.schema }

// AggregatePrecision returns, per aggregate name, the precision of the field
// the aggregate reads. Counts are whole numbers and never inherit one.
func (p *Plan) AggregatePrecision() map[string]int {
	out := make(map[string]int)
	for _, a := range p.aggregates {
		if a.Kind == aggregate.KindCount || a.Field == "" {
			continue
		}
		if f, ok := p.fields.Field(a.Field); ok && f.Precision != nil {
			out[a.Name] = *f.Precision
		}
	}
	return out
}

// Precision returns the per-field precision declared on the record spec.
func (p *Plan) Precision() map[string]int {
	out := make(map[string]int)
	for _, f := range p.fields {
		if f.Precision != nil {
			out[f.Target] = *f.Precision
		}
	}
	return out
}
