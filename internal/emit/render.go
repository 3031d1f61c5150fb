// Package emit serializes dataset documents to deterministic JSON and writes
// them atomically.
package emit

import (
	"bytes"
	"fmt"
	"math"
	"strconv"

	"github.com/goccy/go-json"
	"gonum.org/v1/gonum/floats/scalar"

	"observatory/internal/aggregate"
	"observatory/internal/dataset"
	"observatory/internal/record"
)

// DefaultPrecision is the number of decimals kept when no precision is set.
const DefaultPrecision = 2

// Options controls number formatting. Row fields and aggregates are keyed
// separately, so a field and an aggregate may share a name.
type Options struct {
	// Default is the decimals kept for numbers without an entry in
	// Precision or Aggregates. Nil means DefaultPrecision.
	Default *int
	// Precision maps a row field to its decimals.
	Precision map[string]int
	// Aggregates maps a kpi or derived entry name to its decimals.
	Aggregates map[string]int
}

func (o Options) fieldPrecision(name string) int {
	return o.lookup(o.Precision, name)
}

func (o Options) aggregatePrecision(name string) int {
	return o.lookup(o.Aggregates, name)
}

func (o Options) lookup(m map[string]int, name string) int {
	if p, ok := m[name]; ok {
		return p
	}
	if o.Default != nil {
		return *o.Default
	}
	return DefaultPrecision
}

// Render returns the JSON bytes of doc: top-level keys metadata, kpi, rows,
// derived in that order, 2-space indent and a trailing newline. Equal
// documents always render to equal bytes.
func Render(doc dataset.Document, opts Options) ([]byte, error) {
	kpi := make(object, 0, len(doc.KPI))
	for _, e := range doc.KPI {
		kpi = append(kpi, field{e.Name, resultNode(e.Result, opts.aggregatePrecision(e.Name))})
	}
	derived := make(object, 0, len(doc.Derived))
	for _, e := range doc.Derived {
		derived = append(derived, field{e.Name, resultNode(e.Result, opts.aggregatePrecision(e.Name))})
	}
	rows := make(array, 0, len(doc.Rows))
	for _, r := range doc.Rows {
		rows = append(rows, recordNode(r, opts))
	}

	m := doc.Metadata
	root := object{
		{"metadata", object{
			{"title", text(m.Title)},
			{"source", text(m.Source)},
			{"lastUpdated", text(m.LastUpdated)},
			{"rowCount", integer(m.RowCount)},
			{"checksum", text(m.Checksum)},
		}},
		{"kpi", kpi},
		{"rows", rows},
		{"derived", derived},
	}

	p := printer{}
	p.write(root, 0)
	if p.err != nil {
		return nil, p.err
	}
	p.buf.WriteByte('\n')
	return p.buf.Bytes(), nil
}

func resultNode(r aggregate.Result, prec int) node {
	switch r.Shape {
	case aggregate.ShapeShare:
		return object{
			{"value", number{r.Share.Value, prec}},
			{"percent", number{r.Share.Percent, prec}},
		}
	case aggregate.ShapeList:
		groups := make(array, 0, len(r.Groups))
		for _, g := range r.Groups {
			o := object{{"key", text(g.Key)}, {"value", number{g.Value, prec}}}
			if g.Percent != nil {
				o = append(o, field{"percent", number{*g.Percent, prec}})
			}
			groups = append(groups, o)
		}
		return groups
	default:
		if r.IsText {
			return text(r.Text)
		}
		return number{r.Number, prec}
	}
}

func recordNode(r record.Record, opts Options) node {
	o := make(object, 0, r.Len())
	r.Fields(func(name string, v any) {
		o = append(o, field{name, valueNode(v, opts.fieldPrecision(name))})
	})
	return o
}

func valueNode(v any, prec int) node {
	switch t := v.(type) {
	case nil:
		return literal("null")
	case string:
		return text(t)
	case float64:
		return number{t, prec}
	case int64:
		return integer(t)
	case int:
		return integer(t)
	default:
		return other{t}
	}
}

type node interface{ isNode() }

type field struct {
	key string
	val node
}

type number struct {
	v    float64
	prec int
}

type other struct{ v any }

type object []field

type array []node

type text string

type integer int64

type literal string

func (object) isNode()  {}
func (array) isNode()   {}
func (text) isNode()    {}
func (integer) isNode() {}
func (literal) isNode() {}
func (number) isNode()  {}
func (other) isNode()   {}

type printer struct {
	buf bytes.Buffer
	err error
}

func (p *printer) newline(level int) {
	p.buf.WriteByte('\n')
	for i := 0; i < level; i++ {
		p.buf.WriteString("  ")
	}
}

func (p *printer) write(n node, level int) {
	if p.err != nil {
		return
	}
	switch t := n.(type) {
	case object:
		if len(t) == 0 {
			p.buf.WriteString("{}")
			return
		}
		p.buf.WriteByte('{')
		for i, f := range t {
			if i > 0 {
				p.buf.WriteByte(',')
			}
			p.newline(level + 1)
			p.marshal(f.key)
			p.buf.WriteString(": ")
			p.write(f.val, level+1)
		}
		p.newline(level)
		p.buf.WriteByte('}')
	case array:
		if len(t) == 0 {
			p.buf.WriteString("[]")
			return
		}
		p.buf.WriteByte('[')
		for i, v := range t {
			if i > 0 {
				p.buf.WriteByte(',')
			}
			p.newline(level + 1)
			p.write(v, level+1)
		}
		p.newline(level)
		p.buf.WriteByte(']')
	case text:
		p.marshal(string(t))
	case integer:
		p.buf.WriteString(strconv.FormatInt(int64(t), 10))
	case literal:
		p.buf.WriteString(string(t))
	case number:
		s, err := FormatNumber(t.v, t.prec)
		if err != nil {
			p.err = err
			return
		}
		p.buf.WriteString(s)
	case other:
		p.marshal(t.v)
	}
}

func (p *printer) marshal(v any) {
	b, err := json.MarshalNoEscape(v)
	if err != nil {
		p.err = err
		return
	}
	p.buf.Write(b)
}

// FormatNumber rounds v half away from zero to prec decimals and formats it
// without trailing zeros, so 2100.0 is "2100" and 12.3456 at 2 is "12.35".
// Negative zero is "0".
func FormatNumber(v float64, prec int) (string, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "", fmt.Errorf("cannot encode non-finite number %v", v)
	}
	return strconv.FormatFloat(scalar.Round(v, prec), 'f', -1, 64), nil
}
