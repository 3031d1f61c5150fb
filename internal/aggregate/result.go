package aggregate

import (
	"math"

	"github.com/goccy/go-json"
)

// Group is one entry of a grouped result.
type Group struct {
	Key   string
	Value float64
	// Percent is set for grouped pctOfTotal results only.
	Percent *float64
}

// Share is a subset value and its percentage of the total.
type Share struct {
	Value   float64
	Percent float64
}

// Result is the computed value of one Spec. Exactly one of Number/Text,
// Share or Groups is meaningful, according to Shape.
type Result struct {
	Shape  Shape
	Number float64
	// Text holds string scalars (topKey); IsText marks them.
	Text   string
	IsText bool
	Share  Share
	Groups []Group
}

func scalar(v float64) Result { return Result{Shape: ShapeScalar, Number: v} }

// Finite reports whether every number in r is finite.
func (r Result) Finite() bool {
	ok := func(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
	switch r.Shape {
	case ShapeScalar:
		return r.IsText || ok(r.Number)
	case ShapeShare:
		return ok(r.Share.Value) && ok(r.Share.Percent)
	case ShapeList:
		for _, g := range r.Groups {
			if !ok(g.Value) || (g.Percent != nil && !ok(*g.Percent)) {
				return false
			}
		}
	}
	return true
}

// MarshalJSON writes the natural JSON form of r without precision handling.
// The emitter renders documents itself; this is for logs and tests.
func (r Result) MarshalJSON() ([]byte, error) {
	switch r.Shape {
	case ShapeShare:
		return json.Marshal(struct {
			Value   float64 `json:"value"`
			Percent float64 `json:"percent"`
		}{r.Share.Value, r.Share.Percent})
	case ShapeList:
		type entry struct {
			Key     string   `json:"key"`
			Value   float64  `json:"value"`
			Percent *float64 `json:"percent,omitempty"`
		}
		out := make([]entry, len(r.Groups))
		for i, g := range r.Groups {
			out[i] = entry{Key: g.Key, Value: g.Value, Percent: g.Percent}
		}
		return json.Marshal(out)
	default:
		if r.IsText {
			return json.Marshal(r.Text)
		}
		return json.Marshal(r.Number)
	}
}
