// Package aggregate computes the KPI scalars and chart series of a dataset
// from its typed records.
package aggregate

import (
	"fmt"
	"strings"

	"hermannm.dev/enumnames"
	"hermannm.dev/wrap"

	"observatory/internal/fault"
	"observatory/internal/record"
)

type Kind int8

const (
	KindSum Kind = iota + 1
	KindAvg
	KindCount
	KindMin
	KindMax
	KindMedian
	KindGroupSum
	KindTopN
	KindPctOfTotal
	// KindTopKey yields the label of the largest group, e.g. the region with
	// the most loss.
	KindTopKey
)

const invalidKindName = "INVALID_AGGREGATE_KIND"

var kindNames = enumnames.NewMap(map[Kind]string{
	KindSum:        "sum",
	KindAvg:        "avg",
	KindCount:      "count",
	KindMin:        "min",
	KindMax:        "max",
	KindMedian:     "median",
	KindGroupSum:   "groupSum",
	KindTopN:       "topN",
	KindPctOfTotal: "pctOfTotal",
	KindTopKey:     "topKey",
})

func (kind Kind) IsValid() bool {
	return kind.String() != invalidKindName
}

func (kind Kind) String() string {
	return kindNames.GetNameOrFallback(kind, invalidKindName)
}

func (kind Kind) MarshalJSON() ([]byte, error) {
	return kindNames.MarshalToNameJSON(kind)
}

func (kind *Kind) UnmarshalJSON(bytes []byte) error {
	return kindNames.UnmarshalFromNameJSON(bytes, kind)
}

func (kind Kind) grouped() bool {
	return kind == KindGroupSum || kind == KindTopN || kind == KindTopKey
}

// Shape is where a result lands in the output document.
type Shape int8

const (
	// ShapeScalar results go under "kpi".
	ShapeScalar Shape = iota + 1
	// ShapeShare results ({value, percent}) also go under "kpi".
	ShapeShare
	// ShapeList results go under "derived".
	ShapeList
)

// Spec declares one named aggregate.
type Spec struct {
	Name  string `json:"name"`
	Kind  Kind   `json:"kind"`
	Field string `json:"field,omitempty"`

	// GroupBy is the grouping field for groupSum, topN and topKey, and the
	// subset field for pctOfTotal.
	GroupBy string `json:"groupBy,omitempty"`

	// Key selects the pctOfTotal subset (records whose GroupBy equals Key).
	Key string `json:"key,omitempty"`

	// N is the number of entries kept by topN.
	N int `json:"n,omitempty"`

	// SortDescending orders grouped results. Nil means descending.
	SortDescending *bool `json:"sortDescending,omitempty"`
}

// Descending reports the effective sort direction.
func (s Spec) Descending() bool {
	return s.SortDescending == nil || *s.SortDescending
}

// Shape reports whether the result is a scalar, a share or a list.
func (s Spec) Shape() Shape {
	switch s.Kind {
	case KindGroupSum, KindTopN:
		return ShapeList
	case KindPctOfTotal:
		if s.GroupBy != "" && s.Key == "" {
			return ShapeList
		}
		return ShapeShare
	default:
		return ShapeScalar
	}
}

// Validate checks specs against the dataset schema. It runs when the dataset
// plan is compiled, before any row is read, so a typo in a field name fails
// the run instead of producing an empty chart.
func Validate(schema *record.Schema, specs []Spec) error {
	var errs []error
	names := make(map[string]struct{}, len(specs))

	for i, s := range specs {
		label := s.Name
		if strings.TrimSpace(label) == "" {
			errs = append(errs, fmt.Errorf("aggregates[%d]: name is empty", i))
			label = fmt.Sprintf("aggregates[%d]", i)
		} else if _, dup := names[s.Name]; dup {
			errs = append(errs, fmt.Errorf("aggregate %q: duplicate name", s.Name))
		}
		names[s.Name] = struct{}{}

		if err := validateOne(schema, s); err != nil {
			errs = append(errs, wrap.Errorf(err, "aggregate %q", label))
		}
	}

	if len(errs) > 0 {
		return fault.Config("aggregates", wrap.Errors("invalid aggregate specs", errs...))
	}
	return nil
}

func validateOne(schema *record.Schema, s Spec) error {
	if !s.Kind.IsValid() {
		return fmt.Errorf("invalid kind")
	}

	if s.Field == "" {
		if s.Kind != KindCount {
			return fmt.Errorf("kind %s requires field", s.Kind)
		}
	} else if !schema.Has(s.Field) {
		return fmt.Errorf("unknown field %q", s.Field)
	}

	if s.Kind.grouped() && s.GroupBy == "" {
		return fmt.Errorf("kind %s requires groupBy", s.Kind)
	}
	if s.GroupBy != "" && !schema.Has(s.GroupBy) {
		return fmt.Errorf("unknown groupBy field %q", s.GroupBy)
	}
	if s.Key != "" && s.GroupBy == "" {
		return fmt.Errorf("key requires groupBy")
	}
	if s.Kind == KindTopN && s.N <= 0 {
		return fmt.Errorf("topN requires n > 0")
	}
	return nil
}
