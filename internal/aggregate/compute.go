package aggregate

import (
	"fmt"
	"sort"

	"github.com/montanaflynn/stats"

	"observatory/internal/fault"
	"observatory/internal/normalize"
	"observatory/internal/record"
)

// Aggregator computes aggregates, reading field values through Norm.
// Records are already typed, so the coercion only matters when a spec points
// a numeric aggregate at a string field.
type Aggregator struct {
	Norm normalize.Normalizer
}

// Compute uses the default normalizer.
func Compute(records []record.Record, spec Spec) (Result, error) {
	return Aggregator{Norm: normalize.Default}.Compute(records, spec)
}

// Compute evaluates spec over records. Every kind is empty-safe: with no
// records, numeric scalars are 0, lists are empty and topKey is "".
//
// Errors:
//   - A configuration fault when spec is invalid or references a field the
//     records do not carry. Plans validate specs up front, so this only
//     fires for direct callers.
func (a Aggregator) Compute(records []record.Record, spec Spec) (Result, error) {
	if err := a.check(records, spec); err != nil {
		return Result{}, err
	}

	switch spec.Kind {
	case KindSum:
		return scalar(a.sum(records, spec.Field)), nil

	case KindAvg:
		return scalar(emptySafe(stats.Mean, a.values(records, spec.Field))), nil

	case KindMin:
		return scalar(emptySafe(stats.Min, a.values(records, spec.Field))), nil

	case KindMax:
		return scalar(emptySafe(stats.Max, a.values(records, spec.Field))), nil

	case KindMedian:
		return scalar(emptySafe(stats.Median, a.values(records, spec.Field))), nil

	case KindCount:
		return scalar(float64(a.count(records, spec.Field))), nil

	case KindGroupSum:
		return Result{Shape: ShapeList, Groups: a.groupSum(records, spec)}, nil

	case KindTopN:
		groups := a.groupSum(records, spec)
		if len(groups) > spec.N {
			groups = groups[:spec.N]
		}
		return Result{Shape: ShapeList, Groups: groups}, nil

	case KindTopKey:
		groups := a.groupSum(records, spec)
		r := Result{Shape: ShapeScalar, IsText: true}
		if len(groups) > 0 {
			r.Text = groups[0].Key
		}
		return r, nil

	case KindPctOfTotal:
		return a.pctOfTotal(records, spec), nil

	default:
		return Result{}, fault.Configf(spec.Name, "invalid aggregate kind")
	}
}

// check validates spec against the schema of the records. With no records
// there is no schema to check against and the spec is taken as valid.
func (a Aggregator) check(records []record.Record, spec Spec) error {
	if len(records) == 0 {
		if !spec.Kind.IsValid() {
			return fault.Configf(spec.Name, "invalid aggregate kind")
		}
		if spec.Kind == KindTopN && spec.N <= 0 {
			return fault.Configf(spec.Name, "topN requires n > 0")
		}
		return nil
	}
	if err := validateOne(records[0].Schema(), spec); err != nil {
		return fault.Config(spec.Name, err)
	}
	return nil
}

func (a Aggregator) values(records []record.Record, field string) []float64 {
	out := make([]float64, len(records))
	for i, r := range records {
		out[i] = a.Norm.Number(r.Value(field))
	}
	return out
}

func (a Aggregator) sum(records []record.Record, field string) float64 {
	total := 0.0
	for _, r := range records {
		total += a.Norm.Number(r.Value(field))
	}
	return total
}

// count counts records. With a string field, records whose value is blank
// are skipped.
func (a Aggregator) count(records []record.Record, field string) int {
	if field == "" {
		return len(records)
	}
	n := 0
	for _, r := range records {
		v := r.Value(field)
		if s, ok := v.(string); ok && a.Norm.Text(s) == "" {
			continue
		}
		n++
	}
	return n
}

// emptySafe applies f, mapping the library's empty-input error to 0.
func emptySafe(f func(stats.Float64Data) (float64, error), data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	v, err := f(data)
	if err != nil {
		return 0
	}
	return v
}

type bucket struct {
	label string
	sum   float64
}

// groupSum sums spec.Field per normalized spec.GroupBy value. The label of a
// group is the first spelling seen. Order: by sum (descending unless
// spec.SortDescending is false), ties by first-seen order.
func (a Aggregator) groupSum(records []record.Record, spec Spec) []Group {
	order := make(map[string]int)
	var buckets []bucket

	for _, r := range records {
		raw := r.Value(spec.GroupBy)
		key := a.Norm.GroupKey(raw)
		i, ok := order[key]
		if !ok {
			i = len(buckets)
			order[key] = i
			buckets = append(buckets, bucket{label: a.Norm.Text(raw)})
		}
		buckets[i].sum += a.Norm.Number(r.Value(spec.Field))
	}

	desc := spec.Descending()
	sort.SliceStable(buckets, func(i, j int) bool {
		if desc {
			return buckets[i].sum > buckets[j].sum
		}
		return buckets[i].sum < buckets[j].sum
	})

	out := make([]Group, len(buckets))
	for i, b := range buckets {
		out[i] = Group{Key: b.label, Value: b.sum}
	}
	return out
}

// pctOfTotal divides a subset sum by the total of spec.Field. A zero total
// yields percent 0.
func (a Aggregator) pctOfTotal(records []record.Record, spec Spec) Result {
	total := a.sum(records, spec.Field)
	pct := func(v float64) float64 {
		if total == 0 {
			return 0
		}
		return v / total * 100
	}

	switch {
	case spec.GroupBy == "":
		return Result{Shape: ShapeShare, Share: Share{Value: total, Percent: pct(total)}}

	case spec.Key == "":
		groups := a.groupSum(records, spec)
		for i := range groups {
			p := pct(groups[i].Value)
			groups[i].Percent = &p
		}
		return Result{Shape: ShapeList, Groups: groups}

	default:
		want := a.Norm.GroupKey(spec.Key)
		subset := 0.0
		for _, r := range records {
			if a.Norm.GroupKey(r.Value(spec.GroupBy)) == want {
				subset += a.Norm.Number(r.Value(spec.Field))
			}
		}
		return Result{Shape: ShapeShare, Share: Share{Value: subset, Percent: pct(subset)}}
	}
}

// ComputeAll evaluates every spec in order and fails on the first error or on
// a non-finite result.
func (a Aggregator) ComputeAll(records []record.Record, specs []Spec) ([]Result, error) {
	out := make([]Result, len(specs))
	for i, s := range specs {
		r, err := a.Compute(records, s)
		if err != nil {
			return nil, err
		}
		if !r.Finite() {
			return nil, fault.Aggregate(s.Name, fmt.Errorf("result is not finite"))
		}
		out[i] = r
	}
	return out, nil
}
