package eval

import (
	"fmt"

	"github.com/cozodb/cozo-go/value"
)

// meetCombiner folds a newly derived value into the lattice value
// already on file for a group, reporting whether the result actually
// changed (spec.md §3's "meet-aggregate rules replace the value via an
// idempotent combiner"). Only monotone, idempotent combiners are safe
// to run inside a fixed point; min/max qualify, sum/count/list do not
// (a running sum is neither idempotent nor a lattice meet), so those
// live in normalAggrs instead.
type meetCombiner func(old, new value.Value) (value.Value, bool)

var meetAggrs = map[string]meetCombiner{
	"min": func(old, new value.Value) (value.Value, bool) {
		if value.Compare(new, old) < 0 {
			return new, true
		}
		return old, false
	},
	"max": func(old, new value.Value) (value.Value, bool) {
		if value.Compare(new, old) > 0 {
			return new, true
		}
		return old, false
	},
}

// normalAggregator finalizes every raw value seen for one group's
// aggregated column, post-hoc, over a finite relation (spec.md §3's
// "normal" aggregation kind) -- these run once at stratum end, not
// incrementally inside the fixed point.
type normalAggregator func(vals []value.Value) (value.Value, error)

var normalAggrs = map[string]normalAggregator{
	"count": func(vals []value.Value) (value.Value, error) {
		return value.Int(int64(len(vals))), nil
	},
	"sum": func(vals []value.Value) (value.Value, error) {
		var total float64
		allInt := true
		var intTotal int64
		for _, v := range vals {
			n, ok := v.AsNumber()
			if !ok {
				return value.Value{}, fmt.Errorf("eval: TypeError: sum() over non-numeric value %v", v)
			}
			total += n
			if i, ok := v.AsInt(); ok {
				intTotal += i
			} else {
				allInt = false
			}
		}
		if allInt {
			return value.Int(intTotal), nil
		}
		return value.Float(total), nil
	},
	"mean": func(vals []value.Value) (value.Value, error) {
		if len(vals) == 0 {
			return value.Float(0), nil
		}
		var total float64
		for _, v := range vals {
			n, ok := v.AsNumber()
			if !ok {
				return value.Value{}, fmt.Errorf("eval: TypeError: mean() over non-numeric value %v", v)
			}
			total += n
		}
		return value.Float(total / float64(len(vals))), nil
	},
	"list": func(vals []value.Value) (value.Value, error) {
		return value.List(vals), nil
	},
	"set": func(vals []value.Value) (value.Value, error) {
		return value.Set(vals), nil
	},
	"count_unique": func(vals []value.Value) (value.Value, error) {
		uniq, _ := value.Set(vals).AsSet()
		return value.Int(int64(len(uniq))), nil
	},
}
