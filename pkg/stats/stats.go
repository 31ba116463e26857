// Package stats derives corpus-wide summaries from catalog records.
package stats

import (
	"math"
	"slices"

	"github.com/papercomputeco/sleeves/pkg/catalog"
)

// UnknownCategory is the bucket for records with no category value.
const UnknownCategory = "Unknown"

// Numeric names a numeric attribute and how to read it. Value reports false
// for a missing value.
type Numeric struct {
	Name  string
	Value func(catalog.Record) (float64, bool)
}

// Options selects the attributes Compute aggregates.
type Options struct {
	Category func(catalog.Record) string
	Numerics []Numeric
	Flag     func(catalog.Record) bool
	TopN     int
}

// CategoryCount is one bucket of the category distribution.
type CategoryCount struct {
	Name  string
	Count int
}

// NumericSummary aggregates one numeric attribute over the records that
// carry a value for it. Min, Max and Average are nil when Count is zero.
type NumericSummary struct {
	Name    string
	Count   int
	Min     *float64
	Max     *float64
	Average *float64
}

// Summary is the result of Compute.
type Summary struct {
	Total         int
	TopCategories []CategoryCount
	Numerics      []NumericSummary
	FlagCount     int
}

type numericAcc struct {
	count    int
	sum      float64
	min, max float64
}

// Compute walks records once. Category ties keep first-seen order; missing
// numeric values are excluded from every numeric aggregate.
func Compute(records []catalog.Record, opts Options) Summary {
	var (
		order  []string
		counts = make(map[string]int)
		accs   = make([]numericAcc, len(opts.Numerics))
		sum    = Summary{Total: len(records)}
	)

	for _, r := range records {
		if opts.Category != nil {
			c := opts.Category(r)
			if c == "" {
				c = UnknownCategory
			}
			if _, ok := counts[c]; !ok {
				order = append(order, c)
			}
			counts[c]++
		}

		for i, n := range opts.Numerics {
			v, ok := n.Value(r)
			if !ok || math.IsNaN(v) {
				continue
			}
			a := &accs[i]
			if a.count == 0 || v < a.min {
				a.min = v
			}
			if a.count == 0 || v > a.max {
				a.max = v
			}
			a.sum += v
			a.count++
		}

		if opts.Flag != nil && opts.Flag(r) {
			sum.FlagCount++
		}
	}

	top := make([]CategoryCount, len(order))
	for i, c := range order {
		top[i] = CategoryCount{Name: c, Count: counts[c]}
	}
	slices.SortStableFunc(top, func(a, b CategoryCount) int {
		return b.Count - a.Count
	})
	if opts.TopN > 0 && len(top) > opts.TopN {
		top = top[:opts.TopN]
	}
	sum.TopCategories = top

	sum.Numerics = make([]NumericSummary, len(opts.Numerics))
	for i, n := range opts.Numerics {
		a := accs[i]
		ns := NumericSummary{Name: n.Name, Count: a.count}
		if a.count > 0 {
			minV, maxV, avg := a.min, a.max, a.sum/float64(a.count)
			ns.Min, ns.Max, ns.Average = &minV, &maxV, &avg
		}
		sum.Numerics[i] = ns
	}

	return sum
}
