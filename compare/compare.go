// Package compare implements the comparison expander (spec §4.12):
// for a query whose time dimension carries a compareDateRange, it
// resolves each period, clones the query once per period, runs the
// clones concurrently, and merges the results back into one ordered
// row set tagged with periodIndex/periodLabel.
//
// The concurrent-fan-out shape (errgroup, index-addressed
// result slice rather than an unordered channel since the period
// count is known up front) is grounded on sqldef's
// database.ConcurrentMapFuncWithError.
package compare

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/semcube/semcube/daterange"
	"github.com/semcube/semcube/filter"
	"github.com/semcube/semcube/query"
)

// Period is one resolved compareDateRange entry: periodIndex 0 is
// always the current/first-listed period, 1..N-1 are priors, per
// spec §4.12 step 4.
type Period struct {
	Index int
	Label string
	Range daterange.Range
}

// Applicable reports whether q has a time dimension carrying a
// compareDateRange. Only the first such time dimension is expanded;
// a query comparing more than one time dimension independently is
// out of scope, matching every worked example in spec §8 which
// carries exactly one.
func Applicable(q query.SemanticQuery) bool {
	_, ok := compareDimensionIndex(q)
	return ok
}

func compareDimensionIndex(q query.SemanticQuery) (int, bool) {
	for i, td := range q.TimeDimensions {
		if len(td.CompareDateRange) > 0 {
			return i, true
		}
	}
	return 0, false
}

// Expand resolves q's compareDateRange into N cloned sub-queries, one
// per period, each carrying a scalar dateRange in place of
// compareDateRange and defaulting granularity to day (spec §4.12
// steps 1-2). ok is false when q carries no compareDateRange, in
// which case queries/periods are nil and the caller should run q
// unmodified.
func Expand(q query.SemanticQuery, now time.Time) (queries []query.SemanticQuery, periods []Period, ok bool, err error) {
	tdIndex, found := compareDimensionIndex(q)
	if !found {
		return nil, nil, false, nil
	}

	td := q.TimeDimensions[tdIndex]
	queries = make([]query.SemanticQuery, len(td.CompareDateRange))
	periods = make([]Period, len(td.CompareDateRange))

	for i, pair := range td.CompareDateRange {
		r, label, err := resolvePeriod(pair, now)
		if err != nil {
			return nil, nil, false, fmt.Errorf("compare: period %d: %w", i, err)
		}
		periods[i] = Period{Index: i, Label: label, Range: r}

		cloned := cloneQuery(q)
		scalar := td
		rangePair := query.DateRangePair{r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339)}
		scalar.DateRange = &rangePair
		scalar.CompareDateRange = nil
		if scalar.Granularity == "" {
			scalar.Granularity = query.Day
		}
		cloned.TimeDimensions[tdIndex] = scalar
		queries[i] = cloned
	}

	return queries, periods, true, nil
}

// resolvePeriod resolves one compareDateRange entry. A pair whose
// second element is empty names a relative token in the first
// ("last 7 days"); otherwise both elements are literal boundaries,
// the same relative-XOR-literal convention filter.DateRange uses for
// a single-range filter.
func resolvePeriod(pair query.DateRangePair, now time.Time) (daterange.Range, string, error) {
	if pair[1] == "" && pair[0] != "" {
		r, err := daterange.Resolve(pair[0], now)
		return r, pair[0], err
	}
	r, err := daterange.ResolvePair("", pair[0], pair[1], now)
	if err != nil {
		return daterange.Range{}, "", err
	}
	return r, fmt.Sprintf("%s to %s", r.Start.Format("2006-01-02"), r.End.Format("2006-01-02")), nil
}

// cloneQuery shallow-copies q's slice fields so mutating one period's
// clone (its TimeDimensions entry, specifically) never aliases
// another clone or the original query.
func cloneQuery(q query.SemanticQuery) query.SemanticQuery {
	out := q
	out.Measures = append([]string(nil), q.Measures...)
	out.Dimensions = append([]string(nil), q.Dimensions...)
	out.TimeDimensions = append([]query.TimeDimension(nil), q.TimeDimensions...)
	out.Filters = append([]filter.Filter(nil), q.Filters...)
	out.Order = append([]query.Order(nil), q.Order...)
	return out
}

// Run executes every cloned sub-query concurrently via exec, bounded
// only by errgroup's shared context cancellation: the first failing
// sub-query cancels the rest and Run returns that error (spec §4.12
// step 3 "runs all sub-queries concurrently"; spec §5 notes the core
// never returns partial results on error).
func Run(ctx context.Context, queries []query.SemanticQuery, exec func(ctx context.Context, index int, q query.SemanticQuery) ([]map[string]any, error)) ([][]map[string]any, error) {
	results := make([][]map[string]any, len(queries))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, sq := range queries {
		i, sq := i, sq
		eg.Go(func() error {
			rows, err := exec(egCtx, i, sq)
			if err != nil {
				return err
			}
			results[i] = rows
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Merge combines each period's already post-processed row set into
// one ordered slice: every row is copied (spec §3 "comparison-merged
// rows are newly allocated") and gains "periodIndex"/"periodLabel",
// then the whole set is sorted by (periodIndex, timeField) per spec
// §4.12 step 4 / §5's merge-ordering guarantee.
func Merge(periods []Period, timeField string, perPeriod [][]map[string]any) []map[string]any {
	var merged []map[string]any
	for _, p := range periods {
		for _, row := range perPeriod[p.Index] {
			out := make(map[string]any, len(row)+2)
			for k, v := range row {
				out[k] = v
			}
			out["periodIndex"] = p.Index
			out["periodLabel"] = p.Label
			merged = append(merged, out)
		}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		pi, _ := merged[i]["periodIndex"].(int)
		pj, _ := merged[j]["periodIndex"].(int)
		if pi != pj {
			return pi < pj
		}
		return compareValues(merged[i][timeField], merged[j][timeField]) < 0
	})
	return merged
}

// compareValues orders two time-dimension result values. Dialect post-
// processing (spec §4.13 step 8) yields either a time.Time or a
// string, never a number, so those are the only two cases handled
// directly; anything else falls back to its formatted text.
func compareValues(a, b any) int {
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			switch {
			case at.Before(bt):
				return -1
			case at.After(bt):
				return 1
			default:
				return 0
			}
		}
	}
	as, bs := fmt.Sprint(a), fmt.Sprint(b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}
