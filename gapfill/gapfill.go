// Package gapfill implements the time-series gap filler (spec §4.13
// step 9): for a time dimension requesting fillMissingDates, it
// enumerates every bucket boundary by granularity across the
// dimension's date range and inserts a zero-valued row for any bucket
// the driver didn't return, carrying forward whatever non-time
// dimensional context distinguishes one result series from another.
package gapfill

import (
	"fmt"
	"sort"
	"time"

	"github.com/semcube/semcube/daterange"
	"github.com/semcube/semcube/query"
)

// Fill post-processes rows for one fillMissingDates time dimension.
// field is the row key holding the (already post-processed, spec
// §4.13 step 8) bucket value as a time.Time; measureFields are the
// row keys to zero-fill on an inserted row; every other key present
// on at least one row is treated as dimensional context and is
// replicated onto inserted rows from whichever existing row shares
// that context's series.
//
// fillValue is the value inserted measures take; spec §4.13 step 9
// defaults it to 0 when the query didn't set fillMissingDatesValue /
// fillMissingValue.
func Fill(rows []map[string]any, td query.TimeDimension, measureFields []string, now time.Time, fillValue any) ([]map[string]any, error) {
	if !td.FillMissingDates {
		return rows, nil
	}
	if td.DateRange == nil {
		return nil, fmt.Errorf("gapfill: %s requests fillMissingDates but has no dateRange", td.Dimension)
	}
	if fillValue == nil {
		fillValue = 0
	}

	start, end, err := resolveRange(*td.DateRange, now)
	if err != nil {
		return nil, err
	}
	granularity := td.Granularity
	if granularity == "" {
		granularity = query.Day
	}
	buckets := enumerateBuckets(start, end, granularity)

	isMeasure := make(map[string]bool, len(measureFields))
	for _, f := range measureFields {
		isMeasure[f] = true
	}

	type series struct {
		order   int
		context map[string]any
		byTime  map[time.Time]map[string]any
	}
	seriesByKey := make(map[string]*series)
	var seriesOrder []*series

	for _, row := range rows {
		t, ok := row[td.Dimension].(time.Time)
		if !ok {
			return nil, fmt.Errorf("gapfill: row missing time.Time at %q", td.Dimension)
		}
		t = truncate(t, granularity)

		ctx := make(map[string]any)
		for k, v := range row {
			if k == td.Dimension || isMeasure[k] {
				continue
			}
			ctx[k] = v
		}
		key := contextKey(ctx)

		s, ok := seriesByKey[key]
		if !ok {
			s = &series{order: len(seriesOrder), context: ctx, byTime: make(map[time.Time]map[string]any)}
			seriesByKey[key] = s
			seriesOrder = append(seriesOrder, s)
		}
		s.byTime[t] = row
	}

	if len(seriesOrder) == 0 {
		// No rows at all: still emit one fully zero-filled series so the
		// caller sees every bucket, matching a single-series query whose
		// filters simply excluded every row.
		s := &series{byTime: make(map[time.Time]map[string]any)}
		seriesOrder = append(seriesOrder, s)
	}

	out := make([]map[string]any, 0, len(buckets)*len(seriesOrder))
	for _, s := range seriesOrder {
		for _, b := range buckets {
			if row, ok := s.byTime[b]; ok {
				out = append(out, row)
				continue
			}
			filled := make(map[string]any, len(s.context)+len(measureFields)+1)
			for k, v := range s.context {
				filled[k] = v
			}
			filled[td.Dimension] = b
			for _, f := range measureFields {
				filled[f] = fillValue
			}
			out = append(out, filled)
		}
	}
	return out, nil
}

// resolveRange mirrors compare.resolvePeriod's relative-XOR-literal
// convention: a DateRangePair whose second element is empty names a
// relative token to resolve against now.
func resolveRange(pair query.DateRangePair, now time.Time) (time.Time, time.Time, error) {
	if pair[1] == "" && pair[0] != "" {
		r, err := daterange.Resolve(pair[0], now)
		return r.Start, r.End, err
	}
	r, err := daterange.ResolvePair("", pair[0], pair[1], now)
	return r.Start, r.End, err
}

// enumerateBuckets lists every granularity-truncated boundary in
// [start, end), inclusive of start's own truncated bucket.
func enumerateBuckets(start, end time.Time, g query.Granularity) []time.Time {
	var out []time.Time
	for t := truncate(start, g); t.Before(end); t = addUnit(t, g) {
		out = append(out, t)
	}
	return out
}

func truncate(t time.Time, g query.Granularity) time.Time {
	t = t.UTC()
	switch g {
	case query.Second:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
	case query.Minute:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC)
	case query.Hour:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC)
	case query.Week:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		wd := int(day.Weekday())
		if wd == 0 {
			wd = 7
		}
		return day.AddDate(0, 0, -(wd - 1))
	case query.Month:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	case query.Quarter:
		q := (int(t.Month()) - 1) / 3
		return time.Date(t.Year(), time.Month(q*3+1), 1, 0, 0, 0, 0, time.UTC)
	case query.Year:
		return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	default: // query.Day
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
}

func addUnit(t time.Time, g query.Granularity) time.Time {
	switch g {
	case query.Second:
		return t.Add(time.Second)
	case query.Minute:
		return t.Add(time.Minute)
	case query.Hour:
		return t.Add(time.Hour)
	case query.Week:
		return t.AddDate(0, 0, 7)
	case query.Month:
		return t.AddDate(0, 1, 0)
	case query.Quarter:
		return t.AddDate(0, 3, 0)
	case query.Year:
		return t.AddDate(1, 0, 0)
	default: // query.Day
		return t.AddDate(0, 0, 1)
	}
}

// contextKey canonicalizes a dimensional-context map into a stable
// string so two rows sharing the same non-time field values land in
// the same series regardless of map iteration order.
func contextKey(ctx map[string]any) string {
	keys := make([]string, 0, len(ctx))
	for k := range ctx {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	key := ""
	for _, k := range keys {
		key += fmt.Sprintf("%s=%v;", k, ctx[k])
	}
	return key
}
