// Package daterange resolves relative date-range tokens ("last 7
// days", "this month", …) into concrete UTC [start, end) boundaries,
// and computes the immediately-prior period of the same length (spec
// §4 Date-Range Parser).
//
// No repo in the retrieval pack implements this token grammar (the
// nearest analog, dolthub's sql/parse/dateparse, was filtered down to
// test-only files with no real source to port — see DESIGN.md), so
// this is grounded purely on spec semantics using stdlib time.
package daterange

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Range is a concrete, resolved [Start, End] boundary pair in UTC.
// End is exclusive of the next bucket per the "day" the range names —
// e.g. "today" yields [00:00:00 today, 00:00:00 tomorrow).
type Range struct {
	Start time.Time
	End   time.Time
}

// Duration is the span End-Start.
func (r Range) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Prior returns the period of identical length immediately preceding
// r, used for compareDateRange's "prior period of same length" rule
// (spec §4 Date-Range Parser) when a host wants a single default
// comparison period rather than an explicit list.
func (r Range) Prior() Range {
	d := r.Duration()
	return Range{Start: r.Start.Add(-d), End: r.Start}
}

// Resolve turns a relative token into a concrete Range anchored at
// now (always normalized to UTC first, per spec "resolves... into
// concrete UTC [start,end] pairs").
func Resolve(token string, now time.Time) (Range, error) {
	now = now.UTC()
	token = strings.ToLower(strings.TrimSpace(token))

	today := truncateToDay(now)
	tomorrow := today.AddDate(0, 0, 1)

	switch token {
	case "today":
		return Range{today, tomorrow}, nil
	case "yesterday":
		return Range{today.AddDate(0, 0, -1), today}, nil
	case "this week":
		start := startOfWeek(today)
		return Range{start, start.AddDate(0, 0, 7)}, nil
	case "last week":
		start := startOfWeek(today).AddDate(0, 0, -7)
		return Range{start, start.AddDate(0, 0, 7)}, nil
	case "this month":
		start := startOfMonth(today)
		return Range{start, start.AddDate(0, 1, 0)}, nil
	case "last month":
		start := startOfMonth(today).AddDate(0, -1, 0)
		return Range{start, start.AddDate(0, 1, 0)}, nil
	case "this quarter":
		start := startOfQuarter(today)
		return Range{start, start.AddDate(0, 3, 0)}, nil
	case "last quarter":
		start := startOfQuarter(today).AddDate(0, -3, 0)
		return Range{start, start.AddDate(0, 3, 0)}, nil
	case "this year":
		start := startOfYear(today)
		return Range{start, start.AddDate(1, 0, 0)}, nil
	case "last year":
		start := startOfYear(today).AddDate(-1, 0, 0)
		return Range{start, start.AddDate(1, 0, 0)}, nil
	}

	if n, unit, ok := parseLastN(token); ok {
		switch unit {
		case "day", "days":
			return Range{today.AddDate(0, 0, -n), tomorrow}, nil
		case "week", "weeks":
			return Range{today.AddDate(0, 0, -7*n), tomorrow}, nil
		case "month", "months":
			return Range{today.AddDate(0, -n, 0), tomorrow}, nil
		case "quarter", "quarters":
			return Range{today.AddDate(0, -3*n, 0), tomorrow}, nil
		case "year", "years":
			return Range{today.AddDate(-n, 0, 0), tomorrow}, nil
		}
	}

	return Range{}, fmt.Errorf("daterange: unrecognized relative token %q", token)
}

// parseLastN parses tokens of the form "last N <unit>", e.g. "last 7
// days" or "last 1 month".
func parseLastN(token string) (n int, unit string, ok bool) {
	fields := strings.Fields(token)
	if len(fields) != 3 || fields[0] != "last" {
		return 0, "", false
	}
	v, err := strconv.Atoi(fields[1])
	if err != nil || v < 0 {
		return 0, "", false
	}
	return v, fields[2], true
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// startOfWeek returns the Monday of t's week, matching the ISO-week
// convention the Postgres/SQLite/DuckDB dialect adapters' week
// truncation also uses (MySQL's adapter adjusts to match it).
func startOfWeek(t time.Time) time.Time {
	wd := int(t.Weekday())
	if wd == 0 {
		wd = 7 // Sunday -> 7, so Monday is always "go back wd-1 days"
	}
	return t.AddDate(0, 0, -(wd - 1))
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func startOfQuarter(t time.Time) time.Time {
	q := (int(t.Month()) - 1) / 3
	return time.Date(t.Year(), time.Month(q*3+1), 1, 0, 0, 0, 0, time.UTC)
}

func startOfYear(t time.Time) time.Time {
	return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
}

// ParseLiteral parses an already-concrete boundary ("2024-01-01" or a
// full RFC3339 timestamp) into UTC, for the non-relative half of
// filter.DateRange / query.DateRangePair.
func ParseLiteral(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("daterange: cannot parse date literal %q", s)
}

// ResolvePair resolves a filter.DateRange (relative token XOR literal
// start/end) into a concrete Range.
func ResolvePair(relative, start, end string, now time.Time) (Range, error) {
	if relative != "" {
		return Resolve(relative, now)
	}
	startT, err := ParseLiteral(start)
	if err != nil {
		return Range{}, err
	}
	endT, err := ParseLiteral(end)
	if err != nil {
		return Range{}, err
	}
	return Range{Start: startT, End: endT}, nil
}
