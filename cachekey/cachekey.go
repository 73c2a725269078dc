// Package cachekey implements the deterministic cache-key generator
// (spec §4.3): for every (query, securityContext) pair, Key returns an
// identical string across runs and across process restarts,
// independent of measures/dimensions array order, filter sibling
// order, filter value order, or JSON key insertion order.
//
// The canonicalize-then-hash shape is a direct port of the teacher's
// datalog/planner/cache.go computeKeyWithOptions: build a normalized,
// order-independent representation of the input, marshal it to JSON,
// then hash the bytes. The hash algorithm itself (32-bit FNV-1a,
// offset basis 2166136261, prime 16777619) is mandated exactly by spec
// §4.3, not left to implementer choice, hence the hand-rolled
// accumulator below instead of stdlib hash/fnv — see DESIGN.md.
package cachekey

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/semcube/semcube/filter"
	"github.com/semcube/semcube/query"
)

const (
	fnvOffsetBasis32 uint32 = 2166136261
	fnvPrime32       uint32 = 16777619
)

// fnv1a32 computes the 32-bit FNV-1a hash of data, matching spec
// §4.3's exact constants bit for bit.
func fnv1a32(data []byte) uint32 {
	h := fnvOffsetBasis32
	for _, b := range data {
		h ^= uint32(b)
		h *= fnvPrime32
	}
	return h
}

// hashHex returns the 8-hex-digit FNV-1a hash of a canonicalized JSON
// string, per spec §4.3.
func hashHex(canonical any) (string, error) {
	data, err := json.Marshal(canonical)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%08x", fnv1a32(data)), nil
}

// Config holds the cache-key prefix and any engine-level knobs that
// should participate in the key (e.g. a dialect name, so that the same
// query against two different database engines never collides).
type Config struct {
	Prefix  string
	Dialect string
}

// Key computes "prefix:query:H1[:ctx:H2]" for q, executed under
// security context secCtx, with the given Config. secCtx may be nil,
// in which case the ":ctx:H2" suffix is omitted entirely (spec §4.3's
// bracketed optional segment).
func Key(q query.SemanticQuery, secCtx map[string]any, cfg Config) (string, error) {
	queryHash, err := hashHex(canonicalizeQuery(q, cfg))
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("%s:query:%s", cfg.Prefix, queryHash)
	if secCtx == nil {
		return key, nil
	}

	ctxHash, err := hashHex(canonicalizeValue(secCtx))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:ctx:%s", key, ctxHash), nil
}

// canonicalizeQuery builds an order-independent representation of a
// SemanticQuery: sorted measures/dimensions, filters sorted by
// stringified content (with condition values sorted ascending),
// time dimensions sorted by dimension name (with compareDateRange
// entries sorted by stringified range). encoding/json sorts map keys
// automatically, satisfying the "object keys sorted recursively" rule.
func canonicalizeQuery(q query.SemanticQuery, cfg Config) map[string]any {
	out := map[string]any{}

	if len(q.Measures) > 0 {
		out["measures"] = sortedStrings(q.Measures)
	}
	if len(q.Dimensions) > 0 {
		out["dimensions"] = sortedStrings(q.Dimensions)
	}
	if len(q.TimeDimensions) > 0 {
		out["timeDimensions"] = canonicalizeTimeDimensions(q.TimeDimensions)
	}
	if len(q.Filters) > 0 {
		out["filters"] = canonicalizeFilters(q.Filters)
	}
	if len(q.Order) > 0 {
		orders := make([]map[string]any, len(q.Order))
		for i, o := range q.Order {
			orders[i] = map[string]any{"field": o.Field, "direction": string(o.Direction)}
		}
		out["order"] = orders
	}
	if q.Limit != 0 {
		out["limit"] = q.Limit
	}
	if q.Offset != 0 {
		out["offset"] = q.Offset
	}
	if cfg.Dialect != "" {
		out["dialect"] = cfg.Dialect
	}
	return out
}

func sortedStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}

func canonicalizeTimeDimensions(tds []query.TimeDimension) []map[string]any {
	out := make([]map[string]any, len(tds))
	for i, td := range tds {
		m := map[string]any{"dimension": td.Dimension}
		if td.Granularity != "" {
			m["granularity"] = string(td.Granularity)
		}
		if td.DateRange != nil {
			m["dateRange"] = [2]string{td.DateRange[0], td.DateRange[1]}
		}
		if len(td.CompareDateRange) > 0 {
			ranges := make([]string, len(td.CompareDateRange))
			for j, r := range td.CompareDateRange {
				ranges[j] = fmt.Sprintf("%s|%s", r[0], r[1])
			}
			sort.Strings(ranges)
			m["compareDateRange"] = ranges
		}
		if td.FillMissingDates {
			m["fillMissingDates"] = true
		}
		out[i] = m
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i]["dimension"].(string) < out[j]["dimension"].(string)
	})
	return out
}

// canonicalizeFilters recurses into the filter tree, producing a
// JSON-stable shape, then sorts siblings at each level by their
// stringified content so sibling order never affects the hash.
func canonicalizeFilters(filters []filter.Filter) []map[string]any {
	out := make([]map[string]any, len(filters))
	for i, f := range filters {
		out[i] = canonicalizeFilter(f)
	}
	sortByStringifiedContent(out)
	return out
}

func canonicalizeFilter(f filter.Filter) map[string]any {
	switch tf := f.(type) {
	case filter.Condition:
		m := map[string]any{
			"member":   tf.Member,
			"operator": string(tf.Operator),
		}
		if len(tf.Values) > 0 {
			m["values"] = sortedStrings(tf.SortedValueStrings())
		}
		if tf.DateRange != nil {
			m["dateRange"] = map[string]any{
				"relative": tf.DateRange.Relative,
				"start":    tf.DateRange.Start,
				"end":      tf.DateRange.End,
			}
		}
		return m
	case filter.And:
		return map[string]any{"and": canonicalizeFilters(tf.Filters)}
	case filter.Or:
		return map[string]any{"or": canonicalizeFilters(tf.Filters)}
	default:
		return map[string]any{"unknown": fmt.Sprintf("%v", f)}
	}
}

func sortByStringifiedContent(items []map[string]any) {
	sort.Slice(items, func(i, j int) bool {
		bi, _ := json.Marshal(items[i])
		bj, _ := json.Marshal(items[j])
		return string(bi) < string(bj)
	})
}

// canonicalizeValue recursively sorts a generic value's map keys and,
// where it encounters a []any, leaves element order untouched (the
// security context has no documented reordering rule beyond "object
// keys sorted recursively", which encoding/json already guarantees for
// map[string]any).
func canonicalizeValue(v any) any {
	switch tv := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(tv))
		for k, val := range tv {
			out[k] = canonicalizeValue(val)
		}
		return out
	case []any:
		out := make([]any, len(tv))
		for i, val := range tv {
			out[i] = canonicalizeValue(val)
		}
		return out
	default:
		return v
	}
}
