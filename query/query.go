// Package query defines the SemanticQuery input language (spec §3) and
// its structural Validator (spec §4.2). SemanticQuery, TimeDimension
// and Order are plain data; filter.Filter/filter.Condition (which the
// package re-exports via type aliases for caller convenience) carry the
// recursive and/or filter tree so that both cube and query can share
// one definition without an import cycle.
package query

import "github.com/semcube/semcube/filter"

// Filter, Condition, And, Or, Operator, DateRange are the filter-tree
// primitives shared with the cube package's inline measure filters.
// Aliased here so callers of this package don't need a second import.
type (
	Filter    = filter.Filter
	Condition = filter.Condition
	And       = filter.And
	Or        = filter.Or
	Operator  = filter.Operator
	DateRange = filter.DateRange
)

// Operator value constants, re-exported from filter for the same
// reason as the type aliases above.
const (
	Equals         = filter.Equals
	NotEquals      = filter.NotEquals
	Contains       = filter.Contains
	NotContains    = filter.NotContains
	StartsWith     = filter.StartsWith
	NotStartsWith  = filter.NotStartsWith
	EndsWith       = filter.EndsWith
	NotEndsWith    = filter.NotEndsWith
	GT             = filter.GT
	GTE            = filter.GTE
	LT             = filter.LT
	LTE            = filter.LTE
	Set            = filter.Set
	NotSet         = filter.NotSet
	InDateRange    = filter.InDateRange
	BeforeDate     = filter.BeforeDate
	AfterDate      = filter.AfterDate
	ArrayContains  = filter.ArrayContains
	ArrayOverlaps  = filter.ArrayOverlaps
	ArrayContained = filter.ArrayContained
	Between        = filter.Between
)

// Granularity is a time-dimension truncation unit (spec §4.7:
// "second | minute | hour | day | week | month | quarter | year").
type Granularity string

const (
	Second  Granularity = "second"
	Minute  Granularity = "minute"
	Hour    Granularity = "hour"
	Day     Granularity = "day"
	Week    Granularity = "week"
	Month   Granularity = "month"
	Quarter Granularity = "quarter"
	Year    Granularity = "year"
)

// DateRangePair is one [start, end] entry, used both for a plain
// dateRange and for each period of a compareDateRange.
type DateRangePair [2]string

// TimeDimension is one entry of SemanticQuery.TimeDimensions.
type TimeDimension struct {
	Dimension        string // "Cube.field"
	Granularity      Granularity
	DateRange        *DateRangePair
	CompareDateRange []DateRangePair
	FillMissingDates bool
	FillMissingValue any
}

// OrderDirection is either ascending or descending.
type OrderDirection string

const (
	Asc  OrderDirection = "asc"
	Desc OrderDirection = "desc"
)

// Order is one `{field: direction}` entry of SemanticQuery.Order,
// kept as a slice of pairs (rather than a map) so that order of
// multiple order-by fields is preserved.
type Order struct {
	Field     string
	Direction OrderDirection
}

// SemanticQuery is the top-level input language (spec §3). Funnel/flow
// extension modes are explicitly out of scope (spec Non-goals) and
// have no field here.
type SemanticQuery struct {
	Measures       []string
	Dimensions     []string
	TimeDimensions []TimeDimension
	Filters        []Filter
	Order          []Order
	Limit          int
	Offset         int
}

// AllMemberRefs returns every "Cube.field" member reference this query
// touches: measures, dimensions, time dimensions, and every leaf
// filter condition's member, in that order.
func (q SemanticQuery) AllMemberRefs() []string {
	refs := make([]string, 0, len(q.Measures)+len(q.Dimensions)+len(q.TimeDimensions))
	refs = append(refs, q.Measures...)
	refs = append(refs, q.Dimensions...)
	for _, td := range q.TimeDimensions {
		refs = append(refs, td.Dimension)
	}
	for _, f := range q.Filters {
		for _, c := range filter.Flatten(f) {
			refs = append(refs, c.Member)
		}
	}
	return refs
}
