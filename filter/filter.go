// Package filter defines the declarative filter AST shared by cube
// measure definitions (inline measure filters) and semantic queries
// (top-level query filters): a Condition, and the recursive And/Or
// Filter sum type built from it. Splitting this out of package query
// keeps package cube free to use Condition for inline measure filters
// without importing the (much larger) query package, which itself needs
// to import cube to validate field references — see DESIGN.md.
package filter

import (
	"fmt"
	"sort"
)

// Operator enumerates every comparison operator the compiler understands.
type Operator string

const (
	Equals         Operator = "equals"
	NotEquals      Operator = "notEquals"
	Contains       Operator = "contains"
	NotContains    Operator = "notContains"
	StartsWith     Operator = "startsWith"
	NotStartsWith  Operator = "notStartsWith"
	EndsWith       Operator = "endsWith"
	NotEndsWith    Operator = "notEndsWith"
	GT             Operator = "gt"
	GTE            Operator = "gte"
	LT             Operator = "lt"
	LTE            Operator = "lte"
	Set            Operator = "set"
	NotSet         Operator = "notSet"
	InDateRange    Operator = "inDateRange"
	BeforeDate     Operator = "beforeDate"
	AfterDate      Operator = "afterDate"
	ArrayContains  Operator = "arrayContains"
	ArrayOverlaps  Operator = "arrayOverlaps"
	ArrayContained Operator = "arrayContained"
	Between        Operator = "between"
)

// IsArrayOperator reports whether op requires raw column-type metadata to
// build (spec §4.5: array-operator filters are never cached because of
// this).
func (op Operator) IsArrayOperator() bool {
	switch op {
	case ArrayContains, ArrayOverlaps, ArrayContained:
		return true
	default:
		return false
	}
}

// Filter is the recursive filter AST: a leaf Condition, or a logical And
// / Or composed of further Filters.
type Filter interface {
	filterTag()
}

// Condition is a leaf filter: `{ member, operator, values?, dateRange? }`.
type Condition struct {
	Member    string // "Cube.field"
	Operator  Operator
	Values    []any
	DateRange *DateRange // only meaningful for inDateRange/between-style date filters
}

func (Condition) filterTag() {}

// DateRange is a concrete or relative [start,end] pair. Exactly one of
// the two forms is populated: Relative holds a token like "last 7 days"
// to be resolved by package daterange, or Start/End hold already-resolved
// RFC3339 boundaries.
type DateRange struct {
	Relative string
	Start    string
	End      string
}

// IsRelative reports whether this range must still be resolved against a
// reference "now".
func (d DateRange) IsRelative() bool {
	return d.Relative != ""
}

// And is a logical conjunction: every member filter must restrict the
// same rows; per spec §4.7/§9 this CAN be decomposed per source cube
// (propagating a subset is strictly more restrictive, hence safe).
type And struct {
	Filters []Filter
}

func (And) filterTag() {}

// Or is a logical disjunction; per spec §4.7/§9 this CANNOT be safely
// decomposed across cubes without changing row semantics.
type Or struct {
	Filters []Filter
}

func (Or) filterTag() {}

// Cube extracts the "Cube" portion of a "Cube.field" member reference.
func Cube(member string) string {
	for i := 0; i < len(member); i++ {
		if member[i] == '.' {
			return member[:i]
		}
	}
	return ""
}

// Field extracts the "field" portion of a "Cube.field" member reference.
func Field(member string) string {
	for i := 0; i < len(member); i++ {
		if member[i] == '.' {
			return member[i+1:]
		}
	}
	return member
}

// Flatten walks a Filter tree and returns every leaf Condition, depth
// first. It is used wherever the compiler needs "every condition
// anywhere in the query" regardless of and/or structure (e.g. preloading
// the filter-SQL cache, or scanning for conditions on a given cube).
func Flatten(f Filter) []Condition {
	var out []Condition
	var walk func(Filter)
	walk = func(f Filter) {
		switch v := f.(type) {
		case Condition:
			out = append(out, v)
		case And:
			for _, c := range v.Filters {
				walk(c)
			}
		case Or:
			for _, c := range v.Filters {
				walk(c)
			}
		}
	}
	walk(f)
	return out
}

// SingleCube reports the one cube every leaf Condition under f belongs
// to, and false if the conditions span more than one cube (or f is
// empty). Used by the planner to decide whether an Or branch may safely
// propagate into a pre-aggregation CTE (spec §4.7: "an OR is only
// propagated if every branch belongs to the same source cube").
func SingleCube(f Filter) (string, bool) {
	conds := Flatten(f)
	if len(conds) == 0 {
		return "", false
	}
	cube := Cube(conds[0].Member)
	for _, c := range conds[1:] {
		if Cube(c.Member) != cube {
			return "", false
		}
	}
	return cube, true
}

// SortedValueStrings renders Values as a deterministic, sorted string
// slice for cache-key canonicalization (spec §4.3: "values within a
// condition sorted ascending").
func (c Condition) SortedValueStrings() []string {
	out := make([]string, len(c.Values))
	for i, v := range c.Values {
		out[i] = fmt.Sprintf("%v", v)
	}
	sort.Strings(out)
	return out
}

// String renders a debug form of a leaf Condition.
func (c Condition) String() string {
	return fmt.Sprintf("%s %s %v", c.Member, c.Operator, c.Values)
}
