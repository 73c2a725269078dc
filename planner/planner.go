// Package planner builds a QueryPlan from a validated SemanticQuery:
// it chooses a primary cube, resolves join paths between referenced
// cubes, and decides which hasMany-joined cubes need a pre-aggregation
// CTE to avoid fan-out (spec §4.6/§4.7).
//
// File organization, mirroring the teacher's datalog/planner split:
//   - planner.go: Planner struct and Plan() entry point
//   - path.go: findPath BFS and canReachAll connectivity check
//   - primary.go: primary-cube selection
//   - cte.go: pre-aggregation CTE construction and propagating-filter
//     extraction
package planner

import (
	"sort"

	"github.com/semcube/semcube/cube"
	"github.com/semcube/semcube/errs"
	"github.com/semcube/semcube/filter"
	"github.com/semcube/semcube/query"
)

// Planner turns a validated query into a QueryPlan against a registry.
type Planner struct {
	registry *cube.Registry
}

// New creates a Planner bound to a registry.
func New(registry *cube.Registry) *Planner {
	return &Planner{registry: registry}
}

// JoinType mirrors the SQL join keyword a QueryPlan join entry emits.
type JoinType string

const (
	InnerJoin JoinType = "INNER"
	LeftJoin  JoinType = "LEFT"
)

// JoinEntry is one step of the resolved join plan: either a direct
// cube-to-cube join, or one leg of an expanded belongsToMany (in which
// case JunctionTable is set and Cube is the junction table's own
// synthetic alias).
type JoinEntry struct {
	Cube          string // target cube name (or junction alias for a junction leg)
	Alias         string
	JoinType      JoinType
	JoinCondition []cube.JoinCondition
	JunctionTable *cube.Through // set only for the primary->junction leg
}

// JoinKey pairs a CTE's target cube's own join-key column with the
// outer-query column it must match, spec §4.7's preAggregationCTEs
// entry shape.
type JoinKey struct {
	SourceColumn string
	TargetColumn string
}

// PropagatingFilter is a filter from another cube that restricts rows
// of a pre-aggregation CTE through a hasMany edge into it (spec §4.7).
type PropagatingFilter struct {
	SourceCube        string
	Filters           []filter.Condition
	JoinConditions    []cube.JoinCondition
	PreBuiltFilterSQL string
}

// CTEPlan is one pre-aggregation CTE the plan requires.
type CTEPlan struct {
	Cube               string
	CTEAlias           string
	JoinKeys           []JoinKey
	Measures           []string // fully-qualified "Cube.measure" refs, calculated deps expanded
	PropagatingFilters []PropagatingFilter
}

// QueryPlan is the planner's output (spec §3 QueryPlan).
type QueryPlan struct {
	PrimaryCube        string
	JoinCubes          []JoinEntry
	PreAggregationCTEs []CTEPlan
}

// Plan builds a QueryPlan for q. The caller is expected to have
// already run query.Validator.Validate; Plan does not re-validate
// member references, only structural join reachability.
func (p *Planner) Plan(q query.SemanticQuery) (*QueryPlan, error) {
	referenced := referencedCubes(q)
	if len(referenced) == 0 {
		return nil, &errs.PlanError{Reason: "query references no cubes"}
	}

	primary, err := p.choosePrimary(q, referenced)
	if err != nil {
		return nil, err
	}

	joinCubes, err := p.buildJoinPlan(primary, referenced)
	if err != nil {
		return nil, err
	}

	ctes, err := p.buildCTEs(primary, q, referenced)
	if err != nil {
		return nil, err
	}

	return &QueryPlan{PrimaryCube: primary, JoinCubes: joinCubes, PreAggregationCTEs: ctes}, nil
}

// referencedCubes returns every cube named in q's SELECT-side fields —
// measures, dimensions, time dimensions — deduplicated and sorted for
// deterministic iteration downstream. Filter-only cube references are
// deliberately excluded: a cube mentioned only inside a filter is
// resolved either as a propagating-filter subquery into whichever CTE
// its hasMany edge targets, or, failing that, folded into the primary
// cube's own WHERE by the CTE/SQL builder — neither case requires it
// to appear in the outer join plan the way a SELECT-side cube does.
func referencedCubes(q query.SemanticQuery) []string {
	seen := make(map[string]bool)
	for _, ref := range q.Measures {
		seen[filter.Cube(ref)] = true
	}
	for _, ref := range q.Dimensions {
		seen[filter.Cube(ref)] = true
	}
	for _, td := range q.TimeDimensions {
		seen[filter.Cube(td.Dimension)] = true
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// dimensionCubeCounts returns, for each cube referenced in q's
// dimensions or time dimensions, how many times it appears.
func dimensionCubeCounts(q query.SemanticQuery) map[string]int {
	counts := make(map[string]int)
	for _, ref := range q.Dimensions {
		counts[filter.Cube(ref)]++
	}
	for _, td := range q.TimeDimensions {
		counts[filter.Cube(td.Dimension)]++
	}
	return counts
}

func joinTypeFor(j *cube.Join) JoinType {
	if j.SQLJoinType != "" {
		if JoinType(j.SQLJoinType) == LeftJoin {
			return LeftJoin
		}
		return InnerJoin
	}
	switch j.Relationship {
	case cube.BelongsTo:
		return InnerJoin
	default:
		return LeftJoin
	}
}
