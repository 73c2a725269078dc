// Package cube implements the cube registry: the set of cube
// definitions a semantic query compiles against. A Cube binds one
// logical table (plus local joins) to measures, dimensions, and joins to
// other cubes, with a security-scoped base query.
//
// File organization:
//   - cube.go: Cube, BaseQueryDefinition, QueryContext, Join
//   - measure.go: Measure, MeasureKind, WindowConfig, calculated-measure
//     template parsing
//   - dimension.go: Dimension, DimensionKind
//   - registry.go: Registry, registration validation, metadata memoization
//   - metadata.go: CubeMetadata and friends, the §6 read-only surface
package cube

import (
	"context"

	"github.com/semcube/semcube/expr"
	"github.com/semcube/semcube/filtercache"
)

// QueryContext is threaded through every cube's SQL function and every
// measure/dimension SQL function. It is built fresh per execution and
// discarded at the end of it (spec §3 Ownership & lifecycle) — in
// particular FilterCache must never be shared across two executions.
type QueryContext struct {
	Ctx      context.Context
	DB       string
	Schema   string
	Security map[string]any

	// FilterCache is non-nil only while an execution is in flight; the
	// executor sets it before planning/assembly and discards the
	// QueryContext afterward.
	FilterCache *filtercache.Cache
}

// JoinKind mirrors the SQL join keyword an intra-cube join in a
// BaseQueryDefinition should emit.
type JoinKind string

const (
	InnerJoin JoinKind = "INNER"
	LeftJoin  JoinKind = "LEFT"
)

// IntraJoin is a join baked directly into a cube's own base query (as
// opposed to a Join to another cube, which the planner walks). Cubes use
// this for joining in lookup tables their measures/dimensions need but
// that are never addressed directly by a semantic query.
type IntraJoin struct {
	Table expr.Table
	On    expr.Expr
	Kind  JoinKind
}

// BaseQueryDefinition is what a cube's SQL function yields: the base
// table, an optional security predicate, and any intra-cube joins. The
// security predicate is the multi-tenant isolation boundary (spec §3:
// "for every cube reachable in a query, where should restrict rows to
// the caller's tenant").
type BaseQueryDefinition struct {
	From  expr.Table
	Where expr.Expr // nil is legal but triggers a dev-mode warning upstream
	Joins []IntraJoin
}

// SQLFn produces a cube's BaseQueryDefinition for a given execution
// context. It is a function (not a static value) because the security
// predicate generally depends on QueryContext.Security.
type SQLFn func(ctx *QueryContext) (BaseQueryDefinition, error)

// Relationship enumerates the four join relationship kinds spec §3
// defines on JoinDef.
type Relationship string

const (
	BelongsTo     Relationship = "belongsTo"
	HasOne        Relationship = "hasOne"
	HasMany       Relationship = "hasMany"
	BelongsToMany Relationship = "belongsToMany"
)

// JoinCondition is one `{source, target, as?}` pair from a JoinDef's on
// list; As is an optional comparator override (defaults to "=").
type JoinCondition struct {
	Source expr.Column
	Target expr.Column
	As     string
}

func (jc JoinCondition) comparator() string {
	if jc.As == "" {
		return "="
	}
	return jc.As
}

// Through describes the junction table a belongsToMany join crosses.
type Through struct {
	Table     expr.Table
	SourceKey []JoinCondition // primary cube <-> junction table
	TargetKey []JoinCondition // junction table <-> target cube
	// SecuritySQL is optional (spec §9 Open Question 3): when nil, the
	// junction table contributes no extra tenant predicate of its own,
	// which may leak across tenants if the junction table itself carries
	// tenant data. Registry.Register logs a warning, per SPEC_FULL.md §9.3,
	// rather than failing registration.
	SecuritySQL func(ctx *QueryContext) (expr.Expr, error)
}

// Join is one entry in a cube's joins map: a named edge to another cube.
type Join struct {
	Name         string // key in the owning cube's Joins map
	Target       string // target cube name, resolved against the Registry at plan time
	Relationship Relationship
	On           []JoinCondition
	SQLJoinType  string // optional override, e.g. "RIGHT"; empty means derive from Relationship
	Through      *Through
}

// Cube is a named, registry-owned unit of analysis.
type Cube struct {
	Name        string
	Title       string
	Description string
	SQL         SQLFn

	measures   map[string]*Measure
	measureSeq []string
	dimensions map[string]*Dimension
	dimSeq     []string
	joins      map[string]*Join
	joinSeq    []string
}

// NewCube creates an empty cube ready to have measures/dimensions/joins
// added before registration.
func NewCube(name string, sql SQLFn) *Cube {
	return &Cube{
		Name:       name,
		SQL:        sql,
		measures:   make(map[string]*Measure),
		dimensions: make(map[string]*Dimension),
		joins:      make(map[string]*Join),
	}
}

// AddMeasure registers a measure definition under the cube (builder-style,
// returns the cube so calls can be chained).
func (c *Cube) AddMeasure(m *Measure) *Cube {
	if _, exists := c.measures[m.Name]; !exists {
		c.measureSeq = append(c.measureSeq, m.Name)
	}
	c.measures[m.Name] = m
	return c
}

// AddDimension registers a dimension definition under the cube.
func (c *Cube) AddDimension(d *Dimension) *Cube {
	if _, exists := c.dimensions[d.Name]; !exists {
		c.dimSeq = append(c.dimSeq, d.Name)
	}
	c.dimensions[d.Name] = d
	return c
}

// AddJoin registers a join definition under the cube.
func (c *Cube) AddJoin(j *Join) *Cube {
	if _, exists := c.joins[j.Name]; !exists {
		c.joinSeq = append(c.joinSeq, j.Name)
	}
	c.joins[j.Name] = j
	return c
}

// Measure looks up a measure by name.
func (c *Cube) Measure(name string) (*Measure, bool) {
	m, ok := c.measures[name]
	return m, ok
}

// Dimension looks up a dimension by name.
func (c *Cube) Dimension(name string) (*Dimension, bool) {
	d, ok := c.dimensions[name]
	return d, ok
}

// Join looks up a join by name.
func (c *Cube) Join(name string) (*Join, bool) {
	j, ok := c.joins[name]
	return j, ok
}

// Measures returns every measure in registration order.
func (c *Cube) Measures() []*Measure {
	out := make([]*Measure, len(c.measureSeq))
	for i, name := range c.measureSeq {
		out[i] = c.measures[name]
	}
	return out
}

// Dimensions returns every dimension in registration order.
func (c *Cube) Dimensions() []*Dimension {
	out := make([]*Dimension, len(c.dimSeq))
	for i, name := range c.dimSeq {
		out[i] = c.dimensions[name]
	}
	return out
}

// Joins returns every join in registration order.
func (c *Cube) Joins() []*Join {
	out := make([]*Join, len(c.joinSeq))
	for i, name := range c.joinSeq {
		out[i] = c.joins[name]
	}
	return out
}

// HasField reports whether name is a measure or a dimension of c.
func (c *Cube) HasField(name string) bool {
	if _, ok := c.measures[name]; ok {
		return true
	}
	_, ok := c.dimensions[name]
	return ok
}
