package sqlgen

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/semcube/semcube/cube"
	"github.com/semcube/semcube/dialect"
	"github.com/semcube/semcube/errs"
	"github.com/semcube/semcube/expr"
	"github.com/semcube/semcube/filter"
	"github.com/semcube/semcube/filtercache"
	"github.com/semcube/semcube/measure"
	"github.com/semcube/semcube/planner"
	"github.com/semcube/semcube/query"
)

// Built is the final output of Compiler.Build: one parameterized SQL
// statement plus its positional args, in the order its placeholders
// appear (spec §6 generateSQL: "{sql, params}").
type Built struct {
	SQL  string
	Args []any
}

// Compiler assembles a QueryPlan into one SQL statement (spec
// §4.9/§4.10). It is constructed fresh per execution, mirroring
// QueryContext's own per-execution lifetime.
type Compiler struct {
	Registry    *cube.Registry
	Dialect     dialect.Adapter
	Ctx         *cube.QueryContext
	FilterCache *filtercache.Cache
	Now         time.Time

	measures *measure.Builder

	// cteAlias maps a cube name to its pre-aggregation CTE's alias, for
	// every CTE the plan built. Absence means the cube is joined as a
	// plain table, not a CTE.
	cteAlias map[string]string
	ctes     map[string]*planner.CTEPlan

	// pendingSelectArgs accumulates bind args resolved while building
	// the outer SELECT list, claimed by buildOuter immediately after
	// buildSelect returns so they interleave correctly with the FROM
	// clause's own args in the final statement's left-to-right order.
	pendingSelectArgs []any
}

// Build compiles plan+q into one parameterized SQL statement (spec
// §4.9 CTE Builder + §4.10 Main SQL Assembler). The caller is expected
// to have preloaded propagating-filter fragments into fc already
// (executor step 6) so the CTE and outer query share identical
// fragments for the same filter content.
func Build(registry *cube.Registry, d dialect.Adapter, ctx *cube.QueryContext, fc *filtercache.Cache, now time.Time, plan *planner.QueryPlan, q query.SemanticQuery) (Built, error) {
	c := &Compiler{
		Registry:    registry,
		Dialect:     d,
		Ctx:         ctx,
		FilterCache: fc,
		Now:         now,
		cteAlias:    make(map[string]string),
		ctes:        make(map[string]*planner.CTEPlan),
	}
	c.measures = &measure.Builder{
		Dialect: d,
		ResolveColumn: func(e expr.Expr) (string, []any) {
			return ResolveExpr(e, d)
		},
		ResolveFilter: c.resolveMeasureFilterCondition,
	}
	for i := range plan.PreAggregationCTEs {
		cte := &plan.PreAggregationCTEs[i]
		c.cteAlias[cte.Cube] = cte.CTEAlias
		c.ctes[cte.Cube] = cte
	}

	var sb strings.Builder
	var args []any

	cteSQLs := make([]string, 0, len(plan.PreAggregationCTEs))
	for i := range plan.PreAggregationCTEs {
		cteSQL, cteArgs, err := c.buildCTE(&plan.PreAggregationCTEs[i], q)
		if err != nil {
			return Built{}, err
		}
		cteSQLs = append(cteSQLs, cteSQL)
		args = append(args, cteArgs...)
	}
	if len(cteSQLs) > 0 {
		sb.WriteString("WITH ")
		sb.WriteString(strings.Join(cteSQLs, ", "))
		sb.WriteString(" ")
	}

	outerSQL, outerArgs, err := c.buildOuter(plan, q)
	if err != nil {
		return Built{}, err
	}
	sb.WriteString(outerSQL)
	args = append(args, outerArgs...)

	finalSQL, finalArgs := rewritePlaceholders(sb.String(), args, d)
	return Built{SQL: finalSQL, Args: finalArgs}, nil
}

// rewritePlaceholders replaces every dialect-neutral '?' marker, in
// order, with d's real placeholder syntax ($1, ?, ...), consuming one
// entry of args per marker. When d.SupportsPlaceholderReuse(), a
// literal value already bound earlier in the statement is rewritten
// to reference that same numbered placeholder instead of appending a
// duplicate copy of it — e.g. a filter value that restricts both the
// outer WHERE and a propagated pre-aggregation CTE subquery is bound
// once and referenced twice. MySQL/SQLite's unnumbered '?' cannot
// reference an earlier slot, so every occurrence there keeps its own
// copy of args.
func rewritePlaceholders(sql string, args []any, d dialect.Adapter) (string, []any) {
	var out strings.Builder
	var finalArgs []any
	seen := make(map[string]int) // canonical value -> its assigned placeholder number
	reuse := d.SupportsPlaceholderReuse()
	argIdx, n := 0, 0
	inLiteral := false
	for i := 0; i < len(sql); i++ {
		ch := sql[i]
		if ch == '\'' {
			inLiteral = !inLiteral
			out.WriteByte(ch)
			continue
		}
		if ch == '?' && !inLiteral {
			val := args[argIdx]
			argIdx++
			if reuse {
				key := fmt.Sprintf("%T:%v", val, val)
				if existing, ok := seen[key]; ok {
					out.WriteString(d.Placeholder(existing))
					continue
				}
				n++
				seen[key] = n
				finalArgs = append(finalArgs, val)
				out.WriteString(d.Placeholder(n))
				continue
			}
			n++
			finalArgs = append(finalArgs, val)
			out.WriteString(d.Placeholder(n))
			continue
		}
		out.WriteByte(ch)
	}
	return out.String(), finalArgs
}

// cubeOf returns the registered cube for a "Cube.field" ref.
func (c *Compiler) cubeOf(ref string) (*cube.Cube, string, error) {
	name := filter.Cube(ref)
	cb, ok := c.Registry.Get(name)
	if !ok {
		return nil, "", &errs.PlanError{Reason: fmt.Sprintf("unknown cube %q", name)}
	}
	return cb, name, nil
}

// resolveMeasureFilterCondition builds SQL for one of a simple
// measure's inline Filters (spec §3 MeasureDef "filters?: [Condition]").
func (c *Compiler) resolveMeasureFilterCondition(cond filter.Condition) (string, []any, error) {
	colSQL, _, err := c.resolveMemberSQL(cond.Member, false)
	if err != nil {
		return "", nil, err
	}
	return BuildCondition(colSQL, cond, c.Dialect, c.Now)
}

// resolveMemberSQL resolves a "Cube.field" reference to SQL text.
// preferCTEAggregation routes a measure ref through its cube's
// pre-aggregation CTE (re-aggregating the CTE's projected column)
// when one exists; a CTE's own body must build its measures against
// the base table directly; so CTE body construction always passes
// false here and the outer query passes true.
func (c *Compiler) resolveMemberSQL(ref string, preferCTEAggregation bool) (string, []any, error) {
	cubeName, field := filter.Cube(ref), filter.Field(ref)
	cb, _, err := c.cubeOf(ref)
	if err != nil {
		return "", nil, err
	}

	if dim, ok := cb.Dimension(field); ok {
		if preferCTEAggregation {
			if alias, ok := c.cteAlias[cubeName]; ok {
				return fmt.Sprintf("%s.%s", alias, c.Dialect.QuoteIdent(field)), nil, nil
			}
		}
		return ResolveColumn(dim.SQL, c.Ctx, c.Dialect)
	}

	if m, ok := cb.Measure(field); ok {
		// Calculated and window measures are never themselves
		// re-aggregated from a CTE column: a calculated measure's SQL is
		// an expression over its dependencies (each of which resolves
		// through this same function, so a dependency that does live in
		// a CTE is still expressed via its CTE column), and a window
		// measure's SQL is a post-aggregation OVER() wrapped around its
		// resolved base measure. Both checks must come before the
		// preferCTEAggregation branch below, or a calculated/window
		// measure whose owning cube became a CTE would be handed
		// straight to BuildCTEAggregated, which only knows how to
		// re-aggregate a simple aggregate kind.
		if m.Kind == cube.Calculated {
			sql, err := c.buildCalculatedMeasure(cubeName, m, preferCTEAggregation)
			return sql, nil, err
		}
		if m.Kind.IsWindow() {
			return c.buildWindowMeasure(cubeName, m, preferCTEAggregation)
		}
		if preferCTEAggregation {
			if alias, ok := c.cteAlias[cubeName]; ok {
				sql, err := measure.BuildCTEAggregated(m, c.Dialect, alias, c.Dialect.QuoteIdent(field))
				return sql, nil, err
			}
		}
		resolved, err := c.measures.BuildSimple(m, c.Ctx)
		if err != nil {
			return "", nil, err
		}
		return resolved.SQL, resolved.Args, nil
	}

	return "", nil, fmt.Errorf("cube %q has no field %q", cubeName, field)
}

// buildCalculatedMeasure expands a calculated measure's template,
// resolving each dependency through resolveMemberSQL so a dependency
// that itself lives in a CTE is expressed through its CTE column
// (spec §4.8: a calculated measure's own SQL re-derives from its
// dependencies' already-resolved text, never from its own aggregate).
func (c *Compiler) buildCalculatedMeasure(ownerCube string, m *cube.Measure, preferCTEAggregation bool) (string, error) {
	return measure.BuildCalculated(m, func(ref string) (string, error) {
		sql, _, err := c.resolveMemberSQL(qualifyRef(ownerCube, ref), preferCTEAggregation)
		return sql, err
	})
}

// buildWindowMeasure composes a post-aggregation window measure's SQL
// (spec §4.11): resolves its base measure, partitionBy dimensions and
// orderBy fields to SQL text through resolveMemberSQL — the same path
// a calculated measure's dependencies take, so a base measure or
// partition/order dimension that lives in a CTE is still expressed via
// its CTE column — then hands the resolved fragments to
// measure.BuildWindow for the OVER()/operation composition.
func (c *Compiler) buildWindowMeasure(ownerCube string, m *cube.Measure, preferCTEAggregation bool) (string, []any, error) {
	cfg := m.Window
	if cfg == nil {
		return "", nil, fmt.Errorf("measure %q: window config is required for kind %q", m.Name, m.Kind)
	}

	baseSQL, baseArgs, err := c.resolveMemberSQL(qualifyRef(ownerCube, cfg.Measure), preferCTEAggregation)
	if err != nil {
		return "", nil, err
	}
	var args []any
	args = append(args, baseArgs...)

	partitionBySQL := make([]string, 0, len(cfg.PartitionBy))
	for _, ref := range cfg.PartitionBy {
		sql, pArgs, e := c.resolveMemberSQL(qualifyRef(ownerCube, ref), preferCTEAggregation)
		if e != nil {
			return "", nil, e
		}
		partitionBySQL = append(partitionBySQL, sql)
		args = append(args, pArgs...)
	}

	orderBySQL := make([]string, 0, len(cfg.OrderBy))
	for _, of := range cfg.OrderBy {
		sql := baseSQL
		if of.Field != "" {
			var oArgs []any
			var e error
			sql, oArgs, e = c.resolveMemberSQL(qualifyRef(ownerCube, of.Field), preferCTEAggregation)
			if e != nil {
				return "", nil, e
			}
			args = append(args, oArgs...)
		}
		if of.Granularity != "" {
			sql = c.Dialect.TruncateDate(sql, query.Granularity(of.Granularity))
		}
		dir := "ASC"
		if strings.EqualFold(of.Direction, "desc") {
			dir = "DESC"
		}
		orderBySQL = append(orderBySQL, fmt.Sprintf("%s %s", sql, dir))
	}

	sql, err := measure.BuildWindow(m, c.Dialect, baseSQL, partitionBySQL, orderBySQL)
	if err != nil {
		return "", nil, err
	}
	return sql, args, nil
}

// qualifyRef prefixes a bare "field" ref with ownerCube, leaving an
// already-qualified "Cube.field" ref untouched. Used to resolve a
// calculated or window measure's own dependency refs, which the spec
// allows to omit the cube name when they point at a sibling member.
func qualifyRef(ownerCube, ref string) string {
	if strings.Contains(ref, ".") {
		return ref
	}
	return ownerCube + "." + ref
}

// sortedKeys returns m's keys sorted, used wherever map iteration
// order must not leak into emitted SQL.
func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
