package sqlgen

import (
	"fmt"
	"strings"

	"github.com/semcube/semcube/errs"
	"github.com/semcube/semcube/filter"
	"github.com/semcube/semcube/filtercache"
	"github.com/semcube/semcube/planner"
	"github.com/semcube/semcube/query"
)

// buildCTE renders one pre-aggregation CTE (spec §4.9): projects the
// target cube's own join-key columns plus its requested measures
// (aggregated), restricted by its own security predicate, any
// propagating filters from cubes that hasMany-join into it, and
// GROUP BY'd on the join-key columns.
//
// Only join-key columns and aggregated measures are projected — a
// requested dimension on a hasMany-joined cube that is not itself a
// join key is not supported inside a CTE, since projecting it
// un-aggregated alongside an aggregate measure reintroduces exactly
// the row fan-out the CTE exists to avoid; such a query is rejected
// further up by the planner choosing a different primary cube or by
// the simple-aggregate path instead.
func (c *Compiler) buildCTE(ctePlan *planner.CTEPlan, q query.SemanticQuery) (string, []any, error) {
	cb, ok := c.Registry.Get(ctePlan.Cube)
	if !ok {
		return "", nil, &errs.PlanError{Reason: fmt.Sprintf("unknown cube %q in pre-aggregation CTE", ctePlan.Cube)}
	}

	base, err := cb.SQL(c.Ctx)
	if err != nil {
		return "", nil, err
	}

	var args []any

	joinsSQL, joinArgs, err := c.buildIntraJoins(base.Joins)
	if err != nil {
		return "", nil, err
	}

	tableRef := base.From.Ref()

	selectParts := make([]string, 0, len(ctePlan.JoinKeys)+len(ctePlan.Measures))
	groupByParts := make([]string, 0, len(ctePlan.JoinKeys))
	for _, jk := range ctePlan.JoinKeys {
		col := fmt.Sprintf("%s.%s", tableRef, c.Dialect.QuoteIdent(jk.TargetColumn))
		selectParts = append(selectParts, fmt.Sprintf("%s AS %s", col, c.Dialect.QuoteIdent(jk.TargetColumn)))
		groupByParts = append(groupByParts, col)
	}

	for _, ref := range ctePlan.Measures {
		field := refField(ref)
		sql, mArgs, err := c.resolveMemberSQL(ref, false)
		if err != nil {
			return "", nil, err
		}
		selectParts = append(selectParts, fmt.Sprintf("%s AS %s", sql, c.Dialect.QuoteIdent(field)))
		args = append(args, mArgs...)
	}
	// The intra-join ON clauses follow the SELECT list in the SQL text.
	args = append(args, joinArgs...)

	whereParts := make([]string, 0, 2+len(ctePlan.PropagatingFilters))
	if sql, wArgs := c.baseWhereSQL(base.Where); sql != "" {
		whereParts = append(whereParts, sql)
		args = append(args, wArgs...)
	}

	for _, pf := range ctePlan.PropagatingFilters {
		sql, pArgs, err := c.buildPropagatingCondition(pf, ctePlan.CTEAlias, tableRef)
		if err != nil {
			return "", nil, err
		}
		whereParts = append(whereParts, sql)
		args = append(args, pArgs...)
	}

	// Filters directly on this CTE's own cube (as opposed to ones
	// propagated in from a hasMany-declaring cube) apply here too, as
	// long as they are not measure filters — a measure filter belongs
	// in the outer HAVING, against the re-aggregated value (spec §4.9
	// step 5). OR branches are flattened to their leaves, the same
	// simplification the planner's own propagatingFilters makes for
	// cross-cube OR.
	for _, f := range q.Filters {
		for _, cond := range filter.Flatten(f) {
			if filter.Cube(cond.Member) != ctePlan.Cube {
				continue
			}
			if _, isMeasure := cb.Measure(filter.Field(cond.Member)); isMeasure {
				continue
			}
			colSQL, colArgs, err := c.resolveMemberSQL(cond.Member, false)
			if err != nil {
				return "", nil, err
			}
			condSQL, condArgs, err := BuildCondition(colSQL, cond, c.Dialect, c.Now)
			if err != nil {
				return "", nil, err
			}
			args = append(args, colArgs...)
			args = append(args, condArgs...)
			whereParts = append(whereParts, condSQL)
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s AS (SELECT %s FROM %s%s", c.Dialect.QuoteIdent(ctePlan.CTEAlias), strings.Join(selectParts, ", "), tableRefSQL(base.From, c.Dialect), joinsSQL)
	if where := joinNonEmpty(whereParts, " AND "); where != "" {
		fmt.Fprintf(&sb, " WHERE %s", where)
	}
	if len(groupByParts) > 0 {
		fmt.Fprintf(&sb, " GROUP BY %s", strings.Join(groupByParts, ", "))
	}
	sb.WriteString(")")

	return sb.String(), args, nil
}

// buildPropagatingCondition renders one `target_col IN (SELECT
// source_col FROM source ... WHERE ...)` restriction (spec §4.9),
// reusing the identical fragment across executions/queries that
// filter the same way via filtercache.
func (c *Compiler) buildPropagatingCondition(pf planner.PropagatingFilter, cteAlias, targetTableRef string) (string, []any, error) {
	if len(pf.JoinConditions) == 0 {
		return "", nil, fmt.Errorf("propagating filter from %q has no join conditions", pf.SourceCube)
	}
	// Composite junction keys are not supported here: the first join
	// condition pair is used as the correlating column, matching the
	// single-column IN-subquery shape spec §4.9's examples all use.
	jc := pf.JoinConditions[0]

	key := filtercache.PropagatingKeyFor(pf.SourceCube, cteAlias, pf.Filters)
	frag, err := c.FilterCache.GetOrBuild(key, func() (filtercache.Fragment, error) {
		return c.buildPropagatingFragment(pf)
	})
	if err != nil {
		return "", nil, err
	}

	targetCol := fmt.Sprintf("%s.%s", targetTableRef, c.Dialect.QuoteIdent(jc.Target.Name))
	return fmt.Sprintf("%s IN (%s)", targetCol, frag.SQL), frag.Args, nil
}

func (c *Compiler) buildPropagatingFragment(pf planner.PropagatingFilter) (filtercache.Fragment, error) {
	srcCube, ok := c.Registry.Get(pf.SourceCube)
	if !ok {
		return filtercache.Fragment{}, fmt.Errorf("propagating filter: unknown source cube %q", pf.SourceCube)
	}
	base, err := srcCube.SQL(c.Ctx)
	if err != nil {
		return filtercache.Fragment{}, err
	}

	joinCond := pf.JoinConditions[0]

	joinsSQL, joinArgs, err := c.buildIntraJoins(base.Joins)
	if err != nil {
		return filtercache.Fragment{}, err
	}

	var args []any
	args = append(args, joinArgs...)

	whereParts := make([]string, 0, 1+len(pf.Filters))
	if sql, wArgs := c.baseWhereSQL(base.Where); sql != "" {
		whereParts = append(whereParts, sql)
		args = append(args, wArgs...)
	}
	for _, cond := range pf.Filters {
		colSQL, colArgs, err := c.resolveMemberSQL(cond.Member, false)
		if err != nil {
			return filtercache.Fragment{}, err
		}
		condSQL, condArgs, err := BuildCondition(colSQL, cond, c.Dialect, c.Now)
		if err != nil {
			return filtercache.Fragment{}, err
		}
		args = append(args, colArgs...)
		args = append(args, condArgs...)
		whereParts = append(whereParts, condSQL)
	}

	selectCol := fmt.Sprintf("%s.%s", base.From.Ref(), c.Dialect.QuoteIdent(joinCond.Source.Name))
	sql := fmt.Sprintf("SELECT %s FROM %s%s", selectCol, tableRefSQL(base.From, c.Dialect), joinsSQL)
	if where := joinNonEmpty(whereParts, " AND "); where != "" {
		sql += " WHERE " + where
	}
	return filtercache.Fragment{SQL: sql, Args: args}, nil
}

// refField returns the field half of a fully-qualified "Cube.field" ref.
func refField(ref string) string {
	if i := strings.LastIndexByte(ref, '.'); i >= 0 {
		return ref[i+1:]
	}
	return ref
}
