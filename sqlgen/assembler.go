package sqlgen

import (
	"fmt"
	"strings"

	"github.com/semcube/semcube/cube"
	"github.com/semcube/semcube/errs"
	"github.com/semcube/semcube/filter"
	"github.com/semcube/semcube/planner"
	"github.com/semcube/semcube/query"
)

// buildOuter assembles the main SELECT (spec §4.10 steps 3-10): the
// primary cube's base, every joined cube or pre-aggregation CTE,
// WHERE/GROUP BY/HAVING/ORDER BY/LIMIT/OFFSET.
func (c *Compiler) buildOuter(plan *planner.QueryPlan, q query.SemanticQuery) (string, []any, error) {
	primary, ok := c.Registry.Get(plan.PrimaryCube)
	if !ok {
		return "", nil, &errs.PlanError{Reason: fmt.Sprintf("unknown primary cube %q", plan.PrimaryCube)}
	}
	primaryBase, err := primary.SQL(c.Ctx)
	if err != nil {
		return "", nil, err
	}

	var args []any

	selectParts, groupByParts, aggregateCount, err := c.buildSelect(q)
	if err != nil {
		return "", nil, err
	}
	// selectParts/groupByParts carry no args of their own in the
	// returned strings; their args were already appended by
	// buildSelect via the pointer receiver below.
	args = append(args, c.pendingSelectArgs...)
	c.pendingSelectArgs = nil

	primaryJoinsSQL, primaryJoinArgs, err := c.buildIntraJoins(primaryBase.Joins)
	if err != nil {
		return "", nil, err
	}
	args = append(args, primaryJoinArgs...)

	joinClauses, joinArgs, extraWhereParts, extraWhereArgs, err := c.buildJoinClauses(plan.JoinCubes)
	if err != nil {
		return "", nil, err
	}
	args = append(args, joinArgs...)

	whereParts := make([]string, 0, 4+len(extraWhereParts))
	if sql, wArgs := c.baseWhereSQL(primaryBase.Where); sql != "" {
		whereParts = append(whereParts, sql)
		args = append(args, wArgs...)
	}
	whereParts = append(whereParts, extraWhereParts...)
	args = append(args, extraWhereArgs...)

	nonMeasureFilterSQL, nonMeasureArgs, havingSQL, havingArgs, err := c.buildFilters(q.Filters)
	if err != nil {
		return "", nil, err
	}
	whereParts = append(whereParts, nonMeasureFilterSQL...)
	args = append(args, nonMeasureArgs...)

	orderBySQL, err := c.buildOrderBy(q.Order)
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s%s", strings.Join(selectParts, ", "), tableRefSQL(primaryBase.From, c.Dialect), primaryJoinsSQL)
	sb.WriteString(joinClauses)
	if where := joinNonEmpty(whereParts, " AND "); where != "" {
		fmt.Fprintf(&sb, " WHERE %s", where)
	}
	if aggregateCount > 0 && len(groupByParts) > 0 {
		fmt.Fprintf(&sb, " GROUP BY %s", strings.Join(groupByParts, ", "))
	}
	if len(havingSQL) > 0 {
		fmt.Fprintf(&sb, " HAVING %s", strings.Join(havingSQL, " AND "))
		args = append(args, havingArgs...)
	}
	if orderBySQL != "" {
		fmt.Fprintf(&sb, " ORDER BY %s", orderBySQL)
	}
	if q.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", q.Limit)
	}
	if q.Offset > 0 {
		fmt.Fprintf(&sb, " OFFSET %d", q.Offset)
	}

	return sb.String(), args, nil
}

// buildSelect renders every measure/dimension/time-dimension the query
// requests (spec §4.10 step 3), aliased under its own quoted
// "Cube.field" member reference, and collects the non-aggregate
// expressions GROUP BY needs. Bind args accumulated while resolving
// each member are appended to c.pendingSelectArgs rather than returned
// positionally, since the caller must interleave them with the FROM
// clause's own args in source order.
func (c *Compiler) buildSelect(q query.SemanticQuery) (selectParts, groupByParts []string, aggregateCount int, err error) {
	for _, ref := range q.Measures {
		sql, mArgs, e := c.resolveMemberSQL(ref, true)
		if e != nil {
			return nil, nil, 0, e
		}
		selectParts = append(selectParts, fmt.Sprintf("%s AS %s", sql, QuoteAlias(c.Dialect, ref)))
		c.pendingSelectArgs = append(c.pendingSelectArgs, mArgs...)
		aggregateCount++
	}

	for _, ref := range q.Dimensions {
		sql, dArgs, e := c.resolveMemberSQL(ref, true)
		if e != nil {
			return nil, nil, 0, e
		}
		selectParts = append(selectParts, fmt.Sprintf("%s AS %s", sql, QuoteAlias(c.Dialect, ref)))
		c.pendingSelectArgs = append(c.pendingSelectArgs, dArgs...)
		groupByParts = append(groupByParts, sql)
	}

	for _, td := range q.TimeDimensions {
		sql, tArgs, e := c.resolveMemberSQL(td.Dimension, true)
		if e != nil {
			return nil, nil, 0, e
		}
		if td.Granularity != "" {
			sql = c.Dialect.TruncateDate(sql, td.Granularity)
		}
		selectParts = append(selectParts, fmt.Sprintf("%s AS %s", sql, QuoteAlias(c.Dialect, td.Dimension)))
		c.pendingSelectArgs = append(c.pendingSelectArgs, tArgs...)
		groupByParts = append(groupByParts, sql)
	}

	return selectParts, groupByParts, aggregateCount, nil
}

// buildJoinClauses renders every resolved JoinEntry (spec §4.10 step
// 5), routing a CTE-backed cube through its alias and a plain cube
// through its own base table, and collects each plain joined cube's
// own base-query WHERE (and a junction leg's optional security
// predicate) for the caller to fold into the outer WHERE (step 6).
func (c *Compiler) buildJoinClauses(entries []planner.JoinEntry) (clauses string, args []any, extraWhere []string, extraWhereArgs []any, err error) {
	var sb strings.Builder
	for _, entry := range entries {
		kind := "INNER"
		if entry.JoinType == planner.LeftJoin {
			kind = "LEFT"
		}

		if entry.JunctionTable != nil {
			tableSQL := tableRefSQL(entry.JunctionTable.Table, c.Dialect)
			condSQL, condArgs := c.renderJoinConditions(entry.JoinCondition, "")
			fmt.Fprintf(&sb, " %s JOIN %s ON %s", kind, tableSQL, condSQL)
			args = append(args, condArgs...)

			if entry.JunctionTable.SecuritySQL != nil {
				secExpr, e := entry.JunctionTable.SecuritySQL(c.Ctx)
				if e != nil {
					return "", nil, nil, nil, e
				}
				sql, sArgs := c.baseWhereSQL(secExpr)
				if sql != "" {
					extraWhere = append(extraWhere, sql)
					extraWhereArgs = append(extraWhereArgs, sArgs...)
				}
			}
			continue
		}

		cteAlias, isCTE := c.cteAlias[entry.Cube]
		if isCTE {
			condSQL, condArgs := c.renderJoinConditions(entry.JoinCondition, cteAlias)
			fmt.Fprintf(&sb, " %s JOIN %s ON %s", kind, c.Dialect.QuoteIdent(cteAlias), condSQL)
			args = append(args, condArgs...)
			continue
		}

		targetCube, ok := c.Registry.Get(entry.Cube)
		if !ok {
			return "", nil, nil, nil, &errs.PlanError{Reason: fmt.Sprintf("unknown joined cube %q", entry.Cube)}
		}
		base, e := targetCube.SQL(c.Ctx)
		if e != nil {
			return "", nil, nil, nil, e
		}
		condSQL, condArgs := c.renderJoinConditions(entry.JoinCondition, "")
		fmt.Fprintf(&sb, " %s JOIN %s ON %s", kind, tableRefSQL(base.From, c.Dialect), condSQL)
		args = append(args, condArgs...)

		innerJoinsSQL, innerJoinArgs, e := c.buildIntraJoins(base.Joins)
		if e != nil {
			return "", nil, nil, nil, e
		}
		sb.WriteString(innerJoinsSQL)
		args = append(args, innerJoinArgs...)

		if sql, wArgs := c.baseWhereSQL(base.Where); sql != "" {
			extraWhere = append(extraWhere, sql)
			extraWhereArgs = append(extraWhereArgs, wArgs...)
		}
	}
	return sb.String(), args, extraWhere, extraWhereArgs, nil
}

// renderJoinConditions ANDs together every {source, target, as?} pair
// of a join, optionally overriding the target side's table qualifier
// with a CTE alias (the join-key column is projected there under its
// own bare name, not under the base table's physical identity).
func (c *Compiler) renderJoinConditions(conds []cube.JoinCondition, cteOverride string) (string, []any) {
	parts := make([]string, 0, len(conds))
	var args []any
	for _, jc := range conds {
		leftSQL, leftArgs := ResolveExpr(jc.Source, c.Dialect)
		var rightSQL string
		var rightArgs []any
		if cteOverride != "" {
			rightSQL = fmt.Sprintf("%s.%s", cteOverride, c.Dialect.QuoteIdent(jc.Target.Name))
		} else {
			rightSQL, rightArgs = ResolveExpr(jc.Target, c.Dialect)
		}
		cmp := jc.As
		if cmp == "" {
			cmp = "="
		}
		parts = append(parts, fmt.Sprintf("%s %s %s", leftSQL, cmp, rightSQL))
		args = append(args, leftArgs...)
		args = append(args, rightArgs...)
	}
	return strings.Join(parts, " AND "), args
}

// buildFilters splits every top-level query filter into its outer-WHERE
// share (non-measure conditions on a cube that is not itself a
// pre-aggregation CTE, since CTE-resident dimension filters were
// already applied inside the CTE's own WHERE) and its HAVING share
// (every measure filter, regardless of whether the measure lives in a
// CTE), per spec §4.10 steps 6 and 8. OR branches are flattened to
// their leaves for the same reason the planner's propagatingFilters
// flattens them: partial OR decomposition across clauses would change
// row semantics, so this implementation keeps OR-of-mixed-targets
// filters whole by flattening rather than attempting to split them.
func (c *Compiler) buildFilters(filters []filter.Filter) (whereSQL []string, whereArgs []any, havingSQL []string, havingArgs []any, err error) {
	for _, f := range filters {
		for _, cond := range filter.Flatten(f) {
			cb, ok := c.Registry.Get(filter.Cube(cond.Member))
			if !ok {
				return nil, nil, nil, nil, fmt.Errorf("filter references unknown cube %q", filter.Cube(cond.Member))
			}
			_, isMeasure := cb.Measure(filter.Field(cond.Member))

			if isMeasure {
				colSQL, colArgs, e := c.resolveMemberSQL(cond.Member, true)
				if e != nil {
					return nil, nil, nil, nil, e
				}
				sql, cArgs, e := BuildCondition(colSQL, cond, c.Dialect, c.Now)
				if e != nil {
					return nil, nil, nil, nil, e
				}
				havingSQL = append(havingSQL, sql)
				havingArgs = append(havingArgs, colArgs...)
				havingArgs = append(havingArgs, cArgs...)
				continue
			}

			if _, isCTECube := c.cteAlias[filter.Cube(cond.Member)]; isCTECube {
				continue
			}

			colSQL, colArgs, e := c.resolveMemberSQL(cond.Member, true)
			if e != nil {
				return nil, nil, nil, nil, e
			}
			sql, cArgs, e := BuildCondition(colSQL, cond, c.Dialect, c.Now)
			if e != nil {
				return nil, nil, nil, nil, e
			}
			whereSQL = append(whereSQL, sql)
			whereArgs = append(whereArgs, colArgs...)
			whereArgs = append(whereArgs, cArgs...)
		}
	}
	return whereSQL, whereArgs, havingSQL, havingArgs, nil
}

// buildOrderBy renders ORDER BY against each requested field's already
// -quoted SELECT alias (spec §4.10 step 9), which every supported
// dialect accepts in ORDER BY even where it disallows it elsewhere.
func (c *Compiler) buildOrderBy(orders []query.Order) (string, error) {
	if len(orders) == 0 {
		return "", nil
	}
	parts := make([]string, 0, len(orders))
	for _, o := range orders {
		dir := "ASC"
		if o.Direction == query.Desc {
			dir = "DESC"
		}
		parts = append(parts, fmt.Sprintf("%s %s", QuoteAlias(c.Dialect, o.Field), dir))
	}
	return strings.Join(parts, ", "), nil
}
