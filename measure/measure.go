// Package measure builds the SQL expression for a measure: simple
// aggregates, calculated measures (template expansion), measures
// re-aggregated from a pre-aggregation CTE, and post-aggregation
// window functions (spec §4.8/§4.11).
//
// Grounded on datalog/executor/aggregation.go's separation of group-by
// variables from aggregate FindElements (the direct analog of
// separating measures from dimensions) and
// datalog/planner/subquery_rewriter.go's topological rewrite style for
// the calculated-measure template substitution — see DESIGN.md.
package measure

import (
	"fmt"
	"strings"

	"github.com/semcube/semcube/cube"
	"github.com/semcube/semcube/dialect"
	"github.com/semcube/semcube/errs"
	"github.com/semcube/semcube/expr"
	"github.com/semcube/semcube/filter"
)

// Resolved is a built SQL expression plus any bind parameters its
// inline filters contributed (e.g. a CASE WHEN's literal comparands).
type Resolved struct {
	SQL  string
	Args []any
}

// ColumnResolver renders an expr.Expr (already resolved against a
// QueryContext by the caller) into dialect-quoted SQL text.
type ColumnResolver func(e expr.Expr) (string, []any)

// Builder builds measure SQL against one dialect adapter.
type Builder struct {
	Dialect        dialect.Adapter
	ResolveColumn  ColumnResolver
	ResolveFilter  func(c filter.Condition) (string, []any, error)
}

// BuildSimple renders a simple-aggregate or Number measure: spec §4.8
// "AGG(expr)" (COUNT/SUM/AVG/MIN/MAX/COUNT DISTINCT; Number emits the
// raw expression). Inline filters become AGG(CASE WHEN f THEN expr
// END); Count always uses the COUNT(CASE WHEN f THEN 1 END) form, on
// every dialect.
func (b *Builder) BuildSimple(m *cube.Measure, ctx *cube.QueryContext) (Resolved, error) {
	if m.Kind == cube.Calculated || m.Kind.IsWindow() {
		return Resolved{}, fmt.Errorf("measure %q is not a simple aggregate", m.Name)
	}

	baseExpr, err := m.SQL(ctx)
	if err != nil {
		return Resolved{}, err
	}
	resolved := expr.Resolve(baseExpr, ctx)
	exprSQL, exprArgs := b.ResolveColumn(resolved)

	if len(m.Filters) == 0 {
		return Resolved{SQL: b.aggCall(m.Kind, exprSQL), Args: exprArgs}, nil
	}

	condSQL, condArgs, err := b.combineConditions(m.Filters)
	if err != nil {
		return Resolved{}, err
	}

	args := append(append([]any{}, condArgs...), exprArgs...)
	if m.Kind == cube.Count {
		// COUNT(*) FILTER (WHERE ...) is the idiomatic Postgres/DuckDB
		// form; the CASE fallback below is dialect-neutral and correct
		// everywhere (including MySQL/SQLite, which lack FILTER), so we
		// always emit the CASE form for portability across all four
		// adapters rather than branching per dialect.
		return Resolved{SQL: fmt.Sprintf("COUNT(CASE WHEN %s THEN 1 END)", condSQL), Args: condArgs}, nil
	}
	if m.Kind == cube.CountDistinct || m.Kind == cube.CountDistinctApprox {
		return Resolved{SQL: fmt.Sprintf("COUNT(DISTINCT CASE WHEN %s THEN %s END)", condSQL, exprSQL), Args: args}, nil
	}
	return Resolved{SQL: fmt.Sprintf("%s(CASE WHEN %s THEN %s END)", sqlAggKeyword(m.Kind), condSQL, exprSQL), Args: args}, nil
}

func (b *Builder) aggCall(kind cube.MeasureKind, exprSQL string) string {
	switch kind {
	case cube.Count:
		return fmt.Sprintf("COUNT(%s)", exprSQL)
	case cube.CountDistinct, cube.CountDistinctApprox:
		return fmt.Sprintf("COUNT(DISTINCT %s)", exprSQL)
	case cube.Sum:
		return fmt.Sprintf("SUM(%s)", exprSQL)
	case cube.Avg:
		return b.Dialect.BuildAvg(exprSQL)
	case cube.Min:
		return fmt.Sprintf("MIN(%s)", exprSQL)
	case cube.Max:
		return fmt.Sprintf("MAX(%s)", exprSQL)
	case cube.Number:
		return exprSQL
	default:
		return exprSQL
	}
}

func sqlAggKeyword(kind cube.MeasureKind) string {
	switch kind {
	case cube.Sum:
		return "SUM"
	case cube.Avg:
		return "AVG"
	case cube.Min:
		return "MIN"
	case cube.Max:
		return "MAX"
	default:
		return "SUM"
	}
}

// combineConditions ANDs together every inline measure filter into one
// boolean SQL expression.
func (b *Builder) combineConditions(conds []filter.Condition) (string, []any, error) {
	var parts []string
	var args []any
	for _, c := range conds {
		sql, condArgs, err := b.ResolveFilter(c)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		args = append(args, condArgs...)
	}
	return strings.Join(parts, " AND "), args, nil
}

// Resolver looks up a named measure's built SQL (used to substitute
// {ref} placeholders in a calculated measure's template) and, for
// dependencies living in a CTE, the CTE column reference instead.
type Resolver func(ref string) (string, error)

// BuildCalculated expands a calculated measure's {ref} template by
// substituting each referent's already-resolved SQL text via resolve.
// Cycle/unknown-ref detection happened at registration time
// (cube.Registry.Register); this function trusts Dependencies.
func BuildCalculated(m *cube.Measure, resolve Resolver) (string, error) {
	if m.Kind != cube.Calculated {
		return "", fmt.Errorf("measure %q is not calculated", m.Name)
	}

	var firstErr error
	out := templateRefPattern.ReplaceAllStringFunc(m.Template, func(match string) string {
		if firstErr != nil {
			return match
		}
		ref := match[1 : len(match)-1]
		sql, err := resolve(ref)
		if err != nil {
			firstErr = err
			return match
		}
		return "(" + sql + ")"
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

// BuildCTEAggregated re-aggregates a measure from its pre-aggregation
// CTE's projected column (spec §4.10 step 3): SUM/MIN/MAX re-aggregate
// directly; COUNT (and countDistinct, already summed inside the CTE)
// re-sums; AVG is REJECTED per spec §9 Open Question 2 ("average of
// averages" is not a weighted average and is semantically wrong for
// arbitrary group sizes) rather than silently emitting a wrong result.
func BuildCTEAggregated(m *cube.Measure, dialectAdapter dialect.Adapter, cteAlias, quotedCol string) (string, error) {
	switch m.Kind {
	case cube.Avg:
		return "", &errs.PlanError{Reason: fmt.Sprintf("measure %q: cannot re-aggregate an avg measure across a pre-aggregation CTE without a weighted average (spec §9 Open Question 2); carry numerator/denominator as separate measures instead", m.Name)}
	case cube.Count, cube.CountDistinct, cube.CountDistinctApprox, cube.Sum:
		return fmt.Sprintf("SUM(%s.%s)", cteAlias, quotedCol), nil
	case cube.Min:
		return fmt.Sprintf("MIN(%s.%s)", cteAlias, quotedCol), nil
	case cube.Max:
		return fmt.Sprintf("MAX(%s.%s)", cteAlias, quotedCol), nil
	case cube.Number:
		return fmt.Sprintf("%s.%s", cteAlias, quotedCol), nil
	default:
		return "", fmt.Errorf("measure %q kind %q cannot be re-aggregated from a CTE", m.Name, m.Kind)
	}
}
