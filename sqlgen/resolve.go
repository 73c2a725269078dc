// Package sqlgen builds the literal SQL text and bind-parameter slice
// for a compiled QueryPlan: the pre-aggregation CTEs (spec §4.9) and
// the main SELECT that joins them (spec §4.10). No teacher file builds
// SQL text directly (the teacher executes a Datalog plan against a KV
// store); this package is grounded on sqldef's per-dialect identifier
// quoting/placeholder conventions and
// other_examples/…rill…metricsview_aggregation.go.go's shape of
// building one parameterized statement from a declarative aggregation
// request — see DESIGN.md.
//
// Every builder method in this package accumulates bind parameters as
// it writes SQL text, always using the dialect-neutral '?' marker
// (matching expr.Raw's own documented convention); Build's final pass
// rewrites the n'th '?' to the target dialect's real placeholder
// syntax in one left-to-right pass, after all CTEs and the outer query
// have been fully composed, so the returned args slice is always in
// the same order as the placeholders appear in the returned SQL.
//
// "Parameter deduplication" (spec §4.5/§7) happens in that final pass:
// on dialects with numbered placeholders (Postgres, DuckDB; see
// dialect.Adapter.SupportsPlaceholderReuse) a value bound more than
// once — e.g. the same query-level filter value in the outer WHERE and
// in a propagated CTE subquery — is bound once and every later
// occurrence references its first placeholder. MySQL and SQLite keep
// one args entry per occurrence. Propagating-filter subqueries are
// also built once per distinct content via filtercache.Cache.GetOrBuild.
package sqlgen

import (
	"fmt"
	"strings"

	"github.com/semcube/semcube/cube"
	"github.com/semcube/semcube/dialect"
	"github.com/semcube/semcube/expr"
)

// ResolveExpr renders e (already passed through expr.Resolve against a
// QueryContext by the caller) into dialect-quoted SQL text plus any
// bind parameters a Raw expression carries.
func ResolveExpr(e expr.Expr, d dialect.Adapter) (string, []any) {
	switch v := e.(type) {
	case expr.Column:
		return fmt.Sprintf("%s.%s", d.QuoteIdent(v.Table.Ref()), d.QuoteIdent(v.Name)), nil
	case expr.Raw:
		return v.SQL, v.Args
	default:
		return e.String(), nil
	}
}

// ResolveColumn resolves a cube measure/dimension's SQL function
// output fully: calls fn(ctx), follows any Dynamic indirection, then
// renders to SQL text.
func ResolveColumn(fn func(ctx *cube.QueryContext) (expr.Expr, error), ctx *cube.QueryContext, d dialect.Adapter) (string, []any, error) {
	e, err := fn(ctx)
	if err != nil {
		return "", nil, err
	}
	resolved := expr.Resolve(e, ctx)
	sql, args := ResolveExpr(resolved, d)
	return sql, args, nil
}

// QuoteAlias renders a SQL identifier alias for a "Cube.field"
// member reference, quoted as one combined string per spec §4.10 step
// 9 ("explicit quoting of the "cube.field" aliases").
func QuoteAlias(d dialect.Adapter, ref string) string {
	return d.QuoteIdent(ref)
}

// joinNonEmpty joins non-empty SQL fragments with sep, skipping blanks
// so optional clauses (WHERE, HAVING, ORDER BY) disappear cleanly when
// there is nothing to say.
func joinNonEmpty(parts []string, sep string) string {
	var nonEmpty []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, sep)
}
