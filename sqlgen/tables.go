package sqlgen

import (
	"fmt"
	"strings"

	"github.com/semcube/semcube/cube"
	"github.com/semcube/semcube/dialect"
	"github.com/semcube/semcube/expr"
)

// tableRefSQL renders a FROM/JOIN target: schema-qualified, aliased
// only when the alias differs from the physical name.
func tableRefSQL(t expr.Table, d dialect.Adapter) string {
	name := d.QuoteIdent(t.Name)
	if t.Schema != "" {
		name = d.QuoteIdent(t.Schema) + "." + name
	}
	if t.Alias != "" && t.Alias != t.Name {
		return name + " AS " + d.QuoteIdent(t.Alias)
	}
	return name
}

// buildIntraJoins renders a cube's own IntraJoin list (the joins baked
// into its BaseQueryDefinition) as a sequence of " <KIND> JOIN ... ON
// ..." clauses.
func (c *Compiler) buildIntraJoins(joins []cube.IntraJoin) (string, []any, error) {
	var sb strings.Builder
	var args []any
	for _, ij := range joins {
		resolved := expr.Resolve(ij.On, c.Ctx)
		onSQL, onArgs := ResolveExpr(resolved, c.Dialect)
		kind := "INNER"
		if ij.Kind == cube.LeftJoin {
			kind = "LEFT"
		}
		fmt.Fprintf(&sb, " %s JOIN %s ON %s", kind, tableRefSQL(ij.Table, c.Dialect), onSQL)
		args = append(args, onArgs...)
	}
	return sb.String(), args, nil
}

// baseWhereSQL resolves a cube's BaseQueryDefinition.Where (the
// security predicate, possibly nil) to SQL text plus args.
func (c *Compiler) baseWhereSQL(where expr.Expr) (string, []any) {
	if where == nil {
		return "", nil
	}
	resolved := expr.Resolve(where, c.Ctx)
	return ResolveExpr(resolved, c.Dialect)
}
