package dialect

import (
	"fmt"
	"strings"

	"github.com/semcube/semcube/query"
)

// DuckDBAdapter targets DuckDB, whose SQL surface is close enough to
// Postgres to reuse its date_trunc syntax (array operators use DuckDB's
// own list functions instead), but whose Go driver
// (github.com/marcboeker/go-duckdb) surfaces plain errors with no
// structured code/detail/hint type — see DESIGN.md for why
// UnwrapError here is the one adapter that can't do better than
// Cause-only.
type DuckDBAdapter struct{}

func NewDuckDB() *DuckDBAdapter { return &DuckDBAdapter{} }

func (a *DuckDBAdapter) Name() Name { return DuckDB }

func (a *DuckDBAdapter) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (a *DuckDBAdapter) Placeholder(i int) string {
	return fmt.Sprintf("$%d", i)
}

func (a *DuckDBAdapter) TruncateDate(exprSQL string, granularity query.Granularity) string {
	unit := postgresDateTruncUnit(granularity)
	return fmt.Sprintf("date_trunc(%s, %s)", quoteLiteral(unit), exprSQL)
}

func (a *DuckDBAdapter) BuildAvg(exprSQL string) string {
	return fmt.Sprintf("AVG(%s)", exprSQL)
}

func (a *DuckDBAdapter) BoolLiteral(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

func (a *DuckDBAdapter) BuildWindowFunction(kind string, baseExprSQL string, partitionBy, orderBy []string, opts WindowOptions) string {
	return fmt.Sprintf("%s OVER (%s)", windowCallSQL(kind, baseExprSQL, opts), overClauseSQL(partitionBy, orderBy, opts))
}

// BuildArrayOperator uses the dialect-neutral '?' bind marker, not
// a.Placeholder(1): see PostgresAdapter.BuildArrayOperator's doc for why.
func (a *DuckDBAdapter) BuildArrayOperator(colSQL string, op query.Operator, values []any) (string, []any, bool) {
	switch op {
	case query.ArrayContains:
		return fmt.Sprintf("list_contains(%s, ?)", colSQL), []any{values}, len(values) == 1
	case query.ArrayOverlaps:
		return fmt.Sprintf("len(list_intersect(%s, ?)) > 0", colSQL), []any{values}, true
	case query.ArrayContained:
		// "every element of colSQL is in values" has no single-expression
		// DuckDB builtin; left unsupported rather than emitting a
		// subquery-shaped fragment from BuildArrayOperator's flat
		// signature.
		return "", nil, false
	default:
		return "", nil, false
	}
}

func (a *DuckDBAdapter) ConvertTimeDimensionResult(v any) any { return v }

func (a *DuckDBAdapter) CoerceNumericString() bool { return false }

func (a *DuckDBAdapter) SupportsPlaceholderReuse() bool { return true }

func (a *DuckDBAdapter) UnwrapError(err error) DriverError {
	return DriverError{Cause: err}
}
