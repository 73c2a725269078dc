package dialect

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/semcube/semcube/query"
)

// PostgresAdapter targets PostgreSQL via pgx. It is the richest of the
// four adapters: native BOOLEAN, native window-frame syntax, native
// array operators (&&, @>, <@), and structured error codes via
// pgconn.PgError.
type PostgresAdapter struct{}

func NewPostgres() *PostgresAdapter { return &PostgresAdapter{} }

func (a *PostgresAdapter) Name() Name { return Postgres }

func (a *PostgresAdapter) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (a *PostgresAdapter) Placeholder(i int) string {
	return fmt.Sprintf("$%d", i)
}

func (a *PostgresAdapter) TruncateDate(exprSQL string, granularity query.Granularity) string {
	unit := postgresDateTruncUnit(granularity)
	return fmt.Sprintf("date_trunc(%s, %s)", quoteLiteral(unit), exprSQL)
}

func postgresDateTruncUnit(g query.Granularity) string {
	switch g {
	case query.Quarter:
		return "quarter"
	default:
		return string(g)
	}
}

func (a *PostgresAdapter) BuildAvg(exprSQL string) string {
	// Postgres's AVG() on numeric/int columns already returns a numeric
	// (non-truncated) result, so no explicit CAST is required here.
	return fmt.Sprintf("AVG(%s)", exprSQL)
}

func (a *PostgresAdapter) BoolLiteral(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

func (a *PostgresAdapter) BuildWindowFunction(kind string, baseExprSQL string, partitionBy, orderBy []string, opts WindowOptions) string {
	return fmt.Sprintf("%s OVER (%s)", windowCallSQL(kind, baseExprSQL, opts), overClauseSQL(partitionBy, orderBy, opts))
}

// BuildArrayOperator renders its bind marker as the dialect-neutral
// '?' (per expr.Raw's documented convention), not a.Placeholder(1):
// this fragment is spliced into a larger statement before sqlgen's
// final left-to-right placeholder rewrite pass runs, so its position
// among the statement's other parameters isn't known yet.
func (a *PostgresAdapter) BuildArrayOperator(colSQL string, op query.Operator, values []any) (string, []any, bool) {
	switch op {
	case query.ArrayContains:
		return fmt.Sprintf("%s @> ?", colSQL), []any{pgArray(values)}, true
	case query.ArrayOverlaps:
		return fmt.Sprintf("%s && ?", colSQL), []any{pgArray(values)}, true
	case query.ArrayContained:
		return fmt.Sprintf("%s <@ ?", colSQL), []any{pgArray(values)}, true
	default:
		return "", nil, false
	}
}

func (a *PostgresAdapter) ConvertTimeDimensionResult(v any) any { return v }

func (a *PostgresAdapter) CoerceNumericString() bool { return false }

func (a *PostgresAdapter) SupportsPlaceholderReuse() bool { return true }

func (a *PostgresAdapter) UnwrapError(err error) DriverError {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return DriverError{Code: pgErr.Code, Detail: pgErr.Detail, Hint: pgErr.Hint, Cause: err}
	}
	return DriverError{Cause: err}
}

// pgArray renders values as a Go slice suitable for pgx's array
// encoding (pgx encodes []any transparently for an ANY(...) style
// array parameter).
func pgArray(values []any) []any {
	out := make([]any, len(values))
	copy(out, values)
	return out
}

// quoteLiteral renders a single-quoted SQL string literal, used for
// the handful of places (date_trunc's unit argument) where Postgres
// wants a literal rather than a bind parameter.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
