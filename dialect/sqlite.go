package dialect

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/semcube/semcube/query"
)

// SQLiteAdapter targets SQLite via mattn/go-sqlite3. SQLite has no
// native date type (dates are TEXT/INTEGER/REAL by convention) so
// truncation goes through strftime, and no native BOOLEAN (0/1
// integers), matching its famously dynamic column typing.
type SQLiteAdapter struct{}

func NewSQLite() *SQLiteAdapter { return &SQLiteAdapter{} }

func (a *SQLiteAdapter) Name() Name { return SQLite }

func (a *SQLiteAdapter) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (a *SQLiteAdapter) Placeholder(int) string { return "?" }

func (a *SQLiteAdapter) TruncateDate(exprSQL string, granularity query.Granularity) string {
	switch granularity {
	case query.Second:
		return fmt.Sprintf("strftime('%%Y-%%m-%%d %%H:%%M:%%S', %s)", exprSQL)
	case query.Minute:
		return fmt.Sprintf("strftime('%%Y-%%m-%%d %%H:%%M:00', %s)", exprSQL)
	case query.Hour:
		return fmt.Sprintf("strftime('%%Y-%%m-%%d %%H:00:00', %s)", exprSQL)
	case query.Day:
		return fmt.Sprintf("strftime('%%Y-%%m-%%d', %s)", exprSQL)
	case query.Week:
		return fmt.Sprintf("date(%s, '-6 days', 'weekday 1')", exprSQL)
	case query.Month:
		return fmt.Sprintf("strftime('%%Y-%%m-01', %s)", exprSQL)
	case query.Quarter:
		return fmt.Sprintf("date(%s, 'start of month', printf('-%%d months', (strftime('%%m', %s) - 1) %% 3))", exprSQL, exprSQL)
	case query.Year:
		return fmt.Sprintf("strftime('%%Y-01-01', %s)", exprSQL)
	default:
		return exprSQL
	}
}

func (a *SQLiteAdapter) BuildAvg(exprSQL string) string {
	// SQLite's AVG() always returns a floating-point result regardless
	// of input affinity, so no CAST is needed.
	return fmt.Sprintf("AVG(%s)", exprSQL)
}

func (a *SQLiteAdapter) BoolLiteral(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func (a *SQLiteAdapter) BuildWindowFunction(kind string, baseExprSQL string, partitionBy, orderBy []string, opts WindowOptions) string {
	return fmt.Sprintf("%s OVER (%s)", windowCallSQL(kind, baseExprSQL, opts), overClauseSQL(partitionBy, orderBy, opts))
}

func (a *SQLiteAdapter) BuildArrayOperator(string, query.Operator, []any) (string, []any, bool) {
	// SQLite has no array column type in this compiler's scope.
	return "", nil, false
}

func (a *SQLiteAdapter) ConvertTimeDimensionResult(v any) any { return v }

func (a *SQLiteAdapter) CoerceNumericString() bool { return false }

func (a *SQLiteAdapter) SupportsPlaceholderReuse() bool { return false }

func (a *SQLiteAdapter) UnwrapError(err error) DriverError {
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return DriverError{
			Code:   fmt.Sprintf("%d", liteErr.Code),
			Detail: liteErr.Error(),
			Cause:  err,
		}
	}
	return DriverError{Cause: err}
}
