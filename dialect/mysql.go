package dialect

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/semcube/semcube/query"
)

// MySQLAdapter targets MySQL 8+ (the first version with window
// functions and CTEs, both of which this compiler depends on). MySQL
// has no native array type, no BOOLEAN (it's a TINYINT(1) alias), and
// returns DECIMAL/BIGINT aggregate results as strings over the wire —
// hence CoerceNumericString.
type MySQLAdapter struct{}

func NewMySQL() *MySQLAdapter { return &MySQLAdapter{} }

func (a *MySQLAdapter) Name() Name { return MySQL }

func (a *MySQLAdapter) QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (a *MySQLAdapter) Placeholder(int) string { return "?" }

func (a *MySQLAdapter) TruncateDate(exprSQL string, granularity query.Granularity) string {
	switch granularity {
	case query.Second:
		return fmt.Sprintf("DATE_FORMAT(%s, '%%Y-%%m-%%d %%H:%%i:%%S')", exprSQL)
	case query.Minute:
		return fmt.Sprintf("DATE_FORMAT(%s, '%%Y-%%m-%%d %%H:%%i:00')", exprSQL)
	case query.Hour:
		return fmt.Sprintf("DATE_FORMAT(%s, '%%Y-%%m-%%d %%H:00:00')", exprSQL)
	case query.Day:
		return fmt.Sprintf("DATE(%s)", exprSQL)
	case query.Week:
		// MySQL weeks start Sunday by default; subtract WEEKDAY(expr)
		// (Monday=0) to truncate to the Monday of the week, matching
		// the other three dialects' ISO-week convention.
		return fmt.Sprintf("DATE_SUB(DATE(%s), INTERVAL WEEKDAY(%s) DAY)", exprSQL, exprSQL)
	case query.Month:
		return fmt.Sprintf("DATE_FORMAT(%s, '%%Y-%%m-01')", exprSQL)
	case query.Quarter:
		return fmt.Sprintf("MAKEDATE(YEAR(%s), 1) + INTERVAL (QUARTER(%s)-1) QUARTER", exprSQL, exprSQL)
	case query.Year:
		return fmt.Sprintf("DATE_FORMAT(%s, '%%Y-01-01')", exprSQL)
	default:
		return exprSQL
	}
}

func (a *MySQLAdapter) BuildAvg(exprSQL string) string {
	// MySQL's AVG() already promotes to DECIMAL/DOUBLE for integer
	// inputs (unlike a raw SUM(x)/COUNT(x) division, which would
	// truncate); no CAST is required for AVG() itself.
	return fmt.Sprintf("AVG(%s)", exprSQL)
}

func (a *MySQLAdapter) BoolLiteral(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func (a *MySQLAdapter) BuildWindowFunction(kind string, baseExprSQL string, partitionBy, orderBy []string, opts WindowOptions) string {
	return fmt.Sprintf("%s OVER (%s)", windowCallSQL(kind, baseExprSQL, opts), overClauseSQL(partitionBy, orderBy, opts))
}

func (a *MySQLAdapter) BuildArrayOperator(string, query.Operator, []any) (string, []any, bool) {
	// MySQL has no array column type in this compiler's scope; callers
	// must reject arrayContains/arrayOverlaps/arrayContained filters
	// against a MySQL-backed cube rather than emulate them over JSON.
	return "", nil, false
}

func (a *MySQLAdapter) ConvertTimeDimensionResult(v any) any { return v }

func (a *MySQLAdapter) CoerceNumericString() bool { return true }

func (a *MySQLAdapter) SupportsPlaceholderReuse() bool { return false }

func (a *MySQLAdapter) UnwrapError(err error) DriverError {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return DriverError{Code: strconv.FormatUint(uint64(myErr.Number), 10), Detail: myErr.Message, Cause: err}
	}
	return DriverError{Cause: err}
}
