// Package dialect implements the four SQL-dialect adapters spec §6
// requires: Postgres, MySQL, SQLite, and DuckDB. Each adapter emits
// dialect-specific SQL fragments (date truncation, boolean coercion,
// window-frame syntax, array operators, parameter placeholders) and
// normalizes driver-specific result values and errors.
//
// No pack repo builds a query compiler's dialect layer directly;
// this package is grounded on sqldef's per-engine adapter/<dialect>
// split (identifier quoting, placeholder style) generalized from
// "diff a schema" to "emit a fragment" — see DESIGN.md.
package dialect

import (
	"github.com/semcube/semcube/query"
)

// Name identifies one of the four supported engines.
type Name string

const (
	Postgres Name = "postgres"
	MySQL    Name = "mysql"
	SQLite   Name = "sqlite"
	DuckDB   Name = "duckdb"
)

// WindowOptions configures a dialect's OVER() clause emission, mirroring
// cube.WindowConfig's dialect-relevant fields (spec §4.11).
type WindowOptions struct {
	Offset       int    // lag/lead offset
	NTile        int    // ntile bucket count
	DefaultValue string // pre-rendered SQL literal for lag/lead's default, "" if none
	FramePreceding int
	FrameUnbounded bool
	HasFrame       bool
}

// DriverError is the normalized shape of a driver failure, per spec §7:
// "preserves the driver error code, detail, and hint fields when
// present." Adapters that have no structured error type (DuckDB) return
// an empty DriverError with Cause set to the original error.
type DriverError struct {
	Code   string
	Detail string
	Hint   string
	Cause  error
}

// Adapter is the per-engine contract spec §6 specifies. Every SQL
// fragment method takes already-rendered operand text (column
// references, sub-expressions) and returns dialect-correct SQL text;
// the adapter never sees an expr.Expr directly — sqlgen resolves
// expressions to text via the adapter's QuoteIdent/quoting rules first.
type Adapter interface {
	Name() Name

	// QuoteIdent quotes a single identifier (table or column name) in
	// the dialect's native quoting style.
	QuoteIdent(name string) string

	// Placeholder renders the i'th (1-based) positional bind parameter.
	Placeholder(i int) string

	// TruncateDate truncates a timestamp expression to granularity.
	TruncateDate(exprSQL string, granularity query.Granularity) string

	// BuildAvg wraps expr in whatever CAST the engine needs to avoid
	// integer division in an AVG() aggregate.
	BuildAvg(exprSQL string) string

	// BoolLiteral renders a boolean literal; some engines (MySQL) lack
	// a native BOOLEAN type and use TINYINT(1) with 0/1 literals.
	BoolLiteral(b bool) string

	// BuildWindowFunction composes `FUNC(args) OVER (PARTITION BY ...
	// ORDER BY ... frame?)` for one of the MeasureKind window kinds
	// (spec §4.11). kind is the lowercase MeasureKind string (e.g.
	// "lag", "movingAvg"); baseExprSQL is the already-resolved base
	// aggregate expression.
	BuildWindowFunction(kind string, baseExprSQL string, partitionBy, orderBy []string, opts WindowOptions) string

	// BuildArrayOperator builds an array-membership predicate for one of
	// arrayContains/arrayOverlaps/arrayContained, returning ok=false if
	// the dialect has no native array support (MySQL, SQLite) — callers
	// fall back to an error or an emulated form as appropriate.
	BuildArrayOperator(colSQL string, op query.Operator, values []any) (sql string, args []any, ok bool)

	// ConvertTimeDimensionResult normalizes one driver-returned time
	// value into a canonical form (spec executor step 8).
	ConvertTimeDimensionResult(v any) any

	// CoerceNumericString reports whether a result column returned as a
	// string by the driver (MySQL decimals) should be parsed back into a
	// numeric Go value. Only the MySQL adapter returns true.
	CoerceNumericString() bool

	// UnwrapError extracts code/detail/hint from a driver error, per
	// spec §7. Adapters with no structured driver error type (DuckDB)
	// return a DriverError carrying only Cause.
	UnwrapError(err error) DriverError

	// SupportsPlaceholderReuse reports whether this dialect's
	// Placeholder syntax lets the same bound parameter be referenced
	// at more than one position in a statement (Postgres/DuckDB's
	// numbered $N). MySQL/SQLite's unnumbered '?' has no such
	// reference; every occurrence there consumes the next value in
	// sequence, so a repeated literal value needs its own copy.
	SupportsPlaceholderReuse() bool
}

// granularityOrder ranks a granularity from finest (second = 0) to
// coarsest (year = 7), returning -1 for an unknown granularity; kept
// here since all four adapters share the same conceptual bucket
// boundaries.
func granularityOrder(g query.Granularity) int {
	switch g {
	case query.Second:
		return 0
	case query.Minute:
		return 1
	case query.Hour:
		return 2
	case query.Day:
		return 3
	case query.Week:
		return 4
	case query.Month:
		return 5
	case query.Quarter:
		return 6
	case query.Year:
		return 7
	default:
		return -1
	}
}
