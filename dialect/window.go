package dialect

import (
	"fmt"
	"strings"
)

// windowCallSQL renders the function-call portion of a window
// expression (everything before " OVER (...)"), shared by every
// adapter since the SQL standard window function names themselves
// don't vary across Postgres/MySQL 8+/SQLite 3.25+/DuckDB — only the
// OVER-clause frame syntax and placeholder style do.
func windowCallSQL(kind string, baseExprSQL string, opts WindowOptions) string {
	switch kind {
	case "lag":
		if opts.DefaultValue != "" {
			return fmt.Sprintf("LAG(%s, %d, %s)", baseExprSQL, offsetOrDefault(opts.Offset), opts.DefaultValue)
		}
		return fmt.Sprintf("LAG(%s, %d)", baseExprSQL, offsetOrDefault(opts.Offset))
	case "lead":
		if opts.DefaultValue != "" {
			return fmt.Sprintf("LEAD(%s, %d, %s)", baseExprSQL, offsetOrDefault(opts.Offset), opts.DefaultValue)
		}
		return fmt.Sprintf("LEAD(%s, %d)", baseExprSQL, offsetOrDefault(opts.Offset))
	case "rank":
		return "RANK()"
	case "denseRank":
		return "DENSE_RANK()"
	case "rowNumber":
		return "ROW_NUMBER()"
	case "ntile":
		n := opts.NTile
		if n <= 0 {
			n = 4
		}
		return fmt.Sprintf("NTILE(%d)", n)
	case "firstValue":
		return fmt.Sprintf("FIRST_VALUE(%s)", baseExprSQL)
	case "lastValue":
		return fmt.Sprintf("LAST_VALUE(%s)", baseExprSQL)
	case "movingAvg":
		return fmt.Sprintf("AVG(%s)", baseExprSQL)
	case "movingSum":
		return fmt.Sprintf("SUM(%s)", baseExprSQL)
	default:
		return baseExprSQL
	}
}

func offsetOrDefault(offset int) int {
	if offset == 0 {
		return 1
	}
	return offset
}

// overClauseSQL renders the body of an OVER (...) clause: PARTITION BY,
// ORDER BY, and a frame only when opts.HasFrame is set. The default
// bounded frame for movingAvg/movingSum is chosen by the caller
// (measure.BuildWindow), not here.
func overClauseSQL(partitionBy, orderBy []string, opts WindowOptions) string {
	var parts []string
	if len(partitionBy) > 0 {
		parts = append(parts, "PARTITION BY "+strings.Join(partitionBy, ", "))
	}
	if len(orderBy) > 0 {
		parts = append(parts, "ORDER BY "+strings.Join(orderBy, ", "))
	}
	if frame := frameClauseSQL(opts); frame != "" {
		parts = append(parts, frame)
	}
	return strings.Join(parts, " ")
}

func frameClauseSQL(opts WindowOptions) string {
	if !opts.HasFrame {
		return ""
	}
	if opts.FrameUnbounded {
		return "ROWS BETWEEN UNBOUNDED PRECEDING AND CURRENT ROW"
	}
	return fmt.Sprintf("ROWS BETWEEN %d PRECEDING AND CURRENT ROW", opts.FramePreceding)
}
