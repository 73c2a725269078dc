package sqlgen

import (
	"fmt"
	"strings"
	"time"

	"github.com/semcube/semcube/daterange"
	"github.com/semcube/semcube/dialect"
	"github.com/semcube/semcube/query"
)

// BuildCondition renders one leaf filter.Condition against an
// already-resolved column SQL reference, returning dialect-neutral
// '?' placeholders and their bound args (spec §4.5/§4.9: the same
// shape whether the condition ends up in a CTE WHERE, an outer WHERE,
// or a HAVING clause — the caller decides which clause it belongs in).
func BuildCondition(colSQL string, c query.Condition, d dialect.Adapter, now time.Time) (string, []any, error) {
	switch c.Operator {
	case query.Equals:
		return inOrEq(colSQL, c.Values, false), c.Values, nil
	case query.NotEquals:
		return inOrEq(colSQL, c.Values, true), c.Values, nil
	case query.Set:
		return fmt.Sprintf("%s IS NOT NULL", colSQL), nil, nil
	case query.NotSet:
		return fmt.Sprintf("%s IS NULL", colSQL), nil, nil
	case query.GT:
		return fmt.Sprintf("%s > ?", colSQL), oneValue(c.Values), nil
	case query.GTE:
		return fmt.Sprintf("%s >= ?", colSQL), oneValue(c.Values), nil
	case query.LT:
		return fmt.Sprintf("%s < ?", colSQL), oneValue(c.Values), nil
	case query.LTE:
		return fmt.Sprintf("%s <= ?", colSQL), oneValue(c.Values), nil
	case query.Contains:
		return likeGroup(colSQL, c.Values, "%%%s%%", false), likeArgs(c.Values, "%%%s%%"), nil
	case query.NotContains:
		return likeGroup(colSQL, c.Values, "%%%s%%", true), likeArgs(c.Values, "%%%s%%"), nil
	case query.StartsWith:
		return likeGroup(colSQL, c.Values, "%s%%", false), likeArgs(c.Values, "%s%%"), nil
	case query.NotStartsWith:
		return likeGroup(colSQL, c.Values, "%s%%", true), likeArgs(c.Values, "%s%%"), nil
	case query.EndsWith:
		return likeGroup(colSQL, c.Values, "%%%s", false), likeArgs(c.Values, "%%%s"), nil
	case query.NotEndsWith:
		return likeGroup(colSQL, c.Values, "%%%s", true), likeArgs(c.Values, "%%%s"), nil
	case query.Between:
		if len(c.Values) != 2 {
			return "", nil, fmt.Errorf("between filter on %q requires exactly 2 values, got %d", "", len(c.Values))
		}
		return fmt.Sprintf("%s BETWEEN ? AND ?", colSQL), c.Values, nil
	case query.BeforeDate:
		return fmt.Sprintf("%s < ?", colSQL), oneValue(c.Values), nil
	case query.AfterDate:
		return fmt.Sprintf("%s > ?", colSQL), oneValue(c.Values), nil
	case query.InDateRange:
		return buildDateRangeCondition(colSQL, c, now)
	case query.ArrayContains, query.ArrayOverlaps, query.ArrayContained:
		sql, args, ok := d.BuildArrayOperator(colSQL, c.Operator, c.Values)
		if !ok {
			return "", nil, fmt.Errorf("dialect %s does not support array operator %q", d.Name(), c.Operator)
		}
		return sql, args, nil
	default:
		return "", nil, fmt.Errorf("unsupported filter operator %q", c.Operator)
	}
}

// buildDateRangeCondition resolves c.DateRange (relative or literal)
// and emits a BETWEEN against colSQL.
func buildDateRangeCondition(colSQL string, c query.Condition, now time.Time) (string, []any, error) {
	if c.DateRange == nil {
		return "", nil, fmt.Errorf("inDateRange filter on requires a dateRange")
	}
	r, err := daterange.ResolvePair(c.DateRange.Relative, c.DateRange.Start, c.DateRange.End, now)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("%s BETWEEN ? AND ?", colSQL), []any{r.Start, r.End}, nil
}

func oneValue(values []any) []any {
	if len(values) == 0 {
		return nil
	}
	return values[:1]
}

func inOrEq(colSQL string, values []any, negate bool) string {
	if len(values) <= 1 {
		if negate {
			return fmt.Sprintf("%s <> ?", colSQL)
		}
		return fmt.Sprintf("%s = ?", colSQL)
	}
	placeholders := make([]string, len(values))
	for i := range values {
		placeholders[i] = "?"
	}
	if negate {
		return fmt.Sprintf("%s NOT IN (%s)", colSQL, strings.Join(placeholders, ", "))
	}
	return fmt.Sprintf("%s IN (%s)", colSQL, strings.Join(placeholders, ", "))
}

// likeGroup ORs (or, negated, ANDs) a LIKE predicate per value, since
// "contains any of these values" is the natural multi-value reading
// for a string match operator (equals/notEquals already cover exact
// set membership via IN/NOT IN).
func likeGroup(colSQL string, values []any, pattern string, negate bool) string {
	if len(values) == 0 {
		values = []any{""}
	}
	parts := make([]string, len(values))
	keyword := "LIKE"
	joiner := " OR "
	if negate {
		keyword = "NOT LIKE"
		joiner = " AND "
	}
	for i := range values {
		parts[i] = fmt.Sprintf("%s %s ?", colSQL, keyword)
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return "(" + strings.Join(parts, joiner) + ")"
}

func likeArgs(values []any, pattern string) []any {
	if len(values) == 0 {
		values = []any{""}
	}
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = fmt.Sprintf(pattern, fmt.Sprintf("%v", v))
	}
	return out
}
