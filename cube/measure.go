package cube

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/semcube/semcube/expr"
	"github.com/semcube/semcube/filter"
)

// MeasureKind enumerates every measure variant from spec §3: simple
// aggregates, the calculated-measure template, and every post-
// aggregation window function.
type MeasureKind string

const (
	Count               MeasureKind = "count"
	CountDistinct       MeasureKind = "countDistinct"
	CountDistinctApprox MeasureKind = "countDistinctApprox"
	Sum                 MeasureKind = "sum"
	Avg                 MeasureKind = "avg"
	Min                 MeasureKind = "min"
	Max                 MeasureKind = "max"
	Number              MeasureKind = "number"
	Calculated          MeasureKind = "calculated"

	Lag        MeasureKind = "lag"
	Lead       MeasureKind = "lead"
	Rank       MeasureKind = "rank"
	DenseRank  MeasureKind = "denseRank"
	RowNumber  MeasureKind = "rowNumber"
	Ntile      MeasureKind = "ntile"
	FirstValue MeasureKind = "firstValue"
	LastValue  MeasureKind = "lastValue"
	MovingAvg  MeasureKind = "movingAvg"
	MovingSum  MeasureKind = "movingSum"
)

// IsSimpleAggregate reports whether k is a plain SQL aggregate (or
// Number, which is an un-aggregated scalar expression).
func (k MeasureKind) IsSimpleAggregate() bool {
	switch k {
	case Count, CountDistinct, CountDistinctApprox, Sum, Avg, Min, Max, Number:
		return true
	default:
		return false
	}
}

// IsWindow reports whether k is a post-aggregation window measure.
func (k MeasureKind) IsWindow() bool {
	switch k {
	case Lag, Lead, Rank, DenseRank, RowNumber, Ntile, FirstValue, LastValue, MovingAvg, MovingSum:
		return true
	default:
		return false
	}
}

// WindowOperation is applied to the pairing of a window function's
// result with its underlying base measure (spec §4.11).
type WindowOperation string

const (
	Difference    WindowOperation = "difference"
	Ratio         WindowOperation = "ratio"
	PercentChange WindowOperation = "percentChange"
	RawWindow     WindowOperation = "raw"
)

// DefaultOperation returns the operation a window measure falls back to
// when WindowConfig.Operation is empty: lag/lead default to difference,
// everything else defaults to raw (spec §4.11).
func (k MeasureKind) DefaultOperation() WindowOperation {
	switch k {
	case Lag, Lead:
		return Difference
	default:
		return RawWindow
	}
}

// OrderField is one `{field, direction}` entry in a window's ORDER BY.
// An empty Field orders by the window's own base measure (spec §4.11:
// "non-dimension fields may reference the base measure itself, used by
// RANK"). Granularity, if set, truncates a time dimension field to that
// granularity before ordering by it; empty means order by the raw column.
type OrderField struct {
	Field       string
	Direction   string // "asc" | "desc"
	Granularity string
}

// WindowFrame overrides the default OVER() frame, e.g. ROWS BETWEEN n
// PRECEDING AND CURRENT ROW for movingAvg/movingSum.
type WindowFrame struct {
	Preceding int // number of rows preceding; 0 means "unbounded" when Unbounded is true
	Unbounded bool
}

// WindowConfig configures a post-aggregation window measure.
type WindowConfig struct {
	Measure     string // base measure ref, "name" or "Cube.name"
	Operation   WindowOperation
	OrderBy     []OrderField
	PartitionBy []string // dimension refs
	Offset      int       // lag/lead offset, default 1
	DefaultValue any
	NTile       int
	Frame       *WindowFrame
}

// Measure is a single measure definition. Which fields are meaningful
// depends on Kind: simple aggregates use SQL/Filters, Calculated uses
// Template/Dependencies, window kinds use Window.
type Measure struct {
	Name        string
	Title       string
	Description string
	Kind        MeasureKind

	// Simple aggregate / number.
	SQL     func(ctx *QueryContext) (expr.Expr, error)
	Filters []filter.Condition

	// Calculated.
	Template     string
	Dependencies []string // auto-populated by Registry.Register from Template

	// Post-aggregation window.
	Window *WindowConfig
}

// templateRefPattern matches `{name}` or `{Cube.name}` placeholders in a
// calculated measure's Template.
var templateRefPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)?)\}`)

// parseTemplateRefs extracts every `{ref}` placeholder from a calculated
// measure's template, in first-occurrence order, deduplicated.
func parseTemplateRefs(template string) []string {
	matches := templateRefPattern.FindAllStringSubmatch(template, -1)
	seen := make(map[string]bool, len(matches))
	var refs []string
	for _, m := range matches {
		ref := m[1]
		if !seen[ref] {
			seen[ref] = true
			refs = append(refs, ref)
		}
	}
	return refs
}

// substituteTemplate replaces every `{ref}` placeholder in template with
// the string resolve(ref) returns.
func substituteTemplate(template string, resolve func(ref string) string) string {
	return templateRefPattern.ReplaceAllStringFunc(template, func(m string) string {
		ref := m[1 : len(m)-1]
		return resolve(ref)
	})
}

// qualify returns the fully-qualified "Cube.name" form of a same-cube
// bare ref, leaving already-qualified refs untouched.
func qualify(cubeName, ref string) string {
	if strings.Contains(ref, ".") {
		return ref
	}
	return fmt.Sprintf("%s.%s", cubeName, ref)
}
