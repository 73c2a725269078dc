package measure

import (
	"fmt"

	"github.com/semcube/semcube/cube"
	"github.com/semcube/semcube/dialect"
)

// BuildWindow composes a post-aggregation window measure's SQL (spec
// §4.11): `FUNC(args) OVER (PARTITION BY ... ORDER BY ... frame?)`,
// then applies WindowConfig.Operation against the resolved base
// measure expression. partitionBySQL/orderBySQL are already-resolved
// SQL fragments (dimension refs, or granularity-truncated time
// dimension expressions) — resolving a ref to SQL text requires
// dialect quoting and CTE-alias awareness that belongs to sqlgen, not
// here; this function only composes the window call and the
// before/after operation arithmetic.
func BuildWindow(m *cube.Measure, d dialect.Adapter, baseExprSQL string, partitionBySQL, orderBySQL []string) (string, error) {
	if !m.Kind.IsWindow() {
		return "", fmt.Errorf("measure %q is not a window measure", m.Name)
	}
	if m.Window == nil {
		return "", fmt.Errorf("measure %q: window config is required for kind %q", m.Name, m.Kind)
	}
	cfg := m.Window

	opts := dialect.WindowOptions{Offset: cfg.Offset, NTile: cfg.NTile}
	if cfg.DefaultValue != nil {
		opts.DefaultValue = fmt.Sprintf("%v", cfg.DefaultValue)
	}
	if cfg.Frame != nil {
		opts.HasFrame = true
		opts.FramePreceding = cfg.Frame.Preceding
		opts.FrameUnbounded = cfg.Frame.Unbounded
	} else if m.Kind == cube.MovingAvg || m.Kind == cube.MovingSum {
		// movingAvg/movingSum with no explicit frame would just be a
		// plain running aggregate over the whole partition, which is
		// never useful for a "moving" measure, so default to a
		// 2-preceding-rows window (3-point moving window including the
		// current row) unless the cube author overrides it.
		opts.HasFrame = true
		opts.FramePreceding = 2
	}

	windowSQL := d.BuildWindowFunction(string(m.Kind), baseExprSQL, partitionBySQL, orderBySQL, opts)

	op := cfg.Operation
	if op == "" {
		op = m.Kind.DefaultOperation()
	}
	return applyOperation(op, baseExprSQL, windowSQL), nil
}

// applyOperation pairs a window function's result with its base
// measure expression per spec §4.11's four operations.
func applyOperation(op cube.WindowOperation, baseExprSQL, windowSQL string) string {
	switch op {
	case cube.Difference:
		return fmt.Sprintf("(%s) - (%s)", baseExprSQL, windowSQL)
	case cube.Ratio:
		return fmt.Sprintf("(%s) / NULLIF((%s), 0)", baseExprSQL, windowSQL)
	case cube.PercentChange:
		return fmt.Sprintf("(((%s) - (%s)) / NULLIF((%s), 0)) * 100", baseExprSQL, windowSQL, windowSQL)
	default: // cube.RawWindow
		return windowSQL
	}
}
