package cube

import "github.com/semcube/semcube/expr"

// DimensionKind enumerates the four dimension types from spec §3.
type DimensionKind string

const (
	DimString  DimensionKind = "string"
	DimNumber  DimensionKind = "number"
	DimBoolean DimensionKind = "boolean"
	DimTime    DimensionKind = "time"
)

// Dimension is a row-level column used for grouping/filtering. A time
// dimension additionally participates in granularity truncation when
// requested via a query's timeDimensions entry.
type Dimension struct {
	Name        string
	Title       string
	Description string
	Kind        DimensionKind
	SQL         func(ctx *QueryContext) (expr.Expr, error)
	PrimaryKey  bool
}
