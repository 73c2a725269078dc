package cube

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/semcube/semcube/expr"
)

func TestDimensionSQLResolves(t *testing.T) {
	d := &Dimension{
		Name: "status",
		Kind: DimString,
		SQL: func(ctx *QueryContext) (expr.Expr, error) {
			return expr.Column{Table: expr.Table{Name: "orders"}, Name: "status", Type: expr.TypeString}, nil
		},
	}
	e, err := d.SQL(&QueryContext{})
	assert.NoError(t, err)
	assert.Equal(t, "orders.status", e.String())
}
