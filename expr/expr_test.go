package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColumnString(t *testing.T) {
	c := Column{Table: Table{Name: "employees", Alias: "e"}, Name: "salary", Type: TypeNumber}
	assert.Equal(t, "e.salary", c.String())
}

func TestTableRefFallsBackToName(t *testing.T) {
	tb := Table{Name: "employees"}
	assert.Equal(t, "employees", tb.Ref())
}

func TestResolveUnwrapsDynamic(t *testing.T) {
	base := Column{Table: Table{Name: "employees"}, Name: "id", Type: TypeNumber}
	d := Dynamic{Fn: func(ctx any) Expr { return base }}

	resolved := Resolve(d, nil)
	col, ok := resolved.(Column)
	assert.True(t, ok)
	assert.Equal(t, base, col)
}

func TestResolvePassesThroughNonDynamic(t *testing.T) {
	r := Raw{SQL: "COUNT(*)"}
	assert.Equal(t, r, Resolve(r, nil))
}
