package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCubeAndField(t *testing.T) {
	assert.Equal(t, "Employees", Cube("Employees.name"))
	assert.Equal(t, "name", Field("Employees.name"))
	assert.Equal(t, "", Cube("noDot"))
	assert.Equal(t, "noDot", Field("noDot"))
}

func TestFlattenNested(t *testing.T) {
	f := And{Filters: []Filter{
		Condition{Member: "Employees.active", Operator: Equals, Values: []any{true}},
		Or{Filters: []Filter{
			Condition{Member: "Employees.dept", Operator: Equals, Values: []any{"eng"}},
			Condition{Member: "Employees.dept", Operator: Equals, Values: []any{"sales"}},
		}},
	}}

	conds := Flatten(f)
	assert.Len(t, conds, 3)
}

func TestSingleCube(t *testing.T) {
	same := And{Filters: []Filter{
		Condition{Member: "Employees.active", Operator: Equals},
		Condition{Member: "Employees.dept", Operator: Equals},
	}}
	cube, ok := SingleCube(same)
	assert.True(t, ok)
	assert.Equal(t, "Employees", cube)

	mixed := Or{Filters: []Filter{
		Condition{Member: "Employees.active", Operator: Equals},
		Condition{Member: "Productivity.linesOfCode", Operator: GT},
	}}
	_, ok = SingleCube(mixed)
	assert.False(t, ok)
}

func TestIsArrayOperator(t *testing.T) {
	assert.True(t, ArrayContains.IsArrayOperator())
	assert.True(t, ArrayOverlaps.IsArrayOperator())
	assert.True(t, ArrayContained.IsArrayOperator())
	assert.False(t, Equals.IsArrayOperator())
}

func TestSortedValueStrings(t *testing.T) {
	c := Condition{Values: []any{3, 1, 2}}
	assert.Equal(t, []string{"1", "2", "3"}, c.SortedValueStrings())
}
