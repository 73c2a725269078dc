package cube

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semcube/semcube/errs"
)

func TestRegisterPopulatesCalculatedDependencies(t *testing.T) {
	r := NewRegistry()
	c := NewCube("Orders", func(ctx *QueryContext) (BaseQueryDefinition, error) {
		return BaseQueryDefinition{}, nil
	})
	c.AddMeasure(&Measure{Name: "revenue", Kind: Sum})
	c.AddMeasure(&Measure{Name: "cost", Kind: Sum})
	c.AddMeasure(&Measure{Name: "margin", Kind: Calculated, Template: "{revenue} - {cost}"})

	require.NoError(t, r.Register(c))

	margin, ok := c.Measure("margin")
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"Orders.revenue", "Orders.cost"}, margin.Dependencies)
}

func TestRegisterRejectsEmptyTemplate(t *testing.T) {
	r := NewRegistry()
	c := NewCube("Orders", nil)
	c.AddMeasure(&Measure{Name: "broken", Kind: Calculated, Template: "no refs here"})

	err := r.Register(c)
	require.Error(t, err)
	var cde *errs.CubeDefinitionError
	assert.True(t, errs.As(err, &cde))
}

func TestRegisterDetectsSelfCycle(t *testing.T) {
	r := NewRegistry()
	c := NewCube("Orders", nil)
	c.AddMeasure(&Measure{Name: "loop", Kind: Calculated, Template: "{loop} + 1"})

	err := r.Register(c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cyclic")
}

func TestRegisterDetectsIndirectCycle(t *testing.T) {
	r := NewRegistry()
	c := NewCube("Orders", nil)
	c.AddMeasure(&Measure{Name: "a", Kind: Calculated, Template: "{b} + 1"})
	c.AddMeasure(&Measure{Name: "b", Kind: Calculated, Template: "{a} + 1"})

	err := r.Register(c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cyclic")
}

func TestRegisterDetectsCrossCubeCycle(t *testing.T) {
	r := NewRegistry()
	orders := NewCube("Orders", nil)
	orders.AddMeasure(&Measure{Name: "a", Kind: Calculated, Template: "{LineItems.b} + 1"})
	require.NoError(t, r.Register(orders))

	lineItems := NewCube("LineItems", nil)
	lineItems.AddMeasure(&Measure{Name: "b", Kind: Calculated, Template: "{Orders.a} + 1"})
	err := r.Register(lineItems)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cyclic")
}

func TestRegisterRejectsUnknownMeasureReference(t *testing.T) {
	r := NewRegistry()
	c := NewCube("Orders", nil)
	c.AddMeasure(&Measure{Name: "margin", Kind: Calculated, Template: "{nonexistent} + 1"})

	err := r.Register(c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown measure")
}

func TestRegistryGetRemoveClear(t *testing.T) {
	r := NewRegistry()
	c := NewCube("Orders", nil)
	require.NoError(t, r.Register(c))

	got, ok := r.Get("Orders")
	assert.True(t, ok)
	assert.Same(t, c, got)

	assert.Equal(t, []string{"Orders"}, r.Names())

	r.Remove("Orders")
	_, ok = r.Get("Orders")
	assert.False(t, ok)

	require.NoError(t, r.Register(c))
	r.Clear()
	assert.Empty(t, r.All())
}
