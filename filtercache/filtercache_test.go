package filtercache

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semcube/semcube/filter"
)

func TestGetOrBuildCachesAcrossCalls(t *testing.T) {
	c := New()
	calls := 0
	build := func() (Fragment, error) {
		calls++
		return Fragment{SQL: "x = $1", Args: []any{1}}, nil
	}

	frag1, err := c.GetOrBuild("k1", build)
	require.NoError(t, err)
	frag2, err := c.GetOrBuild("k1", build)
	require.NoError(t, err)

	assert.Equal(t, 1, calls, "build should only run once for the same key")
	assert.Equal(t, frag1, frag2)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Size)
}

func TestGetOrBuildPropagatesBuildError(t *testing.T) {
	c := New()
	wantErr := errors.New("boom")
	_, err := c.GetOrBuild("k", func() (Fragment, error) {
		return Fragment{}, wantErr
	})
	assert.ErrorIs(t, err, wantErr)

	// A failed build must not poison the cache with an empty fragment.
	_, ok := c.Peek("k")
	assert.False(t, ok)
}

func TestKeyForIsContentNotIdentity(t *testing.T) {
	c1 := filter.Condition{Member: "Employees.active", Operator: filter.Equals, Values: []any{true}}
	c2 := filter.Condition{Member: "Employees.active", Operator: filter.Equals, Values: []any{true}}
	assert.Equal(t, KeyFor(c1), KeyFor(c2))

	c3 := filter.Condition{Member: "Employees.active", Operator: filter.Equals, Values: []any{false}}
	assert.NotEqual(t, KeyFor(c1), KeyFor(c3))
}

func TestKeyForValueOrderInsensitive(t *testing.T) {
	c1 := filter.Condition{Member: "Employees.dept", Operator: filter.Equals, Values: []any{"eng", "sales"}}
	c2 := filter.Condition{Member: "Employees.dept", Operator: filter.Equals, Values: []any{"sales", "eng"}}
	assert.Equal(t, KeyFor(c1), KeyFor(c2))
}

func TestPropagatingKeyForDeterministic(t *testing.T) {
	conds := []filter.Condition{{Member: "Employees.active", Operator: filter.Equals, Values: []any{true}}}
	k1 := PropagatingKeyFor("Employees", "productivity_agg", conds)
	k2 := PropagatingKeyFor("Employees", "productivity_agg", conds)
	assert.Equal(t, k1, k2)

	k3 := PropagatingKeyFor("Employees", "other_agg", conds)
	assert.NotEqual(t, k1, k3)
}
