package cachekey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semcube/semcube/filter"
	"github.com/semcube/semcube/query"
)

func TestKeyIsDeterministicAcrossCalls(t *testing.T) {
	q := query.SemanticQuery{Measures: []string{"Orders.revenue"}}
	k1, err := Key(q, nil, Config{Prefix: "semcube"})
	require.NoError(t, err)
	k2, err := Key(q, nil, Config{Prefix: "semcube"})
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
}

func TestKeyIgnoresMeasureArrayOrder(t *testing.T) {
	q1 := query.SemanticQuery{Measures: []string{"Orders.revenue", "Orders.count"}}
	q2 := query.SemanticQuery{Measures: []string{"Orders.count", "Orders.revenue"}}
	k1, err := Key(q1, nil, Config{Prefix: "semcube"})
	require.NoError(t, err)
	k2, err := Key(q2, nil, Config{Prefix: "semcube"})
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
}

func TestKeyIgnoresFilterSiblingOrder(t *testing.T) {
	a := filter.Condition{Member: "Orders.status", Operator: filter.Equals, Values: []any{"paid"}}
	b := filter.Condition{Member: "Orders.region", Operator: filter.Equals, Values: []any{"us"}}

	q1 := query.SemanticQuery{Measures: []string{"Orders.revenue"}, Filters: []query.Filter{a, b}}
	q2 := query.SemanticQuery{Measures: []string{"Orders.revenue"}, Filters: []query.Filter{b, a}}

	k1, err := Key(q1, nil, Config{Prefix: "semcube"})
	require.NoError(t, err)
	k2, err := Key(q2, nil, Config{Prefix: "semcube"})
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
}

func TestKeyIgnoresConditionValueOrder(t *testing.T) {
	q1 := query.SemanticQuery{Measures: []string{"Orders.revenue"}, Filters: []query.Filter{
		filter.Condition{Member: "Orders.region", Operator: filter.Equals, Values: []any{"us", "ca"}},
	}}
	q2 := query.SemanticQuery{Measures: []string{"Orders.revenue"}, Filters: []query.Filter{
		filter.Condition{Member: "Orders.region", Operator: filter.Equals, Values: []any{"ca", "us"}},
	}}
	k1, err := Key(q1, nil, Config{Prefix: "semcube"})
	require.NoError(t, err)
	k2, err := Key(q2, nil, Config{Prefix: "semcube"})
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
}

func TestKeyDiffersForDifferentQueries(t *testing.T) {
	q1 := query.SemanticQuery{Measures: []string{"Orders.revenue"}}
	q2 := query.SemanticQuery{Measures: []string{"Orders.count"}}
	k1, _ := Key(q1, nil, Config{Prefix: "semcube"})
	k2, _ := Key(q2, nil, Config{Prefix: "semcube"})
	assert.NotEqual(t, k1, k2)
}

func TestKeyAppendsContextSegmentOnlyWhenPresent(t *testing.T) {
	q := query.SemanticQuery{Measures: []string{"Orders.revenue"}}
	withoutCtx, err := Key(q, nil, Config{Prefix: "semcube"})
	require.NoError(t, err)
	assert.NotContains(t, withoutCtx, ":ctx:")

	withCtx, err := Key(q, map[string]any{"tenantId": "t1"}, Config{Prefix: "semcube"})
	require.NoError(t, err)
	assert.Contains(t, withCtx, ":ctx:")
}

func TestKeyIgnoresSecurityContextKeyOrder(t *testing.T) {
	q := query.SemanticQuery{Measures: []string{"Orders.revenue"}}
	ctx1 := map[string]any{"a": 1, "b": 2}
	ctx2 := map[string]any{"b": 2, "a": 1}
	k1, err := Key(q, ctx1, Config{Prefix: "semcube"})
	require.NoError(t, err)
	k2, err := Key(q, ctx2, Config{Prefix: "semcube"})
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
}

func TestFnv1a32MatchesKnownVector(t *testing.T) {
	// FNV-1a 32-bit of the empty string is the offset basis itself.
	assert.Equal(t, fnvOffsetBasis32, fnv1a32(nil))
}
