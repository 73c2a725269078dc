package compare

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semcube/semcube/query"
)

var fixedNow = time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

func baseQuery() query.SemanticQuery {
	return query.SemanticQuery{
		Measures: []string{"Sales.revenue"},
		TimeDimensions: []query.TimeDimension{
			{
				Dimension:   "Sales.date",
				Granularity: query.Day,
				CompareDateRange: []query.DateRangePair{
					{"2024-01-01", "2024-01-07"},
					{"2023-12-25", "2023-12-31"},
				},
			},
		},
	}
}

func TestApplicable(t *testing.T) {
	assert.True(t, Applicable(baseQuery()))

	plain := query.SemanticQuery{TimeDimensions: []query.TimeDimension{{Dimension: "Sales.date"}}}
	assert.False(t, Applicable(plain))
}

func TestExpandLiteralPeriods(t *testing.T) {
	queries, periods, ok, err := Expand(baseQuery(), fixedNow)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, queries, 2)
	require.Len(t, periods, 2)

	assert.Equal(t, 0, periods[0].Index)
	assert.Equal(t, 1, periods[1].Index)
	assert.Equal(t, "2024-01-01 to 2024-01-07", periods[0].Label)

	for i, q := range queries {
		td := q.TimeDimensions[0]
		require.NotNil(t, td.DateRange, "period %d", i)
		assert.Nil(t, td.CompareDateRange, "period %d", i)
		assert.Equal(t, query.Day, td.Granularity)
	}

	// The original query must not have been mutated.
	original := baseQuery()
	assert.Len(t, original.TimeDimensions[0].CompareDateRange, 2)
}

func TestExpandDefaultsGranularity(t *testing.T) {
	q := baseQuery()
	q.TimeDimensions[0].Granularity = ""
	queries, _, ok, err := Expand(q, fixedNow)
	require.NoError(t, err)
	require.True(t, ok)
	for _, sq := range queries {
		assert.Equal(t, query.Day, sq.TimeDimensions[0].Granularity)
	}
}

func TestExpandRelativeToken(t *testing.T) {
	q := query.SemanticQuery{
		TimeDimensions: []query.TimeDimension{{
			Dimension: "Sales.date",
			CompareDateRange: []query.DateRangePair{
				{"today", ""},
				{"yesterday", ""},
			},
		}},
	}
	_, periods, ok, err := Expand(q, fixedNow)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "today", periods[0].Label)
	assert.Equal(t, "yesterday", periods[1].Label)
	assert.True(t, periods[0].Range.Start.Equal(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)))
}

func TestExpandNotApplicable(t *testing.T) {
	q := query.SemanticQuery{Measures: []string{"Sales.revenue"}}
	queries, periods, ok, err := Expand(q, fixedNow)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, queries)
	assert.Nil(t, periods)
}

func TestRunAndMerge(t *testing.T) {
	queries, periods, ok, err := Expand(baseQuery(), fixedNow)
	require.NoError(t, err)
	require.True(t, ok)

	results, err := Run(context.Background(), queries, func(_ context.Context, index int, _ query.SemanticQuery) ([]map[string]any, error) {
		switch index {
		case 0:
			return []map[string]any{
				{"Sales.date": "2024-01-02", "Sales.revenue": 100},
				{"Sales.date": "2024-01-01", "Sales.revenue": 50},
			}, nil
		case 1:
			return []map[string]any{
				{"Sales.date": "2023-12-26", "Sales.revenue": 20},
			}, nil
		}
		return nil, nil
	})
	require.NoError(t, err)

	merged := Merge(periods, "Sales.date", results)
	require.Len(t, merged, 3)

	// periodIndex 0 rows precede periodIndex 1 rows, and within a
	// period rows are ordered by the time dimension.
	assert.Equal(t, 0, merged[0]["periodIndex"])
	assert.Equal(t, "2024-01-01", merged[0]["Sales.date"])
	assert.Equal(t, 0, merged[1]["periodIndex"])
	assert.Equal(t, "2024-01-02", merged[1]["Sales.date"])
	assert.Equal(t, 1, merged[2]["periodIndex"])
	assert.Equal(t, baseQuery().TimeDimensions[0].CompareDateRange[1][0][:4], "2023")
	assert.Equal(t, "2023-12-25 to 2023-12-31", merged[2]["periodLabel"])

	// The original per-period rows are untouched (Merge copies).
	_, hasPeriodIndex := results[0][0]["periodIndex"]
	assert.False(t, hasPeriodIndex)
}

func TestRunPropagatesError(t *testing.T) {
	queries, _, ok, err := Expand(baseQuery(), fixedNow)
	require.NoError(t, err)
	require.True(t, ok)

	boom := errors.New("boom")
	_, err = Run(context.Background(), queries, func(_ context.Context, index int, _ query.SemanticQuery) ([]map[string]any, error) {
		if index == 1 {
			return nil, boom
		}
		return nil, nil
	})
	assert.ErrorIs(t, err, boom)
}
