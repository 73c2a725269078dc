package gapfill

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semcube/semcube/query"
)

var fixedNow = time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

func TestFillNoOpWithoutFlag(t *testing.T) {
	rows := []map[string]any{{"Sales.date": time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}}
	td := query.TimeDimension{Dimension: "Sales.date"}
	out, err := Fill(rows, td, nil, fixedNow, nil)
	require.NoError(t, err)
	assert.Same(t, &rows[0], &out[0])
}

func TestFillInsertsMissingDailyBuckets(t *testing.T) {
	rangePair := query.DateRangePair{"2024-01-01", "2024-01-05"}
	td := query.TimeDimension{
		Dimension:        "Sales.date",
		Granularity:      query.Day,
		DateRange:        &rangePair,
		FillMissingDates: true,
	}
	rows := []map[string]any{
		{"Sales.date": time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "Sales.revenue": 10},
		{"Sales.date": time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), "Sales.revenue": 20},
	}

	out, err := Fill(rows, td, []string{"Sales.revenue"}, fixedNow, nil)
	require.NoError(t, err)
	require.Len(t, out, 4) // Jan 1,2,3,4 (end exclusive)

	assert.Equal(t, 10, out[0]["Sales.revenue"])
	assert.Equal(t, 0, out[1]["Sales.revenue"])
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), out[1]["Sales.date"])
	assert.Equal(t, 20, out[2]["Sales.revenue"])
	assert.Equal(t, 0, out[3]["Sales.revenue"])
}

func TestFillHonorsCustomFillValue(t *testing.T) {
	rangePair := query.DateRangePair{"2024-01-01", "2024-01-03"}
	td := query.TimeDimension{
		Dimension:        "Sales.date",
		Granularity:      query.Day,
		DateRange:        &rangePair,
		FillMissingDates: true,
	}
	out, err := Fill(nil, td, []string{"Sales.revenue"}, fixedNow, -1)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, -1, out[0]["Sales.revenue"])
	assert.Equal(t, -1, out[1]["Sales.revenue"])
}

func TestFillCarriesDimensionalContextPerSeries(t *testing.T) {
	rangePair := query.DateRangePair{"2024-01-01", "2024-01-03"}
	td := query.TimeDimension{
		Dimension:        "Sales.date",
		Granularity:      query.Day,
		DateRange:        &rangePair,
		FillMissingDates: true,
	}
	rows := []map[string]any{
		{"Sales.date": time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "Sales.region": "east", "Sales.revenue": 5},
		{"Sales.date": time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "Sales.region": "west", "Sales.revenue": 7},
	}
	out, err := Fill(rows, td, []string{"Sales.revenue"}, fixedNow, nil)
	require.NoError(t, err)
	require.Len(t, out, 4) // 2 series x 2 buckets

	eastGapFilled := out[1]
	assert.Equal(t, "east", eastGapFilled["Sales.region"])
	assert.Equal(t, 0, eastGapFilled["Sales.revenue"])

	westGapFilled := out[3]
	assert.Equal(t, "west", westGapFilled["Sales.region"])
	assert.Equal(t, 0, westGapFilled["Sales.revenue"])
}

func TestFillRejectsMissingDateRange(t *testing.T) {
	td := query.TimeDimension{Dimension: "Sales.date", FillMissingDates: true}
	_, err := Fill(nil, td, nil, fixedNow, nil)
	assert.Error(t, err)
}
