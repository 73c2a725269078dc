package daterange

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, time.March, 15, 13, 30, 0, 0, time.UTC) // Friday

func TestResolveToday(t *testing.T) {
	r, err := Resolve("today", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), r.Start)
	assert.Equal(t, time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC), r.End)
}

func TestResolveYesterday(t *testing.T) {
	r, err := Resolve("Yesterday", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC), r.Start)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), r.End)
}

func TestResolveThisWeekStartsMonday(t *testing.T) {
	r, err := Resolve("this week", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, time.Monday, r.Start.Weekday())
	assert.True(t, r.Start.Before(fixedNow) || r.Start.Equal(fixedNow))
	assert.Equal(t, 7*24*time.Hour, r.Duration())
}

func TestResolveLastWeek(t *testing.T) {
	thisWeek, err := Resolve("this week", fixedNow)
	require.NoError(t, err)
	lastWeek, err := Resolve("last week", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, thisWeek.Start.AddDate(0, 0, -7), lastWeek.Start)
	assert.Equal(t, thisWeek.Start, lastWeek.End)
}

func TestResolveThisMonth(t *testing.T) {
	r, err := Resolve("this month", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), r.Start)
	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), r.End)
}

func TestResolveLastQuarter(t *testing.T) {
	r, err := Resolve("last quarter", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 10, 1, 0, 0, 0, 0, time.UTC), r.Start)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), r.End)
}

func TestResolveThisYear(t *testing.T) {
	r, err := Resolve("this year", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), r.Start)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), r.End)
}

func TestResolveLastNDays(t *testing.T) {
	r, err := Resolve("last 7 days", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC), r.Start)
	assert.Equal(t, time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC), r.End)
}

func TestResolveLastNMonths(t *testing.T) {
	r, err := Resolve("last 3 months", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 12, 15, 0, 0, 0, 0, time.UTC), r.Start)
}

func TestResolveUnknownToken(t *testing.T) {
	_, err := Resolve("fortnight", fixedNow)
	assert.Error(t, err)
}

func TestResolveNegativeLastNRejected(t *testing.T) {
	_, err := Resolve("last -1 days", fixedNow)
	assert.Error(t, err)
}

func TestPriorReturnsEquivalentPrecedingSpan(t *testing.T) {
	r := Range{Start: time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC), End: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)}
	p := r.Prior()
	assert.Equal(t, r.Duration(), p.Duration())
	assert.Equal(t, r.Start, p.End)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), p.Start)
}

func TestParseLiteralAcceptsDateAndRFC3339(t *testing.T) {
	d, err := ParseLiteral("2024-03-15")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), d)

	ts, err := ParseLiteral("2024-03-15T08:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC), ts)
}

func TestParseLiteralRejectsGarbage(t *testing.T) {
	_, err := ParseLiteral("not-a-date")
	assert.Error(t, err)
}

func TestResolvePairPrefersRelativeToken(t *testing.T) {
	r, err := ResolvePair("today", "2020-01-01", "2020-01-02", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), r.Start)
}

func TestResolvePairUsesLiteralBoundsWhenNoRelativeToken(t *testing.T) {
	r, err := ResolvePair("", "2024-01-01", "2024-01-31", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), r.Start)
	assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), r.End)
}

func TestResolvePairPropagatesLiteralParseError(t *testing.T) {
	_, err := ResolvePair("", "garbage", "2024-01-31", fixedNow)
	assert.Error(t, err)
}
