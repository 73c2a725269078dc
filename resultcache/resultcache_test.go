package resultcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemory(t *testing.T) *Memory {
	t.Helper()
	m, err := NewMemory()
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

func TestSetGetRoundTrip(t *testing.T) {
	m := newMemory(t)
	m.Set("k1", 42, time.Minute)

	v, meta, ok := Get[int](m, "k1")
	require.True(t, ok)
	assert.Equal(t, 42, v)
	assert.InDelta(t, int64(60_000), meta.TTLRemainingMs, 1000)
}

func TestGetMissReturnsFalse(t *testing.T) {
	m := newMemory(t)
	_, _, ok := m.Get("nope")
	assert.False(t, ok)
}

func TestGetWrongTypeIsMiss(t *testing.T) {
	m := newMemory(t)
	m.Set("k1", "a string", time.Minute)

	_, _, ok := Get[int](m, "k1")
	assert.False(t, ok)
}

func TestZeroTTLMeansNoExpiry(t *testing.T) {
	m := newMemory(t)
	m.Set("k1", "forever", 0)

	_, meta, ok := m.Get("k1")
	require.True(t, ok)
	assert.Equal(t, int64(0), meta.TTLMs)
}

func TestDeleteRemovesKey(t *testing.T) {
	m := newMemory(t)
	m.Set("k1", 1, time.Minute)
	m.Delete("k1")

	assert.False(t, m.Has("k1"))
}

func TestDeletePatternPrefixSuffixMiddle(t *testing.T) {
	m := newMemory(t)
	m.Set("query:abc", 1, time.Minute)
	m.Set("query:def", 2, time.Minute)
	m.Set("other:abc", 3, time.Minute)

	m.DeletePattern("query:*")

	assert.False(t, m.Has("query:abc"))
	assert.False(t, m.Has("query:def"))
	assert.True(t, m.Has("other:abc"))
}

func TestMatchGlobVariants(t *testing.T) {
	assert.True(t, matchGlob("foo*", "foobar"))
	assert.True(t, matchGlob("*bar", "foobar"))
	assert.True(t, matchGlob("foo*bar", "foo123bar"))
	assert.False(t, matchGlob("foo*bar", "foo123"))
	assert.True(t, matchGlob("exact", "exact"))
	assert.False(t, matchGlob("exact", "exactly"))
}
