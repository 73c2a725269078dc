// Package filtercache implements the per-execution filter-SQL cache
// (spec §4.5): a map from a filter's content-hash to the SQL fragment
// already built for it, so the same fragment — and its bound parameters
// — is reused verbatim between a pre-aggregation CTE and the outer query
// instead of being rebuilt (and re-parameterized) twice.
//
// Structurally this is a direct port of the teacher's
// datalog/planner/cache.go PlanCache: a map guarded by sync.RWMutex with
// atomic hit/miss counters and lazy expiry, generalized from caching
// *plans* to caching *SQL fragments*. Unlike PlanCache, entries here
// never expire — the Cache itself lives only as long as one execution
// (spec §3 Ownership & lifecycle: "QueryContext... discarded at
// execution end"), so there is nothing to expire.
package filtercache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/semcube/semcube/filter"
)

// Fragment is a built SQL fragment together with its positional bind
// parameters.
type Fragment struct {
	SQL  string
	Args []any
}

// Cache is the per-execution filter-SQL cache. The zero value is not
// usable; construct with New.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Fragment

	hits   atomic.Int64
	misses atomic.Int64
}

// New creates an empty filter-SQL cache, meant to be attached to exactly
// one QueryContext for exactly one execution.
func New() *Cache {
	return &Cache{entries: make(map[string]Fragment)}
}

// Builder produces a Fragment the first time a given key is requested.
type Builder func() (Fragment, error)

// GetOrBuild returns the cached fragment for key if present, else calls
// build, caches its result, and returns it. Concurrent calls for
// different keys proceed independently; concurrent calls for the same
// key may both invoke build (the cache optimizes for the common case of
// sequential preload-then-reuse described in spec §4.13 step 6, it does
// not provide single-flight de-duplication).
func (c *Cache) GetOrBuild(key string, build Builder) (Fragment, error) {
	c.mu.RLock()
	frag, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
		return frag, nil
	}

	c.misses.Add(1)
	frag, err := build()
	if err != nil {
		return Fragment{}, err
	}

	c.mu.Lock()
	c.entries[key] = frag
	c.mu.Unlock()
	return frag, nil
}

// Peek returns the cached fragment for key without building it, for
// callers that only want to know whether a fragment was already built
// (e.g. the CTE builder reusing a propagating filter's fragment built
// during preload).
func (c *Cache) Peek(key string) (Fragment, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	frag, ok := c.entries[key]
	return frag, ok
}

// Stats reports cache effectiveness for debugging, per spec §4.5.
type Stats struct {
	Hits   int64
	Misses int64
	Size   int64
}

// Stats returns the current hit/miss/size counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	size := int64(len(c.entries))
	c.mu.RUnlock()
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), Size: size}
}

// KeyFor derives a cache key from a leaf condition's content — member,
// operator, sorted values, and date range — never from pointer identity,
// per spec §4.5. Callers must not call KeyFor for array-operator filters
// (filter.Operator.IsArrayOperator) or for logical And/Or filters; both
// are excluded from caching entirely because array operators need raw
// column-type metadata unavailable from the condition alone, and logical
// filters may mix cube contexts where a cached fragment would reference
// the wrong table (spec §4.5, §9 Design Notes).
func KeyFor(c filter.Condition) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|", c.Member, c.Operator)

	values := c.SortedValueStrings()
	sort.Strings(values)
	for _, v := range values {
		fmt.Fprintf(h, "%s,", v)
	}

	if c.DateRange != nil {
		fmt.Fprintf(h, "|%s|%s|%s", c.DateRange.Relative, c.DateRange.Start, c.DateRange.End)
	}

	return hex.EncodeToString(h.Sum(nil))
}

// PropagatingKeyFor derives a cache key for a propagating filter's
// built `target_col IN (SELECT ...)` fragment (spec §4.9), keyed on the
// source cube, the target CTE alias, and the content of every condition
// being propagated, so the identical fragment is reused between the CTE
// WHERE clause and, if the same filter also restricts the outer query,
// the outer WHERE clause.
func PropagatingKeyFor(sourceCube, cteAlias string, conds []filter.Condition) string {
	h := sha256.New()
	fmt.Fprintf(h, "prop|%s|%s|", sourceCube, cteAlias)
	for _, c := range conds {
		fmt.Fprintf(h, "%s;", KeyFor(c))
	}
	return hex.EncodeToString(h.Sum(nil))
}
