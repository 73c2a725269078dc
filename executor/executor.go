// Package executor implements the state-free query executor (spec
// §4.13): validate, cache lookup, comparison expansion, plan,
// security sanity, assemble+execute, post-process, gap-fill,
// annotate, cache store.
package executor

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/semcube/semcube/cachekey"
	"github.com/semcube/semcube/compare"
	"github.com/semcube/semcube/cube"
	"github.com/semcube/semcube/dialect"
	"github.com/semcube/semcube/errs"
	"github.com/semcube/semcube/filter"
	"github.com/semcube/semcube/filtercache"
	"github.com/semcube/semcube/gapfill"
	"github.com/semcube/semcube/planner"
	"github.com/semcube/semcube/query"
	"github.com/semcube/semcube/resultcache"
	"github.com/semcube/semcube/sqlgen"
)

// MemberAnnotation is one annotated measure/dimension's display
// metadata, spec §3 QueryResult.annotation.
type MemberAnnotation struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Kind        string `json:"type"`
	Granularity string `json:"granularity,omitempty"`
}

// Annotation is QueryResult's per-column display metadata, built only
// from the members a query actually requested (spec §6: "never SQL
// fragments or security predicates").
type Annotation struct {
	Measures       []MemberAnnotation `json:"measures"`
	Dimensions     []MemberAnnotation `json:"dimensions"`
	TimeDimensions []MemberAnnotation `json:"timeDimensions"`
}

// CacheInfo reports whether a QueryResult came from the result cache
// and, if so, its remaining freshness.
type CacheInfo struct {
	Hit            bool      `json:"hit"`
	CachedAt       time.Time `json:"cachedAt,omitempty"`
	TTLMs          int64     `json:"ttlMs,omitempty"`
	TTLRemainingMs int64     `json:"ttlRemainingMs,omitempty"`
}

// QueryResult is execute's return value, spec §3: "{ data: [row],
// annotation, cache? }".
type QueryResult struct {
	Data       []map[string]any `json:"data"`
	Annotation Annotation       `json:"annotation"`
	Cache      *CacheInfo       `json:"cache,omitempty"`
}

// Generated is generateSQL's return value, spec §6.
type Generated struct {
	SQL  string
	Args []any
}

// Executor drives one query end to end. It is state-free except for
// its injected registry, dialect adapter, driver, and optional cache
// config (spec §4.13: "State-free except for injected registry,
// adapter, and optional cache config").
type Executor struct {
	registry *cube.Registry
	dialect  dialect.Adapter
	driver   Driver
	planner  *planner.Planner
	cfg      Config
}

// New builds an Executor. driver may be nil for hosts that only ever
// call GenerateSQL/DryRun/ValidateQuery/Metadata (preview-only usage
// never touches the driver).
func New(registry *cube.Registry, d dialect.Adapter, driver Driver, opts ...Option) *Executor {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.cacheConfig.Dialect = string(d.Name())
	return &Executor{
		registry: registry,
		dialect:  d,
		driver:   driver,
		planner:  planner.New(registry),
		cfg:      cfg,
	}
}

// ValidateQuery runs the structural validator (spec §6 "validateQuery
// (query) → { isValid, errors[] }").
func (e *Executor) ValidateQuery(q query.SemanticQuery) query.Result {
	return query.NewValidator(e.registry).Validate(q)
}

// Metadata returns the read-only surface of every registered cube
// (spec §6 "metadata() → [CubeMetadata]").
func (e *Executor) Metadata() []cube.CubeMetadata {
	return e.registry.Metadata()
}

// GenerateSQL compiles q without executing it (spec §6 "generateSQL
// (query, securityContext) → { sql, params }").
func (e *Executor) GenerateSQL(q query.SemanticQuery, secCtx map[string]any) (Generated, error) {
	built, _, err := e.compile(context.Background(), q, secCtx)
	if err != nil {
		return Generated{}, err
	}
	return Generated{SQL: built.SQL, Args: built.Args}, nil
}

// DryRun exposes the planner's output alongside the SQL it produced,
// for planner transparency (spec §6 "dryRun(query, securityContext) →
// QueryPlan + SQL").
func (e *Executor) DryRun(q query.SemanticQuery, secCtx map[string]any) (*planner.QueryPlan, Generated, error) {
	built, plan, err := e.compile(context.Background(), q, secCtx)
	if err != nil {
		return plan, Generated{}, err
	}
	return plan, Generated{SQL: built.SQL, Args: built.Args}, nil
}

// compile runs validate+plan+assemble without touching the driver or
// the caches, shared by GenerateSQL and DryRun.
func (e *Executor) compile(ctx context.Context, q query.SemanticQuery, secCtx map[string]any) (sqlgen.Built, *planner.QueryPlan, error) {
	if res := e.ValidateQuery(q); !res.Valid {
		return sqlgen.Built{}, nil, &errs.ValidationError{Errors: res.Errors}
	}
	plan, err := e.planner.Plan(q)
	if err != nil {
		return sqlgen.Built{}, plan, err
	}
	qctx := e.newQueryContext(ctx, secCtx)
	built, err := sqlgen.Build(e.registry, e.dialect, qctx, qctx.FilterCache, e.cfg.now(), plan, q)
	if err != nil {
		return sqlgen.Built{}, plan, err
	}
	return built, plan, nil
}

// Execute runs q to completion (spec §4.13's 11-step flow; spec §6
// "execute(query, securityContext) → QueryResult").
func (e *Executor) Execute(ctx context.Context, q query.SemanticQuery, secCtx map[string]any) (QueryResult, error) {
	// 1. Validate.
	if res := e.ValidateQuery(q); !res.Valid {
		return QueryResult{}, &errs.ValidationError{Errors: res.Errors}
	}

	// 2. Cache lookup.
	var cacheKey string
	if e.cfg.cache != nil {
		key, err := cachekey.Key(q, secCtx, e.cfg.cacheConfig)
		if err != nil {
			e.reportCacheErr(err, "get")
		} else {
			cacheKey = key
			if v, meta, ok := e.safeCacheGet(cacheKey); ok {
				if result, ok := v.(QueryResult); ok {
					result.Cache = &CacheInfo{Hit: true, CachedAt: meta.CachedAt, TTLMs: meta.TTLMs, TTLRemainingMs: meta.TTLRemainingMs}
					return result, nil
				}
			}
		}
	}

	// 3. Comparison expansion, else a single execution.
	var rows []map[string]any
	var err error
	queries, periods, ok, cErr := compare.Expand(q, e.cfg.now())
	if cErr != nil {
		return QueryResult{}, cErr
	}
	if ok {
		var perPeriod [][]map[string]any
		perPeriod, err = compare.Run(ctx, queries, func(ctx context.Context, _ int, sq query.SemanticQuery) ([]map[string]any, error) {
			return e.executeCore(ctx, sq, secCtx)
		})
		if err == nil {
			rows = compare.Merge(periods, findCompareDimension(q), perPeriod)
		}
	} else {
		rows, err = e.executeCore(ctx, q, secCtx)
	}
	if err != nil {
		return QueryResult{}, err
	}

	result := QueryResult{Data: rows, Annotation: e.buildAnnotation(q)}

	// 11. Cache store.
	if e.cfg.cache != nil && cacheKey != "" {
		e.safeCacheSet(cacheKey, result, e.cfg.cacheTTL)
		result.Cache = &CacheInfo{Hit: false}
	}

	return result, nil
}

// findCompareDimension returns the Cube.field of the first time
// dimension carrying a compareDateRange, matching compare.Expand's own
// selection so Merge sorts on the same field Expand split on.
func findCompareDimension(q query.SemanticQuery) string {
	for _, td := range q.TimeDimensions {
		if len(td.CompareDateRange) > 0 {
			return td.Dimension
		}
	}
	return ""
}

// executeCore runs steps 4-9 of spec §4.13 for one concrete query (no
// compareDateRange — the comparison expander has already resolved
// that away by the time this is called, whether q is the original
// query or one of its per-period clones).
func (e *Executor) executeCore(ctx context.Context, q query.SemanticQuery, secCtx map[string]any) ([]map[string]any, error) {
	// 4. Plan.
	plan, err := e.planner.Plan(q)
	if err != nil {
		return nil, err
	}

	// 5. Security sanity (dev-mode only).
	if e.cfg.devMode {
		e.securitySanityCheck(ctx, secCtx, plan)
	}

	// 6. Preload filter cache: a single filtercache.Cache lives on the
	// QueryContext for this execution and is threaded through every
	// CTE and the outer query by sqlgen.Build, so a propagating
	// filter's fragment (the one case that legitimately recurs between
	// a CTE and the outer query) is built exactly once and reused —
	// there is no separate warm-up pass to run beyond constructing it
	// here before assembly.
	qctx := e.newQueryContext(ctx, secCtx)

	// 7. Assemble & execute.
	built, err := sqlgen.Build(e.registry, e.dialect, qctx, qctx.FilterCache, e.cfg.now(), plan, q)
	if err != nil {
		return nil, err
	}
	if e.driver == nil {
		return nil, fmt.Errorf("executor: no driver configured, cannot execute")
	}
	driverRows, err := e.driver.Query(ctx, built.SQL, built.Args)
	if err != nil {
		return nil, e.wrapDriverErr(err)
	}
	rows, err := scanRows(driverRows)
	if err != nil {
		return nil, e.wrapDriverErr(err)
	}

	// 8. Post-process: normalize time-dimension values to time.Time and
	// coerce numeric-string measure values (spec §4.13 step 8).
	e.postProcessRows(rows, q)

	// 9. Gap-fill.
	for _, td := range q.TimeDimensions {
		if !td.FillMissingDates {
			continue
		}
		rows, err = gapfill.Fill(rows, td, q.Measures, e.cfg.now(), td.FillMissingValue)
		if err != nil {
			return nil, err
		}
	}

	return rows, nil
}

func (e *Executor) newQueryContext(ctx context.Context, secCtx map[string]any) *cube.QueryContext {
	return &cube.QueryContext{Ctx: ctx, Security: secCtx, FilterCache: filtercache.New()}
}

// wrapDriverErr normalizes a driver failure into an errs.ExecutionError
// carrying the dialect-unwrapped code/detail/hint (spec §7).
func (e *Executor) wrapDriverErr(err error) error {
	de := e.dialect.UnwrapError(err)
	if de.Cause == nil {
		de.Cause = err
	}
	return &errs.ExecutionError{Cause: de.Cause, Code: de.Code, Detail: de.Detail, Hint: de.Hint}
}

// securitySanityCheck invokes sql(ctx) for every cube the plan
// touches and warns if its base query carries no WHERE (spec §4.13
// step 5, dev-mode only).
func (e *Executor) securitySanityCheck(ctx context.Context, secCtx map[string]any, plan *planner.QueryPlan) {
	qctx := e.newQueryContext(ctx, secCtx)
	check := func(name string) {
		cb, ok := e.registry.Get(name)
		if !ok {
			return
		}
		base, err := cb.SQL(qctx)
		if err != nil {
			return
		}
		if base.Where == nil {
			e.cfg.logger.Warnf("cube %q has no security predicate (where) in its base query", name)
		}
	}
	check(plan.PrimaryCube)
	for _, j := range plan.JoinCubes {
		check(j.Cube)
	}
	for _, c := range plan.PreAggregationCTEs {
		check(c.Cube)
	}
}

// postProcessRows normalizes driver output in place: time-dimension
// values become time.Time (passed through the dialect's own
// ConvertTimeDimensionResult), and, on dialects that return decimals
// as strings (spec §4.13 step 7's "numeric fields hint", realized here
// as a post-scan coercion since Driver carries no per-query hint
// parameter), requested measure values are parsed back into float64.
func (e *Executor) postProcessRows(rows []map[string]any, q query.SemanticQuery) {
	timeFields := make(map[string]bool, len(q.TimeDimensions))
	for _, td := range q.TimeDimensions {
		timeFields[td.Dimension] = true
	}
	coerceNumeric := e.dialect.CoerceNumericString()
	numericFields := make(map[string]bool, len(q.Measures))
	if coerceNumeric {
		for _, ref := range q.Measures {
			numericFields[ref] = true
		}
	}

	for _, row := range rows {
		for field := range timeFields {
			v, ok := row[field]
			if !ok {
				continue
			}
			if t, ok := parseTimeValue(v); ok {
				row[field] = e.dialect.ConvertTimeDimensionResult(t)
			}
		}
		if !coerceNumeric {
			continue
		}
		for field := range numericFields {
			v, ok := row[field]
			if !ok {
				continue
			}
			if f, ok := parseNumericString(v); ok {
				row[field] = f
			}
		}
	}
}

// parseTimeValue recognizes the handful of shapes a driver might hand
// back for a timestamp column: already time.Time, RFC3339, or the
// space-separated "YYYY-MM-DD HH:MM:SS" SQL datetime literal (and its
// bare-date form).
func parseTimeValue(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

func parseNumericString(v any) (float64, bool) {
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// scanRows drains driver rows into plain maps keyed by the SELECT
// list's own "Cube.field" aliases — sqlgen.QuoteAlias quotes that
// exact string as every column's alias, so Columns() already yields
// query member refs with no translation layer needed here.
func scanRows(rows Rows) ([]map[string]any, error) {
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = raw[i]
		}
		out = append(out, row)
	}
	return out, nil
}

// buildAnnotation builds Annotation from only the members q actually
// requested, looking their display metadata up via the registry (spec
// §4.13 step 10).
func (e *Executor) buildAnnotation(q query.SemanticQuery) Annotation {
	var ann Annotation
	for _, ref := range q.Measures {
		if m, ok := e.describeMember(ref, false); ok {
			ann.Measures = append(ann.Measures, m)
		}
	}
	for _, ref := range q.Dimensions {
		if m, ok := e.describeMember(ref, true); ok {
			ann.Dimensions = append(ann.Dimensions, m)
		}
	}
	for _, td := range q.TimeDimensions {
		if m, ok := e.describeMember(td.Dimension, true); ok {
			m.Granularity = string(td.Granularity)
			ann.TimeDimensions = append(ann.TimeDimensions, m)
		}
	}
	return ann
}

func (e *Executor) describeMember(ref string, dimension bool) (MemberAnnotation, bool) {
	cb, ok := e.registry.Get(filter.Cube(ref))
	if !ok {
		return MemberAnnotation{}, false
	}
	field := filter.Field(ref)
	if dimension {
		d, ok := cb.Dimension(field)
		if !ok {
			return MemberAnnotation{}, false
		}
		return MemberAnnotation{Name: ref, Title: d.Title, Description: d.Description, Kind: string(d.Kind)}, true
	}
	m, ok := cb.Measure(field)
	if !ok {
		return MemberAnnotation{}, false
	}
	return MemberAnnotation{Name: ref, Title: m.Title, Description: m.Description, Kind: string(m.Kind)}, true
}

func (e *Executor) reportCacheErr(err error, op string) {
	if e.cfg.onCacheErr != nil {
		e.cfg.onCacheErr(&errs.CacheError{Op: op, Cause: err}, op)
	}
}

// safeCacheGet recovers from a panicking Cache implementation so a
// misbehaving provider degrades to a miss rather than ever becoming
// fatal (spec §4.13 step 2: "cache failures are NEVER fatal") — the
// resultcache.Cache interface itself carries no error return on Get,
// so a panic is the only failure mode this wrapper can observe.
func (e *Executor) safeCacheGet(key string) (v any, meta resultcache.Metadata, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.reportCacheErr(fmt.Errorf("panic: %v", r), "get")
			v, meta, ok = nil, resultcache.Metadata{}, false
		}
	}()
	return e.cfg.cache.Get(key)
}

// safeCacheSet mirrors safeCacheGet's panic recovery for the store
// side of a cache round trip (spec §4.13 step 11).
func (e *Executor) safeCacheSet(key string, value any, ttl time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			e.reportCacheErr(fmt.Errorf("panic: %v", r), "set")
		}
	}()
	e.cfg.cache.Set(key, value, ttl)
}
