package executor

import (
	"context"
	"log"
	"time"

	"github.com/semcube/semcube/cachekey"
	"github.com/semcube/semcube/resultcache"
)

// Logger is the diagnostic seam every dev-mode warning and cache-error
// callback writes through, instead of calling fmt.Println directly —
// matching the teacher's practice of gating diagnostic output behind
// a named flag (datalog/executor/aggregation.go's debugAggregation)
// rather than hardcoding a destination.
type Logger interface {
	Warnf(format string, args ...any)
	Debugf(format string, args ...any)
}

// stdLogger is the default Logger, writing through log.Default() —
// the same destination the teacher's cmd/datalog host uses, so no
// external logging library is pulled in for a concern the teacher
// itself never reaches for one.
type stdLogger struct{}

func (stdLogger) Warnf(format string, args ...any)  { log.Printf("WARN: "+format, args...) }
func (stdLogger) Debugf(format string, args ...any) { log.Printf("DEBUG: "+format, args...) }

// Rows mirrors *sql.Rows's own Next/Scan/Columns/Close contract —
// deliberately database/sql-shaped, since every real driver (pgx,
// go-sql-driver/mysql, mattn/go-sqlite3, marcboeker/go-duckdb) already
// satisfies or adapts to it.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Columns() ([]string, error)
	Close() error
}

// Driver stands in for "the underlying driver connection pool",
// explicitly out of scope for this core (spec §1): a host wires in
// whichever concrete driver backs its chosen dialect adapter. No
// driver package is imported here for connection management; only
// drivers' exported error types are imported, in package dialect, for
// diagnostic unwrapping.
type Driver interface {
	Query(ctx context.Context, sql string, args []any) (Rows, error)
}

// Config collects an Executor's optional collaborators, built via
// functional options — the same shape the teacher uses for
// PlannerOptions/ExecutorOptions (datalog/planner/interface.go,
// datalog/executor/options.go) rather than a config-file loader,
// since this core has no on-disk configuration surface (spec §6: "No
// filesystem layout").
type Config struct {
	cache       resultcache.Cache
	cacheConfig cachekey.Config
	cacheTTL    time.Duration
	devMode     bool
	logger      Logger
	onCacheErr  func(err error, op string)
	now         func() time.Time
}

// Option configures a Config.
type Option func(*Config)

// WithCache enables result caching (spec §4.4) through the given
// provider, keyed under prefix, with entries expiring after ttl (0
// means no expiry).
func WithCache(cache resultcache.Cache, prefix string, ttl time.Duration) Option {
	return func(c *Config) {
		c.cache = cache
		c.cacheConfig.Prefix = prefix
		c.cacheTTL = ttl
	}
}

// WithDevMode turns on the dev-mode security-sanity pass (spec §4.13
// step 5): every cube reachable from a plan has its sql(ctx) invoked
// and a warning logged if where is absent.
func WithDevMode(on bool) Option {
	return func(c *Config) { c.devMode = on }
}

// WithLogger overrides the default stdlib-backed Logger.
func WithLogger(l Logger) Option {
	return func(c *Config) { c.logger = l }
}

// WithOnCacheError registers a callback invoked whenever a cache
// operation fails (spec §4.13 steps 2/11: "cache failures are NEVER
// fatal"); op is "get" or "set".
func WithOnCacheError(fn func(err error, op string)) Option {
	return func(c *Config) { c.onCacheErr = fn }
}

// WithClock overrides the executor's notion of "now", used to resolve
// relative date ranges and compareDateRange periods. Tests are the
// only expected caller; production hosts should leave this unset.
func WithClock(now func() time.Time) Option {
	return func(c *Config) { c.now = now }
}

func defaultConfig() Config {
	return Config{logger: stdLogger{}, now: time.Now}
}
