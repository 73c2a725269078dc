package dialect

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semcube/semcube/query"
)

func allAdapters() map[Name]Adapter {
	return map[Name]Adapter{
		Postgres: NewPostgres(),
		MySQL:    NewMySQL(),
		SQLite:   NewSQLite(),
		DuckDB:   NewDuckDB(),
	}
}

func TestNameMatchesAdapter(t *testing.T) {
	for name, a := range allAdapters() {
		assert.Equal(t, name, a.Name())
	}
}

func TestQuoteIdentEscapesEmbeddedQuoteChar(t *testing.T) {
	assert.Equal(t, `"a""b"`, NewPostgres().QuoteIdent(`a"b`))
	assert.Equal(t, "`a``b`", NewMySQL().QuoteIdent("a`b"))
	assert.Equal(t, `"a""b"`, NewSQLite().QuoteIdent(`a"b`))
	assert.Equal(t, `"a""b"`, NewDuckDB().QuoteIdent(`a"b`))
}

func TestPlaceholderStyles(t *testing.T) {
	assert.Equal(t, "$3", NewPostgres().Placeholder(3))
	assert.Equal(t, "$3", NewDuckDB().Placeholder(3))
	assert.Equal(t, "?", NewMySQL().Placeholder(3))
	assert.Equal(t, "?", NewSQLite().Placeholder(3))
}

func TestBoolLiteral(t *testing.T) {
	assert.Equal(t, "TRUE", NewPostgres().BoolLiteral(true))
	assert.Equal(t, "FALSE", NewPostgres().BoolLiteral(false))
	assert.Equal(t, "1", NewSQLite().BoolLiteral(true))
	assert.Equal(t, "1", NewMySQL().BoolLiteral(true))
}

func TestTruncateDateEveryGranularityProducesNonEmptySQL(t *testing.T) {
	grans := []query.Granularity{query.Second, query.Minute, query.Hour, query.Day, query.Week, query.Month, query.Quarter, query.Year}
	for name, a := range allAdapters() {
		for _, g := range grans {
			sql := a.TruncateDate("col", g)
			assert.NotEmpty(t, sql, "%s truncate(%s)", name, g)
			assert.Contains(t, sql, "col", "%s truncate(%s)", name, g)
		}
	}
}

func TestPostgresTruncateDateUsesDateTrunc(t *testing.T) {
	sql := NewPostgres().TruncateDate("t.created_at", query.Month)
	assert.Equal(t, "date_trunc('month', t.created_at)", sql)
}

func TestDuckDBTruncateDateMatchesPostgresShape(t *testing.T) {
	sql := NewDuckDB().TruncateDate("t.created_at", query.Quarter)
	assert.Equal(t, "date_trunc('quarter', t.created_at)", sql)
}

func TestMySQLTruncateDateDay(t *testing.T) {
	assert.Equal(t, "DATE(t.created_at)", NewMySQL().TruncateDate("t.created_at", query.Day))
}

func TestSQLiteTruncateDateDay(t *testing.T) {
	assert.Equal(t, "strftime('%Y-%m-%d', t.created_at)", NewSQLite().TruncateDate("t.created_at", query.Day))
}

func TestBuildAvgWrapsExprSQL(t *testing.T) {
	for _, a := range allAdapters() {
		assert.Contains(t, a.BuildAvg("x"), "x")
	}
}

func TestBuildWindowFunctionIncludesOverClause(t *testing.T) {
	for name, a := range allAdapters() {
		sql := a.BuildWindowFunction("lag", "SUM(x)", []string{"region"}, []string{"d"}, WindowOptions{Offset: 1})
		assert.Contains(t, sql, "OVER", name)
		assert.Contains(t, sql, "PARTITION BY", name)
	}
}

func TestBuildArrayOperatorPostgresSupportsAllThreeOps(t *testing.T) {
	a := NewPostgres()
	for _, op := range []query.Operator{query.ArrayContains, query.ArrayOverlaps, query.ArrayContained} {
		sql, args, ok := a.BuildArrayOperator("tags", op, []any{"x", "y"})
		require.True(t, ok)
		assert.NotEmpty(t, sql)
		assert.Len(t, args, 1)
	}
}

func TestBuildArrayOperatorDuckDBMatchesPostgres(t *testing.T) {
	_, _, ok := NewDuckDB().BuildArrayOperator("tags", query.ArrayContains, []any{"x"})
	assert.True(t, ok)
}

func TestBuildArrayOperatorUnsupportedOnMySQLAndSQLite(t *testing.T) {
	_, _, ok := NewMySQL().BuildArrayOperator("tags", query.ArrayContains, []any{"x"})
	assert.False(t, ok)
	_, _, ok = NewSQLite().BuildArrayOperator("tags", query.ArrayContains, []any{"x"})
	assert.False(t, ok)
}

func TestCoerceNumericStringOnlyTrueForMySQL(t *testing.T) {
	assert.False(t, NewPostgres().CoerceNumericString())
	assert.True(t, NewMySQL().CoerceNumericString())
	assert.False(t, NewSQLite().CoerceNumericString())
	assert.False(t, NewDuckDB().CoerceNumericString())
}

func TestSupportsPlaceholderReuseOnlyTrueForNumberedDialects(t *testing.T) {
	assert.True(t, NewPostgres().SupportsPlaceholderReuse())
	assert.True(t, NewDuckDB().SupportsPlaceholderReuse())
	assert.False(t, NewMySQL().SupportsPlaceholderReuse())
	assert.False(t, NewSQLite().SupportsPlaceholderReuse())
}

func TestUnwrapErrorPostgresExtractsPgError(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", Detail: "dup key", Hint: "use upsert"}
	de := NewPostgres().UnwrapError(pgErr)
	assert.Equal(t, "23505", de.Code)
	assert.Equal(t, "dup key", de.Detail)
	assert.Equal(t, "use upsert", de.Hint)
	assert.Equal(t, error(pgErr), de.Cause)
}

func TestUnwrapErrorPostgresFallsBackOnPlainError(t *testing.T) {
	plain := errors.New("boom")
	de := NewPostgres().UnwrapError(plain)
	assert.Empty(t, de.Code)
	assert.Equal(t, plain, de.Cause)
}

func TestUnwrapErrorMySQLExtractsNumberAndMessage(t *testing.T) {
	myErr := &mysql.MySQLError{Number: 1062, Message: "dup entry"}
	de := NewMySQL().UnwrapError(myErr)
	assert.Equal(t, "1062", de.Code)
	assert.Equal(t, "dup entry", de.Detail)
}

func TestUnwrapErrorSQLiteExtractsCode(t *testing.T) {
	liteErr := sqlite3.Error{Code: sqlite3.ErrConstraint}
	de := NewSQLite().UnwrapError(liteErr)
	assert.Equal(t, fmt.Sprintf("%d", sqlite3.ErrConstraint), de.Code)
}

func TestUnwrapErrorDuckDBAlwaysCauseOnly(t *testing.T) {
	plain := errors.New("duckdb exploded")
	de := NewDuckDB().UnwrapError(plain)
	assert.Empty(t, de.Code)
	assert.Empty(t, de.Detail)
	assert.Equal(t, plain, de.Cause)
}
