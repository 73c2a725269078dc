package measure

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semcube/semcube/cube"
	"github.com/semcube/semcube/dialect"
	"github.com/semcube/semcube/errs"
	"github.com/semcube/semcube/expr"
	"github.com/semcube/semcube/filter"
)

func col(name string) expr.Column {
	return expr.Column{Table: expr.Table{Name: "orders"}, Name: name}
}

func newBuilder() *Builder {
	return &Builder{
		Dialect: dialect.NewPostgres(),
		ResolveColumn: func(e expr.Expr) (string, []any) {
			if c, ok := e.(expr.Column); ok {
				return fmt.Sprintf("%s.%s", c.Table.Name, c.Name), nil
			}
			return e.String(), nil
		},
		ResolveFilter: func(c filter.Condition) (string, []any, error) {
			return fmt.Sprintf("%s = ?", c.Member), []any{c.Values[0]}, nil
		},
	}
}

func TestBuildSimpleSum(t *testing.T) {
	b := newBuilder()
	m := &cube.Measure{Name: "revenue", Kind: cube.Sum, SQL: func(ctx *cube.QueryContext) (expr.Expr, error) {
		return col("amount"), nil
	}}
	r, err := b.BuildSimple(m, nil)
	require.NoError(t, err)
	assert.Equal(t, "SUM(orders.amount)", r.SQL)
	assert.Empty(t, r.Args)
}

func TestBuildSimpleCountDistinct(t *testing.T) {
	b := newBuilder()
	m := &cube.Measure{Name: "customers", Kind: cube.CountDistinct, SQL: func(ctx *cube.QueryContext) (expr.Expr, error) {
		return col("customer_id"), nil
	}}
	r, err := b.BuildSimple(m, nil)
	require.NoError(t, err)
	assert.Equal(t, "COUNT(DISTINCT orders.customer_id)", r.SQL)
}

func TestBuildSimpleAvgDelegatesToDialect(t *testing.T) {
	b := newBuilder()
	m := &cube.Measure{Name: "avgAmount", Kind: cube.Avg, SQL: func(ctx *cube.QueryContext) (expr.Expr, error) {
		return col("amount"), nil
	}}
	r, err := b.BuildSimple(m, nil)
	require.NoError(t, err)
	assert.Equal(t, "AVG(orders.amount)", r.SQL)
}

func TestBuildSimpleRejectsCalculated(t *testing.T) {
	b := newBuilder()
	m := &cube.Measure{Name: "margin", Kind: cube.Calculated, Template: "{revenue}"}
	_, err := b.BuildSimple(m, nil)
	assert.Error(t, err)
}

func TestBuildSimpleRejectsWindow(t *testing.T) {
	b := newBuilder()
	m := &cube.Measure{Name: "runningTotal", Kind: cube.MovingSum}
	_, err := b.BuildSimple(m, nil)
	assert.Error(t, err)
}

func TestBuildSimpleWithInlineFilterUsesCaseWhen(t *testing.T) {
	b := newBuilder()
	m := &cube.Measure{
		Name: "revenueUS", Kind: cube.Sum,
		SQL:     func(ctx *cube.QueryContext) (expr.Expr, error) { return col("amount"), nil },
		Filters: []filter.Condition{{Member: "Orders.country", Operator: filter.Equals, Values: []any{"US"}}},
	}
	r, err := b.BuildSimple(m, nil)
	require.NoError(t, err)
	assert.Equal(t, "SUM(CASE WHEN Orders.country = ? THEN orders.amount END)", r.SQL)
	assert.Equal(t, []any{"US"}, r.Args)
}

func TestBuildSimpleCountWithFilterUsesCountCaseForm(t *testing.T) {
	b := newBuilder()
	m := &cube.Measure{
		Name: "completedOrders", Kind: cube.Count,
		SQL:     func(ctx *cube.QueryContext) (expr.Expr, error) { return col("id"), nil },
		Filters: []filter.Condition{{Member: "Orders.status", Operator: filter.Equals, Values: []any{"complete"}}},
	}
	r, err := b.BuildSimple(m, nil)
	require.NoError(t, err)
	assert.Equal(t, "COUNT(CASE WHEN Orders.status = ? THEN 1 END)", r.SQL)
}

func TestBuildSimplePropagatesSQLFnError(t *testing.T) {
	b := newBuilder()
	wantErr := fmt.Errorf("boom")
	m := &cube.Measure{Name: "revenue", Kind: cube.Sum, SQL: func(ctx *cube.QueryContext) (expr.Expr, error) {
		return nil, wantErr
	}}
	_, err := b.BuildSimple(m, nil)
	assert.Equal(t, wantErr, err)
}

func TestBuildCalculatedSubstitutesRefs(t *testing.T) {
	m := &cube.Measure{Name: "margin", Kind: cube.Calculated, Template: "{Orders.revenue} - {Orders.cost}"}
	resolve := func(ref string) (string, error) {
		switch ref {
		case "Orders.revenue":
			return "SUM(orders.amount)", nil
		case "Orders.cost":
			return "SUM(orders.cost)", nil
		}
		return "", fmt.Errorf("unknown ref %q", ref)
	}
	sql, err := BuildCalculated(m, resolve)
	require.NoError(t, err)
	assert.Equal(t, "(SUM(orders.amount)) - (SUM(orders.cost))", sql)
}

func TestBuildCalculatedRejectsNonCalculatedMeasure(t *testing.T) {
	m := &cube.Measure{Name: "revenue", Kind: cube.Sum}
	_, err := BuildCalculated(m, func(string) (string, error) { return "", nil })
	assert.Error(t, err)
}

func TestBuildCalculatedPropagatesResolveError(t *testing.T) {
	m := &cube.Measure{Name: "margin", Kind: cube.Calculated, Template: "{Orders.missing}"}
	_, err := BuildCalculated(m, func(string) (string, error) { return "", fmt.Errorf("unknown ref") })
	assert.Error(t, err)
}

func TestBuildCTEAggregatedSumAndMinMax(t *testing.T) {
	d := dialect.NewPostgres()
	sumM := &cube.Measure{Name: "revenue", Kind: cube.Sum}
	sql, err := BuildCTEAggregated(sumM, d, "cte0", `"revenue"`)
	require.NoError(t, err)
	assert.Equal(t, `SUM(cte0."revenue")`, sql)

	minM := &cube.Measure{Name: "minPrice", Kind: cube.Min}
	sql, err = BuildCTEAggregated(minM, d, "cte0", `"minPrice"`)
	require.NoError(t, err)
	assert.Equal(t, `MIN(cte0."minPrice")`, sql)
}

func TestBuildCTEAggregatedRejectsAvg(t *testing.T) {
	avgM := &cube.Measure{Name: "avgOrderValue", Kind: cube.Avg}
	_, err := BuildCTEAggregated(avgM, dialect.NewPostgres(), "cte0", `"avgOrderValue"`)
	require.Error(t, err)
	var planErr *errs.PlanError
	assert.ErrorAs(t, err, &planErr)
}

func TestBuildWindowLagDefaultsToDifference(t *testing.T) {
	m := &cube.Measure{
		Name: "revenueDelta", Kind: cube.Lag,
		Window: &cube.WindowConfig{Offset: 1},
	}
	sql, err := BuildWindow(m, dialect.NewPostgres(), "SUM(amount)", []string{"region"}, []string{"d"})
	require.NoError(t, err)
	assert.Contains(t, sql, "LAG")
	assert.Contains(t, sql, "OVER")
	assert.Contains(t, sql, " - ")
}

func TestBuildWindowMovingSumDefaultsToThreePointFrame(t *testing.T) {
	m := &cube.Measure{Name: "movingRevenue", Kind: cube.MovingSum, Window: &cube.WindowConfig{}}
	sql, err := BuildWindow(m, dialect.NewPostgres(), "SUM(amount)", nil, []string{"d"})
	require.NoError(t, err)
	assert.Contains(t, sql, "OVER")
	assert.Contains(t, sql, "ROWS BETWEEN 2 PRECEDING AND CURRENT ROW")
}

func TestBuildWindowRejectsNonWindowKind(t *testing.T) {
	m := &cube.Measure{Name: "revenue", Kind: cube.Sum}
	_, err := BuildWindow(m, dialect.NewPostgres(), "SUM(amount)", nil, nil)
	assert.Error(t, err)
}

func TestBuildWindowRequiresWindowConfig(t *testing.T) {
	m := &cube.Measure{Name: "revenueDelta", Kind: cube.Lag}
	_, err := BuildWindow(m, dialect.NewPostgres(), "SUM(amount)", nil, nil)
	assert.Error(t, err)
}

func TestBuildWindowPercentChangeOperation(t *testing.T) {
	m := &cube.Measure{
		Name: "pctChange", Kind: cube.Lag,
		Window: &cube.WindowConfig{Offset: 1, Operation: cube.PercentChange},
	}
	sql, err := BuildWindow(m, dialect.NewPostgres(), "SUM(amount)", nil, []string{"d"})
	require.NoError(t, err)
	assert.Contains(t, sql, "* 100")
}
