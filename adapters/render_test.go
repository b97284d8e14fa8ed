package adapters

import (
	"testing"

	"github.com/TabularQuality/tq-core"
)

func columnPredicate(t *testing.T, rule tqcore.ColumnRule, target string) *tqcore.Expr {
	t.Helper()
	expr, err := rule.Predicate(target)
	if err != nil {
		t.Fatalf("predicate failed: %v", err)
	}
	return expr
}

func tableAggregate(t *testing.T, rule tqcore.TableRule, target string) *tqcore.Expr {
	t.Helper()
	expr, err := rule.Aggregate(target)
	if err != nil {
		t.Fatalf("aggregate failed: %v", err)
	}
	return expr
}

func TestRenderExprPredicates(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		expr    *tqcore.Expr
		want    string
	}{
		{
			name:    "not null",
			dialect: DuckDB(),
			expr:    columnPredicate(t, tqcore.NotNull(), "email"),
			want:    `("email" is not null)`,
		},
		{
			name:    "null mysql quoting",
			dialect: Mysql(),
			expr:    columnPredicate(t, tqcore.Null(), "email"),
			want:    "(`email` is null)",
		},
		{
			name:    "in range",
			dialect: Postgresql(),
			expr:    columnPredicate(t, tqcore.InRange(0, 120), "age"),
			want:    `("age" between 0 and 120)`,
		},
		{
			name:    "not in range",
			dialect: DuckDB(),
			expr:    columnPredicate(t, tqcore.NotInRange(0, 120), "age"),
			want:    `("age" not between 0 and 120)`,
		},
		{
			name:    "like",
			dialect: DuckDB(),
			expr:    columnPredicate(t, tqcore.Like("%@%"), "email"),
			want:    `("email" like '%@%')`,
		},
		{
			name:    "ilike",
			dialect: Postgresql(),
			expr:    columnPredicate(t, tqcore.ILike("%test%"), "name"),
			want:    `("name" ilike '%test%')`,
		},
		{
			name:    "ilike mysql lowers both sides",
			dialect: Mysql(),
			expr:    columnPredicate(t, tqcore.ILike("%Test%"), "name"),
			want:    "(lower(`name`) like lower('%Test%'))",
		},
		{
			name:    "not ilike mysql",
			dialect: Mysql(),
			expr:    columnPredicate(t, tqcore.NotILike("%x%"), "name"),
			want:    "(lower(`name`) not like lower('%x%'))",
		},
		{
			name:    "like escapes quotes in pattern",
			dialect: DuckDB(),
			expr:    columnPredicate(t, tqcore.Like("O'Brien%"), "name"),
			want:    `("name" like 'O''Brien%')`,
		},
		{
			name:    "min length",
			dialect: DuckDB(),
			expr:    columnPredicate(t, tqcore.StrMinLength(1), "name"),
			want:    `(char_length("name") >= 1)`,
		},
		{
			name:    "value not equals renders <>",
			dialect: Postgresql(),
			expr:    columnPredicate(t, tqcore.NeqValue(5), "amount"),
			want:    `("amount" <> 5)`,
		},
		{
			name:    "in set",
			dialect: DuckDB(),
			expr:    columnPredicate(t, tqcore.InSet("active", "inactive"), "status"),
			want:    `("status" in ('active', 'inactive'))`,
		},
		{
			name:    "not in set",
			dialect: Clickhouse(),
			expr:    columnPredicate(t, tqcore.NotInSet("spam"), "label"),
			want:    "(`label` not in ('spam'))",
		},
		{
			name:    "raw fragment is inlined verbatim",
			dialect: DuckDB(),
			expr:    columnPredicate(t, tqcore.Custom("positive", "amount > 0"), "amount"),
			want:    "amount > 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RenderExpr(tt.dialect, tt.expr)
			if err != nil {
				t.Fatalf("render failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("RenderExpr() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRenderExprAggregates(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		expr    *tqcore.Expr
		want    string
	}{
		{
			name:    "row count ansi",
			dialect: DuckDB(),
			expr:    tableAggregate(t, tqcore.RowCount(tqcore.Threshold{}), ""),
			want:    "count(*)",
		},
		{
			name:    "row count clickhouse",
			dialect: Clickhouse(),
			expr:    tableAggregate(t, tqcore.RowCount(tqcore.Threshold{}), ""),
			want:    "count()",
		},
		{
			name:    "count distinct ansi",
			dialect: Postgresql(),
			expr:    tableAggregate(t, tqcore.CountDistinct(tqcore.Threshold{}), "id"),
			want:    `count(distinct "id")`,
		},
		{
			name:    "count distinct clickhouse",
			dialect: Clickhouse(),
			expr:    tableAggregate(t, tqcore.CountDistinct(tqcore.Threshold{}), "id"),
			want:    "uniqExact(`id`)",
		},
		{
			name:    "null count",
			dialect: DuckDB(),
			expr:    tableAggregate(t, tqcore.NullCount(tqcore.Threshold{}), "email"),
			want:    `(count(*) - count("email"))`,
		},
		{
			name:    "uniqueness duplicates",
			dialect: DuckDB(),
			expr:    tableAggregate(t, tqcore.Uniqueness(), "id"),
			want:    `(count("id") - count(distinct "id"))`,
		},
		{
			name:    "median postgres",
			dialect: Postgresql(),
			expr:    tableAggregate(t, tqcore.Median(tqcore.Threshold{}), "price"),
			want:    `percentile_cont(0.5) within group (order by "price")`,
		},
		{
			name:    "median clickhouse",
			dialect: Clickhouse(),
			expr:    tableAggregate(t, tqcore.Median(tqcore.Threshold{}), "price"),
			want:    "median(`price`)",
		},
		{
			name:    "corr ansi",
			dialect: Postgresql(),
			expr:    tableAggregate(t, tqcore.Corr("weight", tqcore.Threshold{}), "height"),
			want:    `corr("height", "weight")`,
		},
		{
			name:    "regr_slope clickhouse composite",
			dialect: Clickhouse(),
			expr:    tableAggregate(t, tqcore.RegrSlope("x", tqcore.Threshold{}), "y"),
			want:    "covarPop(`y`, `x`) / varPop(`x`)",
		},
		{
			name:    "regr_r2 clickhouse",
			dialect: Clickhouse(),
			expr:    tableAggregate(t, tqcore.RegrR2("x", tqcore.Threshold{}), "y"),
			want:    "pow(corr(`y`, `x`), 2)",
		},
		{
			name:    "raw aggregate passthrough",
			dialect: DuckDB(),
			expr:    tableAggregate(t, tqcore.CustomAgg("check", "count_if(amount < 0) = 0", tqcore.Threshold{}), ""),
			want:    "count_if(amount < 0) = 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RenderExpr(tt.dialect, tt.expr)
			if err != nil {
				t.Fatalf("render failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("RenderExpr() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRenderAggregateCountIf(t *testing.T) {
	pred := `("name" = '')`

	got, err := DuckDB().RenderAggregate(tqcore.AggCountIf, []string{pred})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if got != `count(*) filter (where ("name" = ''))` {
		t.Errorf("duckdb count_if = %s", got)
	}

	got, err = Mysql().RenderAggregate(tqcore.AggCountIf, []string{pred})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if got != `sum(case when ("name" = '') then 1 else 0 end)` {
		t.Errorf("mysql count_if = %s", got)
	}

	got, err = Clickhouse().RenderAggregate(tqcore.AggCountIf, []string{pred})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if got != `countIf(("name" = ''))` {
		t.Errorf("clickhouse count_if = %s", got)
	}
}

func TestMysqlUnsupportedAggregates(t *testing.T) {
	for _, fn := range []tqcore.AggFunc{
		tqcore.AggMedian, tqcore.AggCorr, tqcore.AggRegrSlope, tqcore.AggRegrR2,
	} {
		if _, err := Mysql().RenderAggregate(fn, []string{"`a`", "`b`"}); err == nil {
			t.Errorf("expected error for %s on mysql", fn)
		}
	}
}

func TestColumnsQuery(t *testing.T) {
	got := DuckDB().ColumnsQuery("", "users")
	want := "select column_name, data_type, is_nullable from information_schema.columns " +
		"where table_name = 'users' order by ordinal_position"
	if got != want {
		t.Errorf("duckdb columns query = %s", got)
	}

	got = Postgresql().ColumnsQuery("analytics", "users")
	want = "select column_name, data_type, is_nullable from information_schema.columns " +
		"where table_name = 'users' and table_schema = 'analytics' order by ordinal_position"
	if got != want {
		t.Errorf("postgres columns query = %s", got)
	}

	got = Clickhouse().ColumnsQuery("", "users")
	want = "select name, type, if(startsWith(type, 'Nullable'), 'YES', 'NO') as is_nullable " +
		"from system.columns where table = 'users' and database = currentDatabase() order by position"
	if got != want {
		t.Errorf("clickhouse columns query = %s", got)
	}
}

func TestCasts(t *testing.T) {
	if got := Clickhouse().CastFloat("avg(`x`)"); got != "toFloat64(avg(`x`))" {
		t.Errorf("clickhouse float cast = %s", got)
	}
	if got := Postgresql().CastFloat(`avg("x")`); got != `CAST(avg("x") AS DOUBLE PRECISION)` {
		t.Errorf("postgres float cast = %s", got)
	}
	// mysql predicates already scan as 0/1
	if got := Mysql().CastBool("(`x` > 0)"); got != "(`x` > 0)" {
		t.Errorf("mysql bool cast = %s", got)
	}
}

func TestRenderLiteral(t *testing.T) {
	tests := []struct {
		value any
		want  string
	}{
		{value: nil, want: "null"},
		{value: true, want: "true"},
		{value: false, want: "false"},
		{value: "it's", want: "'it''s'"},
		{value: 42, want: "42"},
		{value: int64(7), want: "7"},
		{value: 1.5, want: "1.5"},
		{value: float64(120), want: "120"},
	}
	for _, tt := range tests {
		got, err := renderLiteral(tt.value)
		if err != nil {
			t.Fatalf("renderLiteral(%v) failed: %v", tt.value, err)
		}
		if got != tt.want {
			t.Errorf("renderLiteral(%v) = %s, want %s", tt.value, got, tt.want)
		}
	}
}
