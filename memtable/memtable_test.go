package memtable

import (
	"bytes"
	"context"
	"math"
	"strings"
	"testing"

	"github.com/TabularQuality/tq-core"
)

func scoresTable() *Table {
	return New(
		[]tqcore.Column{
			{Name: "score", Type: "Float64", Nullable: true},
			{Name: "cat", Type: "Int64"},
		},
		[]tqcore.Row{
			{"score": float64(10), "cat": int64(1)},
			{"score": float64(20), "cat": int64(1)},
			{"score": float64(30), "cat": int64(2)},
			{"score": nil, "cat": int64(2)},
		},
	)
}

func TestNewCopiesRows(t *testing.T) {
	ctx := context.Background()
	src := []tqcore.Row{{"id": int64(1)}}
	table := New([]tqcore.Column{{Name: "id", Type: "Int64"}}, src)

	src[0]["id"] = int64(99)

	rows, err := table.Collect(ctx)
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	if rows[0]["id"] != int64(1) {
		t.Errorf("table saw mutation of the source rows: %v", rows[0]["id"])
	}
}

func TestWithColumn(t *testing.T) {
	ctx := context.Background()
	table := New(
		[]tqcore.Column{{Name: "name", Type: "String", Nullable: true}},
		[]tqcore.Row{
			{"name": "a"},
			{"name": ""},
			{"name": nil},
		},
	)

	expr, err := tqcore.NotNull().Predicate("name")
	if err != nil {
		t.Fatalf("predicate failed: %v", err)
	}
	derived, err := table.WithColumn(ctx, "name_not_null", expr)
	if err != nil {
		t.Fatalf("with column failed: %v", err)
	}

	schema, _ := derived.Schema(ctx)
	c, ok := schema.Column("name_not_null")
	if !ok || c.Type != "Bool" || !c.Nullable {
		t.Fatalf("unexpected derived column: %+v", c)
	}

	rows, _ := derived.Collect(ctx)
	want := []any{true, true, false}
	for i, row := range rows {
		if row["name_not_null"] != want[i] {
			t.Errorf("row %d = %v, want %v", i, row["name_not_null"], want[i])
		}
	}

	// the source table is unchanged
	srcSchema, _ := table.Schema(ctx)
	if srcSchema.HasColumn("name_not_null") {
		t.Error("source table gained the derived column")
	}

	if _, err := derived.WithColumn(ctx, "name_not_null", expr); err == nil {
		t.Error("expected error for duplicate column name")
	}
}

func TestWithColumnKeepsNull(t *testing.T) {
	ctx := context.Background()
	table := New(
		[]tqcore.Column{{Name: "age", Type: "Int64", Nullable: true}},
		[]tqcore.Row{{"age": int64(5)}, {"age": nil}},
	)

	expr, err := tqcore.InRange(0, 10).Predicate("age")
	if err != nil {
		t.Fatalf("predicate failed: %v", err)
	}
	derived, err := table.WithColumn(ctx, "age_in_range", expr)
	if err != nil {
		t.Fatalf("with column failed: %v", err)
	}

	rows, _ := derived.Collect(ctx)
	if rows[0]["age_in_range"] != true {
		t.Errorf("row 0 = %v, want true", rows[0]["age_in_range"])
	}
	if rows[1]["age_in_range"] != nil {
		t.Errorf("row 1 = %v, want null for null input", rows[1]["age_in_range"])
	}
}

func TestWithValue(t *testing.T) {
	ctx := context.Background()
	table := scoresTable()

	derived, err := table.WithValue(ctx, "passed", false)
	if err != nil {
		t.Fatalf("with value failed: %v", err)
	}
	rows, _ := derived.Collect(ctx)
	for i, row := range rows {
		if row["passed"] != false {
			t.Errorf("row %d = %v, want false", i, row["passed"])
		}
	}

	schema, _ := derived.Schema(ctx)
	if c, _ := schema.Column("passed"); c.Type != "Bool" {
		t.Errorf("passed type = %q, want Bool", c.Type)
	}

	derived, err = derived.WithValue(ctx, "source", "batch-1")
	if err != nil {
		t.Fatalf("with value failed: %v", err)
	}
	schema, _ = derived.Schema(ctx)
	if c, _ := schema.Column("source"); c.Type != "String" {
		t.Errorf("source type = %q, want String", c.Type)
	}
}

func TestEvalPredicateFoldsNullToFalse(t *testing.T) {
	ctx := context.Background()
	table := scoresTable()

	expr, err := tqcore.InRange(0, 25).Predicate("score")
	if err != nil {
		t.Fatalf("predicate failed: %v", err)
	}
	got, err := table.EvalPredicate(ctx, expr)
	if err != nil {
		t.Fatalf("eval failed: %v", err)
	}
	want := []bool{true, true, false, false}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestFilterAndSelect(t *testing.T) {
	ctx := context.Background()
	table := scoresTable()

	expr, err := tqcore.Gte(20).Predicate("score")
	if err != nil {
		t.Fatalf("predicate failed: %v", err)
	}
	filtered, err := table.Filter(ctx, expr)
	if err != nil {
		t.Fatalf("filter failed: %v", err)
	}
	n, _ := filtered.RowCount(ctx)
	if n != 2 {
		t.Errorf("filtered rows = %d, want 2", n)
	}

	projected, err := filtered.Select(ctx, []string{"cat"})
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	schema, _ := projected.Schema(ctx)
	if names := schema.Names(); len(names) != 1 || names[0] != "cat" {
		t.Errorf("projected columns = %v, want [cat]", names)
	}
	rows, _ := projected.Collect(ctx)
	if _, ok := rows[0]["score"]; ok {
		t.Error("projected rows still carry score")
	}

	if _, err := table.Select(ctx, []string{"missing"}); err == nil {
		t.Error("expected error for unknown column")
	}
}

func TestMatchLikePattern(t *testing.T) {
	tests := []struct {
		str     string
		pattern string
		want    bool
	}{
		{str: "hello", pattern: "hello", want: true},
		{str: "hello", pattern: "h%", want: true},
		{str: "hello", pattern: "%lo", want: true},
		{str: "hello", pattern: "%ell%", want: true},
		{str: "hello", pattern: "%", want: true},
		{str: "", pattern: "%", want: true},
		{str: "hello", pattern: "", want: false},
		{str: "hello", pattern: "h_llo", want: true},
		{str: "hello", pattern: "h_x%", want: false},
		{str: "hello", pattern: "world", want: false},
		{str: "abc", pattern: "a%c", want: true},
		{str: "abc", pattern: "%b", want: false},
		{str: "user@host", pattern: "%@%", want: true},
		{str: "userhost", pattern: "%@%", want: false},
		// the final segment recurs earlier in the string; it must anchor
		// at the end
		{str: "abcbc", pattern: "a%bc", want: true},
		{str: "abcbd", pattern: "a%bc", want: false},
		{str: "ababa", pattern: "%aba", want: true},
		{str: "héllo", pattern: "h_llo", want: true},
		{str: "héllo", pattern: "_éll_", want: true},
	}

	for _, tt := range tests {
		if got := matchLikePattern(tt.str, tt.pattern); got != tt.want {
			t.Errorf("matchLikePattern(%q, %q) = %v, want %v", tt.str, tt.pattern, got, tt.want)
		}
	}
}

func TestAggregates(t *testing.T) {
	ctx := context.Background()
	table := scoresTable()

	tests := []struct {
		name string
		rule tqcore.TableRule
		want float64
	}{
		{name: "row_count", rule: tqcore.RowCount(tqcore.Threshold{}), want: 4},
		{name: "sum skips nulls", rule: tqcore.Sum(tqcore.Threshold{}), want: 60},
		{name: "avg skips nulls", rule: tqcore.Avg(tqcore.Threshold{}), want: 20},
		{name: "min", rule: tqcore.MinValue(tqcore.Threshold{}), want: 10},
		{name: "max", rule: tqcore.MaxValue(tqcore.Threshold{}), want: 30},
		{name: "median", rule: tqcore.Median(tqcore.Threshold{}), want: 20},
		{name: "stddev_pop", rule: tqcore.StddevPop(tqcore.Threshold{}), want: math.Sqrt(200.0 / 3.0)},
		{name: "null_count", rule: tqcore.NullCount(tqcore.Threshold{}), want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "score"
			if tt.name == "row_count" {
				target = ""
			}
			expr, err := tt.rule.Aggregate(target)
			if err != nil {
				t.Fatalf("aggregate expr failed: %v", err)
			}
			got, err := table.EvalAggregate(ctx, expr)
			if err != nil {
				t.Fatalf("eval failed: %v", err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("value = %v, want %v", got, tt.want)
			}
		})
	}

	expr, err := tqcore.CountDistinct(tqcore.Threshold{}).Aggregate("cat")
	if err != nil {
		t.Fatalf("aggregate expr failed: %v", err)
	}
	if got, _ := table.EvalAggregate(ctx, expr); got != 2 {
		t.Errorf("count_distinct(cat) = %v, want 2", got)
	}

	expr, err = tqcore.Uniqueness().Aggregate("cat")
	if err != nil {
		t.Fatalf("aggregate expr failed: %v", err)
	}
	if got, _ := table.EvalAggregate(ctx, expr); got != 2 {
		t.Errorf("duplicates over cat = %v, want 2", got)
	}
}

func TestCountAggregatesOnStrings(t *testing.T) {
	ctx := context.Background()
	table := New(
		[]tqcore.Column{{Name: "email", Type: "String", Nullable: true}},
		[]tqcore.Row{
			{"email": "a@x"},
			{"email": "a@x"},
			{"email": "b@x"},
			{"email": nil},
		},
	)

	tests := []struct {
		name string
		rule tqcore.TableRule
		want float64
	}{
		{name: "null_count", rule: tqcore.NullCount(tqcore.Threshold{}), want: 1},
		{name: "count_distinct", rule: tqcore.CountDistinct(tqcore.Threshold{}), want: 2},
		{name: "uniqueness duplicates", rule: tqcore.Uniqueness(), want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := tt.rule.Aggregate("email")
			if err != nil {
				t.Fatalf("aggregate expr failed: %v", err)
			}
			got, err := table.EvalAggregate(ctx, expr)
			if err != nil {
				t.Fatalf("eval failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("value = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPairAggregates(t *testing.T) {
	ctx := context.Background()
	// y = 2x, a perfect fit
	table := New(
		[]tqcore.Column{
			{Name: "x", Type: "Float64"},
			{Name: "y", Type: "Float64"},
		},
		[]tqcore.Row{
			{"x": float64(1), "y": float64(2)},
			{"x": float64(2), "y": float64(4)},
			{"x": float64(3), "y": float64(6)},
		},
	)

	corr, err := tqcore.Corr("x", tqcore.Threshold{}).Aggregate("y")
	if err != nil {
		t.Fatalf("aggregate expr failed: %v", err)
	}
	if got, _ := table.EvalAggregate(ctx, corr); math.Abs(got-1) > 1e-9 {
		t.Errorf("corr = %v, want 1", got)
	}

	slope, err := tqcore.RegrSlope("x", tqcore.Threshold{}).Aggregate("y")
	if err != nil {
		t.Fatalf("aggregate expr failed: %v", err)
	}
	if got, _ := table.EvalAggregate(ctx, slope); math.Abs(got-2) > 1e-9 {
		t.Errorf("regr_slope = %v, want 2", got)
	}

	r2, err := tqcore.RegrR2("x", tqcore.Threshold{}).Aggregate("y")
	if err != nil {
		t.Fatalf("aggregate expr failed: %v", err)
	}
	if got, _ := table.EvalAggregate(ctx, r2); math.Abs(got-1) > 1e-9 {
		t.Errorf("regr_r2 = %v, want 1", got)
	}
}

func TestRawAggregate(t *testing.T) {
	ctx := context.Background()
	table := New(
		[]tqcore.Column{{Name: "age", Type: "Int64"}},
		[]tqcore.Row{{"age": int64(20)}, {"age": int64(30)}},
	)

	expr, err := tqcore.CustomAgg("all_adults", "age >= 18", tqcore.Threshold{}).Aggregate("")
	if err != nil {
		t.Fatalf("aggregate expr failed: %v", err)
	}
	if got, err := table.EvalAggregate(ctx, expr); err != nil || got != 1 {
		t.Errorf("EvalAggregate = %v, %v, want 1", got, err)
	}

	expr, err = tqcore.CustomAgg("all_seniors", "age >= 65", tqcore.Threshold{}).Aggregate("")
	if err != nil {
		t.Fatalf("aggregate expr failed: %v", err)
	}
	if got, err := table.EvalAggregate(ctx, expr); err != nil || got != 0 {
		t.Errorf("EvalAggregate = %v, %v, want 0", got, err)
	}
}

func TestValidateExpr(t *testing.T) {
	ctx := context.Background()
	table := scoresTable()

	good, err := tqcore.Custom("positive", "score > 0.0").Predicate("score")
	if err != nil {
		t.Fatalf("predicate failed: %v", err)
	}
	if err := table.ValidateExpr(ctx, good); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}

	bad, err := tqcore.Custom("broken", "score >>> 0").Predicate("score")
	if err != nil {
		t.Fatalf("predicate failed: %v", err)
	}
	if err := table.ValidateExpr(ctx, bad); err == nil {
		t.Error("expected validation error for malformed expression")
	}
}

func TestEngine(t *testing.T) {
	ctx := context.Background()
	engine := NewEngine()
	engine.Register("users", scoresTable())

	ds := engine.Table("users")
	if n, err := ds.RowCount(ctx); err != nil || n != 4 {
		t.Errorf("RowCount = %d, %v, want 4", n, err)
	}

	missing := engine.Table("nope")
	if _, err := missing.RowCount(ctx); err == nil {
		t.Error("expected error for unregistered table")
	}
	if _, err := missing.Collect(ctx); err == nil {
		t.Error("expected error for unregistered table")
	}

	if err := engine.Close(); err != nil {
		t.Errorf("close failed: %v", err)
	}
}

func TestRender(t *testing.T) {
	ctx := context.Background()
	table := New(
		[]tqcore.Column{
			{Name: "id", Type: "Int64"},
			{Name: "name", Type: "String", Nullable: true},
		},
		[]tqcore.Row{
			{"id": int64(1), "name": "a"},
			{"id": int64(2), "name": nil},
		},
	)

	var buf bytes.Buffer
	if err := Render(ctx, &buf, table); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"id", "name", "1", "a", "(2 rows)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
