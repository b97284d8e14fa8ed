package tqcore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/TabularQuality/tq-core"
	"github.com/TabularQuality/tq-core/memtable"
)

func usersTable() *memtable.Table {
	return memtable.New(
		[]tqcore.Column{
			{Name: "id", Type: "Int64"},
			{Name: "age", Type: "Int64", Nullable: true},
		},
		[]tqcore.Row{
			{"id": int64(1), "age": int64(17)},
			{"id": int64(2), "age": int64(25)},
			{"id": int64(3), "age": int64(-1)},
		},
	)
}

func boolColumn(t *testing.T, rows []tqcore.Row, name string) []bool {
	t.Helper()
	out := make([]bool, len(rows))
	for i, row := range rows {
		v, ok := row[name]
		if !ok || v == nil {
			t.Fatalf("row %d: column %q missing or null", i, name)
		}
		b, ok := v.(bool)
		if !ok {
			t.Fatalf("row %d: column %q is %T, expected bool", i, name, v)
		}
		out[i] = b
	}
	return out
}

func TestApplyEmptyRuleSet(t *testing.T) {
	ctx := context.Background()
	rs := tqcore.NewRuleSet(nil)

	result, err := rs.Apply(ctx, usersTable())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rows, err := result.Data.Collect(ctx)
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	for i, pass := range boolColumn(t, rows, tqcore.VerdictColumn) {
		if !pass {
			t.Errorf("row %d: expected all rows to pass with no rules", i)
		}
	}
}

func TestApplyColumnRules(t *testing.T) {
	ctx := context.Background()
	rs := tqcore.NewRuleSet(nil)

	if err := rs.AddColumnRule("age", tqcore.NotNull()); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := rs.AddColumnRule("age", tqcore.InRange(0, 120)); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	result, err := rs.Apply(ctx, usersTable())
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	schema, err := result.Data.Schema(ctx)
	if err != nil {
		t.Fatalf("schema failed: %v", err)
	}
	wantOrder := []string{"id", "age", "age_not_null", "age_in_range", "dq_pass"}
	names := schema.Names()
	if len(names) != len(wantOrder) {
		t.Fatalf("column names = %v, want %v", names, wantOrder)
	}
	for i, want := range wantOrder {
		if names[i] != want {
			t.Fatalf("column %d = %q, want %q", i, names[i], want)
		}
	}

	rows, err := result.Data.Collect(ctx)
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}

	wantNotNull := []bool{true, true, true}
	wantInRange := []bool{true, true, false}
	wantVerdict := []bool{true, true, false}

	for i, got := range boolColumn(t, rows, "age_not_null") {
		if got != wantNotNull[i] {
			t.Errorf("age_not_null[%d] = %v, want %v", i, got, wantNotNull[i])
		}
	}
	for i, got := range boolColumn(t, rows, "age_in_range") {
		if got != wantInRange[i] {
			t.Errorf("age_in_range[%d] = %v, want %v", i, got, wantInRange[i])
		}
	}
	for i, got := range boolColumn(t, rows, tqcore.VerdictColumn) {
		if got != wantVerdict[i] {
			t.Errorf("dq_pass[%d] = %v, want %v", i, got, wantVerdict[i])
		}
	}
}

func TestApplyNullPredicateFailsRow(t *testing.T) {
	ctx := context.Background()
	table := memtable.New(
		[]tqcore.Column{
			{Name: "id", Type: "Int64"},
			{Name: "age", Type: "Int64", Nullable: true},
		},
		[]tqcore.Row{
			{"id": int64(1), "age": int64(30)},
			{"id": int64(2), "age": nil},
		},
	)

	rs := tqcore.NewRuleSet(nil)
	if err := rs.AddColumnRule("age", tqcore.InRange(0, 120)); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	result, err := rs.Apply(ctx, table)
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	rows, err := result.Data.Collect(ctx)
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}

	// the derived column keeps the NULL, the verdict folds it to a failure
	if rows[1]["age_in_range"] != nil {
		t.Errorf("expected null derived value for null input, got %v", rows[1]["age_in_range"])
	}
	verdict := boolColumn(t, rows, tqcore.VerdictColumn)
	if !verdict[0] || verdict[1] {
		t.Errorf("verdict = %v, want [true false]", verdict)
	}
}

func TestApplyTableRules(t *testing.T) {
	ctx := context.Background()
	rs := tqcore.NewRuleSet(nil)

	if err := rs.AddTableRule("", tqcore.RowCount(tqcore.AtLeast(3))); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := rs.AddTableRule("id", tqcore.CountDistinct(tqcore.EqualTo(3))); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := rs.AddTableRule("age", tqcore.MaxValue(tqcore.LessThan(20))); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	result, err := rs.Apply(ctx, usersTable())
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	if len(result.ScalarResults) != 3 {
		t.Fatalf("expected 3 scalar results, got %d", len(result.ScalarResults))
	}

	byColumn := map[string]tqcore.ScalarResult{}
	for _, sr := range result.ScalarResults {
		byColumn[sr.Column] = sr
	}

	if sr := byColumn["row_count"]; !sr.Pass || sr.Value != 3 {
		t.Errorf("row_count: pass=%v value=%v, want pass with 3", sr.Pass, sr.Value)
	}
	if sr := byColumn["id_count_distinct"]; !sr.Pass || sr.Value != 3 {
		t.Errorf("id_count_distinct: pass=%v value=%v, want pass with 3", sr.Pass, sr.Value)
	}
	// max(age) is 25, threshold < 20 fails and drags every row down
	if sr := byColumn["age_max"]; sr.Pass {
		t.Errorf("age_max: expected failure with value %v", sr.Value)
	}

	rows, err := result.Data.Collect(ctx)
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	for i, got := range boolColumn(t, rows, "age_max") {
		if got {
			t.Errorf("age_max[%d] = true, want broadcast false", i)
		}
	}
	for i, got := range boolColumn(t, rows, tqcore.VerdictColumn) {
		if got {
			t.Errorf("dq_pass[%d] = true, want false after failed table rule", i)
		}
	}
}

func TestApplyWarnRulesExcludedFromVerdict(t *testing.T) {
	ctx := context.Background()
	rs := tqcore.NewRuleSet(nil)

	if err := rs.AddColumnRuleWithAction("age", tqcore.InRange(18, 120), tqcore.OnFailActionWarn); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	result, err := rs.Apply(ctx, usersTable())
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	rows, err := result.Data.Collect(ctx)
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}

	inRange := boolColumn(t, rows, "age_in_range")
	if inRange[0] || !inRange[1] || inRange[2] {
		t.Errorf("age_in_range = %v, want [false true false]", inRange)
	}
	for i, got := range boolColumn(t, rows, tqcore.VerdictColumn) {
		if !got {
			t.Errorf("dq_pass[%d] = false, warn-only rules must not affect the verdict", i)
		}
	}
}

func TestApplySchemaFailureShortCircuits(t *testing.T) {
	ctx := context.Background()
	rs := tqcore.NewRuleSet(nil)

	if err := rs.AddSchemaRule(tqcore.ColumnExists("email")); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := rs.AddColumnRule("age", tqcore.NotNull()); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	// this rule cannot validate or evaluate against the table: email is not
	// declared, so reaching the later stages would yield a different error
	if err := rs.AddColumnRule("email", tqcore.Custom("has_at", "email.contains('@')")); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	_, err := rs.Apply(ctx, usersTable())
	var schemaErr *tqcore.SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
	if len(schemaErr.Failures) != 1 || schemaErr.Failures[0].Rule != "column_exists" {
		t.Errorf("unexpected failures: %+v", schemaErr.Failures)
	}
}

func TestApplyImplicitColumnCheck(t *testing.T) {
	ctx := context.Background()
	rs := tqcore.NewRuleSet(nil)

	if err := rs.AddColumnRule("salary", tqcore.InRange(0, 1000000)); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	_, err := rs.Apply(ctx, usersTable())
	var schemaErr *tqcore.SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError for missing rule target, got %v", err)
	}
	if schemaErr.Failures[0].Column != "salary" {
		t.Errorf("failure column = %q, want salary", schemaErr.Failures[0].Column)
	}
}

func TestAddRuleCollision(t *testing.T) {
	rs := tqcore.NewRuleSet(nil)

	if err := rs.AddColumnRule("age", tqcore.NotNull()); err != nil {
		t.Fatalf("first add failed: %v", err)
	}

	err := rs.AddColumnRule("age", tqcore.NotNull())
	var buildErr *tqcore.BuildError
	if !errors.As(err, &buildErr) {
		t.Fatalf("expected BuildError for collision, got %v", err)
	}
}

func TestAddRuleReservedName(t *testing.T) {
	rs := tqcore.NewRuleSet(nil)

	err := rs.AddColumnRule("dq", tqcore.Custom("pass", "true"))
	var buildErr *tqcore.BuildError
	if !errors.As(err, &buildErr) {
		t.Fatalf("expected BuildError for reserved derived name, got %v", err)
	}

	err = rs.AddTableRule("", tqcore.CustomAgg("dq_pass", "count(*) > 0", tqcore.Threshold{}))
	if !errors.As(err, &buildErr) {
		t.Fatalf("expected BuildError for reserved rule name, got %v", err)
	}
}

func TestApplyCustomCELRule(t *testing.T) {
	ctx := context.Background()
	rs := tqcore.NewRuleSet(nil)

	if err := rs.AddColumnRule("age", tqcore.Custom("adult", "age >= 18")); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	result, err := rs.Apply(ctx, usersTable())
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	rows, err := result.Data.Collect(ctx)
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	adult := boolColumn(t, rows, "age_adult")
	if adult[0] || !adult[1] || adult[2] {
		t.Errorf("age_adult = %v, want [false true false]", adult)
	}
}

func TestApplyInvalidCustomRuleFailsBeforeEvaluation(t *testing.T) {
	ctx := context.Background()
	rs := tqcore.NewRuleSet(nil)

	if err := rs.AddColumnRule("age", tqcore.Custom("broken", "age >>> 18")); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	_, err := rs.Apply(ctx, usersTable())
	var buildErr *tqcore.BuildError
	if !errors.As(err, &buildErr) {
		t.Fatalf("expected BuildError for invalid expression, got %v", err)
	}
}

func TestApplyMaterializeRowResults(t *testing.T) {
	ctx := context.Background()
	rs := tqcore.NewRuleSet(nil)

	if err := rs.AddColumnRule("age", tqcore.InRange(0, 120)); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	result, err := rs.ApplyWithOptions(ctx, usersTable(), tqcore.ApplyOptions{MaterializeRowResults: true})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if len(result.RowResults) != 1 {
		t.Fatalf("expected 1 row result, got %d", len(result.RowResults))
	}

	rr := result.RowResults[0]
	if rr.Column != "age_in_range" || rr.Target != "age" {
		t.Errorf("unexpected row result identity: %+v", rr)
	}
	want := []bool{true, true, false}
	for i, got := range rr.Values {
		if got != want[i] {
			t.Errorf("values[%d] = %v, want %v", i, got, want[i])
		}
	}
}

func TestPartition(t *testing.T) {
	ctx := context.Background()
	rs := tqcore.NewRuleSet(nil)

	if err := rs.AddColumnRule("age", tqcore.InRange(0, 120)); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	good, bad, err := rs.Partition(ctx, usersTable())
	if err != nil {
		t.Fatalf("partition failed: %v", err)
	}

	goodRows, err := good.Collect(ctx)
	if err != nil {
		t.Fatalf("collect good failed: %v", err)
	}
	badRows, err := bad.Collect(ctx)
	if err != nil {
		t.Fatalf("collect bad failed: %v", err)
	}

	if len(goodRows)+len(badRows) != 3 {
		t.Fatalf("good (%d) + bad (%d) != input rows (3)", len(goodRows), len(badRows))
	}
	if len(goodRows) != 2 || len(badRows) != 1 {
		t.Errorf("split = %d/%d, want 2/1", len(goodRows), len(badRows))
	}

	// both sides keep only the original columns
	goodSchema, err := good.Schema(ctx)
	if err != nil {
		t.Fatalf("schema failed: %v", err)
	}
	names := goodSchema.Names()
	if len(names) != 2 || names[0] != "id" || names[1] != "age" {
		t.Errorf("good schema = %v, want [id age]", names)
	}

	if badRows[0]["id"] != int64(3) {
		t.Errorf("bad row id = %v, want 3", badRows[0]["id"])
	}
}

func TestPartitionWithNullVerdictInput(t *testing.T) {
	ctx := context.Background()
	table := memtable.New(
		[]tqcore.Column{
			{Name: "id", Type: "Int64"},
			{Name: "age", Type: "Int64", Nullable: true},
		},
		[]tqcore.Row{
			{"id": int64(1), "age": int64(30)},
			{"id": int64(2), "age": nil},
			{"id": int64(3), "age": int64(200)},
		},
	)

	rs := tqcore.NewRuleSet(nil)
	if err := rs.AddColumnRule("age", tqcore.InRange(0, 120)); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	good, bad, err := rs.Partition(ctx, table)
	if err != nil {
		t.Fatalf("partition failed: %v", err)
	}

	goodCount, err := good.RowCount(ctx)
	if err != nil {
		t.Fatalf("row count failed: %v", err)
	}
	badCount, err := bad.RowCount(ctx)
	if err != nil {
		t.Fatalf("row count failed: %v", err)
	}

	// the null-age row must land in exactly one partition
	if goodCount+badCount != 3 {
		t.Fatalf("good (%d) + bad (%d) != 3", goodCount, badCount)
	}
	if goodCount != 1 || badCount != 2 {
		t.Errorf("split = %d/%d, want 1/2", goodCount, badCount)
	}
}

func TestPartitionRetainDiagnostics(t *testing.T) {
	ctx := context.Background()
	rs := tqcore.NewRuleSet(nil)

	if err := rs.AddColumnRule("age", tqcore.InRange(0, 120)); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	good, _, err := rs.PartitionWithOptions(ctx, usersTable(), tqcore.PartitionOptions{RetainDiagnostics: true})
	if err != nil {
		t.Fatalf("partition failed: %v", err)
	}

	schema, err := good.Schema(ctx)
	if err != nil {
		t.Fatalf("schema failed: %v", err)
	}
	if !schema.HasColumn("age_in_range") || !schema.HasColumn(tqcore.VerdictColumn) {
		t.Errorf("expected diagnostic columns retained, got %v", schema.Names())
	}
}

func TestDerivedStatistics(t *testing.T) {
	ctx := context.Background()
	rs := tqcore.NewRuleSet(nil)

	if err := rs.AddTableRule("", tqcore.RowCount(tqcore.AtLeast(1))); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := rs.AddTableRule("age", tqcore.Avg(tqcore.Within(0, 100))); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := rs.AddTableRule("age", tqcore.NullCount(tqcore.AtMost(0))); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	stats, err := rs.DerivedStatistics(ctx, usersTable())
	if err != nil {
		t.Fatalf("derived statistics failed: %v", err)
	}

	if stats["row_count"] != 3 {
		t.Errorf("row_count = %v, want 3", stats["row_count"])
	}
	wantAvg := (17.0 + 25.0 - 1.0) / 3.0
	if stats["age_avg"] != wantAvg {
		t.Errorf("age_avg = %v, want %v", stats["age_avg"], wantAvg)
	}
	if stats["age_null_count"] != 0 {
		t.Errorf("age_null_count = %v, want 0", stats["age_null_count"])
	}
}

func TestBuilder(t *testing.T) {
	ctx := context.Background()

	rs, err := tqcore.NewBuilder(nil).
		WithColumnRule("age", tqcore.NotNull()).
		WithColumnRule("age", tqcore.InRange(0, 120)).
		WithTableRule("", tqcore.RowCount(tqcore.AtLeast(1))).
		Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	result, err := rs.Apply(ctx, usersTable())
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if len(result.ScalarResults) != 1 {
		t.Errorf("expected 1 scalar result, got %d", len(result.ScalarResults))
	}

	_, err = tqcore.NewBuilder(nil).
		WithColumnRule("age", tqcore.NotNull()).
		WithColumnRule("age", tqcore.NotNull()).
		Build()
	if err == nil {
		t.Error("expected build error for duplicate rule")
	}
}
