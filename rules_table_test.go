package tqcore

import "testing"

func TestThresholdCheck(t *testing.T) {
	tests := []struct {
		name      string
		threshold Threshold
		value     float64
		want      bool
	}{
		{name: "greater than passes", threshold: GreaterThan(10), value: 11, want: true},
		{name: "greater than fails on equal", threshold: GreaterThan(10), value: 10, want: false},
		{name: "at least passes on equal", threshold: AtLeast(10), value: 10, want: true},
		{name: "less than passes", threshold: LessThan(10), value: 9, want: true},
		{name: "at most fails above", threshold: AtMost(10), value: 10.5, want: false},
		{name: "equal to passes", threshold: EqualTo(3), value: 3, want: true},
		{name: "not equal to passes", threshold: NotEqualTo(3), value: 4, want: true},
		{name: "within passes inclusive low", threshold: Within(1, 5), value: 1, want: true},
		{name: "within passes inclusive high", threshold: Within(1, 5), value: 5, want: true},
		{name: "within fails outside", threshold: Within(1, 5), value: 5.1, want: false},
		{name: "empty op passes non-zero", threshold: Threshold{}, value: 1, want: true},
		{name: "empty op fails zero", threshold: Threshold{}, value: 0, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.threshold.Check(tt.value); got != tt.want {
				t.Errorf("Check(%v) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestAggregateRuleExpressions(t *testing.T) {
	expr, err := RowCount(GreaterThan(0)).Aggregate("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if expr.Kind != ExprAggregate || expr.Agg != AggCountAll {
		t.Errorf("expected count_all aggregate, got %s", expr)
	}

	expr, err = Avg(Within(0, 100)).Aggregate("price")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if expr.Agg != AggAvg || expr.Args[0].Column != "price" {
		t.Errorf("expected avg(price), got %s", expr)
	}

	if _, err := Avg(Within(0, 100)).Aggregate(""); err == nil {
		t.Error("expected error for avg without a target column")
	}

	expr, err = Corr("weight", GreaterThan(0.5)).Aggregate("height")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if expr.Agg != AggCorr || len(expr.Args) != 2 {
		t.Fatalf("expected corr with two args, got %s", expr)
	}
	if expr.Args[0].Column != "height" || expr.Args[1].Column != "weight" {
		t.Errorf("unexpected corr arguments: %s", expr)
	}
}

func TestNullCountRuleExpression(t *testing.T) {
	expr, err := NullCount(AtMost(5)).Aggregate("email")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if expr.Kind != ExprArith || expr.Op != "-" {
		t.Fatalf("expected count(*) - count(col), got %s", expr)
	}
	if expr.Args[0].Agg != AggCountAll || expr.Args[1].Agg != AggCount {
		t.Errorf("unexpected operands: %s", expr)
	}

	if _, err := NullCount(AtMost(5)).Aggregate(""); err == nil {
		t.Error("expected error for null_count without a target column")
	}
}

func TestUniquenessRule(t *testing.T) {
	rule := Uniqueness()
	expr, err := rule.Aggregate("id")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if expr.Kind != ExprArith || expr.Op != "-" {
		t.Fatalf("expected count - count_distinct, got %s", expr)
	}
	if !rule.Check(0) {
		t.Error("expected zero duplicates to pass")
	}
	if rule.Check(1) {
		t.Error("expected non-zero duplicates to fail")
	}
}

func TestCustomAggRule(t *testing.T) {
	rule := CustomAgg("revenue_check", "sum(amount) > 1000", Threshold{})
	expr, err := rule.Aggregate("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if expr.Kind != ExprRaw || expr.Raw != "sum(amount) > 1000" {
		t.Errorf("expected raw aggregate, got %s", expr)
	}
	if !rule.Check(1) || rule.Check(0) {
		t.Error("empty threshold should pass non-zero and fail zero")
	}

	if _, err := CustomAgg("empty", "", Threshold{}).Aggregate(""); err == nil {
		t.Error("expected error for empty custom aggregate expression")
	}
}
