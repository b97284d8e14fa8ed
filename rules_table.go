// Copyright 2026 The TQ Core Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tqcore

import "fmt"

// Threshold is the predicate a table rule applies to its computed aggregate.
// Op is one of the comparison operators or "between"; an empty Op passes any
// non-zero value (useful for raw boolean queries).
type Threshold struct {
	Op    string
	Value float64
	Min   float64
	Max   float64
}

// GreaterThan builds a "> v" threshold.
func GreaterThan(v float64) Threshold { return Threshold{Op: ">", Value: v} }

// AtLeast builds a ">= v" threshold.
func AtLeast(v float64) Threshold { return Threshold{Op: ">=", Value: v} }

// LessThan builds a "< v" threshold.
func LessThan(v float64) Threshold { return Threshold{Op: "<", Value: v} }

// AtMost builds a "<= v" threshold.
func AtMost(v float64) Threshold { return Threshold{Op: "<=", Value: v} }

// EqualTo builds a "= v" threshold.
func EqualTo(v float64) Threshold { return Threshold{Op: "=", Value: v} }

// NotEqualTo builds a "!= v" threshold.
func NotEqualTo(v float64) Threshold { return Threshold{Op: "!=", Value: v} }

// Within builds a "between min and max" threshold, inclusive on both ends.
func Within(min, max float64) Threshold { return Threshold{Op: "between", Min: min, Max: max} }

// Check applies the threshold to a computed value.
func (t Threshold) Check(value float64) bool {
	switch t.Op {
	case ">":
		return value > t.Value
	case ">=":
		return value >= t.Value
	case "<":
		return value < t.Value
	case "<=":
		return value <= t.Value
	case "=", "==":
		return value == t.Value
	case "!=":
		return value != t.Value
	case "between":
		return value >= t.Min && value <= t.Max
	case "":
		return value != 0
	}
	return false
}

// AggregateRule is a table rule computing a single aggregate over its target
// column and comparing it against a threshold. All built-in table rules
// except uniqueness and custom aggregates are AggregateRules.
type AggregateRule struct {
	ruleName  string
	fn        AggFunc
	threshold Threshold
	// second column for two-argument aggregates (corr, regression)
	other string
}

func newAggregateRule(name string, fn AggFunc, t Threshold) *AggregateRule {
	return &AggregateRule{ruleName: name, fn: fn, threshold: t}
}

// RowCount creates a rule checking the dataset's row count. It has no
// target column; its output column is named "row_count".
func RowCount(t Threshold) *AggregateRule { return newAggregateRule("row_count", AggCountAll, t) }

// CountDistinct creates a rule checking the number of distinct values.
func CountDistinct(t Threshold) *AggregateRule {
	return newAggregateRule("count_distinct", AggCountDistinct, t)
}

// Avg creates a rule checking the column mean.
func Avg(t Threshold) *AggregateRule { return newAggregateRule("avg", AggAvg, t) }

// Sum creates a rule checking the column sum.
func Sum(t Threshold) *AggregateRule { return newAggregateRule("sum", AggSum, t) }

// MinValue creates a rule checking the column minimum.
func MinValue(t Threshold) *AggregateRule { return newAggregateRule("min", AggMin, t) }

// MaxValue creates a rule checking the column maximum.
func MaxValue(t Threshold) *AggregateRule { return newAggregateRule("max", AggMax, t) }

// Stddev creates a rule checking the sample standard deviation.
func Stddev(t Threshold) *AggregateRule { return newAggregateRule("stddev", AggStddevSamp, t) }

// StddevPop creates a rule checking the population standard deviation.
func StddevPop(t Threshold) *AggregateRule { return newAggregateRule("stddev_pop", AggStddevPop, t) }

// Median creates a rule checking the column median.
func Median(t Threshold) *AggregateRule { return newAggregateRule("median", AggMedian, t) }

// Corr creates a rule checking the correlation between the target column and
// another column.
func Corr(other string, t Threshold) *AggregateRule {
	r := newAggregateRule("corr", AggCorr, t)
	r.other = other
	return r
}

// RegrSlope creates a rule checking the linear-regression slope of the
// target column (y) against another column (x).
func RegrSlope(x string, t Threshold) *AggregateRule {
	r := newAggregateRule("regr_slope", AggRegrSlope, t)
	r.other = x
	return r
}

// RegrR2 creates a rule checking the regression R² of the target column (y)
// against another column (x).
func RegrR2(x string, t Threshold) *AggregateRule {
	r := newAggregateRule("regr_r2", AggRegrR2, t)
	r.other = x
	return r
}

func (r *AggregateRule) Name() string        { return r.ruleName }
func (r *AggregateRule) Description() string { return "Checks an aggregate value against a threshold" }

func (r *AggregateRule) Aggregate(column string) (*Expr, error) {
	switch r.fn {
	case AggCountAll:
		return agg(AggCountAll), nil
	case AggCorr, AggCovarSamp, AggCovarPop, AggRegrSlope, AggRegrIntercept, AggRegrR2, AggRegrCount:
		if r.other == "" {
			return nil, fmt.Errorf("%s requires a second column", r.fn)
		}
		return agg(r.fn, col(column), col(r.other)), nil
	default:
		if column == "" {
			return nil, fmt.Errorf("%s requires a target column", r.fn)
		}
		return agg(r.fn, col(column)), nil
	}
}

func (r *AggregateRule) Check(value float64) bool { return r.threshold.Check(value) }

// NullCountRule counts the nulls in its target column across the whole
// dataset and checks the count against a threshold.
type NullCountRule struct {
	threshold Threshold
}

// NullCount creates a rule checking the table-wide null count of a column.
func NullCount(t Threshold) *NullCountRule { return &NullCountRule{threshold: t} }

func (r *NullCountRule) Name() string { return "null_count" }

func (r *NullCountRule) Description() string {
	return "Counts the number of null values in a column across the entire table"
}

func (r *NullCountRule) Aggregate(column string) (*Expr, error) {
	if column == "" {
		return nil, fmt.Errorf("null_count requires a target column")
	}
	// count(*) - count(col): count skips nulls.
	return arith("-", agg(AggCountAll), agg(AggCount, col(column))), nil
}

func (r *NullCountRule) Check(value float64) bool { return r.threshold.Check(value) }

// UniquenessRule checks that every value in the target column is distinct.
type UniquenessRule struct{}

// Uniqueness creates a rule that passes when the target column holds no
// duplicate non-null values.
func Uniqueness() *UniquenessRule { return &UniquenessRule{} }

func (r *UniquenessRule) Name() string { return "uniqueness" }

func (r *UniquenessRule) Description() string {
	return "Checks that all non-null values in a column are distinct"
}

func (r *UniquenessRule) Aggregate(column string) (*Expr, error) {
	if column == "" {
		return nil, fmt.Errorf("uniqueness requires a target column")
	}
	return arith("-", agg(AggCount, col(column)), agg(AggCountDistinct, col(column))), nil
}

// Check passes when the duplicate count is zero.
func (r *UniquenessRule) Check(value float64) bool { return value == 0 }

// CustomAggRule computes an aggregate written in the target engine's own
// grammar and checks it against a threshold. With an empty threshold the
// raw value itself decides: non-zero passes, which matches boolean queries.
type CustomAggRule struct {
	ruleName   string
	expression string
	threshold  Threshold
}

// CustomAgg creates a table rule from a raw engine aggregate expression.
func CustomAgg(ruleName, expression string, t Threshold) *CustomAggRule {
	return &CustomAggRule{ruleName: ruleName, expression: expression, threshold: t}
}

func (r *CustomAggRule) Name() string { return r.ruleName }

func (r *CustomAggRule) Description() string {
	return "Computes a custom engine aggregate and checks it against a threshold"
}

func (r *CustomAggRule) Aggregate(string) (*Expr, error) {
	if r.expression == "" {
		return nil, fmt.Errorf("custom aggregate rule %q has an empty expression", r.ruleName)
	}
	return raw(r.expression), nil
}

func (r *CustomAggRule) Check(value float64) bool { return r.threshold.Check(value) }
