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

// NullRule checks whether values in a column are null (or, negated, not null).
type NullRule struct {
	negated bool
}

// NotNull creates a rule that passes rows whose target value is not null.
func NotNull() *NullRule { return &NullRule{negated: true} }

// Null creates a rule that passes rows whose target value is null.
func Null() *NullRule { return &NullRule{} }

func (r *NullRule) Name() string {
	if r.negated {
		return "not_null"
	}
	return "null"
}

func (r *NullRule) Description() string {
	return "Checks if values in a column are null/not null"
}

func (r *NullRule) Predicate(column string) (*Expr, error) {
	return isNull(col(column), r.negated), nil
}

// RangeRule checks whether values fall within [min, max], inclusive.
type RangeRule struct {
	min     float64
	max     float64
	negated bool
}

// InRange creates a rule that passes rows whose target value is within
// [min, max].
func InRange(min, max float64) *RangeRule { return &RangeRule{min: min, max: max} }

// NotInRange creates a rule that passes rows whose target value is outside
// [min, max].
func NotInRange(min, max float64) *RangeRule {
	return &RangeRule{min: min, max: max, negated: true}
}

func (r *RangeRule) Name() string {
	if r.negated {
		return "not_in_range"
	}
	return "in_range"
}

func (r *RangeRule) Description() string {
	return "Checks if values in a column (do not) fall within a specified range"
}

func (r *RangeRule) Predicate(column string) (*Expr, error) {
	return between(col(column), lit(r.min), lit(r.max), r.negated), nil
}

// PatternRule checks values against a SQL LIKE pattern.
type PatternRule struct {
	pattern         string
	negated         bool
	caseInsensitive bool
}

// Like creates a case-sensitive LIKE pattern rule.
func Like(pattern string) *PatternRule { return &PatternRule{pattern: pattern} }

// NotLike creates a negated case-sensitive LIKE pattern rule.
func NotLike(pattern string) *PatternRule {
	return &PatternRule{pattern: pattern, negated: true}
}

// ILike creates a case-insensitive LIKE pattern rule.
func ILike(pattern string) *PatternRule {
	return &PatternRule{pattern: pattern, caseInsensitive: true}
}

// NotILike creates a negated case-insensitive LIKE pattern rule.
func NotILike(pattern string) *PatternRule {
	return &PatternRule{pattern: pattern, negated: true, caseInsensitive: true}
}

func (r *PatternRule) Name() string {
	switch {
	case r.negated && r.caseInsensitive:
		return "not_ilike"
	case r.negated:
		return "not_like"
	case r.caseInsensitive:
		return "ilike"
	default:
		return "like"
	}
}

func (r *PatternRule) Description() string {
	return "Checks if values in a column match a pattern"
}

func (r *PatternRule) Predicate(column string) (*Expr, error) {
	return like(col(column), r.pattern, r.caseInsensitive, r.negated), nil
}

// ComparisonRule compares values against a literal with one of the six
// comparison operators.
type ComparisonRule struct {
	op    string
	value any
}

// Lt creates a rule that passes rows whose value is less than v.
func Lt(v any) *ComparisonRule { return &ComparisonRule{op: "<", value: v} }

// Lte creates a rule that passes rows whose value is at most v.
func Lte(v any) *ComparisonRule { return &ComparisonRule{op: "<=", value: v} }

// Gt creates a rule that passes rows whose value is greater than v.
func Gt(v any) *ComparisonRule { return &ComparisonRule{op: ">", value: v} }

// Gte creates a rule that passes rows whose value is at least v.
func Gte(v any) *ComparisonRule { return &ComparisonRule{op: ">=", value: v} }

// EqValue creates a rule that passes rows whose value equals v.
func EqValue(v any) *ComparisonRule { return &ComparisonRule{op: "=", value: v} }

// NeqValue creates a rule that passes rows whose value differs from v.
func NeqValue(v any) *ComparisonRule { return &ComparisonRule{op: "!=", value: v} }

func (r *ComparisonRule) Name() string {
	switch r.op {
	case "<":
		return "less_than"
	case "<=":
		return "less_than_equals"
	case ">":
		return "greater_than"
	case ">=":
		return "greater_than_equals"
	case "=":
		return "equals"
	case "!=":
		return "not_equals"
	}
	return "comparison"
}

func (r *ComparisonRule) Description() string {
	return "Checks if values in a column satisfy a comparison with a value"
}

func (r *ComparisonRule) Predicate(column string) (*Expr, error) {
	switch r.op {
	case "<", "<=", ">", ">=", "=", "!=":
		return compare(r.op, col(column), lit(r.value)), nil
	}
	return nil, fmt.Errorf("unsupported comparison operator %q", r.op)
}

// LengthRule checks the character length of a string column. At least one
// bound must be set; both bounds are inclusive on the minimum and inclusive
// on the maximum.
type LengthRule struct {
	min *int
	max *int
}

// StrLength creates a rule that checks string length is within the given
// optional bounds.
func StrLength(min, max *int) *LengthRule { return &LengthRule{min: min, max: max} }

// StrMinLength creates a rule that checks string length is at least min.
func StrMinLength(min int) *LengthRule { return &LengthRule{min: &min} }

// StrMaxLength creates a rule that checks string length is at most max.
func StrMaxLength(max int) *LengthRule { return &LengthRule{max: &max} }

// StrNotEmpty creates a rule that checks the string has at least one character.
func StrNotEmpty() *LengthRule {
	one := 1
	return &LengthRule{min: &one}
}

// StrEmpty creates a rule that checks the string is empty.
func StrEmpty() *LengthRule {
	zero := 0
	return &LengthRule{max: &zero}
}

func (r *LengthRule) Name() string {
	switch {
	case r.min != nil && r.max != nil:
		return "length_range"
	case r.min != nil:
		return "min_length"
	case r.max != nil:
		return "max_length"
	}
	return "length"
}

func (r *LengthRule) Description() string {
	return "Checks if the length of a column is between a minimum and maximum value"
}

func (r *LengthRule) Predicate(column string) (*Expr, error) {
	length := charLength(col(column))
	switch {
	case r.min != nil && r.max != nil:
		return between(length, lit(*r.min), lit(*r.max), false), nil
	case r.min != nil:
		return compare(">=", length, lit(*r.min)), nil
	case r.max != nil:
		return compare("<=", length, lit(*r.max)), nil
	}
	return nil, fmt.Errorf("length rule must have either a minimum or maximum length")
}

// InSetRule checks membership in a fixed set of accepted values.
type InSetRule struct {
	values  []any
	negated bool
}

// InSet creates a rule that passes rows whose value is one of the given values.
func InSet(values ...any) *InSetRule { return &InSetRule{values: values} }

// NotInSet creates a rule that passes rows whose value is none of the given values.
func NotInSet(values ...any) *InSetRule { return &InSetRule{values: values, negated: true} }

func (r *InSetRule) Name() string {
	if r.negated {
		return "not_in_set"
	}
	return "in_set"
}

func (r *InSetRule) Description() string {
	return "Checks if values in a column belong to a set of accepted values"
}

func (r *InSetRule) Predicate(column string) (*Expr, error) {
	if len(r.values) == 0 {
		return nil, fmt.Errorf("in_set rule requires at least one value")
	}
	return in(col(column), r.values, r.negated), nil
}

// CustomRule wraps an expression written in the target engine's own grammar.
// Syntax is validated before evaluation when the engine supports it; type
// errors that only show up mid-evaluation surface as evaluation errors.
type CustomRule struct {
	ruleName   string
	expression string
}

// Custom creates a rule from a raw engine expression. The rule name becomes
// part of the derived column name, so it must be unique per target.
func Custom(ruleName, expression string) *CustomRule {
	return &CustomRule{ruleName: ruleName, expression: expression}
}

func (r *CustomRule) Name() string { return r.ruleName }

func (r *CustomRule) Description() string {
	return "Applies a custom engine expression to a column"
}

func (r *CustomRule) Predicate(string) (*Expr, error) {
	if r.expression == "" {
		return nil, fmt.Errorf("custom rule %q has an empty expression", r.ruleName)
	}
	return raw(r.expression), nil
}
