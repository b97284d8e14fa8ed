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

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// CheckScope is the granularity a parsed check expression applies to.
type CheckScope string

const (
	ScopeSchema CheckScope = "schema"
	ScopeTable  CheckScope = "table"
	ScopeColumn CheckScope = "column"
)

// BetweenRange holds the two bounds of a "between x and y" check.
type BetweenRange struct {
	Min interface{}
	Max interface{}
}

// CheckExpression is the parsed form of one check from a rules file, e.g.
// "in_range(age) between 0 and 120" or "row_count > 1000". For column and
// table checks the first function parameter names the target column.
type CheckExpression struct {
	FunctionName       string
	FunctionParameters []string
	Scope              CheckScope
	Operator           string
	ThresholdValue     interface{}
}

var (
	tableScopeFunctions = map[string]bool{
		"row_count":      true,
		"raw_query":      true,
		"null_count":     true,
		"count_distinct": true,
		"uniqueness":     true,
		"min":            true,
		"max":            true,
		"avg":            true,
		"sum":            true,
		"stddev":         true,
		"stddev_pop":     true,
		"median":         true,
		"corr":           true,
		"regr_slope":     true,
		"regr_r2":        true,
	}

	columnScopeFunctions = map[string]bool{
		"not_null":     true,
		"null":         true,
		"in_range":     true,
		"not_in_range": true,
		"like":         true,
		"not_like":     true,
		"ilike":        true,
		"not_ilike":    true,
		"length":       true,
		"value":        true,
		"in_set":       true,
		"not_in_set":   true,
	}

	schemaScopeFunctions = map[string]bool{
		"expect_columns":         true,
		"expect_columns_ordered": true,
		"columns_not_present":    true,
	}
)

// ParseCheckExpression parses a check expression of one of the forms
//
//	function(params...)
//	function(params...) <op> value
//	function(params...) between min and max
func ParseCheckExpression(expression string) (*CheckExpression, error) {
	expression = strings.TrimSpace(expression)

	if expression == "" {
		return nil, fmt.Errorf("empty expression")
	}

	check := &CheckExpression{
		FunctionParameters: []string{},
	}

	betweenRegex := regexp.MustCompile(`^(\w+)(?:\((.*?)\))?\s+between\s+(.+)\s+and\s+(.+)$`)
	operatorRegex := regexp.MustCompile(`^(\w+)(?:\((.*?)\))?\s*([<>=!]+)\s*(.+)$`)
	functionOnlyRegex := regexp.MustCompile(`^(\w+)(?:\((.*?)\))?$`)

	if matches := betweenRegex.FindStringSubmatch(expression); matches != nil {
		check.FunctionName = matches[1]
		check.Operator = "between"

		if matches[2] != "" {
			check.FunctionParameters = parseParameters(matches[2])
		}

		minVal, err := parseValue(strings.TrimSpace(matches[3]))
		if err != nil {
			return nil, fmt.Errorf("failed to parse min value: %v", err)
		}

		maxVal, err := parseValue(strings.TrimSpace(matches[4]))
		if err != nil {
			return nil, fmt.Errorf("failed to parse max value: %v", err)
		}

		check.ThresholdValue = BetweenRange{Min: minVal, Max: maxVal}

	} else if matches := operatorRegex.FindStringSubmatch(expression); matches != nil {
		check.FunctionName = matches[1]
		check.Operator = matches[3]

		if matches[2] != "" {
			check.FunctionParameters = parseParameters(matches[2])
		}

		val, err := parseValue(strings.TrimSpace(matches[4]))
		if err != nil {
			return nil, fmt.Errorf("failed to parse threshold value: %v", err)
		}
		check.ThresholdValue = val

	} else if matches := functionOnlyRegex.FindStringSubmatch(expression); matches != nil {
		check.FunctionName = matches[1]
		check.Operator = ""

		if matches[2] != "" {
			check.FunctionParameters = parseParameters(matches[2])
		}

	} else {
		return nil, fmt.Errorf("invalid expression format: %s", expression)
	}

	scope, ok := inferScope(check.FunctionName)
	if !ok {
		return nil, fmt.Errorf("unknown check function: %s", check.FunctionName)
	}
	check.Scope = scope

	return check, nil
}

func parseParameters(paramStr string) []string {
	if paramStr == "" {
		return []string{}
	}

	params := strings.Split(paramStr, ",")
	for i, param := range params {
		params[i] = strings.TrimSpace(param)
	}

	return params
}

func parseValue(valueStr string) (interface{}, error) {
	valueStr = strings.TrimSpace(valueStr)

	if valueStr == "" {
		return nil, fmt.Errorf("empty value")
	}

	// quoted strings keep their content verbatim
	if len(valueStr) >= 2 {
		if (valueStr[0] == '\'' && valueStr[len(valueStr)-1] == '\'') ||
			(valueStr[0] == '"' && valueStr[len(valueStr)-1] == '"') {
			return valueStr[1 : len(valueStr)-1], nil
		}
	}

	if strings.Contains(valueStr, ".") {
		if floatVal, err := strconv.ParseFloat(valueStr, 64); err == nil {
			return floatVal, nil
		}
	}

	if intVal, err := strconv.Atoi(valueStr); err == nil {
		return intVal, nil
	}

	return valueStr, nil
}

func inferScope(functionName string) (CheckScope, bool) {
	if tableScopeFunctions[functionName] {
		return ScopeTable, true
	}

	if columnScopeFunctions[functionName] {
		return ScopeColumn, true
	}

	if schemaScopeFunctions[functionName] {
		return ScopeSchema, true
	}

	return "", false
}

// Target returns the column a parsed column or table check applies to: the
// first function parameter, or "" for whole-table checks like row_count.
func (c *CheckExpression) Target() string {
	if len(c.FunctionParameters) > 0 {
		return c.FunctionParameters[0]
	}
	return ""
}

// threshold converts the parsed operator and value into a Threshold.
func (c *CheckExpression) threshold() (Threshold, error) {
	if c.Operator == "" {
		return Threshold{}, fmt.Errorf("%s requires a comparison or between clause", c.FunctionName)
	}
	if c.Operator == "between" {
		r, ok := c.ThresholdValue.(BetweenRange)
		if !ok {
			return Threshold{}, fmt.Errorf("between check %q has no range", c.FunctionName)
		}
		min, err := toFloat64(r.Min)
		if err != nil {
			return Threshold{}, err
		}
		max, err := toFloat64(r.Max)
		if err != nil {
			return Threshold{}, err
		}
		return Within(min, max), nil
	}
	v, err := toFloat64(c.ThresholdValue)
	if err != nil {
		return Threshold{}, err
	}
	return Threshold{Op: c.Operator, Value: v}, nil
}

func toFloat64(v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	default:
		return 0, fmt.Errorf("expected a numeric value, got %T (%v)", v, v)
	}
}

// CompileSchemaRule turns a parsed schema-scope check into a SchemaRule.
func (c *CheckExpression) CompileSchemaRule() (SchemaRule, error) {
	if c.Scope != ScopeSchema {
		return nil, fmt.Errorf("%s is not a schema check", c.FunctionName)
	}
	if len(c.FunctionParameters) == 0 {
		return nil, fmt.Errorf("%s requires at least one column", c.FunctionName)
	}
	switch c.FunctionName {
	case "expect_columns":
		return ExpectColumns(c.FunctionParameters...), nil
	case "expect_columns_ordered":
		return ExpectColumnsOrdered(c.FunctionParameters...), nil
	case "columns_not_present":
		return ColumnsNotPresent(c.FunctionParameters...), nil
	}
	return nil, fmt.Errorf("unknown schema check function: %s", c.FunctionName)
}

// CompileColumnRule turns a parsed column-scope check into a ColumnRule.
// The rule's target is CheckExpression.Target.
func (c *CheckExpression) CompileColumnRule() (ColumnRule, error) {
	if c.Scope != ScopeColumn {
		return nil, fmt.Errorf("%s is not a column check", c.FunctionName)
	}
	if c.Target() == "" {
		return nil, fmt.Errorf("%s requires a target column", c.FunctionName)
	}

	switch c.FunctionName {
	case "not_null":
		return NotNull(), nil
	case "null":
		return Null(), nil

	case "in_range", "not_in_range":
		r, ok := c.ThresholdValue.(BetweenRange)
		if !ok || c.Operator != "between" {
			return nil, fmt.Errorf("%s requires a between clause", c.FunctionName)
		}
		min, err := toFloat64(r.Min)
		if err != nil {
			return nil, err
		}
		max, err := toFloat64(r.Max)
		if err != nil {
			return nil, err
		}
		if c.FunctionName == "not_in_range" {
			return NotInRange(min, max), nil
		}
		return InRange(min, max), nil

	case "like", "not_like", "ilike", "not_ilike":
		if c.Operator != "=" {
			return nil, fmt.Errorf("%s requires the form %s(col) = 'pattern'", c.FunctionName, c.FunctionName)
		}
		pattern, ok := c.ThresholdValue.(string)
		if !ok {
			return nil, fmt.Errorf("%s requires a string pattern", c.FunctionName)
		}
		switch c.FunctionName {
		case "like":
			return Like(pattern), nil
		case "not_like":
			return NotLike(pattern), nil
		case "ilike":
			return ILike(pattern), nil
		default:
			return NotILike(pattern), nil
		}

	case "length":
		switch c.Operator {
		case "between":
			r, ok := c.ThresholdValue.(BetweenRange)
			if !ok {
				return nil, fmt.Errorf("length between check has no range")
			}
			min, err := toFloat64(r.Min)
			if err != nil {
				return nil, err
			}
			max, err := toFloat64(r.Max)
			if err != nil {
				return nil, err
			}
			minInt, maxInt := int(min), int(max)
			return StrLength(&minInt, &maxInt), nil
		case ">=":
			v, err := toFloat64(c.ThresholdValue)
			if err != nil {
				return nil, err
			}
			return StrMinLength(int(v)), nil
		case "<=":
			v, err := toFloat64(c.ThresholdValue)
			if err != nil {
				return nil, err
			}
			return StrMaxLength(int(v)), nil
		}
		return nil, fmt.Errorf("length supports between, >= and <= checks, got %q", c.Operator)

	case "value":
		switch c.Operator {
		case "<":
			return Lt(c.ThresholdValue), nil
		case "<=":
			return Lte(c.ThresholdValue), nil
		case ">":
			return Gt(c.ThresholdValue), nil
		case ">=":
			return Gte(c.ThresholdValue), nil
		case "=", "==":
			return EqValue(c.ThresholdValue), nil
		case "!=":
			return NeqValue(c.ThresholdValue), nil
		}
		return nil, fmt.Errorf("value requires a comparison operator, got %q", c.Operator)

	case "in_set", "not_in_set":
		if len(c.FunctionParameters) < 2 {
			return nil, fmt.Errorf("%s requires a column and at least one value", c.FunctionName)
		}
		values := make([]any, 0, len(c.FunctionParameters)-1)
		for _, p := range c.FunctionParameters[1:] {
			v, err := parseValue(p)
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		if c.FunctionName == "not_in_set" {
			return NotInSet(values...), nil
		}
		return InSet(values...), nil
	}

	return nil, fmt.Errorf("unknown column check function: %s", c.FunctionName)
}

// CompileTableRule turns a parsed table-scope check into a TableRule. The
// raw_query function is handled by the config loader, not here.
func (c *CheckExpression) CompileTableRule() (TableRule, error) {
	if c.Scope != ScopeTable {
		return nil, fmt.Errorf("%s is not a table check", c.FunctionName)
	}

	switch c.FunctionName {
	case "uniqueness":
		if c.Target() == "" {
			return nil, fmt.Errorf("uniqueness requires a target column")
		}
		return Uniqueness(), nil

	case "row_count":
		t, err := c.threshold()
		if err != nil {
			return nil, err
		}
		return RowCount(t), nil

	case "null_count":
		t, err := c.threshold()
		if err != nil {
			return nil, err
		}
		return NullCount(t), nil

	case "count_distinct":
		t, err := c.threshold()
		if err != nil {
			return nil, err
		}
		return CountDistinct(t), nil

	case "min", "max", "avg", "sum", "stddev", "stddev_pop", "median":
		t, err := c.threshold()
		if err != nil {
			return nil, err
		}
		switch c.FunctionName {
		case "min":
			return MinValue(t), nil
		case "max":
			return MaxValue(t), nil
		case "avg":
			return Avg(t), nil
		case "sum":
			return Sum(t), nil
		case "stddev":
			return Stddev(t), nil
		case "stddev_pop":
			return StddevPop(t), nil
		default:
			return Median(t), nil
		}

	case "corr", "regr_slope", "regr_r2":
		if len(c.FunctionParameters) != 2 {
			return nil, fmt.Errorf("%s requires two columns", c.FunctionName)
		}
		t, err := c.threshold()
		if err != nil {
			return nil, err
		}
		other := c.FunctionParameters[1]
		switch c.FunctionName {
		case "corr":
			return Corr(other, t), nil
		case "regr_slope":
			return RegrSlope(other, t), nil
		default:
			return RegrR2(other, t), nil
		}
	}

	return nil, fmt.Errorf("unknown table check function: %s", c.FunctionName)
}
