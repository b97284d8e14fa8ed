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
	"strings"
)

// ColumnExistsRule checks that a column is present in the schema.
type ColumnExistsRule struct {
	column string
}

// ColumnExists creates a rule that checks a column exists in the schema.
func ColumnExists(column string) *ColumnExistsRule {
	return &ColumnExistsRule{column: column}
}

func (r *ColumnExistsRule) Name() string        { return "column_exists" }
func (r *ColumnExistsRule) Description() string { return "Checks if a column exists in the schema" }

func (r *ColumnExistsRule) ValidateSchema(schema *Schema) SchemaResult {
	res := SchemaResult{Rule: r.Name(), Column: r.column}
	if !schema.HasColumn(r.column) {
		res.Diagnostic = fmt.Sprintf("column %q not found", r.column)
		return res
	}
	res.Pass = true
	return res
}

// ColumnTypeRule checks that a column has the expected engine type.
type ColumnTypeRule struct {
	column       string
	expectedType string
}

// ColumnHasType creates a rule that checks a column's type. The expected
// type is compared case-insensitively against the engine's reported type.
func ColumnHasType(column, expectedType string) *ColumnTypeRule {
	return &ColumnTypeRule{column: column, expectedType: expectedType}
}

func (r *ColumnTypeRule) Name() string        { return "column_type" }
func (r *ColumnTypeRule) Description() string { return "Checks if a column has a specific data type" }

func (r *ColumnTypeRule) ValidateSchema(schema *Schema) SchemaResult {
	res := SchemaResult{Rule: r.Name(), Column: r.column}
	c, ok := schema.Column(r.column)
	if !ok {
		res.Diagnostic = fmt.Sprintf("column %q not found", r.column)
		return res
	}
	if !strings.EqualFold(c.Type, r.expectedType) {
		res.Diagnostic = fmt.Sprintf("column %q: expected type %s but got %s", r.column, r.expectedType, c.Type)
		return res
	}
	res.Pass = true
	return res
}

// ColumnNullableRule checks a column's nullability flag.
type ColumnNullableRule struct {
	column           string
	expectedNullable bool
}

// ColumnNullable creates a rule that checks a column is nullable.
func ColumnNullable(column string) *ColumnNullableRule {
	return &ColumnNullableRule{column: column, expectedNullable: true}
}

// ColumnNotNullable creates a rule that checks a column is not nullable.
func ColumnNotNullable(column string) *ColumnNullableRule {
	return &ColumnNullableRule{column: column, expectedNullable: false}
}

func (r *ColumnNullableRule) Name() string        { return "column_nullable" }
func (r *ColumnNullableRule) Description() string { return "Checks if a column is nullable" }

func (r *ColumnNullableRule) ValidateSchema(schema *Schema) SchemaResult {
	res := SchemaResult{Rule: r.Name(), Column: r.column}
	c, ok := schema.Column(r.column)
	if !ok {
		res.Diagnostic = fmt.Sprintf("column %q not found", r.column)
		return res
	}
	if c.Nullable != r.expectedNullable {
		res.Diagnostic = fmt.Sprintf("column %q: nullable is %v, expected %v", r.column, c.Nullable, r.expectedNullable)
		return res
	}
	res.Pass = true
	return res
}

// ExpectColumnsRule checks that a set of columns is present, optionally in
// the exact given order at the head of the schema.
type ExpectColumnsRule struct {
	columns []string
	ordered bool
}

// ExpectColumns creates a rule that checks every named column is present.
func ExpectColumns(columns ...string) *ExpectColumnsRule {
	return &ExpectColumnsRule{columns: columns}
}

// ExpectColumnsOrdered creates a rule that checks the schema's columns match
// the given names in the given order.
func ExpectColumnsOrdered(columns ...string) *ExpectColumnsRule {
	return &ExpectColumnsRule{columns: columns, ordered: true}
}

func (r *ExpectColumnsRule) Name() string {
	if r.ordered {
		return "expect_columns_ordered"
	}
	return "expect_columns"
}

func (r *ExpectColumnsRule) Description() string {
	return "Checks if the expected columns are present in the schema"
}

func (r *ExpectColumnsRule) ValidateSchema(schema *Schema) SchemaResult {
	res := SchemaResult{Rule: r.Name()}
	if r.ordered {
		actual := schema.Names()
		if len(actual) < len(r.columns) {
			res.Diagnostic = fmt.Sprintf("expected %d columns in order, schema has %d", len(r.columns), len(actual))
			return res
		}
		for i, want := range r.columns {
			if actual[i] != want {
				res.Diagnostic = fmt.Sprintf("column at position %d is %q, expected %q", i, actual[i], want)
				return res
			}
		}
		res.Pass = true
		return res
	}

	var missing []string
	for _, want := range r.columns {
		if !schema.HasColumn(want) {
			missing = append(missing, want)
		}
	}
	if len(missing) > 0 {
		res.Diagnostic = fmt.Sprintf("missing columns: %s", strings.Join(missing, ", "))
		return res
	}
	res.Pass = true
	return res
}

// ColumnsNotPresentRule checks that none of the named columns exist, e.g.
// to verify a deprecated or PII column has been dropped upstream.
type ColumnsNotPresentRule struct {
	columns []string
}

// ColumnsNotPresent creates a rule that checks the named columns are absent.
func ColumnsNotPresent(columns ...string) *ColumnsNotPresentRule {
	return &ColumnsNotPresentRule{columns: columns}
}

func (r *ColumnsNotPresentRule) Name() string { return "columns_not_present" }

func (r *ColumnsNotPresentRule) Description() string {
	return "Checks that the given columns are not present in the schema"
}

func (r *ColumnsNotPresentRule) ValidateSchema(schema *Schema) SchemaResult {
	res := SchemaResult{Rule: r.Name()}
	var present []string
	for _, c := range r.columns {
		if schema.HasColumn(c) {
			present = append(present, c)
		}
	}
	if len(present) > 0 {
		res.Diagnostic = fmt.Sprintf("unexpected columns present: %s", strings.Join(present, ", "))
		return res
	}
	res.Pass = true
	return res
}
