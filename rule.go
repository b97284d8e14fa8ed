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

// VerdictColumn is the reserved name of the combined pass/fail column
// appended by Apply. No rule may resolve to this name.
const VerdictColumn = "dq_pass"

// RuleKind tags the three rule granularities.
type RuleKind string

const (
	KindSchema RuleKind = "schema"
	KindColumn RuleKind = "column"
	KindTable  RuleKind = "table"
)

// SchemaRule is a structural check evaluated against the schema alone,
// before any row is read. A failure invalidates the whole dataset.
type SchemaRule interface {
	Name() string
	Description() string

	// ValidateSchema inspects the schema and reports the outcome. It must
	// not touch row data and must not mutate the schema.
	ValidateSchema(schema *Schema) SchemaResult
}

// ColumnRule is a per-row predicate over one (or, via the expression,
// several) columns. The rule does not evaluate anything itself: it builds
// the boolean expression the engine materializes as a derived column
// aligned with the input row order.
type ColumnRule interface {
	Name() string
	Description() string

	// Predicate builds the per-row boolean expression for the target
	// column. A configuration problem (e.g. a length rule with no bounds)
	// is reported here and surfaces as a build error.
	Predicate(column string) (*Expr, error)
}

// TableRule is an aggregate check over the whole dataset. Aggregate builds
// the expression the engine computes; Check compares the resulting scalar
// against the rule's threshold. The computed value is kept on the
// ScalarResult for reporting.
type TableRule interface {
	Name() string
	Description() string

	// Aggregate builds the full-dataset aggregate expression for the
	// target column. Target-less rules (e.g. row_count) ignore the column.
	Aggregate(column string) (*Expr, error)

	// Check applies the rule's threshold predicate to the computed value.
	Check(value float64) bool
}

// SchemaResult is the outcome of one schema rule: a pass/fail plus a
// human-readable diagnostic (missing column name, type mismatch, ...).
type SchemaResult struct {
	Rule       string
	Column     string
	Pass       bool
	Diagnostic string
}

// RowResult is the outcome of one column rule: row-aligned booleans, one
// per input row. It is immutable once produced; an engine NULL (predicate
// undefined for the row, e.g. comparing a NULL) is folded to false.
type RowResult struct {
	Rule   string
	Target string
	// Column is the resolved output column name ({target}_{rule_name}).
	Column string
	Values []bool
}

// ScalarResult is the outcome of one table rule: a single pass/fail that
// Apply broadcasts to every row, plus the underlying computed value (the
// stddev that was compared against the threshold, the distinct count, ...).
type ScalarResult struct {
	Rule   string
	Target string
	Column string
	Pass   bool
	Value  float64
}

// ResolveColumnName derives the output column name for a column or table
// rule: "{target}_{rule_name}", or the bare rule name for target-less table
// rules. Schema rules produce no output column.
func ResolveColumnName(target, ruleName string) string {
	if target == "" {
		return ruleName
	}
	return target + "_" + ruleName
}
