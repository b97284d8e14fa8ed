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

import "context"

// Column describes one column of a dataset schema as reported by the engine.
// Type is the engine's own type name; the core only inspects it through
// IsNumericType / IsStringType.
type Column struct {
	Name     string
	Type     string
	Nullable bool
	Position int
}

// Schema is the queryable structure of a dataset.
type Schema struct {
	Columns []Column
}

// Column returns the named column, if present.
func (s *Schema) Column(name string) (*Column, bool) {
	for i := range s.Columns {
		if s.Columns[i].Name == name {
			return &s.Columns[i], true
		}
	}
	return nil, false
}

// HasColumn reports whether the schema contains the named column.
func (s *Schema) HasColumn(name string) bool {
	_, ok := s.Column(name)
	return ok
}

// Names returns the column names in schema order.
func (s *Schema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Row is one materialized row, keyed by column name. A nil value is an
// engine NULL.
type Row map[string]any

// Dataset is the opaque handle to a tabular dataset owned by an external
// query engine. The core only ever asks the engine to project derived
// columns, aggregate, filter, and hand back results; expression evaluation
// itself stays on the engine side. Implementations must preserve row order
// and count across WithColumn/WithValue and must not mutate the receiver:
// every derivation returns a new handle.
type Dataset interface {
	// Schema returns the dataset's schema, including derived columns.
	Schema(ctx context.Context) (*Schema, error)

	// RowCount returns the number of rows.
	RowCount(ctx context.Context) (int64, error)

	// WithColumn returns a new dataset with a derived boolean column
	// computed from expr, aligned with the existing row order.
	WithColumn(ctx context.Context, name string, expr *Expr) (Dataset, error)

	// WithValue returns a new dataset with a constant column broadcast to
	// every row.
	WithValue(ctx context.Context, name string, value any) (Dataset, error)

	// EvalPredicate materializes a boolean expression for every row, in row
	// order. An engine NULL folds to false.
	EvalPredicate(ctx context.Context, expr *Expr) ([]bool, error)

	// EvalAggregate computes a full-dataset aggregate expression and
	// returns its scalar value.
	EvalAggregate(ctx context.Context, expr *Expr) (float64, error)

	// Filter returns the rows satisfying the predicate, preserving their
	// relative order.
	Filter(ctx context.Context, expr *Expr) (Dataset, error)

	// Select projects the dataset onto the named columns.
	Select(ctx context.Context, columns []string) (Dataset, error)

	// Collect materializes every row, in row order.
	Collect(ctx context.Context) ([]Row, error)
}

// ExprValidator is implemented by engines that can check an expression (in
// particular the raw fragments carried by custom rules) against their own
// grammar without executing it. When a dataset implements it, Apply
// validates every rule expression before touching row data.
type ExprValidator interface {
	ValidateExpr(ctx context.Context, expr *Expr) error
}

// Engine is a factory for dataset handles, implemented by the engine
// adapter packages.
type Engine interface {
	Table(name string) Dataset
	Close() error
}
