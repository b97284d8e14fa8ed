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

// Package memtable is an in-memory engine for small datasets and tests.
// It evaluates the core expression tree directly over Go values and uses
// CEL as the grammar for raw expressions.
package memtable

import (
	"context"
	"fmt"

	"github.com/TabularQuality/tq-core"
)

// Table is an in-memory dataset. It implements tqcore.Dataset and
// tqcore.ExprValidator. A Table is immutable through the Dataset interface;
// every derivation returns a new Table sharing no row maps with the source.
type Table struct {
	schema *tqcore.Schema
	rows   []tqcore.Row
}

// New creates a Table from a column list and rows. Rows are copied; a nil
// value (or a missing key) is an engine NULL.
func New(columns []tqcore.Column, rows []tqcore.Row) *Table {
	schema := &tqcore.Schema{Columns: make([]tqcore.Column, len(columns))}
	copy(schema.Columns, columns)
	for i := range schema.Columns {
		schema.Columns[i].Position = i
	}
	return &Table{schema: schema, rows: copyRows(rows)}
}

func copyRows(rows []tqcore.Row) []tqcore.Row {
	out := make([]tqcore.Row, len(rows))
	for i, r := range rows {
		nr := make(tqcore.Row, len(r))
		for k, v := range r {
			nr[k] = v
		}
		out[i] = nr
	}
	return out
}

func (t *Table) Schema(context.Context) (*tqcore.Schema, error) {
	schema := &tqcore.Schema{Columns: make([]tqcore.Column, len(t.schema.Columns))}
	copy(schema.Columns, t.schema.Columns)
	return schema, nil
}

func (t *Table) RowCount(context.Context) (int64, error) {
	return int64(len(t.rows)), nil
}

func (t *Table) WithColumn(ctx context.Context, name string, expr *tqcore.Expr) (tqcore.Dataset, error) {
	if t.schema.HasColumn(name) {
		return nil, fmt.Errorf("column %q already exists", name)
	}
	ev, err := t.evaluator(expr)
	if err != nil {
		return nil, err
	}

	rows := copyRows(t.rows)
	for i := range rows {
		v, err := ev.eval(t.rows[i])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		rows[i][name] = v
	}

	return t.derive(name, "Bool", rows), nil
}

func (t *Table) WithValue(ctx context.Context, name string, value any) (tqcore.Dataset, error) {
	if t.schema.HasColumn(name) {
		return nil, fmt.Errorf("column %q already exists", name)
	}
	rows := copyRows(t.rows)
	for i := range rows {
		rows[i][name] = value
	}
	colType := "Bool"
	switch value.(type) {
	case string:
		colType = "String"
	case int, int64, float64:
		colType = "Float64"
	}
	return t.derive(name, colType, rows), nil
}

func (t *Table) derive(name, colType string, rows []tqcore.Row) *Table {
	columns := make([]tqcore.Column, len(t.schema.Columns), len(t.schema.Columns)+1)
	copy(columns, t.schema.Columns)
	columns = append(columns, tqcore.Column{
		Name:     name,
		Type:     colType,
		Nullable: true,
		Position: len(columns),
	})
	return &Table{schema: &tqcore.Schema{Columns: columns}, rows: rows}
}

func (t *Table) EvalPredicate(ctx context.Context, expr *tqcore.Expr) ([]bool, error) {
	ev, err := t.evaluator(expr)
	if err != nil {
		return nil, err
	}
	out := make([]bool, len(t.rows))
	for i, row := range t.rows {
		v, err := ev.eval(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		if v == nil {
			// predicate undefined for this row
			continue
		}
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("row %d: expression yielded %T, expected a boolean", i, v)
		}
		out[i] = b
	}
	return out, nil
}

func (t *Table) EvalAggregate(ctx context.Context, expr *tqcore.Expr) (float64, error) {
	return t.evalAggExpr(expr)
}

func (t *Table) Filter(ctx context.Context, expr *tqcore.Expr) (tqcore.Dataset, error) {
	keep, err := t.EvalPredicate(ctx, expr)
	if err != nil {
		return nil, err
	}
	var rows []tqcore.Row
	for i, row := range t.rows {
		if keep[i] {
			rows = append(rows, row)
		}
	}
	columns := make([]tqcore.Column, len(t.schema.Columns))
	copy(columns, t.schema.Columns)
	return &Table{schema: &tqcore.Schema{Columns: columns}, rows: copyRows(rows)}, nil
}

func (t *Table) Select(ctx context.Context, columns []string) (tqcore.Dataset, error) {
	selected := make([]tqcore.Column, 0, len(columns))
	for _, name := range columns {
		c, ok := t.schema.Column(name)
		if !ok {
			return nil, fmt.Errorf("column %q not found", name)
		}
		kept := *c
		kept.Position = len(selected)
		selected = append(selected, kept)
	}

	rows := make([]tqcore.Row, len(t.rows))
	for i, row := range t.rows {
		nr := make(tqcore.Row, len(columns))
		for _, name := range columns {
			nr[name] = row[name]
		}
		rows[i] = nr
	}

	return &Table{schema: &tqcore.Schema{Columns: selected}, rows: rows}, nil
}

func (t *Table) Collect(context.Context) ([]tqcore.Row, error) {
	return copyRows(t.rows), nil
}

// ValidateExpr compiles every raw fragment in the expression against the
// table's CEL environment, surfacing grammar and type errors before any
// evaluation runs.
func (t *Table) ValidateExpr(ctx context.Context, expr *tqcore.Expr) error {
	_, err := t.evaluator(expr)
	return err
}

// Engine is an in-memory registry of named tables. It implements
// tqcore.Engine.
type Engine struct {
	tables map[string]*Table
}

// NewEngine creates an empty in-memory engine.
func NewEngine() *Engine {
	return &Engine{tables: make(map[string]*Table)}
}

// Register adds a table under the given name, replacing any previous one.
func (e *Engine) Register(name string, table *Table) {
	e.tables[name] = table
}

func (e *Engine) Table(name string) tqcore.Dataset {
	if t, ok := e.tables[name]; ok {
		return t
	}
	return &missingTable{name: name}
}

func (e *Engine) Close() error { return nil }

// missingTable defers the lookup failure to the first operation, since
// tqcore.Engine.Table does not return an error.
type missingTable struct {
	name string
}

func (m *missingTable) err() error {
	return fmt.Errorf("table %q not registered", m.name)
}

func (m *missingTable) Schema(context.Context) (*tqcore.Schema, error) { return nil, m.err() }
func (m *missingTable) RowCount(context.Context) (int64, error)       { return 0, m.err() }
func (m *missingTable) WithColumn(context.Context, string, *tqcore.Expr) (tqcore.Dataset, error) {
	return nil, m.err()
}
func (m *missingTable) WithValue(context.Context, string, any) (tqcore.Dataset, error) {
	return nil, m.err()
}
func (m *missingTable) EvalPredicate(context.Context, *tqcore.Expr) ([]bool, error) {
	return nil, m.err()
}
func (m *missingTable) EvalAggregate(context.Context, *tqcore.Expr) (float64, error) {
	return 0, m.err()
}
func (m *missingTable) Filter(context.Context, *tqcore.Expr) (tqcore.Dataset, error) {
	return nil, m.err()
}
func (m *missingTable) Select(context.Context, []string) (tqcore.Dataset, error) {
	return nil, m.err()
}
func (m *missingTable) Collect(context.Context) ([]tqcore.Row, error) { return nil, m.err() }
