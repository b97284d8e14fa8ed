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

package adapters

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/TabularQuality/tq-core"
)

// sqlDataset is a dataset handle backed by a SQL engine. It never holds row
// data: the handle is a SELECT statement, and every derivation wraps it in
// one more subquery. Rows only cross the wire on EvalPredicate, aggregate
// and Collect calls.
type sqlDataset struct {
	runner  Runner
	dialect Dialect
	logger  *slog.Logger

	// src is the SELECT producing this dataset.
	src string

	// database/table are set on base-table handles for lazy introspection;
	// derived handles carry schema directly.
	database string
	table    string
	schema   *tqcore.Schema
}

func (d *sqlDataset) Schema(ctx context.Context) (*tqcore.Schema, error) {
	if d.schema == nil {
		columns, err := d.runner.QueryColumns(ctx, d.dialect.ColumnsQuery(d.database, d.table))
		if err != nil {
			return nil, fmt.Errorf("failed to introspect %s: %w", d.table, err)
		}
		if len(columns) == 0 {
			return nil, fmt.Errorf("table %q not found", d.table)
		}
		d.schema = &tqcore.Schema{Columns: columns}
	}
	schema := &tqcore.Schema{Columns: make([]tqcore.Column, len(d.schema.Columns))}
	copy(schema.Columns, d.schema.Columns)
	return schema, nil
}

func (d *sqlDataset) RowCount(ctx context.Context) (int64, error) {
	count, err := d.runner.QueryFloat(ctx, fmt.Sprintf("select count(*) from (%s) as t", d.src))
	if err != nil {
		return 0, err
	}
	return int64(count), nil
}

func (d *sqlDataset) WithColumn(ctx context.Context, name string, expr *tqcore.Expr) (tqcore.Dataset, error) {
	schema, err := d.Schema(ctx)
	if err != nil {
		return nil, err
	}
	if schema.HasColumn(name) {
		return nil, errColumnExists(name)
	}
	rendered, err := RenderExpr(d.dialect, expr)
	if err != nil {
		return nil, err
	}
	return d.deriveColumn(schema, name, rendered), nil
}

func (d *sqlDataset) WithValue(ctx context.Context, name string, value any) (tqcore.Dataset, error) {
	schema, err := d.Schema(ctx)
	if err != nil {
		return nil, err
	}
	if schema.HasColumn(name) {
		return nil, errColumnExists(name)
	}
	rendered, err := renderLiteral(value)
	if err != nil {
		return nil, err
	}
	return d.deriveColumn(schema, name, rendered), nil
}

func (d *sqlDataset) deriveColumn(schema *tqcore.Schema, name, rendered string) *sqlDataset {
	src := fmt.Sprintf("select t.*, %s as %s from (%s) as t",
		rendered, d.dialect.QuoteIdent(name), d.src)
	schema.Columns = append(schema.Columns, tqcore.Column{
		Name:     name,
		Type:     "Bool",
		Nullable: true,
		Position: len(schema.Columns),
	})
	d.logger.Debug("derived column", "column", name, "expr", rendered)
	return d.derive(src, schema)
}

func (d *sqlDataset) derive(src string, schema *tqcore.Schema) *sqlDataset {
	return &sqlDataset{
		runner:  d.runner,
		dialect: d.dialect,
		logger:  d.logger,
		src:     src,
		schema:  schema,
	}
}

func (d *sqlDataset) EvalPredicate(ctx context.Context, expr *tqcore.Expr) ([]bool, error) {
	rendered, err := RenderExpr(d.dialect, expr)
	if err != nil {
		return nil, err
	}
	// coalesce folds a NULL predicate to false on the engine side
	query := fmt.Sprintf("select %s from (%s) as t",
		d.dialect.CastBool(fmt.Sprintf("coalesce(%s, false)", rendered)), d.src)
	return d.runner.QueryBools(ctx, query)
}

func (d *sqlDataset) EvalAggregate(ctx context.Context, expr *tqcore.Expr) (float64, error) {
	rendered, err := RenderExpr(d.dialect, expr)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf("select %s from (%s) as t",
		d.dialect.CastFloat(fmt.Sprintf("coalesce(%s, 0)", rendered)), d.src)
	d.logger.Debug("evaluating aggregate", "query", query)
	return d.runner.QueryFloat(ctx, query)
}

func (d *sqlDataset) Filter(ctx context.Context, expr *tqcore.Expr) (tqcore.Dataset, error) {
	schema, err := d.Schema(ctx)
	if err != nil {
		return nil, err
	}
	rendered, err := RenderExpr(d.dialect, expr)
	if err != nil {
		return nil, err
	}
	src := fmt.Sprintf("select * from (%s) as t where %s", d.src, rendered)
	return d.derive(src, schema), nil
}

func (d *sqlDataset) Select(ctx context.Context, columns []string) (tqcore.Dataset, error) {
	schema, err := d.Schema(ctx)
	if err != nil {
		return nil, err
	}
	selected := make([]tqcore.Column, 0, len(columns))
	quoted := make([]string, 0, len(columns))
	for _, name := range columns {
		c, ok := schema.Column(name)
		if !ok {
			return nil, fmt.Errorf("column %q not found", name)
		}
		kept := *c
		kept.Position = len(selected)
		selected = append(selected, kept)
		quoted = append(quoted, d.dialect.QuoteIdent(name))
	}
	src := fmt.Sprintf("select %s from (%s) as t", strings.Join(quoted, ", "), d.src)
	return d.derive(src, &tqcore.Schema{Columns: selected}), nil
}

func (d *sqlDataset) Collect(ctx context.Context) ([]tqcore.Row, error) {
	return d.runner.QueryRows(ctx, d.src)
}
