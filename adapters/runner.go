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
	"database/sql"
	"fmt"
	"reflect"
	"strconv"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/TabularQuality/tq-core"
)

// Runner executes rendered queries. Two implementations exist: one over
// database/sql (DuckDB, PostgreSQL, MySQL) and one over the native
// ClickHouse connection.
type Runner interface {
	// QueryFloat runs a single-row, single-column query cast to float.
	QueryFloat(ctx context.Context, query string) (float64, error)

	// QueryBools runs a single-column boolean query, one value per row.
	// A NULL scans as false.
	QueryBools(ctx context.Context, query string) ([]bool, error)

	// QueryColumns runs an introspection query yielding
	// (name, type, is_nullable YES/NO) string rows.
	QueryColumns(ctx context.Context, query string) ([]tqcore.Column, error)

	// QueryRows materializes every row of a query.
	QueryRows(ctx context.Context, query string) ([]tqcore.Row, error)

	Close() error
}

// sqlRunner runs queries through database/sql.
type sqlRunner struct {
	db *sql.DB
}

func newSQLRunner(db *sql.DB) *sqlRunner { return &sqlRunner{db: db} }

func (r *sqlRunner) QueryFloat(ctx context.Context, query string) (float64, error) {
	var v sql.NullFloat64
	if err := r.db.QueryRowContext(ctx, query).Scan(&v); err != nil {
		return 0, err
	}
	return v.Float64, nil
}

func (r *sqlRunner) QueryBools(ctx context.Context, query string) ([]bool, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []bool
	for rows.Next() {
		var v sql.NullBool
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v.Valid && v.Bool)
	}
	return out, rows.Err()
}

func (r *sqlRunner) QueryColumns(ctx context.Context, query string) ([]tqcore.Column, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []tqcore.Column
	for rows.Next() {
		var name, dataType, isNullable string
		if err := rows.Scan(&name, &dataType, &isNullable); err != nil {
			return nil, err
		}
		out = append(out, tqcore.Column{
			Name:     name,
			Type:     dataType,
			Nullable: isNullable == "YES" || isNullable == "yes",
			Position: len(out),
		})
	}
	return out, rows.Err()
}

func (r *sqlRunner) QueryRows(ctx context.Context, query string) ([]tqcore.Row, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []tqcore.Row
	for rows.Next() {
		dest := make([]any, len(names))
		for i := range dest {
			dest[i] = new(any)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		row := make(tqcore.Row, len(names))
		for i, name := range names {
			row[name] = normalizeSQLValue(*(dest[i].(*any)))
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *sqlRunner) Close() error { return r.db.Close() }

// normalizeSQLValue maps driver-specific scan results onto the small set of
// Go types the core works with.
func normalizeSQLValue(v any) any {
	switch x := v.(type) {
	case []byte:
		s := string(x)
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
		return s
	default:
		return v
	}
}

// chRunner runs queries through the native ClickHouse connection.
type chRunner struct {
	cnn driver.Conn
}

func newClickhouseRunner(cnn driver.Conn) *chRunner { return &chRunner{cnn: cnn} }

func (r *chRunner) QueryFloat(ctx context.Context, query string) (float64, error) {
	var v float64
	if err := r.cnn.QueryRow(ctx, query).Scan(&v); err != nil {
		return 0, err
	}
	return v, nil
}

func (r *chRunner) QueryBools(ctx context.Context, query string) ([]bool, error) {
	rows, err := r.cnn.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []bool
	for rows.Next() {
		var v bool
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *chRunner) QueryColumns(ctx context.Context, query string) ([]tqcore.Column, error) {
	rows, err := r.cnn.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []tqcore.Column
	for rows.Next() {
		var name, dataType, isNullable string
		if err := rows.Scan(&name, &dataType, &isNullable); err != nil {
			return nil, err
		}
		out = append(out, tqcore.Column{
			Name:     name,
			Type:     dataType,
			Nullable: isNullable == "YES",
			Position: len(out),
		})
	}
	return out, rows.Err()
}

func (r *chRunner) QueryRows(ctx context.Context, query string) ([]tqcore.Row, error) {
	rows, err := r.cnn.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := rows.Columns()
	types := rows.ColumnTypes()

	var out []tqcore.Row
	for rows.Next() {
		dest := make([]any, len(names))
		for i, ct := range types {
			dest[i] = reflect.New(ct.ScanType()).Interface()
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		row := make(tqcore.Row, len(names))
		for i, name := range names {
			row[name] = derefScanValue(dest[i])
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *chRunner) Close() error { return r.cnn.Close() }

// derefScanValue unwraps the pointer targets the native driver scans into.
// Nullable columns scan as **T; a nil inner pointer is an engine NULL.
func derefScanValue(v any) any {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil
	}
	return rv.Interface()
}

var _ Runner = (*sqlRunner)(nil)
var _ Runner = (*chRunner)(nil)

func errColumnExists(name string) error {
	return fmt.Errorf("column %q already exists", name)
}
