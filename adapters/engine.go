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
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/TabularQuality/tq-core"
)

// SQLEngine adapts a database/sql connection (DuckDB, PostgreSQL, MySQL)
// to the core Engine interface.
type SQLEngine struct {
	runner  Runner
	dialect Dialect
	logger  *slog.Logger
}

// NewSQLEngine wraps an open database handle. The dialect must match the
// driver behind it. A nil logger is replaced with a discard handler.
func NewSQLEngine(db *sql.DB, dialect Dialect, logger *slog.Logger) *SQLEngine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &SQLEngine{
		runner:  newSQLRunner(db),
		dialect: dialect,
		logger:  logger,
	}
}

// Table returns a handle to the named table. The name may be qualified as
// "schema.table".
func (e *SQLEngine) Table(name string) tqcore.Dataset {
	return newTableDataset(e.runner, e.dialect, e.logger, name)
}

func (e *SQLEngine) Close() error {
	return e.runner.Close()
}

// ClickhouseEngine adapts a native ClickHouse connection to the core Engine
// interface.
type ClickhouseEngine struct {
	runner  Runner
	dialect Dialect
	logger  *slog.Logger
}

// NewClickhouseEngine wraps an open native ClickHouse connection. A nil
// logger is replaced with a discard handler.
func NewClickhouseEngine(cnn driver.Conn, logger *slog.Logger) *ClickhouseEngine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ClickhouseEngine{
		runner:  newClickhouseRunner(cnn),
		dialect: Clickhouse(),
		logger:  logger,
	}
}

// Table returns a handle to the named table. The name may be qualified as
// "database.table".
func (e *ClickhouseEngine) Table(name string) tqcore.Dataset {
	return newTableDataset(e.runner, e.dialect, e.logger, name)
}

func (e *ClickhouseEngine) Close() error {
	return e.runner.Close()
}

func newTableDataset(runner Runner, dialect Dialect, logger *slog.Logger, name string) *sqlDataset {
	var database, table string
	parts := strings.SplitN(name, ".", 2)
	if len(parts) == 2 {
		database = strings.TrimSpace(parts[0])
		table = strings.TrimSpace(parts[1])
	} else {
		table = strings.TrimSpace(name)
	}

	from := dialect.QuoteIdent(table)
	if database != "" {
		from = dialect.QuoteIdent(database) + "." + from
	}

	return &sqlDataset{
		runner:   runner,
		dialect:  dialect,
		logger:   logger,
		src:      fmt.Sprintf("select * from %s", from),
		database: database,
		table:    table,
	}
}

var _ tqcore.Engine = (*SQLEngine)(nil)
var _ tqcore.Engine = (*ClickhouseEngine)(nil)
