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

package cnn

import (
	"database/sql"

	"github.com/TabularQuality/tq-core"
	_ "github.com/marcboeker/go-duckdb"
)

// NewDuckDBConnection opens a DuckDB database. Database is the file path;
// empty means in-memory.
func NewDuckDBConnection(connectionCfg tqcore.ConnectionConfig) (*sql.DB, error) {
	db, err := sql.Open("duckdb", connectionCfg.Database)
	if err != nil {
		return nil, err
	}

	return db, nil
}
