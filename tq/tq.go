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

// Package tq wires data sources, engines and rules files together.
package tq

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/TabularQuality/tq-core"
	"github.com/TabularQuality/tq-core/adapters"
	"github.com/TabularQuality/tq-core/cnn"
)

const (
	Version = "v0.1.0"
)

func GetTqCoreLibVersion() string {
	return Version
}

// NewEngineForDataSource opens the engine behind a data source config.
// The caller owns the returned engine and must Close it.
func NewEngineForDataSource(dataSource *tqcore.DataSource, logger *slog.Logger) (tqcore.Engine, error) {
	switch dataSource.Type {
	case tqcore.DataSourceTypeClickhouse:
		connection, err := cnn.NewClickhouseConnection(dataSource.Configuration)
		if err != nil {
			return nil, fmt.Errorf("failed to create clickhouse connection: %w", err)
		}
		return adapters.NewClickhouseEngine(connection, logger), nil
	case tqcore.DataSourceTypePostgresql:
		connection, err := cnn.NewPostgresqlConnection(dataSource.Configuration)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgresql connection: %w", err)
		}
		return adapters.NewSQLEngine(connection, adapters.Postgresql(), logger), nil
	case tqcore.DataSourceTypeMysql:
		connection, err := cnn.NewMysqlConnection(dataSource.Configuration, 32)
		if err != nil {
			return nil, fmt.Errorf("failed to create mysql connection: %w", err)
		}
		return adapters.NewSQLEngine(connection, adapters.Mysql(), logger), nil
	case tqcore.DataSourceTypeDuckdb:
		connection, err := cnn.NewDuckDBConnection(dataSource.Configuration)
		if err != nil {
			return nil, fmt.Errorf("failed to create duckdb connection: %w", err)
		}
		return adapters.NewSQLEngine(connection, adapters.DuckDB(), logger), nil
	default:
		return nil, fmt.Errorf("unsupported data source type: %s", dataSource.Type)
	}
}

// DatasetOutcome is the result of running one dataset's validation block.
type DatasetOutcome struct {
	Dataset string
	Result  *tqcore.Result
}

// RunRulesFile runs every validation block of a rules file against the
// engine, one RuleSet per dataset. A block's where clause is applied as a
// raw engine filter before its rules run. The first dataset that fails to
// build or evaluate aborts the run.
func RunRulesFile(ctx context.Context, engine tqcore.Engine, cfg *tqcore.RulesFileConfig, logger *slog.Logger) ([]DatasetOutcome, error) {
	outcomes := make([]DatasetOutcome, 0, len(cfg.Rules))

	for i := range cfg.Rules {
		block := &cfg.Rules[i]

		rs, err := tqcore.BuildRuleSet(block, logger)
		if err != nil {
			return nil, err
		}

		ds := engine.Table(block.Dataset)
		if block.Where != "" {
			ds, err = ds.Filter(ctx, tqcore.RawExpr(block.Where))
			if err != nil {
				return nil, fmt.Errorf("failed to apply where clause for dataset %q: %w", block.Dataset, err)
			}
		}

		result, err := rs.Apply(ctx, ds)
		if err != nil {
			return nil, fmt.Errorf("validation of dataset %q failed: %w", block.Dataset, err)
		}

		outcomes = append(outcomes, DatasetOutcome{Dataset: block.Dataset, Result: result})
	}

	return outcomes, nil
}
