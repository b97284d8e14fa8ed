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
	"os"

	"gopkg.in/yaml.v3"
)

// DataSourceType names a supported query engine.
type DataSourceType string

const (
	DataSourceTypeClickhouse DataSourceType = "clickhouse"
	DataSourceTypePostgresql DataSourceType = "postgresql"
	DataSourceTypeMysql      DataSourceType = "mysql"
	DataSourceTypeDuckdb     DataSourceType = "duckdb"
)

// ConnectionConfig holds the connection parameters for an engine. For DuckDB
// only Database is used (the database file path, empty for in-memory).
type ConnectionConfig struct {
	Host     string `yaml:"host,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	Database string `yaml:"database,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// DataSource is one named engine connection from a datasources file.
type DataSource struct {
	ID            string           `yaml:"id"`
	Type          DataSourceType   `yaml:"type"`
	Configuration ConnectionConfig `yaml:"configuration"`
}

// DataSourcesFileConfig is the top-level structure of a YAML datasources file.
type DataSourcesFileConfig struct {
	DataSources []DataSource `yaml:"datasources"`
}

// LoadDataSourcesFileConfig reads and parses a YAML datasources file.
func LoadDataSourcesFileConfig(fileName string) (*DataSourcesFileConfig, error) {
	file, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var cfg DataSourcesFileConfig
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// DataSourceByID returns the data source with the given id.
func (c *DataSourcesFileConfig) DataSourceByID(id string) (*DataSource, error) {
	for i := range c.DataSources {
		if c.DataSources[i].ID == id {
			return &c.DataSources[i], nil
		}
	}
	return nil, fmt.Errorf("data source %q not found", id)
}
