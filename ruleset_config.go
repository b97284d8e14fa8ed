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
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// RulesFileConfig is the top-level structure of a YAML rules file.
type RulesFileConfig struct {
	Version string           `yaml:"version"`
	Rules   []ValidationRule `yaml:"rules"`
}

// ValidationRule groups the checks for one dataset. Where is an optional
// raw filter in the engine's grammar, applied before any check runs.
type ValidationRule struct {
	Dataset string             `yaml:"dataset"`
	Where   string             `yaml:"where,omitempty"`
	Checks  []DataQualityCheck `yaml:"checks"`
}

// DataQualityCheck is one check entry. Three YAML shapes are accepted:
//
//	- not_null(email)                      # bare expression
//	- in_range(age) between 0 and 120:     # expression with details
//	    desc: age sanity
//	    on_fail: warn
//	- raw_query:                           # custom engine expression
//	    name: orders_nonneg
//	    query: "min(amount) >= 0"
//	- schema_check:
//	    expect_columns_ordered:
//	      columns_order: [id, name]
type DataQualityCheck struct {
	Expression  string       `yaml:"-"`
	Description string       `yaml:"desc,omitempty"`
	OnFail      OnFailAction `yaml:"on_fail,omitempty"`
	Query       string       `yaml:"query,omitempty"`

	// QueryName names the derived column of a raw_query check; raw
	// expressions carry no function name to derive one from.
	QueryName string `yaml:"-"`

	SchemaCheck *SchemaCheckConfig `yaml:"schema_check,omitempty"`
	ParsedCheck *CheckExpression   `yaml:"-"`
}

// SchemaCheckConfig is the structured form of schema checks, used when the
// column lists are long enough that the inline expression form gets unwieldy.
type SchemaCheckConfig struct {
	ExpectColumns        *ColumnListConfig `yaml:"expect_columns,omitempty"`
	ExpectColumnsOrdered *ColumnListConfig `yaml:"expect_columns_ordered,omitempty"`
	ColumnsNotPresent    *ColumnListConfig `yaml:"columns_not_present,omitempty"`
}

// ColumnListConfig carries the column list of a structured schema check.
type ColumnListConfig struct {
	Columns []string `yaml:"columns"`
}

func (c *DataQualityCheck) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.MappingNode && len(node.Content) >= 2 {
		key := node.Content[0].Value
		value := node.Content[1]

		if key == "schema_check" {
			var temp struct {
				SchemaCheck *SchemaCheckConfig `yaml:"schema_check"`
				Desc        string             `yaml:"desc,omitempty"`
				OnFail      OnFailAction       `yaml:"on_fail,omitempty"`
			}
			if err := node.Decode(&temp); err != nil {
				return err
			}

			c.SchemaCheck = temp.SchemaCheck
			c.Description = temp.Desc
			c.OnFail = temp.OnFail
			c.Expression = "schema_check"
			return nil
		}

		if key == "raw_query" {
			c.Expression = key
			var rawQueryCheck struct {
				Name   string       `yaml:"name,omitempty"`
				Desc   string       `yaml:"desc,omitempty"`
				Query  string       `yaml:"query"`
				OnFail OnFailAction `yaml:"on_fail,omitempty"`
			}
			if err := value.Decode(&rawQueryCheck); err != nil {
				return err
			}
			c.Description = rawQueryCheck.Desc
			c.Query = rawQueryCheck.Query
			c.OnFail = rawQueryCheck.OnFail
			c.QueryName = rawQueryCheck.Name
			if c.QueryName == "" {
				c.QueryName = "raw_query"
			}

			parsedCheck, err := ParseCheckExpression("raw_query")
			if err != nil {
				return err
			}
			c.ParsedCheck = parsedCheck
			return nil
		}

		c.Expression = key

		if value.Kind == yaml.MappingNode {
			var checkDetails struct {
				Desc   string       `yaml:"desc,omitempty"`
				OnFail OnFailAction `yaml:"on_fail,omitempty"`
			}
			if err := value.Decode(&checkDetails); err != nil {
				return err
			}
			c.Description = checkDetails.Desc
			c.OnFail = checkDetails.OnFail
		}

		parsedCheck, err := ParseCheckExpression(key)
		if err != nil {
			return err
		}
		c.ParsedCheck = parsedCheck
		return nil
	}

	if node.Kind == yaml.ScalarNode {
		c.Expression = node.Value
		parsedCheck, err := ParseCheckExpression(node.Value)
		if err != nil {
			return err
		}
		c.ParsedCheck = parsedCheck
	}

	return nil
}

// LoadRulesFileConfig reads and parses a YAML rules file.
func LoadRulesFileConfig(fileName string) (*RulesFileConfig, error) {
	file, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var cfg RulesFileConfig
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// RuleFor returns the validation block for the named dataset.
func (c *RulesFileConfig) RuleFor(dataset string) (*ValidationRule, bool) {
	for i := range c.Rules {
		if c.Rules[i].Dataset == dataset {
			return &c.Rules[i], true
		}
	}
	return nil, false
}

// BuildRuleSet compiles one dataset's validation block into a RuleSet.
// The block's where clause is not applied here; the caller filters the
// dataset before Apply.
func BuildRuleSet(v *ValidationRule, logger *slog.Logger) (*RuleSet, error) {
	rs := NewRuleSet(logger)

	for i := range v.Checks {
		check := &v.Checks[i]
		if err := addCheck(rs, check); err != nil {
			return nil, fmt.Errorf("check %q for dataset %q: %w", check.Expression, v.Dataset, err)
		}
	}

	return rs, nil
}

func addCheck(rs *RuleSet, check *DataQualityCheck) error {
	action := check.OnFail
	if action == "" {
		action = OnFailActionError
	}

	if check.SchemaCheck != nil {
		return addSchemaCheck(rs, check.SchemaCheck)
	}

	parsed := check.ParsedCheck
	if parsed == nil {
		return fmt.Errorf("check has no parseable expression")
	}

	switch parsed.Scope {
	case ScopeSchema:
		rule, err := parsed.CompileSchemaRule()
		if err != nil {
			return err
		}
		return rs.AddSchemaRule(rule)

	case ScopeColumn:
		rule, err := parsed.CompileColumnRule()
		if err != nil {
			return err
		}
		return rs.AddColumnRuleWithAction(parsed.Target(), rule, action)

	case ScopeTable:
		if parsed.FunctionName == "raw_query" {
			if check.Query == "" {
				return fmt.Errorf("raw_query check requires a query")
			}
			// empty threshold: non-zero passes, matching boolean queries
			return rs.AddTableRuleWithAction("", CustomAgg(check.QueryName, check.Query, Threshold{}), action)
		}
		rule, err := parsed.CompileTableRule()
		if err != nil {
			return err
		}
		return rs.AddTableRuleWithAction(parsed.Target(), rule, action)
	}

	return fmt.Errorf("unknown check scope %q", parsed.Scope)
}

func addSchemaCheck(rs *RuleSet, cfg *SchemaCheckConfig) error {
	if cfg.ExpectColumns != nil {
		if err := rs.AddSchemaRule(ExpectColumns(cfg.ExpectColumns.Columns...)); err != nil {
			return err
		}
	}
	if cfg.ExpectColumnsOrdered != nil {
		if err := rs.AddSchemaRule(ExpectColumnsOrdered(cfg.ExpectColumnsOrdered.Columns...)); err != nil {
			return err
		}
	}
	if cfg.ColumnsNotPresent != nil {
		if err := rs.AddSchemaRule(ColumnsNotPresent(cfg.ColumnsNotPresent.Columns...)); err != nil {
			return err
		}
	}
	return nil
}
