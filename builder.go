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

import "log/slog"

// Builder assembles a RuleSet fluently. Add errors (collisions, reserved
// names, nil rules) are accumulated and reported by Build; the first error
// wins and later calls become no-ops, so a chain can be written without
// per-call error handling.
type Builder struct {
	rs  *RuleSet
	err error
}

// NewBuilder creates a Builder around a fresh RuleSet. A nil logger is
// replaced with a discard handler.
func NewBuilder(logger *slog.Logger) *Builder {
	return &Builder{rs: NewRuleSet(logger)}
}

// WithSchemaRule appends a schema rule.
func (b *Builder) WithSchemaRule(rule SchemaRule) *Builder {
	if b.err == nil {
		b.err = b.rs.AddSchemaRule(rule)
	}
	return b
}

// WithColumnRule appends a column rule targeting the given column.
func (b *Builder) WithColumnRule(target string, rule ColumnRule) *Builder {
	if b.err == nil {
		b.err = b.rs.AddColumnRule(target, rule)
	}
	return b
}

// WithColumnRuleWarn appends a warn-only column rule: its diagnostic column
// is materialized but it does not affect the verdict.
func (b *Builder) WithColumnRuleWarn(target string, rule ColumnRule) *Builder {
	if b.err == nil {
		b.err = b.rs.AddColumnRuleWithAction(target, rule, OnFailActionWarn)
	}
	return b
}

// WithTableRule appends a table rule. Target may be empty for whole-table
// rules such as row_count.
func (b *Builder) WithTableRule(target string, rule TableRule) *Builder {
	if b.err == nil {
		b.err = b.rs.AddTableRule(target, rule)
	}
	return b
}

// WithTableRuleWarn appends a warn-only table rule.
func (b *Builder) WithTableRuleWarn(target string, rule TableRule) *Builder {
	if b.err == nil {
		b.err = b.rs.AddTableRuleWithAction(target, rule, OnFailActionWarn)
	}
	return b
}

// Build returns the assembled RuleSet, or the first error raised by the
// chain.
func (b *Builder) Build() (*RuleSet, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.rs, nil
}
