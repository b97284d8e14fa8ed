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
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// OnFailAction controls whether a failing rule fails the verdict or only
// materializes its diagnostic column.
type OnFailAction string

const (
	OnFailActionError OnFailAction = "error"
	OnFailActionWarn  OnFailAction = "warn"
)

type columnBinding struct {
	target string
	rule   ColumnRule
	// column is the resolved output column name.
	column   string
	warnOnly bool
}

type tableBinding struct {
	target   string
	rule     TableRule
	column   string
	warnOnly bool
}

// RuleSet is an ordered, named collection of rules partitioned by kind.
// It is mutated only by the Add* methods and must not be mutated
// concurrently; once the caller stops adding rules it is safe to share
// across concurrent Apply calls.
type RuleSet struct {
	logger      *slog.Logger
	schemaRules []SchemaRule
	columnRules []columnBinding
	tableRules  []tableBinding

	// resolved output column name -> rule name, for collision diagnostics
	resolved map[string]string
}

// NewRuleSet creates an empty RuleSet. A nil logger is replaced with a
// discard handler.
func NewRuleSet(logger *slog.Logger) *RuleSet {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &RuleSet{
		logger:   logger,
		resolved: make(map[string]string),
	}
}

// AddSchemaRule appends a schema rule. Schema rules produce no output
// column, so they cannot collide.
func (rs *RuleSet) AddSchemaRule(rule SchemaRule) error {
	if rule == nil {
		return newBuildError("", "", "schema rule is nil")
	}
	rs.schemaRules = append(rs.schemaRules, rule)
	return nil
}

// AddColumnRule appends a column rule targeting the given column. The
// derived column name is resolved immediately; a collision or use of the
// reserved verdict name fails here, before any state is retained.
func (rs *RuleSet) AddColumnRule(target string, rule ColumnRule) error {
	return rs.addColumnRule(target, rule, OnFailActionError)
}

// AddColumnRuleWithAction is AddColumnRule with an explicit on-fail action;
// a warn-only rule materializes its diagnostic column but is excluded from
// the verdict.
func (rs *RuleSet) AddColumnRuleWithAction(target string, rule ColumnRule, action OnFailAction) error {
	return rs.addColumnRule(target, rule, action)
}

func (rs *RuleSet) addColumnRule(target string, rule ColumnRule, action OnFailAction) error {
	if rule == nil {
		return newBuildError("", target, "column rule is nil")
	}
	if target == "" {
		return newBuildError(rule.Name(), "", "column rule requires a target column")
	}
	name, err := rs.reserve(target, rule.Name())
	if err != nil {
		return err
	}
	rs.columnRules = append(rs.columnRules, columnBinding{
		target:   target,
		rule:     rule,
		column:   name,
		warnOnly: action == OnFailActionWarn,
	})
	return nil
}

// AddTableRule appends a table rule. The target may be empty for whole-table
// rules such as row_count.
func (rs *RuleSet) AddTableRule(target string, rule TableRule) error {
	return rs.addTableRule(target, rule, OnFailActionError)
}

// AddTableRuleWithAction is AddTableRule with an explicit on-fail action.
func (rs *RuleSet) AddTableRuleWithAction(target string, rule TableRule, action OnFailAction) error {
	return rs.addTableRule(target, rule, action)
}

func (rs *RuleSet) addTableRule(target string, rule TableRule, action OnFailAction) error {
	if rule == nil {
		return newBuildError("", target, "table rule is nil")
	}
	name, err := rs.reserve(target, rule.Name())
	if err != nil {
		return err
	}
	rs.tableRules = append(rs.tableRules, tableBinding{
		target:   target,
		rule:     rule,
		column:   name,
		warnOnly: action == OnFailActionWarn,
	})
	return nil
}

// reserve resolves the output column name for a rule and records it,
// failing fast on the reserved verdict name or a collision.
func (rs *RuleSet) reserve(target, ruleName string) (string, error) {
	if ruleName == VerdictColumn {
		return "", newBuildError(ruleName, target, "rule name %q is reserved for the verdict column", VerdictColumn)
	}
	name := ResolveColumnName(target, ruleName)
	if name == VerdictColumn {
		return "", newBuildError(ruleName, target, "derived column %q is reserved for the verdict column", VerdictColumn)
	}
	if prev, ok := rs.resolved[name]; ok {
		return "", newBuildError(ruleName, target,
			"derived column %q collides with rule %q on the same target; assign an explicit rule name", name, prev)
	}
	rs.resolved[name] = ruleName
	return name, nil
}

// Len returns the number of rules of every kind.
func (rs *RuleSet) Len() int {
	return len(rs.schemaRules) + len(rs.columnRules) + len(rs.tableRules)
}

// ApplyOptions tunes one Apply call.
type ApplyOptions struct {
	// MaterializeRowResults asks Apply to read back every column rule's
	// per-row booleans into the result. This costs one extra engine round
	// trip per column rule and is off by default.
	MaterializeRowResults bool

	// MaxConcurrent bounds concurrent engine submissions within a stage.
	// Zero means DefaultMaxConcurrent.
	MaxConcurrent int
}

// DefaultMaxConcurrent is the concurrency bound used when ApplyOptions
// leaves MaxConcurrent at zero.
const DefaultMaxConcurrent = 4

// Result is the outcome of applying a RuleSet to a dataset.
type Result struct {
	// Data is the annotated dataset: the original columns, one boolean
	// column per column/table rule in insertion order, and the verdict
	// column. The caller owns it.
	Data Dataset

	SchemaResults []SchemaResult
	ScalarResults []ScalarResult

	// RowResults is populated only when requested via ApplyOptions.
	RowResults []RowResult
}

// Apply evaluates the RuleSet against a dataset: schema rules first, then
// column rules and table rules in insertion order, then the dq_pass verdict
// column. See ApplyWithOptions for knobs.
func (rs *RuleSet) Apply(ctx context.Context, ds Dataset) (*Result, error) {
	return rs.ApplyWithOptions(ctx, ds, ApplyOptions{})
}

// ApplyWithOptions evaluates the RuleSet against a dataset.
//
// A schema rule failure (explicit, or the implicit existence check for every
// column a rule references) returns a *SchemaError before any row data is
// read. An evaluation failure aborts the remaining rules and discards the
// partial results; a partial verdict would be misleading.
func (rs *RuleSet) ApplyWithOptions(ctx context.Context, ds Dataset, opts ApplyOptions) (*Result, error) {
	columnExprs, tableExprs, err := rs.buildExprs()
	if err != nil {
		return nil, err
	}

	schema, err := ds.Schema(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset schema: %w", err)
	}

	schemaResults := rs.runSchemaStage(schema, columnExprs, tableExprs)
	if failures := failedSchemaResults(schemaResults); len(failures) > 0 {
		return nil, &SchemaError{Failures: failures}
	}

	if err := rs.validateExprs(ctx, ds, columnExprs, tableExprs); err != nil {
		return nil, err
	}

	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}

	// Column stage: append one derived boolean column per rule, in
	// insertion order.
	annotated := ds
	for i, b := range rs.columnRules {
		startTime := time.Now()
		annotated, err = annotated.WithColumn(ctx, b.column, columnExprs[i])
		if err != nil {
			return nil, newEvalError(b.rule.Name(), b.target, err)
		}
		rs.logger.Debug("applied column rule",
			"rule", b.rule.Name(),
			"target", b.target,
			"column", b.column,
			"elapsed_ms", time.Since(startTime).Milliseconds())
	}

	// Table stage: every aggregate is an independent engine round trip over
	// the same immutable snapshot, so submit them concurrently and gather
	// back into insertion order.
	values, err := rs.evalAggregates(ctx, ds, tableExprs, maxConcurrent)
	if err != nil {
		return nil, err
	}

	scalarResults := make([]ScalarResult, len(rs.tableRules))
	for i, b := range rs.tableRules {
		pass := b.rule.Check(values[i])
		scalarResults[i] = ScalarResult{
			Rule:   b.rule.Name(),
			Target: b.target,
			Column: b.column,
			Pass:   pass,
			Value:  values[i],
		}
		annotated, err = annotated.WithValue(ctx, b.column, pass)
		if err != nil {
			return nil, newEvalError(b.rule.Name(), b.target, err)
		}
	}

	annotated, err = annotated.WithColumn(ctx, VerdictColumn, rs.verdictExpr(scalarResults))
	if err != nil {
		return nil, newEvalError(VerdictColumn, "", err)
	}

	result := &Result{
		Data:          annotated,
		SchemaResults: schemaResults,
		ScalarResults: scalarResults,
	}

	if opts.MaterializeRowResults {
		result.RowResults, err = rs.materializeRowResults(ctx, ds, columnExprs, maxConcurrent)
		if err != nil {
			return nil, err
		}
	}

	return result, nil
}

// buildExprs constructs every rule's expression up front so configuration
// problems surface as build errors before the engine is touched.
func (rs *RuleSet) buildExprs() (columnExprs, tableExprs []*Expr, err error) {
	columnExprs = make([]*Expr, len(rs.columnRules))
	for i, b := range rs.columnRules {
		columnExprs[i], err = b.rule.Predicate(b.target)
		if err != nil {
			return nil, nil, newBuildError(b.rule.Name(), b.target, "%v", err)
		}
	}
	tableExprs = make([]*Expr, len(rs.tableRules))
	for i, b := range rs.tableRules {
		tableExprs[i], err = b.rule.Aggregate(b.target)
		if err != nil {
			return nil, nil, newBuildError(b.rule.Name(), b.target, "%v", err)
		}
	}
	return columnExprs, tableExprs, nil
}

// runSchemaStage evaluates the explicit schema rules plus the implicit
// existence check for every column referenced by a column or table rule.
func (rs *RuleSet) runSchemaStage(schema *Schema, columnExprs, tableExprs []*Expr) []SchemaResult {
	results := make([]SchemaResult, 0, len(rs.schemaRules))
	for _, rule := range rs.schemaRules {
		res := rule.ValidateSchema(schema)
		rs.logger.Debug("schema rule evaluated", "rule", rule.Name(), "pass", res.Pass)
		results = append(results, res)
	}

	check := func(ruleName string, expr *Expr) {
		for _, ref := range expr.ColumnRefs() {
			if !schema.HasColumn(ref) {
				results = append(results, SchemaResult{
					Rule:       ruleName,
					Column:     ref,
					Diagnostic: fmt.Sprintf("column %q referenced by rule %q not found", ref, ruleName),
				})
			}
		}
	}
	for i, b := range rs.columnRules {
		check(b.rule.Name(), columnExprs[i])
	}
	for i, b := range rs.tableRules {
		check(b.rule.Name(), tableExprs[i])
	}
	return results
}

func failedSchemaResults(results []SchemaResult) []SchemaResult {
	var failures []SchemaResult
	for _, r := range results {
		if !r.Pass {
			failures = append(failures, r)
		}
	}
	return failures
}

// validateExprs lets engines that can check expressions against their own
// grammar reject invalid custom rules before any data is read.
func (rs *RuleSet) validateExprs(ctx context.Context, ds Dataset, columnExprs, tableExprs []*Expr) error {
	validator, ok := ds.(ExprValidator)
	if !ok {
		return nil
	}
	for i, b := range rs.columnRules {
		if err := validator.ValidateExpr(ctx, columnExprs[i]); err != nil {
			return newBuildError(b.rule.Name(), b.target, "invalid expression: %v", err)
		}
	}
	for i, b := range rs.tableRules {
		if err := validator.ValidateExpr(ctx, tableExprs[i]); err != nil {
			return newBuildError(b.rule.Name(), b.target, "invalid expression: %v", err)
		}
	}
	return nil
}

// evalAggregates submits every table rule's aggregate concurrently and
// reconciles the scalars back into insertion order. The first error wins
// and cancels the remaining submissions.
func (rs *RuleSet) evalAggregates(ctx context.Context, ds Dataset, tableExprs []*Expr, maxConcurrent int) ([]float64, error) {
	values := make([]float64, len(rs.tableRules))
	errs := make([]error, len(rs.tableRules))

	pool := NewTaskPool(maxConcurrent, rs.logger)
	poolCtx := pool.Context(ctx)
	for i, b := range rs.tableRules {
		i, b := i, b
		expr := tableExprs[i]
		pool.Enqueue(b.column, func() error {
			if err := poolCtx.Err(); err != nil {
				errs[i] = err
				return err
			}
			v, err := ds.EvalAggregate(poolCtx, expr)
			if err != nil {
				errs[i] = err
				return err
			}
			values[i] = v
			return nil
		})
	}
	pool.Join()

	for i, err := range errs {
		if err == nil {
			continue
		}
		b := rs.tableRules[i]
		// report the first rule (in insertion order) whose own evaluation
		// failed, not a neighbour that was merely cancelled
		if poolCtx.Err() != nil && err == poolCtx.Err() {
			continue
		}
		return nil, newEvalError(b.rule.Name(), b.target, err)
	}
	if errs := pool.Errors(); len(errs) > 0 {
		return nil, fmt.Errorf("aggregate evaluation failed: %w", errs[0])
	}
	return values, nil
}

// materializeRowResults reads back the per-row booleans for every column
// rule, concurrently, reconciled into insertion order.
func (rs *RuleSet) materializeRowResults(ctx context.Context, ds Dataset, columnExprs []*Expr, maxConcurrent int) ([]RowResult, error) {
	results := make([]RowResult, len(rs.columnRules))
	errs := make([]error, len(rs.columnRules))

	pool := NewTaskPool(maxConcurrent, rs.logger)
	poolCtx := pool.Context(ctx)
	for i, b := range rs.columnRules {
		i, b := i, b
		expr := columnExprs[i]
		pool.Enqueue(b.column, func() error {
			if err := poolCtx.Err(); err != nil {
				errs[i] = err
				return err
			}
			values, err := ds.EvalPredicate(poolCtx, expr)
			if err != nil {
				errs[i] = err
				return err
			}
			results[i] = RowResult{
				Rule:   b.rule.Name(),
				Target: b.target,
				Column: b.column,
				Values: values,
			}
			return nil
		})
	}
	pool.Join()

	for i, err := range errs {
		if err == nil {
			continue
		}
		if poolCtx.Err() != nil && err == poolCtx.Err() {
			continue
		}
		b := rs.columnRules[i]
		return nil, newEvalError(b.rule.Name(), b.target, err)
	}
	return results, nil
}

// verdictExpr folds every rule's boolean into the dq_pass expression:
// AND over each column rule's derived column (NULL coalesced to false, so a
// predicate undefined for a row fails that row rather than poisoning the
// verdict) and each table rule's broadcast scalar. Warn-only rules keep
// their diagnostic column but stay out of the verdict. With zero verdict
// inputs every row passes.
func (rs *RuleSet) verdictExpr(scalars []ScalarResult) *Expr {
	var parts []*Expr
	for _, b := range rs.columnRules {
		if b.warnOnly {
			continue
		}
		parts = append(parts, coalesce(col(b.column), lit(false)))
	}
	for i, b := range rs.tableRules {
		if b.warnOnly {
			continue
		}
		parts = append(parts, lit(scalars[i].Pass))
	}
	switch len(parts) {
	case 0:
		return lit(true)
	case 1:
		return parts[0]
	default:
		return and(parts...)
	}
}

// PartitionOptions tunes one Partition call.
type PartitionOptions struct {
	// RetainDiagnostics keeps the per-rule boolean columns and the verdict
	// column on both partitions instead of projecting back onto the
	// original columns.
	RetainDiagnostics bool

	Apply ApplyOptions
}

// Partition applies the RuleSet and splits the annotated dataset on the
// verdict column into passing and failing subsets, each retaining only the
// original columns. good.rows + bad.rows always equals the input rows.
func (rs *RuleSet) Partition(ctx context.Context, ds Dataset) (good, bad Dataset, err error) {
	return rs.PartitionWithOptions(ctx, ds, PartitionOptions{})
}

// PartitionWithOptions applies the RuleSet and splits on the verdict column.
func (rs *RuleSet) PartitionWithOptions(ctx context.Context, ds Dataset, opts PartitionOptions) (good, bad Dataset, err error) {
	originalSchema, err := ds.Schema(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read dataset schema: %w", err)
	}

	result, err := rs.ApplyWithOptions(ctx, ds, opts.Apply)
	if err != nil {
		return nil, nil, err
	}

	annotatedSchema, err := result.Data.Schema(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read annotated schema: %w", err)
	}
	if !annotatedSchema.HasColumn(VerdictColumn) {
		return nil, nil, ErrVerdictMissing
	}

	// The verdict is coalesced to a real boolean by Apply, so the two
	// filters are exact complements and no row can fall through.
	good, err = result.Data.Filter(ctx, compare("=", col(VerdictColumn), lit(true)))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to filter passing rows: %w", err)
	}
	bad, err = result.Data.Filter(ctx, compare("=", col(VerdictColumn), lit(false)))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to filter failing rows: %w", err)
	}

	if !opts.RetainDiagnostics {
		names := originalSchema.Names()
		good, err = good.Select(ctx, names)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to project passing rows: %w", err)
		}
		bad, err = bad.Select(ctx, names)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to project failing rows: %w", err)
		}
	}

	return good, bad, nil
}

// DerivedStatistics computes every table rule's aggregate value without
// applying thresholds, keyed by the rule's resolved column name. Useful for
// reporting the observed stddev, counts and regression statistics alongside
// the pass/fail verdicts.
func (rs *RuleSet) DerivedStatistics(ctx context.Context, ds Dataset) (map[string]float64, error) {
	_, tableExprs, err := rs.buildExprs()
	if err != nil {
		return nil, err
	}
	values, err := rs.evalAggregates(ctx, ds, tableExprs, DefaultMaxConcurrent)
	if err != nil {
		return nil, err
	}
	stats := make(map[string]float64, len(rs.tableRules))
	for i, b := range rs.tableRules {
		stats[b.column] = values[i]
	}
	return stats, nil
}
