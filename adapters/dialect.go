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

// Package adapters connects the rule engine to SQL query engines. A Dialect
// renders the core expression tree in one engine's SQL; the dataset handle
// builds layered subqueries so every derivation stays on the engine side.
package adapters

import (
	"fmt"
	"strings"

	"github.com/TabularQuality/tq-core"
)

// Dialect renders the engine-specific parts of a SQL query.
type Dialect interface {
	Name() string

	// QuoteIdent quotes a column or table identifier.
	QuoteIdent(name string) string

	// RenderLike renders a (I)LIKE predicate over an already-rendered
	// operand.
	RenderLike(operand, pattern string, caseInsensitive, negated bool) string

	// RenderAggregate renders an aggregate call over already-rendered
	// arguments. For count_if the single argument is a boolean predicate.
	RenderAggregate(fn tqcore.AggFunc, args []string) (string, error)

	// CastFloat wraps an expression so it scans as a float64.
	CastFloat(expr string) string

	// CastBool wraps an expression so it scans as a bool.
	CastBool(expr string) string

	// ColumnsQuery returns the introspection query for a table's columns:
	// three string columns (name, type, is_nullable as YES/NO), ordered by
	// ordinal position. database may be empty.
	ColumnsQuery(database, table string) string
}

// DuckDB returns the DuckDB dialect.
func DuckDB() Dialect { return duckdbDialect{} }

// Postgresql returns the PostgreSQL dialect.
func Postgresql() Dialect { return postgresDialect{} }

// Mysql returns the MySQL dialect.
func Mysql() Dialect { return mysqlDialect{} }

// Clickhouse returns the ClickHouse dialect.
func Clickhouse() Dialect { return clickhouseDialect{} }

type duckdbDialect struct{}

func (duckdbDialect) Name() string { return "duckdb" }

func (duckdbDialect) QuoteIdent(name string) string { return quoteDouble(name) }

func (duckdbDialect) RenderLike(operand, pattern string, caseInsensitive, negated bool) string {
	return renderLikeIlike(operand, pattern, caseInsensitive, negated)
}

func (duckdbDialect) RenderAggregate(fn tqcore.AggFunc, args []string) (string, error) {
	return renderAnsiAggregate(fn, args)
}

func (duckdbDialect) CastFloat(expr string) string { return fmt.Sprintf("CAST(%s AS DOUBLE)", expr) }
func (duckdbDialect) CastBool(expr string) string  { return fmt.Sprintf("CAST(%s AS BOOLEAN)", expr) }

func (duckdbDialect) ColumnsQuery(database, table string) string {
	return informationSchemaColumnsQuery(database, table)
}

type postgresDialect struct{}

func (postgresDialect) Name() string { return "postgresql" }

func (postgresDialect) QuoteIdent(name string) string { return quoteDouble(name) }

func (postgresDialect) RenderLike(operand, pattern string, caseInsensitive, negated bool) string {
	return renderLikeIlike(operand, pattern, caseInsensitive, negated)
}

func (postgresDialect) RenderAggregate(fn tqcore.AggFunc, args []string) (string, error) {
	if fn == tqcore.AggMedian {
		return fmt.Sprintf("percentile_cont(0.5) within group (order by %s)", args[0]), nil
	}
	return renderAnsiAggregate(fn, args)
}

func (postgresDialect) CastFloat(expr string) string {
	return fmt.Sprintf("CAST(%s AS DOUBLE PRECISION)", expr)
}
func (postgresDialect) CastBool(expr string) string { return fmt.Sprintf("CAST(%s AS BOOLEAN)", expr) }

func (postgresDialect) ColumnsQuery(database, table string) string {
	return informationSchemaColumnsQuery(database, table)
}

type mysqlDialect struct{}

func (mysqlDialect) Name() string { return "mysql" }

func (mysqlDialect) QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (mysqlDialect) RenderLike(operand, pattern string, caseInsensitive, negated bool) string {
	// MySQL has no ILIKE; lower both sides instead
	if caseInsensitive {
		op := "like"
		if negated {
			op = "not like"
		}
		return fmt.Sprintf("(lower(%s) %s lower(%s))", operand, op, quoteString(pattern))
	}
	return renderLikeIlike(operand, pattern, false, negated)
}

func (mysqlDialect) RenderAggregate(fn tqcore.AggFunc, args []string) (string, error) {
	switch fn {
	case tqcore.AggCountIf:
		return fmt.Sprintf("sum(case when %s then 1 else 0 end)", args[0]), nil
	case tqcore.AggMedian,
		tqcore.AggCorr, tqcore.AggCovarSamp, tqcore.AggCovarPop,
		tqcore.AggRegrSlope, tqcore.AggRegrIntercept, tqcore.AggRegrR2, tqcore.AggRegrCount:
		return "", fmt.Errorf("aggregate %s is not supported by mysql", fn)
	}
	return renderAnsiAggregate(fn, args)
}

func (mysqlDialect) CastFloat(expr string) string { return fmt.Sprintf("CAST(%s AS DOUBLE)", expr) }

// MySQL has no boolean cast; a predicate already scans as 0/1.
func (mysqlDialect) CastBool(expr string) string { return expr }

func (mysqlDialect) ColumnsQuery(database, table string) string {
	return informationSchemaColumnsQuery(database, table)
}

type clickhouseDialect struct{}

func (clickhouseDialect) Name() string { return "clickhouse" }

func (clickhouseDialect) QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (clickhouseDialect) RenderLike(operand, pattern string, caseInsensitive, negated bool) string {
	return renderLikeIlike(operand, pattern, caseInsensitive, negated)
}

func (clickhouseDialect) RenderAggregate(fn tqcore.AggFunc, args []string) (string, error) {
	switch fn {
	case tqcore.AggCountAll:
		return "count()", nil
	case tqcore.AggCount:
		return fmt.Sprintf("count(%s)", args[0]), nil
	case tqcore.AggCountDistinct:
		return fmt.Sprintf("uniqExact(%s)", args[0]), nil
	case tqcore.AggCountIf:
		return fmt.Sprintf("countIf(%s)", args[0]), nil
	case tqcore.AggAvg:
		return fmt.Sprintf("avg(%s)", args[0]), nil
	case tqcore.AggSum:
		return fmt.Sprintf("sum(%s)", args[0]), nil
	case tqcore.AggMin:
		return fmt.Sprintf("min(%s)", args[0]), nil
	case tqcore.AggMax:
		return fmt.Sprintf("max(%s)", args[0]), nil
	case tqcore.AggStddevSamp:
		return fmt.Sprintf("stddevSamp(%s)", args[0]), nil
	case tqcore.AggStddevPop:
		return fmt.Sprintf("stddevPop(%s)", args[0]), nil
	case tqcore.AggVarSamp:
		return fmt.Sprintf("varSamp(%s)", args[0]), nil
	case tqcore.AggVarPop:
		return fmt.Sprintf("varPop(%s)", args[0]), nil
	case tqcore.AggMedian:
		return fmt.Sprintf("median(%s)", args[0]), nil
	case tqcore.AggCorr:
		return fmt.Sprintf("corr(%s, %s)", args[0], args[1]), nil
	case tqcore.AggCovarSamp:
		return fmt.Sprintf("covarSamp(%s, %s)", args[0], args[1]), nil
	case tqcore.AggCovarPop:
		return fmt.Sprintf("covarPop(%s, %s)", args[0], args[1]), nil
	case tqcore.AggRegrSlope:
		// y is args[0], x is args[1]
		return fmt.Sprintf("covarPop(%s, %s) / varPop(%s)", args[0], args[1], args[1]), nil
	case tqcore.AggRegrIntercept:
		return fmt.Sprintf("avg(%s) - (covarPop(%s, %s) / varPop(%s)) * avg(%s)",
			args[0], args[0], args[1], args[1], args[1]), nil
	case tqcore.AggRegrR2:
		return fmt.Sprintf("pow(corr(%s, %s), 2)", args[0], args[1]), nil
	case tqcore.AggRegrCount:
		return fmt.Sprintf("countIf(isNotNull(%s) and isNotNull(%s))", args[0], args[1]), nil
	}
	return "", fmt.Errorf("unknown aggregate function %q", fn)
}

func (clickhouseDialect) CastFloat(expr string) string { return fmt.Sprintf("toFloat64(%s)", expr) }

func (clickhouseDialect) CastBool(expr string) string {
	return fmt.Sprintf("toBool(%s)", expr)
}

func (clickhouseDialect) ColumnsQuery(database, table string) string {
	q := fmt.Sprintf(
		"select name, type, if(startsWith(type, 'Nullable'), 'YES', 'NO') as is_nullable "+
			"from system.columns where table = '%s'", escapeString(table))
	if database != "" {
		q += fmt.Sprintf(" and database = '%s'", escapeString(database))
	} else {
		q += " and database = currentDatabase()"
	}
	return q + " order by position"
}

func quoteDouble(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteString(s string) string {
	return "'" + escapeString(s) + "'"
}

func escapeString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, "'", "''")
}

func renderLikeIlike(operand, pattern string, caseInsensitive, negated bool) string {
	op := "like"
	if caseInsensitive {
		op = "ilike"
	}
	if negated {
		op = "not " + op
	}
	return fmt.Sprintf("(%s %s %s)", operand, op, quoteString(pattern))
}

func renderAnsiAggregate(fn tqcore.AggFunc, args []string) (string, error) {
	switch fn {
	case tqcore.AggCountAll:
		return "count(*)", nil
	case tqcore.AggCount:
		return fmt.Sprintf("count(%s)", args[0]), nil
	case tqcore.AggCountDistinct:
		return fmt.Sprintf("count(distinct %s)", args[0]), nil
	case tqcore.AggCountIf:
		return fmt.Sprintf("count(*) filter (where %s)", args[0]), nil
	case tqcore.AggAvg:
		return fmt.Sprintf("avg(%s)", args[0]), nil
	case tqcore.AggSum:
		return fmt.Sprintf("sum(%s)", args[0]), nil
	case tqcore.AggMin:
		return fmt.Sprintf("min(%s)", args[0]), nil
	case tqcore.AggMax:
		return fmt.Sprintf("max(%s)", args[0]), nil
	case tqcore.AggStddevSamp:
		return fmt.Sprintf("stddev_samp(%s)", args[0]), nil
	case tqcore.AggStddevPop:
		return fmt.Sprintf("stddev_pop(%s)", args[0]), nil
	case tqcore.AggVarSamp:
		return fmt.Sprintf("var_samp(%s)", args[0]), nil
	case tqcore.AggVarPop:
		return fmt.Sprintf("var_pop(%s)", args[0]), nil
	case tqcore.AggMedian:
		return fmt.Sprintf("median(%s)", args[0]), nil
	case tqcore.AggCorr:
		return fmt.Sprintf("corr(%s, %s)", args[0], args[1]), nil
	case tqcore.AggCovarSamp:
		return fmt.Sprintf("covar_samp(%s, %s)", args[0], args[1]), nil
	case tqcore.AggCovarPop:
		return fmt.Sprintf("covar_pop(%s, %s)", args[0], args[1]), nil
	case tqcore.AggRegrSlope:
		return fmt.Sprintf("regr_slope(%s, %s)", args[0], args[1]), nil
	case tqcore.AggRegrIntercept:
		return fmt.Sprintf("regr_intercept(%s, %s)", args[0], args[1]), nil
	case tqcore.AggRegrR2:
		return fmt.Sprintf("regr_r2(%s, %s)", args[0], args[1]), nil
	case tqcore.AggRegrCount:
		return fmt.Sprintf("regr_count(%s, %s)", args[0], args[1]), nil
	}
	return "", fmt.Errorf("unknown aggregate function %q", fn)
}

func informationSchemaColumnsQuery(database, table string) string {
	q := fmt.Sprintf(
		"select column_name, data_type, is_nullable from information_schema.columns "+
			"where table_name = '%s'", escapeString(table))
	if database != "" {
		q += fmt.Sprintf(" and table_schema = '%s'", escapeString(database))
	}
	return q + " order by ordinal_position"
}
