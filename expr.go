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
	"strings"
)

// ExprKind tags the variants of the engine-neutral expression tree.
type ExprKind int

const (
	ExprColumn ExprKind = iota
	ExprLiteral
	ExprCompare
	ExprBetween
	ExprLike
	ExprIsNull
	ExprNot
	ExprAnd
	ExprOr
	ExprArith
	ExprCharLength
	ExprIn
	ExprCoalesce
	ExprAggregate
	ExprRaw
)

// AggFunc names a full-dataset aggregate the engine is asked to compute.
type AggFunc string

const (
	AggCountAll      AggFunc = "count_all"
	AggCount         AggFunc = "count"
	AggCountDistinct AggFunc = "count_distinct"
	AggCountIf       AggFunc = "count_if"
	AggAvg           AggFunc = "avg"
	AggSum           AggFunc = "sum"
	AggMin           AggFunc = "min"
	AggMax           AggFunc = "max"
	AggStddevSamp    AggFunc = "stddev_samp"
	AggStddevPop     AggFunc = "stddev_pop"
	AggVarSamp       AggFunc = "var_samp"
	AggVarPop        AggFunc = "var_pop"
	AggMedian        AggFunc = "median"
	AggCorr          AggFunc = "corr"
	AggCovarSamp     AggFunc = "covar_samp"
	AggCovarPop      AggFunc = "covar_pop"
	AggRegrSlope     AggFunc = "regr_slope"
	AggRegrIntercept AggFunc = "regr_intercept"
	AggRegrR2        AggFunc = "regr_r2"
	AggRegrCount     AggFunc = "regr_count"
)

// Expr is the expression tree the core hands to engine adapters. The core
// never evaluates an Expr itself; each engine renders or interprets the tree
// in its own grammar. Fields are exported so adapters in other packages can
// walk the tree; construction stays inside the core.
type Expr struct {
	Kind ExprKind

	// ExprColumn
	Column string

	// ExprLiteral
	Value any

	// ExprCompare: "=", "!=", "<", "<=", ">", ">="
	// ExprArith:   "+", "-", "*", "/"
	Op string

	// ExprBetween, ExprLike, ExprIsNull, ExprIn
	Negated bool

	// ExprLike
	Pattern         string
	CaseInsensitive bool

	// ExprIn
	List []any

	// ExprAggregate
	Agg AggFunc

	// ExprRaw: a fragment in the target engine's own expression grammar.
	Raw string

	// Operands. Compare and Arith hold two, Between holds three (operand,
	// low, high), Not/IsNull/Like/CharLength/In hold one, And/Or/Coalesce
	// hold any number, Aggregate holds its arguments.
	Args []*Expr
}

func col(name string) *Expr { return &Expr{Kind: ExprColumn, Column: name} }

func lit(v any) *Expr { return &Expr{Kind: ExprLiteral, Value: v} }

func compare(op string, left, right *Expr) *Expr {
	return &Expr{Kind: ExprCompare, Op: op, Args: []*Expr{left, right}}
}

func between(operand, low, high *Expr, negated bool) *Expr {
	return &Expr{Kind: ExprBetween, Negated: negated, Args: []*Expr{operand, low, high}}
}

func like(operand *Expr, pattern string, caseInsensitive, negated bool) *Expr {
	return &Expr{
		Kind:            ExprLike,
		Pattern:         pattern,
		CaseInsensitive: caseInsensitive,
		Negated:         negated,
		Args:            []*Expr{operand},
	}
}

func isNull(operand *Expr, negated bool) *Expr {
	return &Expr{Kind: ExprIsNull, Negated: negated, Args: []*Expr{operand}}
}

func not(operand *Expr) *Expr { return &Expr{Kind: ExprNot, Args: []*Expr{operand}} }

func and(operands ...*Expr) *Expr { return &Expr{Kind: ExprAnd, Args: operands} }

func arith(op string, left, right *Expr) *Expr {
	return &Expr{Kind: ExprArith, Op: op, Args: []*Expr{left, right}}
}

func charLength(operand *Expr) *Expr {
	return &Expr{Kind: ExprCharLength, Args: []*Expr{operand}}
}

func in(operand *Expr, values []any, negated bool) *Expr {
	return &Expr{Kind: ExprIn, Negated: negated, List: values, Args: []*Expr{operand}}
}

func coalesce(operands ...*Expr) *Expr { return &Expr{Kind: ExprCoalesce, Args: operands} }

func agg(f AggFunc, args ...*Expr) *Expr { return &Expr{Kind: ExprAggregate, Agg: f, Args: args} }

func raw(fragment string) *Expr { return &Expr{Kind: ExprRaw, Raw: fragment} }

// RawExpr wraps a fragment written in the target engine's own expression
// grammar, e.g. a where clause from a rules file. The core never inspects
// it; the engine validates and evaluates it.
func RawExpr(fragment string) *Expr { return raw(fragment) }

// ColumnRefs returns the names of every column the expression references,
// in first-appearance order. Raw fragments are opaque and contribute nothing.
func (e *Expr) ColumnRefs() []string {
	var names []string
	seen := map[string]bool{}
	var walk func(x *Expr)
	walk = func(x *Expr) {
		if x == nil {
			return
		}
		if x.Kind == ExprColumn && !seen[x.Column] {
			seen[x.Column] = true
			names = append(names, x.Column)
		}
		for _, a := range x.Args {
			walk(a)
		}
	}
	walk(e)
	return names
}

// String renders a debug form of the expression. It is not any engine's
// grammar; adapters own the real rendering.
func (e *Expr) String() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case ExprColumn:
		return e.Column
	case ExprLiteral:
		if s, ok := e.Value.(string); ok {
			return fmt.Sprintf("%q", s)
		}
		return fmt.Sprintf("%v", e.Value)
	case ExprCompare:
		return fmt.Sprintf("(%s %s %s)", e.Args[0], e.Op, e.Args[1])
	case ExprBetween:
		if e.Negated {
			return fmt.Sprintf("(%s not between %s and %s)", e.Args[0], e.Args[1], e.Args[2])
		}
		return fmt.Sprintf("(%s between %s and %s)", e.Args[0], e.Args[1], e.Args[2])
	case ExprLike:
		op := "like"
		if e.CaseInsensitive {
			op = "ilike"
		}
		if e.Negated {
			op = "not " + op
		}
		return fmt.Sprintf("(%s %s %q)", e.Args[0], op, e.Pattern)
	case ExprIsNull:
		if e.Negated {
			return fmt.Sprintf("(%s is not null)", e.Args[0])
		}
		return fmt.Sprintf("(%s is null)", e.Args[0])
	case ExprNot:
		return fmt.Sprintf("(not %s)", e.Args[0])
	case ExprAnd, ExprOr:
		op := " and "
		if e.Kind == ExprOr {
			op = " or "
		}
		parts := make([]string, len(e.Args))
		for i, a := range e.Args {
			parts[i] = a.String()
		}
		return "(" + strings.Join(parts, op) + ")"
	case ExprArith:
		return fmt.Sprintf("(%s %s %s)", e.Args[0], e.Op, e.Args[1])
	case ExprCharLength:
		return fmt.Sprintf("char_length(%s)", e.Args[0])
	case ExprIn:
		op := "in"
		if e.Negated {
			op = "not in"
		}
		vals := make([]string, len(e.List))
		for i, v := range e.List {
			vals[i] = fmt.Sprintf("%v", v)
		}
		return fmt.Sprintf("(%s %s (%s))", e.Args[0], op, strings.Join(vals, ", "))
	case ExprCoalesce:
		parts := make([]string, len(e.Args))
		for i, a := range e.Args {
			parts[i] = a.String()
		}
		return "coalesce(" + strings.Join(parts, ", ") + ")"
	case ExprAggregate:
		parts := make([]string, len(e.Args))
		for i, a := range e.Args {
			parts[i] = a.String()
		}
		return fmt.Sprintf("%s(%s)", e.Agg, strings.Join(parts, ", "))
	case ExprRaw:
		return e.Raw
	}
	return "<unknown expr>"
}
