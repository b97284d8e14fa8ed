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
	"fmt"
	"strconv"
	"strings"

	"github.com/TabularQuality/tq-core"
)

// RenderExpr renders an expression tree as a SQL fragment in the given
// dialect. Raw fragments are inlined verbatim; in SQL engines the custom
// rule grammar is SQL itself.
func RenderExpr(d Dialect, e *tqcore.Expr) (string, error) {
	switch e.Kind {
	case tqcore.ExprColumn:
		return d.QuoteIdent(e.Column), nil

	case tqcore.ExprLiteral:
		return renderLiteral(e.Value)

	case tqcore.ExprCompare:
		left, err := RenderExpr(d, e.Args[0])
		if err != nil {
			return "", err
		}
		right, err := RenderExpr(d, e.Args[1])
		if err != nil {
			return "", err
		}
		op := e.Op
		if op == "!=" {
			op = "<>"
		}
		return fmt.Sprintf("(%s %s %s)", left, op, right), nil

	case tqcore.ExprBetween:
		operand, err := RenderExpr(d, e.Args[0])
		if err != nil {
			return "", err
		}
		low, err := RenderExpr(d, e.Args[1])
		if err != nil {
			return "", err
		}
		high, err := RenderExpr(d, e.Args[2])
		if err != nil {
			return "", err
		}
		op := "between"
		if e.Negated {
			op = "not between"
		}
		return fmt.Sprintf("(%s %s %s and %s)", operand, op, low, high), nil

	case tqcore.ExprLike:
		operand, err := RenderExpr(d, e.Args[0])
		if err != nil {
			return "", err
		}
		return d.RenderLike(operand, e.Pattern, e.CaseInsensitive, e.Negated), nil

	case tqcore.ExprIsNull:
		operand, err := RenderExpr(d, e.Args[0])
		if err != nil {
			return "", err
		}
		if e.Negated {
			return fmt.Sprintf("(%s is not null)", operand), nil
		}
		return fmt.Sprintf("(%s is null)", operand), nil

	case tqcore.ExprNot:
		operand, err := RenderExpr(d, e.Args[0])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(not %s)", operand), nil

	case tqcore.ExprAnd, tqcore.ExprOr:
		op := " and "
		if e.Kind == tqcore.ExprOr {
			op = " or "
		}
		parts := make([]string, len(e.Args))
		for i, a := range e.Args {
			s, err := RenderExpr(d, a)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return "(" + strings.Join(parts, op) + ")", nil

	case tqcore.ExprArith:
		left, err := RenderExpr(d, e.Args[0])
		if err != nil {
			return "", err
		}
		right, err := RenderExpr(d, e.Args[1])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s %s %s)", left, e.Op, right), nil

	case tqcore.ExprCharLength:
		operand, err := RenderExpr(d, e.Args[0])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("char_length(%s)", operand), nil

	case tqcore.ExprIn:
		operand, err := RenderExpr(d, e.Args[0])
		if err != nil {
			return "", err
		}
		vals := make([]string, len(e.List))
		for i, v := range e.List {
			s, err := renderLiteral(v)
			if err != nil {
				return "", err
			}
			vals[i] = s
		}
		op := "in"
		if e.Negated {
			op = "not in"
		}
		return fmt.Sprintf("(%s %s (%s))", operand, op, strings.Join(vals, ", ")), nil

	case tqcore.ExprCoalesce:
		parts := make([]string, len(e.Args))
		for i, a := range e.Args {
			s, err := RenderExpr(d, a)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return "coalesce(" + strings.Join(parts, ", ") + ")", nil

	case tqcore.ExprAggregate:
		args := make([]string, len(e.Args))
		for i, a := range e.Args {
			s, err := RenderExpr(d, a)
			if err != nil {
				return "", err
			}
			args[i] = s
		}
		return d.RenderAggregate(e.Agg, args)

	case tqcore.ExprRaw:
		return e.Raw, nil
	}

	return "", fmt.Errorf("unknown expression kind %d", e.Kind)
}

func renderLiteral(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "null", nil
	case bool:
		if x {
			return "true", nil
		}
		return "false", nil
	case string:
		return quoteString(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32), nil
	}
	return "", fmt.Errorf("cannot render literal of type %T", v)
}
