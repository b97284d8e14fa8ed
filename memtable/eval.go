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

package memtable

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/TabularQuality/tq-core"
)

// rowEval evaluates one expression tree against rows. Raw fragments are
// compiled to CEL programs once, at construction.
type rowEval struct {
	expr     *tqcore.Expr
	programs map[*tqcore.Expr]celProgram
	columns  []string
}

func (t *Table) evaluator(expr *tqcore.Expr) (*rowEval, error) {
	ev := &rowEval{
		expr:    expr,
		columns: t.schema.Names(),
	}
	if err := ev.compileRawNodes(expr); err != nil {
		return nil, err
	}
	return ev, nil
}

func (ev *rowEval) compileRawNodes(expr *tqcore.Expr) error {
	if expr == nil {
		return nil
	}
	if expr.Kind == tqcore.ExprRaw {
		prog, err := compileCEL(expr.Raw, ev.columns)
		if err != nil {
			return err
		}
		if ev.programs == nil {
			ev.programs = make(map[*tqcore.Expr]celProgram)
		}
		ev.programs[expr] = prog
	}
	for _, a := range expr.Args {
		if err := ev.compileRawNodes(a); err != nil {
			return err
		}
	}
	return nil
}

func (ev *rowEval) eval(row tqcore.Row) (any, error) {
	return ev.evalNode(ev.expr, row)
}

// evalNode evaluates an expression for one row with SQL-style three-valued
// logic: nil is NULL and propagates through comparisons and arithmetic.
func (ev *rowEval) evalNode(e *tqcore.Expr, row tqcore.Row) (any, error) {
	switch e.Kind {
	case tqcore.ExprColumn:
		return row[e.Column], nil

	case tqcore.ExprLiteral:
		return e.Value, nil

	case tqcore.ExprCompare:
		left, err := ev.evalNode(e.Args[0], row)
		if err != nil {
			return nil, err
		}
		right, err := ev.evalNode(e.Args[1], row)
		if err != nil {
			return nil, err
		}
		if left == nil || right == nil {
			return nil, nil
		}
		return compareValues(e.Op, left, right)

	case tqcore.ExprBetween:
		operand, err := ev.evalNode(e.Args[0], row)
		if err != nil {
			return nil, err
		}
		if operand == nil {
			return nil, nil
		}
		low, err := ev.evalNode(e.Args[1], row)
		if err != nil {
			return nil, err
		}
		high, err := ev.evalNode(e.Args[2], row)
		if err != nil {
			return nil, err
		}
		v, ok := toFloat(operand)
		if !ok {
			return nil, fmt.Errorf("between requires a numeric operand, got %T", operand)
		}
		lo, ok := toFloat(low)
		if !ok {
			return nil, fmt.Errorf("between requires a numeric lower bound, got %T", low)
		}
		hi, ok := toFloat(high)
		if !ok {
			return nil, fmt.Errorf("between requires a numeric upper bound, got %T", high)
		}
		result := v >= lo && v <= hi
		if e.Negated {
			result = !result
		}
		return result, nil

	case tqcore.ExprLike:
		operand, err := ev.evalNode(e.Args[0], row)
		if err != nil {
			return nil, err
		}
		if operand == nil {
			return nil, nil
		}
		s, ok := operand.(string)
		if !ok {
			return nil, fmt.Errorf("like requires a string operand, got %T", operand)
		}
		pattern := e.Pattern
		if e.CaseInsensitive {
			s = strings.ToLower(s)
			pattern = strings.ToLower(pattern)
		}
		result := matchLikePattern(s, pattern)
		if e.Negated {
			result = !result
		}
		return result, nil

	case tqcore.ExprIsNull:
		operand, err := ev.evalNode(e.Args[0], row)
		if err != nil {
			return nil, err
		}
		if e.Negated {
			return operand != nil, nil
		}
		return operand == nil, nil

	case tqcore.ExprNot:
		operand, err := ev.evalNode(e.Args[0], row)
		if err != nil {
			return nil, err
		}
		if operand == nil {
			return nil, nil
		}
		b, ok := operand.(bool)
		if !ok {
			return nil, fmt.Errorf("not requires a boolean operand, got %T", operand)
		}
		return !b, nil

	case tqcore.ExprAnd, tqcore.ExprOr:
		return ev.evalLogical(e, row)

	case tqcore.ExprArith:
		left, err := ev.evalNode(e.Args[0], row)
		if err != nil {
			return nil, err
		}
		right, err := ev.evalNode(e.Args[1], row)
		if err != nil {
			return nil, err
		}
		if left == nil || right == nil {
			return nil, nil
		}
		return arithValues(e.Op, left, right)

	case tqcore.ExprCharLength:
		operand, err := ev.evalNode(e.Args[0], row)
		if err != nil {
			return nil, err
		}
		if operand == nil {
			return nil, nil
		}
		s, ok := operand.(string)
		if !ok {
			return nil, fmt.Errorf("char_length requires a string operand, got %T", operand)
		}
		return utf8.RuneCountInString(s), nil

	case tqcore.ExprIn:
		operand, err := ev.evalNode(e.Args[0], row)
		if err != nil {
			return nil, err
		}
		if operand == nil {
			return nil, nil
		}
		found := false
		for _, v := range e.List {
			if valuesEqual(operand, v) {
				found = true
				break
			}
		}
		if e.Negated {
			return !found, nil
		}
		return found, nil

	case tqcore.ExprCoalesce:
		for _, a := range e.Args {
			v, err := ev.evalNode(a, row)
			if err != nil {
				return nil, err
			}
			if v != nil {
				return v, nil
			}
		}
		return nil, nil

	case tqcore.ExprAggregate:
		return nil, fmt.Errorf("aggregate %s is not valid in a per-row expression", e.Agg)

	case tqcore.ExprRaw:
		prog, ok := ev.programs[e]
		if !ok {
			return nil, fmt.Errorf("raw expression was not compiled")
		}
		return prog.eval(row, ev.columns)
	}

	return nil, fmt.Errorf("unknown expression kind %d", e.Kind)
}

// evalLogical applies three-valued AND/OR: false dominates AND, true
// dominates OR, NULL otherwise poisons the result.
func (ev *rowEval) evalLogical(e *tqcore.Expr, row tqcore.Row) (any, error) {
	isAnd := e.Kind == tqcore.ExprAnd
	sawNull := false
	for _, a := range e.Args {
		v, err := ev.evalNode(a, row)
		if err != nil {
			return nil, err
		}
		if v == nil {
			sawNull = true
			continue
		}
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("logical operand yielded %T, expected a boolean", v)
		}
		if isAnd && !b {
			return false, nil
		}
		if !isAnd && b {
			return true, nil
		}
	}
	if sawNull {
		return nil, nil
	}
	return isAnd, nil
}

func compareValues(op string, left, right any) (any, error) {
	lf, lok := toFloat(left)
	rf, rok := toFloat(right)
	if lok && rok {
		switch op {
		case "=", "==":
			return lf == rf, nil
		case "!=":
			return lf != rf, nil
		case "<":
			return lf < rf, nil
		case "<=":
			return lf <= rf, nil
		case ">":
			return lf > rf, nil
		case ">=":
			return lf >= rf, nil
		}
		return nil, fmt.Errorf("unknown comparison operator %q", op)
	}

	ls, lok := left.(string)
	rs, rok := right.(string)
	if lok && rok {
		switch op {
		case "=", "==":
			return ls == rs, nil
		case "!=":
			return ls != rs, nil
		case "<":
			return ls < rs, nil
		case "<=":
			return ls <= rs, nil
		case ">":
			return ls > rs, nil
		case ">=":
			return ls >= rs, nil
		}
		return nil, fmt.Errorf("unknown comparison operator %q", op)
	}

	lb, lok := left.(bool)
	rb, rok := right.(bool)
	if lok && rok {
		switch op {
		case "=", "==":
			return lb == rb, nil
		case "!=":
			return lb != rb, nil
		}
		return nil, fmt.Errorf("operator %q is not defined for booleans", op)
	}

	return nil, fmt.Errorf("cannot compare %T with %T", left, right)
}

func arithValues(op string, left, right any) (any, error) {
	lf, lok := toFloat(left)
	rf, rok := toFloat(right)
	if !lok || !rok {
		return nil, fmt.Errorf("arithmetic requires numeric operands, got %T and %T", left, right)
	}
	switch op {
	case "+":
		return lf + rf, nil
	case "-":
		return lf - rf, nil
	case "*":
		return lf * rf, nil
	case "/":
		if rf == 0 {
			return nil, nil
		}
		return lf / rf, nil
	}
	return nil, fmt.Errorf("unknown arithmetic operator %q", op)
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	}
	return 0, false
}

func valuesEqual(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return a == b
}

// matchLikePattern matches a string against a SQL LIKE pattern.
// % matches any sequence of characters, _ matches any single character.
// Inner segments take their leftmost occurrence, which is safe because a %
// follows them; the first and last segments are anchored to the string ends
// unless the pattern opens or closes with %.
func matchLikePattern(str, pattern string) bool {
	segments := strings.Split(pattern, "%")
	s := []rune(str)

	pos := 0
	for i, segment := range segments {
		if segment == "" {
			continue
		}
		seg := []rune(segment)
		anchorStart := i == 0 && !strings.HasPrefix(pattern, "%")

		if i == len(segments)-1 && !strings.HasSuffix(pattern, "%") {
			start := len(s) - len(seg)
			if start < pos || !segmentMatchesAt(s, start, seg) {
				return false
			}
			if anchorStart && start != 0 {
				return false
			}
			pos = len(s)
			continue
		}

		matchPos := findSegmentMatch(s[pos:], seg)
		if matchPos == -1 {
			return false
		}
		if anchorStart && matchPos != 0 {
			return false
		}

		pos += matchPos + len(seg)
	}

	if !strings.HasSuffix(pattern, "%") && pos != len(s) {
		return false
	}

	return true
}

// findSegmentMatch finds the position where a segment matches in the string,
// or -1. A _ in the segment matches any single character.
func findSegmentMatch(s, segment []rune) int {
	if len(segment) == 0 {
		return 0
	}

	for i := 0; i <= len(s)-len(segment); i++ {
		if segmentMatchesAt(s, i, segment) {
			return i
		}
	}

	return -1
}

func segmentMatchesAt(s []rune, start int, segment []rune) bool {
	if start < 0 || start+len(segment) > len(s) {
		return false
	}
	for j, c := range segment {
		if c != '_' && s[start+j] != c {
			return false
		}
	}
	return true
}
