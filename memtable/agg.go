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
	"math"
	"sort"

	"github.com/TabularQuality/tq-core"
)

// evalAggExpr evaluates an aggregate-level expression: a single aggregate,
// arithmetic over aggregates (count(*) - count(col)), a literal, or a raw
// CEL predicate applied to every row.
func (t *Table) evalAggExpr(e *tqcore.Expr) (float64, error) {
	switch e.Kind {
	case tqcore.ExprAggregate:
		return t.computeAggregate(e)

	case tqcore.ExprArith:
		left, err := t.evalAggExpr(e.Args[0])
		if err != nil {
			return 0, err
		}
		right, err := t.evalAggExpr(e.Args[1])
		if err != nil {
			return 0, err
		}
		switch e.Op {
		case "+":
			return left + right, nil
		case "-":
			return left - right, nil
		case "*":
			return left * right, nil
		case "/":
			if right == 0 {
				return 0, fmt.Errorf("division by zero in aggregate expression")
			}
			return left / right, nil
		}
		return 0, fmt.Errorf("unknown arithmetic operator %q", e.Op)

	case tqcore.ExprLiteral:
		v, ok := toFloat(e.Value)
		if !ok {
			return 0, fmt.Errorf("aggregate literal must be numeric, got %T", e.Value)
		}
		return v, nil

	case tqcore.ExprRaw:
		// a raw aggregate is a per-row CEL predicate here: 1 when every
		// row satisfies it, 0 otherwise
		return t.evalRawAggregate(e.Raw)
	}

	return 0, fmt.Errorf("expression kind %d is not valid at aggregate level", e.Kind)
}

func (t *Table) evalRawAggregate(fragment string) (float64, error) {
	columns := t.schema.Names()
	prog, err := compileCEL(fragment, columns)
	if err != nil {
		return 0, err
	}
	for i, row := range t.rows {
		v, err := prog.eval(row, columns)
		if err != nil {
			return 0, fmt.Errorf("row %d: %w", i, err)
		}
		b, ok := v.(bool)
		if !ok {
			return 0, fmt.Errorf("row %d: raw aggregate yielded %T, expected a boolean", i, v)
		}
		if !b {
			return 0, nil
		}
	}
	return 1, nil
}

func (t *Table) computeAggregate(e *tqcore.Expr) (float64, error) {
	switch e.Agg {
	case tqcore.AggCountAll:
		return float64(len(t.rows)), nil

	case tqcore.AggCountIf:
		if len(e.Args) != 1 {
			return 0, fmt.Errorf("count_if requires one predicate argument")
		}
		ev, err := t.evaluator(e.Args[0])
		if err != nil {
			return 0, err
		}
		n := 0
		for i, row := range t.rows {
			v, err := ev.eval(row)
			if err != nil {
				return 0, fmt.Errorf("row %d: %w", i, err)
			}
			if b, ok := v.(bool); ok && b {
				n++
			}
		}
		return float64(n), nil
	}

	if len(e.Args) == 0 {
		return 0, fmt.Errorf("%s requires a column argument", e.Agg)
	}

	// the counting aggregates accept any column type
	switch e.Agg {
	case tqcore.AggCount:
		values, err := t.columnNonNull(e.Args[0])
		if err != nil {
			return 0, err
		}
		return float64(len(values)), nil

	case tqcore.AggCountDistinct:
		values, err := t.columnNonNull(e.Args[0])
		if err != nil {
			return 0, err
		}
		distinct := make(map[any]bool, len(values))
		for _, v := range values {
			if f, ok := toFloat(v); ok {
				distinct[f] = true
				continue
			}
			distinct[v] = true
		}
		return float64(len(distinct)), nil
	}

	values, err := t.columnValues(e.Args[0])
	if err != nil {
		return 0, err
	}

	switch e.Agg {
	case tqcore.AggSum:
		sum := 0.0
		for _, v := range values {
			sum += v
		}
		return sum, nil

	case tqcore.AggAvg:
		if len(values) == 0 {
			return 0, nil
		}
		sum := 0.0
		for _, v := range values {
			sum += v
		}
		return sum / float64(len(values)), nil

	case tqcore.AggMin:
		if len(values) == 0 {
			return 0, nil
		}
		min := values[0]
		for _, v := range values[1:] {
			if v < min {
				min = v
			}
		}
		return min, nil

	case tqcore.AggMax:
		if len(values) == 0 {
			return 0, nil
		}
		max := values[0]
		for _, v := range values[1:] {
			if v > max {
				max = v
			}
		}
		return max, nil

	case tqcore.AggVarSamp, tqcore.AggVarPop, tqcore.AggStddevSamp, tqcore.AggStddevPop:
		return variance(values, e.Agg)

	case tqcore.AggMedian:
		return median(values), nil

	case tqcore.AggCorr, tqcore.AggCovarSamp, tqcore.AggCovarPop,
		tqcore.AggRegrSlope, tqcore.AggRegrIntercept, tqcore.AggRegrR2, tqcore.AggRegrCount:
		if len(e.Args) != 2 {
			return 0, fmt.Errorf("%s requires two column arguments", e.Agg)
		}
		return t.pairAggregate(e)
	}

	return 0, fmt.Errorf("unknown aggregate function %q", e.Agg)
}

// columnNonNull evaluates a value expression per row and keeps the non-null
// results without numeric coercion, for count and count_distinct.
func (t *Table) columnNonNull(arg *tqcore.Expr) ([]any, error) {
	ev, err := t.evaluator(arg)
	if err != nil {
		return nil, err
	}
	var values []any
	for i, row := range t.rows {
		v, err := ev.eval(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		if v == nil {
			continue
		}
		values = append(values, v)
	}
	return values, nil
}

// columnValues evaluates a value expression per row and keeps the non-null
// numeric results, matching how SQL aggregates skip NULLs.
func (t *Table) columnValues(arg *tqcore.Expr) ([]float64, error) {
	ev, err := t.evaluator(arg)
	if err != nil {
		return nil, err
	}
	var values []float64
	for i, row := range t.rows {
		v, err := ev.eval(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		if v == nil {
			continue
		}
		f, ok := toFloat(v)
		if !ok {
			return nil, fmt.Errorf("row %d: aggregate input is %T, expected a number", i, v)
		}
		values = append(values, f)
	}
	return values, nil
}

func variance(values []float64, fn tqcore.AggFunc) (float64, error) {
	n := float64(len(values))
	sample := fn == tqcore.AggVarSamp || fn == tqcore.AggStddevSamp
	if len(values) == 0 || (sample && len(values) < 2) {
		return 0, nil
	}

	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= n

	ss := 0.0
	for _, v := range values {
		d := v - mean
		ss += d * d
	}

	denom := n
	if sample {
		denom = n - 1
	}
	v := ss / denom

	if fn == tqcore.AggStddevSamp || fn == tqcore.AggStddevPop {
		return math.Sqrt(v), nil
	}
	return v, nil
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// pairAggregate computes the two-column aggregates over rows where both
// sides are non-null. The first argument is y, the second x, following the
// SQL regr_* convention.
func (t *Table) pairAggregate(e *tqcore.Expr) (float64, error) {
	evY, err := t.evaluator(e.Args[0])
	if err != nil {
		return 0, err
	}
	evX, err := t.evaluator(e.Args[1])
	if err != nil {
		return 0, err
	}

	var xs, ys []float64
	for i, row := range t.rows {
		vy, err := evY.eval(row)
		if err != nil {
			return 0, fmt.Errorf("row %d: %w", i, err)
		}
		vx, err := evX.eval(row)
		if err != nil {
			return 0, fmt.Errorf("row %d: %w", i, err)
		}
		if vy == nil || vx == nil {
			continue
		}
		fy, ok := toFloat(vy)
		if !ok {
			return 0, fmt.Errorf("row %d: aggregate input is %T, expected a number", i, vy)
		}
		fx, ok := toFloat(vx)
		if !ok {
			return 0, fmt.Errorf("row %d: aggregate input is %T, expected a number", i, vx)
		}
		ys = append(ys, fy)
		xs = append(xs, fx)
	}

	n := float64(len(xs))
	if e.Agg == tqcore.AggRegrCount {
		return n, nil
	}
	if n == 0 {
		return 0, nil
	}

	meanX, meanY := 0.0, 0.0
	for i := range xs {
		meanX += xs[i]
		meanY += ys[i]
	}
	meanX /= n
	meanY /= n

	sxx, syy, sxy := 0.0, 0.0, 0.0
	for i := range xs {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		sxx += dx * dx
		syy += dy * dy
		sxy += dx * dy
	}

	switch e.Agg {
	case tqcore.AggCovarPop:
		return sxy / n, nil
	case tqcore.AggCovarSamp:
		if n < 2 {
			return 0, nil
		}
		return sxy / (n - 1), nil
	case tqcore.AggCorr:
		if sxx == 0 || syy == 0 {
			return 0, nil
		}
		return sxy / math.Sqrt(sxx*syy), nil
	case tqcore.AggRegrSlope:
		if sxx == 0 {
			return 0, nil
		}
		return sxy / sxx, nil
	case tqcore.AggRegrIntercept:
		if sxx == 0 {
			return 0, nil
		}
		return meanY - (sxy/sxx)*meanX, nil
	case tqcore.AggRegrR2:
		if sxx == 0 || syy == 0 {
			return 0, nil
		}
		r := sxy / math.Sqrt(sxx*syy)
		return r * r, nil
	}

	return 0, fmt.Errorf("unknown aggregate function %q", e.Agg)
}
