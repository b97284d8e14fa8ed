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

	"github.com/TabularQuality/tq-core"
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
)

// celCostLimit caps evaluation cost so a pathological custom expression
// cannot run away.
const celCostLimit = 1000000

// celProgram is one compiled raw expression. Raw expressions in this engine
// are CEL, with every table column declared as a dynamic variable.
type celProgram struct {
	prog cel.Program
}

func compileCEL(fragment string, columns []string) (celProgram, error) {
	opts := make([]cel.EnvOption, 0, len(columns))
	for _, c := range columns {
		opts = append(opts, cel.Variable(c, cel.DynType))
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return celProgram{}, fmt.Errorf("failed to create expression environment: %w", err)
	}

	ast, issues := env.Compile(fragment)
	if issues != nil && issues.Err() != nil {
		return celProgram{}, fmt.Errorf("invalid expression %q: %w", fragment, issues.Err())
	}

	prog, err := env.Program(ast, cel.CostLimit(celCostLimit))
	if err != nil {
		return celProgram{}, fmt.Errorf("failed to build program for %q: %w", fragment, err)
	}

	return celProgram{prog: prog}, nil
}

func (p celProgram) eval(row tqcore.Row, columns []string) (any, error) {
	activation := make(map[string]any, len(columns))
	for _, c := range columns {
		activation[c] = row[c]
	}

	out, _, err := p.prog.Eval(activation)
	if err != nil {
		return nil, err
	}
	if out == types.NullValue {
		return nil, nil
	}
	return out.Value(), nil
}
