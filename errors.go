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
	"errors"
	"fmt"
	"strings"
)

// ErrVerdictMissing is returned by partitioning when the verdict column is
// absent from the annotated dataset. Apply always produces the column, so
// hitting this means the dataset handed to the split was not produced by a
// successful Apply.
var ErrVerdictMissing = errors.New("verdict column " + VerdictColumn + " not present in dataset")

// BuildError reports a problem detected while assembling a RuleSet:
// a naming collision, use of the reserved verdict name, or an invalid
// rule configuration/expression. It is raised by the call that introduced
// the problem; no partial RuleSet state is retained.
type BuildError struct {
	Rule    string
	Target  string
	Message string
}

func (e *BuildError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("build error for rule %q on %q: %s", e.Rule, e.Target, e.Message)
	}
	return fmt.Sprintf("build error for rule %q: %s", e.Rule, e.Message)
}

func newBuildError(rule, target, format string, args ...any) *BuildError {
	return &BuildError{Rule: rule, Target: target, Message: fmt.Sprintf(format, args...)}
}

// SchemaError reports one or more failed schema checks. It short-circuits
// evaluation: no column or table rule runs once it is raised.
type SchemaError struct {
	Failures []SchemaResult
}

func (e *SchemaError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Rule, f.Diagnostic))
	}
	return "schema validation failed: " + strings.Join(parts, "; ")
}

// EvalError reports a failure while executing a column or table rule against
// the engine. The offending rule's identity is always carried; the engine's
// own error is wrapped, never passed through raw.
type EvalError struct {
	Rule   string
	Target string
	Err    error
}

func (e *EvalError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("evaluation of rule %q on %q failed: %v", e.Rule, e.Target, e.Err)
	}
	return fmt.Sprintf("evaluation of rule %q failed: %v", e.Rule, e.Err)
}

func (e *EvalError) Unwrap() error {
	return e.Err
}

func newEvalError(rule, target string, err error) *EvalError {
	return &EvalError{Rule: rule, Target: target, Err: err}
}
