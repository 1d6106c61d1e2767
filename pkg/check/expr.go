// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package check

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// exprEvaluator compiles and caches expression programs. Compiled programs are
// shared across concurrent runs.
type exprEvaluator struct {
	cache map[string]*vm.Program
	mu    sync.RWMutex
}

var expressions = &exprEvaluator{cache: make(map[string]*vm.Program)}

// evaluateExpr runs an ExprCheck. The environment exposes:
//
//	reply       the chatbot reply (string)
//	metadata    a snapshot of the Run Context (map)
//	transcript  the conversation so far, as [{role, content}]
//	meta(key)   dotted Run Context lookup, nil when absent
//
// plus the helper functions listed in exprFunctions. Examples:
//
//	has(lowercase(reply), "refund")
//	meta("router.agent") == "billing" && len(transcript) > 2
//	match(reply, "^Order #[0-9]+")
func evaluateExpr(c ExprCheck, in Input) Result {
	r := Result{
		Kind:        KindExpr,
		Description: c.Description(),
		Expected:    c.Expression,
		Actual:      in.Reply,
	}

	passed, err := expressions.eval(c.Expression, exprEnv(in))
	if err != nil {
		r.Err = err
		r.Reason = err.Error()
		return r
	}
	r.Passed = passed
	if !passed {
		r.Reason = "Expression evaluated to false: " + c.Expression
	}
	return r
}

func exprEnv(in Input) map[string]any {
	metadata := map[string]any{}
	if in.Context != nil {
		metadata = in.Context.Snapshot()
	}

	transcript := make([]map[string]any, len(in.Transcript))
	for i, m := range in.Transcript {
		transcript[i] = map[string]any{"role": string(m.Role), "content": m.Content}
	}

	env := map[string]any{
		"reply":      in.Reply,
		"metadata":   metadata,
		"transcript": transcript,
	}
	for name, fn := range exprFunctions() {
		env[name] = fn
	}
	env["meta"] = func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("meta requires exactly 1 argument, got %d", len(args))
		}
		key, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("meta: expected string key, got %T", args[0])
		}
		if in.Context == nil {
			return nil, nil
		}
		v, _ := in.Context.Get(key)
		return v, nil
	}
	return env
}

func (e *exprEvaluator) eval(expression string, env map[string]any) (bool, error) {
	if expression == "" {
		return false, fmt.Errorf("empty expression")
	}

	program, err := e.compile(expression)
	if err != nil {
		return false, fmt.Errorf("failed to compile expression: %w", err)
	}

	out, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("expression evaluation failed: %w", err)
	}

	passed, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("expression must return boolean, got %T (%v)", out, out)
	}
	return passed, nil
}

// compile compiles an expression and caches the result.
func (e *exprEvaluator) compile(expression string) (*vm.Program, error) {
	e.mu.RLock()
	if prog, ok := e.cache[expression]; ok {
		e.mu.RUnlock()
		return prog, nil
	}
	e.mu.RUnlock()

	env := map[string]any{
		"reply":      "",
		"metadata":   map[string]any{},
		"transcript": []map[string]any{},
		"meta":       func(args ...any) (any, error) { return nil, nil },
	}
	for name, fn := range exprFunctions() {
		env[name] = fn
	}

	prog, err := expr.Compile(expression,
		expr.Env(env),
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
	)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cache[expression] = prog
	e.mu.Unlock()

	return prog, nil
}

// ValidateExpr reports whether expression compiles. Suite loading uses it to
// reject broken expressions before a run starts.
func ValidateExpr(expression string) error {
	if expression == "" {
		return fmt.Errorf("empty expression")
	}
	_, err := expressions.compile(expression)
	return err
}
