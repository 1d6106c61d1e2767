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
	"context"
	"testing"

	"github.com/expr-lang/expr/vm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/credence/pkg/llm"
	"github.com/tombee/credence/pkg/runcontext"
)

func exprInput() Input {
	rc := runcontext.New()
	rc.Collect(map[string]any{
		"router.agent": "billing",
		"tier":         "gold",
	})
	return Input{
		Reply:   `{"status": "ok", "items": 2}`,
		Context: rc,
		Transcript: []llm.Message{
			{Role: llm.MessageRoleUser, Content: "status?"},
			{Role: llm.MessageRoleAssistant, Content: `{"status": "ok", "items": 2}`},
		},
	}
}

func TestExprCheck(t *testing.T) {
	tests := []struct {
		name       string
		expression string
		passed     bool
	}{
		{"has", `has(reply, "status")`, true},
		{"lowercase", `has(lowercase("REFUND issued"), "refund")`, true},
		{"uppercase", `uppercase(metadata.tier) == "GOLD"`, true},
		{"match", `match(reply, "^\\{")`, true},
		{"meta dotted", `meta("router.agent") == "billing"`, true},
		{"meta missing", `meta("nope") == nil`, true},
		{"includes", `includes(metadata.tier, ["gold", "platinum"])`, true},
		{"notIn", `notIn(metadata.tier, ["bronze"])`, true},
		{"json", `json(reply).status == "ok"`, true},
		{"transcript", `len(transcript) == 2 && transcript[0].role == "user"`, true},
		{"false", `has(reply, "error")`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Evaluate(context.Background(), Expr(tt.expression), exprInput())
			require.NoError(t, r.Err)
			assert.Equal(t, tt.passed, r.Passed)
			assert.Equal(t, KindExpr, r.Kind)
		})
	}
}

func TestExprCheck_Errors(t *testing.T) {
	tests := map[string]string{
		"syntax":      `has(reply, `,
		"not boolean": `"just a string"`,
		"bad regex":   `match(reply, "(")`,
		"empty":       ``,
	}

	for name, expression := range tests {
		t.Run(name, func(t *testing.T) {
			r := Evaluate(context.Background(), Expr(expression), exprInput())
			assert.False(t, r.Passed)
			assert.Error(t, r.Err)
			assert.NotEmpty(t, r.Reason)
		})
	}
}

func TestValidateExpr(t *testing.T) {
	assert.NoError(t, ValidateExpr(`has(reply, "x")`))
	assert.Error(t, ValidateExpr(`has(reply,`))
	assert.Error(t, ValidateExpr(""))
}

func TestExprEvaluator_Caches(t *testing.T) {
	e := &exprEvaluator{cache: make(map[string]*vm.Program)}

	first, err := e.compile(`has(reply, "a")`)
	require.NoError(t, err)
	second, err := e.compile(`has(reply, "a")`)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Len(t, e.cache, 1)
}
