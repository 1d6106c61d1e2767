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
	"fmt"
	"regexp"
	"strings"

	"github.com/tombee/credence/pkg/errors"
	"github.com/tombee/credence/pkg/llm"
	"github.com/tombee/credence/pkg/runcontext"
)

// Input is everything a check may look at.
type Input struct {
	// Reply is the chatbot reply under test.
	Reply string

	// Transcript is the conversation so far, ending with Reply.
	Transcript []llm.Message

	// Context is the Run Context of the execution.
	Context *runcontext.Context

	// Client judges AI checks. Only AI checks need it.
	Client llm.Client

	// Model is the judge model used when an AICheck does not name one.
	Model string
}

// Result is the outcome of one check.
type Result struct {
	Kind        Kind   `json:"kind"`
	Description string `json:"description"`
	Passed      bool   `json:"passed"`

	// Expected and Actual are filled for comparisons.
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`

	// Reason explains a failure.
	Reason string `json:"reason,omitempty"`

	// Rationale is the judge's explanation for AI checks, pass or fail.
	Rationale string `json:"rationale,omitempty"`

	// Err is the underlying cause when the check could not be decided
	// normally, e.g. *errors.MissingMetadataError or *errors.ClientError.
	Err error `json:"-"`
}

// Evaluate runs c against in. It never returns an error: problems deciding
// the check, including judge failures, produce a failing Result that carries
// the cause in Err.
func Evaluate(ctx context.Context, c Check, in Input) Result {
	switch c := c.(type) {
	case ResponseCheck:
		return evaluateResponse(c, in.Reply)
	case MetadataCheck:
		return evaluateMetadata(c, in.Context)
	case AICheck:
		return evaluateAI(ctx, c, in)
	case ExprCheck:
		return evaluateExpr(c, in)
	default:
		return Result{
			Description: fmt.Sprintf("unsupported check %T", c),
			Reason:      fmt.Sprintf("unsupported check %T", c),
			Err:         fmt.Errorf("unsupported check %T", c),
		}
	}
}

// EvaluateAll runs every check in order. A failing check does not stop the
// ones after it.
func EvaluateAll(ctx context.Context, checks []Check, in Input) []Result {
	results := make([]Result, 0, len(checks))
	for _, c := range checks {
		results = append(results, Evaluate(ctx, c, in))
	}
	return results
}

func evaluateResponse(c ResponseCheck, reply string) Result {
	r := Result{
		Kind:        KindResponse,
		Description: c.Description(),
		Expected:    strings.Join(c.Values, ", "),
		Actual:      reply,
	}

	ok, err := compare(c.Op, reply, c.Values)
	if err != nil {
		r.Err = err
		r.Reason = err.Error()
		return r
	}
	r.Passed = ok
	if !ok {
		r.Reason = "Chatbot response did not meet requirement: " + r.Description
	}
	return r
}

func evaluateMetadata(c MetadataCheck, rc *runcontext.Context) Result {
	expected := stringify(c.Values)
	r := Result{
		Kind:        KindMetadata,
		Description: c.Description(),
		Expected:    strings.Join(expected, ", "),
	}

	var (
		value any
		found bool
	)
	if rc != nil {
		value, found = rc.Get(c.Key)
	}
	if !found {
		r.Err = &errors.MissingMetadataError{Key: c.Key}
		r.Reason = "Metadata key is missing: " + c.Key
		return r
	}

	r.Actual = fmt.Sprint(value)
	if c.Op == OpExists {
		r.Passed = true
		return r
	}

	ok, err := compare(c.Op, r.Actual, expected)
	if err != nil {
		r.Err = err
		r.Reason = err.Error()
		return r
	}
	r.Passed = ok
	if !ok {
		r.Reason = fmt.Sprintf("Metadata value for %s did not meet requirement: %s", c.Key, r.Description)
	}
	return r
}

// compare applies op to actual. Invalid patterns and operators that need a
// value they were not given are errors.
func compare(op Op, actual string, expected []string) (bool, error) {
	first := func() (string, error) {
		if len(expected) == 0 {
			return "", fmt.Errorf("%s requires a value", op)
		}
		return expected[0], nil
	}

	switch op {
	case OpEquals, OpNotEquals:
		want, err := first()
		if err != nil {
			return false, err
		}
		return (actual == want) == (op == OpEquals), nil

	case OpContains:
		want, err := first()
		if err != nil {
			return false, err
		}
		return strings.Contains(actual, want), nil

	case OpContainsAll:
		for _, want := range expected {
			if !strings.Contains(actual, want) {
				return false, nil
			}
		}
		return true, nil

	case OpContainsAny:
		for _, want := range expected {
			if strings.Contains(actual, want) {
				return true, nil
			}
		}
		return false, nil

	case OpNotContains:
		for _, want := range expected {
			if strings.Contains(actual, want) {
				return false, nil
			}
		}
		return true, nil

	case OpOneOf:
		for _, want := range expected {
			if actual == want {
				return true, nil
			}
		}
		return false, nil

	case OpMatches:
		pattern, err := first()
		if err != nil {
			return false, err
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false, fmt.Errorf("invalid regex `%s`: %w", pattern, err)
		}
		return re.MatchString(actual), nil

	default:
		return false, fmt.Errorf("unsupported operation %q", op)
	}
}
