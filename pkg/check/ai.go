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

	"github.com/tombee/credence/pkg/errors"
	"github.com/tombee/credence/pkg/llm"
)

// evaluateAI asks the judge for a verdict. The engine applies no retry here:
// a client fault or an unreadable judgment fails the check.
func evaluateAI(ctx context.Context, c AICheck, in Input) Result {
	r := Result{
		Kind:        KindAI,
		Description: c.Description(),
		Expected:    c.Rubric,
		Actual:      in.Reply,
	}

	if in.Client == nil {
		r.Err = &errors.ClientError{Op: "judge", Cause: errors.New("no LLM client available")}
		r.Reason = "Error while judging response: " + r.Err.Error()
		return r
	}

	model := c.Model
	if model == "" {
		model = in.Model
	}

	judgment, err := in.Client.Judge(ctx, llm.JudgeRequest{
		Model:      model,
		Rubric:     c.Rubric,
		Actual:     in.Reply,
		Transcript: in.Transcript,
	})
	if err != nil {
		r.Err = err
		r.Reason = "Error while judging response: " + err.Error()
		return r
	}
	if judgment == nil {
		r.Err = &errors.MalformedJudgmentError{Cause: errors.New("judge returned no judgment")}
		r.Reason = "Error while judging response: " + r.Err.Error()
		return r
	}

	r.Rationale = judgment.Rationale
	r.Passed = judgment.Verdict
	if !r.Passed {
		r.Reason = "Requirement not met: " + judgment.Rationale
	}
	return r
}

// AssertThat judges text against rubric outside of any conversation, e.g.
// from a plain Go test:
//
//	r := check.AssertThat(ctx, client, "", "Hi there", "is a greeting")
//	require.True(t, r.Passed, r.Reason)
func AssertThat(ctx context.Context, client llm.Client, model, text, rubric string) Result {
	return evaluateAI(ctx, AI(rubric), Input{
		Reply:  text,
		Client: client,
		Model:  model,
	})
}
