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

// Package result holds the report of a conversation run and renders it.
//
// A Result is assembled by the engine and is read-only afterwards. The
// renderers are pure functions of a Result; writing their output is up to
// the caller.
package result

import (
	"time"

	"github.com/tombee/credence/pkg/check"
	"github.com/tombee/credence/pkg/errors"
	"github.com/tombee/credence/pkg/llm"
	"github.com/tombee/credence/pkg/runcontext"
)

// Result is the report of one conversation execution.
type Result struct {
	RunID string `json:"run_id"`
	Title string `json:"title"`

	// Outcomes lists the interactions that ran, in order.
	Outcomes []Outcome `json:"outcomes"`

	// Errors holds every check failure and every halting error, in
	// interaction order. A run with no errors passed.
	Errors []Error `json:"errors"`

	// Transcript is the user and chatbot messages exchanged.
	Transcript []llm.Message `json:"transcript"`

	// Context is the write history of the Run Context.
	Context []runcontext.Write `json:"context,omitempty"`

	// Steps is the number of interactions after flattening.
	Steps int `json:"steps"`

	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`

	// HandlerDuration is the time spent inside the chatbot under test.
	HandlerDuration time.Duration `json:"handler_duration"`
}

// Outcome records one executed interaction.
type Outcome struct {
	// Index is the position in the flattened sequence.
	Index int    `json:"index"`
	Owner string `json:"owner"`
	Kind  string `json:"kind"`

	Description string `json:"description"`

	// UserText is the message sent to the chatbot by user interactions.
	UserText string `json:"user_text,omitempty"`

	// Reply is the chatbot reply produced by, or asserted on by, this
	// interaction. HasReply distinguishes an empty reply from none.
	Reply    string `json:"reply,omitempty"`
	HasReply bool   `json:"has_reply"`

	Checks []check.Result `json:"checks,omitempty"`

	// Error is set when the interaction halted the run.
	Error string `json:"error,omitempty"`

	Duration time.Duration `json:"duration"`
}

// Passed reports whether every check of the outcome passed and the
// interaction did not halt the run.
func (o Outcome) Passed() bool {
	if o.Error != "" {
		return false
	}
	for _, c := range o.Checks {
		if !c.Passed {
			return false
		}
	}
	return true
}

// Error is one entry of Result.Errors.
type Error struct {
	Index int          `json:"index"`
	Owner string       `json:"owner"`
	Class errors.Class `json:"class"`

	// Interaction describes the interaction the error belongs to.
	Interaction string `json:"interaction"`

	// Check describes the failed check. Empty for halting errors.
	Check string `json:"check,omitempty"`

	Message  string `json:"message"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`

	// Cause is the underlying error, if any.
	Cause error `json:"-"`
}

// CheckFailure converts a failed check result into an Error.
func CheckFailure(o Outcome, r check.Result) Error {
	msg := r.Reason
	if msg == "" {
		msg = r.Description
	}
	return Error{
		Index:       o.Index,
		Owner:       o.Owner,
		Class:       errors.ClassCheck,
		Interaction: o.Description,
		Check:       r.Description,
		Message:     msg,
		Expected:    r.Expected,
		Actual:      r.Actual,
		Cause:       r.Err,
	}
}

// Halt converts an error that stopped the run into an Error.
func Halt(index int, owner, interaction string, err error) Error {
	return Error{
		Index:       index,
		Owner:       owner,
		Class:       errors.ClassOf(err),
		Interaction: interaction,
		Message:     err.Error(),
		Cause:       err,
	}
}

// Passed reports whether the run produced no errors.
func (r *Result) Passed() bool {
	return len(r.Errors) == 0
}

// Halted reports whether the run stopped before the end of the conversation.
func (r *Result) Halted() bool {
	return r.HaltError() != nil
}

// HaltError returns the error that stopped the run, or nil.
func (r *Result) HaltError() *Error {
	for i := range r.Errors {
		if r.Errors[i].Class != errors.ClassCheck {
			return &r.Errors[i]
		}
	}
	return nil
}

// Failures returns the check failures.
func (r *Result) Failures() []Error {
	var out []Error
	for _, e := range r.Errors {
		if e.Class == errors.ClassCheck {
			out = append(out, e)
		}
	}
	return out
}

// Status summarizes a result as "pass", "fail" (check failures only) or
// "error" (the run halted).
func (r *Result) Status() string {
	switch {
	case r.Halted():
		return "error"
	case !r.Passed():
		return "fail"
	default:
		return "pass"
	}
}

// Summary aggregates the results of a suite.
type Summary struct {
	Total    int           `json:"total"`
	Passed   int           `json:"passed"`
	Failed   int           `json:"failed"`
	Errored  int           `json:"errored"`
	Duration time.Duration `json:"duration"`
}

// Summarize counts results by status. Duration is the sum of run durations.
func Summarize(results []*Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		s.Duration += r.Duration
		switch r.Status() {
		case "pass":
			s.Passed++
		case "fail":
			s.Failed++
		default:
			s.Errored++
		}
	}
	return s
}

// AllPassed reports whether every result passed.
func AllPassed(results []*Result) bool {
	for _, r := range results {
		if !r.Passed() {
			return false
		}
	}
	return true
}
