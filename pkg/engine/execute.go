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

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/credence/internal/log"
	"github.com/tombee/credence/pkg/check"
	"github.com/tombee/credence/pkg/conversation"
	"github.com/tombee/credence/pkg/errors"
	"github.com/tombee/credence/pkg/llm"
	"github.com/tombee/credence/pkg/result"
	"github.com/tombee/credence/pkg/runcontext"
)

// execute runs steps in order until the end or the first halting error.
func (r *run) execute(ctx context.Context, steps []conversation.Step) {
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			r.halt(s, result.Outcome{}, fmt.Errorf("run cancelled: %w", err))
			return
		}

		if s.Owner != r.owner {
			r.owner = s.Owner
			r.rc.SetEngine(runcontext.KeyConversation, s.Owner)
		}

		if !r.step(ctx, s) {
			return
		}
	}
}

// step executes one interaction and reports whether the run may continue.
func (r *run) step(ctx context.Context, s conversation.Step) bool {
	kind := string(s.Interaction.Kind())
	logger := log.WithInteraction(r.logger, s.Index, kind, s.Owner)

	ctx, span := r.engine.tracer.Start(ctx, "credence.interaction",
		trace.WithAttributes(
			attribute.Int("credence.interaction.index", s.Index),
			attribute.String("credence.interaction.kind", kind),
			attribute.String("credence.interaction.owner", s.Owner),
		),
	)
	defer span.End()

	start := time.Now()
	outcome := result.Outcome{
		Index:       s.Index,
		Owner:       s.Owner,
		Kind:        kind,
		Description: s.Interaction.Describe(),
	}

	var err error
	switch i := s.Interaction.(type) {
	case conversation.UserMessage:
		err = r.userTurn(ctx, &outcome, i.Text, logger)
	case conversation.UserGenerated:
		var text string
		text, err = r.generate(ctx, i)
		if err == nil {
			err = r.userTurn(ctx, &outcome, text, logger)
		}
	case conversation.ChatbotResponse:
		err = r.respond(ctx, s, &outcome, i)
	case conversation.ChatbotIgnores:
		r.ignores(&outcome)
	case conversation.External:
		err = r.external(ctx, i)
	default:
		err = &errors.ValidationError{
			Field:   fmt.Sprintf("%s.interactions[%d]", s.Owner, s.Index),
			Message: fmt.Sprintf("unsupported interaction %T", s.Interaction),
		}
	}
	outcome.Duration = time.Since(start)

	status := "pass"
	switch {
	case err != nil:
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case !outcome.Passed():
		status = "fail"
		span.SetStatus(codes.Error, "check failed")
	}
	r.engine.recorder.RecordInteraction(ctx, kind, status, outcome.Duration)

	if err != nil {
		logger.Error("interaction halted the run", log.Error(err))
		r.halt(s, outcome, err)
		return false
	}

	r.res.Outcomes = append(r.res.Outcomes, outcome)
	for _, c := range outcome.Checks {
		if !c.Passed {
			r.res.Errors = append(r.res.Errors, result.CheckFailure(outcome, c))
		}
	}
	logger.Debug("interaction completed",
		slog.String("status", status),
		slog.Int64(log.DurationKey, outcome.Duration.Milliseconds()))
	return true
}

// halt records err as the error that stopped the run. The outcome of the
// halting interaction is kept so reports can show how far it got.
func (r *run) halt(s conversation.Step, outcome result.Outcome, err error) {
	if outcome.Description == "" {
		outcome = result.Outcome{
			Index:       s.Index,
			Owner:       s.Owner,
			Kind:        string(s.Interaction.Kind()),
			Description: s.Interaction.Describe(),
		}
	}
	outcome.Error = err.Error()
	r.res.Outcomes = append(r.res.Outcomes, outcome)

	for _, c := range outcome.Checks {
		if !c.Passed {
			r.res.Errors = append(r.res.Errors, result.CheckFailure(outcome, c))
		}
	}
	r.res.Errors = append(r.res.Errors, result.Halt(s.Index, s.Owner, outcome.Description, err))
}

// userTurn sends text to the chatbot. Its reply, if any, replaces whatever
// was pending.
func (r *run) userTurn(ctx context.Context, outcome *result.Outcome, text string, logger *slog.Logger) error {
	if r.hasReply {
		logger.Debug("discarding unasserted chatbot reply", slog.String("reply", r.reply))
	}
	r.reply, r.hasReply = "", false

	outcome.UserText = text
	r.transcript = append(r.transcript, llm.Message{Role: llm.MessageRoleUser, Content: text})

	start := time.Now()
	reply, err := r.adapter.HandleMessage(ctx, r.rc, text)
	r.res.HandlerDuration += time.Since(start)
	if err != nil {
		return &errors.AdapterError{Op: "handle_message", Cause: err}
	}

	if reply.OK {
		r.reply, r.hasReply = reply.Text, true
		outcome.Reply, outcome.HasReply = reply.Text, true
		r.transcript = append(r.transcript, llm.Message{Role: llm.MessageRoleAssistant, Content: reply.Text})
	}
	return nil
}

// generate asks the LLM client for the user's next message.
func (r *run) generate(ctx context.Context, g conversation.UserGenerated) (string, error) {
	client, err := r.llmClient(ctx)
	if err != nil {
		return "", err
	}

	// A per-turn profile applies to this turn only.
	profile := g.Profile
	if profile == "" {
		if v, ok := r.rc.Get(runcontext.KeyProfile); ok {
			profile = fmt.Sprint(v)
		}
	}

	prompt, _ := r.adapter.UserSimulatorSystemPrompt(r.rc)

	text, err := client.GenerateUserMessage(ctx, llm.GenerateRequest{
		Model:        r.adapter.ModelName(),
		Goal:         g.Goal,
		Profile:      profile,
		SystemPrompt: prompt,
		Transcript:   append([]llm.Message(nil), r.transcript...),
	})
	if err != nil {
		var clientErr *errors.ClientError
		if !errors.As(err, &clientErr) {
			err = &errors.ClientError{Op: "generate_user_message", Cause: err}
		}
		return "", err
	}
	return text, nil
}

// respond evaluates every check against the pending reply and consumes it.
func (r *run) respond(ctx context.Context, s conversation.Step, outcome *result.Outcome, resp conversation.ChatbotResponse) error {
	if !r.hasReply {
		return &errors.MissingReplyError{Index: s.Index, Owner: s.Owner}
	}
	reply := r.reply
	r.reply, r.hasReply = "", false
	outcome.Reply, outcome.HasReply = reply, true

	in := check.Input{
		Reply:      reply,
		Transcript: append([]llm.Message(nil), r.transcript...),
		Context:    r.rc,
		Model:      r.adapter.ModelName(),
	}
	if needsClient(resp.Checks) {
		client, err := r.llmClient(ctx)
		if err != nil {
			client = failingClient{err: err}
		}
		in.Client = client
	}

	outcome.Checks = check.EvaluateAll(ctx, resp.Checks, in)
	for _, c := range outcome.Checks {
		r.engine.recorder.RecordCheck(ctx, string(c.Kind), c.Passed)
	}
	return nil
}

// ignores asserts that no reply is pending. A pending reply is a check
// failure and is consumed.
func (r *run) ignores(outcome *result.Outcome) {
	c := check.Result{
		Kind:        check.KindResponse,
		Description: "should not reply",
		Passed:      true,
	}
	if r.hasReply {
		c.Passed = false
		c.Actual = r.reply
		c.Reason = "Unexpected chatbot message: " + r.reply
		outcome.Reply, outcome.HasReply = r.reply, true
		r.reply, r.hasReply = "", false
	}
	outcome.Checks = []check.Result{c}
}

// external calls a named action. Existence was checked before the run.
func (r *run) external(ctx context.Context, ext conversation.External) error {
	fn, ok := r.adapter.Action(ext.Action)
	if !ok {
		return &errors.UnknownActionError{Name: ext.Action}
	}

	r.logger.Debug("calling external action", slog.String(log.ActionKey, ext.Action))
	if err := fn(ctx, r.rc, ext.Args); err != nil {
		return &errors.AdapterError{Op: "action:" + ext.Action, Cause: err}
	}
	return nil
}

func needsClient(checks []check.Check) bool {
	for _, c := range checks {
		if _, ok := c.(check.AICheck); ok {
			return true
		}
	}
	return false
}
