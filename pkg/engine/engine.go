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

// Package engine replays conversations against an Adapter.
//
// Run flattens the conversation, checks that every external action it calls
// exists, and then executes the interactions strictly in order on the
// calling goroutine. Check failures are collected and the run continues.
// Configuration errors and adapter or LLM client faults halt the run. Either
// way exactly one Result is returned.
//
// The engine never retries. A flaky judge or chatbot shows up in the Result.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/credence/internal/log"
	"github.com/tombee/credence/pkg/adapter"
	"github.com/tombee/credence/pkg/conversation"
	"github.com/tombee/credence/pkg/errors"
	"github.com/tombee/credence/pkg/llm"
	"github.com/tombee/credence/pkg/result"
	"github.com/tombee/credence/pkg/runcontext"
)

const instrumentationName = "github.com/tombee/credence/pkg/engine"

// Engine executes conversations. An Engine holds no per-run state and may be
// shared by concurrent runs.
type Engine struct {
	logger   *slog.Logger
	tracer   trace.Tracer
	recorder Recorder
}

// New creates an Engine that logs to slog.Default, traces through the global
// OpenTelemetry provider and records no metrics.
func New() *Engine {
	return &Engine{
		logger:   slog.Default(),
		tracer:   otel.Tracer(instrumentationName),
		recorder: nopRecorder{},
	}
}

// WithLogger sets the logger.
func (e *Engine) WithLogger(logger *slog.Logger) *Engine {
	e.logger = logger
	return e
}

// WithTracerProvider sets the provider of the run and interaction spans.
func (e *Engine) WithTracerProvider(tp trace.TracerProvider) *Engine {
	e.tracer = tp.Tracer(instrumentationName)
	return e
}

// WithRecorder sets the metrics recorder.
func (e *Engine) WithRecorder(r Recorder) *Engine {
	if r == nil {
		r = nopRecorder{}
	}
	e.recorder = r
	return e
}

// RunOptions seed the Run Context of one execution.
type RunOptions struct {
	// Profile describes the simulated user for generated turns that do not
	// name their own. Stored under runcontext.KeyProfile.
	Profile string

	// InitialContext is copied into the Run Context before the first
	// interaction.
	InitialContext map[string]any
}

// Run executes conv against a. The returned Result is never nil.
func (e *Engine) Run(ctx context.Context, conv *conversation.Conversation, a adapter.Adapter, opts RunOptions) *result.Result {
	start := time.Now()
	res := &result.Result{
		RunID:     uuid.NewString(),
		StartedAt: start,
	}
	if conv != nil {
		res.Title = conv.Title
	}

	logger := log.WithRunContext(e.logger, res.RunID, res.Title)

	ctx, span := e.tracer.Start(ctx, "credence.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("credence.run_id", res.RunID),
			attribute.String("credence.conversation", res.Title),
		),
	)
	defer span.End()

	e.recorder.RecordRunStart(ctx, res.RunID, res.Title)
	logger.Info("conversation run started")

	defer func() {
		res.Duration = time.Since(start)
		status := res.Status()

		span.SetAttributes(
			attribute.String("credence.status", status),
			attribute.Int("credence.errors", len(res.Errors)),
		)
		if halt := res.HaltError(); halt != nil {
			span.SetStatus(codes.Error, halt.Message)
		} else if !res.Passed() {
			span.SetStatus(codes.Error, fmt.Sprintf("%d check(s) failed", len(res.Errors)))
		} else {
			span.SetStatus(codes.Ok, "")
		}

		e.recorder.RecordRunComplete(ctx, res.RunID, res.Title, status, res.Duration)
		logger.Info("conversation run completed",
			slog.String("status", status),
			slog.Int("outcomes", len(res.Outcomes)),
			slog.Int("errors", len(res.Errors)),
			slog.Int64(log.DurationKey, res.Duration.Milliseconds()))
	}()

	steps, err := e.prepare(conv, a)
	if err != nil {
		res.Steps = len(steps)
		halt := result.Halt(0, res.Title, fmt.Sprintf("Conversation %q", res.Title), err)
		var unknown *errors.UnknownActionError
		if errors.As(err, &unknown) {
			halt.Index, halt.Owner = unknown.Index, unknown.Owner
			halt.Interaction = steps[unknown.Index].Interaction.Describe()
		}
		res.Errors = append(res.Errors, halt)
		logger.Error("conversation rejected", log.Error(err))
		return res
	}
	res.Steps = len(steps)

	rc := runcontext.NewWithValues(opts.InitialContext)
	if opts.Profile != "" {
		rc.SetEngine(runcontext.KeyProfile, opts.Profile)
	}

	r := &run{
		engine:  e,
		adapter: a,
		rc:      rc,
		res:     res,
		logger:  logger,
	}
	r.execute(ctx, steps)

	res.Transcript = r.transcript
	res.Context = rc.History()
	return res
}

// prepare flattens conv and rejects it before any side effect if it is
// malformed or calls an action the adapter does not provide.
func (e *Engine) prepare(conv *conversation.Conversation, a adapter.Adapter) ([]conversation.Step, error) {
	if err := conversation.Validate(conv); err != nil {
		return nil, err
	}
	steps, err := conversation.Flatten(conv)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return steps, &errors.ValidationError{Field: "adapter", Message: "adapter is nil"}
	}

	for _, s := range steps {
		ext, ok := s.Interaction.(conversation.External)
		if !ok {
			continue
		}
		if _, found := a.Action(ext.Action); !found {
			return steps, &errors.UnknownActionError{Name: ext.Action, Index: s.Index, Owner: s.Owner}
		}
	}
	return steps, nil
}

// run is the mutable state of one execution.
type run struct {
	engine  *Engine
	adapter adapter.Adapter
	rc      *runcontext.Context
	res     *result.Result
	logger  *slog.Logger

	client      llm.Client
	clientErr   error
	clientReady bool

	reply    string
	hasReply bool

	transcript []llm.Message
	owner      string
}

// llmClient creates the client on first use. Creation is attempted once per
// run; a failure is remembered and returned to every later caller.
func (r *run) llmClient(ctx context.Context) (llm.Client, error) {
	if r.clientReady {
		return r.client, r.clientErr
	}
	r.clientReady = true

	client, err := r.adapter.CreateClient(ctx)
	switch {
	case err != nil:
		r.clientErr = &errors.AdapterError{Op: "create_client", Cause: err}
	case client == nil:
		r.clientErr = &errors.ClientError{Op: "create_client", Cause: errors.New("adapter returned no LLM client")}
	default:
		r.client = newInstrumentedClient(client, r.engine.tracer, r.engine.recorder, r.logger)
	}
	if r.clientErr != nil {
		r.logger.Warn("LLM client unavailable", log.Error(r.clientErr))
	}
	return r.client, r.clientErr
}
