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
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/credence/internal/log"
	"github.com/tombee/credence/pkg/llm"
)

// instrumentedClient adds a span, a metric and a debug log line to every LLM
// client call.
type instrumentedClient struct {
	next     llm.Client
	tracer   trace.Tracer
	recorder Recorder
	logger   *slog.Logger
}

func newInstrumentedClient(next llm.Client, tracer trace.Tracer, recorder Recorder, logger *slog.Logger) *instrumentedClient {
	return &instrumentedClient{next: next, tracer: tracer, recorder: recorder, logger: logger}
}

func (c *instrumentedClient) GenerateUserMessage(ctx context.Context, req llm.GenerateRequest) (string, error) {
	ctx, done := c.start(ctx, "generate_user_message", req.Model)
	text, err := c.next.GenerateUserMessage(ctx, req)
	done(err)
	return text, err
}

func (c *instrumentedClient) Judge(ctx context.Context, req llm.JudgeRequest) (*llm.Judgment, error) {
	ctx, done := c.start(ctx, "judge", req.Model)
	j, err := c.next.Judge(ctx, req)
	done(err)
	return j, err
}

func (c *instrumentedClient) start(ctx context.Context, op, model string) (context.Context, func(error)) {
	ctx, span := c.tracer.Start(ctx, "credence.llm."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("llm.operation", op),
			attribute.String("llm.model", model),
		),
	)
	start := time.Now()

	return ctx, func(err error) {
		elapsed := time.Since(start)
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		c.recorder.RecordLLMCall(ctx, op, model, status, elapsed)
		c.logger.Debug("llm call",
			slog.String("operation", op),
			slog.String("status", status),
			slog.Int64(log.DurationKey, elapsed.Milliseconds()))
	}
}

// failingClient stands in for a client that could not be created so AI
// checks fail closed with the creation error as their cause.
type failingClient struct {
	err error
}

func (f failingClient) GenerateUserMessage(ctx context.Context, req llm.GenerateRequest) (string, error) {
	return "", f.err
}

func (f failingClient) Judge(ctx context.Context, req llm.JudgeRequest) (*llm.Judgment, error) {
	return nil, f.err
}
