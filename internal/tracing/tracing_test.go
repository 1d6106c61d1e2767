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

package tracing

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/tombee/credence/internal/log"
	"github.com/tombee/credence/internal/testing/mock"
	"github.com/tombee/credence/pkg/check"
	"github.com/tombee/credence/pkg/conversation"
	"github.com/tombee/credence/pkg/engine"
)

var _ engine.Recorder = (*MetricsCollector)(nil)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "credence", cfg.ServiceName)
	assert.Equal(t, "stdout", cfg.Exporter)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestCreateExporter(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		cfg     Config
		wantNil bool
		wantErr string
	}{
		{name: "stdout", cfg: Config{Exporter: "stdout"}},
		{name: "otlp", cfg: Config{Exporter: "otlp", Endpoint: "localhost:4318", Insecure: true}},
		{name: "otlp with headers", cfg: Config{Exporter: "otlp", Endpoint: "collector:4318", Headers: map[string]string{"x-api-key": "k"}}},
		{name: "otlp without endpoint", cfg: Config{Exporter: "otlp"}, wantErr: "requires an endpoint"},
		{name: "none", cfg: Config{Exporter: "none"}, wantNil: true},
		{name: "unknown", cfg: Config{Exporter: "zipkin"}, wantErr: "unknown exporter type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp, err := CreateExporter(ctx, tt.cfg, io.Discard)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, exp)
				return
			}
			require.NotNil(t, exp)
			_ = exp.Shutdown(ctx)
		})
	}
}

func TestNewSampler(t *testing.T) {
	assert.Contains(t, NewSampler(1).Description(), "AlwaysOnSampler")
	assert.Contains(t, NewSampler(0).Description(), "AlwaysOffSampler")
	assert.Contains(t, NewSampler(0.25).Description(), "TraceIDRatioBased")
}

func TestProvider_ExportsSpansToConsole(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer

	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.BatchTimeout = 10 * time.Millisecond

	p, err := NewProvider(ctx, cfg, Options{ConsoleWriter: &buf})
	require.NoError(t, err)

	_, span := p.TracerProvider().Tracer("test").Start(ctx, "credence.run")
	span.End()

	require.NoError(t, p.Shutdown(ctx))
	assert.Contains(t, buf.String(), "credence.run")
}

func TestProvider_DisabledStillCreatesSpans(t *testing.T) {
	ctx := context.Background()
	rec := tracetest.NewSpanRecorder()

	p, err := NewProvider(ctx, DefaultConfig(), Options{SpanProcessors: []sdktrace.SpanProcessor{rec}})
	require.NoError(t, err)
	defer p.Shutdown(ctx)

	_, span := p.TracerProvider().Tracer("test").Start(ctx, "credence.interaction")
	span.End()

	require.Len(t, rec.Ended(), 1)
	assert.Equal(t, "credence.interaction", rec.Ended()[0].Name())
}

func TestMetricsCollector(t *testing.T) {
	ctx := context.Background()
	p, err := NewProvider(ctx, DefaultConfig(), Options{})
	require.NoError(t, err)
	defer p.Shutdown(ctx)

	m := p.Metrics()
	m.RecordRunStart(ctx, "run-1", "Greeting")
	assert.Equal(t, int64(1), m.ActiveRuns())

	m.RecordInteraction(ctx, "user", "ok", 20*time.Millisecond)
	m.RecordInteraction(ctx, "chatbot_responds", "fail", 5*time.Millisecond)
	m.RecordCheck(ctx, "contains", true)
	m.RecordCheck(ctx, "ai", false)
	m.RecordLLMCall(ctx, "judge", "mock-model", "ok", 300*time.Millisecond)
	m.RecordRunComplete(ctx, "run-1", "Greeting", "fail", time.Second)
	assert.Equal(t, int64(0), m.ActiveRuns())

	rr := httptest.NewRecorder()
	p.MetricsHandler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	body := rr.Body.String()

	for _, name := range []string{
		"credence_runs_total",
		"credence_run_duration_seconds",
		"credence_runs_active",
		"credence_interactions_total",
		"credence_interaction_duration_seconds",
		"credence_checks_total",
		"credence_llm_requests_total",
		"credence_llm_request_duration_seconds",
	} {
		assert.Contains(t, body, name)
	}
	assert.Contains(t, body, `kind="chatbot_responds"`)
	assert.Contains(t, body, `result="fail"`)
	assert.Contains(t, body, `model="mock-model"`)
}

func TestMetricsCollector_WithEngine(t *testing.T) {
	ctx := context.Background()
	rec := tracetest.NewSpanRecorder()
	p, err := NewProvider(ctx, DefaultConfig(), Options{SpanProcessors: []sdktrace.SpanProcessor{rec}})
	require.NoError(t, err)
	defer p.Shutdown(ctx)

	eng := engine.New().
		WithLogger(log.Discard()).
		WithTracerProvider(p.TracerProvider()).
		WithRecorder(p.Metrics())

	a := mock.NewAdapter(map[string]mock.Turn{"hi": mock.Echo("Hello")})
	conv := conversation.New("Greeting",
		conversation.User("hi"),
		conversation.Responds(check.Response().Contains("Hello")),
	)
	res := eng.Run(ctx, conv, a, engine.RunOptions{})
	require.True(t, res.Passed())

	var names []string
	for _, s := range rec.Ended() {
		names = append(names, s.Name())
	}
	assert.Contains(t, names, "credence.run")
	assert.Contains(t, names, "credence.interaction")

	rr := httptest.NewRecorder()
	p.MetricsHandler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rr.Body.String(), `status="pass"`)
	assert.Equal(t, int64(0), p.Metrics().ActiveRuns())
}
