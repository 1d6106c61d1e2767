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
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsCollector records run, interaction, check and LLM metrics. It
// implements engine.Recorder and is safe for concurrent use.
type MetricsCollector struct {
	runsTotal           metric.Int64Counter
	runDuration         metric.Float64Histogram
	interactionsTotal   metric.Int64Counter
	interactionDuration metric.Float64Histogram
	checksTotal         metric.Int64Counter
	llmRequestsTotal    metric.Int64Counter
	llmLatency          metric.Float64Histogram

	activeRuns atomic.Int64
}

// NewMetricsCollector creates the instruments on mp's "credence" meter.
func NewMetricsCollector(mp metric.MeterProvider) (*MetricsCollector, error) {
	meter := mp.Meter("credence")
	mc := &MetricsCollector{}

	var err error
	mc.runsTotal, err = meter.Int64Counter(
		"credence_runs_total",
		metric.WithDescription("Total number of conversation runs by status"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	mc.runDuration, err = meter.Float64Histogram(
		"credence_run_duration_seconds",
		metric.WithDescription("Conversation run duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300),
	)
	if err != nil {
		return nil, err
	}

	mc.interactionsTotal, err = meter.Int64Counter(
		"credence_interactions_total",
		metric.WithDescription("Total number of executed interactions by kind and status"),
		metric.WithUnit("{interaction}"),
	)
	if err != nil {
		return nil, err
	}

	mc.interactionDuration, err = meter.Float64Histogram(
		"credence_interaction_duration_seconds",
		metric.WithDescription("Interaction duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		return nil, err
	}

	mc.checksTotal, err = meter.Int64Counter(
		"credence_checks_total",
		metric.WithDescription("Total number of evaluated checks by kind and result"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return nil, err
	}

	mc.llmRequestsTotal, err = meter.Int64Counter(
		"credence_llm_requests_total",
		metric.WithDescription("Total number of LLM requests by operation, model and status"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	mc.llmLatency, err = meter.Float64Histogram(
		"credence_llm_request_duration_seconds",
		metric.WithDescription("LLM request latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60),
	)
	if err != nil {
		return nil, err
	}

	_, err = meter.Int64ObservableGauge(
		"credence_runs_active",
		metric.WithDescription("Number of runs currently executing"),
		metric.WithUnit("{run}"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(mc.activeRuns.Load())
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}

	return mc, nil
}

// RecordRunStart marks a run as active.
func (mc *MetricsCollector) RecordRunStart(ctx context.Context, runID, conversation string) {
	mc.activeRuns.Add(1)
}

// RecordRunComplete counts a finished run and observes its duration.
func (mc *MetricsCollector) RecordRunComplete(ctx context.Context, runID, conversation, status string, duration time.Duration) {
	mc.activeRuns.Add(-1)
	mc.runsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	mc.runDuration.Record(ctx, duration.Seconds())
}

// RecordInteraction counts an executed interaction.
func (mc *MetricsCollector) RecordInteraction(ctx context.Context, kind, status string, duration time.Duration) {
	mc.interactionsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("status", status),
	))
	mc.interactionDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordCheck counts an evaluated check.
func (mc *MetricsCollector) RecordCheck(ctx context.Context, kind string, passed bool) {
	result := "fail"
	if passed {
		result = "pass"
	}
	mc.checksTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("result", result),
	))
}

// RecordLLMCall counts an LLM request and observes its latency.
func (mc *MetricsCollector) RecordLLMCall(ctx context.Context, op, model, status string, latency time.Duration) {
	mc.llmRequestsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("model", model),
		attribute.String("status", status),
	))
	mc.llmLatency.Record(ctx, latency.Seconds(), metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("model", model),
	))
}

// ActiveRuns returns the number of runs currently executing.
func (mc *MetricsCollector) ActiveRuns() int64 {
	return mc.activeRuns.Load()
}
