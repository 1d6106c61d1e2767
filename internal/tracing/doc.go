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

/*
Package tracing provides tracing and metrics for credence runs.

The engine emits spans and metric events through interfaces it owns
(trace.TracerProvider and engine.Recorder). This package supplies the
process-wide implementations used by the CLI.

# Quick Start

	cfg := tracing.DefaultConfig()
	cfg.Enabled = true
	cfg.Exporter = "otlp"
	cfg.Endpoint = "localhost:4318"

	provider, err := tracing.NewProvider(ctx, cfg, tracing.Options{})
	if err != nil {
	    return err
	}
	defer provider.Shutdown(ctx)

	eng := engine.New().
	    WithTracerProvider(provider.TracerProvider()).
	    WithRecorder(provider.Metrics())

# Exporters

  - stdout: pretty-printed JSON spans, for local debugging
  - otlp: OTLP over HTTP to any collector (Jaeger, Tempo, Honeycomb)
  - none: spans are created but dropped

# Metrics

Metrics are recorded through the OpenTelemetry meter API and exposed in
Prometheus text format by Provider.MetricsHandler:

  - credence_runs_total{status}
  - credence_run_duration_seconds
  - credence_runs_active
  - credence_interactions_total{kind,status}
  - credence_interaction_duration_seconds{kind}
  - credence_checks_total{kind,result}
  - credence_llm_requests_total{op,model,status}
  - credence_llm_request_duration_seconds{op,model}
*/
package tracing
