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

// Package tracing sets up OpenTelemetry for the credence CLI: a tracer
// provider exporting run and interaction spans, and a meter provider whose
// instruments are exposed in Prometheus format.
//
// Library packages never call into this package. They use the global
// providers through go.opentelemetry.io/otel, or take a provider explicitly.
package tracing

import "time"

// Config holds observability configuration.
type Config struct {
	// Enabled controls whether spans are exported.
	Enabled bool

	// ServiceName identifies this service in traces.
	ServiceName string

	// ServiceVersion is the application version.
	ServiceVersion string

	// Exporter is "stdout", "otlp" (OTLP over HTTP) or "none".
	Exporter string

	// Endpoint is the OTLP receiver host:port, e.g. "localhost:4318".
	Endpoint string

	// Insecure disables TLS to the OTLP receiver.
	Insecure bool

	// Headers are sent with every OTLP export, e.g. for authentication.
	Headers map[string]string

	// SampleRate is the fraction of runs traced (0.0 - 1.0). Child spans
	// follow their run.
	SampleRate float64

	// BatchTimeout is how often spans are flushed (default: 5s).
	BatchTimeout time.Duration
}

// DefaultConfig returns tracing disabled with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		ServiceName:    "credence",
		ServiceVersion: "unknown",
		Exporter:       "stdout",
		SampleRate:     1.0,
		BatchTimeout:   5 * time.Second,
	}
}
