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

// Package httpclient builds the HTTP clients used to reach chatbots under test
// and LLM providers.
//
// Every client carries the same transport stack:
//   - Request logging with sanitized URLs (sensitive parameters redacted)
//   - User-Agent header injection
//   - W3C trace context propagation from the request context
//   - Optional client-side rate limiting
//   - TLS 1.2 minimum (TLS 1.3 preferred)
//
// Clients never retry. A failed call is reported to the caller exactly once;
// LLM callers that want backoff wrap their provider in llm.RetryProvider.
//
// # Usage
//
//	cfg := httpclient.DefaultConfig()
//	cfg.UserAgent = "credence-httpbot/1.0"
//	cfg.RateLimit = 5
//	client, err := httpclient.New(cfg)
//	if err != nil {
//	    return err
//	}
package httpclient
