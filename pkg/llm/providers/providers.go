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

// Package providers implements llm.Provider for the supported LLM backends.
package providers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tombee/credence/pkg/errors"
	"github.com/tombee/credence/pkg/httpclient"
	"github.com/tombee/credence/pkg/llm"
)

// Config holds the settings shared by every provider.
type Config struct {
	// APIKey authenticates with hosted providers. Ignored by ollama.
	APIKey string

	// BaseURL overrides the provider's default endpoint.
	BaseURL string

	// Timeout bounds a single completion call. Defaults to 120s.
	Timeout time.Duration

	// RateLimit caps requests per second to the provider (0 = unlimited).
	RateLimit float64

	Logger *slog.Logger
}

// Names lists the provider identifiers accepted by New.
var Names = []string{"anthropic", "openai", "ollama"}

// New constructs the named provider.
func New(name string, cfg Config) (llm.Provider, error) {
	switch strings.ToLower(name) {
	case "anthropic":
		return NewAnthropicProvider(cfg)
	case "openai":
		return NewOpenAIProvider(cfg)
	case "ollama":
		return NewOllamaProvider(cfg)
	default:
		return nil, &errors.ConfigError{
			Key:    "llm.provider",
			Reason: fmt.Sprintf("unknown provider %q (expected one of %s)", name, strings.Join(Names, ", ")),
		}
	}
}

func newHTTPClient(name string, cfg Config) (*http.Client, error) {
	hc := httpclient.DefaultConfig()
	hc.Timeout = 120 * time.Second
	if cfg.Timeout > 0 {
		hc.Timeout = cfg.Timeout
	}
	hc.UserAgent = "credence-" + name + "/1.0"
	hc.RateLimit = cfg.RateLimit
	hc.Logger = cfg.Logger

	client, err := httpclient.New(hc)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}
	return client, nil
}

// suggestionForStatus returns a hint for a failed provider call.
func suggestionForStatus(provider string, statusCode int) string {
	switch statusCode {
	case http.StatusUnauthorized:
		return "Check that your API key is valid and correctly configured"
	case http.StatusForbidden:
		return "Your API key may not have access to this model or feature"
	case http.StatusNotFound:
		return "Check that the model name is correct"
	case http.StatusTooManyRequests:
		return "Rate limit exceeded. Lower llm.rate_limit or enable llm.max_retries"
	case http.StatusBadRequest:
		return "Review the request format and parameters"
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return fmt.Sprintf("The %s API is experiencing issues. Retry after a short delay", provider)
	default:
		return fmt.Sprintf("Check the %s API documentation for more details", provider)
	}
}

// splitSystem separates system messages, which some APIs take out of band.
func splitSystem(messages []llm.Message) (system []string, rest []llm.Message) {
	for _, m := range messages {
		if m.Role == llm.MessageRoleSystem {
			system = append(system, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}
