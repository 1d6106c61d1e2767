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

package mock

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tombee/credence/pkg/llm"
)

// Response is one scripted provider answer.
type Response struct {
	// PromptContains selects the response when any request message contains
	// it (case-insensitive). Empty matches every request.
	PromptContains string

	// Return is the completion content.
	Return string

	// Err is returned instead of a completion when set.
	Err error
}

// LLMProvider is an llm.Provider that answers from a script. Responses are
// tried in order; the first match wins.
type LLMProvider struct {
	Responses []Response

	mu    sync.Mutex
	calls []llm.CompletionRequest
}

var _ llm.Provider = (*LLMProvider)(nil)

// NewLLMProvider creates a provider answering with responses.
func NewLLMProvider(responses ...Response) *LLMProvider {
	return &LLMProvider{Responses: responses}
}

// Name returns "mock".
func (m *LLMProvider) Name() string {
	return "mock"
}

// Complete returns the first matching scripted response.
func (m *LLMProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prompt := strings.ToLower(promptText(req.Messages))
	for _, r := range m.Responses {
		if r.PromptContains != "" && !strings.Contains(prompt, strings.ToLower(r.PromptContains)) {
			continue
		}
		if r.Err != nil {
			return nil, r.Err
		}
		return &llm.CompletionResponse{
			Content:      r.Return,
			FinishReason: llm.FinishReasonStop,
			Model:        "mock",
		}, nil
	}
	return nil, fmt.Errorf("mock: no scripted response matches request")
}

// Calls returns the requests received so far.
func (m *LLMProvider) Calls() []llm.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]llm.CompletionRequest(nil), m.calls...)
}

func promptText(messages []llm.Message) string {
	parts := make([]string, len(messages))
	for i, msg := range messages {
		parts[i] = msg.Content
	}
	return strings.Join(parts, "\n")
}
