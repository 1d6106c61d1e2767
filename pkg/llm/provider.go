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

// Package llm provides the LLM capability consumed by the engine: generating
// simulated user turns and judging chatbot replies against a rubric.
//
// Client is the capability itself. ProviderClient implements it on top of any
// Provider, which is the thin transport abstraction implemented under
// pkg/llm/providers.
package llm

import (
	"context"
	"time"
)

// Provider is a chat-completion backend.
type Provider interface {
	// Name returns the provider identifier (e.g., "anthropic", "openai").
	Name() string

	// Complete sends a synchronous completion request.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// CompletionRequest contains the parameters for a completion request.
type CompletionRequest struct {
	// Messages is the conversation history.
	Messages []Message

	// Model is the model identifier. Empty selects the provider default.
	Model string

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature *float64

	// MaxTokens limits the response length.
	MaxTokens *int
}

// Message is a single message in a conversation.
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// MessageRole identifies the message sender.
type MessageRole string

const (
	// MessageRoleSystem is for system instructions.
	MessageRoleSystem MessageRole = "system"

	// MessageRoleUser is for user messages.
	MessageRoleUser MessageRole = "user"

	// MessageRoleAssistant is for assistant responses.
	MessageRoleAssistant MessageRole = "assistant"
)

// CompletionResponse contains the result of a completion request.
type CompletionResponse struct {
	Content string

	FinishReason FinishReason

	Usage TokenUsage

	// Model is the model that actually answered.
	Model string

	// RequestID correlates the call with provider logs.
	RequestID string

	Created time.Time
}

// FinishReason indicates why generation stopped.
type FinishReason string

const (
	FinishReasonStop          FinishReason = "stop"
	FinishReasonLength        FinishReason = "length"
	FinishReasonContentFilter FinishReason = "content_filter"
	FinishReasonError         FinishReason = "error"
)

// TokenUsage tracks token consumption.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}
