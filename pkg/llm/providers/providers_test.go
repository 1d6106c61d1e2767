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

package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/credence/pkg/errors"
	"github.com/tombee/credence/pkg/llm"
)

func conversation() llm.CompletionRequest {
	temp := 0.2
	maxTokens := 64
	return llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: llm.MessageRoleSystem, Content: "be brief"},
			{Role: llm.MessageRoleUser, Content: "hello"},
			{Role: llm.MessageRoleAssistant, Content: "hi"},
			{Role: llm.MessageRoleUser, Content: "what's up?"},
		},
		Model:       "test-model",
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	}
}

func TestNew(t *testing.T) {
	p, err := New("ollama", Config{})
	require.NoError(t, err)
	assert.Equal(t, "ollama", p.Name())

	p, err = New("OpenAI", Config{APIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())

	p, err = New("anthropic", Config{APIKey: "sk-ant-test"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", p.Name())

	_, err = New("bard", Config{})
	var cfgErr *errors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "llm.provider", cfgErr.Key)
}

func TestNew_RequiresAPIKey(t *testing.T) {
	for _, name := range []string{"anthropic", "openai"} {
		t.Run(name, func(t *testing.T) {
			_, err := New(name, Config{})
			var cfgErr *errors.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, "llm.api_key", cfgErr.Key)
		})
	}
}

func TestAnthropicProvider_Complete(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/v1/messages"), r.URL.Path)
		assert.Equal(t, "sk-ant-test", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_123",
			"type": "message",
			"role": "assistant",
			"model": "test-model",
			"content": [{"type": "text", "text": "not much"}],
			"stop_reason": "max_tokens",
			"stop_sequence": "",
			"usage": {"input_tokens": 12, "output_tokens": 3}
		}`))
	}))
	defer server.Close()

	p, err := NewAnthropicProvider(Config{APIKey: "sk-ant-test", BaseURL: server.URL})
	require.NoError(t, err)

	resp, err := p.Complete(context.Background(), conversation())
	require.NoError(t, err)

	assert.Equal(t, "not much", resp.Content)
	assert.Equal(t, llm.FinishReasonLength, resp.FinishReason)
	assert.Equal(t, llm.TokenUsage{InputTokens: 12, OutputTokens: 3, TotalTokens: 15}, resp.Usage)
	assert.Equal(t, "msg_123", resp.RequestID)

	// System prompt travels out of band; the rest alternate.
	system, _ := body["system"].([]any)
	require.Len(t, system, 1)
	assert.Equal(t, "be brief", system[0].(map[string]any)["text"])
	messages, _ := body["messages"].([]any)
	require.Len(t, messages, 3)
	assert.Equal(t, "assistant", messages[1].(map[string]any)["role"])
	assert.EqualValues(t, 64, body["max_tokens"])
	assert.EqualValues(t, 0.2, body["temperature"])
}

func TestAnthropicProvider_NoMessages(t *testing.T) {
	p, err := NewAnthropicProvider(Config{APIKey: "sk-ant-test"})
	require.NoError(t, err)

	_, err = p.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{{Role: llm.MessageRoleSystem, Content: "only system"}},
	})
	var valErr *errors.ValidationError
	require.ErrorAs(t, err, &valErr)
}

func TestAnthropicProvider_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Request-Id", "req_abc")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	}))
	defer server.Close()

	p, err := NewAnthropicProvider(Config{APIKey: "bad", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = p.Complete(context.Background(), conversation())
	var provErr *errors.ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "anthropic", provErr.Provider)
	assert.Equal(t, http.StatusUnauthorized, provErr.StatusCode)
	assert.Contains(t, provErr.Suggestion, "API key")
	assert.False(t, provErr.IsRetryable())
}

func TestOpenAIProvider_Complete(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "test-model",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "sure"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 7, "completion_tokens": 2, "total_tokens": 9}
		}`))
	}))
	defer server.Close()

	p, err := NewOpenAIProvider(Config{APIKey: "sk-test", BaseURL: server.URL})
	require.NoError(t, err)

	resp, err := p.Complete(context.Background(), conversation())
	require.NoError(t, err)

	assert.Equal(t, "sure", resp.Content)
	assert.Equal(t, llm.FinishReasonStop, resp.FinishReason)
	assert.Equal(t, 9, resp.Usage.TotalTokens)
	assert.Equal(t, "chatcmpl-1", resp.RequestID)

	messages, _ := body["messages"].([]any)
	require.Len(t, messages, 4)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "test-model", body["model"])
}

func TestOpenAIProvider_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit_error","code":"rate_limit"}}`))
	}))
	defer server.Close()

	p, err := NewOpenAIProvider(Config{APIKey: "sk-test", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = p.Complete(context.Background(), conversation())
	var provErr *errors.ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, http.StatusTooManyRequests, provErr.StatusCode)
	assert.Equal(t, "slow down", provErr.Message)
	assert.True(t, provErr.IsRetryable())
}

func TestOllamaProvider_Complete(t *testing.T) {
	var got ollamaChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(ollamaChatResponse{
			Model:           "llama3.2",
			Message:         ollamaChatMessage{Role: "assistant", Content: "hey"},
			Done:            true,
			DoneReason:      "stop",
			PromptEvalCount: 10,
			EvalCount:       1,
		})
	}))
	defer server.Close()

	p, err := NewOllamaProvider(Config{BaseURL: server.URL + "/"})
	require.NoError(t, err)

	resp, err := p.Complete(context.Background(), conversation())
	require.NoError(t, err)

	assert.Equal(t, "hey", resp.Content)
	assert.Equal(t, 11, resp.Usage.TotalTokens)
	assert.False(t, got.Stream)
	require.NotNil(t, got.Options)
	assert.Equal(t, 64, *got.Options.NumPredict)
	assert.Len(t, got.Messages, 4)
}

func TestOllamaProvider_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	p, err := NewOllamaProvider(Config{BaseURL: server.URL})
	require.NoError(t, err)

	_, err = p.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{{Role: llm.MessageRoleUser, Content: "hi"}},
	})
	var provErr *errors.ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, http.StatusNotFound, provErr.StatusCode)
	assert.Equal(t, "model not found", provErr.Message)
}
