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

package llm

import (
	"context"
	"log/slog"
	"strings"

	credenceerrors "github.com/tombee/credence/pkg/errors"
)

// Client is the LLM capability the engine and the AI checks consume. Every
// call is a single blocking request; implementations must not retry on the
// caller's behalf unless configured to.
type Client interface {
	// GenerateUserMessage produces the next simulated user utterance.
	// Failures are reported as *errors.ClientError.
	GenerateUserMessage(ctx context.Context, req GenerateRequest) (string, error)

	// Judge decides whether a reply satisfies a rubric. Failures are reported
	// as *errors.ClientError or *errors.MalformedJudgmentError.
	Judge(ctx context.Context, req JudgeRequest) (*Judgment, error)
}

// GenerateRequest describes a simulated user turn.
type GenerateRequest struct {
	// Model overrides the client's default model.
	Model string

	// Goal is what the simulated user is trying to achieve with this turn.
	Goal string

	// Profile describes who the simulated user is. Optional.
	Profile string

	// SystemPrompt replaces DefaultUserSimulatorPrompt when non-empty.
	SystemPrompt string

	// Transcript is the conversation so far.
	Transcript []Message
}

// JudgeRequest describes one AI semantic check.
type JudgeRequest struct {
	// Model overrides the client's default model.
	Model string

	// Rubric is completed as "The assistant should <rubric>".
	Rubric string

	// Actual is the chatbot reply under judgment.
	Actual string

	// Transcript is the conversation so far, given to the judge as context.
	Transcript []Message
}

// ProviderClient implements Client on top of a Provider.
type ProviderClient struct {
	provider    Provider
	model       string
	temperature *float64
	maxTokens   *int
	logger      *slog.Logger
}

// ClientOption configures a ProviderClient.
type ClientOption func(*ProviderClient)

// WithModel sets the model used when a request does not name one.
func WithModel(model string) ClientOption {
	return func(c *ProviderClient) { c.model = model }
}

// WithTemperature sets the sampling temperature for every request.
func WithTemperature(t float64) ClientOption {
	return func(c *ProviderClient) { c.temperature = &t }
}

// WithMaxTokens caps the response length of every request.
func WithMaxTokens(n int) ClientOption {
	return func(c *ProviderClient) { c.maxTokens = &n }
}

// WithLogger sets the logger for trace output of prompts and raw responses.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *ProviderClient) { c.logger = logger }
}

// NewClient creates a ProviderClient.
func NewClient(provider Provider, opts ...ClientOption) *ProviderClient {
	c := &ProviderClient{
		provider: provider,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Provider returns the underlying provider.
func (c *ProviderClient) Provider() Provider {
	return c.provider
}

// GenerateUserMessage implements Client.
func (c *ProviderClient) GenerateUserMessage(ctx context.Context, req GenerateRequest) (string, error) {
	messages := BuildUserSimulatorMessages(req.SystemPrompt, req.Profile, req.Goal, req.Transcript)

	resp, err := c.complete(ctx, req.Model, messages)
	if err != nil {
		return "", &credenceerrors.ClientError{Op: "generate_user_message", Cause: err}
	}

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", &credenceerrors.ClientError{
			Op:    "generate_user_message",
			Cause: credenceerrors.New("model returned an empty message"),
		}
	}
	return text, nil
}

// Judge implements Client.
func (c *ProviderClient) Judge(ctx context.Context, req JudgeRequest) (*Judgment, error) {
	messages := BuildJudgeMessages(req.Rubric, req.Actual, req.Transcript)

	resp, err := c.complete(ctx, req.Model, messages)
	if err != nil {
		return nil, &credenceerrors.ClientError{Op: "judge", Cause: err}
	}

	judgment, err := ParseJudgment(resp.Content)
	if err != nil {
		return nil, err
	}
	judgment.Requirement = req.Rubric
	return judgment, nil
}

func (c *ProviderClient) complete(ctx context.Context, model string, messages []Message) (*CompletionResponse, error) {
	if model == "" {
		model = c.model
	}

	if c.logger.Enabled(ctx, slog.Level(-8)) {
		c.logger.Log(ctx, slog.Level(-8), "llm request",
			slog.String("provider", c.provider.Name()),
			slog.String("model", model),
			slog.String("messages", FormatTranscript(messages)))
	}

	resp, err := c.provider.Complete(ctx, CompletionRequest{
		Messages:    messages,
		Model:       model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		c.logger.Debug("llm request failed",
			slog.String("provider", c.provider.Name()),
			slog.Any("error", err))
		return nil, err
	}

	if c.logger.Enabled(ctx, slog.Level(-8)) {
		c.logger.Log(ctx, slog.Level(-8), "llm response",
			slog.String("provider", c.provider.Name()),
			slog.String("request_id", resp.RequestID),
			slog.String("content", resp.Content))
	}
	return resp, nil
}
