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

// Package httpbot provides an Adapter that drives a chatbot over HTTP.
//
// Each user message is sent as
//
//	POST <endpoint>
//	{"message": "...", "session_id": "...", "context": {...}}
//
// and the reply text and metadata are read from configurable fields of the
// JSON response. A 204 response, or a null or missing reply field, means the
// chatbot did not reply. Named actions are POSTed to their own URL with
// {"action", "session_id", "args"}; a metadata object in an action response
// is collected into the run context as well.
package httpbot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/tombee/credence/internal/jq"
	"github.com/tombee/credence/pkg/adapter"
	"github.com/tombee/credence/pkg/errors"
	"github.com/tombee/credence/pkg/httpclient"
	"github.com/tombee/credence/pkg/llm"
	"github.com/tombee/credence/pkg/runcontext"
)

// Config configures the HTTP adapter.
type Config struct {
	// Endpoint receives user messages. Required.
	Endpoint string

	// Headers are added to every request, e.g. Authorization.
	Headers map[string]string

	// Timeout bounds a single request. Defaults to 30s.
	Timeout time.Duration

	// ReplyField locates the reply text in the response body, as a dotted
	// path or a jq expression. Defaults to "reply".
	ReplyField string

	// MetadataField locates the metadata object in the response body, as a
	// dotted path or a jq expression. Defaults to "metadata".
	MetadataField string

	// Actions maps action names to the URL that performs them.
	Actions map[string]string

	// RateLimit caps requests per second to the chatbot (0 = unlimited).
	RateLimit float64

	// NewClient creates the LLM client for the run. Optional; without it,
	// generated user turns fail and AI checks fail closed.
	NewClient func(ctx context.Context) (llm.Client, error)

	// Model names the model for generation and judging.
	Model string

	// UserSimulatorPrompt overrides the default user simulator prompt.
	UserSimulatorPrompt string

	Logger *slog.Logger
}

// Adapter implements adapter.Adapter against an HTTP chatbot.
type Adapter struct {
	adapter.Base

	cfg        Config
	reply      *jq.Query
	metadata   *jq.Query
	sessionID  string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ adapter.Adapter = (*Adapter)(nil)

// New creates an Adapter with a fresh session id.
func New(cfg Config) (*Adapter, error) {
	if cfg.Endpoint == "" {
		return nil, &errors.ValidationError{
			Field:      "chatbot.endpoint",
			Message:    "endpoint is required",
			Suggestion: "Set chatbot.endpoint in the config file or CREDENCE_CHATBOT_ENDPOINT",
		}
	}
	if cfg.ReplyField == "" {
		cfg.ReplyField = "reply"
	}
	if cfg.MetadataField == "" {
		cfg.MetadataField = "metadata"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	hc := httpclient.DefaultConfig()
	if cfg.Timeout > 0 {
		hc.Timeout = cfg.Timeout
	}
	hc.UserAgent = "credence-httpbot/1.0"
	hc.RateLimit = cfg.RateLimit
	hc.Logger = cfg.Logger
	httpClient, err := httpclient.New(hc)
	if err != nil {
		return nil, &errors.ConfigError{Key: "chatbot", Reason: "invalid HTTP settings", Cause: err}
	}

	reply, err := jq.Compile(cfg.ReplyField)
	if err != nil {
		return nil, &errors.ConfigError{Key: "chatbot.reply_field", Reason: "invalid field expression", Cause: err}
	}
	metadata, err := jq.Compile(cfg.MetadataField)
	if err != nil {
		return nil, &errors.ConfigError{Key: "chatbot.metadata_field", Reason: "invalid field expression", Cause: err}
	}

	a := &Adapter{
		cfg:        cfg,
		reply:      reply,
		metadata:   metadata,
		sessionID:  uuid.NewString(),
		httpClient: httpClient,
		logger:     cfg.Logger.With(slog.String("component", "httpbot")),
	}

	names := make([]string, 0, len(cfg.Actions))
	for name := range cfg.Actions {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		a.Register(name, a.action(name, cfg.Actions[name]))
	}

	return a, nil
}

// Factory returns an adapter.Factory producing one Adapter, and so one
// session, per run.
func Factory(cfg Config) adapter.Factory {
	return func() (adapter.Adapter, error) {
		return New(cfg)
	}
}

// SessionID identifies the chatbot session of this adapter.
func (a *Adapter) SessionID() string {
	return a.sessionID
}

// CreateClient implements adapter.Adapter.
func (a *Adapter) CreateClient(ctx context.Context) (llm.Client, error) {
	if a.cfg.NewClient == nil {
		return nil, nil
	}
	return a.cfg.NewClient(ctx)
}

// ModelName implements adapter.Adapter.
func (a *Adapter) ModelName() string {
	return a.cfg.Model
}

// UserSimulatorSystemPrompt implements adapter.Adapter.
func (a *Adapter) UserSimulatorSystemPrompt(rc *runcontext.Context) (string, bool) {
	if a.cfg.UserSimulatorPrompt == "" {
		return "", false
	}
	return a.cfg.UserSimulatorPrompt, true
}

// HandleMessage implements adapter.Adapter.
func (a *Adapter) HandleMessage(ctx context.Context, rc *runcontext.Context, text string) (adapter.Reply, error) {
	body, err := a.post(ctx, a.cfg.Endpoint, messageRequest{
		Message:   text,
		SessionID: a.sessionID,
		Context:   rc.Snapshot(),
	})
	if err != nil {
		return adapter.NoReply(), err
	}
	if body == nil {
		return adapter.NoReply(), nil
	}

	if err := a.collectMetadata(ctx, rc, body); err != nil {
		return adapter.NoReply(), err
	}

	raw, ok := a.reply.First(ctx, body)
	if !ok || raw == nil {
		return adapter.NoReply(), nil
	}
	reply, ok := raw.(string)
	if !ok {
		return adapter.NoReply(), fmt.Errorf("reply field %q is %T, want string", a.cfg.ReplyField, raw)
	}
	return adapter.Text(reply), nil
}

func (a *Adapter) action(name, url string) adapter.ActionFunc {
	return func(ctx context.Context, rc *runcontext.Context, args map[string]any) error {
		body, err := a.post(ctx, url, actionRequest{
			Action:    name,
			SessionID: a.sessionID,
			Args:      args,
		})
		if err != nil {
			return err
		}
		if body == nil {
			return nil
		}
		return a.collectMetadata(ctx, rc, body)
	}
}

func (a *Adapter) collectMetadata(ctx context.Context, rc *runcontext.Context, body map[string]any) error {
	raw, ok := a.metadata.First(ctx, body)
	if !ok || raw == nil {
		return nil
	}
	meta, ok := raw.(map[string]any)
	if !ok {
		return fmt.Errorf("metadata field %q is %T, want object", a.cfg.MetadataField, raw)
	}
	rc.Collect(meta)
	return nil
}

// post sends payload as JSON and decodes a JSON object response. A nil map
// with a nil error means the response had no body.
func (a *Adapter) post(ctx context.Context, url string, payload any) (map[string]any, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range a.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to chatbot failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("chatbot returned HTTP %d: %s", resp.StatusCode, truncate(strings.TrimSpace(string(respBody)), 200))
	}
	if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(respBody)) == 0 {
		return nil, nil
	}

	var body map[string]any
	if err := json.Unmarshal(respBody, &body); err != nil {
		return nil, fmt.Errorf("failed to parse chatbot response: %w", err)
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

type messageRequest struct {
	Message   string         `json:"message"`
	SessionID string         `json:"session_id"`
	Context   map[string]any `json:"context"`
}

type actionRequest struct {
	Action    string         `json:"action"`
	SessionID string         `json:"session_id"`
	Args      map[string]any `json:"args"`
}
