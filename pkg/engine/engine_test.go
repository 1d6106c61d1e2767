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

package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/tombee/credence/internal/log"
	"github.com/tombee/credence/internal/testing/mock"
	"github.com/tombee/credence/pkg/adapter"
	"github.com/tombee/credence/pkg/check"
	"github.com/tombee/credence/pkg/conversation"
	"github.com/tombee/credence/pkg/errors"
	"github.com/tombee/credence/pkg/llm"
	"github.com/tombee/credence/pkg/result"
	"github.com/tombee/credence/pkg/runcontext"
)

func newTestEngine() *Engine {
	return New().WithLogger(log.Discard())
}

func runConv(t *testing.T, conv *conversation.Conversation, a adapter.Adapter) *result.Result {
	t.Helper()
	res := newTestEngine().Run(context.Background(), conv, a, RunOptions{})
	require.NotNil(t, res)
	return res
}

func TestRun_Pass(t *testing.T) {
	a := mock.NewAdapter(map[string]mock.Turn{
		"hi": mock.Echo("Hello! How can I help?"),
	})
	conv := conversation.New("Greeting",
		conversation.User("hi"),
		conversation.Responds(check.Response().Contains("Hello"), check.Response().Matches(`help\?$`)),
	)

	res := runConv(t, conv, a)

	assert.True(t, res.Passed(), res.Errors)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, "Greeting", res.Title)
	assert.Equal(t, 2, res.Steps)
	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, "hi", res.Outcomes[0].UserText)
	assert.Equal(t, "Hello! How can I help?", res.Outcomes[1].Reply)
	assert.Len(t, res.Outcomes[1].Checks, 2)
	assert.Equal(t, []llm.Message{
		{Role: llm.MessageRoleUser, Content: "hi"},
		{Role: llm.MessageRoleAssistant, Content: "Hello! How can I help?"},
	}, res.Transcript)
}

func TestRun_CheckFailureContinues(t *testing.T) {
	a := mock.NewAdapter(map[string]mock.Turn{
		"hi":  mock.Echo("Hello"),
		"bye": mock.Echo("Goodbye"),
	})
	conv := conversation.New("Two turns",
		conversation.User("hi"),
		conversation.Responds(check.Response().Contains("Hello"), check.Response().Equals("Hi")),
		conversation.User("bye"),
		conversation.Responds(check.Response().Equals("Goodbye")),
	)

	res := runConv(t, conv, a)

	assert.False(t, res.Passed())
	assert.False(t, res.Halted())
	require.Len(t, res.Errors, 1)
	assert.Equal(t, errors.ClassCheck, res.Errors[0].Class)
	assert.Equal(t, 1, res.Errors[0].Index)
	assert.Equal(t, "Hi", res.Errors[0].Expected)
	assert.Equal(t, "Hello", res.Errors[0].Actual)

	assert.Len(t, res.Outcomes, 4, "later interactions still run")
	assert.Equal(t, []string{"hi", "bye"}, a.Messages())
}

func TestRun_ConsecutiveResponsesIsConfigError(t *testing.T) {
	a := mock.NewAdapter(map[string]mock.Turn{"hi": mock.Echo("Hello")})
	conv := conversation.New("Double assert",
		conversation.User("hi"),
		conversation.Responds(check.Response().Contains("Hello")),
		conversation.Responds(check.Response().Contains("Hello")),
		conversation.User("never sent"),
	)

	res := runConv(t, conv, a)

	require.Len(t, res.Errors, 1)
	assert.Equal(t, errors.ClassConfig, res.Errors[0].Class)
	var missing *errors.MissingReplyError
	require.True(t, errors.As(res.Errors[0].Cause, &missing))
	assert.Equal(t, 2, missing.Index)

	require.Len(t, res.Outcomes, 3)
	assert.NotEmpty(t, res.Outcomes[2].Error)
	assert.Equal(t, []string{"hi"}, a.Messages())
}

func TestRun_ResponseWithoutReply(t *testing.T) {
	a := mock.NewAdapter(nil)
	conv := conversation.New("Silent bot",
		conversation.User("hello?"),
		conversation.Responds(check.Response().Contains("x")),
	)

	res := runConv(t, conv, a)

	require.Len(t, res.Errors, 1)
	assert.Equal(t, errors.ClassConfig, res.Errors[0].Class)
}

func TestRun_UnknownActionRejectedBeforeAnySideEffect(t *testing.T) {
	a := mock.NewAdapter(map[string]mock.Turn{"hi": mock.Echo("Hello")})
	conv := conversation.New("Setup",
		conversation.User("hi"),
		conversation.Call("provision_user", map[string]any{"plan": "pro"}),
		conversation.User("later"),
	)

	res := runConv(t, conv, a)

	assert.Empty(t, a.Messages(), "nothing reaches the chatbot")
	assert.Empty(t, res.Outcomes)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, errors.ClassConfig, res.Errors[0].Class)
	assert.Equal(t, 1, res.Errors[0].Index)
	assert.Equal(t, "Call provision_user", res.Errors[0].Interaction)

	var unknown *errors.UnknownActionError
	require.True(t, errors.As(res.Errors[0].Cause, &unknown))
	assert.Equal(t, "provision_user", unknown.Name)
}

func TestRun_CyclicConversation(t *testing.T) {
	a := &conversation.Conversation{Title: "A"}
	b := conversation.New("B", conversation.User("b"), conversation.Nest(a))
	a.Interactions = []conversation.Interaction{conversation.User("a"), conversation.Nest(b)}

	adp := mock.NewAdapter(nil)
	res := runConv(t, a, adp)

	require.Len(t, res.Errors, 1)
	assert.Equal(t, errors.ClassConfig, res.Errors[0].Class)
	var cyclic *errors.CyclicConversationError
	require.True(t, errors.As(res.Errors[0].Cause, &cyclic))
	assert.Equal(t, "A", cyclic.Title)
	assert.Empty(t, adp.Messages())
}

func TestRun_NilConversation(t *testing.T) {
	res := runConv(t, nil, mock.NewAdapter(nil))
	require.Len(t, res.Errors, 1)
	assert.Equal(t, errors.ClassConfig, res.Errors[0].Class)
}

func TestRun_NestedOwners(t *testing.T) {
	login := conversation.New("Login",
		conversation.User("log me in"),
		conversation.Responds(check.Response().Contains("welcome")),
	)
	conv := conversation.New("Billing",
		conversation.Nest(login),
		conversation.User("balance"),
		conversation.Responds(check.Response().Contains("$10")),
	)
	a := mock.NewAdapter(map[string]mock.Turn{
		"log me in": mock.Echo("welcome back"),
		"balance":   mock.Echo("You owe $10"),
	})

	res := runConv(t, conv, a)

	require.True(t, res.Passed(), res.Errors)
	owners := make([]string, len(res.Outcomes))
	for i, o := range res.Outcomes {
		owners[i] = o.Owner
	}
	assert.Equal(t, []string{"Login", "Login", "Billing", "Billing"}, owners)

	var conversations []any
	for _, w := range res.Context {
		if w.Key == runcontext.KeyConversation {
			conversations = append(conversations, w.Value)
		}
	}
	assert.Equal(t, []any{"Login", "Billing"}, conversations)
}

func TestRun_AICheck(t *testing.T) {
	const rubric = "apologizes for the inconvenience"
	const actual = "I'm sorry about that, let me help"

	tests := []struct {
		name     string
		verdict  bool
		wantPass bool
	}{
		{name: "verdict true passes", verdict: true, wantPass: true},
		{name: "verdict false fails with rationale", verdict: false, wantPass: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mock.Client{Judgments: map[string]llm.Judgment{
				rubric: {Verdict: tt.verdict, Rationale: "the reply says sorry"},
			}}
			a := mock.NewAdapter(map[string]mock.Turn{"it broke": mock.Echo(actual)})
			a.Client = client

			conv := conversation.New("Apology",
				conversation.User("it broke"),
				conversation.Responds(check.AI(rubric)),
			)
			res := runConv(t, conv, a)

			assert.Equal(t, tt.wantPass, res.Passed())
			require.Len(t, res.Outcomes, 2)
			c := res.Outcomes[1].Checks[0]
			assert.Equal(t, tt.wantPass, c.Passed)
			assert.Equal(t, "the reply says sorry", c.Rationale)
			if !tt.wantPass {
				require.Len(t, res.Errors, 1)
				assert.Equal(t, errors.ClassCheck, res.Errors[0].Class)
				assert.Contains(t, res.Errors[0].Message, "the reply says sorry")
			}

			reqs := client.JudgeRequests()
			require.Len(t, reqs, 1)
			assert.Equal(t, actual, reqs[0].Actual)
			assert.Equal(t, "mock-model", reqs[0].Model)
			assert.Len(t, reqs[0].Transcript, 2)
		})
	}
}

func TestRun_MalformedJudgmentIsCheckFailure(t *testing.T) {
	provider := mock.NewLLMProvider(mock.Response{Return: "I think it is fine"})
	a := mock.NewAdapter(map[string]mock.Turn{
		"hi":    mock.Echo("Hello"),
		"again": mock.Echo("Hello again"),
	})
	a.Client = llm.NewClient(provider, llm.WithLogger(log.Discard()))

	conv := conversation.New("Judge",
		conversation.User("hi"),
		conversation.Responds(check.AI("greets the user")),
		conversation.User("again"),
		conversation.Responds(check.Response().Contains("again")),
	)
	res := runConv(t, conv, a)

	require.Len(t, res.Errors, 1)
	assert.Equal(t, errors.ClassCheck, res.Errors[0].Class)
	var malformed *errors.MalformedJudgmentError
	assert.True(t, errors.As(res.Errors[0].Cause, &malformed))
	assert.Len(t, res.Outcomes, 4)
}

func TestRun_JudgeThroughProvider(t *testing.T) {
	provider := mock.NewLLMProvider(mock.Response{
		PromptContains: "greets the user",
		Return:         "```json\n{\"reason\": \"says hello\", \"requirement_met\": true}\n```",
	})
	a := mock.NewAdapter(map[string]mock.Turn{"hi": mock.Echo("Hello")})
	a.Client = llm.NewClient(provider, llm.WithLogger(log.Discard()))

	conv := conversation.New("Judge",
		conversation.User("hi"),
		conversation.Responds(check.AI("greets the user")),
	)
	res := runConv(t, conv, a)

	assert.True(t, res.Passed(), res.Errors)
	require.Len(t, provider.Calls(), 1)
	assert.Equal(t, "mock-model", provider.Calls()[0].Model)
}

func TestRun_ClientCreatedOnceAndFailsClosed(t *testing.T) {
	a := mock.NewAdapter(map[string]mock.Turn{
		"hi":    mock.Echo("Hello"),
		"again": mock.Echo("Hello again"),
	})
	a.ClientErr = fmt.Errorf("no API key")

	conv := conversation.New("No judge",
		conversation.User("hi"),
		conversation.Responds(check.AI("greets the user"), check.Response().Contains("Hello")),
		conversation.User("again"),
		conversation.Responds(check.AI("greets the user again")),
	)
	res := runConv(t, conv, a)

	assert.False(t, res.Halted(), "AI checks fail closed instead of halting")
	require.Len(t, res.Errors, 2)
	for _, e := range res.Errors {
		assert.Equal(t, errors.ClassCheck, e.Class)
		assert.Contains(t, e.Message, "no API key")
	}
	assert.Len(t, res.Outcomes, 4)
	assert.Equal(t, 1, a.ClientCreations())
}

func TestRun_NoClientNeededWithoutAIChecks(t *testing.T) {
	a := mock.NewAdapter(map[string]mock.Turn{"hi": mock.Echo("Hello")})
	conv := conversation.New("Exact",
		conversation.User("hi"),
		conversation.Responds(check.Response().Equals("Hello")),
	)
	res := runConv(t, conv, a)

	assert.True(t, res.Passed())
	assert.Equal(t, 0, a.ClientCreations())
}

func TestRun_MetadataRoundTrip(t *testing.T) {
	newAdapter := func() *mock.Adapter {
		return mock.NewAdapter(map[string]mock.Turn{
			"billing question": {
				Reply:    adapter.Text("Routing you to billing"),
				Metadata: map[string]any{"router.agent": "billing"},
			},
		})
	}
	withWrite := conversation.New("Routing",
		conversation.User("billing question"),
		conversation.Responds(check.Metadata("router.agent").Equals("billing")),
	)

	res := runConv(t, withWrite, newAdapter())
	assert.True(t, res.Passed(), res.Errors)

	withoutWrite := conversation.New("Routing without write",
		conversation.User("something else"),
		conversation.Ignores(),
		conversation.User("billing question"),
		conversation.Responds(check.Metadata("router.other").Equals("billing")),
	)
	res = runConv(t, withoutWrite, newAdapter())
	require.Len(t, res.Errors, 1)
	var missing *errors.MissingMetadataError
	require.True(t, errors.As(res.Errors[0].Cause, &missing))
	assert.Equal(t, "router.other", missing.Key)
	assert.Equal(t, "Metadata key is missing: router.other", res.Errors[0].Message)
}

func TestRun_FreshContextPerRun(t *testing.T) {
	e := newTestEngine()
	conv := conversation.New("Fresh",
		conversation.User("check"),
		conversation.Responds(check.Metadata("router.agent").Exists()),
	)

	writer := mock.NewAdapter(map[string]mock.Turn{
		"check": {Reply: adapter.Text("ok"), Metadata: map[string]any{"router.agent": "billing"}},
	})
	assert.True(t, e.Run(context.Background(), conv, writer, RunOptions{}).Passed())

	silent := mock.NewAdapter(map[string]mock.Turn{"check": mock.Echo("ok")})
	res := e.Run(context.Background(), conv, silent, RunOptions{})
	require.Len(t, res.Errors, 1)
	assert.Equal(t, errors.ClassCheck, res.Errors[0].Class)
}

func TestRun_Ignores(t *testing.T) {
	a := mock.NewAdapter(map[string]mock.Turn{"thanks": mock.Echo("You're welcome")})
	conv := conversation.New("Ignores",
		conversation.User("ok"),
		conversation.Ignores(),
		conversation.User("thanks"),
		conversation.Ignores(),
		conversation.Responds(check.Response().Contains("welcome")),
	)

	res := runConv(t, conv, a)

	require.Len(t, res.Errors, 2)
	assert.Equal(t, errors.ClassCheck, res.Errors[0].Class)
	assert.Equal(t, "Unexpected chatbot message: You're welcome", res.Errors[0].Message)
	assert.Equal(t, 3, res.Errors[0].Index)

	// The unexpected reply was consumed, so the following assertion has nothing to check.
	assert.Equal(t, errors.ClassConfig, res.Errors[1].Class)
	assert.Equal(t, 4, res.Errors[1].Index)
}

func TestRun_UserTurnReplacesPendingReply(t *testing.T) {
	a := mock.NewAdapter(map[string]mock.Turn{
		"one": mock.Echo("first"),
		"two": mock.Echo("second"),
	})
	conv := conversation.New("Overwrite",
		conversation.User("one"),
		conversation.User("two"),
		conversation.Responds(check.Response().Equals("second")),
	)

	res := runConv(t, conv, a)
	assert.True(t, res.Passed(), res.Errors)
}

func TestRun_AdapterFaultHalts(t *testing.T) {
	a := mock.NewAdapter(map[string]mock.Turn{
		"hi":    mock.Echo("Hello"),
		"crash": {Err: fmt.Errorf("database unavailable")},
	})
	conv := conversation.New("Crash",
		conversation.User("hi"),
		conversation.Responds(check.Response().Equals("nope")),
		conversation.User("crash"),
		conversation.User("never sent"),
	)

	res := runConv(t, conv, a)

	require.Len(t, res.Errors, 2, "the earlier check failure is kept")
	assert.Equal(t, errors.ClassCheck, res.Errors[0].Class)
	assert.Equal(t, errors.ClassFatal, res.Errors[1].Class)
	assert.Equal(t, 2, res.Errors[1].Index)

	var adapterErr *errors.AdapterError
	require.True(t, errors.As(res.Errors[1].Cause, &adapterErr))
	assert.Equal(t, "handle_message", adapterErr.Op)

	assert.Len(t, res.Outcomes, 3)
	assert.Equal(t, []string{"hi", "crash"}, a.Messages())
}

func TestRun_ExternalActions(t *testing.T) {
	a := mock.NewAdapter(map[string]mock.Turn{"who am i": mock.Echo("You are Ada")})
	a.Register("provision_user", func(ctx context.Context, rc *runcontext.Context, args map[string]any) error {
		rc.Set("user.name", args["name"])
		return nil
	})
	a.Register("fail", func(ctx context.Context, rc *runcontext.Context, args map[string]any) error {
		return fmt.Errorf("quota exceeded")
	})

	conv := conversation.New("Provisioned",
		conversation.Call("provision_user", map[string]any{"name": "Ada"}),
		conversation.User("who am i"),
		conversation.Responds(check.Metadata("user.name").Equals("Ada")),
		conversation.Call("fail", nil),
		conversation.User("never sent"),
	)

	res := runConv(t, conv, a)

	require.Len(t, res.Errors, 1)
	assert.Equal(t, errors.ClassFatal, res.Errors[0].Class)
	var adapterErr *errors.AdapterError
	require.True(t, errors.As(res.Errors[0].Cause, &adapterErr))
	assert.Equal(t, "action:fail", adapterErr.Op)
	assert.Equal(t, []string{"who am i"}, a.Messages())
}

func TestRun_UserGenerated(t *testing.T) {
	client := &mock.Client{Messages: []string{"I need to cancel my order"}}
	a := mock.NewAdapter(map[string]mock.Turn{"I need to cancel my order": mock.Echo("Which order?")})
	a.Client = client
	a.Prompt = "You are a customer of an online shop."

	conv := conversation.New("Cancel",
		conversation.User("hello"),
		conversation.Generated("ask to cancel an order"),
		conversation.Responds(check.Response().Contains("order")),
	)

	res := newTestEngine().Run(context.Background(), conv, a, RunOptions{Profile: "impatient customer"})

	require.True(t, res.Passed(), res.Errors)
	assert.Equal(t, "I need to cancel my order", res.Outcomes[1].UserText)

	reqs := client.GenerateRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "ask to cancel an order", reqs[0].Goal)
	assert.Equal(t, "impatient customer", reqs[0].Profile)
	assert.Equal(t, "You are a customer of an online shop.", reqs[0].SystemPrompt)
	assert.Equal(t, "mock-model", reqs[0].Model)
	assert.Equal(t, []llm.Message{{Role: llm.MessageRoleUser, Content: "hello"}}, reqs[0].Transcript)
}

func TestRun_UserGeneratedProfileOverride(t *testing.T) {
	client := &mock.Client{Messages: []string{"hola", "adios"}}
	a := mock.NewAdapter(map[string]mock.Turn{"adios": mock.Echo("Adios!")})
	a.Client = client

	conv := conversation.New("Profile",
		conversation.Generated("greet").As("Spanish speaker"),
		conversation.Generated("say goodbye"),
		conversation.Responds(check.Metadata(runcontext.KeyProfile).Equals("default")),
	)
	res := newTestEngine().Run(context.Background(), conv, a, RunOptions{Profile: "default"})

	require.True(t, res.Passed(), res.Errors)
	reqs := client.GenerateRequests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "Spanish speaker", reqs[0].Profile)
	assert.Equal(t, "default", reqs[1].Profile)
}

func TestRun_GenerationFailureHalts(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(a *mock.Adapter)
		wantErr any
	}{
		{
			name:    "client fault",
			setup:   func(a *mock.Adapter) { a.Client = &mock.Client{GenerateErr: fmt.Errorf("rate limited")} },
			wantErr: &errors.ClientError{},
		},
		{
			name:    "client creation fault",
			setup:   func(a *mock.Adapter) { a.ClientErr = fmt.Errorf("no API key") },
			wantErr: &errors.AdapterError{},
		},
		{
			name:    "no client",
			setup:   func(a *mock.Adapter) {},
			wantErr: &errors.ClientError{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := mock.NewAdapter(nil)
			tt.setup(a)

			conv := conversation.New("Generated",
				conversation.Generated("ask something"),
				conversation.User("never sent"),
			)
			res := runConv(t, conv, a)

			require.Len(t, res.Errors, 1)
			assert.Equal(t, errors.ClassFatal, res.Errors[0].Class)
			assert.IsType(t, tt.wantErr, res.Errors[0].Cause)
			assert.Empty(t, a.Messages())
		})
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := mock.NewAdapter(map[string]mock.Turn{"hi": mock.Echo("Hello")})
	conv := conversation.New("Cancelled", conversation.User("hi"))

	res := newTestEngine().Run(ctx, conv, a, RunOptions{})

	require.Len(t, res.Errors, 1)
	assert.Equal(t, errors.ClassFatal, res.Errors[0].Class)
	assert.ErrorIs(t, res.Errors[0].Cause, context.Canceled)
	assert.Empty(t, a.Messages())
}

func TestRun_InitialContext(t *testing.T) {
	a := mock.NewAdapter(map[string]mock.Turn{"hi": mock.Echo("Hello")})
	conv := conversation.New("Seeded",
		conversation.User("hi"),
		conversation.Responds(
			check.Metadata("tenant").Equals("acme"),
			check.Metadata(runcontext.KeyProfile).Equals("admin"),
		),
	)

	res := newTestEngine().Run(context.Background(), conv, a, RunOptions{
		Profile:        "admin",
		InitialContext: map[string]any{"tenant": "acme"},
	})

	assert.True(t, res.Passed(), res.Errors)
	require.NotEmpty(t, res.Context)
	assert.Equal(t, runcontext.SourceInitial, res.Context[0].Source)
}

func TestRun_Idempotent(t *testing.T) {
	conv := conversation.New("Replay",
		conversation.User("hi"),
		conversation.Responds(check.Response().Contains("Hello"), check.Response().Equals("nope")),
		conversation.User("bye"),
		conversation.Responds(check.Response().Equals("Goodbye")),
	)
	newAdapter := func() *mock.Adapter {
		return mock.NewAdapter(map[string]mock.Turn{
			"hi":  {Reply: adapter.Text("Hello"), Metadata: map[string]any{"intent": "greet"}},
			"bye": mock.Echo("Goodbye"),
		})
	}

	normalize := func(r *result.Result) *result.Result {
		r.RunID, r.StartedAt, r.Duration, r.HandlerDuration = "", time.Time{}, 0, 0
		for i := range r.Outcomes {
			r.Outcomes[i].Duration = 0
		}
		return r
	}

	first := normalize(runConv(t, conv, newAdapter()))
	second := normalize(runConv(t, conv, newAdapter()))
	assert.Equal(t, first, second)
}

func TestRun_Spans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	client := &mock.Client{Judgments: map[string]llm.Judgment{"greets": {Verdict: true}}}
	a := mock.NewAdapter(map[string]mock.Turn{"hi": mock.Echo("Hello")})
	a.Client = client

	conv := conversation.New("Traced",
		conversation.User("hi"),
		conversation.Responds(check.AI("greets")),
	)
	res := newTestEngine().WithTracerProvider(tp).Run(context.Background(), conv, a, RunOptions{})
	require.True(t, res.Passed(), res.Errors)

	names := map[string]int{}
	for _, s := range recorder.Ended() {
		names[s.Name()]++
	}
	assert.Equal(t, 1, names["credence.run"])
	assert.Equal(t, 2, names["credence.interaction"])
	assert.Equal(t, 1, names["credence.llm.judge"])
}

type countingRecorder struct {
	mu           sync.Mutex
	runs         map[string]string
	interactions int
	checks       map[bool]int
	llmCalls     int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{runs: map[string]string{}, checks: map[bool]int{}}
}

func (r *countingRecorder) RecordRunStart(ctx context.Context, runID, conversation string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[runID] = "running"
}

func (r *countingRecorder) RecordRunComplete(ctx context.Context, runID, conversation, status string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[runID] = status
}

func (r *countingRecorder) RecordInteraction(ctx context.Context, kind, status string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.interactions++
}

func (r *countingRecorder) RecordCheck(ctx context.Context, kind string, passed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks[passed]++
}

func (r *countingRecorder) RecordLLMCall(ctx context.Context, op, model, status string, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llmCalls++
}

func TestRun_Recorder(t *testing.T) {
	rec := newCountingRecorder()
	a := mock.NewAdapter(map[string]mock.Turn{"hi": mock.Echo("Hello")})
	a.Client = &mock.Client{Judgments: map[string]llm.Judgment{"greets": {Verdict: false}}}

	conv := conversation.New("Metrics",
		conversation.User("hi"),
		conversation.Responds(check.Response().Contains("Hello"), check.AI("greets")),
	)
	res := newTestEngine().WithRecorder(rec).Run(context.Background(), conv, a, RunOptions{})

	assert.Equal(t, map[string]string{res.RunID: "fail"}, rec.runs)
	assert.Equal(t, 2, rec.interactions)
	assert.Equal(t, map[bool]int{true: 1, false: 1}, rec.checks)
	assert.Equal(t, 1, rec.llmCalls)
}
