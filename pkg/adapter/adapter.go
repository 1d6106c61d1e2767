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

// Package adapter defines the boundary between the engine and the system
// under test. Callers implement Adapter (or embed Base) to expose their
// chatbot, the LLM client used for simulated users and judging, and any
// named side-effecting actions a conversation may call.
package adapter

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tombee/credence/pkg/llm"
	"github.com/tombee/credence/pkg/runcontext"
)

// Reply is what the chatbot answered to one user message.
type Reply struct {
	Text string

	// OK is false when the chatbot did not reply. There is then nothing for a
	// ChatbotResponse to assert against.
	OK bool
}

// Text is a reply carrying s.
func Text(s string) Reply { return Reply{Text: s, OK: true} }

// NoReply is the absence of a reply.
func NoReply() Reply { return Reply{} }

// ActionFunc is a named side effect, e.g. provisioning a user before the
// conversation starts. It may record metadata on rc.
type ActionFunc func(ctx context.Context, rc *runcontext.Context, args map[string]any) error

// Adapter is implemented by the caller. One Adapter serves one execution at a
// time; use a Factory to give concurrent runs their own instance.
type Adapter interface {
	// CreateClient returns the LLM client for the run. The engine calls it at
	// most once per execution, on first need.
	CreateClient(ctx context.Context) (llm.Client, error)

	// ModelName names the model used for generation and judging.
	ModelName() string

	// HandleMessage sends text to the chatbot under test. Business logic may
	// collect metadata on rc while handling it.
	HandleMessage(ctx context.Context, rc *runcontext.Context, text string) (Reply, error)

	// UserSimulatorSystemPrompt optionally replaces the default prompt used
	// for generated user turns. Returning false selects the default.
	UserSimulatorSystemPrompt(rc *runcontext.Context) (string, bool)

	// Action looks up a named external action.
	Action(name string) (ActionFunc, bool)
}

// Factory creates a fresh Adapter for each execution.
type Factory func() (Adapter, error)

// Base provides the action registry and the default user simulator prompt.
// Embed it in an Adapter implementation and call Register from the
// constructor.
type Base struct {
	mu      sync.RWMutex
	actions map[string]ActionFunc
}

// Register adds an action. Registering a name twice panics; it is a
// programming error in the adapter constructor.
func (b *Base) Register(name string, fn ActionFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.actions == nil {
		b.actions = make(map[string]ActionFunc)
	}
	if _, exists := b.actions[name]; exists {
		panic(fmt.Sprintf("adapter: action %q registered twice", name))
	}
	b.actions[name] = fn
}

// Action implements Adapter.
func (b *Base) Action(name string) (ActionFunc, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	fn, ok := b.actions[name]
	return fn, ok
}

// Actions returns the registered action names, sorted.
func (b *Base) Actions() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.actions))
	for name := range b.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UserSimulatorSystemPrompt implements Adapter by selecting the default.
func (b *Base) UserSimulatorSystemPrompt(rc *runcontext.Context) (string, bool) {
	return "", false
}
