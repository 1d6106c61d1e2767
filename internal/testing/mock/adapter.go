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
	"sync"

	"github.com/tombee/credence/pkg/adapter"
	"github.com/tombee/credence/pkg/llm"
	"github.com/tombee/credence/pkg/runcontext"
)

// Turn scripts the chatbot's answer to one message.
type Turn struct {
	Reply adapter.Reply

	// Metadata is collected into the Run Context while handling the message.
	Metadata map[string]any

	Err error
}

// Adapter is an adapter.Adapter whose chatbot answers from a script keyed by
// the user's message. Unscripted messages get no reply.
type Adapter struct {
	adapter.Base

	Client    llm.Client
	ClientErr error
	Model     string
	Prompt    string

	Turns map[string]Turn

	mu            sync.Mutex
	messages      []string
	clientCreated int
}

var _ adapter.Adapter = (*Adapter)(nil)

// NewAdapter creates an adapter with the given turns.
func NewAdapter(turns map[string]Turn) *Adapter {
	return &Adapter{Turns: turns, Model: "mock-model"}
}

// Echo returns a Turn replying with text.
func Echo(text string) Turn {
	return Turn{Reply: adapter.Text(text)}
}

// CreateClient returns Client or ClientErr and counts the calls.
func (a *Adapter) CreateClient(ctx context.Context) (llm.Client, error) {
	a.mu.Lock()
	a.clientCreated++
	a.mu.Unlock()

	if a.ClientErr != nil {
		return nil, a.ClientErr
	}
	return a.Client, nil
}

// ModelName implements adapter.Adapter.
func (a *Adapter) ModelName() string {
	return a.Model
}

// UserSimulatorSystemPrompt implements adapter.Adapter.
func (a *Adapter) UserSimulatorSystemPrompt(rc *runcontext.Context) (string, bool) {
	if a.Prompt == "" {
		return a.Base.UserSimulatorSystemPrompt(rc)
	}
	return a.Prompt, true
}

// HandleMessage answers from Turns.
func (a *Adapter) HandleMessage(ctx context.Context, rc *runcontext.Context, text string) (adapter.Reply, error) {
	a.mu.Lock()
	a.messages = append(a.messages, text)
	a.mu.Unlock()

	turn, ok := a.Turns[text]
	if !ok {
		return adapter.NoReply(), nil
	}
	if turn.Metadata != nil {
		rc.Collect(turn.Metadata)
	}
	return turn.Reply, turn.Err
}

// Messages returns the messages received, in order.
func (a *Adapter) Messages() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.messages...)
}

// ClientCreations counts CreateClient calls.
func (a *Adapter) ClientCreations() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.clientCreated
}
