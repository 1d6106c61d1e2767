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

package adapter

import (
	"context"

	"github.com/tombee/credence/pkg/llm"
	"github.com/tombee/credence/pkg/runcontext"
)

// HandlerFunc handles one user message.
type HandlerFunc func(ctx context.Context, rc *runcontext.Context, text string) (Reply, error)

// Func is an Adapter assembled from plain values, convenient for chatbots
// that live in the same process as their tests:
//
//	a := &adapter.Func{
//	    Client:  llm.NewClient(provider),
//	    Model:   "gpt-4o-mini",
//	    Handler: func(ctx context.Context, rc *runcontext.Context, text string) (adapter.Reply, error) {
//	        answer, meta := bot.Handle(text)
//	        rc.Collect(meta)
//	        return adapter.Text(answer), nil
//	    },
//	}
//	a.Register("provision_user", provisionUser)
type Func struct {
	Base

	Client  llm.Client
	Model   string
	Handler HandlerFunc

	// SystemPrompt, when set, overrides the user simulator prompt.
	SystemPrompt string
}

var _ Adapter = (*Func)(nil)

// CreateClient implements Adapter.
func (f *Func) CreateClient(ctx context.Context) (llm.Client, error) {
	return f.Client, nil
}

// ModelName implements Adapter.
func (f *Func) ModelName() string {
	return f.Model
}

// HandleMessage implements Adapter.
func (f *Func) HandleMessage(ctx context.Context, rc *runcontext.Context, text string) (Reply, error) {
	if f.Handler == nil {
		return NoReply(), nil
	}
	return f.Handler(ctx, rc, text)
}

// UserSimulatorSystemPrompt implements Adapter.
func (f *Func) UserSimulatorSystemPrompt(rc *runcontext.Context) (string, bool) {
	if f.SystemPrompt != "" {
		return f.SystemPrompt, true
	}
	return f.Base.UserSimulatorSystemPrompt(rc)
}
