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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/credence/pkg/runcontext"
)

func TestBase_Actions(t *testing.T) {
	var b Base

	_, ok := b.Action("missing")
	assert.False(t, ok, "zero Base has no actions")

	b.Register("provision_user", func(ctx context.Context, rc *runcontext.Context, args map[string]any) error {
		rc.Set("user.name", args["name"])
		return nil
	})
	b.Register("reset", func(ctx context.Context, rc *runcontext.Context, args map[string]any) error { return nil })

	assert.Equal(t, []string{"provision_user", "reset"}, b.Actions())

	fn, ok := b.Action("provision_user")
	require.True(t, ok)

	rc := runcontext.New()
	require.NoError(t, fn(context.Background(), rc, map[string]any{"name": "Ada"}))
	v, ok := rc.Get("user.name")
	require.True(t, ok)
	assert.Equal(t, "Ada", v)
}

func TestBase_RegisterTwicePanics(t *testing.T) {
	var b Base
	noop := func(ctx context.Context, rc *runcontext.Context, args map[string]any) error { return nil }
	b.Register("a", noop)
	assert.Panics(t, func() { b.Register("a", noop) })
}

func TestFunc(t *testing.T) {
	f := &Func{
		Model: "m",
		Handler: func(ctx context.Context, rc *runcontext.Context, text string) (Reply, error) {
			if text == "" {
				return NoReply(), nil
			}
			return Text("echo: " + text), nil
		},
	}

	reply, err := f.HandleMessage(context.Background(), runcontext.New(), "hi")
	require.NoError(t, err)
	assert.Equal(t, Reply{Text: "echo: hi", OK: true}, reply)

	reply, err = f.HandleMessage(context.Background(), runcontext.New(), "")
	require.NoError(t, err)
	assert.False(t, reply.OK)

	assert.Equal(t, "m", f.ModelName())

	_, ok := f.UserSimulatorSystemPrompt(runcontext.New())
	assert.False(t, ok)
	f.SystemPrompt = "You are a pirate."
	prompt, ok := f.UserSimulatorSystemPrompt(runcontext.New())
	assert.True(t, ok)
	assert.Equal(t, "You are a pirate.", prompt)

	client, err := f.CreateClient(context.Background())
	require.NoError(t, err)
	assert.Nil(t, client)
}
