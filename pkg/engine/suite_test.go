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
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/credence/internal/testing/mock"
	"github.com/tombee/credence/pkg/adapter"
	"github.com/tombee/credence/pkg/check"
	"github.com/tombee/credence/pkg/conversation"
	"github.com/tombee/credence/pkg/errors"
	"github.com/tombee/credence/pkg/result"
	"github.com/tombee/credence/pkg/runcontext"
)

// slowAdapter tracks how many handlers run at once.
type slowAdapter struct {
	*mock.Adapter
	active, peak *atomic.Int32
}

func (s slowAdapter) HandleMessage(ctx context.Context, rc *runcontext.Context, text string) (adapter.Reply, error) {
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	return s.Adapter.HandleMessage(ctx, rc, text)
}

func TestRunSuite_OrderAndIsolation(t *testing.T) {
	var convs []*conversation.Conversation
	for i := 0; i < 8; i++ {
		convs = append(convs, conversation.New(fmt.Sprintf("conv-%d", i),
			conversation.User("hi"),
			conversation.Responds(
				check.Response().Equals("Hello"),
				check.Metadata("visits").Equals(1),
			),
		))
	}

	var (
		active, peak atomic.Int32
		mu           sync.Mutex
		adapters     []*mock.Adapter
	)
	factory := func() (adapter.Adapter, error) {
		a := mock.NewAdapter(map[string]mock.Turn{
			"hi": {Reply: adapter.Text("Hello"), Metadata: map[string]any{"visits": 1}},
		})
		mu.Lock()
		adapters = append(adapters, a)
		mu.Unlock()
		return slowAdapter{Adapter: a, active: &active, peak: &peak}, nil
	}

	var completed atomic.Int32
	results := newTestEngine().RunSuite(context.Background(), convs, factory, SuiteOptions{
		Concurrency: 3,
		OnResult:    func(*result.Result) { completed.Add(1) },
	})

	require.Len(t, results, len(convs))
	for i, r := range results {
		assert.Equal(t, fmt.Sprintf("conv-%d", i), r.Title)
		assert.True(t, r.Passed(), r.Errors)
	}
	assert.Len(t, adapters, len(convs), "one adapter per run")
	assert.Equal(t, int32(len(convs)), completed.Load())
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestRunSuite_FactoryFailure(t *testing.T) {
	convs := []*conversation.Conversation{
		conversation.New("ok", conversation.User("hi")),
		conversation.New("broken", conversation.User("hi")),
	}
	var calls atomic.Int32
	factory := func() (adapter.Adapter, error) {
		if calls.Add(1) == 2 {
			return nil, fmt.Errorf("chatbot offline")
		}
		return mock.NewAdapter(nil), nil
	}

	results := newTestEngine().RunSuite(context.Background(), convs, factory, SuiteOptions{Concurrency: 1})

	require.Len(t, results, 2)
	assert.True(t, results[0].Passed())
	require.Len(t, results[1].Errors, 1)
	assert.Equal(t, "broken", results[1].Title)
	assert.NotEmpty(t, results[1].RunID)
	assert.NotEqual(t, results[0].RunID, results[1].RunID)
	assert.Equal(t, errors.ClassFatal, results[1].Errors[0].Class)
	assert.Contains(t, results[1].Errors[0].Message, "chatbot offline")
}
