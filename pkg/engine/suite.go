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
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/tombee/credence/pkg/adapter"
	"github.com/tombee/credence/pkg/conversation"
	"github.com/tombee/credence/pkg/errors"
	"github.com/tombee/credence/pkg/result"
)

// DefaultConcurrency is the number of conversations RunSuite runs at once
// when SuiteOptions.Concurrency is not set.
const DefaultConcurrency = 4

// SuiteOptions configures RunSuite.
type SuiteOptions struct {
	// Concurrency bounds the number of simultaneous runs.
	Concurrency int

	// Run seeds the Run Context of every conversation.
	Run RunOptions

	// OnResult, if set, is called as each run completes, in completion
	// order. It may be called from several goroutines at once.
	OnResult func(*result.Result)
}

// RunSuite runs every conversation with its own Adapter from factory and its
// own Run Context. Results are returned in input order. A factory failure
// becomes a halted Result for that conversation.
func (e *Engine) RunSuite(ctx context.Context, convs []*conversation.Conversation, factory adapter.Factory, opts SuiteOptions) []*result.Result {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	e.logger.Info("running suite",
		slog.Int("conversations", len(convs)),
		slog.Int("concurrency", concurrency))

	results := make([]*result.Result, len(convs))
	p := pool.New().WithMaxGoroutines(concurrency)
	for i, conv := range convs {
		p.Go(func() {
			results[i] = e.runOne(ctx, conv, factory, opts.Run)
			if opts.OnResult != nil {
				opts.OnResult(results[i])
			}
		})
	}
	p.Wait()

	return results
}

func (e *Engine) runOne(ctx context.Context, conv *conversation.Conversation, factory adapter.Factory, opts RunOptions) *result.Result {
	a, err := factory()
	if err != nil {
		title := ""
		if conv != nil {
			title = conv.Title
		}
		err = &errors.AdapterError{Op: "create", Cause: err}
		return &result.Result{
			RunID:     uuid.NewString(),
			Title:     title,
			StartedAt: time.Now(),
			Errors: []result.Error{
				result.Halt(0, title, fmt.Sprintf("Conversation %q", title), err),
			},
		}
	}
	return e.Run(ctx, conv, a, opts)
}
