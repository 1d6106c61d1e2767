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
	"time"
)

// Recorder receives run metrics. Implementations must be safe for
// concurrent use; RunSuite shares one Recorder between runs.
type Recorder interface {
	// RecordRunStart is called before the first interaction.
	RecordRunStart(ctx context.Context, runID, conversation string)

	// RecordRunComplete is called once per run with status "pass", "fail"
	// or "error".
	RecordRunComplete(ctx context.Context, runID, conversation, status string, duration time.Duration)

	// RecordInteraction is called after every executed interaction.
	RecordInteraction(ctx context.Context, kind, status string, duration time.Duration)

	// RecordCheck is called for every evaluated check.
	RecordCheck(ctx context.Context, kind string, passed bool)

	// RecordLLMCall is called after every LLM client call.
	RecordLLMCall(ctx context.Context, op, model, status string, latency time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordRunStart(context.Context, string, string)                          {}
func (nopRecorder) RecordRunComplete(context.Context, string, string, string, time.Duration) {}
func (nopRecorder) RecordInteraction(context.Context, string, string, time.Duration)         {}
func (nopRecorder) RecordCheck(context.Context, string, bool)                                {}
func (nopRecorder) RecordLLMCall(context.Context, string, string, string, time.Duration)     {}
