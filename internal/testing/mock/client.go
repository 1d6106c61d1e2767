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
	"fmt"
	"sync"

	"github.com/tombee/credence/pkg/llm"
)

// Client is an llm.Client with scripted answers.
type Client struct {
	// Messages are returned by successive GenerateUserMessage calls.
	Messages []string

	// GenerateErr fails every GenerateUserMessage call when set.
	GenerateErr error

	// Judgments maps a rubric to its verdict.
	Judgments map[string]llm.Judgment

	// JudgeErr fails every Judge call when set.
	JudgeErr error

	mu        sync.Mutex
	generated []llm.GenerateRequest
	judged    []llm.JudgeRequest
}

var _ llm.Client = (*Client)(nil)

// GenerateUserMessage returns the next scripted message.
func (c *Client) GenerateUserMessage(ctx context.Context, req llm.GenerateRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.generated)
	c.generated = append(c.generated, req)
	if c.GenerateErr != nil {
		return "", c.GenerateErr
	}
	if n >= len(c.Messages) {
		return "", fmt.Errorf("mock: no scripted user message %d", n)
	}
	return c.Messages[n], nil
}

// Judge returns the scripted verdict for req.Rubric.
func (c *Client) Judge(ctx context.Context, req llm.JudgeRequest) (*llm.Judgment, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.judged = append(c.judged, req)
	if c.JudgeErr != nil {
		return nil, c.JudgeErr
	}
	j, ok := c.Judgments[req.Rubric]
	if !ok {
		return nil, fmt.Errorf("mock: no judgment scripted for %q", req.Rubric)
	}
	j.Requirement = req.Rubric
	return &j, nil
}

// GenerateRequests returns the GenerateUserMessage requests received.
func (c *Client) GenerateRequests() []llm.GenerateRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]llm.GenerateRequest(nil), c.generated...)
}

// JudgeRequests returns the Judge requests received.
func (c *Client) JudgeRequests() []llm.JudgeRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]llm.JudgeRequest(nil), c.judged...)
}
