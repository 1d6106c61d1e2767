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

// Package runcontext holds the key/value state of a single conversation run.
//
// A Context is created by the engine for every execution and handed by
// reference to each adapter call. Business logic records metadata on it with
// Collect, checks read it back with Get. Writes are last-write-wins per key;
// every write is also appended to an ordered history so overwritten values
// remain visible for diagnostics.
package runcontext

import (
	"sort"
	"strings"
	"sync"
)

// Engine-managed keys.
const (
	// KeyProfile holds the user profile that drives generated user turns.
	KeyProfile = "credence.profile"

	// KeyConversation holds the title of the conversation that owns the
	// interaction currently executing.
	KeyConversation = "credence.conversation"
)

// Source identifies who performed a write.
type Source string

const (
	// SourceInitial marks values supplied by the caller before the run started.
	SourceInitial Source = "initial"

	// SourceEngine marks engine-managed keys.
	SourceEngine Source = "engine"

	// SourceMetadata marks values collected by business logic.
	SourceMetadata Source = "metadata"
)

// Write is one entry of the write history.
type Write struct {
	// Seq is the position of the write in the history, starting at 1.
	Seq    int    `json:"seq"`
	Key    string `json:"key"`
	Value  any    `json:"value"`
	Source Source `json:"source"`
}

// Context is the mutable store of one run. It is safe for concurrent use so
// that business logic may collect metadata from its own goroutines.
type Context struct {
	mu      sync.RWMutex
	values  map[string]any
	history []Write
}

// New creates an empty Context.
func New() *Context {
	return &Context{values: make(map[string]any)}
}

// NewWithValues creates a Context seeded with initial, recorded with SourceInitial.
func NewWithValues(initial map[string]any) *Context {
	c := New()
	c.write(initial, SourceInitial)
	return c
}

// Collect records metadata written by business logic. Keys are applied in
// sorted order so the history is deterministic.
func (c *Context) Collect(values map[string]any) {
	c.write(values, SourceMetadata)
}

// Set records a single metadata value.
func (c *Context) Set(key string, value any) {
	c.write(map[string]any{key: value}, SourceMetadata)
}

// SetEngine records an engine-managed value.
func (c *Context) SetEngine(key string, value any) {
	c.write(map[string]any{key: value}, SourceEngine)
}

func (c *Context) write(values map[string]any, source Source) {
	if len(values) == 0 {
		return
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, k := range keys {
		c.values[k] = values[k]
		c.history = append(c.history, Write{
			Seq:    len(c.history) + 1,
			Key:    k,
			Value:  values[k],
			Source: source,
		})
	}
}

// Get returns the latest value for key. A key that was written verbatim wins;
// otherwise a dotted key such as "router.agent" walks nested maps, so a value
// collected as {"router": {"agent": "billing"}} is found too.
func (c *Context) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if v, ok := c.values[key]; ok {
		return v, true
	}

	parts := strings.Split(key, ".")
	for i := len(parts) - 1; i > 0; i-- {
		head := strings.Join(parts[:i], ".")
		root, ok := c.values[head]
		if !ok {
			continue
		}
		if v, ok := descend(root, parts[i:]); ok {
			return v, true
		}
	}
	return nil, false
}

func descend(value any, path []string) (any, bool) {
	current := value
	for _, segment := range path {
		switch m := current.(type) {
		case map[string]any:
			next, ok := m[segment]
			if !ok {
				return nil, false
			}
			current = next
		case map[string]string:
			next, ok := m[segment]
			if !ok {
				return nil, false
			}
			current = next
		default:
			return nil, false
		}
	}
	return current, true
}

// Has reports whether key resolves to a value.
func (c *Context) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Keys returns the written keys in sorted order.
func (c *Context) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot returns a copy of the latest values.
func (c *Context) Snapshot() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]any, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// History returns a copy of every write in order.
func (c *Context) History() []Write {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Write, len(c.history))
	copy(out, c.history)
	return out
}

// HistoryOf returns the writes of a single key in order.
func (c *Context) HistoryOf(key string) []Write {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []Write
	for _, w := range c.history {
		if w.Key == key {
			out = append(out, w)
		}
	}
	return out
}
