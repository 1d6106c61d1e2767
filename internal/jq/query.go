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

// Package jq selects values from decoded JSON with jq expressions.
package jq

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/itchyny/gojq"
)

// DefaultTimeout bounds a single evaluation.
const DefaultTimeout = time.Second

// Query is a compiled jq expression. It is safe for concurrent use.
type Query struct {
	src  string
	code *gojq.Code
}

// Compile parses and compiles expr. A path without a leading dot, such as
// "data.text", is read as the jq path ".data.text".
func Compile(expr string) (*Query, error) {
	src := strings.TrimSpace(expr)
	if src == "" {
		return nil, fmt.Errorf("empty jq expression")
	}
	if !strings.HasPrefix(src, ".") && !strings.ContainsAny(src, "|( ") {
		src = "." + src
	}

	parsed, err := gojq.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("invalid jq expression %q: %w", expr, err)
	}
	code, err := gojq.Compile(parsed)
	if err != nil {
		return nil, fmt.Errorf("jq compilation failed for %q: %w", expr, err)
	}
	return &Query{src: src, code: code}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(expr string) *Query {
	q, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return q
}

// String returns the compiled expression.
func (q *Query) String() string {
	return q.src
}

// First returns the first value the query yields for data. A query that
// yields nothing, or null, reports false. Evaluation errors, such as indexing
// into a string, also report false.
func (q *Query) First(ctx context.Context, data any) (any, bool) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	iter := q.code.RunWithContext(ctx, normalize(data))
	v, ok := iter.Next()
	if !ok || v == nil {
		return nil, false
	}
	if _, isErr := v.(error); isErr {
		return nil, false
	}
	return v, true
}

// All returns every value the query yields for data.
func (q *Query) All(ctx context.Context, data any) ([]any, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	var results []any
	iter := q.code.RunWithContext(ctx, normalize(data))
	for {
		v, ok := iter.Next()
		if !ok {
			return results, nil
		}
		if err, isErr := v.(error); isErr {
			return nil, err
		}
		results = append(results, v)
	}
}

// normalize converts typed maps and slices gojq cannot walk.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]string:
		m := make(map[string]any, len(t))
		for k, s := range t {
			m[k] = s
		}
		return m
	case []string:
		s := make([]any, len(t))
		for i, e := range t {
			s[i] = e
		}
		return s
	default:
		return v
	}
}
