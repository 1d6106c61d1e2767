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

package check

// ResponseBuilder builds checks over the reply text.
type ResponseBuilder struct{}

// Response starts a reply text check.
func Response() ResponseBuilder { return ResponseBuilder{} }

// Equals passes when the reply is exactly s.
func (ResponseBuilder) Equals(s string) ResponseCheck {
	return ResponseCheck{Op: OpEquals, Values: []string{s}}
}

// NotEquals passes when the reply is anything but s.
func (ResponseBuilder) NotEquals(s string) ResponseCheck {
	return ResponseCheck{Op: OpNotEquals, Values: []string{s}}
}

// Contains passes when s is a substring of the reply.
func (ResponseBuilder) Contains(s string) ResponseCheck {
	return ResponseCheck{Op: OpContains, Values: []string{s}}
}

// NotContains passes when none of values occur in the reply.
func (ResponseBuilder) NotContains(values ...string) ResponseCheck {
	return ResponseCheck{Op: OpNotContains, Values: values}
}

// ContainsAll passes when every value occurs in the reply.
func (ResponseBuilder) ContainsAll(values ...string) ResponseCheck {
	return ResponseCheck{Op: OpContainsAll, Values: values}
}

// ContainsAny passes when at least one value occurs in the reply.
func (ResponseBuilder) ContainsAny(values ...string) ResponseCheck {
	return ResponseCheck{Op: OpContainsAny, Values: values}
}

// Matches passes when pattern matches anywhere in the reply.
func (ResponseBuilder) Matches(pattern string) ResponseCheck {
	return ResponseCheck{Op: OpMatches, Values: []string{pattern}}
}

// MetadataBuilder builds checks over one Run Context key.
type MetadataBuilder struct {
	key string
}

// Metadata starts a check on the dotted Run Context key.
func Metadata(key string) MetadataBuilder { return MetadataBuilder{key: key} }

func (b MetadataBuilder) Equals(v any) MetadataCheck {
	return MetadataCheck{Key: b.key, Op: OpEquals, Values: []any{v}}
}

func (b MetadataBuilder) NotEquals(v any) MetadataCheck {
	return MetadataCheck{Key: b.key, Op: OpNotEquals, Values: []any{v}}
}

func (b MetadataBuilder) Contains(s string) MetadataCheck {
	return MetadataCheck{Key: b.key, Op: OpContains, Values: []any{s}}
}

func (b MetadataBuilder) NotContains(s string) MetadataCheck {
	return MetadataCheck{Key: b.key, Op: OpNotContains, Values: []any{s}}
}

func (b MetadataBuilder) OneOf(values ...any) MetadataCheck {
	return MetadataCheck{Key: b.key, Op: OpOneOf, Values: values}
}

func (b MetadataBuilder) Matches(pattern string) MetadataCheck {
	return MetadataCheck{Key: b.key, Op: OpMatches, Values: []any{pattern}}
}

// Exists passes when the key was written during the run, whatever its value.
func (b MetadataBuilder) Exists() MetadataCheck {
	return MetadataCheck{Key: b.key, Op: OpExists}
}

// AI builds a semantic check judged by the LLM client.
func AI(rubric string) AICheck { return AICheck{Rubric: rubric} }

// Expr builds an expression check.
func Expr(expression string) ExprCheck { return ExprCheck{Expression: expression} }
