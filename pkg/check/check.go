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

// Package check defines the assertions a ChatbotResponse interaction runs
// against a chatbot reply and the Run Context, and evaluates them.
//
// Four kinds exist: response text checks, metadata checks over dotted Run
// Context keys, AI semantic checks judged by an llm.Client, and boolean
// expressions. A mismatch is never an error; every evaluation yields a Result.
package check

import (
	"fmt"
	"strings"
)

// Kind identifies a check variant.
type Kind string

const (
	KindResponse Kind = "response"
	KindMetadata Kind = "metadata"
	KindAI       Kind = "ai"
	KindExpr     Kind = "expr"
)

// Op is a comparison applied by response and metadata checks.
type Op string

const (
	OpEquals      Op = "equals"
	OpNotEquals   Op = "not_equals"
	OpContains    Op = "contains"
	OpNotContains Op = "not_contains"
	OpContainsAll Op = "contains_all"
	OpContainsAny Op = "contains_any"
	OpMatches     Op = "matches"
	OpOneOf       Op = "one_of"
	OpExists      Op = "exists"
)

// should phrases op for descriptions.
func (o Op) should() string {
	switch o {
	case OpEquals:
		return "should equal"
	case OpNotEquals:
		return "should not equal"
	case OpContains:
		return "should contain"
	case OpNotContains:
		return "should not contain"
	case OpContainsAll:
		return "should contain all of"
	case OpContainsAny:
		return "should contain any of"
	case OpMatches:
		return "should match the regex"
	case OpOneOf:
		return "should be one of"
	case OpExists:
		return "should be present"
	default:
		return "should " + string(o)
	}
}

// Check is a single assertion. The set of implementations is closed.
type Check interface {
	// Kind returns the variant tag.
	Kind() Kind

	// Description is a human sentence describing what the check expects.
	Description() string

	isCheck()
}

// ResponseCheck compares the chatbot reply text.
type ResponseCheck struct {
	Op     Op
	Values []string
}

// MetadataCheck compares a Run Context value, read by dotted key. Values are
// compared by their string form.
type MetadataCheck struct {
	Key    string
	Op     Op
	Values []any
}

// AICheck asks the judge whether the reply satisfies Rubric. Rubric completes
// the sentence "The assistant should ...".
type AICheck struct {
	Rubric string

	// Model overrides the adapter's model for this check.
	Model string
}

// ExprCheck evaluates a boolean expression over the reply, the metadata and
// the transcript.
type ExprCheck struct {
	Expression string
}

func (ResponseCheck) Kind() Kind { return KindResponse }
func (MetadataCheck) Kind() Kind { return KindMetadata }
func (AICheck) Kind() Kind       { return KindAI }
func (ExprCheck) Kind() Kind     { return KindExpr }

func (ResponseCheck) isCheck() {}
func (MetadataCheck) isCheck() {}
func (AICheck) isCheck()       {}
func (ExprCheck) isCheck()     {}

// Description implements Check.
func (c ResponseCheck) Description() string {
	return c.Op.should() + " " + quoteList(c.Values)
}

// Description implements Check.
func (c MetadataCheck) Description() string {
	subject := fmt.Sprintf("metadata[%q]", c.Key)
	if c.Op == OpExists {
		return subject + " " + c.Op.should()
	}
	return subject + " " + c.Op.should() + " " + quoteList(stringify(c.Values))
}

// Description implements Check.
func (c AICheck) Description() string {
	return "should " + c.Rubric
}

// Description implements Check.
func (c ExprCheck) Description() string {
	return "should satisfy `" + c.Expression + "`"
}

func quoteList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "`" + v + "`"
	}
	return strings.Join(quoted, ", ")
}

func stringify(values []any) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = fmt.Sprint(v)
	}
	return out
}
