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

package errors

import (
	"fmt"
	"strings"
)

// Class groups errors by how the engine reacts to them.
type Class string

const (
	// ClassConfig errors are authoring mistakes. They halt the run and are never retried.
	ClassConfig Class = "config"

	// ClassFatal errors come from the adapter or LLM client while producing a
	// turn. They halt the remaining interactions of the run.
	ClassFatal Class = "fatal"

	// ClassCheck errors are assertion failures. They are collected and never halt.
	ClassCheck Class = "check"
)

// CyclicConversationError is returned when a conversation nests itself,
// directly or through other conversations.
type CyclicConversationError struct {
	// Title is the conversation that was reached twice on one expansion path.
	Title string

	// Path is the chain of titles from the root to the repeated conversation.
	Path []string
}

// Error implements the error interface.
func (e *CyclicConversationError) Error() string {
	if len(e.Path) == 0 {
		return fmt.Sprintf("cyclic conversation: %q nests itself", e.Title)
	}
	return fmt.Sprintf("cyclic conversation: %q nests itself (%s -> %s)",
		e.Title, strings.Join(e.Path, " -> "), e.Title)
}

// ErrorType implements ErrorClassifier.
func (e *CyclicConversationError) ErrorType() string { return "cyclic_conversation" }

// IsRetryable implements ErrorClassifier.
func (e *CyclicConversationError) IsRetryable() bool { return false }

// UnknownActionError is returned when an external interaction names an action
// the adapter does not register.
type UnknownActionError struct {
	Name string

	// Index and Owner locate the first interaction calling the action.
	Index int
	Owner string
}

// Error implements the error interface.
func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("unknown external action: %q", e.Name)
}

// ErrorType implements ErrorClassifier.
func (e *UnknownActionError) ErrorType() string { return "unknown_action" }

// IsRetryable implements ErrorClassifier.
func (e *UnknownActionError) IsRetryable() bool { return false }

// IsUserVisible implements UserVisibleError.
func (e *UnknownActionError) IsUserVisible() bool { return true }

// UserMessage implements UserVisibleError.
func (e *UnknownActionError) UserMessage() string {
	return fmt.Sprintf("The conversation calls %q but the adapter has no action with that name.", e.Name)
}

// Suggestion implements UserVisibleError.
func (e *UnknownActionError) Suggestion() string {
	return "Register the action on the adapter or fix the action name in the conversation."
}

// MissingReplyError is returned when a response assertion runs while no
// chatbot reply is waiting to be checked.
type MissingReplyError struct {
	// Index is the position of the interaction in the flattened sequence.
	Index int

	// Owner is the title of the conversation that holds the interaction.
	Owner string
}

// Error implements the error interface.
func (e *MissingReplyError) Error() string {
	return fmt.Sprintf("interaction %d in %q expects a chatbot reply but none is pending", e.Index, e.Owner)
}

// ErrorType implements ErrorClassifier.
func (e *MissingReplyError) ErrorType() string { return "missing_reply" }

// IsRetryable implements ErrorClassifier.
func (e *MissingReplyError) IsRetryable() bool { return false }

// AdapterError wraps a fault raised by caller business logic.
type AdapterError struct {
	// Op is the adapter operation, e.g. "handle_message", "create_client" or "action:provision_user".
	Op string

	Cause error
}

// Error implements the error interface.
func (e *AdapterError) Error() string {
	return fmt.Sprintf("adapter %s failed: %v", e.Op, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *AdapterError) Unwrap() error {
	return e.Cause
}

// ErrorType implements ErrorClassifier.
func (e *AdapterError) ErrorType() string { return "adapter" }

// IsRetryable implements ErrorClassifier.
func (e *AdapterError) IsRetryable() bool { return false }

// ClientError wraps a transport or model failure of the LLM client.
type ClientError struct {
	// Op is "generate_user_message" or "judge".
	Op string

	Cause error
}

// Error implements the error interface.
func (e *ClientError) Error() string {
	return fmt.Sprintf("llm client %s failed: %v", e.Op, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ClientError) Unwrap() error {
	return e.Cause
}

// ErrorType implements ErrorClassifier.
func (e *ClientError) ErrorType() string { return "client" }

// IsRetryable implements ErrorClassifier.
func (e *ClientError) IsRetryable() bool { return false }

// MalformedJudgmentError is returned when the judge answers with something
// that cannot be read as a verdict.
type MalformedJudgmentError struct {
	// Raw is the unparsed model output.
	Raw string

	Cause error
}

// Error implements the error interface.
func (e *MalformedJudgmentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("malformed judgment: %v", e.Cause)
	}
	return "malformed judgment"
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *MalformedJudgmentError) Unwrap() error {
	return e.Cause
}

// ErrorType implements ErrorClassifier.
func (e *MalformedJudgmentError) ErrorType() string { return "malformed_judgment" }

// IsRetryable implements ErrorClassifier.
func (e *MalformedJudgmentError) IsRetryable() bool { return false }

// MissingMetadataError is a check failure for a metadata key that was never
// written during the run.
type MissingMetadataError struct {
	Key string
}

// Error implements the error interface.
func (e *MissingMetadataError) Error() string {
	return fmt.Sprintf("missing metadata: %q was never collected", e.Key)
}

// ErrorType implements ErrorClassifier.
func (e *MissingMetadataError) ErrorType() string { return "missing_metadata" }

// IsRetryable implements ErrorClassifier.
func (e *MissingMetadataError) IsRetryable() bool { return false }

// ClassOf reports how the engine treats err. Errors it does not recognise are
// fatal.
func ClassOf(err error) Class {
	var classifier ErrorClassifier
	if !As(err, &classifier) {
		return ClassFatal
	}

	switch classifier.ErrorType() {
	case "cyclic_conversation", "unknown_action", "missing_reply", "validation", "not_found", "config":
		return ClassConfig
	case "malformed_judgment", "missing_metadata":
		return ClassCheck
	default:
		return ClassFatal
	}
}
