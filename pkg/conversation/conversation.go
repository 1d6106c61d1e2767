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

// Package conversation models the conversations a test author writes: a
// titled, ordered list of interactions that may nest other conversations.
//
// Conversations are authored once and replayed many times. They are shared
// by reference, so a conversation nested in several places is one value and
// an edit to it is seen by every embedder. Nothing in this module modifies a
// Conversation after construction; callers must not either once it is handed
// to the engine.
package conversation

import (
	"fmt"

	"github.com/tombee/credence/pkg/check"
)

// Conversation is a named, ordered sequence of interactions.
type Conversation struct {
	Title        string
	Interactions []Interaction
}

// New creates a conversation.
func New(title string, interactions ...Interaction) *Conversation {
	return &Conversation{Title: title, Interactions: interactions}
}

// Kind identifies an interaction variant.
type Kind string

const (
	KindUserMessage     Kind = "user_message"
	KindUserGenerated   Kind = "user_generated"
	KindChatbotResponse Kind = "chatbot_response"
	KindChatbotIgnores  Kind = "chatbot_ignores"
	KindExternal        Kind = "external"
	KindNested          Kind = "nested"
)

// Interaction is one step of a conversation. The set of implementations is
// closed; the engine switches over them exhaustively.
type Interaction interface {
	Kind() Kind

	// Describe returns a one-line summary for reports.
	Describe() string

	isInteraction()
}

// UserMessage sends literal text as the user.
type UserMessage struct {
	Text string
}

// UserGenerated asks the LLM client to write the user's next message.
type UserGenerated struct {
	// Goal is what the simulated user tries to achieve with this turn.
	Goal string

	// Profile describes the simulated user for this turn only. When empty the
	// profile held in the Run Context, if any, is used.
	Profile string
}

// ChatbotResponse asserts properties of the reply to the preceding user turn.
type ChatbotResponse struct {
	Checks []check.Check
}

// ChatbotIgnores asserts that the preceding user turn produced no reply.
type ChatbotIgnores struct{}

// External invokes a named action on the adapter for its side effects.
type External struct {
	Action string
	Args   map[string]any
}

// Nested inlines another conversation at this point.
type Nested struct {
	Conversation *Conversation
}

func (UserMessage) Kind() Kind     { return KindUserMessage }
func (UserGenerated) Kind() Kind   { return KindUserGenerated }
func (ChatbotResponse) Kind() Kind { return KindChatbotResponse }
func (ChatbotIgnores) Kind() Kind  { return KindChatbotIgnores }
func (External) Kind() Kind        { return KindExternal }
func (Nested) Kind() Kind          { return KindNested }

func (UserMessage) isInteraction()     {}
func (UserGenerated) isInteraction()   {}
func (ChatbotResponse) isInteraction() {}
func (ChatbotIgnores) isInteraction()  {}
func (External) isInteraction()        {}
func (Nested) isInteraction()          {}

func (i UserMessage) Describe() string {
	return fmt.Sprintf("User says %q", i.Text)
}

func (i UserGenerated) Describe() string {
	if i.Profile != "" {
		return fmt.Sprintf("User (%s) tries to %s", i.Profile, i.Goal)
	}
	return fmt.Sprintf("User tries to %s", i.Goal)
}

func (i ChatbotResponse) Describe() string {
	switch len(i.Checks) {
	case 0:
		return "Chatbot responds"
	case 1:
		return "Chatbot responds (1 check)"
	default:
		return fmt.Sprintf("Chatbot responds (%d checks)", len(i.Checks))
	}
}

func (ChatbotIgnores) Describe() string {
	return "Chatbot ignores the message"
}

func (i External) Describe() string {
	return fmt.Sprintf("Call %s", i.Action)
}

func (i Nested) Describe() string {
	if i.Conversation == nil {
		return "Nested conversation <nil>"
	}
	return fmt.Sprintf("Nested conversation %q", i.Conversation.Title)
}

// User is a literal user turn.
func User(text string) UserMessage {
	return UserMessage{Text: text}
}

// Generated is a user turn written by the LLM client.
func Generated(goal string) UserGenerated {
	return UserGenerated{Goal: goal}
}

// As returns a copy of g that role-plays profile.
func (g UserGenerated) As(profile string) UserGenerated {
	g.Profile = profile
	return g
}

// Responds asserts the chatbot reply with checks. Every check runs even when
// an earlier one fails.
func Responds(checks ...check.Check) ChatbotResponse {
	return ChatbotResponse{Checks: checks}
}

// Ignores asserts that the chatbot did not reply.
func Ignores() ChatbotIgnores {
	return ChatbotIgnores{}
}

// Call invokes the adapter action registered under name.
func Call(name string, args map[string]any) External {
	return External{Action: name, Args: args}
}

// Nest inlines c.
func Nest(c *Conversation) Nested {
	return Nested{Conversation: c}
}
