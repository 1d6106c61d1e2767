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

package conversation

import (
	"fmt"
	"strings"

	"github.com/tombee/credence/pkg/errors"
)

// MaxNestingDepth bounds how deep conversations may nest, independent of
// cycle detection.
const MaxNestingDepth = 16

// Step is one interaction of a flattened conversation.
type Step struct {
	// Index is the position in the flattened sequence, starting at 0.
	Index int

	// Owner is the title of the conversation that directly holds the interaction.
	Owner string

	Interaction Interaction
}

// Flatten resolves Nested interactions depth-first, left to right, into one
// ordered sequence. Nested markers themselves do not appear in the output.
//
// A conversation reached again while it is still being expanded is a cycle
// and fails with *errors.CyclicConversationError. Reusing one conversation in
// sibling positions is not a cycle.
func Flatten(c *Conversation) ([]Step, error) {
	if c == nil {
		return nil, &errors.ValidationError{
			Field:   "conversation",
			Message: "conversation is nil",
		}
	}

	f := &flattener{onPath: make(map[*Conversation]bool)}
	if err := f.expand(c); err != nil {
		return nil, err
	}
	return f.steps, nil
}

type flattener struct {
	steps  []Step
	path   []*Conversation
	onPath map[*Conversation]bool
}

func (f *flattener) expand(c *Conversation) error {
	if f.onPath[c] {
		return &errors.CyclicConversationError{Title: c.Title, Path: f.titles()}
	}
	if len(f.path) >= MaxNestingDepth {
		return &errors.ValidationError{
			Field:      "interactions",
			Message:    fmt.Sprintf("maximum nesting depth (%d) exceeded at %q (%s)", MaxNestingDepth, c.Title, strings.Join(f.titles(), " -> ")),
			Suggestion: "Flatten some nested conversations into their parents",
		}
	}

	f.onPath[c] = true
	f.path = append(f.path, c)
	defer func() {
		f.path = f.path[:len(f.path)-1]
		delete(f.onPath, c)
	}()

	for i, interaction := range c.Interactions {
		nested, ok := interaction.(Nested)
		if !ok {
			f.steps = append(f.steps, Step{
				Index:       len(f.steps),
				Owner:       c.Title,
				Interaction: interaction,
			})
			continue
		}

		if nested.Conversation == nil {
			return &errors.ValidationError{
				Field:   fmt.Sprintf("%s.interactions[%d]", c.Title, i),
				Message: "nested interaction has no conversation",
			}
		}
		if err := f.expand(nested.Conversation); err != nil {
			return err
		}
	}
	return nil
}

func (f *flattener) titles() []string {
	titles := make([]string, len(f.path))
	for i, c := range f.path {
		titles[i] = c.Title
	}
	return titles
}

// Validate flattens c and checks each interaction for authoring mistakes that
// can be found without running it. All problems are reported together.
func Validate(c *Conversation) error {
	steps, err := Flatten(c)
	if err != nil {
		return err
	}

	var errs []error
	for _, s := range steps {
		field := fmt.Sprintf("%s.interactions[%d]", s.Owner, s.Index)
		switch i := s.Interaction.(type) {
		case UserGenerated:
			if strings.TrimSpace(i.Goal) == "" {
				errs = append(errs, &errors.ValidationError{Field: field, Message: "generated user turn has no goal"})
			}
		case External:
			if i.Action == "" {
				errs = append(errs, &errors.ValidationError{Field: field, Message: "external interaction has no action name"})
			}
		case ChatbotResponse:
			for j, c := range i.Checks {
				if c == nil {
					errs = append(errs, &errors.ValidationError{Field: fmt.Sprintf("%s.checks[%d]", field, j), Message: "check is nil"})
				}
			}
		case nil:
			errs = append(errs, &errors.ValidationError{Field: field, Message: "interaction is nil"})
		}
	}
	return errors.Join(errs...)
}
