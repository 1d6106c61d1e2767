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

// Package suite loads conversation suites from YAML or JSON files.
//
// A suite file is validated against the embedded JSON schema, then decoded
// into conversation values. Nested interactions reference other
// conversations in the same file by id; every reference to an id resolves to
// the same *conversation.Conversation so the engine sees shared
// sub-conversations by identity.
package suite

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/tombee/credence/pkg/check"
	"github.com/tombee/credence/pkg/conversation"
	"github.com/tombee/credence/pkg/errors"
	"github.com/tombee/credence/schemas"
)

// Suite is a decoded suite file.
type Suite struct {
	// Path is the file the suite was loaded from.
	Path string

	// Name is the suite name, defaulting to the file name.
	Name string

	// Profile is the default user profile for generated turns.
	Profile string

	// Conversations holds every conversation in file order, including those
	// that only serve as nested building blocks.
	Conversations []*conversation.Conversation

	byID     map[string]*conversation.Conversation
	runnable map[*conversation.Conversation]bool
}

// Runnable returns the conversations to execute, in file order.
func (s *Suite) Runnable() []*conversation.Conversation {
	var out []*conversation.Conversation
	for _, c := range s.Conversations {
		if s.runnable[c] {
			out = append(out, c)
		}
	}
	return out
}

// Lookup returns the conversation with the given id.
func (s *Suite) Lookup(id string) (*conversation.Conversation, bool) {
	c, ok := s.byID[id]
	return c, ok
}

type fileDoc struct {
	Name          string            `yaml:"name"`
	Profile       string            `yaml:"profile"`
	Conversations []conversationDoc `yaml:"conversations"`
}

type conversationDoc struct {
	ID           string           `yaml:"id"`
	Title        string           `yaml:"title"`
	Run          *bool            `yaml:"run"`
	Interactions []interactionDoc `yaml:"interactions"`
}

type interactionDoc struct {
	Type         string         `yaml:"type"`
	Text         string         `yaml:"text"`
	Goal         string         `yaml:"goal"`
	Profile      string         `yaml:"profile"`
	Checks       []checkDoc     `yaml:"checks"`
	Action       string         `yaml:"action"`
	Args         map[string]any `yaml:"args"`
	Conversation string         `yaml:"conversation"`
}

type checkDoc struct {
	Type       string `yaml:"type"`
	Op         string `yaml:"op"`
	Key        string `yaml:"key"`
	Value      any    `yaml:"value"`
	Values     []any  `yaml:"values"`
	Rubric     string `yaml:"rubric"`
	Model      string `yaml:"model"`
	Expression string `yaml:"expression"`
}

var schemaLoader = gojsonschema.NewBytesLoader(schemas.SuiteSchema())

// LoadFile reads and decodes a suite file.
func LoadFile(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading suite %s", path)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "suite %s", path)
	}
	s.Path = path
	if s.Name == "" {
		s.Name = suiteName(path)
	}
	return s, nil
}

// LoadAll loads every file and stops at the first error.
func LoadAll(paths []string) ([]*Suite, error) {
	suites := make([]*Suite, 0, len(paths))
	for _, p := range paths {
		s, err := LoadFile(p)
		if err != nil {
			return nil, err
		}
		suites = append(suites, s)
	}
	return suites, nil
}

// Parse decodes a suite document. JSON documents are accepted as YAML.
func Parse(data []byte) (*Suite, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &errors.ValidationError{Field: "suite", Message: fmt.Sprintf("invalid YAML: %v", err)}
	}
	if err := validateSchema(raw); err != nil {
		return nil, err
	}

	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &errors.ValidationError{Field: "suite", Message: fmt.Sprintf("invalid YAML: %v", err)}
	}
	return decode(doc)
}

func validateSchema(raw any) error {
	if raw == nil {
		return &errors.ValidationError{Field: "suite", Message: "document is empty"}
	}
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(raw))
	if err != nil {
		return &errors.ValidationError{Field: "suite", Message: fmt.Sprintf("schema validation: %v", err)}
	}
	if result.Valid() {
		return nil
	}

	var errs []error
	for _, e := range result.Errors() {
		// if/then branches report a summary error alongside the specific one.
		if e.Type() == "condition_then" || e.Type() == "number_all_of" {
			continue
		}
		errs = append(errs, &errors.ValidationError{Field: schemaField(e.Field()), Message: e.Description()})
	}
	if len(errs) == 0 {
		errs = append(errs, &errors.ValidationError{Field: "suite", Message: result.Errors()[0].String()})
	}
	return errors.Join(errs...)
}

// schemaField turns gojsonschema's "conversations.0.title" into
// "conversations[0].title".
func schemaField(f string) string {
	if f == "(root)" {
		return "suite"
	}
	parts := strings.Split(f, ".")
	var sb strings.Builder
	for i, p := range parts {
		if isIndex(p) {
			sb.WriteString("[" + p + "]")
			continue
		}
		if i > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(p)
	}
	return sb.String()
}

func isIndex(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func decode(doc fileDoc) (*Suite, error) {
	s := &Suite{
		Name:     doc.Name,
		Profile:  doc.Profile,
		byID:     make(map[string]*conversation.Conversation, len(doc.Conversations)),
		runnable: make(map[*conversation.Conversation]bool, len(doc.Conversations)),
	}

	// Allocate every conversation first so nested references can point at
	// conversations defined later in the file.
	for i, cd := range doc.Conversations {
		id := cd.ID
		if id == "" {
			id = cd.Title
		}
		if _, dup := s.byID[id]; dup {
			return nil, &errors.ValidationError{
				Field:   fmt.Sprintf("conversations[%d].id", i),
				Message: fmt.Sprintf("duplicate conversation id %q", id),
			}
		}
		c := conversation.New(cd.Title)
		s.byID[id] = c
		s.runnable[c] = cd.Run == nil || *cd.Run
		s.Conversations = append(s.Conversations, c)
	}

	var errs []error
	for i, cd := range doc.Conversations {
		c := s.Conversations[i]
		for j, id := range cd.Interactions {
			field := fmt.Sprintf("conversations[%d].interactions[%d]", i, j)
			in, err := s.decodeInteraction(field, id)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			c.Interactions = append(c.Interactions, in)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return s, nil
}

func (s *Suite) decodeInteraction(field string, d interactionDoc) (conversation.Interaction, error) {
	switch conversation.Kind(d.Type) {
	case conversation.KindUserMessage:
		return conversation.User(d.Text), nil

	case conversation.KindUserGenerated:
		return conversation.Generated(d.Goal).As(d.Profile), nil

	case conversation.KindChatbotResponse:
		checks := make([]check.Check, 0, len(d.Checks))
		var errs []error
		for k, cd := range d.Checks {
			c, err := decodeCheck(fmt.Sprintf("%s.checks[%d]", field, k), cd)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			checks = append(checks, c)
		}
		if len(errs) > 0 {
			return nil, errors.Join(errs...)
		}
		return conversation.Responds(checks...), nil

	case conversation.KindChatbotIgnores:
		return conversation.Ignores(), nil

	case conversation.KindExternal:
		return conversation.Call(d.Action, d.Args), nil

	case conversation.KindNested:
		target, ok := s.byID[d.Conversation]
		if !ok {
			return nil, errors.Wrap(&errors.NotFoundError{Resource: "conversation", ID: d.Conversation}, field)
		}
		return conversation.Nest(target), nil

	default:
		return nil, &errors.ValidationError{Field: field + ".type", Message: fmt.Sprintf("unknown interaction type %q", d.Type)}
	}
}

func decodeCheck(field string, d checkDoc) (check.Check, error) {
	switch check.Kind(d.Type) {
	case check.KindResponse:
		values, err := stringValues(field, d)
		if err != nil {
			return nil, err
		}
		op := check.Op(d.Op)
		if op == check.OpMatches {
			if err := compileAll(field, values); err != nil {
				return nil, err
			}
		}
		return check.ResponseCheck{Op: op, Values: values}, nil

	case check.KindMetadata:
		op := check.Op(d.Op)
		values := d.Values
		if d.Value != nil {
			values = append([]any{d.Value}, values...)
		}
		if op != check.OpExists && len(values) == 0 {
			return nil, &errors.ValidationError{Field: field, Message: fmt.Sprintf("metadata %s check needs a value", op)}
		}
		if op == check.OpMatches {
			for _, v := range values {
				if err := compileAll(field, []string{fmt.Sprint(v)}); err != nil {
					return nil, err
				}
			}
		}
		return check.MetadataCheck{Key: d.Key, Op: op, Values: values}, nil

	case check.KindAI:
		return check.AICheck{Rubric: d.Rubric, Model: d.Model}, nil

	case check.KindExpr:
		if err := check.ValidateExpr(d.Expression); err != nil {
			return nil, &errors.ValidationError{Field: field + ".expression", Message: err.Error()}
		}
		return check.Expr(d.Expression), nil

	default:
		return nil, &errors.ValidationError{Field: field + ".type", Message: fmt.Sprintf("unknown check type %q", d.Type)}
	}
}

func stringValues(field string, d checkDoc) ([]string, error) {
	var values []string
	if d.Value != nil {
		s, ok := d.Value.(string)
		if !ok {
			return nil, &errors.ValidationError{Field: field + ".value", Message: "response check values must be strings"}
		}
		values = append(values, s)
	}
	for i, v := range d.Values {
		s, ok := v.(string)
		if !ok {
			return nil, &errors.ValidationError{Field: fmt.Sprintf("%s.values[%d]", field, i), Message: "response check values must be strings"}
		}
		values = append(values, s)
	}
	if len(values) == 0 {
		return nil, &errors.ValidationError{Field: field, Message: "response check needs a value"}
	}
	return values, nil
}

func compileAll(field string, patterns []string) error {
	for _, p := range patterns {
		if _, err := regexp.Compile(p); err != nil {
			return &errors.ValidationError{Field: field, Message: fmt.Sprintf("invalid regex %q: %v", p, err)}
		}
	}
	return nil
}

func suiteName(path string) string {
	base := filepath.Base(path)
	for _, ext := range Extensions {
		if strings.HasSuffix(base, ext) {
			return strings.TrimSuffix(base, ext)
		}
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}
