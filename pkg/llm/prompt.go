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

package llm

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// DefaultUserSimulatorPrompt is the system prompt used for generated user
// turns when the adapter does not supply its own.
const DefaultUserSimulatorPrompt = "You are now simulating a user who is interacting with a system.\nYou are not an assistant."

// JudgeSystemPrompt instructs the judge model.
const JudgeSystemPrompt = "You are quality assurance system that confirms whether the responses given by an assistant meet a requirement.\n" +
	"Don't be too strict with your analysis. If the response is close to meeting the requirement, then give it a pass."

// JudgmentSchema is the JSON Schema every judgment must satisfy.
var JudgmentSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"requirement": map[string]interface{}{
			"type":        "string",
			"description": "The requirement being checked.",
		},
		"reason": map[string]interface{}{
			"type":        "string",
			"description": "Explanation for why the response either meets or does not meet the requirement.",
		},
		"requirement_met": map[string]interface{}{
			"type":        "boolean",
			"description": "Whether or not the response meets the requirement.",
		},
	},
	"required": []interface{}{"reason", "requirement_met"},
}

// BuildUserSimulatorMessages assembles the request that asks the model to
// play the user. The transcript is rendered into the system prompt with the
// roles as the chatbot under test sees them; the goal is the only instruction.
func BuildUserSimulatorMessages(systemPrompt, profile, goal string, transcript []Message) []Message {
	if systemPrompt == "" {
		systemPrompt = DefaultUserSimulatorPrompt
	}

	var sb strings.Builder
	sb.WriteString(systemPrompt)
	if profile != "" {
		sb.WriteString("\n\nProfile:\n")
		sb.WriteString(profile)
	}
	if len(transcript) > 0 {
		sb.WriteString("\n\nContext:\n")
		sb.WriteString(FormatTranscript(transcript))
	}

	return []Message{
		{Role: MessageRoleSystem, Content: sb.String()},
		{Role: MessageRoleUser, Content: goal},
	}
}

// BuildJudgeMessages assembles the judge request. actual is appended to the
// chat log unless it is already the last assistant message.
func BuildJudgeMessages(rubric, actual string, transcript []Message) []Message {
	log := transcript
	if n := len(log); n == 0 || log[n-1].Role != MessageRoleAssistant || log[n-1].Content != actual {
		log = append(append([]Message(nil), transcript...), Message{Role: MessageRoleAssistant, Content: actual})
	}

	question := fmt.Sprintf("Does the assistant's response meet the following requirement:\n\nThe assistant should %s", rubric)

	return []Message{
		{Role: MessageRoleSystem, Content: JudgeSystemPrompt},
		{Role: MessageRoleUser, Content: "This is the chatbot log:\n\n" + FormatTranscript(log)},
		{Role: MessageRoleUser, Content: WithSchemaInstruction(question, JudgmentSchema)},
	}
}

// FormatTranscript renders messages as "role: content" lines.
func FormatTranscript(messages []Message) string {
	var sb strings.Builder
	for _, m := range messages {
		sb.WriteString(string(m.Role))
		sb.WriteString(": ")
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}

// WithSchemaInstruction appends a description of schema and an example object
// to prompt, asking the model to answer with JSON only.
func WithSchemaInstruction(prompt string, schema map[string]interface{}) string {
	return prompt + fmt.Sprintf(
		"\n\nRespond ONLY with a JSON object matching this structure, no additional text:\n%s\n\nExample:\n%s",
		formatSchemaForPrompt(schema), buildExampleJSON(schema))
}

// formatSchemaForPrompt creates a human-readable description of the schema.
func formatSchemaForPrompt(schema map[string]interface{}) string {
	var sb strings.Builder
	sb.WriteString("{\n")

	if props, ok := schema["properties"].(map[string]interface{}); ok {
		required := make(map[string]bool)
		if reqList, ok := schema["required"].([]interface{}); ok {
			for _, r := range reqList {
				if rStr, ok := r.(string); ok {
					required[rStr] = true
				}
			}
		}

		names := make([]string, 0, len(props))
		for name := range props {
			names = append(names, name)
		}
		sort.Strings(names)

		for i, name := range names {
			if i > 0 {
				sb.WriteString(",\n")
			}
			propMap, _ := props[name].(map[string]interface{})
			propType, _ := propMap["type"].(string)

			requiredMarker := ""
			if required[name] {
				requiredMarker = " (required)"
			}

			description := ""
			if desc, ok := propMap["description"].(string); ok {
				description = " // " + desc
			}

			sb.WriteString(fmt.Sprintf("  %q: %s%s%s", name, propType, requiredMarker, description))
		}
	}

	sb.WriteString("\n}")
	return sb.String()
}

// buildExampleJSON creates an example JSON object from the schema.
func buildExampleJSON(schema map[string]interface{}) string {
	jsonBytes, _ := json.MarshalIndent(buildExampleValue(schema), "", "  ")
	return string(jsonBytes)
}

// buildExampleValue recursively builds example values from schema.
func buildExampleValue(schema map[string]interface{}) interface{} {
	schemaType, _ := schema["type"].(string)

	switch schemaType {
	case "object":
		obj := make(map[string]interface{})
		if props, ok := schema["properties"].(map[string]interface{}); ok {
			for name, propSchema := range props {
				propMap, _ := propSchema.(map[string]interface{})
				obj[name] = buildExampleValue(propMap)
			}
		}
		return obj
	case "array":
		if items, ok := schema["items"].(map[string]interface{}); ok {
			return []interface{}{buildExampleValue(items)}
		}
		return []interface{}{}
	case "string":
		return "example"
	case "number", "integer":
		return 1
	case "boolean":
		return true
	default:
		return nil
	}
}
