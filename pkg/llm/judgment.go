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
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	credenceerrors "github.com/tombee/credence/pkg/errors"
)

// Judgment is the structured verdict of the judge model.
type Judgment struct {
	// Requirement echoes the rubric that was judged.
	Requirement string `json:"requirement"`

	// Rationale explains the verdict.
	Rationale string `json:"reason"`

	// Verdict is true when the reply satisfies the rubric.
	Verdict bool `json:"requirement_met"`
}

var (
	judgmentSchemaLoader = gojsonschema.NewGoLoader(JudgmentSchema)

	codeBlockPatterns = []*regexp.Regexp{
		regexp.MustCompile("(?s)```json\\s*\\n(.+?)```"),
		regexp.MustCompile("(?s)```\\s*\\n(.+?)```"),
	}
)

// ParseJudgment reads a judgment from raw model output. The JSON object may
// be bare, fenced in a markdown code block or embedded in prose. Anything that
// does not yield an object matching JudgmentSchema is a MalformedJudgmentError.
func ParseJudgment(raw string) (*Judgment, error) {
	doc, err := ExtractJSON(raw)
	if err != nil {
		return nil, &credenceerrors.MalformedJudgmentError{Raw: raw, Cause: err}
	}

	result, err := gojsonschema.Validate(judgmentSchemaLoader, gojsonschema.NewStringLoader(doc))
	if err != nil {
		return nil, &credenceerrors.MalformedJudgmentError{Raw: raw, Cause: err}
	}
	if !result.Valid() {
		var problems []string
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		return nil, &credenceerrors.MalformedJudgmentError{
			Raw:   raw,
			Cause: fmt.Errorf("schema validation errors: %s", strings.Join(problems, "; ")),
		}
	}

	var judgment Judgment
	if err := json.Unmarshal([]byte(doc), &judgment); err != nil {
		return nil, &credenceerrors.MalformedJudgmentError{Raw: raw, Cause: err}
	}
	return &judgment, nil
}

// ExtractJSON finds the first JSON document in an LLM response that may
// contain extra text and returns it verbatim.
func ExtractJSON(response string) (string, error) {
	response = strings.TrimSpace(response)

	if json.Valid([]byte(response)) {
		return response, nil
	}

	if extracted := extractFromCodeBlock(response); extracted != "" && json.Valid([]byte(extracted)) {
		return extracted, nil
	}

	if extracted := extractJSONFromText(response); extracted != "" && json.Valid([]byte(extracted)) {
		return extracted, nil
	}

	return "", fmt.Errorf("could not extract valid JSON from response")
}

// extractFromCodeBlock extracts content from markdown code blocks.
func extractFromCodeBlock(text string) string {
	for _, re := range codeBlockPatterns {
		if matches := re.FindStringSubmatch(text); len(matches) > 1 {
			return strings.TrimSpace(matches[1])
		}
	}
	return ""
}

// extractJSONFromText scans for the first balanced {...} or [...] outside of
// string literals.
func extractJSONFromText(text string) string {
	var (
		depth      int
		start      int
		inString   bool
		escape     bool
		foundStart bool
	)

	for i, ch := range text {
		if escape {
			escape = false
			continue
		}

		switch ch {
		case '\\':
			if inString {
				escape = true
			}
		case '"':
			if foundStart {
				inString = !inString
			}
		case '{', '[':
			if !inString {
				if depth == 0 {
					start = i
					foundStart = true
				}
				depth++
			}
		case '}', ']':
			if !inString && foundStart {
				depth--
				if depth == 0 {
					return text[start : i+1]
				}
			}
		}
	}

	return ""
}
