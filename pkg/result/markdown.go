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

package result

import (
	"fmt"
	"strings"
)

// RenderMarkdown renders a result as a markdown section, suitable for a pull
// request comment or a CI job summary.
func RenderMarkdown(r *Result) string {
	var b strings.Builder

	icon := "✅"
	if !r.Passed() {
		icon = "❌"
	}
	fmt.Fprintf(&b, "### %s %s\n\n", icon, escapeMarkdown(r.Title))
	fmt.Fprintf(&b, "Run `%s` · %s · %d of %d interactions\n\n", r.RunID, formatDuration(r.Duration), len(r.Outcomes), r.Steps)

	b.WriteString("| # | Conversation | Interaction | Result |\n")
	b.WriteString("|---|---|---|---|\n")
	for _, o := range r.Outcomes {
		status := "pass"
		if !o.Passed() {
			status = "**fail**"
		}
		fmt.Fprintf(&b, "| %d | %s | %s | %s |\n", o.Index+1, escapeCell(o.Owner), escapeCell(o.Description), status)
	}

	if len(r.Errors) > 0 {
		b.WriteString("\n#### Errors\n\n")
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "- **#%d %s** (%s): %s\n", e.Index+1, escapeMarkdown(e.Interaction), e.Class, escapeMarkdown(e.Message))
			if e.Expected != "" || e.Actual != "" {
				fmt.Fprintf(&b, "  - expected: `%s`\n", e.Expected)
				fmt.Fprintf(&b, "  - actual: `%s`\n", e.Actual)
			}
		}
	}
	return b.String()
}

var (
	cellEscaper     = strings.NewReplacer("|", "\\|", "\n", " ")
	markdownEscaper = strings.NewReplacer("*", "\\*", "_", "\\_", "\n", " ")
)

func escapeCell(s string) string { return cellEscaper.Replace(s) }

func escapeMarkdown(s string) string { return markdownEscaper.Replace(s) }
