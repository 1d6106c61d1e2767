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
	"time"

	"github.com/charmbracelet/lipgloss"
)

// TextOptions configures RenderText.
type TextOptions struct {
	// Color enables ANSI styling.
	Color bool

	// Verbose lists passing checks and replies as well as failures.
	Verbose bool
}

type textStyles struct {
	ok, fail, muted, bold lipgloss.Style
}

func newTextStyles(color bool) textStyles {
	if !color {
		plain := lipgloss.NewStyle()
		return textStyles{ok: plain, fail: plain, muted: plain, bold: plain}
	}
	return textStyles{
		ok:    lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		fail:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		muted: lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		bold:  lipgloss.NewStyle().Bold(true),
	}
}

const (
	symbolOK   = "✓"
	symbolFail = "✗"
)

// RenderText renders a result for a console or CI log, grouped by
// interaction with expected and actual values for every failed check.
func RenderText(r *Result, opts TextOptions) string {
	s := newTextStyles(opts.Color)
	var b strings.Builder

	status := s.ok.Render("PASS")
	switch r.Status() {
	case "fail":
		status = s.fail.Render("FAIL")
	case "error":
		status = s.fail.Render("ERROR")
	}
	fmt.Fprintf(&b, "[%s] %s %s\n", status, s.bold.Render(r.Title), s.muted.Render("("+formatDuration(r.Duration)+")"))

	for _, o := range r.Outcomes {
		if !opts.Verbose && o.Passed() {
			continue
		}
		writeOutcome(&b, r, o, s, opts.Verbose)
	}

	if !r.Passed() {
		fmt.Fprintf(&b, "  Errors (%d):\n", len(r.Errors))
		for i, e := range r.Errors {
			fmt.Fprintf(&b, "    %d. [%s] #%d %s: %s\n", i+1, e.Class, e.Index+1, e.Owner, e.Message)
		}
	}

	if r.Halted() && len(r.Outcomes) < r.Steps {
		fmt.Fprintf(&b, "  %s\n", s.muted.Render(fmt.Sprintf("%d of %d interactions not run", r.Steps-len(r.Outcomes), r.Steps)))
	}
	return b.String()
}

func writeOutcome(b *strings.Builder, r *Result, o Outcome, s textStyles, verbose bool) {
	mark := s.ok.Render(symbolOK)
	if !o.Passed() {
		mark = s.fail.Render(symbolFail)
	}

	owner := ""
	if o.Owner != r.Title {
		owner = " " + s.muted.Render("("+o.Owner+")")
	}
	fmt.Fprintf(b, "  %s [%d] %s%s\n", mark, o.Index+1, o.Description, owner)

	if verbose && o.UserText != "" && !strings.Contains(o.Description, o.UserText) {
		fmt.Fprintf(b, "      user: %q\n", o.UserText)
	}
	if verbose && o.HasReply {
		fmt.Fprintf(b, "      chatbot: %q\n", o.Reply)
	}

	for _, c := range o.Checks {
		if c.Passed {
			if verbose {
				fmt.Fprintf(b, "      %s %s\n", s.ok.Render(symbolOK), c.Description)
			}
			continue
		}
		fmt.Fprintf(b, "      %s %s\n", s.fail.Render(symbolFail), c.Description)
		if c.Reason != "" {
			fmt.Fprintf(b, "          %s\n", c.Reason)
		}
		if c.Expected != "" || c.Actual != "" {
			fmt.Fprintf(b, "          %s %q\n", s.muted.Render("expected:"), c.Expected)
			fmt.Fprintf(b, "          %s %q\n", s.muted.Render("actual:  "), c.Actual)
		}
	}

	if o.Error != "" {
		fmt.Fprintf(b, "      %s %s\n", s.fail.Render("error:"), o.Error)
	}
}

// RenderSummary renders the totals of a suite run.
func RenderSummary(results []*Result, opts TextOptions) string {
	s := newTextStyles(opts.Color)
	sum := Summarize(results)

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", s.bold.Render("Summary:"))
	fmt.Fprintf(&b, "  Total:    %d\n", sum.Total)
	fmt.Fprintf(&b, "  Passed:   %s\n", s.ok.Render(fmt.Sprint(sum.Passed)))
	if sum.Failed > 0 {
		fmt.Fprintf(&b, "  Failed:   %s\n", s.fail.Render(fmt.Sprint(sum.Failed)))
	} else {
		fmt.Fprintf(&b, "  Failed:   0\n")
	}
	if sum.Errored > 0 {
		fmt.Fprintf(&b, "  Errored:  %s\n", s.fail.Render(fmt.Sprint(sum.Errored)))
	}
	fmt.Fprintf(&b, "  Duration: %s\n", formatDuration(sum.Duration))
	return b.String()
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(10 * time.Millisecond).String()
}
