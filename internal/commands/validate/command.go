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

// Package validate implements the validate command.
package validate

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/tombee/credence/internal/commands/shared"
	"github.com/tombee/credence/internal/config"
	"github.com/tombee/credence/internal/suite"
	"github.com/tombee/credence/pkg/conversation"
	"github.com/tombee/credence/pkg/errors"
)

// FileReport is the validation outcome of one suite file.
type FileReport struct {
	Path          string               `json:"path"`
	Valid         bool                 `json:"valid"`
	Error         string               `json:"error,omitempty"`
	Conversations []ConversationReport `json:"conversations,omitempty"`
}

// ConversationReport describes one runnable conversation.
type ConversationReport struct {
	Title string `json:"title"`
	Steps int    `json:"steps"`
	Error string `json:"error,omitempty"`
}

// NewCommand creates the validate command
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [paths...]",
		Short: "Check suite files without running them",
		Long: `Validate checks that suite files conform to the suite schema, that every
nested conversation exists and that no conversation nests itself.

When the configuration names chatbot actions, external interactions are
also checked against them. Nothing is sent to the chatbot or the LLM.`,
		Example: `  credence validate
  credence validate tests/ --json`,
		RunE: runValidate,
	}
	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	actions, err := configuredActions()
	if err != nil {
		return shared.NewConfigError("invalid configuration", err)
	}

	files, err := suite.Discover(args)
	if err != nil {
		return shared.NewConfigError("cannot find suites", err)
	}
	if len(files) == 0 {
		return shared.NewConfigError("no suite files found", nil)
	}

	reports := make([]FileReport, 0, len(files))
	valid := true
	for _, path := range files {
		r := validateFile(path, actions)
		valid = valid && r.Valid
		reports = append(reports, r)
	}

	if shared.GetJSON() {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			return err
		}
	} else {
		printReports(cmd, reports)
	}

	if !valid {
		return &shared.ExitError{Code: shared.ExitConfigError}
	}
	return nil
}

// configuredActions returns the chatbot action names from the configuration,
// or nil when none are configured.
func configuredActions() (map[string]bool, error) {
	cfg, err := shared.LoadConfig()
	if err != nil {
		return nil, err
	}
	if len(cfg.Chatbot.Actions) == 0 {
		return nil, nil
	}
	return actionSet(cfg), nil
}

func actionSet(cfg *config.Config) map[string]bool {
	set := make(map[string]bool, len(cfg.Chatbot.Actions))
	for name := range cfg.Chatbot.Actions {
		set[name] = true
	}
	return set
}

func validateFile(path string, actions map[string]bool) FileReport {
	report := FileReport{Path: path, Valid: true}

	s, err := suite.LoadFile(path)
	if err != nil {
		report.Valid = false
		report.Error = err.Error()
		return report
	}

	for _, c := range s.Runnable() {
		cr := ConversationReport{Title: c.Title}
		steps, err := validateConversation(c, actions)
		cr.Steps = steps
		if err != nil {
			cr.Error = err.Error()
			report.Valid = false
		}
		report.Conversations = append(report.Conversations, cr)
	}
	return report
}

func validateConversation(c *conversation.Conversation, actions map[string]bool) (int, error) {
	if err := conversation.Validate(c); err != nil {
		return 0, err
	}
	steps, err := conversation.Flatten(c)
	if err != nil {
		return 0, err
	}
	if actions == nil {
		return len(steps), nil
	}
	for _, s := range steps {
		ext, ok := s.Interaction.(conversation.External)
		if ok && !actions[ext.Action] {
			return len(steps), &errors.UnknownActionError{Name: ext.Action, Index: s.Index, Owner: s.Owner}
		}
	}
	return len(steps), nil
}

func printReports(cmd *cobra.Command, reports []FileReport) {
	color := shared.UseColor("auto", cmd.OutOrStdout())
	out := cmd.OutOrStdout()

	sort.SliceStable(reports, func(i, j int) bool { return reports[i].Path < reports[j].Path })
	for _, r := range reports {
		if r.Error != "" {
			fmt.Fprintln(out, shared.RenderError(r.Path, color))
			fmt.Fprintf(out, "    %s\n", r.Error)
			continue
		}
		if r.Valid {
			fmt.Fprintln(out, shared.RenderOK(fmt.Sprintf("%s (%d conversations)", r.Path, len(r.Conversations)), color))
		} else {
			fmt.Fprintln(out, shared.RenderError(r.Path, color))
		}
		if !r.Valid || shared.GetVerbose() {
			for _, c := range r.Conversations {
				if c.Error != "" {
					fmt.Fprintf(out, "    %s: %s\n", c.Title, c.Error)
				} else {
					fmt.Fprintf(out, "    %s: %d steps\n", c.Title, c.Steps)
				}
			}
		}
	}
}
