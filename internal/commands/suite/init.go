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

// Package suite implements the init and schema commands.
package suite

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tombee/credence/internal/commands/shared"
	"github.com/tombee/credence/internal/config"
	"github.com/tombee/credence/internal/examples"
)

const starterConfig = `# credence configuration. Values may reference environment variables as ${VAR};
# a .env file in this directory is loaded first.
llm:
  provider: openai
  model: gpt-4o-mini
  # api_key defaults to OPENAI_API_KEY or ANTHROPIC_API_KEY

chatbot:
  endpoint: http://localhost:8080/chat
  reply_field: reply
  metadata_field: metadata
  # actions:
  #   reset: http://localhost:8080/reset

run:
  concurrency: 4
  output: text
`

// NewInitCommand creates the init command
func NewInitCommand() *cobra.Command {
	var (
		example string
		list    bool
		force   bool
	)

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Create a starter config and example suite",
		Long: `Init writes credence.yaml and an example suite into dir (default: the
current directory). Existing files are kept unless --force is given.`,
		Example: `  credence init
  credence init tests --example support
  credence init --list`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if list {
				return listExamples(cmd)
			}

			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			if !examples.Exists(example) {
				return shared.NewConfigError(fmt.Sprintf("unknown example %q (see credence init --list)", example), nil)
			}

			color := shared.UseColor("auto", cmd.OutOrStdout())
			out := cmd.OutOrStdout()

			cfgPath := filepath.Join(dir, config.FileNames[0])
			wroteConfig, err := writeIfAbsent(cfgPath, []byte(starterConfig), force)
			if err != nil {
				return &shared.ExitError{Code: shared.ExitFailed, Message: "failed to write config", Cause: err}
			}
			if wroteConfig {
				fmt.Fprintln(out, shared.RenderOK("created "+cfgPath, color))
			} else {
				msg := "kept existing " + cfgPath
				if color {
					msg = shared.Muted.Render(msg)
				}
				fmt.Fprintln(out, msg)
			}

			path, err := examples.WriteTo(example, dir, force)
			if err != nil {
				return &shared.ExitError{Code: shared.ExitFailed, Message: "failed to write example suite", Cause: err}
			}
			fmt.Fprintln(out, shared.RenderOK("created "+path, color))
			fmt.Fprintf(out, "\nEdit chatbot.endpoint, then run: credence run %s\n", dir)
			return nil
		},
	}

	cmd.Flags().StringVar(&example, "example", "quickstart", "Example suite to write")
	cmd.Flags().BoolVar(&list, "list", false, "List the available examples")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing files")
	return cmd
}

func listExamples(cmd *cobra.Command) error {
	list, err := examples.List()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	for _, ex := range list {
		fmt.Fprintf(w, "%s\t%s\n", ex.Name, ex.Description)
	}
	return w.Flush()
}

func writeIfAbsent(path string, content []byte, force bool) (bool, error) {
	if _, err := os.Stat(path); err == nil && !force {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, err
	}
	return true, os.WriteFile(path, content, 0o644)
}
