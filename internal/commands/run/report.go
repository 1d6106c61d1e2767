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

package run

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tombee/credence/internal/commands/shared"
	"github.com/tombee/credence/internal/config"
	"github.com/tombee/credence/pkg/result"
)

// writeReport renders results in the configured format to the output file
// or stdout.
func writeReport(cmd *cobra.Command, cfg *config.Config, name string, results []*result.Result) error {
	var w io.Writer = cmd.OutOrStdout()
	if cfg.Run.OutputFile != "" {
		f, err := os.Create(cfg.Run.OutputFile)
		if err != nil {
			return fmt.Errorf("failed to create report file: %w", err)
		}
		defer f.Close()
		w = f
	}

	data, err := render(cfg.Run.Output, name, results, shared.UseColor(cfg.Run.Color, w))
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if cfg.Run.OutputFile != "" && !shared.GetQuiet() {
		summary := result.Summarize(results)
		fmt.Fprintf(cmd.ErrOrStderr(), "%d passed, %d failed, %d errored; report written to %s\n",
			summary.Passed, summary.Failed, summary.Errored, cfg.Run.OutputFile)
	}
	return nil
}

func render(format, name string, results []*result.Result, color bool) ([]byte, error) {
	switch format {
	case "json":
		return result.RenderJSON(results)

	case "junit":
		return result.RenderJUnit(name, results)

	case "markdown":
		var sb strings.Builder
		for i, r := range results {
			if i > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(result.RenderMarkdown(r))
		}
		return []byte(sb.String()), nil

	case "text", "":
		opts := result.TextOptions{Color: color, Verbose: shared.GetVerbose()}
		var sb strings.Builder
		for _, r := range results {
			if shared.GetQuiet() && r.Passed() {
				continue
			}
			sb.WriteString(result.RenderText(r, opts))
			sb.WriteString("\n")
		}
		sb.WriteString(result.RenderSummary(results, opts))
		return []byte(sb.String()), nil

	default:
		return nil, shared.NewConfigError(fmt.Sprintf("unknown output format %q", format), nil)
	}
}
