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

package suite

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tombee/credence/internal/commands/shared"
	"github.com/tombee/credence/schemas"
)

// SchemaFile is where schema --write puts the schema.
var SchemaFile = filepath.Join("schemas", "suite.schema.json")

// NewSchemaCommand creates the schema command
func NewSchemaCommand() *cobra.Command {
	var (
		outputFormat string
		writeToFile  bool
		force        bool
	)

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Output the suite JSON Schema",
		Long: `Output the embedded JSON Schema for suite files, for editor completion and
validation. Use --write to save it to ./schemas/suite.schema.json.`,
		Example: `  credence schema
  credence schema --output yaml
  credence schema --write`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var doc any
			if err := json.Unmarshal(schemas.SuiteSchema(), &doc); err != nil {
				return fmt.Errorf("failed to parse embedded schema: %w", err)
			}

			var (
				output []byte
				err    error
			)
			switch outputFormat {
			case "json":
				output, err = json.MarshalIndent(doc, "", "  ")
			case "yaml":
				output, err = yaml.Marshal(doc)
			default:
				return shared.NewConfigError(fmt.Sprintf("invalid output format: %s (must be 'json' or 'yaml')", outputFormat), nil)
			}
			if err != nil {
				return fmt.Errorf("failed to encode schema: %w", err)
			}

			if !writeToFile {
				fmt.Fprintln(cmd.OutOrStdout(), string(output))
				return nil
			}

			if _, err := os.Stat(SchemaFile); err == nil && !force {
				return &shared.ExitError{
					Code:    shared.ExitFailed,
					Message: fmt.Sprintf("file already exists: %s (use --force to overwrite)", SchemaFile),
				}
			}
			if err := os.MkdirAll(filepath.Dir(SchemaFile), 0o755); err != nil {
				return &shared.ExitError{Code: shared.ExitFailed, Message: "failed to create directory", Cause: err}
			}
			if err := os.WriteFile(SchemaFile, schemas.SuiteSchema(), 0o644); err != nil {
				return &shared.ExitError{Code: shared.ExitFailed, Message: "failed to write schema", Cause: err}
			}
			fmt.Fprintln(cmd.OutOrStdout(), shared.RenderOK("schema written to "+SchemaFile, shared.UseColor("auto", cmd.OutOrStdout())))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", "json", "Output format (json, yaml)")
	cmd.Flags().BoolVarP(&writeToFile, "write", "w", false, "Write to ./schemas/suite.schema.json")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing schema file")
	return cmd
}
