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

// Package examples embeds the example suites written by credence init.
package examples

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

//go:embed *.credence.yaml
var embeddedFS embed.FS

const suffix = ".credence.yaml"

// Example describes one embedded suite.
type Example struct {
	Name        string
	Description string
	FileName    string
}

var descriptions = map[string]string{
	"quickstart": "One scripted turn with a response and an AI check",
	"support":    "Nested opening, simulated user, metadata and expression checks",
}

// List returns the embedded examples sorted by name.
func List() ([]Example, error) {
	entries, err := fs.ReadDir(embeddedFS, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded examples: %w", err)
	}

	var out []Example
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		name := strings.TrimSuffix(e.Name(), suffix)
		desc, ok := descriptions[name]
		if !ok {
			desc = "Example suite"
		}
		out = append(out, Example{Name: name, Description: desc, FileName: e.Name()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Get returns the content of the named example.
func Get(name string) ([]byte, error) {
	content, err := embeddedFS.ReadFile(name + suffix)
	if err != nil {
		return nil, fmt.Errorf("example %q not found", name)
	}
	return content, nil
}

// Exists reports whether an example with the given name is embedded.
func Exists(name string) bool {
	_, err := fs.Stat(embeddedFS, name+suffix)
	return err == nil
}

// WriteTo writes the named example into dir and returns the file path. An
// existing file is left alone unless overwrite is set.
func WriteTo(name, dir string, overwrite bool) (string, error) {
	content, err := Get(name)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, name+suffix)
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("%s already exists", path)
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("failed to write example: %w", err)
	}
	return path, nil
}
