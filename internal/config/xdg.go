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

package config

import (
	"errors"
	"os"
	"path/filepath"
)

// FileNames are the config file names looked up in the working directory.
var FileNames = []string{"credence.yaml", "credence.yml"}

// ConfigDir returns the XDG config directory for credence
// (~/.config/credence unless XDG_CONFIG_HOME is set). It is not created.
func ConfigDir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "credence"), nil
}

// ConfigPath returns the full path to the user config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Find returns the config file to load: explicit when set, else the first
// of FileNames in the working directory, else the user config file. It
// returns "" when none exists. An explicit path is returned even if missing
// so that Load reports it.
func Find(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range FileNames {
		if exists(name) {
			return name
		}
	}
	if path, err := ConfigPath(); err == nil && exists(path) {
		return path
	}
	return ""
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, os.ErrNotExist)
}
