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
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/tombee/credence/pkg/errors"
)

// Extensions are the file suffixes recognised as suite files.
var Extensions = []string{".credence.yaml", ".credence.yml", ".credence.json"}

// Pattern matches suite files below a directory.
const Pattern = "**/*.credence.{yaml,yml,json}"

// Discover expands paths into a sorted, de-duplicated list of suite files.
// A directory is searched recursively with Pattern; a glob is expanded as
// is; a plain file is taken whatever its name. With no paths the working
// directory is searched.
func Discover(paths []string) ([]string, error) {
	if len(paths) == 0 {
		paths = []string{"."}
	}

	seen := make(map[string]bool)
	var files []string
	add := func(p string) {
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		switch {
		case err == nil && info.IsDir():
			matches, err := doublestar.Glob(os.DirFS(p), Pattern, doublestar.WithFilesOnly())
			if err != nil {
				return nil, errors.Wrapf(err, "searching %s", p)
			}
			for _, m := range matches {
				add(filepath.Join(p, filepath.FromSlash(m)))
			}

		case err == nil:
			add(p)

		case hasMeta(p):
			matches, err := doublestar.FilepathGlob(p, doublestar.WithFilesOnly())
			if err != nil {
				return nil, errors.Wrapf(err, "expanding %s", p)
			}
			for _, m := range matches {
				add(m)
			}

		case errors.Is(err, fs.ErrNotExist):
			return nil, &errors.NotFoundError{Resource: "suite path", ID: p}

		default:
			return nil, errors.Wrapf(err, "reading %s", p)
		}
	}

	slices.Sort(files)
	return files, nil
}

// IsSuiteFile reports whether name carries a suite file extension.
func IsSuiteFile(name string) bool {
	for _, ext := range Extensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

func hasMeta(p string) bool {
	return strings.ContainsAny(p, "*?[{")
}
