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

package version

import (
	"bytes"
	"encoding/json"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/credence/internal/commands/shared"
)

func execute(t *testing.T) string {
	t.Helper()
	cmd := NewCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestVersion_Text(t *testing.T) {
	t.Cleanup(shared.ResetFlagsForTest)
	shared.SetVersion("1.2.3", "abc123", "2025-01-01")

	out := execute(t)
	assert.Contains(t, out, "credence 1.2.3")
	assert.Contains(t, out, "commit:     abc123")
	assert.Contains(t, out, "build date: 2025-01-01")
	assert.Contains(t, out, runtime.Version())
}

func TestVersion_JSON(t *testing.T) {
	t.Cleanup(shared.ResetFlagsForTest)
	shared.SetVersion("1.2.3", "abc123", "2025-01-01")
	_, _, jsonFlag, _ := shared.RegisterFlagPointers()
	*jsonFlag = true

	var info Info
	require.NoError(t, json.Unmarshal([]byte(execute(t)), &info))
	assert.Equal(t, "1.2.3", info.Version)
	assert.Equal(t, "abc123", info.Commit)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
}

func TestCurrent_Unset(t *testing.T) {
	t.Cleanup(shared.ResetFlagsForTest)
	shared.SetVersion("", "", "")

	info := Current()
	assert.NotEmpty(t, info.Version)
	assert.Equal(t, "unknown", info.Commit)
	assert.Equal(t, "unknown", info.BuildDate)
}
