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
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"
)

// RenderJSON renders results as an indented JSON document with a summary.
func RenderJSON(results []*Result) ([]byte, error) {
	doc := struct {
		Summary Summary   `json:"summary"`
		Results []*Result `json:"results"`
	}{
		Summary: Summarize(results),
		Results: results,
	}
	if doc.Results == nil {
		doc.Results = []*Result{}
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal results: %w", err)
	}
	return append(out, '\n'), nil
}

type junitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Content string `xml:",chardata"`
}

type junitTestCase struct {
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *junitFailure `xml:"failure,omitempty"`
	Error     *junitFailure `xml:"error,omitempty"`
	SystemOut string        `xml:"system-out,omitempty"`
}

type junitTestSuite struct {
	XMLName   xml.Name        `xml:"testsuite"`
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Errors    int             `xml:"errors,attr"`
	Time      string          `xml:"time,attr"`
	TestCases []junitTestCase `xml:"testcase"`
}

// RenderJUnit renders results as a JUnit XML test suite, one test case per
// conversation. Check failures become <failure>, halted runs <error>.
func RenderJUnit(suiteName string, results []*Result) ([]byte, error) {
	sum := Summarize(results)
	suite := junitTestSuite{
		Name:      suiteName,
		Tests:     sum.Total,
		Failures:  sum.Failed,
		Errors:    sum.Errored,
		Time:      fmt.Sprintf("%.3f", sum.Duration.Seconds()),
		TestCases: make([]junitTestCase, len(results)),
	}

	for i, r := range results {
		tc := junitTestCase{
			Name:      r.Title,
			Classname: suiteName,
			Time:      fmt.Sprintf("%.3f", r.Duration.Seconds()),
		}

		switch r.Status() {
		case "error":
			halt := r.HaltError()
			tc.Error = &junitFailure{
				Message: halt.Message,
				Type:    string(halt.Class),
				Content: describeErrors(r.Errors),
			}
		case "fail":
			failures := r.Failures()
			tc.Failure = &junitFailure{
				Message: fmt.Sprintf("%d check(s) failed", len(failures)),
				Type:    "AssertionError",
				Content: describeErrors(failures),
			}
		}

		if len(r.Transcript) > 0 {
			var sb strings.Builder
			for _, m := range r.Transcript {
				fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Content)
			}
			tc.SystemOut = sb.String()
		}

		suite.TestCases[i] = tc
	}

	out, err := xml.MarshalIndent(suite, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JUnit XML: %w", err)
	}

	var b strings.Builder
	b.WriteString(xml.Header)
	b.Write(out)
	b.WriteString("\n")
	return []byte(b.String()), nil
}

func describeErrors(errs []Error) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		msg := fmt.Sprintf("#%d %s: %s", e.Index+1, e.Interaction, e.Message)
		if e.Expected != "" || e.Actual != "" {
			msg += fmt.Sprintf("\nExpected: %q\nActual: %q", e.Expected, e.Actual)
		}
		parts = append(parts, msg)
	}
	return strings.Join(parts, "\n\n")
}
