package report

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/devicelab-dev/browserscope/pkg/core"
)

// JUnit schema, as read by common CI servers.

type junitTestSuites struct {
	XMLName  xml.Name         `xml:"testsuites"`
	Name     string           `xml:"name,attr"`
	Tests    int              `xml:"tests,attr"`
	Failures int              `xml:"failures,attr"`
	Errors   int              `xml:"errors,attr"`
	Skipped  int              `xml:"skipped,attr"`
	Time     string           `xml:"time,attr"`
	Suites   []junitTestSuite `xml:"testsuite"`
}

type junitTestSuite struct {
	Name       string          `xml:"name,attr"`
	ID         string          `xml:"id,attr,omitempty"`
	Tests      int             `xml:"tests,attr"`
	Failures   int             `xml:"failures,attr"`
	Errors     int             `xml:"errors,attr"`
	Skipped    int             `xml:"skipped,attr"`
	Time       string          `xml:"time,attr"`
	Timestamp  string          `xml:"timestamp,attr"`
	Properties []junitProperty `xml:"properties>property,omitempty"`
	Cases      []junitTestCase `xml:"testcase"`
}

type junitProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type junitTestCase struct {
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *junitProblem `xml:"failure,omitempty"`
	Error     *junitProblem `xml:"error,omitempty"`
	Skipped   *junitSkipped `xml:"skipped,omitempty"`
	SystemOut string        `xml:"system-out,omitempty"`
}

type junitProblem struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

type junitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// WriteJUnit writes r as JUnit XML to path, creating parent directories.
func WriteJUnit(path string, r *Report) error {
	data, err := MarshalJUnit(r)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create junit dir: %w", err)
	}
	return atomicWrite(path, data)
}

// MarshalJUnit renders r as JUnit XML. A flow whose failing step is an
// assertion or timeout becomes a <failure>; driver and configuration
// problems become an <error>.
func MarshalJUnit(r *Report) ([]byte, error) {
	suite := junitTestSuite{
		Name:      r.Name,
		ID:        r.RunID,
		Time:      seconds(r.Duration),
		Timestamp: r.StartTime.UTC().Format(time.RFC3339),
	}
	if r.Browser != nil {
		suite.Properties = []junitProperty{
			{Name: "driver", Value: r.Browser.Driver},
			{Name: "browser", Value: r.Browser.Browser},
		}
	}

	for _, f := range r.Flows {
		tc := junitTestCase{
			Name:      f.Name,
			ClassName: className(f.FilePath),
			Time:      seconds(f.Duration),
			SystemOut: stepLog(f.Steps, 0),
		}
		switch f.Status {
		case core.StatusSkipped:
			tc.Skipped = &junitSkipped{Message: f.Error}
			suite.Skipped++
		case core.StatusFailed, core.StatusErrored:
			problem, errored := flowProblem(f)
			if errored {
				tc.Error = problem
				suite.Errors++
			} else {
				tc.Failure = problem
				suite.Failures++
			}
		}
		suite.Cases = append(suite.Cases, tc)
		suite.Tests++
	}

	doc := junitTestSuites{
		Name:     r.Name,
		Tests:    suite.Tests,
		Failures: suite.Failures,
		Errors:   suite.Errors,
		Skipped:  suite.Skipped,
		Time:     suite.Time,
		Suites:   []junitTestSuite{suite},
	}
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal junit: %w", err)
	}
	return append([]byte(xml.Header), append(out, '\n')...), nil
}

// flowProblem describes the first failing step, searching nested steps.
func flowProblem(f core.FlowResult) (*junitProblem, bool) {
	step := core.FirstFailure(f.Steps)
	if step == nil {
		return &junitProblem{Message: f.Error, Type: "failure", Body: f.Error}, false
	}
	p := &junitProblem{
		Message: step.Error,
		Type:    step.Category.String(),
		Body:    fmt.Sprintf("step %d (%s): %s", step.Index+1, step.Message, step.Error),
	}
	return p, step.Status == core.StatusErrored
}

func stepLog(steps []core.StepResult, depth int) string {
	var b strings.Builder
	for _, s := range steps {
		fmt.Fprintf(&b, "%s[%s] %s\n", strings.Repeat("  ", depth), s.Status, s.Message)
		b.WriteString(stepLog(s.Children, depth+1))
	}
	return b.String()
}

func className(path string) string {
	if path == "" {
		return "browserscope"
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}
