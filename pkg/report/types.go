// Package report writes run results to disk.
//
// Layout of an output directory:
//   - report.json: the complete run (suite summary, flows, nested steps)
//   - junit-report.xml: one testsuite per run, one testcase per flow
//   - report.html: a self-contained page rendered from report.json
//   - allure-results/: Allure result files rendered from report.json
//
// report.json is the single source of truth; the other formats are derived
// from it and can be regenerated with ReadReport.
package report

import (
	"time"

	"github.com/devicelab-dev/browserscope/pkg/core"
)

// Version is the report schema version.
const Version = "1.0.0"

// File names inside an output directory.
const (
	JSONFile  = "report.json"
	JUnitFile = "junit-report.xml"
	HTMLFile  = "report.html"
	AllureDir = "allure-results"
)

// Status is the overall run status.
type Status string

// Status values.
const (
	StatusPassed Status = "passed"
	StatusFailed Status = "failed"
)

// Report is the content of report.json.
type Report struct {
	Version   string            `json:"version"`
	RunID     string            `json:"runId"`
	Name      string            `json:"name"`
	Status    Status            `json:"status"`
	StartTime time.Time         `json:"startTime"`
	EndTime   time.Time         `json:"endTime"`
	Duration  time.Duration     `json:"duration"`
	Runner    RunnerInfo        `json:"runner"`
	Browser   *core.BrowserInfo `json:"browser,omitempty"`
	Summary   Summary           `json:"summary"`
	Flows     []core.FlowResult `json:"flows"`
}

// RunnerInfo identifies the tool that produced the report.
type RunnerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
	Driver  string `json:"driver,omitempty"`
}

// Summary counts flows by outcome.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Build converts a suite result into a report.
func Build(suite *core.SuiteResult, runner RunnerInfo) *Report {
	if runner.Name == "" {
		runner.Name = "browserscope"
	}
	r := &Report{
		Version:   Version,
		RunID:     suite.RunID,
		Name:      suite.Name,
		StartTime: suite.StartTime,
		EndTime:   suite.StartTime.Add(suite.Duration),
		Duration:  suite.Duration,
		Runner:    runner,
		Summary: Summary{
			Total:   suite.TotalFlows,
			Passed:  suite.PassedFlows,
			Failed:  suite.FailedFlows,
			Skipped: suite.SkippedFlows,
		},
		Flows: suite.Flows,
	}
	if r.Flows == nil {
		r.Flows = []core.FlowResult{}
	}

	r.Status = StatusFailed
	if suite.Success() {
		r.Status = StatusPassed
	}
	for _, f := range suite.Flows {
		if f.Browser != nil {
			r.Browser = f.Browser
			if r.Runner.Driver == "" {
				r.Runner.Driver = f.Browser.Driver
			}
			break
		}
	}
	return r
}
