package report

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"

	"github.com/devicelab-dev/browserscope/pkg/core"
)

// Allure result schema types.

// AllureResult represents a single test result in Allure format.
type AllureResult struct {
	UUID          string              `json:"uuid"`
	HistoryID     string              `json:"historyId"`
	FullName      string              `json:"fullName"`
	Name          string              `json:"name"`
	Status        string              `json:"status"`
	Stage         string              `json:"stage"`
	Start         int64               `json:"start"`
	Stop          int64               `json:"stop"`
	Labels        []AllureLabel       `json:"labels"`
	StatusDetails AllureStatusDetails `json:"statusDetails"`
	Steps         []AllureStep        `json:"steps"`
}

// AllureStep represents a step within a test result.
type AllureStep struct {
	Name          string              `json:"name"`
	Status        string              `json:"status"`
	Stage         string              `json:"stage"`
	Start         int64               `json:"start"`
	Stop          int64               `json:"stop"`
	StatusDetails AllureStatusDetails `json:"statusDetails"`
	Steps         []AllureStep        `json:"steps"`
}

// AllureLabel represents a label on a test result.
type AllureLabel struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// AllureStatusDetails holds failure message and trace.
type AllureStatusDetails struct {
	Message string `json:"message,omitempty"`
	Trace   string `json:"trace,omitempty"`
}

// AllureCategory defines a failure category with regex matching.
type AllureCategory struct {
	Name            string   `json:"name"`
	MatchedStatuses []string `json:"matchedStatuses"`
	MessageRegex    string   `json:"messageRegex"`
}

// GenerateAllure writes Allure result files to <reportDir>/allure-results/
// from the report.json found in reportDir.
func GenerateAllure(reportDir string) error {
	r, err := ReadReport(reportDir)
	if err != nil {
		return fmt.Errorf("read report: %w", err)
	}

	allureDir := filepath.Join(reportDir, AllureDir)
	if err := os.MkdirAll(allureDir, 0o755); err != nil {
		return fmt.Errorf("create allure-results dir: %w", err)
	}

	for i := range r.Flows {
		result := buildAllureResult(r, &r.Flows[i], i)
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal allure result for %s: %w", result.Name, err)
		}
		path := filepath.Join(allureDir, result.UUID+"-result.json")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write allure result %s: %w", result.Name, err)
		}
	}

	if err := writeAllureCategories(allureDir); err != nil {
		return err
	}
	return writeAllureEnvironment(allureDir, r)
}

// buildAllureResult builds an AllureResult from one flow.
func buildAllureResult(r *Report, f *core.FlowResult, flowIndex int) AllureResult {
	labels := []AllureLabel{
		{Name: "suite", Value: r.Name},
		{Name: "parentSuite", Value: filepath.Base(f.FilePath)},
		{Name: "framework", Value: "browserscope"},
		{Name: "severity", Value: "normal"},
	}
	if f.Browser != nil {
		labels = append(labels, AllureLabel{Name: "host", Value: f.Browser.Driver})
	}
	for _, tag := range f.Tags {
		labels = append(labels, AllureLabel{Name: "tag", Value: tag})
	}

	start := f.StartTime.UnixMilli()
	return AllureResult{
		UUID:          fmt.Sprintf("%s-%03d", r.RunID, flowIndex),
		HistoryID:     fnv32aHash(f.Name + ":" + f.FilePath),
		FullName:      f.Name,
		Name:          f.Name,
		Status:        mapAllureStatus(f.Status),
		Stage:         "finished",
		Start:         start,
		Stop:          start + f.Duration.Milliseconds(),
		Labels:        labels,
		StatusDetails: AllureStatusDetails{Message: f.Error},
		Steps:         buildAllureSteps(f.Steps),
	}
}

// buildAllureSteps recursively builds Allure steps from step results.
func buildAllureSteps(results []core.StepResult) []AllureStep {
	steps := make([]AllureStep, 0, len(results))
	for _, s := range results {
		name := s.Message
		if s.Label != "" {
			name = s.Label + ": " + s.Message
		}
		start := s.StartTime.UnixMilli()
		steps = append(steps, AllureStep{
			Name:          name,
			Status:        mapAllureStatus(s.Status),
			Stage:         "finished",
			Start:         start,
			Stop:          start + s.Duration.Milliseconds(),
			StatusDetails: AllureStatusDetails{Message: s.Error},
			Steps:         buildAllureSteps(s.Children),
		})
	}
	return steps
}

// mapAllureStatus maps a step status to Allure's vocabulary. Allure's
// "broken" is the errored case.
func mapAllureStatus(s core.StepStatus) string {
	switch s {
	case core.StatusPassed, core.StatusWarned:
		return "passed"
	case core.StatusFailed:
		return "failed"
	case core.StatusErrored:
		return "broken"
	case core.StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// fnv32aHash returns a hex-encoded FNV-32a hash of the input string.
func fnv32aHash(s string) string {
	h := fnv.New32a()
	h.Write([]byte(s))
	return fmt.Sprintf("%08x", h.Sum32())
}

// writeAllureCategories writes categories.json for failure categorization.
func writeAllureCategories(allureDir string) error {
	categories := []AllureCategory{
		{Name: "Element Not Found", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*not found.*"},
		{Name: "Ambiguous Match", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*elements match.*"},
		{Name: "Timeout", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*timeout.*|.*no expected state.*"},
		{Name: "Unexpected Content", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*still present.*"},
		{Name: "Driver Error", MatchedStatuses: []string{"broken"}, MessageRegex: "(?i).*driver.*|.*stale element.*"},
		{Name: "Invalid Locator", MatchedStatuses: []string{"broken"}, MessageRegex: "(?i).*invalid.*"},
	}

	data, err := json.MarshalIndent(categories, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal categories: %w", err)
	}
	if err := os.WriteFile(filepath.Join(allureDir, "categories.json"), data, 0o644); err != nil {
		return fmt.Errorf("write categories.json: %w", err)
	}
	return nil
}

// writeAllureEnvironment writes environment.properties with browser metadata.
func writeAllureEnvironment(allureDir string, r *Report) error {
	var b strings.Builder
	b.WriteString("framework=browserscope\n")
	fmt.Fprintf(&b, "run.id=%s\n", r.RunID)
	if r.Runner.Version != "" {
		fmt.Fprintf(&b, "runner.version=%s\n", r.Runner.Version)
	}
	if r.Runner.Driver != "" {
		fmt.Fprintf(&b, "runner.driver=%s\n", r.Runner.Driver)
	}
	if r.Browser != nil && r.Browser.Browser != "" {
		fmt.Fprintf(&b, "browser.name=%s\n", r.Browser.Browser)
		fmt.Fprintf(&b, "browser.headless=%t\n", r.Browser.Headless)
	}

	if err := os.WriteFile(filepath.Join(allureDir, "environment.properties"), []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write environment.properties: %w", err)
	}
	return nil
}
