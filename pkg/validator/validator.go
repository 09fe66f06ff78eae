// Package validator checks flow files before a browser is started.
// It parses every file upfront and rejects selectors, URLs and timeouts
// that could only fail at run time.
package validator

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/xpath"

	"github.com/devicelab-dev/browserscope/pkg/flow"
)

// ValidationError represents a validation error with context.
type ValidationError struct {
	File    string
	Step    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("%s: %s: %s", e.File, e.Step, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// Result contains the validation result.
type Result struct {
	// Flows are the parsed flows that passed the tag filters, in file order.
	Flows []*flow.Flow
	// Errors contains all validation errors found.
	Errors []error
}

// IsValid returns true if there are no validation errors.
func (r *Result) IsValid() bool {
	return len(r.Errors) == 0
}

// Validator validates flow files.
type Validator struct {
	includeTags []string
	excludeTags []string
}

// New creates a new Validator.
func New(includeTags, excludeTags []string) *Validator {
	return &Validator{
		includeTags: includeTags,
		excludeTags: excludeTags,
	}
}

// Validate validates files and directories. A file listed twice, directly
// or through a directory, is checked once.
func (v *Validator) Validate(paths ...string) *Result {
	result := &Result{}
	seen := make(map[string]bool)

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			result.Errors = append(result.Errors, &ValidationError{
				File:    path,
				Message: fmt.Sprintf("cannot access: %v", err),
			})
			continue
		}

		files := []string{path}
		if info.IsDir() {
			files, err = collectFlowFiles(path)
			if err != nil {
				result.Errors = append(result.Errors, &ValidationError{
					File:    path,
					Message: fmt.Sprintf("failed to scan directory: %v", err),
				})
				continue
			}
		}

		for _, file := range files {
			key := filepath.Clean(file)
			if seen[key] {
				continue
			}
			seen[key] = true
			v.validateFile(file, result)
		}
	}
	return result
}

// collectFlowFiles finds all .yaml/.yml files in a directory, skipping
// workspace config files.
func collectFlowFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if base := filepath.Base(path); base == "browserscope.yaml" || base == "browserscope.yml" {
			return nil
		}
		files = append(files, path)
		return nil
	})

	sort.Strings(files)
	return files, err
}

func (v *Validator) validateFile(filePath string, result *Result) {
	f, err := flow.ParseFile(filePath)
	if err != nil {
		result.Errors = append(result.Errors, &ValidationError{
			File:    filePath,
			Message: fmt.Sprintf("parse error: %v", err),
		})
		return
	}

	if !flow.ShouldIncludeFlow(f, v.includeTags, v.excludeTags) {
		return
	}

	c := &checker{file: filePath}
	c.flowConfig(f.Config)
	c.steps(f.Steps)
	if len(c.errs) > 0 {
		result.Errors = append(result.Errors, c.errs...)
		return
	}
	result.Flows = append(result.Flows, f)
}

// checker collects the errors of one file.
type checker struct {
	file string
	errs []error
}

func (c *checker) fail(step flow.Step, format string, args ...interface{}) {
	e := &ValidationError{File: c.file, Message: fmt.Sprintf(format, args...)}
	if step != nil {
		e.Step = step.Describe()
	}
	c.errs = append(c.errs, e)
}

func (c *checker) flowConfig(cfg flow.Config) {
	if cfg.URL != "" && !hasVariable(cfg.URL) {
		if _, err := url.Parse(cfg.URL); err != nil {
			c.fail(nil, "invalid url %q: %v", cfg.URL, err)
		}
	}
	c.timeouts(nil, cfg.Timeouts)
}

func (c *checker) timeouts(step flow.Step, t flow.Timeouts) {
	for _, d := range []struct {
		name  string
		value *time.Duration
	}{
		{"timeout", t.Timeout},
		{"retryInterval", t.RetryInterval},
		{"waitBeforeRetry", t.WaitBeforeRetry},
	} {
		if d.value != nil && *d.value < 0 {
			c.fail(step, "%s must not be negative", d.name)
		}
	}
}

func (c *checker) steps(steps []flow.Step) {
	for _, step := range steps {
		if d := step.Timeout(); d != nil && *d < 0 {
			c.fail(step, "timeout must not be negative")
		}

		switch s := step.(type) {
		case *flow.VisitStep:
			if !hasVariable(s.URL) {
				if _, err := url.Parse(s.URL); err != nil {
					c.fail(step, "invalid url: %v", err)
				}
			}
		case *flow.ClickButtonUntilStep:
			if s.WaitBeforeRetry != nil && *s.WaitBeforeRetry < 0 {
				c.fail(step, "waitBeforeRetry must not be negative")
			}
		case *flow.ClickStep:
			c.target(step, s.Target)
		case *flow.HoverStep:
			c.target(step, s.Target)
		case *flow.ExistsStep:
			c.target(step, s.Target)
		case *flow.SelectorStep:
			switch s.Type() {
			case flow.StepAssertCSS, flow.StepAssertNoCSS:
				c.css(step, s.Selector)
			default:
				c.xpath(step, s.Selector)
			}
		case *flow.WithinStep:
			c.target(step, s.Target)
			c.steps(s.Steps)
		case *flow.WithTimeoutsStep:
			c.timeouts(step, s.Timeouts)
			c.steps(s.Steps)
		case *flow.WaitForStateStep:
			for _, st := range s.States {
				if st.CSS != "" {
					c.css(step, st.CSS)
				}
				if st.XPath != "" {
					c.xpath(step, st.XPath)
				}
				c.steps(st.Steps)
			}
		}
	}
}

func (c *checker) target(step flow.Step, t flow.Target) {
	kind, locator := t.Kind()
	switch kind {
	case flow.KindCSS:
		c.css(step, locator)
	case flow.KindXPath:
		c.xpath(step, locator)
	}
}

// css and xpath skip selectors built from variables; those are only known
// once the flow runs.
func (c *checker) css(step flow.Step, selector string) {
	if hasVariable(selector) {
		return
	}
	if _, err := cascadia.Compile(selector); err != nil {
		c.fail(step, "invalid CSS selector %q: %v", selector, err)
	}
}

func (c *checker) xpath(step flow.Step, expr string) {
	if hasVariable(expr) {
		return
	}
	if _, err := xpath.Compile(expr); err != nil {
		c.fail(step, "invalid XPath %q: %v", expr, err)
	}
}

func hasVariable(s string) bool {
	return strings.Contains(s, "${")
}
