package core

import (
	"time"
)

// StepResult is the outcome of one flow step. Container steps (within,
// withTimeouts, waitForState) carry the results of their body in Children.
type StepResult struct {
	Index    int           `json:"index"`
	Command  string        `json:"command"` // clickButton, assertContent, ...
	Label    string        `json:"label,omitempty"`
	Status   StepStatus    `json:"status"`
	Category ErrorCategory `json:"errorCategory,omitempty"`

	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	Message string       `json:"message,omitempty"` // step description
	Element *ElementInfo `json:"element,omitempty"` // element acted on
	Data    interface{}  `json:"data,omitempty"`    // script output, matched state
	Error   string       `json:"error,omitempty"`

	Children []StepResult `json:"children,omitempty"`
}

// FirstFailure returns the innermost failed step of the first failing
// top-level step, or nil if nothing failed.
func FirstFailure(steps []StepResult) *StepResult {
	for i := range steps {
		s := &steps[i]
		if !s.Status.IsFailure() {
			continue
		}
		if inner := FirstFailure(s.Children); inner != nil {
			return inner
		}
		return s
	}
	return nil
}

// StepCounts tallies top-level step statuses.
type StepCounts struct {
	TotalSteps   int `json:"totalSteps"`
	PassedSteps  int `json:"passedSteps"`
	FailedSteps  int `json:"failedSteps"`
	SkippedSteps int `json:"skippedSteps"`
	WarnedSteps  int `json:"warnedSteps"`
}

// FlowResult is the outcome of one flow file.
type FlowResult struct {
	Name     string       `json:"name"`
	FilePath string       `json:"filePath"`
	Tags     []string     `json:"tags,omitempty"`
	Browser  *BrowserInfo `json:"browser,omitempty"`

	Status    StepStatus    `json:"status"`
	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	Steps []StepResult `json:"steps"`
	StepCounts

	Error string `json:"error,omitempty"`
}

// ComputeSummary recounts StepCounts from Steps.
func (f *FlowResult) ComputeSummary() {
	f.StepCounts = StepCounts{TotalSteps: len(f.Steps)}
	for _, step := range f.Steps {
		switch {
		case step.Status == StatusPassed:
			f.PassedSteps++
		case step.Status.IsFailure():
			f.FailedSteps++
		case step.Status == StatusSkipped:
			f.SkippedSteps++
		case step.Status == StatusWarned:
			f.WarnedSteps++
		}
	}
}

// AggregateStatus derives the flow status from its steps: failed if any
// step failed, warned if an optional step failed, passed otherwise.
func (f *FlowResult) AggregateStatus() StepStatus {
	status := StatusPassed
	for _, step := range f.Steps {
		if step.Status.IsFailure() {
			return StatusFailed
		}
		if step.Status == StatusWarned {
			status = StatusWarned
		}
	}
	return status
}

// SuiteResult is the outcome of one run over a set of flows.
type SuiteResult struct {
	Name  string `json:"name"`
	RunID string `json:"runId"`

	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	Flows []FlowResult `json:"flows"`

	TotalFlows   int `json:"totalFlows"`
	PassedFlows  int `json:"passedFlows"`
	FailedFlows  int `json:"failedFlows"`
	SkippedFlows int `json:"skippedFlows"`
}

// ComputeSummary recounts the flow totals. Warned flows count as passed.
func (s *SuiteResult) ComputeSummary() {
	s.TotalFlows, s.PassedFlows, s.FailedFlows, s.SkippedFlows = len(s.Flows), 0, 0, 0
	for _, f := range s.Flows {
		switch {
		case f.Status.IsSuccess():
			s.PassedFlows++
		case f.Status.IsFailure():
			s.FailedFlows++
		case f.Status == StatusSkipped:
			s.SkippedFlows++
		}
	}
}

// Success reports whether the suite ran at least one flow and every flow
// passed or warned.
func (s *SuiteResult) Success() bool {
	for _, f := range s.Flows {
		if !f.Status.IsSuccess() {
			return false
		}
	}
	return len(s.Flows) > 0
}
