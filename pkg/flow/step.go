package flow

import (
	"strconv"
	"time"
)

// StepType represents the type of step.
type StepType string

// Step type constants.
const (
	// Navigation & Interaction
	StepVisit            StepType = "visit"
	StepClick            StepType = "click"
	StepClickButton      StepType = "clickButton"
	StepClickLink        StepType = "clickLink"
	StepClickButtonUntil StepType = "clickButtonUntil"
	StepCheck            StepType = "check"
	StepUncheck          StepType = "uncheck"
	StepChoose           StepType = "choose"
	StepHover            StepType = "hover"

	// Assertions
	StepAssertContent   StepType = "assertContent"
	StepAssertNoContent StepType = "assertNoContent"
	StepAssertCSS       StepType = "assertCss"
	StepAssertNoCSS     StepType = "assertNoCss"
	StepAssertXPath     StepType = "assertXPath"
	StepAssertNoXPath   StepType = "assertNoXPath"
	StepAssertExists    StepType = "assertExists"
	StepAssertNotExists StepType = "assertNotExists"

	// Scripting
	StepExecuteScript StepType = "executeScript"

	// Flow Control
	StepWithin       StepType = "within"
	StepWithTimeouts StepType = "withTimeouts"
	StepWaitForState StepType = "waitForState"
)

// Step is the interface for all flow steps.
type Step interface {
	Type() StepType
	IsOptional() bool
	Label() string
	Describe() string
	// Timeout is a per-step deadline override, nil when unset.
	Timeout() *time.Duration
}

// BaseStep contains common fields for all steps.
type BaseStep struct {
	StepType    StepType       `yaml:"-"`
	Optional    bool           `yaml:"optional"`
	StepLabel   string         `yaml:"label"`
	StepTimeout *time.Duration `yaml:"timeout"`
}

// Type returns the step type.
func (b *BaseStep) Type() StepType { return b.StepType }

// IsOptional returns whether the step is optional.
func (b *BaseStep) IsOptional() bool { return b.Optional }

// Label returns the step label.
func (b *BaseStep) Label() string { return b.StepLabel }

// Timeout returns the per-step deadline override.
func (b *BaseStep) Timeout() *time.Duration { return b.StepTimeout }

// Describe returns a human-readable description.
func (b *BaseStep) Describe() string { return string(b.StepType) }

func describe(t StepType, value string) string {
	return string(t) + " " + strconv.Quote(value)
}

// ============================================
// Navigation & Interaction Steps
// ============================================

// VisitStep navigates to a URL, relative to the app host.
type VisitStep struct {
	BaseStep `yaml:",inline"`
	URL      string `yaml:"url"`
}

// Describe returns a human-readable description.
func (s *VisitStep) Describe() string { return describe(s.StepType, s.URL) }

// ClickStep clicks any target.
type ClickStep struct {
	BaseStep `yaml:",inline"`
	Target   Target `yaml:",inline"`
}

// Describe returns a human-readable description.
func (s *ClickStep) Describe() string { return string(s.StepType) + " " + s.Target.Describe() }

// ClickButtonStep clicks a button.
type ClickButtonStep struct {
	BaseStep `yaml:",inline"`
	Button   string `yaml:"button"`
}

// Describe returns a human-readable description.
func (s *ClickButtonStep) Describe() string { return describe(s.StepType, s.Button) }

// ClickLinkStep clicks a link.
type ClickLinkStep struct {
	BaseStep `yaml:",inline"`
	Link     string `yaml:"link"`
}

// Describe returns a human-readable description.
func (s *ClickLinkStep) Describe() string { return describe(s.StepType, s.Link) }

// ClickButtonUntilStep clicks a button until content appears, clicking
// again when nothing shows up within waitBeforeRetry.
type ClickButtonUntilStep struct {
	BaseStep        `yaml:",inline"`
	Button          string         `yaml:"button"`
	UntilContent    string         `yaml:"untilContent"`
	WaitBeforeRetry *time.Duration `yaml:"waitBeforeRetry"`
}

// Describe returns a human-readable description.
func (s *ClickButtonUntilStep) Describe() string {
	return describe(s.StepType, s.Button) + " until " + strconv.Quote(s.UntilContent)
}

// FieldStep is check, uncheck or choose on a field.
type FieldStep struct {
	BaseStep `yaml:",inline"`
	Field    string `yaml:"field"`
}

// Describe returns a human-readable description.
func (s *FieldStep) Describe() string { return describe(s.StepType, s.Field) }

// HoverStep moves the pointer over a target.
type HoverStep struct {
	BaseStep `yaml:",inline"`
	Target   Target `yaml:",inline"`
}

// Describe returns a human-readable description.
func (s *HoverStep) Describe() string { return string(s.StepType) + " " + s.Target.Describe() }

// ============================================
// Assertion Steps
// ============================================

// ContentStep asserts page text is present or absent. Matches is a
// regular expression and takes precedence over Text.
type ContentStep struct {
	BaseStep `yaml:",inline"`
	Text     string `yaml:"text"`
	Matches  string `yaml:"matches"`
}

// Describe returns a human-readable description.
func (s *ContentStep) Describe() string {
	if s.Matches != "" {
		return string(s.StepType) + " /" + s.Matches + "/"
	}
	return describe(s.StepType, s.Text)
}

// SelectorStep asserts a CSS or XPath match is present or absent.
type SelectorStep struct {
	BaseStep `yaml:",inline"`
	Selector string `yaml:"selector"`
}

// Describe returns a human-readable description.
func (s *SelectorStep) Describe() string { return describe(s.StepType, s.Selector) }

// ExistsStep asserts a target can or cannot be found.
type ExistsStep struct {
	BaseStep `yaml:",inline"`
	Target   Target `yaml:",inline"`
}

// Describe returns a human-readable description.
func (s *ExistsStep) Describe() string { return string(s.StepType) + " " + s.Target.Describe() }

// ============================================
// Scripting
// ============================================

// ExecuteScriptStep runs JavaScript in the page. When Var is set the
// result is stored as a flow variable.
type ExecuteScriptStep struct {
	BaseStep `yaml:",inline"`
	Script   string `yaml:"script"`
	Var      string `yaml:"var"`
}

// Describe returns a human-readable description.
func (s *ExecuteScriptStep) Describe() string { return string(s.StepType) }

// ============================================
// Flow Control
// ============================================

// WithinStep runs nested steps in the scope of a container.
type WithinStep struct {
	BaseStep `yaml:",inline"`
	Target   Target `yaml:",inline"`
	Steps    []Step `yaml:"-"`
}

// Describe returns a human-readable description.
func (s *WithinStep) Describe() string { return string(s.StepType) + " " + s.Target.Describe() }

// WithTimeoutsStep runs nested steps with temporary timeouts.
type WithTimeoutsStep struct {
	BaseStep `yaml:",inline"`
	Timeouts Timeouts `yaml:"-"`
	Steps    []Step   `yaml:"-"`
}

// State is one expected page condition of a waitForState step. Exactly one
// of Content, CSS and XPath is set.
type State struct {
	Name    string `yaml:"name"`
	Content string `yaml:"content"`
	CSS     string `yaml:"css"`
	XPath   string `yaml:"xpath"`
	Steps   []Step `yaml:"-"`
}

// WaitForStateStep waits for the first of several states and runs that
// state's steps.
type WaitForStateStep struct {
	BaseStep `yaml:",inline"`
	States   []State `yaml:"-"`
}

// Describe returns a human-readable description.
func (s *WaitForStateStep) Describe() string {
	names := ""
	for i, st := range s.States {
		if i > 0 {
			names += ", "
		}
		names += st.Name
	}
	return string(s.StepType) + " [" + names + "]"
}
