package core

// StepStatus is the outcome of a step or flow, written by name in reports.
// The zero value means the step never ran.
type StepStatus string

const (
	StatusPassed  StepStatus = "passed"
	StatusFailed  StepStatus = "failed"  // assertion or wait ran out (not found, timeout)
	StatusErrored StepStatus = "errored" // driver failure or bad locator
	StatusSkipped StepStatus = "skipped" // an earlier required step failed, or the run was cancelled
	StatusWarned  StepStatus = "warned"  // optional step failed
)

func (s StepStatus) String() string {
	if s == "" {
		return "unknown"
	}
	return string(s)
}

// IsSuccess reports whether the status lets a flow pass.
func (s StepStatus) IsSuccess() bool {
	return s == StatusPassed || s == StatusWarned
}

// IsFailure reports whether the status fails a flow.
func (s StepStatus) IsFailure() bool {
	return s == StatusFailed || s == StatusErrored
}

// ErrorCategory groups execution errors for reports. The zero value is
// "no error" and is omitted from JSON.
type ErrorCategory string

const (
	ErrCategoryNone       ErrorCategory = ""
	ErrCategoryAssertion  ErrorCategory = "assertion"  // not found, ambiguous, content missing
	ErrCategoryTimeout    ErrorCategory = "timeout"    // TryUntil or state race ran out of time
	ErrCategoryConnection ErrorCategory = "connection" // driver/browser failure
	ErrCategoryConfig     ErrorCategory = "config"     // invalid configuration or locator
)

func (c ErrorCategory) String() string {
	if c == ErrCategoryNone {
		return "none"
	}
	return string(c)
}

// StatusFor maps a step error to the status it produces.
// Assertion and timeout failures are test failures; anything else errored.
func StatusFor(err error) StepStatus {
	if err == nil {
		return StatusPassed
	}
	switch CategoryOf(err) {
	case ErrCategoryAssertion, ErrCategoryTimeout:
		return StatusFailed
	default:
		return StatusErrored
	}
}
