package core

import (
	"errors"
	"fmt"
)

// ExecutionError represents a structured error with category and details
type ExecutionError struct {
	Category ErrorCategory
	Code     string                 // Machine-readable code: element_not_found, ambiguous, etc.
	Message  string                 // Human-readable message
	Details  map[string]interface{} // Additional context (locator, timeout, ...)
	Cause    error                  // Underlying error
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Is matches on Code so derived copies still satisfy errors.Is against the
// predefined values below.
func (e *ExecutionError) Is(target error) bool {
	var t *ExecutionError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

// WithCause returns a copy of the error wrapping cause.
func (e *ExecutionError) WithCause(cause error) *ExecutionError {
	c := *e
	c.Cause = cause
	return &c
}

// WithMessage returns a copy of the error with msg as its message.
func (e *ExecutionError) WithMessage(msg string) *ExecutionError {
	c := *e
	c.Message = msg
	return &c
}

// WithDetails returns a copy of the error with details merged over the
// existing ones. The receiver's map is not modified.
func (e *ExecutionError) WithDetails(details map[string]interface{}) *ExecutionError {
	c := *e
	c.Details = make(map[string]interface{}, len(e.Details)+len(details))
	for k, v := range e.Details {
		c.Details[k] = v
	}
	for k, v := range details {
		c.Details[k] = v
	}
	return &c
}

// Predefined errors
var (
	// Resolution errors
	ErrElementNotFound = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "element_not_found",
		Message:  "element not found",
	}
	ErrAmbiguous = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "ambiguous",
		Message:  "more than one element matches",
	}
	ErrContentNotFound = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "content_not_found",
		Message:  "expected content did not appear",
	}
	ErrUnexpectedContent = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "unexpected_content",
		Message:  "content is still present",
	}
	ErrUnexpectedElement = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "unexpected_element",
		Message:  "element is still present",
	}
	ErrInvalidLocator = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "invalid_locator",
		Message:  "invalid locator",
	}

	// Timeout errors
	ErrConditionTimeout = &ExecutionError{
		Category: ErrCategoryTimeout,
		Code:     "condition_timeout",
		Message:  "timeout from try until: the page never reached the required state",
	}
	ErrStateTimeout = &ExecutionError{
		Category: ErrCategoryTimeout,
		Code:     "state_timeout",
		Message:  "no expected state reached",
	}

	// Driver errors
	ErrDriver = &ExecutionError{
		Category: ErrCategoryConnection,
		Code:     "driver_error",
		Message:  "browser driver error",
	}
	ErrUnsupported = &ExecutionError{
		Category: ErrCategoryConnection,
		Code:     "unsupported",
		Message:  "operation not supported by driver",
	}

	// Config errors
	ErrInvalidConfig = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "invalid_config",
		Message:  "invalid configuration",
	}
	ErrMissingRequired = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "missing_required",
		Message:  "missing required field",
	}
)

// NewExecutionError creates a new ExecutionError with the given parameters
func NewExecutionError(category ErrorCategory, code, message string) *ExecutionError {
	return &ExecutionError{
		Category: category,
		Code:     code,
		Message:  message,
	}
}

// NotFound builds a NotFound error naming what was looked for.
func NotFound(kind, locator string) *ExecutionError {
	return ErrElementNotFound.
		WithMessage(fmt.Sprintf("%s not found: %q", kind, locator)).
		WithDetails(map[string]interface{}{"kind": kind, "locator": locator})
}

// Ambiguous builds an Ambiguous error for a uniqueness-constrained lookup.
func Ambiguous(kind, locator string, count int) *ExecutionError {
	return ErrAmbiguous.
		WithMessage(fmt.Sprintf("%d elements match %s %q", count, kind, locator)).
		WithDetails(map[string]interface{}{"kind": kind, "locator": locator, "count": count})
}

// CategoryOf returns the category of err, or ErrCategoryNone when err
// carries no ExecutionError.
func CategoryOf(err error) ErrorCategory {
	var e *ExecutionError
	if errors.As(err, &e) {
		return e.Category
	}
	return ErrCategoryNone
}
