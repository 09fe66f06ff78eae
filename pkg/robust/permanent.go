package robust

import (
	"errors"

	"github.com/devicelab-dev/browserscope/pkg/core"
)

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. The retry engine stops at the
// first permanent error and returns it unwrapped.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err stops a retry loop: either marked with
// Permanent or a configuration error (bad locator, bad pattern), which no
// amount of waiting can fix.
func IsPermanent(err error) bool {
	var p *permanentError
	if errors.As(err, &p) {
		return true
	}
	return core.CategoryOf(err) == core.ErrCategoryConfig
}

func unwrapPermanent(err error) error {
	var p *permanentError
	if errors.As(err, &p) {
		return p.err
	}
	return err
}
