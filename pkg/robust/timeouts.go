// Package robust bounds every wait in the browser DSL by a deadline.
//
// It holds the timeout settings for one call chain, the retry engine that
// re-runs failing operations until they succeed or time runs out, and the
// state finder that races several page conditions against each other.
package robust

import (
	"fmt"
	"time"
)

// Default timing values.
const (
	DefaultTimeout         = 1 * time.Second
	DefaultRetryInterval   = 100 * time.Millisecond
	DefaultWaitBeforeRetry = 1 * time.Second

	// MinRetryInterval is the sleep used between attempts when RetryInterval
	// is zero but there is time left to wait.
	MinRetryInterval = 10 * time.Millisecond
)

// Timeouts is one frame of timing configuration.
type Timeouts struct {
	Timeout         time.Duration // overall deadline for a retry loop
	RetryInterval   time.Duration // sleep between attempts
	WaitBeforeRetry time.Duration // TryUntil: how long to poll the condition before repeating the action
}

// DefaultTimeouts returns the built-in defaults.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Timeout:         DefaultTimeout,
		RetryInterval:   DefaultRetryInterval,
		WaitBeforeRetry: DefaultWaitBeforeRetry,
	}
}

// Validate rejects negative durations.
func (t Timeouts) Validate() error {
	if t.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative: %s", t.Timeout)
	}
	if t.RetryInterval < 0 {
		return fmt.Errorf("retry interval must not be negative: %s", t.RetryInterval)
	}
	if t.WaitBeforeRetry < 0 {
		return fmt.Errorf("wait before retry must not be negative: %s", t.WaitBeforeRetry)
	}
	return nil
}

// pollInterval is the sleep between attempts. A zero interval with a
// positive timeout would poll the driver without pause, so it is raised to
// MinRetryInterval.
func (t Timeouts) pollInterval() time.Duration {
	if t.RetryInterval <= 0 && t.Timeout > 0 {
		return MinRetryInterval
	}
	return t.RetryInterval
}

// Option overrides one field of a Timeouts frame.
type Option func(*Timeouts)

// WithTimeout overrides the overall deadline.
func WithTimeout(d time.Duration) Option {
	return func(t *Timeouts) { t.Timeout = d }
}

// WithRetryInterval overrides the sleep between attempts.
func WithRetryInterval(d time.Duration) Option {
	return func(t *Timeouts) { t.RetryInterval = d }
}

// WithWaitBeforeRetry overrides the TryUntil condition window.
func WithWaitBeforeRetry(d time.Duration) Option {
	return func(t *Timeouts) { t.WaitBeforeRetry = d }
}

// Zero sets every duration to zero: each operation gets exactly one attempt.
func Zero() Option {
	return func(t *Timeouts) { *t = Timeouts{} }
}

// Apply returns a copy of t with opts applied.
func (t Timeouts) Apply(opts ...Option) Timeouts {
	for _, opt := range opts {
		opt(&t)
	}
	return t
}

// Settings is the timeout configuration of one logical call chain: a base
// frame plus a stack of temporary overrides. The top of the stack is the
// active frame.
//
// Settings is not safe for concurrent use. Concurrent call chains must each
// own a Settings (see Clone) so that no override frame is shared.
type Settings struct {
	frames []Timeouts
}

// NewSettings creates settings whose base frame is base.
func NewSettings(base Timeouts) *Settings {
	return &Settings{frames: []Timeouts{base}}
}

// Current returns the active frame.
func (s *Settings) Current() Timeouts {
	return s.frames[len(s.frames)-1]
}

// Depth returns the number of active temporary overrides.
func (s *Settings) Depth() int {
	return len(s.frames) - 1
}

// SetBase replaces the base frame. Active overrides are unaffected.
func (s *Settings) SetBase(base Timeouts) {
	s.frames[0] = base
}

// WithTemporary runs body with opts applied on top of the active frame and
// restores the previous frame on every exit path, including panics.
func (s *Settings) WithTemporary(body func() error, opts ...Option) error {
	depth := len(s.frames)
	s.frames = append(s.frames, s.Current().Apply(opts...))
	defer func() {
		s.frames = s.frames[:depth]
	}()
	return body()
}

// Clone returns independent settings starting from the active frame.
func (s *Settings) Clone() *Settings {
	return NewSettings(s.Current())
}
