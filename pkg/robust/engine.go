package robust

import (
	"errors"
	"time"

	"github.com/devicelab-dev/browserscope/pkg/core"
	"github.com/devicelab-dev/browserscope/pkg/logger"
)

// Engine runs operations in bounded, strictly sequential polling loops.
// Attempts never overlap: the driver is assumed not to be safe for
// concurrent calls.
type Engine struct {
	clock Clock
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithClock replaces the wall clock.
func WithClock(c Clock) EngineOption {
	return func(e *Engine) { e.clock = c }
}

// New creates a retry engine.
func New(opts ...EngineOption) *Engine {
	e := &Engine{clock: SystemClock()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Clock returns the engine's clock.
func (e *Engine) Clock() Clock {
	return e.clock
}

// RetryUntilTimeout invokes op until it returns nil or t.Timeout has elapsed
// since the first attempt, sleeping t.RetryInterval between attempts (at
// least MinRetryInterval). At least one attempt is always made.
// Intermediate errors are suppressed; on timeout the most recent one is
// returned as is.
func (e *Engine) RetryUntilTimeout(t Timeouts, op func() error) error {
	_, err := Retry(e, t, func() (struct{}, error) {
		return struct{}{}, op()
	})
	return err
}

// Retry is RetryUntilTimeout for operations that produce a value.
func Retry[T any](e *Engine, t Timeouts, op func() (T, error)) (T, error) {
	start := e.clock.Now()
	for attempt := 1; ; attempt++ {
		v, err := op()
		if err == nil {
			if attempt > 1 {
				logger.Debug("succeeded after %d attempts", attempt)
			}
			return v, nil
		}
		if IsPermanent(err) {
			return v, unwrapPermanent(err)
		}
		if e.clock.Now().Sub(start) >= t.Timeout {
			logger.Warn("giving up after %d attempts (%s): %v", attempt, t.Timeout, err)
			return v, err
		}
		logger.Debug("attempt %d failed, retrying in %s: %v", attempt, t.pollInterval(), err)
		e.clock.Sleep(t.pollInterval())
	}
}

// Query polls query until it returns expect or t.Timeout elapses. Running
// out of time is not an error: the last observed value is returned and the
// caller decides what it means. This lets one loop answer both "eventually
// present" (expect true) and "eventually absent" (expect false).
//
// The returned error is non-nil only when the last attempt itself failed, or
// an attempt failed permanently.
func Query[T comparable](e *Engine, t Timeouts, query func() (T, error), expect T) (T, error) {
	start := e.clock.Now()
	for {
		v, err := query()
		if err == nil && v == expect {
			return v, nil
		}
		if err != nil && IsPermanent(err) {
			return v, unwrapPermanent(err)
		}
		if e.clock.Now().Sub(start) >= t.Timeout {
			return v, err
		}
		e.clock.Sleep(t.pollInterval())
	}
}

// TryUntil performs action, then polls until for up to waitBeforeRetry. If
// the condition holds it returns nil; otherwise the action is repeated until
// t.Timeout has elapsed since the first action, after which a
// ConditionTimeout error is returned. An error from action itself is
// returned immediately: actions are expected to be robust on their own. So
// is a permanent error from until.
func (e *Engine) TryUntil(t Timeouts, action func() error, until func() (bool, error), waitBeforeRetry time.Duration) error {
	start := e.clock.Now()
	window := Timeouts{Timeout: waitBeforeRetry, RetryInterval: t.RetryInterval}
	var permanent error
	check := func() (bool, error) {
		ok, err := until()
		if err != nil && IsPermanent(err) {
			permanent = err
		}
		return ok, err
	}
	var lastErr error
	for attempt := 1; ; attempt++ {
		if err := action(); err != nil {
			return err
		}
		ok, err := Query(e, window, check, true)
		if ok {
			return nil
		}
		if permanent != nil {
			return unwrapPermanent(permanent)
		}
		if err != nil {
			lastErr = err
		}
		if e.clock.Now().Sub(start) >= t.Timeout {
			timeoutErr := core.ErrConditionTimeout.WithDetails(map[string]interface{}{
				"attempts": attempt,
				"timeout":  t.Timeout.String(),
			})
			if lastErr != nil {
				return timeoutErr.WithCause(lastErr)
			}
			return timeoutErr
		}
		if waitBeforeRetry == 0 {
			e.clock.Sleep(t.pollInterval())
		}
		logger.Debug("condition not met after attempt %d, trying again", attempt)
	}
}

// State is a named page condition taking part in a FindState race. States
// are compared by identity: FindState returns one of the pointers it was
// given.
type State struct {
	name  string
	check func() (bool, error)
}

// NewState creates a state.
func NewState(name string, check func() (bool, error)) *State {
	return &State{name: name, check: check}
}

// Name returns the state's name.
func (s *State) Name() string {
	return s.name
}

// Check evaluates the state's condition once.
func (s *State) Check() (bool, error) {
	return s.check()
}

var errNoStateYet = errors.New("no state reached yet")

// FindState polls every state once per cycle, in the order given, and
// returns the first whose condition holds. When two states hold in the same
// cycle the earlier one wins. If none holds within t.Timeout a StateTimeout
// error is returned.
func (e *Engine) FindState(t Timeouts, states ...*State) (*State, error) {
	if len(states) == 0 {
		return nil, core.ErrMissingRequired.WithMessage("FindState needs at least one state")
	}

	var lastCheckErr error
	found, err := Retry(e, t, func() (*State, error) {
		for _, s := range states {
			ok, err := s.Check()
			if err != nil {
				if IsPermanent(err) {
					return nil, err
				}
				lastCheckErr = err
				continue
			}
			if ok {
				return s, nil
			}
		}
		return nil, errNoStateYet
	})
	if err == nil {
		return found, nil
	}
	if !errors.Is(err, errNoStateYet) {
		return nil, err
	}

	names := make([]string, len(states))
	for i, s := range states {
		names[i] = s.name
	}
	stateErr := core.ErrStateTimeout.WithDetails(map[string]interface{}{"states": names})
	if lastCheckErr != nil {
		return nil, stateErr.WithCause(lastCheckErr)
	}
	return nil, stateErr
}
