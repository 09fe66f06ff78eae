package browser

import (
	"fmt"
	"net/url"

	"github.com/devicelab-dev/browserscope/pkg/core"
	"github.com/devicelab-dev/browserscope/pkg/logger"
	"github.com/devicelab-dev/browserscope/pkg/robust"
)

// Session drives one browser. It is the document-wide scope and owns the
// timeout settings of its call chain, so a Session must not be shared
// between goroutines. Use one Session per concurrent chain.
type Session struct {
	DriverScope

	driver   core.Driver
	engine   *robust.Engine
	settings *robust.Settings
	appHost  string
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithAppHost sets the base URL relative visits are resolved against.
func WithAppHost(host string) SessionOption {
	return func(s *Session) { s.appHost = host }
}

// WithBaseTimeouts replaces the default timeouts.
func WithBaseTimeouts(t robust.Timeouts) SessionOption {
	return func(s *Session) { s.settings.SetBase(t) }
}

// WithEngine replaces the retry engine, e.g. to inject a clock.
func WithEngine(e *robust.Engine) SessionOption {
	return func(s *Session) { s.engine = e }
}

// NewSession creates a session over driver.
func NewSession(driver core.Driver, opts ...SessionOption) *Session {
	s := &Session{
		driver:   driver,
		engine:   robust.New(),
		settings: robust.NewSettings(robust.DefaultTimeouts()),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.DriverScope = DriverScope{base{
		session: s,
		resolve: func() (core.Scope, error) { return core.DocumentScope(), nil },
	}}
	return s
}

// URL resolves path against the app host. Absolute URLs are returned as is.
func (s *Session) URL(path string) (string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return "", core.ErrInvalidConfig.WithMessage(fmt.Sprintf("invalid URL %q", path)).WithCause(err)
	}
	if ref.IsAbs() || s.appHost == "" {
		return ref.String(), nil
	}
	host, err := url.Parse(s.appHost)
	if err != nil {
		return "", core.ErrInvalidConfig.WithMessage(fmt.Sprintf("invalid app host %q", s.appHost)).WithCause(err)
	}
	return host.ResolveReference(ref).String(), nil
}

// Visit navigates to path, relative to the app host.
func (s *Session) Visit(path string) error {
	target, err := s.URL(path)
	if err != nil {
		return err
	}
	logger.Info("visit %s", target)
	return s.driver.Visit(target)
}

// Driver returns the underlying driver.
func (s *Session) Driver() core.Driver { return s.driver }

// Engine returns the retry engine.
func (s *Session) Engine() *robust.Engine { return s.engine }

// Settings returns the session's timeout settings.
func (s *Session) Settings() *robust.Settings { return s.settings }

// Close closes the driver.
func (s *Session) Close() error {
	return s.driver.Close()
}
