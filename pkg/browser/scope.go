// Package browser is the scope facade of the DSL: every find, click and
// query runs inside a retry loop bounded by the session's active timeouts,
// and the search root is re-resolved on every attempt.
package browser

import (
	"errors"
	"regexp"
	"time"

	"github.com/devicelab-dev/browserscope/pkg/core"
	"github.com/devicelab-dev/browserscope/pkg/logger"
	"github.com/devicelab-dev/browserscope/pkg/robust"
)

// Scope is a search root plus the operations that can be run in it.
// Session, DriverScope and ElementScope implement it.
type Scope interface {
	// ResolveScope computes the search root once. Scopes never cache it.
	ResolveScope() (core.Scope, error)

	FindButton(locator string) (core.Element, error)
	FindLink(locator string) (core.Element, error)
	FindField(locator string) (core.Element, error)
	FindID(id string) (core.Element, error)
	FindCSS(selector string) (core.Element, error)
	FindXPath(expr string) (core.Element, error)
	FindAllCSS(selector string) ([]core.Element, error)
	FindAllXPath(expr string) ([]core.Element, error)

	FindSection(locator string) *ElementScope
	FindFieldset(locator string) *ElementScope
	FindFrame(locator string) *ElementScope
	Within(find Finder) *ElementScope

	ClickButton(locator string) error
	ClickLink(locator string) error
	Click(find Finder) error
	ClickButtonUntil(locator string, until func() (bool, error), waitBeforeRetry time.Duration) error
	ClickLinkUntil(locator string, until func() (bool, error), waitBeforeRetry time.Duration) error
	Hover(find Finder) error
	Check(locator string) error
	Uncheck(locator string) error
	Choose(locator string) error
	ExecuteScript(js string) (string, error)

	HasContent(text string) (bool, error)
	HasNoContent(text string) (bool, error)
	HasContentMatch(pattern *regexp.Regexp) (bool, error)
	HasNoContentMatch(pattern *regexp.Regexp) (bool, error)
	HasCSS(selector string) (bool, error)
	HasNoCSS(selector string) (bool, error)
	HasXPath(expr string) (bool, error)
	HasNoXPath(expr string) (bool, error)
	Has(find Finder) (bool, error)
	HasNo(find Finder) (bool, error)

	RetryUntilTimeout(op func() error) error
	Query(query func() (bool, error), expect bool) (bool, error)
	TryUntil(action func() error, until func() (bool, error), waitBeforeRetry time.Duration) error
	FindState(states ...*robust.State) (*robust.State, error)

	WithTimeouts(body func() error, opts ...robust.Option) error
	Timeouts() robust.Timeouts
	ConsideringInvisibleElements() Scope
}

// base implements Scope for any search root. resolve is the tagged-variant
// root computation and runs once per attempt.
type base struct {
	session *Session
	opts    core.FindOptions
	resolve func() (core.Scope, error)
}

// ResolveScope computes the search root.
func (b base) ResolveScope() (core.Scope, error) {
	return b.resolve()
}

// Timeouts returns the active timeout frame.
func (b base) Timeouts() robust.Timeouts {
	return b.session.settings.Current()
}

func (b base) driver() core.Driver {
	return b.session.driver
}

// findOnce runs a single resolution attempt of f in this scope.
func (b base) findOnce(f Finder) (core.Element, error) {
	if f.global {
		return f.find(b.driver(), core.DocumentScope(), b.opts)
	}
	sc, err := b.resolve()
	if err != nil {
		return nil, err
	}
	return f.find(b.driver(), sc, b.opts)
}

func (b base) find(f Finder) (core.Element, error) {
	return robust.Retry(b.session.engine, b.Timeouts(), func() (core.Element, error) {
		return b.findOnce(f)
	})
}

// FindButton waits for a button to appear.
func (b base) FindButton(locator string) (core.Element, error) { return b.find(Button(locator)) }

// FindLink waits for a link to appear.
func (b base) FindLink(locator string) (core.Element, error) { return b.find(Link(locator)) }

// FindField waits for a form field to appear.
func (b base) FindField(locator string) (core.Element, error) { return b.find(Field(locator)) }

// FindID waits for the unique element with id to appear.
func (b base) FindID(id string) (core.Element, error) { return b.find(ID(id)) }

// FindCSS waits for an element matching selector.
func (b base) FindCSS(selector string) (core.Element, error) { return b.find(CSS(selector)) }

// FindXPath waits for an element matching expr.
func (b base) FindXPath(expr string) (core.Element, error) { return b.find(XPath(expr)) }

// FindAllCSS returns the current matches without waiting.
func (b base) FindAllCSS(selector string) ([]core.Element, error) {
	sc, err := b.resolve()
	if err != nil {
		return nil, err
	}
	return b.driver().FindAllCSS(sc, selector)
}

// FindAllXPath returns the current matches without waiting.
func (b base) FindAllXPath(expr string) ([]core.Element, error) {
	sc, err := b.resolve()
	if err != nil {
		return nil, err
	}
	return b.driver().FindAllXPath(sc, expr)
}

// FindSection returns a lazily resolved section scope.
func (b base) FindSection(locator string) *ElementScope { return newElementScope(b, Section(locator)) }

// FindFieldset returns a lazily resolved fieldset scope.
func (b base) FindFieldset(locator string) *ElementScope { return newElementScope(b, Fieldset(locator)) }

// FindFrame returns a lazily resolved frame scope.
func (b base) FindFrame(locator string) *ElementScope { return newElementScope(b, Frame(locator)) }

// Within returns a lazily resolved scope rooted at whatever find matches.
func (b base) Within(find Finder) *ElementScope { return newElementScope(b, find) }

// act finds with f and applies action, both retried together so a stale
// element is re-found on the next attempt.
func (b base) act(name string, f Finder, action func(core.Element) error) error {
	logger.Debug("%s %s", name, f)
	return b.session.engine.RetryUntilTimeout(b.Timeouts(), func() error {
		el, err := b.findOnce(f)
		if err != nil {
			return err
		}
		return action(el)
	})
}

// ClickButton finds and clicks a button.
func (b base) ClickButton(locator string) error {
	return b.act("click", Button(locator), b.driver().Click)
}

// ClickLink finds and clicks a link.
func (b base) ClickLink(locator string) error {
	return b.act("click", Link(locator), b.driver().Click)
}

// Click finds and clicks any element.
func (b base) Click(find Finder) error {
	return b.act("click", find, b.driver().Click)
}

// Hover moves the pointer over an element.
func (b base) Hover(find Finder) error {
	return b.act("hover", find, b.driver().Hover)
}

// Check ticks the checkbox found as a field.
func (b base) Check(locator string) error {
	return b.act("check", Field(locator), b.driver().Check)
}

// Uncheck clears the checkbox found as a field.
func (b base) Uncheck(locator string) error {
	return b.act("uncheck", Field(locator), b.driver().Uncheck)
}

// Choose selects the radio button found as a field.
func (b base) Choose(locator string) error {
	return b.act("choose", Field(locator), b.driver().Choose)
}

// ClickButtonUntil clicks a button, then waits up to waitBeforeRetry for
// until to hold, clicking again while the timeout allows.
func (b base) ClickButtonUntil(locator string, until func() (bool, error), waitBeforeRetry time.Duration) error {
	return b.TryUntil(func() error { return b.ClickButton(locator) }, until, waitBeforeRetry)
}

// ClickLinkUntil is ClickButtonUntil for links.
func (b base) ClickLinkUntil(locator string, until func() (bool, error), waitBeforeRetry time.Duration) error {
	return b.TryUntil(func() error { return b.ClickLink(locator) }, until, waitBeforeRetry)
}

// ExecuteScript runs js once. Scripts have side effects and are never
// retried.
func (b base) ExecuteScript(js string) (string, error) {
	return b.driver().ExecuteScript(js)
}

// query polls check in this scope until it reports expect.
func (b base) query(expect bool, check func(core.Scope) (bool, error)) (bool, error) {
	return robust.Query(b.session.engine, b.Timeouts(), func() (bool, error) {
		sc, err := b.resolve()
		if err != nil {
			return false, err
		}
		return check(sc)
	}, expect)
}

// absent polls until check reports false and returns true if it did.
func (b base) absent(check func(core.Scope) (bool, error)) (bool, error) {
	present, err := b.query(false, check)
	return !present, err
}

// HasContent waits for text to appear.
func (b base) HasContent(text string) (bool, error) {
	return b.query(true, func(sc core.Scope) (bool, error) { return b.driver().HasContent(sc, text) })
}

// HasNoContent waits for text to be absent.
func (b base) HasNoContent(text string) (bool, error) {
	return b.absent(func(sc core.Scope) (bool, error) { return b.driver().HasContent(sc, text) })
}

// HasContentMatch waits for the scope's text to match pattern.
func (b base) HasContentMatch(pattern *regexp.Regexp) (bool, error) {
	return b.query(true, func(sc core.Scope) (bool, error) { return b.driver().HasContentMatch(sc, pattern) })
}

// HasNoContentMatch waits for the scope's text to stop matching pattern.
func (b base) HasNoContentMatch(pattern *regexp.Regexp) (bool, error) {
	return b.absent(func(sc core.Scope) (bool, error) { return b.driver().HasContentMatch(sc, pattern) })
}

// HasCSS waits for a visible element matching selector.
func (b base) HasCSS(selector string) (bool, error) {
	return b.query(true, func(sc core.Scope) (bool, error) { return b.driver().HasCSS(sc, selector) })
}

// HasNoCSS waits for no visible element to match selector.
func (b base) HasNoCSS(selector string) (bool, error) {
	return b.absent(func(sc core.Scope) (bool, error) { return b.driver().HasCSS(sc, selector) })
}

// HasXPath waits for a visible element matching expr.
func (b base) HasXPath(expr string) (bool, error) {
	return b.query(true, func(sc core.Scope) (bool, error) { return b.driver().HasXPath(sc, expr) })
}

// HasNoXPath waits for no visible element to match expr.
func (b base) HasNoXPath(expr string) (bool, error) {
	return b.absent(func(sc core.Scope) (bool, error) { return b.driver().HasXPath(sc, expr) })
}

// exists makes one attempt at find; not finding it is a normal answer.
func (b base) exists(find Finder) (bool, error) {
	_, err := b.findOnce(find)
	if errors.Is(err, core.ErrElementNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Has waits for find to match.
func (b base) Has(find Finder) (bool, error) {
	return robust.Query(b.session.engine, b.Timeouts(), func() (bool, error) { return b.exists(find) }, true)
}

// HasNo waits for find to stop matching.
func (b base) HasNo(find Finder) (bool, error) {
	present, err := robust.Query(b.session.engine, b.Timeouts(), func() (bool, error) { return b.exists(find) }, false)
	return !present, err
}

// RetryUntilTimeout retries op with the active timeouts.
func (b base) RetryUntilTimeout(op func() error) error {
	return b.session.engine.RetryUntilTimeout(b.Timeouts(), op)
}

// Query polls query until it returns expect or the timeout passes.
func (b base) Query(query func() (bool, error), expect bool) (bool, error) {
	return robust.Query(b.session.engine, b.Timeouts(), query, expect)
}

// TryUntil repeats action until until holds. Each evaluation of until runs
// with zero timeouts so that waitBeforeRetry alone bounds the wait.
func (b base) TryUntil(action func() error, until func() (bool, error), waitBeforeRetry time.Duration) error {
	return b.session.engine.TryUntil(b.Timeouts(), action, b.immediately(until), waitBeforeRetry)
}

// FindState returns the first state to hold. States are checked with zero
// timeouts; the race itself uses the active timeout.
func (b base) FindState(states ...*robust.State) (*robust.State, error) {
	t := b.Timeouts()
	var found *robust.State
	err := b.session.settings.WithTemporary(func() error {
		var err error
		found, err = b.session.engine.FindState(t, states...)
		return err
	}, robust.Zero())
	if err != nil {
		return nil, err
	}
	logger.Debug("reached state %q", found.Name())
	return found, nil
}

// WithTimeouts runs body with opts applied to the active timeouts and
// restores them afterwards.
func (b base) WithTimeouts(body func() error, opts ...robust.Option) error {
	return b.session.settings.WithTemporary(body, opts...)
}

func (b base) immediately(cond func() (bool, error)) func() (bool, error) {
	return func() (bool, error) {
		var ok bool
		err := b.session.settings.WithTemporary(func() error {
			var err error
			ok, err = cond()
			return err
		}, robust.Zero())
		return ok, err
	}
}

// DriverScope searches the whole document.
type DriverScope struct {
	base
}

// ConsideringInvisibleElements returns a copy of the scope whose finds
// include hidden elements.
func (d DriverScope) ConsideringInvisibleElements() Scope {
	c := d
	c.opts.ConsiderInvisible = true
	return &c
}

var (
	_ Scope = (*DriverScope)(nil)
	_ Scope = (*ElementScope)(nil)
	_ Scope = (*Session)(nil)
)
