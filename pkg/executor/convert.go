package executor

import (
	"github.com/devicelab-dev/browserscope/pkg/browser"
	"github.com/devicelab-dev/browserscope/pkg/core"
	"github.com/devicelab-dev/browserscope/pkg/flow"
	"github.com/devicelab-dev/browserscope/pkg/robust"
)

// targetToFinder converts a flow target to the finder the scope resolves.
func targetToFinder(t flow.Target) (browser.Finder, error) {
	kind, locator := t.Kind()
	switch kind {
	case flow.KindButton:
		return browser.Button(locator), nil
	case flow.KindLink:
		return browser.Link(locator), nil
	case flow.KindField:
		return browser.Field(locator), nil
	case flow.KindSection:
		return browser.Section(locator), nil
	case flow.KindFieldset:
		return browser.Fieldset(locator), nil
	case flow.KindFrame:
		return browser.Frame(locator), nil
	case flow.KindID:
		return browser.ID(locator), nil
	case flow.KindCSS:
		return browser.CSS(locator), nil
	case flow.KindXPath:
		return browser.XPath(locator), nil
	}
	return browser.Finder{}, core.ErrMissingRequired.WithMessage("step has no target locator")
}

// targetToScope converts a within target to a lazily resolved scope.
func targetToScope(parent browser.Scope, t flow.Target) (*browser.ElementScope, error) {
	kind, locator := t.Kind()
	switch kind {
	case flow.KindSection:
		return parent.FindSection(locator), nil
	case flow.KindFieldset:
		return parent.FindFieldset(locator), nil
	case flow.KindFrame:
		return parent.FindFrame(locator), nil
	}
	f, err := targetToFinder(t)
	if err != nil {
		return nil, err
	}
	return parent.Within(f), nil
}

// timeoutsToOptions converts a flow override to robust options. Unset
// fields keep the surrounding value.
func timeoutsToOptions(t flow.Timeouts) []robust.Option {
	var opts []robust.Option
	if t.Timeout != nil {
		opts = append(opts, robust.WithTimeout(*t.Timeout))
	}
	if t.RetryInterval != nil {
		opts = append(opts, robust.WithRetryInterval(*t.RetryInterval))
	}
	if t.WaitBeforeRetry != nil {
		opts = append(opts, robust.WithWaitBeforeRetry(*t.WaitBeforeRetry))
	}
	return opts
}
