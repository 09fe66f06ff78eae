package playwright

import (
	"fmt"

	pw "github.com/playwright-community/playwright-go"

	"github.com/devicelab-dev/browserscope/pkg/core"
	"github.com/devicelab-dev/browserscope/pkg/logger"
)

// locator addresses a snapshot element in the live page.
func (d *Driver) locator(e *Element) pw.Locator {
	if len(e.frames) == 0 {
		return d.page.Locator("xpath=" + e.node.XPath)
	}
	frame := d.page.FrameLocator("xpath=" + e.frames[0])
	for _, f := range e.frames[1:] {
		frame = frame.FrameLocator("xpath=" + f)
	}
	return frame.Locator("xpath=" + e.node.XPath)
}

func (d *Driver) actionTimeout() *float64 {
	t := d.cfg.ActionTimeout
	if t <= 0 {
		t = DefaultActionTimeout
	}
	return pw.Float(float64(t.Milliseconds()))
}

func (d *Driver) act(name string, el core.Element, fn func(pw.Locator) error) error {
	e, err := own(el)
	if err != nil {
		return err
	}
	logger.Debug("playwright: %s %s", name, e)
	if err := fn(d.locator(e)); err != nil {
		return core.ErrDriver.WithMessage(fmt.Sprintf("%s %s", name, core.Describe(el))).WithCause(err)
	}
	return nil
}

// Click clicks the element.
func (d *Driver) Click(el core.Element) error {
	return d.act("click", el, func(l pw.Locator) error {
		return l.Click(pw.LocatorClickOptions{Timeout: d.actionTimeout()})
	})
}

// Hover moves the mouse over the element.
func (d *Driver) Hover(el core.Element) error {
	return d.act("hover", el, func(l pw.Locator) error {
		return l.Hover(pw.LocatorHoverOptions{Timeout: d.actionTimeout()})
	})
}

// Check ticks a checkbox.
func (d *Driver) Check(el core.Element) error {
	return d.act("check", el, func(l pw.Locator) error {
		return l.Check(pw.LocatorCheckOptions{Timeout: d.actionTimeout()})
	})
}

// Uncheck clears a checkbox.
func (d *Driver) Uncheck(el core.Element) error {
	return d.act("uncheck", el, func(l pw.Locator) error {
		return l.Uncheck(pw.LocatorUncheckOptions{Timeout: d.actionTimeout()})
	})
}

// Choose selects a radio button.
func (d *Driver) Choose(el core.Element) error {
	return d.act("choose", el, func(l pw.Locator) error {
		return l.Check(pw.LocatorCheckOptions{Timeout: d.actionTimeout()})
	})
}

// ExecuteScript evaluates js in the page and returns the result as text.
func (d *Driver) ExecuteScript(js string) (string, error) {
	out, err := d.page.Evaluate(js)
	if err != nil {
		return "", core.ErrDriver.WithMessage("script failed").WithCause(err)
	}
	if out == nil {
		return "", nil
	}
	return fmt.Sprint(out), nil
}
