package memory

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/devicelab-dev/browserscope/pkg/core"
	"github.com/devicelab-dev/browserscope/pkg/logger"
)

// own checks el belongs to this driver and is still attached.
// Must be called with mu held.
func (d *Driver) own(el core.Element) (*html.Node, error) {
	e, ok := el.(*Element)
	if !ok || e.d != d {
		return nil, core.ErrDriver.WithMessage(fmt.Sprintf("element %T does not belong to this driver", el))
	}
	if !d.attached(e.n) {
		return nil, core.ErrDriver.WithMessage("stale element: " + e.describeLocked())
	}
	return e.n, nil
}

func inputType(n *html.Node) string {
	return strings.ToLower(attrValue(n, "type"))
}

// Click performs the element's default action: toggling checkboxes and
// radios, following links, submitting forms. An onclick attribute runs as
// script afterwards, then OnClick hooks.
func (d *Driver) Click(el core.Element) error {
	d.mu.Lock()
	n, err := d.own(el)
	if err != nil {
		d.mu.Unlock()
		return err
	}
	if _, disabled := attr(n, "disabled"); disabled {
		d.mu.Unlock()
		return core.ErrDriver.WithMessage("element is disabled: " + el.(*Element).describeLocked())
	}
	if !d.visible(n) {
		d.mu.Unlock()
		return core.ErrDriver.WithMessage("element is not visible: " + el.(*Element).describeLocked())
	}

	d.clicks = append(d.clicks, el.(*Element).describeLocked())

	var follow string
	switch {
	case n.Data == "input" && inputType(n) == "checkbox":
		toggle(n)
	case n.Data == "input" && inputType(n) == "radio":
		d.selectRadio(n)
	case n.Data == "a":
		follow = attrValue(n, "href")
	case isSubmit(n):
		if form := ancestor(n, "form"); form != nil {
			follow = attrValue(form, "action")
		}
	}
	script := attrValue(n, "onclick")
	handlers := append([]func(core.Element){}, d.handlers...)
	d.mu.Unlock()

	logger.Debug("memory driver: click %s", core.Describe(el))

	if script != "" {
		if err := d.engine.RunScript(script); err != nil {
			logger.Warn("onclick script failed: %v", err)
		}
	}
	if follow != "" && !strings.HasPrefix(follow, "#") && !strings.HasPrefix(follow, "javascript:") {
		if err := d.navigate(follow); err != nil {
			return err
		}
	}
	for _, h := range handlers {
		h(el)
	}
	return nil
}

// Hover records the hovered element and runs its onmouseover script.
func (d *Driver) Hover(el core.Element) error {
	d.mu.Lock()
	n, err := d.own(el)
	if err != nil {
		d.mu.Unlock()
		return err
	}
	d.hovered = n
	script := attrValue(n, "onmouseover")
	d.mu.Unlock()

	if script != "" {
		if err := d.engine.RunScript(script); err != nil {
			logger.Warn("onmouseover script failed: %v", err)
		}
	}
	return nil
}

// Hovered returns the last hovered element, or nil.
func (d *Driver) Hovered() core.Element {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.hovered == nil {
		return nil
	}
	return &Element{d: d, n: d.hovered}
}

// Check ticks a checkbox.
func (d *Driver) Check(el core.Element) error {
	return d.setChecked(el, "checkbox", true)
}

// Uncheck clears a checkbox.
func (d *Driver) Uncheck(el core.Element) error {
	return d.setChecked(el, "checkbox", false)
}

// Choose selects a radio button, clearing the rest of its group.
func (d *Driver) Choose(el core.Element) error {
	return d.setChecked(el, "radio", true)
}

func (d *Driver) setChecked(el core.Element, want string, checked bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, err := d.own(el)
	if err != nil {
		return err
	}
	if n.Data != "input" || inputType(n) != want {
		return core.ErrDriver.WithMessage(fmt.Sprintf("%s is not a %s", el.(*Element).describeLocked(), want))
	}
	if _, disabled := attr(n, "disabled"); disabled {
		return core.ErrDriver.WithMessage("element is disabled: " + el.(*Element).describeLocked())
	}
	switch {
	case want == "radio":
		d.selectRadio(n)
	case checked:
		setAttr(n, "checked", "checked")
	default:
		removeAttr(n, "checked")
	}
	return nil
}

// ExecuteScript evaluates js and returns its result as a string.
func (d *Driver) ExecuteScript(js string) (string, error) {
	out, err := d.engine.EvalString(js)
	if err != nil {
		return "", core.ErrDriver.WithMessage("script failed").WithCause(err)
	}
	return out, nil
}

func toggle(n *html.Node) {
	if _, ok := attr(n, "checked"); ok {
		removeAttr(n, "checked")
		return
	}
	setAttr(n, "checked", "checked")
}

// selectRadio checks n and unchecks radios sharing its name in the same
// form (or document). Must be called with mu held.
func (d *Driver) selectRadio(n *html.Node) {
	name := attrValue(n, "name")
	if name != "" {
		scope := ancestor(n, "form")
		if scope == nil {
			scope = n
			for scope.Parent != nil {
				scope = scope.Parent
			}
		}
		walkNodes(scope, func(other *html.Node) {
			if other.Type == html.ElementNode && other.Data == "input" && inputType(other) == "radio" && attrValue(other, "name") == name {
				removeAttr(other, "checked")
			}
		})
	}
	setAttr(n, "checked", "checked")
}

func isSubmit(n *html.Node) bool {
	switch n.Data {
	case "button":
		t := inputType(n)
		return t == "" || t == "submit"
	case "input":
		t := inputType(n)
		return t == "submit" || t == "image"
	}
	return false
}

func ancestor(n *html.Node, tag string) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.Data == tag {
			return p
		}
	}
	return nil
}

// describeLocked is core.Describe for callers already holding mu.
func (e *Element) describeLocked() string {
	s := e.n.Data
	if id := attrValue(e.n, "id"); id != "" {
		s += "#" + id
	}
	if name := attrValue(e.n, "name"); name != "" {
		s += "[name=" + name + "]"
	}
	return s
}
