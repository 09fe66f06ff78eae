package browser

import (
	"strconv"

	"github.com/devicelab-dev/browserscope/pkg/core"
)

// Finder describes how to find one element: a single attempt against a
// resolved scope. Scopes wrap finders in retry loops.
type Finder struct {
	Kind    string
	Locator string

	// global finders ignore the calling scope (frames, element scopes).
	global bool
	// frame finders produce frame scopes when used as a search root.
	frame bool
	find  func(d core.Driver, scope core.Scope, opts core.FindOptions) (core.Element, error)
}

// String describes the finder, e.g. button "Sign in".
func (f Finder) String() string {
	return f.Kind + " " + strconv.Quote(f.Locator)
}

// Button finds a button by text, id, name, value, alt or partial id.
func Button(locator string) Finder {
	return Finder{Kind: "button", Locator: locator, find: func(d core.Driver, s core.Scope, o core.FindOptions) (core.Element, error) {
		return d.FindButton(s, locator, o)
	}}
}

// Link finds a link by its text.
func Link(locator string) Finder {
	return Finder{Kind: "link", Locator: locator, find: func(d core.Driver, s core.Scope, o core.FindOptions) (core.Element, error) {
		return d.FindLink(s, locator, o)
	}}
}

// Field finds a form field by label, id, name, placeholder, radio value or
// partial id.
func Field(locator string) Finder {
	return Finder{Kind: "field", Locator: locator, find: func(d core.Driver, s core.Scope, o core.FindOptions) (core.Element, error) {
		return d.FindField(s, locator, o)
	}}
}

// Section finds a section or div by id or heading.
func Section(locator string) Finder {
	return Finder{Kind: "section", Locator: locator, find: func(d core.Driver, s core.Scope, o core.FindOptions) (core.Element, error) {
		return d.FindSection(s, locator, o)
	}}
}

// Fieldset finds a fieldset by id or legend.
func Fieldset(locator string) Finder {
	return Finder{Kind: "fieldset", Locator: locator, find: func(d core.Driver, s core.Scope, o core.FindOptions) (core.Element, error) {
		return d.FindFieldset(s, locator, o)
	}}
}

// Frame finds an iframe by title, id or h1 text. Frames are always searched
// for in the whole document.
func Frame(locator string) Finder {
	return Finder{Kind: "frame", Locator: locator, global: true, frame: true, find: func(d core.Driver, _ core.Scope, o core.FindOptions) (core.Element, error) {
		return d.FindFrame(core.DocumentScope(), locator, o)
	}}
}

// ID finds the unique element with an id.
func ID(id string) Finder {
	return Finder{Kind: "id", Locator: id, find: func(d core.Driver, s core.Scope, o core.FindOptions) (core.Element, error) {
		return d.FindID(s, id, o)
	}}
}

// CSS finds the first element matching a selector.
func CSS(selector string) Finder {
	return Finder{Kind: "css", Locator: selector, find: func(d core.Driver, s core.Scope, o core.FindOptions) (core.Element, error) {
		return d.FindCSS(s, selector, o)
	}}
}

// XPath finds the first element matching an expression.
func XPath(expr string) Finder {
	return Finder{Kind: "xpath", Locator: expr, find: func(d core.Driver, s core.Scope, o core.FindOptions) (core.Element, error) {
		return d.FindXPath(s, expr, o)
	}}
}
