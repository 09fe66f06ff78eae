package core

import (
	"regexp"
	"strings"
)

// Element is an opaque handle into a driver's DOM representation.
// A handle is only meaningful for the attempt that produced it: the page may
// re-render between polls, so callers must re-resolve instead of caching.
type Element interface {
	// Tag returns the lower-case tag name ("input", "button", "iframe"...).
	Tag() string

	// Attribute returns the attribute value, or "" when it is absent.
	Attribute(name string) string

	// HasAttribute reports whether the attribute is present at all.
	HasAttribute(name string) bool

	// Text returns the element's text with whitespace collapsed.
	Text() string

	// Visible reports the driver's computed visibility (style, hidden
	// attribute, zero size). The policy belongs to the driver.
	Visible() bool

	// Children returns child elements in document order.
	Children() []Element
}

// ScopeKind tags which variant a Scope is.
type ScopeKind int

const (
	ScopeDocument ScopeKind = iota // whole document
	ScopeElement                   // subtree rooted at an element
	ScopeFrame                     // document of a frame
)

// String returns the string representation of ScopeKind
func (k ScopeKind) String() string {
	switch k {
	case ScopeDocument:
		return "document"
	case ScopeElement:
		return "element"
	case ScopeFrame:
		return "frame"
	default:
		return "unknown"
	}
}

// Scope is a resolved search root. Root is nil for ScopeDocument.
type Scope struct {
	Kind ScopeKind
	Root Element
}

// DocumentScope returns the whole-document scope.
func DocumentScope() Scope {
	return Scope{Kind: ScopeDocument}
}

// ElementScope returns a scope rooted at el.
func ElementScope(el Element) Scope {
	return Scope{Kind: ScopeElement, Root: el}
}

// FrameScope returns a scope rooted at the document of frame.
func FrameScope(frame Element) Scope {
	return Scope{Kind: ScopeFrame, Root: frame}
}

// FindOptions tunes a single resolution attempt.
type FindOptions struct {
	// ConsiderInvisible disables the not-hidden filter.
	ConsiderInvisible bool
}

// Driver defines the capabilities the scope facade needs from a browser binding.
// Implementations: playwright (real browser), memory (in-process HTML).
// Every call is a single attempt; waiting and retrying belong to the caller.
type Driver interface {
	// Visit navigates to an absolute URL.
	Visit(url string) error

	// Element finding
	FindButton(scope Scope, locator string, opts FindOptions) (Element, error)
	FindLink(scope Scope, locator string, opts FindOptions) (Element, error)
	FindField(scope Scope, locator string, opts FindOptions) (Element, error)
	FindSection(scope Scope, locator string, opts FindOptions) (Element, error)
	FindFieldset(scope Scope, locator string, opts FindOptions) (Element, error)
	FindFrame(scope Scope, locator string, opts FindOptions) (Element, error)
	FindID(scope Scope, id string, opts FindOptions) (Element, error)
	FindCSS(scope Scope, css string, opts FindOptions) (Element, error)
	FindXPath(scope Scope, xpath string, opts FindOptions) (Element, error)
	FindAllCSS(scope Scope, css string) ([]Element, error)
	FindAllXPath(scope Scope, xpath string) ([]Element, error)

	// Page queries
	HasContent(scope Scope, text string) (bool, error)
	HasContentMatch(scope Scope, pattern *regexp.Regexp) (bool, error)
	HasCSS(scope Scope, css string) (bool, error)
	HasXPath(scope Scope, xpath string) (bool, error)

	// Interaction
	Click(el Element) error
	Hover(el Element) error
	Check(el Element) error
	Uncheck(el Element) error
	Choose(el Element) error
	ExecuteScript(js string) (string, error)

	// Info returns browser details for reports
	Info() *BrowserInfo

	Close() error
}

// BrowserInfo contains driver and browser details
type BrowserInfo struct {
	Driver   string `json:"driver"`            // playwright, memory
	Browser  string `json:"browser,omitempty"` // chromium, firefox, webkit
	Headless bool   `json:"headless"`
	URL      string `json:"url,omitempty"` // last visited URL
}

// ElementInfo represents information about a resolved element
type ElementInfo struct {
	Tag        string            `json:"tag"`
	ID         string            `json:"id,omitempty"`
	Text       string            `json:"text,omitempty"`
	Visible    bool              `json:"visible"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// describedAttributes are copied into ElementInfo when present.
var describedAttributes = []string{"name", "type", "value", "href", "for", "title", "placeholder", "role"}

// Describe captures an element's identifying details.
func Describe(el Element) *ElementInfo {
	if el == nil {
		return nil
	}
	info := &ElementInfo{
		Tag:     el.Tag(),
		ID:      el.Attribute("id"),
		Text:    el.Text(),
		Visible: el.Visible(),
	}
	for _, name := range describedAttributes {
		if el.HasAttribute(name) {
			if info.Attributes == nil {
				info.Attributes = make(map[string]string)
			}
			info.Attributes[name] = el.Attribute(name)
		}
	}
	return info
}

// String returns a short CSS-like description, e.g. input#email[name=email].
func (i *ElementInfo) String() string {
	if i == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString(i.Tag)
	if i.ID != "" {
		b.WriteString("#" + i.ID)
	}
	if name, ok := i.Attributes["name"]; ok {
		b.WriteString("[name=" + name + "]")
	}
	if i.Text != "" {
		b.WriteString(" \"" + i.Text + "\"")
	}
	return b.String()
}

// NormalizeSpace trims s and collapses internal whitespace runs to one space.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
