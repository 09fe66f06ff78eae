package flow

import (
	"fmt"
	"strconv"
	"strings"
)

// Target names one element by exactly one locator kind.
// Pure data structure - the executor decides how to find it.
type Target struct {
	Button   string `yaml:"button"`
	Link     string `yaml:"link"`
	Field    string `yaml:"field"`
	Section  string `yaml:"section"`
	Fieldset string `yaml:"fieldset"`
	Frame    string `yaml:"frame"`
	ID       string `yaml:"id"`
	CSS      string `yaml:"css"`
	XPath    string `yaml:"xpath"`
}

// Locator kinds, in the order Kind reports them.
const (
	KindButton   = "button"
	KindLink     = "link"
	KindField    = "field"
	KindSection  = "section"
	KindFieldset = "fieldset"
	KindFrame    = "frame"
	KindID       = "id"
	KindCSS      = "css"
	KindXPath    = "xpath"
)

func (t Target) set() [][2]string {
	var out [][2]string
	for _, kv := range [][2]string{
		{KindButton, t.Button},
		{KindLink, t.Link},
		{KindField, t.Field},
		{KindSection, t.Section},
		{KindFieldset, t.Fieldset},
		{KindFrame, t.Frame},
		{KindID, t.ID},
		{KindCSS, t.CSS},
		{KindXPath, t.XPath},
	} {
		if kv[1] != "" {
			out = append(out, kv)
		}
	}
	return out
}

// Kind returns the locator kind and value.
func (t Target) Kind() (kind, locator string) {
	if s := t.set(); len(s) > 0 {
		return s[0][0], s[0][1]
	}
	return "", ""
}

// Validate requires exactly one locator.
func (t Target) Validate() error {
	s := t.set()
	switch len(s) {
	case 0:
		return fmt.Errorf("target needs one of button, link, field, section, fieldset, frame, id, css, xpath")
	case 1:
		return nil
	default:
		kinds := make([]string, len(s))
		for i, kv := range s {
			kinds[i] = kv[0]
		}
		return fmt.Errorf("target has more than one locator: %s", strings.Join(kinds, ", "))
	}
}

// IsContainer reports whether the target can scope a within block.
func (t Target) IsContainer() bool {
	kind, _ := t.Kind()
	switch kind {
	case KindSection, KindFieldset, KindFrame, KindID, KindCSS, KindXPath:
		return true
	}
	return false
}

// Describe returns e.g. button "Sign in".
func (t Target) Describe() string {
	kind, locator := t.Kind()
	if kind == "" {
		return "<no target>"
	}
	return kind + " " + strconv.Quote(locator)
}
