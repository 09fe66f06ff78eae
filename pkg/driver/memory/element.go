package memory

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/devicelab-dev/browserscope/pkg/core"
)

// Element is a handle to a parsed node. It stays readable after the page
// re-renders, but actions on a detached element fail.
type Element struct {
	d *Driver
	n *html.Node
}

var _ core.Element = (*Element)(nil)

// nonRendered tags never contribute visible content.
var nonRendered = map[string]bool{
	"head":     true,
	"title":    true,
	"meta":     true,
	"link":     true,
	"script":   true,
	"style":    true,
	"template": true,
	"noscript": true,
}

// valueAsText are input types whose caption is their value attribute.
var valueAsText = map[string]bool{
	"submit": true,
	"button": true,
	"reset":  true,
}

// Tag returns the lower-case tag name; "" for the document node.
func (e *Element) Tag() string {
	if e.n.Type != html.ElementNode {
		return ""
	}
	return e.n.Data
}

// Attribute returns the attribute value, or "".
func (e *Element) Attribute(name string) string {
	e.d.mu.RLock()
	defer e.d.mu.RUnlock()
	return attrValue(e.n, name)
}

// HasAttribute reports whether the attribute is present.
func (e *Element) HasAttribute(name string) bool {
	e.d.mu.RLock()
	defer e.d.mu.RUnlock()
	_, ok := attr(e.n, name)
	return ok
}

// Text returns all text below the element, whitespace collapsed. Buttons
// rendered from inputs report their value.
func (e *Element) Text() string {
	e.d.mu.RLock()
	defer e.d.mu.RUnlock()

	if e.n.Type == html.ElementNode && e.n.Data == "input" {
		if valueAsText[strings.ToLower(attrValue(e.n, "type"))] {
			return core.NormalizeSpace(attrValue(e.n, "value"))
		}
		return ""
	}
	var b strings.Builder
	e.d.collectText(&b, e.n, false)
	return core.NormalizeSpace(b.String())
}

// VisibleText returns only rendered text, skipping hidden subtrees. For a
// frame it is the text of the frame's document.
func (e *Element) VisibleText() string {
	e.d.mu.RLock()
	defer e.d.mu.RUnlock()

	n := e.n
	if doc, ok := e.d.frames[n]; ok {
		n = doc
	} else if !e.d.visible(n) {
		return ""
	}
	var b strings.Builder
	e.d.collectText(&b, n, true)
	return core.NormalizeSpace(b.String())
}

// Visible reports whether neither the element nor an ancestor is hidden.
func (e *Element) Visible() bool {
	e.d.mu.RLock()
	defer e.d.mu.RUnlock()
	return e.d.visible(e.n)
}

// Children returns child elements. A frame's children are its document's.
func (e *Element) Children() []core.Element {
	e.d.mu.RLock()
	defer e.d.mu.RUnlock()

	parent := e.n
	if doc, ok := e.d.frames[parent]; ok {
		parent = doc
	}
	var out []core.Element
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, &Element{d: e.d, n: c})
		}
	}
	return out
}

// String describes the element for logs.
func (e *Element) String() string {
	return core.Describe(e).String()
}

// collectText appends text nodes below n. Must be called with mu held.
func (d *Driver) collectText(b *strings.Builder, n *html.Node, visibleOnly bool) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			b.WriteString(c.Data)
			b.WriteByte(' ')
		case html.ElementNode:
			if nonRendered[c.Data] {
				continue
			}
			if visibleOnly && hiddenSelf(c) {
				continue
			}
			if c.Data == "input" && valueAsText[strings.ToLower(attrValue(c, "type"))] {
				b.WriteString(attrValue(c, "value"))
				b.WriteByte(' ')
				continue
			}
			d.collectText(b, c, visibleOnly)
		}
	}
}

// visible walks up the tree, crossing from a frame document to its iframe.
// Must be called with mu held.
func (d *Driver) visible(n *html.Node) bool {
	for cur := n; cur != nil; {
		if cur.Type == html.ElementNode && hiddenSelf(cur) {
			return false
		}
		if cur.Parent == nil {
			if owner, ok := d.owners[cur]; ok {
				cur = owner
				continue
			}
			break
		}
		cur = cur.Parent
	}
	return true
}

// attached reports whether n still belongs to the current document.
// Must be called with mu held.
func (d *Driver) attached(n *html.Node) bool {
	for cur := n; cur != nil; {
		if cur == d.doc {
			return true
		}
		if cur.Parent == nil {
			owner, ok := d.owners[cur]
			if !ok {
				return false
			}
			cur = owner
			continue
		}
		cur = cur.Parent
	}
	return false
}

// hiddenSelf applies the element's own hiding rules.
func hiddenSelf(n *html.Node) bool {
	if nonRendered[n.Data] {
		return true
	}
	if _, ok := attr(n, "hidden"); ok {
		return true
	}
	if n.Data == "input" && strings.EqualFold(attrValue(n, "type"), "hidden") {
		return true
	}
	style := strings.ToLower(strings.ReplaceAll(attrValue(n, "style"), " ", ""))
	return strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden")
}
