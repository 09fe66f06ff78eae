package memory

import (
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/devicelab-dev/browserscope/pkg/core"
	"github.com/devicelab-dev/browserscope/pkg/logger"
)

// bindDocument exposes a small DOM API to page scripts. Selectors are CSS
// and address the first match in the top-level document.
//
//	document.title()                      -> string
//	document.url()                        -> string
//	document.text(sel)                    -> string
//	document.exists(sel)                  -> bool
//	document.setInnerHTML(sel, markup)    -> bool
//	document.appendHTML(sel, markup)      -> bool
//	document.remove(sel)                  -> bool
//	document.setAttribute(sel, name, val) -> bool
//	document.removeAttribute(sel, name)   -> bool
func (d *Driver) bindDocument() {
	doc := d.engine.NewObject()

	doc.Set("title", func() string {
		d.mu.RLock()
		defer d.mu.RUnlock()
		if n := d.queryLocked("title"); n != nil {
			var b strings.Builder
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.TextNode {
					b.WriteString(c.Data)
				}
			}
			return core.NormalizeSpace(b.String())
		}
		return ""
	})
	doc.Set("url", func() string {
		d.mu.RLock()
		defer d.mu.RUnlock()
		return d.url
	})
	doc.Set("text", func(sel string) string {
		d.mu.RLock()
		defer d.mu.RUnlock()
		n := d.queryLocked(sel)
		if n == nil {
			return ""
		}
		var b strings.Builder
		d.collectText(&b, n, false)
		return core.NormalizeSpace(b.String())
	})
	doc.Set("exists", func(sel string) bool {
		d.mu.RLock()
		defer d.mu.RUnlock()
		return d.queryLocked(sel) != nil
	})
	doc.Set("setInnerHTML", func(sel, markup string) bool {
		return d.mutate(sel, func(n *html.Node) {
			for c := n.FirstChild; c != nil; {
				next := c.NextSibling
				n.RemoveChild(c)
				c = next
			}
			d.appendMarkup(n, markup)
		})
	})
	doc.Set("appendHTML", func(sel, markup string) bool {
		return d.mutate(sel, func(n *html.Node) {
			d.appendMarkup(n, markup)
		})
	})
	doc.Set("remove", func(sel string) bool {
		return d.mutate(sel, func(n *html.Node) {
			if n.Parent != nil {
				n.Parent.RemoveChild(n)
			}
		})
	})
	doc.Set("setAttribute", func(sel, name, value string) bool {
		return d.mutate(sel, func(n *html.Node) { setAttr(n, name, value) })
	})
	doc.Set("removeAttribute", func(sel, name string) bool {
		return d.mutate(sel, func(n *html.Node) { removeAttr(n, name) })
	})

	d.engine.Bind("document", doc)
}

// queryLocked returns the first node matching sel. Must be called with mu held.
func (d *Driver) queryLocked(sel string) *html.Node {
	s, err := cascadia.Compile(sel)
	if err != nil {
		logger.Warn("page script used invalid selector %q: %v", sel, err)
		return nil
	}
	return s.MatchFirst(d.doc)
}

func (d *Driver) mutate(sel string, fn func(n *html.Node)) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := d.queryLocked(sel)
	if n == nil {
		return false
	}
	fn(n)
	return true
}

// appendMarkup parses markup in the context of parent and appends the
// result. Must be called with mu held.
func (d *Driver) appendMarkup(parent *html.Node, markup string) {
	nodes, err := html.ParseFragment(strings.NewReader(markup), parent)
	if err != nil {
		logger.Warn("page script produced unparsable markup: %v", err)
		return
	}
	for _, n := range nodes {
		parent.AppendChild(n)
	}
	d.attachFrames(parent)
}
