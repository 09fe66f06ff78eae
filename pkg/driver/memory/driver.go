// Package memory provides an in-process browser driver over parsed HTML.
//
// It has no layout engine: visibility comes from the hidden attribute,
// inline display/visibility styles and input type=hidden, inherited from
// ancestors. Inline scripts run in a goja engine with a small document
// binding, so pages can render content late or react to clicks.
package memory

import (
	"fmt"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/net/html"

	"github.com/devicelab-dev/browserscope/pkg/core"
	"github.com/devicelab-dev/browserscope/pkg/jsengine"
	"github.com/devicelab-dev/browserscope/pkg/locate"
	"github.com/devicelab-dev/browserscope/pkg/logger"
)

// Driver is an in-memory implementation of core.Driver.
type Driver struct {
	*locate.Resolver

	Config Config

	mu     sync.RWMutex
	doc    *html.Node
	frames map[*html.Node]*html.Node // iframe -> frame document
	owners map[*html.Node]*html.Node // frame document -> iframe
	url    string

	engine   *jsengine.Engine
	clicks   []string
	hovered  *html.Node
	handlers []func(el core.Element)
}

var _ core.Driver = (*Driver)(nil)

// Config configures the memory driver.
type Config struct {
	// HTML is the initial document.
	HTML string
	// Pages maps URLs (or URL paths) to documents served by Visit, link
	// clicks and form submission.
	Pages map[string]string
}

// New creates a driver showing cfg.HTML.
func New(cfg Config) (*Driver, error) {
	d := &Driver{
		Config: cfg,
		engine: jsengine.New(),
	}
	d.Resolver = locate.New(d.document)
	d.bindDocument()

	src := cfg.HTML
	if src == "" {
		src = "<html><head></head><body></body></html>"
	}
	if err := d.SetHTML(src); err != nil {
		d.engine.Close()
		return nil, err
	}
	return d, nil
}

// SetHTML replaces the document, as a full page re-render would. Element
// handles obtained before the call become stale.
func (d *Driver) SetHTML(src string) error {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return fmt.Errorf("parse document: %w", err)
	}

	d.mu.Lock()
	d.doc = doc
	d.frames = make(map[*html.Node]*html.Node)
	d.owners = make(map[*html.Node]*html.Node)
	d.hovered = nil
	d.attachFrames(doc)
	scripts := inlineScripts(doc)
	d.mu.Unlock()

	for _, script := range scripts {
		if err := d.engine.RunScript(script); err != nil {
			logger.Warn("page script failed: %v", err)
		}
	}
	return nil
}

// attachFrames parses srcdoc (or a registered src page) for every frame
// below n. Must be called with mu held.
func (d *Driver) attachFrames(n *html.Node) {
	walkNodes(n, func(node *html.Node) {
		if node.Type != html.ElementNode || (node.Data != "iframe" && node.Data != "frame") {
			return
		}
		if _, done := d.frames[node]; done {
			return
		}
		src, ok := attr(node, "srcdoc")
		if !ok {
			src, ok = d.lookupPage(attrValue(node, "src"))
		}
		if !ok {
			return
		}
		frameDoc, err := html.Parse(strings.NewReader(src))
		if err != nil {
			logger.Warn("parse frame document: %v", err)
			return
		}
		d.frames[node] = frameDoc
		d.owners[frameDoc] = node
		d.attachFrames(frameDoc)
	})
}

func inlineScripts(doc *html.Node) []string {
	var scripts []string
	walkNodes(doc, func(n *html.Node) {
		if n.Type != html.ElementNode || n.Data != "script" {
			return
		}
		if _, external := attr(n, "src"); external {
			return
		}
		if t := attrValue(n, "type"); t != "" && !strings.Contains(t, "javascript") {
			return
		}
		if n.FirstChild != nil {
			scripts = append(scripts, n.FirstChild.Data)
		}
	})
	return scripts
}

// document is the resolver's root callback.
func (d *Driver) document() (core.Element, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return &Element{d: d, n: d.doc}, nil
}

// lookupPage finds a registered page by exact URL, then by path.
// Must be called with mu held (or before the driver is shared).
func (d *Driver) lookupPage(target string) (string, bool) {
	if target == "" || d.Config.Pages == nil {
		return "", false
	}
	if src, ok := d.Config.Pages[target]; ok {
		return src, true
	}
	if u, err := url.Parse(target); err == nil && u.Path != "" {
		src, ok := d.Config.Pages[u.Path]
		return src, ok
	}
	return "", false
}

// Visit loads the page registered for target. Without registered pages the
// current document stays in place and only the URL changes, which serves a
// single static page.
func (d *Driver) Visit(target string) error {
	d.mu.Lock()
	d.url = target
	if len(d.Config.Pages) == 0 {
		d.mu.Unlock()
		return nil
	}
	src, ok := d.lookupPage(target)
	d.mu.Unlock()

	if !ok {
		return core.ErrDriver.WithMessage(fmt.Sprintf("no page registered for %q", target))
	}
	logger.Debug("memory driver: visit %s", target)
	return d.SetHTML(src)
}

// navigate follows a link or form action relative to the current URL.
func (d *Driver) navigate(ref string) error {
	d.mu.RLock()
	current := d.url
	d.mu.RUnlock()

	target := ref
	if base, err := url.Parse(current); err == nil && current != "" {
		if rel, err := url.Parse(ref); err == nil {
			target = base.ResolveReference(rel).String()
		}
	}

	d.mu.RLock()
	_, ok := d.lookupPage(target)
	d.mu.RUnlock()
	if !ok {
		d.mu.Lock()
		d.url = target
		d.mu.Unlock()
		logger.Debug("memory driver: no page for %s, staying on document", target)
		return nil
	}
	return d.Visit(target)
}

// OnClick registers a hook run after every click, once the default action
// (toggle, navigation, onclick script) has completed. Tests use it to make
// the page react.
func (d *Driver) OnClick(fn func(el core.Element)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers = append(d.handlers, fn)
}

// Clicks returns a description of every clicked element, oldest first.
func (d *Driver) Clicks() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, len(d.clicks))
	copy(out, d.clicks)
	return out
}

// Info returns browser details for reports.
func (d *Driver) Info() *core.BrowserInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return &core.BrowserInfo{
		Driver:   "memory",
		Headless: true,
		URL:      d.url,
	}
}

// Close stops page timers.
func (d *Driver) Close() error {
	d.engine.Close()
	return nil
}

// walkNodes visits n and every node below it in document order.
func walkNodes(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkNodes(c, fn)
	}
}

func attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func attrValue(n *html.Node, name string) string {
	v, _ := attr(n, name)
	return v
}

func setAttr(n *html.Node, name, value string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
}

func removeAttr(n *html.Node, name string) {
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			continue
		}
		kept = append(kept, a)
	}
	n.Attr = kept
}
