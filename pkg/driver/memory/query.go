package memory

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/devicelab-dev/browserscope/pkg/core"
)

// rootNode resolves a scope to the node queries start from.
func (d *Driver) rootNode(scope core.Scope) (*html.Node, error) {
	root, err := d.Root(scope)
	if err != nil {
		return nil, err
	}
	el, ok := root.(*Element)
	if !ok || el.d != d {
		return nil, core.ErrDriver.WithMessage(fmt.Sprintf("scope root %T does not belong to this driver", root))
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if doc, ok := d.frames[el.n]; ok {
		return doc, nil
	}
	return el.n, nil
}

func (d *Driver) cssNodes(scope core.Scope, css string) ([]*html.Node, error) {
	sel, err := cascadia.Compile(css)
	if err != nil {
		return nil, core.ErrInvalidLocator.WithMessage(fmt.Sprintf("invalid CSS selector %q", css)).WithCause(err)
	}
	root, err := d.rootNode(scope)
	if err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	return goquery.NewDocumentFromNode(root).FindMatcher(sel).Nodes, nil
}

func (d *Driver) xpathNodes(scope core.Scope, expr string) ([]*html.Node, error) {
	root, err := d.rootNode(scope)
	if err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	nodes, err := htmlquery.QueryAll(root, expr)
	if err != nil {
		return nil, core.ErrInvalidLocator.WithMessage(fmt.Sprintf("invalid XPath %q", expr)).WithCause(err)
	}
	out := nodes[:0]
	for _, n := range nodes {
		if n.Type == html.ElementNode && n != root {
			out = append(out, n)
		}
	}
	return out, nil
}

// first returns the first node passing the visibility filter.
func (d *Driver) first(nodes []*html.Node, kind, locator string, opts core.FindOptions) (core.Element, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, n := range nodes {
		if opts.ConsiderInvisible || d.visible(n) {
			return &Element{d: d, n: n}, nil
		}
	}
	return nil, core.NotFound(kind, locator)
}

func (d *Driver) anyVisible(nodes []*html.Node) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, n := range nodes {
		if d.visible(n) {
			return true
		}
	}
	return false
}

func (d *Driver) wrap(nodes []*html.Node) []core.Element {
	out := make([]core.Element, len(nodes))
	for i, n := range nodes {
		out[i] = &Element{d: d, n: n}
	}
	return out
}

// FindCSS returns the first visible element matching a CSS selector.
func (d *Driver) FindCSS(scope core.Scope, css string, opts core.FindOptions) (core.Element, error) {
	nodes, err := d.cssNodes(scope, css)
	if err != nil {
		return nil, err
	}
	return d.first(nodes, "css", css, opts)
}

// FindXPath returns the first visible element matching an XPath expression.
func (d *Driver) FindXPath(scope core.Scope, expr string, opts core.FindOptions) (core.Element, error) {
	nodes, err := d.xpathNodes(scope, expr)
	if err != nil {
		return nil, err
	}
	return d.first(nodes, "xpath", expr, opts)
}

// FindAllCSS returns every element matching a CSS selector, hidden or not.
func (d *Driver) FindAllCSS(scope core.Scope, css string) ([]core.Element, error) {
	nodes, err := d.cssNodes(scope, css)
	if err != nil {
		return nil, err
	}
	return d.wrap(nodes), nil
}

// FindAllXPath returns every element matching an XPath expression.
func (d *Driver) FindAllXPath(scope core.Scope, expr string) ([]core.Element, error) {
	nodes, err := d.xpathNodes(scope, expr)
	if err != nil {
		return nil, err
	}
	return d.wrap(nodes), nil
}

// HasCSS reports whether a visible element matches the selector.
func (d *Driver) HasCSS(scope core.Scope, css string) (bool, error) {
	nodes, err := d.cssNodes(scope, css)
	if err != nil {
		return false, err
	}
	return d.anyVisible(nodes), nil
}

// HasXPath reports whether a visible element matches the expression.
func (d *Driver) HasXPath(scope core.Scope, expr string) (bool, error) {
	nodes, err := d.xpathNodes(scope, expr)
	if err != nil {
		return false, err
	}
	return d.anyVisible(nodes), nil
}
