package playwright

import (
	"fmt"
	"strings"

	"github.com/devicelab-dev/browserscope/pkg/core"
)

// own converts el back to a snapshot element of this driver.
func own(el core.Element) (*Element, error) {
	e, ok := el.(*Element)
	if !ok {
		return nil, core.ErrDriver.WithMessage(fmt.Sprintf("element %T does not belong to the playwright driver", el))
	}
	return e, nil
}

// target splits a scope into the frame path and root XPath the query
// script expects.
func (d *Driver) target(scope core.Scope) (frames []string, root string, err error) {
	if scope.Kind == core.ScopeDocument {
		return []string{}, "", nil
	}
	r, err := d.Root(scope)
	if err != nil {
		return nil, "", err
	}
	e, err := own(r)
	if err != nil {
		return nil, "", err
	}
	if e.node.Doc != nil || e.node.Tag == "iframe" || e.node.Tag == "frame" {
		return appendFrame(e.frames, e.node.XPath), "", nil
	}
	return append([]string{}, e.frames...), e.node.XPath, nil
}

// matches runs a CSS or XPath query and maps the results onto a fresh
// snapshot.
func (d *Driver) matches(scope core.Scope, lang, expr string) ([]*Element, error) {
	frames, root, err := d.target(scope)
	if err != nil {
		return nil, err
	}
	arg := map[string]interface{}{"frames": frames, "root": root, "css": "", "xpath": ""}
	arg[lang] = expr

	paths, err := d.query(arg)
	if err != nil {
		if invalidExpression(err) {
			return nil, core.ErrInvalidLocator.WithMessage(fmt.Sprintf("invalid %s %q", lang, expr)).WithCause(err)
		}
		return nil, core.ErrDriver.WithMessage(lang + " query failed").WithCause(err)
	}
	if len(paths) == 0 {
		return nil, nil
	}

	doc, err := d.document()
	if err != nil {
		return nil, err
	}
	nodes := make(map[string]*ParsedNode)
	index(doc.(*Element).node, nil, nodes)

	out := make([]*Element, 0, len(paths))
	for _, p := range paths {
		if n, ok := nodes[key(frames, p)]; ok {
			out = append(out, &Element{node: n, frames: frames})
		}
	}
	return out, nil
}

// invalidExpression recognizes the browser's selector syntax errors.
func invalidExpression(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "SyntaxError") || strings.Contains(msg, "is not a valid")
}

func first(els []*Element, kind, locator string, opts core.FindOptions) (core.Element, error) {
	for _, e := range els {
		if opts.ConsiderInvisible || e.Visible() {
			return e, nil
		}
	}
	return nil, core.NotFound(kind, locator)
}

func anyVisible(els []*Element) bool {
	for _, e := range els {
		if e.Visible() {
			return true
		}
	}
	return false
}

func wrap(els []*Element) []core.Element {
	out := make([]core.Element, len(els))
	for i, e := range els {
		out[i] = e
	}
	return out
}

// FindCSS returns the first visible element matching a CSS selector.
func (d *Driver) FindCSS(scope core.Scope, css string, opts core.FindOptions) (core.Element, error) {
	els, err := d.matches(scope, "css", css)
	if err != nil {
		return nil, err
	}
	return first(els, "css", css, opts)
}

// FindXPath returns the first visible element matching an XPath expression.
func (d *Driver) FindXPath(scope core.Scope, expr string, opts core.FindOptions) (core.Element, error) {
	els, err := d.matches(scope, "xpath", expr)
	if err != nil {
		return nil, err
	}
	return first(els, "xpath", expr, opts)
}

// FindAllCSS returns every element matching a CSS selector.
func (d *Driver) FindAllCSS(scope core.Scope, css string) ([]core.Element, error) {
	els, err := d.matches(scope, "css", css)
	if err != nil {
		return nil, err
	}
	return wrap(els), nil
}

// FindAllXPath returns every element matching an XPath expression.
func (d *Driver) FindAllXPath(scope core.Scope, expr string) ([]core.Element, error) {
	els, err := d.matches(scope, "xpath", expr)
	if err != nil {
		return nil, err
	}
	return wrap(els), nil
}

// HasCSS reports whether a visible element matches the selector.
func (d *Driver) HasCSS(scope core.Scope, css string) (bool, error) {
	els, err := d.matches(scope, "css", css)
	if err != nil {
		return false, err
	}
	return anyVisible(els), nil
}

// HasXPath reports whether a visible element matches the expression.
func (d *Driver) HasXPath(scope core.Scope, expr string) (bool, error) {
	els, err := d.matches(scope, "xpath", expr)
	if err != nil {
		return false, err
	}
	return anyVisible(els), nil
}
