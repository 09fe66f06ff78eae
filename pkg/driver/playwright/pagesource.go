package playwright

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/devicelab-dev/browserscope/pkg/core"
)

// snapshotScript serializes the live DOM, including same-origin frame
// documents, into the ParsedNode JSON tree. Every element carries an
// absolute positional XPath within its own document so actions can find it
// again through a locator.
const snapshotScript = `() => {
  const pathOf = (el) => {
    const parts = [];
    for (let n = el; n; n = n.parentElement) {
      let i = 1;
      for (let s = n.previousElementSibling; s; s = s.previousElementSibling) i++;
      parts.unshift('*[' + i + ']');
    }
    return '/' + parts.join('/');
  };
  const valueText = { submit: true, button: true, reset: true };
  const walk = (el) => {
    const tag = el.tagName.toLowerCase();
    const attrs = {};
    for (const a of el.attributes) attrs[a.name] = a.value;
    const style = el.ownerDocument.defaultView.getComputedStyle(el);
    const rect = el.getBoundingClientRect();
    const visible = style.display !== 'none' && style.visibility !== 'hidden' && rect.width > 0 && rect.height > 0;
    const node = { tag, attrs, xpath: pathOf(el), visible, children: [] };
    if (tag === 'input') {
      node.text = valueText[(el.type || '').toLowerCase()] ? (el.value || '') : '';
      node.shown = visible ? node.text : '';
    } else {
      node.text = el.textContent || '';
      node.shown = visible ? (el.innerText || '') : '';
    }
    for (const c of el.children) node.children.push(walk(c));
    if (tag === 'iframe' || tag === 'frame') {
      try {
        const d = el.contentDocument;
        if (d && d.documentElement) node.doc = walkDoc(d);
      } catch (e) {}
    }
    return node;
  };
  const walkDoc = (d) => ({
    tag: '', attrs: {}, xpath: '', visible: true,
    text: d.documentElement.textContent || '',
    shown: d.body ? d.body.innerText : '',
    children: [walk(d.documentElement)],
  });
  return JSON.stringify(walkDoc(document));
}`

// queryScript returns the XPaths of the elements matching a CSS selector or
// an XPath expression below a root, in document order.
const queryScript = `(arg) => {
  const pathOf = (el) => {
    const parts = [];
    for (let n = el; n; n = n.parentElement) {
      let i = 1;
      for (let s = n.previousElementSibling; s; s = s.previousElementSibling) i++;
      parts.unshift('*[' + i + ']');
    }
    return '/' + parts.join('/');
  };
  const one = (doc, path) => doc.evaluate(path, doc, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
  let doc = document;
  for (const f of arg.frames) {
    const el = one(doc, f);
    if (!el || !el.contentDocument) throw new Error('stale frame: ' + f);
    doc = el.contentDocument;
  }
  let root = doc;
  if (arg.root) {
    root = one(doc, arg.root);
    if (!root) throw new Error('stale scope: ' + arg.root);
  }
  const found = [];
  if (arg.css) {
    for (const el of root.querySelectorAll(arg.css)) found.push(el);
  } else {
    const r = doc.evaluate(arg.xpath, root, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
    for (let i = 0; i < r.snapshotLength; i++) {
      const n = r.snapshotItem(i);
      if (n.nodeType === 1 && n !== root) found.push(n);
    }
  }
  return found.map(pathOf);
}`

// ParsedNode is one element of a DOM snapshot. The document itself is a
// node with an empty tag.
type ParsedNode struct {
	Tag      string            `json:"tag"`
	Attrs    map[string]string `json:"attrs"`
	XPath    string            `json:"xpath"`
	Visible  bool              `json:"visible"`
	Text     string            `json:"text"`  // textContent, or the value of input buttons
	Shown    string            `json:"shown"` // innerText; empty when not rendered
	Children []*ParsedNode     `json:"children"`
	Doc      *ParsedNode       `json:"doc,omitempty"` // frame document
}

// ParseSnapshot decodes the output of snapshotScript.
func ParseSnapshot(data string) (*ParsedNode, error) {
	var root ParsedNode
	if err := json.Unmarshal([]byte(data), &root); err != nil {
		return nil, fmt.Errorf("decode DOM snapshot: %w", err)
	}
	return &root, nil
}

// index maps frame path plus XPath to every element of the snapshot.
func index(root *ParsedNode, frames []string, out map[string]*ParsedNode) {
	for _, c := range root.Children {
		out[key(frames, c.XPath)] = c
		index(c, frames, out)
		if c.Doc != nil {
			index(c.Doc, appendFrame(frames, c.XPath), out)
		}
	}
}

func key(frames []string, xpath string) string {
	return strings.Join(frames, "|") + "|" + xpath
}

// appendFrame never shares the backing array between siblings.
func appendFrame(frames []string, xpath string) []string {
	out := make([]string, len(frames), len(frames)+1)
	copy(out, frames)
	return append(out, xpath)
}

// Element is a snapshot element. Reads come from the snapshot; actions go
// through a locator built from the element's frame path and XPath.
type Element struct {
	node   *ParsedNode
	frames []string
}

var _ core.Element = (*Element)(nil)

// Tag returns the lower-case tag name.
func (e *Element) Tag() string { return e.node.Tag }

// Attribute returns the attribute value, or "".
func (e *Element) Attribute(name string) string { return e.node.Attrs[name] }

// HasAttribute reports whether the attribute is present.
func (e *Element) HasAttribute(name string) bool {
	_, ok := e.node.Attrs[name]
	return ok
}

// Text returns the element's text with whitespace collapsed.
func (e *Element) Text() string { return core.NormalizeSpace(e.node.Text) }

// VisibleText returns the rendered text. A frame reports its document's.
func (e *Element) VisibleText() string {
	if e.node.Doc != nil {
		return e.node.Doc.Shown
	}
	return e.node.Shown
}

// Visible reports the computed visibility at snapshot time.
func (e *Element) Visible() bool { return e.node.Visible }

// Children returns child elements. A frame's children are its document's.
func (e *Element) Children() []core.Element {
	parent, frames := e.node, e.frames
	if e.node.Doc != nil {
		parent, frames = e.node.Doc, appendFrame(e.frames, e.node.XPath)
	}
	out := make([]core.Element, len(parent.Children))
	for i, c := range parent.Children {
		out[i] = &Element{node: c, frames: frames}
	}
	return out
}

func (e *Element) String() string {
	return key(e.frames, e.node.XPath)
}
