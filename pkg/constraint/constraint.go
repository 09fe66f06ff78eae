// Package constraint provides composable predicates over candidate elements.
//
// A Constraint is a small predicate tree: leaves test one property of an
// element, And/Or/Not combine them. Evaluation is pure and may be repeated
// on every poll of a retry loop.
package constraint

import (
	"regexp"
	"strings"

	"github.com/devicelab-dev/browserscope/pkg/core"
)

type op int

const (
	opLeaf op = iota
	opAnd
	opOr
	opNot
)

// Constraint is a predicate over a core.Element.
// The zero value matches nothing.
type Constraint struct {
	op       op
	desc     string
	leaf     func(core.Element) bool
	children []Constraint
}

// New returns a leaf constraint.
func New(desc string, match func(core.Element) bool) Constraint {
	return Constraint{op: opLeaf, desc: desc, leaf: match}
}

// Matches evaluates the constraint against el.
// And stops at the first failing child, Or at the first passing child.
func (c Constraint) Matches(el core.Element) bool {
	if el == nil {
		return false
	}
	switch c.op {
	case opAnd:
		for _, child := range c.children {
			if !child.Matches(el) {
				return false
			}
		}
		return true
	case opOr:
		for _, child := range c.children {
			if child.Matches(el) {
				return true
			}
		}
		return false
	case opNot:
		return !c.children[0].Matches(el)
	default:
		return c.leaf != nil && c.leaf(el)
	}
}

// String describes the constraint, e.g. (id="q" OR name="q").
func (c Constraint) String() string {
	switch c.op {
	case opAnd, opOr:
		sep := " AND "
		if c.op == opOr {
			sep = " OR "
		}
		parts := make([]string, len(c.children))
		for i, child := range c.children {
			parts[i] = child.String()
		}
		return "(" + strings.Join(parts, sep) + ")"
	case opNot:
		return "NOT " + c.children[0].String()
	default:
		return c.desc
	}
}

// And holds iff every constraint holds. And() holds for every element.
// Nested Ands are flattened so grouping does not change evaluation order.
func And(cs ...Constraint) Constraint {
	return combine(opAnd, cs)
}

// Or holds iff any constraint holds. Or() holds for no element.
func Or(cs ...Constraint) Constraint {
	return combine(opOr, cs)
}

// Not negates c.
func Not(c Constraint) Constraint {
	return Constraint{op: opNot, children: []Constraint{c}}
}

// Any matches every element.
func Any() Constraint {
	return New("any", func(core.Element) bool { return true })
}

func combine(o op, cs []Constraint) Constraint {
	flat := make([]Constraint, 0, len(cs))
	for _, c := range cs {
		if c.op == o {
			flat = append(flat, c.children...)
			continue
		}
		flat = append(flat, c)
	}
	if len(flat) == 1 {
		return flat[0]
	}
	return Constraint{op: o, children: flat}
}

// Attr matches elements whose attribute equals value exactly (case-sensitive).
func Attr(name, value string) Constraint {
	return New(name+"=\""+value+"\"", func(el core.Element) bool {
		return el.HasAttribute(name) && el.Attribute(name) == value
	})
}

// ID matches the id attribute.
func ID(id string) Constraint { return Attr("id", id) }

// Name matches the name attribute.
func Name(name string) Constraint { return Attr("name", name) }

// Value matches the value attribute.
func Value(value string) Constraint { return Attr("value", value) }

// Alt matches the alt attribute.
func Alt(alt string) Constraint { return Attr("alt", alt) }

// Title matches the title attribute.
func Title(title string) Constraint { return Attr("title", title) }

// Placeholder matches the placeholder attribute.
func Placeholder(text string) Constraint { return Attr("placeholder", text) }

// Text matches elements whose visible text equals text after whitespace
// normalisation.
func Text(text string) Constraint {
	want := core.NormalizeSpace(text)
	return New("text=\""+want+"\"", func(el core.Element) bool {
		return core.NormalizeSpace(el.Text()) == want
	})
}

// TextMatches matches elements whose visible text matches re.
func TextMatches(re *regexp.Regexp) Constraint {
	return New("text~/"+re.String()+"/", func(el core.Element) bool {
		return re.MatchString(el.Text())
	})
}

// NotHidden excludes elements the driver reports as not visible.
func NotHidden() Constraint {
	return New("visible", func(el core.Element) bool {
		return el.Visible()
	})
}

// PartialID matches elements whose id contains fragment, for generated
// composite ids such as ctl00_MainContent_Email.
func PartialID(fragment string) Constraint {
	return New("id*=\""+fragment+"\"", func(el core.Element) bool {
		return fragment != "" && strings.Contains(el.Attribute("id"), fragment)
	})
}

// OfTag matches any of the given lower-case tag names.
func OfTag(tags ...string) Constraint {
	return New("tag in ["+strings.Join(tags, ",")+"]", func(el core.Element) bool {
		tag := el.Tag()
		for _, t := range tags {
			if tag == t {
				return true
			}
		}
		return false
	})
}

// HasChild holds if a direct child has one of tags and satisfies inner.
func HasChild(tags []string, inner Constraint) Constraint {
	isTag := OfTag(tags...)
	return New("has child "+isTag.String()+" "+inner.String(), func(el core.Element) bool {
		for _, child := range el.Children() {
			if isTag.Matches(child) && inner.Matches(child) {
				return true
			}
		}
		return false
	})
}

// HasDescendant holds if any descendant has one of tags and satisfies inner.
func HasDescendant(tags []string, inner Constraint) Constraint {
	isTag := OfTag(tags...)
	match := And(isTag, inner)
	return New("has descendant "+match.String(), func(el core.Element) bool {
		return anyDescendant(el, match)
	})
}

func anyDescendant(el core.Element, c Constraint) bool {
	for _, child := range el.Children() {
		if c.Matches(child) || anyDescendant(child, c) {
			return true
		}
	}
	return false
}

// Headings are the section heading tags.
var Headings = []string{"h1", "h2", "h3", "h4", "h5", "h6"}
