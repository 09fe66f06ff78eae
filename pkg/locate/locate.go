// Package locate turns a human-readable locator into exactly one element.
//
// Every element kind has an ordered list of named strategies, each one
// interpretation of the locator. The scope's candidates are filtered once by
// kind, visibility and the union of all strategies; the pool is then tried
// tier by tier and the first element of the first matching tier wins.
//
// A Resolver performs one attempt. Waiting belongs to the caller.
package locate

import (
	"regexp"
	"strings"

	"github.com/devicelab-dev/browserscope/pkg/constraint"
	"github.com/devicelab-dev/browserscope/pkg/core"
)

// Strategy is one named interpretation of a locator.
type Strategy struct {
	Name       string
	Constraint constraint.Constraint
}

// Resolver resolves locators against a driver's element tree.
// Drivers embed it to satisfy the Find* half of core.Driver.
type Resolver struct {
	document func() (core.Element, error)
}

// New creates a resolver. document returns the current document root and
// is called once per attempt.
func New(document func() (core.Element, error)) *Resolver {
	return &Resolver{document: document}
}

// Root returns the search root of scope.
func (r *Resolver) Root(scope core.Scope) (core.Element, error) {
	switch scope.Kind {
	case core.ScopeElement, core.ScopeFrame:
		if scope.Root == nil {
			return nil, core.ErrInvalidLocator.WithMessage(scope.Kind.String() + " scope has no root element")
		}
		return scope.Root, nil
	default:
		return r.document()
	}
}

// Descendants returns every element below root in document order. Frame
// documents are separate search spaces: their content is only reachable
// from a frame scope.
func Descendants(root core.Element) []core.Element {
	var out []core.Element
	var walk func(el core.Element)
	walk = func(el core.Element) {
		for _, child := range el.Children() {
			out = append(out, child)
			if !constraint.IsKind(child, constraint.KindFrame) {
				walk(child)
			}
		}
	}
	walk(root)
	return out
}

// Filter returns the elements matching c, keeping order.
func Filter(elements []core.Element, c constraint.Constraint) []core.Element {
	var out []core.Element
	for _, el := range elements {
		if c.Matches(el) {
			out = append(out, el)
		}
	}
	return out
}

// FirstMatching narrows candidates to the pool matching base and any
// strategy, then returns the first pool element of the highest-priority
// strategy that matches, along with that strategy's name.
func FirstMatching(candidates []core.Element, base constraint.Constraint, strategies []Strategy) (core.Element, string) {
	union := make([]constraint.Constraint, len(strategies))
	for i, s := range strategies {
		union[i] = s.Constraint
	}
	pool := Filter(candidates, constraint.And(base, constraint.Or(union...)))
	if len(pool) == 0 {
		return nil, ""
	}
	for _, s := range strategies {
		for _, el := range pool {
			if s.Constraint.Matches(el) {
				return el, s.Name
			}
		}
	}
	return nil, ""
}

func visibility(opts core.FindOptions) constraint.Constraint {
	if opts.ConsiderInvisible {
		return constraint.Any()
	}
	return constraint.NotHidden()
}

// find runs a tiered resolution of kind within scope.
func (r *Resolver) find(scope core.Scope, kindName, locator string, kind constraint.Constraint, opts core.FindOptions, strategies []Strategy) (core.Element, error) {
	root, err := r.Root(scope)
	if err != nil {
		return nil, err
	}
	el, _ := FirstMatching(Descendants(root), constraint.And(kind, visibility(opts)), strategies)
	if el == nil {
		return nil, core.NotFound(kindName, locator)
	}
	return el, nil
}

// ButtonStrategies: exact text, then id/name/value/alt, then partial id.
func ButtonStrategies(locator string) []Strategy {
	return []Strategy{
		{Name: "text", Constraint: constraint.Text(locator)},
		{Name: "attribute", Constraint: constraint.Or(
			constraint.ID(locator),
			constraint.Name(locator),
			constraint.Value(locator),
			constraint.Alt(locator),
		)},
		{Name: "partial id", Constraint: constraint.PartialID(locator)},
	}
}

// FieldStrategies are the fallbacks used when no label leads to a field.
func FieldStrategies(locator string) []Strategy {
	return []Strategy{
		{Name: "id or name", Constraint: constraint.Or(constraint.ID(locator), constraint.Name(locator))},
		{Name: "placeholder", Constraint: constraint.Placeholder(locator)},
		{Name: "radio value", Constraint: constraint.And(
			constraint.OfKind(constraint.KindRadio),
			constraint.Value(locator),
		)},
		{Name: "partial id", Constraint: constraint.PartialID(locator)},
	}
}

func containerStrategies(locator string, headingTags []string) []Strategy {
	text := constraint.Text(locator)
	return []Strategy{
		{Name: "id", Constraint: constraint.ID(locator)},
		{Name: "heading", Constraint: constraint.HasChild(headingTags, text)},
		{Name: "nested heading", Constraint: constraint.HasDescendant(headingTags, text)},
	}
}

// SectionStrategies: id, then a direct-child heading, then any heading below.
func SectionStrategies(locator string) []Strategy {
	return containerStrategies(locator, constraint.Headings)
}

// FieldsetStrategies: id, then a direct-child legend, then any legend below.
func FieldsetStrategies(locator string) []Strategy {
	return containerStrategies(locator, []string{"legend"})
}

// FrameStrategies is a single combined alternative: title, id or an h1 with
// the locator as text.
func FrameStrategies(locator string) []Strategy {
	return []Strategy{
		{Name: "frame", Constraint: constraint.Or(
			constraint.Title(locator),
			constraint.ID(locator),
			constraint.HasDescendant([]string{"h1"}, constraint.Text(locator)),
		)},
	}
}

// FindButton resolves a button by text, attributes or partial id.
func (r *Resolver) FindButton(scope core.Scope, locator string, opts core.FindOptions) (core.Element, error) {
	return r.find(scope, "button", locator, constraint.OfKind(constraint.KindButton), opts, ButtonStrategies(locator))
}

// FindLink resolves a link by its exact visible text.
func (r *Resolver) FindLink(scope core.Scope, locator string, opts core.FindOptions) (core.Element, error) {
	return r.find(scope, "link", locator, constraint.OfKind(constraint.KindLink), opts, []Strategy{
		{Name: "text", Constraint: constraint.Text(locator)},
	})
}

// FindField resolves a form field, first through a label whose text matches
// the locator as a pattern, then through FieldStrategies.
func (r *Resolver) FindField(scope core.Scope, locator string, opts core.FindOptions) (core.Element, error) {
	root, err := r.Root(scope)
	if err != nil {
		return nil, err
	}
	candidates := Descendants(root)
	isField := constraint.And(constraint.IsField(), visibility(opts))

	if el := fieldByLabel(candidates, locator, isField, opts); el != nil {
		return el, nil
	}

	el, _ := FirstMatching(candidates, isField, FieldStrategies(locator))
	if el == nil {
		return nil, core.NotFound("field", locator)
	}
	return el, nil
}

// LabelPattern compiles a locator for label matching. Locators that are not
// valid regular expressions are matched literally.
func LabelPattern(locator string) *regexp.Regexp {
	if re, err := regexp.Compile(locator); err == nil {
		return re
	}
	return regexp.MustCompile(regexp.QuoteMeta(locator))
}

func fieldByLabel(candidates []core.Element, locator string, isField constraint.Constraint, opts core.FindOptions) core.Element {
	labels := Filter(candidates, constraint.And(
		constraint.OfKind(constraint.KindLabel),
		visibility(opts),
		constraint.TextMatches(LabelPattern(locator)),
	))
	for _, label := range labels {
		if target := strings.TrimSpace(label.Attribute("for")); target != "" {
			if fields := Filter(candidates, constraint.And(isField, constraint.ID(target))); len(fields) > 0 {
				return fields[0]
			}
		}
		// no usable for attribute: a control nested in the label
		if fields := Filter(Descendants(label), isField); len(fields) > 0 {
			return fields[0]
		}
	}
	return nil
}

// FindSection resolves a section or div container.
func (r *Resolver) FindSection(scope core.Scope, locator string, opts core.FindOptions) (core.Element, error) {
	return r.find(scope, "section", locator, constraint.OfKind(constraint.KindSection), opts, SectionStrategies(locator))
}

// FindFieldset resolves a fieldset by id or legend.
func (r *Resolver) FindFieldset(scope core.Scope, locator string, opts core.FindOptions) (core.Element, error) {
	return r.find(scope, "fieldset", locator, constraint.OfKind(constraint.KindFieldset), opts, FieldsetStrategies(locator))
}

// FindFrame resolves an iframe or frame. Frames are matched regardless of
// visibility.
func (r *Resolver) FindFrame(scope core.Scope, locator string, _ core.FindOptions) (core.Element, error) {
	return r.find(scope, "frame", locator, constraint.OfKind(constraint.KindFrame), core.FindOptions{ConsiderInvisible: true}, FrameStrategies(locator))
}

// FindID resolves the unique element with the given id. More than one
// candidate is an Ambiguous error.
func (r *Resolver) FindID(scope core.Scope, id string, opts core.FindOptions) (core.Element, error) {
	root, err := r.Root(scope)
	if err != nil {
		return nil, err
	}
	matches := Filter(Descendants(root), constraint.And(constraint.ID(id), visibility(opts)))
	switch len(matches) {
	case 0:
		return nil, core.NotFound("id", id)
	case 1:
		return matches[0], nil
	default:
		return nil, core.Ambiguous("id", id, len(matches))
	}
}

// VisibleTexter is implemented by elements that can report only their
// rendered text, excluding hidden descendants and scripts.
type VisibleTexter interface {
	VisibleText() string
}

// VisibleText returns el's rendered text, falling back to Text.
func VisibleText(el core.Element) string {
	if vt, ok := el.(VisibleTexter); ok {
		return vt.VisibleText()
	}
	return el.Text()
}

// HasContent reports whether the scope's visible text contains text, after
// whitespace normalisation of both.
func (r *Resolver) HasContent(scope core.Scope, text string) (bool, error) {
	root, err := r.Root(scope)
	if err != nil {
		return false, err
	}
	return strings.Contains(core.NormalizeSpace(VisibleText(root)), core.NormalizeSpace(text)), nil
}

// HasContentMatch reports whether the scope's visible text matches pattern.
func (r *Resolver) HasContentMatch(scope core.Scope, pattern *regexp.Regexp) (bool, error) {
	root, err := r.Root(scope)
	if err != nil {
		return false, err
	}
	return pattern.MatchString(core.NormalizeSpace(VisibleText(root))), nil
}
