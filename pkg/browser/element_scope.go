package browser

import (
	"github.com/devicelab-dev/browserscope/pkg/core"
)

// ElementScope is a scope rooted at an element found by a Finder in a
// parent scope. The element is found again on every attempt, so a scope
// survives the page re-rendering underneath it.
type ElementScope struct {
	base
	parent base
	finder Finder
}

func newElementScope(parent base, f Finder) *ElementScope {
	s := &ElementScope{parent: parent, finder: f}
	s.base = base{session: parent.session, opts: parent.opts, resolve: s.resolveRoot}
	return s
}

// resolveRoot finds the root element once and tags it as a frame or
// element scope.
func (s *ElementScope) resolveRoot() (core.Scope, error) {
	el, err := s.parent.findOnce(s.finder)
	if err != nil {
		return core.Scope{}, err
	}
	if s.finder.frame {
		return core.FrameScope(el), nil
	}
	return core.ElementScope(el), nil
}

// Now makes one attempt at finding the root element.
func (s *ElementScope) Now() (core.Element, error) {
	return s.parent.findOnce(s.finder)
}

// Element waits for the root element to appear.
func (s *ElementScope) Element() (core.Element, error) {
	return s.parent.find(s.finder)
}

// Finder returns a finder for the root element, usable with Has, HasNo,
// Click and Hover in any scope.
func (s *ElementScope) Finder() Finder {
	parent, f := s.parent, s.finder
	return Finder{
		Kind:    f.Kind,
		Locator: f.Locator,
		global:  true,
		frame:   f.frame,
		find: func(core.Driver, core.Scope, core.FindOptions) (core.Element, error) {
			return parent.findOnce(f)
		},
	}
}

// ConsideringInvisibleElements returns a copy whose finds include hidden
// elements. The root itself is still found the way the parent finds it.
func (s *ElementScope) ConsideringInvisibleElements() Scope {
	c := *s
	c.opts.ConsiderInvisible = true
	return &c
}

func (s *ElementScope) String() string {
	return s.finder.String()
}
