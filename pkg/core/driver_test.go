package core

import "testing"

type stubElement struct {
	tag     string
	attrs   map[string]string
	text    string
	visible bool
}

func (e *stubElement) Tag() string { return e.tag }
func (e *stubElement) Attribute(name string) string {
	return e.attrs[name]
}
func (e *stubElement) HasAttribute(name string) bool {
	_, ok := e.attrs[name]
	return ok
}
func (e *stubElement) Text() string        { return e.text }
func (e *stubElement) Visible() bool       { return e.visible }
func (e *stubElement) Children() []Element { return nil }

func TestDescribe(t *testing.T) {
	el := &stubElement{
		tag:     "input",
		attrs:   map[string]string{"id": "email", "name": "email", "type": "text", "data-x": "ignored"},
		visible: true,
	}

	info := Describe(el)

	if info.Tag != "input" || info.ID != "email" {
		t.Errorf("Describe() = %+v", info)
	}
	if info.Attributes["type"] != "text" {
		t.Errorf("expected type attribute, got %v", info.Attributes)
	}
	if _, ok := info.Attributes["data-x"]; ok {
		t.Error("Describe() should only copy identifying attributes")
	}
	if got := info.String(); got != "input#email[name=email]" {
		t.Errorf("String() = %q", got)
	}
}

func TestDescribeNil(t *testing.T) {
	if Describe(nil) != nil {
		t.Error("Describe(nil) should be nil")
	}
}

func TestNormalizeSpace(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"  Sign   in \n", "Sign in"},
		{"", ""},
		{"\tone\ttwo\n three ", "one two three"},
	}

	for _, tt := range tests {
		if got := NormalizeSpace(tt.input); got != tt.expected {
			t.Errorf("NormalizeSpace(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestScopeKind_String(t *testing.T) {
	if DocumentScope().Kind.String() != "document" {
		t.Error("DocumentScope kind should be document")
	}
	if ElementScope(nil).Kind.String() != "element" {
		t.Error("ElementScope kind should be element")
	}
	if FrameScope(nil).Kind.String() != "frame" {
		t.Error("FrameScope kind should be frame")
	}
}
