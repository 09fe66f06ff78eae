package constraint

import (
	"strings"

	"github.com/devicelab-dev/browserscope/pkg/core"
)

// Kind is a semantic element category used for type-membership tests.
type Kind int

const (
	KindButton Kind = iota
	KindLink
	KindField
	KindRadio
	KindCheckbox
	KindFieldset
	KindSection
	KindLabel
	KindFrame
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindButton:
		return "button"
	case KindLink:
		return "link"
	case KindField:
		return "field"
	case KindRadio:
		return "radio"
	case KindCheckbox:
		return "checkbox"
	case KindFieldset:
		return "fieldset"
	case KindSection:
		return "section"
	case KindLabel:
		return "label"
	case KindFrame:
		return "frame"
	default:
		return "unknown"
	}
}

// buttonInputTypes are input types rendered as buttons.
var buttonInputTypes = map[string]bool{
	"submit": true,
	"button": true,
	"image":  true,
	"reset":  true,
}

// InputType returns the lower-case input type, defaulting to "text".
func InputType(el core.Element) string {
	t := strings.ToLower(strings.TrimSpace(el.Attribute("type")))
	if t == "" {
		return "text"
	}
	return t
}

// IsKind reports whether el belongs to kind.
func IsKind(el core.Element, kind Kind) bool {
	tag := el.Tag()
	switch kind {
	case KindButton:
		if tag == "button" || el.Attribute("role") == "button" {
			return true
		}
		return tag == "input" && buttonInputTypes[InputType(el)]
	case KindLink:
		return tag == "a"
	case KindField:
		switch tag {
		case "textarea", "select":
			return true
		case "input":
			return !buttonInputTypes[InputType(el)]
		}
		return false
	case KindRadio:
		return tag == "input" && InputType(el) == "radio"
	case KindCheckbox:
		return tag == "input" && InputType(el) == "checkbox"
	case KindFieldset:
		return tag == "fieldset"
	case KindSection:
		return tag == "section" || tag == "div"
	case KindLabel:
		return tag == "label"
	case KindFrame:
		return tag == "iframe" || tag == "frame"
	default:
		return false
	}
}

// OfKind matches elements belonging to any of kinds.
func OfKind(kinds ...Kind) Constraint {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return New("kind in ["+strings.Join(names, ",")+"]", func(el core.Element) bool {
		for _, k := range kinds {
			if IsKind(el, k) {
				return true
			}
		}
		return false
	})
}

// IsField matches form fields of any input kind.
func IsField() Constraint {
	return OfKind(KindField)
}
