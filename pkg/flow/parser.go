package flow

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ParseError represents a parsing error with location info.
type ParseError struct {
	Path    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ParseFile parses a single flow file.
func ParseFile(path string) (*Flow, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path is user-provided flow file
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(data, path)
}

// Parse parses flow YAML: an optional config document, then the step list.
func Parse(data []byte, sourcePath string) (*Flow, error) {
	p := &parser{path: sourcePath}

	var docs []*yaml.Node
	dec := yaml.NewDecoder(bytes.NewReader(data))
	for {
		var doc yaml.Node
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, p.errorf(0, "invalid YAML: %v", err)
		}
		if len(doc.Content) > 0 {
			docs = append(docs, doc.Content[0])
		}
	}

	flow := &Flow{SourcePath: sourcePath}
	switch len(docs) {
	case 0:
		return nil, p.errorf(1, "empty flow file")
	case 1:
		steps, err := p.steps(docs[0])
		if err != nil {
			return nil, err
		}
		flow.Steps = steps
	case 2:
		if err := docs[0].Decode(&flow.Config); err != nil {
			return nil, p.errorf(docs[0].Line, "invalid config: %v", err)
		}
		steps, err := p.steps(docs[1])
		if err != nil {
			return nil, err
		}
		flow.Steps = steps
	default:
		return nil, p.errorf(docs[2].Line, "a flow has at most two documents: config and steps")
	}
	return flow, nil
}

type parser struct {
	path string
}

func (p *parser) errorf(line int, format string, args ...interface{}) *ParseError {
	return &ParseError{Path: p.path, Line: line, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) wrap(node *yaml.Node, err error) error {
	return &ParseError{Path: p.path, Line: node.Line, Message: err.Error()}
}

func (p *parser) steps(node *yaml.Node) ([]Step, error) {
	if node.Kind != yaml.SequenceNode {
		return nil, p.errorf(node.Line, "steps must be a list")
	}
	steps := make([]Step, 0, len(node.Content))
	for _, item := range node.Content {
		step, err := p.step(item)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func (p *parser) step(node *yaml.Node) (Step, error) {
	if node.Kind == yaml.ScalarNode {
		if isStepType(node.Value) {
			return nil, p.errorf(node.Line, "step %s needs a value", node.Value)
		}
		return nil, p.errorf(node.Line, "unknown step type: %s", node.Value)
	}
	if node.Kind != yaml.MappingNode || len(node.Content) == 0 {
		return nil, p.errorf(node.Line, "step must be a mapping")
	}

	for i := 0; i < len(node.Content)-1; i += 2 {
		key := node.Content[i]
		if isStepType(key.Value) {
			return p.decode(StepType(key.Value), node.Content[i+1])
		}
	}
	return nil, p.errorf(node.Content[0].Line, "unknown step type: %s", node.Content[0].Value)
}

func isStepType(key string) bool {
	switch StepType(key) {
	case StepVisit, StepClick, StepClickButton, StepClickLink, StepClickButtonUntil,
		StepCheck, StepUncheck, StepChoose, StepHover,
		StepAssertContent, StepAssertNoContent, StepAssertCSS, StepAssertNoCSS,
		StepAssertXPath, StepAssertNoXPath, StepAssertExists, StepAssertNotExists,
		StepExecuteScript, StepWithin, StepWithTimeouts, StepWaitForState:
		return true
	}
	return false
}

// scalarOr decodes value into dst, or assigns a scalar value to *field.
func (p *parser) scalarOr(value *yaml.Node, dst interface{}, field *string) error {
	if value.Kind == yaml.ScalarNode {
		*field = value.Value
		return nil
	}
	if err := value.Decode(dst); err != nil {
		return p.wrap(value, err)
	}
	return nil
}

func (p *parser) required(value *yaml.Node, t StepType, name, v string) error {
	if strings.TrimSpace(v) == "" {
		return p.errorf(value.Line, "%s needs %s", t, name)
	}
	return nil
}

//nolint:gocyclo
func (p *parser) decode(t StepType, value *yaml.Node) (Step, error) {
	base := BaseStep{StepType: t}

	switch t {
	case StepVisit:
		s := &VisitStep{}
		if err := p.scalarOr(value, s, &s.URL); err != nil {
			return nil, err
		}
		s.StepType = t
		return s, p.required(value, t, "a url", s.URL)

	case StepClickButton:
		s := &ClickButtonStep{}
		if err := p.scalarOr(value, s, &s.Button); err != nil {
			return nil, err
		}
		s.StepType = t
		return s, p.required(value, t, "a button", s.Button)

	case StepClickLink:
		s := &ClickLinkStep{}
		if err := p.scalarOr(value, s, &s.Link); err != nil {
			return nil, err
		}
		s.StepType = t
		return s, p.required(value, t, "a link", s.Link)

	case StepClickButtonUntil:
		s := &ClickButtonUntilStep{}
		if err := value.Decode(s); err != nil {
			return nil, p.wrap(value, err)
		}
		s.StepType = t
		if err := p.required(value, t, "a button", s.Button); err != nil {
			return nil, err
		}
		return s, p.required(value, t, "untilContent", s.UntilContent)

	case StepCheck, StepUncheck, StepChoose:
		s := &FieldStep{}
		if err := p.scalarOr(value, s, &s.Field); err != nil {
			return nil, err
		}
		s.StepType = t
		return s, p.required(value, t, "a field", s.Field)

	case StepClick, StepHover, StepAssertExists, StepAssertNotExists:
		var target Target
		if value.Kind == yaml.ScalarNode {
			// bare locators: click finds buttons, the rest use CSS
			if t == StepClick {
				target.Button = value.Value
			} else {
				target.CSS = value.Value
			}
		} else if err := value.Decode(&base); err != nil {
			return nil, p.wrap(value, err)
		} else if err := value.Decode(&target); err != nil {
			return nil, p.wrap(value, err)
		}
		base.StepType = t
		if err := target.Validate(); err != nil {
			return nil, p.wrap(value, err)
		}
		switch t {
		case StepClick:
			return &ClickStep{BaseStep: base, Target: target}, nil
		case StepHover:
			return &HoverStep{BaseStep: base, Target: target}, nil
		default:
			return &ExistsStep{BaseStep: base, Target: target}, nil
		}

	case StepAssertContent, StepAssertNoContent:
		s := &ContentStep{}
		if err := p.scalarOr(value, s, &s.Text); err != nil {
			return nil, err
		}
		s.StepType = t
		if s.Matches != "" {
			if _, err := regexp.Compile(s.Matches); err != nil {
				return nil, p.wrap(value, fmt.Errorf("invalid pattern: %w", err))
			}
			return s, nil
		}
		return s, p.required(value, t, "text or matches", s.Text)

	case StepAssertCSS, StepAssertNoCSS, StepAssertXPath, StepAssertNoXPath:
		s := &SelectorStep{}
		if err := p.scalarOr(value, s, &s.Selector); err != nil {
			return nil, err
		}
		s.StepType = t
		return s, p.required(value, t, "a selector", s.Selector)

	case StepExecuteScript:
		s := &ExecuteScriptStep{}
		if err := p.scalarOr(value, s, &s.Script); err != nil {
			return nil, err
		}
		s.StepType = t
		return s, p.required(value, t, "a script", s.Script)

	case StepWithin:
		return p.within(value)

	case StepWithTimeouts:
		return p.withTimeouts(value)

	case StepWaitForState:
		return p.waitForState(value)
	}

	return nil, p.errorf(value.Line, "unknown step type: %s", t)
}

// nested parses the "steps" key of a block step.
func (p *parser) nested(value *yaml.Node, required bool) ([]Step, error) {
	for i := 0; i < len(value.Content)-1; i += 2 {
		if value.Content[i].Value == "steps" {
			return p.steps(value.Content[i+1])
		}
	}
	if required {
		return nil, p.errorf(value.Line, "block needs steps")
	}
	return nil, nil
}

func (p *parser) within(value *yaml.Node) (Step, error) {
	if value.Kind != yaml.MappingNode {
		return nil, p.errorf(value.Line, "within needs a container and steps")
	}
	s := &WithinStep{}
	if err := value.Decode(s); err != nil {
		return nil, p.wrap(value, err)
	}
	s.StepType = StepWithin
	if err := s.Target.Validate(); err != nil {
		return nil, p.wrap(value, err)
	}
	if !s.Target.IsContainer() {
		return nil, p.errorf(value.Line, "within cannot use %s", s.Target.Describe())
	}
	steps, err := p.nested(value, true)
	if err != nil {
		return nil, err
	}
	s.Steps = steps
	return s, nil
}

func (p *parser) withTimeouts(value *yaml.Node) (Step, error) {
	if value.Kind != yaml.MappingNode {
		return nil, p.errorf(value.Line, "withTimeouts needs timeouts and steps")
	}
	var raw struct {
		Optional        bool           `yaml:"optional"`
		Label           string         `yaml:"label"`
		Timeout         *time.Duration `yaml:"timeout"`
		RetryInterval   *time.Duration `yaml:"retryInterval"`
		WaitBeforeRetry *time.Duration `yaml:"waitBeforeRetry"`
	}
	if err := value.Decode(&raw); err != nil {
		return nil, p.wrap(value, err)
	}
	s := &WithTimeoutsStep{
		BaseStep: BaseStep{StepType: StepWithTimeouts, Optional: raw.Optional, StepLabel: raw.Label},
		Timeouts: Timeouts{Timeout: raw.Timeout, RetryInterval: raw.RetryInterval, WaitBeforeRetry: raw.WaitBeforeRetry},
	}
	if s.Timeouts.IsZero() {
		return nil, p.errorf(value.Line, "withTimeouts needs timeout, retryInterval or waitBeforeRetry")
	}
	steps, err := p.nested(value, true)
	if err != nil {
		return nil, err
	}
	s.Steps = steps
	return s, nil
}

func (p *parser) waitForState(value *yaml.Node) (Step, error) {
	s := &WaitForStateStep{BaseStep: BaseStep{StepType: StepWaitForState}}

	statesNode := value
	if value.Kind == yaml.MappingNode {
		if err := value.Decode(&s.BaseStep); err != nil {
			return nil, p.wrap(value, err)
		}
		s.StepType = StepWaitForState
		statesNode = nil
		for i := 0; i < len(value.Content)-1; i += 2 {
			if value.Content[i].Value == "states" {
				statesNode = value.Content[i+1]
			}
		}
		if statesNode == nil {
			return nil, p.errorf(value.Line, "waitForState needs states")
		}
	}
	if statesNode.Kind != yaml.SequenceNode || len(statesNode.Content) == 0 {
		return nil, p.errorf(statesNode.Line, "waitForState needs a list of states")
	}

	seen := make(map[string]bool)
	for _, item := range statesNode.Content {
		var st State
		if err := item.Decode(&st); err != nil {
			return nil, p.wrap(item, err)
		}
		set := 0
		for _, v := range []string{st.Content, st.CSS, st.XPath} {
			if v != "" {
				set++
			}
		}
		if set != 1 {
			return nil, p.errorf(item.Line, "state needs exactly one of content, css, xpath")
		}
		if st.Name == "" {
			st.Name = fmt.Sprintf("state %d", len(s.States)+1)
		}
		if seen[st.Name] {
			return nil, p.errorf(item.Line, "duplicate state name %q", st.Name)
		}
		seen[st.Name] = true
		steps, err := p.nested(item, false)
		if err != nil {
			return nil, err
		}
		st.Steps = steps
		s.States = append(s.States, st)
	}
	return s, nil
}

// ShouldIncludeFlow checks if a flow matches tag filters.
func ShouldIncludeFlow(flow *Flow, includeTags, excludeTags []string) bool {
	has := func(tags []string) bool {
		for _, tag := range flow.Config.Tags {
			for _, want := range tags {
				if tag == want {
					return true
				}
			}
		}
		return false
	}
	if len(includeTags) > 0 && !has(includeTags) {
		return false
	}
	return !has(excludeTags)
}
