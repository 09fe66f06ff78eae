package flow

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParse_SimpleFlow(t *testing.T) {
	yaml := `
- visit: /login
- clickButton: "Sign in"
- clickLink:
    link: Forgot password
    optional: true
`
	flow, err := Parse([]byte(yaml), "test.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(flow.Steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(flow.Steps))
	}

	visit, ok := flow.Steps[0].(*VisitStep)
	if !ok {
		t.Fatalf("expected VisitStep, got %T", flow.Steps[0])
	}
	if visit.URL != "/login" {
		t.Errorf("expected url=/login, got %q", visit.URL)
	}

	click, ok := flow.Steps[1].(*ClickButtonStep)
	if !ok {
		t.Fatalf("expected ClickButtonStep, got %T", flow.Steps[1])
	}
	if click.Button != "Sign in" || click.Type() != StepClickButton {
		t.Errorf("unexpected step %+v", click)
	}

	link, ok := flow.Steps[2].(*ClickLinkStep)
	if !ok {
		t.Fatalf("expected ClickLinkStep, got %T", flow.Steps[2])
	}
	if link.Link != "Forgot password" || !link.IsOptional() {
		t.Errorf("unexpected step %+v", link)
	}
}

func TestParse_WithConfig(t *testing.T) {
	yaml := `
name: Checkout
url: /cart
tags:
  - smoke
env:
  USER: alice
timeouts:
  timeout: 5s
---
- assertContent: Cart
`
	flow, err := Parse([]byte(yaml), "checkout.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if flow.Config.Name != "Checkout" || flow.Config.URL != "/cart" {
		t.Errorf("unexpected config %+v", flow.Config)
	}
	if len(flow.Config.Tags) != 1 || flow.Config.Tags[0] != "smoke" {
		t.Errorf("unexpected tags %v", flow.Config.Tags)
	}
	if flow.Config.Env["USER"] != "alice" {
		t.Errorf("unexpected env %v", flow.Config.Env)
	}
	if flow.Config.Timeouts.Timeout == nil || *flow.Config.Timeouts.Timeout != 5*time.Second {
		t.Errorf("unexpected timeouts %+v", flow.Config.Timeouts)
	}
	if flow.Config.Timeouts.RetryInterval != nil {
		t.Error("unset fields must stay nil")
	}
	if len(flow.Steps) != 1 {
		t.Fatalf("expected 1 step, got %d", len(flow.Steps))
	}
}

func TestParse_AllSteps(t *testing.T) {
	yaml := `
- visit: /
- click:
    css: "#menu"
- click: Save
- clickButton: Save
- clickLink: Home
- clickButtonUntil:
    button: Refresh
    untilContent: Ready
    waitBeforeRetry: 500ms
- check: Remember me
- uncheck: Newsletter
- choose: Express
- hover:
    link: Products
- assertContent: Welcome
- assertNoContent:
    matches: "Error \\d+"
- assertCss: ".flash"
- assertNoCss: ".spinner"
- assertXPath: "//h1"
- assertNoXPath: "//div[@class='error']"
- assertExists:
    button: Pay
- assertNotExists:
    field: Coupon
- executeScript:
    script: "document.title()"
    var: title
`
	flow, err := Parse([]byte(yaml), "all.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []StepType{
		StepVisit, StepClick, StepClick, StepClickButton, StepClickLink, StepClickButtonUntil,
		StepCheck, StepUncheck, StepChoose, StepHover,
		StepAssertContent, StepAssertNoContent, StepAssertCSS, StepAssertNoCSS,
		StepAssertXPath, StepAssertNoXPath, StepAssertExists, StepAssertNotExists,
		StepExecuteScript,
	}
	if len(flow.Steps) != len(want) {
		t.Fatalf("expected %d steps, got %d", len(want), len(flow.Steps))
	}
	for i, step := range flow.Steps {
		if step.Type() != want[i] {
			t.Errorf("step %d: expected %s, got %s", i, want[i], step.Type())
		}
	}

	if c := flow.Steps[1].(*ClickStep); c.Target.CSS != "#menu" {
		t.Errorf("unexpected click target %+v", c.Target)
	}
	if c := flow.Steps[2].(*ClickStep); c.Target.Button != "Save" {
		t.Errorf("bare click should target a button, got %+v", c.Target)
	}
	until := flow.Steps[5].(*ClickButtonUntilStep)
	if until.WaitBeforeRetry == nil || *until.WaitBeforeRetry != 500*time.Millisecond {
		t.Errorf("unexpected waitBeforeRetry %v", until.WaitBeforeRetry)
	}
	if h := flow.Steps[9].(*HoverStep); h.Target.Link != "Products" {
		t.Errorf("unexpected hover target %+v", h.Target)
	}
	if c := flow.Steps[11].(*ContentStep); c.Matches != `Error \d+` {
		t.Errorf("unexpected pattern %q", c.Matches)
	}
	if s := flow.Steps[18].(*ExecuteScriptStep); s.Var != "title" || s.Script != "document.title()" {
		t.Errorf("unexpected script step %+v", s)
	}
}

func TestParse_NestedBlocks(t *testing.T) {
	yaml := `
- within:
    section: Orders
    steps:
      - clickButton: Pay
      - within:
          frame: Payment
          steps:
            - assertContent: Card
- withTimeouts:
    timeout: 0s
    steps:
      - assertNoContent: Loading
- waitForState:
    states:
      - name: welcome
        content: Welcome
        steps:
          - clickLink: Profile
      - name: error
        css: .error
`
	flow, err := Parse([]byte(yaml), "nested.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	within := flow.Steps[0].(*WithinStep)
	if within.Target.Section != "Orders" || len(within.Steps) != 2 {
		t.Fatalf("unexpected within %+v", within)
	}
	inner := within.Steps[1].(*WithinStep)
	if inner.Target.Frame != "Payment" || len(inner.Steps) != 1 {
		t.Errorf("unexpected nested within %+v", inner)
	}

	wt := flow.Steps[1].(*WithTimeoutsStep)
	if wt.Timeouts.Timeout == nil || *wt.Timeouts.Timeout != 0 {
		t.Errorf("explicit zero timeout must be kept, got %v", wt.Timeouts.Timeout)
	}
	if wt.Timeouts.RetryInterval != nil || len(wt.Steps) != 1 {
		t.Errorf("unexpected withTimeouts %+v", wt)
	}

	wait := flow.Steps[2].(*WaitForStateStep)
	if len(wait.States) != 2 {
		t.Fatalf("expected 2 states, got %d", len(wait.States))
	}
	if wait.States[0].Name != "welcome" || len(wait.States[0].Steps) != 1 {
		t.Errorf("unexpected state %+v", wait.States[0])
	}
	if wait.States[1].CSS != ".error" || wait.States[1].Steps != nil {
		t.Errorf("unexpected state %+v", wait.States[1])
	}
	if got := wait.Describe(); got != "waitForState [welcome, error]" {
		t.Errorf("Describe() = %q", got)
	}
}

func TestParse_WaitForStateList(t *testing.T) {
	yaml := `
- waitForState:
    - content: Done
    - xpath: //p[@class='fail']
`
	flow, err := Parse([]byte(yaml), "states.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wait := flow.Steps[0].(*WaitForStateStep)
	if wait.States[0].Name != "state 1" || wait.States[1].Name != "state 2" {
		t.Errorf("expected generated names, got %q, %q", wait.States[0].Name, wait.States[1].Name)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		line int
		msg  string
	}{
		{"unknown step", "- visit: /\n- tapOn: Login\n", 2, "unknown step type: tapOn"},
		{"bare step name", "- clickButton\n", 1, "needs a value"},
		{"not a list", "visit: /\n", 1, "steps must be a list"},
		{"missing button", "- clickButtonUntil:\n    untilContent: Done\n", 2, "needs a button"},
		{"two locators", "- click:\n    button: A\n    link: B\n", 2, "more than one locator"},
		{"within a button", "- within:\n    button: A\n    steps:\n      - visit: /\n", 2, "within cannot use"},
		{"within without steps", "- within:\n    section: A\n", 2, "needs steps"},
		{"empty withTimeouts", "- withTimeouts:\n    steps:\n      - visit: /\n", 2, "needs timeout"},
		{"ambiguous state", "- waitForState:\n    - content: A\n      css: .b\n", 2, "exactly one"},
		{"duplicate state", "- waitForState:\n    - {name: a, content: A}\n    - {name: a, content: B}\n", 3, "duplicate state"},
		{"bad pattern", "- assertContent:\n    matches: \"(\"\n", 2, "invalid pattern"},
		{"nested unknown", "- within:\n    section: A\n    steps:\n      - swipe: up\n", 4, "unknown step type: swipe"},
		{"three documents", "name: a\n---\n- visit: /\n---\n- visit: /\n", 5, "at most two"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml), "bad.yaml")
			if err == nil {
				t.Fatal("expected error")
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("expected ParseError, got %T: %v", err, err)
			}
			if pe.Line != tt.line {
				t.Errorf("expected line %d, got %d (%v)", tt.line, pe.Line, err)
			}
			if !strings.Contains(pe.Message, tt.msg) {
				t.Errorf("expected message containing %q, got %q", tt.msg, pe.Message)
			}
		})
	}
}

func TestParse_Empty(t *testing.T) {
	if _, err := Parse([]byte("   \n"), "empty.yaml"); err == nil {
		t.Error("expected error for empty file")
	}
}

func TestParseError_Format(t *testing.T) {
	err := &ParseError{Path: "a.yaml", Line: 3, Message: "boom"}
	if err.Error() != "a.yaml:3: boom" {
		t.Errorf("unexpected %q", err.Error())
	}
	err.Line = 0
	if err.Error() != "a.yaml: boom" {
		t.Errorf("unexpected %q", err.Error())
	}
}

func TestShouldIncludeFlow(t *testing.T) {
	f := &Flow{Config: Config{Tags: []string{"smoke", "auth"}}}
	tests := []struct {
		include, exclude []string
		want             bool
	}{
		{nil, nil, true},
		{[]string{"auth"}, nil, true},
		{[]string{"billing"}, nil, false},
		{nil, []string{"smoke"}, false},
		{[]string{"auth"}, []string{"billing"}, true},
	}
	for _, tt := range tests {
		if got := ShouldIncludeFlow(f, tt.include, tt.exclude); got != tt.want {
			t.Errorf("ShouldIncludeFlow(%v, %v) = %v, want %v", tt.include, tt.exclude, got, tt.want)
		}
	}
}
