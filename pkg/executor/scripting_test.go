package executor

import (
	"testing"
	"time"

	"github.com/devicelab-dev/browserscope/pkg/browser"
	"github.com/devicelab-dev/browserscope/pkg/driver/memory"
	"github.com/devicelab-dev/browserscope/pkg/flow"
	"github.com/devicelab-dev/browserscope/pkg/robust"
)

func TestScriptEngine_SetVariable(t *testing.T) {
	se := NewScriptEngine()
	defer se.Close()

	se.SetVariable("USERNAME", "john")
	se.SetVariables(map[string]string{"COUNT": "42"})

	if got := se.GetVariable("USERNAME"); got != "john" {
		t.Errorf("GetVariable(USERNAME) = %q, want %q", got, "john")
	}
	if got := se.Variables()["COUNT"]; got != "42" {
		t.Errorf("Variables()[COUNT] = %q, want %q", got, "42")
	}
}

func TestScriptEngine_Expand(t *testing.T) {
	se := NewScriptEngine()
	defer se.Close()
	se.SetVariable("USER", "alice")
	se.SetVariable("N", "2")

	tests := []struct {
		in   string
		want string
	}{
		{"plain text", "plain text"},
		{"Hello ${USER}", "Hello alice"},
		{"${USER.toUpperCase()}", "ALICE"},
		{"${Number(N) + 1} items", "3 items"},
		{"${missing}", "${missing}"},
		{"unterminated ${USER", "unterminated ${USER"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := se.Expand(tt.in); got != tt.want {
				t.Errorf("Expand(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestScriptEngine_ExpandTarget(t *testing.T) {
	se := NewScriptEngine()
	defer se.Close()
	se.SetVariable("ROW", "3")

	got := se.ExpandTarget(flow.Target{CSS: "tr:nth-child(${ROW})"})
	if got.CSS != "tr:nth-child(3)" {
		t.Errorf("CSS = %q", got.CSS)
	}
	if kind, _ := got.Kind(); kind != flow.KindCSS {
		t.Errorf("kind = %q, want css", kind)
	}
}

func TestScriptEngine_ImportSystemEnv(t *testing.T) {
	t.Setenv("BROWSERSCOPE_TEST_USER", "bob")
	t.Setenv("lower_case_var", "ignored")

	se := NewScriptEngine()
	defer se.Close()
	se.ImportSystemEnv()

	if got := se.GetVariable("BROWSERSCOPE_TEST_USER"); got != "bob" {
		t.Errorf("GetVariable = %q, want bob", got)
	}
	if _, ok := se.Variables()["lower_case_var"]; ok {
		t.Error("lower case variables must not be imported")
	}
}

func TestTargetToFinder(t *testing.T) {
	tests := []struct {
		target flow.Target
		want   string
	}{
		{flow.Target{Button: "Pay"}, `button "Pay"`},
		{flow.Target{Link: "Home"}, `link "Home"`},
		{flow.Target{Field: "Email"}, `field "Email"`},
		{flow.Target{Section: "Orders"}, `section "Orders"`},
		{flow.Target{Fieldset: "Address"}, `fieldset "Address"`},
		{flow.Target{Frame: "Payment"}, `frame "Payment"`},
		{flow.Target{ID: "main"}, `id "main"`},
		{flow.Target{CSS: "div.card"}, `css "div.card"`},
		{flow.Target{XPath: "//p"}, `xpath "//p"`},
	}
	for _, tt := range tests {
		f, err := targetToFinder(tt.target)
		if err != nil {
			t.Fatalf("targetToFinder(%+v): %v", tt.target, err)
		}
		if got := f.String(); got != tt.want {
			t.Errorf("finder = %q, want %q", got, tt.want)
		}
	}

	if _, err := targetToFinder(flow.Target{}); err == nil {
		t.Error("expected error for empty target")
	}
}

func TestTargetToScope(t *testing.T) {
	d, err := memory.New(memory.Config{HTML: `<fieldset><legend>Address</legend><p>Street</p></fieldset>`})
	if err != nil {
		t.Fatal(err)
	}
	s := browser.NewSession(d, browser.WithBaseTimeouts(robust.Timeouts{}))
	defer s.Close()

	scope, err := targetToScope(s, flow.Target{Fieldset: "Address"})
	if err != nil {
		t.Fatal(err)
	}
	if ok, err := scope.HasContent("Street"); err != nil || !ok {
		t.Errorf("HasContent = %v, %v", ok, err)
	}
	if got := scope.String(); got != `fieldset "Address"` {
		t.Errorf("String() = %q", got)
	}
}

func TestTimeoutsToOptions(t *testing.T) {
	timeout := 3 * time.Second
	zero := time.Duration(0)
	opts := timeoutsToOptions(flow.Timeouts{Timeout: &timeout, WaitBeforeRetry: &zero})

	got := robust.DefaultTimeouts().Apply(opts...)
	want := robust.Timeouts{Timeout: 3 * time.Second, RetryInterval: 100 * time.Millisecond, WaitBeforeRetry: 0}
	if got != want {
		t.Errorf("Apply = %+v, want %+v", got, want)
	}
	if len(timeoutsToOptions(flow.Timeouts{})) != 0 {
		t.Error("unset timeouts must produce no options")
	}
}
