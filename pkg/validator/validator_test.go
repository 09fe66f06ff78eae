package validator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFlow(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestValidate_SingleFile(t *testing.T) {
	dir := t.TempDir()
	file := writeFlow(t, dir, "login.yaml", `
name: Login
url: /login
---
- clickButton: Sign in
- assertCss: "form#login input[name=email]"
- assertXPath: //form[@id='login']
`)

	result := New(nil, nil).Validate(file)

	if !result.IsValid() {
		t.Fatalf("expected valid result, got errors: %v", result.Errors)
	}
	if len(result.Flows) != 1 || result.Flows[0].Config.Name != "Login" {
		t.Errorf("flows = %+v", result.Flows)
	}
}

func TestValidate_Directory(t *testing.T) {
	dir := t.TempDir()
	writeFlow(t, dir, "b.yaml", "- clickButton: B\n")
	writeFlow(t, dir, "a.yaml", "- clickButton: A\n")
	writeFlow(t, dir, "nested/c.yml", "- clickButton: C\n")
	writeFlow(t, dir, "browserscope.yaml", "timeouts:\n  timeout: 2s\n")
	writeFlow(t, dir, "README.md", "# flows")

	result := New(nil, nil).Validate(dir)

	if !result.IsValid() {
		t.Fatalf("expected valid result, got errors: %v", result.Errors)
	}
	var names []string
	for _, f := range result.Flows {
		names = append(names, filepath.Base(f.SourcePath))
	}
	if strings.Join(names, ",") != "a.yaml,b.yaml,c.yml" {
		t.Errorf("flows = %v, want a.yaml,b.yaml,c.yml", names)
	}
}

func TestValidate_DuplicatePathsCheckedOnce(t *testing.T) {
	dir := t.TempDir()
	file := writeFlow(t, dir, "a.yaml", "- clickButton: A\n")

	result := New(nil, nil).Validate(dir, file)

	if len(result.Flows) != 1 {
		t.Errorf("expected 1 flow, got %d", len(result.Flows))
	}
}

func TestValidate_TagFilters(t *testing.T) {
	dir := t.TempDir()
	writeFlow(t, dir, "smoke.yaml", "tags: [smoke]\n---\n- clickButton: A\n")
	writeFlow(t, dir, "slow.yaml", "tags: [smoke, slow]\n---\n- clickButton: A\n")
	writeFlow(t, dir, "other.yaml", "- clickButton: A\n")

	result := New([]string{"smoke"}, []string{"slow"}).Validate(dir)

	if len(result.Flows) != 1 || filepath.Base(result.Flows[0].SourcePath) != "smoke.yaml" {
		t.Errorf("flows = %+v, want only smoke.yaml", result.Flows)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"parse error", "- teleport: home\n", "parse error"},
		{"bad css step", "- assertCss: \"p[[\"\n", `invalid CSS selector "p[["`},
		{"bad xpath step", "- assertNoXPath: \"//p[\"\n", `invalid XPath "//p["`},
		{"bad css target", "- hover:\n    css: \"a[[\"\n", `hover css "a[["`},
		{"bad state css", "- waitForState:\n    - css: \"##\"\n", "waitForState [state 1]"},
		{"nested step", "- within:\n    section: Cart\n    steps:\n      - assertCss: \"p[[\"\n", `assertCss "p[["`},
		{"negative step timeout", "- clickButton:\n    button: Pay\n    timeout: -1s\n", "timeout must not be negative"},
		{"negative flow timeout", "timeouts:\n  retryInterval: -5ms\n---\n- clickButton: Pay\n", "retryInterval must not be negative"},
		{"negative block timeout", "- withTimeouts:\n    waitBeforeRetry: -1s\n    steps:\n      - clickButton: Pay\n", "waitBeforeRetry must not be negative"},
		{"bad url", "- visit: \"http://[::1\"\n", "invalid url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file := writeFlow(t, t.TempDir(), "flow.yaml", tt.content)

			result := New(nil, nil).Validate(file)

			if result.IsValid() {
				t.Fatal("expected validation errors")
			}
			if len(result.Flows) != 0 {
				t.Errorf("invalid flow should not be returned")
			}
			if !strings.Contains(result.Errors[0].Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", result.Errors[0], tt.want)
			}
		})
	}
}

func TestValidate_VariablesAreNotCompiled(t *testing.T) {
	file := writeFlow(t, t.TempDir(), "vars.yaml", `
- assertCss: "#${ID}"
- assertXPath: "//*[@id='${ID}']["
- visit: "${HOST}/[::1"
`)

	result := New(nil, nil).Validate(file)

	if !result.IsValid() {
		t.Errorf("selectors with variables should be left for run time: %v", result.Errors)
	}
}

func TestValidate_MissingPath(t *testing.T) {
	result := New(nil, nil).Validate(filepath.Join(t.TempDir(), "missing.yaml"))

	if result.IsValid() {
		t.Fatal("expected error for missing path")
	}
	if !strings.Contains(result.Errors[0].Error(), "cannot access") {
		t.Errorf("error = %v", result.Errors[0])
	}
}
