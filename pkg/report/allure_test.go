package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/devicelab-dev/browserscope/pkg/core"
)

func TestGenerateAllure(t *testing.T) {
	dir := t.TempDir()
	if err := WriteJSON(dir, sampleReport()); err != nil {
		t.Fatal(err)
	}

	if err := GenerateAllure(dir); err != nil {
		t.Fatalf("GenerateAllure: %v", err)
	}

	allureDir := filepath.Join(dir, AllureDir)
	data, err := os.ReadFile(filepath.Join(allureDir, "6f1c2a9e-1111-4d2b-9a55-3c9f0e7a0b10-001-result.json"))
	if err != nil {
		t.Fatalf("read result: %v", err)
	}
	var result AllureResult
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatal(err)
	}
	if result.Name != "Pay" || result.Status != "failed" {
		t.Errorf("result = %s/%s", result.Name, result.Status)
	}
	if len(result.Steps) != 1 || len(result.Steps[0].Steps) != 2 {
		t.Fatalf("nested steps not kept: %+v", result.Steps)
	}
	if result.Steps[0].Steps[1].Status != "skipped" {
		t.Errorf("child status = %q", result.Steps[0].Steps[1].Status)
	}

	for _, name := range []string{"categories.json", "environment.properties"} {
		if _, err := os.Stat(filepath.Join(allureDir, name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}
	env, _ := os.ReadFile(filepath.Join(allureDir, "environment.properties"))
	if !strings.Contains(string(env), "browser.name=chromium") {
		t.Errorf("environment.properties = %q", env)
	}
}

func TestGenerateAllure_MissingReport(t *testing.T) {
	if err := GenerateAllure(t.TempDir()); err == nil {
		t.Error("expected error without report.json")
	}
}

func TestMapAllureStatus(t *testing.T) {
	tests := map[core.StepStatus]string{
		core.StatusPassed:  "passed",
		core.StatusWarned:  "passed",
		core.StatusFailed:  "failed",
		core.StatusErrored: "broken",
		core.StatusSkipped: "skipped",
		"":                 "unknown",
	}
	for in, want := range tests {
		if got := mapAllureStatus(in); got != want {
			t.Errorf("mapAllureStatus(%s) = %q, want %q", in, got, want)
		}
	}
}

func TestFnv32aHash(t *testing.T) {
	a := fnv32aHash("Login:flows/login.yaml")
	if len(a) != 8 || a != fnv32aHash("Login:flows/login.yaml") {
		t.Errorf("hash %q is not a stable 8-char hex string", a)
	}
	if a == fnv32aHash("Pay:flows/pay.yaml") {
		t.Error("different flows must hash differently")
	}
}
