package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestGenerateHTML(t *testing.T) {
	dir := t.TempDir()
	if err := WriteJSON(dir, sampleReport()); err != nil {
		t.Fatal(err)
	}

	if err := GenerateHTML(dir, HTMLConfig{Title: "Nightly"}); err != nil {
		t.Fatalf("GenerateHTML: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, HTMLFile))
	if err != nil {
		t.Fatal(err)
	}
	html := string(data)
	for _, want := range []string{
		"<title>Nightly</title>",
		"<strong>Login</strong>",
		"25% pass rate",
		"button not found: &#34;Pay&#34;",
		"padding-left: 20px",
		"on playwright (chromium)",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("html missing %q", want)
		}
	}
}

func TestGenerateHTML_CustomPath(t *testing.T) {
	dir := t.TempDir()
	if err := WriteJSON(dir, sampleReport()); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "custom.html")

	if err := GenerateHTML(dir, HTMLConfig{OutputPath: out}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "<title>Test Report</title>") {
		t.Error("default title not applied")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0ms"},
		{450 * time.Millisecond, "450ms"},
		{1500 * time.Millisecond, "1.5s"},
		{2*time.Minute + 5*time.Second, "2m 5s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.in); got != tt.want {
			t.Errorf("formatDuration(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
