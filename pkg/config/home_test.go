package config

import (
	"path/filepath"
	"testing"
)

func TestHomeFrom(t *testing.T) {
	tests := []struct {
		name       string
		env        string
		executable string
		want       string
	}{
		{"env wins", "/pinned", "/opt/browserscope/bin/browserscope", "/pinned"},
		{"binary in bin", "", "/opt/browserscope/bin/browserscope", "/opt/browserscope"},
		{"binary elsewhere", "", "/usr/local/browserscope", "/work"},
		{"no binary", "", "", "/work"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := homeFrom(tt.env, filepath.FromSlash(tt.executable), filepath.FromSlash("/work"))
			if got != filepath.FromSlash(tt.want) {
				t.Errorf("homeFrom() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetHome_ResolvedOnce(t *testing.T) {
	ResetHome()
	t.Cleanup(ResetHome)
	t.Setenv(HomeEnv, "/first")

	first := GetHome()
	t.Setenv(HomeEnv, "/second")

	if got := GetHome(); got != first {
		t.Errorf("GetHome() = %q after env change, want cached %q", got, first)
	}
	ResetHome()
	if got := GetHome(); got != "/second" {
		t.Errorf("GetHome() after reset = %q, want /second", got)
	}
}

func TestGetReportsDir(t *testing.T) {
	ResetHome()
	t.Cleanup(ResetHome)
	t.Setenv(HomeEnv, "/test/home")

	if got, want := GetReportsDir(), filepath.Join("/test/home", "reports"); got != want {
		t.Errorf("GetReportsDir() = %q, want %q", got, want)
	}
}
