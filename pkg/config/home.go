package config

import (
	"os"
	"path/filepath"
	"sync"
)

// HomeEnv names the variable that pins the home directory.
const HomeEnv = "BROWSERSCOPE_HOME"

var (
	homeOnce sync.Once
	homeDir  string
)

// GetHome returns the browserscope home directory: $BROWSERSCOPE_HOME, else
// the parent of the binary's bin/ directory, else the working directory.
// The result is resolved once per process.
func GetHome() string {
	homeOnce.Do(func() {
		exe, err := os.Executable()
		if err == nil {
			if resolved, err := filepath.EvalSymlinks(exe); err == nil {
				exe = resolved
			}
		} else {
			exe = ""
		}
		cwd, err := os.Getwd()
		if err != nil {
			cwd = "."
		}
		homeDir = homeFrom(os.Getenv(HomeEnv), exe, cwd)
	})
	return homeDir
}

// homeFrom picks the home directory from its three candidate sources.
func homeFrom(env, executable, cwd string) string {
	if env != "" {
		return env
	}
	if executable != "" {
		if bin := filepath.Dir(executable); filepath.Base(bin) == "bin" {
			return filepath.Dir(bin)
		}
	}
	return cwd
}

// GetReportsDir returns <home>/reports, the default output directory.
func GetReportsDir() string {
	return filepath.Join(GetHome(), "reports")
}

// ResetHome forgets the resolved home so the next GetHome resolves again.
func ResetHome() {
	homeOnce = sync.Once{}
	homeDir = ""
}
