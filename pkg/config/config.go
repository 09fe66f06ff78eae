// Package config handles configuration for browserscope.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/devicelab-dev/browserscope/pkg/core"
	"github.com/devicelab-dev/browserscope/pkg/robust"
)

// File names LoadFromDir looks for, in order.
var fileNames = []string{"browserscope.yaml", "browserscope.yml"}

// Environment overrides.
const (
	EnvTimeout         = "BROWSERSCOPE_TIMEOUT"
	EnvRetryInterval   = "BROWSERSCOPE_RETRY_INTERVAL"
	EnvWaitBeforeRetry = "BROWSERSCOPE_WAIT_BEFORE_RETRY"
	EnvAppHost         = "BROWSERSCOPE_APP_HOST"
)

// Config represents the workspace configuration (browserscope.yaml).
type Config struct {
	// Flow selection
	Flows       []string `yaml:"flows"`       // Glob patterns for flows
	IncludeTags []string `yaml:"includeTags"` // Tags to include
	ExcludeTags []string `yaml:"excludeTags"` // Tags to exclude

	// Execution settings
	AppHost  string            `yaml:"appHost"` // Base URL for relative visits
	Env      map[string]string `yaml:"env"`     // Variables available to flows
	Timeouts Timeouts          `yaml:"timeouts"`
	Browser  Browser           `yaml:"browser"`

	// Output
	JUnit string `yaml:"junit"` // JUnit report path, relative to the output dir
}

// Timeouts are Go duration strings in YAML ("1s", "250ms").
type Timeouts struct {
	Timeout         time.Duration `yaml:"timeout"`
	RetryInterval   time.Duration `yaml:"retryInterval"`
	WaitBeforeRetry time.Duration `yaml:"waitBeforeRetry"`
}

// Browser selects the driver binding.
type Browser struct {
	Driver   string        `yaml:"driver"` // playwright or memory
	Type     string        `yaml:"type"`   // chromium, firefox, webkit
	Headless bool          `yaml:"headless"`
	SlowMo   time.Duration `yaml:"slowMo"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Timeouts: Timeouts{
			Timeout:         robust.DefaultTimeout,
			RetryInterval:   robust.DefaultRetryInterval,
			WaitBeforeRetry: robust.DefaultWaitBeforeRetry,
		},
		Browser: Browser{
			Driver:   "playwright",
			Type:     "chromium",
			Headless: true,
		},
		JUnit: "junit-report.xml",
	}
}

// Load loads configuration from a file. Keys missing from the file keep
// their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, core.ErrInvalidConfig.WithMessage("parse " + path).WithCause(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromDir looks for browserscope.yaml or browserscope.yml in the
// directory.
func LoadFromDir(dir string) (*Config, error) {
	for _, name := range fileNames {
		configPath := filepath.Join(dir, name)
		if _, err := os.Stat(configPath); err == nil {
			return Load(configPath)
		}
	}

	// No config file found, use defaults
	return Default(), nil
}

// Validate rejects negative timeouts and unknown drivers.
func (c *Config) Validate() error {
	if err := c.RobustTimeouts().Validate(); err != nil {
		return core.ErrInvalidConfig.WithMessage("timeouts").WithCause(err)
	}
	switch c.Browser.Driver {
	case "playwright", "memory":
	default:
		return core.ErrInvalidConfig.WithMessage(fmt.Sprintf("unknown driver %q", c.Browser.Driver))
	}
	return nil
}

// RobustTimeouts converts the configured timeouts.
func (c *Config) RobustTimeouts() robust.Timeouts {
	return robust.Timeouts{
		Timeout:         c.Timeouts.Timeout,
		RetryInterval:   c.Timeouts.RetryInterval,
		WaitBeforeRetry: c.Timeouts.WaitBeforeRetry,
	}
}

// LoadEnv reads .env files and applies overrides. Variables from the files
// that are not BROWSERSCOPE_* settings become flow variables unless the
// config already defines them. The process environment wins over the
// files. Missing files are skipped.
func (c *Config) LoadEnv(paths ...string) error {
	values := make(map[string]string)
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		fileValues, err := godotenv.Read(path)
		if err != nil {
			return core.ErrInvalidConfig.WithMessage("read " + path).WithCause(err)
		}
		for k, v := range fileValues {
			values[k] = v
		}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			return v, true
		}
		v, ok := values[key]
		return v, ok && v != ""
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{EnvTimeout, &c.Timeouts.Timeout},
		{EnvRetryInterval, &c.Timeouts.RetryInterval},
		{EnvWaitBeforeRetry, &c.Timeouts.WaitBeforeRetry},
	}
	for _, d := range durations {
		v, ok := lookup(d.key)
		if !ok {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return core.ErrInvalidConfig.WithMessage(d.key).WithCause(err)
		}
		*d.dst = parsed
	}
	if v, ok := lookup(EnvAppHost); ok {
		c.AppHost = v
	}

	for k, v := range values {
		if strings.HasPrefix(k, "BROWSERSCOPE_") {
			continue
		}
		if c.Env == nil {
			c.Env = make(map[string]string)
		}
		if _, set := c.Env[k]; !set {
			c.Env[k] = v
		}
	}
	return c.Validate()
}
