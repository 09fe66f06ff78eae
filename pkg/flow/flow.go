// Package flow handles parsing and representation of browserscope YAML flow files.
package flow

import "time"

// Flow represents a parsed flow file.
type Flow struct {
	SourcePath string // Path to the source file
	Config     Config // Flow configuration (name, url, tags, ...)
	Steps      []Step // Steps to execute
}

// Config represents flow-level configuration.
type Config struct {
	Name     string            `yaml:"name"`
	URL      string            `yaml:"url"` // Visited before the first step
	Tags     []string          `yaml:"tags"`
	Env      map[string]string `yaml:"env"`
	Timeouts Timeouts          `yaml:"timeouts"`
}

// Timeouts overrides timing for a flow or a withTimeouts block. Unset
// fields keep the surrounding value; an explicit 0 is an override.
type Timeouts struct {
	Timeout         *time.Duration `yaml:"timeout"`
	RetryInterval   *time.Duration `yaml:"retryInterval"`
	WaitBeforeRetry *time.Duration `yaml:"waitBeforeRetry"`
}

// IsZero reports whether no field is set.
func (t Timeouts) IsZero() bool {
	return t.Timeout == nil && t.RetryInterval == nil && t.WaitBeforeRetry == nil
}
