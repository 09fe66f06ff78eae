package executor

import (
	"os"
	"regexp"
	"strings"

	"github.com/devicelab-dev/browserscope/pkg/flow"
	"github.com/devicelab-dev/browserscope/pkg/jsengine"
)

// envVarPattern matches ALL_CAPS identifiers that look like env variables
var envVarPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]{2,}$`)

// ScriptEngine holds flow variables and expands ${...} expressions in step
// arguments. It is separate from the page: page scripts run in the driver.
type ScriptEngine struct {
	js        *jsengine.Engine
	variables map[string]string
}

// NewScriptEngine creates a new script engine.
func NewScriptEngine() *ScriptEngine {
	return &ScriptEngine{
		js:        jsengine.New(),
		variables: make(map[string]string),
	}
}

// Close cleans up the script engine.
func (se *ScriptEngine) Close() {
	if se.js != nil {
		se.js.Close()
	}
}

// SetVariable sets a variable in both Go map and JS engine.
func (se *ScriptEngine) SetVariable(name, value string) {
	se.variables[name] = value
	se.js.SetVariable(name, value)
}

// SetVariables sets multiple variables.
func (se *ScriptEngine) SetVariables(vars map[string]string) {
	for k, v := range vars {
		se.SetVariable(k, v)
	}
}

// ImportSystemEnv imports upper-case process environment variables.
func (se *ScriptEngine) ImportSystemEnv() {
	for _, env := range os.Environ() {
		name, value, ok := strings.Cut(env, "=")
		if ok && envVarPattern.MatchString(name) {
			se.SetVariable(name, value)
		}
	}
}

// GetVariable returns a variable value.
func (se *ScriptEngine) GetVariable(name string) string {
	return se.variables[name]
}

// Variables returns a copy of every variable set so far.
func (se *ScriptEngine) Variables() map[string]string {
	out := make(map[string]string, len(se.variables))
	for k, v := range se.variables {
		out[k] = v
	}
	return out
}

// Expand replaces ${expr} with the expression's value. Text without an
// expression is returned unchanged.
func (se *ScriptEngine) Expand(text string) string {
	if !strings.Contains(text, "${") {
		return text
	}
	return se.js.ExpandVariables(text)
}

// ExpandTarget expands the locator of t.
func (se *ScriptEngine) ExpandTarget(t flow.Target) flow.Target {
	return flow.Target{
		Button:   se.Expand(t.Button),
		Link:     se.Expand(t.Link),
		Field:    se.Expand(t.Field),
		Section:  se.Expand(t.Section),
		Fieldset: se.Expand(t.Fieldset),
		Frame:    se.Expand(t.Frame),
		ID:       se.Expand(t.ID),
		CSS:      se.Expand(t.CSS),
		XPath:    se.Expand(t.XPath),
	}
}
