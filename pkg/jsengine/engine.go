// Package jsengine evaluates page scripts and ${...} expressions with goja.
package jsengine

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/devicelab-dev/browserscope/pkg/logger"
)

// Engine wraps a goja runtime. Scripts and timer callbacks are serialised
// on one mutex, so bindings installed with Bind are never called
// concurrently.
type Engine struct {
	runtime   *goja.Runtime
	variables map[string]interface{}
	output    map[string]interface{}
	timers    *timerRegistry
	mu        sync.Mutex
}

// timerRegistry tracks setTimeout/setInterval timers so Close can stop them.
type timerRegistry struct {
	timers    map[int]*time.Timer
	tickers   map[int]*time.Ticker
	nextID    int
	mu        sync.Mutex
	stopChan  chan struct{}
	closeOnce sync.Once
}

func newTimerRegistry() *timerRegistry {
	return &timerRegistry{
		timers:   make(map[int]*time.Timer),
		tickers:  make(map[int]*time.Ticker),
		nextID:   1,
		stopChan: make(chan struct{}),
	}
}

// New creates a new JS engine instance
func New() *Engine {
	e := &Engine{
		runtime:   goja.New(),
		variables: make(map[string]interface{}),
		output:    make(map[string]interface{}),
		timers:    newTimerRegistry(),
	}

	e.runtime.SetFieldNameMapper(goja.TagFieldNameMapper("js", true))
	e.setupConsole()
	e.setupTimers()
	e.runtime.Set("json", e.jsonFunc())
	e.runtime.Set("output", e.output)
	return e
}

// setupConsole routes console.log/warn/error to the run log.
func (e *Engine) setupConsole() {
	makeConsoleFunc := func(log func(string, ...interface{})) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				parts[i] = fmt.Sprint(arg.Export())
			}
			log("[js] %s", strings.Join(parts, " "))
			return goja.Undefined()
		}
	}

	console := e.runtime.NewObject()
	console.Set("log", makeConsoleFunc(logger.Info))
	console.Set("info", makeConsoleFunc(logger.Info))
	console.Set("debug", makeConsoleFunc(logger.Debug))
	console.Set("warn", makeConsoleFunc(logger.Warn))
	console.Set("error", makeConsoleFunc(logger.Error))
	e.runtime.Set("console", console)
}

// setupTimers adds setTimeout, setInterval, clearTimeout, clearInterval.
// Pages use them to render content late, which is what the retry engine
// exists to wait for.
func (e *Engine) setupTimers() {
	e.runtime.Set("setTimeout", func(call goja.FunctionCall) goja.Value {
		callback, delay := e.timerArgs("setTimeout", call)

		e.timers.mu.Lock()
		id := e.timers.nextID
		e.timers.nextID++
		e.timers.timers[id] = time.AfterFunc(delay, func() {
			e.mu.Lock()
			if _, err := callback(goja.Undefined()); err != nil {
				logger.Warn("setTimeout callback error: %v", err)
			}
			e.mu.Unlock()

			e.timers.mu.Lock()
			delete(e.timers.timers, id)
			e.timers.mu.Unlock()
		})
		e.timers.mu.Unlock()

		return e.runtime.ToValue(id)
	})

	e.runtime.Set("clearTimeout", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			return goja.Undefined()
		}
		id := int(call.Arguments[0].ToInteger())

		e.timers.mu.Lock()
		if timer, ok := e.timers.timers[id]; ok {
			timer.Stop()
			delete(e.timers.timers, id)
		}
		e.timers.mu.Unlock()
		return goja.Undefined()
	})

	e.runtime.Set("setInterval", func(call goja.FunctionCall) goja.Value {
		callback, interval := e.timerArgs("setInterval", call)
		if interval <= 0 {
			interval = time.Millisecond
		}

		e.timers.mu.Lock()
		id := e.timers.nextID
		e.timers.nextID++
		ticker := time.NewTicker(interval)
		e.timers.tickers[id] = ticker
		e.timers.mu.Unlock()

		go func() {
			defer ticker.Stop()
			for {
				select {
				case <-e.timers.stopChan:
					return
				case <-ticker.C:
					e.mu.Lock()
					if _, err := callback(goja.Undefined()); err != nil {
						logger.Warn("setInterval callback error: %v", err)
					}
					e.mu.Unlock()
				}
			}
		}()

		return e.runtime.ToValue(id)
	})

	e.runtime.Set("clearInterval", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			return goja.Undefined()
		}
		id := int(call.Arguments[0].ToInteger())

		e.timers.mu.Lock()
		if ticker, ok := e.timers.tickers[id]; ok {
			ticker.Stop()
			delete(e.timers.tickers, id)
		}
		e.timers.mu.Unlock()
		return goja.Undefined()
	})
}

func (e *Engine) timerArgs(name string, call goja.FunctionCall) (goja.Callable, time.Duration) {
	if len(call.Arguments) < 1 {
		panic(e.runtime.NewTypeError(name + " requires a callback"))
	}
	callback, ok := goja.AssertFunction(call.Arguments[0])
	if !ok {
		panic(e.runtime.NewTypeError("first argument must be a function"))
	}
	var delay time.Duration
	if len(call.Arguments) > 1 {
		delay = time.Duration(call.Arguments[1].ToInteger()) * time.Millisecond
	}
	return callback, delay
}

// jsonFunc returns the json() helper function
func (e *Engine) jsonFunc() func(call goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			panic(e.runtime.NewTypeError("json requires 1 argument"))
		}
		parse, ok := goja.AssertFunction(e.runtime.Get("JSON").ToObject(e.runtime).Get("parse"))
		if !ok {
			panic(e.runtime.NewTypeError("JSON.parse unavailable"))
		}
		result, err := parse(goja.Undefined(), call.Arguments[0])
		if err != nil {
			panic(e.runtime.NewTypeError(fmt.Sprintf("invalid JSON: %v", err)))
		}
		return result
	}
}

// Bind exposes a Go value (object, function, struct) to scripts as a global.
func (e *Engine) Bind(name string, value interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.runtime.Set(name, value)
}

// NewObject creates an empty object owned by this runtime, for building
// bindings.
func (e *Engine) NewObject() *goja.Object {
	return e.runtime.NewObject()
}

// SetVariable sets a variable accessible in JS as a global
func (e *Engine) SetVariable(name string, value interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.variables[name] = value
	e.runtime.Set(name, value)
}

// SetVariables sets multiple variables
func (e *Engine) SetVariables(vars map[string]interface{}) {
	for k, v := range vars {
		e.SetVariable(k, v)
	}
}

// GetOutput returns a copy of the output object (values set by scripts)
func (e *Engine) GetOutput() map[string]interface{} {
	e.mu.Lock()
	defer e.mu.Unlock()

	var source map[string]interface{}
	if v := e.runtime.Get("output"); v != nil && !goja.IsUndefined(v) {
		if m, ok := v.Export().(map[string]interface{}); ok {
			source = m
		}
	}
	if source == nil {
		source = e.output
	}

	result := make(map[string]interface{}, len(source))
	for k, v := range source {
		result[k] = v
	}
	return result
}

// Eval evaluates a JavaScript expression and returns the result
func (e *Engine) Eval(script string) (interface{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	result, err := e.runtime.RunString(script)
	if err != nil {
		return nil, fmt.Errorf("JS eval error: %w", err)
	}
	return result.Export(), nil
}

// EvalString evaluates a JavaScript expression and returns string result.
// undefined and null become "".
func (e *Engine) EvalString(script string) (string, error) {
	result, err := e.Eval(script)
	if err != nil {
		return "", err
	}
	if result == nil {
		return "", nil
	}
	return fmt.Sprintf("%v", result), nil
}

// RunScript runs statements for their side effects.
func (e *Engine) RunScript(script string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.runtime.RunString(script); err != nil {
		return fmt.Errorf("JS runtime error: %w", err)
	}
	return nil
}

// ExpandVariables expands ${...} expressions in a string using JS evaluation.
// Expressions that fail to evaluate are left as written.
func (e *Engine) ExpandVariables(text string) string {
	result := text
	start := 0

	for {
		idx := strings.Index(result[start:], "${")
		if idx == -1 {
			break
		}
		idx += start

		// Find matching }
		depth := 1
		end := idx + 2
		for end < len(result) && depth > 0 {
			switch result[end] {
			case '{':
				depth++
			case '}':
				depth--
			}
			end++
		}
		if depth != 0 {
			start = idx + 2
			continue
		}

		value, err := e.EvalString(result[idx+2 : end-1])
		if err != nil {
			start = end
			continue
		}

		result = result[:idx] + value + result[end:]
		start = idx + len(value)
	}

	return result
}

// Close stops all timers. Safe to call multiple times.
func (e *Engine) Close() {
	e.timers.closeOnce.Do(func() {
		e.timers.mu.Lock()
		defer e.timers.mu.Unlock()

		for _, timer := range e.timers.timers {
			timer.Stop()
		}
		e.timers.timers = make(map[int]*time.Timer)

		for _, ticker := range e.timers.tickers {
			ticker.Stop()
		}
		e.timers.tickers = make(map[int]*time.Ticker)

		close(e.timers.stopChan)
	})
}
