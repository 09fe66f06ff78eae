package executor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"

	"github.com/devicelab-dev/browserscope/pkg/browser"
	"github.com/devicelab-dev/browserscope/pkg/core"
	"github.com/devicelab-dev/browserscope/pkg/flow"
	"github.com/devicelab-dev/browserscope/pkg/logger"
	"github.com/devicelab-dev/browserscope/pkg/robust"
)

var errCancelled = errors.New("execution cancelled")

// FlowRunner executes a single flow.
type FlowRunner struct {
	ctx        context.Context
	flow       *flow.Flow
	session    *browser.Session
	config     RunnerConfig
	script     *ScriptEngine
	clock      robust.Clock
	flowIdx    int // Current flow index (0-based)
	totalFlows int // Total number of flows
}

// Run executes the flow and returns the result.
func (fr *FlowRunner) Run() core.FlowResult {
	fr.clock = fr.session.Engine().Clock()
	result := core.FlowResult{
		Name:      FlowName(fr.flow),
		FilePath:  fr.flow.SourcePath,
		Tags:      fr.flow.Config.Tags,
		Browser:   fr.session.Driver().Info(),
		StartTime: fr.clock.Now(),
	}

	fr.script = NewScriptEngine()
	defer fr.script.Close()
	if fr.config.ImportEnv {
		fr.script.ImportSystemEnv()
	}
	fr.script.SetVariables(fr.config.Env)
	fr.script.SetVariables(fr.flow.Config.Env)

	if fr.config.OnFlowStart != nil {
		fr.config.OnFlowStart(fr.flowIdx, fr.totalFlows, result.Name, filepath.Base(fr.flow.SourcePath))
	}
	logger.Info("flow %q started (%s)", result.Name, fr.flow.SourcePath)

	steps := fr.flow.Steps
	if fr.flow.Config.URL != "" {
		open := &flow.VisitStep{URL: fr.flow.Config.URL}
		open.StepType = flow.StepVisit
		open.StepLabel = "open flow url"
		steps = append([]flow.Step{open}, steps...)
	}

	var err error
	run := func() error {
		result.Steps, err = fr.runSteps(fr.session, steps, 0)
		return err
	}
	if opts := timeoutsToOptions(fr.flow.Config.Timeouts); len(opts) > 0 {
		_ = fr.session.WithTimeouts(run, opts...)
	} else {
		_ = run()
	}

	result.Duration = fr.clock.Now().Sub(result.StartTime)
	result.ComputeSummary()
	result.Status = result.AggregateStatus()
	switch {
	case errors.Is(err, errCancelled):
		result.Status = core.StatusSkipped
		result.Error = err.Error()
	case err != nil:
		result.Error = err.Error()
	}

	if fr.config.OnFlowEnd != nil {
		fr.config.OnFlowEnd(result.Name, result.Status, result.Duration)
	}
	logger.Info("flow %q %s in %s", result.Name, result.Status, result.Duration)
	return result
}

// runSteps runs steps in scope until a required step fails. The remaining
// steps are recorded as skipped and the failure is returned.
func (fr *FlowRunner) runSteps(scope browser.Scope, steps []flow.Step, depth int) ([]core.StepResult, error) {
	results := make([]core.StepResult, 0, len(steps))
	var failure error

	for i, step := range steps {
		if failure == nil && fr.ctx.Err() != nil {
			failure = errCancelled
		}
		if failure != nil {
			results = append(results, core.StepResult{
				Index:   i,
				Command: string(step.Type()),
				Label:   step.Label(),
				Status:  core.StatusSkipped,
				Message: step.Describe(),
			})
			continue
		}

		res, err := fr.executeStep(scope, i, step, depth)
		results = append(results, res)
		if fr.config.OnStepComplete != nil {
			fr.config.OnStepComplete(depth, i, step.Describe(), res.Status, res.Duration, res.Error)
		}
		if err != nil && !step.IsOptional() {
			failure = fmt.Errorf("%s: %w", step.Describe(), err)
		}
	}
	return results, failure
}

// executeStep runs one step, applying its timeout override.
func (fr *FlowRunner) executeStep(scope browser.Scope, idx int, step flow.Step, depth int) (core.StepResult, error) {
	res := core.StepResult{
		Index:     idx,
		Command:   string(step.Type()),
		Label:     step.Label(),
		Message:   step.Describe(),
		StartTime: fr.clock.Now(),
	}
	logger.Debug("step %d.%d: %s", depth, idx, step.Describe())

	body := func() error { return fr.dispatch(scope, step, &res, depth) }
	var err error
	if t := step.Timeout(); t != nil {
		err = scope.WithTimeouts(body, robust.WithTimeout(*t))
	} else {
		err = body()
	}

	res.Duration = fr.clock.Now().Sub(res.StartTime)
	res.Status = core.StatusFor(err)
	if err != nil {
		res.Error = err.Error()
		res.Category = core.CategoryOf(err)
		if step.IsOptional() {
			res.Status = core.StatusWarned
			logger.Warn("optional step %q failed: %v", step.Describe(), err)
		} else {
			logger.Error("step %q failed: %v", step.Describe(), err)
		}
	}
	return res, err
}

// dispatch maps a step onto the scope API.
func (fr *FlowRunner) dispatch(scope browser.Scope, step flow.Step, res *core.StepResult, depth int) error {
	x := fr.script.Expand

	switch s := step.(type) {
	case *flow.VisitStep:
		return fr.session.Visit(x(s.URL))

	case *flow.ClickStep:
		f, err := targetToFinder(fr.script.ExpandTarget(s.Target))
		if err != nil {
			return err
		}
		return scope.Click(f)

	case *flow.ClickButtonStep:
		return scope.ClickButton(x(s.Button))

	case *flow.ClickLinkStep:
		return scope.ClickLink(x(s.Link))

	case *flow.ClickButtonUntilStep:
		return fr.clickButtonUntil(scope, s)

	case *flow.FieldStep:
		locator := x(s.Field)
		switch s.StepType {
		case flow.StepCheck:
			return scope.Check(locator)
		case flow.StepUncheck:
			return scope.Uncheck(locator)
		case flow.StepChoose:
			return scope.Choose(locator)
		}

	case *flow.HoverStep:
		f, err := targetToFinder(fr.script.ExpandTarget(s.Target))
		if err != nil {
			return err
		}
		return scope.Hover(f)

	case *flow.ContentStep:
		return fr.assertContent(scope, s)

	case *flow.SelectorStep:
		return fr.assertSelector(scope, s)

	case *flow.ExistsStep:
		return fr.assertExists(scope, s, res)

	case *flow.ExecuteScriptStep:
		out, err := scope.ExecuteScript(x(s.Script))
		if err != nil {
			return err
		}
		res.Data = out
		if s.Var != "" {
			fr.script.SetVariable(s.Var, out)
		}
		return nil

	case *flow.WithinStep:
		inner, err := targetToScope(scope, fr.script.ExpandTarget(s.Target))
		if err != nil {
			return err
		}
		children, err := fr.runSteps(inner, s.Steps, depth+1)
		res.Children = children
		return err

	case *flow.WithTimeoutsStep:
		return scope.WithTimeouts(func() error {
			children, err := fr.runSteps(scope, s.Steps, depth+1)
			res.Children = children
			return err
		}, timeoutsToOptions(s.Timeouts)...)

	case *flow.WaitForStateStep:
		return fr.waitForState(scope, s, res, depth)
	}

	return core.ErrUnsupported.WithMessage(fmt.Sprintf("step %q is not supported", step.Type()))
}

func (fr *FlowRunner) clickButtonUntil(scope browser.Scope, s *flow.ClickButtonUntilStep) error {
	content := fr.script.Expand(s.UntilContent)
	wait := scope.Timeouts().WaitBeforeRetry
	if s.WaitBeforeRetry != nil {
		wait = *s.WaitBeforeRetry
	}
	return scope.ClickButtonUntil(fr.script.Expand(s.Button), func() (bool, error) {
		return scope.HasContent(content)
	}, wait)
}

func (fr *FlowRunner) assertContent(scope browser.Scope, s *flow.ContentStep) error {
	present := s.StepType == flow.StepAssertContent

	var ok bool
	var err error
	what := fr.script.Expand(s.Text)
	if s.Matches != "" {
		re, cerr := regexp.Compile(fr.script.Expand(s.Matches))
		if cerr != nil {
			return core.ErrInvalidLocator.WithMessage(fmt.Sprintf("invalid pattern %q", s.Matches)).WithCause(cerr)
		}
		what = "/" + re.String() + "/"
		if present {
			ok, err = scope.HasContentMatch(re)
		} else {
			ok, err = scope.HasNoContentMatch(re)
		}
	} else if present {
		ok, err = scope.HasContent(what)
	} else {
		ok, err = scope.HasNoContent(what)
	}

	switch {
	case err != nil:
		return err
	case ok:
		return nil
	case present:
		return core.ErrContentNotFound.WithMessage(fmt.Sprintf("content not found: %s", quoteContent(what)))
	default:
		return core.ErrUnexpectedContent.WithMessage(fmt.Sprintf("content still present: %s", quoteContent(what)))
	}
}

func quoteContent(s string) string {
	if len(s) > 1 && s[0] == '/' && s[len(s)-1] == '/' {
		return s
	}
	return fmt.Sprintf("%q", s)
}

func (fr *FlowRunner) assertSelector(scope browser.Scope, s *flow.SelectorStep) error {
	selector := fr.script.Expand(s.Selector)

	var ok bool
	var err error
	present := true
	kind := flow.KindCSS
	switch s.StepType {
	case flow.StepAssertCSS:
		ok, err = scope.HasCSS(selector)
	case flow.StepAssertNoCSS:
		present = false
		ok, err = scope.HasNoCSS(selector)
	case flow.StepAssertXPath:
		kind = flow.KindXPath
		ok, err = scope.HasXPath(selector)
	case flow.StepAssertNoXPath:
		kind = flow.KindXPath
		present = false
		ok, err = scope.HasNoXPath(selector)
	}

	switch {
	case err != nil:
		return err
	case ok:
		return nil
	case present:
		return core.NotFound(kind, selector)
	default:
		return core.ErrUnexpectedElement.WithMessage(fmt.Sprintf("%s still present: %q", kind, selector))
	}
}

func (fr *FlowRunner) assertExists(scope browser.Scope, s *flow.ExistsStep, res *core.StepResult) error {
	target := fr.script.ExpandTarget(s.Target)
	f, err := targetToFinder(target)
	if err != nil {
		return err
	}

	if s.StepType == flow.StepAssertExists {
		el, err := scope.Within(f).Element()
		if err != nil {
			return err
		}
		res.Element = core.Describe(el)
		return nil
	}

	ok, err := scope.HasNo(f)
	if err != nil {
		return err
	}
	if !ok {
		return core.ErrUnexpectedElement.WithMessage("still present: " + target.Describe())
	}
	return nil
}

func (fr *FlowRunner) waitForState(scope browser.Scope, s *flow.WaitForStateStep, res *core.StepResult, depth int) error {
	states := make([]*robust.State, len(s.States))
	byState := make(map[*robust.State]*flow.State, len(s.States))
	for i := range s.States {
		st := &s.States[i]
		states[i] = robust.NewState(st.Name, fr.stateCheck(scope, st))
		byState[states[i]] = st
	}

	found, err := scope.FindState(states...)
	if err != nil {
		return err
	}
	res.Data = found.Name()

	children, err := fr.runSteps(scope, byState[found].Steps, depth+1)
	res.Children = children
	return err
}

func (fr *FlowRunner) stateCheck(scope browser.Scope, st *flow.State) func() (bool, error) {
	switch {
	case st.Content != "":
		content := fr.script.Expand(st.Content)
		return func() (bool, error) { return scope.HasContent(content) }
	case st.CSS != "":
		css := fr.script.Expand(st.CSS)
		return func() (bool, error) { return scope.HasCSS(css) }
	default:
		xpath := fr.script.Expand(st.XPath)
		return func() (bool, error) { return scope.HasXPath(xpath) }
	}
}
