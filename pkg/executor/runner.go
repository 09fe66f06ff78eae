// Package executor runs flows against a browser session and collects results.
package executor

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/devicelab-dev/browserscope/pkg/browser"
	"github.com/devicelab-dev/browserscope/pkg/core"
	"github.com/devicelab-dev/browserscope/pkg/flow"
	"github.com/devicelab-dev/browserscope/pkg/logger"
)

// RunnerConfig configures the test runner.
type RunnerConfig struct {
	Name       string            // Suite name for reports
	StopOnFail bool              // Skip remaining flows after the first failure
	Env        map[string]string // Variables visible to ${...} in every flow
	ImportEnv  bool              // Also expose upper-case process env variables

	// Live progress callbacks
	OnFlowStart    func(flowIdx, totalFlows int, name, file string)
	OnStepComplete func(depth, idx int, desc string, status core.StepStatus, duration time.Duration, err string)
	OnFlowEnd      func(name string, status core.StepStatus, duration time.Duration)
}

// Runner orchestrates flow execution on one session.
type Runner struct {
	config  RunnerConfig
	session *browser.Session
}

// New creates a new Runner.
func New(session *browser.Session, cfg RunnerConfig) *Runner {
	return &Runner{
		config:  cfg,
		session: session,
	}
}

// Run executes all flows in order and returns the suite result. Flows
// never abort the run: a failing flow is recorded and the next one starts,
// unless StopOnFail is set.
func (r *Runner) Run(ctx context.Context, flows []*flow.Flow) (*core.SuiteResult, error) {
	if len(flows) == 0 {
		return nil, core.ErrMissingRequired.WithMessage("no flows to run")
	}

	clock := r.session.Engine().Clock()
	suite := newSuite(r.config.Name, clock.Now())
	logger.Info("run %s: %d flow(s)", suite.RunID, len(flows))

	stopped := false
	for i, f := range flows {
		if stopped || ctx.Err() != nil {
			reason := "run stopped after failure"
			if ctx.Err() != nil {
				reason = "run cancelled"
			}
			suite.Flows = append(suite.Flows, skippedFlow(f, reason))
			continue
		}
		result := r.executeFlow(ctx, f, i, len(flows))
		suite.Flows = append(suite.Flows, result)
		if r.config.StopOnFail && !result.Status.IsSuccess() {
			stopped = true
		}
	}

	suite.Duration = clock.Now().Sub(suite.StartTime)
	suite.ComputeSummary()
	logger.Info("run %s finished: %d passed, %d failed, %d skipped",
		suite.RunID, suite.PassedFlows, suite.FailedFlows, suite.SkippedFlows)
	return suite, nil
}

// executeFlow runs a single flow.
func (r *Runner) executeFlow(ctx context.Context, f *flow.Flow, flowIdx, totalFlows int) core.FlowResult {
	fr := &FlowRunner{
		ctx:        ctx,
		flow:       f,
		session:    r.session,
		config:     r.config,
		flowIdx:    flowIdx,
		totalFlows: totalFlows,
	}
	return fr.Run()
}

func newSuite(name string, start time.Time) *core.SuiteResult {
	if name == "" {
		name = "browserscope"
	}
	return &core.SuiteResult{
		Name:      name,
		RunID:     uuid.NewString(),
		StartTime: start,
	}
}

// FlowName returns the configured name, or the file name without extension.
func FlowName(f *flow.Flow) string {
	if f.Config.Name != "" {
		return f.Config.Name
	}
	if f.SourcePath != "" {
		base := filepath.Base(f.SourcePath)
		return strings.TrimSuffix(base, filepath.Ext(base))
	}
	return "flow"
}

func skippedFlow(f *flow.Flow, reason string) core.FlowResult {
	return core.FlowResult{
		Name:     FlowName(f),
		FilePath: f.SourcePath,
		Tags:     f.Config.Tags,
		Status:   core.StatusSkipped,
		Steps:    []core.StepResult{},
		Error:    reason,
	}
}
