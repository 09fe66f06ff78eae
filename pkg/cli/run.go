package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/browserscope/pkg/browser"
	"github.com/devicelab-dev/browserscope/pkg/config"
	"github.com/devicelab-dev/browserscope/pkg/core"
	"github.com/devicelab-dev/browserscope/pkg/driver/memory"
	pwdriver "github.com/devicelab-dev/browserscope/pkg/driver/playwright"
	"github.com/devicelab-dev/browserscope/pkg/executor"
	"github.com/devicelab-dev/browserscope/pkg/flow"
	"github.com/devicelab-dev/browserscope/pkg/logger"
	"github.com/devicelab-dev/browserscope/pkg/report"
	"github.com/devicelab-dev/browserscope/pkg/validator"
)

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "Run flows against a browser",
	ArgsUsage: "<flow-file-or-folder>...",
	Description: `Run one or more flow files. Without arguments the flows globs of
browserscope.yaml are used.

Reports are generated in the output directory:
  - Default: $BROWSERSCOPE_HOME/reports/<timestamp>/ (home falls back to the working dir)
  - With --output: <output>/<timestamp>/
  - With --output and --flatten: <output>/ (no timestamp subfolder)

Examples:
  browserscope run flows/
  browserscope run login.yaml checkout.yaml --app-host http://localhost:8080
  browserscope run flows/ -e USER=test -e PASS=secret
  browserscope run --driver memory --html page.html flow.yaml
  browserscope run flows/ --output ./my-reports --flatten`,
	Flags: []cli.Flag{
		// Configuration
		&cli.StringFlag{
			Name:  "config",
			Usage: "Directory holding browserscope.yaml and .env",
			Value: ".",
		},
		&cli.StringSliceFlag{
			Name:    "env",
			Aliases: []string{"e"},
			Usage:   "Flow variables (KEY=VALUE)",
		},
		&cli.StringFlag{
			Name:  "app-host",
			Usage: "Base URL relative visits are resolved against",
		},

		// Browser
		&cli.StringFlag{
			Name:    "driver",
			Aliases: []string{"d"},
			Usage:   "Driver to use (playwright, memory)",
		},
		&cli.StringFlag{
			Name:  "browser",
			Usage: "Browser for the playwright driver (chromium, firefox, webkit)",
		},
		&cli.BoolFlag{
			Name:  "headless",
			Usage: "Run the browser without a window",
		},
		&cli.DurationFlag{
			Name:  "slow-mo",
			Usage: "Delay between playwright operations",
		},
		&cli.BoolFlag{
			Name:  "install",
			Usage: "Install playwright browsers before launching",
		},
		&cli.StringFlag{
			Name:  "html",
			Usage: "Initial document for the memory driver",
		},
		&cli.StringSliceFlag{
			Name:  "page",
			Usage: "Page served by the memory driver (URL=FILE)",
		},

		// Timeouts
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "How long to keep retrying finds and checks",
		},
		&cli.DurationFlag{
			Name:  "retry-interval",
			Usage: "Pause between attempts",
		},
		&cli.DurationFlag{
			Name:  "wait-before-retry",
			Usage: "Default wait between clicks of clickButtonUntil",
		},

		// Tag filtering
		&cli.StringSliceFlag{
			Name:  "include-tags",
			Usage: "Only include flows with these tags",
		},
		&cli.StringSliceFlag{
			Name:  "exclude-tags",
			Usage: "Exclude flows with these tags",
		},

		// Output directory
		&cli.StringFlag{
			Name:  "output",
			Usage: "Output directory for reports (default: <home>/reports)",
		},
		&cli.BoolFlag{
			Name:  "flatten",
			Usage: "Don't create timestamp subfolder (requires --output)",
		},

		// Execution
		&cli.BoolFlag{
			Name:  "stop-on-fail",
			Usage: "Skip remaining flows after the first failure",
		},
	},
	Action: runFlows,
}

// RunConfig holds the resolved settings of one run.
type RunConfig struct {
	FlowPaths   []string
	Config      *config.Config
	Env         map[string]string
	IncludeTags []string
	ExcludeTags []string
	OutputDir   string

	// Driver
	HTMLFile string            // memory driver initial document
	Pages    map[string]string // memory driver pages, URL -> file
	Install  bool

	StopOnFail bool
}

func runFlows(c *cli.Context) error {
	configDir := c.String("config")
	cfg, err := config.LoadFromDir(configDir)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.LoadEnv(filepath.Join(configDir, ".env")); err != nil {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	if err := applyFlagOverrides(c, cfg); err != nil {
		return err
	}

	outputDir, err := resolveOutputDir(c.String("output"), c.Bool("flatten"))
	if err != nil {
		return err
	}

	// CLI variables take precedence over the config's env.
	env := make(map[string]string)
	for k, v := range cfg.Env {
		env[k] = v
	}
	for k, v := range parseEnvVars(c.StringSlice("env")) {
		env[k] = v
	}

	includeTags := c.StringSlice("include-tags")
	if len(includeTags) == 0 {
		includeTags = cfg.IncludeTags
	}
	excludeTags := c.StringSlice("exclude-tags")
	if len(excludeTags) == 0 {
		excludeTags = cfg.ExcludeTags
	}

	paths, err := resolveFlowPaths(c.Args().Slice(), cfg.Flows, configDir)
	if err != nil {
		return err
	}

	rc := &RunConfig{
		FlowPaths:   paths,
		Config:      cfg,
		Env:         env,
		IncludeTags: includeTags,
		ExcludeTags: excludeTags,
		OutputDir:   outputDir,
		HTMLFile:    c.String("html"),
		Pages:       parseEnvVars(c.StringSlice("page")),
		Install:     c.Bool("install"),
		StopOnFail:  c.Bool("stop-on-fail"),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return executeRun(ctx, rc, c.App.Writer)
}

// applyFlagOverrides copies explicitly set flags over the loaded config.
func applyFlagOverrides(c *cli.Context, cfg *config.Config) error {
	if c.IsSet("driver") {
		cfg.Browser.Driver = c.String("driver")
	} else if c.IsSet("html") || c.IsSet("page") {
		cfg.Browser.Driver = "memory"
	}
	if c.IsSet("browser") {
		cfg.Browser.Type = c.String("browser")
	}
	if c.IsSet("headless") {
		cfg.Browser.Headless = c.Bool("headless")
	}
	if c.IsSet("slow-mo") {
		cfg.Browser.SlowMo = c.Duration("slow-mo")
	}
	if c.IsSet("app-host") {
		cfg.AppHost = c.String("app-host")
	}
	if c.IsSet("timeout") {
		cfg.Timeouts.Timeout = c.Duration("timeout")
	}
	if c.IsSet("retry-interval") {
		cfg.Timeouts.RetryInterval = c.Duration("retry-interval")
	}
	if c.IsSet("wait-before-retry") {
		cfg.Timeouts.WaitBeforeRetry = c.Duration("wait-before-retry")
	}
	return cfg.Validate()
}

// resolveOutputDir determines the output directory based on flags.
// - No --output: <home>/reports/<timestamp>/
// - --output given: <output>/<timestamp>/
// - --output + --flatten: <output>/ (error if --output not given)
func resolveOutputDir(output string, flatten bool) (string, error) {
	if flatten && output == "" {
		return "", fmt.Errorf("--flatten requires --output to be specified")
	}

	baseDir := output
	if baseDir == "" {
		baseDir = config.GetReportsDir()
	}

	if flatten {
		return filepath.Clean(baseDir), nil
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(baseDir, timestamp), nil
}

// resolveFlowPaths returns args, or the config's flow globs expanded
// relative to the config directory.
func resolveFlowPaths(args, globs []string, configDir string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	var paths []string
	for _, pattern := range globs {
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(configDir, pattern)
		}
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, core.ErrInvalidConfig.WithMessage(fmt.Sprintf("flows glob %q", pattern)).WithCause(err)
		}
		paths = append(paths, matches...)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("at least one flow file or folder is required")
	}
	sort.Strings(paths)
	return paths, nil
}

func executeRun(ctx context.Context, rc *RunConfig, w io.Writer) error {
	if err := os.MkdirAll(rc.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	logPath := filepath.Join(rc.OutputDir, "browserscope.log")
	if err := logger.Init(logPath); err != nil {
		fmt.Fprintf(w, "Warning: Failed to initialize logger: %v\n", err)
	}
	defer logger.Close()

	logger.Info("=== Run started ===")
	logger.Info("Output directory: %s", rc.OutputDir)
	logger.Info("Driver: %s", rc.Config.Browser.Driver)

	flows, err := collectFlows(rc.FlowPaths, rc.IncludeTags, rc.ExcludeTags, w)
	if err != nil {
		logger.Error("Flow parsing failed: %v", err)
		return err
	}
	logger.Info("Parsed %d flow(s)", len(flows))

	session, err := newSession(rc)
	if err != nil {
		logger.Error("Browser startup failed: %v", err)
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn("close session: %v", err)
		}
	}()

	p := &progress{w: w}
	suite, err := executor.New(session, executor.RunnerConfig{
		StopOnFail:     rc.StopOnFail,
		Env:            rc.Env,
		OnFlowStart:    p.flowStart,
		OnStepComplete: p.stepComplete,
		OnFlowEnd:      p.flowEnd,
	}).Run(ctx, flows)
	if err != nil {
		logger.Error("Flow execution failed: %v", err)
		return err
	}
	logger.Info("Flow execution completed: %d passed, %d failed, %d skipped",
		suite.PassedFlows, suite.FailedFlows, suite.SkippedFlows)

	printSummary(w, suite)
	if err := writeReports(w, rc, suite); err != nil {
		return err
	}

	if !suite.Success() {
		return cli.Exit("", 1)
	}
	return nil
}

// collectFlows validates files and folders. Any invalid flow fails the
// run before a browser is started.
func collectFlows(paths, includeTags, excludeTags []string, w io.Writer) ([]*flow.Flow, error) {
	result := validator.New(includeTags, excludeTags).Validate(paths...)
	if !result.IsValid() {
		fmt.Fprintf(w, "Validation errors:\n")
		for _, err := range result.Errors {
			fmt.Fprintf(w, "  - %v\n", err)
		}
		return nil, fmt.Errorf("validation failed with %d error(s)", len(result.Errors))
	}
	if len(result.Flows) == 0 {
		return nil, fmt.Errorf("no flows to run (check paths and tag filters)")
	}
	return result.Flows, nil
}

func newSession(rc *RunConfig) (*browser.Session, error) {
	driver, err := newDriver(rc)
	if err != nil {
		return nil, err
	}
	return browser.NewSession(driver,
		browser.WithAppHost(rc.Config.AppHost),
		browser.WithBaseTimeouts(rc.Config.RobustTimeouts()),
	), nil
}

func newDriver(rc *RunConfig) (core.Driver, error) {
	switch rc.Config.Browser.Driver {
	case "memory":
		mc := memory.Config{}
		if rc.HTMLFile != "" {
			data, err := os.ReadFile(rc.HTMLFile) //#nosec G304 -- user-provided page
			if err != nil {
				return nil, fmt.Errorf("read --html: %w", err)
			}
			mc.HTML = string(data)
		}
		if len(rc.Pages) > 0 {
			mc.Pages = make(map[string]string, len(rc.Pages))
			for target, file := range rc.Pages {
				data, err := os.ReadFile(file) //#nosec G304 -- user-provided page
				if err != nil {
					return nil, fmt.Errorf("read page %s: %w", target, err)
				}
				mc.Pages[target] = string(data)
			}
		}
		d, err := memory.New(mc)
		if err != nil {
			return nil, err
		}
		return d, nil
	case "playwright":
		d, err := pwdriver.New(pwdriver.Config{
			Browser:  rc.Config.Browser.Type,
			Headless: rc.Config.Browser.Headless,
			SlowMo:   rc.Config.Browser.SlowMo,
			Install:  rc.Install,
		})
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, core.ErrInvalidConfig.WithMessage(fmt.Sprintf("unknown driver %q", rc.Config.Browser.Driver))
	}
}

// writeReports writes report.json first; the other formats are derived
// from it. Only report.json failing aborts the run.
func writeReports(w io.Writer, rc *RunConfig, suite *core.SuiteResult) error {
	logger.Info("Generating reports...")
	r := report.Build(suite, report.RunnerInfo{Name: "browserscope", Version: Version})

	if err := report.WriteJSON(rc.OutputDir, r); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	fmt.Fprintln(w, "  Reports:")
	fmt.Fprintf(w, "    JSON:   %s\n", filepath.Join(rc.OutputDir, report.JSONFile))

	if rc.Config.JUnit != "" {
		junitPath := rc.Config.JUnit
		if !filepath.IsAbs(junitPath) {
			junitPath = filepath.Join(rc.OutputDir, junitPath)
		}
		if err := report.WriteJUnit(junitPath, r); err != nil {
			warn(w, "failed to write JUnit report", err)
		} else {
			fmt.Fprintf(w, "    JUnit:  %s\n", junitPath)
		}
	}

	htmlPath := filepath.Join(rc.OutputDir, report.HTMLFile)
	if err := report.GenerateHTML(rc.OutputDir, report.HTMLConfig{OutputPath: htmlPath, Title: "browserscope report"}); err != nil {
		warn(w, "failed to generate HTML report", err)
	} else {
		fmt.Fprintf(w, "    HTML:   %s\n", htmlPath)
	}

	if err := report.GenerateAllure(rc.OutputDir); err != nil {
		warn(w, "failed to generate Allure results", err)
	} else {
		fmt.Fprintf(w, "    Allure: %s\n", filepath.Join(rc.OutputDir, report.AllureDir))
	}
	return nil
}

func warn(w io.Writer, msg string, err error) {
	logger.Warn("%s: %v", msg, err)
	fmt.Fprintf(w, "  %s⚠%s Warning: %s: %v\n", color(colorYellow), color(colorReset), msg, err)
}

// parseEnvVars splits KEY=VALUE pairs. Entries without '=' are ignored.
func parseEnvVars(envs []string) map[string]string {
	result := make(map[string]string)
	for _, e := range envs {
		parts := strings.SplitN(e, "=", 2)
		if len(parts) == 2 {
			result[parts[0]] = parts[1]
		}
	}
	return result
}

// progress prints live results.
type progress struct {
	w io.Writer
}

func (p *progress) flowStart(flowIdx, totalFlows int, name, file string) {
	fmt.Fprintf(p.w, "\n  %s[%d/%d]%s %s%s%s (%s)\n",
		color(colorCyan), flowIdx+1, totalFlows, color(colorReset),
		color(colorBold), name, color(colorReset), file)
	fmt.Fprintln(p.w, strings.Repeat("─", 60))
}

func (p *progress) stepComplete(depth, idx int, desc string, status core.StepStatus, d time.Duration, errMsg string) {

	indent := strings.Repeat("  ", 2+depth)
	symbol, symbolColor := statusSymbol(status)
	fmt.Fprintf(p.w, "%s%s%s%s %s (%s)\n", indent, symbolColor, symbol, color(colorReset), desc, formatDuration(d))
	if errMsg != "" && status != core.StatusSkipped {
		fmt.Fprintf(p.w, "%s  %s╰─%s %s\n", indent, color(colorGray), color(colorReset), errMsg)
	}
}

func (p *progress) flowEnd(name string, status core.StepStatus, d time.Duration) {
	symbol, symbolColor := statusSymbol(status)
	fmt.Fprintf(p.w, "  %s%s %s%s %s (%s)\n", symbolColor, symbol, status, color(colorReset), name, formatDuration(d))
}

func statusSymbol(s core.StepStatus) (string, string) {
	switch s {
	case core.StatusPassed:
		return "✓", color(colorGreen)
	case core.StatusWarned:
		return "⚠", color(colorYellow)
	case core.StatusSkipped:
		return "–", color(colorGray)
	default:
		return "✗", color(colorRed)
	}
}

func printSummary(w io.Writer, suite *core.SuiteResult) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%sSummary%s\n", color(colorBold), color(colorReset))
	fmt.Fprintf(w, "  Flows: %d total, %s%d passed%s, %s%d failed%s, %d skipped (%s)\n",
		suite.TotalFlows,
		color(colorGreen), suite.PassedFlows, color(colorReset),
		color(colorRed), suite.FailedFlows, color(colorReset),
		suite.SkippedFlows, formatDuration(suite.Duration))

	for _, f := range suite.Flows {
		if f.Status.IsSuccess() || f.Status == core.StatusSkipped {
			continue
		}
		fmt.Fprintf(w, "  %s✗%s %s: %s\n", color(colorRed), color(colorReset), f.Name, f.Error)
	}
	fmt.Fprintln(w)
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
}
