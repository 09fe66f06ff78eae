// Package cli provides the command-line interface for browserscope.
package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/browserscope/pkg/logger"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Mirror debug logging to stderr",
		EnvVars: []string{"BROWSERSCOPE_VERBOSE"},
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
}

// Execute runs the CLI.
func Execute() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "browserscope",
		Usage:   "Robust browser test runner",
		Version: Version,
		Description: `browserscope runs YAML flows against a browser, waiting for elements
and retrying flaky interactions until they succeed or time out.

Examples:
  browserscope run flows/
  browserscope run --driver memory --html page.html checkout.yaml
  browserscope run flows/ -e USER=test --include-tags smoke
  browserscope find --kind button --url https://example.com "Sign in"`,
		Flags: GlobalFlags,
		Before: func(c *cli.Context) error {
			if c.Bool("verbose") {
				logger.SetVerbose(true)
			}
			if c.Bool("no-ansi") {
				colorsEnabled = false
			}
			return nil
		},
		Commands: []*cli.Command{
			runCommand,
			findCommand,
			validateCommand,
		},
	}
}

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// colorsEnabled determines if ANSI colors should be used
var colorsEnabled = true

func init() {
	if os.Getenv("NO_COLOR") != "" {
		colorsEnabled = false
		return
	}
	if fileInfo, err := os.Stdout.Stat(); err == nil {
		if (fileInfo.Mode() & os.ModeCharDevice) == 0 {
			colorsEnabled = false
		}
	}
}

func color(c string) string {
	if colorsEnabled {
		return c
	}
	return ""
}
