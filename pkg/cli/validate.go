package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

var validateCommand = &cli.Command{
	Name:      "validate",
	Usage:     "Check flow files without starting a browser",
	ArgsUsage: "<flow-file-or-folder>...",
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:  "include-tags",
			Usage: "Only include flows with these tags",
		},
		&cli.StringSliceFlag{
			Name:  "exclude-tags",
			Usage: "Exclude flows with these tags",
		},
	},
	Action: validateFlows,
}

func validateFlows(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("at least one flow file or folder is required")
	}
	w := c.App.Writer
	flows, err := collectFlows(c.Args().Slice(), c.StringSlice("include-tags"), c.StringSlice("exclude-tags"), w)
	if err != nil {
		return err
	}
	for _, f := range flows {
		fmt.Fprintf(w, "  %s✓%s %s (%d steps)\n", color(colorGreen), color(colorReset), f.SourcePath, len(f.Steps))
	}
	fmt.Fprintf(w, "%d flow(s) valid\n", len(flows))
	return nil
}
