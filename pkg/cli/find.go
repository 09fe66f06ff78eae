package cli

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/browserscope/pkg/browser"
	"github.com/devicelab-dev/browserscope/pkg/config"
	"github.com/devicelab-dev/browserscope/pkg/core"
)

var findCommand = &cli.Command{
	Name:      "find",
	Usage:     "Resolve a locator and print the element",
	ArgsUsage: "<locator>",
	Description: `Resolve one locator the way a flow step would, waiting up to the
timeout, and print the element that matched.

Examples:
  browserscope find --kind button --url https://example.com "Sign in"
  browserscope find --kind field --html page.html Email
  browserscope find --kind css --html page.html "#cart .total"`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "kind",
			Aliases: []string{"k"},
			Usage:   "Locator kind (button, link, field, section, fieldset, frame, id, css, xpath)",
			Value:   "button",
		},
		&cli.StringFlag{
			Name:  "url",
			Usage: "Page to open in a playwright browser",
		},
		&cli.StringFlag{
			Name:  "html",
			Usage: "HTML file to load in the memory driver",
		},
		&cli.StringFlag{
			Name:  "browser",
			Usage: "Browser for --url (chromium, firefox, webkit)",
			Value: "chromium",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "How long to keep retrying the lookup",
		},
	},
	Action: findElement,
}

func findElement(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("exactly one locator is required")
	}
	finder, err := finderFor(c.String("kind"), c.Args().First())
	if err != nil {
		return err
	}

	cfg := config.Default()
	rc := &RunConfig{Config: cfg}
	switch {
	case c.String("html") != "":
		cfg.Browser.Driver = "memory"
		rc.HTMLFile = c.String("html")
	case c.String("url") != "":
		cfg.Browser.Driver = "playwright"
		cfg.Browser.Type = c.String("browser")
	default:
		return fmt.Errorf("--url or --html is required")
	}
	if c.IsSet("timeout") {
		cfg.Timeouts.Timeout = c.Duration("timeout")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	session, err := newSession(rc)
	if err != nil {
		return err
	}
	defer session.Close()

	if url := c.String("url"); url != "" {
		if err := session.Visit(url); err != nil {
			return err
		}
	}

	el, err := session.Within(finder).Element()
	if err != nil {
		return err
	}
	printElement(c.App.Writer, finder, core.Describe(el))
	return nil
}

// finderFor maps a --kind value to a finder.
func finderFor(kind, locator string) (browser.Finder, error) {
	constructors := map[string]func(string) browser.Finder{
		"button":   browser.Button,
		"link":     browser.Link,
		"field":    browser.Field,
		"section":  browser.Section,
		"fieldset": browser.Fieldset,
		"frame":    browser.Frame,
		"id":       browser.ID,
		"css":      browser.CSS,
		"xpath":    browser.XPath,
	}
	newFinder, ok := constructors[kind]
	if !ok {
		return browser.Finder{}, core.ErrInvalidConfig.WithMessage(fmt.Sprintf("unknown kind %q", kind))
	}
	return newFinder(locator), nil
}

func printElement(w io.Writer, finder browser.Finder, info *core.ElementInfo) {
	if w == nil {
		w = os.Stdout
	}
	fmt.Fprintf(w, "%s%s%s\n", color(colorBold), finder, color(colorReset))
	fmt.Fprintf(w, "  tag:     %s\n", info.Tag)
	if info.ID != "" {
		fmt.Fprintf(w, "  id:      %s\n", info.ID)
	}
	fmt.Fprintf(w, "  text:    %q\n", info.Text)
	fmt.Fprintf(w, "  visible: %t\n", info.Visible)

	names := make([]string, 0, len(info.Attributes))
	for name := range info.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %s: %q\n", name, info.Attributes[name])
	}
}
