// Package playwright drives a real browser through playwright-go.
//
// Locator resolution runs in Go over a snapshot of the DOM taken once per
// attempt, so the tiered strategies behave exactly as they do against the
// in-memory driver. Actions address elements again through XPath locators.
package playwright

import (
	"fmt"
	"strings"
	"time"

	pw "github.com/playwright-community/playwright-go"

	"github.com/devicelab-dev/browserscope/pkg/core"
	"github.com/devicelab-dev/browserscope/pkg/locate"
	"github.com/devicelab-dev/browserscope/pkg/logger"
)

// Browser engines.
const (
	Chromium = "chromium"
	Firefox  = "firefox"
	WebKit   = "webkit"
)

// DefaultActionTimeout bounds a single click or hover. The retry engine
// provides the overall wait, so this stays short.
const DefaultActionTimeout = 2 * time.Second

// Config configures the browser launch.
type Config struct {
	Browser       string        // chromium (default), firefox, webkit
	Headless      bool
	SlowMo        time.Duration // delay between playwright operations
	ActionTimeout time.Duration // 0 = DefaultActionTimeout
	Install       bool          // install browsers and driver before launching
}

// Driver implements core.Driver on a playwright page.
type Driver struct {
	*locate.Resolver

	cfg     Config
	pw      *pw.Playwright
	browser pw.Browser
	page    pw.Page

	// snapshot and query are the page's script evaluators; tests replace them.
	snapshot func() (string, error)
	query    func(arg map[string]interface{}) ([]string, error)
}

var _ core.Driver = (*Driver)(nil)

// New starts playwright and opens a page.
func New(cfg Config) (*Driver, error) {
	if cfg.Browser == "" {
		cfg.Browser = Chromium
	}
	// driver and installer output goes to the run log
	runOpts := &pw.RunOptions{
		Browsers: []string{cfg.Browser},
		Stdout:   logger.GetWriter(),
		Stderr:   logger.GetWriter(),
	}
	if cfg.Install {
		if err := pw.Install(runOpts); err != nil {
			return nil, core.ErrDriver.WithMessage("install playwright").WithCause(err)
		}
	}

	runner, err := pw.Run(runOpts)
	if err != nil {
		return nil, core.ErrDriver.WithMessage("start playwright").WithCause(err)
	}

	var browserType pw.BrowserType
	switch cfg.Browser {
	case Chromium:
		browserType = runner.Chromium
	case Firefox:
		browserType = runner.Firefox
	case WebKit:
		browserType = runner.WebKit
	default:
		_ = runner.Stop()
		return nil, core.ErrInvalidConfig.WithMessage(fmt.Sprintf("unknown browser %q", cfg.Browser))
	}

	browser, err := browserType.Launch(pw.BrowserTypeLaunchOptions{
		Headless: pw.Bool(cfg.Headless),
		SlowMo:   pw.Float(float64(cfg.SlowMo.Milliseconds())),
	})
	if err != nil {
		_ = runner.Stop()
		return nil, core.ErrDriver.WithMessage("launch " + cfg.Browser).WithCause(err)
	}
	page, err := browser.NewPage()
	if err != nil {
		_ = browser.Close()
		_ = runner.Stop()
		return nil, core.ErrDriver.WithMessage("open page").WithCause(err)
	}
	logger.Info("launched %s %s (headless=%v)", cfg.Browser, browser.Version(), cfg.Headless)

	d := newDriver(cfg, page)
	d.pw = runner
	d.browser = browser
	return d, nil
}

func newDriver(cfg Config, page pw.Page) *Driver {
	d := &Driver{cfg: cfg, page: page}
	d.Resolver = locate.New(d.document)
	d.snapshot = d.evaluateSnapshot
	d.query = d.evaluateQuery
	return d
}

func (d *Driver) evaluateSnapshot() (string, error) {
	out, err := d.page.Evaluate(snapshotScript)
	if err != nil {
		return "", err
	}
	s, ok := out.(string)
	if !ok {
		return "", fmt.Errorf("snapshot returned %T", out)
	}
	return s, nil
}

func (d *Driver) evaluateQuery(arg map[string]interface{}) ([]string, error) {
	out, err := d.page.Evaluate(queryScript, arg)
	if err != nil {
		return nil, err
	}
	items, ok := out.([]interface{})
	if !ok {
		return nil, fmt.Errorf("query returned %T", out)
	}
	paths := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			paths = append(paths, s)
		}
	}
	return paths, nil
}

// document takes a fresh snapshot. It is the resolver's root callback, so
// every attempt sees the page as it is now.
func (d *Driver) document() (core.Element, error) {
	data, err := d.snapshot()
	if err != nil {
		return nil, core.ErrDriver.WithMessage("snapshot DOM").WithCause(err)
	}
	root, err := ParseSnapshot(data)
	if err != nil {
		return nil, core.ErrDriver.WithCause(err)
	}
	return &Element{node: root}, nil
}

// Visit navigates and waits for the load event.
func (d *Driver) Visit(url string) error {
	logger.Debug("playwright: goto %s", url)
	if _, err := d.page.Goto(url, pw.PageGotoOptions{WaitUntil: pw.WaitUntilStateLoad}); err != nil {
		return core.ErrDriver.WithMessage("navigate to " + url).WithCause(err)
	}
	return nil
}

// Info returns browser details for reports.
func (d *Driver) Info() *core.BrowserInfo {
	info := &core.BrowserInfo{Driver: "playwright", Browser: d.cfg.Browser, Headless: d.cfg.Headless}
	if d.page != nil {
		info.URL = d.page.URL()
	}
	return info
}

// Close closes the browser and stops playwright.
func (d *Driver) Close() error {
	var errs []string
	if d.browser != nil {
		if err := d.browser.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if d.pw != nil {
		if err := d.pw.Stop(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return core.ErrDriver.WithMessage("close: " + strings.Join(errs, "; "))
	}
	return nil
}
