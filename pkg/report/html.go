package report

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"

	"github.com/devicelab-dev/browserscope/pkg/core"
)

// HTMLConfig contains configuration for HTML report generation.
type HTMLConfig struct {
	OutputPath string // Path to write the HTML file (default: <reportDir>/report.html)
	Title      string // Report title (default: "Test Report")
}

// GenerateHTML renders report.json in reportDir as a standalone HTML page.
func GenerateHTML(reportDir string, cfg HTMLConfig) error {
	r, err := ReadReport(reportDir)
	if err != nil {
		return fmt.Errorf("read report: %w", err)
	}

	if cfg.Title == "" {
		cfg.Title = "Test Report"
	}
	if cfg.OutputPath == "" {
		cfg.OutputPath = filepath.Join(reportDir, HTMLFile)
	}

	html, err := renderHTML(buildHTMLData(r, cfg))
	if err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	if err := os.WriteFile(cfg.OutputPath, []byte(html), 0o644); err != nil {
		return fmt.Errorf("write html: %w", err)
	}
	return nil
}

// HTMLData contains all data needed for the HTML template.
type HTMLData struct {
	Title         string
	GeneratedAt   string
	Report        *Report
	Flows         []FlowHTMLData
	TotalDuration string
	PassRate      float64
}

// FlowHTMLData contains flow data formatted for HTML.
type FlowHTMLData struct {
	core.FlowResult
	StatusClass string
	DurationStr string
	DurationPct float64
	Steps       []StepHTMLData
}

// StepHTMLData is one step row, flattened with its nesting depth.
type StepHTMLData struct {
	core.StepResult
	StatusClass string
	DurationStr string
	Indent      int
}

func buildHTMLData(r *Report, cfg HTMLConfig) HTMLData {
	var maxDuration time.Duration
	for _, f := range r.Flows {
		if f.Duration > maxDuration {
			maxDuration = f.Duration
		}
	}

	flows := make([]FlowHTMLData, len(r.Flows))
	for i, f := range r.Flows {
		var pct float64
		if maxDuration > 0 {
			pct = float64(f.Duration) / float64(maxDuration) * 100
		}
		flows[i] = FlowHTMLData{
			FlowResult:  f,
			StatusClass: f.Status.String(),
			DurationStr: formatDuration(f.Duration),
			DurationPct: pct,
			Steps:       flattenSteps(nil, f.Steps, 0),
		}
	}

	var passRate float64
	if r.Summary.Total > 0 {
		passRate = float64(r.Summary.Passed) / float64(r.Summary.Total) * 100
	}

	return HTMLData{
		Title:         cfg.Title,
		GeneratedAt:   time.Now().Format("2006-01-02 15:04:05"),
		Report:        r,
		Flows:         flows,
		TotalDuration: formatDuration(r.Duration),
		PassRate:      passRate,
	}
}

func flattenSteps(out []StepHTMLData, steps []core.StepResult, depth int) []StepHTMLData {
	for _, s := range steps {
		out = append(out, StepHTMLData{
			StepResult:  s,
			StatusClass: s.Status.String(),
			DurationStr: formatDuration(s.Duration),
			Indent:      depth * 20,
		})
		out = flattenSteps(out, s.Children, depth+1)
	}
	return out
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

func renderHTML(data HTMLData) (string, error) {
	tmpl, err := template.New("report").Parse(htmlTemplate)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif; margin: 0; background: #f9fafb; color: #111827; }
        header { background: #fff; border-bottom: 1px solid #e5e7eb; padding: 16px 24px; }
        main { padding: 24px; }
        .summary span { margin-right: 16px; }
        .flow { background: #fff; border: 1px solid #e5e7eb; border-radius: 6px; margin-bottom: 12px; }
        .flow summary { cursor: pointer; padding: 12px 16px; display: flex; gap: 12px; align-items: center; }
        .bar { height: 4px; background: #93c5fd; }
        table { width: 100%; border-collapse: collapse; font-size: 14px; }
        td { padding: 6px 16px; border-top: 1px solid #f3f4f6; vertical-align: top; }
        .badge { font-size: 12px; padding: 2px 8px; border-radius: 10px; text-transform: uppercase; }
        .passed { background: #dcfce7; color: #166534; }
        .failed, .errored { background: #fee2e2; color: #991b1b; }
        .warned { background: #fef9c3; color: #854d0e; }
        .skipped, .pending, .running { background: #f3f4f6; color: #4b5563; }
        .error { color: #b91c1c; font-family: monospace; white-space: pre-wrap; }
    </style>
</head>
<body>
<header>
    <h1>{{.Title}}</h1>
    <div class="summary">
        <span class="badge {{.Report.Status}}">{{.Report.Status}}</span>
        <span>{{.Report.Summary.Total}} flows</span>
        <span>{{.Report.Summary.Passed}} passed</span>
        <span>{{.Report.Summary.Failed}} failed</span>
        <span>{{.Report.Summary.Skipped}} skipped</span>
        <span>{{printf "%.0f" .PassRate}}% pass rate</span>
        <span>{{.TotalDuration}}</span>
    </div>
    <small>Run {{.Report.RunID}}{{with .Report.Browser}} on {{.Driver}}{{with .Browser}} ({{.}}){{end}}{{end}}, generated {{.GeneratedAt}}</small>
</header>
<main>
{{range .Flows}}
    <details class="flow"{{if ne .StatusClass "passed"}} open{{end}}>
        <summary>
            <span class="badge {{.StatusClass}}">{{.StatusClass}}</span>
            <strong>{{.Name}}</strong>
            <small>{{.FilePath}}</small>
            <span>{{.DurationStr}}</span>
        </summary>
        <div class="bar" style="width: {{printf "%.1f" .DurationPct}}%"></div>
        {{if .Error}}<div class="error" style="padding: 8px 16px">{{.Error}}</div>{{end}}
        <table>
        {{range .Steps}}
            <tr>
                <td style="padding-left: {{.Indent}}px"><span class="badge {{.StatusClass}}">{{.StatusClass}}</span></td>
                <td>{{if .Label}}<strong>{{.Label}}</strong> {{end}}{{.Message}}{{if .Error}}<div class="error">{{.Error}}</div>{{end}}</td>
                <td>{{.DurationStr}}</td>
            </tr>
        {{end}}
        </table>
    </details>
{{end}}
</main>
</body>
</html>
`
