package summary

import (
	"bytes"
	"fmt"
	"html/template"
	"sort"
)

// htmlReport is the view model for HTMLReport.
type htmlReport struct {
	Title     string
	Duration  string
	Passed    bool
	Requests  string
	Failed    string
	P95       string
	TrendCols []string
	Trends    []htmlMetric
	Others    []htmlMetric
}

type htmlMetric struct {
	Name       string
	Type       string
	Values     []string
	Thresholds []htmlThreshold
}

type htmlThreshold struct {
	Source string
	OK     bool
}

// HTMLReport renders data as a standalone HTML page: an overview of the run
// followed by one table for trend metrics and one for all others.
func HTMLReport(data *Data, title string) (string, error) {
	if data == nil {
		return "", fmt.Errorf("summary data cannot be nil")
	}

	tmpl, err := template.New("report").Parse(htmlTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, newHTMLReport(data, title)); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return buf.String(), nil
}

func newHTMLReport(data *Data, title string) htmlReport {
	trendStats := data.Options.SummaryTrendStats
	if len(trendStats) == 0 {
		trendStats = DefaultTrendStats
	}
	timeUnit := data.Options.SummaryTimeUnit

	r := htmlReport{
		Title:     title,
		Duration:  HumanizeDuration(data.State.TestRunDurationMs, ""),
		Passed:    data.ThresholdsPassed(),
		Requests:  "-",
		Failed:    "-",
		P95:       "-",
		TrendCols: trendStats,
	}
	if m, ok := data.Metrics["http_reqs"]; ok {
		r.Requests = FormatNumber(m.Values["count"])
	}
	if m, ok := data.Metrics["http_req_failed"]; ok {
		r.Failed = HumanizeValue(m.Values["rate"], m, timeUnit)
	}
	if m, ok := data.Metrics["http_req_duration"]; ok {
		if v, ok := m.Values["p(95)"]; ok {
			r.P95 = HumanizeValue(v, m, timeUnit)
		}
	}

	names := make([]string, 0, len(data.Metrics))
	for name := range data.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		m := data.Metrics[name]
		hm := htmlMetric{Name: name, Type: string(m.Type)}

		if m.Type == TypeTrend {
			for _, stat := range trendStats {
				if stat == "count" {
					hm.Values = append(hm.Values, FormatNumber(m.Values[stat]))
				} else {
					hm.Values = append(hm.Values, HumanizeValue(m.Values[stat], m, timeUnit))
				}
			}
		} else {
			hm.Values = nonTrendValues(m, timeUnit)
		}

		sources := make([]string, 0, len(m.Thresholds))
		for src := range m.Thresholds {
			sources = append(sources, src)
		}
		sort.Strings(sources)
		for _, src := range sources {
			hm.Thresholds = append(hm.Thresholds, htmlThreshold{Source: src, OK: m.Thresholds[src].OK})
		}

		if m.Type == TypeTrend {
			r.Trends = append(r.Trends, hm)
		} else {
			r.Others = append(r.Others, hm)
		}
	}
	return r
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}} - Load Test Summary</title>
    <style>
        :root {
            --bg-primary: #ffffff;
            --bg-secondary: #f8fafc;
            --text-primary: #1e293b;
            --text-secondary: #64748b;
            --border-color: #e2e8f0;
            --accent-success: #22c55e;
            --accent-error: #ef4444;
            --shadow: 0 1px 3px rgba(0, 0, 0, 0.1);
        }

        * { margin: 0; padding: 0; box-sizing: border-box; }

        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
            background-color: var(--bg-secondary);
            color: var(--text-primary);
            line-height: 1.6;
        }

        .container { max-width: 1400px; margin: 0 auto; padding: 2rem; }

        .card {
            background: var(--bg-primary);
            border-radius: 12px;
            padding: 1.5rem 2rem;
            margin-bottom: 2rem;
            box-shadow: var(--shadow);
        }

        .header { display: flex; justify-content: space-between; align-items: center; flex-wrap: wrap; gap: 1rem; }
        .header h1 { font-size: 1.75rem; font-weight: 700; }

        .status { padding: 0.75rem 1.5rem; border-radius: 8px; font-weight: 600; }
        .status.pass { background-color: rgba(34, 197, 94, 0.1); color: var(--accent-success); }
        .status.fail { background-color: rgba(239, 68, 68, 0.1); color: var(--accent-error); }

        .stats { display: grid; grid-template-columns: repeat(auto-fit, minmax(200px, 1fr)); gap: 1rem; }
        .stat .label { color: var(--text-secondary); font-size: 0.875rem; }
        .stat .value { font-size: 1.5rem; font-weight: 700; }

        h2 { font-size: 1.25rem; margin-bottom: 1rem; }
        table { width: 100%; border-collapse: collapse; font-size: 0.9rem; }
        th, td { text-align: left; padding: 0.5rem 0.75rem; border-bottom: 1px solid var(--border-color); }
        th { color: var(--text-secondary); font-weight: 600; }
        td.metric { font-family: ui-monospace, SFMono-Regular, Menlo, monospace; }
        .ok { color: var(--accent-success); }
        .crossed { color: var(--accent-error); }
    </style>
</head>
<body>
<div class="container">
    <div class="card header">
        <div>
            <h1>{{.Title}}</h1>
            <div class="stat"><span class="label">Duration</span> {{.Duration}}</div>
        </div>
        {{if .Passed}}<div class="status pass">&#10003; Thresholds passed</div>{{else}}<div class="status fail">&#10007; Thresholds crossed</div>{{end}}
    </div>

    <div class="card stats">
        <div class="stat"><div class="label">Requests</div><div class="value">{{.Requests}}</div></div>
        <div class="stat"><div class="label">Failed requests</div><div class="value">{{.Failed}}</div></div>
        <div class="stat"><div class="label">p(95) duration</div><div class="value">{{.P95}}</div></div>
    </div>
{{if .Trends}}
    <div class="card">
        <h2>Trends</h2>
        <table>
            <thead><tr><th>Metric</th>{{range .TrendCols}}<th>{{.}}</th>{{end}}<th>Thresholds</th></tr></thead>
            <tbody>
            {{- range .Trends}}
                <tr><td class="metric">{{.Name}}</td>{{range .Values}}<td>{{.}}</td>{{end}}<td>{{template "thresholds" .Thresholds}}</td></tr>
            {{- end}}
            </tbody>
        </table>
    </div>
{{end}}
{{- if .Others}}
    <div class="card">
        <h2>Metrics</h2>
        <table>
            <thead><tr><th>Metric</th><th>Type</th><th>Values</th><th>Thresholds</th></tr></thead>
            <tbody>
            {{- range .Others}}
                <tr><td class="metric">{{.Name}}</td><td>{{.Type}}</td><td>{{range $i, $v := .Values}}{{if $i}} &middot; {{end}}{{$v}}{{end}}</td><td>{{template "thresholds" .Thresholds}}</td></tr>
            {{- end}}
            </tbody>
        </table>
    </div>
{{end}}
</div>
</body>
</html>
{{define "thresholds"}}{{range .}}<div class="{{if .OK}}ok{{else}}crossed{{end}}">{{if .OK}}&#10003;{{else}}&#10007;{{end}} {{.Source}}</div>{{end}}{{end}}`
