package cli

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/lokalise/nginx-loadtest/internal/runner"
	"github.com/lokalise/nginx-loadtest/internal/summary"
	"github.com/lokalise/nginx-loadtest/pkg/jsonpath"
)

func newSummaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary <summary.json>",
		Short: "Print a saved summary",
		Long: `Render a summary.json written by a previous run as the text summary.

With --metric only that metric's values and thresholds are printed. With
--html or --junit the summary is written as an HTML or JUnit XML report
instead. With --query the value at a JSONPath expression is printed, for
example:

  nginx-loadtest summary summary.json --query '$.metrics.http_req_duration.values.p(95)'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			metric, _ := cmd.Flags().GetString("metric")
			query, _ := cmd.Flags().GetString("query")
			noColor, _ := cmd.Flags().GetBool("no-color")
			htmlPath, _ := cmd.Flags().GetString("html")
			junitPath, _ := cmd.Flags().GetString("junit")

			out := cmd.OutOrStdout()
			colors := !noColor && runner.IsTerminal(out)

			switch {
			case metric != "" && query != "":
				return fmt.Errorf("--metric and --query cannot be used together")
			case metric != "":
				return printMetric(out, path, metric, colors)
			case query != "":
				return printQuery(out, path, query)
			}

			data, err := summary.Load(path)
			if err != nil {
				return err
			}
			if htmlPath != "" || junitPath != "" {
				return writeReports(out, data, htmlPath, junitPath, "")
			}
			fmt.Fprintln(out, summary.TextSummary(data, summary.TextOptions{Indent: " ", EnableColors: colors}))
			return nil
		},
	}

	cmd.Flags().StringP("metric", "m", "", "Print the values of one metric")
	cmd.Flags().String("query", "", "Print the value at a JSONPath expression")
	cmd.Flags().String("html", "", "Write the summary as an HTML report to this file")
	cmd.Flags().String("junit", "", "Write the thresholds as a JUnit XML report to this file")
	cmd.Flags().Bool("no-color", false, "Disable colored output")
	return cmd
}

// writeReports writes the HTML and JUnit reports for data, skipping empty
// paths. Relative paths are resolved against dir; "stdout" and "stderr"
// write to out.
func writeReports(out io.Writer, data *summary.Data, htmlPath, junitPath, dir string) error {
	outputs := map[string]string{}

	if htmlPath != "" {
		html, err := summary.HTMLReport(data, "nginx-loadtest")
		if err != nil {
			return fmt.Errorf("failed to render HTML report: %w", err)
		}
		outputs[htmlPath] = html
	}
	if junitPath != "" {
		junit, err := summary.JUnitReport(data, "nginx-loadtest")
		if err != nil {
			return fmt.Errorf("failed to render JUnit report: %w", err)
		}
		outputs[junitPath] = junit
	}

	return runner.WriteOutputs(outputs, out, out, dir)
}

func readSummaryJSON(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read summary: %w", err)
	}
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("failed to parse summary %s: invalid JSON", path)
	}
	return raw, nil
}

// printMetric prints one metric's values sorted by name, then its thresholds:
//
//	count=3800
//	rate=29.2
//	✓ count>100
func printMetric(out io.Writer, path, name string, colors bool) error {
	raw, err := readSummaryJSON(path)
	if err != nil {
		return err
	}

	m := gjson.GetBytes(raw, "metrics."+gjson.Escape(name))
	if !m.Exists() {
		return fmt.Errorf("metric %s not found in %s", name, path)
	}

	values := map[string]float64{}
	m.Get("values").ForEach(func(k, v gjson.Result) bool {
		values[k.String()] = v.Float()
		return true
	})
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(out, "%s=%s\n", k, summary.FormatNumber(values[k]))
	}

	green, red := color.New(color.FgGreen), color.New(color.FgRed)
	for _, c := range []*color.Color{green, red} {
		if colors {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	thresholds := map[string]bool{}
	m.Get("thresholds").ForEach(func(k, v gjson.Result) bool {
		thresholds[k.String()] = v.Get("ok").Bool()
		return true
	})
	exprs := make([]string, 0, len(thresholds))
	for expr := range thresholds {
		exprs = append(exprs, expr)
	}
	sort.Strings(exprs)
	for _, expr := range exprs {
		mark := green.Sprint(summary.SuccessMark)
		if !thresholds[expr] {
			mark = red.Sprint(summary.FailMark)
		}
		fmt.Fprintf(out, "%s %s\n", mark, expr)
	}
	return nil
}

func printQuery(out io.Writer, path, query string) error {
	raw, err := readSummaryJSON(path)
	if err != nil {
		return err
	}

	value, err := jsonpath.Extract(raw, query)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, value)
	return nil
}
