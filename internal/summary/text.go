package summary

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
)

// Marks used for passed and failed checks and thresholds.
const (
	SuccessMark = "✓"
	FailMark    = "✗"
)

// DefaultTrendStats are the trend columns used when neither the data nor the
// options name any.
var DefaultTrendStats = []string{"avg", "min", "med", "max", "p(90)", "p(95)"}

// TextOptions controls TextSummary rendering.
type TextOptions struct {
	// Indent is prefixed to every line
	Indent string

	// EnableColors wraps values and marks in ANSI colours
	EnableColors bool

	// SummaryTrendStats overrides Data.Options.SummaryTrendStats when set
	SummaryTrendStats []string

	// SummaryTimeUnit overrides Data.Options.SummaryTimeUnit when set
	SummaryTimeUnit string
}

// palette holds the colours used by the text summary.
type palette struct {
	value  *color.Color
	extra  *color.Color
	faint  *color.Color
	green  *color.Color
	red    *color.Color
	groupH *color.Color
}

func newPalette(enabled bool) *palette {
	p := &palette{
		value:  color.New(color.FgCyan),
		extra:  color.New(color.FgCyan, color.Faint),
		faint:  color.New(color.Faint),
		green:  color.New(color.FgGreen),
		red:    color.New(color.FgRed),
		groupH: color.New(color.Bold),
	}

	// Overrides the global, TTY-derived color.NoColor.
	for _, c := range []*color.Color{p.value, p.extra, p.faint, p.green, p.red, p.groupH} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// TextSummary renders data as an aligned, human-readable report:
//
//	http_req_duration..............: avg=12.5ms min=3ms med=11ms max=90ms p(90)=20ms p(95)=31ms
//	http_reqs......................: 1300   9.99/s
//
// Metrics are sorted by name. Metrics with thresholds are marked with ✓ when
// every threshold passed and ✗ otherwise.
func TextSummary(data *Data, opts TextOptions) string {
	if data == nil {
		return ""
	}

	trendStats := opts.SummaryTrendStats
	if len(trendStats) == 0 {
		trendStats = data.Options.SummaryTrendStats
	}
	if len(trendStats) == 0 {
		trendStats = DefaultTrendStats
	}

	timeUnit := opts.SummaryTimeUnit
	if timeUnit == "" {
		timeUnit = data.Options.SummaryTimeUnit
	}

	p := newPalette(opts.EnableColors)

	var lines []string
	lines = append(lines, summarizeGroup(opts.Indent+"    ", data.RootGroup, p)...)
	lines = append(lines, summarizeMetrics(opts.Indent+"  ", data.Metrics, trendStats, timeUnit, p)...)
	return strings.Join(lines, "\n")
}

func strWidth(s string) int {
	return utf8.RuneCountInString(s)
}

func summarizeGroup(indent string, g Group, p *palette) []string {
	var lines []string
	if g.Name != "" {
		lines = append(lines, indent+"█ "+p.groupH.Sprint(g.Name), "")
		indent += "  "
	}

	for _, c := range g.Checks {
		if c.Fails == 0 {
			lines = append(lines, p.green.Sprint(indent+SuccessMark+" "+c.Name))
			continue
		}
		total := c.Passes + c.Fails
		pct := 0.0
		if total > 0 {
			pct = float64(c.Passes) / float64(total) * 100
		}
		lines = append(lines,
			p.red.Sprint(indent+FailMark+" "+c.Name),
			p.red.Sprint(indent+" "+" ↳  "+FormatNumber(float64(int64(pct)))+"% — "+SuccessMark+" "+FormatNumber(float64(c.Passes))+" / "+FailMark+" "+FormatNumber(float64(c.Fails))),
		)
	}
	if len(g.Checks) > 0 {
		lines = append(lines, "")
	}

	for _, sub := range g.Groups {
		lines = append(lines, summarizeGroup(indent, sub, p)...)
	}
	return lines
}

// nonTrendValues returns the main value followed by its extras.
func nonTrendValues(m Metric, timeUnit string) []string {
	switch m.Type {
	case TypeCounter:
		return []string{
			HumanizeValue(m.Values["count"], m, timeUnit),
			HumanizeValue(m.Values["rate"], m, timeUnit) + "/s",
		}
	case TypeGauge:
		return []string{
			HumanizeValue(m.Values["value"], m, timeUnit),
			"min=" + HumanizeValue(m.Values["min"], m, timeUnit),
			"max=" + HumanizeValue(m.Values["max"], m, timeUnit),
		}
	case TypeRate:
		return []string{
			HumanizeValue(m.Values["rate"], m, timeUnit),
			SuccessMark + " " + FormatNumber(m.Values["passes"]),
			FailMark + " " + FormatNumber(m.Values["fails"]),
		}
	default:
		return []string{"[no data]"}
	}
}

func summarizeMetrics(indent string, metrics map[string]Metric, trendStats []string, timeUnit string, p *palette) []string {
	names := make([]string, 0, len(metrics))
	nameLenMax := 0

	trendCols := make(map[string][]string)
	trendColMaxLens := make([]int, len(trendStats))

	values := make(map[string]string)
	valueMaxLen := 0
	extras := make(map[string][]string)
	extraMaxLens := make([]int, 2)

	for name, m := range metrics {
		names = append(names, name)
		if w := strWidth(name); w > nameLenMax {
			nameLenMax = w
		}

		if m.Type == TypeTrend {
			cols := make([]string, len(trendStats))
			for i, stat := range trendStats {
				v := m.Values[stat]
				if stat == "count" {
					cols[i] = FormatNumber(v)
				} else {
					cols[i] = HumanizeValue(v, m, timeUnit)
				}
				if w := strWidth(cols[i]); w > trendColMaxLens[i] {
					trendColMaxLens[i] = w
				}
			}
			trendCols[name] = cols
			continue
		}

		vals := nonTrendValues(m, timeUnit)
		values[name] = vals[0]
		if w := strWidth(vals[0]); w > valueMaxLen {
			valueMaxLen = w
		}
		extras[name] = vals[1:]
		for i, e := range vals[1:] {
			if i >= len(extraMaxLens) {
				extraMaxLens = append(extraMaxLens, 0)
			}
			if w := strWidth(e); w > extraMaxLens[i] {
				extraMaxLens[i] = w
			}
		}
	}

	sort.Strings(names)

	render := func(name string) string {
		if cols, ok := trendCols[name]; ok {
			parts := make([]string, len(cols))
			for i, col := range cols {
				parts[i] = trendStats[i] + "=" + p.value.Sprint(col) + strings.Repeat(" ", trendColMaxLens[i]-strWidth(col))
			}
			return strings.Join(parts, " ")
		}

		v := values[name]
		out := p.value.Sprint(v) + strings.Repeat(" ", valueMaxLen-strWidth(v))

		ex := extras[name]
		switch {
		case len(ex) == 1:
			out += " " + p.extra.Sprint(ex[0])
		case len(ex) > 1:
			parts := make([]string, len(ex))
			for i, e := range ex {
				parts[i] = p.extra.Sprint(e) + strings.Repeat(" ", extraMaxLens[i]-strWidth(e))
			}
			out += " " + strings.Join(parts, " ")
		}
		return out
	}

	lines := make([]string, 0, len(names))
	for _, name := range names {
		m := metrics[name]

		mark := " "
		if m.Thresholds != nil {
			mark = p.green.Sprint(SuccessMark)
			for _, res := range m.Thresholds {
				if !res.OK {
					mark = p.red.Sprint(FailMark)
					break
				}
			}
		}

		dots := p.faint.Sprint(strings.Repeat(".", nameLenMax-strWidth(name)+3))
		lines = append(lines, indent+mark+" "+name+dots+": "+render(name))
	}
	return lines
}
