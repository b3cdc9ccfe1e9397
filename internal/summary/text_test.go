package summary

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

var ansiRe = regexp.MustCompile("\x1b\\[[0-9;]*m")

func sampleData() *Data {
	return &Data{
		RootGroup: NewRootGroup(),
		Options: DataOptions{
			SummaryTrendStats: []string{"avg", "min", "med", "max", "p(90)", "p(95)"},
		},
		State: State{TestRunDurationMs: 130000},
		Metrics: map[string]Metric{
			"http_reqs": {
				Type: TypeCounter, Contains: ContainsDefault,
				Values: map[string]float64{"count": 1300, "rate": 9.99},
			},
			"http_req_failed": {
				Type: TypeRate, Contains: ContainsDefault,
				Values: map[string]float64{"rate": 0, "passes": 0, "fails": 1300},
			},
			"vus": {
				Type: TypeGauge, Contains: ContainsDefault,
				Values: map[string]float64{"value": 2, "min": 2, "max": 10},
			},
			"data_received": {
				Type: TypeCounter, Contains: ContainsData,
				Values: map[string]float64{"count": 1234567, "rate": 9496.67},
			},
			"http_req_duration": {
				Type: TypeTrend, Contains: ContainsTime,
				Values: map[string]float64{
					"avg": 12.5, "min": 3, "med": 11, "max": 90, "p(90)": 20, "p(95)": 31,
				},
				Thresholds: map[string]ThresholdResult{"p(95)<500": {OK: true}},
			},
		},
	}
}

func TestTextSummary_Plain(t *testing.T) {
	got := TextSummary(sampleData(), TextOptions{Indent: " "})

	want := strings.Join([]string{
		"     data_received.......: 1.2 MB 9.5 kB/s",
		"   ✓ http_req_duration...: avg=12.5ms min=3ms med=11ms max=90ms p(90)=20ms p(95)=31ms",
		"     http_req_failed.....: 0.00%  ✓ 0      ✗ 1300",
		"     http_reqs...........: 1300   9.99/s",
		"     vus.................: 2      min=2    max=10",
	}, "\n")

	assert.Equal(t, want, got)
}

func TestTextSummary_Colors(t *testing.T) {
	data := sampleData()

	colored := TextSummary(data, TextOptions{Indent: " ", EnableColors: true})
	plain := TextSummary(data, TextOptions{Indent: " "})

	assert.Contains(t, colored, "\x1b[")
	assert.NotContains(t, plain, "\x1b[")
	assert.Equal(t, plain, ansiRe.ReplaceAllString(colored, ""))
}

func TestTextSummary_FailedThreshold(t *testing.T) {
	data := sampleData()
	m := data.Metrics["http_req_duration"]
	m.Thresholds = map[string]ThresholdResult{"p(95)<500": {OK: true}, "max<50": {OK: false}}
	data.Metrics["http_req_duration"] = m

	got := TextSummary(data, TextOptions{Indent: " "})
	assert.Contains(t, got, "   ✗ http_req_duration...:")
}

func TestTextSummary_TrendStatsOverride(t *testing.T) {
	data := sampleData()
	m := data.Metrics["http_req_duration"]
	m.Values["count"] = 1300
	data.Metrics["http_req_duration"] = m

	got := TextSummary(data, TextOptions{SummaryTrendStats: []string{"med", "count"}, SummaryTimeUnit: "ms"})
	assert.Contains(t, got, "http_req_duration...: med=11.00ms count=1300\n")
}

func TestTextSummary_Checks(t *testing.T) {
	data := &Data{
		RootGroup: Group{
			Checks: []Check{
				{Name: "status is 200", Passes: 10},
				{Name: "body not empty", Passes: 5, Fails: 5},
			},
		},
		Metrics: map[string]Metric{},
	}

	got := TextSummary(data, TextOptions{Indent: " "})
	assert.Contains(t, got, "     ✓ status is 200")
	assert.Contains(t, got, "     ✗ body not empty")
	assert.Contains(t, got, "↳  50% — ✓ 5 / ✗ 5")
}

func TestTextSummary_Nil(t *testing.T) {
	assert.Equal(t, "", TextSummary(nil, TextOptions{}))
}

func TestTextSummary_Pure(t *testing.T) {
	data := sampleData()
	first := TextSummary(data, TextOptions{Indent: " ", EnableColors: true})
	second := TextSummary(data, TextOptions{Indent: " ", EnableColors: true})
	assert.Equal(t, first, second)
	assert.Equal(t, sampleData(), data)
}
