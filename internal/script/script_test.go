package script

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lokalise/nginx-loadtest/internal/config"
	lhttp "github.com/lokalise/nginx-loadtest/internal/http"
	"github.com/lokalise/nginx-loadtest/internal/runner"
	"github.com/lokalise/nginx-loadtest/internal/summary"
)

type fakeClient struct {
	mu   sync.Mutex
	urls []string
	res  *lhttp.Response
	err  error
	wait bool
}

func (c *fakeClient) Get(ctx context.Context, url string) (*lhttp.Response, error) {
	c.mu.Lock()
	c.urls = append(c.urls, url)
	c.mu.Unlock()

	if c.wait {
		<-ctx.Done()
		return &lhttp.Response{URL: url, Error: ctx.Err().Error()}, ctx.Err()
	}
	return c.res, c.err
}

func newVU(client runner.HTTPClient) (*runner.VU, *bytes.Buffer) {
	var buf bytes.Buffer
	return runner.NewVU(1, client, runner.NewConsole(&buf)), &buf
}

func TestDefaultOptions(t *testing.T) {
	opts := New().Options()

	require.Len(t, opts.Scenarios, 1)
	sc := opts.Scenarios["open_model"]
	require.NotNil(t, sc)

	assert.Equal(t, "ramping-arrival-rate", sc.Executor)
	assert.Equal(t, int64(10), sc.StartRate)
	assert.Equal(t, time.Second, time.Duration(sc.TimeUnit))
	assert.Equal(t, 2, sc.PreAllocatedVUs)
	assert.Equal(t, 10, sc.MaxVUs)
	assert.Equal(t, time.Duration(0), time.Duration(sc.StartTime))
	assert.Equal(t, []config.StageConfig{
		{Target: 10, Duration: config.Duration(5 * time.Second)},
		{Target: 50, Duration: config.Duration(120 * time.Second)},
		{Target: 10, Duration: config.Duration(5 * time.Second)},
	}, sc.Stages)

	assert.NoError(t, opts.Validate())
	assert.LessOrEqual(t, sc.PreAllocatedVUs, sc.MaxVUs)
	assert.Equal(t, 130*time.Second, sc.TotalDuration())
}

func TestOptions_ReturnsCopy(t *testing.T) {
	s := New()
	opts := s.Options()
	opts.Scenarios["open_model"].MaxVUs = 99
	opts.Scenarios["open_model"].Stages[0].Target = 1

	again := s.Options()
	assert.Equal(t, 10, again.Scenarios["open_model"].MaxVUs)
	assert.Equal(t, int64(10), again.Scenarios["open_model"].Stages[0].Target)
}

func TestWithOptions(t *testing.T) {
	custom := DefaultOptions()
	custom.Scenarios["open_model"].MaxVUs = 20

	s := New(WithOptions(custom), WithOptions(nil))
	assert.Equal(t, 20, s.Options().Scenarios["open_model"].MaxVUs)

	custom.Scenarios["open_model"].MaxVUs = 30
	assert.Equal(t, 20, s.Options().Scenarios["open_model"].MaxVUs)
}

func TestDefault_LogLine(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		duration float64
		want     string
	}{
		{"fractional", 200, 12.5, "Response[200]: 12.5ms\n"},
		{"whole", 200, 3, "Response[200]: 3ms\n"},
		{"sub-millisecond", 301, 0.123, "Response[301]: 0.123ms\n"},
		{"long fraction", 502, 10.123456789, "Response[502]: 10.123456789ms\n"},
		{"zero", 404, 0, "Response[404]: 0ms\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{res: &lhttp.Response{Status: tt.status, Timings: lhttp.Timings{Duration: tt.duration}}}
			vu, buf := newVU(client)

			require.NoError(t, New().Default(context.Background(), vu))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestDefault_OneGetToLiteralURL(t *testing.T) {
	client := &fakeClient{res: &lhttp.Response{Status: 200}}
	vu, _ := newVU(client)

	s := New()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Default(context.Background(), vu))
	}

	require.Len(t, client.urls, 3)
	for _, u := range client.urls {
		assert.Equal(t, "http://nginx.dev.lokalise.cloud", u)
		assert.NotContains(t, u, "?")
	}
}

func TestDefault_AgainstServer(t *testing.T) {
	var mu sync.Mutex
	var got []*http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		got = append(got, r)
		mu.Unlock()
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	vu, buf := newVU(lhttp.NewClient())
	require.NoError(t, New(WithTarget(server.URL)).Default(context.Background(), vu))

	require.Len(t, got, 1)
	assert.Equal(t, http.MethodGet, got[0].Method)
	assert.Equal(t, "/", got[0].URL.Path)
	assert.Empty(t, got[0].URL.RawQuery)
	assert.Equal(t, int64(0), got[0].ContentLength)
	assert.Regexp(t, regexp.MustCompile(`^Response\[200\]: [0-9.e-]+ms\n$`), buf.String())
}

func TestDefault_FailedRequestStillLogs(t *testing.T) {
	client := &fakeClient{
		res: &lhttp.Response{Status: 0, Error: "dial tcp: connection refused"},
		err: errors.New("dial tcp: connection refused"),
	}
	vu, buf := newVU(client)

	assert.NoError(t, New().Default(context.Background(), vu))
	assert.Equal(t, "Response[0]: 0ms\n", buf.String())

	client.res = nil
	buf.Reset()
	assert.NoError(t, New().Default(context.Background(), vu))
	assert.Equal(t, "Response[0]: 0ms\n", buf.String())
}

func TestDefault_Interrupted(t *testing.T) {
	client := &fakeClient{wait: true}
	vu, buf := newVU(client)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := New().Default(ctx, vu)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, buf.String())
}

func TestDefault_InvalidTarget(t *testing.T) {
	client := &fakeClient{res: &lhttp.Response{Status: 200}}
	vu, _ := newVU(client)

	err := New(WithTarget("http://[::1")).Default(context.Background(), vu)
	require.Error(t, err)
	assert.Empty(t, client.urls)
}

func TestValidateTarget(t *testing.T) {
	assert.NoError(t, ValidateTarget(DefaultTarget))
	assert.NoError(t, ValidateTarget("https://example.com:8443"))
	assert.Error(t, ValidateTarget("ftp://example.com"))
	assert.Error(t, ValidateTarget("http://"))
	assert.Error(t, ValidateTarget("nginx.dev.lokalise.cloud"))
	assert.Error(t, ValidateTarget("http://[::1"))
}

func sampleSummary() *summary.Data {
	return &summary.Data{
		RootGroup: summary.NewRootGroup(),
		Options: summary.DataOptions{
			SummaryTrendStats: []string{"avg", "min", "med", "max", "p(90)", "p(95)"},
			SummaryTimeUnit:   "",
			NoColor:           false,
		},
		State: summary.State{IsStdOutTTY: true, TestRunDurationMs: 130012.5},
		Metrics: map[string]summary.Metric{
			"http_reqs": {
				Type: summary.TypeCounter, Contains: summary.ContainsDefault,
				Values: map[string]float64{"count": 3800, "rate": 29.2},
			},
			"http_req_duration": {
				Type: summary.TypeTrend, Contains: summary.ContainsTime,
				Values: map[string]float64{"avg": 12.5, "min": 3, "med": 11, "max": 90, "p(90)": 20, "p(95)": 31},
				Thresholds: map[string]summary.ThresholdResult{
					"p(95)<500": {OK: true},
				},
			},
			"http_req_failed": {
				Type: summary.TypeRate, Contains: summary.ContainsDefault,
				Values: map[string]float64{"rate": 0, "passes": 0, "fails": 3800},
			},
			"vus": {
				Type: summary.TypeGauge, Contains: summary.ContainsDefault,
				Values: map[string]float64{"value": 2, "min": 2, "max": 10},
			},
		},
	}
}

func TestHandleSummary_Keys(t *testing.T) {
	out, err := New().HandleSummary(sampleSummary())
	require.NoError(t, err)

	keys := make([]string, 0, len(out))
	for k := range out {
		keys = append(keys, k)
	}
	assert.ElementsMatch(t, []string{"stdout", "summary.json"}, keys)
}

func TestHandleSummary_JSONRoundTrip(t *testing.T) {
	data := sampleSummary()

	out, err := New().HandleSummary(data)
	require.NoError(t, err)

	var back summary.Data
	require.NoError(t, json.Unmarshal([]byte(out["summary.json"]), &back))
	assert.Equal(t, *data, back)

	empty := &summary.Data{
		RootGroup: summary.NewRootGroup(),
		Options:   summary.DataOptions{SummaryTrendStats: []string{}},
		Metrics:   map[string]summary.Metric{},
	}
	out, err = New().HandleSummary(empty)
	require.NoError(t, err)

	var backEmpty summary.Data
	require.NoError(t, json.Unmarshal([]byte(out["summary.json"]), &backEmpty))
	assert.Equal(t, *empty, backEmpty)
}

func TestHandleSummary_Stdout(t *testing.T) {
	data := sampleSummary()

	out, err := New().HandleSummary(data)
	require.NoError(t, err)

	stdout := out["stdout"]
	assert.Contains(t, stdout, "\x1b[")
	assert.Equal(t, summary.TextSummary(data, summary.TextOptions{Indent: " ", EnableColors: true}), stdout)

	plain := regexp.MustCompile(`\x1b\[[0-9;]*m`).ReplaceAllString(stdout, "")
	for _, line := range strings.Split(strings.Trim(plain, "\n"), "\n") {
		assert.True(t, strings.HasPrefix(line, " "), "line %q is not indented", line)
	}
	assert.Contains(t, plain, "http_req_duration")
	assert.Contains(t, plain, "✓ http_req_duration")
}

func TestHandleSummary_Pure(t *testing.T) {
	data := sampleSummary()
	s := New()

	first, err := s.HandleSummary(data)
	require.NoError(t, err)
	second, err := s.HandleSummary(data)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, sampleSummary(), data)
}
