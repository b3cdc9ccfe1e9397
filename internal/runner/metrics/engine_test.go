package metrics

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lokalise/nginx-loadtest/internal/summary"
)

func TestEngine_Counter(t *testing.T) {
	e := NewEngine()
	for i := 0; i < 3; i++ {
		e.Add(HTTPReqs, 1)
	}

	v, ok := e.Value(HTTPReqs, "count", 2*time.Second)
	require.True(t, ok)
	assert.Equal(t, 3.0, v)

	v, ok = e.Value(HTTPReqs, "rate", 2*time.Second)
	require.True(t, ok)
	assert.Equal(t, 1.5, v)

	v, ok = e.Value(HTTPReqs, "rate", 0)
	require.True(t, ok)
	assert.Equal(t, 0.0, v)

	v, ok = e.Value(Iterations, "count", time.Second)
	require.True(t, ok)
	assert.Equal(t, 0.0, v)
}

func TestEngine_Gauge(t *testing.T) {
	e := NewEngine()
	e.SetVUs(2, 2)
	e.SetVUs(5, 10)
	e.SetVUs(1, 10)

	data := e.Summary(SummaryOptions{})
	assert.Equal(t, map[string]float64{"value": 1, "min": 1, "max": 5}, data.Metrics[VUs].Values)
	assert.Equal(t, map[string]float64{"value": 10, "min": 2, "max": 10}, data.Metrics[VUsMax].Values)
	assert.Equal(t, summary.TypeGauge, data.Metrics[VUs].Type)
}

func TestEngine_Rate(t *testing.T) {
	e := NewEngine()
	e.AddRate(HTTPReqFailed, true)
	for i := 0; i < 3; i++ {
		e.AddRate(HTTPReqFailed, false)
	}

	data := e.Summary(SummaryOptions{})
	assert.Equal(t, map[string]float64{"rate": 0.25, "passes": 1, "fails": 3}, data.Metrics[HTTPReqFailed].Values)
}

func TestEngine_Trend(t *testing.T) {
	e := NewEngine()
	for i := 1; i <= 100; i++ {
		e.AddTrend(HTTPReqDuration, float64(i))
	}

	get := func(agg string) float64 {
		v, ok := e.Value(HTTPReqDuration, agg, time.Second)
		require.True(t, ok, agg)
		return v
	}

	assert.Equal(t, 50.5, get("avg"))
	assert.Equal(t, 1.0, get("min"))
	assert.Equal(t, 100.0, get("max"))
	assert.Equal(t, 100.0, get("count"))
	assert.InDelta(t, 50, get("med"), 0.1)
	assert.InDelta(t, 90, get("p(90)"), 0.1)
	assert.InDelta(t, 95, get("p(95)"), 0.1)
	assert.LessOrEqual(t, get("p(100)"), get("max"))
}

func TestEngine_TrendSubMillisecond(t *testing.T) {
	e := NewEngine()
	e.AddTrend(HTTPReqConnecting, 0)
	e.AddTrend(HTTPReqConnecting, 0.25)

	v, _ := e.Value(HTTPReqConnecting, "min", time.Second)
	assert.Equal(t, 0.0, v)
	v, _ = e.Value(HTTPReqConnecting, "p(99)", time.Second)
	assert.InDelta(t, 0.25, v, 0.001)
}

func TestEngine_TypeMismatchIgnored(t *testing.T) {
	e := NewEngine()
	e.Add(HTTPReqs, 1)
	e.AddTrend(HTTPReqs, 50)
	e.Set(HTTPReqDuration, 3)

	data := e.Summary(SummaryOptions{})
	assert.Equal(t, 1.0, data.Metrics[HTTPReqs].Values["count"])
	assert.NotContains(t, data.Metrics, HTTPReqDuration)
}

func TestEngine_Value(t *testing.T) {
	e := NewEngine()

	_, ok := e.Value("no_such_metric", "count", time.Second)
	assert.False(t, ok)

	v, ok := e.Value(HTTPReqDuration, "p(95)", time.Second)
	assert.True(t, ok)
	assert.Equal(t, 0.0, v)

	_, ok = e.Value(HTTPReqDuration, "rate", time.Second)
	assert.False(t, ok)

	e.Add(Iterations, 1)
	_, ok = e.Value(Iterations, "avg", time.Second)
	assert.False(t, ok)
}

func TestValidAggregation(t *testing.T) {
	tests := []struct {
		typ, agg string
		want     bool
	}{
		{summary.TypeCounter, "count", true},
		{summary.TypeCounter, "rate", true},
		{summary.TypeCounter, "avg", false},
		{summary.TypeGauge, "value", true},
		{summary.TypeGauge, "p(95)", false},
		{summary.TypeRate, "rate", true},
		{summary.TypeRate, "count", false},
		{summary.TypeTrend, "p(99.9)", true},
		{summary.TypeTrend, "med", true},
		{summary.TypeTrend, "value", false},
		{"histogram", "count", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidAggregation(tt.typ, tt.agg), "%s/%s", tt.typ, tt.agg)
	}
}

func TestEngine_RecordHTTPRequest(t *testing.T) {
	e := NewEngine()
	e.RecordHTTPRequest(HTTPSample{
		Status: 200, Duration: 12.5, Waiting: 10, Receiving: 2.5,
		BytesReceived: 612, BytesSent: 80,
	})
	e.RecordHTTPRequest(HTTPSample{Failed: true})

	data := e.Summary(SummaryOptions{Duration: time.Second})

	for _, name := range []string{
		HTTPReqs, HTTPReqFailed, HTTPReqDuration, HTTPReqBlocked, HTTPReqConnecting,
		HTTPReqTLSHandshaking, HTTPReqSending, HTTPReqWaiting, HTTPReqReceiving,
		DataReceived, DataSent,
	} {
		assert.Contains(t, data.Metrics, name)
	}

	assert.Equal(t, 2.0, data.Metrics[HTTPReqs].Values["count"])
	assert.Equal(t, 0.5, data.Metrics[HTTPReqFailed].Values["rate"])
	assert.Equal(t, 612.0, data.Metrics[DataReceived].Values["count"])
	assert.Equal(t, summary.ContainsData, data.Metrics[DataReceived].Contains)
	assert.Equal(t, 12.5, data.Metrics[HTTPReqDuration].Values["max"])
}

func TestEngine_Summary(t *testing.T) {
	e := NewEngine()
	e.RecordIteration(20 * time.Millisecond)
	e.RecordIteration(40 * time.Millisecond)
	e.RecordDroppedIteration()

	data := e.Summary(SummaryOptions{
		TrendStats:  []string{"avg", "p(99)", "count"},
		TimeUnit:    "ms",
		NoColor:     true,
		IsStdOutTTY: true,
		Duration:    4 * time.Second,
		Include:     []string{HTTPReqDuration, "custom_metric"},
	})

	assert.Equal(t, summary.NewRootGroup(), data.RootGroup)
	assert.Equal(t, summary.DataOptions{
		SummaryTrendStats: []string{"avg", "p(99)", "count"},
		SummaryTimeUnit:   "ms",
		NoColor:           true,
	}, data.Options)
	assert.Equal(t, summary.State{IsStdOutTTY: true, TestRunDurationMs: 4000}, data.State)

	// Only observed metrics plus the included built-in.
	assert.Len(t, data.Metrics, 4)
	assert.Equal(t, map[string]float64{"count": 2, "rate": 0.5}, data.Metrics[Iterations].Values)
	assert.Equal(t, map[string]float64{"count": 1, "rate": 0.25}, data.Metrics[DroppedIterations].Values)

	iter := data.Metrics[IterationDuration].Values
	assert.Equal(t, 30.0, iter["avg"])
	assert.Equal(t, 2.0, iter["count"])
	assert.InDelta(t, 40, iter["p(99)"], 0.05)
	assert.NotContains(t, iter, "med")

	assert.Equal(t, map[string]float64{"avg": 0, "p(99)": 0, "count": 0}, data.Metrics[HTTPReqDuration].Values)
	assert.NotContains(t, data.Metrics, "custom_metric")
}

func TestEngine_SummaryRoundTrip(t *testing.T) {
	e := NewEngine()
	e.RecordHTTPRequest(HTTPSample{Status: 200, Duration: 12.5, BytesReceived: 100})
	e.SetVUs(2, 2)
	e.RecordIteration(13 * time.Millisecond)

	data := e.Summary(SummaryOptions{Duration: 1500 * time.Millisecond})

	raw, err := json.Marshal(data)
	require.NoError(t, err)

	var back summary.Data
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, *data, back)
}

func TestEngine_Concurrent(t *testing.T) {
	e := NewEngine()

	var wg sync.WaitGroup
	for g := 0; g < 50; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				e.RecordHTTPRequest(HTTPSample{Status: 200, Duration: float64(i)})
			}
		}()
	}
	wg.Wait()

	v, _ := e.Value(HTTPReqs, "count", time.Second)
	assert.Equal(t, 5000.0, v)
	v, _ = e.Value(HTTPReqDuration, "count", time.Second)
	assert.Equal(t, 5000.0, v)
}
