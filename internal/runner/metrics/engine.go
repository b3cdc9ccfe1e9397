// Package metrics aggregates the samples produced during a run into named
// counters, gauges, rates and trends, and turns them into summary data.
package metrics

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/lokalise/nginx-loadtest/internal/config"
	"github.com/lokalise/nginx-loadtest/internal/summary"
)

// Built-in metric names.
const (
	HTTPReqs              = "http_reqs"
	HTTPReqFailed         = "http_req_failed"
	HTTPReqDuration       = "http_req_duration"
	HTTPReqBlocked        = "http_req_blocked"
	HTTPReqConnecting     = "http_req_connecting"
	HTTPReqTLSHandshaking = "http_req_tls_handshaking"
	HTTPReqSending        = "http_req_sending"
	HTTPReqWaiting        = "http_req_waiting"
	HTTPReqReceiving      = "http_req_receiving"
	Iterations            = "iterations"
	IterationDuration     = "iteration_duration"
	DroppedIterations     = "dropped_iterations"
	DataReceived          = "data_received"
	DataSent              = "data_sent"
	VUs                   = "vus"
	VUsMax                = "vus_max"
)

// Definition describes what kind of metric a name refers to.
type Definition struct {
	Type     string
	Contains string
}

var builtins = map[string]Definition{
	HTTPReqs:              {Type: summary.TypeCounter, Contains: summary.ContainsDefault},
	HTTPReqFailed:         {Type: summary.TypeRate, Contains: summary.ContainsDefault},
	HTTPReqDuration:       {Type: summary.TypeTrend, Contains: summary.ContainsTime},
	HTTPReqBlocked:        {Type: summary.TypeTrend, Contains: summary.ContainsTime},
	HTTPReqConnecting:     {Type: summary.TypeTrend, Contains: summary.ContainsTime},
	HTTPReqTLSHandshaking: {Type: summary.TypeTrend, Contains: summary.ContainsTime},
	HTTPReqSending:        {Type: summary.TypeTrend, Contains: summary.ContainsTime},
	HTTPReqWaiting:        {Type: summary.TypeTrend, Contains: summary.ContainsTime},
	HTTPReqReceiving:      {Type: summary.TypeTrend, Contains: summary.ContainsTime},
	Iterations:            {Type: summary.TypeCounter, Contains: summary.ContainsDefault},
	IterationDuration:     {Type: summary.TypeTrend, Contains: summary.ContainsTime},
	DroppedIterations:     {Type: summary.TypeCounter, Contains: summary.ContainsDefault},
	DataReceived:          {Type: summary.TypeCounter, Contains: summary.ContainsData},
	DataSent:              {Type: summary.TypeCounter, Contains: summary.ContainsData},
	VUs:                   {Type: summary.TypeGauge, Contains: summary.ContainsDefault},
	VUsMax:                {Type: summary.TypeGauge, Contains: summary.ContainsDefault},
}

// Builtin returns the definition of a built-in metric.
func Builtin(name string) (Definition, bool) {
	def, ok := builtins[name]
	return def, ok
}

// ValidAggregation reports whether agg can be read from a metric of type typ.
func ValidAggregation(typ, agg string) bool {
	switch typ {
	case summary.TypeCounter:
		return agg == "count" || agg == "rate"
	case summary.TypeGauge:
		return agg == "value" || agg == "min" || agg == "max"
	case summary.TypeRate:
		return agg == "rate"
	case summary.TypeTrend:
		return agg != "rate" && agg != "value" && config.IsTrendStat(agg)
	}
	return false
}

// Engine collects samples using HDR histograms for trends.
//
// # Thread Safety
//
// Engine is safe for concurrent use. The metric registry is guarded by a
// RWMutex and every metric carries its own mutex, since HDR histograms are
// not safe for concurrent writes.
type Engine struct {
	mu      sync.RWMutex
	metrics map[string]*Metric

	config EngineConfig
}

// EngineConfig contains configuration for the metrics engine.
type EngineConfig struct {
	// HistogramMin is the minimum recordable trend value in microseconds (default: 1)
	HistogramMin int64

	// HistogramMax is the maximum recordable trend value in microseconds (default: 1 hour)
	HistogramMax int64

	// HistogramSigFigs is the number of significant figures (default: 3)
	HistogramSigFigs int
}

// DefaultEngineConfig returns the default configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		HistogramMin:     1,
		HistogramMax:     3600000000, // 1 hour in microseconds
		HistogramSigFigs: 3,
	}
}

// NewEngine creates a new metrics engine with default configuration.
func NewEngine() *Engine {
	return NewEngineWithConfig(DefaultEngineConfig())
}

// NewEngineWithConfig creates a new metrics engine with custom configuration.
func NewEngineWithConfig(cfg EngineConfig) *Engine {
	return &Engine{
		metrics: make(map[string]*Metric),
		config:  cfg,
	}
}

// Metric is one named aggregate.
type Metric struct {
	Name     string
	Type     string
	Contains string

	mu       sync.Mutex
	observed bool

	// counter total, trend sum
	sum float64
	// trend sample count
	count int64
	// gauge last value, gauge and trend extremes
	value, min, max float64
	// rate
	passes, fails int64

	hist    *hdrhistogram.Histogram
	histMin int64
	histMax int64
}

// metric returns the named metric, registering it on first use. Unknown
// names are registered with the type implied by the caller.
func (e *Engine) metric(name, typ string) *Metric {
	e.mu.RLock()
	m, ok := e.metrics[name]
	e.mu.RUnlock()
	if ok {
		return m
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if m, ok := e.metrics[name]; ok {
		return m
	}

	def, ok := builtins[name]
	if !ok {
		def = Definition{Type: typ, Contains: summary.ContainsDefault}
	}

	m = &Metric{Name: name, Type: def.Type, Contains: def.Contains}
	if def.Type == summary.TypeTrend {
		m.hist = hdrhistogram.New(e.config.HistogramMin, e.config.HistogramMax, e.config.HistogramSigFigs)
		m.histMin = e.config.HistogramMin
		m.histMax = e.config.HistogramMax
	}
	e.metrics[name] = m
	return m
}

// Add adds v to a counter.
func (e *Engine) Add(name string, v float64) {
	m := e.metric(name, summary.TypeCounter)
	if m.Type != summary.TypeCounter {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.observed = true
	m.sum += v
}

// Set sets a gauge.
func (e *Engine) Set(name string, v float64) {
	m := e.metric(name, summary.TypeGauge)
	if m.Type != summary.TypeGauge {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.observed || v < m.min {
		m.min = v
	}
	if !m.observed || v > m.max {
		m.max = v
	}
	m.value = v
	m.observed = true
}

// AddRate records one pass (ok) or fail for a rate.
func (e *Engine) AddRate(name string, ok bool) {
	m := e.metric(name, summary.TypeRate)
	if m.Type != summary.TypeRate {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.observed = true
	if ok {
		m.passes++
	} else {
		m.fails++
	}
}

// AddTrend records one trend sample. Time trends are in milliseconds.
func (e *Engine) AddTrend(name string, v float64) {
	m := e.metric(name, summary.TypeTrend)
	if m.Type != summary.TypeTrend {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.observed || v < m.min {
		m.min = v
	}
	if !m.observed || v > m.max {
		m.max = v
	}
	m.observed = true
	m.sum += v
	m.count++

	// HDR histograms hold integers: store thousandths (µs for time trends).
	scaled := int64(math.Round(v * 1000))
	if scaled < m.histMin {
		scaled = m.histMin
	}
	if scaled > m.histMax {
		scaled = m.histMax
	}
	_ = m.hist.RecordValue(scaled)
}

// HTTPSample is the result of one HTTP request. Timings are in milliseconds.
type HTTPSample struct {
	Status         int
	Failed         bool
	Duration       float64
	Blocked        float64
	Connecting     float64
	TLSHandshaking float64
	Sending        float64
	Waiting        float64
	Receiving      float64
	BytesReceived  int64
	BytesSent      int64
}

// RecordHTTPRequest records every http_* metric for one request.
func (e *Engine) RecordHTTPRequest(s HTTPSample) {
	e.Add(HTTPReqs, 1)
	e.AddRate(HTTPReqFailed, s.Failed)

	e.AddTrend(HTTPReqDuration, s.Duration)
	e.AddTrend(HTTPReqBlocked, s.Blocked)
	e.AddTrend(HTTPReqConnecting, s.Connecting)
	e.AddTrend(HTTPReqTLSHandshaking, s.TLSHandshaking)
	e.AddTrend(HTTPReqSending, s.Sending)
	e.AddTrend(HTTPReqWaiting, s.Waiting)
	e.AddTrend(HTTPReqReceiving, s.Receiving)

	e.Add(DataReceived, float64(s.BytesReceived))
	e.Add(DataSent, float64(s.BytesSent))
}

// RecordIteration records one completed iteration.
func (e *Engine) RecordIteration(d time.Duration) {
	e.Add(Iterations, 1)
	e.AddTrend(IterationDuration, float64(d)/float64(time.Millisecond))
}

// RecordDroppedIteration records an arrival that found no free VU.
func (e *Engine) RecordDroppedIteration() {
	e.Add(DroppedIterations, 1)
}

// SetVUs records the number of active and allocated VUs.
func (e *Engine) SetVUs(active, allocated int) {
	e.Set(VUs, float64(active))
	e.Set(VUsMax, float64(allocated))
}

// Value returns one aggregation of a metric. elapsed is the run duration
// used for per-second counter rates. ok is false for an aggregation the
// metric type does not support.
func (e *Engine) Value(name, agg string, elapsed time.Duration) (float64, bool) {
	e.mu.RLock()
	m, ok := e.metrics[name]
	e.mu.RUnlock()

	if !ok {
		def, isBuiltin := builtins[name]
		if !isBuiltin || !ValidAggregation(def.Type, agg) {
			return 0, false
		}
		return 0, true
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.valueLocked(agg, elapsed)
}

func (m *Metric) valueLocked(agg string, elapsed time.Duration) (float64, bool) {
	if !ValidAggregation(m.Type, agg) {
		return 0, false
	}

	switch m.Type {
	case summary.TypeCounter:
		if agg == "count" {
			return m.sum, true
		}
		if elapsed <= 0 {
			return 0, true
		}
		return m.sum / elapsed.Seconds(), true

	case summary.TypeGauge:
		switch agg {
		case "min":
			return m.min, true
		case "max":
			return m.max, true
		}
		return m.value, true

	case summary.TypeRate:
		total := m.passes + m.fails
		if total == 0 {
			return 0, true
		}
		return float64(m.passes) / float64(total), true

	case summary.TypeTrend:
		if m.count == 0 {
			return 0, true
		}
		switch agg {
		case "avg":
			return m.sum / float64(m.count), true
		case "min":
			return m.min, true
		case "max":
			return m.max, true
		case "count":
			return float64(m.count), true
		case "med":
			return m.percentileLocked(50), true
		}
		p, _ := config.PercentileOf(agg)
		return m.percentileLocked(p), true
	}
	return 0, false
}

// percentileLocked reads a percentile from the histogram, clamped to the
// exact extremes seen.
func (m *Metric) percentileLocked(p float64) float64 {
	v := float64(m.hist.ValueAtQuantile(p)) / 1000
	if v < m.min {
		v = m.min
	}
	if v > m.max {
		v = m.max
	}
	return v
}

// valuesLocked returns the summary values map for the metric.
func (m *Metric) valuesLocked(trendStats []string, elapsed time.Duration) map[string]float64 {
	values := make(map[string]float64)

	var keys []string
	switch m.Type {
	case summary.TypeCounter:
		keys = []string{"count", "rate"}
	case summary.TypeGauge:
		keys = []string{"value", "min", "max"}
	case summary.TypeRate:
		v, _ := m.valueLocked("rate", elapsed)
		values["rate"] = v
		values["passes"] = float64(m.passes)
		values["fails"] = float64(m.fails)
		return values
	case summary.TypeTrend:
		keys = trendStats
	}

	for _, k := range keys {
		if v, ok := m.valueLocked(k, elapsed); ok {
			values[k] = v
		}
	}
	return values
}

// SummaryOptions controls how Summary builds the summary data.
type SummaryOptions struct {
	// TrendStats are the trend aggregations reported for every trend
	TrendStats []string

	// TimeUnit forces a fixed unit for time values in the text summary
	TimeUnit string

	NoColor     bool
	IsStdOutTTY bool
	IsStdErrTTY bool

	// Duration is the test run duration, used for counter rates
	Duration time.Duration

	// Include lists metrics reported even without samples (e.g. ones with thresholds)
	Include []string
}

// Summary builds the end-of-test summary from every observed metric.
func (e *Engine) Summary(opts SummaryOptions) *summary.Data {
	trendStats := opts.TrendStats
	if len(trendStats) == 0 {
		trendStats = config.DefaultSummaryTrendStats
	}

	for _, name := range opts.Include {
		if def, ok := builtins[name]; ok {
			e.metric(name, def.Type)
		}
	}

	e.mu.RLock()
	names := make([]string, 0, len(e.metrics))
	for name := range e.metrics {
		names = append(names, name)
	}
	e.mu.RUnlock()
	sort.Strings(names)

	include := make(map[string]bool, len(opts.Include))
	for _, name := range opts.Include {
		include[name] = true
	}

	data := &summary.Data{
		RootGroup: summary.NewRootGroup(),
		Options: summary.DataOptions{
			SummaryTrendStats: append([]string(nil), trendStats...),
			SummaryTimeUnit:   opts.TimeUnit,
			NoColor:           opts.NoColor,
		},
		State: summary.State{
			IsStdOutTTY:       opts.IsStdOutTTY,
			IsStdErrTTY:       opts.IsStdErrTTY,
			TestRunDurationMs: float64(opts.Duration) / float64(time.Millisecond),
		},
		Metrics: make(map[string]summary.Metric, len(names)),
	}

	for _, name := range names {
		e.mu.RLock()
		m := e.metrics[name]
		e.mu.RUnlock()

		m.mu.Lock()
		if m.observed || include[name] {
			data.Metrics[name] = summary.Metric{
				Type:     m.Type,
				Contains: m.Contains,
				Values:   m.valuesLocked(trendStats, opts.Duration),
			}
		}
		m.mu.Unlock()
	}

	return data
}
