package runner

import (
	"fmt"
	"sort"
	"time"

	"github.com/lokalise/nginx-loadtest/internal/config"
	"github.com/lokalise/nginx-loadtest/internal/runner/metrics"
	"github.com/lokalise/nginx-loadtest/internal/summary"
)

// metricThresholds are the parsed thresholds of one metric.
type metricThresholds struct {
	metric     string
	thresholds []config.Threshold
}

// parseThresholds parses and checks every threshold against the built-in
// metrics. Problems are collected into a *config.ValidationErrors.
func parseThresholds(raw map[string][]string) ([]metricThresholds, error) {
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	errs := &config.ValidationErrors{}
	var out []metricThresholds

	for _, name := range names {
		def, ok := metrics.Builtin(name)
		if !ok {
			errs.Add("thresholds."+name, "unknown metric")
			continue
		}

		mt := metricThresholds{metric: name}
		for i, expr := range raw[name] {
			field := fmt.Sprintf("thresholds.%s[%d]", name, i)

			th, err := config.ParseThreshold(expr)
			if err != nil {
				errs.Add(field, err.Error())
				continue
			}
			if !metrics.ValidAggregation(def.Type, th.Aggregation) {
				errs.Add(field, fmt.Sprintf("aggregation %q is not available on %s metric %s", th.Aggregation, def.Type, name))
				continue
			}
			mt.thresholds = append(mt.thresholds, th)
		}
		out = append(out, mt)
	}

	if errs.HasErrors() {
		return nil, errs
	}
	return out, nil
}

// thresholdMetrics returns the names of metrics that carry thresholds.
func thresholdMetrics(all []metricThresholds) []string {
	names := make([]string, 0, len(all))
	for _, mt := range all {
		names = append(names, mt.metric)
	}
	return names
}

// evaluateThresholds fills Metric.Thresholds in data. Metrics without
// samples evaluate to 0.
func evaluateThresholds(data *summary.Data, all []metricThresholds, engine *metrics.Engine, elapsed time.Duration) {
	for _, mt := range all {
		m, ok := data.Metrics[mt.metric]
		if !ok {
			def, _ := metrics.Builtin(mt.metric)
			m = summary.Metric{Type: def.Type, Contains: def.Contains, Values: map[string]float64{}}
		}
		if m.Thresholds == nil {
			m.Thresholds = make(map[string]summary.ThresholdResult, len(mt.thresholds))
		}

		for _, th := range mt.thresholds {
			actual, ok := engine.Value(mt.metric, th.Aggregation, elapsed)
			if !ok {
				actual = 0
			}
			m.Thresholds[th.Source] = summary.ThresholdResult{OK: th.Passes(actual)}
		}
		data.Metrics[mt.metric] = m
	}
}
