// Package summary holds the end-of-test data handed to summary handlers and
// renders it as the human-readable text report.
package summary

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
)

// Metric types.
const (
	TypeCounter = "counter"
	TypeGauge   = "gauge"
	TypeRate    = "rate"
	TypeTrend   = "trend"
)

// Metric value kinds, used to pick a unit when rendering.
const (
	ContainsDefault = "default"
	ContainsTime    = "time"
	ContainsData    = "data"
)

// Data is the aggregated result of a test run.
//
// The JSON shape is the common load-test summary layout (root_group,
// options, state, metrics), so saved summary.json files can be processed by
// existing summary tooling.
type Data struct {
	RootGroup Group             `json:"root_group"`
	Options   DataOptions       `json:"options"`
	State     State             `json:"state"`
	Metrics   map[string]Metric `json:"metrics"`
}

// Group is a named group of checks. Only the root group is produced today.
type Group struct {
	Name   string  `json:"name"`
	Path   string  `json:"path"`
	ID     string  `json:"id"`
	Groups []Group `json:"groups"`
	Checks []Check `json:"checks"`
}

// Check is a named pass/fail assertion inside a group.
type Check struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	ID     string `json:"id"`
	Passes int64  `json:"passes"`
	Fails  int64  `json:"fails"`
}

// DataOptions are the run options that affect summary rendering.
type DataOptions struct {
	SummaryTrendStats []string `json:"summaryTrendStats"`
	SummaryTimeUnit   string   `json:"summaryTimeUnit"`
	NoColor           bool     `json:"noColor"`
}

// State describes the environment the run finished in.
type State struct {
	IsStdOutTTY       bool    `json:"isStdOutTTY"`
	IsStdErrTTY       bool    `json:"isStdErrTTY"`
	TestRunDurationMs float64 `json:"testRunDurationMs"`
}

// Metric is one aggregated metric. Values keys depend on Type:
//   - counter: count, rate
//   - gauge: value, min, max
//   - rate: rate, passes, fails
//   - trend: the configured trend stats (avg, min, med, max, p(N), count)
type Metric struct {
	Type       string                     `json:"type"`
	Contains   string                     `json:"contains"`
	Values     map[string]float64         `json:"values"`
	Thresholds map[string]ThresholdResult `json:"thresholds"`
}

// ThresholdResult is the outcome of one threshold expression.
type ThresholdResult struct {
	OK bool `json:"ok"`
}

// GroupID returns the identifier of the group at path.
func GroupID(path string) string {
	sum := md5.Sum([]byte(path))
	return hex.EncodeToString(sum[:])
}

// NewRootGroup returns the empty root group.
func NewRootGroup() Group {
	return Group{
		Name:   "",
		Path:   "",
		ID:     GroupID(""),
		Groups: []Group{},
		Checks: []Check{},
	}
}

// ThresholdsPassed reports whether every threshold on every metric passed.
func (d *Data) ThresholdsPassed() bool {
	for _, m := range d.Metrics {
		for _, res := range m.Thresholds {
			if !res.OK {
				return false
			}
		}
	}
	return true
}

// Load reads a summary previously written as JSON.
func Load(path string) (*Data, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read summary: %w", err)
	}

	var d Data
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("failed to parse summary %s: %w", path, err)
	}
	return &d, nil
}
