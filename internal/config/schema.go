// Package config provides the options model for load scenarios: scenarios,
// ramp stages, thresholds and summary settings.
package config

import (
	"encoding/json"
	"strings"
	"time"
)

// ExecutorRampingArrivalRate is the open-model executor that ramps the
// iteration arrival rate through a list of stages.
const ExecutorRampingArrivalRate = "ramping-arrival-rate"

// Options is the root configuration read by the runner before execution.
//
// Example YAML:
//
//	scenarios:
//	  open_model:
//	    executor: ramping-arrival-rate
//	    startRate: 10
//	    timeUnit: 1s
//	    preAllocatedVUs: 2
//	    maxVUs: 10
//	    startTime: 0s
//	    stages:
//	      - target: 10
//	        duration: 5s
//	      - target: 50
//	        duration: 120s
//	thresholds:
//	  http_req_duration:
//	    - "p(95)<500"
type Options struct {
	// Scenarios maps a scenario name to its executor configuration
	Scenarios map[string]*ScenarioConfig `json:"scenarios" yaml:"scenarios"`

	// Thresholds maps a metric name to pass/fail expressions
	Thresholds map[string][]string `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`

	// SummaryTrendStats lists the trend aggregations shown in the summary
	SummaryTrendStats []string `json:"summaryTrendStats,omitempty" yaml:"summaryTrendStats,omitempty"`

	// SummaryTimeUnit forces time values in the summary into one unit: s, ms or us
	SummaryTimeUnit string `json:"summaryTimeUnit,omitempty" yaml:"summaryTimeUnit,omitempty"`

	// NoColor disables colours in runner-side output
	NoColor bool `json:"noColor,omitempty" yaml:"noColor,omitempty"`

	// Settings contains HTTP client settings shared by all VUs
	Settings Settings `json:"settings,omitempty" yaml:"settings,omitempty"`
}

// Settings contains HTTP client settings.
type Settings struct {
	// Timeout is the per-request timeout
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// MaxIdleConnsPerHost limits idle keep-alive connections per host
	MaxIdleConnsPerHost int `json:"maxIdleConnsPerHost,omitempty" yaml:"maxIdleConnsPerHost,omitempty"`

	// InsecureSkipVerify skips TLS certificate verification
	InsecureSkipVerify bool `json:"insecureSkipVerify,omitempty" yaml:"insecureSkipVerify,omitempty"`
}

// ScenarioConfig defines one load scenario.
type ScenarioConfig struct {
	// Executor is the load generation strategy
	Executor string `json:"executor" yaml:"executor"`

	// StartRate is the arrival rate (per TimeUnit) at the start of the first stage
	StartRate int64 `json:"startRate" yaml:"startRate"`

	// TimeUnit is the period StartRate and stage targets are expressed in
	TimeUnit Duration `json:"timeUnit,omitempty" yaml:"timeUnit,omitempty"`

	// PreAllocatedVUs is the number of VUs created before the scenario starts
	PreAllocatedVUs int `json:"preAllocatedVUs" yaml:"preAllocatedVUs"`

	// MaxVUs is the upper bound the VU pool may grow to
	MaxVUs int `json:"maxVUs,omitempty" yaml:"maxVUs,omitempty"`

	// StartTime delays the scenario relative to the start of the run
	StartTime Duration `json:"startTime,omitempty" yaml:"startTime,omitempty"`

	// GracefulStop is how long in-flight iterations may run after the last stage
	GracefulStop Duration `json:"gracefulStop,omitempty" yaml:"gracefulStop,omitempty"`

	// Stages is the ordered ramp profile
	Stages []StageConfig `json:"stages" yaml:"stages"`

	// Tags are attached to the scenario in the summary
	Tags map[string]string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// StageConfig is one segment of a ramp: reach Target by the end of Duration.
type StageConfig struct {
	Target   int64    `json:"target" yaml:"target"`
	Duration Duration `json:"duration" yaml:"duration"`
}

// TotalDuration returns the sum of all stage durations.
func (sc *ScenarioConfig) TotalDuration() time.Duration {
	var total time.Duration
	for _, stage := range sc.Stages {
		total += time.Duration(stage.Duration)
	}
	return total
}

// Duration is a time.Duration that marshals to and from strings such as "5s".
type Duration time.Duration

// GetDuration returns the duration or a default if zero.
func (d Duration) GetDuration(defaultValue time.Duration) time.Duration {
	if d == 0 {
		return defaultValue
	}
	return time.Duration(d)
}

// String returns the duration as a string.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements json.Unmarshaler. Bare numbers are seconds.
func (d *Duration) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" {
		*d = 0
		return nil
	}

	dur, err := ParseDurationString(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}

	dur, err := ParseDurationString(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}
