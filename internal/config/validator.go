package config

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Add adds an error to the collection.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &ValidationError{Field: field, Message: message})
}

// HasErrors returns true if there are any errors.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// Validate validates the options.
//
// Returns nil if valid, or a *ValidationErrors containing every problem found.
func (o *Options) Validate() error {
	errs := &ValidationErrors{}

	if len(o.Scenarios) == 0 {
		errs.Add("scenarios", "at least one scenario is required")
	}

	// Sorted so error order is stable.
	names := make([]string, 0, len(o.Scenarios))
	for name := range o.Scenarios {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		validateScenario(name, o.Scenarios[name], errs)
	}

	validateThresholds(o.Thresholds, errs)

	for i, stat := range o.SummaryTrendStats {
		if !IsTrendStat(stat) {
			errs.Add(fmt.Sprintf("summaryTrendStats[%d]", i), fmt.Sprintf("unknown trend stat: %s", stat))
		}
	}

	switch o.SummaryTimeUnit {
	case "", "s", "ms", "us":
	default:
		errs.Add("summaryTimeUnit", fmt.Sprintf("must be s, ms or us, got %q", o.SummaryTimeUnit))
	}

	if o.Settings.Timeout < 0 {
		errs.Add("settings.timeout", "cannot be negative")
	}
	if o.Settings.MaxIdleConnsPerHost < 0 {
		errs.Add("settings.maxIdleConnsPerHost", "cannot be negative")
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validateScenario(name string, sc *ScenarioConfig, errs *ValidationErrors) {
	prefix := fmt.Sprintf("scenarios.%s", name)

	if sc == nil {
		errs.Add(prefix, "scenario is empty")
		return
	}

	switch sc.Executor {
	case "":
		errs.Add(prefix+".executor", "executor type is required")
	case ExecutorRampingArrivalRate:
	default:
		errs.Add(prefix+".executor", fmt.Sprintf("unsupported executor type: %s", sc.Executor))
	}

	if sc.StartRate < 0 {
		errs.Add(prefix+".startRate", "startRate cannot be negative")
	}
	if sc.TimeUnit < 0 {
		errs.Add(prefix+".timeUnit", "timeUnit cannot be negative")
	}
	if sc.StartTime < 0 {
		errs.Add(prefix+".startTime", "startTime cannot be negative")
	}
	if sc.GracefulStop < 0 {
		errs.Add(prefix+".gracefulStop", "gracefulStop cannot be negative")
	}

	if sc.PreAllocatedVUs < 0 {
		errs.Add(prefix+".preAllocatedVUs", "preAllocatedVUs cannot be negative")
	}
	if sc.MaxVUs < 0 {
		errs.Add(prefix+".maxVUs", "maxVUs cannot be negative")
	}
	if sc.MaxVUs > 0 && sc.PreAllocatedVUs > sc.MaxVUs {
		errs.Add(prefix+".preAllocatedVUs", "preAllocatedVUs cannot be greater than maxVUs")
	}
	if sc.PreAllocatedVUs == 0 && sc.MaxVUs == 0 {
		errs.Add(prefix+".preAllocatedVUs", "at least one of preAllocatedVUs or maxVUs must be positive")
	}

	if len(sc.Stages) == 0 {
		errs.Add(prefix+".stages", "at least one stage is required for ramping-arrival-rate executor")
	}

	for i, stage := range sc.Stages {
		stagePrefix := fmt.Sprintf("%s.stages[%d]", prefix, i)
		if stage.Duration < 0 {
			errs.Add(stagePrefix+".duration", "duration cannot be negative")
		}
		if stage.Target < 0 {
			errs.Add(stagePrefix+".target", "target cannot be negative")
		}
	}

	if len(sc.Stages) > 0 && sc.TotalDuration() == 0 {
		errs.Add(prefix+".stages", "total stage duration must be greater than 0")
	}
}

func validateThresholds(thresholds map[string][]string, errs *ValidationErrors) {
	metrics := make([]string, 0, len(thresholds))
	for metric := range thresholds {
		metrics = append(metrics, metric)
	}
	sort.Strings(metrics)

	for _, metric := range metrics {
		if strings.TrimSpace(metric) == "" {
			errs.Add("thresholds", "metric name cannot be empty")
			continue
		}
		for i, expr := range thresholds[metric] {
			if _, err := ParseThreshold(expr); err != nil {
				errs.Add(fmt.Sprintf("thresholds.%s[%d]", metric, i), err.Error())
			}
		}
	}
}
