package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by ApplyDefaults.
const (
	DefaultTimeUnit     = time.Second
	DefaultGracefulStop = 30 * time.Second
	DefaultHTTPTimeout  = 60 * time.Second
	DefaultIdleConns    = 100
)

// DefaultSummaryTrendStats are the trend columns shown when none are configured.
var DefaultSummaryTrendStats = []string{"avg", "min", "med", "max", "p(90)", "p(95)"}

// LoadConfig loads options from a file.
//
// The file format is determined by extension:
//   - .yaml, .yml -> YAML
//   - .json -> JSON
//
// The document is checked against the options JSON Schema before decoding.
func LoadConfig(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := ValidateDocument(data, path); err != nil {
		return nil, err
	}

	return ParseConfig(data, path)
}

// ParseConfig parses options data.
//
// The format is determined by the file extension in path, or defaults to YAML
// if the path is empty or has an unknown extension.
func ParseConfig(data []byte, path string) (*Options, error) {
	var opts Options

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &opts); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal(data, &opts); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &opts); err != nil {
			return nil, fmt.Errorf("failed to parse config (unknown format %s): %w", ext, err)
		}
	}

	return &opts, nil
}

// ParseDurationString parses a duration string.
//
// Supported formats:
//   - Standard Go duration: "30s", "2m", "1h30m", "500ms"
//   - Seconds as integer: "30" (treated as 30 seconds)
func ParseDurationString(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	if seconds, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}

	return 0, fmt.Errorf("invalid duration format: %s", s)
}

// ApplyDefaults fills in unset values.
func ApplyDefaults(opts *Options) {
	if opts.Settings.Timeout == 0 {
		opts.Settings.Timeout = Duration(DefaultHTTPTimeout)
	}
	if opts.Settings.MaxIdleConnsPerHost == 0 {
		opts.Settings.MaxIdleConnsPerHost = DefaultIdleConns
	}
	if len(opts.SummaryTrendStats) == 0 {
		opts.SummaryTrendStats = append([]string(nil), DefaultSummaryTrendStats...)
	}

	for _, sc := range opts.Scenarios {
		applyScenarioDefaults(sc)
	}
}

func applyScenarioDefaults(sc *ScenarioConfig) {
	if sc == nil {
		return
	}
	if sc.TimeUnit == 0 {
		sc.TimeUnit = Duration(DefaultTimeUnit)
	}
	if sc.GracefulStop == 0 {
		sc.GracefulStop = Duration(DefaultGracefulStop)
	}
	if sc.MaxVUs == 0 {
		sc.MaxVUs = sc.PreAllocatedVUs
	}
}

// Clone returns a deep copy of the options.
func (o *Options) Clone() *Options {
	if o == nil {
		return nil
	}

	out := *o
	out.SummaryTrendStats = append([]string(nil), o.SummaryTrendStats...)

	if o.Thresholds != nil {
		out.Thresholds = make(map[string][]string, len(o.Thresholds))
		for metric, exprs := range o.Thresholds {
			out.Thresholds[metric] = append([]string(nil), exprs...)
		}
	}

	if o.Scenarios != nil {
		out.Scenarios = make(map[string]*ScenarioConfig, len(o.Scenarios))
		for name, sc := range o.Scenarios {
			if sc == nil {
				out.Scenarios[name] = nil
				continue
			}
			cp := *sc
			cp.Stages = append([]StageConfig(nil), sc.Stages...)
			if sc.Tags != nil {
				cp.Tags = make(map[string]string, len(sc.Tags))
				for k, v := range sc.Tags {
					cp.Tags[k] = v
				}
			}
			out.Scenarios[name] = &cp
		}
	}

	return &out
}
