// Package executor provides the load generation strategies a scenario can use.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/lokalise/nginx-loadtest/internal/config"
	"github.com/lokalise/nginx-loadtest/internal/runner/metrics"
)

// VU is an execution slot that runs one iteration at a time.
type VU interface {
	// ID returns the VU's 1-based identifier
	ID() int

	// RunIteration runs one iteration to completion or until ctx is done
	RunIteration(ctx context.Context) error
}

// Scheduler creates VUs on demand.
type Scheduler interface {
	SpawnVU() VU
}

// Executor defines the interface for load generation strategies.
//
// Executors control HOW load is generated: they decide when iterations start
// and on which VU. An executor owns its VU pool for the lifetime of Run.
type Executor interface {
	// Name returns the scenario name the executor runs.
	Name() string

	// Type returns the executor type.
	Type() string

	// Config returns the resolved configuration.
	Config() *Config

	// Run starts the executor and blocks until every iteration has finished
	// or been interrupted. Cancelling ctx stops scheduling immediately and
	// interrupts in-flight iterations.
	Run(ctx context.Context) error

	// Stats returns a point-in-time view of the executor.
	Stats() Stats
}

// Config contains the resolved configuration for an executor.
type Config struct {
	// Name is the name of this executor instance
	Name string

	// StartRate is the arrival rate at the beginning of the first stage, per TimeUnit
	StartRate float64

	// TimeUnit is the period rates are expressed in
	TimeUnit time.Duration

	PreAllocatedVUs int
	MaxVUs          int

	// StartTime delays the executor relative to the start of the run
	StartTime time.Duration

	// GracefulStop is how long in-flight iterations may run after the last stage
	GracefulStop time.Duration

	Stages []Stage
}

// Stage defines a stage in ramping executors.
type Stage struct {
	// Target rate per TimeUnit, reached at the end of the stage
	Target float64

	// Duration of this stage
	Duration time.Duration
}

// Stats contains real-time executor statistics.
type Stats struct {
	// Timing
	Elapsed       time.Duration `json:"elapsed"`
	TotalDuration time.Duration `json:"totalDuration"`
	Progress      float64       `json:"progress"`

	// VU stats
	ActiveVUs    int `json:"activeVUs"`
	AllocatedVUs int `json:"allocatedVUs"`
	MaxVUs       int `json:"maxVUs"`

	// Iteration stats
	Arrivals    int64 `json:"arrivals"` // released by the pacer, dropped ones included
	Completed   int64 `json:"completed"`
	Interrupted int64 `json:"interrupted"`
	Dropped     int64 `json:"dropped"`

	// Stage and rate info
	CurrentStage int     `json:"currentStage"`
	TotalStages  int     `json:"totalStages"`
	CurrentRate  float64 `json:"currentRate"` // arrivals per second
}

// TotalDuration returns the sum of all stage durations.
func (c *Config) TotalDuration() time.Duration {
	var total time.Duration
	for _, stage := range c.Stages {
		total += stage.Duration
	}
	return total
}

// perSecond converts a rate per TimeUnit into arrivals per second.
func (c *Config) perSecond(v float64) float64 {
	unit := c.TimeUnit
	if unit <= 0 {
		unit = config.DefaultTimeUnit
	}
	return v / unit.Seconds()
}

// RateAt returns the target arrival rate, in arrivals per second, at elapsed
// time into the stages. The rate starts at StartRate and each stage moves
// linearly from the previous target to its own. Past the last stage the last
// target holds.
func (c *Config) RateAt(elapsed time.Duration) float64 {
	rate, _ := c.stageAt(elapsed)
	return rate
}

// stageAt returns the rate at elapsed and the index of the active stage.
func (c *Config) stageAt(elapsed time.Duration) (float64, int) {
	if elapsed < 0 {
		elapsed = 0
	}

	prev := c.StartRate
	var stageStart time.Duration
	for i, stage := range c.Stages {
		stageEnd := stageStart + stage.Duration
		if elapsed < stageEnd {
			progress := float64(elapsed-stageStart) / float64(stage.Duration)
			return c.perSecond(prev + (stage.Target-prev)*progress), i
		}
		prev = stage.Target
		stageStart = stageEnd
	}
	return c.perSecond(prev), len(c.Stages) - 1
}

// FromScenario converts a validated scenario config, with defaults applied,
// into an executor config.
func FromScenario(name string, sc *config.ScenarioConfig) *Config {
	cfg := &Config{
		Name:            name,
		StartRate:       float64(sc.StartRate),
		TimeUnit:        sc.TimeUnit.GetDuration(config.DefaultTimeUnit),
		PreAllocatedVUs: sc.PreAllocatedVUs,
		MaxVUs:          sc.MaxVUs,
		StartTime:       time.Duration(sc.StartTime),
		GracefulStop:    sc.GracefulStop.GetDuration(config.DefaultGracefulStop),
	}
	if cfg.MaxVUs < cfg.PreAllocatedVUs {
		cfg.MaxVUs = cfg.PreAllocatedVUs
	}

	for _, stage := range sc.Stages {
		cfg.Stages = append(cfg.Stages, Stage{
			Target:   float64(stage.Target),
			Duration: time.Duration(stage.Duration),
		})
	}
	return cfg
}

// New creates the executor named by sc.Executor.
func New(name string, sc *config.ScenarioConfig, scheduler Scheduler, metricsEngine *metrics.Engine) (Executor, error) {
	switch sc.Executor {
	case config.ExecutorRampingArrivalRate:
		return NewRampingArrivalRate(FromScenario(name, sc), scheduler, metricsEngine), nil
	default:
		return nil, fmt.Errorf("unknown executor type: %s", sc.Executor)
	}
}
