package executor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lokalise/nginx-loadtest/internal/config"
	"github.com/lokalise/nginx-loadtest/internal/runner/metrics"
	"github.com/lokalise/nginx-loadtest/internal/runner/rate"
)

// Intervals used while the executor runs.
const (
	rateUpdateInterval = 100 * time.Millisecond
	vuSampleInterval   = time.Second
)

// RampingArrivalRate ramps the iteration arrival rate according to stages.
//
// This is an open-model executor: iterations are scheduled at the target
// rate regardless of how long earlier iterations take. The rate starts at
// StartRate and each stage ramps linearly from the previous target to its
// own. A LeakyBucket paces arrivals and has its rate refreshed every 100ms.
// The first arrival is released as soon as the stages start.
//
// Each arrival runs on an idle VU. When none is idle a new VU is spawned,
// up to MaxVUs. At the cap the arrival is dropped and counted in
// dropped_iterations; scheduling never waits for a VU.
//
// When the last stage ends no new arrivals are scheduled. In-flight
// iterations get GracefulStop to finish before their context is cancelled.
//
// Example:
//
//	scenarios:
//	  open_model:
//	    executor: ramping-arrival-rate
//	    startRate: 10
//	    timeUnit: 1s
//	    preAllocatedVUs: 2
//	    maxVUs: 10
//	    stages:
//	      - target: 10
//	        duration: 5s     # hold 10/s for 5 seconds
//	      - target: 50
//	        duration: 120s   # ramp from 10/s to 50/s over 2 minutes
//	      - target: 10
//	        duration: 5s     # ramp back down to 10/s
type RampingArrivalRate struct {
	config    *Config
	scheduler Scheduler
	metrics   *metrics.Engine

	// VU pool management
	idle      chan VU // VUs ready to run an iteration
	allocated atomic.Int32
	active    atomic.Int32
	spawnMu   sync.Mutex

	// State
	startTime    atomic.Int64 // unix nanos, 0 until the stages start
	completed    atomic.Int64
	interrupted  atomic.Int64
	dropped      atomic.Int64
	currentStage atomic.Int32
	bucket       atomic.Pointer[rate.LeakyBucket]

	wg sync.WaitGroup
}

// NewRampingArrivalRate creates a new ramping arrival rate executor.
func NewRampingArrivalRate(cfg *Config, scheduler Scheduler, metricsEngine *metrics.Engine) *RampingArrivalRate {
	maxVUs := cfg.MaxVUs
	if maxVUs < cfg.PreAllocatedVUs {
		maxVUs = cfg.PreAllocatedVUs
	}
	if maxVUs < 1 {
		maxVUs = 1
	}
	cfg.MaxVUs = maxVUs

	return &RampingArrivalRate{
		config:    cfg,
		scheduler: scheduler,
		metrics:   metricsEngine,
		idle:      make(chan VU, maxVUs),
	}
}

// Name returns the scenario name.
func (e *RampingArrivalRate) Name() string {
	return e.config.Name
}

// Type returns the executor type.
func (e *RampingArrivalRate) Type() string {
	return config.ExecutorRampingArrivalRate
}

// Config returns the resolved configuration.
func (e *RampingArrivalRate) Config() *Config {
	return e.config
}

// Run starts the executor and blocks until completion.
func (e *RampingArrivalRate) Run(ctx context.Context) error {
	for i := 0; i < e.config.PreAllocatedVUs; i++ {
		e.idle <- e.scheduler.SpawnVU()
		e.allocated.Add(1)
	}
	e.sampleVUs()

	if e.config.StartTime > 0 {
		timer := time.NewTimer(e.config.StartTime)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	start := time.Now()
	e.startTime.Store(start.UnixNano())

	bucket := rate.NewLeakyBucketWithBurst(e.config.RateAt(0), float64(e.config.MaxVUs))
	e.bucket.Store(bucket)

	// Scheduling stops at the end of the stages. Iterations run on their own
	// context so the deadline does not cut them short.
	schedCtx, cancelSched := context.WithDeadline(ctx, start.Add(e.config.TotalDuration()))
	defer cancelSched()
	iterCtx, cancelIters := context.WithCancel(ctx)
	defer cancelIters()

	var bg sync.WaitGroup
	bg.Add(2)
	go func() {
		defer bg.Done()
		e.rateController(schedCtx, bucket, start)
	}()
	go func() {
		defer bg.Done()
		e.vuSampler(schedCtx)
	}()

	e.schedule(schedCtx, iterCtx, bucket)
	bg.Wait()

	e.gracefulStop(iterCtx, cancelIters)
	e.sampleVUs()

	if err := ctx.Err(); err != nil {
		return err
	}
	return nil
}

// rateController refreshes the bucket rate from the stages every 100ms.
func (e *RampingArrivalRate) rateController(ctx context.Context, bucket *rate.LeakyBucket, start time.Time) {
	ticker := time.NewTicker(rateUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r, stage := e.config.stageAt(time.Since(start))
			bucket.SetRate(r)
			e.currentStage.Store(int32(stage))
		}
	}
}

// vuSampler records the vus and vus_max gauges once per second.
func (e *RampingArrivalRate) vuSampler(ctx context.Context) {
	ticker := time.NewTicker(vuSampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.sampleVUs()
		}
	}
}

func (e *RampingArrivalRate) sampleVUs() {
	if e.metrics != nil {
		e.metrics.SetVUs(int(e.active.Load()), int(e.allocated.Load()))
	}
}

// schedule starts one iteration per arrival until schedCtx is done.
func (e *RampingArrivalRate) schedule(schedCtx, iterCtx context.Context, bucket *rate.LeakyBucket) {
	for bucket.Wait(schedCtx) == nil {
		vu := e.getVU()
		if vu == nil {
			e.dropped.Add(1)
			if e.metrics != nil {
				e.metrics.RecordDroppedIteration()
			}
			continue
		}

		e.wg.Add(1)
		go e.runIteration(iterCtx, vu)
	}
}

// getVU returns an idle VU, spawning one if the pool is below MaxVUs.
// Returns nil when every allowed VU is busy.
func (e *RampingArrivalRate) getVU() VU {
	select {
	case vu := <-e.idle:
		return vu
	default:
	}

	e.spawnMu.Lock()
	defer e.spawnMu.Unlock()

	if int(e.allocated.Load()) >= e.config.MaxVUs {
		return nil
	}
	vu := e.scheduler.SpawnVU()
	e.allocated.Add(1)
	return vu
}

// runIteration runs a single iteration and returns the VU to the pool.
func (e *RampingArrivalRate) runIteration(ctx context.Context, vu VU) {
	defer e.wg.Done()
	defer func() { e.idle <- vu }()

	e.active.Add(1)
	defer e.active.Add(-1)

	start := time.Now()
	err := vu.RunIteration(ctx)

	if err != nil && ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		e.interrupted.Add(1)
		return
	}

	e.completed.Add(1)
	if e.metrics != nil {
		e.metrics.RecordIteration(time.Since(start))
	}
}

// gracefulStop waits up to GracefulStop for in-flight iterations, then
// cancels the ones still running and waits for them to return.
func (e *RampingArrivalRate) gracefulStop(iterCtx context.Context, cancel context.CancelFunc) {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(e.config.GracefulStop)
	defer timer.Stop()

	select {
	case <-done:
		return
	case <-iterCtx.Done():
	case <-timer.C:
	}

	cancel()
	<-done
}

// Stats returns executor statistics.
func (e *RampingArrivalRate) Stats() Stats {
	total := e.config.TotalDuration()

	var elapsed time.Duration
	if ns := e.startTime.Load(); ns != 0 {
		elapsed = time.Since(time.Unix(0, ns))
	}

	progress := 1.0
	if total > 0 {
		progress = float64(elapsed) / float64(total)
		if progress > 1 {
			progress = 1
		}
	}

	var pacer rate.LeakyBucketStats
	if b := e.bucket.Load(); b != nil {
		pacer = b.Stats()
	}

	return Stats{
		Elapsed:       elapsed,
		TotalDuration: total,
		Progress:      progress,
		ActiveVUs:     int(e.active.Load()),
		AllocatedVUs:  int(e.allocated.Load()),
		MaxVUs:        e.config.MaxVUs,
		Arrivals:      pacer.TotalArrivals,
		Completed:     e.completed.Load(),
		Interrupted:   e.interrupted.Load(),
		Dropped:       e.dropped.Load(),
		CurrentStage:  int(e.currentStage.Load()),
		TotalStages:   len(e.config.Stages),
		CurrentRate:   pacer.Rate,
	}
}

// Ensure RampingArrivalRate implements Executor
var _ Executor = (*RampingArrivalRate)(nil)
