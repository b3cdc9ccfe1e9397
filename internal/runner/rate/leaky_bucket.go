// Package rate paces iteration arrivals for arrival-rate executors.
package rate

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// LeakyBucket releases arrivals at a target rate that may change while
// callers are waiting.
//
// # Algorithm
//
// The bucket accumulates credit at rate arrivals per second. Wait returns
// once a full unit of credit is available and spends it. Credit is capped at
// maxBurst, so a consumer that falls behind catches up by at most maxBurst
// arrivals instead of bursting through everything it missed.
//
// SetRate settles the credit earned at the old rate before switching, so a
// ramp made of many small rate changes keeps its phase: at 10/s with a
// SetRate every 100ms, arrivals still land every 100ms.
//
// A bucket created with a positive rate holds one arrival of credit, so the
// first arrival is released immediately. A rate of zero releases nothing
// until the rate is raised again.
//
// # Thread Safety
//
// LeakyBucket is safe for concurrent use from multiple goroutines.
//
// # Example
//
//	lb := NewLeakyBucket(100.0) // 100 arrivals per second
//
//	for lb.Wait(ctx) == nil {
//	    // start one iteration
//	}
type LeakyBucket struct {
	mu         sync.Mutex
	rate       float64 // arrivals per second
	credit     float64 // accumulated arrivals (fractional)
	maxBurst   float64
	lastUpdate time.Time
	changed    chan struct{} // closed and replaced on every SetRate

	totalArrivals atomic.Int64
}

// NewLeakyBucket creates a bucket releasing rate arrivals per second.
// Negative rates are treated as zero.
func NewLeakyBucket(rate float64) *LeakyBucket {
	return NewLeakyBucketWithBurst(rate, 1.0)
}

// NewLeakyBucketWithBurst creates a bucket that may store up to maxBurst
// arrivals while the consumer is busy.
func NewLeakyBucketWithBurst(rate float64, maxBurst float64) *LeakyBucket {
	if rate < 0 {
		rate = 0
	}
	if maxBurst < 1.0 {
		maxBurst = 1.0
	}
	credit := 0.0
	if rate > 0 {
		credit = 1.0
	}
	return &LeakyBucket{
		rate:       rate,
		credit:     credit,
		maxBurst:   maxBurst,
		lastUpdate: time.Now(),
		changed:    make(chan struct{}),
	}
}

// advanceLocked accrues credit earned since the last update.
func (lb *LeakyBucket) advanceLocked(now time.Time) {
	elapsed := now.Sub(lb.lastUpdate).Seconds()
	if elapsed > 0 {
		lb.credit += elapsed * lb.rate
		if lb.credit > lb.maxBurst {
			lb.credit = lb.maxBurst
		}
	}
	lb.lastUpdate = now
}

// creditEpsilon absorbs float error from timer wakeups landing a hair early.
const creditEpsilon = 1e-9

// Wait blocks until the next arrival is due.
//
// Returns:
//   - nil when an arrival was released
//   - ctx.Err() if the context was cancelled first
func (lb *LeakyBucket) Wait(ctx context.Context) error {
	for {
		lb.mu.Lock()
		lb.advanceLocked(time.Now())

		if lb.credit >= 1.0-creditEpsilon {
			lb.credit -= 1.0
			if lb.credit < 0 {
				lb.credit = 0
			}
			lb.mu.Unlock()
			lb.totalArrivals.Add(1)
			return nil
		}

		changed := lb.changed
		var timer *time.Timer
		var due <-chan time.Time
		if lb.rate > 0 {
			timer = time.NewTimer(time.Duration((1.0 - lb.credit) / lb.rate * float64(time.Second)))
			due = timer.C
		}
		lb.mu.Unlock()

		var err error
		select {
		case <-ctx.Done():
			err = ctx.Err()
		case <-changed:
		case <-due:
		}
		if timer != nil {
			timer.Stop()
		}
		if err != nil {
			return err
		}
	}
}

// SetRate updates the target rate. Credit earned so far is kept, and
// waiters recompute their deadline immediately.
func (lb *LeakyBucket) SetRate(rate float64) {
	if rate < 0 {
		rate = 0
	}

	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.advanceLocked(time.Now())
	if rate == lb.rate {
		return
	}
	lb.rate = rate
	close(lb.changed)
	lb.changed = make(chan struct{})
}

// Stats returns the current rate and how many arrivals were released.
func (lb *LeakyBucket) Stats() LeakyBucketStats {
	lb.mu.Lock()
	rate := lb.rate
	maxBurst := lb.maxBurst
	lb.mu.Unlock()

	return LeakyBucketStats{
		Rate:          rate,
		MaxBurst:      maxBurst,
		TotalArrivals: lb.totalArrivals.Load(),
	}
}

// LeakyBucketStats contains statistics about the leaky bucket.
type LeakyBucketStats struct {
	Rate          float64 `json:"rate"`          // arrivals per second
	MaxBurst      float64 `json:"maxBurst"`
	TotalArrivals int64   `json:"totalArrivals"` // arrivals released so far
}
