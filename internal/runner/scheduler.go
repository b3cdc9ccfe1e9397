package runner

import (
	"context"
	"sync/atomic"

	"github.com/lokalise/nginx-loadtest/internal/runner/executor"
)

// VUScheduler creates the VUs of one scenario.
//
// Executors call SpawnVU whenever their pool needs to grow. Every VU shares
// the runner's HTTP client for connection pooling and its console.
type VUScheduler struct {
	client  HTTPClient
	console *Console
	iterate func(ctx context.Context, vu *VU) error

	nextVUID *atomic.Int32
}

// newVUScheduler creates a scheduler. VU IDs are drawn from nextID so they
// stay unique across scenarios.
func newVUScheduler(client HTTPClient, console *Console, iterate func(context.Context, *VU) error, nextID *atomic.Int32) *VUScheduler {
	return &VUScheduler{
		client:   client,
		console:  console,
		iterate:  iterate,
		nextVUID: nextID,
	}
}

// SpawnVU creates a new VU.
func (s *VUScheduler) SpawnVU() executor.VU {
	return &VU{
		id:      int(s.nextVUID.Add(1)),
		http:    s.client,
		console: s.console,
		iterate: s.iterate,
	}
}

var _ executor.Scheduler = (*VUScheduler)(nil)
