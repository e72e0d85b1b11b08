/*
scheduler.go - Automated reconciliation scheduler

PURPOSE:
  Periodically re-derives every client projection and shipment rollup from
  the journal and entity state, healing any drift left by crashed
  processes or manual database surgery.

DESIGN:
  - Runs a background goroutine with a configurable check interval
  - Each pass delegates to timber.Repair, which recomputes one entity per
    transaction so a long pass never holds a wide lock
  - Recompute is idempotent: a pass over a consistent database is a no-op

CONFIGURATION:
  - Interval: How often to run (default: 1 hour)
  - Enabled:  Whether the scheduler is active (default: true)

USAGE:
  scheduler := NewReconciliationScheduler(handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RecomputeAll endpoint (manual trigger)
  - timber/recompute.go: Repair
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/timber-ledger/obs"
)

// ReconciliationScheduler runs periodic full recomputation passes.
type ReconciliationScheduler struct {
	Handler  *Handler
	Interval time.Duration
	Enabled  bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewReconciliationScheduler creates a new scheduler.
func NewReconciliationScheduler(handler *Handler) *ReconciliationScheduler {
	return &ReconciliationScheduler{
		Handler:  handler,
		Interval: 1 * time.Hour,
		Enabled:  true,
		stop:     make(chan struct{}),
	}
}

// Start begins the scheduler.
func (rs *ReconciliationScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		rs.Handler.Log.Info("scheduler disabled, not starting")
		return
	}

	rs.ticker = time.NewTicker(rs.Interval)
	rs.wg.Add(1)
	go rs.run()

	rs.Handler.Log.Info("scheduler started", zap.Duration("interval", rs.Interval))
}

// Stop stops the scheduler.
func (rs *ReconciliationScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		rs.Handler.Log.Info("scheduler stopped")
	}
}

func (rs *ReconciliationScheduler) run() {
	defer rs.wg.Done()

	// Run immediately on start
	rs.runOnce()

	for {
		select {
		case <-rs.ticker.C:
			rs.runOnce()
		case <-rs.stop:
			return
		}
	}
}

func (rs *ReconciliationScheduler) runOnce() {
	ctx := context.Background()

	summary, err := rs.Handler.Repair.RecomputeAll(ctx)
	if err != nil {
		rs.Handler.Log.Error("scheduled recompute failed", zap.Error(err))
		return
	}
	obs.ObserveRecompute(summary.Took)
	rs.Handler.Log.Info("scheduled recompute completed",
		zap.Int("clients", summary.Clients),
		zap.Int("shipments", summary.Shipments),
		zap.Duration("took", summary.Took),
	)
}

// RunNow triggers an immediate pass (for testing/admin).
func (rs *ReconciliationScheduler) RunNow() {
	rs.runOnce()
}
