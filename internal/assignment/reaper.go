package assignment

import (
	"context"
	"time"

	"github.com/dealerdesk/lead-engine/pkg/logger"
)

const (
	// DefaultWaitTTL is how long a lead may sit on the wait queue before
	// it is expired instead of re-submitted.
	DefaultWaitTTL = 48 * time.Hour

	DefaultSweepInterval = time.Minute
	DefaultSweepLimit    = 100
)

// Reaper periodically re-submits waiting leads as assignment jobs and
// expires entries that waited past the TTL. One instance runs in the
// processor; the sweep is idempotent, so an extra instance is harmless.
type Reaper struct {
	engine   *Engine
	interval time.Duration
	ttl      time.Duration
	limit    int
	stop     chan struct{}
	done     chan struct{}
}

func NewReaper(engine *Engine, interval, ttl time.Duration, limit int) *Reaper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if ttl <= 0 {
		ttl = DefaultWaitTTL
	}
	if limit <= 0 {
		limit = DefaultSweepLimit
	}
	return &Reaper{
		engine:   engine,
		interval: interval,
		ttl:      ttl,
		limit:    limit,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (r *Reaper) Start() {
	go func() {
		defer close(r.done)

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-r.stop:
				return
			case <-ticker.C:
				r.runOnce()
			}
		}
	}()
}

func (r *Reaper) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), r.interval)
	defer cancel()

	expired, err := r.engine.ExpireStaleWaitEntries(ctx, r.ttl)
	if err != nil {
		logger.Error("wait queue expiry failed", "error", err)
	} else if expired > 0 {
		logger.Warn("expired stale wait queue entries", "count", expired)
	}

	submitted, err := r.engine.SweepWaitQueue(ctx, r.limit)
	if err != nil {
		logger.Error("wait queue sweep failed", "error", err)
		return
	}
	if submitted > 0 {
		logger.Info("re-submitted waiting leads", "count", submitted)
	}
}

func (r *Reaper) Stop() {
	close(r.stop)
	<-r.done
}
