package master

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// recoveryHandler is invoked exactly once per worker that the health
// monitor declares dead. It is satisfied by (*Master).recoverWorker.
type recoveryHandler func(workerID string)

// healthMonitor periodically sweeps the registry for workers that have
// gone silent past the heartbeat timeout. A worker is handed to onDead
// at most once: Registry.MarkDead's
// single-shot latch makes this safe to race against a connection's own
// read-failure path declaring the same worker dead independently.
type healthMonitor struct {
	registry *Registry
	timeout  time.Duration
	interval time.Duration
	onDead   recoveryHandler
	log      *logrus.Entry
}

func newHealthMonitor(registry *Registry, timeout, interval time.Duration, onDead recoveryHandler, log *logrus.Entry) *healthMonitor {
	return &healthMonitor{
		registry: registry,
		timeout:  timeout,
		interval: interval,
		onDead:   onDead,
		log:      log,
	}
}

// Run blocks, sweeping every interval until ctx is cancelled.
func (h *healthMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.sweep()
		}
	}
}

func (h *healthMonitor) sweep() {
	now := time.Now()
	for _, rec := range h.registry.LiveWorkers() {
		if now.Sub(rec.LastHeartbeat()) <= h.timeout {
			continue
		}
		if _, dead := h.registry.MarkDead(rec.ID); dead {
			h.log.WithField("workerId", rec.ID).Warn("worker heartbeat expired, declaring dead")
			h.onDead(rec.ID)
		}
	}
}
