// Package schedule runs background maintenance tasks for live connections.
package schedule

import (
	"context"
	"time"

	"github.com/life-stream-dev/life-stream-go-live-broker/internal/logger"
)

type Refresher interface {
	RefreshAll()
}

// PeriodicUpdate sends a keepalive to every live connection once per period.
type PeriodicUpdate struct {
	target Refresher
	period time.Duration
}

func NewPeriodicUpdate(target Refresher, period time.Duration) *PeriodicUpdate {
	return &PeriodicUpdate{target: target, period: period}
}

// Run ticks until ctx is cancelled. A panicking refresh is logged and the next tick still
// runs.
func (pu *PeriodicUpdate) Run(ctx context.Context) error {
	ticker := time.NewTicker(pu.period)
	defer ticker.Stop()
	logger.InfoF("Periodic update started, period %v", pu.period)
	for {
		select {
		case <-ctx.Done():
			logger.Debug("Periodic update stopped")
			return nil
		case <-ticker.C:
			pu.tick()
		}
	}
}

func (pu *PeriodicUpdate) tick() {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorF("Periodic update failed: %v", r)
		}
	}()
	pu.target.RefreshAll()
}
