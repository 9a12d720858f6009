package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"sublingo/internal/logging"
	"sublingo/internal/queue"
)

// HeartbeatMonitor refreshes the heartbeat column for jobs while a stage is
// executing, so operators can tell a slow stage from a stuck one.
type HeartbeatMonitor struct {
	store    *queue.Store
	logger   *slog.Logger
	interval time.Duration
}

// NewHeartbeatMonitor creates a new monitor.
func NewHeartbeatMonitor(store *queue.Store, logger *slog.Logger, interval time.Duration) *HeartbeatMonitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &HeartbeatMonitor{store: store, logger: logger, interval: interval}
}

// StartLoop runs a heartbeat updater for a specific job until context
// cancellation.
func (h *HeartbeatMonitor) StartLoop(ctx context.Context, wg *sync.WaitGroup, jobID int64) {
	defer wg.Done()
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	logger := logging.NewComponentLogger(h.logger, "workflow-heartbeat")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.store.UpdateHeartbeat(ctx, jobID); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				logger.Warn("heartbeat update failed",
					logging.Int64(logging.FieldJobID, jobID),
					logging.Error(err),
				)
			}
		}
	}
}
