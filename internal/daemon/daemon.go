package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"sublingo/internal/config"
	"sublingo/internal/logging"
	"sublingo/internal/notifications"
	"sublingo/internal/queue"
	"sublingo/internal/workflow"
)

// Daemon coordinates the background services and enforces single-instance
// execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	workflow *workflow.Manager
	bot      updateSource
	notifier notifications.Service

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Workflow     workflow.StatusSummary
	LockFilePath string
}

// New constructs a daemon with initialized dependencies. The bot may be nil
// when running without a message channel (one-shot processing).
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, wf *workflow.Manager, bot updateSource, notifier notifications.Service) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, logger, and workflow manager")
	}
	if notifier == nil {
		notifier = notifications.NewService(nil, logger)
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "sublingod.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		workflow: wf,
		bot:      bot,
		notifier: notifier,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, launches the workflow manager, and begins
// polling the message channel.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another sublingo daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}
	d.cancel = cancel

	if d.bot != nil {
		d.wg.Add(1)
		go d.pollUpdates(runCtx)
	}

	d.running.Store(true)
	d.logger.Info("sublingo daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop halts polling and processing, fails jobs still in flight, and
// releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()
	d.workflow.Stop()

	// Interrupted jobs keep their scratch directories unless swept here.
	d.workflow.ReleaseInFlight(context.Background())
	if failed, err := d.store.FailInFlight(context.Background(), queue.DaemonStopReason); err != nil {
		d.logger.Warn("failed to mark in-flight jobs", logging.Error(err))
	} else if failed > 0 {
		d.logger.Info("marked in-flight jobs failed", logging.Int64("count", failed))
	}

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("sublingo daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// ListQueue returns jobs filtered by optional statuses.
func (d *Daemon) ListQueue(ctx context.Context, statuses []queue.Status) ([]*queue.Job, error) {
	if len(statuses) == 0 {
		return d.store.List(ctx)
	}
	return d.store.List(ctx, statuses...)
}

// ClearQueue removes all jobs.
func (d *Daemon) ClearQueue(ctx context.Context) (int64, error) {
	return d.store.Clear(ctx)
}

// ClearCompleted removes only completed jobs.
func (d *Daemon) ClearCompleted(ctx context.Context) (int64, error) {
	return d.store.ClearCompleted(ctx)
}

// ClearFailed removes failed and rejected jobs.
func (d *Daemon) ClearFailed(ctx context.Context) (int64, error) {
	return d.store.ClearFailed(ctx)
}

// RetryFailed resets the given failed jobs back to pending.
func (d *Daemon) RetryFailed(ctx context.Context, ids []int64) (int64, error) {
	var reset int64
	for _, id := range ids {
		ok, err := d.store.ResetForRetry(ctx, id)
		if err != nil {
			return reset, err
		}
		if ok {
			reset++
		}
	}
	return reset, nil
}

// Cancel requests cancellation of a queued or running job.
func (d *Daemon) Cancel(ctx context.Context, id int64) (bool, error) {
	requested, err := d.store.RequestCancel(ctx, id)
	if err != nil || !requested {
		return false, err
	}
	d.workflow.CancelJob(id)
	return true, nil
}

// QueueHealth returns aggregate queue diagnostics.
func (d *Daemon) QueueHealth(ctx context.Context) (queue.HealthSummary, error) {
	return d.store.Summary(ctx)
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		Workflow:     d.workflow.Status(ctx),
		LockFilePath: d.lockPath,
	}
}
