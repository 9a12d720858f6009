package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"sublingo/internal/logging"
	"sublingo/internal/queue"
	"sublingo/internal/stageexec"
)

// Start begins background processing with the configured worker pool.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if len(m.stages) == 0 {
		m.mu.Unlock()
		return errors.New("workflow stages not configured")
	}
	workers := m.cfg.Workflow.WorkerCount
	if workers < 1 {
		workers = 1
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(workers)
	m.mu.Unlock()

	for i := 0; i < workers; i++ {
		go m.runWorker(runCtx, i+1)
	}
	return nil
}

// Stop terminates background processing and waits for workers to drain.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

func (m *Manager) runWorker(ctx context.Context, workerID int) {
	defer m.wg.Done()
	logger := m.logger.With(logging.Int("worker", workerID))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := m.store.ClaimPending(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.setLastError(err)
			logger.Error("failed to claim next job",
				logging.Error(err),
				logging.String(logging.FieldEventType, "queue_claim_failed"),
			)
			m.waitForJobOrShutdown(ctx)
			continue
		}
		if job == nil {
			m.waitForJobOrShutdown(ctx)
			continue
		}

		m.runJob(ctx, logger, job)
	}
}

func (m *Manager) waitForJobOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(m.pollInterval):
	}
}

// runJob drives one claimed job through the stage chain until it reaches a
// terminal status, fails, or is cancelled.
func (m *Manager) runJob(ctx context.Context, workerLogger *slog.Logger, job *queue.Job) {
	jobCtx, cancelJob := context.WithCancel(ctx)
	defer cancelJob()
	m.registerJobCancel(job.ID, cancelJob)
	defer m.unregisterJobCancel(job.ID)

	logger := workerLogger.With(
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String("request_id", uuid.NewString()),
	)

	for {
		if cancelled, err := m.cancelRequested(ctx, job); err != nil {
			m.setLastError(err)
			logger.Error("failed to read cancel flag", logging.Error(err))
			break
		} else if cancelled {
			m.finishCancelled(ctx, logger, job)
			return
		}

		stg, ok := m.stageForStatus(job.Status)
		if !ok {
			break
		}

		if err := m.notifier.StageUpdate(jobCtx, job, stg.processingStatus); err != nil {
			logger.Debug("stage notification failed", logging.Error(err))
		}

		err := m.executeStage(jobCtx, logger, stg, job)
		if err != nil {
			if ctx.Err() != nil {
				// Daemon shutdown; in-flight jobs are failed in bulk by the
				// daemon before the store closes.
				return
			}
			if errors.Is(err, context.Canceled) {
				if cancelled, cancelErr := m.cancelRequested(ctx, job); cancelErr == nil && cancelled {
					m.finishCancelled(ctx, logger, job)
					return
				}
			}
			m.setLastError(err)
			break
		}
		m.setLastJob(job)
	}

	m.finishTerminal(ctx, logger, job)
}

func (m *Manager) executeStage(ctx context.Context, logger *slog.Logger, stg pipelineStage, job *queue.Job) error {
	stageCtx := ctx
	cancel := context.CancelFunc(func() {})
	if m.stageTimeout > 0 {
		stageCtx, cancel = context.WithTimeout(ctx, m.stageTimeout)
	}
	defer cancel()

	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, job.ID)

	err := stageexec.Run(stageCtx, stageexec.Options{
		Logger:     logger,
		Store:      m.store,
		Notifier:   m.notifier,
		Handler:    stg.handler,
		StageName:  stg.name,
		Processing: stg.processingStatus,
		Done:       stg.doneStatus,
		Job:        job,
	})
	hbCancel()
	hbWG.Wait()
	return err
}

func (m *Manager) cancelRequested(ctx context.Context, job *queue.Job) (bool, error) {
	fresh, err := m.store.GetByID(ctx, job.ID)
	if err != nil {
		return false, err
	}
	if fresh == nil {
		return false, nil
	}
	job.CancelRequested = fresh.CancelRequested
	return fresh.CancelRequested, nil
}

func (m *Manager) finishCancelled(ctx context.Context, logger *slog.Logger, job *queue.Job) {
	job.SetFailed("cancelled", queue.UserCancelReason)
	if err := m.store.Update(ctx, job); err != nil {
		logger.Error("failed to persist cancellation", logging.Error(err))
	}
	if err := m.notifier.JobCancelled(ctx, job); err != nil {
		logger.Debug("cancel notification failed", logging.Error(err))
	}
	logger.Info("job cancelled",
		logging.String(logging.FieldEventType, "job_cancelled"),
	)
	m.setLastJob(job)
	m.releaseWorkspace(ctx, logger, job)
}

// finishTerminal releases the workspace and sends the final notification for
// a job that left the stage chain. Workspace release happens exactly once;
// the path is cleared after the first release and persisted.
func (m *Manager) finishTerminal(ctx context.Context, logger *slog.Logger, job *queue.Job) {
	if job.Status == queue.StatusCompleted {
		var err error
		if job.NoSpeech {
			err = m.notifier.NoSpeechNotice(ctx, job)
		} else {
			err = m.notifier.JobCompleted(ctx, job)
		}
		if err != nil {
			logger.Debug("completion notification failed", logging.Error(err))
		}
		logger.Info("job completed",
			logging.String(logging.FieldEventType, "job_completed"),
		)
	}
	m.setLastJob(job)
	m.releaseWorkspace(ctx, logger, job)
}

// ReleaseInFlight removes workspace directories still recorded on
// non-terminal jobs. Called on daemon shutdown after workers stop; without it
// interrupted jobs leave their scratch directories behind across restarts.
func (m *Manager) ReleaseInFlight(ctx context.Context) {
	jobs, err := m.store.List(ctx)
	if err != nil {
		m.logger.Error("failed to list jobs for workspace sweep", logging.Error(err))
		return
	}
	for _, job := range jobs {
		if queue.IsTerminalStatus(job.Status) || job.WorkspacePath == "" {
			continue
		}
		m.releaseWorkspace(ctx, m.logger, job)
	}
}

func (m *Manager) releaseWorkspace(ctx context.Context, logger *slog.Logger, job *queue.Job) {
	if m.workspaces == nil || job.WorkspacePath == "" {
		return
	}
	if err := m.workspaces.ReleasePath(job.WorkspacePath); err != nil {
		logger.Error("workspace release failed",
			logging.String("path", job.WorkspacePath),
			logging.Error(err),
		)
		return
	}
	job.WorkspacePath = ""
	if err := m.store.Update(ctx, job); err != nil {
		logger.Error("failed to persist workspace release", logging.Error(err))
	}
}
