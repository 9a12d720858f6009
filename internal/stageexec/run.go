// Package stageexec executes a single pipeline stage against a job and
// applies the queue transition semantics used by one-shot workflows (the CLI
// process command). The daemon's workflow manager embeds the same semantics
// with scheduling on top.
package stageexec

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"sublingo/internal/logging"
	"sublingo/internal/notifications"
	"sublingo/internal/queue"
	"sublingo/internal/services"
	"sublingo/internal/stage"
)

// Handler is the stage contract used by the execution helper.
type Handler interface {
	Prepare(context.Context, *queue.Job) error
	Execute(context.Context, *queue.Job) error
}

// Options controls stage execution and queue persistence behavior.
type Options struct {
	Logger     *slog.Logger
	Store      *queue.Store
	Notifier   notifications.Service
	Handler    Handler
	StageName  string
	Processing queue.Status
	Done       queue.Status
	Job        *queue.Job
}

// Run executes a stage and persists its transitions.
func Run(ctx context.Context, opts Options) error {
	if opts.Handler == nil {
		return fmt.Errorf("stage handler unavailable: %s", opts.StageName)
	}
	if opts.Store == nil {
		return fmt.Errorf("queue store is required")
	}
	if opts.Job == nil {
		return fmt.Errorf("queue job is required")
	}

	stageCtx := services.WithStage(services.WithJobID(ctx, opts.Job.ID), opts.StageName)
	stageLogger := logging.WithContext(stageCtx, opts.Logger)
	if aware, ok := opts.Handler.(stage.LoggerAware); ok {
		aware.SetLogger(stageLogger)
	}

	stageLogger.Info(
		"stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("processing_status", string(opts.Processing)),
		logging.String("file_name", strings.TrimSpace(opts.Job.FileName)),
	)

	setJobProcessingState(opts.Job, opts.Processing)
	if err := opts.Store.Update(stageCtx, opts.Job); err != nil {
		return fmt.Errorf("persist processing transition: %w", err)
	}

	started := time.Now()
	if err := opts.Handler.Prepare(stageCtx, opts.Job); err != nil {
		return handleFailure(stageCtx, stageLogger, opts.Store, opts.Notifier, opts.Job, err)
	}
	if err := opts.Store.Update(stageCtx, opts.Job); err != nil {
		return fmt.Errorf("persist stage preparation: %w", err)
	}

	if err := opts.Handler.Execute(stageCtx, opts.Job); err != nil {
		return handleFailure(stageCtx, stageLogger, opts.Store, opts.Notifier, opts.Job, err)
	}

	if opts.Job.Status == opts.Processing || opts.Job.Status == "" {
		opts.Job.Status = opts.Done
	}
	opts.Job.AppendTiming(opts.StageName, time.Since(started))
	opts.Job.LastHeartbeat = nil
	if err := opts.Store.Update(stageCtx, opts.Job); err != nil {
		return fmt.Errorf("persist stage result: %w", err)
	}

	stageLogger.Info(
		"stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("next_status", string(opts.Job.Status)),
		logging.Duration("elapsed", time.Since(started)),
	)

	return nil
}

func handleFailure(ctx context.Context, logger *slog.Logger, store *queue.Store, notifier notifications.Service, job *queue.Job, stageErr error) error {
	message := "stage failed"
	if stageErr != nil {
		message = strings.TrimSpace(stageErr.Error())
	}
	job.SetFailed(services.Kind(stageErr), message)

	logger.Error(
		"stage failed",
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String(logging.FieldErrorKind, services.Kind(stageErr)),
		logging.Error(stageErr),
	)
	if err := store.Update(ctx, job); err != nil {
		logger.Error("failed to persist stage failure", logging.Error(err))
	}

	if notifier != nil && stageErr != nil {
		if err := notifier.JobFailed(ctx, job, stageErr); err != nil {
			logger.Debug("stage error notification failed", logging.Error(err))
		}
	}

	return stageErr
}

func setJobProcessingState(job *queue.Job, processing queue.Status) {
	now := time.Now().UTC()
	job.Status = processing
	if job.ProgressStage == "" {
		job.ProgressStage = deriveStageLabel(processing)
	}
	if job.ProgressMessage == "" {
		job.ProgressMessage = fmt.Sprintf("%s started", deriveStageLabel(processing))
	}
	job.ErrorKind = ""
	job.ErrorMessage = ""
	job.LastHeartbeat = &now
}

func deriveStageLabel(status queue.Status) string {
	if status == "" {
		return ""
	}
	parts := strings.Fields(strings.ReplaceAll(string(status), "_", " "))
	for i, part := range parts {
		if part == "" {
			continue
		}
		runes := []rune(strings.ToLower(part))
		runes[0] = unicode.ToUpper(runes[0])
		parts[i] = string(runes)
	}
	return strings.Join(parts, " ")
}
