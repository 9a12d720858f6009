// Package ingest implements the prepare stage: workspace allocation, source
// download, and the definitive post-download duration check.
package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"sublingo/internal/config"
	"sublingo/internal/logging"
	"sublingo/internal/media"
	"sublingo/internal/queue"
	"sublingo/internal/services"
	"sublingo/internal/stage"
	"sublingo/internal/telegram"
	"sublingo/internal/workspace"
)

// Downloader is the slice of the Telegram client the ingest stage needs.
type Downloader interface {
	GetFile(ctx context.Context, fileID string) (telegram.File, error)
	DownloadFile(ctx context.Context, file telegram.File, dest string) error
}

// Prober reads container metadata from a downloaded file.
type Prober interface {
	Probe(ctx context.Context, path string) (media.ProbeResult, error)
}

// Handler prepares a claimed job: it allocates the workspace, materializes
// the source video inside it, and re-validates the duration ceiling against
// the probed container metadata. The declared duration from the chat
// attachment is only a pre-admission hint; the probe is definitive.
type Handler struct {
	workspaces  *workspace.Manager
	downloader  Downloader
	prober      Prober
	maxDuration float64
	logger      *slog.Logger
}

// NewHandler constructs the prepare stage handler.
func NewHandler(cfg *config.Config, workspaces *workspace.Manager, downloader Downloader, prober Prober, logger *slog.Logger) *Handler {
	return &Handler{
		workspaces:  workspaces,
		downloader:  downloader,
		prober:      prober,
		maxDuration: float64(cfg.Limits.MaxVideoDurationSeconds),
		logger:      logging.NewComponentLogger(logger, "ingest"),
	}
}

// SetLogger updates the handler's logging destination.
func (h *Handler) SetLogger(logger *slog.Logger) {
	if h != nil {
		h.logger = logger
	}
}

// Prepare allocates the job workspace and records the artifact paths.
func (h *Handler) Prepare(ctx context.Context, job *queue.Job) error {
	ws, err := h.workspaces.Allocate(job.ID)
	if err != nil {
		return err
	}
	job.WorkspacePath = ws.Root
	job.InputFile = ws.InputPath(job.FileName)
	job.AudioFile = ws.AudioPath()
	job.SubtitleFile = ws.SubtitlePath()
	return nil
}

// Execute materializes the source video in the workspace and probes it.
func (h *Handler) Execute(ctx context.Context, job *queue.Job) error {
	if err := h.materialize(ctx, job); err != nil {
		return err
	}

	probed, err := h.prober.Probe(ctx, job.InputFile)
	if err != nil {
		return err
	}
	job.ProbedDuration = probed.DurationSeconds
	if h.maxDuration > 0 && probed.DurationSeconds > h.maxDuration {
		return services.Wrap(
			services.ErrValidation,
			"prepare",
			"validate duration",
			fmt.Sprintf("video runs %.0fs, limit is %.0fs", probed.DurationSeconds, h.maxDuration),
			nil,
		)
	}

	if h.logger != nil {
		h.logger.Info("source ready",
			logging.String("input", job.InputFile),
			logging.Float64("duration_seconds", probed.DurationSeconds),
		)
	}
	return nil
}

func (h *Handler) materialize(ctx context.Context, job *queue.Job) error {
	// Locally submitted files skip the Bot API entirely.
	if job.FileID == "" {
		if job.SourcePath == "" {
			return services.Wrap(services.ErrValidation, "prepare", "materialize", "job has neither file_id nor source path", nil)
		}
		if err := copyFile(job.SourcePath, job.InputFile); err != nil {
			return services.Wrap(services.ErrValidation, "prepare", "materialize", "copy local source", err)
		}
		return nil
	}

	file, err := h.downloader.GetFile(ctx, job.FileID)
	if err != nil {
		return services.Wrap(services.ErrTransient, "prepare", "resolve file", "telegram getFile", err)
	}
	if err := h.downloader.DownloadFile(ctx, file, job.InputFile); err != nil {
		return services.Wrap(services.ErrTransient, "prepare", "download", "telegram download", err)
	}
	return nil
}

// HealthCheck verifies the handler has everything it needs.
func (h *Handler) HealthCheck(ctx context.Context) stage.Health {
	const name = "ingest"
	if h.workspaces == nil {
		return stage.Unhealthy(name, "workspace manager not configured")
	}
	if h.prober == nil {
		return stage.Unhealthy(name, "prober not configured")
	}
	return stage.Healthy(name)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
