// Package deliver sends finished videos back to the chat that requested them.
package deliver

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"sublingo/internal/config"
	"sublingo/internal/logging"
	"sublingo/internal/queue"
	"sublingo/internal/services"
	"sublingo/internal/stage"
)

// Uploader sends a video file to a chat.
type Uploader interface {
	SendVideo(ctx context.Context, chatID int64, path, caption string) error
}

// Handler is the deliver stage: it checks the finished file against the
// upload ceiling and streams it back through the message channel.
type Handler struct {
	uploader     Uploader
	maxSendBytes int64
	logger       *slog.Logger
}

// NewHandler constructs the deliver stage handler.
func NewHandler(cfg *config.Config, uploader Uploader) *Handler {
	return &Handler{
		uploader:     uploader,
		maxSendBytes: cfg.MaxSendBytes(),
	}
}

// SetLogger updates the handler's logging destination.
func (h *Handler) SetLogger(logger *slog.Logger) {
	if h != nil {
		h.logger = logger
	}
}

// Prepare validates the finished output before attempting an upload.
func (h *Handler) Prepare(ctx context.Context, job *queue.Job) error {
	if strings.TrimSpace(job.OutputFile) == "" {
		return services.Wrap(services.ErrValidation, "deliver", "prepare", "job has no output file", nil)
	}
	info, err := os.Stat(job.OutputFile)
	if err != nil {
		return services.Wrap(services.ErrValidation, "deliver", "prepare", "output file missing", err)
	}
	if info.Size() > h.maxSendBytes {
		return services.Wrap(
			services.ErrValidation,
			"deliver",
			"prepare",
			fmt.Sprintf("output is %d bytes, upload limit is %d bytes", info.Size(), h.maxSendBytes),
			nil,
		)
	}
	return nil
}

// Execute uploads the finished video with a caption naming the original file.
func (h *Handler) Execute(ctx context.Context, job *queue.Job) error {
	caption := deliveryCaption(job)
	if err := h.uploader.SendVideo(ctx, job.ChatID, job.OutputFile, caption); err != nil {
		return services.Wrap(services.ErrTransient, "deliver", "send video", filepath.Base(job.OutputFile), err)
	}
	if h.logger != nil {
		h.logger.Info("video delivered",
			logging.Int64(logging.FieldJobID, job.ID),
			logging.Int64("chat_id", job.ChatID),
			logging.String("path", job.OutputFile),
		)
	}
	return nil
}

// HealthCheck verifies the handler has an uploader.
func (h *Handler) HealthCheck(ctx context.Context) stage.Health {
	if h.uploader == nil {
		return stage.Unhealthy("deliver", "uploader not configured")
	}
	return stage.Healthy("deliver")
}

func deliveryCaption(job *queue.Job) string {
	name := strings.TrimSpace(job.FileName)
	if name == "" {
		name = filepath.Base(job.OutputFile)
	}
	if job.NoSpeech {
		return fmt.Sprintf("%s (no speech detected, returned unchanged)", name)
	}
	return fmt.Sprintf("%s with subtitles", name)
}
