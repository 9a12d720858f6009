package subtitle

import (
	"context"
	"log/slog"
	"strings"

	"sublingo/internal/logging"
	"sublingo/internal/queue"
	"sublingo/internal/services"
	"sublingo/internal/stage"
	"sublingo/internal/transcribe"
)

// Handler is the synthesize stage: it assembles the transcript and its
// translations into a styled ASS document and writes it to the workspace.
type Handler struct {
	logger *slog.Logger
}

// NewStageHandler constructs the synthesize stage handler.
func NewStageHandler() *Handler {
	return &Handler{}
}

// SetLogger updates the handler's logging destination.
func (h *Handler) SetLogger(logger *slog.Logger) {
	if h != nil {
		h.logger = logger
	}
}

// Prepare validates the stage inputs.
func (h *Handler) Prepare(ctx context.Context, job *queue.Job) error {
	if strings.TrimSpace(job.SegmentsJSON) == "" {
		return services.Wrap(services.ErrValidation, "synthesize", "prepare", "job has no transcript", nil)
	}
	if strings.TrimSpace(job.TranslationsJSON) == "" {
		return services.Wrap(services.ErrValidation, "synthesize", "prepare", "job has no translations", nil)
	}
	if strings.TrimSpace(job.SubtitleFile) == "" {
		return services.Wrap(services.ErrValidation, "synthesize", "prepare", "job has no subtitle path", nil)
	}
	return nil
}

// Execute builds the subtitle document and writes it to job.SubtitleFile.
func (h *Handler) Execute(ctx context.Context, job *queue.Job) error {
	segments, err := transcribe.DecodeSegments(job.SegmentsJSON)
	if err != nil {
		return services.Wrap(services.ErrValidation, "synthesize", "decode transcript", "decode segments", err)
	}
	translations, err := job.Translations()
	if err != nil {
		return services.Wrap(services.ErrValidation, "synthesize", "decode translations", "decode translations", err)
	}

	doc, err := Build(segments, job.DetectedLanguage, translations)
	if err != nil {
		return err
	}
	if err := doc.WriteFile(job.SubtitleFile); err != nil {
		return services.Wrap(services.ErrResource, "synthesize", "write subtitles", job.SubtitleFile, err)
	}
	if h.logger != nil {
		h.logger.Info("subtitle document written",
			logging.Int64(logging.FieldJobID, job.ID),
			logging.String("path", job.SubtitleFile),
			logging.Int("events", doc.EventCount()),
		)
	}
	return nil
}

// HealthCheck reports the synthesize stage as ready; it has no external
// dependencies.
func (h *Handler) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy("synthesize")
}
