package transcribe

import (
	"context"
	"log/slog"
	"os/exec"

	"sublingo/internal/language"
	"sublingo/internal/logging"
	"sublingo/internal/queue"
	"sublingo/internal/services"
	"sublingo/internal/stage"
)

// Handler is the transcribe stage: it runs speech recognition, records the
// detected language and segments, and routes the job to its translation
// targets. Videos without recognizable speech short-circuit the rest of the
// pipeline and are delivered untouched.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewStageHandler constructs the transcribe stage handler.
func NewStageHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// SetLogger updates the handler's logging destination.
func (h *Handler) SetLogger(logger *slog.Logger) {
	if h != nil {
		h.logger = logger
	}
}

// Prepare validates the stage inputs.
func (h *Handler) Prepare(ctx context.Context, job *queue.Job) error {
	if job.AudioFile == "" {
		return services.Wrap(services.ErrValidation, "transcribe", "prepare", "job has no audio file", nil)
	}
	return nil
}

// Execute runs recognition and routes the job.
func (h *Handler) Execute(ctx context.Context, job *queue.Job) error {
	result, err := h.service.Transcribe(ctx, job.AudioFile)
	if err != nil {
		return err
	}

	job.DetectedLanguage = language.Normalize(result.Language)
	encoded, err := EncodeSegments(result.Segments)
	if err != nil {
		return services.Wrap(services.ErrTranscription, "transcribe", "persist segments", "encode segments", err)
	}
	job.SegmentsJSON = encoded
	job.SetTargets(language.Targets(job.DetectedLanguage))

	if result.NoSpeech() {
		// Nothing to subtitle. Hand the original file straight to delivery.
		job.NoSpeech = true
		job.OutputFile = job.InputFile
		job.Status = queue.StatusMuxed
		if h.logger != nil {
			h.logger.Info("no speech detected, skipping translation",
				logging.Int64(logging.FieldJobID, job.ID),
			)
		}
	}
	return nil
}

// HealthCheck verifies the recognizer binary is reachable.
func (h *Handler) HealthCheck(ctx context.Context) stage.Health {
	const name = "transcribe"
	if h.service == nil {
		return stage.Unhealthy(name, "transcription service not configured")
	}
	if _, err := exec.LookPath(h.service.binary); err != nil {
		return stage.Unhealthy(name, "recognizer binary not found: "+h.service.binary)
	}
	return stage.Healthy(name)
}
