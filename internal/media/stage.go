package media

import (
	"context"
	"log/slog"

	"sublingo/internal/queue"
	"sublingo/internal/services"
	"sublingo/internal/stage"
	"sublingo/internal/workspace"
)

// ExtractHandler is the extract stage: it pulls the audio track out of the
// downloaded video as a mono WAV suitable for speech recognition.
type ExtractHandler struct {
	service *Service
	logger  *slog.Logger
}

// NewExtractHandler constructs the extract stage handler.
func NewExtractHandler(service *Service) *ExtractHandler {
	return &ExtractHandler{service: service}
}

// SetLogger updates the handler's logging destination.
func (h *ExtractHandler) SetLogger(logger *slog.Logger) {
	if h != nil {
		h.logger = logger
	}
}

// Prepare validates the stage inputs.
func (h *ExtractHandler) Prepare(ctx context.Context, job *queue.Job) error {
	if job.InputFile == "" {
		return services.Wrap(services.ErrValidation, "extract", "prepare", "job has no input file", nil)
	}
	if job.AudioFile == "" {
		ws := workspace.Workspace{Root: job.WorkspacePath}
		job.AudioFile = ws.AudioPath()
	}
	return nil
}

// Execute runs the audio extraction.
func (h *ExtractHandler) Execute(ctx context.Context, job *queue.Job) error {
	return h.service.ExtractAudio(ctx, job.InputFile, job.AudioFile)
}

// HealthCheck verifies the handler has a media service.
func (h *ExtractHandler) HealthCheck(ctx context.Context) stage.Health {
	if h.service == nil {
		return stage.Unhealthy("extract", "media service not configured")
	}
	return stage.Healthy("extract")
}

// MuxHandler is the mux stage: it burns the rendered subtitle document into
// the picture and produces the deliverable file.
type MuxHandler struct {
	service *Service
	logger  *slog.Logger
}

// NewMuxHandler constructs the mux stage handler.
func NewMuxHandler(service *Service) *MuxHandler {
	return &MuxHandler{service: service}
}

// SetLogger updates the handler's logging destination.
func (h *MuxHandler) SetLogger(logger *slog.Logger) {
	if h != nil {
		h.logger = logger
	}
}

// Prepare validates the stage inputs and derives the output path.
func (h *MuxHandler) Prepare(ctx context.Context, job *queue.Job) error {
	if job.SubtitleFile == "" {
		return services.Wrap(services.ErrValidation, "mux", "prepare", "job has no subtitle file", nil)
	}
	if job.OutputFile == "" {
		ws := workspace.Workspace{Root: job.WorkspacePath}
		job.OutputFile = ws.OutputPath(job.InputFile)
	}
	return nil
}

// Execute burns the subtitles.
func (h *MuxHandler) Execute(ctx context.Context, job *queue.Job) error {
	return h.service.BurnSubtitles(ctx, job.InputFile, job.SubtitleFile, job.OutputFile)
}

// HealthCheck verifies the handler has a media service.
func (h *MuxHandler) HealthCheck(ctx context.Context) stage.Health {
	if h.service == nil {
		return stage.Unhealthy("mux", "media service not configured")
	}
	return stage.Healthy("mux")
}
