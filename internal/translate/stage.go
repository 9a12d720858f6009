package translate

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"sublingo/internal/queue"
	"sublingo/internal/services"
	"sublingo/internal/stage"
	"sublingo/internal/transcribe"
)

// Handler is the translate stage: it renders the transcript into every
// routed target language. Targets run concurrently; if any target fails the
// whole stage fails and nothing is kept.
type Handler struct {
	translator *Translator
	logger     *slog.Logger
}

// NewStageHandler constructs the translate stage handler.
func NewStageHandler(translator *Translator) *Handler {
	return &Handler{translator: translator}
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
		return services.Wrap(services.ErrValidation, "translate", "prepare", "job has no transcript", nil)
	}
	if len(job.Targets()) == 0 {
		return services.Wrap(services.ErrValidation, "translate", "prepare", "job has no translation targets", nil)
	}
	return nil
}

// Execute translates the transcript into every target language.
func (h *Handler) Execute(ctx context.Context, job *queue.Job) error {
	segments, err := transcribe.DecodeSegments(job.SegmentsJSON)
	if err != nil {
		return services.Wrap(services.ErrValidation, "translate", "decode transcript", "decode segments", err)
	}
	texts := make([]string, len(segments))
	for i, segment := range segments {
		texts[i] = segment.Text
	}

	targets := job.Targets()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		results  = make(map[string][]string, len(targets))
		firstErr error
	)
	for _, target := range targets {
		wg.Add(1)
		go func(target string) {
			defer wg.Done()
			translated, err := h.translator.Translate(ctx, texts, job.DetectedLanguage, target)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
					cancel()
				}
				return
			}
			results[target] = translated
		}(target)
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	job.SetTranslations(results)
	return nil
}

// HealthCheck verifies the handler has a translator.
func (h *Handler) HealthCheck(ctx context.Context) stage.Health {
	if h.translator == nil {
		return stage.Unhealthy("translate", "translator not configured")
	}
	return stage.Healthy("translate")
}
