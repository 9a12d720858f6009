package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"sublingo/internal/language"
	"sublingo/internal/logging"
	"sublingo/internal/queue"
	"sublingo/internal/services"
	"sublingo/internal/telegram"
)

// Messenger is the slice of the Telegram client the notifier needs.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) (telegram.Message, error)
	EditMessageText(ctx context.Context, chatID, messageID int64, text string) error
}

// Service defines the user-facing notification surface exposed to workflow
// components. Every update for a job lands in the same chat message, edited
// in place, so the requester sees a single evolving status line.
type Service interface {
	// JobAccepted posts the initial status message and returns its ID.
	JobAccepted(ctx context.Context, job *queue.Job) (int64, error)
	// StageUpdate rewrites the status message for a new pipeline stage.
	StageUpdate(ctx context.Context, job *queue.Job, status queue.Status) error
	// JobRejected tells the requester why their video was not admitted.
	JobRejected(ctx context.Context, chatID int64, reason string) error
	// JobCompleted announces success with a per-stage timing summary.
	JobCompleted(ctx context.Context, job *queue.Job) error
	// JobFailed reports a failure in user-safe terms.
	JobFailed(ctx context.Context, job *queue.Job, err error) error
	// JobCancelled confirms a user-requested cancellation.
	JobCancelled(ctx context.Context, job *queue.Job) error
	// NoSpeechNotice explains that the video came back without subtitles.
	NoSpeechNotice(ctx context.Context, job *queue.Job) error
}

// NewService builds a Telegram-backed notifier, or a noop when no messenger
// is supplied.
func NewService(messenger Messenger, logger *slog.Logger) Service {
	if messenger == nil {
		return noopService{}
	}
	return &telegramService{
		messenger: messenger,
		logger:    logging.NewComponentLogger(logger, "notifications"),
	}
}

type telegramService struct {
	messenger Messenger
	logger    *slog.Logger
}

var stageTexts = map[queue.Status]string{
	queue.StatusPreparing:    "Downloading your video...",
	queue.StatusExtracting:   "Extracting audio...",
	queue.StatusTranscribing: "Transcribing speech...",
	queue.StatusTranslating:  "Translating subtitles...",
	queue.StatusSynthesizing: "Rendering subtitles...",
	queue.StatusMuxing:       "Burning subtitles into the video...",
	queue.StatusDelivering:   "Uploading the result...",
}

func (s *telegramService) JobAccepted(ctx context.Context, job *queue.Job) (int64, error) {
	text := fmt.Sprintf("Queued %s for subtitling.", displayFileName(job))
	message, err := s.messenger.SendMessage(ctx, job.ChatID, text)
	if err != nil {
		return 0, fmt.Errorf("send status message: %w", err)
	}
	return message.MessageID, nil
}

func (s *telegramService) StageUpdate(ctx context.Context, job *queue.Job, status queue.Status) error {
	text, ok := stageTexts[status]
	if !ok {
		return nil
	}
	if job.DetectedLanguage != "" && status == queue.StatusTranslating {
		text = fmt.Sprintf("Detected %s. %s", language.DisplayName(job.DetectedLanguage), text)
	}
	return s.edit(ctx, job, text)
}

func (s *telegramService) JobRejected(ctx context.Context, chatID int64, reason string) error {
	if _, err := s.messenger.SendMessage(ctx, chatID, "Sorry, I can't process that video: "+reason); err != nil {
		return fmt.Errorf("send rejection: %w", err)
	}
	return nil
}

func (s *telegramService) JobCompleted(ctx context.Context, job *queue.Job) error {
	var b strings.Builder
	b.WriteString("Done! Subtitled video delivered.")
	if timings := job.Timings(); len(timings) > 0 {
		b.WriteString("\n\nTimings:")
		var total float64
		for _, timing := range timings {
			fmt.Fprintf(&b, "\n  %s: %.1fs", timing.Stage, timing.Seconds)
			total += timing.Seconds
		}
		fmt.Fprintf(&b, "\n  total: %.1fs", total)
	}
	return s.edit(ctx, job, b.String())
}

func (s *telegramService) JobFailed(ctx context.Context, job *queue.Job, err error) error {
	return s.edit(ctx, job, "Processing failed: "+services.UserMessage(err))
}

func (s *telegramService) JobCancelled(ctx context.Context, job *queue.Job) error {
	return s.edit(ctx, job, "Cancelled. The video will not be processed.")
}

func (s *telegramService) NoSpeechNotice(ctx context.Context, job *queue.Job) error {
	return s.edit(ctx, job, "No speech was detected in this video, so it is returned without subtitles.")
}

// edit rewrites the job's status message, falling back to a fresh message
// when the original can no longer be edited.
func (s *telegramService) edit(ctx context.Context, job *queue.Job, text string) error {
	if job.StatusMessageID == 0 {
		_, err := s.messenger.SendMessage(ctx, job.ChatID, text)
		return err
	}
	if err := s.messenger.EditMessageText(ctx, job.ChatID, job.StatusMessageID, text); err != nil {
		if s.logger != nil {
			s.logger.Warn("status edit failed, sending new message",
				logging.Int64("chat_id", job.ChatID),
				logging.Error(err),
			)
		}
		if _, sendErr := s.messenger.SendMessage(ctx, job.ChatID, text); sendErr != nil {
			return fmt.Errorf("edit status message: %w", err)
		}
	}
	return nil
}

func displayFileName(job *queue.Job) string {
	if name := strings.TrimSpace(job.FileName); name != "" {
		return name
	}
	return "your video"
}

type noopService struct{}

func (noopService) JobAccepted(context.Context, *queue.Job) (int64, error)      { return 0, nil }
func (noopService) StageUpdate(context.Context, *queue.Job, queue.Status) error { return nil }
func (noopService) JobRejected(context.Context, int64, string) error            { return nil }
func (noopService) JobCompleted(context.Context, *queue.Job) error              { return nil }
func (noopService) JobFailed(context.Context, *queue.Job, error) error          { return nil }
func (noopService) JobCancelled(context.Context, *queue.Job) error              { return nil }
func (noopService) NoSpeechNotice(context.Context, *queue.Job) error            { return nil }
