package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"sublingo/internal/logging"
	"sublingo/internal/queue"
	"sublingo/internal/services"
	"sublingo/internal/telegram"
)

const helpText = `Send me a video and I will send it back with bilingual subtitles.

Chinese audio gets English subtitles, English audio gets Chinese,
anything else gets both.

Commands:
  /cancel <job id> - stop a queued or running job
  /status - queue summary`

// updateSource is the slice of the Telegram client the daemon polls.
type updateSource interface {
	GetUpdates(ctx context.Context, offset int64) ([]telegram.Update, error)
	SendMessage(ctx context.Context, chatID int64, text string) (telegram.Message, error)
}

func (d *Daemon) pollUpdates(ctx context.Context) {
	defer d.wg.Done()
	logger := logging.NewComponentLogger(d.logger, "bot")

	var offset int64
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		updates, err := d.bot.GetUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("poll failed", logging.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(3 * time.Second):
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			if update.Message == nil {
				continue
			}
			d.handleMessage(ctx, logger, update.Message)
		}
	}
}

func (d *Daemon) handleMessage(ctx context.Context, logger *slog.Logger, msg *telegram.Message) {
	switch {
	case strings.HasPrefix(msg.Text, "/"):
		d.handleCommand(ctx, logger, msg)
	case msg.Video != nil || isVideoDocument(msg.Document):
		d.handleVideo(ctx, logger, msg)
	}
}

func (d *Daemon) handleCommand(ctx context.Context, logger *slog.Logger, msg *telegram.Message) {
	fields := strings.Fields(msg.Text)
	command := strings.ToLower(strings.SplitN(fields[0], "@", 2)[0])

	switch command {
	case "/start", "/help":
		d.reply(ctx, logger, msg.Chat.ID, helpText)
	case "/status":
		summary, err := d.store.Summary(ctx)
		if err != nil {
			logger.Error("queue summary failed", logging.Error(err))
			d.reply(ctx, logger, msg.Chat.ID, "Could not read the queue right now.")
			return
		}
		d.reply(ctx, logger, msg.Chat.ID, fmt.Sprintf(
			"Queue: %d pending, %d processing, %d completed, %d failed.",
			summary.Pending, summary.Processing, summary.Completed, summary.Failed,
		))
	case "/cancel":
		d.handleCancel(ctx, logger, msg, fields[1:])
	default:
		d.reply(ctx, logger, msg.Chat.ID, "Unknown command. Send /help for usage.")
	}
}

func (d *Daemon) handleCancel(ctx context.Context, logger *slog.Logger, msg *telegram.Message, args []string) {
	if len(args) == 0 {
		d.reply(ctx, logger, msg.Chat.ID, "Usage: /cancel <job id>")
		return
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		d.reply(ctx, logger, msg.Chat.ID, fmt.Sprintf("%q is not a job id.", args[0]))
		return
	}

	requested, err := d.store.RequestCancel(ctx, id)
	if err != nil {
		logger.Error("cancel request failed", logging.Int64(logging.FieldJobID, id), logging.Error(err))
		d.reply(ctx, logger, msg.Chat.ID, "Could not cancel that job right now.")
		return
	}
	if !requested {
		d.reply(ctx, logger, msg.Chat.ID, fmt.Sprintf("Job %d is already finished or unknown.", id))
		return
	}
	d.workflow.CancelJob(id)
	logger.Info("cancel requested", logging.Int64(logging.FieldJobID, id))
	d.reply(ctx, logger, msg.Chat.ID, fmt.Sprintf("Cancelling job %d.", id))
}

// handleVideo admits one incoming video: duration ceiling first, then queue
// capacity, then the job row and its status message. Rejections never
// allocate a workspace.
func (d *Daemon) handleVideo(ctx context.Context, logger *slog.Logger, msg *telegram.Message) {
	fileID, fileName, duration := videoDetails(msg)

	ceiling := float64(d.cfg.Limits.MaxVideoDurationSeconds)
	if duration > 0 && float64(duration) > ceiling {
		reason := fmt.Sprintf("it runs %ds, the limit is %.0fs", duration, ceiling)
		d.recordRejection(ctx, logger, msg, fileID, fileName, duration, "validation", reason)
		return
	}

	if err := d.workflow.Admit(ctx); err != nil {
		if errors.Is(err, services.ErrCapacity) {
			d.recordRejection(ctx, logger, msg, fileID, fileName, duration, "capacity", services.UserMessage(err))
			return
		}
		logger.Error("admission check failed", logging.Error(err))
		d.reply(ctx, logger, msg.Chat.ID, "Could not queue the video right now, try again later.")
		return
	}

	job := &queue.Job{
		CorrelationID:    uuid.NewString(),
		ChatID:           msg.Chat.ID,
		MessageID:        msg.MessageID,
		FileID:           fileID,
		FileName:         fileName,
		DeclaredDuration: float64(duration),
	}
	job.InitProgress("Queued", "waiting for a worker")

	job, err := d.store.NewJob(ctx, job)
	if err != nil {
		logger.Error("enqueue failed", logging.Error(err))
		d.reply(ctx, logger, msg.Chat.ID, "Could not queue the video right now, try again later.")
		return
	}

	statusID, err := d.notifier.JobAccepted(ctx, job)
	if err != nil {
		logger.Warn("accept notification failed", logging.Int64(logging.FieldJobID, job.ID), logging.Error(err))
	} else if statusID != 0 {
		job.StatusMessageID = statusID
		if err := d.store.Update(ctx, job); err != nil {
			logger.Warn("failed to persist status message id", logging.Int64(logging.FieldJobID, job.ID), logging.Error(err))
		}
	}

	logger.Info("video queued",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.Int64("chat_id", job.ChatID),
		logging.String("file_name", fileName),
		logging.Int64("declared_duration", duration),
	)
}

// recordRejection persists a terminal rejected row for traceability and
// tells the requester why.
func (d *Daemon) recordRejection(ctx context.Context, logger *slog.Logger, msg *telegram.Message, fileID, fileName string, duration int64, kind, reason string) {
	job := &queue.Job{
		CorrelationID:    uuid.NewString(),
		ChatID:           msg.Chat.ID,
		MessageID:        msg.MessageID,
		FileID:           fileID,
		FileName:         fileName,
		DeclaredDuration: float64(duration),
	}
	// Insert already terminal. A pending row flipped rejected afterwards
	// leaves a window where a worker could claim it.
	job.SetRejected(kind, reason)
	if _, err := d.store.NewJob(ctx, job); err != nil {
		logger.Warn("failed to record rejection", logging.Error(err))
	}

	if err := d.notifier.JobRejected(ctx, msg.Chat.ID, reason); err != nil {
		logger.Warn("rejection notification failed", logging.Error(err))
	}
	logger.Info("video rejected",
		logging.Int64("chat_id", msg.Chat.ID),
		logging.String("file_name", fileName),
		logging.String("reason", reason),
	)
}

func (d *Daemon) reply(ctx context.Context, logger *slog.Logger, chatID int64, text string) {
	if _, err := d.bot.SendMessage(ctx, chatID, text); err != nil {
		logger.Warn("reply failed", logging.Int64("chat_id", chatID), logging.Error(err))
	}
}

func videoDetails(msg *telegram.Message) (fileID, fileName string, duration int64) {
	if msg.Video != nil {
		fileID = msg.Video.FileID
		fileName = strings.TrimSpace(msg.Video.FileName)
		duration = msg.Video.Duration
	} else if msg.Document != nil {
		fileID = msg.Document.FileID
		fileName = strings.TrimSpace(msg.Document.FileName)
	}
	if fileName == "" {
		fileName = "video.mp4"
	}
	return fileID, fileName, duration
}

func isVideoDocument(doc *telegram.Document) bool {
	return doc != nil && strings.HasPrefix(doc.MimeType, "video/")
}
