package notifications

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"sublingo/internal/logging"
	"sublingo/internal/queue"
	"sublingo/internal/services"
	"sublingo/internal/telegram"
)

type fakeMessenger struct {
	sent    []string
	edited  []string
	editErr error
	nextID  int64
}

func (f *fakeMessenger) SendMessage(ctx context.Context, chatID int64, text string) (telegram.Message, error) {
	f.sent = append(f.sent, text)
	f.nextID++
	return telegram.Message{MessageID: f.nextID, Chat: telegram.Chat{ID: chatID}}, nil
}

func (f *fakeMessenger) EditMessageText(ctx context.Context, chatID, messageID int64, text string) error {
	if f.editErr != nil {
		return f.editErr
	}
	f.edited = append(f.edited, text)
	return nil
}

func testJob() *queue.Job {
	return &queue.Job{ID: 1, ChatID: 9, StatusMessageID: 100, FileName: "clip.mp4"}
}

func TestJobAcceptedReturnsStatusMessageID(t *testing.T) {
	messenger := &fakeMessenger{}
	svc := NewService(messenger, logging.NewNop())

	id, err := svc.JobAccepted(context.Background(), testJob())
	if err != nil {
		t.Fatalf("accepted: %v", err)
	}
	if id != 1 {
		t.Fatalf("message id = %d", id)
	}
	if len(messenger.sent) != 1 || !strings.Contains(messenger.sent[0], "clip.mp4") {
		t.Fatalf("sent = %v", messenger.sent)
	}
}

func TestStageUpdateEditsInPlace(t *testing.T) {
	messenger := &fakeMessenger{}
	svc := NewService(messenger, logging.NewNop())

	if err := svc.StageUpdate(context.Background(), testJob(), queue.StatusTranscribing); err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(messenger.sent) != 0 {
		t.Fatalf("should edit, not send: %v", messenger.sent)
	}
	if len(messenger.edited) != 1 || !strings.Contains(messenger.edited[0], "Transcribing") {
		t.Fatalf("edited = %v", messenger.edited)
	}
}

func TestStageUpdateIgnoresUnmappedStatuses(t *testing.T) {
	messenger := &fakeMessenger{}
	svc := NewService(messenger, logging.NewNop())

	if err := svc.StageUpdate(context.Background(), testJob(), queue.StatusAudioExtracted); err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(messenger.edited) != 0 || len(messenger.sent) != 0 {
		t.Fatal("settled statuses should be silent")
	}
}

func TestStageUpdateFallsBackToSendOnEditFailure(t *testing.T) {
	messenger := &fakeMessenger{editErr: errors.New("message to edit not found")}
	svc := NewService(messenger, logging.NewNop())

	if err := svc.StageUpdate(context.Background(), testJob(), queue.StatusMuxing); err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(messenger.sent) != 1 {
		t.Fatalf("expected fallback send, got %v", messenger.sent)
	}
}

func TestJobCompletedIncludesTimings(t *testing.T) {
	messenger := &fakeMessenger{}
	svc := NewService(messenger, logging.NewNop())
	job := testJob()
	job.AppendTiming("transcribe", 4*time.Second)
	job.AppendTiming("translate", 6*time.Second)

	if err := svc.JobCompleted(context.Background(), job); err != nil {
		t.Fatalf("completed: %v", err)
	}
	text := messenger.edited[0]
	for _, want := range []string{"transcribe: 4.0s", "translate: 6.0s", "total: 10.0s"} {
		if !strings.Contains(text, want) {
			t.Fatalf("summary missing %q: %s", want, text)
		}
	}
}

func TestJobFailedNeverLeaksDetail(t *testing.T) {
	messenger := &fakeMessenger{}
	svc := NewService(messenger, logging.NewNop())
	err := services.Wrap(services.ErrTranslation, "translate", "batch", "api_key=sk-secret leaked", nil)

	if err := svc.JobFailed(context.Background(), testJob(), err); err != nil {
		t.Fatalf("failed notice: %v", err)
	}
	if strings.Contains(messenger.edited[0], "sk-secret") {
		t.Fatalf("user message leaked internals: %s", messenger.edited[0])
	}
}

func TestNoopServiceIsSilent(t *testing.T) {
	svc := NewService(nil, logging.NewNop())
	if _, err := svc.JobAccepted(context.Background(), testJob()); err != nil {
		t.Fatalf("noop accepted: %v", err)
	}
	if err := svc.JobCompleted(context.Background(), testJob()); err != nil {
		t.Fatalf("noop completed: %v", err)
	}
}
