package daemon

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"sublingo/internal/logging"
	"sublingo/internal/queue"
	"sublingo/internal/telegram"
)

func videoMessage(chatID int64, fileName string, duration int64) *telegram.Message {
	return &telegram.Message{
		MessageID: 10,
		Chat:      telegram.Chat{ID: chatID},
		Video: &telegram.Video{
			FileID:   "file-" + fileName,
			FileName: fileName,
			MimeType: "video/mp4",
			Duration: duration,
		},
	}
}

func TestHandleVideoQueuesJob(t *testing.T) {
	bot := &fakeBot{}
	daemon, store, _ := newTestDaemon(t, bot)
	ctx := context.Background()

	daemon.handleMessage(ctx, logging.NewNop(), videoMessage(55, "clip.mp4", 120))

	jobs, err := store.List(ctx, queue.StatusPending)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("pending jobs = %d, want 1", len(jobs))
	}
	job := jobs[0]
	if job.ChatID != 55 || job.FileID != "file-clip.mp4" || job.FileName != "clip.mp4" {
		t.Fatalf("job fields = %+v", job)
	}
	if job.DeclaredDuration != 120 {
		t.Fatalf("declared duration = %v", job.DeclaredDuration)
	}
	if job.CorrelationID == "" {
		t.Fatal("correlation id not set")
	}
	if job.StatusMessageID == 0 {
		t.Fatal("status message id not persisted")
	}
}

func TestHandleVideoRejectsOverDurationCeiling(t *testing.T) {
	bot := &fakeBot{}
	daemon, store, _ := newTestDaemon(t, bot)
	ctx := context.Background()

	// Ceiling is 600 seconds.
	daemon.handleMessage(ctx, logging.NewNop(), videoMessage(55, "long.mp4", 700))

	pending, err := store.List(ctx, queue.StatusPending)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending jobs = %d, want 0", len(pending))
	}
	rejected, err := store.List(ctx, queue.StatusRejected)
	if err != nil {
		t.Fatalf("list rejected: %v", err)
	}
	if len(rejected) != 1 {
		t.Fatalf("rejected jobs = %d, want 1", len(rejected))
	}
	if rejected[0].WorkspacePath != "" {
		t.Fatalf("rejected job has workspace %q", rejected[0].WorkspacePath)
	}
	found := false
	for _, text := range bot.messages() {
		if strings.Contains(text, "can't process") {
			found = true
		}
	}
	if !found {
		t.Fatalf("no rejection message sent: %v", bot.messages())
	}
}

func TestRejectedJobIsNeverClaimable(t *testing.T) {
	bot := &fakeBot{}
	daemon, store, _ := newTestDaemon(t, bot)
	ctx := context.Background()

	// The rejected row must be terminal from the moment it exists; a pending
	// row flipped afterwards could be claimed by a worker in between.
	daemon.handleMessage(ctx, logging.NewNop(), videoMessage(55, "long.mp4", 700))

	claimed, err := store.ClaimPending(ctx)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed != nil {
		t.Fatalf("claimed rejected job %d in status %s", claimed.ID, claimed.Status)
	}
	rejected, err := store.List(ctx, queue.StatusRejected)
	if err != nil {
		t.Fatalf("list rejected: %v", err)
	}
	if len(rejected) != 1 || rejected[0].ErrorKind != "validation" {
		t.Fatalf("rejected = %+v", rejected)
	}
}

func TestHandleVideoRejectsAtCapacity(t *testing.T) {
	bot := &fakeBot{}
	daemon, store, _ := newTestDaemon(t, bot)
	ctx := context.Background()

	// Capacity is worker_count (1) + queue_bound (1).
	for i := 0; i < 2; i++ {
		if _, err := store.NewJob(ctx, &queue.Job{ChatID: 1, FileID: fmt.Sprintf("f%d", i), FileName: "clip.mp4"}); err != nil {
			t.Fatalf("seed job: %v", err)
		}
	}

	daemon.handleMessage(ctx, logging.NewNop(), videoMessage(55, "clip.mp4", 30))

	rejected, err := store.List(ctx, queue.StatusRejected)
	if err != nil {
		t.Fatalf("list rejected: %v", err)
	}
	if len(rejected) != 1 {
		t.Fatalf("rejected jobs = %d, want 1", len(rejected))
	}
	if rejected[0].ErrorKind != "capacity" {
		t.Fatalf("error kind = %q", rejected[0].ErrorKind)
	}
}

func TestHandleCancelCommand(t *testing.T) {
	bot := &fakeBot{}
	daemon, store, _ := newTestDaemon(t, bot)
	ctx := context.Background()

	job, err := store.NewJob(ctx, &queue.Job{ChatID: 55, FileID: "f", FileName: "clip.mp4"})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	msg := &telegram.Message{Chat: telegram.Chat{ID: 55}, Text: fmt.Sprintf("/cancel %d", job.ID)}
	daemon.handleMessage(ctx, logging.NewNop(), msg)

	reloaded, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !reloaded.CancelRequested {
		t.Fatal("cancel flag not set")
	}

	msg.Text = "/cancel 9999"
	daemon.handleMessage(ctx, logging.NewNop(), msg)
	found := false
	for _, text := range bot.messages() {
		if strings.Contains(text, "already finished or unknown") {
			found = true
		}
	}
	if !found {
		t.Fatalf("no unknown-job reply: %v", bot.messages())
	}
}

func TestHandleStartSendsHelp(t *testing.T) {
	bot := &fakeBot{}
	daemon, _, _ := newTestDaemon(t, bot)

	daemon.handleMessage(context.Background(), logging.NewNop(), &telegram.Message{
		Chat: telegram.Chat{ID: 55},
		Text: "/start",
	})

	messages := bot.messages()
	if len(messages) != 1 || !strings.Contains(messages[0], "bilingual subtitles") {
		t.Fatalf("help reply = %v", messages)
	}
}

func TestVideoDocumentAdmitted(t *testing.T) {
	bot := &fakeBot{}
	daemon, store, _ := newTestDaemon(t, bot)
	ctx := context.Background()

	daemon.handleMessage(ctx, logging.NewNop(), &telegram.Message{
		Chat: telegram.Chat{ID: 55},
		Document: &telegram.Document{
			FileID:   "doc-1",
			FileName: "movie.mkv",
			MimeType: "video/x-matroska",
		},
	})

	jobs, err := store.List(ctx, queue.StatusPending)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(jobs) != 1 || jobs[0].FileName != "movie.mkv" {
		t.Fatalf("jobs = %+v", jobs)
	}
}
