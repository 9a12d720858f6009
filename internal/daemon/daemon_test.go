package daemon

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"sublingo/internal/config"
	"sublingo/internal/logging"
	"sublingo/internal/notifications"
	"sublingo/internal/queue"
	"sublingo/internal/stage"
	"sublingo/internal/telegram"
	"sublingo/internal/workflow"
	"sublingo/internal/workspace"
)

type fakeBot struct {
	mu      sync.Mutex
	updates [][]telegram.Update
	sent    []string
	chats   []int64
	nextID  int64
}

func (f *fakeBot) GetUpdates(ctx context.Context, offset int64) ([]telegram.Update, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.updates) == 0 {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	batch := f.updates[0]
	f.updates = f.updates[1:]
	return batch, nil
}

func (f *fakeBot) SendMessage(ctx context.Context, chatID int64, text string) (telegram.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.sent = append(f.sent, text)
	f.chats = append(f.chats, chatID)
	return telegram.Message{MessageID: f.nextID, Chat: telegram.Chat{ID: chatID}}, nil
}

func (f *fakeBot) EditMessageText(ctx context.Context, chatID, messageID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeBot) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	copy(out, f.sent)
	return out
}

type passHandler struct{ name string }

func (h passHandler) Prepare(ctx context.Context, job *queue.Job) error { return nil }
func (h passHandler) Execute(ctx context.Context, job *queue.Job) error { return nil }
func (h passHandler) HealthCheck(ctx context.Context) stage.Health      { return stage.Healthy(h.name) }

func newTestDaemon(t *testing.T, bot *fakeBot) (*Daemon, *queue.Store, *config.Config) {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.WorkDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Workflow.WorkerCount = 1
	cfg.Workflow.QueueBound = 1
	cfg.Workflow.QueuePollInterval = 0
	cfg.Limits.MaxVideoDurationSeconds = 600

	store, err := queue.Open()
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	logger := logging.NewNop()
	workspaces := workspace.NewManager(&cfg)
	var notifier notifications.Service
	if bot != nil {
		notifier = notifications.NewService(bot, logger)
	}
	manager := workflow.NewManager(&cfg, store, workspaces, notifier, logger)
	manager.ConfigureStages(workflow.StageSet{
		Ingest:     passHandler{"ingest"},
		Extract:    passHandler{"extract"},
		Transcribe: passHandler{"transcribe"},
		Translate:  passHandler{"translate"},
		Synthesize: passHandler{"synthesize"},
		Mux:        passHandler{"mux"},
		Deliver:    passHandler{"deliver"},
	})

	var source updateSource
	if bot != nil {
		source = bot
	}
	daemon, err := New(&cfg, store, logger, manager, source, notifier)
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	return daemon, store, &cfg
}

func TestDaemonSingleInstance(t *testing.T) {
	first, store, cfg := newTestDaemon(t, nil)
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("start first: %v", err)
	}
	defer first.Stop()

	manager := workflow.NewManager(cfg, store, workspace.NewManager(cfg), nil, logging.NewNop())
	manager.ConfigureStages(workflow.StageSet{
		Ingest:     passHandler{"ingest"},
		Extract:    passHandler{"extract"},
		Transcribe: passHandler{"transcribe"},
		Translate:  passHandler{"translate"},
		Synthesize: passHandler{"synthesize"},
		Mux:        passHandler{"mux"},
		Deliver:    passHandler{"deliver"},
	})
	second, err := New(cfg, store, logging.NewNop(), manager, nil, nil)
	if err != nil {
		t.Fatalf("new second daemon: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("expected second instance to be refused")
	}
}

func TestStopFailsInFlightJobs(t *testing.T) {
	daemon, store, _ := newTestDaemon(t, nil)
	ctx := context.Background()

	job, err := store.NewJob(ctx, &queue.Job{ChatID: 1, FileID: "f", FileName: "clip.mp4"})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	job.Status = queue.StatusTranscribing
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("update: %v", err)
	}

	if err := daemon.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	daemon.Stop()

	reloaded, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status != queue.StatusFailed {
		t.Fatalf("status = %s, want failed", reloaded.Status)
	}
	if reloaded.ErrorMessage != queue.DaemonStopReason {
		t.Fatalf("error message = %q", reloaded.ErrorMessage)
	}
}

func TestStopSweepsInFlightWorkspaces(t *testing.T) {
	daemon, store, cfg := newTestDaemon(t, nil)
	ctx := context.Background()

	scratch := filepath.Join(cfg.Paths.WorkDir, "job-1")
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		t.Fatalf("mkdir scratch: %v", err)
	}
	job, err := store.NewJob(ctx, &queue.Job{ChatID: 1, FileID: "f", FileName: "clip.mp4"})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	job.Status = queue.StatusTranscribing
	job.WorkspacePath = scratch
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("update: %v", err)
	}

	if err := daemon.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	daemon.Stop()

	if _, err := os.Stat(scratch); !os.IsNotExist(err) {
		t.Fatalf("scratch dir %s survived shutdown", scratch)
	}
	reloaded, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.WorkspacePath != "" {
		t.Fatalf("workspace path not cleared: %q", reloaded.WorkspacePath)
	}
	if reloaded.Status != queue.StatusFailed {
		t.Fatalf("status = %s, want failed", reloaded.Status)
	}
}

func TestRetryFailedResetsJobs(t *testing.T) {
	daemon, store, _ := newTestDaemon(t, nil)
	ctx := context.Background()

	job, err := store.NewJob(ctx, &queue.Job{ChatID: 1, FileID: "f", FileName: "clip.mp4"})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	job.SetFailed("translation", "exhausted retries")
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("update: %v", err)
	}

	reset, err := daemon.RetryFailed(ctx, []int64{job.ID})
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if reset != 1 {
		t.Fatalf("reset = %d, want 1", reset)
	}
	reloaded, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status != queue.StatusPending {
		t.Fatalf("status = %s, want pending", reloaded.Status)
	}
}
