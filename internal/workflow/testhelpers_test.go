package workflow

import (
	"context"
	"sync"
	"testing"

	"sublingo/internal/config"
	"sublingo/internal/logging"
	"sublingo/internal/queue"
	"sublingo/internal/stage"
	"sublingo/internal/workspace"
)

func newTestConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.WorkDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Workflow.WorkerCount = 1
	cfg.Workflow.QueueBound = 2
	cfg.Workflow.QueuePollInterval = 0
	cfg.Workflow.StageTimeoutSeconds = 30
	cfg.Workflow.HeartbeatInterval = 1
	cfg.Limits.MinFreeMB = 0
	return cfg
}

func newTestStore(t *testing.T) *queue.Store {
	t.Helper()
	store, err := queue.Open()
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

type callLog struct {
	mu     sync.Mutex
	stages []string
}

func (c *callLog) record(name string) {
	c.mu.Lock()
	c.stages = append(c.stages, name)
	c.mu.Unlock()
}

func (c *callLog) names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.stages))
	copy(out, c.stages)
	return out
}

func (c *callLog) contains(name string) bool {
	for _, stg := range c.names() {
		if stg == name {
			return true
		}
	}
	return false
}

type stubHandler struct {
	name    string
	log     *callLog
	prepare func(ctx context.Context, job *queue.Job) error
	execute func(ctx context.Context, job *queue.Job) error
}

func (h *stubHandler) Prepare(ctx context.Context, job *queue.Job) error {
	if h.prepare != nil {
		return h.prepare(ctx, job)
	}
	return nil
}

func (h *stubHandler) Execute(ctx context.Context, job *queue.Job) error {
	if h.log != nil {
		h.log.record(h.name)
	}
	if h.execute != nil {
		return h.execute(ctx, job)
	}
	return nil
}

func (h *stubHandler) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy(h.name)
}

type fakeNotifier struct {
	mu        sync.Mutex
	updates   []queue.Status
	completed int
	failed    int
	cancelled int
	noSpeech  int
	rejected  []string
}

func (f *fakeNotifier) JobAccepted(ctx context.Context, job *queue.Job) (int64, error) {
	return 1, nil
}

func (f *fakeNotifier) StageUpdate(ctx context.Context, job *queue.Job, status queue.Status) error {
	f.mu.Lock()
	f.updates = append(f.updates, status)
	f.mu.Unlock()
	return nil
}

func (f *fakeNotifier) JobRejected(ctx context.Context, chatID int64, reason string) error {
	f.mu.Lock()
	f.rejected = append(f.rejected, reason)
	f.mu.Unlock()
	return nil
}

func (f *fakeNotifier) JobCompleted(ctx context.Context, job *queue.Job) error {
	f.mu.Lock()
	f.completed++
	f.mu.Unlock()
	return nil
}

func (f *fakeNotifier) JobFailed(ctx context.Context, job *queue.Job, err error) error {
	f.mu.Lock()
	f.failed++
	f.mu.Unlock()
	return nil
}

func (f *fakeNotifier) JobCancelled(ctx context.Context, job *queue.Job) error {
	f.mu.Lock()
	f.cancelled++
	f.mu.Unlock()
	return nil
}

func (f *fakeNotifier) NoSpeechNotice(ctx context.Context, job *queue.Job) error {
	f.mu.Lock()
	f.noSpeech++
	f.mu.Unlock()
	return nil
}

func (f *fakeNotifier) counts() (completed, failed, cancelled, noSpeech int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completed, f.failed, f.cancelled, f.noSpeech
}

type testHarness struct {
	manager    *Manager
	store      *queue.Store
	workspaces *workspace.Manager
	notifier   *fakeNotifier
	log        *callLog
	set        StageSet
}

// newTestHarness wires a manager with passthrough stage handlers. The ingest
// stub allocates a real workspace directory so release behavior is observable.
func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	cfg := newTestConfig(t)
	store := newTestStore(t)
	workspaces := workspace.NewManager(&cfg)
	notifier := &fakeNotifier{}
	log := &callLog{}

	set := StageSet{
		Ingest: &stubHandler{name: "ingest", log: log, execute: func(ctx context.Context, job *queue.Job) error {
			ws, err := workspaces.Allocate(job.ID)
			if err != nil {
				return err
			}
			job.WorkspacePath = ws.Root
			job.InputFile = ws.InputPath(job.FileName)
			return nil
		}},
		Extract:    &stubHandler{name: "extract", log: log},
		Transcribe: &stubHandler{name: "transcribe", log: log},
		Translate:  &stubHandler{name: "translate", log: log},
		Synthesize: &stubHandler{name: "synthesize", log: log},
		Mux:        &stubHandler{name: "mux", log: log},
		Deliver:    &stubHandler{name: "deliver", log: log},
	}

	manager := NewManager(&cfg, store, workspaces, notifier, logging.NewNop())
	return &testHarness{
		manager:    manager,
		store:      store,
		workspaces: workspaces,
		notifier:   notifier,
		log:        log,
		set:        set,
	}
}

func (h *testHarness) configure() {
	h.manager.ConfigureStages(h.set)
}

func (h *testHarness) enqueue(t *testing.T, fileName string) *queue.Job {
	t.Helper()
	job, err := h.store.NewJob(context.Background(), &queue.Job{
		ChatID:   100,
		FileID:   "file-" + fileName,
		FileName: fileName,
	})
	if err != nil {
		t.Fatalf("enqueue job: %v", err)
	}
	return job
}

func (h *testHarness) claimAndRun(t *testing.T) *queue.Job {
	t.Helper()
	ctx := context.Background()
	job, err := h.store.ClaimPending(ctx)
	if err != nil {
		t.Fatalf("claim pending: %v", err)
	}
	if job == nil {
		t.Fatal("no pending job to claim")
	}
	h.manager.runJob(ctx, h.manager.logger, job)
	return job
}
