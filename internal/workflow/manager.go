package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"sublingo/internal/config"
	"sublingo/internal/logging"
	"sublingo/internal/notifications"
	"sublingo/internal/queue"
	"sublingo/internal/services"
	"sublingo/internal/stage"
	"sublingo/internal/workspace"
)

// StageSet bundles the concrete pipeline handlers the manager orchestrates.
type StageSet struct {
	Ingest     stage.Handler
	Extract    stage.Handler
	Transcribe stage.Handler
	Translate  stage.Handler
	Synthesize stage.Handler
	Mux        stage.Handler
	Deliver    stage.Handler
}

type pipelineStage struct {
	name             string
	handler          stage.Handler
	startStatus      queue.Status
	processingStatus queue.Status
	doneStatus       queue.Status
}

// Manager coordinates queue processing using registered stage handlers.
type Manager struct {
	cfg        *config.Config
	store      *queue.Store
	workspaces *workspace.Manager
	notifier   notifications.Service
	logger     *slog.Logger

	pollInterval time.Duration
	stageTimeout time.Duration
	heartbeat    *HeartbeatMonitor

	stages        []pipelineStage
	stageByStatus map[queue.Status]pipelineStage

	mu         sync.RWMutex
	running    bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	lastErr    error
	lastJob    *queue.Job
	jobCancels map[int64]context.CancelFunc
}

// NewManager constructs a workflow manager. Stages must be registered with
// ConfigureStages before Start.
func NewManager(cfg *config.Config, store *queue.Store, workspaces *workspace.Manager, notifier notifications.Service, logger *slog.Logger) *Manager {
	if notifier == nil {
		notifier = notifications.NewService(nil, logger)
	}
	return &Manager{
		cfg:          cfg,
		store:        store,
		workspaces:   workspaces,
		notifier:     notifier,
		logger:       logging.NewComponentLogger(logger, "workflow"),
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		stageTimeout: time.Duration(cfg.Workflow.StageTimeoutSeconds) * time.Second,
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
		),
		jobCancels: make(map[int64]context.CancelFunc),
	}
}

// ConfigureStages registers the pipeline chain. The claim transition keys the
// first stage under both its start and processing status so a freshly claimed
// job resolves to the ingest stage.
func (m *Manager) ConfigureStages(set StageSet) {
	m.stages = []pipelineStage{
		{name: "ingest", handler: set.Ingest, startStatus: queue.StatusPending, processingStatus: queue.StatusPreparing, doneStatus: queue.StatusWorkspaceReady},
		{name: "extract", handler: set.Extract, startStatus: queue.StatusWorkspaceReady, processingStatus: queue.StatusExtracting, doneStatus: queue.StatusAudioExtracted},
		{name: "transcribe", handler: set.Transcribe, startStatus: queue.StatusAudioExtracted, processingStatus: queue.StatusTranscribing, doneStatus: queue.StatusTranscribed},
		{name: "translate", handler: set.Translate, startStatus: queue.StatusTranscribed, processingStatus: queue.StatusTranslating, doneStatus: queue.StatusTranslated},
		{name: "synthesize", handler: set.Synthesize, startStatus: queue.StatusTranslated, processingStatus: queue.StatusSynthesizing, doneStatus: queue.StatusSubtitlesReady},
		{name: "mux", handler: set.Mux, startStatus: queue.StatusSubtitlesReady, processingStatus: queue.StatusMuxing, doneStatus: queue.StatusMuxed},
		{name: "deliver", handler: set.Deliver, startStatus: queue.StatusMuxed, processingStatus: queue.StatusDelivering, doneStatus: queue.StatusCompleted},
	}
	m.stageByStatus = make(map[queue.Status]pipelineStage, len(m.stages)*2)
	for _, stg := range m.stages {
		m.stageByStatus[stg.startStatus] = stg
		// Processing statuses resolve to their own stage so interrupted jobs
		// resume at the stage they were in.
		m.stageByStatus[stg.processingStatus] = stg
	}
}

func (m *Manager) stageForStatus(status queue.Status) (pipelineStage, bool) {
	stg, ok := m.stageByStatus[status]
	return stg, ok
}

// Admit checks the queue against the configured capacity bound. Capacity is
// the worker count plus the queue bound; anything beyond that is rejected so
// backlog stays predictable.
func (m *Manager) Admit(ctx context.Context) error {
	active, err := m.store.CountActive(ctx)
	if err != nil {
		return fmt.Errorf("count active jobs: %w", err)
	}
	limit := m.cfg.Workflow.WorkerCount + m.cfg.Workflow.QueueBound
	if active >= limit {
		return services.Wrap(
			services.ErrCapacity,
			"workflow",
			"admit",
			fmt.Sprintf("%d jobs active, capacity is %d", active, limit),
			nil,
		)
	}
	return nil
}

// CancelJob cancels the in-flight context of a running job, if any. The
// persistent cancel flag is handled by the queue store; this only interrupts
// the stage currently executing.
func (m *Manager) CancelJob(id int64) bool {
	m.mu.Lock()
	cancel, ok := m.jobCancels[id]
	m.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

func (m *Manager) registerJobCancel(id int64, cancel context.CancelFunc) {
	m.mu.Lock()
	m.jobCancels[id] = cancel
	m.mu.Unlock()
}

func (m *Manager) unregisterJobCancel(id int64) {
	m.mu.Lock()
	delete(m.jobCancels, id)
	m.mu.Unlock()
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastJob(job *queue.Job) {
	m.mu.Lock()
	if job != nil {
		copy := *job
		m.lastJob = &copy
	} else {
		m.lastJob = nil
	}
	m.mu.Unlock()
}
