package stageexec_test

import (
	"context"
	"errors"
	"testing"

	"sublingo/internal/logging"
	"sublingo/internal/queue"
	"sublingo/internal/services"
	"sublingo/internal/stageexec"
)

type scriptedHandler struct {
	prepare func(*queue.Job) error
	execute func(*queue.Job) error
}

func (h scriptedHandler) Prepare(_ context.Context, job *queue.Job) error {
	if h.prepare != nil {
		return h.prepare(job)
	}
	return nil
}

func (h scriptedHandler) Execute(_ context.Context, job *queue.Job) error {
	if h.execute != nil {
		return h.execute(job)
	}
	return nil
}

func newStoreAndJob(t *testing.T) (*queue.Store, *queue.Job) {
	t.Helper()
	store, err := queue.Open()
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	job, err := store.NewJob(context.Background(), &queue.Job{FileName: "clip.mp4"})
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	return store, job
}

func TestRunAppliesDoneStatusAndTiming(t *testing.T) {
	store, job := newStoreAndJob(t)

	err := stageexec.Run(context.Background(), stageexec.Options{
		Logger:     logging.NewNop(),
		Store:      store,
		Handler:    scriptedHandler{},
		StageName:  "extract",
		Processing: queue.StatusExtracting,
		Done:       queue.StatusAudioExtracted,
		Job:        job,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	stored, err := store.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Status != queue.StatusAudioExtracted {
		t.Fatalf("status = %s", stored.Status)
	}
	timings := stored.Timings()
	if len(timings) != 1 || timings[0].Stage != "extract" {
		t.Fatalf("timings = %+v", timings)
	}
	if stored.LastHeartbeat != nil {
		t.Fatal("heartbeat not cleared after stage completion")
	}
}

func TestRunKeepsHandlerStatusOverride(t *testing.T) {
	store, job := newStoreAndJob(t)

	err := stageexec.Run(context.Background(), stageexec.Options{
		Logger: logging.NewNop(),
		Store:  store,
		Handler: scriptedHandler{execute: func(j *queue.Job) error {
			j.Status = queue.StatusMuxed
			return nil
		}},
		StageName:  "transcribe",
		Processing: queue.StatusTranscribing,
		Done:       queue.StatusTranscribed,
		Job:        job,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	stored, err := store.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Status != queue.StatusMuxed {
		t.Fatalf("status = %s, want handler override preserved", stored.Status)
	}
}

func TestRunPersistsFailure(t *testing.T) {
	store, job := newStoreAndJob(t)

	stageErr := services.Wrap(services.ErrExtraction, "extract", "run", "ffmpeg exploded", nil)
	err := stageexec.Run(context.Background(), stageexec.Options{
		Logger:     logging.NewNop(),
		Store:      store,
		Handler:    scriptedHandler{execute: func(*queue.Job) error { return stageErr }},
		StageName:  "extract",
		Processing: queue.StatusExtracting,
		Done:       queue.StatusAudioExtracted,
		Job:        job,
	})
	if !errors.Is(err, services.ErrExtraction) {
		t.Fatalf("expected stage error back, got %v", err)
	}

	stored, getErr := store.GetByID(context.Background(), job.ID)
	if getErr != nil {
		t.Fatalf("GetByID: %v", getErr)
	}
	if stored.Status != queue.StatusFailed {
		t.Fatalf("status = %s", stored.Status)
	}
	if stored.ErrorKind != "extraction" {
		t.Fatalf("error kind = %q", stored.ErrorKind)
	}
	if stored.ErrorMessage == "" {
		t.Fatal("error message not persisted")
	}
}

func TestRunClearsPriorErrorState(t *testing.T) {
	store, job := newStoreAndJob(t)
	job.SetFailed("transient", "earlier attempt")
	if err := store.Update(context.Background(), job); err != nil {
		t.Fatalf("Update: %v", err)
	}

	err := stageexec.Run(context.Background(), stageexec.Options{
		Logger:     logging.NewNop(),
		Store:      store,
		Handler:    scriptedHandler{},
		StageName:  "extract",
		Processing: queue.StatusExtracting,
		Done:       queue.StatusAudioExtracted,
		Job:        job,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	stored, err := store.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.ErrorKind != "" || stored.ErrorMessage != "" {
		t.Fatalf("error state not cleared: %q %q", stored.ErrorKind, stored.ErrorMessage)
	}
}
