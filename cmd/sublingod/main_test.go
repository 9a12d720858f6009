package main

import (
	"context"
	"path/filepath"
	"testing"

	"sublingo/internal/config"
	"sublingo/internal/logging"
	"sublingo/internal/queue"
)

func TestBuildDaemonWiresAllStages(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.WorkDir = t.TempDir()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Translator.APIKey = "test-key"

	store, err := queue.Open()
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	d, err := buildDaemon(&cfg, store, logging.NewNop())
	if err != nil {
		t.Fatalf("buildDaemon: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	status := d.Status(context.Background())
	if status.Running {
		t.Fatal("daemon reported running before start")
	}
	if len(status.Workflow.StageHealth) != 7 {
		t.Fatalf("stage health entries = %d, want 7", len(status.Workflow.StageHealth))
	}
	for _, name := range []string{"ingest", "extract", "transcribe", "translate", "synthesize", "mux", "deliver"} {
		if _, ok := status.Workflow.StageHealth[name]; !ok {
			t.Errorf("missing stage health entry %q", name)
		}
	}
}

func TestBuildSocketPath(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(t.TempDir(), "logs")

	expected := filepath.Join(cfg.Paths.LogDir, "sublingo.sock")
	if got := buildSocketPath(&cfg); got != expected {
		t.Fatalf("expected socket path %q, got %q", expected, got)
	}

	if got := buildSocketPath(nil); got != filepath.Join("", "sublingo.sock") {
		t.Fatalf("expected fallback socket path %q, got %q", filepath.Join("", "sublingo.sock"), got)
	}
}
