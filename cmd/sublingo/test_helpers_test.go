package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sublingo/internal/config"
	"sublingo/internal/daemon"
	"sublingo/internal/ipc"
	"sublingo/internal/logging"
	"sublingo/internal/queue"
	"sublingo/internal/stage"
	"sublingo/internal/workflow"
	"sublingo/internal/workspace"
)

type noopStage struct{ name string }

func (s noopStage) Prepare(context.Context, *queue.Job) error { return nil }
func (s noopStage) Execute(context.Context, *queue.Job) error { return nil }
func (s noopStage) HealthCheck(context.Context) stage.Health  { return stage.Healthy(s.name) }

type cliTestEnv struct {
	cfg        *config.Config
	store      *queue.Store
	daemon     *daemon.Daemon
	socketPath string
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WorkDir = filepath.Join(base, "work")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Translator.APIKey = "test-key"
	cfg.Limits.MinFreeMB = 0
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, &cfg)

	store, err := queue.Open()
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	logger := logging.NewNop()
	manager := workflow.NewManager(&cfg, store, workspace.NewManager(&cfg), nil, logger)
	manager.ConfigureStages(workflow.StageSet{
		Ingest:     noopStage{"ingest"},
		Extract:    noopStage{"extract"},
		Transcribe: noopStage{"transcribe"},
		Translate:  noopStage{"translate"},
		Synthesize: noopStage{"synthesize"},
		Mux:        noopStage{"mux"},
		Deliver:    noopStage{"deliver"},
	})
	d, err := daemon.New(&cfg, store, logger, manager, nil, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	socketPath := filepath.Join(cfg.Paths.LogDir, "cli.sock")
	srv, err := ipc.NewServer(ctx, socketPath, d, logger)
	if err != nil {
		cancel()
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping CLI test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	t.Cleanup(func() {
		cancel()
		srv.Close()
		d.Close()
	})

	return &cliTestEnv{
		cfg:        &cfg,
		store:      store,
		daemon:     d,
		socketPath: socketPath,
		configPath: configPath,
	}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\nwork_dir = %q\nlog_dir = %q\n\n[translator]\napi_key = %q\n",
		cfg.Paths.WorkDir,
		cfg.Paths.LogDir,
		cfg.Translator.APIKey,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
