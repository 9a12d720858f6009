package workspace

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"sublingo/internal/config"
	"sublingo/internal/services"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.WorkDir = t.TempDir()
	cfg.Limits.MinFreeMB = 1
	return NewManager(&cfg)
}

func TestAllocateCreatesJobDirectory(t *testing.T) {
	mgr := newTestManager(t)
	ws, err := mgr.Allocate(42)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	info, err := os.Stat(ws.Root)
	if err != nil || !info.IsDir() {
		t.Fatalf("workspace root missing: %v", err)
	}
	if filepath.Base(ws.Root) != "job-42" {
		t.Fatalf("unexpected root %s", ws.Root)
	}
}

func TestAllocateRefusesFullDisk(t *testing.T) {
	mgr := newTestManager(t)
	mgr.minFreeMB = 512
	mgr.freeBytes = func(string) (uint64, error) { return 1 << 20, nil }

	_, err := mgr.Allocate(1)
	if err == nil {
		t.Fatal("expected allocation failure")
	}
	if !errors.Is(err, services.ErrResource) {
		t.Fatalf("expected resource error, got %v", err)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	mgr := newTestManager(t)
	ws, err := mgr.Allocate(7)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if err := os.WriteFile(filepath.Join(ws.Root, "audio.wav"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}

	if err := mgr.Release(ws); err != nil {
		t.Fatalf("first release: %v", err)
	}
	if _, err := os.Stat(ws.Root); !os.IsNotExist(err) {
		t.Fatalf("workspace should be gone, stat err = %v", err)
	}
	if err := mgr.Release(ws); err != nil {
		t.Fatalf("second release should be a no-op: %v", err)
	}
	if err := mgr.Release(nil); err != nil {
		t.Fatalf("nil release should be a no-op: %v", err)
	}
}

func TestArtifactPaths(t *testing.T) {
	ws := &Workspace{Root: "/work/job-3"}
	if got := ws.InputPath("../evil/movie.mp4"); got != "/work/job-3/movie.mp4" {
		t.Fatalf("input path = %s", got)
	}
	if got := ws.InputPath(""); got != "/work/job-3/input.mp4" {
		t.Fatalf("fallback input path = %s", got)
	}
	if got := ws.AudioPath(); got != "/work/job-3/audio.wav" {
		t.Fatalf("audio path = %s", got)
	}
	if got := ws.SubtitlePath(); got != "/work/job-3/subtitles.ass" {
		t.Fatalf("subtitle path = %s", got)
	}
	if got := ws.OutputPath("/work/job-3/movie.mp4"); got != "/work/job-3/movie_subtitled.mp4" {
		t.Fatalf("output path = %s", got)
	}
	if got := ws.OutputPath("/work/job-3/clip.mkv"); got != "/work/job-3/clip_subtitled.mkv" {
		t.Fatalf("output path = %s", got)
	}
}
