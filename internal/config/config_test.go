package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig(t *testing.T) Config {
	t.Helper()
	cfg := Default()
	base := t.TempDir()
	cfg.Paths.WorkDir = filepath.Join(base, "work")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Translator.APIKey = "test-key"
	return cfg
}

func TestDefaultValidatesWithAPIKey(t *testing.T) {
	cfg := validConfig(t)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestValidateRequiresAPIKey(t *testing.T) {
	cfg := validConfig(t)
	cfg.Translator.APIKey = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error for missing api key")
	}
	if !strings.Contains(err.Error(), "translator.api_key") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsZeroDurationCeiling(t *testing.T) {
	cfg := validConfig(t)
	cfg.Limits.MaxVideoDurationSeconds = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for zero duration ceiling")
	}
}

func TestLoadParsesFileAndExpandsPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
work_dir = "` + filepath.Join(dir, "work") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"

[translator]
api_key = "file-key"

[limits]
max_video_duration_seconds = 300
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be reported as existing")
	}
	if resolved != path {
		t.Fatalf("resolved path mismatch: %s", resolved)
	}
	if cfg.Limits.MaxVideoDurationSeconds != 300 {
		t.Fatalf("expected ceiling 300, got %d", cfg.Limits.MaxVideoDurationSeconds)
	}
	// Unset sections keep defaults.
	if cfg.Translator.BatchSize != defaultTranslatorBatchSize {
		t.Fatalf("expected default batch size, got %d", cfg.Translator.BatchSize)
	}
}

func TestEnvOverridesSecrets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[translator]
api_key = "file-key"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(EnvTranslatorAPIKey, "env-key")
	t.Setenv(EnvTelegramToken, "env-token")

	cfg, _, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Translator.APIKey != "env-key" {
		t.Fatalf("expected env override, got %q", cfg.Translator.APIKey)
	}
	if cfg.Telegram.Token != "env-token" {
		t.Fatalf("expected telegram env override, got %q", cfg.Telegram.Token)
	}
}

func TestMaxSendBytes(t *testing.T) {
	cfg := Default()
	if got := cfg.MaxSendBytes(); got != 50<<20 {
		t.Fatalf("hosted limit = %d, want 50 MB", got)
	}
	cfg.Telegram.LocalAPIURL = "http://localhost:8081"
	if got := cfg.MaxSendBytes(); got != 2<<30 {
		t.Fatalf("local limit = %d, want 2 GB", got)
	}
}

func TestSampleConfigParses(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.toml")
	if err := os.WriteFile(path, []byte(SampleConfig()), 0o644); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	t.Setenv(EnvTranslatorAPIKey, "sample-key")
	if _, _, _, err := Load(path); err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
}
