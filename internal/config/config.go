package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkDir string `toml:"work_dir"`
	LogDir  string `toml:"log_dir"`
}

// Telegram contains configuration for the Telegram message channel.
type Telegram struct {
	Token          string `toml:"token"`
	LocalAPIURL    string `toml:"local_api_url"`
	RequestTimeout int    `toml:"request_timeout"`
	PollTimeout    int    `toml:"poll_timeout"`
	UploadTimeout  int    `toml:"upload_timeout"`
}

// Translator contains configuration for the chat-completion translation service.
type Translator struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	BatchSize      int    `toml:"batch_size"`
	MaxAttempts    int    `toml:"max_attempts"`
}

// Whisper contains configuration for the speech-to-text engine.
type Whisper struct {
	Binary      string `toml:"binary"`
	Model       string `toml:"model"`
	Device      string `toml:"device"`
	ComputeType string `toml:"compute_type"`
	BeamSize    int    `toml:"beam_size"`
}

// FFmpeg contains configuration for the codec toolchain binaries.
type FFmpeg struct {
	FFmpegBinary   string `toml:"ffmpeg_binary"`
	FFprobeBinary  string `toml:"ffprobe_binary"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Workflow contains scheduler timing and capacity settings.
type Workflow struct {
	WorkerCount         int `toml:"worker_count"`
	QueueBound          int `toml:"queue_bound"`
	QueuePollInterval   int `toml:"queue_poll_interval"`
	StageTimeoutSeconds int `toml:"stage_timeout_seconds"`
	HeartbeatInterval   int `toml:"heartbeat_interval"`
}

// Limits contains admission and delivery ceilings.
type Limits struct {
	MaxVideoDurationSeconds int `toml:"max_video_duration_seconds"`
	MinFreeMB               int `toml:"min_free_mb"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for sublingo.
//
// Configuration sections by subsystem:
//   - Paths: work and log directories
//   - Telegram: bot token and optional local Bot API server
//   - Translator: chat-completion endpoint, model, batching and retry
//   - Whisper: speech-to-text binary and model settings
//   - FFmpeg: codec toolchain binaries and execution timeout
//   - Workflow: worker slots, queue bound, polling and stage timeouts
//   - Limits: admission duration ceiling and storage floor
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Telegram   Telegram   `toml:"telegram"`
	Translator Translator `toml:"translator"`
	Whisper    Whisper    `toml:"whisper"`
	FFmpeg     FFmpeg     `toml:"ffmpeg"`
	Workflow   Workflow   `toml:"workflow"`
	Limits     Limits     `toml:"limits"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/sublingo/config.toml")
}

// SampleConfig returns the embedded annotated sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized, with secret fields overridable
// from the environment.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("sublingo.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// MaxSendBytes returns the message channel upload ceiling. A local Bot API
// server lifts the hosted 50 MB limit to 2 GB.
func (c *Config) MaxSendBytes() int64 {
	if strings.TrimSpace(c.Telegram.LocalAPIURL) != "" {
		return 2 << 30
	}
	return 50 << 20
}

// ExpandPath expands a leading ~ and returns an absolute path.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
