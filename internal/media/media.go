package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"sublingo/internal/config"
	"sublingo/internal/logging"
	"sublingo/internal/services"
)

// commandRunner executes an external binary and returns its combined output.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// outputRunner executes an external binary and returns stdout only.
type outputRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func defaultCommandRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	return cmd.CombinedOutput()
}

func defaultOutputRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	return cmd.Output()
}

// ProbeResult carries the container metadata sublingo cares about.
type ProbeResult struct {
	DurationSeconds float64
}

// Service wraps ffmpeg and ffprobe subprocess invocations for probing,
// audio extraction, and subtitle burning.
type Service struct {
	ffmpegBinary  string
	ffprobeBinary string
	timeout       time.Duration
	logger        *slog.Logger
	run           commandRunner
	probe         outputRunner
}

// NewService constructs a media service from configuration.
func NewService(cfg *config.Config, logger *slog.Logger) *Service {
	return &Service{
		ffmpegBinary:  cfg.FFmpeg.FFmpegBinary,
		ffprobeBinary: cfg.FFmpeg.FFprobeBinary,
		timeout:       time.Duration(cfg.FFmpeg.TimeoutSeconds) * time.Second,
		logger:        logging.NewComponentLogger(logger, "media"),
		run:           defaultCommandRunner,
		probe:         defaultOutputRunner,
	}
}

// WithCommandRunner allows injecting a custom ffmpeg runner for tests.
func (s *Service) WithCommandRunner(r commandRunner) {
	if s != nil && r != nil {
		s.run = r
	}
}

// WithProbeRunner allows injecting a custom ffprobe runner for tests.
func (s *Service) WithProbeRunner(r outputRunner) {
	if s != nil && r != nil {
		s.probe = r
	}
}

func (s *Service) commandContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

type ffprobeFormat struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe reads the container duration of the given media file. The probed
// duration is definitive: admission checks based on declared metadata are
// re-validated against this value after download.
func (s *Service) Probe(ctx context.Context, path string) (ProbeResult, error) {
	ctx, cancel := s.commandContext(ctx)
	defer cancel()

	args := []string{
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		path,
	}
	output, err := s.probe(ctx, s.ffprobeBinary, args...)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ProbeResult{}, services.Wrap(services.ErrTimeout, "prepare", "probe", "ffprobe timed out", err)
		}
		return ProbeResult{}, services.Wrap(services.ErrValidation, "prepare", "probe", "ffprobe failed", err)
	}

	var parsed ffprobeFormat
	if err := json.Unmarshal(output, &parsed); err != nil {
		return ProbeResult{}, services.Wrap(services.ErrValidation, "prepare", "probe", "parse ffprobe output", err)
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(parsed.Format.Duration), 64)
	if err != nil {
		return ProbeResult{}, services.Wrap(services.ErrValidation, "prepare", "probe", "container reports no duration", err)
	}
	return ProbeResult{DurationSeconds: duration}, nil
}

// ExtractAudio writes the source's audio track as a mono 16kHz WAV file
// suitable for speech recognition.
func (s *Service) ExtractAudio(ctx context.Context, source, dest string) error {
	ctx, cancel := s.commandContext(ctx)
	defer cancel()

	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		dest,
	}
	started := time.Now()
	if output, err := s.run(ctx, s.ffmpegBinary, args...); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return services.Wrap(services.ErrTimeout, "extract", "extract audio", "ffmpeg timed out", err)
		}
		detail := fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
		return services.Wrap(services.ErrExtraction, "extract", "extract audio", "ffmpeg failed", detail)
	}
	if s.logger != nil {
		s.logger.Debug("audio extracted",
			logging.String("source", source),
			logging.Duration("elapsed", time.Since(started)),
		)
	}
	return nil
}

// BurnSubtitles re-encodes the video with the subtitle document rendered
// into the picture. The audio stream is copied untouched.
func (s *Service) BurnSubtitles(ctx context.Context, source, subtitlePath, dest string) error {
	ctx, cancel := s.commandContext(ctx)
	defer cancel()

	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-vf", "ass=filename='" + escapeFilterPath(subtitlePath) + "'",
		"-c:a", "copy",
		dest,
	}
	started := time.Now()
	if output, err := s.run(ctx, s.ffmpegBinary, args...); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return services.Wrap(services.ErrTimeout, "mux", "burn subtitles", "ffmpeg timed out", err)
		}
		detail := fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
		return services.Wrap(services.ErrMux, "mux", "burn subtitles", "ffmpeg failed", detail)
	}
	if s.logger != nil {
		s.logger.Debug("subtitles burned",
			logging.String("source", source),
			logging.Duration("elapsed", time.Since(started)),
		)
	}
	return nil
}

// escapeFilterPath escapes a path for use inside an ffmpeg filtergraph
// option value. Backslashes, colons, and quotes all carry meaning there.
func escapeFilterPath(path string) string {
	replacer := strings.NewReplacer(
		`\`, `\\`,
		`:`, `\:`,
		`'`, `\'`,
	)
	return replacer.Replace(path)
}
