// Package transcribe runs speech recognition over extracted audio using a
// Whisper command-line frontend and parses its JSON output into segments.
package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"sublingo/internal/config"
	"sublingo/internal/services"
)

// Segment is one recognized utterance with its timing in seconds.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Result carries the recognizer's language detection and segment list.
// An empty segment list is a valid result: it means the audio contained no
// recognizable speech.
type Result struct {
	Language string    `json:"language"`
	Segments []Segment `json:"segments"`
}

// NoSpeech reports whether the recognizer found any usable text at all.
func (r Result) NoSpeech() bool {
	for _, segment := range r.Segments {
		if strings.TrimSpace(segment.Text) != "" {
			return false
		}
	}
	return true
}

// Service invokes the Whisper CLI and loads its JSON transcript.
type Service struct {
	binary        string
	model         string
	device        string
	computeType   string
	beamSize      int
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewService creates a transcription service from configuration.
func NewService(cfg *config.Config) *Service {
	return &Service{
		binary:      cfg.Whisper.Binary,
		model:       cfg.Whisper.Model,
		device:      cfg.Whisper.Device,
		computeType: cfg.Whisper.ComputeType,
		beamSize:    cfg.Whisper.BeamSize,
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	s.commandRunner = runner
}

// Model returns the configured model name for logging.
func (s *Service) Model() string {
	return s.model
}

func (s *Service) run(ctx context.Context, name string, args ...string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

func (s *Service) buildArgs(source, outputDir string) []string {
	return []string{
		source,
		"--model", s.model,
		"--device", s.device,
		"--compute_type", s.computeType,
		"--beam_size", strconv.Itoa(s.beamSize),
		"--output_format", "json",
		"--output_dir", outputDir,
		"--verbose", "False",
	}
}

// Transcribe runs the recognizer over a WAV file and returns the detected
// language plus timed segments. The transcript JSON is written next to the
// audio inside the job workspace and cleaned up with it.
func (s *Service) Transcribe(ctx context.Context, audioPath string) (Result, error) {
	if strings.TrimSpace(audioPath) == "" {
		return Result{}, services.Wrap(services.ErrTranscription, "transcribe", "transcribe", "audio path required", nil)
	}
	outputDir := filepath.Dir(audioPath)

	if err := s.run(ctx, s.binary, s.buildArgs(audioPath, outputDir)...); err != nil {
		if ctx.Err() != nil {
			return Result{}, services.Wrap(services.ErrTimeout, "transcribe", "transcribe", "recognizer interrupted", err)
		}
		return Result{}, services.Wrap(services.ErrTranscription, "transcribe", "transcribe", "recognizer failed", err)
	}

	transcriptPath := transcriptPathFor(audioPath, outputDir)
	result, err := loadTranscript(transcriptPath)
	if err != nil {
		return Result{}, services.Wrap(services.ErrTranscription, "transcribe", "load transcript", "read recognizer output", err)
	}
	return result, nil
}

func transcriptPathFor(audioPath, outputDir string) string {
	base := filepath.Base(audioPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(outputDir, stem+".json")
}

func loadTranscript(path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, err
	}
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return Result{}, fmt.Errorf("parse transcript %s: %w", filepath.Base(path), err)
	}
	// Whisper occasionally emits whitespace-only segments; they carry no
	// text to translate and would render as blank cues.
	kept := result.Segments[:0]
	for _, segment := range result.Segments {
		segment.Text = strings.TrimSpace(segment.Text)
		if segment.Text == "" {
			continue
		}
		kept = append(kept, segment)
	}
	result.Segments = kept
	return result, nil
}

// EncodeSegments serializes segments for persistence on the job row.
func EncodeSegments(segments []Segment) (string, error) {
	data, err := json.Marshal(segments)
	if err != nil {
		return "", fmt.Errorf("encode segments: %w", err)
	}
	return string(data), nil
}

// DecodeSegments restores segments persisted on the job row.
func DecodeSegments(encoded string) ([]Segment, error) {
	if strings.TrimSpace(encoded) == "" {
		return nil, nil
	}
	var segments []Segment
	if err := json.Unmarshal([]byte(encoded), &segments); err != nil {
		return nil, fmt.Errorf("decode segments: %w", err)
	}
	return segments, nil
}
