package transcribe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"sublingo/internal/queue"
	"sublingo/internal/services"
)

func stageService(t *testing.T, transcript string) (*Service, string) {
	t.Helper()
	dir := t.TempDir()
	svc := newTestService()
	svc.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		return os.WriteFile(filepath.Join(dir, "audio.json"), []byte(transcript), 0o644)
	})
	return svc, filepath.Join(dir, "audio.wav")
}

func TestStageRoutesDetectedLanguage(t *testing.T) {
	svc, audioPath := stageService(t, `{"language":"zh","segments":[{"start":0,"end":2,"text":"你好"}]}`)
	handler := NewStageHandler(svc)

	job := &queue.Job{ID: 1, AudioFile: audioPath, InputFile: "/work/in.mp4"}
	if err := handler.Prepare(context.Background(), job); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if err := handler.Execute(context.Background(), job); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if job.DetectedLanguage != "zh" {
		t.Fatalf("detected language = %q", job.DetectedLanguage)
	}
	if got := job.Targets(); !reflect.DeepEqual(got, []string{"en"}) {
		t.Fatalf("targets = %v", got)
	}
	segments, err := DecodeSegments(job.SegmentsJSON)
	if err != nil {
		t.Fatalf("decode segments: %v", err)
	}
	if len(segments) != 1 || segments[0].Text != "你好" {
		t.Fatalf("segments = %+v", segments)
	}
	if job.NoSpeech {
		t.Fatal("job with speech flagged no_speech")
	}
}

func TestStageOtherLanguageTargetsBoth(t *testing.T) {
	svc, audioPath := stageService(t, `{"language":"es","segments":[{"start":0,"end":2,"text":"hola"}]}`)
	handler := NewStageHandler(svc)

	job := &queue.Job{ID: 2, AudioFile: audioPath}
	if err := handler.Execute(context.Background(), job); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got := job.Targets(); !reflect.DeepEqual(got, []string{"zh", "en"}) {
		t.Fatalf("targets = %v", got)
	}
}

func TestStageNoSpeechSkipsToDelivery(t *testing.T) {
	svc, audioPath := stageService(t, `{"language":"en","segments":[]}`)
	handler := NewStageHandler(svc)

	job := &queue.Job{ID: 3, AudioFile: audioPath, InputFile: "/work/in.mp4", Status: queue.StatusTranscribing}
	if err := handler.Execute(context.Background(), job); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if !job.NoSpeech {
		t.Fatal("expected no_speech flag")
	}
	if job.Status != queue.StatusMuxed {
		t.Fatalf("status = %s, want %s", job.Status, queue.StatusMuxed)
	}
	if job.OutputFile != job.InputFile {
		t.Fatalf("output file = %q, want the untouched input", job.OutputFile)
	}
}

func TestStagePrepareRequiresAudio(t *testing.T) {
	handler := NewStageHandler(newTestService())
	err := handler.Prepare(context.Background(), &queue.Job{})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestStageHealthReportsMissingBinary(t *testing.T) {
	svc := newTestService()
	svc.binary = filepath.Join(t.TempDir(), "missing-recognizer")
	handler := NewStageHandler(svc)

	health := handler.HealthCheck(context.Background())
	if health.Ready {
		t.Fatal("expected unhealthy stage for missing binary")
	}
}
