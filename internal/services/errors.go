package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation    = errors.New("validation error")
	ErrResource      = errors.New("resource error")
	ErrExtraction    = errors.New("extraction error")
	ErrMux           = errors.New("mux error")
	ErrTranscription = errors.New("transcription error")
	ErrTranslation   = errors.New("translation error")
	ErrTimeout       = errors.New("timeout")
	ErrCapacity      = errors.New("capacity exceeded")
	ErrExternalTool  = errors.New("external tool error")
	ErrConfiguration = errors.New("configuration error")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind returns the short taxonomy label for an error, used in user-facing
// summaries and structured logs. Unclassified errors report as "internal".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrResource):
		return "resource"
	case errors.Is(err, ErrExtraction):
		return "extraction"
	case errors.Is(err, ErrMux):
		return "mux"
	case errors.Is(err, ErrTranscription):
		return "transcription"
	case errors.Is(err, ErrTranslation):
		return "translation"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrCapacity):
		return "capacity"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrExternalTool):
		return "external tool"
	case errors.Is(err, ErrTransient):
		return "transient"
	default:
		return "internal"
	}
}

// UserMessage returns a short, non-leaky description of a job failure suitable
// for the message channel. The full error chain stays in the logs.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "the video failed validation"
	case errors.Is(err, ErrResource):
		return "scratch storage could not be reserved"
	case errors.Is(err, ErrExtraction):
		return "audio could not be extracted; the video may have no audio track"
	case errors.Is(err, ErrMux):
		return "subtitles could not be burned into the video"
	case errors.Is(err, ErrTranscription):
		return "speech transcription failed"
	case errors.Is(err, ErrTranslation):
		return "translation failed after repeated attempts"
	case errors.Is(err, ErrTimeout):
		return "processing took too long and was aborted"
	case errors.Is(err, ErrCapacity):
		return "the processing queue is full; try again later"
	case errors.Is(err, ErrTransient):
		return "a temporary error occurred; please resend the video"
	default:
		return "an internal error occurred"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
