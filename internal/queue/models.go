package queue

import (
	"encoding/json"
	"strings"
	"time"
)

// Status represents the lifecycle of a subtitling job.
type Status string

const (
	StatusPending        Status = "pending"
	StatusPreparing      Status = "preparing"
	StatusWorkspaceReady Status = "workspace_ready"
	StatusExtracting     Status = "extracting_audio"
	StatusAudioExtracted Status = "audio_extracted"
	StatusTranscribing   Status = "transcribing"
	StatusTranscribed    Status = "transcribed"
	StatusTranslating    Status = "translating"
	StatusTranslated     Status = "translated"
	StatusSynthesizing   Status = "synthesizing"
	StatusSubtitlesReady Status = "subtitles_ready"
	StatusMuxing         Status = "muxing"
	StatusMuxed          Status = "muxed"
	StatusDelivering     Status = "delivering"
	StatusCompleted      Status = "completed"
	StatusFailed         Status = "failed"
	StatusRejected       Status = "rejected"
)

// UserCancelReason is the error message set when a user cancels a job.
const UserCancelReason = "Cancelled by user"

// DaemonStopReason is the error message set when jobs are failed due to daemon shutdown.
const DaemonStopReason = "Daemon stopped"

var allStatuses = []Status{
	StatusPending,
	StatusPreparing,
	StatusWorkspaceReady,
	StatusExtracting,
	StatusAudioExtracted,
	StatusTranscribing,
	StatusTranscribed,
	StatusTranslating,
	StatusTranslated,
	StatusSynthesizing,
	StatusSubtitlesReady,
	StatusMuxing,
	StatusMuxed,
	StatusDelivering,
	StatusCompleted,
	StatusFailed,
	StatusRejected,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusPreparing:    {},
	StatusExtracting:   {},
	StatusTranscribing: {},
	StatusTranslating:  {},
	StatusSynthesizing: {},
	StatusMuxing:       {},
	StatusDelivering:   {},
}

var terminalStatuses = map[Status]struct{}{
	StatusCompleted: {},
	StatusFailed:    {},
	StatusRejected:  {},
}

// HealthSummary describes aggregated job counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Failed     int
	Completed  int
}

// StageTiming records how long a single pipeline stage took for a job.
type StageTiming struct {
	Stage   string  `json:"stage"`
	Seconds float64 `json:"seconds"`
}

// Job represents a subtitling job held in the in-memory queue database.
type Job struct {
	ID               int64
	CorrelationID    string
	ChatID           int64
	MessageID        int64
	StatusMessageID  int64
	FileID           string
	FileName         string
	SourcePath       string
	DeclaredDuration float64
	ProbedDuration   float64
	DetectedLanguage string
	TargetsJSON      string
	Status           Status
	WorkspacePath    string
	InputFile        string
	AudioFile        string
	SubtitleFile     string
	OutputFile       string
	SegmentsJSON     string
	TranslationsJSON string
	NoSpeech         bool
	CancelRequested  bool
	ErrorKind        string
	ErrorMessage     string
	ProgressStage    string
	ProgressMessage  string
	TimingsJSON      string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	LastHeartbeat    *time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing returns true when the status reflects an in-flight operation.
func (j Job) IsProcessing() bool {
	_, ok := processingStatuses[j.Status]
	return ok
}

// IsProcessingStatus reports whether a status reflects an in-flight operation.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// IsTerminal reports whether the job reached a final state.
func (j Job) IsTerminal() bool {
	return IsTerminalStatus(j.Status)
}

// IsTerminalStatus reports whether a status is final.
func IsTerminalStatus(status Status) bool {
	_, ok := terminalStatuses[status]
	return ok
}

// Targets decodes the target-language list persisted for the job.
func (j Job) Targets() []string {
	if strings.TrimSpace(j.TargetsJSON) == "" {
		return nil
	}
	var targets []string
	if err := json.Unmarshal([]byte(j.TargetsJSON), &targets); err != nil {
		return nil
	}
	return targets
}

// SetTargets encodes and stores the target-language list.
func (j *Job) SetTargets(targets []string) {
	if len(targets) == 0 {
		j.TargetsJSON = ""
		return
	}
	data, err := json.Marshal(targets)
	if err != nil {
		return
	}
	j.TargetsJSON = string(data)
}

// Translations decodes the per-target translated lines persisted for the job.
func (j Job) Translations() (map[string][]string, error) {
	if strings.TrimSpace(j.TranslationsJSON) == "" {
		return nil, nil
	}
	var translations map[string][]string
	if err := json.Unmarshal([]byte(j.TranslationsJSON), &translations); err != nil {
		return nil, err
	}
	return translations, nil
}

// SetTranslations encodes and stores the per-target translated lines.
func (j *Job) SetTranslations(translations map[string][]string) {
	if len(translations) == 0 {
		j.TranslationsJSON = ""
		return
	}
	data, err := json.Marshal(translations)
	if err != nil {
		return
	}
	j.TranslationsJSON = string(data)
}

// Timings decodes the per-stage timing summary persisted for the job.
func (j Job) Timings() []StageTiming {
	if strings.TrimSpace(j.TimingsJSON) == "" {
		return nil
	}
	var timings []StageTiming
	if err := json.Unmarshal([]byte(j.TimingsJSON), &timings); err != nil {
		return nil
	}
	return timings
}

// AppendTiming records a stage duration in the timing summary.
func (j *Job) AppendTiming(stage string, elapsed time.Duration) {
	timings := append(j.Timings(), StageTiming{Stage: stage, Seconds: elapsed.Seconds()})
	data, err := json.Marshal(timings)
	if err != nil {
		return
	}
	j.TimingsJSON = string(data)
}

// InitProgress resets progress fields for a new stage. If ProgressStage is
// currently empty, it is set to the provided stage value; otherwise the
// existing stage is preserved to support resume scenarios.
func (j *Job) InitProgress(stage, message string) {
	if j.ProgressStage == "" {
		j.ProgressStage = stage
	}
	j.ProgressMessage = message
	j.ErrorKind = ""
	j.ErrorMessage = ""
}

// SetProgress updates both progress fields together.
func (j *Job) SetProgress(stage, message string) {
	j.ProgressStage = stage
	j.ProgressMessage = message
}

// SetFailed marks the job as failed with the given classification and message.
// Clears the heartbeat and sets progress fields appropriately.
func (j *Job) SetFailed(kind, message string) {
	j.Status = StatusFailed
	j.ErrorKind = kind
	j.ErrorMessage = message
	j.ProgressStage = "Failed"
	j.ProgressMessage = message
	j.LastHeartbeat = nil
}

// SetRejected marks the job as rejected before admission with the given reason.
func (j *Job) SetRejected(kind, message string) {
	j.Status = StatusRejected
	j.ErrorKind = kind
	j.ErrorMessage = message
	j.ProgressStage = "Rejected"
	j.ProgressMessage = message
	j.LastHeartbeat = nil
}
