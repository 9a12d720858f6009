package ipc

import (
	"time"

	"sublingo/internal/queue"
)

// JobView is the queue DTO carried over the wire.
type JobView struct {
	ID               int64    `json:"id"`
	Status           string   `json:"status"`
	FileName         string   `json:"file_name"`
	ChatID           int64    `json:"chat_id"`
	DeclaredDuration float64  `json:"declared_duration"`
	DetectedLanguage string   `json:"detected_language"`
	Targets          []string `json:"targets"`
	NoSpeech         bool     `json:"no_speech"`
	ErrorKind        string   `json:"error_kind"`
	ErrorMessage     string   `json:"error_message"`
	ProgressStage    string   `json:"progress_stage"`
	ProgressMessage  string   `json:"progress_message"`
	CreatedAt        string   `json:"created_at"`
	UpdatedAt        string   `json:"updated_at"`
}

// FromJob converts a queue row into its wire representation.
func FromJob(job *queue.Job) JobView {
	if job == nil {
		return JobView{}
	}
	return JobView{
		ID:               job.ID,
		Status:           string(job.Status),
		FileName:         job.FileName,
		ChatID:           job.ChatID,
		DeclaredDuration: job.DeclaredDuration,
		DetectedLanguage: job.DetectedLanguage,
		Targets:          job.Targets(),
		NoSpeech:         job.NoSpeech,
		ErrorKind:        job.ErrorKind,
		ErrorMessage:     job.ErrorMessage,
		ProgressStage:    job.ProgressStage,
		ProgressMessage:  job.ProgressMessage,
		CreatedAt:        job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        job.UpdatedAt.Format(time.RFC3339),
	}
}

// StageHealth describes readiness of a workflow stage.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon/workflow status information.
type StatusResponse struct {
	Running     bool          `json:"running"`
	LastError   string        `json:"last_error"`
	LastJob     *JobView      `json:"last_job"`
	LockPath    string        `json:"lock_path"`
	Queue       QueueCounts   `json:"queue"`
	StageHealth []StageHealth `json:"stage_health"`
	PID         int           `json:"pid"`
}

// QueueCounts aggregates job totals by lifecycle bucket.
type QueueCounts struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Failed     int `json:"failed"`
	Completed  int `json:"completed"`
}

// StopRequest stops the daemon.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// QueueListRequest filters queue listing by status.
type QueueListRequest struct {
	Statuses []string `json:"statuses"`
}

// QueueListResponse contains queue entries.
type QueueListResponse struct {
	Jobs []JobView `json:"jobs"`
}

// QueueClearRequest removes jobs; Scope is "all", "completed", or "failed".
type QueueClearRequest struct {
	Scope string `json:"scope"`
}

// QueueClearResponse reports the number of removed entries.
type QueueClearResponse struct {
	Removed int64 `json:"removed"`
}

// QueueRetryRequest resets failed jobs back to pending.
type QueueRetryRequest struct {
	IDs []int64 `json:"ids"`
}

// QueueRetryResponse reports the number of retried jobs.
type QueueRetryResponse struct {
	Updated int64 `json:"updated"`
}

// QueueCancelRequest requests cancellation of one job.
type QueueCancelRequest struct {
	ID int64 `json:"id"`
}

// QueueCancelResponse reports whether the cancellation was accepted.
type QueueCancelResponse struct {
	Requested bool `json:"requested"`
}

// QueueHealthRequest fetches aggregate diagnostics.
type QueueHealthRequest struct{}

// QueueHealthResponse reports queue health information.
type QueueHealthResponse struct {
	Counts QueueCounts `json:"counts"`
}
