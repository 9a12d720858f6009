package stage

import (
	"context"
	"log/slog"

	"sublingo/internal/queue"
)

// Handler describes the contract the workflow manager needs from each
// pipeline stage.
type Handler interface {
	Prepare(context.Context, *queue.Job) error
	Execute(context.Context, *queue.Job) error
	HealthCheck(context.Context) Health
}

// LoggerAware lets a handler receive the job-scoped logger before execution.
type LoggerAware interface {
	SetLogger(*slog.Logger)
}
