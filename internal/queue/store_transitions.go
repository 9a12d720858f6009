package queue

import (
	"context"
	"fmt"
	"time"
)

// UpdateHeartbeat updates the last heartbeat timestamp for an in-flight job.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE jobs SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
		id,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// RequestCancel sets the cancellation flag on a non-terminal job. Returns
// false when the job is unknown or already finished.
func (s *Store) RequestCancel(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET cancel_requested = 1, updated_at = ?
         WHERE id = ? AND status NOT IN (?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		StatusCompleted,
		StatusFailed,
		StatusRejected,
	)
	if err != nil {
		return false, fmt.Errorf("request cancel: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ResetForRetry moves a failed job back to pending so the workflow picks it
// up again from the start of the pipeline.
func (s *Store) ResetForRetry(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET status = ?, error_kind = NULL, error_message = NULL,
             cancel_requested = 0, progress_stage = NULL, progress_message = NULL,
             last_heartbeat = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusPending,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		StatusFailed,
	)
	if err != nil {
		return false, fmt.Errorf("reset for retry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// FailInFlight marks every non-terminal job as failed with the given message.
// Used during daemon shutdown so no job is left looking alive.
func (s *Store) FailInFlight(ctx context.Context, message string) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET status = ?, error_kind = 'transient', error_message = ?,
             progress_stage = 'Failed', progress_message = ?,
             last_heartbeat = NULL, updated_at = ?
         WHERE status NOT IN (?, ?, ?)`,
		StatusFailed,
		message,
		message,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusCompleted,
		StatusFailed,
		StatusRejected,
	)
	if err != nil {
		return 0, fmt.Errorf("fail in-flight jobs: %w", err)
	}
	return res.RowsAffected()
}
