package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// NewJob inserts a pending job for an incoming video request.
func (s *Store) NewJob(ctx context.Context, job *Job) (*Job, error) {
	if job == nil {
		return nil, errors.New("job is nil")
	}
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	status := job.Status
	if status == "" {
		status = StatusPending
	}

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO jobs (
            correlation_id, chat_id, message_id, status_message_id, file_id,
            file_name, source_path, declared_duration, targets_json, status,
            error_kind, error_message, progress_stage, progress_message,
            created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullableString(job.CorrelationID),
		job.ChatID,
		job.MessageID,
		job.StatusMessageID,
		nullableString(job.FileID),
		nullableString(job.FileName),
		nullableString(job.SourcePath),
		job.DeclaredDuration,
		nullableString(job.TargetsJSON),
		status,
		nullableString(job.ErrorKind),
		nullableString(job.ErrorMessage),
		nullableString(job.ProgressStage),
		nullableString(job.ProgressMessage),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a job by identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Update persists changes to an existing job.
func (s *Store) Update(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	job.UpdatedAt = time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE jobs
         SET correlation_id = ?, chat_id = ?, message_id = ?, status_message_id = ?,
             file_id = ?, file_name = ?, source_path = ?, declared_duration = ?,
             probed_duration = ?, detected_language = ?, targets_json = ?, status = ?,
             workspace_path = ?, input_file = ?, audio_file = ?, subtitle_file = ?,
             output_file = ?, segments_json = ?, translations_json = ?,
             no_speech = ?, cancel_requested = ?,
             error_kind = ?, error_message = ?, progress_stage = ?, progress_message = ?,
             timings_json = ?, updated_at = ?, last_heartbeat = ?
         WHERE id = ?`,
		nullableString(job.CorrelationID),
		job.ChatID,
		job.MessageID,
		job.StatusMessageID,
		nullableString(job.FileID),
		nullableString(job.FileName),
		nullableString(job.SourcePath),
		job.DeclaredDuration,
		job.ProbedDuration,
		nullableString(job.DetectedLanguage),
		nullableString(job.TargetsJSON),
		job.Status,
		nullableString(job.WorkspacePath),
		nullableString(job.InputFile),
		nullableString(job.AudioFile),
		nullableString(job.SubtitleFile),
		nullableString(job.OutputFile),
		nullableString(job.SegmentsJSON),
		nullableString(job.TranslationsJSON),
		boolToInt(job.NoSpeech),
		boolToInt(job.CancelRequested),
		nullableString(job.ErrorKind),
		nullableString(job.ErrorMessage),
		nullableString(job.ProgressStage),
		nullableString(job.ProgressMessage),
		nullableString(job.TimingsJSON),
		job.UpdatedAt.Format(time.RFC3339Nano),
		nullableTime(job.LastHeartbeat),
		job.ID,
	); err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// JobsByStatus returns jobs matching a status ordered by creation time.
func (s *Store) JobsByStatus(ctx context.Context, status Status) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE status = ? ORDER BY created_at, id`, status)
	if err != nil {
		return nil, fmt.Errorf("query by status: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// List returns jobs filtered by status set (or all jobs when no status is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + jobColumns + ` FROM jobs`
	orderClause := ` ORDER BY created_at, id`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// NextForStatuses returns the oldest job matching any of the provided statuses.
func (s *Store) NextForStatuses(ctx context.Context, statuses ...Status) (*Job, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := makePlaceholders(len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}

	query := `SELECT ` + jobColumns + ` FROM jobs WHERE status IN (` + placeholders + `) ORDER BY created_at, id LIMIT 1`
	row := s.db.QueryRowContext(ctx, query, args...)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// ClaimPending atomically moves the oldest pending job to preparing and
// returns it. Returns nil when no pending job exists. The compare-and-swap
// on status keeps two workers from claiming the same job.
func (s *Store) ClaimPending(ctx context.Context) (*Job, error) {
	ctx = ensureContext(ctx)
	for {
		candidate, err := s.NextForStatuses(ctx, StatusPending)
		if err != nil {
			return nil, fmt.Errorf("find pending job: %w", err)
		}
		if candidate == nil {
			return nil, nil
		}

		now := time.Now().UTC().Format(time.RFC3339Nano)
		res, err := s.execWithRetry(
			ctx,
			`UPDATE jobs SET status = ?, updated_at = ?, last_heartbeat = ? WHERE id = ? AND status = ?`,
			StatusPreparing,
			now,
			now,
			candidate.ID,
			StatusPending,
		)
		if err != nil {
			return nil, fmt.Errorf("claim job: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			// Lost the race to another worker; try the next pending job.
			continue
		}
		return s.GetByID(ctx, candidate.ID)
	}
}

// CountActive returns the number of jobs in non-terminal states.
func (s *Store) CountActive(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM jobs WHERE status NOT IN (?, ?, ?)`,
		StatusCompleted,
		StatusFailed,
		StatusRejected,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active jobs: %w", err)
	}
	return count, nil
}

// Summary aggregates job counts per key lifecycle states.
func (s *Store) Summary(ctx context.Context) (HealthSummary, error) {
	var summary HealthSummary
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return summary, fmt.Errorf("summarize jobs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			statusStr string
			count     int
		)
		if err := rows.Scan(&statusStr, &count); err != nil {
			return summary, err
		}
		summary.Total += count
		switch status := Status(statusStr); {
		case status == StatusPending:
			summary.Pending += count
		case status == StatusFailed || status == StatusRejected:
			summary.Failed += count
		case status == StatusCompleted:
			summary.Completed += count
		case IsProcessingStatus(status):
			summary.Processing += count
		}
	}
	return summary, rows.Err()
}

// Remove deletes a job by identifier.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Clear removes all jobs from the queue.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs`)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return res.RowsAffected()
}

// ClearCompleted removes only completed jobs from the queue.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE status = ?`, StatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return res.RowsAffected()
}

// ClearFailed removes failed and rejected jobs from the queue.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE status IN (?, ?)`, StatusFailed, StatusRejected)
	if err != nil {
		return 0, fmt.Errorf("clear failed: %w", err)
	}
	return res.RowsAffected()
}
