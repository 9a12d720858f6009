package queue

import (
	"database/sql"
	"errors"
	"time"
)

const jobColumns = "id, correlation_id, chat_id, message_id, status_message_id, file_id, file_name, source_path, declared_duration, probed_duration, detected_language, targets_json, status, workspace_path, input_file, audio_file, subtitle_file, output_file, segments_json, translations_json, no_speech, cancel_requested, error_kind, error_message, progress_stage, progress_message, timings_json, created_at, updated_at, last_heartbeat"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id               int64
		correlationID    sql.NullString
		chatID           sql.NullInt64
		messageID        sql.NullInt64
		statusMessageID  sql.NullInt64
		fileID           sql.NullString
		fileName         sql.NullString
		sourcePath       sql.NullString
		declaredDuration sql.NullFloat64
		probedDuration   sql.NullFloat64
		detectedLanguage sql.NullString
		targetsJSON      sql.NullString
		statusStr        string
		workspacePath    sql.NullString
		inputFile        sql.NullString
		audioFile        sql.NullString
		subtitleFile     sql.NullString
		outputFile       sql.NullString
		segmentsJSON     sql.NullString
		translationsJSON sql.NullString
		noSpeech         sql.NullInt64
		cancelRequested  sql.NullInt64
		errorKind        sql.NullString
		errorMessage     sql.NullString
		progressStage    sql.NullString
		progressMessage  sql.NullString
		timingsJSON      sql.NullString
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
		lastHeartbeatRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&correlationID,
		&chatID,
		&messageID,
		&statusMessageID,
		&fileID,
		&fileName,
		&sourcePath,
		&declaredDuration,
		&probedDuration,
		&detectedLanguage,
		&targetsJSON,
		&statusStr,
		&workspacePath,
		&inputFile,
		&audioFile,
		&subtitleFile,
		&outputFile,
		&segmentsJSON,
		&translationsJSON,
		&noSpeech,
		&cancelRequested,
		&errorKind,
		&errorMessage,
		&progressStage,
		&progressMessage,
		&timingsJSON,
		&createdRaw,
		&updatedRaw,
		&lastHeartbeatRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:               id,
		CorrelationID:    correlationID.String,
		ChatID:           chatID.Int64,
		MessageID:        messageID.Int64,
		StatusMessageID:  statusMessageID.Int64,
		FileID:           fileID.String,
		FileName:         fileName.String,
		SourcePath:       sourcePath.String,
		DeclaredDuration: declaredDuration.Float64,
		ProbedDuration:   probedDuration.Float64,
		DetectedLanguage: detectedLanguage.String,
		TargetsJSON:      targetsJSON.String,
		Status:           Status(statusStr),
		WorkspacePath:    workspacePath.String,
		InputFile:        inputFile.String,
		AudioFile:        audioFile.String,
		SubtitleFile:     subtitleFile.String,
		OutputFile:       outputFile.String,
		SegmentsJSON:     segmentsJSON.String,
		TranslationsJSON: translationsJSON.String,
		ErrorKind:        errorKind.String,
		ErrorMessage:     errorMessage.String,
		ProgressStage:    progressStage.String,
		ProgressMessage:  progressMessage.String,
		TimingsJSON:      timingsJSON.String,
	}
	if noSpeech.Valid {
		job.NoSpeech = noSpeech.Int64 != 0
	}
	if cancelRequested.Valid {
		job.CancelRequested = cancelRequested.Int64 != 0
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			job.LastHeartbeat = &heartbeat
		}
	}
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	v := value.UTC().Format(time.RFC3339Nano)
	return v
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
