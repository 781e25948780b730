package queue

import (
	"database/sql"
	"errors"
	"time"
)

const jobColumns = "id, source_url, fingerprint, title, status, run_token, target_language, video_file, silent_video_file, media_info_json, primary_transcript, secondary_transcript, visual_transcript, merged_transcript, enhanced_transcript, script_file, script_text, speech_file, speech_speed, final_file, published_url, error_message, created_at, updated_at, progress_stage, progress_percent, progress_message, metadata_json, last_heartbeat, review_status, review_note, human_edited, transcription_note, warnings"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id                  int64
		sourceURL           string
		fingerprint         string
		title               sql.NullString
		statusStr           string
		runToken            sql.NullString
		targetLanguage      sql.NullString
		videoFile           sql.NullString
		silentVideoFile     sql.NullString
		mediaInfo           sql.NullString
		primaryTranscript   sql.NullString
		secondaryTranscript sql.NullString
		visualTranscript    sql.NullString
		mergedTranscript    sql.NullString
		enhancedTranscript  sql.NullString
		scriptFile          sql.NullString
		scriptText          sql.NullString
		speechFile          sql.NullString
		speechSpeed         sql.NullFloat64
		finalFile           sql.NullString
		publishedURL        sql.NullString
		errorMessage        sql.NullString
		createdRaw          sql.NullString
		updatedRaw          sql.NullString
		progressStage       sql.NullString
		progressPercent     sql.NullFloat64
		progressMessage     sql.NullString
		metadata            sql.NullString
		lastHeartbeatRaw    sql.NullString
		reviewStatus        sql.NullString
		reviewNote          sql.NullString
		humanEdited         sql.NullInt64
		transcriptionNote   sql.NullString
		warnings            sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&sourceURL,
		&fingerprint,
		&title,
		&statusStr,
		&runToken,
		&targetLanguage,
		&videoFile,
		&silentVideoFile,
		&mediaInfo,
		&primaryTranscript,
		&secondaryTranscript,
		&visualTranscript,
		&mergedTranscript,
		&enhancedTranscript,
		&scriptFile,
		&scriptText,
		&speechFile,
		&speechSpeed,
		&finalFile,
		&publishedURL,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
		&progressStage,
		&progressPercent,
		&progressMessage,
		&metadata,
		&lastHeartbeatRaw,
		&reviewStatus,
		&reviewNote,
		&humanEdited,
		&transcriptionNote,
		&warnings,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:                  id,
		SourceURL:           sourceURL,
		Fingerprint:         fingerprint,
		Title:               title.String,
		Status:              Status(statusStr),
		RunToken:            runToken.String,
		TargetLanguage:      targetLanguage.String,
		VideoFile:           videoFile.String,
		SilentVideoFile:     silentVideoFile.String,
		MediaInfoJSON:       mediaInfo.String,
		PrimaryTranscript:   primaryTranscript.String,
		SecondaryTranscript: secondaryTranscript.String,
		VisualTranscript:    visualTranscript.String,
		MergedTranscript:    mergedTranscript.String,
		EnhancedTranscript:  enhancedTranscript.String,
		ScriptFile:          scriptFile.String,
		ScriptText:          scriptText.String,
		SpeechFile:          speechFile.String,
		SpeechSpeed:         speechSpeed.Float64,
		FinalFile:           finalFile.String,
		PublishedURL:        publishedURL.String,
		ErrorMessage:        errorMessage.String,
		ProgressStage:       progressStage.String,
		ProgressPercent:     progressPercent.Float64,
		ProgressMessage:     progressMessage.String,
		MetadataJSON:        metadata.String,
		ReviewStatus:        ReviewStatus(reviewStatus.String),
		ReviewNote:          reviewNote.String,
		TranscriptionNote:   transcriptionNote.String,
		Warnings:            warnings.String,
	}
	if humanEdited.Valid {
		job.HumanEdited = humanEdited.Int64 != 0
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
