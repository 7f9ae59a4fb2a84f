package models

import "time"

const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// MaxStylesPerJob bounds the number of styles a single job may request.
const MaxStylesPerJob = 10

// GenerationJob is one user request to generate headshots for several styles
// from one source image. The client polls the job (or its headshots) until the
// status is completed or failed.
type GenerationJob struct {
	ID             int64      `db:"id"               json:"id"`
	UserID         int64      `db:"user_id"          json:"user_id"`
	ImageUploadID  int64      `db:"image_upload_id"  json:"image_upload_id"`
	StyleOptionIDs []int64    `db:"style_option_ids" json:"style_option_ids"`
	Status         string     `db:"status"           json:"status"`
	ErrorMessage   *string    `db:"error_message"    json:"error_message"`
	CreatedAt      time.Time  `db:"created_at"       json:"created_at"`
	CompletedAt    *time.Time `db:"completed_at"     json:"completed_at"`
}

// IsValidJobStatus reports whether s is a known job status.
func IsValidJobStatus(s string) bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// IsTerminalJobStatus reports whether the automatic pipeline is done with a job in status s.
func IsTerminalJobStatus(s string) bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}
