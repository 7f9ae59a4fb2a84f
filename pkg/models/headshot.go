package models

import "time"

const (
	HeadshotStatusPending   = "pending"
	HeadshotStatusCompleted = "completed"
	HeadshotStatusFailed    = "failed"
)

// GeneratedHeadshot is the artifact attempt for one (job, style) pair.
// At most one headshot per job has IsSelected set.
type GeneratedHeadshot struct {
	ID               int64     `db:"id"                json:"id"`
	GenerationJobID  int64     `db:"generation_job_id" json:"generation_job_id"`
	StyleOptionID    int64     `db:"style_option_id"   json:"style_option_id"`
	FilePath         string    `db:"file_path"         json:"file_path"`
	FileSize         int64     `db:"file_size"         json:"file_size"`
	GenerationStatus string    `db:"generation_status" json:"generation_status"`
	QualityScore     *int      `db:"quality_score"     json:"quality_score"`
	ErrorMessage     *string   `db:"error_message"     json:"error_message,omitempty"`
	IsSelected       bool      `db:"is_selected"       json:"is_selected"`
	CreatedAt        time.Time `db:"created_at"        json:"created_at"`
}

// IsTerminal reports whether the headshot's generation task has finished.
func (h *GeneratedHeadshot) IsTerminal() bool {
	return h.GenerationStatus == HeadshotStatusCompleted || h.GenerationStatus == HeadshotStatusFailed
}
