package models

import "time"

const (
	UploadStatusPending   = "pending"
	UploadStatusCompleted = "completed"
	UploadStatusFailed    = "failed"
)

const (
	MimeTypeJPEG = "image/jpeg"
	MimeTypePNG  = "image/png"
)

// ImageUpload references a source photo in the blob store. Jobs only read it.
type ImageUpload struct {
	ID               int64     `db:"id"                json:"id"`
	UserID           int64     `db:"user_id"           json:"user_id"`
	OriginalFilename string    `db:"original_filename" json:"original_filename"`
	FilePath         string    `db:"file_path"         json:"file_path"`
	FileSize         int64     `db:"file_size"         json:"file_size"`
	MimeType         string    `db:"mime_type"         json:"mime_type"`
	UploadStatus     string    `db:"upload_status"     json:"upload_status"`
	CreatedAt        time.Time `db:"created_at"        json:"created_at"`
}

// IsSupportedMimeType reports whether uploads of the given media type are accepted.
func IsSupportedMimeType(mimeType string) bool {
	return mimeType == MimeTypeJPEG || mimeType == MimeTypePNG
}
