package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/api/response"
	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/pkg/models"
)

// ImageStorer persists uploaded source photos.
type ImageStorer interface {
	StoreImage(ctx context.Context, userID int64, filename, mimeType string, data []byte) (*models.ImageUpload, error)
}

// NewUploadImageHandler returns POST /api/v1/uploads. The photo is sent as the
// multipart form field "file"; its media type is sniffed from the content.
func NewUploadImageHandler(svc ImageStorer, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		file, header, err := r.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				response.Error(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Upload exceeds the size limit", nil)
				return
			}
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Multipart field \"file\" is required", nil)
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Could not read upload", nil)
			return
		}

		upload, err := svc.StoreImage(r.Context(), userID, header.Filename, http.DetectContentType(data), data)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		response.Created(w, upload)
	}
}
