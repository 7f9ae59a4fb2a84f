package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/api/response"
	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/generation"
	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/pkg/models"
)

// JobService is the job half of the generation engine.
type JobService interface {
	CreateJob(ctx context.Context, userID, imageUploadID int64, styleIDs []int64) (*models.GenerationJob, error)
	GetJob(ctx context.Context, userID, jobID int64) (*models.GenerationJob, error)
	ListUserJobs(ctx context.Context, userID int64, limit, offset *int) ([]*models.GenerationJob, error)
	ListJobHeadshots(ctx context.Context, jobID int64) ([]*models.GeneratedHeadshot, error)
	UpdateJobStatus(ctx context.Context, jobID int64, status string, errorMessage *string, setError bool) (*models.GenerationJob, error)
}

// NewCreateJobHandler returns POST /api/v1/jobs. The job is accepted and
// generated in the background; clients poll it.
func NewCreateJobHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		var req struct {
			ImageUploadID  int64   `json:"image_upload_id"`
			StyleOptionIDs []int64 `json:"style_option_ids"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.ImageUploadID <= 0 {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "image_upload_id is required", nil)
			return
		}

		job, err := svc.CreateJob(r.Context(), userID, req.ImageUploadID, req.StyleOptionIDs)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		response.Accepted(w, job)
	}
}

// NewListJobsHandler returns GET /api/v1/jobs?limit=&offset=.
func NewListJobsHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		limit, err := queryInt(r, "limit")
		if err != nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			return
		}
		offset, err := queryInt(r, "offset")
		if err != nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			return
		}

		jobs, err := svc.ListUserJobs(r.Context(), userID, limit, offset)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		response.Collection(w, jobs, response.PaginationMeta{Limit: limit, Offset: offset, Count: len(jobs)})
	}
}

// NewGetJobHandler returns GET /api/v1/jobs/{jobID}.
func NewGetJobHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		jobID, ok := pathID(w, r, "jobID")
		if !ok {
			return
		}
		job, err := svc.GetJob(r.Context(), userID, jobID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		response.JSON(w, job)
	}
}

// NewListJobHeadshotsHandler returns GET /api/v1/jobs/{jobID}/headshots.
// Unknown jobs and jobs of other users both yield an empty list.
func NewListJobHeadshotsHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		jobID, ok := pathID(w, r, "jobID")
		if !ok {
			return
		}
		if _, err := svc.GetJob(r.Context(), userID, jobID); err != nil {
			if errors.Is(err, generation.ErrNotFound) {
				response.JSON(w, []*models.GeneratedHeadshot{})
				return
			}
			writeServiceError(w, r, err)
			return
		}
		headshots, err := svc.ListJobHeadshots(r.Context(), jobID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		response.JSON(w, headshots)
	}
}

// NewUpdateJobStatusHandler returns PATCH /api/v1/admin/jobs/{jobID}/status.
// error_message is stored only when present in the body; an explicit null
// clears it.
func NewUpdateJobStatusHandler(svc JobService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, ok := pathID(w, r, "jobID")
		if !ok {
			return
		}
		var req struct {
			Status       string          `json:"status"`
			ErrorMessage json.RawMessage `json:"error_message"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}

		var msg *string
		setError := req.ErrorMessage != nil
		if setError && string(req.ErrorMessage) != "null" {
			var s string
			if err := json.Unmarshal(req.ErrorMessage, &s); err != nil {
				response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "error_message must be a string or null", nil)
				return
			}
			msg = &s
		}

		job, err := svc.UpdateJobStatus(r.Context(), jobID, req.Status, msg, setError)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		response.JSON(w, job)
	}
}
