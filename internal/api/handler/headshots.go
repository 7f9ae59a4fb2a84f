package handler

import (
	"context"
	"net/http"

	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/api/response"
	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/pkg/models"
)

// Selector manages the selected headshot of each job.
type Selector interface {
	SelectHeadshot(ctx context.Context, userID, headshotID int64) (*models.GeneratedHeadshot, error)
	ListUserSelectedHeadshots(ctx context.Context, userID int64) ([]*models.GeneratedHeadshot, error)
}

// NewSelectHeadshotHandler returns POST /api/v1/headshots/{headshotID}/select.
func NewSelectHeadshotHandler(svc Selector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		headshotID, ok := pathID(w, r, "headshotID")
		if !ok {
			return
		}
		h, err := svc.SelectHeadshot(r.Context(), userID, headshotID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		response.JSON(w, h)
	}
}

// NewListSelectedHeadshotsHandler returns GET /api/v1/headshots/selected.
func NewListSelectedHeadshotsHandler(svc Selector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := requireUser(w, r)
		if !ok {
			return
		}
		headshots, err := svc.ListUserSelectedHeadshots(r.Context(), userID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		response.JSON(w, headshots)
	}
}
