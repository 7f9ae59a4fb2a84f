package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/api/response"
	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/generation"
	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/pkg/models"
)

// StyleLister serves the active style catalog.
type StyleLister interface {
	GetStyleOptions(ctx context.Context) ([]*models.StyleOption, error)
}

// StyleAdmin administers the catalog. *generation.Catalog satisfies it.
type StyleAdmin interface {
	CreateStyle(ctx context.Context, p generation.StyleParams) (*models.StyleOption, error)
	SetActive(ctx context.Context, id int64, active bool) (*models.StyleOption, error)
}

// NewListStylesHandler returns GET /api/v1/styles.
func NewListStylesHandler(svc StyleLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		styles, err := svc.GetStyleOptions(r.Context())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		response.JSON(w, styles)
	}
}

// NewCreateStyleHandler returns POST /api/v1/admin/styles.
func NewCreateStyleHandler(svc StyleAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name             string          `json:"name"`
			Description      string          `json:"description"`
			BackgroundType   string          `json:"background_type"`
			BackgroundConfig json.RawMessage `json:"background_config"`
			IsActive         *bool           `json:"is_active"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		active := true
		if req.IsActive != nil {
			active = *req.IsActive
		}

		style, err := svc.CreateStyle(r.Context(), generation.StyleParams{
			Name:             req.Name,
			Description:      req.Description,
			BackgroundType:   req.BackgroundType,
			BackgroundConfig: string(req.BackgroundConfig),
			IsActive:         active,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		response.Created(w, style)
	}
}

// NewSetStyleActiveHandler returns PATCH /api/v1/admin/styles/{styleID}.
func NewSetStyleActiveHandler(svc StyleAdmin) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		styleID, ok := pathID(w, r, "styleID")
		if !ok {
			return
		}
		var req struct {
			IsActive *bool `json:"is_active"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.IsActive == nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "is_active is required", nil)
			return
		}

		style, err := svc.SetActive(r.Context(), styleID, *req.IsActive)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		response.JSON(w, style)
	}
}
