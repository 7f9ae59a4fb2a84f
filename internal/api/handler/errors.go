package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/api/response"
	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/generation"
)

// writeServiceError maps a generation error kind onto an HTTP error response.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var missing *generation.StyleNotFoundError
	switch {
	case errors.As(err, &missing):
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(),
			map[string]any{"missing_style_option_ids": missing.Missing})
	case errors.Is(err, generation.ErrValidation):
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	case errors.Is(err, generation.ErrNotFound):
		response.Error(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, generation.ErrOwnership):
		response.Error(w, http.StatusForbidden, "FORBIDDEN", err.Error(), nil)
	case errors.Is(err, generation.ErrConflict):
		response.Error(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
	case errors.Is(err, generation.ErrSchedulingFailure):
		response.Error(w, http.StatusServiceUnavailable, "SCHEDULING_FAILURE", err.Error(), nil)
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
	}
}
