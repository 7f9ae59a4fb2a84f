package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	mw "github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/api/middleware"
	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/api/response"
	"github.com/go-chi/chi/v5"
)

// requireUser returns the acting user or writes 401.
func requireUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := mw.GetUserID(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
	}
	return userID, ok
}

// pathID parses a positive integer URL parameter or writes 400.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", fmt.Sprintf("%s must be a positive integer", name), nil)
		return 0, false
	}
	return id, true
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(r *http.Request, name string) (*int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return nil, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return &v, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
		return false
	}
	return true
}
