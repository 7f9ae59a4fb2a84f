package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/api/response"
)

// Pinger is anything the health check can ping.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewHealthHandler returns GET /api/v1/health. It reports 503 when the
// database or the cache does not answer.
func NewHealthHandler(db, cache Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := map[string]string{"database": "ok", "cache": "ok"}
		degraded := false
		if err := db.Ping(ctx); err != nil {
			checks["database"] = "degraded"
			degraded = true
		}
		if err := cache.Ping(ctx); err != nil {
			checks["cache"] = "degraded"
			degraded = true
		}

		if degraded {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED", "One or more services degraded", checks)
			return
		}
		checks["status"] = "ok"
		response.JSON(w, checks)
	}
}
