package api

import (
	"net/http"

	mw "github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/api/middleware"
	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/api/response"
	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/pkg/models"
	"github.com/go-chi/chi/v5"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler http.HandlerFunc

	UploadImage    http.HandlerFunc
	ListStyles     http.HandlerFunc
	CreateJob      http.HandlerFunc
	ListJobs       http.HandlerFunc
	GetJob         http.HandlerFunc
	ListHeadshots  http.HandlerFunc
	SelectHeadshot http.HandlerFunc
	ListSelected   http.HandlerFunc

	CreateUser      http.HandlerFunc
	CreateStyle     http.HandlerFunc
	SetStyleActive  http.HandlerFunc
	UpdateJobStatus http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Post("/api/v1/uploads", orNotImplemented(deps.UploadImage))
		r.Get("/api/v1/styles", orNotImplemented(deps.ListStyles))

		r.Post("/api/v1/jobs", orNotImplemented(deps.CreateJob))
		r.Get("/api/v1/jobs", orNotImplemented(deps.ListJobs))
		r.Get("/api/v1/jobs/{jobID}", orNotImplemented(deps.GetJob))
		r.Get("/api/v1/jobs/{jobID}/headshots", orNotImplemented(deps.ListHeadshots))

		r.Get("/api/v1/headshots/selected", orNotImplemented(deps.ListSelected))
		r.Post("/api/v1/headshots/{headshotID}/select", orNotImplemented(deps.SelectHeadshot))

		r.Group(func(r chi.Router) {
			r.Use(deps.Auth.RequireScope(models.ScopeAdmin))

			r.Post("/api/v1/admin/users", orNotImplemented(deps.CreateUser))
			r.Post("/api/v1/admin/styles", orNotImplemented(deps.CreateStyle))
			r.Patch("/api/v1/admin/styles/{styleID}", orNotImplemented(deps.SetStyleActive))
			r.Patch("/api/v1/admin/jobs/{jobID}/status", orNotImplemented(deps.UpdateJobStatus))
		})
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
