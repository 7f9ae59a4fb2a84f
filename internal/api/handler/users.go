package handler

import (
	"context"
	"net/http"

	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/api/response"
	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/pkg/models"
)

// UserCreator registers users.
type UserCreator interface {
	CreateUser(ctx context.Context, email, name string) (*models.User, error)
}

// NewCreateUserHandler returns POST /api/v1/admin/users.
func NewCreateUserHandler(svc UserCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email string `json:"email"`
			Name  string `json:"name"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		user, err := svc.CreateUser(r.Context(), req.Email, req.Name)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		response.Created(w, user)
	}
}
