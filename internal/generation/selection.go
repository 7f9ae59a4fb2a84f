package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/store"
	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/pkg/models"
)

// SelectHeadshot marks headshotID as the accepted result of its job and
// unselects every sibling in the same transaction. Ownership is checked
// through the parent job; a headshot of another user's job is not found.
// The headshot's generation status is not checked.
func (s *Service) SelectHeadshot(ctx context.Context, userID, headshotID int64) (*models.GeneratedHeadshot, error) {
	h, err := s.store.SelectHeadshot(ctx, userID, headshotID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrHeadshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("selecting headshot: %w", err)
	}
	slog.Info("headshot selected", "job_id", h.GenerationJobID, "headshot_id", h.ID, "user_id", userID)
	return h, nil
}
