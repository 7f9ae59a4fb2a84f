package generation

import (
	"context"
	"fmt"

	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/store"
	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/pkg/models"
)

// ListUserJobs returns a user's jobs, newest first. limit and offset are
// applied only when non-nil.
func (s *Service) ListUserJobs(ctx context.Context, userID int64, limit, offset *int) ([]*models.GenerationJob, error) {
	if limit != nil && *limit < 0 {
		return nil, validationf("limit must not be negative")
	}
	if offset != nil && *offset < 0 {
		return nil, validationf("offset must not be negative")
	}
	jobs, err := s.store.ListUserJobs(ctx, store.JobFilter{UserID: userID, Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	return jobs, nil
}

// ListJobHeadshots returns the headshots of a job ordered by id. An unknown
// job has no headshots.
func (s *Service) ListJobHeadshots(ctx context.Context, jobID int64) ([]*models.GeneratedHeadshot, error) {
	headshots, err := s.store.ListJobHeadshots(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("listing headshots: %w", err)
	}
	if headshots == nil {
		headshots = []*models.GeneratedHeadshot{}
	}
	return headshots, nil
}

// ListUserSelectedHeadshots returns the selected headshot of each of the
// user's jobs that has one.
func (s *Service) ListUserSelectedHeadshots(ctx context.Context, userID int64) ([]*models.GeneratedHeadshot, error) {
	headshots, err := s.store.ListUserSelectedHeadshots(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing selected headshots: %w", err)
	}
	if headshots == nil {
		headshots = []*models.GeneratedHeadshot{}
	}
	return headshots, nil
}
