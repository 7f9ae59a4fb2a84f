package store

import (
	"context"
	"errors"

	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/pkg/models"
	"github.com/google/uuid"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")
var ErrInvalidTransition = errors.New("invalid status transition")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	CreateImageUpload(ctx context.Context, upload *models.ImageUpload) error
	GetImageUpload(ctx context.Context, id int64) (*models.ImageUpload, error)

	CreateStyleOption(ctx context.Context, style *models.StyleOption) error
	SetStyleOptionActive(ctx context.Context, id int64, active bool) (*models.StyleOption, error)
	ListActiveStyleOptions(ctx context.Context) ([]*models.StyleOption, error)
	GetStyleOptionsByIDs(ctx context.Context, ids []int64) ([]*models.StyleOption, error)

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error

	// CreateJobWithHeadshots persists the job and one pending headshot per
	// requested style in a single transaction. job.ID, Status and CreatedAt are
	// filled in on success.
	CreateJobWithHeadshots(ctx context.Context, job *models.GenerationJob) ([]*models.GeneratedHeadshot, error)
	GetJob(ctx context.Context, id int64) (*models.GenerationJob, error)
	ListUserJobs(ctx context.Context, filter JobFilter) ([]*models.GenerationJob, error)
	ListJobsByStatus(ctx context.Context, statuses ...string) ([]*models.GenerationJob, error)
	// TransitionJob moves a job along the automatic state machine. Moves not
	// listed in validTransitions fail with ErrInvalidTransition.
	TransitionJob(ctx context.Context, id int64, status string, opts ...JobUpdateOption) (*models.GenerationJob, error)
	// OverrideJobStatus sets any status unconditionally (operator escape hatch).
	OverrideJobStatus(ctx context.Context, id int64, status string, opts ...JobUpdateOption) (*models.GenerationJob, error)

	GetHeadshot(ctx context.Context, id int64) (*models.GeneratedHeadshot, error)
	ListJobHeadshots(ctx context.Context, jobID int64) ([]*models.GeneratedHeadshot, error)
	// CompleteHeadshot and FailHeadshot only act on pending headshots and
	// return ErrInvalidTransition otherwise.
	CompleteHeadshot(ctx context.Context, id int64, result HeadshotResult) error
	FailHeadshot(ctx context.Context, id int64, reason string) error
	// SelectHeadshot clears the selection of every headshot in the parent job
	// and selects the given one, atomically. The parent job must belong to userID.
	SelectHeadshot(ctx context.Context, userID, headshotID int64) (*models.GeneratedHeadshot, error)
	ListUserSelectedHeadshots(ctx context.Context, userID int64) ([]*models.GeneratedHeadshot, error)
}

// JobFilter selects a page of a user's jobs, newest first. Nil Limit or
// Offset means "not applied".
type JobFilter struct {
	UserID int64
	Limit  *int
	Offset *int
}

// HeadshotResult is what a successful generation task records.
type HeadshotResult struct {
	FilePath     string
	FileSize     int64
	QualityScore *int
}

// validTransitions is the automatic job state machine. pending -> failed is
// only taken when tasks could not be scheduled.
var validTransitions = map[string][]string{
	models.JobStatusPending:    {models.JobStatusProcessing, models.JobStatusFailed},
	models.JobStatusProcessing: {models.JobStatusCompleted, models.JobStatusFailed},
}

func canTransition(from, to string) bool {
	for _, a := range validTransitions[from] {
		if a == to {
			return true
		}
	}
	return false
}

type jobUpdateParams struct {
	ErrorMessage    *string
	SetErrorMessage bool
}

type JobUpdateOption func(*jobUpdateParams)

// WithErrorMessage stores msg as the job's error message.
func WithErrorMessage(msg string) JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.ErrorMessage = &msg
		p.SetErrorMessage = true
	}
}

// WithClearedErrorMessage stores NULL as the job's error message.
func WithClearedErrorMessage() JobUpdateOption {
	return func(p *jobUpdateParams) {
		p.ErrorMessage = nil
		p.SetErrorMessage = true
	}
}

func applyJobOptions(opts []JobUpdateOption) *jobUpdateParams {
	params := &jobUpdateParams{}
	for _, opt := range opts {
		opt(params)
	}
	return params
}
