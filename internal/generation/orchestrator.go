package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/store"
	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/pkg/models"
)

// jobRun is the counted join for one dispatched job. Each task decrements
// remaining once, after its terminal headshot write; the task that reaches
// zero finalizes the job.
type jobRun struct {
	job       *models.GenerationJob
	upload    *models.ImageUpload
	remaining atomic.Int64
	aborted   atomic.Bool

	// ready is closed once every task of the job was handed to the pool, or
	// scheduling gave up. Tasks do no work before that.
	ready chan struct{}
}

func newJobRun(job *models.GenerationJob, upload *models.ImageUpload, tasks int) *jobRun {
	run := &jobRun{job: job, upload: upload, ready: make(chan struct{})}
	run.remaining.Store(int64(tasks))
	return run
}

// release opens the run to its tasks. aborted tells them scheduling failed.
func (r *jobRun) release(aborted bool) {
	r.aborted.Store(aborted)
	close(r.ready)
}

// done records one terminal task and reports whether it was the last.
func (r *jobRun) done() bool {
	return r.remaining.Add(-1) == 0
}

// CreateJob validates the submission, persists the job with one pending
// headshot per style and returns it. Generation continues in the background.
func (s *Service) CreateJob(ctx context.Context, userID, imageUploadID int64, styleIDs []int64) (*models.GenerationJob, error) {
	if err := s.validator.Validate(ctx, userID, imageUploadID, styleIDs); err != nil {
		return nil, err
	}

	job := &models.GenerationJob{
		UserID:         userID,
		ImageUploadID:  imageUploadID,
		StyleOptionIDs: append([]int64(nil), styleIDs...),
	}
	headshots, err := s.store.CreateJobWithHeadshots(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}
	s.mirrorStatus(ctx, job.ID, job.Status)

	slog.Info("generation job created", "job_id", job.ID, "user_id", userID, "styles", len(styleIDs))

	created := *job
	s.wg.Add(1)
	go s.dispatch(&created, headshots)

	return job, nil
}

// GetJob returns a job owned by userID. Jobs of other users are reported as
// not found.
func (s *Service) GetJob(ctx context.Context, userID, jobID int64) (*models.GenerationJob, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading job: %w", err)
	}
	if job.UserID != userID {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// UpdateJobStatus is the operator override. completed and failed stamp the
// completion time, pending and processing clear it. When setError is true
// errorMessage is stored verbatim, nil included.
func (s *Service) UpdateJobStatus(ctx context.Context, jobID int64, status string, errorMessage *string, setError bool) (*models.GenerationJob, error) {
	if !models.IsValidJobStatus(status) {
		return nil, validationf("unknown job status %q", status)
	}
	var opts []store.JobUpdateOption
	if setError {
		if errorMessage != nil {
			opts = append(opts, store.WithErrorMessage(*errorMessage))
		} else {
			opts = append(opts, store.WithClearedErrorMessage())
		}
	}
	job, err := s.store.OverrideJobStatus(ctx, jobID, status, opts...)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("updating job status: %w", err)
	}
	s.mirrorStatus(ctx, job.ID, job.Status)
	slog.Info("job status overridden", "job_id", job.ID, "status", job.Status)
	return job, nil
}

// Resume re-dispatches jobs a previous process left pending or processing.
// Pending headshots are generated again; jobs whose headshots are all
// terminal are finalized.
func (s *Service) Resume(ctx context.Context) (int, error) {
	jobs, err := s.store.ListJobsByStatus(ctx, models.JobStatusPending, models.JobStatusProcessing)
	if err != nil {
		return 0, fmt.Errorf("listing unfinished jobs: %w", err)
	}
	resumed := 0
	for _, job := range jobs {
		s.mu.Lock()
		_, running := s.runs[job.ID]
		s.mu.Unlock()
		if running {
			continue
		}
		headshots, err := s.store.ListJobHeadshots(ctx, job.ID)
		if err != nil {
			return resumed, fmt.Errorf("listing headshots of job %d: %w", job.ID, err)
		}
		s.wg.Add(1)
		go s.dispatch(job, headshots)
		resumed++
	}
	if resumed > 0 {
		slog.Info("resumed unfinished jobs", "count", resumed)
	}
	return resumed, nil
}

// dispatch moves the job to processing and hands one task per pending
// headshot to the pool. It runs in its own goroutine.
func (s *Service) dispatch(job *models.GenerationJob, headshots []*models.GeneratedHeadshot) {
	defer s.wg.Done()
	ctx := context.Background()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in dispatch", "error", r, "job_id", job.ID)
			s.failJob(ctx, job.ID, fmt.Sprintf("panic: %v", r))
		}
	}()

	if job.Status == models.JobStatusPending {
		if _, err := s.store.TransitionJob(ctx, job.ID, models.JobStatusProcessing); err != nil {
			slog.Error("could not start job", "job_id", job.ID, "error", err)
			return
		}
		s.mirrorStatus(ctx, job.ID, models.JobStatusProcessing)
	}

	upload, err := s.store.GetImageUpload(ctx, job.ImageUploadID)
	if err != nil {
		s.failJob(ctx, job.ID, schedulingf("loading source image: %v", err).Error())
		return
	}

	var pending []*models.GeneratedHeadshot
	for _, h := range headshots {
		if !h.IsTerminal() {
			pending = append(pending, h)
		}
	}
	if len(pending) == 0 {
		s.finalize(ctx, job.ID)
		return
	}

	styles, err := s.catalog.Resolve(ctx, job.StyleOptionIDs)
	if err != nil {
		s.failJob(ctx, job.ID, schedulingf("%v", err).Error())
		return
	}

	type assignment struct {
		headshot *models.GeneratedHeadshot
		style    *models.StyleOption
	}
	var runnable []assignment
	for _, h := range pending {
		style, ok := styles[h.StyleOptionID]
		if !ok || !style.IsActive {
			reason := fmt.Sprintf("style option %d is no longer active", h.StyleOptionID)
			if err := s.store.FailHeadshot(ctx, h.ID, reason); err != nil && !errors.Is(err, store.ErrInvalidTransition) {
				slog.Error("could not fail headshot", "job_id", job.ID, "headshot_id", h.ID, "error", err)
			}
			continue
		}
		runnable = append(runnable, assignment{headshot: h, style: style})
	}
	if len(runnable) == 0 {
		s.failJob(ctx, job.ID, schedulingf("none of the requested styles is active").Error())
		return
	}

	run := newJobRun(job, upload, len(runnable))
	s.mu.Lock()
	s.runs[job.ID] = run
	s.mu.Unlock()

	for _, a := range runnable {
		h, style := a.headshot, a.style
		err := s.pool.Submit(func(taskCtx context.Context) {
			s.runTask(taskCtx, run, h, style)
		})
		if err != nil {
			run.release(true)
			s.forgetRun(job.ID)
			slog.Error("could not schedule generation task", "job_id", job.ID, "headshot_id", h.ID, "error", err)
			s.failJob(ctx, job.ID, schedulingf("%v", err).Error())
			return
		}
	}
	run.release(false)
	slog.Info("generation tasks scheduled", "job_id", job.ID, "tasks", len(runnable))
}

// taskFinished is called by every task after its terminal headshot write.
func (s *Service) taskFinished(ctx context.Context, run *jobRun) {
	if !run.done() || run.aborted.Load() {
		return
	}
	s.forgetRun(run.job.ID)
	s.finalize(ctx, run.job.ID)
}

// finalize re-reads every sibling headshot and moves the job to its terminal
// status.
func (s *Service) finalize(ctx context.Context, jobID int64) {
	headshots, err := s.store.ListJobHeadshots(ctx, jobID)
	if err != nil {
		slog.Error("could not read headshots for aggregation", "job_id", jobID, "error", err)
		return
	}
	status, msg := Aggregate(headshots)
	if status == models.JobStatusProcessing {
		slog.Warn("job finalized with unfinished headshots", "job_id", jobID)
		return
	}

	var opts []store.JobUpdateOption
	if msg != nil {
		opts = append(opts, store.WithErrorMessage(*msg))
	}
	if _, err := s.store.TransitionJob(ctx, jobID, status, opts...); err != nil {
		slog.Error("could not finalize job", "job_id", jobID, "status", status, "error", err)
		return
	}
	s.mirrorStatus(ctx, jobID, status)
	slog.Info("generation job finished", "job_id", jobID, "status", status)
}

// failJob fails the job and every headshot still pending in it.
func (s *Service) failJob(ctx context.Context, jobID int64, reason string) {
	reason = truncateString(reason, maxReasonBytes)
	if _, err := s.store.TransitionJob(ctx, jobID, models.JobStatusFailed, store.WithErrorMessage(reason)); err != nil {
		slog.Error("could not fail job", "job_id", jobID, "error", err)
		return
	}
	s.mirrorStatus(ctx, jobID, models.JobStatusFailed)

	headshots, err := s.store.ListJobHeadshots(ctx, jobID)
	if err != nil {
		slog.Error("could not list headshots of failed job", "job_id", jobID, "error", err)
		return
	}
	for _, h := range headshots {
		if h.IsTerminal() {
			continue
		}
		if err := s.store.FailHeadshot(ctx, h.ID, reason); err != nil && !errors.Is(err, store.ErrInvalidTransition) {
			slog.Error("could not fail headshot", "job_id", jobID, "headshot_id", h.ID, "error", err)
		}
	}
	slog.Warn("generation job failed", "job_id", jobID, "reason", reason)
}

func (s *Service) forgetRun(jobID int64) {
	s.mu.Lock()
	delete(s.runs, jobID)
	s.mu.Unlock()
}

// Aggregate folds the sibling headshots of a job into a job status. It
// returns processing while any headshot is pending, completed when at least
// one succeeded, and failed with a per-style summary otherwise.
func Aggregate(headshots []*models.GeneratedHeadshot) (string, *string) {
	if len(headshots) == 0 {
		msg := "job has no headshots"
		return models.JobStatusFailed, &msg
	}
	succeeded := false
	for _, h := range headshots {
		switch h.GenerationStatus {
		case models.HeadshotStatusCompleted:
			succeeded = true
		case models.HeadshotStatusFailed:
		default:
			return models.JobStatusProcessing, nil
		}
	}
	if succeeded {
		return models.JobStatusCompleted, nil
	}

	reasons := make([]string, 0, len(headshots))
	for _, h := range headshots {
		reason := "unknown error"
		if h.ErrorMessage != nil && *h.ErrorMessage != "" {
			reason = *h.ErrorMessage
		}
		reasons = append(reasons, fmt.Sprintf("style %d: %s", h.StyleOptionID, reason))
	}
	msg := truncateString("all styles failed: "+strings.Join(reasons, "; "), maxSummaryBytes)
	return models.JobStatusFailed, &msg
}
