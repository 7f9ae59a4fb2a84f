package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/blob"
	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/store"
	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/pkg/models"
)

// runTask generates one headshot. It writes exactly one terminal state for
// the headshot and then reports to the job's join. It never touches the job
// row.
func (s *Service) runTask(ctx context.Context, run *jobRun, headshot *models.GeneratedHeadshot, style *models.StyleOption) {
	defer s.taskFinished(context.Background(), run)

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in generation task", "error", r, "job_id", run.job.ID, "headshot_id", headshot.ID)
			s.failHeadshot(context.Background(), run.job.ID, headshot.ID, fmt.Sprintf("panic: %v", r))
		}
	}()

	select {
	case <-run.ready:
	case <-ctx.Done():
	}
	if run.aborted.Load() {
		s.failHeadshot(ctx, run.job.ID, headshot.ID, "job aborted before generation started")
		return
	}

	result, err := s.generate(ctx, run, headshot, style)
	if err != nil {
		slog.Warn("headshot generation failed",
			"job_id", run.job.ID, "headshot_id", headshot.ID, "style_option_id", style.ID, "error", err)
		s.failHeadshot(ctx, run.job.ID, headshot.ID, err.Error())
		return
	}

	err = s.store.CompleteHeadshot(ctx, headshot.ID, *result)
	switch {
	case err == nil:
		slog.Info("headshot generated", "job_id", run.job.ID, "headshot_id", headshot.ID, "style_option_id", style.ID)
	case errors.Is(err, store.ErrInvalidTransition):
		// Already failed by a scheduling failure or an operator; the artifact is orphaned.
		slog.Warn("headshot no longer pending", "job_id", run.job.ID, "headshot_id", headshot.ID)
	default:
		slog.Error("could not record headshot", "job_id", run.job.ID, "headshot_id", headshot.ID, "error", err)
		s.failHeadshot(ctx, run.job.ID, headshot.ID, fmt.Sprintf("recording result: %v", err))
	}
}

// generate calls the generator and stores the artifact.
func (s *Service) generate(ctx context.Context, run *jobRun, headshot *models.GeneratedHeadshot, style *models.StyleOption) (*store.HeadshotResult, error) {
	source, err := s.blobs.Get(ctx, run.upload.FilePath)
	if err != nil {
		return nil, fmt.Errorf("reading source image: %w", err)
	}

	genCtx, cancel := context.WithTimeout(ctx, s.taskTimeout)
	defer cancel()

	artifact, err := s.generator.Generate(genCtx, models.GenerateRequest{
		JobID:       run.job.ID,
		HeadshotID:  headshot.ID,
		Source:      *run.upload,
		SourceImage: source,
		Style:       *style,
	})
	if err == nil {
		err = artifact.Validate()
	}
	if err != nil {
		if errors.Is(genCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, models.ErrGenerationTimeout) {
			err = fmt.Errorf("%w: %v", models.ErrGenerationTimeout, err)
		}
		return nil, err
	}

	key := blob.HeadshotKey(run.job.ID, headshot.ID, blob.ExtensionFor(artifact.MimeType))
	size, err := s.blobs.Put(ctx, key, artifact.MimeType, artifact.Data)
	if err != nil {
		return nil, fmt.Errorf("storing headshot: %w", err)
	}
	return &store.HeadshotResult{FilePath: key, FileSize: size, QualityScore: artifact.QualityScore}, nil
}

func (s *Service) failHeadshot(ctx context.Context, jobID, headshotID int64, reason string) {
	err := s.store.FailHeadshot(ctx, headshotID, truncateString(reason, maxReasonBytes))
	if err != nil && !errors.Is(err, store.ErrInvalidTransition) {
		slog.Error("could not fail headshot", "job_id", jobID, "headshot_id", headshotID, "error", err)
	}
}
