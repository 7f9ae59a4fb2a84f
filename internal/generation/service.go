// Package generation validates headshot generation requests, fans each job out
// into one task per style, joins the task outcomes into a job status and
// manages the per-job selection.
package generation

import (
	"context"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/blob"
	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/cache"
	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/store"
	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/worker"
	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/pkg/models"
)

const (
	jobStatusTTL       = 30 * time.Minute
	defaultTaskTimeout = 120 * time.Second
	maxReasonBytes     = 500
	maxSummaryBytes    = 2000
)

// Submitter accepts background tasks without blocking. *worker.Pool
// satisfies it.
type Submitter interface {
	Submit(t worker.Task) error
}

// Service is the generation engine. All state lives in the injected store;
// the only in-memory state is the join counter of jobs being dispatched.
type Service struct {
	store     store.Store
	cache     cache.Cache
	blobs     blob.Store
	generator models.Generator
	pool      Submitter

	catalog     *Catalog
	validator   *Validator
	taskTimeout time.Duration

	mu   sync.Mutex
	runs map[int64]*jobRun
	wg   sync.WaitGroup
}

type Option func(*Service)

// WithTaskTimeout bounds every call to the generator.
func WithTaskTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.taskTimeout = d
		}
	}
}

// NewService creates a Service. pool runs the generation tasks.
func NewService(st store.Store, ca cache.Cache, blobs blob.Store, gen models.Generator, pool Submitter, opts ...Option) *Service {
	s := &Service{
		store:       st,
		cache:       ca,
		blobs:       blobs,
		generator:   gen,
		pool:        pool,
		catalog:     NewCatalog(st, ca),
		validator:   NewValidator(st),
		taskTimeout: defaultTaskTimeout,
		runs:        make(map[int64]*jobRun),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Catalog exposes the style catalog.
func (s *Service) Catalog() *Catalog { return s.catalog }

// Wait blocks until every dispatch started so far has handed its tasks to the
// pool (or failed the job). Call it before stopping the pool.
func (s *Service) Wait() {
	s.wg.Wait()
}

// mirrorStatus copies a job status into the cache for pollers. Cache errors
// are logged and otherwise ignored.
func (s *Service) mirrorStatus(ctx context.Context, jobID int64, status string) {
	if err := s.cache.SetJobStatus(ctx, jobID, status, jobStatusTTL); err != nil {
		slog.Warn("could not cache job status", "job_id", jobID, "status", status, "error", err)
	}
}

// truncateString truncates s to maxBytes without splitting UTF-8 runes.
func truncateString(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}
