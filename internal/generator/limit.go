package generator

import (
	"context"
	"fmt"

	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/pkg/models"
	"golang.org/x/sync/semaphore"
)

type limitedGenerator struct {
	next models.Generator
	sem  *semaphore.Weighted
}

// WithConcurrencyLimit wraps g so at most n Generate calls run at once.
// n <= 0 returns g unchanged.
func WithConcurrencyLimit(g models.Generator, n int) models.Generator {
	if n <= 0 {
		return g
	}
	return &limitedGenerator{next: g, sem: semaphore.NewWeighted(int64(n))}
}

func (l *limitedGenerator) Name() string { return l.next.Name() }

func (l *limitedGenerator) Generate(ctx context.Context, req models.GenerateRequest) (models.Artifact, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return models.Artifact{}, fmt.Errorf("%w: waiting for generator slot: %v", models.ErrGenerationTimeout, err)
	}
	defer l.sem.Release(1)
	return l.next.Generate(ctx, req)
}
