package mock

import (
	"bytes"
	"context"
	"image/color"
	"sync/atomic"

	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/pkg/models"
	"github.com/disintegration/imaging"
)

// MockGenerator satisfies models.Generator for testing.
type MockGenerator struct {
	Name_        string
	GenerateFunc func(ctx context.Context, req models.GenerateRequest) (models.Artifact, error)

	calls atomic.Int64
}

func (m *MockGenerator) Name() string { return m.Name_ }

func (m *MockGenerator) Generate(ctx context.Context, req models.GenerateRequest) (models.Artifact, error) {
	m.calls.Add(1)
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	return models.Artifact{}, nil
}

// Calls returns how many times Generate was invoked.
func (m *MockGenerator) Calls() int64 { return m.calls.Load() }

// SamplePNG returns a tiny valid PNG image.
func SamplePNG() []byte {
	img := imaging.New(4, 4, color.NRGBA{0x40, 0x80, 0xc0, 0xff})
	var buf bytes.Buffer
	_ = imaging.Encode(&buf, img, imaging.PNG)
	return buf.Bytes()
}

// NewMockGenerator returns a MockGenerator that succeeds with a PNG and the
// given quality score (nil for unscored).
func NewMockGenerator(score *int) *MockGenerator {
	data := SamplePNG()
	return &MockGenerator{
		Name_: "mock",
		GenerateFunc: func(_ context.Context, _ models.GenerateRequest) (models.Artifact, error) {
			return models.Artifact{Data: data, MimeType: models.MimeTypePNG, QualityScore: score}, nil
		},
	}
}

// NewScoringGenerator scores each headshot by its style ID. Styles missing
// from scores succeed unscored.
func NewScoringGenerator(scores map[int64]int) *MockGenerator {
	data := SamplePNG()
	return &MockGenerator{
		Name_: "mock-scoring",
		GenerateFunc: func(_ context.Context, req models.GenerateRequest) (models.Artifact, error) {
			a := models.Artifact{Data: data, MimeType: models.MimeTypePNG}
			if s, ok := scores[req.Style.ID]; ok {
				a.QualityScore = &s
			}
			return a, nil
		},
	}
}

// NewFailingGenerator returns a MockGenerator that always returns the given error.
func NewFailingGenerator(err error) *MockGenerator {
	return &MockGenerator{
		Name_: "mock-failing",
		GenerateFunc: func(_ context.Context, _ models.GenerateRequest) (models.Artifact, error) {
			return models.Artifact{}, err
		},
	}
}

// NewTimeoutGenerator returns a MockGenerator that blocks until the context is cancelled.
func NewTimeoutGenerator() *MockGenerator {
	return &MockGenerator{
		Name_: "mock-timeout",
		GenerateFunc: func(ctx context.Context, _ models.GenerateRequest) (models.Artifact, error) {
			<-ctx.Done()
			return models.Artifact{}, models.ErrGenerationTimeout
		},
	}
}

// NewPanickingGenerator returns a MockGenerator whose Generate panics.
func NewPanickingGenerator() *MockGenerator {
	return &MockGenerator{
		Name_: "mock-panicking",
		GenerateFunc: func(_ context.Context, _ models.GenerateRequest) (models.Artifact, error) {
			panic("generator exploded")
		},
	}
}

// Compile-time check that MockGenerator implements Generator.
var _ models.Generator = (*MockGenerator)(nil)
