package httpgen_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/config"
	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/generator/httpgen"
	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRequest() models.GenerateRequest {
	return models.GenerateRequest{
		JobID:       3,
		HeadshotID:  9,
		Source:      models.ImageUpload{ID: 1, MimeType: models.MimeTypeJPEG},
		SourceImage: []byte("jpeg-bytes"),
		Style: models.StyleOption{
			ID:               5,
			Name:             "Studio",
			BackgroundType:   models.BackgroundStudio,
			BackgroundConfig: `{"brightness":10}`,
		},
	}
}

func newGenerator(t *testing.T, h http.HandlerFunc) *httpgen.Generator {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return httpgen.New(config.GeneratorConfig{BaseURL: srv.URL + "/", APIKey: "secret"})
}

func TestGenerate_Success(t *testing.T) {
	var got map[string]any
	g := newGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/generate", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"image":         []byte("png-bytes"),
			"mime_type":     "image/png",
			"quality_score": 91,
		})
	})

	artifact, err := g.Generate(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), artifact.Data)
	assert.Equal(t, models.MimeTypePNG, artifact.MimeType)
	require.NotNil(t, artifact.QualityScore)
	assert.Equal(t, 91, *artifact.QualityScore)

	assert.EqualValues(t, 3, got["job_id"])
	assert.EqualValues(t, 9, got["headshot_id"])
	assert.Equal(t, "image/jpeg", got["mime_type"])
	style := got["style"].(map[string]any)
	assert.Equal(t, "studio", style["background_type"])
}

func TestGenerate_UnscoredArtifact(t *testing.T) {
	g := newGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"image": []byte("x"), "mime_type": "image/jpeg"})
	})

	artifact, err := g.Generate(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Nil(t, artifact.QualityScore)
}

func TestGenerate_ServerErrorIsUnavailable(t *testing.T) {
	g := newGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := g.Generate(context.Background(), sampleRequest())
	assert.ErrorIs(t, err, models.ErrGeneratorUnavailable)
}

func TestGenerate_ClientErrorIsRejected(t *testing.T) {
	g := newGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("no face detected"))
	})

	_, err := g.Generate(context.Background(), sampleRequest())
	require.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrGeneratorUnavailable)
	assert.Contains(t, err.Error(), "no face detected")
}

func TestGenerate_MalformedBody(t *testing.T) {
	g := newGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	})

	_, err := g.Generate(context.Background(), sampleRequest())
	assert.ErrorIs(t, err, models.ErrInvalidArtifact)
}

func TestGenerate_ScoreOutOfRange(t *testing.T) {
	g := newGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"image": []byte("x"), "mime_type": "image/png", "quality_score": 150})
	})

	_, err := g.Generate(context.Background(), sampleRequest())
	assert.ErrorIs(t, err, models.ErrInvalidArtifact)
}

func TestGenerate_ContextTimeout(t *testing.T) {
	g := newGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := g.Generate(ctx, sampleRequest())
	assert.ErrorIs(t, err, models.ErrGenerationTimeout)
}
