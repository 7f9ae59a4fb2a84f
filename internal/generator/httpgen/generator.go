// Package httpgen calls a remote image generation service over HTTP.
package httpgen

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/config"
	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/pkg/models"
	"github.com/go-resty/resty/v2"
)

const generatePath = "/v1/generate"

// Generator implements models.Generator against a JSON HTTP endpoint.
// Images travel base64-encoded in both directions.
type Generator struct {
	client *resty.Client
}

func New(cfg config.GeneratorConfig) *Generator {
	client := resty.New().SetBaseURL(strings.TrimRight(cfg.BaseURL, "/"))
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}
	return &Generator{client: client}
}

func (g *Generator) Name() string { return "http" }

type styleSpec struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	BackgroundType   string `json:"background_type"`
	BackgroundConfig string `json:"background_config"`
}

type generateRequest struct {
	JobID      int64     `json:"job_id"`
	HeadshotID int64     `json:"headshot_id"`
	Image      []byte    `json:"image"`
	MimeType   string    `json:"mime_type"`
	Style      styleSpec `json:"style"`
}

type generateResponse struct {
	Image        []byte `json:"image"`
	MimeType     string `json:"mime_type"`
	QualityScore *int   `json:"quality_score"`
}

func (g *Generator) Generate(ctx context.Context, req models.GenerateRequest) (models.Artifact, error) {
	body := generateRequest{
		JobID:      req.JobID,
		HeadshotID: req.HeadshotID,
		Image:      req.SourceImage,
		MimeType:   req.Source.MimeType,
		Style: styleSpec{
			ID:               req.Style.ID,
			Name:             req.Style.Name,
			BackgroundType:   req.Style.BackgroundType,
			BackgroundConfig: req.Style.BackgroundConfig,
		},
	}

	res, err := g.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetBody(body).
		Post(generatePath)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return models.Artifact{}, fmt.Errorf("%w: %v", models.ErrGenerationTimeout, ctxErr)
		}
		return models.Artifact{}, fmt.Errorf("%w: %v", models.ErrGeneratorUnavailable, err)
	}

	if !res.IsSuccess() {
		slog.Warn("generator returned error", "status_code", res.StatusCode(), "headshot_id", req.HeadshotID)
		if res.StatusCode() >= http.StatusInternalServerError || res.StatusCode() == http.StatusTooManyRequests {
			return models.Artifact{}, fmt.Errorf("%w: status %d", models.ErrGeneratorUnavailable, res.StatusCode())
		}
		return models.Artifact{}, fmt.Errorf("generator rejected request: status %d: %s", res.StatusCode(), res.String())
	}

	var out generateResponse
	if err := json.Unmarshal(res.Body(), &out); err != nil {
		return models.Artifact{}, fmt.Errorf("%w: decode response: %v", models.ErrInvalidArtifact, err)
	}

	artifact := models.Artifact{Data: out.Image, MimeType: out.MimeType, QualityScore: out.QualityScore}
	if err := artifact.Validate(); err != nil {
		return models.Artifact{}, err
	}
	return artifact, nil
}

var _ models.Generator = (*Generator)(nil)
