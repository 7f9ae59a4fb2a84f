// Package models contains shared data models used across the headshot service.
package models

import (
	"context"
	"errors"
)

var (
	ErrGeneratorUnavailable = errors.New("generator unavailable")
	ErrGenerationTimeout    = errors.New("generation timed out")
	ErrInvalidArtifact      = errors.New("generator returned invalid artifact")
)

// Generator is the external image-generation capability. The orchestrator
// never calls a concrete backend directly; it is always injected.
type Generator interface {
	// Generate produces one headshot for the given source image and style.
	Generate(ctx context.Context, req GenerateRequest) (Artifact, error)
	// Name returns the provider identifier (e.g., "http", "local").
	Name() string
}

// GenerateRequest is the input to a single generation task.
type GenerateRequest struct {
	JobID       int64
	HeadshotID  int64
	Source      ImageUpload
	SourceImage []byte
	Style       StyleOption
}

// Artifact is the successful output of a generation task.
type Artifact struct {
	Data     []byte
	MimeType string
	// QualityScore is optional; generators that do not score leave it nil.
	QualityScore *int
}

// Validate checks the artifact is storable.
func (a Artifact) Validate() error {
	if len(a.Data) == 0 {
		return errors.Join(ErrInvalidArtifact, errors.New("empty image data"))
	}
	if !IsSupportedMimeType(a.MimeType) {
		return errors.Join(ErrInvalidArtifact, errors.New("unsupported media type "+a.MimeType))
	}
	if a.QualityScore != nil && (*a.QualityScore < 1 || *a.QualityScore > 100) {
		return errors.Join(ErrInvalidArtifact, errors.New("quality score out of range"))
	}
	return nil
}
