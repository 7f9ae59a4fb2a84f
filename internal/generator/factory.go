// Package generator builds the image generation backend the orchestrator
// talks to.
package generator

import (
	"fmt"

	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/config"
	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/generator/httpgen"
	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/generator/local"
	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/pkg/models"
)

// New constructs the generator selected by cfg.Provider, capped at
// cfg.MaxConcurrent in-flight calls when that is positive.
// Called once at server startup.
func New(cfg config.GeneratorConfig) (models.Generator, error) {
	var g models.Generator
	switch cfg.Provider {
	case "http":
		g = httpgen.New(cfg)
	case "local":
		g = local.New(cfg.OutputSize)
	default:
		return nil, fmt.Errorf("unknown generator provider %q: must be one of http, local", cfg.Provider)
	}
	return WithConcurrencyLimit(g, cfg.MaxConcurrent), nil
}
