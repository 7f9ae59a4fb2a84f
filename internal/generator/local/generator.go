// Package local renders headshots in-process with the imaging library. It
// needs no external service and produces deterministic output, which makes it
// the default for development.
package local

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"

	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/pkg/models"
	"github.com/disintegration/imaging"
)

const defaultSize = 1024

// Generator implements models.Generator by compositing the source photo onto
// the style's background.
type Generator struct {
	size int
}

func New(size int) *Generator {
	if size <= 0 {
		size = defaultSize
	}
	return &Generator{size: size}
}

func (g *Generator) Name() string { return "local" }

func (g *Generator) Generate(ctx context.Context, req models.GenerateRequest) (models.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return models.Artifact{}, fmt.Errorf("%w: %v", models.ErrGenerationTimeout, err)
	}

	src, err := imaging.Decode(bytes.NewReader(req.SourceImage), imaging.AutoOrientation(true))
	if err != nil {
		return models.Artifact{}, fmt.Errorf("decode source image: %w", err)
	}

	out, err := compose(src, req.Style, g.size)
	if err != nil {
		return models.Artifact{}, err
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.PNG); err != nil {
		return models.Artifact{}, fmt.Errorf("encode headshot: %w", err)
	}

	score := qualityScore(src, g.size)
	return models.Artifact{Data: buf.Bytes(), MimeType: models.MimeTypePNG, QualityScore: &score}, nil
}

type backgroundConfig struct {
	Color      string  `json:"color"`
	From       string  `json:"from"`
	To         string  `json:"to"`
	BlurRadius float64 `json:"blur_radius"`
	Brightness float64 `json:"brightness"`
	Contrast   float64 `json:"contrast"`
}

func compose(src image.Image, style models.StyleOption, size int) (*image.NRGBA, error) {
	var cfg backgroundConfig
	if style.BackgroundConfig != "" {
		if err := json.Unmarshal([]byte(style.BackgroundConfig), &cfg); err != nil {
			return nil, fmt.Errorf("parse background config for style %d: %w", style.ID, err)
		}
	}

	portraitSize := size * 4 / 5
	portrait := imaging.Fill(src, portraitSize, portraitSize, imaging.Center, imaging.Lanczos)

	var bg *image.NRGBA
	switch style.BackgroundType {
	case models.BackgroundSolidColor:
		bg = imaging.New(size, size, parseHexColor(cfg.Color, color.NRGBA{0x8a, 0x8d, 0x91, 0xff}))
	case models.BackgroundBlurredOffice:
		radius := cfg.BlurRadius
		if radius <= 0 {
			radius = 12
		}
		bg = imaging.Blur(imaging.Fill(src, size, size, imaging.Center, imaging.Lanczos), radius)
	case models.BackgroundGradient:
		from := parseHexColor(cfg.From, color.NRGBA{0x1e, 0x3c, 0x72, 0xff})
		to := parseHexColor(cfg.To, color.NRGBA{0x2a, 0x9d, 0x8f, 0xff})
		bg = verticalGradient(size, from, to)
	case models.BackgroundStudio:
		brightness, contrast := cfg.Brightness, cfg.Contrast
		if brightness == 0 {
			brightness = 15
		}
		if contrast == 0 {
			contrast = 10
		}
		full := imaging.Fill(src, size, size, imaging.Center, imaging.Lanczos)
		return imaging.AdjustContrast(imaging.AdjustBrightness(full, brightness), contrast), nil
	default:
		return nil, fmt.Errorf("unsupported background type %q", style.BackgroundType)
	}

	return imaging.PasteCenter(bg, portrait), nil
}

func verticalGradient(size int, from, to color.NRGBA) *image.NRGBA {
	img := imaging.New(size, size, from)
	for y := 0; y < size; y++ {
		t := float64(y) / float64(max(size-1, 1))
		c := color.NRGBA{
			R: lerp(from.R, to.R, t),
			G: lerp(from.G, to.G, t),
			B: lerp(from.B, to.B, t),
			A: 0xff,
		}
		for x := 0; x < size; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func lerp(a, b uint8, t float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*t)
}

// parseHexColor reads "#rrggbb", falling back to def on anything else.
func parseHexColor(s string, def color.NRGBA) color.NRGBA {
	var r, g, b uint8
	if n, err := fmt.Sscanf(s, "#%02x%02x%02x", &r, &g, &b); err != nil || n != 3 {
		return def
	}
	return color.NRGBA{R: r, G: g, B: b, A: 0xff}
}

// qualityScore rates how much the source had to be upscaled: a source whose
// short side covers the output size scores 100.
func qualityScore(src image.Image, size int) int {
	b := src.Bounds()
	short := min(b.Dx(), b.Dy())
	return min(max(short*100/size, 1), 100)
}

var _ models.Generator = (*Generator)(nil)
