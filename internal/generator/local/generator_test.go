package local_test

import (
	"bytes"
	"context"
	"image/color"
	"testing"

	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/internal/generator/local"
	"github.com/ChristianEllehammer/ai-headshot-generator-dd4d/pkg/models"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sourceJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{0xc0, 0x90, 0x70, 0xff})
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.JPEG))
	return buf.Bytes()
}

func request(t *testing.T, backgroundType, cfg string) models.GenerateRequest {
	return models.GenerateRequest{
		JobID:       1,
		HeadshotID:  2,
		Source:      models.ImageUpload{MimeType: models.MimeTypeJPEG},
		SourceImage: sourceJPEG(t, 48, 64),
		Style:       models.StyleOption{ID: 7, BackgroundType: backgroundType, BackgroundConfig: cfg},
	}
}

func TestGenerate_AllBackgrounds(t *testing.T) {
	g := local.New(32)
	cases := map[string]string{
		models.BackgroundSolidColor:    `{"color":"#112233"}`,
		models.BackgroundBlurredOffice: `{"blur_radius":3}`,
		models.BackgroundGradient:      `{"from":"#000000","to":"#ffffff"}`,
		models.BackgroundStudio:        ``,
	}
	for bg, cfg := range cases {
		t.Run(bg, func(t *testing.T) {
			artifact, err := g.Generate(context.Background(), request(t, bg, cfg))
			require.NoError(t, err)
			require.NoError(t, artifact.Validate())
			assert.Equal(t, models.MimeTypePNG, artifact.MimeType)

			out, err := imaging.Decode(bytes.NewReader(artifact.Data))
			require.NoError(t, err)
			assert.Equal(t, 32, out.Bounds().Dx())
			assert.Equal(t, 32, out.Bounds().Dy())

			require.NotNil(t, artifact.QualityScore)
			assert.Equal(t, 100, *artifact.QualityScore)
		})
	}
}

func TestGenerate_SolidColorCorner(t *testing.T) {
	g := local.New(20)
	artifact, err := g.Generate(context.Background(), request(t, models.BackgroundSolidColor, `{"color":"#ff0000"}`))
	require.NoError(t, err)

	out, err := imaging.Decode(bytes.NewReader(artifact.Data))
	require.NoError(t, err)
	r, gr, b, _ := out.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), r)
	assert.Equal(t, uint32(0), gr)
	assert.Equal(t, uint32(0), b)
}

func TestGenerate_SmallSourceScoresLower(t *testing.T) {
	g := local.New(200)
	artifact, err := g.Generate(context.Background(), request(t, models.BackgroundStudio, ""))
	require.NoError(t, err)
	require.NotNil(t, artifact.QualityScore)
	// Short side 48 of a 200px output.
	assert.Equal(t, 24, *artifact.QualityScore)
}

func TestGenerate_UnknownBackground(t *testing.T) {
	_, err := local.New(16).Generate(context.Background(), request(t, "neon", ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported background type")
}

func TestGenerate_BadConfig(t *testing.T) {
	_, err := local.New(16).Generate(context.Background(), request(t, models.BackgroundGradient, "{oops"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse background config")
}

func TestGenerate_UndecodableSource(t *testing.T) {
	req := request(t, models.BackgroundStudio, "")
	req.SourceImage = []byte("not an image")
	_, err := local.New(16).Generate(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode source image")
}

func TestGenerate_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := local.New(16).Generate(ctx, request(t, models.BackgroundStudio, ""))
	assert.ErrorIs(t, err, models.ErrGenerationTimeout)
}

func TestName(t *testing.T) {
	assert.Equal(t, "local", local.New(0).Name())
}
