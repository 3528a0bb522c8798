package embedder

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/missing-persons/internal/apperr"
	"github.com/kozaktomas/missing-persons/internal/matching"
)

func solidImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 124, B: 84, A: 255})
		}
	}
	return img
}

func gradientImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: 255})
		}
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func jpegBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}))
	return buf.Bytes()
}

func TestHistogramUnitLength(t *testing.T) {
	embedding, err := NewHistogram().Embed(context.Background(), pngBytes(t, gradientImage(300, 200)))
	require.NoError(t, err)
	require.Len(t, embedding, HistogramDim)

	var norm float64
	for _, v := range embedding {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

func TestHistogramDeterministic(t *testing.T) {
	data := pngBytes(t, gradientImage(64, 64))
	h := NewHistogram()

	a, err := h.Embed(context.Background(), data)
	require.NoError(t, err)
	b, err := h.Embed(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestHistogramSimilarImagesAreCloser(t *testing.T) {
	h := NewHistogram()
	ctx := context.Background()

	original, err := h.Embed(ctx, pngBytes(t, gradientImage(128, 128)))
	require.NoError(t, err)
	recompressed, err := h.Embed(ctx, jpegBytes(t, gradientImage(128, 128)))
	require.NoError(t, err)
	other, err := h.Embed(ctx, pngBytes(t, solidImage(128, 128)))
	require.NoError(t, err)

	near, err := matching.CosineDistance(original, recompressed)
	require.NoError(t, err)
	far, err := matching.CosineDistance(original, other)
	require.NoError(t, err)
	assert.Less(t, near, far)
}

func TestHistogramInvalidImage(t *testing.T) {
	_, err := NewHistogram().Embed(context.Background(), []byte("definitely not an image"))
	assert.ErrorIs(t, err, apperr.ErrInvalidImage)
}

func TestFeatureLayout(t *testing.T) {
	pixels := normalizedPixels(solidImage(10, 10))

	hist := colorHistogram(pixels)
	assert.Len(t, hist, 3*histogramKeptBins)
	// red 200/255 falls in bin 25, outside the kept half
	var redSum float64
	for _, v := range hist[:histogramKeptBins] {
		redSum += v
	}
	assert.Zero(t, redSum)
	// blue 84/255 falls in bin 10
	assert.InDelta(t, 1.0, hist[2*histogramKeptBins+10], 1e-6)

	patches := patchStats(pixels)
	assert.Len(t, patches, 2*histogramGrid*histogramGrid)
	assert.InDelta(t, (200.0+124.0+84.0)/3/255, patches[0], 0.01)

	grads := gradientStats(pixels)
	require.Len(t, grads, 4)
	for _, g := range grads {
		assert.InDelta(t, 0, g, 0.01)
	}
}

func TestFinalizeAllZero(t *testing.T) {
	_, err := finalize(make([]float64, 180))
	assert.ErrorIs(t, err, apperr.ErrNoFaceDetected)
}

func TestMeanStd(t *testing.T) {
	mean, std := meanStd([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.Equal(t, 5.0, mean)
	assert.Equal(t, 2.0, std)

	mean, std = meanStd(nil)
	assert.Zero(t, mean)
	assert.Zero(t, std)
}
