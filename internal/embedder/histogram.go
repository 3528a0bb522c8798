package embedder

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/kozaktomas/missing-persons/internal/apperr"
)

// Histogram encoder layout.
const (
	HistogramDim = 512

	histogramSize     = 224 // images are resized to histogramSize x histogramSize
	histogramBins     = 32  // bins per colour channel over [0, 1]
	histogramKeptBins = 16  // only the darker half of each channel histogram is used
	histogramGrid     = 8   // grid cells per side for patch statistics
)

// Histogram is a local, dependency-free fallback encoder built from colour
// histograms, patch statistics and gradient statistics. It does not locate faces;
// embeddings are only comparable with other histogram embeddings.
type Histogram struct{}

// NewHistogram creates the histogram encoder.
func NewHistogram() *Histogram {
	return &Histogram{}
}

// Embed decodes the image and returns a unit-length 512-dim feature vector.
func (h *Histogram) Embed(ctx context.Context, imageData []byte) ([]float32, error) {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrInvalidImage, "failed to decode image")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pixels := normalizedPixels(img)
	features := make([]float64, 0, HistogramDim)
	features = append(features, colorHistogram(pixels)...)
	features = append(features, patchStats(pixels)...)
	features = append(features, gradientStats(pixels)...)

	return finalize(features)
}

// normalizedPixels resizes img to histogramSize x histogramSize and returns RGB
// values scaled to [0, 1], indexed [y][x][channel].
func normalizedPixels(img image.Image) [][][3]float64 {
	resized := image.NewRGBA(image.Rect(0, 0, histogramSize, histogramSize))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, img.Bounds(), draw.Src, nil)

	pixels := make([][][3]float64, histogramSize)
	for y := 0; y < histogramSize; y++ {
		row := make([][3]float64, histogramSize)
		for x := 0; x < histogramSize; x++ {
			off := resized.PixOffset(x, y)
			row[x] = [3]float64{
				float64(resized.Pix[off]) / 255.0,
				float64(resized.Pix[off+1]) / 255.0,
				float64(resized.Pix[off+2]) / 255.0,
			}
		}
		pixels[y] = row
	}
	return pixels
}

func colorHistogram(pixels [][][3]float64) []float64 {
	out := make([]float64, 0, 3*histogramKeptBins)
	total := float64(len(pixels) * len(pixels[0]))
	for channel := 0; channel < 3; channel++ {
		var bins [histogramBins]float64
		for _, row := range pixels {
			for _, px := range row {
				bin := int(px[channel] * histogramBins)
				if bin >= histogramBins {
					bin = histogramBins - 1 // 1.0 belongs to the last bin
				}
				bins[bin]++
			}
		}
		for i := 0; i < histogramKeptBins; i++ {
			out = append(out, bins[i]/(total+1e-8))
		}
	}
	return out
}

// patchStats returns mean and standard deviation over all channels of every grid cell,
// row by row.
func patchStats(pixels [][][3]float64) []float64 {
	cell := histogramSize / histogramGrid
	out := make([]float64, 0, 2*histogramGrid*histogramGrid)
	for gy := 0; gy < histogramGrid; gy++ {
		for gx := 0; gx < histogramGrid; gx++ {
			values := make([]float64, 0, cell*cell*3)
			for y := gy * cell; y < (gy+1)*cell; y++ {
				for x := gx * cell; x < (gx+1)*cell; x++ {
					px := pixels[y][x]
					values = append(values, px[0], px[1], px[2])
				}
			}
			mean, std := meanStd(values)
			out = append(out, mean, std)
		}
	}
	return out
}

// gradientStats returns mean and standard deviation of the horizontal and vertical
// first differences of the grayscale image.
func gradientStats(pixels [][][3]float64) []float64 {
	n := len(pixels)
	gray := make([][]float64, n)
	for y, row := range pixels {
		gray[y] = make([]float64, len(row))
		for x, px := range row {
			gray[y][x] = (px[0] + px[1] + px[2]) / 3
		}
	}

	gradX := make([]float64, 0, n*(n-1))
	gradY := make([]float64, 0, n*(n-1))
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			if x+1 < n {
				gradX = append(gradX, gray[y][x+1]-gray[y][x])
			}
			if y+1 < n {
				gradY = append(gradY, gray[y+1][x]-gray[y][x])
			}
		}
	}

	mx, sx := meanStd(gradX)
	my, sy := meanStd(gradY)
	return []float64{mx, sx, my, sy}
}

// meanStd returns the mean and population standard deviation.
func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}

// finalize pads or trims to HistogramDim and scales to unit length.
func finalize(features []float64) ([]float32, error) {
	if len(features) > HistogramDim {
		features = features[:HistogramDim]
	}

	var norm float64
	for _, v := range features {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return nil, apperr.New(apperr.ErrNoFaceDetected, "image produced an empty encoding")
	}

	out := make([]float32, HistogramDim)
	for i, v := range features {
		out[i] = float32(v / norm)
	}
	return out, nil
}
