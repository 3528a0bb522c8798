package embedder

import (
	"bytes"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"

	"github.com/kozaktomas/missing-persons/internal/apperr"
)

// ResizeImage scales an image down so neither side exceeds maxSize and re-encodes it
// as JPEG. Images already within bounds are returned unchanged.
func ResizeImage(data []byte, maxSize int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrInvalidImage, "failed to decode image")
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if maxSize <= 0 || (width <= maxSize && height <= maxSize) {
		return data, nil
	}

	var newWidth, newHeight int
	if width > height {
		newWidth = maxSize
		newHeight = max(1, int(float64(height)*float64(maxSize)/float64(width)))
	} else {
		newHeight = maxSize
		newWidth = max(1, int(float64(width)*float64(maxSize)/float64(height)))
	}

	resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.BiLinear.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 90}); err != nil {
		return nil, apperr.Wrap(err, apperr.ErrInvalidImage, "failed to encode resized image")
	}
	return buf.Bytes(), nil
}
