package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/kozaktomas/missing-persons/internal/apperr"
	"github.com/kozaktomas/missing-persons/internal/constants"
	"github.com/kozaktomas/missing-persons/internal/facematch"
)

const (
	defaultEmbeddingURL = "http://localhost:8000"
	faceEndpoint        = "/embed/face"
	defaultTimeout      = 60 * time.Second
)

// HTTPClient computes face embeddings using the embedding server
type HTTPClient struct {
	baseURL string
	model   string
	maxSize int // longest side sent to the server
	client  *http.Client
}

// NewHTTPClient creates a new embedding server client
func NewHTTPClient(baseURL, model string) *HTTPClient {
	if baseURL == "" {
		baseURL = defaultEmbeddingURL
	}
	return &HTTPClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		maxSize: constants.MaxImageSize,
		client:  &http.Client{Timeout: defaultTimeout},
	}
}

// FaceDetection represents a single detected face
type FaceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// FaceResponse represents the response from the face embedding endpoint
type FaceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []FaceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// Detections converts the response faces to facematch detections.
func (r *FaceResponse) Detections() []facematch.Detection {
	out := make([]facematch.Detection, 0, len(r.Faces))
	for _, f := range r.Faces {
		out = append(out, facematch.Detection{
			Index:     f.FaceIndex,
			BBox:      f.BBox,
			Score:     f.DetScore,
			Embedding: f.Embedding,
		})
	}
	return out
}

// postMultipartImage constructs a multipart form with the image data and posts it to the given endpoint.
// The part includes an explicit Content-Type header based on magic byte detection.
func (c *HTTPClient) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", DetectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrUpstream, "embedding request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.ErrUpstream, "failed to read embedding response")
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, apperr.New(apperr.ErrInvalidImage, "embedding server rejected the image",
			apperr.Field("status", resp.StatusCode), apperr.Field("body", string(body)))
	default:
		return nil, apperr.New(apperr.ErrUpstream, fmt.Sprintf("API error (status %d)", resp.StatusCode),
			apperr.Field("status", resp.StatusCode), apperr.Field("body", string(body)))
	}
}

// ComputeFaceEmbeddings detects faces and computes their embeddings
func (c *HTTPClient) ComputeFaceEmbeddings(ctx context.Context, imageData []byte) (*FaceResponse, error) {
	body, err := c.postMultipartImage(ctx, faceEndpoint, imageData)
	if err != nil {
		return nil, err
	}

	var faceResp FaceResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return nil, apperr.Wrap(err, apperr.ErrUpstream, "failed to parse response")
	}

	return &faceResp, nil
}

// Embed returns the embedding of the largest face in the image. Near-duplicate
// detections of the same face are merged first. Large images are scaled down
// before upload.
func (c *HTTPClient) Embed(ctx context.Context, imageData []byte) ([]float32, error) {
	imageData, err := ResizeImage(imageData, c.maxSize)
	if err != nil {
		return nil, err
	}

	resp, err := c.ComputeFaceEmbeddings(ctx, imageData)
	if err != nil {
		return nil, err
	}

	faces := facematch.DedupeDetections(resp.Detections(), facematch.DuplicateIoU)
	best := facematch.LargestFace(faces)
	if best < 0 {
		return nil, apperr.New(apperr.ErrNoFaceDetected, "no face detected in image")
	}

	embedding := faces[best].Embedding
	if len(embedding) == 0 {
		return nil, apperr.New(apperr.ErrUpstream, "empty embedding returned",
			apperr.Field("face_index", faces[best].Index))
	}
	return embedding, nil
}

// Model returns the model name being used
func (c *HTTPClient) Model() string {
	return c.model
}

// DetectMIMEType detects the MIME type from image data
func DetectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	// GIF: 47 49 46 38
	if data[0] == 0x47 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x38 {
		return "image/gif"
	}
	// WebP: 52 49 46 46 ... 57 45 42 50
	if len(data) >= 12 && data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46 &&
		data[8] == 0x57 && data[9] == 0x45 && data[10] == 0x42 && data[11] == 0x50 {
		return "image/webp"
	}
	// BMP: 42 4D
	if data[0] == 0x42 && data[1] == 0x4D {
		return "image/bmp"
	}
	return "application/octet-stream"
}
