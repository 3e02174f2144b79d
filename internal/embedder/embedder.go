// Package embedder talks to the face embedding server.
package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/KP-101219/Quickroll-V2/internal/constants"
)

const defaultEmbedderURL = "http://localhost:8000"

var (
	// ErrInvalidImage is returned when the payload is not a decodable image.
	ErrInvalidImage = errors.New("invalid image")
	// ErrUnavailable is returned when the embedding server cannot be reached or fails.
	ErrUnavailable = errors.New("face embedder unavailable")
)

// FaceEmbedder detects faces in an image and returns one embedding per face.
// An empty result with a nil error means no face was found.
type FaceEmbedder interface {
	EmbedFaces(ctx context.Context, image []byte) ([]Face, error)
}

// Client computes face embeddings using the embedding server
type Client struct {
	baseURL string
	maxSize int
	client  *http.Client
}

var _ FaceEmbedder = (*Client)(nil)

// NewClient creates a new embedder client
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultEmbedderURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		maxSize: constants.MaxImageSize,
		client:  &http.Client{Timeout: timeout},
	}
}

// faceDetection represents a single detected face on the wire
type faceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// faceResponse represents the response from the face embedding endpoint
type faceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []faceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// postImage posts the image as the multipart "file" field and returns the body.
func (c *Client) postImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", detectMIMEType(imageData))
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
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusUnsupportedMediaType,
		resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, fmt.Errorf("%w: embedder rejected image (status %d): %s", ErrInvalidImage, resp.StatusCode, string(body))
	default:
		return nil, fmt.Errorf("%w: API error (status %d): %s", ErrUnavailable, resp.StatusCode, string(body))
	}
}

// EmbedFaces validates and downscales the image, then detects faces and
// computes their embeddings. Faces are returned largest first.
func (c *Client) EmbedFaces(ctx context.Context, imageData []byte) ([]Face, error) {
	prepared, err := PrepareImage(imageData, c.maxSize)
	if err != nil {
		return nil, err
	}

	body, err := c.postImage(ctx, "/embed/face", prepared)
	if err != nil {
		return nil, err
	}

	var faceResp faceResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %v", ErrUnavailable, err)
	}

	faces := make([]Face, 0, len(faceResp.Faces))
	for _, det := range faceResp.Faces {
		if len(det.Embedding) == 0 {
			continue
		}
		faces = append(faces, Face{
			Index:     det.FaceIndex,
			Embedding: det.Embedding,
			BBox:      det.BBox,
			DetScore:  det.DetScore,
		})
	}
	SortBySize(faces)
	return faces, nil
}

// detectMIMEType detects the MIME type from image data
func detectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	switch {
	case data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return "image/jpeg"
	case data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47:
		return "image/png"
	case data[0] == 0x47 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x38:
		return "image/gif"
	case data[0] == 0x42 && data[1] == 0x4D:
		return "image/bmp"
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return "image/webp"
	}
	return "application/octet-stream"
}
