package embedding

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
)

const defaultEmbeddingURL = "http://localhost:8000"

var (
	// ErrNoFace is returned when an image that must contain one face contains none.
	ErrNoFace = errors.New("no face detected")
	// ErrMultipleFaces is returned when an image that must contain one face contains several.
	ErrMultipleFaces = errors.New("multiple faces detected")
)

// Face is a single face detected by the embedding server.
type Face struct {
	Index     int
	Embedding []float32
	BBox      []float64 // [x1, y1, x2, y2]
	DetScore  float64
}

// Provider detects faces in an image and returns one embedding per face,
// ordered by ascending detection index.
type Provider interface {
	DetectFaces(ctx context.Context, image []byte) ([]Face, error)
}

// Client talks to the face embedding server over HTTP.
type Client struct {
	baseURL    string
	healthPath string
	client     *http.Client
}

// NewClient creates a new embedding client
func NewClient(baseURL, healthPath string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultEmbeddingURL
	}
	if healthPath == "" {
		healthPath = "/health"
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		healthPath: "/" + strings.TrimPrefix(healthPath, "/"),
		client:     &http.Client{Timeout: timeout},
	}
}

// faceDetection represents a single detected face in the server response
type faceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"`
	DetScore  float64   `json:"det_score"`
}

// faceResponse represents the response from the face embedding endpoint
type faceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []faceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// DetectFaces posts the image to /embed/face and returns the detected faces.
func (c *Client) DetectFaces(ctx context.Context, image []byte) ([]Face, error) {
	if len(image) == 0 {
		return nil, errors.New("empty image")
	}

	body, err := c.postMultipartImage(ctx, "/embed/face", image)
	if err != nil {
		return nil, err
	}

	var resp faceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	faces := make([]Face, 0, len(resp.Faces))
	for _, f := range resp.Faces {
		if len(f.Embedding) == 0 {
			return nil, fmt.Errorf("face %d: empty embedding returned", f.FaceIndex)
		}
		faces = append(faces, Face{
			Index:     f.FaceIndex,
			Embedding: f.Embedding,
			BBox:      f.BBox,
			DetScore:  f.DetScore,
		})
	}
	return faces, nil
}

// Ping checks that the embedding server answers its health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+c.healthPath, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("embedding server unreachable: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("embedding server unhealthy (status %d)", resp.StatusCode)
	}
	return nil
}

// postMultipartImage constructs a multipart form with the image data and posts it to the given endpoint.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image"`)
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
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// detectMIMEType detects the MIME type from image data
func detectMIMEType(data []byte) string {
	switch {
	case len(data) < 8:
		return "application/octet-stream"
	case data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return "image/jpeg"
	case bytes.HasPrefix(data, []byte("\x89PNG")):
		return "image/png"
	case bytes.HasPrefix(data, []byte("GIF8")):
		return "image/gif"
	case len(data) >= 12 && bytes.HasPrefix(data, []byte("RIFF")) && string(data[8:12]) == "WEBP":
		return "image/webp"
	case bytes.HasPrefix(data, []byte("BM")):
		return "image/bmp"
	}
	return "application/octet-stream"
}

// SingleFace returns the only face in faces, or ErrNoFace / ErrMultipleFaces.
func SingleFace(faces []Face) (Face, error) {
	switch len(faces) {
	case 0:
		return Face{}, ErrNoFace
	case 1:
		return faces[0], nil
	default:
		return Face{}, fmt.Errorf("%w: found %d", ErrMultipleFaces, len(faces))
	}
}
