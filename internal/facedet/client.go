package facedet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to the face detection sidecar over HTTP. The sidecar wraps the
// actual model (dlib HOG or CNN, selected per request) and exposes detect,
// encode and landmarks endpoints that accept a JPEG frame.
type Client struct {
	baseURL string
	model   string // "hog" or "cnn", forwarded to the sidecar
	http    *http.Client
}

// NewClient creates a detector client for the given sidecar base URL.
func NewClient(baseURL, model string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		http:    &http.Client{Timeout: timeout},
	}
}

type detectRequest struct {
	Image []byte `json:"image"` // JPEG bytes, base64-encoded by encoding/json
	Model string `json:"model"`
}

type detectResponse struct {
	Faces []BoundingBox `json:"faces"`
}

type encodeRequest struct {
	Image []byte        `json:"image"`
	Boxes []BoundingBox `json:"boxes"`
}

type encodeResponse struct {
	Encodings []Encoding `json:"encodings"`
}

type landmarksRequest struct {
	Image []byte      `json:"image"`
	Box   BoundingBox `json:"box"`
}

type landmarksResponse struct {
	Found     bool          `json:"found"`
	Landmarks *EyeLandmarks `json:"landmarks,omitempty"`
}

// DetectFaces finds face bounding boxes in the image.
func (c *Client) DetectFaces(ctx context.Context, img image.Image) ([]BoundingBox, error) {
	frame, err := encodeJPEG(img)
	if err != nil {
		return nil, err
	}
	var resp detectResponse
	if err := c.postJSON(ctx, "detect", detectRequest{Image: frame, Model: c.model}, &resp); err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}
	return resp.Faces, nil
}

// EncodeFaces produces one encoding per bounding box.
func (c *Client) EncodeFaces(ctx context.Context, img image.Image, boxes []BoundingBox) ([]Encoding, error) {
	if len(boxes) == 0 {
		return nil, nil
	}
	frame, err := encodeJPEG(img)
	if err != nil {
		return nil, err
	}
	var resp encodeResponse
	if err := c.postJSON(ctx, "encode", encodeRequest{Image: frame, Boxes: boxes}, &resp); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	if len(resp.Encodings) != len(boxes) {
		return nil, fmt.Errorf("encode: sidecar returned %d encodings for %d boxes", len(resp.Encodings), len(boxes))
	}
	return resp.Encodings, nil
}

// EyeLandmarks extracts eye contours for one face box.
func (c *Client) EyeLandmarks(ctx context.Context, img image.Image, box BoundingBox) (*EyeLandmarks, error) {
	frame, err := encodeJPEG(img)
	if err != nil {
		return nil, err
	}
	var resp landmarksResponse
	if err := c.postJSON(ctx, "landmarks", landmarksRequest{Image: frame, Box: box}, &resp); err != nil {
		return nil, fmt.Errorf("landmarks: %w", err)
	}
	if !resp.Found {
		return nil, nil
	}
	return resp.Landmarks, nil
}

// CaptureFrame grabs one frame from the sidecar's camera. The sidecar owns
// the capture device; index selects which camera when several are attached.
func (c *Client) CaptureFrame(ctx context.Context, index, width, height int) (image.Image, error) {
	url := fmt.Sprintf("%s/api/v1/camera?index=%d&width=%d&height=%d", c.baseURL, index, width, height)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not capture frame: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("camera request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	img, err := jpeg.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not decode frame: %w", err)
	}
	return img, nil
}

// postJSON performs a POST with a JSON body against an API endpoint and
// unmarshals the JSON response into result.
func (c *Client) postJSON(ctx context.Context, endpoint string, requestBody, result any) error {
	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return fmt.Errorf("could not marshal request: %w", err)
	}

	url := c.baseURL + "/api/v1/" + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("could not send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("could not read response body: %w", err)
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("could not unmarshal response: %w", err)
	}
	return nil
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return buf.Bytes(), nil
}
