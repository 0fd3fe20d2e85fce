// Package deepface provides a vision.Classifier backed by a local DeepFace
// sidecar service. The heavy face-analysis model runs in its own process and
// is reached over a small REST API, the same batch-call pattern used for
// other local model servers.
//
// The sidecar contract: POST /analyze with a JSON body {"img": "<base64>"},
// response {"face_detected": bool, "dominant_emotion": "<label>"}.
package deepface

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/lexibot/pkg/provider/vision"
	"github.com/MrWong99/lexibot/pkg/types"
)

const (
	analyzeEndpoint = "/analyze"
	defaultTimeout  = 10 * time.Second
)

// Option configures a [Classifier].
type Option func(*Classifier)

// WithTimeout sets the per-request timeout. Default 10s.
func WithTimeout(d time.Duration) Option {
	return func(c *Classifier) {
		if d > 0 {
			c.client.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Classifier) {
		if client != nil {
			c.client = client
		}
	}
}

// Classifier calls a DeepFace sidecar to label the dominant emotion in a
// frame. It implements vision.Classifier.
type Classifier struct {
	baseURL string
	client  *http.Client
}

// New returns a Classifier talking to the sidecar at baseURL
// (e.g., "http://localhost:5005").
func New(baseURL string, opts ...Option) (*Classifier, error) {
	if baseURL == "" {
		return nil, errors.New("deepface: base URL is required")
	}
	c := &Classifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type analyzeRequest struct {
	Img string `json:"img"`
}

type analyzeResponse struct {
	FaceDetected    bool   `json:"face_detected"`
	DominantEmotion string `json:"dominant_emotion"`
}

// Classify sends the frame to the sidecar and returns the dominant emotion
// label, or vision.LabelNoFace when no face is visible.
func (c *Classifier) Classify(ctx context.Context, frame types.Frame) (string, error) {
	if len(frame.Data) == 0 {
		return vision.LabelNoFace, nil
	}

	body, err := json.Marshal(analyzeRequest{
		Img: base64.StdEncoding.EncodeToString(frame.Data),
	})
	if err != nil {
		return "", fmt.Errorf("deepface: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+analyzeEndpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("deepface: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("deepface: analyze request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("deepface: analyze returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var parsed analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("deepface: decode response: %w", err)
	}

	if !parsed.FaceDetected {
		return vision.LabelNoFace, nil
	}
	if parsed.DominantEmotion == "" {
		return "", errors.New("deepface: face detected but no emotion label in response")
	}
	return strings.ToLower(parsed.DominantEmotion), nil
}

var _ vision.Classifier = (*Classifier)(nil)
