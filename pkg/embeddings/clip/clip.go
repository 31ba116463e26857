// Package clip implements pkg/embeddings' Embedder client for a CLIP style
// embedding service that serves both text and image encoders of one model.
//
// The service exposes two endpoints:
//
//	POST /v1/embed/text   {"model": "...", "input": "..."}
//	POST /v1/embed/image  raw image bytes, Content-Type image/*, ?model=...
//
// Both respond with {"embedding": [...]}.
package clip

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/papercomputeco/sleeves/pkg/embeddings"
)

const (
	// DefaultModel is the default CLIP checkpoint.
	DefaultModel = "openai/clip-vit-base-patch32"

	// DefaultBaseURL is the default embedding service URL.
	DefaultBaseURL = "http://localhost:8090"

	// DefaultTimeout bounds a single embedding request.
	DefaultTimeout = 60 * time.Second
)

// Embedder wraps the CLIP embedding service API.
type Embedder struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// EmbedderConfig holds configuration for the CLIP embedder.
type EmbedderConfig struct {
	// BaseURL is the embedding service URL. Defaults to DefaultBaseURL if empty.
	BaseURL string

	// Model is the checkpoint to embed with. Defaults to DefaultModel if empty.
	Model string

	// Timeout defaults to DefaultTimeout when zero.
	Timeout time.Duration
}

type textRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// NewEmbedder creates a new embedder for the CLIP embedding service.
func NewEmbedder(cfg EmbedderConfig) (*Embedder, error) {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &Embedder{
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// EmbedText converts text into a normalized vector embedding.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty text", embeddings.ErrUnsupportedInput)
	}

	body, err := json.Marshal(textRequest{Model: e.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling request: %v", embeddings.ErrModelUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/embed/text", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", embeddings.ErrModelUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	return e.do(req)
}

// EmbedImage converts an encoded image into a normalized vector embedding.
func (e *Embedder) EmbedImage(ctx context.Context, data []byte, contentType string) ([]float32, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image", embeddings.ErrUnsupportedInput)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("%w: content type %q is not an image", embeddings.ErrUnsupportedInput, contentType)
	}

	endpoint := e.baseURL + "/v1/embed/image?model=" + url.QueryEscape(e.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", embeddings.ErrModelUnavailable, err)
	}
	req.Header.Set("Content-Type", contentType)

	return e.do(req)
}

func (e *Embedder) do(req *http.Request) ([]float32, error) {
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: sending request: %v", embeddings.ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusUnsupportedMediaType,
		resp.StatusCode == http.StatusUnprocessableEntity:
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: service returned status %d: %s", embeddings.ErrUnsupportedInput, resp.StatusCode, string(body))
	default:
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: service returned status %d: %s", embeddings.ErrModelUnavailable, resp.StatusCode, string(body))
	}

	var embedResp embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", embeddings.ErrModelUnavailable, err)
	}

	if len(embedResp.Embedding) == 0 {
		return nil, fmt.Errorf("%w: no embedding returned", embeddings.ErrModelUnavailable)
	}

	return embeddings.Normalize(embedResp.Embedding), nil
}

// Close releases resources held by the embedder.
func (e *Embedder) Close() error {
	e.httpClient.CloseIdleConnections()
	return nil
}

// Ensure Embedder implements embeddings.Embedder
var _ embeddings.Embedder = (*Embedder)(nil)
