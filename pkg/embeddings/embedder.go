// Package embeddings defines the boundary to the services that turn query
// text and images into vectors.
package embeddings

import (
	"context"
	"errors"
	"math"

	"github.com/viterin/vek/vek32"
)

var (
	// ErrUnsupportedInput is returned when the model cannot embed the given
	// input, such as an image sent to a text-only model or an undecodable file.
	ErrUnsupportedInput = errors.New("unsupported input")

	// ErrModelUnavailable is returned when the embedding service could not be
	// reached or failed to produce a vector.
	ErrModelUnavailable = errors.New("embedding model unavailable")
)

// Embedder provides query embedding capabilities.
type Embedder interface {
	// EmbedText converts text into an L2 normalized vector embedding.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedImage converts encoded image bytes into an L2 normalized vector
	// embedding. contentType is the MIME type of data.
	EmbedImage(ctx context.Context, data []byte, contentType string) ([]float32, error)

	// Close releases any resources held by the embedder.
	Close() error
}

// Normalize scales v in place to unit length. A zero vector is left as is.
func Normalize(v []float32) []float32 {
	if len(v) == 0 {
		return v
	}
	norm := math.Sqrt(float64(vek32.Dot(v, v)))
	if norm == 0 || math.IsNaN(norm) {
		return v
	}
	vek32.MulNumber_Inplace(v, float32(1/norm))
	return v
}
