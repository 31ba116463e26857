package testutils

import (
	"context"
	"fmt"

	"github.com/papercomputeco/sleeves/pkg/embeddings"
)

// MockEmbedder is a test embedder that returns predictable embeddings
type MockEmbedder struct {
	Embeddings map[string][]float32

	// ImageEmbedding is returned by EmbedImage for any image.
	ImageEmbedding []float32

	// FailOn causes EmbedText to return an error when the input text matches
	FailOn string

	// Err, when set, is returned by every call.
	Err error
}

func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{
		Embeddings:     make(map[string][]float32),
		ImageEmbedding: []float32{0.1, 0.2, 0.3},
	}
}

func (m *MockEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	if m.Err != nil {
		return nil, m.Err
	}

	if m.FailOn != "" && text == m.FailOn {
		return nil, fmt.Errorf("%w: mock embedding failure for: %s", embeddings.ErrModelUnavailable, text)
	}

	if emb, ok := m.Embeddings[text]; ok {
		return emb, nil
	}

	// Return a default embedding for any text
	return []float32{0.1, 0.2, 0.3}, nil
}

func (m *MockEmbedder) EmbedImage(_ context.Context, data []byte, _ string) ([]float32, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image", embeddings.ErrUnsupportedInput)
	}
	return m.ImageEmbedding, nil
}

func (m *MockEmbedder) Close() error {
	return nil
}

var _ embeddings.Embedder = (*MockEmbedder)(nil)
