package search

import (
	"context"

	"github.com/papercomputeco/sleeves/pkg/catalog"
)

// SearchText embeds text with the space's embedder and searches with it.
func (e *Engine) SearchText(ctx context.Context, space, text string, k int, filter catalog.Filter) ([]Result, error) {
	s, err := e.space(space)
	if err != nil {
		return nil, err
	}
	if s.Embedder == nil {
		return nil, ErrNoEmbedder
	}

	embedding, err := s.Embedder.EmbedText(ctx, text)
	if err != nil {
		return nil, err
	}

	return e.Search(ctx, Query{Space: s.Name, Embedding: embedding, K: k, Filter: filter})
}

// SearchImage embeds an encoded image with the space's embedder and searches
// with it.
func (e *Engine) SearchImage(ctx context.Context, space string, data []byte, contentType string, k int, filter catalog.Filter) ([]Result, error) {
	s, err := e.space(space)
	if err != nil {
		return nil, err
	}
	if s.Embedder == nil {
		return nil, ErrNoEmbedder
	}

	embedding, err := s.Embedder.EmbedImage(ctx, data, contentType)
	if err != nil {
		return nil, err
	}

	return e.Search(ctx, Query{Space: s.Name, Embedding: embedding, K: k, Filter: filter})
}
