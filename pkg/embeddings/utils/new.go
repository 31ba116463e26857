// Package embeddingutils is the embeddings utility package
package embeddingutils

import (
	"fmt"
	"time"

	"github.com/papercomputeco/sleeves/pkg/embeddings"
	"github.com/papercomputeco/sleeves/pkg/embeddings/clip"
	"github.com/papercomputeco/sleeves/pkg/embeddings/ollama"
)

type NewEmbedderOpts struct {
	ProviderType string
	TargetURL    string
	Model        string
	Timeout      time.Duration
}

func NewEmbedder(o *NewEmbedderOpts) (embeddings.Embedder, error) {
	switch o.ProviderType {
	case "clip":
		return clip.NewEmbedder(clip.EmbedderConfig{
			BaseURL: o.TargetURL,
			Model:   o.Model,
			Timeout: o.Timeout,
		})
	case "ollama":
		return ollama.NewEmbedder(ollama.EmbedderConfig{
			BaseURL: o.TargetURL,
			Model:   o.Model,
		})
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", o.ProviderType)
	}
}
