// Package backendutils builds a backend.Backend from provider settings.
package backendutils

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/sleeves/pkg/artifact"
	"github.com/papercomputeco/sleeves/pkg/backend"
	"github.com/papercomputeco/sleeves/pkg/backend/chroma"
	"github.com/papercomputeco/sleeves/pkg/backend/local"
	"github.com/papercomputeco/sleeves/pkg/backend/postgres"
)

type NewBackendOpts struct {
	// ProviderType is one of "local", "postgres" or "chroma".
	ProviderType string

	// Local artifacts.
	IndexType     string
	IndexURI      string
	MetadataURI   string
	EfSearch      int
	ArtifactStore *artifact.Store

	// Remote services.
	TargetURL    string
	Collection   string
	Function     string
	Dimensions   int
	Timeout      time.Duration
	RetryBackoff time.Duration

	Logger *zap.Logger
}

func NewBackend(ctx context.Context, o *NewBackendOpts) (backend.Backend, error) {
	switch o.ProviderType {
	case "local":
		if o.ArtifactStore == nil {
			return nil, fmt.Errorf("local backend requires an artifact store")
		}
		b, err := local.Load(ctx, o.ArtifactStore, local.Config{
			IndexType:   o.IndexType,
			IndexURI:    o.IndexURI,
			MetadataURI: o.MetadataURI,
			EfSearch:    o.EfSearch,
		}, o.Logger)
		if err != nil {
			return nil, err
		}
		if o.Dimensions > 0 && b.Dimension() != o.Dimensions {
			_ = b.Close()
			return nil, fmt.Errorf("index dimension %d does not match configured dimension %d", b.Dimension(), o.Dimensions)
		}
		return b, nil

	case "postgres":
		b, err := postgres.New(ctx, postgres.Config{
			DSN:          o.TargetURL,
			Table:        o.Collection,
			Function:     o.Function,
			Dimensions:   o.Dimensions,
			Timeout:      o.Timeout,
			RetryBackoff: o.RetryBackoff,
		}, o.Logger)
		if err != nil {
			return nil, err
		}
		return b, nil

	case "chroma":
		b, err := chroma.New(ctx, chroma.Config{
			URL:            o.TargetURL,
			CollectionName: o.Collection,
			Dimensions:     o.Dimensions,
			Timeout:        o.Timeout,
			RetryBackoff:   o.RetryBackoff,
		}, o.Logger)
		if err != nil {
			return nil, err
		}
		return b, nil

	default:
		return nil, fmt.Errorf("unsupported backend provider: %s", o.ProviderType)
	}
}
