package servecmder

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/sleeves/pkg/artifact"
	backendutils "github.com/papercomputeco/sleeves/pkg/backend/utils"
	"github.com/papercomputeco/sleeves/pkg/config"
	embeddingutils "github.com/papercomputeco/sleeves/pkg/embeddings/utils"
	"github.com/papercomputeco/sleeves/pkg/search"
)

type spaceDeps struct {
	store        *artifact.Store
	timeout      time.Duration
	retryBackoff time.Duration
	logger       *zap.Logger
}

// newSpace connects the backend and embedder of one configured space.
func newSpace(ctx context.Context, sc config.SpaceConfig, d spaceDeps) (search.Space, error) {
	logger := d.logger.With(zap.String("space", sc.Name))

	b, err := backendutils.NewBackend(ctx, &backendutils.NewBackendOpts{
		ProviderType:  sc.Backend,
		IndexType:     sc.IndexType,
		IndexURI:      sc.IndexPath,
		MetadataURI:   sc.MetadataPath,
		EfSearch:      int(sc.EfSearch),
		ArtifactStore: d.store,
		TargetURL:     sc.Target,
		Collection:    sc.Collection,
		Function:      sc.Function,
		Dimensions:    int(sc.Dimensions),
		Timeout:       d.timeout,
		RetryBackoff:  d.retryBackoff,
		Logger:        logger,
	})
	if err != nil {
		return search.Space{}, err
	}

	s := search.Space{Name: sc.Name, Backend: b}
	if sc.EmbeddingProvider == "" {
		logger.Info("no embedding provider configured, vector queries only")
		return s, nil
	}

	s.Embedder, err = embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: sc.EmbeddingProvider,
		TargetURL:    sc.EmbeddingTarget,
		Model:        sc.EmbeddingModel,
		Timeout:      d.timeout,
	})
	if err != nil {
		_ = b.Close()
		return search.Space{}, err
	}

	logger.Info("loaded space",
		zap.String("backend", sc.Backend),
		zap.String("embedding_provider", sc.EmbeddingProvider),
		zap.String("embedding_model", sc.EmbeddingModel),
	)
	return s, nil
}
