package config

import "time"

const (
	defaultAPIListen       = ":8000"
	defaultClientAPITarget = "http://localhost:8000"

	defaultMaxK            = 500
	defaultDefaultK        = 50
	defaultExpansionFactor = 4
	defaultExpansionGrowth = 2
	defaultTopGenres       = 10

	defaultRemoteTimeout = 30 * time.Second
	defaultRetryBackoff  = 200 * time.Millisecond

	defaultEventsProvider = "nop"
	defaultEventsTopic    = "sleeves.searches"

	defaultBackend           = "local"
	defaultIndexType         = "flat"
	defaultMetadataPath      = ".sleeves/index/metadata.msgpack"
	defaultEfSearch          = 100
	defaultEmbeddingProvider = "clip"
	defaultEmbeddingTarget   = "http://localhost:8090"

	defaultPrimaryName       = "image"
	defaultPrimaryIndexPath  = ".sleeves/index/image.flat"
	defaultPrimaryDimensions = 512
	defaultPrimaryModel      = "openai/clip-vit-base-patch32"

	defaultSecondaryName       = "text"
	defaultSecondaryIndexPath  = ".sleeves/index/text.flat"
	defaultSecondaryDimensions = 768
	defaultSecondaryModel      = "sentence-transformers/all-mpnet-base-v2"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Client: ClientConfig{
			APITarget: defaultClientAPITarget,
		},
		Search: SearchConfig{
			MaxK:            defaultMaxK,
			DefaultK:        defaultDefaultK,
			ExpansionFactor: defaultExpansionFactor,
			ExpansionGrowth: defaultExpansionGrowth,
			TopGenres:       defaultTopGenres,
		},
		Remote: RemoteConfig{
			Timeout:      defaultRemoteTimeout,
			RetryBackoff: defaultRetryBackoff,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
		Primary: SpaceConfig{
			Name:              defaultPrimaryName,
			Backend:           defaultBackend,
			IndexType:         defaultIndexType,
			IndexPath:         defaultPrimaryIndexPath,
			MetadataPath:      defaultMetadataPath,
			EfSearch:          defaultEfSearch,
			Dimensions:        defaultPrimaryDimensions,
			EmbeddingProvider: defaultEmbeddingProvider,
			EmbeddingTarget:   defaultEmbeddingTarget,
			EmbeddingModel:    defaultPrimaryModel,
		},
		Secondary: SpaceConfig{
			Name:              defaultSecondaryName,
			Enabled:           false,
			Backend:           defaultBackend,
			IndexType:         defaultIndexType,
			IndexPath:         defaultSecondaryIndexPath,
			MetadataPath:      defaultMetadataPath,
			EfSearch:          defaultEfSearch,
			Dimensions:        defaultSecondaryDimensions,
			EmbeddingProvider: defaultEmbeddingProvider,
			EmbeddingTarget:   defaultEmbeddingTarget,
			EmbeddingModel:    defaultSecondaryModel,
		},
	}
}
