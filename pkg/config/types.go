package config

import (
	"fmt"
	"strconv"
	"time"
)

// Config represents the persistent sleeves configuration stored as
// config.toml in the .sleeves/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version   int          `toml:"version"`
	API       APIConfig    `toml:"api"`
	Client    ClientConfig `toml:"client"`
	Search    SearchConfig `toml:"search"`
	Remote    RemoteConfig `toml:"remote"`
	S3        S3Config     `toml:"s3"`
	Events    EventsConfig `toml:"events"`
	Primary   SpaceConfig  `toml:"primary"`
	Secondary SpaceConfig  `toml:"secondary"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ClientConfig holds settings for CLI commands that connect to a running
// API server (e.g. sleeves search, sleeves genres). Values are full URLs
// (scheme + host + port).
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty"`
}

// SearchConfig holds query engine limits and the candidate expansion policy.
type SearchConfig struct {
	MaxK            uint `toml:"max_k,omitempty"`
	DefaultK        uint `toml:"default_k,omitempty"`
	ExpansionFactor uint `toml:"expansion_factor,omitempty"`
	ExpansionGrowth uint `toml:"expansion_growth,omitempty"`
	TopGenres       uint `toml:"top_genres,omitempty"`
}

// RemoteConfig holds network settings shared by remote backends.
type RemoteConfig struct {
	Timeout      time.Duration `toml:"timeout,omitempty"`
	RetryBackoff time.Duration `toml:"retry_backoff,omitempty"`
}

// S3Config holds object storage settings for s3:// artifact locations.
// Credentials come from the standard AWS environment and profiles.
type S3Config struct {
	Region    string `toml:"region,omitempty"`
	Endpoint  string `toml:"endpoint,omitempty"`
	PathStyle bool   `toml:"path_style,omitempty"`
}

// EventsConfig holds search event publishing settings.
type EventsConfig struct {
	Provider string `toml:"provider,omitempty"`
	// Brokers is a comma separated list of Kafka brokers.
	Brokers string `toml:"brokers,omitempty"`
	Topic   string `toml:"topic,omitempty"`
}

// SpaceConfig describes one named embedding space: where its vectors live
// and how queries are embedded into it.
type SpaceConfig struct {
	Name string `toml:"name,omitempty"`

	// Enabled turns the secondary space on. The primary space is always served.
	Enabled bool `toml:"enabled,omitempty"`

	// Backend is one of "local", "postgres" or "chroma".
	Backend string `toml:"backend,omitempty"`

	// Local artifacts.
	IndexType    string `toml:"index_type,omitempty"`
	IndexPath    string `toml:"index_path,omitempty"`
	MetadataPath string `toml:"metadata_path,omitempty"`
	EfSearch     uint   `toml:"ef_search,omitempty"`

	// Remote service: a PostgreSQL DSN or Chroma URL.
	Target     string `toml:"target,omitempty"`
	Collection string `toml:"collection,omitempty"`
	Function   string `toml:"function,omitempty"`

	Dimensions uint `toml:"dimensions,omitempty"`

	EmbeddingProvider string `toml:"embedding_provider,omitempty"`
	EmbeddingTarget   string `toml:"embedding_target,omitempty"`
	EmbeddingModel    string `toml:"embedding_model,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func uintKey(name string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(*field(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

func boolKey(name string, field func(c *Config) *bool) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = b
			return nil
		},
	}
}

func durationKey(name string, field func(c *Config) *time.Duration) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return field(c).String()
		},
		set: func(c *Config, v string) error {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = d
			return nil
		},
	}
}

// spaceKeys registers the keys of one [primary] or [secondary] section.
func spaceKeys(keys map[string]configKeyInfo, section string, space func(c *Config) *SpaceConfig) {
	keys[section+".name"] = stringKey(func(c *Config) *string { return &space(c).Name })
	keys[section+".backend"] = stringKey(func(c *Config) *string { return &space(c).Backend })
	keys[section+".index_type"] = stringKey(func(c *Config) *string { return &space(c).IndexType })
	keys[section+".index_path"] = stringKey(func(c *Config) *string { return &space(c).IndexPath })
	keys[section+".metadata_path"] = stringKey(func(c *Config) *string { return &space(c).MetadataPath })
	keys[section+".ef_search"] = uintKey(section+".ef_search", func(c *Config) *uint { return &space(c).EfSearch })
	keys[section+".target"] = stringKey(func(c *Config) *string { return &space(c).Target })
	keys[section+".collection"] = stringKey(func(c *Config) *string { return &space(c).Collection })
	keys[section+".function"] = stringKey(func(c *Config) *string { return &space(c).Function })
	keys[section+".dimensions"] = uintKey(section+".dimensions", func(c *Config) *uint { return &space(c).Dimensions })
	keys[section+".embedding_provider"] = stringKey(func(c *Config) *string { return &space(c).EmbeddingProvider })
	keys[section+".embedding_target"] = stringKey(func(c *Config) *string { return &space(c).EmbeddingTarget })
	keys[section+".embedding_model"] = stringKey(func(c *Config) *string { return &space(c).EmbeddingModel })
}

// spaceKeyOrder is the per-section key order used by ValidConfigKeys.
var spaceKeyOrder = []string{
	"name", "backend",
	"index_type", "index_path", "metadata_path", "ef_search",
	"target", "collection", "function", "dimensions",
	"embedding_provider", "embedding_target", "embedding_model",
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = func() map[string]configKeyInfo {
	keys := map[string]configKeyInfo{
		"api.listen":        stringKey(func(c *Config) *string { return &c.API.Listen }),
		"client.api_target": stringKey(func(c *Config) *string { return &c.Client.APITarget }),

		"search.max_k":            uintKey("search.max_k", func(c *Config) *uint { return &c.Search.MaxK }),
		"search.default_k":        uintKey("search.default_k", func(c *Config) *uint { return &c.Search.DefaultK }),
		"search.expansion_factor": uintKey("search.expansion_factor", func(c *Config) *uint { return &c.Search.ExpansionFactor }),
		"search.expansion_growth": uintKey("search.expansion_growth", func(c *Config) *uint { return &c.Search.ExpansionGrowth }),
		"search.top_genres":       uintKey("search.top_genres", func(c *Config) *uint { return &c.Search.TopGenres }),

		"remote.timeout":       durationKey("remote.timeout", func(c *Config) *time.Duration { return &c.Remote.Timeout }),
		"remote.retry_backoff": durationKey("remote.retry_backoff", func(c *Config) *time.Duration { return &c.Remote.RetryBackoff }),

		"s3.region":     stringKey(func(c *Config) *string { return &c.S3.Region }),
		"s3.endpoint":   stringKey(func(c *Config) *string { return &c.S3.Endpoint }),
		"s3.path_style": boolKey("s3.path_style", func(c *Config) *bool { return &c.S3.PathStyle }),

		"events.provider": stringKey(func(c *Config) *string { return &c.Events.Provider }),
		"events.brokers":  stringKey(func(c *Config) *string { return &c.Events.Brokers }),
		"events.topic":    stringKey(func(c *Config) *string { return &c.Events.Topic }),
	}
	spaceKeys(keys, "primary", func(c *Config) *SpaceConfig { return &c.Primary })
	spaceKeys(keys, "secondary", func(c *Config) *SpaceConfig { return &c.Secondary })
	keys["secondary.enabled"] = boolKey("secondary.enabled", func(c *Config) *bool { return &c.Secondary.Enabled })
	return keys
}()
