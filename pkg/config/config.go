package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/sleeves/pkg/dotdir"
)

const (
	configFile = "config.toml"

	// v0 is the alpha version of the config
	v0 = 0

	// CurrentV is the currently supported version, points to v0
	CurrentV = v0
)

type Configer struct {
	ddm        *dotdir.Manager
	targetPath string
}

func NewConfiger(override string) (*Configer, error) {
	cfger := &Configer{}

	cfger.ddm = dotdir.NewManager()
	target, err := cfger.ddm.Target(override)
	if err != nil {
		return nil, err
	}

	// If no .sleeves/ directory was resolved, targetPath stays empty;
	// LoadConfig will return defaults and SaveConfig will error clearly.
	if target == "" {
		return cfger, nil
	}

	path := filepath.Join(target, configFile)
	_, err = os.Stat(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfger.targetPath = path

	return cfger, nil
}

// ValidConfigKeys returns all supported configuration key names in the
// order of the TOML section layout.
func ValidConfigKeys() []string {
	ordered := []string{
		"api.listen",
		"client.api_target",
		"search.max_k",
		"search.default_k",
		"search.expansion_factor",
		"search.expansion_growth",
		"search.top_genres",
		"remote.timeout",
		"remote.retry_backoff",
		"s3.region",
		"s3.endpoint",
		"s3.path_style",
		"events.provider",
		"events.brokers",
		"events.topic",
	}
	for _, k := range spaceKeyOrder {
		ordered = append(ordered, "primary."+k)
	}
	ordered = append(ordered, "secondary.enabled")
	for _, k := range spaceKeyOrder {
		ordered = append(ordered, "secondary."+k)
	}

	result := make([]string, 0, len(configKeys))
	seen := make(map[string]bool, len(configKeys))
	for _, k := range ordered {
		if _, ok := configKeys[k]; ok && !seen[k] {
			result = append(result, k)
			seen[k] = true
		}
	}

	// Append any keys in the map that we missed in the ordered list.
	var rest []string
	for k := range configKeys {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	slices.Sort(rest)

	return append(result, rest...)
}

// IsValidConfigKey returns true if the given key is a supported configuration key.
func IsValidConfigKey(key string) bool {
	_, ok := configKeys[key]
	return ok
}

func (c *Configer) GetTarget() string {
	return c.targetPath
}

// LoadConfig loads the configuration from config.toml in the target
// .sleeves/ directory. If the file does not exist, returns defaults so
// callers always receive a fully-populated Config. Fields explicitly set in
// the file override the defaults.
func (c *Configer) LoadConfig() (*Config, error) {
	if c.targetPath == "" {
		return NewDefaultConfig(), nil
	}

	data, err := os.ReadFile(c.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := ParseConfigTOML(data)
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults fills zero-value fields in cfg with values from NewDefaultConfig().
func applyDefaults(cfg *Config) {
	d := NewDefaultConfig()

	fillString(&cfg.API.Listen, d.API.Listen)
	fillString(&cfg.Client.APITarget, d.Client.APITarget)

	fillUint(&cfg.Search.MaxK, d.Search.MaxK)
	fillUint(&cfg.Search.DefaultK, d.Search.DefaultK)
	fillUint(&cfg.Search.ExpansionFactor, d.Search.ExpansionFactor)
	fillUint(&cfg.Search.ExpansionGrowth, d.Search.ExpansionGrowth)
	fillUint(&cfg.Search.TopGenres, d.Search.TopGenres)

	if cfg.Remote.Timeout == 0 {
		cfg.Remote.Timeout = d.Remote.Timeout
	}
	if cfg.Remote.RetryBackoff == 0 {
		cfg.Remote.RetryBackoff = d.Remote.RetryBackoff
	}

	fillString(&cfg.Events.Provider, d.Events.Provider)
	fillString(&cfg.Events.Topic, d.Events.Topic)

	applySpaceDefaults(&cfg.Primary, d.Primary)
	applySpaceDefaults(&cfg.Secondary, d.Secondary)
}

// applySpaceDefaults fills a space section. Artifact paths are only
// defaulted for local spaces.
func applySpaceDefaults(s *SpaceConfig, d SpaceConfig) {
	fillString(&s.Name, d.Name)
	fillString(&s.Backend, d.Backend)
	fillUint(&s.EfSearch, d.EfSearch)
	fillString(&s.EmbeddingProvider, d.EmbeddingProvider)
	fillString(&s.EmbeddingTarget, d.EmbeddingTarget)
	fillString(&s.EmbeddingModel, d.EmbeddingModel)

	if s.Backend == d.Backend {
		fillString(&s.IndexType, d.IndexType)
		fillString(&s.IndexPath, d.IndexPath)
		fillString(&s.MetadataPath, d.MetadataPath)
		fillUint(&s.Dimensions, d.Dimensions)
	}
}

func fillString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

func fillUint(dst *uint, def uint) {
	if *dst == 0 {
		*dst = def
	}
}

// SaveConfig persists the configuration to config.toml in the target .sleeves/ directory.
func (c *Configer) SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}

	if c.targetPath == "" {
		return errors.New("cannot save empty target path")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(c.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// SetConfigValue loads the config, sets the given key to the given value, and saves it.
// Returns an error if the key is not a valid config key.
func (c *Configer) SetConfigValue(key string, value string) error {
	info, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}

	if err := info.set(cfg, value); err != nil {
		return err
	}

	return c.SaveConfig(cfg)
}

// GetConfigValue loads the config and returns the string representation of the given key.
// Returns an error if the key is not a valid config key.
func (c *Configer) GetConfigValue(key string) (string, error) {
	info, ok := configKeys[key]
	if !ok {
		return "", fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}

	return info.get(cfg), nil
}

// PresetConfig returns a Config with sane defaults for the named deployment
// preset. Supported presets: "local", "postgres", "chroma".
// Returns an error if the preset name is not recognized.
func PresetConfig(name string) (*Config, error) {
	cfg := NewDefaultConfig()

	switch strings.ToLower(name) {
	case "local":
		return cfg, nil

	case "postgres":
		cfg.Primary = SpaceConfig{
			Name:              defaultPrimaryName,
			Backend:           "postgres",
			Collection:        "album_covers",
			Function:          "search_albums",
			Dimensions:        defaultPrimaryDimensions,
			EmbeddingProvider: defaultEmbeddingProvider,
			EmbeddingTarget:   defaultEmbeddingTarget,
			EmbeddingModel:    defaultPrimaryModel,
		}
		cfg.Secondary.Backend = "postgres"
		cfg.Secondary.Collection = "album_covers"
		cfg.Secondary.Function = "search_albums_text"
		cfg.Secondary.IndexType, cfg.Secondary.IndexPath, cfg.Secondary.MetadataPath = "", "", ""
		return cfg, nil

	case "chroma":
		cfg.Primary = SpaceConfig{
			Name:              defaultPrimaryName,
			Backend:           "chroma",
			Target:            "http://localhost:8001",
			Collection:        "album_covers",
			EmbeddingProvider: defaultEmbeddingProvider,
			EmbeddingTarget:   defaultEmbeddingTarget,
			EmbeddingModel:    defaultPrimaryModel,
		}
		cfg.Secondary.Backend = "chroma"
		cfg.Secondary.Target = "http://localhost:8001"
		cfg.Secondary.Collection = "album_descriptions"
		cfg.Secondary.IndexType, cfg.Secondary.IndexPath, cfg.Secondary.MetadataPath = "", "", ""
		cfg.Secondary.Dimensions = 0
		return cfg, nil

	default:
		return nil, fmt.Errorf("unknown preset: %q (available: %s)", name, strings.Join(ValidPresetNames(), ", "))
	}
}

// ValidPresetNames returns the list of recognized preset names.
func ValidPresetNames() []string {
	return []string{"local", "postgres", "chroma"}
}

// ParseConfigTOML parses raw TOML bytes into a Config.
// Returns an error if the version field is present and not equal to CurrentV.
func ParseConfigTOML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config TOML: %w", err)
	}

	if cfg.Version != 0 && cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}

	return cfg, nil
}
