package config

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --api-target
// on "sleeves search", "sleeves genres" and "sleeves stats").
type Flag struct {
	// Name is the long flag name (e.g. "backend").
	Name string

	// Shorthand is the one-letter short flag (e.g. "b"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "primary.backend").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddUintFlag, AddBoolFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagAPIListen      = "api-listen"
	FlagAPITarget      = "api-target"
	FlagMaxK           = "max-k"
	FlagDefaultK       = "default-k"
	FlagBackend        = "backend"
	FlagIndexType      = "index-type"
	FlagIndexPath      = "index"
	FlagMetadataPath   = "metadata"
	FlagEfSearch       = "ef-search"
	FlagTarget         = "target"
	FlagCollection     = "collection"
	FlagDimensions     = "dimensions"
	FlagEmbeddingProv  = "embedding-provider"
	FlagEmbeddingTgt   = "embedding-target"
	FlagEmbeddingModel = "embedding-model"
	FlagTextSpace      = "text-space"
	FlagTextIndexPath  = "text-index"
	FlagEventsProvider = "events-provider"
	FlagEventsBrokers  = "kafka-brokers"
	FlagEventsTopic    = "kafka-topic"
	FlagS3Endpoint     = "s3-endpoint"
	FlagS3Region       = "s3-region"
	FlagS3PathStyle    = "s3-path-style"
	FlagRemoteTimeout  = "remote-timeout"
	FlagLimit          = "limit"
)

// ServeFlags is the registry shared by "sleeves serve" and "sleeves index build".
var ServeFlags = FlagSet{
	FlagAPIListen:      {Name: "listen", Shorthand: "l", ViperKey: "api.listen", Description: "Address for the API server to listen on"},
	FlagMaxK:           {Name: "max-k", ViperKey: "search.max_k", Description: "Maximum number of results a single search may request"},
	FlagDefaultK:       {Name: "default-k", ViperKey: "search.default_k", Description: "Number of results when a request does not specify k"},
	FlagBackend:        {Name: "backend", Shorthand: "b", ViperKey: "primary.backend", Description: "Primary space backend (local, postgres, chroma)"},
	FlagIndexType:      {Name: "index-type", ViperKey: "primary.index_type", Description: "Local index type (flat, hnsw, sqlitevec)"},
	FlagIndexPath:      {Name: "index", Shorthand: "i", ViperKey: "primary.index_path", Description: "Primary index artifact path or s3:// URI"},
	FlagMetadataPath:   {Name: "metadata", Shorthand: "m", ViperKey: "primary.metadata_path", Description: "Metadata artifact path or s3:// URI"},
	FlagEfSearch:       {Name: "ef-search", ViperKey: "primary.ef_search", Description: "HNSW search breadth"},
	FlagTarget:         {Name: "target", ViperKey: "primary.target", Description: "Remote backend target (PostgreSQL DSN or Chroma URL)"},
	FlagCollection:     {Name: "collection", ViperKey: "primary.collection", Description: "Remote table or collection name"},
	FlagDimensions:     {Name: "dimensions", ViperKey: "primary.dimensions", Description: "Primary space vector dimension"},
	FlagEmbeddingProv:  {Name: "embedding-provider", ViperKey: "primary.embedding_provider", Description: "Query embedding provider (clip)"},
	FlagEmbeddingTgt:   {Name: "embedding-target", ViperKey: "primary.embedding_target", Description: "Query embedding service URL"},
	FlagEmbeddingModel: {Name: "embedding-model", ViperKey: "primary.embedding_model", Description: "Query embedding model name"},
	FlagTextSpace:      {Name: "text-space", ViperKey: "secondary.enabled", Description: "Serve the secondary text embedding space"},
	FlagTextIndexPath:  {Name: "text-index", ViperKey: "secondary.index_path", Description: "Secondary index artifact path or s3:// URI"},
	FlagEventsProvider: {Name: "events-provider", ViperKey: "events.provider", Description: "Search event publisher (nop, kafka)"},
	FlagEventsBrokers:  {Name: "kafka-brokers", ViperKey: "events.brokers", Description: "Comma separated Kafka brokers for search events"},
	FlagEventsTopic:    {Name: "kafka-topic", ViperKey: "events.topic", Description: "Kafka topic for search events"},
	FlagS3Endpoint:     {Name: "s3-endpoint", ViperKey: "s3.endpoint", Description: "Custom S3 endpoint for s3:// artifacts"},
	FlagS3Region:       {Name: "s3-region", ViperKey: "s3.region", Description: "S3 region for s3:// artifacts"},
	FlagS3PathStyle:    {Name: "s3-path-style", ViperKey: "s3.path_style", Description: "Use path style S3 addressing"},
	FlagRemoteTimeout:  {Name: "remote-timeout", ViperKey: "remote.timeout", Description: "Per request timeout for remote backends"},
}

// ClientFlags is the registry for commands that talk to a running API server.
var ClientFlags = FlagSet{
	FlagAPITarget: {Name: "api-target", Shorthand: "a", ViperKey: "client.api_target", Description: "Sleeves API server URL"},
	FlagLimit:     {Name: "limit", Shorthand: "k", ViperKey: "search.default_k", Description: "Number of results to return"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *uint) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultUint(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().UintVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// AddBoolFlag registers a bool flag on cmd from the given FlagSet.
func AddBoolFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *bool) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultBool(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().BoolVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().BoolVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddDurationFlag registers a duration flag on cmd from the given FlagSet.
func AddDurationFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *time.Duration) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultDuration(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().DurationVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().DurationVar(target, def.Name, defaultVal, def.Description)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultUint returns the default uint value for a viper key from NewDefaultConfig.
func defaultUint(viperKey string) uint {
	v := viper.New()
	setViperDefaults(v)
	return v.GetUint(viperKey)
}

// defaultBool returns the default bool value for a viper key from NewDefaultConfig.
func defaultBool(viperKey string) bool {
	v := viper.New()
	setViperDefaults(v)
	return v.GetBool(viperKey)
}

// defaultDuration returns the default duration value for a viper key from NewDefaultConfig.
func defaultDuration(viperKey string) time.Duration {
	v := viper.New()
	setViperDefaults(v)
	return v.GetDuration(viperKey)
}
