package indexcmder

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/sleeves/pkg/artifact"
	"github.com/papercomputeco/sleeves/pkg/backend/local"
	"github.com/papercomputeco/sleeves/pkg/cliui"
	"github.com/papercomputeco/sleeves/pkg/config"
	"github.com/papercomputeco/sleeves/pkg/logger"
	"github.com/papercomputeco/sleeves/pkg/vector/hnsw"
)

type buildCommander struct {
	corpus   string
	text     bool
	compress bool
	hnswM    int

	// Registered flag targets, read back through viper.
	indexPath    string
	metadataPath string
	indexType    string
	s3Endpoint   string
	s3Region     string
	s3PathStyle  bool

	debug  bool
	cfg    *config.Config
	logger *zap.Logger
}

var buildFlagKeys = []string{
	config.FlagIndexPath,
	config.FlagMetadataPath,
	config.FlagIndexType,
	config.FlagS3Endpoint,
	config.FlagS3Region,
	config.FlagS3PathStyle,
}

const buildLongDesc string = `Build index and metadata artifacts from a JSONL corpus.

Each corpus line is one album:
  {"id": "...", "artist": "...", "title": "...", "genre": "...",
   "release_year": 1977, "score": 8.1, "flagged": false,
   "cover_url": "...", "embedding": [...], "text_embedding": [...]}

The cover embedding feeds the primary space. With --text the description
embedding feeds the secondary space instead, written to secondary.index_path.
Artifact locations default to the configured space and may be s3:// URIs.

Examples:
  sleeves index build corpus.jsonl
  sleeves index build corpus.jsonl --index-type hnsw --index .sleeves/index/image.hnsw
  sleeves index build corpus.jsonl --text --compress`

const buildShortDesc string = "Build local search artifacts"

func newBuildCmd() *cobra.Command {
	cmder := &buildCommander{}

	cmd := &cobra.Command{
		Use:   "build <corpus.jsonl>",
		Short: buildShortDesc,
		Long:  buildLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.ServeFlags, buildFlagKeys)

			cmder.cfg, err = config.Unmarshal(v)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.corpus = args[0]

			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run(cmd.Context(), cmd.OutOrStdout(), cmder.target(cmd))
		},
	}

	config.AddStringFlag(cmd, config.ServeFlags, config.FlagIndexPath, &cmder.indexPath)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagMetadataPath, &cmder.metadataPath)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagIndexType, &cmder.indexType)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagS3Endpoint, &cmder.s3Endpoint)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagS3Region, &cmder.s3Region)
	config.AddBoolFlag(cmd, config.ServeFlags, config.FlagS3PathStyle, &cmder.s3PathStyle)
	cmd.Flags().BoolVar(&cmder.text, "text", false, "Build the secondary space from description embeddings")
	cmd.Flags().BoolVar(&cmder.compress, "compress", false, "Write zstd compressed artifacts")
	cmd.Flags().IntVar(&cmder.hnswM, "hnsw-m", hnsw.DefaultM, "Maximum neighbours per node for hnsw indexes")

	return cmd
}

// target resolves the space being built. The artifact flags are bound to the
// primary keys, so with --text an explicit flag still wins over the
// secondary section.
func (c *buildCommander) target(cmd *cobra.Command) config.SpaceConfig {
	if !c.text {
		return c.cfg.Primary
	}

	space := c.cfg.Secondary
	if cmd.Flags().Changed("index") {
		space.IndexPath = c.cfg.Primary.IndexPath
	}
	if cmd.Flags().Changed("metadata") {
		space.MetadataPath = c.cfg.Primary.MetadataPath
	}
	if cmd.Flags().Changed("index-type") {
		space.IndexType = c.cfg.Primary.IndexType
	}
	return space
}

func (c *buildCommander) run(ctx context.Context, w io.Writer, space config.SpaceConfig) error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	store := artifact.NewStore(artifact.S3Config{
		Region:    c.cfg.S3.Region,
		Endpoint:  c.cfg.S3.Endpoint,
		PathStyle: c.cfg.S3.PathStyle,
	}, c.logger)

	var items []artifact.CorpusItem
	err := cliui.Step(w, "Reading corpus "+c.corpus, func() error {
		r, err := store.Open(ctx, c.corpus)
		if err != nil {
			return err
		}
		defer r.Close()

		items, err = artifact.ReadCorpus(r)
		return err
	})
	if err != nil {
		return err
	}

	entries := artifact.Entries(items, c.text)
	if len(entries) == 0 {
		return fmt.Errorf("corpus has no %s embeddings", space.Name)
	}
	if dim := len(entries[0].Embedding); space.Dimensions > 0 && uint(dim) != space.Dimensions {
		c.logger.Warn("corpus dimension differs from the configured space dimension",
			zap.String("space", space.Name),
			zap.Int("corpus", dim),
			zap.Uint("configured", space.Dimensions),
		)
	}

	lc := local.Config{
		IndexType:   space.IndexType,
		IndexURI:    space.IndexPath,
		MetadataURI: space.MetadataPath,
	}
	opts := local.BuildOptions{
		Compress: c.compress,
		HNSW:     hnsw.Options{M: c.hnswM, EfSearch: int(space.EfSearch)},
	}

	msg := fmt.Sprintf("Building %s %s index (%d vectors)", space.Name, space.IndexType, len(entries))
	err = cliui.Step(w, msg, func() error {
		return local.Build(ctx, store, lc, entries, artifact.Records(items), opts, c.logger)
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "\n  %s %s\n  %s %s\n",
		cliui.KeyStyle.Render("index:   "), cliui.ValueStyle.Render(space.IndexPath),
		cliui.KeyStyle.Render("metadata:"), cliui.ValueStyle.Render(space.MetadataPath),
	)
	return nil
}
