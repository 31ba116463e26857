// Package servecmder provides the serve command, which loads every configured
// embedding space and runs the search API server.
package servecmder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/sleeves/api"
	"github.com/papercomputeco/sleeves/pkg/artifact"
	"github.com/papercomputeco/sleeves/pkg/config"
	"github.com/papercomputeco/sleeves/pkg/eventstream/worker"
	eventstreamutils "github.com/papercomputeco/sleeves/pkg/eventstream/utils"
	"github.com/papercomputeco/sleeves/pkg/logger"
	"github.com/papercomputeco/sleeves/pkg/search"
)

type serveCommander struct {
	flags   serveFlags
	logFile string
	noMCP   bool

	debug  bool
	cfg    *config.Config
	logger *zap.Logger
}

// serveFlags holds the registered flag targets. Effective values are read
// back through viper so that flags, SLEEVES_* variables and config.toml
// merge in one place.
type serveFlags struct {
	listen            string
	maxK              uint
	defaultK          uint
	backend           string
	indexType         string
	indexPath         string
	metadataPath      string
	efSearch          uint
	target            string
	collection        string
	dimensions        uint
	embeddingProvider string
	embeddingTarget   string
	embeddingModel    string
	textSpace         bool
	textIndexPath     string
	eventsProvider    string
	kafkaBrokers      string
	kafkaTopic        string
	s3Endpoint        string
	s3Region          string
	s3PathStyle       bool
	remoteTimeout     time.Duration
}

var serveFlagKeys = []string{
	config.FlagAPIListen,
	config.FlagMaxK,
	config.FlagDefaultK,
	config.FlagBackend,
	config.FlagIndexType,
	config.FlagIndexPath,
	config.FlagMetadataPath,
	config.FlagEfSearch,
	config.FlagTarget,
	config.FlagCollection,
	config.FlagDimensions,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagTextSpace,
	config.FlagTextIndexPath,
	config.FlagEventsProvider,
	config.FlagEventsBrokers,
	config.FlagEventsTopic,
	config.FlagS3Endpoint,
	config.FlagS3Region,
	config.FlagS3PathStyle,
	config.FlagRemoteTimeout,
}

const serveLongDesc string = `Run the sleeves search API server.

Loads the primary embedding space (and the secondary text space when enabled)
from local artifacts, PostgreSQL or Chroma, then serves:
  GET  /health                 Readiness and corpus size
  POST /api/search             Search by raw query embedding
  GET  /api/search-by-text     Search by a text description
  POST /api/search-by-image    Search by an uploaded cover (multipart "file")
  GET  /api/genres             Distinct genres
  GET  /api/year-range         Earliest and latest release years
  GET  /api/stats              Corpus statistics
       /mcp                    MCP tools search_albums and list_genres

Settings come from flags, SLEEVES_* environment variables, a .env file next
to config.toml, and config.toml, in that order of precedence.

Examples:
  sleeves serve
  sleeves serve --index s3://covers/image.flat.zst --metadata s3://covers/metadata.msgpack.zst
  sleeves serve --backend postgres --target "$DATABASE_URL"
  sleeves serve --text-space --events-provider kafka --kafka-brokers localhost:9092`

const serveShortDesc string = "Run the search API server"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.ServeFlags, serveFlagKeys)

			cmder.cfg, err = config.Unmarshal(v)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			return cmder.run(cmd.Context())
		},
	}

	f := &cmder.flags
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagAPIListen, &f.listen)
	config.AddUintFlag(cmd, config.ServeFlags, config.FlagMaxK, &f.maxK)
	config.AddUintFlag(cmd, config.ServeFlags, config.FlagDefaultK, &f.defaultK)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagBackend, &f.backend)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagIndexType, &f.indexType)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagIndexPath, &f.indexPath)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagMetadataPath, &f.metadataPath)
	config.AddUintFlag(cmd, config.ServeFlags, config.FlagEfSearch, &f.efSearch)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagTarget, &f.target)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagCollection, &f.collection)
	config.AddUintFlag(cmd, config.ServeFlags, config.FlagDimensions, &f.dimensions)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagEmbeddingProv, &f.embeddingProvider)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagEmbeddingTgt, &f.embeddingTarget)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagEmbeddingModel, &f.embeddingModel)
	config.AddBoolFlag(cmd, config.ServeFlags, config.FlagTextSpace, &f.textSpace)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagTextIndexPath, &f.textIndexPath)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagEventsProvider, &f.eventsProvider)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagEventsBrokers, &f.kafkaBrokers)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagEventsTopic, &f.kafkaTopic)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagS3Endpoint, &f.s3Endpoint)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagS3Region, &f.s3Region)
	config.AddBoolFlag(cmd, config.ServeFlags, config.FlagS3PathStyle, &f.s3PathStyle)
	config.AddDurationFlag(cmd, config.ServeFlags, config.FlagRemoteTimeout, &f.remoteTimeout)

	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also write JSON logs to this file")
	cmd.Flags().BoolVar(&cmder.noMCP, "no-mcp", false, "Disable the /mcp endpoint")

	return cmd
}

func (c *serveCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var closeLog func() error
	var err error
	c.logger, closeLog, err = c.newLogger()
	if err != nil {
		return err
	}
	defer func() {
		_ = c.logger.Sync()
		_ = closeLog()
	}()

	store := artifact.NewStore(artifact.S3Config{
		Region:    c.cfg.S3.Region,
		Endpoint:  c.cfg.S3.Endpoint,
		PathStyle: c.cfg.S3.PathStyle,
	}, c.logger)

	engine, err := c.buildEngine(ctx, store)
	if err != nil {
		return err
	}
	defer engine.Close()

	pool, err := c.buildEventPool()
	if err != nil {
		return err
	}
	defer func() {
		if err := pool.Close(); err != nil {
			c.logger.Warn("closing event publisher", zap.Error(err))
		}
	}()

	apiServer, err := api.NewServer(api.Config{
		ListenAddr: c.cfg.API.Listen,
		Events:     pool,
		DisableMCP: c.noMCP,
	}, engine, c.logger)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	// Channel to capture errors from the server goroutine
	errChan := make(chan error, 1)

	go func() {
		if err := apiServer.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		return apiServer.Shutdown()
	}
}

// newLogger builds the console logger, teed to a JSON file logger when
// --log-file is set.
func (c *serveCommander) newLogger() (*zap.Logger, func() error, error) {
	console := logger.NewLogger(c.debug)
	if c.logFile == "" {
		return console, func() error { return nil }, nil
	}

	f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	file := logger.New(logger.WithDebug(c.debug), logger.WithJSON(true), logger.WithWriter(f))
	return logger.Multi(console, file), f.Close, nil
}

func (c *serveCommander) buildEngine(ctx context.Context, store *artifact.Store) (*search.Engine, error) {
	configs := []config.SpaceConfig{c.cfg.Primary}
	if c.cfg.Secondary.Enabled {
		configs = append(configs, c.cfg.Secondary)
	}

	spaces := make([]search.Space, 0, len(configs))
	closeAll := func() {
		for _, s := range spaces {
			_ = s.Backend.Close()
			if s.Embedder != nil {
				_ = s.Embedder.Close()
			}
		}
	}

	for _, sc := range configs {
		s, err := newSpace(ctx, sc, spaceDeps{
			store:        store,
			timeout:      c.cfg.Remote.Timeout,
			retryBackoff: c.cfg.Remote.RetryBackoff,
			logger:       c.logger,
		})
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("loading space %s: %w", sc.Name, err)
		}
		spaces = append(spaces, s)
	}

	engine, err := search.New(search.Config{
		MaxK:            int(c.cfg.Search.MaxK),
		DefaultK:        int(c.cfg.Search.DefaultK),
		ExpansionFactor: int(c.cfg.Search.ExpansionFactor),
		ExpansionGrowth: int(c.cfg.Search.ExpansionGrowth),
		TopGenres:       int(c.cfg.Search.TopGenres),
	}, c.logger, spaces...)
	if err != nil {
		closeAll()
		return nil, err
	}

	for _, name := range engine.Spaces() {
		dim, _ := engine.Dimension(name)
		c.logger.Info("space ready", zap.String("space", name), zap.Int("dimension", dim))
	}
	return engine, nil
}

func (c *serveCommander) buildEventPool() (*worker.Pool, error) {
	publisher, err := eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{
		ProviderType: c.cfg.Events.Provider,
		Brokers:      c.cfg.Events.Brokers,
		Topic:        c.cfg.Events.Topic,
		Logger:       c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating event publisher: %w", err)
	}

	pool, err := worker.NewPool(&worker.Config{
		Publisher: publisher,
		Logger:    c.logger,
	})
	if err != nil {
		return nil, errors.Join(err, publisher.Close())
	}

	c.logger.Info("search events enabled", zap.String("provider", c.cfg.Events.Provider))
	return pool, nil
}
