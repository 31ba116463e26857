package servecmder

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/sleeves/pkg/artifact"
	"github.com/papercomputeco/sleeves/pkg/backend/local"
	"github.com/papercomputeco/sleeves/pkg/catalog"
	"github.com/papercomputeco/sleeves/pkg/config"
	"github.com/papercomputeco/sleeves/pkg/vector"
)

var _ = Describe("NewServeCmd", func() {
	It("creates a command with the correct use string", func() {
		cmd := NewServeCmd()
		Expect(cmd.Use).To(Equal("serve"))
		Expect(cmd.Args(cmd, []string{"extra"})).NotTo(Succeed())
	})

	DescribeTable("registers flags with config defaults",
		func(name, def string) {
			f := NewServeCmd().Flags().Lookup(name)
			Expect(f).NotTo(BeNil())
			Expect(f.DefValue).To(Equal(def))
		},
		Entry("listen", "listen", ":8000"),
		Entry("max-k", "max-k", "500"),
		Entry("default-k", "default-k", "50"),
		Entry("backend", "backend", "local"),
		Entry("index-type", "index-type", "flat"),
		Entry("text-space", "text-space", "false"),
		Entry("events-provider", "events-provider", "nop"),
		Entry("kafka-topic", "kafka-topic", "sleeves.searches"),
		Entry("remote-timeout", "remote-timeout", "30s"),
		Entry("log-file", "log-file", ""),
		Entry("no-mcp", "no-mcp", "false"),
	)

	It("registers shorthands from the flag registry", func() {
		flags := NewServeCmd().Flags()
		Expect(flags.ShorthandLookup("l").Name).To(Equal("listen"))
		Expect(flags.ShorthandLookup("b").Name).To(Equal("backend"))
		Expect(flags.ShorthandLookup("i").Name).To(Equal("index"))
	})
})

var _ = Describe("serveCommander", func() {
	var (
		ctx    context.Context
		tmpDir string
		cmder  *serveCommander
		store  *artifact.Store
	)

	buildCorpus := func(name string) (string, string) {
		indexPath := filepath.Join(tmpDir, name+".flat")
		metadataPath := filepath.Join(tmpDir, name+".msgpack")
		entries := []vector.Entry{
			{ID: "a", Embedding: []float32{1, 0}},
			{ID: "b", Embedding: []float32{0, 1}},
		}
		records := []catalog.Record{{ID: "a", Genre: "Rock"}, {ID: "b", Genre: "Jazz"}}
		Expect(local.Build(ctx, store, local.Config{
			IndexType:   local.IndexFlat,
			IndexURI:    indexPath,
			MetadataURI: metadataPath,
		}, entries, records, local.BuildOptions{}, zap.NewNop())).To(Succeed())
		return indexPath, metadataPath
	}

	BeforeEach(func() {
		ctx = context.Background()
		tmpDir = GinkgoT().TempDir()
		store = artifact.NewStore(artifact.S3Config{}, zap.NewNop())

		cmder = &serveCommander{
			cfg:    config.NewDefaultConfig(),
			logger: zap.NewNop(),
		}
	})

	Describe("buildEngine", func() {
		It("loads the primary space from local artifacts", func() {
			cmder.cfg.Primary.IndexPath, cmder.cfg.Primary.MetadataPath = buildCorpus("image")
			cmder.cfg.Primary.Dimensions = 2

			engine, err := cmder.buildEngine(ctx, store)
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(engine.Close)

			Expect(engine.Spaces()).To(Equal([]string{"image"}))
			Expect(engine.DefaultSpace()).To(Equal("image"))
			Expect(engine.Dimension("image")).To(Equal(2))
			Expect(engine.Config().MaxK).To(Equal(500))
		})

		It("adds the secondary space only when enabled", func() {
			cmder.cfg.Primary.IndexPath, cmder.cfg.Primary.MetadataPath = buildCorpus("image")
			cmder.cfg.Primary.Dimensions = 2
			cmder.cfg.Secondary.IndexPath, cmder.cfg.Secondary.MetadataPath = buildCorpus("text")
			cmder.cfg.Secondary.Dimensions = 2
			cmder.cfg.Secondary.Enabled = true

			engine, err := cmder.buildEngine(ctx, store)
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(engine.Close)

			Expect(engine.Spaces()).To(Equal([]string{"image", "text"}))
		})

		It("serves vector queries only when no embedding provider is set", func() {
			cmder.cfg.Primary.IndexPath, cmder.cfg.Primary.MetadataPath = buildCorpus("image")
			cmder.cfg.Primary.Dimensions = 2
			cmder.cfg.Primary.EmbeddingProvider = ""

			engine, err := cmder.buildEngine(ctx, store)
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(engine.Close)

			_, err = engine.SearchText(ctx, "image", "anything", 1, catalog.Filter{})
			Expect(err).To(HaveOccurred())
		})

		It("names the space that failed to load", func() {
			cmder.cfg.Primary.IndexPath, cmder.cfg.Primary.MetadataPath = buildCorpus("image")
			cmder.cfg.Primary.Dimensions = 2
			cmder.cfg.Secondary.Enabled = true
			cmder.cfg.Secondary.Backend = "faiss"

			_, err := cmder.buildEngine(ctx, store)
			Expect(err).To(MatchError(ContainSubstring("loading space text")))
			Expect(err).To(MatchError(ContainSubstring("unsupported backend provider: faiss")))
		})

		It("rejects an index whose dimension does not match the config", func() {
			cmder.cfg.Primary.IndexPath, cmder.cfg.Primary.MetadataPath = buildCorpus("image")
			cmder.cfg.Primary.Dimensions = 512

			_, err := cmder.buildEngine(ctx, store)
			Expect(err).To(MatchError(ContainSubstring("does not match configured dimension 512")))
		})
	})

	Describe("buildEventPool", func() {
		It("builds a pool over the nop publisher", func() {
			pool, err := cmder.buildEventPool()
			Expect(err).NotTo(HaveOccurred())
			Expect(pool.Close()).To(Succeed())
		})

		It("rejects unknown providers", func() {
			cmder.cfg.Events.Provider = "nats"
			_, err := cmder.buildEventPool()
			Expect(err).To(MatchError(ContainSubstring("unsupported events provider: nats")))
		})
	})

	Describe("newLogger", func() {
		It("tees JSON logs to the log file", func() {
			cmder.logFile = filepath.Join(tmpDir, "serve.log")

			l, closeLog, err := cmder.newLogger()
			Expect(err).NotTo(HaveOccurred())
			l.Info("server started", zap.String("listen", ":8000"))
			_ = l.Sync()
			Expect(closeLog()).To(Succeed())

			data, err := os.ReadFile(cmder.logFile)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring(`"msg":"server started"`))
			Expect(string(data)).To(ContainSubstring(`"listen":":8000"`))
		})

		It("fails when the log file cannot be opened", func() {
			cmder.logFile = filepath.Join(tmpDir, "missing", "serve.log")
			_, _, err := cmder.newLogger()
			Expect(err).To(MatchError(ContainSubstring("opening log file")))
		})
	})
})
