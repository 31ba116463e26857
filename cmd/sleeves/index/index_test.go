package indexcmder_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	indexcmder "github.com/papercomputeco/sleeves/cmd/sleeves/index"
	"github.com/papercomputeco/sleeves/pkg/artifact"
	"github.com/papercomputeco/sleeves/pkg/backend/local"
)

const corpus = `{"id":"a","artist":"Miles Davis","title":"Kind of Blue","genre":"Jazz","release_year":1959,"embedding":[1,0],"text_embedding":[0,1,0]}
{"id":"b","artist":"Pink Floyd","title":"Animals","genre":"Rock","release_year":1977,"flagged":true,"embedding":[0.6,0.8]}

{"id":"c","artist":"Portishead","title":"Dummy","genre":"Trip Hop","release_year":1994,"embedding":[0,1],"text_embedding":[1,0,0]}
`

var _ = Describe("NewIndexCmd", func() {
	It("has a build subcommand", func() {
		cmd := indexcmder.NewIndexCmd()
		Expect(cmd.Use).To(Equal("index"))

		build, _, err := cmd.Find([]string{"build"})
		Expect(err).NotTo(HaveOccurred())
		Expect(build.Name()).To(Equal("build"))
		Expect(build.Args(build, []string{})).NotTo(Succeed())
		Expect(build.Args(build, []string{"corpus.jsonl"})).To(Succeed())
	})
})

var _ = Describe("index build", func() {
	var (
		ctx     context.Context
		tmpDir  string
		corpusP string
		out     *bytes.Buffer
		store   *artifact.Store
	)

	run := func(args ...string) error {
		root := &cobra.Command{Use: "sleeves", SilenceUsage: true, SilenceErrors: true}
		root.PersistentFlags().BoolP("debug", "d", false, "")
		root.PersistentFlags().String("config-dir", "", "")
		root.AddCommand(indexcmder.NewIndexCmd())
		root.SetOut(out)
		root.SetArgs(append([]string{"--config-dir", filepath.Join(tmpDir, ".sleeves"), "index", "build"}, args...))
		return root.ExecuteContext(ctx)
	}

	load := func(index, metadata string) *local.Backend {
		b, err := local.Load(ctx, store, local.Config{
			IndexType:   local.IndexFlat,
			IndexURI:    index,
			MetadataURI: metadata,
		}, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(b.Close)
		return b
	}

	BeforeEach(func() {
		ctx = context.Background()
		tmpDir = GinkgoT().TempDir()
		out = &bytes.Buffer{}
		store = artifact.NewStore(artifact.S3Config{}, zap.NewNop())

		corpusP = filepath.Join(tmpDir, "corpus.jsonl")
		Expect(os.WriteFile(corpusP, []byte(corpus), 0o644)).To(Succeed())
	})

	It("builds the primary space from cover embeddings", func() {
		index := filepath.Join(tmpDir, "image.flat")
		metadata := filepath.Join(tmpDir, "metadata.msgpack")

		Expect(run(corpusP, "--index", index, "--metadata", metadata)).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Building image flat index (3 vectors)"))
		Expect(out.String()).To(ContainSubstring(index))

		b := load(index, metadata)
		Expect(b.Dimension()).To(Equal(2))
		Expect(b.Size(ctx)).To(Equal(3))

		records, err := b.Records(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(ContainElement(HaveField("Flagged", true)))
	})

	It("builds the secondary space from description embeddings", func() {
		index := filepath.Join(tmpDir, "text.flat")
		metadata := filepath.Join(tmpDir, "metadata.msgpack")

		Expect(run(corpusP, "--text", "--index", index, "--metadata", metadata)).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Building text flat index (2 vectors)"))

		b := load(index, metadata)
		Expect(b.Dimension()).To(Equal(3))
		Expect(b.Size(ctx)).To(Equal(2))
	})

	It("writes compressed artifacts that load transparently", func() {
		index := filepath.Join(tmpDir, "image.flat.zst")
		metadata := filepath.Join(tmpDir, "metadata.msgpack.zst")

		Expect(run(corpusP, "--index", index, "--metadata", metadata, "--compress")).To(Succeed())

		b := load(index, metadata)
		hits, err := b.Records(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(hits).To(HaveLen(3))
	})

	It("fails on a corpus without the requested embeddings", func() {
		lines := strings.Split(strings.TrimSpace(corpus), "\n")
		onlyCovers := filepath.Join(tmpDir, "covers.jsonl")
		Expect(os.WriteFile(onlyCovers, []byte(lines[1]+"\n"), 0o644)).To(Succeed())

		err := run(onlyCovers, "--text",
			"--index", filepath.Join(tmpDir, "text.flat"),
			"--metadata", filepath.Join(tmpDir, "metadata.msgpack"))
		Expect(err).To(MatchError(ContainSubstring("corpus has no text embeddings")))
	})

	It("reports the line of a malformed corpus", func() {
		bad := filepath.Join(tmpDir, "bad.jsonl")
		Expect(os.WriteFile(bad, []byte(`{"id":"a","embedding":[1,0]}`+"\n{not json\n"), 0o644)).To(Succeed())

		err := run(bad, "--index", filepath.Join(tmpDir, "x.flat"), "--metadata", filepath.Join(tmpDir, "x.msgpack"))
		Expect(err).To(MatchError(ContainSubstring("corpus line 2")))
	})

	It("fails when the corpus does not exist", func() {
		Expect(run(filepath.Join(tmpDir, "missing.jsonl"))).To(HaveOccurred())
	})
})
