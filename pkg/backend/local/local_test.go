package local_test

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/sleeves/pkg/artifact"
	"github.com/papercomputeco/sleeves/pkg/backend"
	"github.com/papercomputeco/sleeves/pkg/backend/local"
	"github.com/papercomputeco/sleeves/pkg/catalog"
	"github.com/papercomputeco/sleeves/pkg/vector"
	"github.com/papercomputeco/sleeves/pkg/vector/flat"
	"github.com/papercomputeco/sleeves/pkg/vector/hnsw"
)

func year(y int) *int { return &y }

func candidateIDs(cs []backend.Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Record.ID
	}
	return out
}

var _ = Describe("Backend", func() {
	var (
		ctx     context.Context
		logger  *zap.Logger
		entries []vector.Entry
		records []catalog.Record
	)

	BeforeEach(func() {
		ctx = context.Background()
		logger = zap.NewNop()
		entries = []vector.Entry{
			{ID: "a", Embedding: []float32{1, 0, 0}},
			{ID: "b", Embedding: []float32{0.8, 0.6, 0}},
			{ID: "c", Embedding: []float32{0.6, 0.8, 0}},
			{ID: "d", Embedding: []float32{0, 1, 0}},
			{ID: "e", Embedding: []float32{0, 0, 1}},
		}
		// metadata deliberately ordered differently from the index
		records = []catalog.Record{
			{ID: "e", Genre: "Jazz", ReleaseYear: year(1960)},
			{ID: "d", Genre: "Rock", ReleaseYear: year(2010), Flagged: true},
			{ID: "c", Genre: "Rock", ReleaseYear: year(1990)},
			{ID: "b", Genre: "Jazz", ReleaseYear: year(1975)},
			{ID: "a", Genre: "Rock", ReleaseYear: year(2001)},
		}
	})

	newBackend := func(es []vector.Entry, rs []catalog.Record) *local.Backend {
		idx, err := flat.Build(es)
		Expect(err).NotTo(HaveOccurred())
		cat, err := catalog.New(rs)
		Expect(err).NotTo(HaveOccurred())
		return local.New(idx, cat, logger)
	}

	It("advertises push-down for exact indexes", func() {
		b := newBackend(entries, records)
		Expect(b.Capabilities().Pushdown).To(Equal(catalog.PredicateAll))
		Expect(b.Dimension()).To(Equal(3))
		size, err := b.Size(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(size).To(Equal(5))
		Expect(b.IntegrityWarnings()).To(BeEmpty())
	})

	It("joins hits to their records by id", func() {
		b := newBackend(entries, records)
		resp, err := b.Search(ctx, backend.Request{Vector: []float32{1, 0, 0}, Candidates: 3})
		Expect(err).NotTo(HaveOccurred())
		Expect(candidateIDs(resp.Candidates)).To(Equal([]string{"a", "b", "c"}))
		Expect(resp.Candidates[0].Record.ReleaseYear).To(Equal(year(2001)))
		Expect(resp.Exhausted).To(BeFalse())
	})

	It("pushes filters into the scan", func() {
		b := newBackend(entries, records)
		resp, err := b.Search(ctx, backend.Request{
			Vector:     []float32{0, 1, 0},
			Candidates: 10,
			Filter:     catalog.Filter{Genre: "Rock", ExcludeFlagged: true},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(candidateIDs(resp.Candidates)).To(Equal([]string{"c", "a"}))
		Expect(resp.Exhausted).To(BeTrue())
	})

	It("returns nothing for a filter that matches no record", func() {
		b := newBackend(entries, records)
		resp, err := b.Search(ctx, backend.Request{
			Vector:     []float32{0, 1, 0},
			Candidates: 3,
			Filter:     catalog.Filter{Genre: "Polka"},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Candidates).To(BeEmpty())
		Expect(resp.Exhausted).To(BeTrue())
	})

	It("skips index entries without metadata and warns about the mismatch", func() {
		b := newBackend(entries, records[:3])
		Expect(b.IntegrityWarnings()).To(HaveLen(2))

		resp, err := b.Search(ctx, backend.Request{Vector: []float32{1, 0, 0}, Candidates: 5})
		Expect(err).NotTo(HaveOccurred())
		Expect(candidateIDs(resp.Candidates)).To(Equal([]string{"c", "d", "e"}))
	})

	It("fills the request from joinable entries when the best hits have no record", func() {
		// x and y rank at the top but have no metadata
		es := append([]vector.Entry{
			{ID: "x", Embedding: []float32{1, 0, 0}},
			{ID: "y", Embedding: []float32{0.99, 0.01, 0}},
		}, entries...)
		b := newBackend(es, records)
		Expect(b.IntegrityWarnings()).To(HaveLen(2))

		resp, err := b.Search(ctx, backend.Request{Vector: []float32{1, 0, 0}, Candidates: 2})
		Expect(err).NotTo(HaveOccurred())
		Expect(candidateIDs(resp.Candidates)).To(Equal([]string{"a", "b"}))
		Expect(resp.Exhausted).To(BeFalse())

		resp, err = b.Search(ctx, backend.Request{Vector: []float32{1, 0, 0}, Candidates: 10})
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Candidates).To(HaveLen(5))
		Expect(resp.Exhausted).To(BeTrue())
	})

	It("leaves short responses from approximate indexes unexhausted", func() {
		es := append([]vector.Entry{
			{ID: "x", Embedding: []float32{1, 0, 0}},
		}, entries...)
		idx, err := hnsw.Build(es, hnsw.Options{})
		Expect(err).NotTo(HaveOccurred())
		cat, err := catalog.New(records)
		Expect(err).NotTo(HaveOccurred())
		b := local.New(idx, cat, logger)

		resp, err := b.Search(ctx, backend.Request{Vector: []float32{1, 0, 0}, Candidates: 2})
		Expect(err).NotTo(HaveOccurred())
		Expect(candidateIDs(resp.Candidates)).To(Equal([]string{"a"}))
		Expect(resp.Exhausted).To(BeFalse())
	})

	It("propagates dimension errors", func() {
		b := newBackend(entries, records)
		_, err := b.Search(ctx, backend.Request{Vector: []float32{1, 0}, Candidates: 3})
		Expect(err).To(MatchError(vector.ErrInvalidDimension))
	})

	It("lists distinct values from the catalog", func() {
		b := newBackend(entries, records)
		genres, err := b.Distinct(ctx, catalog.FieldGenre)
		Expect(err).NotTo(HaveOccurred())
		Expect(genres).To(Equal([]string{"Jazz", "Rock"}))
	})

	DescribeTable("Build and Load round trip",
		func(indexType string, compress bool) {
			dir := GinkgoT().TempDir()
			store := artifact.NewStore(artifact.S3Config{}, logger)
			cfg := local.Config{
				IndexType:   indexType,
				IndexURI:    filepath.Join(dir, "index-"+indexType),
				MetadataURI: filepath.Join(dir, "metadata.msgpack"),
				TempDir:     dir,
			}

			Expect(local.Build(ctx, store, cfg, entries, records, local.BuildOptions{Compress: compress}, logger)).To(Succeed())

			b, err := local.Load(ctx, store, cfg, logger)
			Expect(err).NotTo(HaveOccurred())
			defer b.Close()

			Expect(b.IntegrityWarnings()).To(BeEmpty())
			resp, err := b.Search(ctx, backend.Request{Vector: []float32{1, 0, 0}, Candidates: 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(candidateIDs(resp.Candidates)).To(Equal([]string{"a"}))
			Expect(resp.Candidates[0].Record.Genre).To(Equal("Rock"))
		},
		Entry("flat", local.IndexFlat, false),
		Entry("flat compressed", local.IndexFlat, true),
		Entry("hnsw", local.IndexHNSW, false),
		Entry("sqlitevec", local.IndexSQLiteVec, false),
		Entry("sqlitevec compressed", local.IndexSQLiteVec, true),
	)

	It("fails to load when an artifact is missing", func() {
		dir := GinkgoT().TempDir()
		store := artifact.NewStore(artifact.S3Config{}, logger)
		_, err := local.Load(ctx, store, local.Config{
			IndexType:   local.IndexFlat,
			IndexURI:    filepath.Join(dir, "nope"),
			MetadataURI: filepath.Join(dir, "nope-either"),
		}, logger)
		Expect(err).To(MatchError(artifact.ErrNotFound))
	})
})
