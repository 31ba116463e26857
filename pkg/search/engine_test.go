package search_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/sleeves/pkg/catalog"
	"github.com/papercomputeco/sleeves/pkg/embeddings"
	"github.com/papercomputeco/sleeves/pkg/search"
	"github.com/papercomputeco/sleeves/pkg/stats"
	testutils "github.com/papercomputeco/sleeves/pkg/utils/test"
	"github.com/papercomputeco/sleeves/pkg/vector"
)

var _ = Describe("Engine", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("New", func() {
		It("requires at least one space", func() {
			_, err := search.New(search.Config{}, zap.NewNop())
			Expect(err).To(HaveOccurred())
		})

		It("rejects unnamed spaces", func() {
			_, err := search.New(search.Config{}, zap.NewNop(), search.Space{Backend: testutils.NewMockBackend(2)})
			Expect(err).To(MatchError(ContainSubstring("name is required")))
		})

		It("rejects spaces without a backend", func() {
			_, err := search.New(search.Config{}, zap.NewNop(), search.Space{Name: "image"})
			Expect(err).To(MatchError(ContainSubstring("has no backend")))
		})

		It("rejects duplicate space names", func() {
			_, err := search.New(search.Config{}, zap.NewNop(),
				search.Space{Name: "image", Backend: testutils.NewMockBackend(2)},
				search.Space{Name: "image", Backend: testutils.NewMockBackend(3)},
			)
			Expect(err).To(MatchError(ContainSubstring("duplicate space")))
		})

		It("applies defaults and treats the first space as the default", func() {
			e, err := search.New(search.Config{DefaultK: 900}, zap.NewNop(),
				search.Space{Name: "image", Backend: testutils.NewMockBackend(512)},
				search.Space{Name: "text", Backend: testutils.NewMockBackend(768)},
			)
			Expect(err).NotTo(HaveOccurred())

			cfg := e.Config()
			Expect(cfg.MaxK).To(Equal(search.MaxK))
			Expect(cfg.DefaultK).To(Equal(search.MaxK))
			Expect(cfg.ExpansionFactor).To(Equal(search.DefaultExpansionFactor))
			Expect(cfg.ExpansionGrowth).To(Equal(search.DefaultExpansionGrowth))

			Expect(e.DefaultSpace()).To(Equal("image"))
			Expect(e.Spaces()).To(Equal([]string{"image", "text"}))

			dim, err := e.Dimension("")
			Expect(err).NotTo(HaveOccurred())
			Expect(dim).To(Equal(512))
			dim, err = e.Dimension("text")
			Expect(err).NotTo(HaveOccurred())
			Expect(dim).To(Equal(768))
		})
	})

	Describe("SearchText and SearchImage", func() {
		var (
			embedder *testutils.MockEmbedder
			mock     *testutils.MockBackend
			e        *search.Engine
		)

		BeforeEach(func() {
			embedder = testutils.NewMockEmbedder()
			embedder.Embeddings["sunset"] = []float32{0, 1}
			embedder.ImageEmbedding = []float32{1, 0}

			mock = testutils.NewMockBackend(2,
				testutils.MockItem{Record: catalog.Record{ID: "east", Genre: "Rock"}, Embedding: []float32{1, 0}},
				testutils.MockItem{Record: catalog.Record{ID: "north", Genre: "Jazz"}, Embedding: []float32{0, 1}},
			)

			var err error
			e, err = search.New(search.Config{}, zap.NewNop(),
				search.Space{Name: "image", Backend: mock, Embedder: embedder},
				search.Space{Name: "bare", Backend: testutils.NewMockBackend(2)},
			)
			Expect(err).NotTo(HaveOccurred())
		})

		It("embeds text and searches with the result", func() {
			results, err := e.SearchText(ctx, "", "sunset", 1, catalog.Filter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(results)).To(Equal([]string{"north"}))
			Expect(mock.Requests()[0].Vector).To(Equal([]float32{0, 1}))
		})

		It("embeds images and searches with the result", func() {
			results, err := e.SearchImage(ctx, "image", []byte{0x89, 'P', 'N', 'G'}, "image/png", 2, catalog.Filter{Genre: "Rock"})
			Expect(err).NotTo(HaveOccurred())
			Expect(ids(results)).To(Equal([]string{"east"}))
		})

		It("passes embedder errors through", func() {
			embedder.FailOn = "broken"
			_, err := e.SearchText(ctx, "", "broken", 1, catalog.Filter{})
			Expect(err).To(MatchError(embeddings.ErrModelUnavailable))

			_, err = e.SearchImage(ctx, "", nil, "image/png", 1, catalog.Filter{})
			Expect(err).To(MatchError(embeddings.ErrUnsupportedInput))
		})

		It("reports a dimension mismatch from a misconfigured embedder", func() {
			embedder.Embeddings["wide"] = []float32{1, 0, 0}
			_, err := e.SearchText(ctx, "", "wide", 1, catalog.Filter{})
			Expect(err).To(MatchError(vector.ErrInvalidDimension))
		})

		It("fails for spaces without an embedder", func() {
			_, err := e.SearchText(ctx, "bare", "sunset", 1, catalog.Filter{})
			Expect(err).To(MatchError(search.ErrNoEmbedder))
			Expect(errors.Is(err, embeddings.ErrModelUnavailable)).To(BeTrue())

			_, err = e.SearchImage(ctx, "bare", []byte{1}, "image/png", 1, catalog.Filter{})
			Expect(err).To(MatchError(search.ErrNoEmbedder))
		})
	})

	Describe("catalog views", func() {
		var e *search.Engine

		BeforeEach(func() {
			mock := testutils.NewMockBackend(2,
				testutils.MockItem{Record: catalog.Record{ID: "1", Genre: "Rock", ReleaseYear: year(1971), Score: score(8)}},
				testutils.MockItem{Record: catalog.Record{ID: "2", Genre: "Jazz", ReleaseYear: year(1959)}},
				testutils.MockItem{Record: catalog.Record{ID: "3", Genre: ""}},
				testutils.MockItem{Record: catalog.Record{ID: "4", Genre: "Rock", ReleaseYear: year(1994), Score: score(7), Flagged: true}},
				testutils.MockItem{Record: catalog.Record{ID: "5", Genre: ""}},
			)
			var err error
			e, err = search.New(search.Config{}, zap.NewNop(), search.Space{Name: "image", Backend: mock})
			Expect(err).NotTo(HaveOccurred())
		})

		It("lists distinct genres sorted and without empties", func() {
			genres, err := e.ListDistinct(ctx, "", catalog.FieldGenre)
			Expect(err).NotTo(HaveOccurred())
			Expect(genres).To(Equal([]string{"Jazz", "Rock"}))
		})

		It("rejects unknown fields", func() {
			_, err := e.ListDistinct(ctx, "", catalog.Field("label"))
			Expect(err).To(MatchError(vector.ErrInvalidArgument))
		})

		It("computes stats that ignore missing values", func() {
			s, err := e.Stats(ctx, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(s.TotalAlbums).To(Equal(5))
			Expect(s.FlaggedCount).To(Equal(1))
			Expect(s.Scores.Average).NotTo(BeNil())
			Expect(*s.Scores.Average).To(BeNumerically("~", 7.5, 1e-9))
			Expect(s.TopGenres[0]).To(Equal(stats.GenreCount{Genre: "Rock", Count: 2}))
		})

		It("returns the year range", func() {
			yr, err := e.YearRange(ctx, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(*yr.Min).To(Equal(1959))
			Expect(*yr.Max).To(Equal(1994))
		})

		It("rejects unknown spaces", func() {
			_, err := e.Stats(ctx, "audio")
			Expect(err).To(MatchError(vector.ErrInvalidArgument))
			_, err = e.YearRange(ctx, "audio")
			Expect(err).To(MatchError(vector.ErrInvalidArgument))
		})
	})

	Describe("Health", func() {
		It("reports size and integrity warnings for every space", func() {
			image := testutils.NewMockBackend(2, arcCorpus(7, func(int) string { return "Rock" })...)
			image.Warnings = []string{"2 vectors without metadata"}
			text := testutils.NewMockBackend(4, arcCorpus(3, func(int) string { return "Rock" })...)

			e, err := search.New(search.Config{}, zap.NewNop(),
				search.Space{Name: "image", Backend: image},
				search.Space{Name: "text", Backend: text},
			)
			Expect(err).NotTo(HaveOccurred())

			report := e.Health(ctx)
			Expect(report.Ready).To(BeTrue())
			Expect(report.CorpusSize).To(Equal(7))
			Expect(report.Spaces).To(HaveLen(2))
			Expect(report.Spaces[0].Warnings).To(ConsistOf("2 vectors without metadata"))
			Expect(report.Spaces[1].Dimension).To(Equal(4))
			Expect(report.Spaces[1].Size).To(Equal(3))
		})

		It("is not ready when a space fails", func() {
			broken := testutils.NewMockBackend(2)
			broken.Err = errors.New("connection refused")

			e, err := search.New(search.Config{}, zap.NewNop(),
				search.Space{Name: "image", Backend: testutils.NewMockBackend(2)},
				search.Space{Name: "text", Backend: broken},
			)
			Expect(err).NotTo(HaveOccurred())

			report := e.Health(ctx)
			Expect(report.Ready).To(BeFalse())
			Expect(report.Spaces[0].Ready).To(BeTrue())
			Expect(report.Spaces[1].Ready).To(BeFalse())
			Expect(report.Spaces[1].Error).To(ContainSubstring("connection refused"))
		})
	})
})
