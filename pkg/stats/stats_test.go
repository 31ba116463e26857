package stats_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/sleeves/pkg/catalog"
	"github.com/papercomputeco/sleeves/pkg/stats"
)

func intp(v int) *int           { return &v }
func floatp(v float64) *float64 { return &v }

var _ = Describe("Compute", func() {
	var records []catalog.Record

	BeforeEach(func() {
		records = []catalog.Record{
			{ID: "1", Genre: "Jazz", ReleaseYear: intp(1999), Score: floatp(8.0)},
			{ID: "2", Genre: "Rock", ReleaseYear: intp(2004), Score: floatp(6.0), Flagged: true},
			{ID: "3", Genre: "Rock", Score: nil},
			{ID: "4", Genre: "", ReleaseYear: intp(1987), Score: floatp(7.0)},
			{ID: "5", Genre: "Jazz", ReleaseYear: intp(2011), Score: floatp(0.0), Flagged: true},
			{ID: "6", Genre: "Folk"},
		}
	})

	It("counts categories in descending order with first-seen ties", func() {
		s := stats.Compute(records, stats.AlbumOptions(0))
		Expect(s.TopCategories).To(Equal([]stats.CategoryCount{
			{Name: "Jazz", Count: 2},
			{Name: "Rock", Count: 2},
			{Name: stats.UnknownCategory, Count: 1},
			{Name: "Folk", Count: 1},
		}))
	})

	It("limits the category list to TopN", func() {
		s := stats.Compute(records, stats.AlbumOptions(2))
		Expect(s.TopCategories).To(HaveLen(2))
	})

	It("excludes missing values from numeric aggregates", func() {
		s := stats.Compute(records, stats.AlbumOptions(0))
		score := s.Numerics[1]
		Expect(score.Count).To(Equal(4))
		Expect(*score.Average).To(BeNumerically("~", 21.0/4.0, 1e-9))
		Expect(*score.Min).To(Equal(0.0))
		Expect(*score.Max).To(Equal(8.0))
	})

	It("counts flags and totals", func() {
		s := stats.Compute(records, stats.AlbumOptions(0))
		Expect(s.Total).To(Equal(6))
		Expect(s.FlagCount).To(Equal(2))
	})

	It("leaves aggregates empty when no values exist", func() {
		s := stats.Compute([]catalog.Record{{ID: "x"}}, stats.AlbumOptions(0))
		Expect(s.Numerics[1].Count).To(Equal(0))
		Expect(s.Numerics[1].Average).To(BeNil())
	})

	It("is deterministic", func() {
		a := stats.Compute(records, stats.AlbumOptions(10))
		b := stats.Compute(records, stats.AlbumOptions(10))
		Expect(a).To(Equal(b))
	})
})

var _ = Describe("Album", func() {
	It("rounds scores and reports year bounds", func() {
		records := []catalog.Record{
			{ID: "1", Genre: "Rock", ReleaseYear: intp(2001), Score: floatp(7.26)},
			{ID: "2", Genre: "Rock", ReleaseYear: intp(1995), Score: floatp(8.14)},
			{ID: "3", Genre: "Jazz", Score: floatp(6.04)},
			{ID: "4", Genre: "Jazz", ReleaseYear: intp(2019), Flagged: true},
		}

		a := stats.Album(records, 0)
		Expect(a.TotalAlbums).To(Equal(4))
		Expect(a.TopGenres).To(Equal([]stats.GenreCount{
			{Genre: "Rock", Count: 2},
			{Genre: "Jazz", Count: 2},
		}))
		Expect(*a.YearRange.Min).To(Equal(1995))
		Expect(*a.YearRange.Max).To(Equal(2019))
		Expect(*a.Scores.Average).To(BeNumerically("~", 7.15, 1e-9))
		Expect(*a.Scores.Min).To(BeNumerically("~", 6.0, 1e-9))
		Expect(*a.Scores.Max).To(BeNumerically("~", 8.1, 1e-9))
		Expect(a.FlaggedCount).To(Equal(1))
	})

	It("handles an empty corpus", func() {
		a := stats.Album(nil, 5)
		Expect(a.TotalAlbums).To(Equal(0))
		Expect(a.TopGenres).To(BeEmpty())
		Expect(a.YearRange.Min).To(BeNil())
		Expect(a.Scores.Average).To(BeNil())
	})
})

var _ = Describe("Years", func() {
	It("ignores records without a year", func() {
		yr := stats.Years([]catalog.Record{
			{ID: "1"},
			{ID: "2", ReleaseYear: intp(2010)},
			{ID: "3", ReleaseYear: intp(1970)},
		})
		Expect(*yr.Min).To(Equal(1970))
		Expect(*yr.Max).To(Equal(2010))
	})
})
