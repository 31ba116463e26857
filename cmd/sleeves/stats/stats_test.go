package statscmder

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	apisearch "github.com/papercomputeco/sleeves/api/search"
	engine "github.com/papercomputeco/sleeves/pkg/search"
	"github.com/papercomputeco/sleeves/pkg/stats"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

var _ = Describe("renderStats", func() {
	var (
		health *apisearch.HealthResponse
		album  *apisearch.StatsResponse
	)

	BeforeEach(func() {
		health = &apisearch.HealthResponse{
			Status: apisearch.StatusHealthy,
			HealthReport: engine.HealthReport{
				Ready:      true,
				CorpusSize: 3,
				Spaces: []engine.SpaceHealth{
					{Name: "image", Backend: "local", Dimension: 512, Ready: true, Size: 3},
				},
			},
		}
		album = &apisearch.StatsResponse{
			Success: true,
			AlbumStats: stats.AlbumStats{
				TotalAlbums:  3,
				TopGenres:    []stats.GenreCount{{Genre: "Rock", Count: 2}, {Genre: "Jazz", Count: 1}},
				YearRange:    stats.YearRange{Min: intPtr(1959), Max: intPtr(1994)},
				Scores:       stats.ScoreSummary{Average: floatPtr(7.5), Min: floatPtr(6), Max: floatPtr(9)},
				FlaggedCount: 1,
			},
		}
	})

	It("summarizes the corpus", func() {
		md := renderStats(health, album)
		Expect(md).To(ContainSubstring("- **Status:** healthy"))
		Expect(md).To(ContainSubstring("- **Albums:** 3"))
		Expect(md).To(ContainSubstring("- **Flagged covers:** 1"))
		Expect(md).To(ContainSubstring("- **Years:** 1959 to 1994"))
		Expect(md).To(ContainSubstring("- **Review score:** 7.50 average (6.0 to 9.0)"))
		Expect(md).To(ContainSubstring("| Rock | 2 |"))
		Expect(md).To(ContainSubstring("| image | local | 512 | 3 |"))
		Expect(md).NotTo(ContainSubstring("## Warnings"))
	})

	It("omits unknown years and scores", func() {
		album.YearRange = stats.YearRange{}
		album.Scores = stats.ScoreSummary{}
		md := renderStats(health, album)
		Expect(md).NotTo(ContainSubstring("Years"))
		Expect(md).NotTo(ContainSubstring("Review score"))
	})

	It("lists space errors and integrity warnings", func() {
		health.Status = apisearch.StatusDegraded
		health.Spaces = append(health.Spaces, engine.SpaceHealth{Name: "text", Backend: "chroma", Error: "connection refused"})
		health.Spaces[0].Warnings = []string{"2 metadata records have no vector"}

		md := renderStats(health, album)
		Expect(md).To(ContainSubstring("## Warnings"))
		Expect(md).To(ContainSubstring("- text: connection refused"))
		Expect(md).To(ContainSubstring("- image: 2 metadata records have no vector"))
	})
})

var _ = Describe("statsCommander", func() {
	It("prints plain markdown from a degraded server", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/health":
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(apisearch.HealthResponse{
					Status: apisearch.StatusDegraded,
					HealthReport: engine.HealthReport{
						Spaces: []engine.SpaceHealth{{Name: "image", Backend: "postgres", Error: "connection refused"}},
					},
				})
			case "/api/stats":
				_ = json.NewEncoder(w).Encode(apisearch.StatsResponse{Success: true, AlbumStats: stats.AlbumStats{TotalAlbums: 4}})
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		}))
		DeferCleanup(server.Close)

		out := &bytes.Buffer{}
		c := &statsCommander{plain: true, apiTarget: server.URL}
		Expect(c.run(context.Background(), out)).To(Succeed())
		Expect(out.String()).To(ContainSubstring("- **Status:** degraded"))
		Expect(out.String()).To(ContainSubstring("- **Albums:** 4"))
		Expect(out.String()).To(ContainSubstring("- image: connection refused"))
	})

	It("fails when the server is unreachable", func() {
		c := &statsCommander{plain: true, apiTarget: "http://127.0.0.1:1"}
		Expect(c.run(context.Background(), &bytes.Buffer{})).To(MatchError(ContainSubstring("failed to connect")))
	})
})
