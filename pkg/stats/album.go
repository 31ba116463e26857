package stats

import (
	"math"

	"github.com/papercomputeco/sleeves/pkg/catalog"
)

// DefaultTopGenres is the number of genres reported by Album.
const DefaultTopGenres = 10

const (
	numericYear  = "release_year"
	numericScore = "score"
)

// GenreCount is one entry of AlbumStats.TopGenres.
type GenreCount struct {
	Genre string `json:"genre"`
	Count int    `json:"count"`
}

// YearRange spans the known release years.
type YearRange struct {
	Min *int `json:"min"`
	Max *int `json:"max"`
}

// ScoreSummary summarizes review scores.
type ScoreSummary struct {
	Average *float64 `json:"average"`
	Min     *float64 `json:"min"`
	Max     *float64 `json:"max"`
}

// AlbumStats is the album corpus view served by the API.
type AlbumStats struct {
	TotalAlbums  int          `json:"total_albums"`
	TopGenres    []GenreCount `json:"top_genres"`
	YearRange    YearRange    `json:"year_range"`
	Scores       ScoreSummary `json:"scores"`
	FlaggedCount int          `json:"flagged_count"`
}

// AlbumOptions returns the Compute options used by Album.
func AlbumOptions(topN int) Options {
	return Options{
		Category: func(r catalog.Record) string { return r.Genre },
		Numerics: []Numeric{
			{Name: numericYear, Value: func(r catalog.Record) (float64, bool) {
				if r.ReleaseYear == nil {
					return 0, false
				}
				return float64(*r.ReleaseYear), true
			}},
			{Name: numericScore, Value: func(r catalog.Record) (float64, bool) {
				if r.Score == nil {
					return 0, false
				}
				return *r.Score, true
			}},
		},
		Flag: func(r catalog.Record) bool { return r.Flagged },
		TopN: topN,
	}
}

// Album computes the album view: top genres, release year range, score
// average rounded to 2 decimals and score bounds rounded to 1 decimal.
func Album(records []catalog.Record, topN int) AlbumStats {
	if topN <= 0 {
		topN = DefaultTopGenres
	}
	s := Compute(records, AlbumOptions(topN))

	out := AlbumStats{
		TotalAlbums:  s.Total,
		TopGenres:    make([]GenreCount, len(s.TopCategories)),
		FlaggedCount: s.FlagCount,
	}
	for i, c := range s.TopCategories {
		out.TopGenres[i] = GenreCount{Genre: c.Name, Count: c.Count}
	}

	years, scores := s.Numerics[0], s.Numerics[1]
	if years.Count > 0 {
		lo, hi := int(*years.Min), int(*years.Max)
		out.YearRange = YearRange{Min: &lo, Max: &hi}
	}
	if scores.Count > 0 {
		out.Scores = ScoreSummary{
			Average: round(*scores.Average, 2),
			Min:     round(*scores.Min, 1),
			Max:     round(*scores.Max, 1),
		}
	}

	return out
}

// Years returns the known release year range of records.
func Years(records []catalog.Record) YearRange {
	var yr YearRange
	for _, r := range records {
		if r.ReleaseYear == nil {
			continue
		}
		y := *r.ReleaseYear
		if yr.Min == nil || y < *yr.Min {
			yr.Min = &y
		}
		if yr.Max == nil || y > *yr.Max {
			v := y
			yr.Max = &v
		}
	}
	return yr
}

func round(v float64, places int) *float64 {
	p := math.Pow10(places)
	r := math.Round(v*p) / p
	return &r
}
