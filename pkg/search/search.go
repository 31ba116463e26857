package search

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/papercomputeco/sleeves/pkg/backend"
	"github.com/papercomputeco/sleeves/pkg/catalog"
	"github.com/papercomputeco/sleeves/pkg/vector"
)

// Query is a nearest-neighbor request against one space.
type Query struct {
	// Space names the embedding space. Empty selects the default space.
	Space     string
	Embedding []float32
	K         int
	Filter    catalog.Filter
}

// Result is one ranked search hit with its metadata.
type Result struct {
	Rank        int      `json:"rank"`
	ID          string   `json:"id"`
	Artist      string   `json:"artist,omitempty"`
	Title       string   `json:"title,omitempty"`
	Genre       string   `json:"genre,omitempty"`
	ReleaseYear *int     `json:"release_year,omitempty"`
	Score       *float64 `json:"score,omitempty"`
	Flagged     bool     `json:"flagged"`
	CoverURL    string   `json:"cover_url,omitempty"`
	Similarity  float32  `json:"similarity"`
}

func newResult(rank int, c backend.Candidate) Result {
	r := c.Record
	return Result{
		Rank:        rank,
		ID:          r.ID,
		Artist:      r.Artist,
		Title:       r.Title,
		Genre:       r.Genre,
		ReleaseYear: r.ReleaseYear,
		Score:       r.Score,
		Flagged:     r.Flagged,
		CoverURL:    r.CoverURL,
		Similarity:  c.Similarity,
	}
}

// Search returns at most q.K results satisfying q.Filter, ranked by
// descending similarity with ties broken by ascending ID. It returns exactly
// q.K results whenever at least q.K corpus members satisfy the filter, up to
// the recall of the space's index.
func (e *Engine) Search(ctx context.Context, q Query) ([]Result, error) {
	s, err := e.space(q.Space)
	if err != nil {
		return nil, err
	}

	if err := e.validate(s, q); err != nil {
		return nil, err
	}

	if q.Filter.Inverted() {
		return []Result{}, nil
	}

	pushed, post := q.Filter.Split(s.Backend.Capabilities().Pushdown)

	candidates, err := e.collect(ctx, s, q, pushed, post)
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(candidates, compareCandidates)
	if len(candidates) > q.K {
		candidates = candidates[:q.K]
	}

	results := make([]Result, len(candidates))
	for i, c := range candidates {
		results[i] = newResult(i+1, c)
	}
	return results, nil
}

func (e *Engine) validate(s Space, q Query) error {
	if q.K < 1 || q.K > e.cfg.MaxK {
		return fmt.Errorf("%w: k must be between 1 and %d, got %d", vector.ErrInvalidArgument, e.cfg.MaxK, q.K)
	}
	if len(q.Embedding) == 0 {
		return fmt.Errorf("%w: empty query embedding", vector.ErrInvalidArgument)
	}
	if dim := s.Backend.Dimension(); dim > 0 && len(q.Embedding) != dim {
		return vector.DimensionError(dim, len(q.Embedding))
	}
	return nil
}

// collect runs retrieval rounds until enough candidates survive the post
// filter or no larger pool can help. A backend that returns fewer candidates
// than requested without being exhausted is also expanded, since it dropped
// hits it could not serve.
func (e *Engine) collect(ctx context.Context, s Space, q Query, pushed, post catalog.Filter) ([]backend.Candidate, error) {
	postFiltering := !post.Empty()

	pool := q.K
	size := -1
	if postFiltering {
		n, err := s.Backend.Size(ctx)
		if err != nil {
			return nil, e.backendError(s, err)
		}
		size = n
		if size == 0 {
			return nil, nil
		}
		pool = min(q.K*e.cfg.ExpansionFactor, size)
	}

	for round := 1; ; round++ {
		resp, err := s.Backend.Search(ctx, backend.Request{
			Vector:     q.Embedding,
			Candidates: pool,
			Filter:     pushed,
		})
		if err != nil {
			return nil, e.backendError(s, err)
		}

		survivors := keep(resp.Candidates, post)

		e.logger.Debug("search round",
			zap.String("space", s.Name),
			zap.Int("round", round),
			zap.Int("pool", pool),
			zap.Int("fetched", len(resp.Candidates)),
			zap.Int("survivors", len(survivors)),
		)

		switch {
		case len(survivors) >= q.K, resp.Exhausted:
			return survivors, nil
		case !postFiltering && len(resp.Candidates) >= pool:
			return survivors, nil
		case belowThreshold(resp.Candidates, post.MinSimilarity):
			return survivors, nil
		}

		if size < 0 {
			if size, err = s.Backend.Size(ctx); err != nil {
				return nil, e.backendError(s, err)
			}
		}
		if pool >= size {
			return survivors, nil
		}
		pool = min(pool*e.cfg.ExpansionGrowth, size)
	}
}

func (e *Engine) backendError(s Space, err error) error {
	return fmt.Errorf("searching space %s on %s: %w", s.Name, s.Backend.Name(), err)
}

// keep applies the post filter. NaN similarities count as 0.
func keep(candidates []backend.Candidate, post catalog.Filter) []backend.Candidate {
	out := make([]backend.Candidate, 0, len(candidates))
	for _, c := range candidates {
		c.Similarity = vector.SanitizeSimilarity(c.Similarity)
		if post.MinSimilarity != nil && !(c.Similarity > *post.MinSimilarity) {
			continue
		}
		if !post.Matches(c.Record) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// belowThreshold reports whether the weakest fetched candidate already fails
// the similarity threshold, so a larger pool can only add weaker ones.
func belowThreshold(candidates []backend.Candidate, minSimilarity *float32) bool {
	if minSimilarity == nil || len(candidates) == 0 {
		return false
	}
	lowest := vector.SanitizeSimilarity(candidates[0].Similarity)
	for _, c := range candidates[1:] {
		lowest = min(lowest, vector.SanitizeSimilarity(c.Similarity))
	}
	return lowest <= *minSimilarity
}

func compareCandidates(a, b backend.Candidate) int {
	if c := cmp.Compare(b.Similarity, a.Similarity); c != 0 {
		return c
	}
	return cmp.Compare(a.Record.ID, b.Record.ID)
}
