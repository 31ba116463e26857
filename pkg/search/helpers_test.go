package search_test

import (
	"context"
	"fmt"
	"math"

	"github.com/papercomputeco/sleeves/pkg/backend"
	"github.com/papercomputeco/sleeves/pkg/catalog"
	"github.com/papercomputeco/sleeves/pkg/search"
	testutils "github.com/papercomputeco/sleeves/pkg/utils/test"
)

func year(y int) *int              { return &y }
func score(s float64) *float64     { return &s }
func threshold(v float32) *float32 { return &v }

func ids(results []search.Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.ID
	}
	return out
}

func poolSizes(reqs []backend.Request) []int {
	out := make([]int, len(reqs))
	for i, r := range reqs {
		out[i] = r.Candidates
	}
	return out
}

// arcCorpus returns n unit vectors on a quarter circle. Similarity to
// (1, 0) strictly decreases with the index.
func arcCorpus(n int, genre func(i int) string) []testutils.MockItem {
	items := make([]testutils.MockItem, n)
	for i := range n {
		theta := float64(i) * (math.Pi / 2) / float64(n)
		items[i] = testutils.MockItem{
			Record:    catalog.Record{ID: fmt.Sprintf("id-%03d", i), Genre: genre(i)},
			Embedding: []float32{float32(math.Cos(theta)), float32(math.Sin(theta))},
		}
	}
	return items
}

// fixedBackend returns the same candidates for every request.
type fixedBackend struct {
	candidates []backend.Candidate
}

func (f *fixedBackend) Name() string                       { return "fixed" }
func (f *fixedBackend) Dimension() int                     { return 2 }
func (f *fixedBackend) Capabilities() backend.Capabilities { return backend.Capabilities{} }
func (f *fixedBackend) Size(context.Context) (int, error)  { return len(f.candidates), nil }
func (f *fixedBackend) Close() error                       { return nil }

func (f *fixedBackend) Search(context.Context, backend.Request) (backend.Response, error) {
	out := make([]backend.Candidate, len(f.candidates))
	copy(out, f.candidates)
	return backend.Response{Candidates: out, Exhausted: true}, nil
}

func (f *fixedBackend) Records(context.Context) ([]catalog.Record, error) {
	out := make([]catalog.Record, len(f.candidates))
	for i, c := range f.candidates {
		out[i] = c.Record
	}
	return out, nil
}

// unjoinedBackend hides some records from every response, like a store whose
// index holds entries without metadata.
type unjoinedBackend struct {
	*testutils.MockBackend
	missing map[string]bool
}

func (u *unjoinedBackend) Search(ctx context.Context, req backend.Request) (backend.Response, error) {
	resp, err := u.MockBackend.Search(ctx, req)
	if err != nil {
		return resp, err
	}
	kept := make([]backend.Candidate, 0, len(resp.Candidates))
	for _, c := range resp.Candidates {
		if !u.missing[c.Record.ID] {
			kept = append(kept, c)
		}
	}
	resp.Candidates = kept
	return resp, nil
}
