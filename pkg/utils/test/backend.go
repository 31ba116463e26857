package testutils

import (
	"context"
	"slices"
	"sync"

	"github.com/viterin/vek/vek32"

	"github.com/papercomputeco/sleeves/pkg/backend"
	"github.com/papercomputeco/sleeves/pkg/catalog"
	"github.com/papercomputeco/sleeves/pkg/vector"
)

// MockItem is one corpus member of a MockBackend.
type MockItem struct {
	Record    catalog.Record
	Embedding []float32
}

// MockBackend is an in-memory backend with configurable push-down support.
// It records every request it receives.
type MockBackend struct {
	Items    []MockItem
	Dim      int
	Pushdown catalog.Predicate

	// MaxCandidates caps each response, simulating a store that
	// under-returns. Zero means no cap.
	MaxCandidates int

	// Err, when set, is returned by Search, Size and Records.
	Err error

	Warnings []string

	mu       sync.Mutex
	requests []backend.Request
}

func NewMockBackend(dim int, items ...MockItem) *MockBackend {
	return &MockBackend{Items: items, Dim: dim}
}

// Requests returns a copy of the requests seen by Search.
func (m *MockBackend) Requests() []backend.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.requests)
}

func (m *MockBackend) Name() string { return "mock" }

func (m *MockBackend) Dimension() int { return m.Dim }

func (m *MockBackend) Capabilities() backend.Capabilities {
	return backend.Capabilities{Pushdown: m.Pushdown}
}

func (m *MockBackend) Size(context.Context) (int, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	return len(m.Items), nil
}

func (m *MockBackend) Search(_ context.Context, req backend.Request) (backend.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.Err != nil {
		return backend.Response{}, m.Err
	}

	type scored struct {
		hit vector.Hit
		rec catalog.Record
	}
	var all []scored
	for _, item := range m.Items {
		if !req.Filter.Matches(item.Record) {
			continue
		}
		all = append(all, scored{
			hit: vector.Hit{ID: item.Record.ID, Similarity: vector.SanitizeSimilarity(vek32.Dot(req.Vector, item.Embedding))},
			rec: item.Record,
		})
	}
	slices.SortStableFunc(all, func(a, b scored) int { return vector.CompareHits(a.hit, b.hit) })

	limit := req.Candidates
	if m.MaxCandidates > 0 && m.MaxCandidates < limit {
		limit = m.MaxCandidates
	}
	exhausted := len(all) <= limit
	if len(all) > limit {
		all = all[:limit]
	}

	resp := backend.Response{Exhausted: exhausted && m.MaxCandidates == 0}
	for _, s := range all {
		resp.Candidates = append(resp.Candidates, backend.Candidate{Record: s.rec, Similarity: s.hit.Similarity})
	}
	return resp, nil
}

func (m *MockBackend) Records(context.Context) ([]catalog.Record, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]catalog.Record, len(m.Items))
	for i, item := range m.Items {
		out[i] = item.Record
	}
	return out, nil
}

func (m *MockBackend) IntegrityWarnings() []string { return m.Warnings }

func (m *MockBackend) Close() error { return nil }

var (
	_ backend.Backend           = (*MockBackend)(nil)
	_ backend.IntegrityReporter = (*MockBackend)(nil)
)
