// Package local serves searches from an index and metadata collection held
// entirely in process memory.
package local

import (
	"context"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/sleeves/pkg/backend"
	"github.com/papercomputeco/sleeves/pkg/catalog"
	"github.com/papercomputeco/sleeves/pkg/vector"
)

// Backend joins vector index hits to catalog records by identifier.
type Backend struct {
	index   vector.Index
	catalog *catalog.Store
	logger  *zap.Logger

	// catalog position of each index position, -1 when unjoined
	toCatalog []int32
	// index position of each catalog position, -1 when unindexed
	toIndex []int32
	// index positions that join to a record, nil when all of them do
	joined *roaring.Bitmap

	caps     backend.Capabilities
	warnings []string
}

// New wraps a loaded index and catalog. Cardinality mismatches and
// unjoinable identifiers are logged as integrity warnings and do not fail.
func New(index vector.Index, cat *catalog.Store, logger *zap.Logger) *Backend {
	b := &Backend{
		index:     index,
		catalog:   cat,
		logger:    logger,
		toCatalog: make([]int32, index.Len()),
		toIndex:   make([]int32, cat.Len()),
	}

	for i := range b.toIndex {
		b.toIndex[i] = -1
	}

	unjoined := 0
	for i, id := range index.IDs() {
		pos, ok := cat.Position(id)
		if !ok {
			b.toCatalog[i] = -1
			unjoined++
			continue
		}
		b.toCatalog[i] = int32(pos)
		b.toIndex[pos] = int32(i)
	}

	if index.Len() != cat.Len() {
		b.warn(fmt.Sprintf("index holds %d entries but metadata holds %d records", index.Len(), cat.Len()))
	}
	if unjoined > 0 {
		b.warn(fmt.Sprintf("%d index entries have no metadata record", unjoined))
		b.joined = roaring.New()
		for i, cpos := range b.toCatalog {
			if cpos >= 0 {
				b.joined.Add(uint32(i))
			}
		}
	}

	if _, ok := index.(vector.FilteredIndex); ok {
		b.caps.Pushdown = catalog.PredicateAll
	}

	return b
}

func (b *Backend) warn(msg string) {
	b.warnings = append(b.warnings, msg)
	b.logger.Warn("data integrity warning", zap.String("integrity_warning", msg))
}

func (b *Backend) Name() string { return "local" }

func (b *Backend) Dimension() int { return b.index.Dimension() }

func (b *Backend) Capabilities() backend.Capabilities { return b.caps }

func (b *Backend) Size(context.Context) (int, error) { return b.index.Len(), nil }

// IntegrityWarnings returns the warnings raised while joining.
func (b *Backend) IntegrityWarnings() []string { return b.warnings }

// Search scans the index, restricted to catalog matches of req.Filter when
// the index supports allow-lists, and joins each hit to its record. An index
// without allow-lists may return fewer candidates than requested when hits
// lack a record; the response is then not exhausted.
func (b *Backend) Search(ctx context.Context, req backend.Request) (backend.Response, error) {
	if req.Candidates <= 0 {
		return backend.Response{Exhausted: true}, nil
	}

	var (
		hits []vector.Hit
		err  error
	)

	allowed := b.catalog.Allowed(req.Filter)
	switch fi, ok := b.index.(vector.FilteredIndex); {
	case allowed != nil && ok:
		hits, err = fi.SearchAllowed(ctx, req.Vector, req.Candidates, b.indexPositions(allowed))
	case b.joined != nil && ok:
		hits, err = fi.SearchAllowed(ctx, req.Vector, req.Candidates, b.joined)
	default:
		hits, err = b.index.Search(ctx, req.Vector, req.Candidates)
	}
	if err != nil {
		return backend.Response{}, err
	}

	out := make([]backend.Candidate, 0, len(hits))
	for _, h := range hits {
		cpos := b.toCatalog[h.Position]
		if cpos < 0 {
			b.logger.Debug("skipping hit without metadata", zap.String("id", h.ID))
			continue
		}
		rec := b.catalog.At(int(cpos))
		if allowed != nil && !req.Filter.Matches(rec) {
			continue
		}
		out = append(out, backend.Candidate{Record: rec, Similarity: h.Similarity})
	}

	return backend.Response{
		Candidates: out,
		Exhausted:  len(hits) < req.Candidates,
	}, nil
}

// indexPositions maps catalog positions to index positions, dropping
// records that have no vector.
func (b *Backend) indexPositions(allowed *roaring.Bitmap) *roaring.Bitmap {
	out := roaring.New()
	it := allowed.Iterator()
	for it.HasNext() {
		if ip := b.toIndex[it.Next()]; ip >= 0 {
			out.Add(uint32(ip))
		}
	}
	return out
}

func (b *Backend) Records(context.Context) ([]catalog.Record, error) {
	return b.catalog.Records(), nil
}

// Distinct lists values from the catalog posting lists.
func (b *Backend) Distinct(_ context.Context, field catalog.Field) ([]string, error) {
	return b.catalog.Distinct(field)
}

// Close closes the underlying index.
func (b *Backend) Close() error {
	return b.index.Close()
}

var (
	_ backend.Backend           = (*Backend)(nil)
	_ backend.Distincter        = (*Backend)(nil)
	_ backend.IntegrityReporter = (*Backend)(nil)
)
