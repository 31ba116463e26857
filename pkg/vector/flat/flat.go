// Package flat provides an exact, brute-force inner product index. It is the
// reference implementation every other index is measured against.
package flat

import (
	"container/heap"
	"context"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/viterin/vek/vek32"

	"github.com/papercomputeco/sleeves/pkg/vector"
)

// ctxCheckEvery is how many rows are scanned between context checks.
const ctxCheckEvery = 1 << 14

// Index is an immutable exact index. Vectors are stored row-major in one
// contiguous slice.
type Index struct {
	dim  int
	ids  []string
	data []float32
}

// Build creates an Index from entries. All entries must share the same
// non-zero dimension and have unique identifiers. Entry order defines
// positions.
func Build(entries []vector.Entry) (*Index, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no entries to index", vector.ErrInvalidArgument)
	}

	dim := len(entries[0].Embedding)
	if dim == 0 {
		return nil, fmt.Errorf("%w: entry %q has an empty embedding", vector.ErrInvalidArgument, entries[0].ID)
	}

	idx := &Index{
		dim:  dim,
		ids:  make([]string, len(entries)),
		data: make([]float32, 0, len(entries)*dim),
	}

	seen := make(map[string]struct{}, len(entries))
	for i, e := range entries {
		if len(e.Embedding) != dim {
			return nil, fmt.Errorf("entry %q: %w", e.ID, vector.DimensionError(dim, len(e.Embedding)))
		}
		if _, dup := seen[e.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", vector.ErrInvalidArgument, e.ID)
		}
		seen[e.ID] = struct{}{}

		idx.ids[i] = e.ID
		idx.data = append(idx.data, e.Embedding...)
	}

	return idx, nil
}

func (x *Index) Dimension() int { return x.dim }

func (x *Index) Len() int { return len(x.ids) }

func (x *Index) IDs() []string { return x.ids }

// Vector returns the stored vector at position i. The returned slice aliases
// the index and must not be modified.
func (x *Index) Vector(i int) []float32 {
	return x.data[i*x.dim : (i+1)*x.dim : (i+1)*x.dim]
}

// Search scans every entry.
func (x *Index) Search(ctx context.Context, query []float32, k int) ([]vector.Hit, error) {
	return x.SearchAllowed(ctx, query, k, nil)
}

// SearchAllowed scans the positions in allow, or every position if allow is nil.
func (x *Index) SearchAllowed(ctx context.Context, query []float32, k int, allow *roaring.Bitmap) ([]vector.Hit, error) {
	if len(query) != x.dim {
		return nil, vector.DimensionError(x.dim, len(query))
	}
	if k <= 0 || len(x.ids) == 0 {
		return []vector.Hit{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	top := make(topK, 0, min(k, len(x.ids)))

	if allow == nil {
		for i := range x.ids {
			if i%ctxCheckEvery == ctxCheckEvery-1 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			top.offer(k, x.score(query, i))
		}
	} else {
		it := allow.Iterator()
		scanned := 0
		for it.HasNext() {
			pos := int(it.Next())
			if pos >= len(x.ids) {
				break
			}
			scanned++
			if scanned%ctxCheckEvery == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			top.offer(k, x.score(query, pos))
		}
	}

	hits := []vector.Hit(top)
	vector.SortHits(hits)
	return hits, nil
}

func (x *Index) score(query []float32, pos int) vector.Hit {
	return vector.Hit{
		Position:   pos,
		ID:         x.ids[pos],
		Similarity: vector.SanitizeSimilarity(vek32.Dot(query, x.Vector(pos))),
	}
}

// Close is a no-op; the index lives entirely in memory.
func (x *Index) Close() error {
	return nil
}

// topK is a bounded heap whose root is the worst hit kept so far.
type topK []vector.Hit

func (h topK) Len() int           { return len(h) }
func (h topK) Less(i, j int) bool { return vector.CompareHits(h[i], h[j]) > 0 }
func (h topK) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *topK) Push(x any)        { *h = append(*h, x.(vector.Hit)) }

func (h *topK) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func (h *topK) offer(k int, hit vector.Hit) {
	if h.Len() < k {
		heap.Push(h, hit)
		return
	}
	if vector.CompareHits(hit, (*h)[0]) < 0 {
		(*h)[0] = hit
		heap.Fix(h, 0)
	}
}

var _ vector.FilteredIndex = (*Index)(nil)
