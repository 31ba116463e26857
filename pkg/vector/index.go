// Package vector provides the nearest neighbour index contract shared by the
// local index implementations, plus the error kinds used across the search
// stack.
package vector

import (
	"cmp"
	"context"
	"math"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
)

// Entry is a single identifier and its embedding as fed to an index build.
type Entry struct {
	ID        string    `json:"id"`
	Embedding []float32 `json:"embedding"`
}

// Hit is a single nearest neighbour returned by an index.
type Hit struct {
	// Position is the entry's position in the index.
	Position int

	// ID is the entry identifier.
	ID string

	// Similarity is the inner product of the query and the entry vector.
	// For L2-normalized vectors this is the cosine similarity in [-1, 1].
	Similarity float32
}

// Index is an immutable k-nearest-neighbour structure over a fixed set of
// entries. Implementations must be safe for concurrent Search calls.
type Index interface {
	// Dimension is the length every query vector must have.
	Dimension() int

	// Len is the number of indexed entries.
	Len() int

	// IDs returns the entry identifiers in position order.
	IDs() []string

	// Search returns at most k hits ordered by descending similarity, ties
	// broken by ascending ID. Exact indexes return min(k, Len) hits and never
	// cap k below that. A query whose length differs from Dimension
	// fails with ErrInvalidDimension.
	Search(ctx context.Context, query []float32, k int) ([]Hit, error)

	// Close releases any resources held by the index.
	Close() error
}

// FilteredIndex is an Index that can restrict a scan to an allow-list of
// positions, which lets metadata predicates be evaluated during the scan
// instead of after it.
type FilteredIndex interface {
	Index

	// SearchAllowed behaves like Search but only considers positions in
	// allow. A nil allow-list means every position is allowed.
	SearchAllowed(ctx context.Context, query []float32, k int, allow *roaring.Bitmap) ([]Hit, error)
}

// SanitizeSimilarity maps NaN similarities to 0.
func SanitizeSimilarity(s float32) float32 {
	if math.IsNaN(float64(s)) {
		return 0
	}
	return s
}

// CompareHits orders hits by descending similarity, then ascending ID.
func CompareHits(a, b Hit) int {
	if c := cmp.Compare(b.Similarity, a.Similarity); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// SortHits sorts hits in place using CompareHits.
func SortHits(hits []Hit) {
	slices.SortStableFunc(hits, CompareHits)
}
