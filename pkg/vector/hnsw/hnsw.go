// Package hnsw provides an approximate nearest neighbour index backed by a
// hierarchical navigable small world graph (github.com/coder/hnsw). It trades
// exactness for sub-linear search on large corpora; similarities of returned
// nodes are recomputed exactly.
package hnsw

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"

	"github.com/coder/hnsw"
	"github.com/viterin/vek/vek32"

	"github.com/papercomputeco/sleeves/pkg/vector"
)

const (
	magic         = "SLVH"
	formatVersion = uint16(1)

	// DefaultEfSearch is the candidate list size used during graph search
	// when none is configured.
	DefaultEfSearch = 100

	// DefaultM is the maximum number of neighbours per node at build time.
	DefaultM = 16

	buildSeed = 42
)

var byteOrder = binary.LittleEndian

// ErrBadFormat is returned when a persisted graph cannot be decoded.
var ErrBadFormat = errors.New("malformed hnsw index")

// Options tune graph construction and search.
type Options struct {
	// M is the maximum neighbour count per node. Defaults to DefaultM.
	M int

	// EfSearch is the search candidate list size. Defaults to DefaultEfSearch.
	EfSearch int
}

func (o Options) withDefaults() Options {
	if o.M <= 0 {
		o.M = DefaultM
	}
	if o.EfSearch <= 0 {
		o.EfSearch = DefaultEfSearch
	}
	return o
}

// Index is an approximate index. It is read-only after Build or Read.
type Index struct {
	dim       int
	ids       []string
	positions map[string]int
	graph     *hnsw.Graph[string]
}

// Build inserts entries into a new graph. Level assignment uses a fixed seed
// so that builds over the same corpus are reproducible.
func Build(entries []vector.Entry, opts Options) (*Index, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no entries to index", vector.ErrInvalidArgument)
	}
	opts = opts.withDefaults()

	g := hnsw.NewGraph[string]()
	g.M = opts.M
	g.EfSearch = opts.EfSearch
	g.Distance = hnsw.CosineDistance
	g.Rng = rand.New(rand.NewSource(buildSeed))

	x := &Index{
		dim:       len(entries[0].Embedding),
		ids:       make([]string, len(entries)),
		positions: make(map[string]int, len(entries)),
		graph:     g,
	}
	if x.dim == 0 {
		return nil, fmt.Errorf("%w: entry %q has an empty embedding", vector.ErrInvalidArgument, entries[0].ID)
	}

	for i, e := range entries {
		if len(e.Embedding) != x.dim {
			return nil, fmt.Errorf("entry %q: %w", e.ID, vector.DimensionError(x.dim, len(e.Embedding)))
		}
		if _, dup := x.positions[e.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", vector.ErrInvalidArgument, e.ID)
		}
		x.ids[i] = e.ID
		x.positions[e.ID] = i
		g.Add(hnsw.MakeNode(e.ID, e.Embedding))
	}

	return x, nil
}

func (x *Index) Dimension() int { return x.dim }

func (x *Index) Len() int { return len(x.ids) }

func (x *Index) IDs() []string { return x.ids }

// Search walks the graph for approximately the k nearest entries.
func (x *Index) Search(ctx context.Context, query []float32, k int) ([]vector.Hit, error) {
	if len(query) != x.dim {
		return nil, vector.DimensionError(x.dim, len(query))
	}
	if k <= 0 || len(x.ids) == 0 {
		return []vector.Hit{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	nodes := x.graph.Search(query, min(k, len(x.ids)))

	hits := make([]vector.Hit, 0, len(nodes))
	for _, n := range nodes {
		pos, ok := x.positions[n.Key]
		if !ok {
			continue
		}
		hits = append(hits, vector.Hit{
			Position:   pos,
			ID:         n.Key,
			Similarity: vector.SanitizeSimilarity(vek32.Dot(query, n.Value)),
		})
	}

	vector.SortHits(hits)
	return hits, nil
}

// Close is a no-op.
func (x *Index) Close() error {
	return nil
}

// Save writes the identifier table followed by the exported graph.
func (x *Index) Save(w io.Writer) error {
	bw := bufio.NewWriter(w)

	if _, err := io.WriteString(bw, magic); err != nil {
		return err
	}
	for _, v := range []any{formatVersion, uint32(x.dim), uint32(len(x.ids))} {
		if err := binary.Write(bw, byteOrder, v); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	for _, id := range x.ids {
		if len(id) > math.MaxUint16 {
			return fmt.Errorf("id too long: %d bytes", len(id))
		}
		if err := binary.Write(bw, byteOrder, uint16(len(id))); err != nil {
			return err
		}
		if _, err := io.WriteString(bw, id); err != nil {
			return err
		}
	}

	if err := x.graph.Export(bw); err != nil {
		return fmt.Errorf("exporting graph: %w", err)
	}

	return bw.Flush()
}

// Read decodes an index written with Save.
func Read(r io.Reader, opts Options) (*Index, error) {
	opts = opts.withDefaults()
	br := bufio.NewReader(r)

	head := make([]byte, len(magic))
	if _, err := io.ReadFull(br, head); err != nil || string(head) != magic {
		return nil, fmt.Errorf("%w: bad magic", ErrBadFormat)
	}

	var (
		version    uint16
		dim, count uint32
	)
	for _, v := range []any{&version, &dim, &count} {
		if err := binary.Read(br, byteOrder, v); err != nil {
			return nil, fmt.Errorf("%w: reading header: %v", ErrBadFormat, err)
		}
	}
	if version != formatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadFormat, version)
	}

	x := &Index{
		dim:       int(dim),
		ids:       make([]string, count),
		positions: make(map[string]int, count),
	}
	for i := range x.ids {
		var n uint16
		if err := binary.Read(br, byteOrder, &n); err != nil {
			return nil, fmt.Errorf("%w: reading id %d: %v", ErrBadFormat, i, err)
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(br, buf); err != nil {
			return nil, fmt.Errorf("%w: reading id %d: %v", ErrBadFormat, i, err)
		}
		x.ids[i] = string(buf)
		x.positions[x.ids[i]] = i
	}

	g := hnsw.NewGraph[string]()
	if err := g.Import(br); err != nil {
		return nil, fmt.Errorf("%w: importing graph: %v", ErrBadFormat, err)
	}
	g.EfSearch = opts.EfSearch
	x.graph = g

	if g.Len() != len(x.ids) {
		return nil, fmt.Errorf("%w: graph holds %d nodes, id table %d", ErrBadFormat, g.Len(), len(x.ids))
	}

	return x, nil
}

var _ vector.Index = (*Index)(nil)
