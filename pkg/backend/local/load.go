package local

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/papercomputeco/sleeves/pkg/artifact"
	"github.com/papercomputeco/sleeves/pkg/catalog"
	"github.com/papercomputeco/sleeves/pkg/vector"
	"github.com/papercomputeco/sleeves/pkg/vector/flat"
	"github.com/papercomputeco/sleeves/pkg/vector/hnsw"
	"github.com/papercomputeco/sleeves/pkg/vector/sqlitevec"
)

// Index types accepted by Config.IndexType.
const (
	IndexFlat      = "flat"
	IndexHNSW      = "hnsw"
	IndexSQLiteVec = "sqlitevec"
)

// Config locates the artifact pair of a local space.
type Config struct {
	// IndexType is one of IndexFlat, IndexHNSW or IndexSQLiteVec.
	IndexType string

	// IndexURI and MetadataURI are paths or s3:// URIs.
	IndexURI    string
	MetadataURI string

	// EfSearch tunes HNSW recall.
	EfSearch int

	// TempDir receives downloaded sqlite-vec databases.
	TempDir string
}

// Load reads the index and metadata artifacts concurrently and joins them.
func Load(ctx context.Context, store *artifact.Store, c Config, logger *zap.Logger) (*Backend, error) {
	if c.IndexURI == "" || c.MetadataURI == "" {
		return nil, fmt.Errorf("index and metadata locations are required")
	}

	var (
		idx     vector.Index
		records []catalog.Record
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		loaded, err := openIndex(gctx, store, c, logger)
		if err != nil {
			return fmt.Errorf("loading index %s: %w", c.IndexURI, err)
		}
		idx = loaded
		return nil
	})

	g.Go(func() error {
		r, err := store.Open(gctx, c.MetadataURI)
		if err != nil {
			return fmt.Errorf("opening metadata %s: %w", c.MetadataURI, err)
		}
		defer r.Close()

		records, err = artifact.ReadMetadata(r)
		if err != nil {
			return fmt.Errorf("loading metadata %s: %w", c.MetadataURI, err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		if idx != nil {
			idx.Close()
		}
		return nil, err
	}

	cat, err := catalog.New(records)
	if err != nil {
		idx.Close()
		return nil, fmt.Errorf("indexing metadata: %w", err)
	}

	logger.Info("loaded local corpus",
		zap.String("index_type", c.IndexType),
		zap.Int("entries", idx.Len()),
		zap.Int("records", cat.Len()),
		zap.Int("dimensions", idx.Dimension()),
	)

	return New(idx, cat, logger), nil
}

func openIndex(ctx context.Context, store *artifact.Store, c Config, logger *zap.Logger) (vector.Index, error) {
	switch c.IndexType {
	case IndexFlat, "":
		r, err := store.Open(ctx, c.IndexURI)
		if err != nil {
			return nil, err
		}
		defer r.Close()
		idx, err := flat.Read(r)
		if err != nil {
			return nil, err
		}
		return idx, nil

	case IndexHNSW:
		r, err := store.Open(ctx, c.IndexURI)
		if err != nil {
			return nil, err
		}
		defer r.Close()
		idx, err := hnsw.Read(r, hnsw.Options{EfSearch: c.EfSearch})
		if err != nil {
			return nil, err
		}
		return idx, nil

	case IndexSQLiteVec:
		path, cleanup, err := store.Fetch(ctx, c.IndexURI, c.TempDir)
		if err != nil {
			return nil, err
		}
		idx, err := sqlitevec.Open(ctx, sqlitevec.Config{DBPath: path}, logger)
		if err != nil {
			cleanup()
			return nil, err
		}
		return &fetchedIndex{Index: idx, cleanup: cleanup}, nil

	default:
		return nil, fmt.Errorf("unknown index type %q", c.IndexType)
	}
}

// fetchedIndex removes its downloaded database on Close.
type fetchedIndex struct {
	*sqlitevec.Index
	cleanup func()
}

func (f *fetchedIndex) Close() error {
	defer f.cleanup()
	return f.Index.Close()
}
