package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/papercomputeco/sleeves/pkg/artifact"
	"github.com/papercomputeco/sleeves/pkg/catalog"
	"github.com/papercomputeco/sleeves/pkg/vector"
	"github.com/papercomputeco/sleeves/pkg/vector/flat"
	"github.com/papercomputeco/sleeves/pkg/vector/hnsw"
	"github.com/papercomputeco/sleeves/pkg/vector/sqlitevec"
)

// BuildOptions tunes artifact production.
type BuildOptions struct {
	// Compress writes zstd-compressed artifacts.
	Compress bool

	// HNSW configures graph construction for IndexHNSW.
	HNSW hnsw.Options
}

// Build writes the index and metadata artifacts described by c.
func Build(ctx context.Context, store *artifact.Store, c Config, entries []vector.Entry, records []catalog.Record, opts BuildOptions, logger *zap.Logger) error {
	if _, err := catalog.New(records); err != nil {
		return fmt.Errorf("validating metadata: %w", err)
	}

	if err := writeIndex(ctx, store, c, entries, opts, logger); err != nil {
		return fmt.Errorf("writing index %s: %w", c.IndexURI, err)
	}

	w, err := store.Create(ctx, c.MetadataURI, opts.Compress)
	if err != nil {
		return fmt.Errorf("creating metadata %s: %w", c.MetadataURI, err)
	}
	if err := artifact.WriteMetadata(w, records); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finishing metadata %s: %w", c.MetadataURI, err)
	}

	logger.Info("wrote local corpus",
		zap.String("index_type", c.IndexType),
		zap.String("index", c.IndexURI),
		zap.String("metadata", c.MetadataURI),
		zap.Int("entries", len(entries)),
		zap.Int("records", len(records)),
	)

	return nil
}

func writeIndex(ctx context.Context, store *artifact.Store, c Config, entries []vector.Entry, opts BuildOptions, logger *zap.Logger) error {
	switch c.IndexType {
	case IndexFlat, "":
		idx, err := flat.Build(entries)
		if err != nil {
			return err
		}
		return writeArtifact(ctx, store, c.IndexURI, opts.Compress, func(w io.Writer) error {
			_, err := idx.WriteTo(w)
			return err
		})

	case IndexHNSW:
		idx, err := hnsw.Build(entries, opts.HNSW)
		if err != nil {
			return err
		}
		return writeArtifact(ctx, store, c.IndexURI, opts.Compress, idx.Save)

	case IndexSQLiteVec:
		loc, err := artifact.Parse(c.IndexURI)
		if err != nil {
			return err
		}
		if loc.Scheme == artifact.SchemeFile && !opts.Compress {
			return sqlitevec.Create(ctx, loc.Path, entries, logger)
		}

		tmpDir, err := os.MkdirTemp(c.TempDir, "sleeves-build-*")
		if err != nil {
			return fmt.Errorf("creating build directory: %w", err)
		}
		defer os.RemoveAll(tmpDir)

		dbPath := filepath.Join(tmpDir, "index.db")
		if err := sqlitevec.Create(ctx, dbPath, entries, logger); err != nil {
			return err
		}
		return writeArtifact(ctx, store, c.IndexURI, opts.Compress, func(w io.Writer) error {
			f, err := os.Open(dbPath)
			if err != nil {
				return err
			}
			defer f.Close()
			_, err = io.Copy(w, f)
			return err
		})

	default:
		return fmt.Errorf("unknown index type %q", c.IndexType)
	}
}

func writeArtifact(ctx context.Context, store *artifact.Store, uri string, compress bool, write func(io.Writer) error) error {
	w, err := store.Create(ctx, uri, compress)
	if err != nil {
		return err
	}
	if err := write(w); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
