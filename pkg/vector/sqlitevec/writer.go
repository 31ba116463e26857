package sqlitevec

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"go.uber.org/zap"

	"github.com/papercomputeco/sleeves/pkg/vector"
)

// Create writes entries into a new sqlite-vec database at path. An existing
// file at path is replaced.
func Create(ctx context.Context, path string, entries []vector.Entry, logger *zap.Logger) error {
	sqlite_vec.Auto()

	if path == "" {
		return fmt.Errorf("database path is required")
	}
	if len(entries) == 0 {
		return fmt.Errorf("%w: no entries to index", vector.ErrInvalidArgument)
	}
	dim := len(entries[0].Embedding)
	if dim == 0 {
		return fmt.Errorf("sqlite-vec embedding dimensions cannot be 0")
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing previous artifact: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	schema := []string{
		`CREATE TABLE vec_meta (key TEXT PRIMARY KEY, value TEXT NOT NULL)`,
		`CREATE TABLE vec_documents (rowid INTEGER PRIMARY KEY, doc_id TEXT NOT NULL UNIQUE)`,
		fmt.Sprintf(`CREATE VIRTUAL TABLE vec_embeddings USING vec0(embedding float[%d] distance_metric=cosine)`, dim),
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO vec_meta(key, value) VALUES ('dimensions', ?)`, strconv.Itoa(dim),
	); err != nil {
		return fmt.Errorf("writing dimensions: %w", err)
	}

	for i, e := range entries {
		if len(e.Embedding) != dim {
			return fmt.Errorf("entry %q: %w", e.ID, vector.DimensionError(dim, len(e.Embedding)))
		}

		blob, err := sqlite_vec.SerializeFloat32(e.Embedding)
		if err != nil {
			return fmt.Errorf("serializing embedding for %s: %w", e.ID, err)
		}

		rowID := int64(i) + 1
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO vec_documents(rowid, doc_id) VALUES (?, ?)`, rowID, e.ID,
		); err != nil {
			return fmt.Errorf("inserting document %s: %w", e.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO vec_embeddings(rowid, embedding) VALUES (?, ?)`, rowID, blob,
		); err != nil {
			return fmt.Errorf("inserting embedding for %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	logger.Info("wrote sqlite-vec index",
		zap.String("db_path", path),
		zap.Int("entries", len(entries)),
		zap.Int("dimensions", dim),
	)

	return nil
}
