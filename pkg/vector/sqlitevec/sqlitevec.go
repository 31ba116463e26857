// Package sqlitevec provides a read-only vector index over a SQLite database
// artifact using the sqlite-vec extension, and the writer that produces such
// artifacts.
package sqlitevec

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/papercomputeco/sleeves/pkg/vector"
)

// MaxK is the largest k sqlite-vec accepts in a single KNN query. Larger
// requests fall back to a full scan.
const MaxK = 4096

const (
	knnQuery = `
		SELECT rowid, distance
		FROM vec_embeddings
		WHERE embedding MATCH ?
			AND k = ?
		ORDER BY distance`

	scanQuery = `
		SELECT rowid, vec_distance_cosine(embedding, ?) AS distance
		FROM vec_embeddings
		ORDER BY distance, rowid
		LIMIT ?`
)

// Index implements vector.Index over a sqlite-vec database.
type Index struct {
	db     *sql.DB
	dim    int
	ids    []string
	logger *zap.Logger

	knnLimit int
}

// Config holds configuration for opening a sqlite-vec index.
type Config struct {
	// DBPath is the path to the SQLite database artifact.
	DBPath string
}

// Open opens an existing artifact read-only and loads its identifier table.
func Open(ctx context.Context, c Config, logger *zap.Logger) (*Index, error) {
	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	if c.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := sql.Open("sqlite3", "file:"+c.DBPath+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	var vecVersion string
	if err := db.QueryRowContext(ctx, "SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}

	var rawDim string
	if err := db.QueryRowContext(ctx, `SELECT value FROM vec_meta WHERE key = 'dimensions'`).Scan(&rawDim); err != nil {
		db.Close()
		return nil, fmt.Errorf("reading index dimensions: %w", err)
	}
	dim, err := strconv.Atoi(rawDim)
	if err != nil || dim <= 0 {
		db.Close()
		return nil, fmt.Errorf("invalid index dimensions %q", rawDim)
	}

	ids, err := loadIDs(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("sqlite-vec index opened",
		zap.String("db_path", c.DBPath),
		zap.Int("dimensions", dim),
		zap.Int("entries", len(ids)),
		zap.String("vec_version", vecVersion),
	)

	return &Index{
		db:     db,
		dim:    dim,
		ids:    ids,
		logger: logger,

		knnLimit: MaxK,
	}, nil
}

// loadIDs reads document identifiers ordered by rowid. Row ids are assigned
// as position+1 at build time.
func loadIDs(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT rowid, doc_id FROM vec_documents ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var (
			rowID int64
			docID string
		)
		if err := rows.Scan(&rowID, &docID); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		if rowID != int64(len(ids))+1 {
			return nil, fmt.Errorf("document table is not dense at rowid %d", rowID)
		}
		ids = append(ids, docID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return ids, nil
}

func (x *Index) Dimension() int { return x.dim }

func (x *Index) Len() int { return len(x.ids) }

func (x *Index) IDs() []string { return x.ids }

// Search runs a vec0 KNN query, or a full distance scan when k exceeds the
// KNN limit.
func (x *Index) Search(ctx context.Context, query []float32, k int) ([]vector.Hit, error) {
	if len(query) != x.dim {
		return nil, vector.DimensionError(x.dim, len(query))
	}
	if k <= 0 || len(x.ids) == 0 {
		return []vector.Hit{}, nil
	}
	k = min(k, len(x.ids))

	stmt, mode := knnQuery, "knn"
	if k > x.knnLimit {
		stmt, mode = scanQuery, "scan"
	}

	queryBlob, err := sqlite_vec.SerializeFloat32(query)
	if err != nil {
		return nil, fmt.Errorf("serializing query embedding: %w", err)
	}

	rows, err := x.db.QueryContext(ctx, stmt, queryBlob, k)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	hits := make([]vector.Hit, 0, k)
	for rows.Next() {
		var (
			rowID    int64
			distance float64
		)
		if err := rows.Scan(&rowID, &distance); err != nil {
			return nil, fmt.Errorf("scanning query result: %w", err)
		}

		pos := int(rowID - 1)
		if pos < 0 || pos >= len(x.ids) {
			continue
		}

		// cosine distance = 1 - cosine similarity
		hits = append(hits, vector.Hit{
			Position:   pos,
			ID:         x.ids[pos],
			Similarity: vector.SanitizeSimilarity(float32(1.0 - distance)),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query results: %w", err)
	}

	vector.SortHits(hits)

	x.logger.Debug("queried sqlite-vec",
		zap.String("mode", mode),
		zap.Int("k", k),
		zap.Int("results", len(hits)),
	)

	return hits, nil
}

// Close releases the database handle.
func (x *Index) Close() error {
	return x.db.Close()
}

var _ vector.Index = (*Index)(nil)
