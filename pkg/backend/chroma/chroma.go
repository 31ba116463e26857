// Package chroma provides a search backend over a Chroma collection using
// Chroma's REST API. The collection must use cosine distance.
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/sleeves/pkg/backend"
	"github.com/papercomputeco/sleeves/pkg/catalog"
	"github.com/papercomputeco/sleeves/pkg/vector"
)

const (
	// DefaultCollectionName is the default collection holding album covers.
	DefaultCollectionName = "album_covers"

	// DefaultTimeout bounds every request.
	DefaultTimeout = 30 * time.Second

	collectionsPath = "/api/v2/tenants/default_tenant/databases/default_database/collections"

	getPageSize = 1000
)

// Pushdown lists the predicates translated into a where clause. The flag is
// filtered locally because a $ne clause would also drop documents that
// carry no flag at all.
const Pushdown = catalog.PredicateGenre | catalog.PredicateYear

// ErrUntranslatableFilter is returned when a filter cannot be expressed as a
// Chroma where clause.
var ErrUntranslatableFilter = fmt.Errorf("%w: filter cannot be translated for chroma", vector.ErrInvalidArgument)

// Backend implements backend.Backend using Chroma's REST API.
type Backend struct {
	baseURL        string
	collectionName string
	collectionID   string
	dim            int
	backoff        time.Duration
	httpClient     *http.Client
	logger         *zap.Logger
}

// Config holds configuration for the Chroma backend.
type Config struct {
	// URL is the Chroma server URL (e.g., "http://localhost:8000").
	URL string

	// CollectionName is the name of the collection to use.
	// Defaults to DefaultCollectionName if empty.
	CollectionName string

	// Dimensions overrides the dimension reported by the collection.
	Dimensions int

	Timeout      time.Duration
	RetryBackoff time.Duration
}

// New resolves the collection and its dimension.
func New(ctx context.Context, c Config, logger *zap.Logger) (*Backend, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("chroma URL is required")
	}

	collectionName := c.CollectionName
	if collectionName == "" {
		collectionName = DefaultCollectionName
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	backoff := c.RetryBackoff
	if backoff <= 0 {
		backoff = backend.DefaultRetryBackoff
	}

	b := &Backend{
		baseURL:        c.URL,
		collectionName: collectionName,
		dim:            c.Dimensions,
		backoff:        backoff,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}

	var collection chromaCollection
	err := backend.Retry(ctx, logger, backoff, func(ctx context.Context) error {
		return b.do(ctx, http.MethodGet, collectionsPath+"/"+url.PathEscape(collectionName), nil, &collection)
	})
	if err != nil {
		return nil, fmt.Errorf("getting collection %q: %w", collectionName, err)
	}
	b.collectionID = collection.ID

	if b.dim == 0 && collection.Dimension != nil {
		b.dim = *collection.Dimension
	}
	if b.dim == 0 {
		return nil, fmt.Errorf("collection %q does not report a dimension; set it explicitly", collectionName)
	}

	logger.Info("connected to Chroma",
		zap.String("url", c.URL),
		zap.String("collection", collectionName),
		zap.String("collection_id", b.collectionID),
		zap.Int("dimensions", b.dim),
	)

	return b, nil
}

// do sends one JSON request. 5xx responses and transport failures are
// transient; other non-2xx responses are permanent.
func (b *Backend) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return backend.Transient(fmt.Errorf("sending request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, string(respBody))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return backend.Transient(err)
		}
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (b *Backend) collectionPath(op string) string {
	return collectionsPath + "/" + b.collectionID + "/" + op
}

func (b *Backend) Name() string { return "chroma" }

func (b *Backend) Dimension() int { return b.dim }

func (b *Backend) Capabilities() backend.Capabilities {
	return backend.Capabilities{Pushdown: Pushdown}
}

// Size returns the number of documents in the collection.
func (b *Backend) Size(ctx context.Context) (int, error) {
	var n int
	err := backend.Retry(ctx, b.logger, b.backoff, func(ctx context.Context) error {
		return b.do(ctx, http.MethodGet, b.collectionPath("count"), nil, &n)
	})
	return n, err
}

// Search runs a single-embedding query with the filter as a where clause.
func (b *Backend) Search(ctx context.Context, req backend.Request) (backend.Response, error) {
	if len(req.Vector) != b.dim {
		return backend.Response{}, vector.DimensionError(b.dim, len(req.Vector))
	}
	if req.Candidates <= 0 {
		return backend.Response{Exhausted: true}, nil
	}

	where, err := Where(req.Filter)
	if err != nil {
		return backend.Response{}, err
	}

	reqBody := chromaQueryRequest{
		QueryEmbeddings: [][]float32{req.Vector},
		NResults:        req.Candidates,
		Where:           where,
		Include:         []string{"metadatas", "distances"},
	}

	var queryResp chromaQueryResponse
	err = backend.Retry(ctx, b.logger, b.backoff, func(ctx context.Context) error {
		return b.do(ctx, http.MethodPost, b.collectionPath("query"), reqBody, &queryResp)
	})
	if err != nil {
		return backend.Response{}, err
	}

	// Process first group (we only query with one embedding)
	if len(queryResp.IDs) == 0 || len(queryResp.IDs[0]) == 0 {
		return backend.Response{Candidates: []backend.Candidate{}, Exhausted: true}, nil
	}

	ids := queryResp.IDs[0]
	var distances []*float64
	if len(queryResp.Distances) > 0 {
		distances = queryResp.Distances[0]
	}
	var metadatas []map[string]any
	if len(queryResp.Metadatas) > 0 {
		metadatas = queryResp.Metadatas[0]
	}

	out := make([]backend.Candidate, 0, len(ids))
	for i, id := range ids {
		var meta map[string]any
		if i < len(metadatas) {
			meta = metadatas[i]
		}

		// cosine distance = 1 - cosine similarity; a missing distance scores 0
		var sim float32
		if i < len(distances) && distances[i] != nil {
			sim = vector.SanitizeSimilarity(float32(1.0 - *distances[i]))
		}

		out = append(out, backend.Candidate{
			Record:     recordFromMetadata(id, meta),
			Similarity: sim,
		})
	}

	b.logger.Debug("queried chroma",
		zap.Int("n_results", req.Candidates),
		zap.Int("results", len(out)),
	)

	return backend.Response{
		Candidates: out,
		Exhausted:  len(ids) < req.Candidates,
	}, nil
}

// Records pages through every document's metadata.
func (b *Backend) Records(ctx context.Context) ([]catalog.Record, error) {
	var out []catalog.Record
	for offset := 0; ; offset += getPageSize {
		reqBody := chromaGetRequest{
			Limit:   getPageSize,
			Offset:  offset,
			Include: []string{"metadatas"},
		}

		var page chromaGetResponse
		err := backend.Retry(ctx, b.logger, b.backoff, func(ctx context.Context) error {
			return b.do(ctx, http.MethodPost, b.collectionPath("get"), reqBody, &page)
		})
		if err != nil {
			return nil, err
		}

		for i, id := range page.IDs {
			var meta map[string]any
			if i < len(page.Metadatas) {
				meta = page.Metadatas[i]
			}
			out = append(out, recordFromMetadata(id, meta))
		}

		if len(page.IDs) < getPageSize {
			return out, nil
		}
	}
}

// Close releases resources held by the backend.
func (b *Backend) Close() error {
	// HTTP client doesn't require explicit cleanup
	return nil
}

// Where translates the record predicates of f into a Chroma where clause.
// It returns nil for a filter without predicates.
func Where(f catalog.Filter) (map[string]any, error) {
	if f.ExcludeFlagged {
		return nil, fmt.Errorf("%w: exclude_flagged", ErrUntranslatableFilter)
	}

	var clauses []map[string]any
	if f.Genre != "" {
		clauses = append(clauses, map[string]any{"genre": map[string]any{"$eq": f.Genre}})
	}
	if f.YearMin != nil {
		clauses = append(clauses, map[string]any{"release_year": map[string]any{"$gte": *f.YearMin}})
	}
	if f.YearMax != nil {
		clauses = append(clauses, map[string]any{"release_year": map[string]any{"$lte": *f.YearMax}})
	}

	switch len(clauses) {
	case 0:
		return nil, nil
	case 1:
		return clauses[0], nil
	default:
		return map[string]any{"$and": clauses}, nil
	}
}

func recordFromMetadata(id string, meta map[string]any) catalog.Record {
	r := catalog.Record{ID: id}
	if meta == nil {
		return r
	}

	r.Artist, _ = meta["artist"].(string)
	r.Title, _ = meta["title"].(string)
	r.Genre, _ = meta["genre"].(string)
	r.CoverURL, _ = meta["cover_url"].(string)
	r.Flagged, _ = meta["flagged"].(bool)

	if v, ok := number(meta["release_year"]); ok {
		y := int(v)
		r.ReleaseYear = &y
	}
	if v, ok := number(meta["score"]); ok {
		r.Score = &v
	}
	return r
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

var _ backend.Backend = (*Backend)(nil)
