// Package backend defines the contract between the search engine and the
// stores that answer filtered nearest-neighbor queries, whether in-process
// or behind a network boundary.
package backend

import (
	"context"

	"github.com/papercomputeco/sleeves/pkg/catalog"
)

// Capabilities describes what a backend evaluates server-side.
type Capabilities struct {
	// Pushdown is the set of record predicates applied during retrieval.
	Pushdown catalog.Predicate
}

// Request is one retrieval round.
type Request struct {
	Vector []float32
	// Candidates is the number of nearest neighbors to return.
	Candidates int
	// Filter holds only predicates the backend advertised in Capabilities.
	Filter catalog.Filter
}

// Candidate is a retrieved corpus item with its metadata joined.
type Candidate struct {
	Record     catalog.Record
	Similarity float32
}

// Response is the result of one retrieval round.
type Response struct {
	Candidates []Candidate
	// Exhausted reports that no further candidates exist beyond those
	// returned, so asking for a larger pool cannot help.
	Exhausted bool
}

// Backend answers nearest-neighbor queries for one embedding space.
// Implementations are safe for concurrent use after construction.
type Backend interface {
	// Name identifies the backend kind in logs and health output.
	Name() string

	// Dimension is the embedding dimension of the corpus.
	Dimension() int

	Capabilities() Capabilities

	// Size is the number of searchable corpus items.
	Size(ctx context.Context) (int, error)

	// Search returns up to req.Candidates items satisfying req.Filter,
	// highest similarity first.
	Search(ctx context.Context, req Request) (Response, error)

	// Records returns the metadata of every corpus item.
	Records(ctx context.Context) ([]catalog.Record, error)

	// Close releases resources held by the backend.
	Close() error
}

// Distincter is implemented by backends that can list distinct attribute
// values without materializing every record.
type Distincter interface {
	Distinct(ctx context.Context, field catalog.Field) ([]string, error)
}

// IntegrityReporter is implemented by backends that detect inconsistencies
// between their index and metadata at load time.
type IntegrityReporter interface {
	IntegrityWarnings() []string
}
