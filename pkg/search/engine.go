// Package search is the query engine. It validates requests, splits filters
// between backend push-down and local post-filtering, expands the candidate
// pool when post-filtering could under-fill, and ranks the survivors.
//
// An Engine serves one or more named embedding spaces. Each space pairs a
// backend.Backend with the embeddings.Embedder that produces its queries.
// Spaces are fixed at construction; the engine holds no mutable state and
// is safe for concurrent use.
package search

import (
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/papercomputeco/sleeves/pkg/backend"
	"github.com/papercomputeco/sleeves/pkg/embeddings"
	"github.com/papercomputeco/sleeves/pkg/stats"
	"github.com/papercomputeco/sleeves/pkg/vector"
)

const (
	// MaxK is the default upper bound on k.
	MaxK = 500

	// DefaultK is the k used by callers that do not specify one.
	DefaultK = 50

	// DefaultExpansionFactor multiplies k for the first candidate pool when
	// post-filtering is needed.
	DefaultExpansionFactor = 4

	// DefaultExpansionGrowth multiplies the pool on each further round.
	DefaultExpansionGrowth = 2
)

// ErrNoEmbedder is returned by SearchText and SearchImage for a space that
// was configured without an embedder.
var ErrNoEmbedder = fmt.Errorf("%w: space has no embedder", embeddings.ErrModelUnavailable)

// Config holds engine limits and the candidate expansion policy.
type Config struct {
	MaxK            int
	DefaultK        int
	ExpansionFactor int
	ExpansionGrowth int
	TopGenres       int
}

func (c *Config) applyDefaults() {
	if c.MaxK <= 0 {
		c.MaxK = MaxK
	}
	if c.DefaultK <= 0 {
		c.DefaultK = DefaultK
	}
	c.DefaultK = min(c.DefaultK, c.MaxK)
	if c.ExpansionFactor < 1 {
		c.ExpansionFactor = DefaultExpansionFactor
	}
	if c.ExpansionGrowth < 2 {
		c.ExpansionGrowth = DefaultExpansionGrowth
	}
	if c.TopGenres <= 0 {
		c.TopGenres = stats.DefaultTopGenres
	}
}

// Space is one named embedding space.
type Space struct {
	Name    string
	Backend backend.Backend

	// Embedder turns text and images into query vectors. Optional: a space
	// without one only accepts raw vector queries.
	Embedder embeddings.Embedder
}

// Engine answers queries across its spaces.
type Engine struct {
	cfg          Config
	spaces       map[string]Space
	order        []string
	defaultSpace string
	logger       *zap.Logger
}

// New builds an engine. The first space is the default one.
func New(cfg Config, logger *zap.Logger, spaces ...Space) (*Engine, error) {
	if len(spaces) == 0 {
		return nil, errors.New("at least one space is required")
	}

	cfg.applyDefaults()

	e := &Engine{
		cfg:          cfg,
		spaces:       make(map[string]Space, len(spaces)),
		defaultSpace: spaces[0].Name,
		logger:       logger,
	}
	for _, s := range spaces {
		if s.Name == "" {
			return nil, errors.New("space name is required")
		}
		if s.Backend == nil {
			return nil, fmt.Errorf("space %q has no backend", s.Name)
		}
		if _, dup := e.spaces[s.Name]; dup {
			return nil, fmt.Errorf("duplicate space %q", s.Name)
		}
		e.spaces[s.Name] = s
		e.order = append(e.order, s.Name)
	}

	return e, nil
}

// Config returns the effective engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// DefaultSpace is the space used when a query names none.
func (e *Engine) DefaultSpace() string { return e.defaultSpace }

// Spaces lists the space names in construction order.
func (e *Engine) Spaces() []string { return slices.Clone(e.order) }

// Dimension returns the embedding dimension of the named space.
func (e *Engine) Dimension(space string) (int, error) {
	s, err := e.space(space)
	if err != nil {
		return 0, err
	}
	return s.Backend.Dimension(), nil
}

func (e *Engine) space(name string) (Space, error) {
	if name == "" {
		name = e.defaultSpace
	}
	s, ok := e.spaces[name]
	if !ok {
		return Space{}, fmt.Errorf("%w: unknown space %q", vector.ErrInvalidArgument, name)
	}
	return s, nil
}

// Close closes every space's backend and embedder.
func (e *Engine) Close() error {
	var errs []error
	for _, name := range e.order {
		s := e.spaces[name]
		if err := s.Backend.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s backend: %w", name, err))
		}
		if s.Embedder != nil {
			if err := s.Embedder.Close(); err != nil {
				errs = append(errs, fmt.Errorf("closing %s embedder: %w", name, err))
			}
		}
	}
	return errors.Join(errs...)
}
