package search

import (
	"context"

	"go.uber.org/zap"

	"github.com/papercomputeco/sleeves/pkg/backend"
	"github.com/papercomputeco/sleeves/pkg/catalog"
	"github.com/papercomputeco/sleeves/pkg/stats"
)

// ListDistinct returns the sorted, deduplicated, non-empty values of field
// across the space's corpus.
func (e *Engine) ListDistinct(ctx context.Context, space string, field catalog.Field) ([]string, error) {
	s, err := e.space(space)
	if err != nil {
		return nil, err
	}

	if _, err := (catalog.Record{}).Value(field); err != nil {
		return nil, err
	}

	if d, ok := s.Backend.(backend.Distincter); ok {
		values, err := d.Distinct(ctx, field)
		if err != nil {
			return nil, e.backendError(s, err)
		}
		return values, nil
	}

	records, err := s.Backend.Records(ctx)
	if err != nil {
		return nil, e.backendError(s, err)
	}
	return catalog.Distinct(records, field)
}

// Stats summarizes the space's corpus.
func (e *Engine) Stats(ctx context.Context, space string) (stats.AlbumStats, error) {
	s, err := e.space(space)
	if err != nil {
		return stats.AlbumStats{}, err
	}

	records, err := s.Backend.Records(ctx)
	if err != nil {
		return stats.AlbumStats{}, e.backendError(s, err)
	}

	return stats.Album(records, e.cfg.TopGenres), nil
}

// YearRange returns the earliest and latest known release years.
func (e *Engine) YearRange(ctx context.Context, space string) (stats.YearRange, error) {
	s, err := e.space(space)
	if err != nil {
		return stats.YearRange{}, err
	}

	records, err := s.Backend.Records(ctx)
	if err != nil {
		return stats.YearRange{}, e.backendError(s, err)
	}

	return stats.Years(records), nil
}

// SpaceHealth describes one space in a HealthReport.
type SpaceHealth struct {
	Name      string   `json:"name"`
	Backend   string   `json:"backend"`
	Dimension int      `json:"dimension"`
	Ready     bool     `json:"ready"`
	Size      int      `json:"size"`
	Error     string   `json:"error,omitempty"`
	Warnings  []string `json:"integrity_warnings,omitempty"`
}

// HealthReport is the engine's readiness summary.
type HealthReport struct {
	// Ready is true when every space answered.
	Ready bool `json:"ready"`

	// CorpusSize is the size of the default space.
	CorpusSize int           `json:"corpus_size"`
	Spaces     []SpaceHealth `json:"spaces"`
}

// Health probes every space.
func (e *Engine) Health(ctx context.Context) HealthReport {
	report := HealthReport{Ready: true}

	for _, name := range e.order {
		s := e.spaces[name]
		h := SpaceHealth{
			Name:      name,
			Backend:   s.Backend.Name(),
			Dimension: s.Backend.Dimension(),
		}

		size, err := s.Backend.Size(ctx)
		if err != nil {
			e.logger.Warn("space unavailable", zap.String("space", name), zap.Error(err))
			h.Error = err.Error()
			report.Ready = false
		} else {
			h.Ready = true
			h.Size = size
		}

		if r, ok := s.Backend.(backend.IntegrityReporter); ok {
			h.Warnings = r.IntegrityWarnings()
		}

		if name == e.defaultSpace {
			report.CorpusSize = h.Size
		}
		report.Spaces = append(report.Spaces, h)
	}

	return report
}
