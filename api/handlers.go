package api

import (
	"github.com/gofiber/fiber/v2"

	apisearch "github.com/papercomputeco/sleeves/api/search"
	"github.com/papercomputeco/sleeves/pkg/catalog"
)

// handleHealth reports readiness. A degraded engine answers 503.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	report := s.engine.Health(c.UserContext())

	resp := apisearch.HealthResponse{Status: apisearch.StatusHealthy, HealthReport: report}
	if !report.Ready {
		resp.Status = apisearch.StatusDegraded
		return c.Status(fiber.StatusServiceUnavailable).JSON(resp)
	}
	return c.JSON(resp)
}

// handleGenres lists the distinct genres of a space.
func (s *Server) handleGenres(c *fiber.Ctx) error {
	genres, err := s.engine.ListDistinct(c.UserContext(), c.Query(apisearch.ParamSpace), catalog.FieldGenre)
	if err != nil {
		return s.failErr(c, "listing genres", err)
	}
	if genres == nil {
		genres = []string{}
	}

	return c.JSON(apisearch.GenresResponse{
		Success:     true,
		TotalGenres: len(genres),
		Genres:      genres,
	})
}

// handleYearRange returns the earliest and latest release years.
func (s *Server) handleYearRange(c *fiber.Ctx) error {
	yr, err := s.engine.YearRange(c.UserContext(), c.Query(apisearch.ParamSpace))
	if err != nil {
		return s.failErr(c, "computing year range", err)
	}

	return c.JSON(apisearch.YearRangeResponse{
		Success: true,
		MinYear: yr.Min,
		MaxYear: yr.Max,
	})
}

// handleStats returns corpus statistics.
func (s *Server) handleStats(c *fiber.Ctx) error {
	st, err := s.engine.Stats(c.UserContext(), c.Query(apisearch.ParamSpace))
	if err != nil {
		return s.failErr(c, "computing stats", err)
	}

	return c.JSON(apisearch.StatsResponse{Success: true, AlbumStats: st})
}
