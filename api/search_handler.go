package api

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	apisearch "github.com/papercomputeco/sleeves/api/search"
	"github.com/papercomputeco/sleeves/pkg/catalog"
	"github.com/papercomputeco/sleeves/pkg/eventstream"
	"github.com/papercomputeco/sleeves/pkg/eventstream/worker"
	"github.com/papercomputeco/sleeves/pkg/search"
)

// maxEventIDs caps the result ids carried by a search event.
const maxEventIDs = 10

// searchParams are the query string parameters shared by the text and
// image search endpoints.
type searchParams struct {
	space  string
	k      int
	filter catalog.Filter
}

// handleSearchVector handles POST /api/search with a raw query embedding.
func (s *Server) handleSearchVector(c *fiber.Ctx) error {
	var req apisearch.VectorRequest
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, fiber.StatusBadRequest, "invalid request body")
	}
	if len(req.QueryEmbedding) == 0 {
		return s.fail(c, fiber.StatusBadRequest, "query_embedding is required")
	}

	p := searchParams{
		space:  s.resolveSpace(req.Space),
		k:      s.engine.Config().DefaultK,
		filter: req.Filter(),
	}
	if req.K != nil {
		p.k = *req.K
	}

	start := time.Now()
	results, err := s.engine.Search(c.UserContext(), search.Query{
		Space:     p.space,
		Embedding: req.QueryEmbedding,
		K:         p.k,
		Filter:    p.filter,
	})
	if err != nil {
		return s.failErr(c, "search", err)
	}

	s.publish(apisearch.QueryTypeVector, "", p, results, time.Since(start))
	return c.JSON(apisearch.NewResponse(apisearch.QueryTypeVector, "", p.space, results))
}

// handleSearchText handles GET /api/search-by-text.
// Query parameters:
//   - query (required): the text describing the cover
//   - k, space, genre, year_min, year_max, min_similarity, exclude_flagged
func (s *Server) handleSearchText(c *fiber.Ctx) error {
	query := strings.TrimSpace(c.Query(apisearch.ParamQuery))
	if query == "" {
		return s.fail(c, fiber.StatusBadRequest, "query cannot be empty")
	}

	p, err := s.parseSearchParams(c)
	if err != nil {
		return s.fail(c, fiber.StatusBadRequest, err.Error())
	}

	start := time.Now()
	results, err := s.engine.SearchText(c.UserContext(), p.space, query, p.k, p.filter)
	if err != nil {
		return s.failErr(c, "text search", err)
	}

	s.publish(apisearch.QueryTypeText, query, p, results, time.Since(start))
	return c.JSON(apisearch.NewResponse(apisearch.QueryTypeText, query, p.space, results))
}

// handleSearchImage handles POST /api/search-by-image with a multipart
// "file" field holding an image/* upload.
func (s *Server) handleSearchImage(c *fiber.Ctx) error {
	p, err := s.parseSearchParams(c)
	if err != nil {
		return s.fail(c, fiber.StatusBadRequest, err.Error())
	}

	fh, err := c.FormFile(apisearch.FormFile)
	if err != nil {
		return s.fail(c, fiber.StatusBadRequest, "file is required")
	}

	contentType := fh.Header.Get(fiber.HeaderContentType)
	if !strings.HasPrefix(contentType, "image/") {
		return s.fail(c, fiber.StatusUnsupportedMediaType, "file must be an image")
	}
	if fh.Size > int64(s.config.MaxUploadBytes) {
		return s.fail(c, fiber.StatusRequestEntityTooLarge, "uploaded file is too large")
	}

	f, err := fh.Open()
	if err != nil {
		return s.failErr(c, "reading upload", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, int64(s.config.MaxUploadBytes)+1))
	if err != nil {
		return s.failErr(c, "reading upload", err)
	}
	if len(data) > s.config.MaxUploadBytes {
		return s.fail(c, fiber.StatusRequestEntityTooLarge, "uploaded file is too large")
	}

	start := time.Now()
	results, err := s.engine.SearchImage(c.UserContext(), p.space, data, contentType, p.k, p.filter)
	if err != nil {
		return s.failErr(c, "image search", err)
	}

	s.publish(apisearch.QueryTypeImage, fh.Filename, p, results, time.Since(start))
	return c.JSON(apisearch.NewResponse(apisearch.QueryTypeImage, "", p.space, results))
}

func (s *Server) parseSearchParams(c *fiber.Ctx) (searchParams, error) {
	p := searchParams{
		space: s.resolveSpace(c.Query(apisearch.ParamSpace)),
		k:     s.engine.Config().DefaultK,
	}

	if raw := c.Query(apisearch.ParamK); raw != "" {
		k, err := strconv.Atoi(raw)
		if err != nil {
			return p, errors.New("k must be an integer")
		}
		p.k = k
	}

	p.filter.Genre = strings.TrimSpace(c.Query(apisearch.ParamGenre))

	var err error
	if p.filter.YearMin, err = optionalInt(c, apisearch.ParamYearMin); err != nil {
		return p, err
	}
	if p.filter.YearMax, err = optionalInt(c, apisearch.ParamYearMax); err != nil {
		return p, err
	}

	if raw := c.Query(apisearch.ParamMinSimilarity); raw != "" {
		v, err := strconv.ParseFloat(raw, 32)
		if err != nil {
			return p, fmt.Errorf("%s must be a number", apisearch.ParamMinSimilarity)
		}
		f := float32(v)
		p.filter.MinSimilarity = &f
	}

	if raw := c.Query(apisearch.ParamExcludeFlagged); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return p, fmt.Errorf("%s must be a boolean", apisearch.ParamExcludeFlagged)
		}
		p.filter.ExcludeFlagged = v
	}

	return p, nil
}

func optionalInt(c *fiber.Ctx, key string) (*int, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be an integer", key)
	}
	return &v, nil
}

func (s *Server) resolveSpace(space string) string {
	if space == "" {
		return s.engine.DefaultSpace()
	}
	return space
}

// publish hands a search event to the event queue without blocking.
func (s *Server) publish(queryType, query string, p searchParams, results []search.Result, took time.Duration) {
	if s.config.Events == nil {
		return
	}

	ev := eventstream.NewSearchPerformedEvent(p.space, queryType, p.k, p.filter)
	ev.Query = query
	ev.Results = eventstream.SearchOutcome{
		Count:      len(results),
		DurationMs: took.Milliseconds(),
	}
	for _, r := range results[:min(len(results), maxEventIDs)] {
		ev.Results.TopIDs = append(ev.Results.TopIDs, r.ID)
	}

	if !s.config.Events.Enqueue(worker.Job{Event: ev}) {
		s.logger.Debug("search event dropped", zap.String("event_id", ev.EventID))
	}
}
