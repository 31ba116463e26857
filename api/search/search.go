// Package search provides the wire types shared by the REST API, the MCP
// tools and the sleeves CLI, along with a client for the REST API.
package search

import (
	"strconv"

	"github.com/papercomputeco/sleeves/pkg/catalog"
	engine "github.com/papercomputeco/sleeves/pkg/search"
	"github.com/papercomputeco/sleeves/pkg/stats"
)

// Query types reported in Response.QueryType.
const (
	QueryTypeVector = "vector"
	QueryTypeText   = "text"
	QueryTypeImage  = "image"
)

// Query string parameters understood by the GET and multipart endpoints.
const (
	ParamQuery          = "query"
	ParamK              = "k"
	ParamSpace          = "space"
	ParamGenre          = "genre"
	ParamYearMin        = "year_min"
	ParamYearMax        = "year_max"
	ParamMinSimilarity  = "min_similarity"
	ParamExcludeFlagged = "exclude_flagged"

	// FormFile is the multipart field carrying the uploaded cover.
	FormFile = "file"
)

// FilterParams is the filter part of a search request.
type FilterParams struct {
	Genre          string   `json:"genre,omitempty"`
	YearMin        *int     `json:"year_min,omitempty"`
	YearMax        *int     `json:"year_max,omitempty"`
	MinSimilarity  *float32 `json:"min_similarity,omitempty"`
	ExcludeFlagged bool     `json:"exclude_flagged,omitempty"`
}

// Filter converts the params to an engine filter.
func (p FilterParams) Filter() catalog.Filter {
	return catalog.Filter{
		Genre:          p.Genre,
		YearMin:        p.YearMin,
		YearMax:        p.YearMax,
		MinSimilarity:  p.MinSimilarity,
		ExcludeFlagged: p.ExcludeFlagged,
	}
}

// Values encodes the params as query string values. Unset fields are
// omitted.
func (p FilterParams) Values() map[string]string {
	out := map[string]string{}
	if p.Genre != "" {
		out[ParamGenre] = p.Genre
	}
	if p.YearMin != nil {
		out[ParamYearMin] = strconv.Itoa(*p.YearMin)
	}
	if p.YearMax != nil {
		out[ParamYearMax] = strconv.Itoa(*p.YearMax)
	}
	if p.MinSimilarity != nil {
		out[ParamMinSimilarity] = strconv.FormatFloat(float64(*p.MinSimilarity), 'f', -1, 32)
	}
	if p.ExcludeFlagged {
		out[ParamExcludeFlagged] = "true"
	}
	return out
}

// VectorRequest is the body of POST /api/search.
type VectorRequest struct {
	QueryEmbedding []float32 `json:"query_embedding"`

	// K is the number of results. Nil selects the server default.
	K     *int   `json:"k,omitempty"`
	Space string `json:"space,omitempty"`
	FilterParams
}

// Response is the envelope of every search endpoint.
type Response struct {
	Success      bool            `json:"success"`
	QueryType    string          `json:"query_type"`
	Query        string          `json:"query,omitempty"`
	Space        string          `json:"space"`
	TotalResults int             `json:"total_results"`
	Results      []engine.Result `json:"results"`
}

// NewResponse wraps engine results in the envelope.
func NewResponse(queryType, query, space string, results []engine.Result) *Response {
	if results == nil {
		results = []engine.Result{}
	}
	return &Response{
		Success:      true,
		QueryType:    queryType,
		Query:        query,
		Space:        space,
		TotalResults: len(results),
		Results:      results,
	}
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// GenresResponse is returned by GET /api/genres.
type GenresResponse struct {
	Success     bool     `json:"success"`
	TotalGenres int      `json:"total_genres"`
	Genres      []string `json:"genres"`
}

// YearRangeResponse is returned by GET /api/year-range.
type YearRangeResponse struct {
	Success bool `json:"success"`
	MinYear *int `json:"min_year"`
	MaxYear *int `json:"max_year"`
}

// StatsResponse is returned by GET /api/stats.
type StatsResponse struct {
	Success bool `json:"success"`
	stats.AlbumStats
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	engine.HealthReport
}

// Health statuses.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)
