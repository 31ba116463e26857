package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/papercomputeco/sleeves/pkg/catalog"
	"github.com/papercomputeco/sleeves/pkg/search"
)

var (
	searchToolName    = "search_albums"
	searchDescription = "Search album covers by a text description of their artwork. Returns the most visually similar albums with artist, title, genre, release year and similarity."

	genresToolName    = "list_genres"
	genresDescription = "List the distinct genres of the album corpus, sorted alphabetically. Use these values for the genre filter of search_albums."
)

// SearchInput represents the input arguments for the search_albums tool.
type SearchInput struct {
	Query          string   `json:"query" jsonschema:"a description of the cover artwork to search for"`
	K              int      `json:"k,omitempty" jsonschema:"number of results to return (default: 10)"`
	Space          string   `json:"space,omitempty" jsonschema:"embedding space to search (default: the primary image space)"`
	Genre          string   `json:"genre,omitempty" jsonschema:"only return albums of this genre"`
	YearMin        *int     `json:"year_min,omitempty" jsonschema:"earliest release year, inclusive"`
	YearMax        *int     `json:"year_max,omitempty" jsonschema:"latest release year, inclusive"`
	MinSimilarity  *float32 `json:"min_similarity,omitempty" jsonschema:"only return results strictly more similar than this"`
	ExcludeFlagged bool     `json:"exclude_flagged,omitempty" jsonschema:"skip albums flagged for content warnings"`
}

// SearchOutput represents the output of the search_albums tool.
type SearchOutput struct {
	Query   string          `json:"query"`
	Results []search.Result `json:"results"`
	Count   int             `json:"count"`
}

// GenresInput represents the input arguments for the list_genres tool.
type GenresInput struct {
	Space string `json:"space,omitempty" jsonschema:"embedding space whose corpus to list (default: the primary space)"`
}

// GenresOutput represents the output of the list_genres tool.
type GenresOutput struct {
	Genres []string `json:"genres"`
	Count  int      `json:"count"`
}

const defaultToolK = 10

// handleSearch processes a search_albums request.
func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	logger := s.config.Logger

	k := input.K
	if k <= 0 {
		k = defaultToolK
	}

	logger.Debug("MCP search request",
		zap.String("query", input.Query),
		zap.Int("k", k),
	)

	if input.Query == "" {
		return errorResult("query is required"), SearchOutput{}, nil
	}

	results, err := s.config.Engine.SearchText(ctx, input.Space, input.Query, k, catalog.Filter{
		Genre:          input.Genre,
		YearMin:        input.YearMin,
		YearMax:        input.YearMax,
		MinSimilarity:  input.MinSimilarity,
		ExcludeFlagged: input.ExcludeFlagged,
	})
	if err != nil {
		logger.Error("failed to search albums", zap.Error(err))
		return errorResult(fmt.Sprintf("Failed to search albums: %v", err)), SearchOutput{}, nil
	}

	output := SearchOutput{
		Query:   input.Query,
		Results: results,
		Count:   len(results),
	}
	return jsonResult(logger, output), output, nil
}

// handleListGenres processes a list_genres request.
func (s *Server) handleListGenres(ctx context.Context, _ *mcp.CallToolRequest, input GenresInput) (*mcp.CallToolResult, GenresOutput, error) {
	genres, err := s.config.Engine.ListDistinct(ctx, input.Space, catalog.FieldGenre)
	if err != nil {
		s.config.Logger.Error("failed to list genres", zap.Error(err))
		return errorResult(fmt.Sprintf("Failed to list genres: %v", err)), GenresOutput{}, nil
	}

	output := GenresOutput{Genres: genres, Count: len(genres)}
	return jsonResult(s.config.Logger, output), output, nil
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: msg},
		},
	}
}

// jsonResult serializes the structured output as JSON for the text field.
// Tools returning structured content also return it as a TextContent block
// for clients that only read text.
func jsonResult(logger *zap.Logger, output any) *mcp.CallToolResult {
	jsonBytes, err := json.Marshal(output)
	if err != nil {
		logger.Error("failed to marshal tool output", zap.Error(err))
		return errorResult(fmt.Sprintf("Failed to serialize results: %v", err))
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}
}
