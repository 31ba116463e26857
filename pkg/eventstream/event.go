package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/sleeves/pkg/catalog"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeSearchPerformed is emitted after a search request is answered.
	EventTypeSearchPerformed = "sleeves.search.performed"
)

// Query types carried by SearchPerformedEvent.QueryType.
const (
	QueryTypeVector = "vector"
	QueryTypeText   = "text"
	QueryTypeImage  = "image"
)

// SearchPerformedEvent is a transport-neutral event payload for an answered search.
type SearchPerformedEvent struct {
	SchemaVersion int            `json:"schema_version"`
	EventType     string         `json:"event_type"`
	EventID       string         `json:"event_id"`
	EmittedAt     time.Time      `json:"emitted_at"`
	Space         string         `json:"space"`
	QueryType     string         `json:"query_type"`
	Query         string         `json:"query,omitempty"`
	K             int            `json:"k"`
	Filter        catalog.Filter `json:"filter"`
	Results       SearchOutcome  `json:"results"`
}

// SearchOutcome summarizes what a search returned.
type SearchOutcome struct {
	Count      int      `json:"count"`
	TopIDs     []string `json:"top_ids,omitempty"`
	DurationMs int64    `json:"duration_ms"`
}

// NewSearchPerformedEvent stamps a new event with an id and emission time.
func NewSearchPerformedEvent(space, queryType string, k int, filter catalog.Filter) *SearchPerformedEvent {
	return &SearchPerformedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeSearchPerformed,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Space:         space,
		QueryType:     queryType,
		K:             k,
		Filter:        filter,
	}
}
