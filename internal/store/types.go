package store

import (
	"encoding/json"
	"time"

	"github.com/rendis/routinekit/internal/run"
	"github.com/rendis/routinekit/pkg/schema"
)

// RoutineRecord is a persisted routine document.
type RoutineRecord struct {
	Routine   *schema.Routine `json:"routine"`
	Title     string          `json:"title"`
	Version   int             `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// RoutineSummary is the listing view of a routine, without its graph.
type RoutineSummary struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Complexity int       `json:"complexity"`
	NodeCount  int       `json:"node_count"`
	Version    int       `json:"version"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// RoutineFilter narrows ListRoutines.
type RoutineFilter struct {
	TitlePrefix string
	Limit       int
	Offset      int
}

// RunRecord is a persisted run bookmark.
type RunRecord struct {
	run.Bookmark
	Language  string    `json:"language"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RunFilter narrows ListRuns.
type RunFilter struct {
	RoutineID string
	Status    schema.RunStatus
	Limit     int
}

// Event is an immutable entry in a session's event log.
type Event struct {
	ID        int64           `json:"id"`
	SessionID string          `json:"session_id"`
	NodeID    string          `json:"node_id,omitempty"`
	Type      string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Sequence  int64           `json:"sequence"`
}

// EventFilter narrows GetEventsByType.
type EventFilter struct {
	SessionID string
	Since     *time.Time
	Limit     int
}
