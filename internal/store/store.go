package store

import (
	"context"

	"github.com/rendis/routinekit/internal/run"
	"github.com/rendis/routinekit/pkg/schema"
)

// Store defines the persistence layer contract.
// All implementations must be safe for concurrent use.
type Store interface {
	// Routines
	SaveRoutine(ctx context.Context, r *schema.Routine) error
	GetRoutine(ctx context.Context, id string) (*RoutineRecord, error)
	FetchRoutine(ctx context.Context, id string) (*schema.Routine, error)
	ListRoutines(ctx context.Context, filter RoutineFilter) ([]*RoutineSummary, error)
	DeleteRoutine(ctx context.Context, id string) error

	// Runs
	SaveBookmark(ctx context.Context, b run.Bookmark, language string) error
	GetBookmark(ctx context.Context, runID string) (*RunRecord, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]*RunRecord, error)
	DeleteRun(ctx context.Context, runID string) error

	// Event log (append-only)
	AppendEvent(ctx context.Context, event *Event) error
	GetEvents(ctx context.Context, sessionID string, since int64) ([]*Event, error)
	GetEventsByType(ctx context.Context, eventType string, filter EventFilter) ([]*Event, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Vacuum(ctx context.Context) error
	Close() error
}

var _ run.Fetcher = Store(nil)
