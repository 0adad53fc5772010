package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rendis/routinekit/internal/logging"
	"github.com/rendis/routinekit/internal/run"
	"github.com/rendis/routinekit/internal/streaming"
	"github.com/rendis/routinekit/pkg/schema"
)

// EventLog provides append-only session event persistence with per-session
// sequence numbering.
type EventLog struct {
	store  Store
	logger *slog.Logger
}

// NewEventLog creates an EventLog backed by the given Store.
func NewEventLog(s Store, logger *slog.Logger) *EventLog {
	if logger == nil {
		logger = logging.Discard()
	}
	return &EventLog{store: s, logger: logger.With(slog.String("component", "eventlog"))}
}

// AppendEvent appends an event, assigning the next sequence for its session.
func (el *EventLog) AppendEvent(ctx context.Context, event *Event) error {
	if event.SessionID == "" {
		return schema.NewError(schema.ErrCodeValidation, "event session id is required")
	}
	if event.Type == "" {
		return schema.NewError(schema.ErrCodeValidation, "event type is required")
	}
	return el.store.AppendEvent(ctx, event)
}

// Record converts a stream event and appends it.
func (el *EventLog) Record(ctx context.Context, se streaming.StreamEvent) (*Event, error) {
	e := &Event{SessionID: se.SessionID, NodeID: se.NodeID, Type: se.EventType}
	if se.Payload != nil {
		raw, err := json.Marshal(se.Payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", se.EventType, err)
		}
		e.Payload = raw
	}
	if err := el.AppendEvent(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Attach subscribes to hub and records every matching event until the returned
// stop func is called or ctx is done. stop waits for the writer to drain.
func (el *EventLog) Attach(ctx context.Context, hub streaming.EventHub, filter streaming.EventFilter) (stop func(), err error) {
	ctx, cancel := context.WithCancel(ctx)
	ch, unsubscribe, err := hub.Subscribe(ctx, filter)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe event log: %w", err)
	}
	context.AfterFunc(ctx, unsubscribe)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for se := range ch {
			if _, err := el.Record(context.WithoutCancel(ctx), se); err != nil {
				el.logger.WarnContext(ctx, "event not recorded",
					slog.String("session_id", se.SessionID),
					slog.String("event_type", se.EventType),
					slog.String("error", err.Error()))
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			wg.Wait()
		})
	}, nil
}

// GetEvents returns events for a session with sequence > since, ordered by sequence ASC.
func (el *EventLog) GetEvents(ctx context.Context, sessionID string, since int64) ([]*Event, error) {
	return el.store.GetEvents(ctx, sessionID, since)
}

// GetEventsByType returns events of a specific type matching the filter.
func (el *EventLog) GetEventsByType(ctx context.Context, eventType string, filter EventFilter) ([]*Event, error) {
	return el.store.GetEventsByType(ctx, eventType, filter)
}

// Trail is the reconstruction of a run from its event log.
type Trail struct {
	SessionID    string           `json:"session_id"`
	RoutineID    string           `json:"routine_id,omitempty"`
	Status       schema.RunStatus `json:"status,omitempty"`
	Cursor       run.Path         `json:"cursor"`
	Visited      []run.Path       `json:"visited"`
	Percentage   float64          `json:"percentage"`
	Hydrations   int              `json:"hydrations"`
	Failures     int              `json:"failures"`
	Completions  int              `json:"completions"`
	LastSequence int64            `json:"last_sequence"`
}

// Replay rebuilds the trail of a session. Returns an error if sequence gaps are detected.
func (el *EventLog) Replay(ctx context.Context, sessionID string) (*Trail, error) {
	events, err := el.store.GetEvents(ctx, sessionID, 0)
	if err != nil {
		return nil, fmt.Errorf("get events for replay: %w", err)
	}

	trail := &Trail{SessionID: sessionID, Visited: []run.Path{}}
	seen := make(map[string]bool)

	for i, e := range events {
		expected := int64(i + 1)
		if e.Sequence != expected {
			return nil, schema.NewErrorf(schema.ErrCodeStore,
				"sequence gap in session %s: expected %d, got %d", sessionID, expected, e.Sequence)
		}
		trail.LastSequence = e.Sequence

		switch e.Type {
		case schema.EventRunStarted:
			if err := json.Unmarshal(e.Payload, &trail.RoutineID); err != nil {
				return nil, schema.NewErrorf(schema.ErrCodeStore,
					"event %d of session %s: %v", e.Sequence, sessionID, err)
			}

		case schema.EventRunStepChanged:
			var change run.StepChange
			if err := json.Unmarshal(e.Payload, &change); err != nil {
				return nil, schema.NewErrorf(schema.ErrCodeStore,
					"event %d of session %s: %v", e.Sequence, sessionID, err)
			}
			trail.Cursor = change.Path
			trail.Status = change.Status
			trail.Percentage = change.Percentage
			if key := change.Path.String(); !seen[key] {
				seen[key] = true
				trail.Visited = append(trail.Visited, change.Path)
			}

		case schema.EventRunHydrationRequested:
			trail.Status = schema.RunStatusAwaitingHydration

		case schema.EventRunHydrationResolved:
			trail.Hydrations++

		case schema.EventRunHydrationFailed:
			trail.Failures++

		case schema.EventRunCompleted:
			trail.Status = schema.RunStatusComplete
			trail.Completions++
		}
	}
	return trail, nil
}
