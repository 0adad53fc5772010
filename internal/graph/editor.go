package graph

import (
	"context"
	"log/slog"
	"sync"

	"github.com/rendis/routinekit/internal/logging"
	"github.com/rendis/routinekit/internal/streaming"
	"github.com/rendis/routinekit/pkg/schema"
)

// Operation is one edit applied to the editor's routine. It must not mutate its input.
type Operation func(r *schema.Routine, newID IDFunc) (*schema.Routine, error)

// Remove deletes a node.
func Remove(nodeID string) Operation {
	return func(r *schema.Routine, newID IDFunc) (*schema.Routine, error) {
		return RemoveNode(r, nodeID, newID)
	}
}

// Unlink moves a node off the grid.
func Unlink(nodeID string) Operation {
	return func(r *schema.Routine, newID IDFunc) (*schema.Routine, error) {
		return UnlinkNode(r, nodeID, newID)
	}
}

// InsertOnLink splits a link with node.
func InsertOnLink(linkID string, node schema.Node) Operation {
	return func(r *schema.Routine, newID IDFunc) (*schema.Routine, error) {
		return InsertNodeOnLink(r, linkID, node, newID)
	}
}

// Branch adds node on a new branch off a link's source, terminated by an End node.
func Branch(linkID string, node schema.Node) Operation {
	return func(r *schema.Routine, newID IDFunc) (*schema.Routine, error) {
		return InsertBranch(r, linkID, node, schema.NewNode("", schema.NodeTypeEnd), newID)
	}
}

// Drop moves a node to target; nil unlinks it.
func Drop(nodeID string, target *Cell) Operation {
	return func(r *schema.Routine, newID IDFunc) (*schema.Routine, error) {
		return DropNode(r, nodeID, target, newID)
	}
}

// Clean normalizes rows and terminates dangling branches.
func Clean() Operation {
	return func(r *schema.Routine, newID IDFunc) (*schema.Routine, error) {
		return CleanUp(r, newID), nil
	}
}

// Replace swaps in a whole routine, e.g. one loaded from storage.
func Replace(next *schema.Routine) Operation {
	return func(*schema.Routine, IDFunc) (*schema.Routine, error) {
		if next == nil {
			return nil, schema.NewError(schema.ErrCodeValidation, "routine is required")
		}
		return next.Clone(), nil
	}
}

// EditorOptions configures an Editor.
type EditorOptions struct {
	SessionID string
	IDs       IDFunc             // defaults to UUIDs()
	Hub       streaming.EventHub // optional
	Logger    *slog.Logger       // defaults to a discarding logger
}

// Editor is a design-time session over one routine. Every edit produces a new
// routine; the editor re-runs layout on it and keeps whatever layout corrected.
type Editor struct {
	mu       sync.RWMutex
	opts     EditorOptions
	routine  *schema.Routine
	layout   *Layout
	dragging string
}

// NewEditor opens an editor on r. An empty routine is seeded with Start → End.
func NewEditor(ctx context.Context, r *schema.Routine, opts EditorOptions) *Editor {
	if opts.IDs == nil {
		opts.IDs = UUIDs()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if r == nil {
		r = &schema.Routine{ID: opts.IDs()}
	}

	e := &Editor{opts: opts}
	e.adopt(ctx, r)
	return e
}

// Apply runs op against the current routine. On error the editor is unchanged.
func (e *Editor) Apply(ctx context.Context, op Operation) (*Layout, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	next, err := op(e.routine, e.opts.IDs)
	if err != nil {
		e.logger().WarnContext(ctx, "edit rejected", slog.String("error", err.Error()))
		return nil, err
	}
	return e.adopt(ctx, next), nil
}

// Drag marks nodeID as being dragged and notifies subscribers.
func (e *Editor) Drag(ctx context.Context, nodeID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.routine.NodeByID(nodeID) == nil {
		return nodeNotFound(nodeID)
	}
	e.dragging = nodeID
	e.publish(ctx, schema.EventNodeDragging, nodeID, nil)
	return nil
}

// DropDragged completes a drag started with Drag.
func (e *Editor) DropDragged(ctx context.Context, target *Cell) (*Layout, error) {
	e.mu.Lock()
	nodeID := e.dragging
	e.mu.Unlock()

	if nodeID == "" {
		return nil, schema.NewError(schema.ErrCodeInvalidTransition, "no node is being dragged")
	}
	l, err := e.Apply(ctx, Drop(nodeID, target))
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.dragging = ""
	e.publish(ctx, schema.EventNodeDropped, nodeID, target)
	e.mu.Unlock()
	return l, nil
}

// Dragging returns the ID of the node being dragged, or "".
func (e *Editor) Dragging() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dragging
}

// Routine returns a copy of the current routine.
func (e *Editor) Routine() *schema.Routine {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.routine.Clone()
}

// Layout returns the layout of the current routine. Treat it as read-only.
func (e *Editor) Layout() *Layout {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.layout
}

// Status returns the current structural status.
func (e *Editor) Status() schema.Status {
	return e.Layout().Status
}

// Runnable reports whether the routine may be started.
func (e *Editor) Runnable() bool {
	return e.Status().Runnable()
}

// adopt lays out next and makes the result current. Caller holds e.mu.
func (e *Editor) adopt(ctx context.Context, next *schema.Routine) *Layout {
	ctx = logging.WithRoutineID(ctx, next.ID)
	log := logging.LogWith(ctx, e.logger())

	l := ComputeLayout(next)
	if l.Status.Critical == schema.CriticalEmptyGraph {
		log.InfoContext(ctx, "seeding empty routine")
		l = ComputeLayout(Seed(next, e.opts.IDs))
		e.publish(ctx, schema.EventGraphSeeded, "", MsgEmptyGraph)
	}
	if l.Changed {
		log.InfoContext(ctx, "layout corrected routine",
			slog.String("critical", string(l.Status.Critical)),
			slog.Int("links", len(l.Routine.NodeLinks)))
	}

	var prev schema.Status
	hadLayout := e.layout != nil
	if hadLayout {
		prev = e.layout.Status
	}

	e.routine = l.Routine
	e.layout = l
	if d := e.dragging; d != "" && e.routine.NodeByID(d) == nil {
		e.dragging = ""
	}

	e.publish(ctx, schema.EventGraphUpdated, "", l.Status)
	if !hadLayout || !sameStatus(prev, l.Status) {
		e.publish(ctx, schema.EventGraphStatusChanged, "", l.Status)
	}
	return l
}

func (e *Editor) publish(ctx context.Context, eventType, nodeID string, payload any) {
	if e.opts.Hub == nil {
		return
	}
	err := e.opts.Hub.Publish(ctx, streaming.StreamEvent{
		SessionID: e.opts.SessionID,
		NodeID:    nodeID,
		EventType: eventType,
		Payload:   payload,
	})
	if err != nil {
		e.logger().WarnContext(ctx, "event publish failed",
			slog.String("event", eventType), slog.String("error", err.Error()))
	}
}

func (e *Editor) logger() *slog.Logger {
	return e.opts.Logger.With(slog.String("component", "editor"))
}

func sameStatus(a, b schema.Status) bool {
	if a.Level != b.Level || a.Critical != b.Critical || len(a.Messages) != len(b.Messages) {
		return false
	}
	for i := range a.Messages {
		if a.Messages[i] != b.Messages[i] {
			return false
		}
	}
	return true
}
