package run

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/rendis/routinekit/internal/logging"
	"github.com/rendis/routinekit/internal/streaming"
	"github.com/rendis/routinekit/pkg/schema"
)

// Fetcher loads the full graph of a routine that was only referenced by summary.
type Fetcher interface {
	FetchRoutine(ctx context.Context, id string) (*schema.Routine, error)
}

// Options configures a Session.
type Options struct {
	RunID    string             // defaults to a random UUID
	Language string             // preferred translation language, defaults to "en"
	Hub      streaming.EventHub // optional
	Logger   *slog.Logger       // defaults to a discarding logger
	Retry    *schema.RetryPolicy
}

// Ticket identifies one hydration request. A ticket stops being valid as soon as
// the cursor leaves its step; answers for it are then discarded.
type Ticket struct {
	Seq       uint64 `json:"seq"`
	Path      Path   `json:"path"`
	RoutineID string `json:"routineId"`
}

// Bookmark is the resumable state of a run.
type Bookmark struct {
	RunID     string           `json:"runId"`
	RoutineID string           `json:"routineId"`
	Cursor    Path             `json:"cursor"`
	Progress  []Path           `json:"progress"`
	Status    schema.RunStatus `json:"status"`
}

// StepChange is the payload of run.step_changed events.
type StepChange struct {
	Path       Path             `json:"path"`
	Kind       StepKind         `json:"kind"`
	Status     schema.RunStatus `json:"status"`
	Percentage float64          `json:"percentage"`
}

// Session runs one routine: it owns the step tree, the cursor and the progress
// history. The cursor always rests on a terminal step.
type Session struct {
	mu      sync.Mutex
	opts    Options
	builder *Builder
	main    *schema.Routine
	root    Step
	cursor  Path
	history []Path
	status  schema.RunStatus
	pending *Ticket
	seq     uint64
	err     error
	hooks   []TransitionHook
}

// NewSession builds the step tree for main and places the cursor on its first step.
func NewSession(ctx context.Context, main *schema.Routine, opts Options) (*Session, error) {
	s, err := newSession(main, opts)
	if err != nil {
		return nil, err
	}
	ctx = s.context(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cursor, _ = FirstLeaf(s.root, Path{})
	s.publish(ctx, schema.EventRunStarted, "", s.main.ID)
	s.logger(ctx).InfoContext(ctx, "run started", slog.Int("complexity", Complexity(s.root)))
	s.settle(ctx)
	return s, nil
}

// Restore rebuilds a session from a bookmark taken on main. Cursor and progress
// paths that no longer resolve against the rebuilt tree are dropped with a warning.
func Restore(ctx context.Context, main *schema.Routine, b Bookmark, opts Options) (*Session, error) {
	if opts.RunID == "" {
		opts.RunID = b.RunID
	}
	s, err := newSession(main, opts)
	if err != nil {
		return nil, err
	}
	ctx = s.context(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.logger(ctx)
	for _, p := range b.Progress {
		if _, ok := StepAt(s.root, p); !ok {
			log.WarnContext(ctx, "dropping stale progress path", slog.String("path", p.String()))
			continue
		}
		s.history = record(s.history, p)
	}

	cursor, ok := FirstLeaf(s.root, b.Cursor)
	if !ok {
		log.WarnContext(ctx, "bookmarked cursor no longer resolves, restarting at first step",
			slog.String("path", b.Cursor.String()))
		cursor, _ = FirstLeaf(s.root, Path{})
	}
	s.cursor = cursor

	if b.Status == schema.RunStatusComplete && ok {
		if _, more := Next(s.root, s.cursor); !more {
			s.transition(ctx, schema.RunStatusComplete)
			return s, nil
		}
	}
	s.settle(ctx)
	return s, nil
}

func newSession(main *schema.Routine, opts Options) (*Session, error) {
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	b := NewBuilder(NewLocalizer(opts.Language))
	root, err := b.Build(main)
	if err != nil {
		return nil, err
	}
	return &Session{
		opts:    opts,
		builder: b,
		main:    main,
		root:    root,
		cursor:  Path{},
		status:  schema.RunStatusLoading,
	}, nil
}

// OnTransition registers a hook called after every status change.
func (s *Session) OnTransition(hook TransitionHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hook)
}

// Next records the current step as done and moves to the following one. It
// returns a nil step when the run completes. Forward moves are refused while the
// current subroutine awaits hydration.
func (s *Session) Next(ctx context.Context) (Step, error) {
	ctx = s.context(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.canAdvance(); err != nil {
		return nil, err
	}
	return s.advance(ctx, s.cursor)
}

// Previous moves back to the preceding step. At the first step it returns nil,
// nil and leaves the cursor where it is. On a completed run it reopens the last
// step. Moving back abandons any pending hydration.
func (s *Session) Previous(ctx context.Context) (Step, error) {
	ctx = s.context(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == schema.RunStatusComplete {
		s.settle(ctx)
		return s.current(), nil
	}

	prev, ok := Previous(s.root, s.cursor)
	if !ok {
		return nil, nil
	}
	s.leave()
	s.cursor = prev
	s.settle(ctx)
	return s.current(), nil
}

// Jump moves the cursor to the first terminal step at or below p. While a
// hydration is pending only backward jumps are allowed.
func (s *Session) Jump(ctx context.Context, p Path) (Step, error) {
	ctx = s.context(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok := FirstLeaf(s.root, p)
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeInvalidPath, "no step at path %q", p.String())
	}
	if s.status == schema.RunStatusAwaitingHydration && target.Compare(s.cursor) > 0 {
		return nil, s.blocked()
	}
	if !target.Equal(s.cursor) {
		s.leave()
	}
	s.cursor = target
	s.settle(ctx)
	return s.current(), nil
}

// Choose follows one of the current decision's links. A link into a routine
// list moves to that list's first step, a link into an End node finishes the
// routine owning the decision, and any other link advances to the next step.
func (s *Session) Choose(ctx context.Context, linkID string) (Step, error) {
	ctx = s.context(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.canAdvance(); err != nil {
		return nil, err
	}
	d, ok := s.current().(*DecisionStep)
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeInvalidTransition,
			"step at %q is not a decision", s.cursor.String())
	}
	l, ok := d.Link(linkID)
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"invalid choice %q: not in available links", linkID).WithNode(d.NodeID)
	}

	s.logger(ctx).InfoContext(ctx, "decision taken",
		slog.String("node_id", d.NodeID), slog.String("link_id", l.ID), slog.String("to", l.ToID))

	owner := s.owner(s.cursor)
	switch d.Targets[l.ToID] {
	case schema.NodeTypeEnd:
		return s.advance(ctx, owner)
	case schema.NodeTypeRoutineList:
		if target, found := s.listFor(owner, l.ToID); found {
			s.leave()
			s.cursor = target
			s.settle(ctx)
			return s.current(), nil
		}
	}
	return s.advance(ctx, s.cursor)
}

// Resolve installs the routine fetched for t. The subroutine leaf is replaced by
// the routine's own step tree, copying only its ancestors. An answer for a
// ticket that is no longer pending is discarded with HYDRATION_SUPERSEDED.
func (s *Session) Resolve(ctx context.Context, t Ticket, r *schema.Routine) (Step, error) {
	ctx = s.context(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkTicket(ctx, t); err != nil {
		return nil, err
	}
	if r == nil || r.NeedsHydration() {
		return nil, s.fail(ctx, t, schema.NewErrorf(schema.ErrCodeValidation,
			"fetched routine %s has no nodes", t.RoutineID))
	}

	at, leaf, ok := s.locate(t)
	if !ok {
		return nil, s.fail(ctx, t, schema.NewErrorf(schema.ErrCodeNotFound,
			"subroutine %s is no longer in the step tree", t.RoutineID))
	}
	repl, err := s.builder.Expand(leaf, r, len(at))
	if err != nil {
		return nil, s.fail(ctx, t, err)
	}
	root, err := ReplaceAt(s.root, at, repl)
	if err != nil {
		return nil, s.fail(ctx, t, err)
	}

	s.root = root
	s.pending = nil
	s.err = nil
	s.publish(ctx, schema.EventRunHydrationResolved, "", t)
	s.logger(ctx).InfoContext(ctx, "subroutine hydrated",
		slog.String("path", at.String()), slog.String("hydrated_routine", r.ID))

	if s.cursor.Equal(at) {
		s.cursor, _ = FirstLeaf(s.root, at)
	}
	s.settle(ctx)
	return s.current(), nil
}

// Fail records a failed fetch for t. The session stays awaiting hydration and
// the tree is left untouched; the returned error is also available from Err.
func (s *Session) Fail(ctx context.Context, t Ticket, cause error) error {
	ctx = s.context(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkTicket(ctx, t); err != nil {
		return err
	}
	return s.fail(ctx, t, cause)
}

// Hydrate fetches the pending subroutine through f, retrying according to the
// session's retry policy, and resolves or fails the pending ticket. With nothing
// pending it returns the current step.
func (s *Session) Hydrate(ctx context.Context, f Fetcher) (Step, error) {
	t := s.Pending()
	if t == nil {
		return s.Current(), nil
	}
	ctx = s.context(ctx)

	var lastErr error
	for attempt := 0; ; attempt++ {
		r, err := f.FetchRoutine(ctx, t.RoutineID)
		if err == nil {
			return s.Resolve(ctx, *t, r)
		}
		lastErr = err

		policy := s.opts.Retry
		if policy == nil || attempt >= policy.Max || !IsRetryableError(err) {
			break
		}
		delay := ComputeBackoff(policy, attempt)
		s.logger(ctx).WarnContext(ctx, "hydration fetch failed, retrying",
			slog.Int("attempt", attempt+1), slog.Duration("delay", delay), slog.String("error", err.Error()))
		if werr := WaitForBackoff(ctx, delay); werr != nil {
			lastErr = werr
			break
		}
	}
	return nil, s.Fail(ctx, *t, lastErr)
}

// Current returns the step under the cursor.
func (s *Session) Current() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current()
}

// Cursor returns a copy of the cursor path.
func (s *Session) Cursor() Path {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor.Clone()
}

// Status returns the session status.
func (s *Session) Status() schema.RunStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// RunID returns the session's run ID.
func (s *Session) RunID() string {
	return s.opts.RunID
}

// Routine returns the main routine the session runs.
func (s *Session) Routine() *schema.Routine {
	return s.main
}

// Tree returns the current step tree. Treat it as read-only.
func (s *Session) Tree() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root
}

// History returns copies of the recorded progress paths.
func (s *Session) History() []Path {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Path, len(s.history))
	for i, p := range s.history {
		out[i] = p.Clone()
	}
	return out
}

// Pending returns the outstanding hydration ticket, or nil.
func (s *Session) Pending() *Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return nil
	}
	t := *s.pending
	t.Path = t.Path.Clone()
	return &t
}

// Err returns the last hydration failure for the pending ticket, or nil.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Progress measures the run against the main routine's complexity. Clamped
// percentages and stale history paths are logged as data-integrity warnings.
func (s *Session) Progress(ctx context.Context) Progress {
	ctx = s.context(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	pr := s.progress()
	log := s.logger(ctx)
	if pr.Clamped {
		log.WarnContext(ctx, "progress exceeds routine complexity",
			slog.Int("completed", pr.Completed), slog.Int("total", pr.Total))
	}
	for _, p := range pr.Stale {
		log.WarnContext(ctx, "progress path no longer resolves", slog.String("path", p.String()))
	}
	return pr
}

// Bookmark exports the resumable state of the run.
func (s *Session) Bookmark() Bookmark {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := Bookmark{
		RunID:     s.opts.RunID,
		RoutineID: s.main.ID,
		Cursor:    s.cursor.Clone(),
		Progress:  make([]Path, len(s.history)),
		Status:    s.status,
	}
	for i, p := range s.history {
		b.Progress[i] = p.Clone()
	}
	return b
}

func (s *Session) current() Step {
	step, _ := StepAt(s.root, s.cursor)
	return step
}

func (s *Session) progress() Progress {
	return MeasureProgress(s.root, s.history, s.main.Complexity)
}

func (s *Session) canAdvance() error {
	switch s.status {
	case schema.RunStatusAwaitingHydration:
		return s.blocked()
	case schema.RunStatusComplete:
		return schema.NewError(schema.ErrCodeInvalidTransition, "run is complete")
	}
	return nil
}

func (s *Session) blocked() error {
	err := schema.NewErrorf(schema.ErrCodeNavigationBlocked,
		"subroutine %s is awaiting hydration", s.pending.RoutineID)
	return err.WithDetails(map[string]any{"path": s.pending.Path.String(), "seq": s.pending.Seq})
}

// advance records the cursor and moves to the terminal step after from,
// completing the run when there is none.
func (s *Session) advance(ctx context.Context, from Path) (Step, error) {
	s.leave()
	next, ok := Next(s.root, from)
	if !ok {
		s.pending = nil
		s.transition(ctx, schema.RunStatusComplete)
		s.logger(ctx).InfoContext(ctx, "run completed",
			slog.Float64("percentage", s.progress().Percentage))
		return nil, nil
	}
	s.cursor = next
	s.settle(ctx)
	return s.current(), nil
}

// leave records the step under the cursor before the cursor moves. A subroutine
// whose routine is not loaded yet is left out of the history.
func (s *Session) leave() {
	if sub, ok := s.current().(*SubroutineStep); ok && sub.NeedsHydration() {
		return
	}
	s.history = record(s.history, s.cursor)
}

// settle derives the status for the step under the cursor, opening a hydration
// ticket when that step is an unloaded subroutine. A ticket already pending for
// that same step stays valid.
func (s *Session) settle(ctx context.Context) {
	step := s.current()
	if sub, ok := step.(*SubroutineStep); ok && sub.NeedsHydration() {
		if p := s.pending; p != nil && p.Path.Equal(s.cursor) && p.RoutineID == sub.RoutineID() {
			s.transition(ctx, schema.RunStatusAwaitingHydration)
		} else {
			s.seq++
			s.pending = &Ticket{Seq: s.seq, Path: s.cursor.Clone(), RoutineID: sub.RoutineID()}
			s.err = nil
			s.transition(ctx, schema.RunStatusAwaitingHydration)
			s.publish(ctx, schema.EventRunHydrationRequested, "", *s.pending)
		}
	} else {
		s.pending = nil
		s.err = nil
		s.transition(ctx, schema.RunStatusReady)
	}

	change := StepChange{Path: s.cursor.Clone(), Status: s.status, Percentage: s.progress().Percentage}
	if step != nil {
		change.Kind = step.Kind()
	}
	s.publish(ctx, schema.EventRunStepChanged, nodeOf(step), change)
}

func (s *Session) transition(ctx context.Context, to schema.RunStatus) {
	from := s.status
	if !isValidRunTransition(from, to) {
		s.logger(ctx).ErrorContext(ctx, "invalid run transition",
			slog.String("from", string(from)), slog.String("to", string(to)))
		return
	}
	s.status = to
	if evt := runEventType(to); evt != "" {
		s.publish(ctx, evt, "", s.progress())
	}
	for _, hook := range s.hooks {
		if err := hook(from, to); err != nil {
			s.logger(ctx).WarnContext(ctx, "transition hook failed", slog.String("error", err.Error()))
		}
	}
}

func (s *Session) checkTicket(ctx context.Context, t Ticket) error {
	if s.pending != nil && s.pending.Seq == t.Seq {
		return nil
	}
	s.logger(ctx).WarnContext(ctx, "discarding superseded hydration",
		slog.Uint64("seq", t.Seq), slog.String("path", t.Path.String()))
	s.publish(ctx, schema.EventRunHydrationSuperseded, "", t)
	return schema.NewErrorf(schema.ErrCodeHydrationSuperseded,
		"hydration ticket %d for routine %s is no longer pending", t.Seq, t.RoutineID)
}

func (s *Session) fail(ctx context.Context, t Ticket, cause error) error {
	msg := "fetch failed"
	if cause != nil {
		msg = cause.Error()
	}
	err := schema.NewErrorf(schema.ErrCodeHydrationFailed, "hydrate routine %s: %s", t.RoutineID, msg).
		WithCause(cause).
		WithDetails(map[string]any{"path": t.Path.String(), "seq": t.Seq})
	s.err = err
	s.logger(ctx).WarnContext(ctx, "hydration failed",
		slog.String("path", t.Path.String()), slog.String("error", msg))
	s.publish(ctx, schema.EventRunHydrationFailed, "", err)
	return err
}

// locate finds the subroutine leaf a ticket was issued for: at the ticket's
// path when it still holds that routine, else by searching the tree.
func (s *Session) locate(t Ticket) (Path, *SubroutineStep, bool) {
	match := func(step Step) bool {
		sub, ok := step.(*SubroutineStep)
		return ok && sub.RoutineID() == t.RoutineID && sub.NeedsHydration()
	}
	if step, ok := StepAt(s.root, t.Path); ok && match(step) {
		return t.Path, step.(*SubroutineStep), true
	}
	p, ok := FindPath(s.root, match)
	if !ok {
		return nil, nil, false
	}
	step, _ := StepAt(s.root, p)
	return p, step.(*SubroutineStep), true
}

// owner returns the path of the routine step enclosing p: the nearest proper
// ancestor that carries a routine ID.
func (s *Session) owner(p Path) Path {
	for i := len(p) - 1; i > 0; i-- {
		step, _ := StepAt(s.root, p[:i])
		if rl, ok := step.(*RoutineListStep); ok && rl.RoutineID != "" {
			return p[:i].Clone()
		}
	}
	return Path{}
}

// listFor finds the first step of the routine list built for nodeID among the
// direct children of the routine step at owner.
func (s *Session) listFor(owner Path, nodeID string) (Path, bool) {
	step, ok := StepAt(s.root, owner)
	if !ok {
		return nil, false
	}
	rl, ok := step.(*RoutineListStep)
	if !ok {
		return nil, false
	}
	for i, child := range rl.Steps {
		if c, ok := child.(*RoutineListStep); ok && c.NodeID == nodeID {
			return FirstLeaf(s.root, owner.Child(i))
		}
	}
	return nil, false
}

func (s *Session) context(ctx context.Context) context.Context {
	ctx = logging.WithRunID(ctx, s.opts.RunID)
	return logging.WithRoutineID(ctx, s.main.ID)
}

func (s *Session) publish(ctx context.Context, eventType, nodeID string, payload any) {
	if s.opts.Hub == nil {
		return
	}
	err := s.opts.Hub.Publish(ctx, streaming.StreamEvent{
		SessionID: s.opts.RunID,
		NodeID:    nodeID,
		EventType: eventType,
		Payload:   payload,
	})
	if err != nil {
		s.logger(ctx).WarnContext(ctx, "event publish failed",
			slog.String("event", eventType), slog.String("error", err.Error()))
	}
}

func (s *Session) logger(ctx context.Context) *slog.Logger {
	return logging.LogWith(ctx, s.opts.Logger.With(slog.String("component", "run")))
}

func nodeOf(step Step) string {
	switch v := step.(type) {
	case *RoutineListStep:
		return v.NodeID
	case *DecisionStep:
		return v.NodeID
	}
	return ""
}
