package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/routinekit/internal/diagram"
	"github.com/rendis/routinekit/internal/graph"
	"github.com/rendis/routinekit/internal/logging"
	"github.com/rendis/routinekit/internal/run"
	"github.com/rendis/routinekit/internal/store"
	"github.com/rendis/routinekit/pkg/schema"
)

// layoutView is the wire form of a graph.Layout: node IDs per column instead of
// node pointers. The routine is included only when layout corrected it.
type layoutView struct {
	RoutineID string                   `json:"routine_id"`
	Changed   bool                     `json:"changed"`
	Columns   [][]string               `json:"columns"`
	OffGraph  []string                 `json:"off_graph,omitempty"`
	Status    schema.Status            `json:"status"`
	Routine   *schema.Routine          `json:"routine,omitempty"`
	Runnable  bool                     `json:"runnable"`
	EditorID  string                   `json:"editor_id,omitempty"`
	Dragging  string                   `json:"dragging,omitempty"`
	Issues    []schema.ValidationIssue `json:"issues,omitempty"`
}

// runView is the wire form of a run session.
type runView struct {
	RunID     string           `json:"run_id"`
	RoutineID string           `json:"routine_id"`
	Status    schema.RunStatus `json:"status"`
	Cursor    run.Path         `json:"cursor"`
	Step      run.Step         `json:"step,omitempty"`
	Progress  run.Progress     `json:"progress"`
	Pending   *run.Ticket      `json:"pending,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// handleLayout computes the layout of an inline or stored routine.
func (s *RoutineServer) handleLayout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := s.routineFromRequest(ctx, req)
	if err != nil {
		return errorResult("routine", err), nil
	}
	if r == nil {
		return mcp.NewToolResultError("one of routine or routine_id is required"), nil
	}

	view := newLayoutView(graph.ComputeLayout(r))
	if s.validator != nil {
		if verr := s.validator.ValidateRoutine(ctx, r); verr != nil {
			view.Issues = issuesOf(verr)
		}
	}
	return marshalResult(view)
}

// handleEdit opens, edits and closes editor sessions.
func (s *RoutineServer) handleEdit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	op, err := req.RequireString("op")
	if err != nil {
		return mcp.NewToolResultError("op is required"), nil
	}

	switch op {
	case "open":
		return s.openEditor(ctx, req)
	case "close":
		editorID := req.GetString("editor_id", "")
		s.mu.Lock()
		_, ok := s.editors[editorID]
		delete(s.editors, editorID)
		s.mu.Unlock()
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("editor %q not found", editorID)), nil
		}
		return marshalResult(map[string]any{"editor_id": editorID, "closed": true})
	}

	editorID, err := req.RequireString("editor_id")
	if err != nil {
		return mcp.NewToolResultError("editor_id is required"), nil
	}
	e, ok := s.editor(editorID)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("editor %q not found", editorID)), nil
	}

	operation, err := editOperation(op, req)
	if err != nil {
		return errorResult("edit", err), nil
	}
	ctx = logging.WithRoutineID(ctx, e.Routine().ID)
	if _, err := e.Apply(ctx, operation); err != nil {
		return errorResult(op, err), nil
	}
	return marshalResult(editorView(editorID, e))
}

func (s *RoutineServer) openEditor(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := s.routineFromRequest(ctx, req)
	if err != nil {
		return errorResult("routine", err), nil
	}

	editorID := uuid.NewString()
	e := graph.NewEditor(ctx, r, graph.EditorOptions{
		SessionID: editorID,
		Hub:       s.hub,
		Logger:    s.logger,
	})

	s.mu.Lock()
	s.editors[editorID] = e
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "editor opened", slog.String("editor_id", editorID), slog.String("routine_id", e.Routine().ID))
	return marshalResult(editorView(editorID, e))
}

// editOperation maps a tool op onto a graph operation.
func editOperation(op string, req mcp.CallToolRequest) (graph.Operation, error) {
	switch op {
	case "remove", "unlink", "drop":
		nodeID := req.GetString("node_id", "")
		if nodeID == "" {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "node_id is required for %s", op)
		}
		switch op {
		case "remove":
			return graph.Remove(nodeID), nil
		case "unlink":
			return graph.Unlink(nodeID), nil
		}
		return graph.Drop(nodeID, dropTarget(req)), nil
	case "insert", "branch":
		linkID := req.GetString("link_id", "")
		if linkID == "" {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "link_id is required for %s", op)
		}
		node, err := nodeFromRequest(req)
		if err != nil {
			return nil, err
		}
		if op == "insert" {
			return graph.InsertOnLink(linkID, node), nil
		}
		return graph.Branch(linkID, node), nil
	case "cleanup":
		return graph.Clean(), nil
	default:
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "unknown edit op %q", op)
	}
}

// dropTarget reads the drop cell. Without a column the node is unlinked.
func dropTarget(req mcp.CallToolRequest) *graph.Cell {
	if _, ok := req.GetArguments()["column"]; !ok {
		return nil
	}
	return &graph.Cell{Column: req.GetInt("column", 0), Row: req.GetInt("row", 0)}
}

// handleDefine validates and stores a routine.
func (s *RoutineServer) handleDefine(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.store == nil {
		return mcp.NewToolResultError("no routine store configured"), nil
	}

	var r *schema.Routine
	if editorID := req.GetString("editor_id", ""); editorID != "" {
		e, ok := s.editor(editorID)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("editor %q not found", editorID)), nil
		}
		r = e.Routine()
	} else {
		parsed, err := s.inlineRoutine(ctx, req)
		if err != nil {
			return errorResult("routine", err), nil
		}
		r = parsed
	}
	if r == nil {
		return mcp.NewToolResultError("one of routine or editor_id is required"), nil
	}

	if s.validator != nil {
		if err := s.validator.ValidateRoutine(ctx, r); err != nil {
			return errorResult("validation failed", err), nil
		}
	}
	if err := s.store.SaveRoutine(ctx, r); err != nil {
		return errorResult("failed to store routine", err), nil
	}
	rec, err := s.store.GetRoutine(ctx, r.ID)
	if err != nil {
		return errorResult("failed to read back routine", err), nil
	}

	return marshalResult(map[string]any{
		"routine_id": r.ID,
		"title":      rec.Title,
		"version":    rec.Version,
	})
}

// handleRun drives run sessions.
func (s *RoutineServer) handleRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	action, err := req.RequireString("action")
	if err != nil {
		return mcp.NewToolResultError("action is required"), nil
	}

	switch action {
	case "start":
		return s.startRun(ctx, req)
	case "resume":
		return s.resumeRun(ctx, req)
	}

	runID, err := req.RequireString("run_id")
	if err != nil {
		return mcp.NewToolResultError("run_id is required"), nil
	}
	sess, ok := s.session(runID)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("run %q is not active; resume it first", runID)), nil
	}
	ctx = logging.WithRunID(ctx, runID)

	switch action {
	case "next":
		_, err = sess.Next(ctx)
	case "previous":
		_, err = sess.Previous(ctx)
	case "jump":
		p, perr := run.ParsePath(req.GetString("path", ""))
		if perr != nil {
			return errorResult("path", perr), nil
		}
		_, err = sess.Jump(ctx, p)
	case "choose":
		linkID, lerr := req.RequireString("link_id")
		if lerr != nil {
			return mcp.NewToolResultError("link_id is required"), nil
		}
		_, err = sess.Choose(ctx, linkID)
	case "options":
		return s.runOptions(ctx, sess, mcp.ParseStringMap(req, "data", nil))
	case "hydrate":
		if s.store == nil {
			return mcp.NewToolResultError("no routine store configured"), nil
		}
		_, err = sess.Hydrate(ctx, s.store)
	case "status":
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown run action: %s", action)), nil
	}
	if err != nil {
		return errorResult(action, err), nil
	}

	s.saveBookmark(ctx, sess)
	return marshalResult(newRunView(ctx, sess))
}

func (s *RoutineServer) startRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.store == nil {
		return mcp.NewToolResultError("no routine store configured"), nil
	}
	routineID, err := req.RequireString("routine_id")
	if err != nil {
		return mcp.NewToolResultError("routine_id is required"), nil
	}
	r, err := s.store.FetchRoutine(ctx, routineID)
	if err != nil {
		return errorResult("routine lookup failed", err), nil
	}

	runID := uuid.NewString()
	s.attach(ctx, runID)
	sess, err := run.NewSession(ctx, r, s.sessionOptions(runID, s.language))
	if err != nil {
		s.detach(runID)
		return errorResult("run start failed", err), nil
	}
	return s.adopt(ctx, sess)
}

func (s *RoutineServer) resumeRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.store == nil {
		return mcp.NewToolResultError("no routine store configured"), nil
	}
	runID, err := req.RequireString("run_id")
	if err != nil {
		return mcp.NewToolResultError("run_id is required"), nil
	}
	if sess, ok := s.session(runID); ok {
		s.captureSession(ctx, runID)
		return marshalResult(newRunView(ctx, sess))
	}

	rec, err := s.store.GetBookmark(ctx, runID)
	if err != nil {
		return errorResult("run lookup failed", err), nil
	}
	r, err := s.store.FetchRoutine(ctx, rec.RoutineID)
	if err != nil {
		return errorResult("routine lookup failed", err), nil
	}

	s.attach(ctx, runID)
	sess, err := run.Restore(ctx, r, rec.Bookmark, s.sessionOptions(runID, rec.Language))
	if err != nil {
		s.detach(runID)
		return errorResult("run resume failed", err), nil
	}
	return s.adopt(ctx, sess)
}

func (s *RoutineServer) adopt(ctx context.Context, sess *run.Session) (*mcp.CallToolResult, error) {
	s.mu.Lock()
	s.runs[sess.RunID()] = sess
	s.mu.Unlock()

	ctx = logging.WithRunID(ctx, sess.RunID())
	s.saveBookmark(ctx, sess)
	return marshalResult(newRunView(ctx, sess))
}

// runOptions lists the links of the current decision whose conditions hold for data.
func (s *RoutineServer) runOptions(ctx context.Context, sess *run.Session, data map[string]any) (*mcp.CallToolResult, error) {
	d, ok := sess.Current().(*run.DecisionStep)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("step at %q is not a decision", sess.Cursor().String())), nil
	}
	if s.conditions == nil {
		return marshalResult(map[string]any{"node_id": d.NodeID, "links": d.Links})
	}
	links, err := d.AvailableLinks(ctx, s.conditions, data)
	if err != nil {
		return errorResult("condition evaluation failed", err), nil
	}
	return marshalResult(map[string]any{"node_id": d.NodeID, "links": links})
}

// handleDiagram renders an editor, a run or a stored routine.
func (s *RoutineServer) handleDiagram(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	format, err := req.RequireString("format")
	if err != nil {
		return mcp.NewToolResultError("format is required"), nil
	}
	if format != "ascii" && format != "mermaid" && format != "image" {
		return mcp.NewToolResultError("format must be ascii, mermaid, or image"), nil
	}

	opts := diagram.Options{Language: s.language}
	var layout *graph.Layout
	switch {
	case req.GetString("editor_id", "") != "":
		e, ok := s.editor(req.GetString("editor_id", ""))
		if !ok {
			return mcp.NewToolResultError("editor not found"), nil
		}
		layout = e.Layout()
	case req.GetString("run_id", "") != "":
		sess, ok := s.session(req.GetString("run_id", ""))
		if !ok {
			return mcp.NewToolResultError("run is not active"), nil
		}
		layout = graph.ComputeLayout(sess.Routine())
		opts.Run = diagram.OverlayFromRun(sess.Tree(), sess.Cursor(), sess.History(), sess.Status())
	case req.GetString("routine_id", "") != "":
		if s.store == nil {
			return mcp.NewToolResultError("no routine store configured"), nil
		}
		r, ferr := s.store.FetchRoutine(ctx, req.GetString("routine_id", ""))
		if ferr != nil {
			return errorResult("routine lookup failed", ferr), nil
		}
		layout = graph.ComputeLayout(r)
	default:
		return mcp.NewToolResultError("one of editor_id, run_id or routine_id is required"), nil
	}

	model := diagram.Build(layout, opts)
	switch format {
	case "ascii":
		return mcp.NewToolResultText(diagram.RenderASCII(model)), nil
	case "mermaid":
		return mcp.NewToolResultText(diagram.RenderMermaid(model)), nil
	default:
		png, imgErr := diagram.RenderImage(ctx, model)
		if imgErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("image render failed: %v", imgErr)), nil
		}
		return mcp.NewToolResultText(base64.StdEncoding.EncodeToString(png)), nil
	}
}

// handleQuery lists routines, runs, events, or replays a run trail.
func (s *RoutineServer) handleQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resource, err := req.RequireString("resource")
	if err != nil {
		return mcp.NewToolResultError("resource is required"), nil
	}
	if s.store == nil {
		return mcp.NewToolResultError("no routine store configured"), nil
	}

	filter := mcp.ParseStringMap(req, "filter", nil)

	switch resource {
	case "routines":
		return s.queryRoutines(ctx, filter)
	case "runs":
		return s.queryRuns(ctx, filter)
	case "events":
		return s.queryEvents(ctx, filter)
	case "trail":
		runID, _ := filter["run_id"].(string)
		if runID == "" {
			return mcp.NewToolResultError("trail query requires 'run_id' in filter"), nil
		}
		trail, rerr := s.events.Replay(ctx, runID)
		if rerr != nil {
			return errorResult("replay failed", rerr), nil
		}
		return marshalResult(map[string]any{"trail": trail})
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown resource type: %s", resource)), nil
	}
}

// --- Query helpers ---

func (s *RoutineServer) queryRoutines(ctx context.Context, filter map[string]any) (*mcp.CallToolResult, error) {
	rf := store.RoutineFilter{
		Limit:  extractInt(filter, "limit", 50),
		Offset: extractInt(filter, "offset", 0),
	}
	if prefix, ok := filter["title_prefix"].(string); ok {
		rf.TitlePrefix = prefix
	}

	routines, err := s.store.ListRoutines(ctx, rf)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}
	return marshalResult(map[string]any{"routines": routines})
}

func (s *RoutineServer) queryRuns(ctx context.Context, filter map[string]any) (*mcp.CallToolResult, error) {
	rf := store.RunFilter{
		Limit: extractInt(filter, "limit", 50),
	}
	if routineID, ok := filter["routine_id"].(string); ok {
		rf.RoutineID = routineID
	}
	if status, ok := filter["status"].(string); ok {
		rf.Status = schema.RunStatus(status)
	}

	runs, err := s.store.ListRuns(ctx, rf)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}
	return marshalResult(map[string]any{"runs": runs})
}

func (s *RoutineServer) queryEvents(ctx context.Context, filter map[string]any) (*mcp.CallToolResult, error) {
	ef := store.EventFilter{
		Limit: extractInt(filter, "limit", 100),
	}
	if runID, ok := filter["run_id"].(string); ok {
		ef.SessionID = runID
	}
	if since, ok := filter["since"].(string); ok && since != "" {
		if t, err := time.Parse(time.RFC3339, since); err == nil {
			ef.Since = &t
		}
	}

	if eventType, ok := filter["event_type"].(string); ok && eventType != "" {
		events, err := s.events.GetEventsByType(ctx, eventType, ef)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
		}
		return marshalResult(map[string]any{"events": events})
	}

	// Without an event type the log is read per run, after a sequence number.
	if ef.SessionID == "" {
		return mcp.NewToolResultError("event query requires either 'event_type' or 'run_id' in filter"), nil
	}
	events, err := s.events.GetEvents(ctx, ef.SessionID, int64(extractInt(filter, "after", 0)))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}
	return marshalResult(map[string]any{"events": events})
}

// --- Internal helpers ---

// routineFromRequest reads an inline routine, falling back to a stored one.
// Both absent yields nil.
func (s *RoutineServer) routineFromRequest(ctx context.Context, req mcp.CallToolRequest) (*schema.Routine, error) {
	r, err := s.inlineRoutine(ctx, req)
	if err != nil || r != nil {
		return r, err
	}
	routineID := req.GetString("routine_id", "")
	if routineID == "" {
		return nil, nil
	}
	if s.store == nil {
		return nil, schema.NewError(schema.ErrCodeStore, "no routine store configured")
	}
	return s.store.FetchRoutine(ctx, routineID)
}

// inlineRoutine decodes the routine argument after checking it against the
// routine document schema.
func (s *RoutineServer) inlineRoutine(ctx context.Context, req mcp.CallToolRequest) (*schema.Routine, error) {
	doc := mcp.ParseStringMap(req, "routine", nil)
	if doc == nil {
		return nil, nil
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "routine is not a JSON object").WithCause(err)
	}
	if s.validator != nil {
		if err := s.validator.ValidateDocument(ctx, raw); err != nil {
			return nil, err
		}
	}
	var r schema.Routine
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "routine does not decode").WithCause(err)
	}
	return &r, nil
}

func nodeFromRequest(req mcp.CallToolRequest) (schema.Node, error) {
	doc := mcp.ParseStringMap(req, "node", nil)
	if doc == nil {
		return schema.Node{}, schema.NewError(schema.ErrCodeValidation, "node is required")
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return schema.Node{}, schema.NewError(schema.ErrCodeValidation, "node is not a JSON object").WithCause(err)
	}
	var n schema.Node
	if err := json.Unmarshal(raw, &n); err != nil {
		return schema.Node{}, schema.NewError(schema.ErrCodeValidation, "node does not decode").WithCause(err)
	}
	return n, nil
}

func (s *RoutineServer) editor(id string) (*graph.Editor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.editors[id]
	return e, ok
}

func (s *RoutineServer) session(runID string) (*run.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.runs[runID]
	return sess, ok
}

func (s *RoutineServer) sessionOptions(runID, language string) run.Options {
	return run.Options{
		RunID:    runID,
		Language: language,
		Hub:      s.hub,
		Logger:   s.logger,
		Retry:    s.retry,
	}
}

// attach binds runID to the calling client and starts relaying its events.
// It must run before the session publishes run.started.
func (s *RoutineServer) attach(ctx context.Context, runID string) {
	s.captureSession(ctx, runID)
	stop, err := forwardRunEvents(ctx, s.hub, s.notifier, runID, s.logger)
	if err != nil {
		s.logger.WarnContext(ctx, "run event forwarding unavailable", slog.String("run_id", runID), slog.String("error", err.Error()))
		return
	}
	s.mu.Lock()
	if prev, ok := s.forwards[runID]; ok {
		defer prev()
	}
	s.forwards[runID] = stop
	s.mu.Unlock()
}

func (s *RoutineServer) detach(runID string) {
	s.mu.Lock()
	stop, ok := s.forwards[runID]
	delete(s.forwards, runID)
	s.mu.Unlock()
	if ok {
		stop()
	}
	s.sessions.Forget(runID)
}

func (s *RoutineServer) saveBookmark(ctx context.Context, sess *run.Session) {
	if s.store == nil {
		return
	}
	if err := s.store.SaveBookmark(ctx, sess.Bookmark(), s.language); err != nil {
		logging.LogWith(ctx, s.logger).WarnContext(ctx, "bookmark not saved", slog.String("error", err.Error()))
	}
}

// captureSession maps the run ID to the current MCP session for notifications.
func (s *RoutineServer) captureSession(ctx context.Context, runID string) {
	if session := server.ClientSessionFromContext(ctx); session != nil {
		s.sessions.Register(runID, session.SessionID())
	}
}

func newLayoutView(l *graph.Layout) *layoutView {
	view := &layoutView{
		Changed:  l.Changed,
		Status:   l.Status,
		Runnable: l.Status.Level == schema.StatusValid,
		Columns:  make([][]string, 0, len(l.Columns)),
	}
	if l.Routine != nil {
		view.RoutineID = l.Routine.ID
		if l.Changed {
			view.Routine = l.Routine
		}
	}
	for _, col := range l.Columns {
		if len(col) == 0 {
			continue
		}
		ids := make([]string, len(col))
		for i, n := range col {
			ids[i] = n.ID
		}
		view.Columns = append(view.Columns, ids)
	}
	for _, n := range l.OffGraph {
		view.OffGraph = append(view.OffGraph, n.ID)
	}
	return view
}

func editorView(editorID string, e *graph.Editor) *layoutView {
	view := newLayoutView(e.Layout())
	view.EditorID = editorID
	view.Routine = e.Routine()
	view.Runnable = e.Runnable()
	view.Dragging = e.Dragging()
	return view
}

func newRunView(ctx context.Context, sess *run.Session) *runView {
	b := sess.Bookmark()
	view := &runView{
		RunID:     b.RunID,
		RoutineID: b.RoutineID,
		Status:    b.Status,
		Cursor:    b.Cursor,
		Step:      sess.Current(),
		Progress:  sess.Progress(ctx),
		Pending:   sess.Pending(),
	}
	if err := sess.Err(); err != nil {
		view.Error = err.Error()
	}
	return view
}

// issuesOf flattens a validation error into its issues.
func issuesOf(err error) []schema.ValidationIssue {
	var gErr *schema.GraphError
	if errors.As(err, &gErr) {
		errs, _ := gErr.Details["errors"].([]schema.ValidationIssue)
		warns, _ := gErr.Details["warnings"].([]schema.ValidationIssue)
		if len(errs)+len(warns) > 0 {
			return append(append([]schema.ValidationIssue{}, errs...), warns...)
		}
	}
	return []schema.ValidationIssue{{Path: "/", Code: schema.ErrCodeValidation, Message: err.Error(), Severity: schema.SeverityError}}
}

// errorResult reports err as a tool error, prefixed with what failed.
func errorResult(prefix string, err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", prefix, err))
}

// extractInt safely extracts an integer from a filter map.
func extractInt(filter map[string]any, key string, defaultVal int) int {
	if filter == nil {
		return defaultVal
	}
	v, ok := filter[key]
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case float64:
		return int(val)
	case int:
		return val
	case string:
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
