package mcp

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/routinekit/internal/expressions"
	"github.com/rendis/routinekit/internal/graph"
	"github.com/rendis/routinekit/internal/run"
	"github.com/rendis/routinekit/internal/store"
	"github.com/rendis/routinekit/internal/streaming"
	"github.com/rendis/routinekit/internal/validation"
	"github.com/rendis/routinekit/pkg/schema"
)

// RoutineServerDeps holds the dependencies for creating a RoutineServer.
type RoutineServerDeps struct {
	Store      store.Store // optional; store-backed tools fail without it
	Hub        streaming.EventHub
	Validator  validation.Validator
	Conditions *expressions.Registry
	Language   string
	Retry      *schema.RetryPolicy
	Logger     *slog.Logger
}

// RoutineServer wraps an MCP server with routine editing and run tool handlers.
type RoutineServer struct {
	store      store.Store
	events     *store.EventLog
	hub        streaming.EventHub
	validator  validation.Validator
	conditions *expressions.Registry
	language   string
	retry      *schema.RetryPolicy
	logger     *slog.Logger
	mcpServer  *server.MCPServer
	sessions   *SessionRegistry
	notifier   *MCPNotifier

	mu       sync.Mutex
	editors  map[string]*graph.Editor
	runs     map[string]*run.Session
	forwards map[string]func()
}

// NewRoutineServer creates a new RoutineServer with all tools registered.
func NewRoutineServer(deps RoutineServerDeps) *RoutineServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	hub := deps.Hub
	if hub == nil {
		hub = streaming.NewMemoryHub()
	}

	s := &RoutineServer{
		store:      deps.Store,
		hub:        hub,
		validator:  deps.Validator,
		conditions: deps.Conditions,
		language:   deps.Language,
		retry:      deps.Retry,
		logger:     logger.With(slog.String("component", "mcp")),
		sessions:   NewSessionRegistry(),
		editors:    make(map[string]*graph.Editor),
		runs:       make(map[string]*run.Session),
		forwards:   make(map[string]func()),
	}
	if deps.Store != nil {
		s.events = store.NewEventLog(deps.Store, logger)
	}

	mcpSrv := server.NewMCPServer(
		"routinekit",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Routinekit edits and runs routine graphs. Use routinekit.layout to check a graph, routinekit.edit to change it in an editor session, routinekit.define to save it, routinekit.run to walk through it step by step, routinekit.diagram to draw it, and routinekit.query to list routines, runs and events."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	s.notifier = NewMCPNotifier(mcpSrv, s.sessions)
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
// Run events are recorded in the store's event log while serving.
func (s *RoutineServer) Serve(ctx context.Context) error {
	defer s.Close()
	if s.events != nil {
		stop, err := s.events.Attach(ctx, s.hub, streaming.EventFilter{EventTypes: []string{"run.*"}})
		if err != nil {
			return err
		}
		defer stop()
	}
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *RoutineServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// Close stops every run event forwarder.
func (s *RoutineServer) Close() {
	s.mu.Lock()
	forwards := s.forwards
	s.forwards = make(map[string]func())
	s.mu.Unlock()

	for _, stop := range forwards {
		stop()
	}
}

// tools returns the registered MCP tools as ServerTool entries.
func (s *RoutineServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: layoutTool(), Handler: s.handleLayout},
		{Tool: editTool(), Handler: s.handleEdit},
		{Tool: defineTool(), Handler: s.handleDefine},
		{Tool: runTool(), Handler: s.handleRun},
		{Tool: diagramTool(), Handler: s.handleDiagram},
		{Tool: queryTool(), Handler: s.handleQuery},
	}
}

// --- Tool definitions ---

func layoutTool() mcp.Tool {
	return mcp.NewTool("routinekit.layout",
		mcp.WithDescription("Compute the column layout and structural status of a routine graph"),
		mcp.WithObject("routine", mcp.Description("Routine document (nodes, nodeLinks, translations)")),
		mcp.WithString("routine_id", mcp.Description("ID of a stored routine (used when routine is absent)")),
	)
}

func editTool() mcp.Tool {
	return mcp.NewTool("routinekit.edit",
		mcp.WithDescription("Apply an edit to a routine in an editor session"),
		mcp.WithString("op", mcp.Required(),
			mcp.Enum("open", "remove", "unlink", "insert", "branch", "drop", "cleanup", "close"),
			mcp.Description("Edit operation"),
		),
		mcp.WithString("editor_id", mcp.Description("Editor session ID (returned by op=open)")),
		mcp.WithObject("routine", mcp.Description("Routine document to open (op=open)")),
		mcp.WithString("routine_id", mcp.Description("Stored routine to open (op=open); empty opens a fresh Start → End graph")),
		mcp.WithString("node_id", mcp.Description("Target node (remove, unlink, drop)")),
		mcp.WithString("link_id", mcp.Description("Target link (insert, branch)")),
		mcp.WithObject("node", mcp.Description("Node to insert (insert, branch)")),
		mcp.WithNumber("column", mcp.Description("Drop target column (drop); omit to unlink the node")),
		mcp.WithNumber("row", mcp.Description("Drop target row (drop)")),
	)
}

func defineTool() mcp.Tool {
	return mcp.NewTool("routinekit.define",
		mcp.WithDescription("Validate and store a routine"),
		mcp.WithObject("routine", mcp.Description("Routine document to store")),
		mcp.WithString("editor_id", mcp.Description("Store the routine of this editor session instead")),
	)
}

func runTool() mcp.Tool {
	return mcp.NewTool("routinekit.run",
		mcp.WithDescription("Start, resume or move through a run of a stored routine"),
		mcp.WithString("action", mcp.Required(),
			mcp.Enum("start", "resume", "next", "previous", "jump", "choose", "options", "hydrate", "status"),
			mcp.Description("Run action"),
		),
		mcp.WithString("run_id", mcp.Description("Run ID (required for every action but start)")),
		mcp.WithString("routine_id", mcp.Description("Routine to run (start)")),
		mcp.WithString("path", mcp.Description("Dotted step path, e.g. 0.1.2 (jump)")),
		mcp.WithString("link_id", mcp.Description("Decision link to follow (choose)")),
		mcp.WithObject("data", mcp.Description("Answers used to evaluate link conditions (options)")),
	)
}

func diagramTool() mcp.Tool {
	return mcp.NewTool("routinekit.diagram",
		mcp.WithDescription("Generate a visual diagram of a routine. Returns ASCII art, Mermaid flowchart syntax, or base64-encoded PNG image"),
		mcp.WithString("format", mcp.Required(),
			mcp.Enum("ascii", "mermaid", "image"),
			mcp.Description("Output format: ascii (text), mermaid (flowchart syntax), or image (base64 PNG)"),
		),
		mcp.WithString("routine_id", mcp.Description("Stored routine to draw")),
		mcp.WithString("editor_id", mcp.Description("Editor session to draw")),
		mcp.WithString("run_id", mcp.Description("Run to draw, with its progress overlay")),
	)
}

func queryTool() mcp.Tool {
	return mcp.NewTool("routinekit.query",
		mcp.WithDescription("Query routines, runs, events, or the replayed trail of a run"),
		mcp.WithString("resource", mcp.Required(),
			mcp.Enum("routines", "runs", "events", "trail"),
			mcp.Description("Type of resource to query"),
		),
		mcp.WithObject("filter", mcp.Description("Filter criteria (title_prefix, routine_id, status, run_id, event_type, since, limit, offset)")),
	)
}
