package mcp

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/routinekit/internal/streaming"
)

// RunNotifier pushes run events to the client driving the run.
type RunNotifier interface {
	Notify(ctx context.Context, runID string, payload map[string]any) error
}

// MCPNotifier implements RunNotifier using MCP server notifications.
type MCPNotifier struct {
	mcpServer *server.MCPServer
	sessions  *SessionRegistry
}

// NewMCPNotifier creates a notifier that pushes through the MCP server.
func NewMCPNotifier(mcpServer *server.MCPServer, sessions *SessionRegistry) *MCPNotifier {
	return &MCPNotifier{mcpServer: mcpServer, sessions: sessions}
}

// Notify sends a notification to the client session of the run.
// Best-effort: returns nil if no client is attached.
func (n *MCPNotifier) Notify(_ context.Context, runID string, payload map[string]any) error {
	sessionID, ok := n.sessions.SessionFor(runID)
	if !ok {
		return nil
	}
	err := n.mcpServer.SendNotificationToSpecificClient(sessionID, "notifications/message", payload)
	if errors.Is(err, server.ErrSessionNotFound) {
		// Session expired between lookup and send.
		n.sessions.Remove(sessionID)
		return nil
	}
	return err
}

// forwardRunEvents relays every hub event of runID to notifier until stop is
// called or the hub closes the subscription.
func forwardRunEvents(ctx context.Context, hub streaming.EventHub, notifier RunNotifier, runID string, logger *slog.Logger) (stop func(), err error) {
	ch, cancel, err := hub.Subscribe(ctx, streaming.EventFilter{SessionID: runID})
	if err != nil {
		return nil, err
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range ch {
			payload := map[string]any{
				"level":  "info",
				"logger": "routinekit.run",
				"data": map[string]any{
					"run_id":     e.SessionID,
					"event_type": e.EventType,
					"node_id":    e.NodeID,
					"payload":    e.Payload,
				},
			}
			if nerr := notifier.Notify(context.WithoutCancel(ctx), runID, payload); nerr != nil {
				logger.Warn("run notification failed", slog.String("run_id", runID), slog.String("error", nerr.Error()))
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}, nil
}
