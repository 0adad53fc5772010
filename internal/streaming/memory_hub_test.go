package streaming

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan StreamEvent) StreamEvent {
	t.Helper()
	select {
	case got, ok := <-ch:
		require.True(t, ok, "channel closed")
		return got
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return StreamEvent{}
}

func assertQuiet(t *testing.T, ch <-chan StreamEvent) {
	t.Helper()
	select {
	case evt, ok := <-ch:
		if ok {
			t.Fatalf("unexpected event: %+v", evt)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishSubscribe(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{})
	require.NoError(t, err)
	defer cancel()

	event := StreamEvent{
		SessionID: "editor-1",
		NodeID:    "n1",
		EventType: "graph.node_dropped",
		Payload:   map[string]any{"column": 1, "row": 0},
	}
	require.NoError(t, hub.Publish(ctx, event))

	got := receive(t, ch)
	assert.Equal(t, event.SessionID, got.SessionID)
	assert.Equal(t, event.NodeID, got.NodeID)
	assert.Equal(t, event.EventType, got.EventType)
}

func TestFilterBySession(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{SessionID: "run-1"})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, hub.Publish(ctx, StreamEvent{SessionID: "run-1", EventType: "run.step_changed"}))
	require.NoError(t, hub.Publish(ctx, StreamEvent{SessionID: "run-2", EventType: "run.step_changed"}))

	assert.Equal(t, "run-1", receive(t, ch).SessionID)
	assertQuiet(t, ch)
}

func TestFilterByEventTypeAndPrefix(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{
		EventTypes: []string{"graph.updated", "run.hydration_*"},
	})
	require.NoError(t, err)
	defer cancel()

	for _, typ := range []string{"graph.updated", "graph.seeded", "run.hydration_failed", "run.step_changed"} {
		require.NoError(t, hub.Publish(ctx, StreamEvent{SessionID: "s", EventType: typ}))
	}

	var received []string
	for range 2 {
		received = append(received, receive(t, ch).EventType)
	}
	assert.Equal(t, []string{"graph.updated", "run.hydration_failed"}, received)
	assertQuiet(t, ch)
}

func TestCancelClosesChannel(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{})
	require.NoError(t, err)

	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)

	require.NoError(t, hub.Publish(ctx, StreamEvent{SessionID: "s", EventType: "graph.updated"}))

	hub.mu.RLock()
	assert.Empty(t, hub.subs)
	hub.mu.RUnlock()
}

func TestBackpressureCountsDrops(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{})
	require.NoError(t, err)
	defer cancel()

	for range defaultChannelBuffer + 10 {
		require.NoError(t, hub.Publish(ctx, StreamEvent{SessionID: "s", EventType: "graph.node_dragging"}))
	}

	drained := 0
	for len(ch) > 0 {
		<-ch
		drained++
	}
	assert.Equal(t, defaultChannelBuffer, drained)
	assert.Equal(t, uint64(10), hub.Dropped())
}

func TestCloseEndsSubscriptions(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{})
	require.NoError(t, err)
	defer cancel()

	hub.Close()
	_, ok := <-ch
	assert.False(t, ok)

	late, lateCancel, err := hub.Subscribe(ctx, EventFilter{})
	require.NoError(t, err)
	defer lateCancel()
	_, ok = <-late
	assert.False(t, ok)
}

func TestConcurrentAccess(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()
	const goroutines = 20

	var wg sync.WaitGroup
	for range goroutines {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for range 50 {
				_ = hub.Publish(ctx, StreamEvent{SessionID: "s", EventType: "run.step_changed"})
			}
		}()
		go func() {
			defer wg.Done()
			ch, cancel, err := hub.Subscribe(ctx, EventFilter{SessionID: "s"})
			if err != nil {
				return
			}
			for range 5 {
				select {
				case <-ch:
				case <-time.After(10 * time.Millisecond):
				}
			}
			cancel()
		}()
	}
	wg.Wait()
}

func TestCancelledContext(t *testing.T) {
	hub := NewMemoryHub()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, hub.Publish(ctx, StreamEvent{SessionID: "s", EventType: "tick"}), context.Canceled)
	_, _, err := hub.Subscribe(ctx, EventFilter{})
	assert.ErrorIs(t, err, context.Canceled)
}
