package server

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/gameportal/internal/chat"
	"github.com/Tyrowin/gameportal/internal/logging"
)

func TestDetachWaitsForRoomInFullQueue(t *testing.T) {
	engine := chat.NewEngine(chat.Config{QueueSize: 1})
	c := NewClient("c1", nil, engine, "127.0.0.1:1", 0, 4, logging.NewTestLogger(io.Discard))

	engine.Dispatch(chat.Event{Kind: chat.EventConnect, ConnID: c.ID(), Conn: c})
	engine.Dispatch(chat.Event{Kind: chat.EventJoin, ConnID: c.ID(), Join: chat.JoinPayload{Username: "alice"}})
	require.Len(t, engine.Participants(), 1)

	require.NoError(t, engine.Submit(context.Background(), chat.Event{Kind: chat.EventTypingStop, ConnID: "other"}))

	detached := make(chan struct{})
	go func() {
		c.detach()
		close(detached)
	}()

	select {
	case <-detached:
		t.Fatal("detach returned while the queue was still full")
	case <-time.After(submitTimeout + 200*time.Millisecond):
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		<-engine.Done()
	})
	go engine.Run(ctx)

	select {
	case <-detached:
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect was never queued")
	}
	require.Eventually(t, func() bool {
		return len(engine.Participants()) == 0 && engine.ConnectionCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDetachAfterEngineStopClosesClient(t *testing.T) {
	engine := chat.NewEngine(chat.Config{QueueSize: 1})
	ctx, cancel := context.WithCancel(context.Background())
	go engine.Run(ctx)
	cancel()
	<-engine.Done()

	c := NewClient("c1", nil, engine, "127.0.0.1:1", 0, 1, logging.NewTestLogger(io.Discard))
	c.detach()
	assert.False(t, c.Send([]byte("late")))
}
