package realtime

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, cancel
}

func waitForClients(t *testing.T, hub *Hub, room string, n int) {
	t.Helper()
	assert.Eventually(t, func() bool { return hub.ClientCount(room) == n }, time.Second, 5*time.Millisecond)
}

func TestBroadcastReachesOnlyRoom(t *testing.T) {
	hub, _ := startHub(t)

	current := NewClient(hub, nil, "current")
	other := NewClient(hub, nil, "tournament_1")
	hub.Register <- current
	hub.Register <- other
	waitForClients(t, hub, "current", 1)
	waitForClients(t, hub, "tournament_1", 1)

	hub.BroadcastToRoom("current", map[string]string{"type": "TOURNAMENT_UPDATED"})

	select {
	case data := <-current.Send:
		var msg map[string]string
		require.NoError(t, json.Unmarshal(data, &msg))
		assert.Equal(t, "TOURNAMENT_UPDATED", msg["type"])
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
	assert.Empty(t, other.Send)
}

func TestBroadcastDropsWhenBufferFull(t *testing.T) {
	hub, _ := startHub(t)

	client := NewClient(hub, nil, "current")
	hub.Register <- client
	waitForClients(t, hub, "current", 1)

	for i := 0; i < sendBuffer+5; i++ {
		hub.BroadcastToRoom("current", i)
	}
	assert.Len(t, client.Send, sendBuffer)
}

func TestUnregisterClosesClient(t *testing.T) {
	hub, _ := startHub(t)

	client := NewClient(hub, nil, "current")
	hub.Register <- client
	waitForClients(t, hub, "current", 1)

	hub.Unregister <- client
	waitForClients(t, hub, "current", 0)

	_, open := <-client.Send
	assert.False(t, open)

	hub.BroadcastToRoom("current", "ignored")
}

func TestRunClosesClientsOnCancel(t *testing.T) {
	hub, cancel := startHub(t)

	client := NewClient(hub, nil, "current")
	hub.Register <- client
	waitForClients(t, hub, "current", 1)

	cancel()
	waitForClients(t, hub, "current", 0)
	_, open := <-client.Send
	assert.False(t, open)
}

func TestLeaveAfterStopDoesNotBlock(t *testing.T) {
	hub, cancel := startHub(t)

	client := NewClient(hub, nil, "current")
	hub.Register <- client
	waitForClients(t, hub, "current", 1)

	cancel()
	select {
	case <-hub.Done():
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}

	left := make(chan struct{})
	go func() {
		client.leave()
		close(left)
	}()
	select {
	case <-left:
	case <-time.After(time.Second):
		t.Fatal("leave blocked on a stopped hub")
	}
}
