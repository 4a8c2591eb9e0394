package hub

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, c Client) Event {
	t.Helper()
	select {
	case raw, ok := <-c:
		require.True(t, ok, "client channel closed")
		var e Event
		require.NoError(t, json.Unmarshal(raw, &e))
		return e
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return Event{}
	}
}

func TestBroadcastReachesAllSubscribers(t *testing.T) {
	h := NewHub()

	a := h.Subscribe("room:1")
	b := h.Subscribe("room:1")
	other := h.Subscribe("room:2")

	h.Broadcast("room:1", Event{Type: "ping", Data: "hello"})

	assert.Equal(t, "ping", receive(t, a).Type)
	assert.Equal(t, "ping", receive(t, b).Type)

	select {
	case <-other:
		t.Fatal("event leaked across channels")
	default:
	}
}

func TestUnsubscribeClosesClient(t *testing.T) {
	h := NewHub()

	c := h.Subscribe("room:1")
	h.Unsubscribe("room:1", c)

	_, ok := <-c
	assert.False(t, ok, "unsubscribed client channel is closed")
	assert.Zero(t, h.Subscribers("room:1"))

	// A second unsubscribe of the same client is harmless.
	h.Unsubscribe("room:1", c)
}

func TestBroadcastNeverBlocksOnSlowClient(t *testing.T) {
	h := NewHub()

	slow := h.Subscribe("game:1")

	done := make(chan struct{})
	go func() {
		for i := 0; i < clientBuffer*2; i++ {
			h.Broadcast("game:1", Event{Type: "tick", Data: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a full client buffer")
	}

	// The slow client kept the first clientBuffer events; the rest were
	// dropped for it to recover from via snapshot.
	assert.Len(t, slow, clientBuffer)
}

func TestSubscribers(t *testing.T) {
	h := NewHub()

	assert.Zero(t, h.Subscribers("room:9"))
	a := h.Subscribe("room:9")
	h.Subscribe("room:9")
	assert.Equal(t, 2, h.Subscribers("room:9"))

	h.Unsubscribe("room:9", a)
	assert.Equal(t, 1, h.Subscribers("room:9"))
}
