package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/quocanhngo/reelsync/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(hub *Hub, userID uuid.UUID, deviceID string) *Client {
	return &Client{hub: hub, send: make(chan []byte, 4), UserID: userID, SessionID: uuid.New(), DeviceID: deviceID}
}

func TestHub_SendToUserSkipsOriginDevice(t *testing.T) {
	hub := NewHub(nil, zerolog.Nop())
	userID := uuid.New()

	tv := testClient(hub, userID, "tv")
	laptop := testClient(hub, userID, "laptop")
	stranger := testClient(hub, uuid.New(), "other")
	hub.addClient(tv)
	hub.addClient(laptop)
	hub.addClient(stranger)

	hub.SendToUser(userID, &model.WSEvent{Type: model.WSEventProgressUpdated, Payload: model.ProgressUpdatedEvent{TitleID: 3}}, laptop.SessionID)

	require.Len(t, tv.send, 1)
	assert.Empty(t, laptop.send)
	assert.Empty(t, stranger.send)

	var got model.WSEvent
	require.NoError(t, json.Unmarshal(<-tv.send, &got))
	assert.Equal(t, model.WSEventProgressUpdated, got.Type)
}

func TestHub_FullBufferDropsEvent(t *testing.T) {
	hub := NewHub(nil, zerolog.Nop())
	userID := uuid.New()
	c := testClient(hub, userID, "tv")
	hub.addClient(c)

	for i := 0; i < cap(c.send)+2; i++ {
		hub.SendToUser(userID, &model.WSEvent{Type: model.WSEventSessionRevoked}, uuid.Nil)
	}
	assert.Len(t, c.send, cap(c.send))
}

func TestHub_RemoveClient(t *testing.T) {
	hub := NewHub(nil, zerolog.Nop())
	userID := uuid.New()
	c := testClient(hub, userID, "tv")

	hub.addClient(c)
	assert.Len(t, hub.clients[userID], 1)

	hub.removeClient(c)
	assert.NotContains(t, hub.clients, userID)

	// a second unregister must not close the channel twice
	assert.NotPanics(t, func() { hub.removeClient(c) })
}

func TestHub_RegisterAfterStopDoesNotBlock(t *testing.T) {
	hub := NewHub(nil, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	c := testClient(hub, uuid.New(), "tv")
	hub.Register(c)
	cancel()
	<-stopped

	returned := make(chan struct{})
	go func() {
		hub.Register(testClient(hub, uuid.New(), "laptop"))
		hub.Unregister(c)
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("register/unregister blocked after the hub stopped")
	}
}
