package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/quocanhngo/reelsync/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const redisChannel = "reelsync:sync-events"

// Hub fans sync events out to the connected devices of a user.
// With a Redis client it uses Pub/Sub so every instance delivers to its own
// connections; without one, delivery is local only. Delivery is best-effort.
type Hub struct {
	// Map of userID -> set of client connections (one per connected device)
	clients map[uuid.UUID]map[*Client]bool
	mu      sync.RWMutex

	// Channels for registering/unregistering clients
	register   chan *Client
	unregister chan *Client

	// Closed once Run returns
	done chan struct{}

	// Redis client for Pub/Sub, nil for single instance mode
	rdb *redis.Client

	log zerolog.Logger
}

// NewHub creates a new WebSocket Hub
func NewHub(rdb *redis.Client, log zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		rdb:        rdb,
		log:        log.With().Str("component", "ws_hub").Logger(),
	}
}

// Run starts the Hub's main event loop. It must be called once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	if h.rdb != nil {
		go h.subscribeRedis(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

// Register queues a client for registration with the hub. After the hub
// has stopped it returns without registering.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister queues a client for removal. After the hub has stopped it
// returns immediately.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.UserID]; !ok {
		h.clients[client.UserID] = make(map[*Client]bool)
	}
	h.clients[client.UserID][client] = true
	h.log.Debug().
		Str("user_id", client.UserID.String()).
		Str("device_id", client.DeviceID).
		Int("connections", len(h.clients[client.UserID])).
		Msg("device connected")
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[client.UserID]; ok {
		if _, ok := clients[client]; !ok {
			return
		}
		delete(clients, client)
		close(client.send)

		if len(clients) == 0 {
			delete(h.clients, client.UserID)
		}
	}
	h.log.Debug().
		Str("user_id", client.UserID.String()).
		Str("device_id", client.DeviceID).
		Msg("device disconnected")
}

// SendToUser delivers an event to every connected device of a user except the
// one holding exceptSession. Pass uuid.Nil to reach all of them.
func (h *Hub) SendToUser(userID uuid.UUID, event *model.WSEvent, exceptSession uuid.UUID) {
	targeted := &TargetedEvent{
		TargetUserID:  userID,
		ExceptSession: exceptSession,
		Event:         event,
	}
	if h.rdb == nil {
		h.deliverLocal(targeted)
		return
	}
	h.publishToRedis(targeted)
}

// deliverLocal sends an event to a user's connections on this instance.
// A client whose buffer is full misses the event.
func (h *Hub) deliverLocal(targeted *TargetedEvent) {
	data, err := json.Marshal(targeted.Event)
	if err != nil {
		h.log.Error().Err(err).Msg("marshal event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[targeted.TargetUserID] {
		if targeted.ExceptSession != uuid.Nil && client.SessionID == targeted.ExceptSession {
			continue
		}
		select {
		case client.send <- data:
		default:
			h.log.Warn().
				Str("user_id", client.UserID.String()).
				Str("device_id", client.DeviceID).
				Str("event", targeted.Event.Type).
				Msg("client buffer full, event dropped")
		}
	}
}

// ========== Redis Pub/Sub for Horizontal Scaling ==========

// TargetedEvent wraps an event with its recipients for Redis Pub/Sub
type TargetedEvent struct {
	TargetUserID  uuid.UUID      `json:"target_user_id"`
	ExceptSession uuid.UUID      `json:"except_session,omitempty"`
	Event         *model.WSEvent `json:"event"`
}

func (h *Hub) publishToRedis(targeted *TargetedEvent) {
	jsonData, err := json.Marshal(targeted)
	if err != nil {
		h.log.Error().Err(err).Msg("marshal event for redis")
		return
	}

	if err := h.rdb.Publish(context.Background(), redisChannel, jsonData).Err(); err != nil {
		h.log.Warn().Err(err).Msg("publish to redis")
	}
}

func (h *Hub) subscribeRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, redisChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	h.log.Info().Str("channel", redisChannel).Msg("📡 Redis Pub/Sub subscriber started")

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var targeted TargetedEvent
			if err := json.Unmarshal([]byte(msg.Payload), &targeted); err != nil {
				h.log.Warn().Err(err).Msg("unmarshal redis message")
				continue
			}
			if targeted.TargetUserID == uuid.Nil || targeted.Event == nil {
				continue
			}
			h.deliverLocal(&targeted)
		}
	}
}
