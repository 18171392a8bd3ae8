// Package broadcast fans typed events out to live subscriber sinks.
//
// Channels are keyed by battle id for battle viewers and by "user:<id>" for
// personal pushes. Delivery is best-effort: a sink that cannot keep up is
// pruned silently, and a channel with no sinks is removed from the registry.
package broadcast

import "sync"

// Event types emitted by the battle core.
const (
	EventBattleState   = "battle:state"
	EventBattleMessage = "battle:message"
	EventBattleTurn    = "battle:turn"
	EventBattleEnd     = "battle:end"
	EventBattleComment = "battle:comment"
)

// sinkBuffer bounds how many undelivered events a subscriber may lag behind
// before it is considered dead and pruned.
const sinkBuffer = 16

// Event is one tagged broadcast payload.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// UserChannel returns the personal channel key for a user.
func UserChannel(userID string) string {
	return "user:" + userID
}

// Client is one live subscription to a channel.
type Client struct {
	id      int64
	channel string
	hub     *Hub

	mu     sync.Mutex
	closed bool
	events chan Event
}

// Events returns the stream of events delivered to this client. The channel
// is closed when the client is pruned or Close is called.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Close detaches the client from its channel and closes its event stream.
// It is safe to call multiple times and safe to call concurrently with
// Broadcast.
func (c *Client) Close() {
	if c == nil {
		return
	}
	if c.hub != nil {
		c.hub.remove(c.channel, c.id)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.events)
}

// trySend delivers one event without blocking. It reports false when the sink
// buffer is full, meaning the subscriber has stalled past its allowance.
func (c *Client) trySend(event Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.events <- event:
		return true
	default:
		return false
	}
}

// Hub is an injected process-wide broadcast registry.
type Hub struct {
	mu       sync.Mutex
	channels map[string]map[int64]*Client
	nextID   int64
}

// NewHub builds an empty broadcast registry.
func NewHub() *Hub {
	return &Hub{channels: make(map[string]map[int64]*Client)}
}

// Subscribe attaches a new client to a channel.
func (h *Hub) Subscribe(channel string) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	client := &Client{
		id:      h.nextID,
		channel: channel,
		events:  make(chan Event, sinkBuffer),
		hub:     h,
	}
	sinks, ok := h.channels[channel]
	if !ok {
		sinks = make(map[int64]*Client)
		h.channels[channel] = sinks
	}
	sinks[client.id] = client
	return client
}

// Broadcast delivers an event to every live sink on a channel. Sinks that
// have stalled past their buffer are closed and dropped from the registry.
// Broadcast never blocks and never fails.
func (h *Hub) Broadcast(channel string, event Event) {
	h.mu.Lock()
	sinks := h.channels[channel]
	clients := make([]*Client, 0, len(sinks))
	for _, client := range sinks {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		if !client.trySend(event) {
			client.Close()
		}
	}
}

// SubscriberCount reports how many sinks are attached to a channel.
func (h *Hub) SubscriberCount(channel string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.channels[channel])
}

// ChannelCount reports how many channels currently hold at least one sink.
func (h *Hub) ChannelCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.channels)
}

func (h *Hub) remove(channel string, clientID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sinks, ok := h.channels[channel]
	if !ok {
		return
	}
	delete(sinks, clientID)
	if len(sinks) == 0 {
		delete(h.channels, channel)
	}
}
