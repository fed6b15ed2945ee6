// Package websocket provides WebSocket connection management and topic-based
// message fan-out.
package websocket

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Hub tracks connected clients and their topic subscriptions.
// Delivery is best effort: a client whose buffer is full misses the frame.
type Hub struct {
	mu      sync.RWMutex
	topics  map[string]map[*Client]struct{}
	clients map[*Client]struct{}
	logger  zerolog.Logger
}

// NewHub creates a new WebSocket hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		topics:  make(map[string]map[*Client]struct{}),
		clients: make(map[*Client]struct{}),
		logger:  logger.With().Str("component", "websocket").Logger(),
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Str("client_id", client.ID).Int("total", total).Msg("client connected")
}

// Unregister removes a client from every topic and closes its send channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	for topic := range client.topics {
		h.removeLocked(topic, client)
	}
	delete(h.clients, client)
	close(client.send)
	total := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Str("client_id", client.ID).Int("total", total).Msg("client disconnected")
}

// Subscribe adds topics to a registered client.
func (h *Hub) Subscribe(client *Client, topics ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	for _, topic := range topics {
		if h.topics[topic] == nil {
			h.topics[topic] = make(map[*Client]struct{})
		}
		h.topics[topic][client] = struct{}{}
		client.topics[topic] = struct{}{}
	}
}

// Unsubscribe removes topics from a registered client.
func (h *Hub) Unsubscribe(client *Client, topics ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, topic := range topics {
		h.removeLocked(topic, client)
		delete(client.topics, topic)
	}
}

func (h *Hub) removeLocked(topic string, client *Client) {
	if subscribers, ok := h.topics[topic]; ok {
		delete(subscribers, client)
		if len(subscribers) == 0 {
			delete(h.topics, topic)
		}
	}
}

// Publish sends data to every subscriber of topic without blocking and
// returns how many clients accepted it.
func (h *Hub) Publish(topic string, data []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for client := range h.topics[topic] {
		select {
		case client.send <- data:
			delivered++
		default:
			h.logger.Warn().Str("client_id", client.ID).Str("topic", topic).Msg("client buffer full, dropping message")
		}
	}
	return delivered
}

// Reply sends a message to a single registered client without blocking.
func (h *Hub) Reply(client *Client, msg Message) {
	data, err := msg.JSON()
	if err != nil {
		h.logger.Error().Err(err).Msg("encoding reply")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	select {
	case client.send <- data:
	default:
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SubscriberCount returns the number of clients subscribed to topic.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// HandleClientMessage applies one inbound frame from client. The authorize
// callback decides which topics the client may subscribe to.
func (h *Hub) HandleClientMessage(client *Client, raw []byte, authorize func(topic string) bool) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.Reply(client, NewMessage(TypeError, "", ErrorPayload{Code: "bad_message", Message: "message is not valid JSON"}))
		return
	}

	switch msg.Action {
	case ActionPing:
		h.Reply(client, NewMessage(TypePong, "", nil))

	case ActionSubscribe:
		ack := SubscriptionAckPayload{Topics: []string{}}
		for _, topic := range msg.Topics {
			if authorize(topic) {
				ack.Topics = append(ack.Topics, topic)
			} else {
				ack.Rejected = append(ack.Rejected, topic)
			}
		}
		h.Subscribe(client, ack.Topics...)
		for _, topic := range ack.Rejected {
			h.Reply(client, NewMessage(TypeError, topic, ErrorPayload{
				Code: "forbidden", Message: "not allowed to subscribe to " + topic, OriginalType: ActionSubscribe,
			}))
		}
		h.Reply(client, NewMessage(TypeSubscribeAck, "", ack))

	case ActionUnsubscribe:
		h.Unsubscribe(client, msg.Topics...)
		h.Reply(client, NewMessage(TypeUnsubscribeAck, "", SubscriptionAckPayload{Topics: msg.Topics}))

	default:
		h.Reply(client, NewMessage(TypeError, "", ErrorPayload{
			Code: "unknown_action", Message: "unknown action " + msg.Action, OriginalType: msg.Action,
		}))
	}
}

// Client represents a WebSocket client connection.
type Client struct {
	ID     string
	send   chan []byte
	topics map[string]struct{}
}

// NewClient creates a new WebSocket client.
func NewClient() *Client {
	return &Client{
		ID:     uuid.NewString(),
		send:   make(chan []byte, 256),
		topics: make(map[string]struct{}),
	}
}

// Send returns the send channel for the client.
func (c *Client) Send() <-chan []byte {
	return c.send
}
