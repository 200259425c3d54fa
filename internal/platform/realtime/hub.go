// Package realtime pushes prescription lifecycle changes to connected
// clients over WebSockets. Doctors receive every change so the review
// queue stays current; patients receive changes to their own
// prescriptions. Events carry ids and statuses, never treatment content.
package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rakeshthakkuri/skin-disease-S/internal/domain/prescription"
)

const (
	TopicDoctors = "doctors"

	sendBuffer = 64
)

// UserTopic is the topic a patient's connection is subscribed to.
func UserTopic(id uuid.UUID) string {
	return "user:" + id.String()
}

// Event is the JSON frame sent to clients.
type Event struct {
	Type           string    `json:"type"`
	PrescriptionID uuid.UUID `json:"prescription_id"`
	Status         string    `json:"status"`
	At             time.Time `json:"at"`
}

func eventType(status string) string {
	switch status {
	case prescription.StatusApproved:
		return "prescription.approved"
	case prescription.StatusRejected:
		return "prescription.rejected"
	default:
		return "prescription.created"
	}
}

// Client is one connection. Topics are fixed at registration from the
// authenticated identity.
type Client struct {
	ID     string
	Topics []string
	Send   chan []byte
}

func NewClient(topics ...string) *Client {
	return &Client{ID: uuid.NewString(), Topics: topics, Send: make(chan []byte, sendBuffer)}
}

// Hub tracks clients by topic.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	all     map[*Client]struct{}
	logger  zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		all:     make(map[*Client]struct{}),
		logger:  logger,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.all[c] = struct{}{}
	for _, topic := range c.Topics {
		if h.clients[topic] == nil {
			h.clients[topic] = make(map[*Client]struct{})
		}
		h.clients[topic][c] = struct{}{}
	}
}

// Unregister removes c and closes its Send channel. Safe to call twice.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[c]; !ok {
		return
	}
	for _, topic := range c.Topics {
		if subs, ok := h.clients[topic]; ok {
			delete(subs, c)
			if len(subs) == 0 {
				delete(h.clients, topic)
			}
		}
	}
	delete(h.all, c)
	close(c.Send)
}

// Broadcast delivers ev to every client on any of topics, once per client.
// Slow clients whose buffer is full miss the event.
func (h *Hub) Broadcast(ev Event, topics ...string) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error().Err(err).Msg("marshal realtime event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[*Client]struct{})
	for _, topic := range topics {
		for c := range h.clients[topic] {
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			select {
			case c.Send <- data:
			default:
				h.logger.Warn().Str("client_id", c.ID).Str("type", ev.Type).Msg("realtime client buffer full, event dropped")
			}
		}
	}
}

// PrescriptionChanged fans a lifecycle change out to doctors and to the
// owning patient.
func (h *Hub) PrescriptionChanged(_ context.Context, c prescription.Change) {
	h.Broadcast(Event{
		Type:           eventType(c.Status),
		PrescriptionID: c.PrescriptionID,
		Status:         c.Status,
		At:             c.At,
	}, TopicDoctors, UserTopic(c.UserID))
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

func (h *Hub) TopicCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}
