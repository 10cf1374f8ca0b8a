package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/tableside/internal/domain"
)

var meter = otel.Meter("notify")

const DefaultQueueSize = 64

// Message is the wire frame sent to subscribers.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func NewMessage(event string, payload any) (Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	return Message{Event: event, Data: data}, nil
}

// Conn is one attached subscriber. Its queue is drained by a single writer,
// so messages arrive in publish order.
type Conn struct {
	ID     string
	send   chan Message
	groups map[string]struct{}
}

func (c *Conn) Messages() <-chan Message {
	return c.send
}

// Hub keeps group membership for attached connections and fans events out
// to them. Every connection is a member of domain.GroupAll.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]*Conn
	groups map[string]map[string]*Conn

	queueSize int
	logger    *slog.Logger
	dropped   metric.Int64Counter
	delivered metric.Int64Counter
}

type HubOption func(*Hub)

func WithQueueSize(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.queueSize = n
		}
	}
}

func NewHub(logger *slog.Logger, opts ...HubOption) (*Hub, error) {
	h := &Hub{
		conns:     make(map[string]*Conn),
		groups:    make(map[string]map[string]*Conn),
		queueSize: DefaultQueueSize,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(h)
	}

	var err error
	h.delivered, err = meter.Int64Counter("notify.delivered",
		metric.WithDescription("Events queued to subscribers"))
	if err != nil {
		return nil, fmt.Errorf("create notify.delivered counter: %w", err)
	}
	h.dropped, err = meter.Int64Counter("notify.dropped",
		metric.WithDescription("Events dropped because a subscriber queue was full"))
	if err != nil {
		return nil, fmt.Errorf("create notify.dropped counter: %w", err)
	}

	return h, nil
}

// Attach registers a connection under id. Attaching an id twice replaces
// the earlier connection.
func (h *Hub) Attach(id string) *Conn {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.conns[id]; ok {
		h.detachLocked(old)
	}

	c := &Conn{
		ID:     id,
		send:   make(chan Message, h.queueSize),
		groups: make(map[string]struct{}),
	}
	h.conns[id] = c
	h.joinLocked(c, domain.GroupAll)
	return c
}

// Detach drops every membership of the connection and closes its queue.
func (h *Hub) Detach(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.conns[id]; ok {
		h.detachLocked(c)
	}
}

func (h *Hub) detachLocked(c *Conn) {
	for group := range c.groups {
		h.leaveLocked(c, group)
	}
	delete(h.conns, c.ID)
	close(c.send)
}

func (h *Hub) Join(id, group string) error {
	if group == "" {
		return domain.ValidationError("group name is empty")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.conns[id]
	if !ok {
		return domain.NotFoundError("connection %s", id)
	}
	h.joinLocked(c, group)
	return nil
}

// Leave removes the connection from group. Leaving GroupAll is ignored.
func (h *Hub) Leave(id, group string) {
	if group == domain.GroupAll {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.conns[id]; ok {
		h.leaveLocked(c, group)
	}
}

func (h *Hub) joinLocked(c *Conn, group string) {
	members, ok := h.groups[group]
	if !ok {
		members = make(map[string]*Conn)
		h.groups[group] = members
	}
	members[c.ID] = c
	c.groups[group] = struct{}{}
}

func (h *Hub) leaveLocked(c *Conn, group string) {
	delete(c.groups, group)
	if members, ok := h.groups[group]; ok {
		delete(members, c.ID)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
}

// Members returns how many connections belong to group.
func (h *Hub) Members(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}

// Publish delivers the event to every member of the named groups. It is
// fire and forget: a payload that cannot be encoded is logged and dropped.
func (h *Hub) Publish(ctx context.Context, groups []string, event string, payload any) {
	msg, err := NewMessage(event, payload)
	if err != nil {
		h.logger.Error("failed to encode event", "error", err, "event", event)
		return
	}
	h.Deliver(ctx, groups, msg)
}

// Deliver queues msg once for each connection reached through any of the
// groups and returns how many were reached. A full queue drops the message
// for that connection only.
func (h *Hub) Deliver(ctx context.Context, groups []string, msg Message) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[string]struct{})
	delivered := 0
	for _, group := range groups {
		for id, c := range h.groups[group] {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}

			select {
			case c.send <- msg:
				delivered++
			default:
				h.dropped.Add(ctx, 1, metric.WithAttributes(attribute.String("event", msg.Event)))
				h.logger.Warn("subscriber queue full, event dropped", "conn_id", id, "event", msg.Event)
			}
		}
	}

	if delivered > 0 {
		h.delivered.Add(ctx, int64(delivered), metric.WithAttributes(attribute.String("event", msg.Event)))
	}
	return delivered
}

// send queues a frame for a single connection.
func (h *Hub) send(id string, msg Message) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.conns[id]
	if !ok {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}
