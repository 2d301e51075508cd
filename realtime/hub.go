package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const defaultQueueSize = 64

// ErrClientGone is returned when joining a room with a disconnected client.
var ErrClientGone = errors.New("client disconnected")

// Message is one event as delivered to a connection.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Client is one live connection. Its queue is closed on Disconnect.
type Client struct {
	ID     string
	UserID string

	send  chan Message
	rooms map[string]struct{}
}

// Messages returns the queue a transport drains.
func (c *Client) Messages() <-chan Message { return c.send }

// Hub tracks connections and per-user rooms and fans events out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[string]map[string]*Client

	queueSize int
	dropped   atomic.Int64
	log       *log.Logger
}

func NewHub(logger *log.Logger, queueSize int) *Hub {
	if logger == nil {
		logger = log.StandardLogger()
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Hub{
		clients:   make(map[string]*Client),
		rooms:     make(map[string]map[string]*Client),
		queueSize: queueSize,
		log:       logger,
	}
}

// Connect registers a new client owned by userID. It joins no room yet.
func (h *Hub) Connect(userID string) *Client {
	c := &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		send:   make(chan Message, h.queueSize),
		rooms:  make(map[string]struct{}),
	}
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()
	h.log.WithFields(log.Fields{"client": c.ID, "user": userID}).Debug("client connected")
	return c
}

// Disconnect removes the client from every room and closes its queue.
func (h *Hub) Disconnect(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.ID]; !ok {
		return
	}
	delete(h.clients, c.ID)
	for room := range c.rooms {
		h.leaveLocked(c, room)
	}
	close(c.send)
	h.log.WithFields(log.Fields{"client": c.ID, "user": c.UserID}).Debug("client disconnected")
}

// Join adds the client to room. Joining twice is a no-op.
func (h *Hub) Join(c *Client, room string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.ID]; !ok {
		return ErrClientGone
	}
	members := h.rooms[room]
	if members == nil {
		members = make(map[string]*Client)
		h.rooms[room] = members
	}
	members[c.ID] = c
	c.rooms[room] = struct{}{}
	return nil
}

func (h *Hub) leaveLocked(c *Client, room string) {
	delete(c.rooms, room)
	if members := h.rooms[room]; members != nil {
		delete(members, c.ID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		h.Disconnect(c)
	}
}

func encode(event string, payload any) (Message, error) {
	data, err := sonic.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Event: event, Data: data}, nil
}

// BroadcastAll delivers to every connected client.
func (h *Hub) BroadcastAll(ctx context.Context, event string, payload any) error {
	msg, err := encode(event, payload)
	if err != nil {
		return err
	}
	h.Deliver("", msg)
	return nil
}

// NotifyUser delivers to the clients that joined the user's room.
func (h *Hub) NotifyUser(ctx context.Context, userID, event string, payload any) error {
	msg, err := encode(event, payload)
	if err != nil {
		return err
	}
	h.Deliver(userID, msg)
	return nil
}

// Deliver hands an encoded message to room members, or to everyone when room is empty.
// A client whose queue is full misses the message.
func (h *Hub) Deliver(room string, msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	targets := h.clients
	if room != "" {
		targets = h.rooms[room]
	}
	for _, c := range targets {
		select {
		case c.send <- msg:
		default:
			h.dropped.Add(1)
			h.log.WithFields(log.Fields{"client": c.ID, "event": msg.Event}).Warn("client queue full, dropping event")
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Dropped reports how many deliveries were skipped because a queue was full.
func (h *Hub) Dropped() int64 { return h.dropped.Load() }
