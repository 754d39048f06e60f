package websocket

import (
	"context"
	"sync"

	"github.com/anjiri1684/skillcoin/ledger"
	"github.com/anjiri1684/skillcoin/logger"
)

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

type Client struct {
	UserID string
	Conn   Conn
}

type delivery struct {
	userID string
	event  ledger.Event
}

// Hub fans ledger events out to every open connection of a user. It
// implements ledger.Notifier.
type Hub struct {
	log        *logger.Logger
	register   chan *Client
	unregister chan *Client
	deliveries chan delivery
	done       chan struct{}
	stopOnce   sync.Once

	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		log:        log,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deliveries: make(chan delivery, 256),
		done:       make(chan struct{}),
		clients:    make(map[string]map[*Client]struct{}),
	}
}

// Register adds c to the hub. Once Run has returned the connection is
// closed instead.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		_ = c.Conn.Close()
	}
}

// Unregister removes c. It does not block after Run has returned.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Notify queues ev for userID. It never blocks a ledger caller: when the
// queue is full the event is dropped.
func (h *Hub) Notify(userID string, ev ledger.Event) {
	select {
	case h.deliveries <- delivery{userID: userID, event: ev}:
	default:
		h.log.Warn("websocket queue full, dropping event", "user_id", userID, "type", ev.Type)
	}
}

// Connected reports how many connections userID has open.
func (h *Hub) Connected(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			h.stopOnce.Do(func() { close(h.done) })
			return
		case c := <-h.register:
			h.mu.Lock()
			if h.clients[c.UserID] == nil {
				h.clients[c.UserID] = make(map[*Client]struct{})
			}
			h.clients[c.UserID][c] = struct{}{}
			h.mu.Unlock()
			h.log.Debug("websocket client registered", "user_id", c.UserID)
		case c := <-h.unregister:
			h.remove(c)
			h.log.Debug("websocket client unregistered", "user_id", c.UserID)
		case d := <-h.deliveries:
			h.deliver(d)
		}
	}
}

func (h *Hub) deliver(d delivery) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients[d.userID]))
	for c := range h.clients[d.userID] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.Conn.WriteJSON(d.event); err != nil {
			h.log.Warn("websocket write failed", "user_id", d.userID, "error", err)
			_ = c.Conn.Close()
			h.remove(c)
		}
	}
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.clients[c.UserID]
	if set == nil {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.UserID)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for uid, set := range h.clients {
		for c := range set {
			_ = c.Conn.Close()
		}
		delete(h.clients, uid)
	}
}
