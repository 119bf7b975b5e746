// Package notify pushes booking and connection events to connected users
// over websockets.
package notify

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Event is what clients receive.
type Event struct {
	Type string    `json:"type"` // connection.created, booking.confirmed, ...
	Data any       `json:"data"`
	At   time.Time `json:"at"`
}

// Publisher is what domain handlers depend on.
type Publisher interface {
	Publish(ev Event, userIDs ...string)
}

type discard struct{}

func (discard) Publish(Event, ...string) {}

// Discard drops every event.
var Discard Publisher = discard{}

type Client struct {
	Conn   *websocket.Conn
	Send   chan []byte
	UserID string
}

type broadcastMsg struct {
	UserID string
	Data   []byte
}

// Hub keeps one room per user; a user may have several open sockets.
type Hub struct {
	rooms      map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcastMsg
	quit       chan struct{}
	stopOnce   sync.Once
	mu         sync.Mutex
	log        *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan broadcastMsg, 64),
		quit:       make(chan struct{}),
		log:        log.Named("notify"),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			if h.rooms[c.UserID] == nil {
				h.rooms[c.UserID] = make(map[*Client]bool)
			}
			h.rooms[c.UserID][c] = true
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			h.drop(c)
			h.mu.Unlock()

		case m := <-h.broadcast:
			h.mu.Lock()
			for c := range h.rooms[m.UserID] {
				select {
				case c.Send <- m.Data:
				default:
					// slow consumer
					h.drop(c)
				}
			}
			h.mu.Unlock()

		case <-h.quit:
			h.mu.Lock()
			for _, conns := range h.rooms {
				for c := range conns {
					h.drop(c)
				}
			}
			h.mu.Unlock()
			return
		}
	}
}

// drop must be called with mu held.
func (h *Hub) drop(c *Client) {
	conns := h.rooms[c.UserID]
	if conns == nil || !conns[c] {
		return
	}
	delete(conns, c)
	close(c.Send)
	if len(conns) == 0 {
		delete(h.rooms, c.UserID)
	}
}

// Stop closes every client and ends Run.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
}

// Connected reports how many sockets userID has open.
func (h *Hub) Connected(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[userID])
}

// Publish sends ev to every open socket of the given users. It never blocks
// once the hub is stopped.
func (h *Hub) Publish(ev Event, userIDs ...string) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("encoding event failed", zap.String("type", ev.Type), zap.Error(err))
		return
	}
	for _, id := range userIDs {
		if id == "" {
			continue
		}
		select {
		case h.broadcast <- broadcastMsg{UserID: id, Data: data}:
		case <-h.quit:
			return
		}
	}
}

func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.quit:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
}
