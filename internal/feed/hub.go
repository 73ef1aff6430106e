// Package feed pushes notifications to a user's open websocket connections.
package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/VladKvetkin/settlement/internal/notifier"
	"github.com/gorilla/websocket"
)

const writeTimeout = 10 * time.Second

var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type client struct {
	conn   *websocket.Conn
	send   chan []byte
	userID string
}

type Hub struct {
	register   chan *client
	unregister chan *client
	broadcast  chan notifier.Notification
	done       chan struct{}
	clients    map[string]map[*client]bool
}

func NewHub() *Hub {
	return &Hub{
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan notifier.Notification),
		done:       make(chan struct{}),
		clients:    make(map[string]map[*client]bool),
	}
}

func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)

	for {
		select {
		case c := <-h.register:
			set, ok := h.clients[c.userID]
			if !ok {
				set = make(map[*client]bool)
				h.clients[c.userID] = set
			}
			set[c] = true
		case c := <-h.unregister:
			h.drop(c)
		case n := <-h.broadcast:
			msg, err := json.Marshal(n)
			if err != nil {
				continue
			}

			for c := range h.clients[n.UserID] {
				select {
				case c.send <- msg:
				default:
					h.drop(c)
				}
			}
		case <-ctx.Done():
			for _, set := range h.clients {
				for c := range set {
					close(c.send)
				}
			}
			h.clients = make(map[string]map[*client]bool)

			return nil
		}
	}
}

func (h *Hub) drop(c *client) {
	set, ok := h.clients[c.userID]
	if !ok || !set[c] {
		return
	}

	delete(set, c)
	close(c.send)

	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
}

// Serve attaches an upgraded connection to userID's feed and returns immediately.
func (h *Hub) Serve(conn *websocket.Conn, userID string) {
	c := &client{
		conn:   conn,
		send:   make(chan []byte, 16),
		userID: userID,
	}

	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) readPump(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	defer func() { _ = c.conn.Close() }()

	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (h *Hub) Name() string {
	return "feed"
}

func (h *Hub) Accepts(n notifier.Notification) bool {
	return n.UserID != "" && n.Kind == notifier.KindPointsAwarded
}

func (h *Hub) Send(ctx context.Context, n notifier.Notification) error {
	select {
	case h.broadcast <- n:
		return nil
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
