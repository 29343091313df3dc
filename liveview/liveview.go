// Package liveview broadcasts per-cycle debug frames to connected websocket
// clients, adapted from the teacher's Hub/Client pump: a Hub multiplexes
// Publish onto each Client's buffered send channel, and one writePump
// goroutine per connection drains it onto the wire. Unlike the teacher's UI,
// this is read-only — spec.md's debug view has no command channel back
// into the simulation, so Client never starts a readPump.
package liveview

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"proteus/frame"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Client is the per-connection half of the broadcast: a buffered outbound
// channel drained by writePump. A full channel drops the frame rather than
// blocking the hub or disconnecting a slow client.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func (c *Client) writePump(log *slog.Logger) {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			log.Debug("liveview: write error, closing connection", "err", err)
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// Hub fans a stream of serialized frames out to every connected client.
type Hub struct {
	log        *slog.Logger
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
}

// NewHub constructs a Hub. Call Run in its own goroutine before serving.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:        log,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run services registrations and broadcasts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				close(c.send)
			}
			return
		case c := <-h.register:
			h.clients[c] = true
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					h.log.Debug("liveview: client send buffer full, dropping frame")
				}
			}
		}
	}
}

// Publish encodes fr as JSON and queues it for every connected client. It
// never blocks; a full hub-level broadcast buffer drops the frame.
func (h *Hub) Publish(fr *frame.Frame) {
	msg, err := json.Marshal(fr)
	if err != nil {
		h.log.Error("liveview: marshal frame", "err", err)
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		h.log.Debug("liveview: hub broadcast buffer full, dropping frame")
	}
}

// ServeWS upgrades an HTTP request to a websocket and registers a new
// read-only client against the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("liveview: upgrade failed", "err", err)
		return
	}
	c := &Client{hub: h, conn: conn, send: make(chan []byte, 256)}
	h.register <- c
	go c.writePump(h.log)
}
