// Package ws fans raw event payloads out to every other client listening on
// the same channel.
package ws

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	sendBufferSize = 256
	writeWait      = 10 * time.Second
)

// ErrHubClosed is returned once Run has exited.
var ErrHubClosed = errors.New("hub closed")

type Client struct {
	ID      string
	Channel string
	Send    chan []byte
	Conn    *websocket.Conn // nil for in-process clients
}

// NewClient returns a client with a buffered send channel.
func NewClient(id, channel string, conn *websocket.Conn) *Client {
	return &Client{
		ID:      id,
		Channel: channel,
		Send:    make(chan []byte, sendBufferSize),
		Conn:    conn,
	}
}

// WritePump copies queued payloads to the client's websocket until Send is
// closed, then sends a close frame. It closes Conn on return.
func (c *Client) WritePump() {
	defer c.Conn.Close()
	for message := range c.Send {
		c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	c.Conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}

type Hub struct {
	Clients    map[string]map[*Client]bool // channel -> clients
	Register   chan *Client
	Unregister chan *Client
	Broadcast  chan BroadcastMessage
	mu         sync.RWMutex
	done       chan struct{}
	logger     *slog.Logger
}

// BroadcastMessage is delivered to every client of Channel except the one
// whose ID equals Origin.
type BroadcastMessage struct {
	Channel string
	Origin  string
	Data    []byte
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		Clients:    make(map[string]map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Broadcast:  make(chan BroadcastMessage),
		done:       make(chan struct{}),
		logger:     logger.With("component", "hub"),
	}
}

// Run serves the hub until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case client := <-h.Register:
			h.mu.Lock()
			if h.Clients[client.Channel] == nil {
				h.Clients[client.Channel] = make(map[*Client]bool)
			}
			h.Clients[client.Channel][client] = true
			h.mu.Unlock()
			h.logger.Debug("client registered", "channel", client.Channel, "client_id", client.ID)
		case client := <-h.Unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()
		case msg := <-h.Broadcast:
			h.mu.Lock()
			for client := range h.Clients[msg.Channel] {
				if client.ID == msg.Origin {
					continue
				}
				select {
				case client.Send <- msg.Data:
				default:
					h.logger.Warn("dropping slow client", "channel", msg.Channel, "client_id", client.ID)
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Join registers c, failing if the hub has stopped or ctx ends first.
func (h *Hub) Join(ctx context.Context, c *Client) error {
	select {
	case h.Register <- c:
		return nil
	case <-h.done:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Leave unregisters c. It is a no-op once the hub has stopped.
func (h *Hub) Leave(c *Client) {
	select {
	case h.Unregister <- c:
	case <-h.done:
	}
}

// Publish queues msg for delivery.
func (h *Hub) Publish(ctx context.Context, msg BroadcastMessage) error {
	select {
	case h.Broadcast <- msg:
		return nil
	case <-h.done:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ClientCount returns the number of clients on a channel.
func (h *Hub) ClientCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.Clients[channel])
}

// remove must be called with mu held.
func (h *Hub) remove(client *Client) {
	clients, ok := h.Clients[client.Channel]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.Send)
	if len(clients) == 0 {
		delete(h.Clients, client.Channel)
	}
	h.logger.Debug("client removed", "channel", client.Channel, "client_id", client.ID)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, clients := range h.Clients {
		for client := range clients {
			h.remove(client)
		}
	}
}
