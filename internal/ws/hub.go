// Package ws pushes ledger and rate events to connected websocket clients.
package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"custody-wallet/internal/event"
	"custody-wallet/internal/logger"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 16
)

type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// client owns the only writer of its connection. Broadcast queues onto send
// and never writes directly.
type client struct {
	conn conn
	send chan []byte
	done chan struct{}
}

type Hub struct {
	clients map[*client]bool
	mu      sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*client]bool),
	}
}

// Forward broadcasts every listed bus event to the hub's clients.
func (h *Hub) Forward(bus *event.Bus, events ...string) {
	for _, name := range events {
		bus.Subscribe(name, func(payload interface{}) {
			data, err := Encode(name, payload)
			if err != nil {
				logger.Log.Error("ws encode failed", zap.String("event", name), zap.Error(err))
				return
			}
			h.Broadcast(data)
		})
	}
}

func Encode(name string, payload interface{}) ([]byte, error) {
	return json.Marshal(Message{Event: name, Data: payload})
}

// Broadcast queues data for every client. A client whose queue is full is
// dropped.
func (h *Hub) Broadcast(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			logger.Log.Warn("ws client too slow, dropping")
			h.removeLocked(c)
		}
	}
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) Handler(c *websocket.Conn) {
	cl := h.register(c)
	defer func() {
		h.remove(cl)
		<-cl.done
	}()

	for {
		if _, _, err := c.ReadMessage(); err != nil {
			break
		}
	}
}

func (h *Hub) register(c conn) *client {
	cl := &client{
		conn: c,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	h.clients[cl] = true
	h.mu.Unlock()

	go h.write(cl)
	return cl
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
}

// write drains c.send until the client is removed or a write fails. Closing
// the connection also ends the read loop in Handler.
func (h *Hub) write(c *client) {
	defer close(c.done)
	defer c.conn.Close()

	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			logger.Log.Debug("ws write failed", zap.Error(err))
			h.remove(c)
			return
		}
	}
}
