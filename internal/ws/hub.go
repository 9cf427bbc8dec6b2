package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"whatsview/internal/constants"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
)

// Event is the wire envelope pushed to subscribers. Every frame carries
// an event name and the event's payload.
type Event struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans events out to all connected WebSocket clients. Publishing
// never blocks: a client that cannot keep up has frames dropped rather
// than stalling the publisher.
type Hub struct {
	logger        *logrus.Logger
	originPattern string
	writeTimeout  time.Duration

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

func NewHub(logger *logrus.Logger, corsOrigin string) *Hub {
	if corsOrigin == "" {
		corsOrigin = constants.DefaultCORSOrigin
	}
	return &Hub{
		logger:        logger,
		originPattern: corsOrigin,
		writeTimeout:  time.Duration(constants.DefaultClientWriteTimeoutSec) * time.Second,
		clients:       make(map[*client]struct{}),
	}
}

// Subscribe upgrades the request to a WebSocket connection and streams
// events until the client disconnects or the hub shuts down.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{h.originPattern},
	})
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket accept failed")
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, constants.DefaultClientSendBuffer),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close(websocket.StatusGoingAway, "shutting down")
		return
	}
	h.clients[c] = struct{}{}
	subscribers := len(h.clients)
	h.mu.Unlock()

	h.logger.WithField("subscribers", subscribers).Info("WebSocket client connected")

	go h.writeLoop(c)

	// Reads are only consumed to detect disconnect; clients are not
	// expected to send anything.
	for {
		if _, _, err := conn.Read(r.Context()); err != nil {
			break
		}
	}

	h.unregister(c)
	_ = conn.Close(websocket.StatusNormalClosure, "")
	h.logger.Info("WebSocket client disconnected")
}

func (h *Hub) writeLoop(c *client) {
	for frame := range c.send {
		ctx, cancel := context.WithTimeout(context.Background(), h.writeTimeout)
		err := c.conn.Write(ctx, websocket.MessageText, frame)
		cancel()
		if err != nil {
			h.unregister(c)
			_ = c.conn.Close(websocket.StatusAbnormalClosure, "write failed")
			return
		}
	}
}

// Publish marshals the event envelope and fans it out. Frames to clients
// with a full send buffer are dropped.
func (h *Hub) Publish(event string, payload interface{}) {
	frame, err := json.Marshal(Event{Event: event, Data: payload})
	if err != nil {
		h.logger.WithError(err).WithField("event", event).Error("Failed to encode event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- frame:
		default:
			h.logger.WithField("event", event).Warn("Dropping frame for slow WebSocket client")
		}
	}
}

// Subscribers returns the number of connected clients.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects all clients and rejects future subscriptions.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for c := range h.clients {
		close(c.send)
		_ = c.conn.Close(websocket.StatusGoingAway, "shutting down")
		delete(h.clients, c)
	}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}
