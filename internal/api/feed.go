package api

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/race-edge/internal/inference"
)

// Feed message types
const (
	MessageConnected  = "connected"
	MessagePrediction = "prediction"
)

// FeedMessage is one frame of the prediction feed
type FeedMessage struct {
	Type      string                        `json:"type"`
	RaceID    string                        `json:"race_id,omitempty"`
	Timestamp int64                         `json:"timestamp"`
	Data      *inference.PredictionResponse `json:"data,omitempty"`
}

// subscription is a client's control frame
type subscription struct {
	Action  string   `json:"action"`
	RaceIDs []string `json:"race_ids"`
}

// feedClient is one websocket subscriber
type feedClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu      sync.RWMutex
	raceIDs map[string]bool
}

// Hub fans completed predictions out to websocket subscribers
type Hub struct {
	clients    map[*feedClient]bool
	broadcast  chan *FeedMessage
	register   chan *feedClient
	unregister chan *feedClient
	done       chan struct{}
	logger     logrus.FieldLogger
	mu         sync.RWMutex
}

// NewHub creates a hub; Run must be started before clients connect
func NewHub(log logrus.FieldLogger) *Hub {
	if log == nil {
		log = logrus.New()
	}
	return &Hub{
		clients:    make(map[*feedClient]bool),
		broadcast:  make(chan *FeedMessage, 256),
		register:   make(chan *feedClient),
		unregister: make(chan *feedClient),
		done:       make(chan struct{}),
		logger:     log,
	}
}

// Run dispatches registrations and broadcasts until ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.WithField("clients", n).Debug("Feed client registered")

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.WithField("clients", n).Debug("Feed client unregistered")

		case msg := <-h.broadcast:
			data, err := json.Marshal(msg)
			if err != nil {
				h.logger.WithError(err).Warn("Failed to marshal feed message")
				continue
			}
			h.mu.Lock()
			for c := range h.clients {
				if !c.wants(msg.RaceID) {
					continue
				}
				select {
				case c.send <- data:
				default:
					// slow consumer
					close(c.send)
					delete(h.clients, c)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish queues a prediction for every subscriber. A full queue drops the
// frame rather than stall the request that produced it.
func (h *Hub) Publish(resp *inference.PredictionResponse) {
	if h == nil || resp == nil {
		return
	}
	msg := &FeedMessage{
		Type:      MessagePrediction,
		RaceID:    resp.RaceID,
		Timestamp: time.Now().Unix(),
		Data:      resp,
	}
	select {
	case h.broadcast <- msg:
	default:
		h.logger.WithField("race_id", resp.RaceID).Warn("Prediction feed full, dropping frame")
	}
}

// Clients returns the number of connected subscribers
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (c *feedClient) wants(raceID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.raceIDs) == 0 || c.raceIDs[raceID]
}

// readPump applies subscribe and unsubscribe frames until the socket closes
func (c *feedClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.WithError(err).Debug("Feed client read error")
			}
			return
		}

		var sub subscription
		if err := json.Unmarshal(data, &sub); err != nil {
			continue
		}

		c.mu.Lock()
		switch sub.Action {
		case "subscribe":
			c.raceIDs = make(map[string]bool, len(sub.RaceIDs))
			for _, id := range sub.RaceIDs {
				c.raceIDs[id] = true
			}
		case "unsubscribe":
			c.raceIDs = nil
		}
		c.mu.Unlock()
	}
}

// writePump forwards queued frames to the socket
func (c *feedClient) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
