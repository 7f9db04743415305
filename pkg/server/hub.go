// WebSocket hub: status deltas and interrupt events to clients
//
// Copyright (C) 2026 Go binding
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"axl-go/pkg/metrics"
)

// Stream message types.
const (
	MsgAxisStatus = "axis_status"
	MsgInterrupt  = "interrupt"
	MsgEStop      = "estop"
	MsgGateway    = "gateway"
)

// StreamMessage is one hub broadcast.
type StreamMessage struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// NewStreamMessage stamps a broadcast payload.
func NewStreamMessage(msgType string, data interface{}) StreamMessage {
	return StreamMessage{Type: msgType, Timestamp: time.Now(), Data: data}
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans broadcasts out to connected WebSocket clients. Slow clients
// are dropped rather than allowed to stall the rack publishers.
type Hub struct {
	log *zap.Logger
	rm  *metrics.RackMetrics

	clients    map[*wsClient]bool
	broadcast  chan StreamMessage
	register   chan *wsClient
	unregister chan *wsClient
	quit       chan struct{}

	mu sync.RWMutex
}

func NewHub(log *zap.Logger, rm *metrics.RackMetrics) *Hub {
	return &Hub{
		log:        log,
		rm:         rm,
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan StreamMessage, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		quit:       make(chan struct{}),
	}
}

// Run is the hub event loop. It exits on Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.quit:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.rm.WSClients.Set(nil, float64(n))
			h.log.Info("stream client connected",
				zap.String("remote", client.conn.RemoteAddr().String()),
				zap.Int("clients", n))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.rm.WSClients.Set(nil, float64(n))
			h.log.Info("stream client disconnected", zap.Int("clients", n))

		case msg := <-h.broadcast:
			data, err := json.Marshal(msg)
			if err != nil {
				h.log.Error("marshal broadcast", zap.Error(err))
				continue
			}
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					close(client.send)
					delete(h.clients, client)
					h.log.Warn("stream client send buffer full, dropping",
						zap.String("remote", client.conn.RemoteAddr().String()))
				}
			}
			h.mu.Unlock()
		}
	}
}

// Stop shuts the event loop down and disconnects all clients.
func (h *Hub) Stop() {
	close(h.quit)
}

// Broadcast queues a message for all clients, dropping it when the hub
// is backed up.
func (h *Hub) Broadcast(msg StreamMessage) {
	select {
	case h.broadcast <- msg:
	default:
		h.log.Warn("stream broadcast queue full, message dropped",
			zap.String("type", msg.Type))
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		// Clients only listen; any inbound traffic just feeds the
		// deadline until the connection drops.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("stream read error", zap.Error(err))
			}
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)
			// Coalesce whatever else is queued into this frame.
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// serveWS upgrades an authenticated request into a stream client.
func (s *Server) serveWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Error("websocket upgrade", zap.Error(err))
		return
	}
	client := &wsClient{hub: s.hub, conn: conn, send: make(chan []byte, sendBufferSize)}
	s.hub.register <- client
	go client.writePump()
	go client.readPump()
}
