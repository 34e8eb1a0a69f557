package websocket

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/oraclewatch/core/internal/metrics"
	"github.com/oraclewatch/core/internal/models"
	"github.com/oraclewatch/core/pkg/logger"
)

const (
	StreamAlerts        = "alerts"
	StreamEscalations   = "escalations"
	StreamNotifications = "notifications"
)

// Hub fans engine events out to connected dashboard clients. Clients
// subscribe to streams; a client whose send buffer fills up is dropped rather
// than allowed to stall the broadcast path.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	logger     logger.Logger
	mu         sync.RWMutex
}

type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	userID  string
	streams map[string]bool
}

type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

func NewHub(log logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     log,
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

			for stream := range client.streams {
				metrics.ActiveWebSocketConnections.WithLabelValues(stream).Inc()
			}
			h.logger.Info("WebSocket client connected",
				"clientId", client.userID,
				"streams", streamNames(client.streams),
			)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				for stream := range client.streams {
					metrics.ActiveWebSocketConnections.WithLabelValues(stream).Dec()
				}
			}
			h.mu.Unlock()
			h.logger.Info("WebSocket client disconnected", "clientId", client.userID)

		case <-ctx.Done():
			return
		}
	}
}

// PublishAlertEvent satisfies the engine's event sink. Escalation events also
// land on the dedicated escalations stream.
func (h *Hub) PublishAlertEvent(event string, alert *models.Alert) {
	streams := []string{StreamAlerts}
	if event == "alert.escalated" {
		streams = append(streams, StreamEscalations)
	}
	h.broadcast(event, alert, streams...)
}

// PublishNotification reports a delivery attempt on the notifications stream.
func (h *Hub) PublishNotification(alertID string, record models.NotificationRecord) {
	h.broadcast("notification.attempt", map[string]interface{}{
		"alert_id": alertID,
		"record":   record,
	}, StreamNotifications)
}

func (h *Hub) broadcast(event string, data interface{}, streams ...string) {
	message := Message{Type: event, Data: data, Timestamp: time.Now()}
	messageBytes, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Failed to marshal websocket message", "event", event, "error", err)
		return
	}

	h.mu.Lock()
	for client := range h.clients {
		if !subscribed(client.streams, streams) {
			continue
		}
		select {
		case client.send <- messageBytes:
		default:
			// Send buffer full, disconnect the laggard.
			delete(h.clients, client)
			close(client.send)
			for stream := range client.streams {
				metrics.ActiveWebSocketConnections.WithLabelValues(stream).Dec()
			}
		}
	}
	h.mu.Unlock()
}

func subscribed(clientStreams map[string]bool, eventStreams []string) bool {
	for _, s := range eventStreams {
		if clientStreams[s] {
			return true
		}
	}
	return false
}

// NewClient wraps an upgraded connection. The caller registers it on the hub
// and starts its pumps.
func NewClient(hub *Hub, conn *websocket.Conn, userID string, streams map[string]bool, sendBuffer int) *Client {
	if sendBuffer <= 0 {
		sendBuffer = 64
	}
	if len(streams) == 0 {
		streams = map[string]bool{StreamAlerts: true}
	}
	return &Client{
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		userID:  userID,
		streams: streams,
	}
}

func (c *Client) Register() {
	c.hub.register <- c
}

// WritePump drains the send channel onto the connection with a heartbeat ping
// to keep idle proxies from dropping the stream. Every exit path, including
// context cancellation, detaches the client from the hub; the hub ignores a
// second unregister for a client it already dropped.
func (c *Client) WritePump(ctx context.Context) {
	heartbeat := time.NewTicker(30 * time.Second)
	defer func() {
		heartbeat.Stop()
		c.hub.unregister <- c
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-heartbeat.C:
			c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

// ReadPump discards inbound frames and unregisters on error. The stream is
// one-way; reads exist only to notice the peer going away.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(1024)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// ParseStreams turns a comma-separated subscription list into a stream set,
// ignoring blanks and unknown names.
func ParseStreams(raw string) map[string]bool {
	out := make(map[string]bool)
	for _, part := range strings.Split(raw, ",") {
		switch strings.TrimSpace(part) {
		case StreamAlerts:
			out[StreamAlerts] = true
		case StreamEscalations:
			out[StreamEscalations] = true
		case StreamNotifications:
			out[StreamNotifications] = true
		}
	}
	return out
}

func streamNames(streams map[string]bool) []string {
	names := make([]string, 0, len(streams))
	for s := range streams {
		names = append(names, s)
	}
	return names
}
