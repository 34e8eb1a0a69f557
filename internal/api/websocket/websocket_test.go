package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/oraclewatch/core/internal/models"
	"github.com/oraclewatch/core/pkg/logger"
)

func TestParseStreams(t *testing.T) {
	cases := []struct {
		raw  string
		want []string
	}{
		{"alerts", []string{StreamAlerts}},
		{"alerts, escalations", []string{StreamAlerts, StreamEscalations}},
		{"alerts,alerts,notifications", []string{StreamAlerts, StreamNotifications}},
		{"bogus, ,", nil},
		{"", nil},
	}
	for _, tc := range cases {
		got := ParseStreams(tc.raw)
		if len(got) != len(tc.want) {
			t.Errorf("ParseStreams(%q) = %v, want %v", tc.raw, got, tc.want)
			continue
		}
		for _, s := range tc.want {
			if !got[s] {
				t.Errorf("ParseStreams(%q) missing %q", tc.raw, s)
			}
		}
	}
}

func addTestClient(h *Hub, buffer int, streams ...string) *Client {
	set := make(map[string]bool, len(streams))
	for _, s := range streams {
		set[s] = true
	}
	c := &Client{hub: h, send: make(chan []byte, buffer), streams: set}
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
	return c
}

func TestPublishAlertEventRouting(t *testing.T) {
	h := NewHub(logger.NewNop())
	alertSub := addTestClient(h, 4, StreamAlerts)
	escalationSub := addTestClient(h, 4, StreamEscalations)
	notificationSub := addTestClient(h, 4, StreamNotifications)

	h.PublishAlertEvent("alert.created", &models.Alert{ID: "a1"})

	if len(alertSub.send) != 1 {
		t.Fatalf("alerts subscriber got %d messages, want 1", len(alertSub.send))
	}
	if len(escalationSub.send) != 0 {
		t.Fatalf("escalations subscriber got a created event")
	}

	var msg Message
	if err := json.Unmarshal(<-alertSub.send, &msg); err != nil {
		t.Fatalf("unmarshal broadcast: %v", err)
	}
	if msg.Type != "alert.created" {
		t.Errorf("message type = %q, want alert.created", msg.Type)
	}

	// Escalations land on both the alerts and escalations streams.
	h.PublishAlertEvent("alert.escalated", &models.Alert{ID: "a1"})
	if len(alertSub.send) != 1 || len(escalationSub.send) != 1 {
		t.Fatalf("escalated event fan-out wrong: alerts=%d escalations=%d",
			len(alertSub.send), len(escalationSub.send))
	}
	if len(notificationSub.send) != 0 {
		t.Fatalf("notifications subscriber got an alert event")
	}
}

func TestPublishNotification(t *testing.T) {
	h := NewHub(logger.NewNop())
	sub := addTestClient(h, 4, StreamNotifications)

	h.PublishNotification("a1", models.NotificationRecord{
		Channel: "email",
		Outcome: models.NotificationSent,
	})

	if len(sub.send) != 1 {
		t.Fatalf("notifications subscriber got %d messages, want 1", len(sub.send))
	}
	var msg Message
	if err := json.Unmarshal(<-sub.send, &msg); err != nil {
		t.Fatalf("unmarshal broadcast: %v", err)
	}
	if msg.Type != "notification.attempt" {
		t.Errorf("message type = %q, want notification.attempt", msg.Type)
	}
}

func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func waitForClients(t *testing.T, h *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.clientCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("hub has %d clients, want %d", h.clientCount(), want)
}

func TestWritePumpUnregistersOnContextCancel(t *testing.T) {
	h := NewHub(logger.NewNop())
	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	go h.Run(hubCtx)

	clientCtx, clientCancel := context.WithCancel(context.Background())
	defer clientCancel()

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		client := NewClient(h, conn, "c1", map[string]bool{StreamAlerts: true}, 4)
		client.Register()
		go client.WritePump(clientCtx)
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	waitForClients(t, h, 1)

	// Cancelling the request context alone must detach the client; nothing is
	// broadcast and the peer never disconnects.
	clientCancel()
	waitForClients(t, h, 0)
}

func TestSlowClientDropped(t *testing.T) {
	h := NewHub(logger.NewNop())
	slow := addTestClient(h, 1, StreamAlerts)
	healthy := addTestClient(h, 4, StreamAlerts)

	// Fill the slow client's buffer, then broadcast again: it gets dropped,
	// the healthy client keeps receiving.
	h.PublishAlertEvent("alert.created", &models.Alert{ID: "a1"})
	h.PublishAlertEvent("alert.created", &models.Alert{ID: "a2"})

	h.mu.RLock()
	_, slowStillThere := h.clients[slow]
	_, healthyStillThere := h.clients[healthy]
	h.mu.RUnlock()

	if slowStillThere {
		t.Error("slow client was not dropped")
	}
	if !healthyStillThere {
		t.Error("healthy client was dropped")
	}
	if len(healthy.send) != 2 {
		t.Errorf("healthy client got %d messages, want 2", len(healthy.send))
	}
}
