package wsstatus

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestHubBroadcastsToConnectedClient(t *testing.T) {
	hub := NewHub()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r)
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// give the hub a moment to register the new client before publishing
	time.Sleep(50 * time.Millisecond)
	hub.Publish(StatusEvent{Type: "workflow_status", Payload: map[string]string{"workflow_id": "wf-1"}})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read message: %v", err)
	}

	var ev StatusEvent
	if err := json.Unmarshal(msg, &ev); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if ev.Type != "workflow_status" {
		t.Errorf("expected workflow_status event, got %q", ev.Type)
	}
}

func TestPublishDropsWhenNoClientsWithoutBlocking(t *testing.T) {
	hub := NewHub()
	done := make(chan struct{})
	go func() {
		hub.Publish(StatusEvent{Type: "agent_status", Payload: nil})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked with no connected clients")
	}
}
