// Package wsstatus broadcasts live WorkflowStatus/AgentStatus snapshots
// to connected operators over WebSocket, adapted from the teacher's
// ws.Hub register/unregister/broadcast select loop (gorilla/websocket),
// generalized from market ticks to orchestrator status events.
package wsstatus

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// StatusEvent is one broadcast unit: either a workflow update or an
// agent-board snapshot, tagged by Type.
type StatusEvent struct {
	Type      string    `json:"type"` // "workflow_status" | "agent_status"
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub maintains connected operator dashboards and fans out StatusEvents.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
}

func NewHub() *Hub {
	h := &Hub{
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 1024),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("[wsstatus] dashboard connected, total=%d", count)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// slow consumer: drop this update, it will get the next one
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Publish broadcasts ev to every connected dashboard.
func (h *Hub) Publish(ev StatusEvent) {
	ev.Timestamp = time.Now().UTC()
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[wsstatus] marshal event: %v", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		log.Printf("[wsstatus] broadcast buffer full, dropping %s event", ev.Type)
	}
}

// ServeWs upgrades the request and pumps broadcast messages to the new
// client until it disconnects.
func ServeWs(h *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[wsstatus] upgrade failed: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 64)}
	h.register <- c

	go c.writePump(h)
	go c.readPump(h)
}

func (c *client) writePump(h *Hub) {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// readPump drains and discards inbound frames so pong control frames
// are processed; a dashboard connection never sends application data.
func (c *client) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
