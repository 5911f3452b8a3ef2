package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/cddevrks/code-run/internal/job"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // same-origin handled by the deployment, not the server
	},
}

// wsIncoming is a message from the client.
type wsIncoming struct {
	Type  string `json:"type"`
	JobID string `json:"jobId"`
}

// wsError is sent for malformed client messages.
type wsError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// wsClient is one push-channel connection with its job subscriptions.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex // serializes writes to the connection
	jobs map[string]bool
}

func (c *wsClient) subscribed(jobID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.jobs[jobID]
}

func (c *wsClient) writeJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("websocket marshal error: %v", err)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("websocket write error: %v", err)
	}
}

// Hub tracks connected push clients and fans job events out to the
// connections subscribed to each job id.
type Hub struct {
	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*wsClient]struct{})}
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

// Broadcast delivers an event to every connection subscribed to its job.
// Events carry the job id so clients can filter stale deliveries themselves.
func (h *Hub) Broadcast(ev job.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.subscribed(ev.JobID) {
			c.writeJSON(ev)
		}
	}
}

// CloseAll closes every connection, used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.conn.Close()
		delete(h.clients, c)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}

	c := &wsClient{conn: conn, jobs: make(map[string]bool)}
	s.hub.register(c)
	defer func() {
		s.hub.unregister(c)
		conn.Close()
	}()

	// Read loop: the only client message is subscribe(jobId).
	for {
		var msg wsIncoming
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			log.Printf("websocket read error: %v", err)
			return
		}

		if msg.Type != "subscribe" || msg.JobID == "" {
			c.writeJSON(wsError{Type: "error", Error: "invalid message"})
			continue
		}

		c.mu.Lock()
		c.jobs[msg.JobID] = true
		c.mu.Unlock()
	}
}
