package api

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ReviewEvent describes websocket payloads emitted during batch review runs.
type ReviewEvent struct {
	Type      string       `json:"type"`
	JobID     string       `json:"job_id"`
	BatchID   uint         `json:"batch_id"`
	Total     int64        `json:"total,omitempty"`
	Processed int          `json:"processed,omitempty"`
	Analysis  *AnalysisDTO `json:"analysis,omitempty"`
	Message   string       `json:"message,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// wsClient wraps a websocket connection with write locking.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// ReviewNotifier keeps track of active websocket clients and broadcasts
// review events.
type ReviewNotifier struct {
	mu         sync.Mutex
	clients    map[*wsClient]struct{}
	lastStatus *ReviewEvent
}

// NewReviewNotifier constructs a notifier instance.
func NewReviewNotifier() *ReviewNotifier {
	return &ReviewNotifier{clients: make(map[*wsClient]struct{})}
}

// Register attaches a websocket connection and returns a client handle. The
// last known job status is replayed to the new client.
func (n *ReviewNotifier) Register(conn *websocket.Conn) *wsClient {
	client := &wsClient{conn: conn}
	n.mu.Lock()
	n.clients[client] = struct{}{}
	status := n.lastStatus
	n.mu.Unlock()

	if status != nil {
		_ = client.writeJSON(*status)
	}
	return client
}

// Unregister removes the websocket client from the notifier and closes the
// socket.
func (n *ReviewNotifier) Unregister(client *wsClient) {
	if client == nil {
		return
	}
	n.mu.Lock()
	delete(n.clients, client)
	n.mu.Unlock()
	_ = client.conn.Close()
}

// Broadcast sends the supplied event to all registered websocket clients.
func (n *ReviewNotifier) Broadcast(event ReviewEvent) {
	event.Timestamp = time.Now().UTC()

	n.mu.Lock()
	if event.Type == "progress" || event.Type == "analysis" || event.Type == "started" {
		snapshot := event
		if snapshot.Analysis != nil {
			snapshot.Analysis = nil
		}
		n.lastStatus = &snapshot
	}

	for client := range n.clients {
		if err := client.writeJSON(event); err != nil {
			delete(n.clients, client)
			_ = client.conn.Close()
		}
	}
	n.mu.Unlock()
}

// LastStatus returns a copy of the most recent status-bearing event.
func (n *ReviewNotifier) LastStatus() *ReviewEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.lastStatus == nil {
		return nil
	}
	copy := *n.lastStatus
	return &copy
}

func (c *wsClient) writeJSON(payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(payload)
}
