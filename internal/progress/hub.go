package progress

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Update is one progress message pushed to subscribers.
type Update struct {
	RunID     string    `json:"run_id"`
	Stage     string    `json:"stage"`
	Completed int       `json:"completed"`
	Total     int       `json:"total"`
	Percent   float64   `json:"percent"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub fans progress updates out to websocket subscribers. Slow or dead
// clients are dropped rather than blocking the optimization.
type Hub struct {
	logger   *logrus.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*websocket.Conn]bool
	last    *Update
}

// NewHub creates a new progress hub
func NewHub(logger *logrus.Logger) *Hub {
	if logger == nil {
		logger = logrus.New()
	}
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]bool),
	}
}

// Broadcast pushes an update to every connected client.
func (h *Hub) Broadcast(update Update) {
	if update.Timestamp.IsZero() {
		update.Timestamp = time.Now().UTC()
	}
	if update.Total > 0 {
		update.Percent = float64(update.Completed) / float64(update.Total) * 100
	}

	h.mu.Lock()
	h.last = &update
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(update); err != nil {
			h.logger.WithError(err).Debug("Dropping slow progress subscriber")
			h.remove(conn)
		}
	}
}

// ProgressFunc adapts the hub to the driver's progress callback.
func (h *Hub) ProgressFunc(runID, stage string) func(completed, total int) {
	return func(completed, total int) {
		h.Broadcast(Update{RunID: runID, Stage: stage, Completed: completed, Total: total})
	}
}

// SubscriberCount returns the number of connected clients
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams updates until the client leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to upgrade progress subscriber")
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	last := h.last
	h.mu.Unlock()

	// new subscribers immediately see where the run stands
	if last != nil {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(*last); err != nil {
			h.remove(conn)
			return
		}
	}

	go h.readLoop(conn)
}

// readLoop drains client frames so pings are answered and closes are seen.
func (h *Hub) readLoop(conn *websocket.Conn) {
	defer h.remove(conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
	h.mu.Unlock()
}

// Close disconnects all subscribers.
func (h *Hub) Close() {
	h.mu.Lock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
	h.mu.Unlock()
}
