package devtools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hctx-dev/hctx/pkg/hctx"
)

// DefaultHistory is how many dispatch records a Hub keeps.
const DefaultHistory = 256

// clientBuffer is the per-client send queue. Records for a client whose
// queue is full are dropped.
const clientBuffer = 64

// Record is one finished dispatch as sent to devtools clients.
type Record struct {
	Seq       uint64            `json:"seq"`
	Time      time.Time         `json:"time"`
	Info      hctx.DispatchInfo `json:"info"`
	Node      string            `json:"node,omitempty"`
	Outcome   hctx.Outcome      `json:"outcome"`
	Error     string            `json:"error,omitempty"`
	ElapsedMS float64           `json:"elapsedMs"`
}

// Hub streams dispatch records to websocket clients and keeps a short
// history. It implements hctx.Observer and never blocks the runtime.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*client]bool
	history  []Record
	limit    int
	seq      uint64
	upgrader websocket.Upgrader
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

var _ hctx.Observer = (*Hub)(nil)

// NewHub creates a hub keeping the last history records (DefaultHistory
// when history <= 0).
func NewHub(history int) *Hub {
	if history <= 0 {
		history = DefaultHistory
	}
	return &Hub{
		clients: make(map[*client]bool),
		limit:   history,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // devtools is a local tool
			},
		},
	}
}

// DispatchStart implements hctx.Observer.
func (h *Hub) DispatchStart(ctx context.Context, _ hctx.DispatchInfo) context.Context {
	return ctx
}

// DispatchEnd implements hctx.Observer.
func (h *Hub) DispatchEnd(_ context.Context, info hctx.DispatchInfo, res hctx.Result) {
	rec := Record{
		Time:      time.Now(),
		Info:      info,
		Outcome:   res.Outcome,
		ElapsedMS: float64(res.Elapsed.Microseconds()) / 1000,
	}
	if info.Node != nil {
		rec.Node = fmt.Sprint(info.Node)
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq++
	rec.Seq = h.seq
	h.history = append(h.history, rec)
	if over := len(h.history) - h.limit; over > 0 {
		h.history = append(h.history[:0], h.history[over:]...)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	// Sends happen under mu so a disconnecting client cannot close its
	// queue in between.
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
		}
	}
}

// History returns the retained records, oldest first.
func (h *Hub) History() []Record {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]Record(nil), h.history...)
}

// HandleWebSocket upgrades the request and streams records until the
// client disconnects.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, req *http.Request) {
	conn, err := h.upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for data := range c.send {
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}()

	// Keep connection alive until client disconnects
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	close(c.send)
	<-done
	conn.Close()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects all clients.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.conn.Close()
	}
}
