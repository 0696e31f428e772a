package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// DiagnosticsBroadcaster pushes structured compile-log events to connected
// websocket clients, adapted from the teacher's cluster-state Broadcaster:
// same fan-out-over-a-client-set shape, a different event payload.
type DiagnosticsBroadcaster struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]bool
	log     zerolog.Logger
}

func NewDiagnosticsBroadcaster(log zerolog.Logger) *DiagnosticsBroadcaster {
	return &DiagnosticsBroadcaster{
		clients: make(map[*websocket.Conn]bool),
		log:     log,
	}
}

// HandleWS is the WebSocket upgrade handler for /ws.
func (b *DiagnosticsBroadcaster) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	b.mu.Lock()
	b.clients[conn] = true
	n := len(b.clients)
	b.mu.Unlock()
	b.log.Info().Int("clients", n).Msg("diagnostics client connected")

	go func() {
		defer func() {
			b.mu.Lock()
			delete(b.clients, conn)
			n := len(b.clients)
			b.mu.Unlock()
			conn.Close()
			b.log.Info().Int("clients", n).Msg("diagnostics client disconnected")
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// CompileEvent is one structured progress point in a /compile request's
// lifecycle: pass boundary, resolved node count, union slot count, or a
// warning raised by the resolver.
type CompileEvent struct {
	RequestID string `json:"request_id"`
	Stage     string `json:"stage"`
	Message   string `json:"message"`
	NodeCount int     `json:"node_count,omitempty"`
	UnionSlots int    `json:"union_slots,omitempty"`
}

// Broadcast sends event to every connected websocket client.
func (b *DiagnosticsBroadcaster) Broadcast(event CompileEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for conn := range b.clients {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			conn.Close()
			delete(b.clients, conn)
		}
	}
}
