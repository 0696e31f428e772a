package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestBroadcastWithNoClientsIsNoop(t *testing.T) {
	b := NewDiagnosticsBroadcaster(zerolog.Nop())
	require.NotPanics(t, func() {
		b.Broadcast(CompileEvent{RequestID: "r1", Stage: "start", Message: "hi"})
	})
}

func TestHandleWSDeliversBroadcastEvents(t *testing.T) {
	b := NewDiagnosticsBroadcaster(zerolog.Nop())
	mux := httptest.NewServer(http.HandlerFunc(b.HandleWS))
	defer mux.Close()

	wsURL := "ws" + strings.TrimPrefix(mux.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// give HandleWS's goroutine time to register the client before broadcasting
	require.Eventually(t, func() bool {
		b.mu.RLock()
		n := len(b.clients)
		b.mu.RUnlock()
		return n == 1
	}, time.Second, 10*time.Millisecond)

	b.Broadcast(CompileEvent{RequestID: "r1", Stage: "done", Message: "ok"})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Contains(t, string(msg), `"request_id":"r1"`)
	require.Contains(t, string(msg), `"stage":"done"`)
}
