package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{}

// testServer upgrades every request to a WebSocket connection, and passes
// it to a handler along with its 1-based index. The handler owns the connection.
type testServer struct {
	*httptest.Server
	conns atomic.Int32
}

func newTestServer(t *testing.T, handler func(i int, ws *websocket.Conn)) *testServer {
	t.Helper()

	s := &testServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Upgrade() error = %v", err)
			return
		}
		i := int(s.conns.Add(1))
		go func() {
			defer ws.Close()
			handler(i, ws)
		}()
	}))
	t.Cleanup(s.Close)

	return s
}

// wsURL converts the test server's HTTP URL to a WebSocket URL.
func (s *testServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

// echo is a server-side handler that echoes data messages until the connection is closed.
func echo(_ int, ws *websocket.Conn) {
	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		if err := ws.WriteMessage(mt, data); err != nil {
			return
		}
	}
}

// hold is a server-side handler that keeps the connection open until the client closes it.
func hold(_ int, ws *websocket.Conn) {
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

// closeWith is a server-side handler that closes the connection immediately.
func closeWith(code StatusCode, reason string) func(int, *websocket.Conn) {
	return func(_ int, ws *websocket.Conn) {
		msg := websocket.FormatCloseMessage(int(code), reason)
		_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		hold(0, ws)
	}
}

func receive[T any](t *testing.T, c <-chan T) T {
	t.Helper()

	select {
	case v, ok := <-c:
		if !ok {
			t.Fatal("channel closed unexpectedly")
		}
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timeout while waiting to receive from channel")
	}

	var zero T
	return zero
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timeout while waiting for condition")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
