package signaling

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
)

// newEchoServer accepts one WebSocket connection, replies to register with a
// Registered frame, and records every frame type it receives after that on
// the given channel.
func newEchoServer(t *testing.T, received chan<- string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()

		ctx := r.Context()
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var env Envelope
			if json.Unmarshal(data, &env) != nil {
				continue
			}
			if env.Type == TypeRegister || env.Type == TypeRegisterWithSetup {
				_ = conn.Write(ctx, websocket.MessageText, []byte(`{"type":"registered","device_id":"dev-1"}`))
				continue
			}
			received <- env.Type
		}
	}))
	return srv
}

func TestConnectAndServeSendsDeregisterOnContextCancel(t *testing.T) {
	received := make(chan string, 4)
	srv := newEchoServer(t, received)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	link := NewLink(wsURL, "secret", "", "test-device", "v1", nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- link.Run(ctx) }()

	// Give the link time to connect and register before cancelling.
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}

	select {
	case frameType := <-received:
		if frameType != TypeDeregister {
			t.Fatalf("frame type = %q, want %q", frameType, TypeDeregister)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received a Deregister frame")
	}
}
