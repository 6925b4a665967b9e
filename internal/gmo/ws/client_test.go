package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestClientSubscribeAndReceive(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	subCh := make(chan map[string]any, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept ws: %v", err)
			return
		}
		defer func() { _ = conn.Close(websocket.StatusNormalClosure, "done") }()
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var msg map[string]any
		if err := json.Unmarshal(data, &msg); err == nil {
			subCh <- msg
		}
		_ = conn.Write(ctx, websocket.MessageText, []byte(`{"channel":"orderbooks"}`))
	}))
	defer server.Close()

	client := New(wsURL(server), Options{CloseTimeout: time.Second}, zap.NewNop())
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := client.Subscribe(ctx, map[string]string{"command": "subscribe"}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	received := make(chan string, 1)
	err := client.Run(ctx, func(data []byte) {
		select {
		case received <- string(data):
		default:
		}
	})
	if err == nil {
		t.Fatalf("expected run to end with an error after server close")
	}
	select {
	case msg := <-subCh:
		if msg["command"] != "subscribe" {
			t.Fatalf("expected subscribe message, got %v", msg)
		}
	default:
		t.Fatalf("server did not receive subscription")
	}
	select {
	case got := <-received:
		if got != `{"channel":"orderbooks"}` {
			t.Fatalf("unexpected payload %q", got)
		}
	default:
		t.Fatalf("handler did not receive message")
	}
	if err := client.Subscribe(ctx, map[string]string{}); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected after run, got %v", err)
	}
}

func TestClientKeepaliveTearsDownSilentConnection(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()
		// Never read, so pings are never answered.
		<-release
	}))
	defer server.Close()
	defer close(release)

	client := New(wsURL(server), Options{
		PingInterval: 20 * time.Millisecond,
		PingTimeout:  50 * time.Millisecond,
		CloseTimeout: 50 * time.Millisecond,
	}, zap.NewNop())
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	done := make(chan error, 1)
	go func() {
		done <- client.Run(ctx, nil)
	}()
	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected error from silent connection")
		}
	case <-ctx.Done():
		t.Fatalf("keepalive did not tear down silent connection")
	}
}

func TestRunWithoutConnect(t *testing.T) {
	client := New("ws://unused", Options{}, nil)
	if err := client.Run(context.Background(), nil); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}
