package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func serveHub(t *testing.T, hub *ProgressHub, testID uint, served chan<- struct{}) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeProgressWs(hub, w, r, testID, 1)
		if served != nil {
			close(served)
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func readWSMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg WSMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatal(err)
	}
	return msg
}

func TestProgressHubDeliversSubmissions(t *testing.T) {
	hub := NewProgressHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	conn, _, err := websocket.DefaultDialer.Dial(serveHub(t, hub, 7, nil), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers(7) != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	score := 50.0
	hub.Publish(ctx, ProgressEvent{TestID: 8, SubmissionID: 1})
	hub.Publish(ctx, ProgressEvent{TestID: 7, SubmissionID: 2, Score: &score})

	msg := readWSMessage(t, conn)
	if msg.Type != "SUBMISSION" {
		t.Fatalf("type = %q", msg.Type)
	}
	data, _ := msg.Data.(map[string]interface{})
	if data["submission_id"] != float64(2) {
		t.Fatalf("received event for another test: %v", msg.Data)
	}

	if err := conn.WriteJSON(WSMessage{Type: "PING"}); err != nil {
		t.Fatal(err)
	}
	if msg := readWSMessage(t, conn); msg.Type != "PONG" {
		t.Fatalf("type = %q", msg.Type)
	}

	cancel()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("connection still open after hub stopped")
	}
}

func TestProgressHubServeAfterStopDoesNotBlock(t *testing.T) {
	hub := NewProgressHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}

	served := make(chan struct{})
	conn, _, err := websocket.DefaultDialer.Dial(serveHub(t, hub, 7, served), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	select {
	case <-served:
	case <-time.After(2 * time.Second):
		t.Fatal("handler blocked registering with a stopped hub")
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Fatalf("expected going-away close, got %v", err)
	}
	if hub.Subscribers(7) != 0 {
		t.Fatal("stopped hub accepted a subscriber")
	}
}
