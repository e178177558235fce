package gateway

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"essence/internal/session"
)

type streamCounter struct {
	recordingObserver
	open atomic.Int64
}

func (s *streamCounter) StreamOpened() { s.open.Add(1) }
func (s *streamCounter) StreamClosed() { s.open.Add(-1) }

func startEventServer(t *testing.T, sessions SessionService, obs RequestObserver) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := SetupRouter(Deps{
		Sessions:       sessions,
		Blog:           &fakeBlog{},
		Observer:       obs,
		Logger:         quietLogger(),
		AllowedOrigins: []string{"http://localhost:5173"},
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/session/events"
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("Condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSessionEvents_StreamsSnapshots(t *testing.T) {
	sessions := &fakeSessions{}
	obs := &streamCounter{}
	url := startEventServer(t, sessions, obs)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var snap session.Snapshot
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("Failed to read initial snapshot: %v", err)
	}
	if snap.Authenticated {
		t.Errorf("Expected anonymous initial snapshot, got %+v", snap)
	}
	if obs.open.Load() != 1 {
		t.Errorf("Expected one open stream, got %d", obs.open.Load())
	}

	sessions.publish(session.Snapshot{
		Authenticated: true,
		User:          &session.UserProfile{ID: "1", Username: "bob"},
	})
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("Failed to read update: %v", err)
	}
	if !snap.Authenticated || snap.User == nil || snap.User.Username != "bob" {
		t.Errorf("Expected login update, got %+v", snap)
	}

	sessions.publish(session.Snapshot{})
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("Failed to read update: %v", err)
	}
	if snap.Authenticated || snap.User != nil {
		t.Errorf("Expected logout update, got %+v", snap)
	}

	conn.Close()
	waitFor(t, func() bool { return obs.open.Load() == 0 })
}

func TestSessionEvents_RejectsForeignOrigin(t *testing.T) {
	url := startEventServer(t, &fakeSessions{}, nil)

	header := http.Header{}
	header.Set("Origin", "https://evil.example")
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		t.Fatal("Expected handshake to fail for a foreign origin")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("Expected 403, got %v", resp)
	}
}

func TestSessionEvents_AllowedOrigin(t *testing.T) {
	sessions := loggedIn("bob")
	url := startEventServer(t, sessions, nil)

	header := http.Header{}
	header.Set("Origin", "http://localhost:5173")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var snap session.Snapshot
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatal(err)
	}
	if !snap.Authenticated || snap.User.Username != "bob" {
		t.Errorf("Expected current session first, got %+v", snap)
	}
}
