package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"essence/internal/api"
	"essence/internal/session"
)

// stubAuthServer accepts bob/correct and answers 401 otherwise
func stubAuthServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req api.LoginRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Username != "bob" || req.Password != "correct" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token":"t1","user":{"id":"1","username":"bob"}}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newManager(t *testing.T, baseURL string) (*session.Manager, *session.MemoryStore) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := api.NewClient(api.StaticURL(baseURL), api.WithLogger(logger))
	store := session.NewMemoryStore()
	m := session.NewManager(store, client, session.WithLogger(logger))
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	return m, store
}

func TestEndToEnd_LoginAgainstStub(t *testing.T) {
	srv := stubAuthServer(t)
	m, _ := newManager(t, srv.URL)

	if _, err := m.Login(context.Background(), "bob", "correct"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	snap := m.Current()
	if !snap.Authenticated {
		t.Fatal("Expected authenticated")
	}
	if snap.User.ID != "1" || snap.User.Username != "bob" {
		t.Errorf("Expected {id:1 username:bob}, got %+v", snap.User)
	}
}

func TestEndToEnd_RejectedLoginLeavesSessionUnchanged(t *testing.T) {
	srv := stubAuthServer(t)
	m, store := newManager(t, srv.URL)

	before := m.Current()
	_, err := m.Login(context.Background(), "bob", "wrong")
	if !errors.Is(err, api.ErrRejected) {
		t.Fatalf("Expected ErrRejected, got %v", err)
	}

	after := m.Current()
	if after.Authenticated != before.Authenticated || after.User != nil {
		t.Errorf("Expected unchanged session, got %+v", after)
	}
	if store.Has(session.TokenKey(session.DefaultProfile)) {
		t.Error("Nothing must be stored after a rejected login")
	}
}

func TestEndToEnd_TokenFlowsToLaterRequests(t *testing.T) {
	var gotAuth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/user-info":
			w.Write([]byte(`{"token":"t1","user":{"id":"1","username":"bob"}}`))
		case r.Method == http.MethodGet && r.URL.Path == "/user-info":
			gotAuth.Store(r.Header.Get("Authorization"))
			w.Write([]byte(`{"id":"1","username":"bob","email":"bob@example.com"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := api.NewClient(api.StaticURL(srv.URL), api.WithLogger(logger))
	m := session.NewManager(session.NewMemoryStore(), client, session.WithLogger(logger))
	_ = m.Initialize(context.Background())
	authed := client.WithTokens(m)

	if _, err := m.Login(context.Background(), "bob", "pw"); err != nil {
		t.Fatal(err)
	}
	info, err := authed.UserInfo(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got := gotAuth.Load(); got != "Bearer t1" {
		t.Errorf("Expected bearer t1, got %q", got)
	}
	if info.Email != "bob@example.com" {
		t.Errorf("Unexpected profile %+v", info)
	}

	m.Logout(context.Background())
	if _, err := authed.UserInfo(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := gotAuth.Load(); got != "" {
		t.Errorf("Expected no token after logout, got %q", got)
	}
}
