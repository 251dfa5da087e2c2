package test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	psyclient "github.com/deineapp/psyclient"
	"github.com/deineapp/psyclient/store"
)

func mintToken(t *testing.T, userID int64, exp time.Time) string {
	t.Helper()

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     exp.Unix(),
	})
	signed, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token failed: %v", err)
	}
	return signed
}

// apiStub is a black-box stand-in for the backend: it only speaks the wire
// protocol, never the client internals.
type apiStub struct {
	t      *testing.T
	server *httptest.Server

	mu     sync.Mutex
	access string

	refreshDelay time.Duration

	refreshCalls atomic.Int64
	meCalls      atomic.Int64
}

func newAPIStub(t *testing.T) *apiStub {
	t.Helper()

	s := &apiStub{t: t}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login/", s.handleLogin)
	mux.HandleFunc("POST /auth/token/refresh/", s.handleRefresh)
	mux.HandleFunc("POST /auth/logout/", s.handleLogout)
	mux.HandleFunc("GET /auth/me/", s.handleMe)

	s.server = httptest.NewServer(mux)
	t.Cleanup(s.server.Close)
	return s
}

func (s *apiStub) issueAccess() string {
	access := mintToken(s.t, 7, time.Now().Add(15*time.Minute))
	s.mu.Lock()
	s.access = access
	s.mu.Unlock()
	return access
}

func (s *apiStub) issueRefresh() string {
	return mintToken(s.t, 7, time.Now().Add(24*time.Hour))
}

func (s *apiStub) currentAccess() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.access
}

func (s *apiStub) user() map[string]any {
	return map[string]any{
		"id":       7,
		"username": "anna",
		"email":    "anna@example.com",
	}
}

func (s *apiStub) handleLogin(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"access":  s.issueAccess(),
		"refresh": s.issueRefresh(),
		"user":    s.user(),
	})
}

func (s *apiStub) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.refreshCalls.Add(1)
	if s.refreshDelay > 0 {
		time.Sleep(s.refreshDelay)
	}
	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Refresh == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "refresh field is required"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access": s.issueAccess()})
}

func (s *apiStub) handleLogout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (s *apiStub) handleMe(w http.ResponseWriter, r *http.Request) {
	s.meCalls.Add(1)
	if r.Header.Get("Authorization") != "Bearer "+s.currentAccess() {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Given token not valid for any token type"})
		return
	}
	writeJSON(w, http.StatusOK, s.user())
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func newClient(t *testing.T, stub *apiStub, st store.Store) *psyclient.Client {
	t.Helper()

	if st == nil {
		st = store.NewMemory()
	}
	client, err := psyclient.New().
		WithBaseURL(stub.server.URL).
		WithTokenStore(st).
		WithMetricsEnabled(true).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(client.Close)
	return client
}

func seedTokens(t *testing.T, st store.Store, access, refresh string) {
	t.Helper()

	ctx := context.Background()
	if err := st.Set(ctx, store.KeyAccess, access); err != nil {
		t.Fatalf("seed access failed: %v", err)
	}
	if err := st.Set(ctx, store.KeyRefresh, refresh); err != nil {
		t.Fatalf("seed refresh failed: %v", err)
	}
}
