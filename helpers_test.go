package psyclient

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

func testUser() User {
	return User{
		ID:       7,
		Username: "anna",
		Email:    "anna@example.com",
		Level:    3,
		Points:   120,
	}
}

// stubBackend is an in-process stand-in for the API server. It issues real
// (HS256-signed) tokens so expiry decoding behaves exactly as in production,
// and it rejects any bearer token other than the one it issued last.
type stubBackend struct {
	t      *testing.T
	server *httptest.Server

	mu     sync.Mutex
	access string
	user   User

	rejectLogin   bool
	rejectRefresh bool
	rejectReset   bool
	failLogout    bool
	refreshDelay  time.Duration

	loginCalls   atomic.Int64
	refreshCalls atomic.Int64
	meCalls      atomic.Int64
	logoutCalls  atomic.Int64

	lastLogoutRefresh string
	lastRegistration  Registration
	lastResetEmail    string
}

func newStubBackend(t *testing.T) *stubBackend {
	t.Helper()

	b := &stubBackend{t: t, user: testUser()}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login/", b.handleLogin)
	mux.HandleFunc("POST /auth/register/", b.handleRegister)
	mux.HandleFunc("POST /auth/token/refresh/", b.handleRefresh)
	mux.HandleFunc("POST /auth/token/verify/", b.handleVerify)
	mux.HandleFunc("POST /auth/logout/", b.handleLogout)
	mux.HandleFunc("GET /auth/me/", b.handleMe)
	mux.HandleFunc("PATCH /users/profile/", b.handleProfile)
	mux.HandleFunc("POST /auth/password/reset/", b.handleForgotPassword)
	mux.HandleFunc("POST /auth/password/reset/confirm/", b.handleConfirmPassword)
	mux.HandleFunc("PUT /auth/change-password/", b.handleChangePassword)

	b.server = httptest.NewServer(mux)
	t.Cleanup(b.server.Close)
	return b
}

func (b *stubBackend) URL() string { return b.server.URL }

func (b *stubBackend) currentAccess() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.access
}

// issueAccess mints a fresh access token and makes it the only one the
// backend accepts.
func (b *stubBackend) issueAccess() string {
	access := mintToken(b.t, b.user.ID, time.Now().Add(15*time.Minute))
	b.mu.Lock()
	b.access = access
	b.mu.Unlock()
	return access
}

func (b *stubBackend) issueRefresh() string {
	return mintToken(b.t, b.user.ID, time.Now().Add(24*time.Hour))
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (b *stubBackend) handleLogin(w http.ResponseWriter, r *http.Request) {
	b.loginCalls.Add(1)

	var creds Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeDetail(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if b.rejectLogin {
		writeDetail(w, http.StatusUnauthorized, "No active account found with the given credentials")
		return
	}
	writeJSON(w, http.StatusOK, AuthResponse{
		Access:  b.issueAccess(),
		Refresh: b.issueRefresh(),
		User:    b.user,
	})
}

func (b *stubBackend) handleRegister(w http.ResponseWriter, r *http.Request) {
	var input Registration
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeDetail(w, http.StatusBadRequest, "malformed request body")
		return
	}
	b.mu.Lock()
	b.lastRegistration = input
	b.mu.Unlock()

	if input.PasswordConfirm != input.Password {
		writeDetail(w, http.StatusBadRequest, "password fields didn't match")
		return
	}
	writeJSON(w, http.StatusCreated, AuthResponse{
		Access:  b.issueAccess(),
		Refresh: b.issueRefresh(),
		User:    b.user,
	})
}

func (b *stubBackend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	b.refreshCalls.Add(1)
	if b.refreshDelay > 0 {
		time.Sleep(b.refreshDelay)
	}

	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Refresh == "" {
		writeDetail(w, http.StatusBadRequest, "refresh field is required")
		return
	}
	if b.rejectRefresh {
		writeDetail(w, http.StatusUnauthorized, "Token is blacklisted")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access": b.issueAccess()})
}

func (b *stubBackend) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Token != b.currentAccess() {
		writeDetail(w, http.StatusUnauthorized, "Token is invalid or expired")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (b *stubBackend) handleLogout(w http.ResponseWriter, r *http.Request) {
	b.logoutCalls.Add(1)

	var req struct {
		Refresh string `json:"refresh"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	b.mu.Lock()
	b.lastLogoutRefresh = req.Refresh
	b.mu.Unlock()

	if b.failLogout {
		writeDetail(w, http.StatusInternalServerError, "logout unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (b *stubBackend) handleMe(w http.ResponseWriter, r *http.Request) {
	b.meCalls.Add(1)

	if r.Header.Get("Authorization") != "Bearer "+b.currentAccess() {
		writeDetail(w, http.StatusUnauthorized, "Given token not valid for any token type")
		return
	}
	writeJSON(w, http.StatusOK, b.user)
}

func (b *stubBackend) handleProfile(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer "+b.currentAccess() {
		writeDetail(w, http.StatusUnauthorized, "Given token not valid for any token type")
		return
	}
	var update ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeDetail(w, http.StatusBadRequest, "malformed request body")
		return
	}
	b.mu.Lock()
	if update.Username != nil {
		b.user.Username = *update.Username
	}
	if update.Email != nil {
		b.user.Email = *update.Email
	}
	if update.FirstName != nil {
		b.user.FirstName = *update.FirstName
	}
	user := b.user
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, user)
}

func (b *stubBackend) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	b.mu.Lock()
	b.lastResetEmail = req.Email
	b.mu.Unlock()

	if b.rejectReset {
		writeDetail(w, http.StatusBadRequest, "No account found for this email.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"detail": "Password reset e-mail has been sent."})
}

func (b *stubBackend) handleConfirmPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UID         string `json:"uid"`
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		writeDetail(w, http.StatusBadRequest, "Invalid reset token.")
		return
	}
	if b.rejectReset {
		writeDetail(w, http.StatusBadRequest, "Invalid reset token.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"detail": "Password has been reset."})
}

func (b *stubBackend) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer "+b.currentAccess() {
		writeDetail(w, http.StatusUnauthorized, "Given token not valid for any token type")
		return
	}
	var req struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OldPassword == "" {
		writeDetail(w, http.StatusBadRequest, "old_password is required")
		return
	}
	if req.OldPassword != "secret123" {
		writeDetail(w, http.StatusBadRequest, "Wrong password.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"detail": "Password updated successfully."})
}

func newTestClient(t *testing.T, backend *stubBackend, st store.Store) *Client {
	t.Helper()

	if st == nil {
		st = store.NewMemory()
	}
	client, err := New().
		WithBaseURL(backend.URL()).
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
