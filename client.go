package psyclient

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	internalaudit "github.com/deineapp/psyclient/internal/audit"
	internalmetrics "github.com/deineapp/psyclient/internal/metrics"
	"github.com/deineapp/psyclient/token"
)

// Client defines a public type used by psyclient APIs.
//
// Client instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
// All methods are safe for concurrent use.
type Client struct {
	config  Config
	session *sessionManager
	http    *http.Client
	audit   *internalaudit.Dispatcher
	metrics *internalmetrics.Metrics
	log     zerolog.Logger
}

// Close flushes and stops the audit dispatcher.
func (c *Client) Close() {
	if c == nil {
		return
	}
	if c.audit != nil {
		c.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded under pressure.
func (c *Client) AuditDropped() uint64 {
	if c == nil || c.audit == nil {
		return 0
	}
	return c.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of all client metrics.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	if c == nil || c.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return c.metrics.Snapshot()
}

/*
====================================
AUTH OPERATIONS
====================================
*/

// Login authenticates with email and password. On success the token pair is
// persisted and the session becomes Authenticated; on failure the session
// stays Anonymous, LastError is recorded, and the error is returned so the
// caller can render its own feedback.
func (c *Client) Login(ctx context.Context, creds Credentials) (*AuthResponse, error) {
	if c == nil {
		return nil, ErrClientNotReady
	}
	return c.session.login(ctx, creds)
}

// Register creates an account. Contract identical to [Client.Login] against
// the registration endpoint.
func (c *Client) Register(ctx context.Context, input Registration) (*AuthResponse, error) {
	if c == nil {
		return nil, ErrClientNotReady
	}
	return c.session.register(ctx, input)
}

// Logout clears the local session. The server-side logout call is
// best-effort; its failure is logged and never returned.
func (c *Client) Logout(ctx context.Context) error {
	if c == nil {
		return ErrClientNotReady
	}
	return c.session.logout(ctx)
}

// CheckAuthStatus re-synchronizes session state from the token store,
// fetching the profile (and refreshing transparently) when both tokens are
// present. Returns true only for a fully verified session.
func (c *Client) CheckAuthStatus(ctx context.Context) (bool, error) {
	if c == nil {
		return false, ErrClientNotReady
	}
	return c.session.checkAuthStatus(ctx)
}

// CurrentUser fetches the authenticated profile through the pipeline.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	if c == nil {
		return nil, ErrClientNotReady
	}
	return c.fetchMe(ctx)
}

// VerifyToken asks the backend whether the stored access token is valid.
// Unlike the client-side expiry check this includes signature validation.
func (c *Client) VerifyToken(ctx context.Context) (bool, error) {
	pair, err := c.session.tokens(ctx)
	if err != nil {
		return false, err
	}
	if pair.Access == "" {
		return false, nil
	}

	err = c.do(ctx, http.MethodPost, endpointTokenVerify, map[string]string{"token": pair.Access}, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusBadRequest) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Tokens returns the persisted access/refresh pair.
func (c *Client) Tokens(ctx context.Context) (token.Pair, error) {
	return c.session.tokens(ctx)
}

// IsAuthenticated is a pure store read: both tokens present. No refresh, no
// network call. Use [Client.CheckAuthStatus] for a verified answer.
func (c *Client) IsAuthenticated(ctx context.Context) bool {
	return c.session.isAuthenticated(ctx)
}

// State returns a snapshot of the session state machine.
func (c *Client) State() SessionSnapshot {
	if c == nil {
		return SessionSnapshot{State: StateAnonymous}
	}
	return c.session.snapshot()
}

// LastError returns the recorded user-facing error message, if any.
func (c *Client) LastError() string {
	return c.session.snapshot().LastError
}

// ClearError clears the recorded error without a state transition.
func (c *Client) ClearError() {
	c.session.clearError()
}

/*
====================================
PASSWORD MANAGEMENT
====================================
*/

// RequestPasswordReset asks the backend to mail a reset link.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	err := c.do(ctx, http.MethodPost, endpointForgotPassword, map[string]string{"email": email}, nil)
	if err != nil {
		c.emitReset(ctx, false, err)
		return wrapAPIClass(err, ErrPasswordResetRejected)
	}
	c.metrics.Inc(internalmetrics.MetricPasswordResetRequest)
	c.emitReset(ctx, true, nil)
	return nil
}

// ResetPassword completes a password reset with the uid and token from the
// reset link.
func (c *Client) ResetPassword(ctx context.Context, uid, resetToken, newPassword string) error {
	err := c.do(ctx, http.MethodPost, endpointConfirmPassword, map[string]string{
		"uid":          uid,
		"token":        resetToken,
		"new_password": newPassword,
	}, nil)
	if err != nil {
		c.emitReset(ctx, false, err)
		return wrapAPIClass(err, ErrPasswordResetRejected)
	}
	c.metrics.Inc(internalmetrics.MetricPasswordResetConfirm)
	c.emitReset(ctx, true, nil)
	return nil
}

// ChangePassword changes the authenticated user's password.
func (c *Client) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	return c.do(ctx, http.MethodPut, endpointChangePassword, map[string]string{
		"old_password": oldPassword,
		"new_password": newPassword,
	}, nil)
}

/*
====================================
PROFILE
====================================
*/

// UpdateProfile partially updates the authenticated profile and returns the
// server's view of it.
func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodPatch, endpointProfile, update, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

/*
====================================
GENERIC REQUESTS
====================================
*/

// Get performs an authenticated GET through the pipeline, decoding a JSON
// response into out. Domain packages (moods, breathing, chat) build on these
// helpers instead of owning their own HTTP stacks.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Post performs an authenticated POST through the pipeline.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

// Patch performs an authenticated PATCH through the pipeline.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPatch, path, body, out)
}

// Delete performs an authenticated DELETE through the pipeline.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) fetchMe(ctx context.Context) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, endpointMe, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if c == nil {
		return ErrClientNotReady
	}
	req, err := newJSONRequest(ctx, method, joinURL(c.config.API.BaseURL, path), body)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	if err := decodeResponse(resp, out); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
			apiErr.wrapped = ErrUnauthorized
		}
		return err
	}
	return nil
}

func (c *Client) emitReset(ctx context.Context, success bool, cause error) {
	if c.audit == nil {
		return
	}
	event := internalaudit.Event{
		Timestamp: c.session.now(),
		EventType: internalaudit.EventPasswordReset,
		Success:   success,
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	c.audit.Emit(ctx, event)
}

// wrapAPIClass tags a 4xx API error with its sentinel class, leaving network
// and server errors untouched.
func wrapAPIClass(err error, sentinel error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode < 500 && apiErr.wrapped == nil {
		apiErr.wrapped = sentinel
	}
	return err
}
