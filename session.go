package psyclient

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	internalaudit "github.com/deineapp/psyclient/internal/audit"
	internalmetrics "github.com/deineapp/psyclient/internal/metrics"
	"github.com/deineapp/psyclient/store"
	"github.com/deineapp/psyclient/token"
)

// Fallback user-facing messages, used when the backend response carries no
// detail payload.
const (
	msgLoginFailed       = "login failed: please check your credentials"
	msgRegisterFailed    = "registration failed: please try again"
	msgStatusCheckFailed = "could not verify authentication status"
)

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type refreshResponse struct {
	Access string `json:"access"`
}

type logoutRequest struct {
	Refresh string `json:"refresh,omitempty"`
}

// sessionManager owns the session state machine. It is the only writer of
// session state and the only component that touches both token keys; the
// pipeline reads tokens and delegates refreshes here.
type sessionManager struct {
	cfg       SessionConfig
	baseURL   string
	userAgent string
	// bare is the transport-only HTTP client used for token endpoints.
	// Auth calls must not run through the pipeline or a refresh could
	// recurse into itself.
	bare    *http.Client
	store   store.Store
	log     zerolog.Logger
	audit   *internalaudit.Dispatcher
	metrics *internalmetrics.Metrics

	// fetchUser runs an authenticated /auth/me/ call through the pipeline.
	// Wired by Builder.Build after the pipeline exists.
	fetchUser func(ctx context.Context) (*User, error)

	now func() time.Time

	refreshGroup singleflight.Group

	mu        sync.Mutex
	state     SessionState
	user      *User
	lastError string
	expiresAt time.Time
}

func newSessionManager(cfg Config, st store.Store, bare *http.Client, log zerolog.Logger, dispatcher *internalaudit.Dispatcher, m *internalmetrics.Metrics) *sessionManager {
	return &sessionManager{
		cfg:       cfg.Session,
		baseURL:   cfg.API.BaseURL,
		userAgent: cfg.API.UserAgent,
		bare:      bare,
		store:     st,
		log:       log,
		audit:     dispatcher,
		metrics:   m,
		now:       time.Now,
		state:     StateAnonymous,
	}
}

/*
====================================
STATE ACCESS
====================================
*/

func (s *sessionManager) snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := SessionSnapshot{
		State:     s.state,
		LastError: s.lastError,
		ExpiresAt: s.expiresAt,
	}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	return snap
}

func (s *sessionManager) clearError() {
	s.mu.Lock()
	s.lastError = ""
	s.mu.Unlock()
}

func (s *sessionManager) setState(state SessionState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *sessionManager) recordFailure(state SessionState, message string) {
	s.mu.Lock()
	s.state = state
	s.lastError = message
	s.mu.Unlock()
}

func (s *sessionManager) recordAuthenticated(user *User, access string) {
	claims, err := token.Decode(access)

	s.mu.Lock()
	s.state = StateAuthenticated
	s.lastError = ""
	if user != nil {
		s.user = user
	}
	if err == nil {
		s.expiresAt = claims.ExpiresAt
	}
	s.mu.Unlock()
}

/*
====================================
TOKEN ACCESS
====================================
*/

// tokens reads the persisted pair. Both keys are re-read on every call: the
// store is the source of truth and either key missing reads as logged out.
func (s *sessionManager) tokens(ctx context.Context) (token.Pair, error) {
	access, err := s.store.Get(ctx, store.KeyAccess)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return token.Pair{}, err
	}
	refresh, err := s.store.Get(ctx, store.KeyRefresh)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return token.Pair{}, err
	}
	return token.Pair{Access: access, Refresh: refresh}, nil
}

func (s *sessionManager) isAuthenticated(ctx context.Context) bool {
	pair, err := s.tokens(ctx)
	return err == nil && pair.Complete()
}

// persistPair writes both keys as one logical operation. A partial write is
// rolled back to absent-absent so readers never trust a half-written pair.
func (s *sessionManager) persistPair(ctx context.Context, pair token.Pair) error {
	if err := s.store.Set(ctx, store.KeyAccess, pair.Access); err != nil {
		return err
	}
	if err := s.store.Set(ctx, store.KeyRefresh, pair.Refresh); err != nil {
		_ = s.store.RemoveAll(ctx, store.KeyAccess, store.KeyRefresh)
		return err
	}
	return nil
}

func (s *sessionManager) clearTokens(ctx context.Context) error {
	return s.store.RemoveAll(ctx, store.KeyAccess, store.KeyRefresh)
}

func (s *sessionManager) expired(raw string) bool {
	return token.Expired(raw, s.now().Add(s.cfg.ExpiryLeeway))
}

/*
====================================
LOGIN / REGISTER
====================================
*/

func (s *sessionManager) login(ctx context.Context, creds Credentials) (*AuthResponse, error) {
	s.setState(StateAuthenticating)

	resp, err := s.obtainPair(ctx, endpointLogin, creds, ErrInvalidCredentials)
	if err != nil {
		// Login failure leaves nothing to clear: the session was anonymous.
		s.recordFailure(StateAnonymous, failureMessage(err, msgLoginFailed))
		s.metrics.Inc(internalmetrics.MetricLoginFailure)
		s.emit(ctx, internalaudit.EventLogin, 0, false, err)
		return nil, err
	}

	s.metrics.Inc(internalmetrics.MetricLoginSuccess)
	s.emit(ctx, internalaudit.EventLogin, resp.User.ID, true, nil)
	return resp, nil
}

func (s *sessionManager) register(ctx context.Context, input Registration) (*AuthResponse, error) {
	if input.PasswordConfirm == "" {
		input.PasswordConfirm = input.Password
	}
	s.setState(StateAuthenticating)

	resp, err := s.obtainPair(ctx, endpointRegister, input, ErrRegistrationRejected)
	if err != nil {
		s.recordFailure(StateAnonymous, failureMessage(err, msgRegisterFailed))
		s.metrics.Inc(internalmetrics.MetricRegisterFailure)
		s.emit(ctx, internalaudit.EventRegister, 0, false, err)
		return nil, err
	}

	s.metrics.Inc(internalmetrics.MetricRegisterSuccess)
	s.emit(ctx, internalaudit.EventRegister, resp.User.ID, true, nil)
	return resp, nil
}

func (s *sessionManager) newRequest(ctx context.Context, method, endpoint string, body any) (*http.Request, error) {
	req, err := newJSONRequest(ctx, method, joinURL(s.baseURL, endpoint), body)
	if err != nil {
		return nil, err
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	return req, nil
}

// obtainPair posts credentials to a token-issuing endpoint, persists the
// returned pair, and transitions to Authenticated.
func (s *sessionManager) obtainPair(ctx context.Context, endpoint string, body any, reject error) (*AuthResponse, error) {
	req, err := s.newRequest(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, err
	}

	httpResp, err := s.bare.Do(req)
	if err != nil {
		// Network failure: no response, nothing to interpret.
		return nil, err
	}

	var resp AuthResponse
	if err := decodeResponse(httpResp, &resp); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode < 500 {
			apiErr.wrapped = reject
		}
		return nil, err
	}

	if err := s.persistPair(ctx, token.Pair{Access: resp.Access, Refresh: resp.Refresh}); err != nil {
		return nil, err
	}
	s.recordAuthenticated(&resp.User, resp.Access)
	return &resp, nil
}

/*
====================================
LOGOUT
====================================
*/

// logout clears the local session unconditionally. The server-side logout
// call blacklists the refresh token but its outcome never blocks the local
// transition: an unreachable backend must not trap the user in a session.
func (s *sessionManager) logout(ctx context.Context) error {
	pair, _ := s.tokens(ctx)

	if pair.Refresh != "" {
		if err := s.serverLogout(ctx, pair); err != nil {
			s.metrics.Inc(internalmetrics.MetricLogoutServerFailed)
			s.log.Warn().Err(err).Msg("server-side logout failed, clearing local session anyway")
		}
	}

	if err := s.clearTokens(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = StateAnonymous
	s.user = nil
	s.lastError = ""
	s.expiresAt = time.Time{}
	s.mu.Unlock()

	s.metrics.Inc(internalmetrics.MetricLogout)
	s.emit(ctx, internalaudit.EventLogout, 0, true, nil)
	return nil
}

func (s *sessionManager) serverLogout(ctx context.Context, pair token.Pair) error {
	req, err := s.newRequest(ctx, http.MethodPost, endpointLogout, logoutRequest{Refresh: pair.Refresh})
	if err != nil {
		return err
	}
	if pair.Access != "" {
		req.Header.Set("Authorization", "Bearer "+pair.Access)
	}

	resp, err := s.bare.Do(req)
	if err != nil {
		return err
	}
	return decodeResponse(resp, nil)
}

/*
====================================
STATUS CHECK
====================================
*/

// checkAuthStatus re-synchronizes in-memory state from the store at startup.
// It returns true only when both tokens are present and the profile fetch
// (refreshing transparently if needed) succeeds.
func (s *sessionManager) checkAuthStatus(ctx context.Context) (bool, error) {
	pair, err := s.tokens(ctx)
	if err != nil {
		s.recordFailure(StateAnonymous, msgStatusCheckFailed)
		s.metrics.Inc(internalmetrics.MetricStatusCheckFailure)
		s.emit(ctx, internalaudit.EventStatusCheck, 0, false, err)
		return false, err
	}
	if !pair.Complete() {
		s.mu.Lock()
		s.state = StateAnonymous
		s.user = nil
		s.mu.Unlock()
		s.emit(ctx, internalaudit.EventStatusCheck, 0, true, nil)
		return false, nil
	}

	user, err := s.fetchUser(ctx)
	if err != nil {
		s.recordFailure(StateAnonymous, msgStatusCheckFailed)
		s.metrics.Inc(internalmetrics.MetricStatusCheckFailure)
		s.emit(ctx, internalaudit.EventStatusCheck, 0, false, err)
		return false, errors.Join(ErrStatusCheckFailed, err)
	}

	// Re-read after the fetch: a refresh may have rotated the access token.
	pair, err = s.tokens(ctx)
	if err != nil || !pair.Complete() {
		s.recordFailure(StateAnonymous, msgStatusCheckFailed)
		s.metrics.Inc(internalmetrics.MetricStatusCheckFailure)
		return false, ErrStatusCheckFailed
	}

	s.recordAuthenticated(user, pair.Access)
	s.metrics.Inc(internalmetrics.MetricStatusCheckSuccess)
	s.emit(ctx, internalaudit.EventStatusCheck, user.ID, true, nil)
	return true, nil
}

/*
====================================
REFRESH
====================================
*/

// refreshAccess mints a new access token using the stored refresh token.
// Concurrent callers converge on one in-flight refresh: followers wait for
// the leader's outcome instead of issuing duplicate refresh calls that would
// race on token rotation.
func (s *sessionManager) refreshAccess(ctx context.Context) (string, error) {
	result, err, shared := s.refreshGroup.Do("refresh", func() (any, error) {
		// The leader's context drives the shared call. Followers that
		// cancelled still receive the shared outcome; they just ignore it.
		return s.doRefresh(ctx)
	})
	if shared {
		s.metrics.Inc(internalmetrics.MetricRefreshShared)
	}
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (s *sessionManager) doRefresh(ctx context.Context) (string, error) {
	pair, err := s.tokens(ctx)
	if err != nil {
		return "", err
	}
	if pair.Refresh == "" || token.Expired(pair.Refresh, s.now()) {
		return "", s.expireSession(ctx, ErrSessionExpired)
	}

	s.setState(StateRefreshing)

	req, err := s.newRequest(ctx, http.MethodPost, endpointTokenRefresh, refreshRequest{Refresh: pair.Refresh})
	if err != nil {
		return "", err
	}
	httpResp, err := s.bare.Do(req)
	if err != nil {
		// Rejected or unreachable both end the session: a refresh token we
		// cannot rotate is a session we cannot trust.
		s.metrics.Inc(internalmetrics.MetricRefreshFailure)
		s.emit(ctx, internalaudit.EventRefresh, 0, false, err)
		return "", s.expireSession(ctx, err)
	}

	var resp refreshResponse
	if err := decodeResponse(httpResp, &resp); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			apiErr.wrapped = ErrRefreshInvalid
		}
		s.metrics.Inc(internalmetrics.MetricRefreshFailure)
		s.emit(ctx, internalaudit.EventRefresh, 0, false, err)
		return "", s.expireSession(ctx, err)
	}

	if err := s.store.Set(ctx, store.KeyAccess, resp.Access); err != nil {
		return "", err
	}
	s.recordAuthenticated(nil, resp.Access)
	s.metrics.Inc(internalmetrics.MetricRefreshSuccess)
	s.emit(ctx, internalaudit.EventRefresh, 0, true, nil)
	return resp.Access, nil
}

// expireSession is the terminal refresh-failure path: both tokens are
// cleared and the session lands in Expired until the next login.
func (s *sessionManager) expireSession(ctx context.Context, cause error) error {
	_ = s.clearTokens(ctx)

	s.mu.Lock()
	s.state = StateExpired
	s.user = nil
	s.lastError = ErrSessionExpired.Error()
	s.expiresAt = time.Time{}
	s.mu.Unlock()

	s.metrics.Inc(internalmetrics.MetricSessionExpired)
	s.emit(ctx, internalaudit.EventSessionExpired, 0, false, cause)
	if errors.Is(cause, ErrSessionExpired) {
		return cause
	}
	return errors.Join(ErrSessionExpired, cause)
}

/*
====================================
AUDIT
====================================
*/

func (s *sessionManager) emit(ctx context.Context, eventType string, userID int64, success bool, cause error) {
	if s.audit == nil {
		return
	}
	event := internalaudit.Event{
		Timestamp: s.now(),
		EventType: eventType,
		UserID:    userID,
		Success:   success,
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	s.audit.Emit(ctx, event)
}

// failureMessage prefers the backend's detail text for lastError and falls
// back to a generic user-facing message.
func failureMessage(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	return fallback
}
