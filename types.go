package psyclient

import (
	"io"
	"time"

	internalaudit "github.com/deineapp/psyclient/internal/audit"
	internalmetrics "github.com/deineapp/psyclient/internal/metrics"
)

// SessionState represents the lifecycle state of the authenticated session.
type SessionState uint8

const (
	// StateAnonymous is an exported constant or variable used by the API client.
	StateAnonymous SessionState = iota
	// StateAuthenticating is an exported constant or variable used by the API client.
	StateAuthenticating
	// StateAuthenticated is an exported constant or variable used by the API client.
	StateAuthenticated
	// StateRefreshing is an exported constant or variable used by the API client.
	StateRefreshing
	// StateExpired is an exported constant or variable used by the API client.
	StateExpired
)

func (s SessionState) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	case StateExpired:
		return "expired"
	}
	return "unknown"
}

// User is the backend profile as served by /auth/me/ and login/register
// responses.
type User struct {
	ID              int64   `json:"id"`
	Username        string  `json:"username"`
	Email           string  `json:"email"`
	FirstName       string  `json:"first_name,omitempty"`
	LastName        string  `json:"last_name,omitempty"`
	ProfileImage    string  `json:"profile_image,omitempty"`
	TherapyProgress float64 `json:"therapy_progress,omitempty"`
	StreakDays      int     `json:"streak_days,omitempty"`
	Points          int     `json:"points,omitempty"`
	Level           int     `json:"level,omitempty"`
	NextLevelPoints int     `json:"next_level_points,omitempty"`
	DateJoined      string  `json:"date_joined,omitempty"`
}

// Credentials is the input for [Client.Login].
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the input for [Client.Register]. PasswordConfirm defaults
// to Password when left empty; the backend rejects a mismatch.
type Registration struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
	FirstName       string `json:"first_name,omitempty"`
	LastName        string `json:"last_name,omitempty"`
}

// ProfileUpdate is the input for [Client.UpdateProfile]. Nil fields are left
// untouched server-side.
type ProfileUpdate struct {
	Username     *string `json:"username,omitempty"`
	Email        *string `json:"email,omitempty"`
	FirstName    *string `json:"first_name,omitempty"`
	LastName     *string `json:"last_name,omitempty"`
	ProfileImage *string `json:"profile_image,omitempty"`
}

// AuthResponse is the login/register response body.
type AuthResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
	User    User   `json:"user"`
}

// SessionSnapshot is a point-in-time copy of the session for observers.
// It never carries token material.
type SessionSnapshot struct {
	State     SessionState
	User      *User
	LastError string
	ExpiresAt time.Time
}

// Authenticated reports whether the snapshot state is StateAuthenticated.
func (s SessionSnapshot) Authenticated() bool {
	return s.State == StateAuthenticated
}

// AuditEvent is a structured auth lifecycle record emitted by the client.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the client's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// MetricID identifies a specific counter or histogram bucket in the
// in-process metrics system.
type MetricID = internalmetrics.MetricID

const (
	// MetricLoginSuccess is an exported constant or variable used by the API client.
	MetricLoginSuccess = internalmetrics.MetricLoginSuccess
	// MetricLoginFailure is an exported constant or variable used by the API client.
	MetricLoginFailure = internalmetrics.MetricLoginFailure
	// MetricRegisterSuccess is an exported constant or variable used by the API client.
	MetricRegisterSuccess = internalmetrics.MetricRegisterSuccess
	// MetricRegisterFailure is an exported constant or variable used by the API client.
	MetricRegisterFailure = internalmetrics.MetricRegisterFailure
	// MetricRefreshSuccess is an exported constant or variable used by the API client.
	MetricRefreshSuccess = internalmetrics.MetricRefreshSuccess
	// MetricRefreshFailure is an exported constant or variable used by the API client.
	MetricRefreshFailure = internalmetrics.MetricRefreshFailure
	// MetricRefreshShared is an exported constant or variable used by the API client.
	MetricRefreshShared = internalmetrics.MetricRefreshShared
	// MetricRetry401 is an exported constant or variable used by the API client.
	MetricRetry401 = internalmetrics.MetricRetry401
	// MetricRetryExhausted is an exported constant or variable used by the API client.
	MetricRetryExhausted = internalmetrics.MetricRetryExhausted
	// MetricLogout is an exported constant or variable used by the API client.
	MetricLogout = internalmetrics.MetricLogout
	// MetricLogoutServerFailed is an exported constant or variable used by the API client.
	MetricLogoutServerFailed = internalmetrics.MetricLogoutServerFailed
	// MetricSessionExpired is an exported constant or variable used by the API client.
	MetricSessionExpired = internalmetrics.MetricSessionExpired
	// MetricStatusCheckSuccess is an exported constant or variable used by the API client.
	MetricStatusCheckSuccess = internalmetrics.MetricStatusCheckSuccess
	// MetricStatusCheckFailure is an exported constant or variable used by the API client.
	MetricStatusCheckFailure = internalmetrics.MetricStatusCheckFailure
	// MetricPasswordResetRequest is an exported constant or variable used by the API client.
	MetricPasswordResetRequest = internalmetrics.MetricPasswordResetRequest
	// MetricPasswordResetConfirm is an exported constant or variable used by the API client.
	MetricPasswordResetConfirm = internalmetrics.MetricPasswordResetConfirm
	// MetricRequestLatency is an exported constant or variable used by the API client.
	MetricRequestLatency = internalmetrics.MetricRequestLatency
)

// MetricIDCount is an exported constant or variable used by the API client.
const MetricIDCount = internalmetrics.MetricIDCount

// MetricNames maps each MetricID to its stable export name.
var MetricNames = internalmetrics.Names

// Metrics holds atomic counters and optional latency histograms.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time deep copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a new [Metrics] instance configured by the given
// [MetricsConfig]. When Enabled is false, all operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:       cfg.Enabled,
		EnableLatency: cfg.EnableLatencyHistograms,
	})
}
