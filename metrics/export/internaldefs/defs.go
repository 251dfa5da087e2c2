package internaldefs

import (
	internalmetrics "github.com/deineapp/psyclient/internal/metrics"
)

// CounterDef defines a public type used by psyclient APIs.
type CounterDef struct {
	ID   internalmetrics.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by psyclient APIs.
type HistogramDef struct {
	ID   internalmetrics.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the API client.
var CounterDefs = []CounterDef{
	{ID: internalmetrics.MetricLoginSuccess, Name: "psyclient_login_success_total", Help: "Successful login calls."},
	{ID: internalmetrics.MetricLoginFailure, Name: "psyclient_login_failure_total", Help: "Failed login calls."},
	{ID: internalmetrics.MetricRegisterSuccess, Name: "psyclient_register_success_total", Help: "Successful registrations."},
	{ID: internalmetrics.MetricRegisterFailure, Name: "psyclient_register_failure_total", Help: "Failed registrations."},
	{ID: internalmetrics.MetricRefreshSuccess, Name: "psyclient_refresh_success_total", Help: "Successful token refreshes."},
	{ID: internalmetrics.MetricRefreshFailure, Name: "psyclient_refresh_failure_total", Help: "Failed token refreshes."},
	{ID: internalmetrics.MetricRefreshShared, Name: "psyclient_refresh_shared_total", Help: "Refresh calls deduplicated by single-flight."},
	{ID: internalmetrics.MetricRetry401, Name: "psyclient_retry_401_total", Help: "Requests that entered 401 recovery."},
	{ID: internalmetrics.MetricRetryExhausted, Name: "psyclient_retry_exhausted_total", Help: "Retried requests rejected a second time."},
	{ID: internalmetrics.MetricLogout, Name: "psyclient_logout_total", Help: "Logout operations."},
	{ID: internalmetrics.MetricLogoutServerFailed, Name: "psyclient_logout_server_failed_total", Help: "Best-effort server logout calls that failed."},
	{ID: internalmetrics.MetricSessionExpired, Name: "psyclient_session_expired_total", Help: "Sessions terminated by refresh failure."},
	{ID: internalmetrics.MetricStatusCheckSuccess, Name: "psyclient_status_check_success_total", Help: "Successful auth status checks."},
	{ID: internalmetrics.MetricStatusCheckFailure, Name: "psyclient_status_check_failure_total", Help: "Failed auth status checks."},
	{ID: internalmetrics.MetricPasswordResetRequest, Name: "psyclient_password_reset_request_total", Help: "Password reset requests."},
	{ID: internalmetrics.MetricPasswordResetConfirm, Name: "psyclient_password_reset_confirm_total", Help: "Password reset confirmations."},
}

// HistogramDefs is an exported constant or variable used by the API client.
var HistogramDefs = []HistogramDef{
	{ID: internalmetrics.MetricRequestLatency, Name: "psyclient_request_latency_seconds", Help: "Pipeline request latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the API client.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"1",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the API client.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"1",
	"inf",
}

// NormalizeBuckets pads or truncates a raw bucket slice to the fixed width.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into the cumulative form
// Prometheus histograms expect.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
