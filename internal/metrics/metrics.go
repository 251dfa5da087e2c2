package metrics

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one counter or histogram slot.
type MetricID uint16

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricRegisterSuccess
	MetricRegisterFailure
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricRefreshShared
	MetricRetry401
	MetricRetryExhausted
	MetricLogout
	MetricLogoutServerFailed
	MetricSessionExpired
	MetricStatusCheckSuccess
	MetricStatusCheckFailure
	MetricPasswordResetRequest
	MetricPasswordResetConfirm
	MetricRequestLatency

	MetricIDCount
)

// Names maps each MetricID to its stable export name.
var Names = [MetricIDCount]string{
	MetricLoginSuccess:         "login_success",
	MetricLoginFailure:         "login_failure",
	MetricRegisterSuccess:      "register_success",
	MetricRegisterFailure:      "register_failure",
	MetricRefreshSuccess:       "refresh_success",
	MetricRefreshFailure:       "refresh_failure",
	MetricRefreshShared:        "refresh_shared",
	MetricRetry401:             "retry_401",
	MetricRetryExhausted:       "retry_exhausted",
	MetricLogout:               "logout",
	MetricLogoutServerFailed:   "logout_server_failed",
	MetricSessionExpired:       "session_expired",
	MetricStatusCheckSuccess:   "status_check_success",
	MetricStatusCheckFailure:   "status_check_failure",
	MetricPasswordResetRequest: "password_reset_request",
	MetricPasswordResetConfirm: "password_reset_confirm",
	MetricRequestLatency:       "request_latency",
}

// HistogramBuckets are the fixed upper bounds, in milliseconds, of the
// latency histogram. The last bucket is +Inf.
var HistogramBuckets = [8]int64{5, 10, 25, 50, 100, 250, 1000, -1}

// Config controls metric collection.
type Config struct {
	Enabled       bool
	EnableLatency bool
}

type paddedCounter struct {
	value atomic.Uint64
	_     [56]byte
}

// Metrics holds atomic counters and optional latency histograms. A nil
// *Metrics is a no-op.
type Metrics struct {
	cfg        Config
	counters   [MetricIDCount]paddedCounter
	histograms [MetricIDCount][8]paddedCounter
}

// New creates a Metrics instance. When cfg.Enabled is false all operations
// are no-ops.
func New(cfg Config) *Metrics {
	if !cfg.Enabled {
		return nil
	}
	return &Metrics{cfg: cfg}
}

// Inc increments a counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || id >= MetricIDCount {
		return
	}
	m.counters[id].value.Add(1)
}

// Value reads a single counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= MetricIDCount {
		return 0
	}
	return m.counters[id].value.Load()
}

// Observe records a duration into the histogram for id and bumps its count.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.cfg.EnableLatency || id >= MetricIDCount {
		return
	}
	ms := d.Milliseconds()
	bucket := len(HistogramBuckets) - 1
	for i, bound := range HistogramBuckets {
		if bound >= 0 && ms <= bound {
			bucket = i
			break
		}
	}
	m.histograms[id][bucket].value.Add(1)
	m.counters[id].value.Add(1)
}

// Snapshot is a point-in-time deep copy of all metrics.
type Snapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// Snapshot copies current values. It is safe to call concurrently with
// writes; individual reads are atomic, the snapshot as a whole is not.
func (m *Metrics) Snapshot() Snapshot {
	snap := Snapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID][]uint64{},
	}
	if m == nil {
		return snap
	}

	for id := MetricID(0); id < MetricIDCount; id++ {
		if v := m.counters[id].value.Load(); v > 0 {
			snap.Counters[id] = v
		}
	}
	if m.cfg.EnableLatency {
		for id := MetricID(0); id < MetricIDCount; id++ {
			var buckets []uint64
			total := uint64(0)
			for b := range m.histograms[id] {
				v := m.histograms[id][b].value.Load()
				total += v
				buckets = append(buckets, v)
			}
			if total > 0 {
				snap.Histograms[id] = buckets
			}
		}
	}
	return snap
}
