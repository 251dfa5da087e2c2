// Command psyclient-probe measures client pipeline throughput and latency
// against either a real backend or an in-process stub API. The stub issues
// real signed tokens so expiry handling and silent refresh behave exactly as
// they do in production.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	psyclient "github.com/deineapp/psyclient"
	"github.com/deineapp/psyclient/store"
)

func main() {
	var (
		ops         = flag.Int("ops", 50000, "requests per phase")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		backendURL  = flag.String("backend-url", "", "real backend base URL; if empty an in-process stub is used")
		storeKind   = flag.String("store", "memory", "token store backend: memory, file, or redis")
		redisAddr   = flag.String("redis-addr", "", "redis address for -store=redis; if empty, miniredis is used")
		accessTTL   = flag.Duration("access-ttl", 15*time.Minute, "stub access token lifetime")
	)
	flag.Parse()

	if *ops <= 0 || *concurrency <= 0 {
		fmt.Fprintln(os.Stderr, "ops and concurrency must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	baseURL := *backendURL
	var stub *stubAPI
	if baseURL == "" {
		var err error
		stub, err = startStubAPI(*accessTTL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start stub API: %v\n", err)
			os.Exit(1)
		}
		defer stub.close()
		baseURL = stub.baseURL
		fmt.Printf("using in-process stub API at %s\n", baseURL)
	} else {
		fmt.Printf("using backend at %s\n", baseURL)
	}

	tokenStore, cleanupStore, err := buildStore(*storeKind, *redisAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "store setup failed: %v\n", err)
		os.Exit(1)
	}
	defer cleanupStore()

	client, err := psyclient.New().
		WithBaseURL(baseURL).
		WithTokenStore(tokenStore).
		WithLogger(zerolog.New(os.Stderr).Level(zerolog.WarnLevel)).
		WithMetricsEnabled(true).
		WithLatencyHistograms(true).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "client build failed: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	if _, err := client.Login(ctx, psyclient.Credentials{Email: "probe@example.com", Password: "probe-password"}); err != nil {
		fmt.Fprintf(os.Stderr, "login failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("login ok")

	fetchStats := runFetchPhase(ctx, client, *ops, *concurrency)

	var refreshStats phaseStats
	if stub != nil {
		// Force every worker to find an expired access token at once and
		// verify the storm collapses into a single refresh call.
		expired := stub.mintAccess(-time.Minute)
		if err := tokenStore.Set(ctx, store.KeyAccess, expired); err != nil {
			fmt.Fprintf(os.Stderr, "seeding expired token failed: %v\n", err)
			os.Exit(1)
		}
		before := stub.refreshCalls.Load()
		refreshStats = runFetchPhase(ctx, client, *concurrency, *concurrency)
		fmt.Printf("refresh storm: %d workers caused %d refresh call(s)\n",
			*concurrency, stub.refreshCalls.Load()-before)
	}

	fmt.Println("---- results ----")
	printStats("fetch", fetchStats)
	if stub != nil {
		printStats("refresh-storm", refreshStats)
	}

	snapshot := client.MetricsSnapshot()
	fmt.Println("---- client metrics ----")
	ids := make([]psyclient.MetricID, 0, len(snapshot.Counters))
	for id := range snapshot.Counters {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		fmt.Printf("%-24s %d\n", psyclient.MetricNames[id], snapshot.Counters[id])
	}
}

func buildStore(kind, redisAddr string) (store.Store, func(), error) {
	switch kind {
	case "memory":
		return store.NewMemory(), func() {}, nil
	case "file":
		f, err := os.CreateTemp("", "psyclient-probe-*.json")
		if err != nil {
			return nil, nil, err
		}
		path := f.Name()
		_ = f.Close()
		_ = os.Remove(path)
		return store.NewFile(path), func() { _ = os.Remove(path) }, nil
	case "redis":
		if redisAddr == "" {
			mr, err := miniredis.Run()
			if err != nil {
				return nil, nil, err
			}
			rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			fmt.Printf("using miniredis at %s\n", mr.Addr())
			return store.NewRedis(rdb, "probe"), func() {
				_ = rdb.Close()
				mr.Close()
			}, nil
		}
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
		fmt.Printf("using redis at %s\n", redisAddr)
		return store.NewRedis(rdb, "probe"), func() { _ = rdb.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown store kind %q", kind)
}

func runFetchPhase(ctx context.Context, client *psyclient.Client, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				_, err := client.CurrentUser(ctx)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

/*
====================================
STUB API
====================================
*/

type stubAPI struct {
	server  *http.Server
	baseURL string

	mu     sync.Mutex
	access string

	refreshCalls atomic.Int64
	accessTTL    time.Duration
}

func startStubAPI(accessTTL time.Duration) (*stubAPI, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	s := &stubAPI{
		baseURL:   "http://" + ln.Addr().String(),
		accessTTL: accessTTL,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login/", s.handleLogin)
	mux.HandleFunc("POST /auth/token/refresh/", s.handleRefresh)
	mux.HandleFunc("POST /auth/logout/", s.handleLogout)
	mux.HandleFunc("GET /auth/me/", s.handleMe)

	s.server = &http.Server{Handler: mux}
	go func() { _ = s.server.Serve(ln) }()
	return s, nil
}

func (s *stubAPI) close() {
	_ = s.server.Close()
}

func (s *stubAPI) mintAccess(ttl time.Duration) string {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": int64(1),
		"exp":     time.Now().Add(ttl).Unix(),
	})
	signed, err := tok.SignedString([]byte("probe-secret"))
	if err != nil {
		panic(err)
	}
	return signed
}

func (s *stubAPI) issueAccess() string {
	access := s.mintAccess(s.accessTTL)
	s.mu.Lock()
	s.access = access
	s.mu.Unlock()
	return access
}

func (s *stubAPI) currentAccess() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.access
}

func (s *stubAPI) user() map[string]any {
	return map[string]any{
		"id":       1,
		"username": "probe",
		"email":    "probe@example.com",
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *stubAPI) handleLogin(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"access":  s.issueAccess(),
		"refresh": s.mintAccess(24 * time.Hour),
		"user":    s.user(),
	})
}

func (s *stubAPI) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.refreshCalls.Add(1)
	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Refresh == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "refresh field is required"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access": s.issueAccess()})
}

func (s *stubAPI) handleLogout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (s *stubAPI) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer "+s.currentAccess() {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Given token not valid for any token type"})
		return
	}
	writeJSON(w, http.StatusOK, s.user())
}
