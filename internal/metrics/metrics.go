package metrics

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

var (
	initOnce    sync.Once
	serverMutex sync.Mutex
	currentSrv  *http.Server

	triggerMu      sync.RWMutex
	triggerChannel chan struct{}

	healthy     atomic.Bool
	lastRunUnix atomic.Int64
)

// Init initializes all metrics subsystems and registers them with Prometheus
// This function is safe to call multiple times (uses sync.Once)
func Init() {
	initOnce.Do(func() {
		initCleanupMetrics()
		initDaemonMetrics()
		initHTTPMetrics()

		registerCleanupMetrics()
		registerDaemonMetrics()
		registerHTTPMetrics()

		// Present in /metrics before the first sweep
		CleanupLastRunTimestamp.Set(0)
		healthy.Store(true)
	})
}

// SetTriggerChannel sets the channel POST /trigger sends on
func SetTriggerChannel(ch chan struct{}) {
	triggerMu.Lock()
	defer triggerMu.Unlock()
	triggerChannel = ch
}

// SetHealthy records the outcome of the last sweep for /health
func SetHealthy(ok bool) {
	healthy.Store(ok)
	lastRunUnix.Store(time.Now().Unix())
}

// NewRouter builds the control/metrics HTTP routes.
// /trigger accepts one request per triggerEvery, with a burst of one.
func NewRouter(triggerEvery time.Duration) *mux.Router {
	limiter := rate.NewLimiter(rate.Every(triggerEvery), 1)

	r := mux.NewRouter()
	r.Use(instrument, limitBody)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/health", handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/trigger", func(w http.ResponseWriter, req *http.Request) {
		if !limiter.Allow() {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		handleTrigger(w, req)
	}).Methods(http.MethodPost)
	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	ok := healthy.Load()
	body := map[string]interface{}{
		"healthy":  ok,
		"status":   "ok",
		"last_run": lastRunUnix.Load(),
	}
	w.Header().Set("Content-Type", "application/json")
	if !ok {
		body["status"] = "degraded"
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(body)
}

func handleTrigger(w http.ResponseWriter, _ *http.Request) {
	triggerMu.RLock()
	ch := triggerChannel
	triggerMu.RUnlock()

	if ch == nil {
		http.Error(w, "Trigger channel not initialized", http.StatusServiceUnavailable)
		return
	}
	select {
	case ch <- struct{}{}:
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("Sweep triggered"))
	default:
		http.Error(w, "Sweep already pending", http.StatusConflict)
	}
}

// StartServer starts the metrics HTTP server on the specified address
func StartServer(addr string, logger *log.Logger) {
	serverMutex.Lock()
	defer serverMutex.Unlock()

	if currentSrv != nil {
		logger.Printf("metrics server already running on %s", currentSrv.Addr)
		return
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(30 * time.Second),
		ReadHeaderTimeout: 5 * time.Second,
	}
	currentSrv = srv

	go func() {
		logger.Printf("metrics server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("metrics server error: %v", err)
			ErrorsTotal.Inc()
		}
	}()
}

// Shutdown gracefully shuts down the metrics server
func Shutdown(ctx context.Context, logger *log.Logger) {
	serverMutex.Lock()
	defer serverMutex.Unlock()

	if currentSrv == nil {
		return
	}
	if err := currentSrv.Shutdown(ctx); err != nil {
		logger.Printf("metrics server shutdown error: %v", err)
		ErrorsTotal.Inc()
	}
	currentSrv = nil
}
