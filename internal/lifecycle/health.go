package lifecycle

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"sync"
	"time"
)

// HealthStatus is the JSON body served from /health.
type HealthStatus struct {
	Status  string            `json:"status"`
	Time    string            `json:"time"`
	Uptime  string            `json:"uptime"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks,omitempty"`
	Stats   map[string]any    `json:"stats,omitempty"`
}

// HealthChecker aggregates named checks (pool health, write-queue depth,
// RAG cycle age, subscriber counts) into the /health, /ready, and /live
// HTTP surfaces spec.md §6 requires.
type HealthChecker struct {
	mu        sync.RWMutex
	version   string
	startTime time.Time
	checks    map[string]func() error
	stats     func() map[string]any
	manager   *Manager
}

// NewHealthChecker builds a checker reporting version and wired to
// manager's ReadyChecker services for /ready.
func NewHealthChecker(version string, manager *Manager) *HealthChecker {
	return &HealthChecker{
		version:   version,
		startTime: time.Now(),
		checks:    make(map[string]func() error),
		manager:   manager,
	}
}

// RegisterCheck adds a named health check, polled on every /health request.
// A non-nil error marks the overall status unhealthy without stopping the
// process; callers typically wrap queue depth, pool connectivity, or
// indexer staleness thresholds.
func (h *HealthChecker) RegisterCheck(name string, check func() error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// WithStats sets a callback contributing arbitrary numeric/string
// snapshots (queue depth, subscriber counts) to the /health body's Stats
// field, in addition to the pass/fail Checks map.
func (h *HealthChecker) WithStats(stats func() map[string]any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stats = stats
}

// Handler serves GET /health: every registered check runs, and the
// response is 200 unless at least one check failed, in which case it is
// 503 with the failing checks named in the body.
func (h *HealthChecker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.mu.RLock()
		checks := make(map[string]func() error, len(h.checks))
		for name, fn := range h.checks {
			checks[name] = fn
		}
		statsFn := h.stats
		h.mu.RUnlock()

		status := HealthStatus{
			Status:  "healthy",
			Time:    time.Now().UTC().Format(time.RFC3339),
			Uptime:  time.Since(h.startTime).String(),
			Version: h.version,
			Checks:  make(map[string]string, len(checks)),
		}
		for name, check := range checks {
			if err := check(); err != nil {
				status.Status = "unhealthy"
				status.Checks[name] = err.Error()
			} else {
				status.Checks[name] = "ok"
			}
		}
		if statsFn != nil {
			status.Stats = statsFn()
		}

		w.Header().Set("Content-Type", "application/json")
		if status.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(status)
	}
}

// LivenessHandler serves GET /live: a bare process-is-running probe that
// never depends on downstream collaborators, so an orchestrator never
// kills the process for a transient storage or RAG provider outage.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
	}
}

// ReadinessHandler serves GET /ready: not ready until every service the
// Manager tracks reports Ready with no error (e.g. the RAG indexer hasn't
// completed its first hydration pass, or the pool hasn't opened yet).
func (h *HealthChecker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := h.manager.Ready(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "not_ready", "reason": err.Error()})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
	}
}

// RuntimeStats reports Go-runtime counters alongside host stats gathered
// by the caller (gopsutil), merged by the Stats callback passed to
// WithStats.
func RuntimeStats() map[string]any {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return map[string]any{
		"goroutines": runtime.NumGoroutine(),
		"alloc_mb":   m.Alloc / 1024 / 1024,
		"sys_mb":     m.Sys / 1024 / 1024,
		"num_gc":     m.NumGC,
	}
}
