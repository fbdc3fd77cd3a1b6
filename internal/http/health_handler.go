package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/pprof"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Check probes one dependency.
type Check func(ctx context.Context) error

// HealthHandler serves liveness/readiness and, optionally, pprof.
type HealthHandler struct {
	checks       map[string]Check
	logger       *zap.Logger
	pprofEnabled bool
}

func NewHealthHandler(logger *zap.Logger) *HealthHandler {
	return &HealthHandler{checks: map[string]Check{}, logger: logger}
}

// AddCheck registers a named dependency probe.
func (h *HealthHandler) AddCheck(name string, c Check) *HealthHandler {
	h.checks[name] = c
	return h
}

// WithPostgres adds a "database" probe.
func (h *HealthHandler) WithPostgres(db *sql.DB) *HealthHandler {
	if db == nil {
		return h
	}
	return h.AddCheck("database", db.PingContext)
}

// WithRedis adds a "redis" probe.
func (h *HealthHandler) WithRedis(c *redis.Client) *HealthHandler {
	if c == nil {
		return h
	}
	return h.AddCheck("redis", func(ctx context.Context) error { return c.Ping(ctx).Err() })
}

func (h *HealthHandler) EnablePprof(enabled bool) {
	h.pprofEnabled = enabled
}

type HealthCheckResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

func (h *HealthHandler) names() []string {
	names := make([]string, 0, len(h.checks))
	for n := range h.checks {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	services := make(map[string]string, len(h.checks))
	for _, name := range h.names() {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		err := h.checks[name](ctx)
		cancel()
		if err != nil {
			status = "unhealthy"
			services[name] = "unhealthy: " + err.Error()
			h.logger.Warn("Health check failed", zap.String("service", name), zap.Error(err))
			continue
		}
		services[name] = "healthy"
	}

	code := http.StatusOK
	if status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, HealthCheckResponse{Status: status, Timestamp: time.Now(), Services: services})
}

// Ready is the readiness probe.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ready := true
	checks := make(map[string]bool, len(h.checks))
	for _, name := range h.names() {
		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		checks[name] = h.checks[name](ctx) == nil
		cancel()
		if !checks[name] {
			ready = false
		}
	}

	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{"ready": ready, "checks": checks})
}

func (r *Router) RegisterHealthRoutes(h *HealthHandler) {
	r.Handle("GET /health", h.HealthCheck)
	r.Handle("GET /healthz", h.HealthCheck)
	r.Handle("GET /ready", h.Ready)
	r.Handle("GET /readyz", h.Ready)

	if h.pprofEnabled {
		r.Handle("/debug/pprof/", pprof.Index)
		r.Handle("/debug/pprof/cmdline", pprof.Cmdline)
		r.Handle("/debug/pprof/profile", pprof.Profile)
		r.Handle("/debug/pprof/symbol", pprof.Symbol)
		r.Handle("/debug/pprof/trace", pprof.Trace)
		r.HandleHandler("/debug/pprof/goroutine", pprof.Handler("goroutine"))
		r.HandleHandler("/debug/pprof/heap", pprof.Handler("heap"))
		r.HandleHandler("/debug/pprof/allocs", pprof.Handler("allocs"))
	}
}
