package httpapi

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Router wraps http.ServeMux; patterns use its "METHOD /path/{param}" syntax.
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

// HandleHandler registers an http.Handler (pprof and the like).
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	r.mux.ServeHTTP(rec, req)
	r.logger.Debug("HTTP request",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", rec.status),
		zap.Duration("duration", time.Since(start)),
	)
}
