package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Server owns the HTTP listener and the background dispatcher.
type Server struct {
	httpServer *http.Server
	dispatcher *Dispatcher
	cancel     context.CancelFunc
	logger     *zap.Logger
}

func NewServer(addr string, handler http.Handler, dispatcher *Dispatcher, logger *zap.Logger) *Server {
	s := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return &Server{httpServer: s, dispatcher: dispatcher, logger: logger}
}

// Start blocks serving HTTP; the dispatcher, when set, runs alongside.
// Returns nil after a clean Stop.
func (s *Server) Start() error {
	if s.dispatcher != nil {
		ctx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		go s.dispatcher.Run(ctx)
	}
	s.logger.Info("Starting fluxia HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping fluxia HTTP server")
	if s.cancel != nil {
		s.cancel()
	}
	return s.httpServer.Shutdown(ctx)
}
