package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"lendchain/gateway/routes"
)

// Server hosts the read-only HTTP surface: versioned REST endpoints, the
// websocket event feed and prometheus metrics.
type Server struct {
	logger     *slog.Logger
	httpServer *http.Server
}

// NewServer wraps the assembled router in OpenTelemetry HTTP instrumentation.
func NewServer(addr string, cfg routes.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	handler := otelhttp.NewHandler(routes.New(cfg), "gateway")
	return &Server{
		logger: logger,
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("starting gateway", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
