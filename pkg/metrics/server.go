package metrics

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/convergeframework/converge/pkg/log"
)

// Server scrapes one or more collectors over HTTP. It serves /metrics in
// Prometheus format plus /health and /live.
type Server struct {
	addr       string
	gatherers  prometheus.Gatherers
	listener   net.Listener
	httpServer *http.Server
	logger     zerolog.Logger
}

// NewServer creates a server exposing the given collectors on addr.
func NewServer(addr string, collectors ...*Collector) *Server {
	gatherers := make(prometheus.Gatherers, 0, len(collectors))
	for _, c := range collectors {
		gatherers = append(gatherers, c.Registry())
	}
	return &Server{
		addr:      addr,
		gatherers: gatherers,
		logger:    log.WithComponent("metrics"),
	}
}

// Start binds the listener and serves in a background goroutine.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = lis

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherers, promhttp.HandlerOpts{}))
	mux.Handle("/health", HealthHandler())
	mux.Handle("/live", LivenessHandler())

	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := s.httpServer.Serve(lis); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	s.logger.Info().Str("addr", lis.Addr().String()).Msg("Metrics server listening")
	return nil
}

// Addr returns the bound address. Useful when the server started on :0.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
