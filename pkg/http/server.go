// Package http exposes the health and metrics of a Socket Mode client over HTTP.
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const (
	timeout = 3 * time.Second
)

// HealthFunc reports whether the application is healthy,
// e.g. whether at least one Socket Mode connection is open.
type HealthFunc func() bool

type Server struct {
	port     int
	healthy  HealthFunc
	gatherer prometheus.Gatherer
}

func NewServer(port int, healthy HealthFunc, g prometheus.Gatherer) *Server {
	return &Server{port: port, healthy: healthy, gatherer: g}
}

// Handler routes "GET /healthz" and "GET /metrics".
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.healthHandler)
	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	if s.healthy != nil && !s.healthy() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("unavailable\n"))
		return
	}
	_, _ = w.Write([]byte("ok\n"))
}

// Run starts the HTTP server. This is blocking, until ctx is canceled
// (which is not reported as an error) or the server fails.
func (s *Server) Run(ctx context.Context) error {
	l := zerolog.Ctx(ctx)

	server := &http.Server{
		Addr:         net.JoinHostPort("", strconv.Itoa(s.port)),
		Handler:      s.Handler(),
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	l.Info().Msgf("HTTP server listening on port %d", s.port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Err(err).Send()
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}
