// Package server assembles the HTTP server: routing, middleware, lifecycle.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Registrar mounts routes on a mux. Handlers implement it.
type Registrar interface {
	Register(mux *http.ServeMux)
}

// Server wraps http.Server with graceful shutdown.
type Server struct {
	httpSrv *http.Server
	log     *slog.Logger
}

// New builds a Server listening on addr, with request logging and telemetry
// middleware wrapped around the given registrars' routes.
func New(addr string, log *slog.Logger, meter metric.Meter, tracer trace.Tracer, registrars ...Registrar) *Server {
	mux := http.NewServeMux()
	for _, reg := range registrars {
		reg.Register(mux)
	}

	var handler http.Handler = mux
	handler = RequestMetrics(meter, tracer, handler)
	handler = RequestLogging(log, handler)

	return &Server{
		httpSrv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		log: log,
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests for up to
// shutdownTimeout.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", s.httpSrv.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("http server draining")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
