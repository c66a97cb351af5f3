// Package api serves a read-only HTTP view of the dedup store: all-time
// stats, membership probes, and Prometheus metrics. It never writes to
// the store, so it is safe to run against a database another process is
// appending to.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/collatzlab/collatz-tester-go/internal/store"
)

// DefaultAddr is the loopback address the inspector binds when the
// config does not name one.
const DefaultAddr = "127.0.0.1:8077"

// Server is the read-only inspector API.
type Server struct {
	store      *store.Store
	logger     zerolog.Logger
	addr       string
	httpServer *http.Server
	registry   *prometheus.Registry
}

// New creates an inspector server over an already-opened store.
// addr may be empty to use DefaultAddr.
func New(st *store.Store, addr string, logger zerolog.Logger) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(newStoreCollector(st, logger))
	return &Server{
		store:    st,
		logger:   logger,
		addr:     addr,
		registry: reg,
	}
}

// Routes builds the router with all middleware and endpoints attached.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.Heartbeat("/health"))

	r.Get("/v1/stats", s.handleStats)
	r.Get("/v1/tested/{n}", s.handleTested)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	return r
}

// Start begins listening in a goroutine. It returns once the socket is
// bound, so callers can report the address before traffic arrives.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      s.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", s.addr, err)
	}
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("inspector listening")

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("http server stopped")
		}
	}()
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	}
	return http.HandlerFunc(fn)
}
