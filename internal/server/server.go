package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hongminglow/task-manager-be/internal/config"
	"github.com/hongminglow/task-manager-be/internal/credentials"
	"github.com/hongminglow/task-manager-be/internal/http/handlers"
	"github.com/hongminglow/task-manager-be/internal/middleware"
)

// Server wraps an http.Server with configured routes.
type Server struct {
	inner *http.Server
}

// New wires up middleware, routes, and returns a ready server.
func New(cfg config.Config, creds *credentials.Service, db handlers.Pinger, log *slog.Logger) *Server {
	return &Server{inner: &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           NewHandler(cfg, creds, db, log),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}}
}

// NewHandler builds the routed handler. Each call gets its own metrics registry.
func NewHandler(cfg config.Config, creds *credentials.Service, db handlers.Pinger, log *slog.Logger) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := middleware.NewMetrics(reg)

	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.RealIP, chimw.Recoverer)
	r.Use(func(next http.Handler) http.Handler { return middleware.Logging(log, next) })
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(metrics.Instrument)

	handlers.NewHealthHandler(time.Now(), db, log).Register(r)
	authn := middleware.NewAuthenticator(creds, log, metrics)
	handlers.NewUserHandler(creds, authn, log).Register(r)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return r
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
