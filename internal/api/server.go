// Package api exposes a bridge session over HTTP/JSON.
//
// Every handler hands its work to the event loop that owns the session, so
// requests never touch session state concurrently.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/cors"

	"github.com/matrixise/chainbridge/internal/session"
	"github.com/matrixise/chainbridge/internal/storage"
)

// Loop runs fn on the goroutine that owns the session.
type Loop interface {
	Do(ctx context.Context, fn func()) error
}

// EventReader reads the persisted journal of a transfer.
type EventReader interface {
	TransferEvents(ctx context.Context, transferID string) ([]storage.TransferEvent, error)
}

// Config holds HTTP server configuration
type Config struct {
	Port           int
	AllowedOrigins []string
	RatePerMinute  int
	// Health and Metrics are mounted at /health and /metrics when set.
	Health  http.Handler
	Metrics http.Handler
	// Journal serves /v1/transfer/{id}/events; nil answers 404.
	Journal EventReader
	Logger  *slog.Logger
}

// Server wraps the HTTP server and the session it drives.
type Server struct {
	loop    Loop
	session *session.Session
	journal EventReader
	logger  *slog.Logger
	handler http.Handler
	http    *http.Server
}

// NewServer builds the router. The server does not listen until Start.
func NewServer(loop Loop, sess *session.Session, cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Server{loop: loop, session: sess, journal: cfg.Journal, logger: cfg.Logger}

	mux := chi.NewMux()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(s.requestLogger)
	mux.Use(middleware.Recoverer)
	mux.Use(middleware.Timeout(30 * time.Second))
	if cfg.RatePerMinute > 0 {
		mux.Use(httprate.LimitByIP(cfg.RatePerMinute, time.Minute))
	}

	if cfg.Health != nil {
		mux.Method(http.MethodGet, "/health", cfg.Health)
	}
	if cfg.Metrics != nil {
		mux.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	mux.Route("/v1", func(r chi.Router) {
		r.Use(noCache)
		r.Get("/state", s.getState)
		r.Get("/tokens", s.getTokens)

		r.Post("/wallet/connect", s.connectWallet)
		r.Post("/wallet/disconnect", s.disconnectWallet)
		r.Post("/wallet/network", s.switchNetwork)
		r.Post("/balances/refresh", s.refreshBalances)

		r.Post("/selection/source", s.selectSource)
		r.Post("/selection/destination", s.selectDestination)
		r.Post("/selection/amount", s.setAmount)
		r.Post("/selection/swap", s.swap)
		r.Post("/selection/max", s.maxAmount)

		r.Post("/transfer", s.submit)
		r.Post("/transfer/dismiss", s.dismiss)
		r.Get("/transfer/{id}/events", s.transferEvents)
	})

	s.handler = newCORSHandler(cfg.AllowedOrigins, mux)
	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler returns the root handler, CORS included.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens in the background. Listen errors other than a clean
// shutdown are logged.
func (s *Server) Start() {
	go func() {
		s.logger.Info("HTTP server starting", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", "error", err)
		}
	}()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func newCORSHandler(allowedOrigins []string, next http.Handler) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	// wildcard origins cannot be combined with credentials
	allowCredentials := !(len(allowedOrigins) == 1 && allowedOrigins[0] == "*")

	return cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		AllowCredentials: allowCredentials,
		MaxAge:           int(2 * time.Hour / time.Second),
	}).Handler(next)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// noCache keeps balances and quotes out of browser and proxy caches.
func noCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
		next.ServeHTTP(w, r)
	})
}
