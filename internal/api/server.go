// Package api exposes the credit engine over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Veraticus/credit-engine/internal/certs"
	"github.com/Veraticus/credit-engine/internal/engine"
	"github.com/Veraticus/credit-engine/internal/service"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// Config holds HTTP server settings.
type Config struct {
	Addr            string
	AllowedOrigins  []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// TLS serves HTTPS with a self-signed certificate kept in CertDir.
	TLS      bool
	CertDir  string
	TLSHosts []string
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		AllowedOrigins:  []string{"*"},
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    5 * time.Minute,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Server serves the JSON API.
type Server struct {
	store  service.Storage
	runner *engine.Runner
	logger *slog.Logger
	config Config
}

// NewServer creates a server over store. Analyses and transitions go through runner.
func NewServer(store service.Storage, runner *engine.Runner, config Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:  store,
		runner: runner,
		config: config,
		logger: logger,
	}
}

// Router registers every route on a new mux router.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", s.Health).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/correction", s.Correct).Methods(http.MethodPost)
	api.HandleFunc("/analysis", s.CreateAnalysis).Methods(http.MethodPost)
	api.HandleFunc("/analysis", s.ListAnalyses).Methods(http.MethodGet)
	api.HandleFunc("/analysis/{id}", s.GetAnalysis).Methods(http.MethodGet)
	api.HandleFunc("/opportunities", s.ListOpportunities).Methods(http.MethodGet)
	api.HandleFunc("/opportunities/{id}", s.GetOpportunity).Methods(http.MethodGet)
	api.HandleFunc("/opportunities/{id}/history", s.GetOpportunityHistory).Methods(http.MethodGet)
	api.HandleFunc("/opportunities/{id}/transition", s.TransitionOpportunity).Methods(http.MethodPost)
	api.HandleFunc("/rules", s.ListRules).Methods(http.MethodGet)

	r.Use(s.logRequests)
	return r
}

// Handler returns the router wrapped with CORS handling.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: s.config.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	return c.Handler(s.Router())
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	if s.config.TLS {
		store := certs.NewStore(s.config.CertDir, s.config.TLSHosts...)
		tlsConfig, err := store.TLSConfig()
		if err != nil {
			return fmt.Errorf("failed to load TLS certificate: %w", err)
		}
		srv.TLSConfig = tlsConfig
		s.logger.Info("Serving HTTPS with self-signed certificate", "cert", store.CertFile())
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.config.Addr, "tls", s.config.TLS)
		if s.config.TLS {
			errCh <- srv.ListenAndServeTLS("", "")
			return
		}
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}
