package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/api/handlers"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/app"
)

const shutdownTimeout = 30 * time.Second

// Config holds server configuration
type Config struct {
	Address string
	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
}

// Server serves the agent platform over HTTP
type Server struct {
	app     *app.App
	router  *mux.Router
	handler http.Handler
	server  *http.Server
	logger  zerolog.Logger
}

// NewServer creates a new server instance
func NewServer(cfg Config, a *app.App, log zerolog.Logger) *Server {
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	s := &Server{app: a, router: mux.NewRouter(), logger: log}
	s.setupRoutes(cfg.Gatherer)
	s.handler = s.corsMiddleware(s.loggingMiddleware(s.router))
	s.server = &http.Server{
		Addr:              cfg.Address,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the router with middleware applied.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) setupRoutes(gatherer prometheus.Gatherer) {
	agentHandler := handlers.NewAgentHandler(s.app.Agents, s.logger)
	workflowHandler := handlers.NewWorkflowHandler(s.app.Coordinator, s.logger)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	s.router.HandleFunc("/agents", agentHandler.ListAgents).Methods(http.MethodGet)
	s.router.HandleFunc("/agents/{name}", agentHandler.ExecuteAgent).Methods(http.MethodPost)
	s.router.HandleFunc("/agents/{name}/tools/{tool}", agentHandler.ExecuteTool).Methods(http.MethodPost)
	s.router.HandleFunc("/workflows", workflowHandler.RunWorkflow).Methods(http.MethodPost)

	if s.app.Signer != nil && s.app.Store != nil {
		downloadHandler := handlers.NewDownloadHandler(s.app.Signer, s.app.Store, s.logger)
		s.router.HandleFunc("/downloads/{bucket}/{path:.+}", downloadHandler.Download).Methods(http.MethodGet)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(`{"status": "healthy"}`)); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to write health response")
	}
}

// CORS middleware
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Logging middleware
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	serverErr := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.server.Addr).Msg("Starting agent server")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- fmt.Errorf("server failed: %w", err)
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		s.logger.Info().Msg("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		s.logger.Info().Msg("Server exited")
		return nil
	}
}
