// Package server provides the HTTP server and routing for Folio.
package server

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/folio/internal/database"
	chartshandlers "github.com/aristath/folio/internal/modules/charts/handlers"
	importhandlers "github.com/aristath/folio/internal/modules/importer/handlers"
	maintenancehandlers "github.com/aristath/folio/internal/modules/maintenance/handlers"
	marketdatahandlers "github.com/aristath/folio/internal/modules/marketdata/handlers"
	portfoliohandlers "github.com/aristath/folio/internal/modules/portfolio/handlers"
	"github.com/aristath/folio/pkg/embedded"
)

// Config holds server configuration
type Config struct {
	Log     zerolog.Logger
	DB      *database.DB
	Port    int
	DevMode bool

	Portfolio   *portfoliohandlers.Handler
	Charts      *chartshandlers.Handler
	MarketData  *marketdatahandlers.Handler
	Import      *importhandlers.Handler
	Maintenance *maintenancehandlers.Handler
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	db     *database.DB
	cfg    Config
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
		db:     cfg.DB,
		cfg:    cfg,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(120 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	systemHandlers := NewSystemHandlers(s.db, s.log)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/ping", systemHandlers.HandlePing)
		r.Get("/system/status", systemHandlers.HandleSystemStatus)

		r.Get("/holdings", s.cfg.Portfolio.HandleHoldings)
		r.Route("/stocks/{id}", func(r chi.Router) {
			r.Get("/prices", s.cfg.Portfolio.HandleStockPrices)
			r.Get("/transactions", s.cfg.Portfolio.HandleStockTransactions)
			r.Get("/chart-data", s.cfg.Charts.HandleStockChartData)
		})
		r.Route("/portfolio", func(r chi.Router) {
			r.Get("/performance", s.cfg.Portfolio.HandlePerformance)
			r.Get("/valuation-history", s.cfg.Portfolio.HandleValuationHistory)
		})

		r.Get("/market-data-status", s.cfg.MarketData.HandleStatus)
		r.Route("/market-data", func(r chi.Router) {
			r.Post("/update", s.cfg.MarketData.HandleUpdate)
			r.Post("/refresh-live", s.cfg.MarketData.HandleRefreshLive)
		})

		r.Post("/import", s.cfg.Import.HandleImport)
		r.Post("/purge", s.cfg.Maintenance.HandlePurge)
		r.Post("/backup", s.cfg.Maintenance.HandleBackup)
		r.Get("/backups", s.cfg.Maintenance.HandleListBackups)
	})

	// Dashboard
	s.router.Get("/", s.handleDashboard)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// handleHealth reports database health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.db.HealthCheck(ctx); err != nil {
		s.log.Error().Err(err).Msg("Health check failed")
		http.Error(w, `{"status":"unhealthy"}`, http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"ok"}`)
}

// handleDashboard serves the dashboard HTML from the embedded filesystem
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	staticFS, err := fs.Sub(embedded.Files, "static")
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to open embedded assets")
		http.Error(w, "Dashboard not available", http.StatusInternalServerError)
		return
	}

	f, err := staticFS.Open("index.html")
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to open embedded index.html")
		http.Error(w, "Dashboard not available", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := io.Copy(w, f); err != nil {
		s.log.Error().Err(err).Msg("Failed to write dashboard response")
	}
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
