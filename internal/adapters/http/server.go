// Package http provides the HTTP server and handlers.
package http //nolint:revive // package name conflicts with stdlib but is acceptable in this context

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/jobrunner/leafsync/internal/adapters/browser"
	"github.com/jobrunner/leafsync/internal/adapters/metrics"
	"github.com/jobrunner/leafsync/internal/application"
	"github.com/jobrunner/leafsync/internal/config"
	"github.com/jobrunner/leafsync/internal/ports/input"
	"github.com/jobrunner/leafsync/internal/ports/output"
)

// Deps are the services behind the HTTP API. Presets, Sync, Tiles and
// Metrics are optional; their routes are only registered when set.
type Deps struct {
	Maps        input.MapService
	Presets     input.PresetService
	Sync        *application.PresetSyncService
	Health      input.HealthChecker
	Hub         *browser.Hub
	Tiles       output.TileStore
	Metrics     *metrics.Collector
	MetricsPath string
}

// Server wraps the HTTP server with application handlers.
type Server struct {
	server *http.Server
	router *mux.Router
	deps   Deps
	logger *slog.Logger
	config config.ServerConfig
}

// NewServer creates a new HTTP server.
func NewServer(cfg config.ServerConfig, deps Deps, logger *slog.Logger) *Server {
	s := &Server{
		deps:   deps,
		logger: logger,
		config: cfg,
	}

	s.router = s.setupRoutes()

	// CORS wraps the router so preflight requests are answered even though
	// no route registers OPTIONS.
	var handler http.Handler = s.router
	if cfg.CORS.Enabled() {
		handler = s.corsMiddleware(handler)
	}

	s.server = &http.Server{
		Addr:              cfg.Address(),
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
	}

	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() *mux.Router {
	r := mux.NewRouter()

	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	if s.deps.Metrics != nil {
		r.Use(s.deps.Metrics.Middleware)
	}

	// Health endpoints
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/health/live", s.handleLiveness).Methods(http.MethodGet)
	r.HandleFunc("/health/ready", s.handleReadiness).Methods(http.MethodGet)

	// OpenAPI spec and Swagger UI
	r.HandleFunc("/openapi.json", s.handleOpenAPI).Methods(http.MethodGet)
	r.HandleFunc("/docs", s.handleDocs).Methods(http.MethodGet)

	if s.deps.Metrics != nil {
		path := s.deps.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, metrics.Handler()).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api/v1").Subrouter()
	s.mapRoutes(api)

	if s.deps.Presets != nil {
		api.HandleFunc("/presets", s.handleListPresets).Methods(http.MethodGet)
		if s.deps.Sync != nil {
			api.HandleFunc("/presets/sync", s.handleSync).Methods(http.MethodPost)
		}
		api.HandleFunc("/presets/{name}", s.handleGetPreset).Methods(http.MethodGet)
	}

	if s.deps.Tiles != nil {
		api.HandleFunc("/tilesets", s.handleListTilesets).Methods(http.MethodGet)
		r.HandleFunc("/tiles/{name}/{z:[0-9]+}/{x:[0-9]+}/{y:[0-9]+}", s.handleTile).Methods(http.MethodGet)
	}

	if s.config.FrontendEnabled {
		r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
		r.HandleFunc("/maps/{mapId}", s.handleMapPage).Methods(http.MethodGet)
		r.HandleFunc("/leafsync.js", s.handleShim).Methods(http.MethodGet)
	}

	return r
}

// mapRoutes registers the per-map API.
func (s *Server) mapRoutes(api *mux.Router) {
	api.HandleFunc("/maps", s.handleListMaps).Methods(http.MethodGet)
	api.HandleFunc("/maps", s.handleCreateMap).Methods(http.MethodPost)

	m := api.PathPrefix("/maps/{mapId}").Subrouter()
	m.HandleFunc("", s.handleGetMap).Methods(http.MethodGet)
	m.HandleFunc("", s.handleDisposeMap).Methods(http.MethodDelete)
	m.HandleFunc("/flush", s.handleFlush).Methods(http.MethodPost)

	// Browser runtime
	m.HandleFunc("/stream", s.handleStream).Methods(http.MethodGet)
	m.HandleFunc("/initialized", s.handleInitialized).Methods(http.MethodPost)
	m.HandleFunc("/events/{event}", s.handleEvent).Methods(http.MethodPost)
	m.HandleFunc("/replies/{callId}", s.handleReply).Methods(http.MethodPost)

	// Layer collections
	coll := "/{collection:layers|markers}"
	m.HandleFunc("/markers/bulk", s.handleAddMarkers).Methods(http.MethodPost)
	m.HandleFunc(coll, s.handleListCollection).Methods(http.MethodGet)
	m.HandleFunc(coll, s.handleAddToCollection).Methods(http.MethodPost)
	m.HandleFunc(coll, s.handleClearCollection).Methods(http.MethodDelete)
	m.HandleFunc(coll+"/{index:[0-9]+}", s.handleReplaceInCollection).Methods(http.MethodPut)
	m.HandleFunc(coll+"/{index:[0-9]+}/move", s.handleMoveInCollection).Methods(http.MethodPost)
	m.HandleFunc(coll+"/{layerId}", s.handleRemoveFromCollection).Methods(http.MethodDelete)

	// Targeted layer updates
	m.HandleFunc("/layers/{layerId}/popup", s.handleUpdatePopup).Methods(http.MethodPost)
	m.HandleFunc("/layers/{layerId}/tooltip", s.handleUpdateTooltip).Methods(http.MethodPost)
	m.HandleFunc("/layers/{layerId}/shape", s.handleUpdateShape).Methods(http.MethodPost)
	m.HandleFunc("/layers/{layerId}/heat", s.handleUpdateHeat).Methods(http.MethodPost)
	m.HandleFunc("/layers/{layerId}/style", s.handleStyleFeatures).Methods(http.MethodPost)
	m.HandleFunc("/layers/{layerId}/bounds", s.handleLayerBounds).Methods(http.MethodGet)

	// View state and commands
	m.HandleFunc("/center", s.handleSetCenter).Methods(http.MethodPut)
	m.HandleFunc("/center", s.handleGetCenter).Methods(http.MethodGet)
	m.HandleFunc("/zoom", s.handleSetZoom).Methods(http.MethodPut)
	m.HandleFunc("/zoom", s.handleGetZoom).Methods(http.MethodGet)
	m.HandleFunc("/bounds", s.handleGetBounds).Methods(http.MethodGet)
	m.HandleFunc("/view/{op}", s.handleViewOp).Methods(http.MethodPost)
}

// Router returns the mux router.
func (s *Server) Router() *mux.Router {
	return s.router
}

// HTTPServer returns the underlying server, e.g. for TLS setup.
func (s *Server) HTTPServer() *http.Server {
	return s.server
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "address", s.config.Address())
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs incoming requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		level := slog.LevelInfo
		if wrapped.statusCode >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		s.logger.Log(r.Context(), level, "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration", time.Since(start),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// recoveryMiddleware recovers from panics.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic recovered", "error", err, "path", r.URL.Path)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code. It
// forwards Flush so event streams work through the middleware chain.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
