// Package app provides application initialization and wiring.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/jobrunner/leafsync/internal/adapters/browser"
	httpAdapter "github.com/jobrunner/leafsync/internal/adapters/http"
	"github.com/jobrunner/leafsync/internal/adapters/mbtiles"
	"github.com/jobrunner/leafsync/internal/adapters/metrics"
	"github.com/jobrunner/leafsync/internal/adapters/storage"
	tlsAdapter "github.com/jobrunner/leafsync/internal/adapters/tls"
	"github.com/jobrunner/leafsync/internal/adapters/watcher"
	"github.com/jobrunner/leafsync/internal/application"
	"github.com/jobrunner/leafsync/internal/config"
	"github.com/jobrunner/leafsync/internal/ports/input"
	"github.com/jobrunner/leafsync/internal/ports/output"
)

// App holds all application components.
type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Metrics       *metrics.Collector
	Hub           *browser.Hub
	Storage       output.ObjectStorage
	Presets       *application.PresetCatalog
	Sync          *application.PresetSyncService
	Maps          *application.MapService
	HealthService *application.HealthService
	Tiles         *mbtiles.Store
	HTTPServer    *httpAdapter.Server
	TLSServer     *tlsAdapter.Server
	Watcher       *watcher.Watcher

	// local is set when presets come from the local file system, so watcher
	// paths can be mapped back to object keys.
	local *storage.LocalStorage
}

// New creates and initializes a new application.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	// Initialize metrics
	var metricsCollector output.MetricsCollector = &output.NoOpMetrics{}
	if cfg.Metrics.Enabled {
		app.Metrics = metrics.NewCollector(cfg.Metrics.Namespace)
		metricsCollector = app.Metrics
	}

	// The hub carries runtime calls to the browser pages
	app.Hub = browser.NewHub(browser.Config{
		OutboxSize: cfg.Runtime.OutboxSize,
		Heartbeat:  cfg.Runtime.Heartbeat,
	}, logger)

	// Initialize preset storage and catalog. presets stays a nil interface
	// when presets are disabled.
	var presets input.PresetService
	if cfg.Presets.Enabled {
		store, err := NewStorage(ctx, cfg.Presets.Storage)
		if err != nil {
			return nil, fmt.Errorf("initializing storage: %w", err)
		}
		app.Storage = store
		if local, ok := store.(*storage.LocalStorage); ok {
			app.local = local
		}

		app.Presets = application.NewPresetCatalog(store, metricsCollector, logger)
		app.Sync = application.NewPresetSyncService(app.Presets, cfg.Presets.SyncInterval, logger)
		presets = app.Presets
	}

	// Initialize map service
	app.Maps = application.NewMapService(app.Hub, presets, metricsCollector, logger,
		application.MapServiceConfig{
			CallTimeout: cfg.Runtime.CallTimeout,
			MaxMaps:     cfg.Runtime.MaxMaps,
		})

	// Initialize health service
	app.HealthService = application.NewHealthService(app.Maps, app.Presets, app.Hub)

	// Initialize tile store
	if cfg.Tiles.Enabled() {
		app.Tiles = mbtiles.NewStore(cfg.Tiles.Path, logger)
	}

	// Initialize HTTP server
	deps := httpAdapter.Deps{
		Maps:   app.Maps,
		Health: app.HealthService,
		Hub:    app.Hub,
	}
	if app.Presets != nil {
		deps.Presets = app.Presets
		deps.Sync = app.Sync
	}
	if app.Tiles != nil {
		deps.Tiles = app.Tiles
	}
	if app.Metrics != nil {
		deps.Metrics = app.Metrics
		deps.MetricsPath = cfg.Metrics.Path
	}
	app.HTTPServer = httpAdapter.NewServer(cfg.Server, deps, logger)

	// Initialize TLS server if enabled
	if cfg.TLS.Enabled {
		tlsServer, err := tlsAdapter.NewServer(
			tlsAdapter.Config{
				Domains:  cfg.TLS.Domains,
				Email:    cfg.TLS.Email,
				CacheDir: cfg.TLS.CacheDir,
				Staging:  cfg.TLS.Staging,
				DNS: tlsAdapter.DNSConfig{
					SubscriptionID:    cfg.TLS.DNS.SubscriptionID,
					ResourceGroupName: cfg.TLS.DNS.ResourceGroupName,
					ClientID:          cfg.TLS.DNS.ClientID,
				},
			},
			app.HTTPServer.HTTPServer(),
			logger,
		)
		if err != nil {
			return nil, fmt.Errorf("initializing TLS: %w", err)
		}
		app.TLSServer = tlsServer
	}

	// Initialize file watcher for hot-reload
	if paths := app.watchPaths(); len(paths) > 0 {
		w, err := watcher.New(
			watcher.Config{
				Paths:  paths,
				Filter: watchFilter,
			},
			app.handleFileEvent,
			logger,
		)
		if err != nil {
			logger.Warn("failed to initialize file watcher", "error", err)
		} else {
			app.Watcher = w
		}
	}

	return app, nil
}

// Start starts all application components. It blocks until the server
// stops.
func (a *App) Start(ctx context.Context) error {
	if a.Presets != nil {
		if err := a.Presets.LoadAll(ctx); err != nil {
			a.Logger.Warn("failed to load presets", "error", err)
		}
		if a.Config.Presets.SyncInterval > 0 {
			a.Sync.Start(ctx)
		}
	}

	if a.Tiles != nil {
		if err := a.Tiles.Refresh(ctx); err != nil {
			a.Logger.Warn("failed to open tilesets", "error", err)
		}
	}

	// Start file watcher
	if a.Watcher != nil {
		if err := a.Watcher.Start(ctx); err != nil {
			a.Logger.Warn("failed to start file watcher", "error", err)
		}
	}

	// Start server
	if a.TLSServer != nil {
		return a.TLSServer.ListenAndServe(ctx)
	}
	if err := a.HTTPServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down all components.
func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.Info("shutting down application")

	// Stop watcher
	if a.Watcher != nil {
		_ = a.Watcher.Stop()
	}

	if a.Sync != nil && a.Config.Presets.SyncInterval > 0 {
		a.Sync.Stop()
	}

	// Dispose maps first so their dispose calls reach attached browsers
	// before the streams are cut.
	a.Maps.DisposeAll(ctx)

	if a.TLSServer != nil {
		if err := a.TLSServer.Shutdown(ctx); err != nil {
			a.Logger.Error("HTTPS server shutdown error", "error", err)
		}
	} else if err := a.HTTPServer.Shutdown(ctx); err != nil {
		a.Logger.Error("HTTP server shutdown error", "error", err)
	}

	if a.Tiles != nil {
		if err := a.Tiles.Close(); err != nil {
			a.Logger.Error("failed to close tilesets", "error", err)
		}
	}

	return nil
}

// watchPaths returns the directories the watcher follows: local presets
// when hot reload is on, and the tiles directory.
func (a *App) watchPaths() []string {
	var paths []string
	if a.local != nil && a.Config.Presets.Watch {
		paths = append(paths, a.Config.Presets.Storage.LocalPath)
	}
	if a.Tiles != nil {
		paths = append(paths, a.Config.Tiles.Path)
	}
	return paths
}

func watchFilter(path string) bool {
	return storage.IsPresetKey(path) || isTileset(path)
}

func isTileset(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".mbtiles")
}

// handleFileEvent handles file system events for hot-reload.
func (a *App) handleFileEvent(ctx context.Context, event watcher.Event) error {
	a.Logger.Info("file event", "path", event.Path, "operation", event.Operation.String())

	if isTileset(event.Path) {
		if a.Tiles == nil {
			return nil
		}
		return a.Tiles.Refresh(ctx)
	}

	if a.local == nil || a.Presets == nil {
		return nil
	}
	key, err := a.local.Key(event.Path)
	if err != nil {
		return fmt.Errorf("mapping %s to a preset key: %w", event.Path, err)
	}

	switch event.Operation {
	case watcher.OpCreate, watcher.OpModify:
		return a.Presets.Reload(ctx, key)

	case watcher.OpDelete:
		if !a.Presets.Remove(key) {
			a.Logger.Debug("deleted file was not a loaded preset", "key", key)
		}
		return nil
	}

	return nil
}

// NewStorage creates the preset storage adapter selected by cfg.Type.
func NewStorage(ctx context.Context, cfg config.StorageConfig) (output.ObjectStorage, error) {
	switch cfg.Type {
	case "local":
		return storage.NewLocalStorage(cfg.LocalPath), nil

	case "s3":
		return storage.NewS3Storage(ctx, storage.S3Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Prefix:          cfg.S3.Prefix,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})

	case "azure":
		return storage.NewAzureStorage(storage.AzureConfig{
			Container:        cfg.Azure.Container,
			AccountName:      cfg.Azure.AccountName,
			AccountKey:       cfg.Azure.AccountKey,
			ConnectionString: cfg.Azure.ConnectionString,
			Prefix:           cfg.Azure.Prefix,
		})

	case "http":
		return storage.NewHTTPStorage(storage.HTTPConfig{
			BaseURL:   cfg.HTTP.BaseURL,
			IndexFile: cfg.HTTP.IndexFile,
			Timeout:   cfg.HTTP.Timeout,
			Username:  cfg.HTTP.Username,
			Password:  cfg.HTTP.Password,
		}), nil

	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
