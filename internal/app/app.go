package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"tabviz/internal/cache"
	"tabviz/internal/charts"
	"tabviz/internal/config"
	"tabviz/internal/dataprocessing"
	"tabviz/internal/datasource"
	apierrors "tabviz/internal/errors"
	"tabviz/internal/exporter"
	"tabviz/internal/files"
	"tabviz/internal/infrastructure"
	customMiddleware "tabviz/internal/middleware"
	"tabviz/internal/render"
	"tabviz/internal/services"
	"tabviz/internal/session"
	"tabviz/internal/storage"
	handlers "tabviz/internal/transport/http"
	"tabviz/internal/validation"
	"tabviz/internal/watcher"
	ws "tabviz/internal/websocket"
	"tabviz/pkg/contracts"

	"github.com/go-chi/chi/v5"
	chirender "github.com/go-chi/render"
)

const AppName = "tabviz"

// Application represents the main application container
type Application struct {
	Config          *config.Config
	Router          *chi.Mux
	Server          *http.Server
	Logger          *slog.Logger
	OTelProviders   *infrastructure.OTelProviders
	BusinessMetrics *infrastructure.BusinessMetrics
	RuntimeMetrics  *infrastructure.RuntimeMetricsCollector
	ErrorHandler    *apierrors.ErrorHandler

	Store          *session.Store
	WebSocketHub   *ws.Hub
	ChartCache     *cache.BoltCache
	History        *storage.History
	Watcher        *watcher.FileWatcher
	DatasetService *services.DatasetService
	ChartService   *services.ChartService
	HealthService  *services.HealthService
}

// NewApplication loads the configuration, sets up logging and builds the
// application
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("version", contracts.Version),
		slog.String("environment", cfg.Server.Environment))

	paths, err := config.GetPaths()
	if err != nil {
		return nil, fmt.Errorf("failed to get paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}

	return New(cfg, logger)
}

// New builds the application from an already loaded configuration
func New(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(cfg.Data.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	for _, path := range []string{cfg.Charts.CachePath, cfg.Data.HistoryPath} {
		if err := config.EnsureParent(path); err != nil {
			return nil, err
		}
	}
	cfg.LogPathResolution(logger)

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.NewOTelConfig(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	businessMetrics, err := infrastructure.CreateBusinessMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}

	if err := ws.InitOTelMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize WebSocket OpenTelemetry metrics: %w", err)
	}

	runtimeMetrics, err := infrastructure.NewRuntimeMetricsCollector(otelProviders.Meter, 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to create runtime metrics: %w", err)
	}

	app := &Application{
		Config:          cfg,
		Logger:          logger,
		OTelProviders:   otelProviders,
		BusinessMetrics: businessMetrics,
		RuntimeMetrics:  runtimeMetrics,
		ErrorHandler:    apierrors.NewErrorHandler(logger, cfg.IsDevelopment()),
	}

	if err := app.initializeServices(); err != nil {
		if app.WebSocketHub != nil {
			app.WebSocketHub.Stop()
		}
		app.closeStores()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

// initializeServices wires the cleaning engine, chart pipeline, storage and
// services in dependency order
func (a *Application) initializeServices() error {
	cfg := a.Config

	cleaner, err := dataprocessing.NewCleaner(dataprocessing.CleaningConfig{
		NumericStrategy:     dataprocessing.NumericStrategy(cfg.Cleaning.NumericStrategy),
		CategoricalStrategy: dataprocessing.CategoricalStrategy(cfg.Cleaning.CategoricalStrategy),
		NullThreshold:       cfg.Cleaning.NullThreshold,
		DropEmptyOrConstant: cfg.Cleaning.DropEmptyOrConstant,
		DatePatterns:        cfg.Cleaning.DatePatterns,
		DateColumns:         cfg.Cleaning.DateColumns,
		FillLabel:           cfg.Cleaning.FillLabel,
	}, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create cleaner: %w", err)
	}

	resolverCfg := charts.DefaultResolverConfig()
	resolverCfg.TopN = cfg.Charts.TopN
	resolverCfg.HistogramBins = cfg.Charts.HistogramBins
	resolver := charts.NewResolver(resolverCfg, cleaner.Classifier(), a.Logger)

	renderer := render.NewPNGRenderer(render.Config{
		Width:  cfg.Charts.Width,
		Height: cfg.Charts.Height,
	}, a.Logger)

	a.Store = session.NewStore()

	if cfg.WebSocket.Enabled {
		a.WebSocketHub = ws.NewHub(a.Logger)
		a.WebSocketHub.Start()
	}

	if cfg.Charts.CacheEnabled {
		a.ChartCache, err = cache.Open(cfg.Charts.CachePath, cfg.Charts.CacheMaxEntries)
		if err != nil {
			return fmt.Errorf("failed to open chart cache: %w", err)
		}
	}

	if cfg.Data.HistoryEnabled {
		a.History, err = storage.OpenHistory(context.Background(), cfg.Data.HistoryPath)
		if err != nil {
			return fmt.Errorf("failed to open load history: %w", err)
		}
	}

	// Optional collaborators stay untyped nil when disabled
	datasetDeps := services.DatasetDeps{
		Store:    a.Store,
		Cleaner:  cleaner,
		Profiler: dataprocessing.NewProfiler(cleaner.Classifier(), a.Logger),
		Caster:   dataprocessing.NewTypeCaster(),
		Resolver: resolver,
		Files:    validation.NewFileValidator(a.Logger, cfg.Data.MaxUploadBytes),
		Catalog:  files.NewCatalog(cfg.Data.DataDir, validation.DatasetExtensions),
		Metrics:  a.BusinessMetrics,
		Source: datasource.Options{
			Delimiter: cfg.Data.DelimiterRune(),
			Sheet:     cfg.Data.Sheet,
		},
		Export: exporter.WriteOptions{BOMPrefix: cfg.Data.ExportBOM},
		Logger: a.Logger,
	}
	chartDeps := services.ChartDeps{
		Store:    a.Store,
		Resolver: resolver,
		Renderer: renderer,
		Metrics:  a.BusinessMetrics,
		Logger:   a.Logger,
		Variant:  services.ChartVariant(resolver.Config(), renderer.Config()),
	}
	healthDeps := services.HealthDeps{
		DataDir: cfg.Data.DataDir,
		Store:   a.Store,
		Logger:  a.Logger,
	}
	if a.History != nil {
		datasetDeps.History = a.History
	}
	if a.WebSocketHub != nil {
		datasetDeps.Events = a.WebSocketHub
		healthDeps.Hub = a.WebSocketHub
	}
	if a.ChartCache != nil {
		chartDeps.Cache = a.ChartCache
		healthDeps.Cache = a.ChartCache
	}

	a.DatasetService, err = services.NewDatasetService(datasetDeps)
	if err != nil {
		return fmt.Errorf("failed to initialize dataset service: %w", err)
	}

	a.ChartService, err = services.NewChartService(chartDeps)
	if err != nil {
		return fmt.Errorf("failed to initialize chart service: %w", err)
	}

	a.HealthService = services.NewHealthService(healthDeps)

	if cfg.Data.Watch {
		a.Watcher, err = watcher.New(watcher.Config{
			Path:     cfg.Data.DefaultDataset,
			Debounce: cfg.Data.WatchDebounce,
			OnChange: a.DatasetService.Reload,
		}, a.Logger)
		if err != nil {
			return fmt.Errorf("failed to create dataset watcher: %w", err)
		}
	}

	return nil
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// Middleware that does not wrap the ResponseWriter, safe for the upgrade
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)

	r.NotFound(a.ErrorHandler.NotFound)
	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

	if a.WebSocketHub != nil {
		r.With(customMiddleware.WebSocketTraceMiddleware(a.Logger)).
			Get("/ws", ws.Handler(a.WebSocketHub, a.Config.WebSocketOrigins(), a.Logger))
	}

	r.Group(func(r chi.Router) {
		otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTelProviders, a.BusinessMetrics)
		if err != nil {
			a.Logger.Error("Failed to create OpenTelemetry middleware", slog.String("error", err.Error()))
		} else {
			r.Use(otelMiddleware.Handler)
		}
		r.Use(customMiddleware.BusinessMetricsMiddleware(a.BusinessMetrics))

		r.Use(customMiddleware.StructuredLogger(a.Logger))
		r.Use(customMiddleware.Recoverer(a.Logger))
		r.Use(customMiddleware.SecurityHeaders)

		if a.Config.Security.EnableCORS {
			r.Use(customMiddleware.CORS(a.corsConfig()))
		}

		if a.Config.Security.RateLimit.Enabled {
			r.Use(customMiddleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
			).Handler)
		}

		r.Use(customMiddleware.Compress(5))

		a.setupAPIRoutes(r)
	})

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(chirender.SetContentType(chirender.ContentTypeJSON))
		r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout, a.Logger))

		healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
		r.Get("/health", healthHandler.HealthCheck)
		r.Get("/health/ready", healthHandler.ReadinessCheck)
		r.Get("/health/live", healthHandler.LivenessCheck)
		r.Get("/version", healthHandler.Version)
		r.Get("/stats", healthHandler.Stats)

		r.Post("/logs", handlers.NewClientLogHandler(a.Logger, a.ErrorHandler).Handle)

		// Session routes share the API key guard and the audit trail
		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.APIKeyAuth(a.Logger, a.Config.Security.APIKeys))
			r.Use(customMiddleware.AuditLog(a.Logger))

			datasetHandler := handlers.NewDatasetHandler(a.DatasetService, a.Logger, a.ErrorHandler, a.Config.Data.MaxUploadBytes)
			r.Mount("/dataset", datasetHandler.Routes())

			chartHandler := handlers.NewChartHandler(a.ChartService, a.Logger, a.ErrorHandler)
			r.Mount("/charts", customMiddleware.ChartTraceHandler(chartHandler.Routes().ServeHTTP))
		})
	})
}

func (a *Application) corsConfig() customMiddleware.CORSConfig {
	return customMiddleware.CORSConfig{
		AllowedOrigins: a.Config.Security.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"X-API-Key",
			"X-Request-ID",
			"X-Requested-With",
		},
		ExposedHeaders: []string{
			"X-Request-ID",
			"X-Dataset-Snapshot",
			"X-Chart-Cache",
		},
		MaxAge: 300,
		Logger: a.Logger,
	}
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           a.Config.Server.Address(),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Start starts the background services and the HTTP server. cancel is
// called if the server fails after startup.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", AppName),
		slog.String("version", contracts.Version),
		slog.String("address", a.Server.Addr),
		slog.String("level", a.Config.Logging.Level))

	go a.RuntimeMetrics.Start(ctx)

	a.loadDefaultDataset(ctx)

	if a.Watcher != nil {
		if err := a.Watcher.Start(ctx); err != nil {
			return fmt.Errorf("failed to start dataset watcher: %w", err)
		}
	}

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	if err := a.performStartupHealthCheck(ctx); err != nil {
		a.Logger.WarnContext(ctx, "Startup health check warnings", slog.String("warnings", err.Error()))
	}

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", a.Server.Addr))
	return nil
}

// loadDefaultDataset publishes the configured dataset. A failure leaves the
// session empty; the server still starts.
func (a *Application) loadDefaultDataset(ctx context.Context) {
	path := a.Config.Data.DefaultDataset
	if path == "" {
		return
	}
	summary, err := a.DatasetService.LoadPath(ctx, path)
	if err != nil {
		a.Logger.WarnContext(ctx, "Default dataset not loaded",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return
	}
	a.Logger.InfoContext(ctx, "Default dataset loaded",
		slog.String("path", path),
		slog.String("snapshot_id", summary.ID),
		slog.Int("rows", summary.Rows),
		slog.Int("columns", summary.Columns))
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if a.Watcher != nil {
		if err := a.Watcher.Stop(); err != nil {
			a.Logger.ErrorContext(ctx, "Error stopping dataset watcher", slog.String("error", err.Error()))
		}
	}
	if a.WebSocketHub != nil {
		a.WebSocketHub.Stop()
	}
	a.RuntimeMetrics.Stop()
	a.closeStores()

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return nil
}

func (a *Application) closeStores() {
	if a.ChartCache != nil {
		if err := a.ChartCache.Close(); err != nil {
			a.Logger.Error("Error closing chart cache", slog.String("error", err.Error()))
		}
		a.ChartCache = nil
	}
	if a.History != nil {
		if err := a.History.Close(); err != nil {
			a.Logger.Error("Error closing load history", slog.String("error", err.Error()))
		}
		a.History = nil
	}
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal")
	case <-ctx.Done():
		a.Logger.InfoContext(ctx, "Server stopped unexpectedly")
	}

	err := a.Stop(context.Background())
	infrastructure.CloseLogFile()
	return err
}

// performStartupHealthCheck verifies the data directories are writable and
// the default dataset exists
func (a *Application) performStartupHealthCheck(ctx context.Context) error {
	var warnings []string

	directories := map[string]string{
		"Data": a.Config.Data.DataDir,
	}
	if a.ChartCache != nil {
		directories["Cache"] = filepath.Dir(a.Config.Charts.CachePath)
	}
	if a.History != nil {
		directories["History"] = filepath.Dir(a.Config.Data.HistoryPath)
	}

	for name, dir := range directories {
		testFile := filepath.Join(dir, ".write_test")
		if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
			warnings = append(warnings, fmt.Sprintf("%s directory not writable: %s", name, dir))
		} else {
			os.Remove(testFile)
		}
	}

	if path := a.Config.Data.DefaultDataset; path != "" && !config.FileExists(path) {
		warnings = append(warnings, fmt.Sprintf("default dataset not found: %s", path))
	}

	if len(warnings) > 0 {
		return fmt.Errorf("startup health check warnings: %s", strings.Join(warnings, "; "))
	}

	a.Logger.InfoContext(ctx, "Startup health check passed")
	return nil
}
