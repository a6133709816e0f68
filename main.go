package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"media-ingest/internal/backend"
	"media-ingest/internal/database"
	"media-ingest/internal/geocode"
	"media-ingest/internal/handlers"
	"media-ingest/internal/logging"
	"media-ingest/internal/media"
	"media-ingest/internal/memory"
	"media-ingest/internal/metadata"
	"media-ingest/internal/metrics"
	"media-ingest/internal/middleware"
	"media-ingest/internal/startup"
	"media-ingest/internal/transcoder"
	"media-ingest/internal/upload"

	"github.com/gorilla/mux"
)

const metricsInterval = 15 * time.Second

func main() {
	startTime := time.Now()

	// Apply the container memory limit before anything allocates heavily
	startup.LogMemoryConfig(memory.ConfigureFromEnv())

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	ctx := context.Background()

	if err := media.InitVips(); err != nil {
		logging.Warn("libvips unavailable, normalization will use the fallback transcoder: %v", err)
	}
	defer media.ShutdownVips()

	// Initialize database
	dbStart := time.Now()
	db, err := database.New(ctx, config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	defer db.Close()
	startup.LogDatabaseInit(time.Since(dbStart))

	// Initialize transcoder
	startup.LogTranscoderInit(config.TranscodingEnabled)
	trans := transcoder.New(config.TranscodeDir)

	pipeline := newPipeline(config, trans)

	var previews upload.PreviewStore = upload.NewMemoryPreviewStore()
	if config.PreviewsEnabled {
		fileStore, err := upload.NewFilePreviewStore(config.PreviewDir)
		if err != nil {
			logging.Warn("Preview directory unusable, keeping previews in memory: %v", err)
		} else {
			previews = fileStore
		}
	}

	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()

	observer := metrics.NewUploadObserver()
	newBatch := func(albumID string) *upload.Batch {
		return upload.NewBatch(pipeline, upload.Options{
			AccountID: config.AccountID,
			AlbumID:   albumID,
			MaxBytes:  config.MaxUploadBytes,
			Observer:  observer,
			Ledger:    db,
			Previews:  previews,
			Memory:    monitor,
			Upgrade:   upgradeHandler(config.UpgradeURL),
			OnComplete: func(successCount int) {
				logging.Info("Batch complete: %d item(s) uploaded", successCount)
			},
		})
	}

	registry := upload.NewRegistry()

	// Metrics
	var collector *metrics.Collector
	if config.MetricsEnabled {
		metrics.InitializeMetrics()
		buildInfo := startup.GetBuildInfo()
		metrics.SetAppInfo(buildInfo.Version, buildInfo.Commit, runtime.Version())
		collector = metrics.NewCollector(&statsAdapter{registry: registry, orphans: db, trans: trans},
			config.DatabasePath, metricsInterval)
		collector.Start()
	}

	// Initialize handlers
	h := handlers.New(registry, newBatch, db, config)
	h.SetMemoryStatus(monitor)

	// Setup router
	router := setupRouter(h, config.MetricsEnabled)

	// Log routes dynamically
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	// Apply logging middleware
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Logger(loggingConfig)(router)

	// Create server
	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	// Start graceful shutdown handler
	done := make(chan struct{})
	go func() {
		defer close(done)
		handleShutdown(srv, registry, monitor, collector, trans)
	}()

	// Start server
	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
	<-done
}

// newPipeline builds the per-item collaborators shared by every batch.
func newPipeline(config *startup.Config, trans *transcoder.Transcoder) upload.Pipeline {
	httpClient := &http.Client{Timeout: config.HTTPTimeout}

	var geocoder metadata.Geocoder
	if config.GeocodeEnabled {
		geocoder = geocode.NewCached(geocode.New(geocode.Options{
			URL:        config.GeocodeURL,
			Retries:    config.HTTPRetries,
			HTTPClient: httpClient,
		}), config.GeocodeCacheTTL)
	}

	backendOpts := backend.Options{
		URL:        config.BlobURL,
		Token:      config.APIToken,
		Retries:    config.HTTPRetries,
		HTTPClient: httpClient,
	}
	registrarOpts := backendOpts
	registrarOpts.URL = config.APIURL

	return upload.Pipeline{
		Extractor:  metadata.NewExtractor(trans, geocoder),
		Normalizer: media.NewNormalizer(media.VipsTranscoder{}, media.SurfaceTranscoder{Decoder: trans}),
		Previews:   media.NewPreviewGenerator(trans, config.PreviewMaxEdge),
		Blobs:      backend.NewHTTPBlobStore(backendOpts),
		Registrar:  backend.NewHTTPRegistrar(registrarOpts),
	}
}

// upgradeHandler hands the paused batch to the plan upgrade flow. The flow
// itself lives in the client; the server only records the hand-off.
func upgradeHandler(upgradeURL string) upload.UpgradeHandler {
	return upload.UpgradeFunc(func(_ context.Context, pause upload.PauseSummary) error {
		if upgradeURL == "" {
			logging.Warn("Upgrade requested for %s limit (%d/%d) but INGEST_UPGRADE_URL is not set",
				pause.Kind, pause.Current, pause.Limit)
			return nil
		}
		logging.Info("Upgrade requested for %s limit (%d/%d), %d item(s) left pending",
			pause.Kind, pause.Current, pause.Limit, pause.Pending)
		return nil
	})
}

// orphanCounter is the part of the database the stats adapter needs.
type orphanCounter interface {
	CountOrphans(ctx context.Context) (int, error)
}

// activeCounter reports running external processes.
type activeCounter interface {
	Active() int
}

// statsAdapter feeds the metrics collector from the live registry and the
// orphan ledger.
type statsAdapter struct {
	registry *upload.Registry
	orphans  orphanCounter
	trans    activeCounter
}

// GetStats implements metrics.StatsProvider
func (a *statsAdapter) GetStats() metrics.Stats {
	stats := a.registry.Stats()

	if a.orphans != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if n, err := a.orphans.CountOrphans(ctx); err != nil {
			logging.Debug("Metrics: failed to count orphans: %v", err)
		} else {
			stats.UnreclaimedOrphans = n
		}
	}
	if a.trans != nil {
		stats.TranscoderProcesses = a.trans.Active()
	}
	return stats
}

func setupRouter(h *handlers.Handlers, metricsEnabled bool) *mux.Router {
	r := mux.NewRouter()

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")
	if metricsEnabled {
		r.Handle("/metrics", h.MetricsHandler()).Methods("GET")
	}

	// Batches
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/batches", h.ListBatches).Methods("GET")
	api.HandleFunc("/batches", h.CreateBatch).Methods("POST")
	api.HandleFunc("/batches/{id}", h.GetBatch).Methods("GET")
	api.HandleFunc("/batches/{id}", h.DeleteBatch).Methods("DELETE")
	api.HandleFunc("/batches/{id}/run", h.RunBatch).Methods("POST")
	api.HandleFunc("/batches/{id}/resolve", h.ResolveBatch).Methods("POST")

	// Items
	api.HandleFunc("/batches/{id}/items/{item}/retry", h.RetryItem).Methods("POST")
	api.HandleFunc("/batches/{id}/items/{item}", h.RemoveItem).Methods("DELETE")
	api.HandleFunc("/batches/{id}/items/{item}/preview", h.GetPreview).Methods("GET")

	// Ledger
	api.HandleFunc("/orphans", h.ListOrphans).Methods("GET")
	api.HandleFunc("/orphans/{id}/reclaimed", h.MarkOrphanReclaimed).Methods("POST")
	api.HandleFunc("/history", h.BatchHistory).Methods("GET")

	if metricsEnabled {
		r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
	}

	return r
}

func handleShutdown(srv *http.Server, registry *upload.Registry, monitor *memory.Monitor, collector *metrics.Collector, trans *transcoder.Transcoder) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownStep("Disposing batches")
	registry.Close(ctx)
	startup.LogShutdownStepComplete("Batches disposed")

	monitor.Stop()
	if collector != nil {
		collector.Stop()
	}

	startup.LogShutdownStep("Cleaning up transcoder")
	trans.Cleanup()
	startup.LogShutdownStepComplete("Transcoder cleanup complete")

	startup.LogShutdownComplete()
}
