// -----------------------------------------------------------------------
// Application wiring - storage, services and handlers in dependency order
// -----------------------------------------------------------------------

package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/indago/internal/common"
	"github.com/ternarybob/indago/internal/handlers"
	"github.com/ternarybob/indago/internal/interfaces"
	"github.com/ternarybob/indago/internal/models"
	"github.com/ternarybob/indago/internal/services/directory"
	"github.com/ternarybob/indago/internal/services/events"
	"github.com/ternarybob/indago/internal/services/export"
	"github.com/ternarybob/indago/internal/services/maintenance"
	"github.com/ternarybob/indago/internal/services/registry"
	"github.com/ternarybob/indago/internal/services/scraper"
	"github.com/ternarybob/indago/internal/services/seeding"
	"github.com/ternarybob/indago/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// Core services
	EventService       interfaces.EventService
	RegistryService    *registry.Service
	ScraperService     *scraper.Service
	ExportService      *export.Service
	SeedingService     *seeding.Service
	MaintenanceService *maintenance.Service

	// HTTP handlers
	APIHandler      *handlers.APIHandler
	JobHandler      *handlers.JobHandler
	BusinessHandler *handlers.BusinessHandler
	ExportHandler   *handlers.ExportHandler
	SeedHandler     *handlers.SeedHandler
	WSHandler       *handlers.WebSocketHandler

	logStreamer *handlers.LogStreamer
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	// Initialize database
	if err := app.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// EventService and WebSocket handler are created early so the log
	// streamer and every service can reach them during initialization
	app.EventService = events.NewService(app.Logger)
	if err := events.SubscribeLoggerToAllEvents(app.EventService, app.Logger); err != nil {
		return nil, fmt.Errorf("failed to subscribe event logger: %w", err)
	}
	app.WSHandler = handlers.NewWebSocketHandler(app.Logger)

	// Drain arbor's context channel into the WebSocket hub so the UI
	// console follows the service log stream
	app.logStreamer = handlers.NewLogStreamer(app.WSHandler, app.Logger, &cfg.WebSocket)
	if err := app.logStreamer.Start(); err != nil {
		return nil, fmt.Errorf("failed to start log streamer: %w", err)
	}
	logBatchChannel := app.logStreamer.GetChannel()
	app.Logger.SetChannel("context", logBatchChannel)
	app.Logger.Debug().
		Int("channel_capacity", cap(logBatchChannel)).
		Msg("Log streamer attached to arbor context channel")

	// Initialize services
	if err := app.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	// Jobs and exports left running by a previous process are stale by
	// now; park them before the API starts accepting requests
	if err := app.recoverInterrupted(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to recover interrupted work: %w", err)
	}

	// Initialize handlers
	if err := app.initHandlers(); err != nil {
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	// Start maintenance AFTER handlers so startup noise never trips the
	// stale-job warnings
	if cfg.Maintenance.Enabled {
		if err := app.MaintenanceService.Start(); err != nil {
			return nil, fmt.Errorf("failed to start maintenance service: %w", err)
		}
		app.Logger.Debug().
			Str("gc_schedule", cfg.Maintenance.GCSchedule).
			Msg("Maintenance service started")
	}

	// Start WebSocket background tasks for real-time UI updates
	app.WSHandler.StartStatusBroadcaster()
	logger.Debug().Msg("WebSocket handlers started (status broadcaster)")

	// Log initialization summary
	logger.Info().
		Str("environment", cfg.Environment).
		Bool("maintenance_enabled", cfg.Maintenance.Enabled).
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase initializes the storage layer (Badger)
func (a *App) initDatabase() error {
	storageManager, err := badger.NewManager(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}

	a.StorageManager = storageManager
	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")

	return nil
}

// initServices initializes all business services in dependency order
func (a *App) initServices() error {
	// Registry guards one-active-job-per-domain before anything scrapes
	a.RegistryService = registry.NewService(a.StorageManager.Jobs(), a.Logger)
	a.Logger.Debug().Msg("Domain registry initialized")

	adapters := directory.NewFactory(&a.Config.Scraper, a.Logger)
	a.ScraperService = scraper.NewService(
		a.StorageManager,
		a.RegistryService,
		adapters,
		a.EventService,
		a.Logger,
	)
	a.Logger.Debug().
		Int("concurrent_requests", a.Config.Scraper.DefaultConcurrentRequests).
		Msg("Scraper service initialized")

	a.ExportService = export.NewService(a.StorageManager, a.EventService, a.Logger)
	a.Logger.Debug().Msg("Export service initialized")

	// A broken or missing catalog disables seeding but never blocks
	// startup; the seed endpoints report the condition instead
	catalog, err := seeding.LoadCatalog(a.Config.Seeding.CatalogPath)
	if err != nil {
		a.Logger.Warn().Err(err).
			Str("path", a.Config.Seeding.CatalogPath).
			Msg("Failed to load country catalog - seeding endpoints disabled")
		catalog = nil
	} else {
		a.Logger.Debug().
			Int("countries", catalog.TotalCountries()).
			Msg("Country catalog loaded")
	}
	a.SeedingService = seeding.NewService(a.StorageManager, catalog, a.Logger)

	a.MaintenanceService = maintenance.NewService(a.StorageManager, a.ScraperService, a.Config, a.Logger)

	return nil
}

// recoverInterrupted parks work orphaned by an unclean shutdown. Running
// scrape jobs become paused with reason server_restart so their cursors
// survive for a manual resume; running exports have no resumable cursor
// and are marked failed.
func (a *App) recoverInterrupted(ctx context.Context) error {
	count, err := a.StorageManager.Jobs().MarkRunningPaused(ctx, models.PauseReasonServerRestart)
	if err != nil {
		return fmt.Errorf("failed to pause interrupted jobs: %w", err)
	}
	if count > 0 {
		a.Logger.Info().
			Int("count", count).
			Msg("Paused scrape jobs left running by previous process")
	}

	exports, err := a.StorageManager.Exports().ListJobs(ctx, 0, 0)
	if err != nil {
		return fmt.Errorf("failed to list export jobs: %w", err)
	}
	for _, job := range exports {
		if job.Status != models.ExportStatusRunning {
			continue
		}
		err := a.StorageManager.Exports().UpdateJob(ctx, job.ID, func(j *models.ExportJob) {
			j.Status = models.ExportStatusFailed
			j.ErrorMessage = "interrupted by server restart"
			now := time.Now()
			j.CompletedAt = &now
		})
		if err != nil {
			a.Logger.Warn().Err(err).
				Str("export_id", job.ID).
				Msg("Failed to mark interrupted export as failed")
			continue
		}
		a.Logger.Info().
			Str("export_id", job.ID).
			Str("name", job.Name).
			Msg("Marked interrupted export as failed")
	}

	return nil
}

// initHandlers initializes the HTTP handler layer
func (a *App) initHandlers() error {
	a.APIHandler = handlers.NewAPIHandler()

	// EventSubscriber bridges job, progress and export events to the
	// WebSocket hub with config-driven whitelist and throttling
	_ = handlers.NewEventSubscriber(a.WSHandler, a.EventService, a.Logger, &a.Config.WebSocket)
	a.Logger.Debug().
		Int("allowed_events", len(a.Config.WebSocket.AllowedEvents)).
		Int("throttle_intervals", len(a.Config.WebSocket.ThrottleIntervals)).
		Msg("EventSubscriber initialized")

	a.JobHandler = handlers.NewJobHandler(a.ScraperService, a.RegistryService, a.StorageManager, a.Logger)
	a.BusinessHandler = handlers.NewBusinessHandler(a.StorageManager, a.Logger)
	a.ExportHandler = handlers.NewExportHandler(a.ExportService, a.Logger)
	a.SeedHandler = handlers.NewSeedHandler(a.SeedingService, a.Logger)
	a.Logger.Debug().Msg("HTTP handlers initialized")

	return nil
}

// Close gracefully shuts down all services in reverse dependency order
func (a *App) Close() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Stop maintenance first so cron ticks never race teardown
	if a.MaintenanceService != nil {
		a.MaintenanceService.Stop()
		a.Logger.Info().Msg("Maintenance service stopped")
	}

	// Pause running scrape jobs and wait for their supervisors
	if a.ScraperService != nil {
		if err := a.ScraperService.Shutdown(shutdownCtx); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to shut down scraper service")
		}
	}

	// Stop export runners
	if a.ExportService != nil {
		if err := a.ExportService.Shutdown(shutdownCtx); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to shut down export service")
		}
	}

	// Close event service
	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	// Stop the log streamer after the services that feed it
	if a.logStreamer != nil {
		if err := a.logStreamer.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop log streamer")
		} else {
			a.Logger.Info().Msg("Log streamer stopped")
		}
	}

	// Close storage
	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
