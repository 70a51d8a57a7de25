package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/time/rate"

	"github.com/dukerupert/fieldsync"
	fieldsynchttp "github.com/dukerupert/fieldsync/http"
	"github.com/dukerupert/fieldsync/internal/adaptive"
	"github.com/dukerupert/fieldsync/internal/identity"
	"github.com/dukerupert/fieldsync/internal/media"
	"github.com/dukerupert/fieldsync/internal/monitor"
	"github.com/dukerupert/fieldsync/internal/storage"
	"github.com/dukerupert/fieldsync/internal/syncer"
	"github.com/dukerupert/fieldsync/internal/templates"
	"github.com/dukerupert/fieldsync/postgres"
	"github.com/dukerupert/fieldsync/sqlite"
	"github.com/dukerupert/fieldsync/workflow"
)

// Services holds the assembled engine.
type Services struct {
	DB          *sqlite.DB
	Monitor     *monitor.Monitor
	Controller  *adaptive.Controller
	MediaStore  fieldsync.MediaStore
	Remote      fieldsync.Remote
	Blobs       fieldsync.BlobStorage
	Syncer      *syncer.Syncer
	Coordinator *workflow.Coordinator

	remoteDB *postgres.DB
}

// initServices constructs every component with explicit dependencies.
func initServices(ctx context.Context, cfg *Config, logger *slog.Logger) (*Services, error) {
	// Local store: records, media, outbox
	db, err := sqlite.Open(cfg.DataPath, sqlite.Options{
		MaxRetries:  cfg.SyncMaxRetries,
		BackoffBase: cfg.SyncBackoffBase,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("opening local store: %w", err)
	}
	logger.Info("local store opened", slog.String("path", cfg.DataPath))

	// Condition monitor
	networkSource := monitor.NewProbeSource(cfg.MonitorProbeURL, cfg.MonitorSaveData, cfg.SyncDeliveryTimeout)
	batterySource := newBatterySource(cfg, logger)
	m := monitor.New(networkSource, batterySource, monitor.Config{
		PollInterval:         cfg.MonitorPollInterval,
		BatteryOverrideLevel: cfg.BatteryOverrideLevel,
		Logger:               logger,
	})

	// Adaptation strategy controller
	controller := adaptive.New(m, adaptive.Config{
		NormalMaxDimension:    cfg.NormalMaxDimension,
		NormalQuality:         cfg.NormalQuality,
		EmergencyMaxDimension: cfg.EmergencyMaxDimension,
		EmergencyQuality:      cfg.EmergencyQuality,
		Logger:                logger,
	})

	// Media pipeline: compressor parameterized by the active strategy
	mediaStore := db.NewMediaStore(media.NewCompressor(logger), controller, logger)

	// Remote delivery
	services := &Services{
		DB:         db,
		Monitor:    m,
		Controller: controller,
		MediaStore: mediaStore,
	}
	remote, err := initRemote(ctx, cfg, services)
	if err != nil {
		db.Close()
		return nil, err
	}
	services.Remote = remote
	logger.Info("remote initialized", slog.String("provider", cfg.RemoteProvider))

	// Blob storage for media uploads
	blobs, err := storage.New(ctx, logger, storage.Config{
		Provider:  cfg.StorageProvider,
		LocalPath: cfg.StorageLocalPath,
		LocalURL:  cfg.StorageLocalURL,
		S3Bucket:  cfg.StorageS3Bucket,
		S3Region:  cfg.StorageS3Region,
		S3BaseURL: cfg.StorageS3BaseURL,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing blob storage: %w", err)
	}
	services.Blobs = blobs

	// Sync worker pool
	services.Syncer = syncer.New(db.SyncQueue, remote, db.InspectionStore, mediaStore, blobs,
		m, controller, syncer.Config{
			WorkerCount:     cfg.SyncWorkerCount,
			PollInterval:    cfg.SyncPollInterval,
			DeliveryTimeout: cfg.SyncDeliveryTimeout,
			RateLimit:       rate.Limit(cfg.SyncRateLimit),
			Logger:          logger,
		})

	// Template provisioning and identity
	provider, err := templates.NewFileProvider(cfg.TemplatePath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("loading templates: %w", err)
	}
	resolver := identity.NewCachedResolver(&identity.StaticResolver{
		Inspector: cfg.Inspector,
	}, cfg.IdentityCacheTTL)

	// Workflow coordinator
	services.Coordinator = workflow.New(db.InspectionStore, mediaStore, db.SyncQueue,
		provider, resolver, fieldsync.Callbacks{}, services.Syncer, m, workflow.Config{
			AutoSaveInterval: cfg.AutoSaveInterval,
			DeviceID:         cfg.DeviceID,
			Logger:           logger,
		})

	return services, nil
}

// initRemote creates the configured remote delivery implementation.
func initRemote(ctx context.Context, cfg *Config, services *Services) (fieldsync.Remote, error) {
	switch cfg.RemoteProvider {
	case "postgres":
		db, err := postgres.Open(ctx, cfg.RemoteDSN)
		if err != nil {
			return nil, fmt.Errorf("connecting remote database: %w", err)
		}
		services.remoteDB = db
		return db.Remote, nil
	default: // "http"
		return fieldsynchttp.NewRemote(cfg.RemoteURL, cfg.RemoteToken, cfg.SyncDeliveryTimeout), nil
	}
}

// newBatterySource picks the sysfs source when the supply directory exists,
// falling back to a mains-powered static reading.
func newBatterySource(cfg *Config, logger *slog.Logger) fieldsync.BatterySource {
	if _, err := os.Stat(cfg.BatteryPath); err == nil {
		return monitor.NewSysfsBatterySource(cfg.BatteryPath)
	}
	logger.Info("no battery telemetry, assuming external power",
		slog.String("path", cfg.BatteryPath))
	return &monitor.StaticBatterySource{Level: 1, Charging: true}
}

// Close releases everything initServices opened.
func (s *Services) Close() {
	if s.remoteDB != nil {
		s.remoteDB.Close()
	}
	if s.DB != nil {
		s.DB.Close()
	}
}
