package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"vitals_backend/analysis"
	"vitals_backend/core"
	"vitals_backend/db"
	"vitals_backend/detection"
	"vitals_backend/logging"
	"vitals_backend/media"
	"vitals_backend/metrics"
	"vitals_backend/recorder"
	"vitals_backend/report"
	"vitals_backend/results"
	"vitals_backend/shutdown"
	"vitals_backend/status"
	"vitals_backend/webui"
	"vitals_backend/webui/auth"
)

// historyCleanupInterval is how often expired history rows are purged.
const historyCleanupInterval = 6 * time.Hour

// App holds every long-lived component of the server.
type App struct {
	cfg     *core.Config
	logger  *logging.Logger
	manager *shutdown.Manager

	database    *db.Database
	writer      *db.AsyncWriter
	history     *db.Repository
	broadcaster *status.Broadcaster
	hub         *webui.StatusHub
	stats       *metrics.Store
	processor   *analysis.Processor
	session     *recorder.Session
	auth        *auth.AuthMiddleware
	server      *webui.Server
}

// trackedProcessor runs each upload analysis as a tracked operation, so
// shutdown waits for it and refuses new ones.
type trackedProcessor struct {
	inner   webui.VideoProcessor
	manager *shutdown.Manager
}

func (p trackedProcessor) ProcessVideo(ctx context.Context, req analysis.Request) (*analysis.BatchResult, error) {
	var result *analysis.BatchResult
	err := p.manager.WrapOperation(ctx, "process-video", func(ctx context.Context) error {
		var err error
		result, err = p.inner.ProcessVideo(ctx, req)
		return err
	})
	return result, err
}

// newPipeline builds the detector, storage and analysis processor shared by
// the server and the one-shot analyze command. history, publisher and stats
// may be nil.
func newPipeline(cfg *core.Config, logger *zap.Logger, history analysis.HistoryRecorder, publisher status.Publisher, stats *metrics.Store) *analysis.Processor {
	layout := cfg.Layout()
	var detector detection.Detector = detection.NewCommandDetector(cfg.DetectorCommand, cfg.DetectorTimeout,
		logger.Named("detector"), detection.WithTempRoot(os.TempDir()))
	if stats != nil {
		detector = metrics.InstrumentDetector(detector, stats)
	}

	return analysis.NewProcessor(analysis.Options{
		Detector:         detector,
		Prober:           media.FFprobe{Timeout: media.DefaultProbeTimeout},
		Store:            results.NewStore(layout, logger.Named("results")),
		History:          history,
		Publisher:        publisher,
		Chart:            report.ChartBase64,
		DefaultAPIKey:    cfg.DefaultAPIKey,
		MaxVideoDuration: cfg.MaxVideoDuration,
		Logger:           logger.Named("analysis"),
	})
}

// newApp opens storage and wires the components. Every resource it
// acquires is registered with manager for cleanup.
func newApp(cfg *core.Config, logger *logging.Logger, manager *shutdown.Manager) (*App, error) {
	zl := logger.Zap()
	layout := cfg.Layout()
	if err := layout.Ensure(); err != nil {
		return nil, core.ErrDataDirUnwritable(layout.Root, err.Error())
	}

	a := &App{cfg: cfg, logger: logger, manager: manager}

	database, err := db.Open(layout.DatabasePath(), zl.Named("db"))
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	a.database = database
	manager.Register("database", shutdown.PriorityStorage, func(context.Context) error {
		return database.Close()
	})

	// The writer drains through a repository without a queue of its own.
	direct := db.NewRepository(database, nil, zl.Named("db"))
	a.writer = db.NewAsyncWriter(direct.CreateAsyncWriteHandler(), zl.Named("db"))
	a.history = db.NewRepository(database, a.writer, zl.Named("db"))
	a.writer.Start()
	manager.Register("history-writer", shutdown.PriorityWriters, func(context.Context) error {
		if !a.writer.Stop() {
			return errors.New("history writer did not drain in time")
		}
		return nil
	})

	a.broadcaster = status.NewBroadcaster(status.DefaultQueueSize, zl.Named("status"))
	hubConfig := webui.DefaultStatusHubConfig()
	hubConfig.AllowedOrigins = cfg.CORSOrigins
	a.hub = webui.NewStatusHub(a.broadcaster, hubConfig, zl.Named("ws"))

	a.stats = metrics.NewStore(metrics.StoreConfig{
		RecentCapacity: metrics.DefaultRecentCapacity,
		Version:        core.Version,
	}, time.Now())
	a.processor = newPipeline(cfg, zl, a.history, a.hub, a.stats)

	a.session = recorder.NewSession(recorder.Config{
		Camera: media.NewFFmpegCamera(media.CameraConfig{
			FFmpegPath:     cfg.FFmpegPath,
			InputFormat:    cfg.CameraInputFormat,
			DeviceTemplate: cfg.CameraDeviceTemplate,
			Width:          cfg.CaptureWidth,
			Height:         cfg.CaptureHeight,
			FPS:            cfg.CaptureFPS,
		}, zl.Named("camera")),
		Encoder:       media.NewFFmpegEncoder(cfg.FFmpegPath, zl.Named("encoder")),
		Analyzer:      a.processor,
		Publisher:     a.hub,
		Layout:        layout,
		DefaultAPIKey: cfg.DefaultAPIKey,
		ProbeCount:    cfg.CameraProbeCount,
		FPS:           cfg.CaptureFPS,
		Logger:        zl.Named("recorder"),
	})
	manager.Register("recorder", shutdown.PriorityRecorder, a.session.Close)

	var authProvider webui.AuthProvider
	if cfg.WebUIPassword != "" {
		a.auth, err = auth.NewAuthMiddleware(cfg.WebUIPassword, zl, auth.Config{Title: cfg.AppTitle})
		if err != nil {
			return nil, fmt.Errorf("configure web ui password: %w", err)
		}
		authProvider = a.auth
	}

	serverConfig := webui.DefaultServerConfig()
	serverConfig.Host = cfg.Host
	serverConfig.Port = cfg.Port
	serverConfig.MaxUploadBytes = cfg.MaxUploadBytes
	serverConfig.UploadRatePerMinute = cfg.UploadRatePerMinute
	serverConfig.CORSOrigins = cfg.CORSOrigins
	serverConfig.Page = webui.PageConfig{
		Title:            cfg.AppTitle,
		Methods:          detection.Labels(),
		DefaultMethod:    cfg.DefaultMethod,
		APIKeyConfigured: cfg.DefaultAPIKey != "",
		MaxFileSizeMB:    cfg.MaxUploadMB(),
		MaxVideoDuration: int(cfg.MaxVideoDuration / time.Second),
	}

	a.server, err = webui.NewServer(serverConfig, webui.Deps{
		Processor: trackedProcessor{inner: a.processor, manager: manager},
		Recorder:  a.session,
		History:   a.history,
		Hub:       a.hub,
		Stats:     a.stats,
		Auth:      authProvider,
		Logger:    zl.Named("webui"),
	})
	if err != nil {
		return nil, err
	}
	manager.Register("http", shutdown.PriorityHTTP, a.server.Shutdown)
	manager.Register("broadcaster", shutdown.PriorityRecorder, func(context.Context) error {
		a.broadcaster.Close()
		return nil
	})
	manager.Register("upload-temp", shutdown.PriorityFiles,
		shutdown.CleanupTempFiles(zl, os.TempDir(), shutdown.UploadTempPattern))
	manager.Register("logs", shutdown.PriorityLogs, shutdown.SyncLogger(logger.Sync))

	return a, nil
}

// Run starts the background jobs and serves until ctx is cancelled or the
// listener fails.
func (a *App) Run(ctx context.Context) error {
	zl := a.logger.Zap()

	// Stale temp files from a crashed run.
	shutdown.CleanupTempFiles(zl, os.TempDir(), shutdown.UploadTempPattern)(ctx)

	if a.cfg.HistoryRetention > 0 {
		a.database.StartCleanupScheduler(ctx, db.CleanupSchedulerConfig{
			Retention: a.cfg.HistoryRetention,
			Interval:  historyCleanupInterval,
		})
	}
	if a.auth != nil {
		a.auth.StartCleanup(ctx, 10*time.Minute)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.Start(ctx)
	}()

	a.logger.Info("VitalLens server ready",
		zap.String("url", "http://"+a.cfg.Addr()),
		zap.String("data_dir", a.cfg.DataDir),
		zap.Bool("auth_enabled", a.server.HasAuth()),
		zap.Bool("api_key_loaded", a.cfg.DefaultAPIKey != ""))

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}
