package main

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"parking-status-backend/config"
	"parking-status-backend/internal/api"
	"parking-status-backend/internal/db"
	"parking-status-backend/internal/ingest"
	"parking-status-backend/internal/ledger"
	"parking-status-backend/internal/logging"
	"parking-status-backend/internal/notification"
	"parking-status-backend/internal/occupancy"
	"parking-status-backend/internal/simulator"
	"parking-status-backend/internal/store"
	"parking-status-backend/internal/telemetry"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "1.0.0"

const defaultConfigPath = "./config/config.yaml"

func main() {
	cfg, configSource, err := loadConfig()
	if err != nil {
		// The logger depends on the configuration; fall back to a
		// development logger to report the failure.
		zap.NewExample().Fatal("failed to load configuration", zap.Error(err))
	}

	logger, err := logging.New(cfg.Log.Level)
	if err != nil {
		zap.NewExample().Fatal("failed to build logger", zap.Error(err))
	}
	defer logger.Sync()
	logger.Info("configuration loaded", zap.String("source", configSource), zap.String("version", version))

	// Initialize database
	gormDB, err := db.Init(&cfg.Database, logger.Named("db"))
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}

	// Create a context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)
	if err := store.EnsureSpots(ctx, appStore, cfg.Parking.TotalSpots); err != nil {
		logger.Fatal("failed to initialize spots", zap.Error(err))
	}
	logger.Info("data store initialized", zap.Int("spots", cfg.Parking.TotalSpots))

	// Notification channels
	var webpushOptions *webpush.Options
	var channels []notification.Channel
	if email := cfg.Notification.Email; email.Host != "" {
		channels = append(channels, notification.NewEmailSender(email.Host, email.Port, email.Username, email.Password, email.From, email.To))
	}
	if push := cfg.Notification.Push; push.PublicKey != "" && push.PrivateKey != "" {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  push.PublicKey,
			VAPIDPrivateKey: push.PrivateKey,
			Subscriber:      push.Subject,
			TTL:             push.TTL,
		}
		channels = append(channels, notification.NewPushSender(appStore, webpushOptions, logger))
	}
	workerPool := notification.NewWorkerPool(cfg.Notification.WorkerPool.Size, cfg.Notification.WorkerPool.QueueSize, logger, channels...)
	workerPool.Start(ctx)
	logger.Info("notification workers started", zap.Strings("channels", workerPool.Channels()))

	// Occupancy core
	timer := occupancy.NewTimer()
	engine := occupancy.NewEngine(appStore, timer, workerPool, cfg.Parking.TotalSpots, logger)
	query := occupancy.NewQuery(appStore, timer, cfg.Parking.SensorSpots)
	sessions := ledger.New(engine, ledger.Tariff{BaseFee: cfg.Billing.BaseFee, HourlyRate: cfg.Billing.HourlyRate}, logger)

	normalizer := telemetry.NewNormalizer(telemetry.Thresholds{
		Distance: cfg.Parking.DistanceThreshold,
		Delta:    cfg.Parking.DeltaThreshold,
	}, cfg.Parking.Location)
	pipeline := ingest.NewPipeline(normalizer, engine, logger)

	// Sensor telemetry
	var subscriber ingest.Subscriber
	if cfg.MQTT.Enabled {
		subscriber = ingest.NewPahoSubscriber(cfg.MQTT, logger)
		if err := subscriber.Start(ctx, pipeline.Handler(ctx)); err != nil {
			logger.Error("failed to start MQTT subscriber", zap.Error(err))
		}
	} else {
		logger.Info("MQTT ingestion is disabled")
	}

	sim := simulator.NewService(cfg.Simulator, pipeline, logger)
	if cfg.Simulator.AutoStart {
		sim.Start(ctx)
	}

	// Initialize router
	handler := api.NewHandler(api.Deps{
		Store:     appStore,
		Engine:    engine,
		Query:     query,
		Ledger:    sessions,
		Simulator: sim,
		MQTT:      subscriber,
		WebPush:   webpushOptions,
		Info: api.ServiceInfo{
			Version:    version,
			Broker:     cfg.MQTT.Broker,
			Topics:     cfg.MQTT.Topics,
			TotalSpots: cfg.Parking.TotalSpots,
		},
		Log:         logger,
		BaseContext: ctx,
	})
	router := api.NewRouter(handler, api.RouterConfig{
		RateLimit: rate.Limit(cfg.Server.RateLimitPerSec),
		Burst:     cfg.Server.RateLimitBurst,
	}, logger)
	server := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: router,
	}

	// Start the server in a goroutine
	go func() {
		logger.Info("HTTP server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server ListenAndServe", zap.Error(err))
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Block until a signal is received.
	<-stop
	logger.Info("shutdown signal received, stopping services")

	sim.Stop()
	if subscriber != nil {
		subscriber.Stop()
	}

	// Create a deadline to wait for.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server Shutdown", zap.Error(err))
	}
	cancel()

	logger.Info("server gracefully stopped")
}

// loadConfig reads CONFIG_PATH (or the default path). Without an explicit
// path and without the default file, configuration comes from the
// environment alone.
func loadConfig() (*config.Config, string, error) {
	configPath := os.Getenv("CONFIG_PATH")
	explicit := configPath != ""
	if !explicit {
		configPath = defaultConfigPath // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		cfg, err = config.LoadEnv()
		return cfg, "environment", err
	}
	return cfg, configPath, err
}
