package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"repairconnect/internal/api"
	"repairconnect/internal/archive"
	"repairconnect/internal/config"
	"repairconnect/internal/directory"
	"repairconnect/internal/domain"
	"repairconnect/internal/events"
	"repairconnect/internal/export"
	"repairconnect/internal/google"
	"repairconnect/internal/logging"
	"repairconnect/internal/metrics"
	"repairconnect/internal/repository"
	"repairconnect/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(cfg, &logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}

	store := initStore(redisClient, &logger)

	dir, err := directory.Load(cfg.Directory.MechanicsPath)
	if err != nil {
		logger.Error().Err(err).Str("path", cfg.Directory.MechanicsPath).Msg("load mechanics directory")
		return err
	}
	if err := store.SeedMechanics(ctx, dir.ListMechanics()); err != nil {
		logger.Error().Err(err).Msg("seed mechanics")
		return err
	}
	logger.Info().Int("mechanics", len(dir.ListMechanics())).Msg("mechanic directory seeded")

	eventBus := events.NewEventBus()

	var exporter *export.Exporter
	if cfg.Archive.Enabled {
		bookingArchive, err := archive.New(cfg.Archive.Path, &logger)
		if err != nil {
			logger.Error().Err(err).Str("path", cfg.Archive.Path).Msg("init archive")
			return err
		}
		defer bookingArchive.Close()
		bookingArchive.Attach(eventBus, store)
		exporter = export.NewExporter(bookingArchive, cfg.Exports.Path, &logger)
	}

	if sheetsService := initGoogleSheets(cfg, &logger); sheetsService != nil {
		retryPolicy := worker.RetryPolicy{MaxRetries: 5, InitialDelay: 2 * time.Second, MaxDelay: time.Minute, BackoffFactor: 2}
		sheetsWorker := worker.NewSheetsWorker(sheetsService, redisClient, retryPolicy, &logger)
		sheetsWorker.Attach(eventBus, store)
		go sheetsWorker.Start(ctx)
	}

	httpServer := api.NewHTTPServer(cfg.Server, cfg.Auth, store, eventBus, &logger)
	if exporter != nil {
		httpServer.SetExporter(exporter)
	}

	startMetrics(ctx, cfg, &logger)

	return startServer(ctx, httpServer, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)

	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing with in-memory store")
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

// initStore picks Redis with in-memory failover, or plain in-memory
// when Redis is not configured or unreachable at startup.
func initStore(redisClient *redis.Client, logger *zerolog.Logger) domain.RecordStore {
	memory := repository.NewMemoryRecordStore()
	if redisClient == nil {
		logger.Warn().Msg("record store running purely in memory, records are not durable")
		return memory
	}
	return repository.NewFailoverRecordStore(repository.NewRedisRecordStore(redisClient), memory, logger)
}

func initGoogleSheets(cfg *config.Config, logger *zerolog.Logger) *google.SheetsService {
	if cfg.Google.CredentialsFile == "" || cfg.Google.BookingSpreadSheetID == "" {
		return nil
	}

	sheetsService, err := google.NewSheetsService(cfg.Google.CredentialsFile, cfg.Google.BookingSpreadSheetID)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}

	logger.Info().Msg("google sheets connected")
	return sheetsService
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startServer(ctx context.Context, httpServer *api.HTTPServer, logger *zerolog.Logger) error {
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("record store API stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
