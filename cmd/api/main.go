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

	"spacebook/internal/api"
	"spacebook/internal/config"
	"spacebook/internal/database"
	"spacebook/internal/domain"
	"spacebook/internal/events"
	"spacebook/internal/logging"
	"spacebook/internal/metrics"
	"spacebook/internal/payment"
	"spacebook/internal/repository"
	"spacebook/internal/reservation"
	"spacebook/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
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

	store, err := database.NewStore(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eventStore, redisCloser := initEventStore(ctx, cfg, &logger)
	if redisCloser != nil {
		defer redisCloser.Close()
	}

	gateway := payment.NewClient(cfg.Payment, &logger)
	bus := events.NewBus()

	manager := reservation.NewManager(store, gateway, eventStore, bus,
		cfg.Booking.Currency,
		time.Duration(cfg.Booking.CancelNoticeHours)*time.Hour,
		&logger)

	startWorkers(ctx, cfg, store, gateway, bus, &logger)

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(cfg.Database.Path, cfg.Backup, &logger)
		go backupService.Start(ctx)
	}

	startMetrics(ctx, cfg, &logger)

	httpServer := api.NewHTTPServer(cfg.API, manager, store, cfg.Payment.WebhookSecret, cfg.Exports.Path, &logger)
	return serve(ctx, httpServer, cfg, &logger)
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

// initEventStore wires webhook dedupe storage: redis when configured
// and reachable, an in-process fallback always, and the failover
// wrapper when both exist.
func initEventStore(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (domain.EventStore, io.Closer) {
	ttl := time.Duration(cfg.Booking.EventTTLHours) * time.Hour
	memory := repository.NewMemoryEventStore(ttl)

	if !cfg.Redis.Enabled || cfg.Redis.Address == "" {
		return memory, nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, using in-memory event store")
		_ = repository.Close(client)
		return memory, nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	primary := repository.NewRedisEventStore(client, ttl)
	return repository.NewFailoverEventStore(primary, memory, logger), client
}

func startWorkers(ctx context.Context, cfg *config.Config, store *database.Store, gateway domain.Gateway, bus *events.Bus, logger *zerolog.Logger) {
	policy := worker.DefaultRetryPolicy()
	if cfg.Worker.MaxRetries > 0 {
		policy.MaxRetries = cfg.Worker.MaxRetries
	}

	reconcileInterval, err := time.ParseDuration(cfg.Worker.ReconcileInterval)
	if err != nil {
		reconcileInterval = time.Minute
	}
	sweepInterval, err := time.ParseDuration(cfg.Worker.SweepInterval)
	if err != nil {
		sweepInterval = 5 * time.Minute
	}

	go worker.NewReconciler(store, gateway, policy, reconcileInterval, logger).Start(ctx)
	go worker.NewSweeper(store, bus, sweepInterval, logger).Start(ctx)
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

func serve(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("booking API started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("booking API stopped")
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
