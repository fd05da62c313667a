package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"backoffice/internal/api"
	"backoffice/internal/availability"
	"backoffice/internal/config"
	"backoffice/internal/db"
	"backoffice/internal/events"
	"backoffice/internal/lock"
	"backoffice/internal/metrics"
	"backoffice/internal/reconciler"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	// Initialize logger
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("BACKOFFICE_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	logger = logger.Level(logLevel(cfg.Logging.Level))

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Str("timezone", cfg.Reconciler.Timezone).Msg("invalid timezone")
	}

	database, err := db.NewDB(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initial load + hot reload of the catalog
	if err := config.WatchCatalog(ctx, cfg.Catalog.Path, cfg.CatalogReloadInterval(), logger, func(updated *config.CatalogConfig) {
		if err := database.SyncCatalogFromConfig(ctx, updated); err != nil {
			logger.Error().Err(err).Msg("failed to apply catalog config")
			return
		}
		logger.Info().Str("catalog", updated.String()).Msg("catalog config applied")
	}); err != nil {
		logger.Error().Err(err).Msg("catalog watch failed")
	}

	var rdb *redis.Client
	var locker lock.Locker = lock.NewLocalLocker()
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		locker = lock.NewRedisLocker(rdb, "")
	} else {
		logger.Warn().Msg("redis not configured; reconcile lock is local to this process")
	}

	m := metrics.New("backoffice", prometheus.DefaultRegisterer)

	bus := events.NewEventBus()
	subscribeAuditLog(bus, logger)

	svc := availability.NewService(database, loc, logger, availability.WithMetrics(m))
	rec := reconciler.New(reconciler.Config{
		Interval: cfg.ReconcileInterval(),
		LockTTL:  cfg.LockTTL(),
		Location: loc,
	}, database, locker, logger, reconciler.WithEventBus(bus), reconciler.WithMetrics(m))
	go rec.Start(ctx)

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, database, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	if cfg.Backup.Enabled {
		go db.NewBackupService(database, cfg.Backup, logger).Start(ctx)
	}

	server := api.NewHTTPServer(api.Config{
		Port:           cfg.HTTPPort(),
		APIKey:         cfg.HTTP.APIKey,
		WriteRateLimit: cfg.HTTP.WriteRateLimit,
		WriteBurst:     cfg.HTTP.WriteBurst,
	}, svc, rec, m, logger)

	logger.Info().Str("timezone", loc.String()).Msg("availability service started")
	if err := server.Start(ctx); err != nil {
		logger.Error().Err(err).Msg("api server error")
	}
	rec.Stop()
	logger.Info().Msg("availability service stopped")
}

func logLevel(configured string) zerolog.Level {
	name := os.Getenv("LOG_LEVEL")
	if name == "" {
		name = configured
	}
	level, err := zerolog.ParseLevel(name)
	if err != nil || name == "" {
		return zerolog.InfoLevel
	}
	return level
}

// subscribeAuditLog records every availability transition.
func subscribeAuditLog(bus *events.EventBus, logger zerolog.Logger) {
	audit := logger.With().Str("component", "audit").Logger()

	logChange := func(ev events.Event) error {
		var change events.StateChange
		if err := ev.Decode(&change); err != nil {
			return fmt.Errorf("decode %s: %w", ev.Type, err)
		}
		audit.Info().
			Str("event", ev.Type).
			Str("tick_id", change.TickID).
			Str("name", change.Name).
			Bool("open", change.Open).
			Str("reason", string(change.Reason)).
			Msg("availability changed")
		return nil
	}
	bus.Subscribe(events.CategoryStateChanged, logChange)
	bus.Subscribe(events.SpecialStateChanged, logChange)

	bus.Subscribe(events.CategorySoldOutCleared, func(ev events.Event) error {
		var cleared events.SoldOutCleared
		if err := ev.Decode(&cleared); err != nil {
			return fmt.Errorf("decode %s: %w", ev.Type, err)
		}
		audit.Info().
			Str("tick_id", cleared.TickID).
			Str("name", cleared.Name).
			Str("resume_at", cleared.ResumeAt).
			Bool("stale", cleared.Stale).
			Msg("sold-out cleared")
		return nil
	})
}

func startHealthServer(ctx context.Context, port int, database *db.DB, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := database.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	serve(ctx, fmt.Sprintf(":%d", port), mux, "health", logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serve(ctx, fmt.Sprintf(":%d", port), mux, "metrics", logger)
}

func serve(ctx context.Context, addr string, handler http.Handler, name string, logger *zerolog.Logger) {
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msgf("%s server error", name)
	}
}
