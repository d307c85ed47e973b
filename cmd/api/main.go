package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/angelmondragon/chorepay-backend/api/routes"
	"github.com/angelmondragon/chorepay-backend/internal/ledger"
	"github.com/angelmondragon/chorepay-backend/internal/notifications"
	"github.com/angelmondragon/chorepay-backend/internal/profiles"
	"github.com/angelmondragon/chorepay-backend/internal/tasks"
	"github.com/angelmondragon/chorepay-backend/pkg/config"
	"github.com/angelmondragon/chorepay-backend/pkg/db"
	"github.com/angelmondragon/chorepay-backend/pkg/logger"
	"github.com/angelmondragon/chorepay-backend/pkg/metrics"
	"github.com/angelmondragon/chorepay-backend/pkg/migrate"
	"github.com/angelmondragon/chorepay-backend/pkg/outbox"
	"github.com/angelmondragon/chorepay-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := multierr.Combine(redisClient.Close(), dbClient.Close()); err != nil {
			logg.Error(context.Background(), "error closing connections", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	ledgerMetrics := metrics.NewLedgerMetrics(registry)

	ledgerRepo := ledger.NewRepository(dbClient.DB())
	engine, err := ledger.NewEngine(ledger.EngineParams{
		Tx:         dbClient,
		Repository: ledgerRepo,
		Retry:      ledgerRetryOptions(cfg.Ledger, ledgerMetrics, logg),
	})
	if err != nil {
		logg.Error(ctx, "failed to create ledger engine", err)
		os.Exit(1)
	}

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	notifier, err := notifications.NewNotifier(dbClient, outboxService)
	if err != nil {
		logg.Error(ctx, "failed to create ledger notifier", err)
		os.Exit(1)
	}

	ledgerService, err := ledger.NewService(ledger.ServiceParams{
		Engine:     engine,
		Repository: ledgerRepo,
		Notifier:   notifier,
		Metrics:    ledgerMetrics,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create ledger service", err)
		os.Exit(1)
	}

	profileRepo := profiles.NewRepository(dbClient.DB())
	profileService, err := profiles.NewService(profileRepo, dbClient, profileRetryOptions(cfg.Ledger, logg))
	if err != nil {
		logg.Error(ctx, "failed to create profile service", err)
		os.Exit(1)
	}

	taskService, err := tasks.NewService(tasks.NewRepository(dbClient.DB()), profileRepo)
	if err != nil {
		logg.Error(ctx, "failed to create task service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	serverCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(serverCtx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, routes.Services{
			Ledger:   ledgerService,
			Profiles: profileService,
			Tasks:    taskService,
		}, promhttp.HandlerFor(registry, promhttp.HandlerOpts{})),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logg.Error(serverCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(serverCtx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(serverCtx, "graceful shutdown failed", err)
		}
	}
}
