package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/storrsec/internal/apiclient"
	"github.com/storrsec/internal/config"
	"github.com/storrsec/internal/credstore"
	"github.com/storrsec/internal/http"
	"github.com/storrsec/internal/logger"
	"github.com/storrsec/internal/oauth"
	"github.com/storrsec/internal/payment"
	"github.com/storrsec/internal/session"
	"github.com/storrsec/internal/system"
	"github.com/storrsec/internal/visitor"
)

const shutdownTimeout = 30 * time.Second

func main() {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	// Load .env file if it exists (optional, won't error if missing)
	if err := godotenv.Load(envFile); err != nil {
		log.Printf("No %s file loaded: %v", envFile, err)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.InitLogger(cfg.Environment, cfg.JSONLogs())
	if cfg.IsProduction() && cfg.Visitor.Secret == "change-me-in-production-visitor-secret" {
		appLogger.Warn("VISITOR_SECRET is the built-in default; visitor cookies can be forged")
	}

	if err := run(cfg, appLogger); err != nil {
		appLogger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, appLogger *slog.Logger) error {
	ctx := context.Background()

	store, err := credstore.New(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			appLogger.Error("failed to close credential store", "error", err)
		}
	}()

	client := apiclient.New(cfg.API.BaseURL, apiclient.Options{
		Timeout: cfg.API.Timeout,
		Breaker: cfg.API.Breaker,
	})

	catalog, err := oauth.LoadCatalog(cfg.API.BaseURL, cfg.OAuth.ProvidersFile)
	if err != nil {
		return err
	}

	sink := session.MultiSink{
		session.LogSink{Logger: appLogger},
		session.MetricsSink{},
	}
	manager := session.NewManager(session.ManagerOptions{
		Deps: session.Deps{
			API:            client,
			Providers:      catalog,
			Sink:           sink,
			ResolveTimeout: cfg.API.Timeout,
		},
		Store:   store,
		IdleTTL: cfg.Session.IdleTTL,
	})

	server, err := http.NewServer(http.Deps{
		Config:    cfg,
		Sessions:  manager,
		Visitors:  visitor.NewIssuer(cfg.Visitor),
		Providers: catalog,
		Callback:  oauth.NewCallbackHandler(sink),
		Payments:  payment.NewService(client, cfg.Payment.StripePublishableKey),
		Health:    system.NewCollector(manager, client),
		Logger:    appLogger,
	})
	if err != nil {
		return err
	}

	scheduler := cron.New()
	if _, err := manager.ScheduleSweep(scheduler, cfg.Session.SweepSchedule); err != nil {
		return err
	}
	if _, err := server.Limiter().ScheduleSweep(scheduler, cfg.Session.SweepSchedule); err != nil {
		return err
	}
	if _, err := credstore.ScheduleRetention(scheduler, cfg.Session.SweepSchedule, store, cfg.Storage.Retention); err != nil {
		return err
	}
	scheduler.Start()

	appLogger.Info("storrsec configuration loaded",
		"environment", cfg.Environment,
		"listen_address", cfg.ServerAddress,
		"api_base_url", cfg.API.BaseURL,
		"credential_store", cfg.Storage.Backend,
		"breaker_enabled", cfg.API.Breaker.Enabled,
		"providers", len(catalog.Providers()),
	)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		<-scheduler.Stop().Done()
		return err
	case sig := <-quit:
		appLogger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("http shutdown error", "error", err)
	}
	<-scheduler.Stop().Done()
	if err := manager.Wait(shutdownCtx); err != nil {
		appLogger.Warn("session resolutions still running at exit", "error", err)
	}

	appLogger.Info("server stopped")
	return nil
}
