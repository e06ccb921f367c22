package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/segyhp/collection-ledger/internal/cache"
	"github.com/segyhp/collection-ledger/internal/config"
	"github.com/segyhp/collection-ledger/internal/database"
	"github.com/segyhp/collection-ledger/internal/events"
	"github.com/segyhp/collection-ledger/internal/handler"
	"github.com/segyhp/collection-ledger/internal/logger"
	"github.com/segyhp/collection-ledger/internal/repository"
	"github.com/segyhp/collection-ledger/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	log := logger.New(cfg.Logging)
	ctx := context.Background()

	// Initialize database
	db, err := database.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := database.RunMigrations(cfg.Database.URL, log); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	checks := map[string]handler.Check{
		"database": db.PingContext,
	}

	// Initialize Redis; the summary cache is optional
	var summaryCache service.Cache
	if cfg.Redis.URL != "" {
		client, err := cache.NewClient(ctx, cfg.Redis.URL)
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, portfolio summaries will not be cached")
		} else {
			redisCache := cache.NewRedisCache(client)
			defer redisCache.Close()
			summaryCache = redisCache
			checks["redis"] = redisCache.Ping
		}
	}

	// Initialize the event publisher
	var publisher events.Publisher = events.NewNoopPublisher()
	if cfg.NATS.URL != "" {
		conn, err := events.Connect(cfg.NATS.URL, log)
		if err != nil {
			log.WithError(err).Warn("NATS unavailable, ledger events will not be published")
		} else {
			natsPublisher := events.NewNATSPublisher(conn, log)
			defer natsPublisher.Close()
			publisher = natsPublisher
		}
	}

	// Initialize services
	store := repository.NewPostgresStore(db)
	settings := cfg.LedgerSettings()
	ledgerService := service.NewLedgerService(store, settings, publisher, summaryCache, log)
	reportService := service.NewReportService(store, summaryCache, cfg.GetCacheTTL(), settings, log)

	router := handler.NewRouter(
		handler.NewLedgerHandler(ledgerService),
		handler.NewReportHandler(reportService),
		handler.NewHealthHandler(cfg.GetHealthTimeout(), checks),
		log,
	)

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.GetReadTimeout(),
		WriteTimeout: cfg.GetWriteTimeout(),
	}

	// Start server in a goroutine
	go func() {
		log.WithFields(logrus.Fields{"addr": server.Addr, "env": cfg.Server.Env}).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}
