package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/flowgate-systems/flowgate/internal/bus"
	"github.com/flowgate-systems/flowgate/internal/cache"
	"github.com/flowgate-systems/flowgate/internal/config"
	"github.com/flowgate-systems/flowgate/internal/handlers"
	"github.com/flowgate-systems/flowgate/internal/lifecycle"
	"github.com/flowgate-systems/flowgate/internal/logging"
	"github.com/flowgate-systems/flowgate/internal/middleware"
	"github.com/flowgate-systems/flowgate/internal/publisher"
	"github.com/flowgate-systems/flowgate/internal/repository"
	"github.com/flowgate-systems/flowgate/internal/server"
	"github.com/flowgate-systems/flowgate/internal/validator"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
	logging.SetDefault(logger)

	connString := cfg.Database.ConnString()

	// Run database migrations
	logger.Info("running database migrations")
	m, err := migrate.New("file://migrations", connString)
	if err != nil {
		log.Fatalf("Failed to initialize migrations: %v", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Resource store
	repo, err := repository.NewPostgresRepository(context.Background(), connString)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer repo.Close()

	// Distributed cache; the gateway runs without it, degraded to store
	// lookups, rather than refusing to start.
	var remote validator.RemoteCache
	var invalidator lifecycle.Invalidator
	if cfg.Redis.Enabled {
		distributed, err := cache.NewDistributedCache(cfg.Redis.URL, cfg.Redis.CacheTTL)
		if err != nil {
			logger.Warn("distributed cache unavailable, continuing without it", logging.Error(err))
		} else {
			defer distributed.Close()
			remote = distributed
			invalidator = distributed
		}
	}

	// In-process resolution cache
	local := cache.NewResolutionCache(cfg.Ingestion.LocalCacheTTL)
	defer local.Close()

	// Message bus
	busClient := bus.NewClient(bus.Config{
		URL:               cfg.NATS.URL,
		Name:              cfg.NATS.Name,
		MaxReconnects:     cfg.NATS.MaxReconnects,
		ReconnectWait:     cfg.NATS.ReconnectWait,
		Timeout:           cfg.NATS.Timeout,
		FlushTimeout:      cfg.NATS.FlushTimeout,
		ConnectRetries:    cfg.NATS.ConnectRetries,
		ConnectRetryDelay: cfg.NATS.ConnectRetryDelay,
	}, logger.Logger)
	defer busClient.Disconnect()

	if err := busClient.Connect(context.Background()); err != nil {
		// Publishes connect on demand; startup continues.
		logger.Warn("message bus not reachable at startup", logging.Error(err))
	}

	valid := validator.New(local, remote, repo, logger)
	pub := publisher.New(busClient, cfg.Ingestion.Topic, cfg.Ingestion.Producer)

	// Lifecycle projection
	if cfg.Lifecycle.Enabled {
		projector := lifecycle.NewProjector(repo, invalidator, logger)
		subscriber := lifecycle.NewSubscriber(busClient, projector, logger,
			cfg.Lifecycle.SubjectPrefix, cfg.Lifecycle.Queue)
		if err := subscriber.Start(context.Background()); err != nil {
			logger.Warn("lifecycle subscriber not started", logging.Error(err))
		} else {
			defer subscriber.Stop()
		}
	}

	// HTTP surface
	ingestHandler := handlers.NewIngestHandler(valid, pub, busClient, repo, logger,
		cfg.Ingestion.MaxEventSize, cfg.Ingestion.MaxBatchSize)
	auth := middleware.NewAuth(cfg.Auth.TokenSecret)
	router := server.NewRouter(ingestHandler, auth)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("webhook gateway listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("server stopped")
}
