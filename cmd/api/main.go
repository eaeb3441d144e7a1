package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"catalog-service/internal/config"
	"catalog-service/internal/database"
	"catalog-service/internal/logger"
	"catalog-service/internal/messaging"
	"catalog-service/internal/observability"
	"catalog-service/internal/repository"
	"catalog-service/internal/repository/memstore"
	"catalog-service/internal/server"
	"catalog-service/internal/service"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// openStore returns the configured store plus server options exposing its
// health and releasing its resources
func openStore(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (repository.Store, []server.Option, error) {
	if cfg.Driver == config.DriverMemory {
		log.Warn("Using in-memory store, data is lost on restart")
		return memstore.New(), nil, nil
	}

	dbService, err := database.New(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	log.Info("Database health check", zap.Any("health", dbService.Health(ctx)))

	if err := database.RunMigrations(dbService.DB(), log); err != nil {
		dbService.Close()
		return nil, nil, err
	}

	opts := []server.Option{
		server.WithHealth(func(r *http.Request) map[string]string {
			return dbService.Health(r.Context())
		}),
		server.WithCloser(dbService.Close),
	}
	return repository.NewPostgresStore(dbService.DB()), opts, nil
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	shutdownTracing, err := observability.InitTracing(ctx, log, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: logger.ServiceName,
		Environment: cfg.Server.Env,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Error("Failed to flush traces", zap.Error(err))
		}
	}()

	store, opts, err := openStore(ctx, cfg.Database, log)
	if err != nil {
		return err
	}

	srv := server.NewServer(cfg, log, store, opts...)
	defer srv.Close()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down gracefully, press Ctrl+C again to force")

		// The server has 30 seconds to finish the requests it is handling
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Server forced to shutdown", zap.Error(err))
		}
		return nil
	})

	if cfg.RabbitMQ.URL != "" {
		dispatcher := messaging.NewDispatcher(log)
		messaging.RegisterCatalog(dispatcher,
			service.NewProductService(store),
			service.NewVariantService(store),
			service.NewAttributeService(store),
		)

		consumer := messaging.NewConsumer(messaging.ConsumerConfig{
			URL:                cfg.RabbitMQ.URL,
			Queue:              cfg.RabbitMQ.Queue,
			Prefetch:           cfg.RabbitMQ.Prefetch,
			Workers:            cfg.RabbitMQ.Workers,
			DeadLetterExchange: cfg.RabbitMQ.DeadLetterExchange,
		}, dispatcher, log)

		g.Go(func() error {
			return consumer.Run(gctx)
		})
	} else {
		log.Info("RABBITMQ_URL not set, command consumer disabled")
	}

	return g.Wait()
}

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.Server.Env)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting catalog service",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
		zap.String("store", cfg.Database.Driver),
	)

	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		stop() // Allow Ctrl+C to force shutdown
	}()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("Catalog service stopped with error", zap.Error(err))
	}
	log.Info("Graceful shutdown complete")
}
