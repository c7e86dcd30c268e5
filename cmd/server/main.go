package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/quantforge/signal-engine/internal/api"
	"github.com/quantforge/signal-engine/internal/blend"
	"github.com/quantforge/signal-engine/internal/config"
	"github.com/quantforge/signal-engine/internal/database"
	"github.com/quantforge/signal-engine/internal/decision"
	"github.com/quantforge/signal-engine/internal/horizon"
	"github.com/quantforge/signal-engine/internal/kafka"
	"github.com/quantforge/signal-engine/internal/marketdata"
	"github.com/quantforge/signal-engine/internal/metrics"
	"github.com/quantforge/signal-engine/internal/pipeline"
	"github.com/quantforge/signal-engine/internal/redis"
	"github.com/quantforge/signal-engine/internal/signalgen"
)

const priceCacheTTL = 15 * time.Minute

func main() {
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := runMigrations(cfg.Database.ConnectionString()); err != nil {
		logger.Fatal("failed to run database migrations", zap.Error(err))
	}
	logger.Info("connected to PostgreSQL database")

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		logger.Warn("failed to connect to Redis, continuing without cache", zap.Error(err))
		redisClient = nil
	} else {
		defer redisClient.Close()
		logger.Info("connected to Redis cache")
	}

	producer := kafka.NewProducer(cfg.Kafka, logger)
	defer producer.Close()
	logger.Info("Kafka producer initialized", zap.Strings("brokers", cfg.Kafka.Brokers))

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	var source marketdata.Source = marketdata.NewStoreSource(db, db)
	if redisClient != nil {
		source = marketdata.NewCachedSource(source, redisClient, priceCacheTTL, logger)
	}

	generator := signalgen.NewGenerator(db, db, horizon.New(), cfg.Signals, logger)
	blender := blend.NewBlender(db, db, db, cfg.Signals, logger)
	engine := decision.NewEngine(db, source, cfg.Trading, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := engine.Init(ctx); err != nil {
		logger.Fatal("failed to load portfolio state", zap.Error(err))
	}

	runner := pipeline.NewRunner(db, generator, blender, engine, producer, m, logger)

	consumer := kafka.NewUniverseConsumer(cfg.Kafka, db, logger)
	go func() {
		if err := consumer.Start(ctx); err != nil {
			logger.Error("universe consumer error", zap.Error(err))
		}
	}()

	handler := api.NewHandler(db, engine, runner, redisClient, true, logger)
	router := api.SetupRoutes(handler, registry)

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute, // cycle runs are synchronous
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	if err := consumer.Close(); err != nil {
		logger.Error("error closing universe consumer", zap.Error(err))
	}

	logger.Info("server stopped")
}

func runMigrations(databaseURL string) error {
	m, err := migrate.New("file://./db/migrations", databaseURL)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
