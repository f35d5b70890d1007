package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eaglebank/identity-service/internal/command"
	"github.com/eaglebank/identity-service/internal/handler"
	"github.com/eaglebank/identity-service/internal/metrics"
	"github.com/eaglebank/identity-service/internal/repository"
	"github.com/eaglebank/identity-service/shared/config"
	"github.com/eaglebank/identity-service/shared/events"
	applog "github.com/eaglebank/identity-service/shared/logger"
	"github.com/eaglebank/identity-service/shared/middleware"
	redisClient "github.com/eaglebank/identity-service/shared/redis"
	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

const userViewTTL = 30 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := applog.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()
	logger = logger.With(zap.String("service", cfg.Service.Name))

	// Database connection (user directory)
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelStartup()

	if err := db.PingContext(startupCtx); err != nil {
		logger.Fatal("Failed to ping database", zap.Error(err))
	}
	if err := repository.Migrate(startupCtx, db); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}

	// Redis connection (read model store + event streaming)
	redis, err := redisClient.NewClient(startupCtx, cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redis.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	debits, err := metrics.NewDebitCounter(registry, cfg.Service.Name)
	if err != nil {
		logger.Fatal("Failed to register metrics", zap.Error(err))
	}

	publisher := events.NewPublisher(redis)
	writeRepo := repository.NewUserWriteRepository(db)
	readRepo := repository.NewUserReadRepository(redis, userViewTTL)

	debitSvc := command.NewDebitCommandService(writeRepo, readRepo, publisher, debits, cfg.Bus.EventStream, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	subscriberDone := make(chan struct{})
	go func() {
		defer close(subscriberDone)
		subscriber := events.NewSubscriber(redis, events.SubscriberConfig{
			Group:         cfg.Bus.Group,
			Consumer:      cfg.Bus.Consumer,
			Stream:        cfg.Bus.CommandStream,
			FaultStream:   cfg.Bus.FaultStream,
			Handler:       debitSvc.HandleDebitGil,
			BatchSize:     cfg.Bus.BatchSize,
			BlockDuration: cfg.Bus.BlockDuration,
			Concurrency:   cfg.Bus.Concurrency,
			ClaimMinIdle:  cfg.Bus.ClaimMinIdle,
			Retry:         events.RetryPolicy{Retries: cfg.Bus.RetryCount, Interval: cfg.Bus.RetryInterval},
			Logger:        logger,
		})
		if err := subscriber.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Subscriber stopped", zap.Error(err))
		}
	}()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(middleware.Recovery(logger), middleware.LoggingMiddleware(logger))

	health := handler.NewHealthHandler(map[string]handler.Pinger{
		"postgres": writeRepo,
		"redis": handler.PingFunc(func(ctx context.Context) error {
			return redis.Ping(ctx).Err()
		}),
	}, 2*time.Second, logger)
	handler.RegisterRoutes(router, health, registry)

	server := &http.Server{
		Addr:              ":" + cfg.Service.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("Identity service starting", zap.String("port", cfg.Service.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("Shutting down...")

	cancel()
	<-subscriberDone

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}
}
