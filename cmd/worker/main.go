package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/theatre-api/internal/config"
	"github.com/jwalitptl/theatre-api/internal/handler/health"
	promHandler "github.com/jwalitptl/theatre-api/internal/handler/prometheus"
	"github.com/jwalitptl/theatre-api/internal/repository/postgres"
	"github.com/jwalitptl/theatre-api/pkg/logger"
	"github.com/jwalitptl/theatre-api/pkg/messaging/redis"
	"github.com/jwalitptl/theatre-api/pkg/metrics"
	"github.com/jwalitptl/theatre-api/pkg/worker"
)

func main() {
	configPath := flag.String("config", "", "directory containing config.yml")
	healthAddr := flag.String("health-addr", ":8081", "address for health and metrics endpoints")
	flag.Parse()

	var paths []string
	if *configPath != "" {
		paths = append(paths, *configPath)
	}
	cfg, err := config.LoadConfig(paths...)
	if err != nil {
		logger.NewLogger(nil).Fatal(err, "failed to load config")
	}

	log := logger.NewLogger(&logger.Config{
		Level:   logger.ParseLevel(cfg.LogLevel),
		Console: cfg.Environment == "development",
		Service: "theatre-worker",
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		log.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics("theatre_worker", registry)

	broker, err := redis.NewRedisBroker(ctx, redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   3,
		RetryBackoff: 100 * time.Millisecond,
	}, log.Zerolog(), m)
	if err != nil {
		log.Fatal(err, "failed to create redis broker")
	}
	defer broker.Close()

	outboxRepo := postgres.NewOutboxRepository(db)
	processor, err := worker.NewOutboxProcessor(
		postgres.NewTransactor(db),
		outboxRepo,
		broker,
		worker.OutboxProcessorConfig{
			BatchSize:     cfg.Outbox.BatchSize,
			PollInterval:  cfg.Outbox.PollInterval,
			MaxRetries:    cfg.Outbox.MaxRetries,
			ChannelPrefix: cfg.Redis.Channel,
		},
		log,
		m,
	)
	if err != nil {
		log.Fatal(err, "invalid outbox configuration")
	}
	cleanup := worker.NewOutboxCleanupWorker(outboxRepo, cfg.Outbox.Retention, cfg.Outbox.CleanupInterval, log)

	srv := healthServer(*healthAddr, registry, db)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(err, "health server failed")
			stop()
		}
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		processor.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		cleanup.Start(ctx)
	}()

	<-ctx.Done()
	log.Info("shutting down worker")
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "health server forced to shutdown")
		os.Exit(1)
	}
}

func healthServer(addr string, registry *prometheus.Registry, db health.Pinger) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/metrics", promHandler.New(registry).Handler())
	health.NewHandler(map[string]health.Pinger{"postgres": db}).RegisterRoutes(&engine.RouterGroup)

	return &http.Server{Addr: addr, Handler: engine}
}
