package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/theatre-api/internal/handler/audit"
	"github.com/jwalitptl/theatre-api/internal/handler/consumable"
	"github.com/jwalitptl/theatre-api/internal/handler/health"
	promHandler "github.com/jwalitptl/theatre-api/internal/handler/prometheus"
	"github.com/jwalitptl/theatre-api/internal/handler/report"
	"github.com/jwalitptl/theatre-api/internal/handler/surgery"
	"github.com/jwalitptl/theatre-api/internal/handler/theatre"
	"github.com/jwalitptl/theatre-api/internal/middleware"
	"github.com/jwalitptl/theatre-api/internal/repository/postgres"
	"github.com/jwalitptl/theatre-api/internal/router"
	auditService "github.com/jwalitptl/theatre-api/internal/service/audit"
	consumableService "github.com/jwalitptl/theatre-api/internal/service/consumable"
	eventService "github.com/jwalitptl/theatre-api/internal/service/event"
	reportService "github.com/jwalitptl/theatre-api/internal/service/report"
	surgeryService "github.com/jwalitptl/theatre-api/internal/service/surgery"
	theatreService "github.com/jwalitptl/theatre-api/internal/service/theatre"
	"github.com/jwalitptl/theatre-api/pkg/auth"
	"github.com/jwalitptl/theatre-api/pkg/metrics"
	"github.com/jwalitptl/theatre-api/pkg/telemetry"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
	})
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Error(err, "failed to flush traces")
		}
	}()

	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics("theatre", registry)

	// Repositories
	tx := postgres.NewTransactor(db)
	theatreRepo := postgres.NewTheatreRepository(db)
	caseRepo := postgres.NewSurgicalCaseRepository(db)
	numberRepo := postgres.NewCaseNumberRepository(db)
	consumableRepo := postgres.NewConsumableRepository(db)
	inventoryRepo := postgres.NewInventoryRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)
	auditRepo := postgres.NewAuditRepository(db)

	// Services
	auditor := auditService.NewService(auditRepo)
	events := eventService.NewEventService(outboxRepo)
	theatreSvc := theatreService.NewService(tx, theatreRepo, caseRepo, auditor, events, log)
	surgerySvc := surgeryService.NewService(tx, caseRepo, numberRepo, theatreRepo, theatreSvc, auditor, events, m, log,
		surgeryService.Config{
			CaseNumberAttempts: cfg.Scheduling.CaseNumberAttempts,
			Location:           cfg.Location(),
		})
	consumableSvc := consumableService.NewService(tx, consumableRepo, caseRepo, inventoryRepo, auditor, events, m, log)
	reportSvc := reportService.NewService(caseRepo, theatreRepo, m, log, reportService.Config{
		DashboardTTL: cfg.Scheduling.DashboardCacheTTL,
		Location:     cfg.Location(),
	})

	mode := gin.ReleaseMode
	if cfg.Environment == "development" {
		mode = gin.DebugMode
	}
	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.CORS.AllowedOrigins

	rateLimit := 0.0
	if cfg.RateLimit.Enabled {
		rateLimit = cfg.RateLimit.RequestsPerSecond
	}

	r, err := router.NewRouter(
		middleware.NewAuthMiddleware(auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AccessTTL)),
		promHandler.New(registry),
		log.Zerolog(),
		health.NewHandler(map[string]health.Pinger{"postgres": db}),
		router.RouterConfig{
			Mode:           mode,
			RequestTimeout: cfg.Server.RequestTimeout,
			RateLimit:      rateLimit,
			RateBurst:      cfg.RateLimit.Burst,
			CORSConfig:     cors,
		},
		theatre.NewHandler(theatreSvc),
		surgery.NewHandler(surgerySvc),
		consumable.NewHandler(consumableSvc),
		report.NewHandler(reportSvc),
		audit.NewHandler(auditor),
	)
	if err != nil {
		return err
	}
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("server exited properly")
	return nil
}
