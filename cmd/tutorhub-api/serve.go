package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/handler"
	"github.com/noah-isme/tutorhub-api/internal/middleware"
	"github.com/noah-isme/tutorhub-api/internal/repository"
	"github.com/noah-isme/tutorhub-api/internal/server"
	"github.com/noah-isme/tutorhub-api/internal/service"
	"github.com/noah-isme/tutorhub-api/pkg/cache"
	"github.com/noah-isme/tutorhub-api/pkg/config"
	"github.com/noah-isme/tutorhub-api/pkg/database"
	"github.com/noah-isme/tutorhub-api/pkg/events"
	"github.com/noah-isme/tutorhub-api/pkg/jobs"
	"github.com/noah-isme/tutorhub-api/pkg/logger"
	"github.com/noah-isme/tutorhub-api/pkg/payment"
	"github.com/noah-isme/tutorhub-api/pkg/telemetry"
)

const shutdownTimeout = 15 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the settlement worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logr.Sync() //nolint:errcheck

	tel, err := telemetry.New(ctx, cfg.Telemetry, cfg.Env, version)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer shutdownTelemetry(tel, logr)

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	rdb, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, running without shared cache and rate limit counters", zap.Error(err))
		rdb = nil
	}
	if rdb != nil {
		defer rdb.Close()
	}

	publisher, err := events.Connect(cfg.Events, logr)
	if err != nil {
		logr.Warn("event publisher unavailable, events will be dropped", zap.Error(err))
		publisher = events.Nop{}
	}
	defer publisher.Close()

	metrics := service.NewMetricsService()
	validate := validator.New()

	users := repository.NewUserRepository(db)
	tutors := repository.NewTutorRepository(db)
	tuitions := repository.NewTuitionRepository(db)
	applications := repository.NewApplicationRepository(db)
	payments := repository.NewPaymentRepository(db)
	reviews := repository.NewReviewRepository(db)
	sessions := repository.NewCheckoutSessionRepository(db)
	workflowRepo := repository.NewWorkflowRepository(db)
	cacheRepo := repository.NewCacheRepository(rdb, "tutorhub", logr)

	authSvc := service.NewAuthService(users, logr, service.AuthConfig{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
		Leeway: cfg.JWT.Leeway,
	})
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.TutorTTL, logr, cfg.Cache.Enabled && cacheRepo.Enabled())
	userSvc := service.NewUserService(users, validate, logr)
	tutorSvc := service.NewTutorService(tutors, cacheSvc, cfg.Cache.TutorTTL, validate, logr)
	tuitionSvc := service.NewTuitionService(tuitions, applications, validate, logr)
	reviewSvc := service.NewReviewService(reviews, tutorSvc, publisher, validate, logr)
	paymentSvc := service.NewPaymentService(payments, logr)

	gateway := payment.NewMidtransGateway(cfg.Payment, sessions, logr)
	workflowSvc := service.NewWorkflowService(
		applications, tuitions, payments, workflowRepo, gateway,
		service.WorkflowConfig{Currency: cfg.Payment.Currency, ServerKey: cfg.Payment.ServerKey},
		logr,
		service.WithPublisher(publisher),
		service.WithMetrics(metrics),
		service.WithTracer(tel.Tracer),
		service.WithValidator(validate),
	)

	queue := jobs.NewQueue("settlement", workflowSvc.ProcessSettlementJob, jobs.QueueConfig{
		Workers:    cfg.Settlement.Workers,
		BufferSize: 128,
		MaxRetries: cfg.Settlement.MaxRetries,
		RetryDelay: cfg.Settlement.RetryDelay,
		MaxDelay:   time.Minute,
		Logger:     logr,
		OnExhausted: func(job jobs.Job, err error) {
			logr.Error("settlement gave up, reconcile manually",
				zap.String("order_id", job.Key),
				zap.Int("attempts", job.Attempt),
				zap.Error(err),
			)
		},
		OnDropped: func(job jobs.Job) {
			logr.Error("settlement dropped at shutdown, reconcile manually",
				zap.String("order_id", job.Key),
				zap.Int("attempts", job.Attempt),
			)
		},
	})
	workflowSvc.UseSettlementQueue(queue)
	queue.Start(ctx)
	defer queue.Stop()

	limiter := middleware.NewRateLimiter(rdb, cfg.RateLimit, metrics, logr)
	defer limiter.Close()

	router := server.NewRouter(server.Dependencies{
		Config:      cfg,
		Logger:      logr,
		Auth:        authSvc,
		Metrics:     metrics,
		Tracer:      tel.Tracer,
		RateLimiter: limiter,
		Handlers: server.Handlers{
			Users:         handler.NewUserHandler(userSvc),
			Tutors:        handler.NewTutorHandler(tutorSvc),
			Tuitions:      handler.NewTuitionHandler(tuitionSvc),
			Applications:  handler.NewApplicationHandler(workflowSvc),
			Payments:      handler.NewPaymentHandler(workflowSvc, paymentSvc, logr),
			Reviews:       handler.NewReviewHandler(reviewSvc),
			Observability: handler.NewMetricsHandler(metrics, readinessChecks(db, rdb)),
		},
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logr.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
	return nil
}

func readinessChecks(db *sqlx.DB, rdb *redis.Client) map[string]handler.ReadinessCheck {
	checks := map[string]handler.ReadinessCheck{"database": db.PingContext}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	return checks
}

func shutdownTelemetry(tel *telemetry.Telemetry, logr *zap.Logger) {
	if err := tel.Shutdown(context.Background()); err != nil {
		logr.Error("telemetry shutdown failed", zap.Error(err))
	}
}
