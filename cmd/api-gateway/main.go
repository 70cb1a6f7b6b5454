package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/noah-isme/permitflow-api/api/swagger"
	"github.com/noah-isme/permitflow-api/internal/handler"
	"github.com/noah-isme/permitflow-api/internal/models"
	"github.com/noah-isme/permitflow-api/internal/repository"
	"github.com/noah-isme/permitflow-api/internal/service"
	"github.com/noah-isme/permitflow-api/pkg/cache"
	"github.com/noah-isme/permitflow-api/pkg/config"
	"github.com/noah-isme/permitflow-api/pkg/database"
	"github.com/noah-isme/permitflow-api/pkg/jobs"
	"github.com/noah-isme/permitflow-api/pkg/logger"
	"github.com/noah-isme/permitflow-api/pkg/mailer"
	"github.com/noah-isme/permitflow-api/pkg/middleware/ratelimit"
	"github.com/noah-isme/permitflow-api/pkg/storage"
)

// @title PermitFlow API
// @version 1.0.0
// @description Permit-to-work submission, approval and tracking.
// @BasePath /
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck
	if err := database.EnsureSchema(ctx, db); err != nil {
		logr.Fatal("failed to apply schema", zap.Error(err))
	}

	metrics := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	checks := map[string]handler.ReadinessCheck{"database": db.PingContext}
	if redisClient, err := cache.NewRedis(ctx, cfg.Redis); err != nil {
		logr.Warn("redis unavailable, summary cache disabled", zap.Error(err))
	} else {
		repo := repository.NewCacheRepository(redisClient)
		defer repo.Close() //nolint:errcheck
		cacheRepo = repo
		checks["redis"] = repo.Ping
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Summary.CacheTTL, logr, cfg.Summary.CacheEnabled)

	blobs, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare upload storage", zap.Error(err))
	}
	signer := storage.NewFileURLSigner(cfg.Uploads.SigningSecret, publicAPIURL(cfg)+"/files")
	uploader := service.NewEvidenceUploader(blobs, signer, service.EvidenceUploaderConfig{
		MaxFileSize:  cfg.Uploads.MaxFileSizeBytes,
		AllowedMIMEs: cfg.Uploads.AllowedMIMEs,
	}, metrics, logr)

	notifier := service.NewNotificationService(mailer.New(cfg.SMTP, logr), cfg.PublicBaseURL, metrics, logr)
	retries := jobs.NewQueue("notifications", notifier.Deliver, jobs.QueueConfig{
		Workers:    cfg.Notify.Workers,
		MaxRetries: cfg.Notify.MaxRetries,
		RetryDelay: cfg.Notify.RetryDelay,
		Logger:     logr,
		OnGiveUp: func(job jobs.Job, err error) {
			logr.Error("notification abandoned", zap.String("job_id", job.ID), zap.Int("attempts", job.Attempt), zap.Error(err))
		},
	})
	retries.Start(ctx)
	defer retries.Stop()
	notifier.UseRetryQueue(retries)
	metrics.RegisterGauge("notification_retry_queue_depth", "Notifications waiting for a retry", func() float64 {
		return float64(retries.Stats().Queued)
	})

	var suggester service.Suggester = service.NopSuggester{}
	if cfg.Suggestions.Enabled && cfg.Suggestions.URL != "" {
		suggester = service.NewHTTPSuggester(cfg.Suggestions.URL, cfg.Suggestions.APIKey, cfg.Suggestions.Timeout, logr)
	}

	permitRepo := repository.NewPermitRepository(db)
	catalog := models.DefaultCatalog().WithApprovers(cfg.Catalog.ApproverEmails)
	permits := service.NewPermitService(
		permitRepo,
		repository.NewPermitEventRepository(db),
		service.NewPermitValidator(validator.New(), catalog),
		service.NewIdentifierAssigner(permitRepo),
		logr,
		service.WithEvidenceUploader(uploader),
		service.WithPermitNotifier(notifier),
		service.WithSuggester(suggester, cfg.Suggestions.Timeout),
		service.WithSummaryCache(cacheSvc),
		service.WithPermitReports(permitRepo),
		service.WithPermitMetrics(metrics),
	)

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	}

	r := newRouter(cfg, logr, routerDeps{
		permits:  handler.NewPermitHandler(permits, cfg.Uploads.MaxFileSizeBytes),
		approval: handler.NewApprovalHandler(permits),
		admin:    handler.NewAdminHandler(permits),
		files:    handler.NewFileHandler(signer, blobs),
		ops:      handler.NewMetricsHandler(metrics, checks),
		verifier: service.NewTokenVerifier(service.TokenVerifierConfig{
			Secret:   cfg.JWT.Secret,
			Issuer:   cfg.JWT.Issuer,
			Audience: cfg.JWT.Audience,
		}),
		metrics: metrics,
		limiter: limiter,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

// publicAPIURL is where signed file links point. It is derived from PUBLIC_API_URL when set,
// otherwise from the local listener.
func publicAPIURL(cfg *config.Config) string {
	if cfg.PublicAPIURL != "" {
		return cfg.PublicAPIURL + cfg.APIPrefix
	}
	return fmt.Sprintf("http://localhost:%d%s", cfg.Port, cfg.APIPrefix)
}
