package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-hostel-api/internal/handler"
	"github.com/noah-isme/campus-hostel-api/internal/repository"
	"github.com/noah-isme/campus-hostel-api/internal/service"
	"github.com/noah-isme/campus-hostel-api/pkg/cache"
	"github.com/noah-isme/campus-hostel-api/pkg/config"
	"github.com/noah-isme/campus-hostel-api/pkg/database"
	"github.com/noah-isme/campus-hostel-api/pkg/jobs"
	"github.com/noah-isme/campus-hostel-api/pkg/logger"
	"github.com/noah-isme/campus-hostel-api/pkg/mail"
	"github.com/noah-isme/campus-hostel-api/pkg/storage"
)

// @title Campus Hostel API
// @version 1.0.0
// @description Back office for student intake, monthly billing, collections and ledger balances.
// @BasePath /api/v1
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

	db, err := database.NewPostgres(cfg.Database, logger.Named(logr, "postgres"))
	if err != nil {
		logr.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, ledger cache disabled", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	sender, err := mail.New(cfg.Mail, logger.Named(logr, "mail"))
	if err != nil {
		logr.Fatal("mail provider setup failed", zap.Error(err))
	}

	validate := validator.New()
	var metrics *service.MetricsService
	if cfg.Metrics.Enabled {
		metrics = service.NewMetricsService()
	}

	students := repository.NewStudentRepository(db)
	bills := repository.NewBillRepository(db)
	collections := repository.NewCollectionRepository(db)
	ledger := repository.NewLedgerRepository(db)
	users := repository.NewUserRepository(db)

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, cfg.Redis.KeyPrefix, logger.Named(logr, "cache"))
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Ledger.CacheTTL, logger.Named(logr, "cache"))

	notifier := service.NewNotificationService(sender, service.NotificationConfig{
		RecordsAddress: cfg.Mail.RecordsAddress,
		ReceiptBCC:     cfg.Mail.ReceiptBCC,
		WelcomeBCC:     cfg.Mail.WelcomeBCC,
		Timeout:        cfg.Timeouts.Mail,
	}, metrics, logger.Named(logr, "notification"))

	authSvc := service.NewAuthService(users, validate, logger.Named(logr, "auth"), service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
		StoreTimeout:      cfg.Timeouts.Store,
	})
	userSvc := service.NewUserService(users, validate, logger.Named(logr, "users"), cfg.Timeouts.Store)
	studentSvc := service.NewStudentService(students, notifier, cacheSvc, validate, logger.Named(logr, "students"), cfg.Timeouts.Store)
	billingSvc := service.NewBillingService(students, bills, cacheSvc, metrics, validate, logger.Named(logr, "billing"), cfg.Timeouts.Store)
	collectionSvc := service.NewCollectionService(collections, students, notifier, cacheSvc, metrics, validate, logger.Named(logr, "collections"), cfg.Timeouts.Store)
	ledgerSvc := service.NewLedgerService(ledger, students, cacheSvc, cfg.Ledger.CacheTTL, logger.Named(logr, "ledger"), cfg.Timeouts.Store)

	archive, err := storage.NewArchive(cfg.Archive.Dir)
	if err != nil {
		logr.Fatal("ledger archive setup failed", zap.Error(err))
	}
	ledgerSvc.WithArchive(archive, storage.NewLinkSigner(cfg.Archive.SigningSecret, cfg.Archive.LinkTTL), cfg.Archive.Retention)

	scheduler, err := service.NewBillScheduler(billingSvc, service.BillSchedulerConfig{
		Enabled:  cfg.Billing.SchedulerEnabled,
		Schedule: cfg.Billing.Schedule,
		Timezone: cfg.Billing.Timezone,
	}, logr)
	if err != nil {
		logr.Fatal("bill scheduler setup failed", zap.Error(err))
	}
	queue := jobs.NewQueue("bill-runs", scheduler.Handle, jobs.QueueConfig{
		Workers:    cfg.Billing.QueueWorkers,
		JobTimeout: 10 * time.Minute,
		Logger:     logr,
	})
	scheduler.AttachQueue(queue)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	queue.Start(ctx)
	defer queue.Stop()
	if err := scheduler.Start(); err != nil {
		logr.Fatal("bill scheduler start failed", zap.Error(err))
	}
	defer scheduler.Stop()

	pruner := cron.New()
	if _, err := pruner.AddFunc(cfg.Archive.PruneSchedule, func() { _, _ = ledgerSvc.PruneSnapshots() }); err != nil {
		logr.Fatal("invalid archive prune schedule", zap.String("schedule", cfg.Archive.PruneSchedule), zap.Error(err))
	}
	pruner.Start()
	defer pruner.Stop()

	health := handler.NewHealthHandler(nil, logger.Named(logr, "health"))
	if metrics != nil {
		health = handler.NewHealthHandler(metrics.Handler(), logger.Named(logr, "health"))
	}
	health.AddCheck("database", db, false)
	if redisClient != nil {
		health.AddCheck("redis", handler.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }), true)
	}

	router := newRouter(cfg, logr, routeDeps{
		auth:        authSvc,
		audit:       users,
		metrics:     metrics,
		health:      health,
		students:    handler.NewStudentHandler(studentSvc),
		bills:       handler.NewBillHandler(billingSvc, scheduler),
		collections: handler.NewCollectionHandler(collectionSvc),
		ledger:      handler.NewLedgerHandler(ledgerSvc),
		authHandler: handler.NewAuthHandler(authSvc),
		users:       handler.NewUserHandler(userSvc),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
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
