package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-hostel-api/internal/billing"
	"github.com/noah-isme/campus-hostel-api/internal/repository"
	"github.com/noah-isme/campus-hostel-api/internal/service"
	"github.com/noah-isme/campus-hostel-api/pkg/cache"
	"github.com/noah-isme/campus-hostel-api/pkg/config"
	"github.com/noah-isme/campus-hostel-api/pkg/database"
	"github.com/noah-isme/campus-hostel-api/pkg/logger"
)

// billrun generates bills once for a reference date and prints the summary.
func main() {
	date := flag.String("date", "", "reference date YYYY-MM-DD (default today)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ref := time.Now().UTC()
	if *date != "" {
		if ref, err = billing.ParseDate(*date); err != nil {
			logr.Fatal("invalid -date", zap.Error(err))
		}
	}

	db, err := database.NewPostgres(cfg.Database, logger.Named(logr, "postgres"))
	if err != nil {
		logr.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	var cacheSvc *service.CacheService
	if client, err := cache.NewRedis(cfg.Redis); err != nil {
		logr.Warn("redis unavailable, ledger cache not invalidated", zap.Error(err))
	} else if client != nil {
		defer client.Close()
		cacheSvc = service.NewCacheService(repository.NewCacheRepository(client, cfg.Redis.KeyPrefix, logr), nil, cfg.Ledger.CacheTTL, logr)
	}

	svc := service.NewBillingService(
		repository.NewStudentRepository(db),
		repository.NewBillRepository(db),
		cacheSvc, nil, nil, logr, cfg.Timeouts.Store,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	summary, err := svc.Run(ctx, ref, service.BillTriggerCLI)
	if err != nil {
		logr.Fatal("bill run failed", zap.Error(err))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		logr.Fatal("print summary", zap.Error(err))
	}
	if summary.Failed > 0 {
		os.Exit(1)
	}
}
