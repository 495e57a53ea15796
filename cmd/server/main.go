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
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"stream-donate.backend/internal/config"
	"stream-donate.backend/internal/domain/repositories"
	"stream-donate.backend/internal/infrastructure/catalog"
	"stream-donate.backend/internal/infrastructure/confirm"
	"stream-donate.backend/internal/infrastructure/jobs"
	"stream-donate.backend/internal/infrastructure/ledger"
	"stream-donate.backend/internal/infrastructure/overlay"
	"stream-donate.backend/internal/infrastructure/pricing"
	"stream-donate.backend/internal/interfaces/http/handlers"
	"stream-donate.backend/internal/noncemint"
	"stream-donate.backend/internal/usecases"
	"stream-donate.backend/pkg/logger"
	"stream-donate.backend/pkg/redis"
)

var (
	loadDotenv = godotenv.Load
	loadCfg    = config.Load
	initLog    = logger.Init
	initRedis  = redis.Init
	openDB     = func(cfg config.DatabaseConfig) (*gorm.DB, error) {
		switch cfg.Driver {
		case "postgres":
			return gorm.Open(postgres.Open(cfg.URL()), &gorm.Config{})
		case "sqlite":
			return gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{})
		default:
			return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
		}
	}
)

func main() {
	if err := runMainProcess(); err != nil {
		log.Fatal(err)
	}
}

func runMainProcess() error {
	if err := loadDotenv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := loadCfg()

	initLog(cfg.Server.Env)
	logger.Info(context.Background(), "Logger initialized", zap.String("env", cfg.Server.Env))

	// Redis is optional: without it the idempotency and price caches are off
	if cfg.Redis.URL != "" {
		if err := initRedis(cfg.Redis.URL, cfg.Redis.Password); err != nil {
			logger.Warn(context.Background(), "Redis unavailable, running without caches", zap.Error(err))
		} else {
			logger.Info(context.Background(), "Redis initialized")
		}
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := openDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get generic database object: %w", err)
	}
	defer sqlDB.Close()

	assetCatalog := catalog.NewAssetCatalog(db)
	if err := assetCatalog.Migrate(context.Background()); err != nil {
		return fmt.Errorf("failed to migrate asset catalog: %w", err)
	}

	paymentLedger := ledger.NewMemoryLedger(cfg.Payment.GracePeriod)
	mint := noncemint.New()

	// typed nil must not reach the usecase's interface field
	var priceSource repositories.PriceSource
	if cfg.Pricing.Endpoint != "" {
		priceSource = pricing.NewCachedPriceSource(cfg.Pricing.Endpoint, cfg.Pricing.CacheTTL)
	}

	donationUsecase := usecases.NewDonationUsecase(paymentLedger, assetCatalog, mint, priceSource).
		WithTimeout(cfg.Payment.Timeout)

	notifier := overlay.NewHTTPNotifier(cfg.Overlay.BaseURL, cfg.Overlay.Timeout)
	confirmSource := confirm.NewSimulatedSource(usecases.SimulatedConfirmMinAge, usecases.SimulatedConfirmRate)
	monitor := jobs.NewSettlementMonitor(paymentLedger, mint, confirmSource, notifier,
		cfg.Payment.MonitorInterval, cfg.Payment.MonitorBackoff)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go monitor.Start(ctx)

	router := setupRouter(routeDeps{
		donationHandler: handlers.NewDonationHandler(donationUsecase),
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info(ctx, "server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "shutting down")
	monitor.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	logger.Info(context.Background(), "server stopped")
	return nil
}
