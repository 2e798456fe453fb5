package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	quotaapp "github.com/autoflow/backend/internal/application/quota"
	"github.com/autoflow/backend/internal/domain/quota"
	"github.com/autoflow/backend/internal/infrastructure/cache"
	"github.com/autoflow/backend/internal/infrastructure/config"
	"github.com/autoflow/backend/internal/infrastructure/logger"
	"github.com/autoflow/backend/internal/infrastructure/persistence"
	"github.com/autoflow/backend/internal/infrastructure/scheduler"
	"github.com/autoflow/backend/internal/interfaces/http/handler"
	"github.com/autoflow/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting quota engine",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port))

	// Database
	gormLogger := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLogger)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		_ = db.Close()
	}()

	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Redis counter store
	counters, err := cache.NewRedisCounterStore(cache.RedisConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer func() {
		_ = counters.Close()
	}()

	// Repositories
	planRepo := persistence.NewPlanRepository(db.DB)
	allocRepo := persistence.NewAllocationRepository(db.DB)
	ledgerRepo := persistence.NewUsageLedgerRepository(db.DB)

	// Application services
	resolver := quotaapp.NewResolver(planRepo, allocRepo, log)

	gateConfig := quotaapp.DefaultGateConfig()
	gateConfig.EnforcePeriod = quota.PeriodType(cfg.Quota.EnforcePeriod)
	gateConfig.ExpiryGrace = cfg.Quota.ExpiryGrace
	gate := quotaapp.NewGate(resolver, counters, ledgerRepo, log, gateConfig)

	tracker := quotaapp.NewExecutionTracker(resolver, gate, counters, log)
	allocationService := quotaapp.NewAllocationService(planRepo, allocRepo, log)
	aggregator := quotaapp.NewAggregator(counters, ledgerRepo, log)

	// Rollup scheduler
	rollupConfig := scheduler.DefaultRollupSchedulerConfig()
	rollupConfig.Enabled = cfg.Rollup.Enabled
	rollupConfig.HourlyInterval = cfg.Rollup.HourlyInterval
	rollupScheduler := scheduler.NewRollupScheduler(aggregator, log, rollupConfig)

	schedulerCtx, cancelScheduler := context.WithCancel(context.Background())
	defer cancelScheduler()
	if err := rollupScheduler.Start(schedulerCtx); err != nil {
		log.Fatal("Failed to start rollup scheduler", zap.Error(err))
	}

	// HTTP surface
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))

	r := router.NewRouter(engine)
	r.Register(handler.NewQuotaHandler(gate, tracker))
	r.Register(handler.NewAllocationHandler(allocationService))
	r.Register(handler.NewSystemHandler(db, rollupScheduler))
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	if err := rollupScheduler.Stop(ctx); err != nil {
		log.Warn("Rollup scheduler did not stop cleanly", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
