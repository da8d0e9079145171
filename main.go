package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"olimpiada_backend/internals/configs"
	database "olimpiada_backend/internals/databases"
	orderController "olimpiada_backend/internals/features/finance/payment_orders/controller"
	orderRepo "olimpiada_backend/internals/features/finance/payment_orders/repository"
	"olimpiada_backend/internals/features/finance/payment_orders/scheduler"
	orderService "olimpiada_backend/internals/features/finance/payment_orders/service"
	convController "olimpiada_backend/internals/features/olympiad/convocatorias/controller"
	helper "olimpiada_backend/internals/helpers"
	"olimpiada_backend/internals/helpers/events"
	"olimpiada_backend/internals/helpers/lock"
	"olimpiada_backend/internals/helpers/metrics"
	"olimpiada_backend/internals/helpers/tracing"
	middlewares "olimpiada_backend/internals/middlewares"
	routes "olimpiada_backend/internals/route"
	"olimpiada_backend/internals/seeds"
)

func main() {
	envSource := configs.LoadEnv()

	cfg, err := configs.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := configs.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("configuration loaded", zap.String("source", envSource), zap.String("env", cfg.Env))

	// 🔌 DB connect + pool + warm-up
	gormLevel := gormLogger.Warn
	if cfg.IsDevelopment() {
		gormLevel = gormLogger.Info
	}
	db, err := database.ConnectDB(cfg.DB, logger, gormLevel)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	if err := database.TunePool(db); err != nil {
		logger.Fatal("database pool tuning failed", zap.Error(err))
	}
	if cfg.AutoMigrate {
		if err := database.AutoMigrate(db, logger); err != nil {
			logger.Fatal("migration failed", zap.Error(err))
		}
	}
	if cfg.RunSeeds {
		if err := seeds.RunAllSeeds(db, logger, cfg.SeedPassword); err != nil {
			logger.Fatal("seeding failed", zap.Error(err))
		}
	}
	database.WarmUpQueries(db, logger)

	shutdownTracer, err := tracing.InitTracerProvider("olimpiada-backend", cfg.JaegerEndpoint, logger)
	if err != nil {
		logger.Fatal("tracer init failed", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.New(registry)

	var publisher events.Publisher = events.NoopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(events.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic))
		logger.Info("order events enabled", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}

	locker, closeLocker, err := newLocker(cfg, db)
	if err != nil {
		logger.Fatal("sweep lock backend failed", zap.Error(err))
	}

	manager := orderService.NewManager(
		orderRepo.NewGormStore(db),
		orderService.Config{OrderTTL: cfg.OrderTTL, Currency: cfg.OrderCurrency},
		logger,
		orderService.WithPublisher(publisher),
		orderService.WithMetrics(appMetrics),
	)

	// ⏱ scheduler after the DB is ready
	sweep := scheduler.NewExpirationSweep(manager, locker,
		scheduler.SweepConfig{LockTTL: cfg.Sweep.LockTTL, Timeout: cfg.Sweep.Timeout},
		logger, appMetrics)
	cron, err := sweep.Schedule(cfg.Sweep.Schedule)
	if err != nil {
		logger.Fatal("sweep schedule rejected", zap.Error(err))
	}
	cron.Start()

	const writeTimeout = 30 * time.Second
	orders := orderController.NewPaymentOrderController(manager, sweep, logger)
	orders.SweepTimeout = writeTimeout - 5*time.Second

	app := fiber.New(fiber.Config{
		JSONEncoder:           sonic.Marshal,
		JSONDecoder:           sonic.Unmarshal,
		DisableStartupMessage: true,
		ProxyHeader:           fiber.HeaderXForwardedFor,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return helper.JsonAppError(c, err)
		},
	})

	middlewares.SetupMiddlewares(app, cfg, logger, appMetrics)

	routes.SetupRoutes(app, routes.Deps{
		DB:            db,
		Config:        cfg,
		Log:           logger,
		Gatherer:      registry,
		Orders:        orders,
		Convocatorias: convController.NewConvocatoriaController(db, logger),
	})

	// 🔒 Keep-Alive & connection timeouts
	app.Server().ReadTimeout = 15 * time.Second
	app.Server().WriteTimeout = writeTimeout
	app.Server().IdleTimeout = 90 * time.Second

	go func() {
		logger.Info("listening", zap.String("port", cfg.Port))
		if err := app.Listen("0.0.0.0:" + cfg.Port); err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// graceful shutdown: stop taking requests, let a running sweep finish, then close the rest
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = app.ShutdownWithContext(ctx)

	select {
	case <-cron.Stop().Done():
	case <-ctx.Done():
		logger.Warn("sweep still running at shutdown, its lease will lapse")
	}

	if err := publisher.Close(); err != nil {
		logger.Warn("event publisher close", zap.Error(err))
	}
	if err := closeLocker(); err != nil {
		logger.Warn("lock backend close", zap.Error(err))
	}
	if err := shutdownTracer(ctx); err != nil {
		logger.Warn("tracer shutdown", zap.Error(err))
	}
	if err := database.Close(db); err != nil {
		logger.Warn("database close", zap.Error(err))
	}
}

// newLocker picks the sweep lease store. The returned func releases its resources.
func newLocker(cfg configs.Config, db *gorm.DB) (lock.Locker, func() error, error) {
	switch cfg.LockBackend {
	case "redis":
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		client := redis.NewClient(opt)
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		return lock.NewRedisLocker(client, "olimpiada:lock:"), client.Close, nil
	default:
		return lock.NewLeaseLocker(db), func() error { return nil }, nil
	}
}
