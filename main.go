// Package main provides the main entry point for the DueFlow collection service
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dueflow/dueflow/app/handlers"
	"github.com/dueflow/dueflow/app/router"
	"github.com/dueflow/dueflow/app/scheduler"
	"github.com/dueflow/dueflow/app/services"
	businessflow "github.com/dueflow/dueflow/business_flow"
	"github.com/dueflow/dueflow/config"
	"github.com/dueflow/dueflow/repository"
	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.Config
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	log.Println("Starting DueFlow collection service...")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		if err := app.server.Listen(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Println("Shutting down gracefully...")

	// Stop background workers
	for _, fn := range app.stopFuncs {
		fn()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the redis client and verifies connectivity
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB
	opt.DialTimeout = cfg.DialTimeout

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established to %s (db=%d)", cfg.RedisURL, cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor starts a background goroutine that periodically pings
// redis to detect connectivity issues. The returned cancel function stops the
// monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// startMetricsServer serves the prometheus registry on a dedicated port
func startMetricsServer(cfg config.MetricsConfig) func() {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: mux,
	}

	go func() {
		log.Printf("Metrics server starting on %s%s", srv.Addr, cfg.Path)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Metrics server stopped: %v", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.Config) (*Application, error) {
	var stopFuncs []func()

	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		cancel := startCacheHealthMonitor(context.Background(), rc, 30*time.Second)
		stopFuncs = append(stopFuncs, cancel)
	}

	if cfg.Metrics.Enabled {
		stopFuncs = append(stopFuncs, startMetricsServer(cfg.Metrics))
	}

	// Initialize repositories
	campaignRepo := repository.NewCampaignRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	paymentRecordRepo := repository.NewPaymentRecordRepository(db)
	customerRepo := repository.NewCustomerRepository(db)

	// Initialize engine logger and services
	engineLogger := scheduler.NewEngineLogger(cfg.Engine.LogFilePath)

	var dispatcher services.TaskDispatcher
	if rc != nil {
		dispatcher = services.NewRedisTaskDispatcher(rc, cfg.Dispatch.QueueKey, engineLogger)
	} else {
		log.Println("Redis disabled, using in-memory task dispatcher")
		dispatcher = services.NewMockTaskDispatcher()
	}

	contextSvc := services.NewCustomerContextService(customerRepo, rc, cfg.Cache.DefaultTTL, engineLogger)

	var notifier services.OperatorNotifier
	if cfg.Alerting.Enabled {
		notifier = services.NewEmailOperatorNotifier(services.NewMockEmailProvider(), cfg.Alerting.OperatorEmail, engineLogger)
	}

	// Initialize the escalation engine
	table := scheduler.NewExecutionTable()
	evaluator := scheduler.NewConditionEvaluator(engineLogger)
	optimizer := scheduler.NewStepOptimizer()
	emitter := scheduler.NewTaskEmitter(taskRepo, dispatcher, cfg.Dispatch.SupportContact, engineLogger)
	runner := scheduler.NewEscalationRunner(campaignRepo, paymentRecordRepo, customerRepo, contextSvc, evaluator, emitter, table, engineLogger)

	// Initialize the campaign manager
	collectionFlow := businessflow.NewCollectionFlow(
		campaignRepo,
		customerRepo,
		paymentRecordRepo,
		taskRepo,
		contextSvc,
		optimizer,
		runner,
		table,
		db,
		engineLogger,
	)

	// Rebuild executions from durable campaigns before the first tick
	if err := collectionFlow.RestoreExecutions(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to restore executions: %w", err)
	}

	sched := scheduler.NewEscalationScheduler(
		table,
		runner,
		campaignRepo,
		notifier,
		engineLogger,
		cfg.Engine.TickInterval,
		cfg.Engine.StallCheckInterval,
		cfg.Engine.StallThreshold,
		cfg.Engine.RequeueDelay,
	)
	stopScheduler := sched.Start(context.Background())
	stopFuncs = append(stopFuncs, stopScheduler)

	// Initialize handlers and router
	collectionHandler := handlers.NewCollectionHandler(collectionFlow)
	appRouter := router.NewFiberRouter(collectionHandler, cfg.Security.AllowedOrigins)

	fiberRouter := appRouter.(*router.FiberRouter)
	application := &Application{
		router:    fiberRouter,
		config:    cfg,
		server:    fiberRouter.GetApp(),
		stopFuncs: stopFuncs,
	}

	return application, nil
}
