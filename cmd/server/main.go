// Package main is the entry point for the transfer service.
// It wires the database, redis, queues, and HTTP server together and
// handles graceful shutdown.
package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"transferhub/internal/config"
	"transferhub/internal/handlers"
	"transferhub/internal/idempotency"
	"transferhub/internal/queue"
	"transferhub/internal/repositories"
	"transferhub/internal/repositories/cache"
	"transferhub/internal/services/account"
	"transferhub/internal/services/audit"
	"transferhub/internal/services/limits"
	"transferhub/internal/services/notification"
	"transferhub/internal/services/paymentrail"
	"transferhub/internal/services/transfer"
	"transferhub/internal/utils/response"
)

func main() {
	config.LoadEnv()
	cfg := config.Load()

	db, err := repositories.NewDB(cfg)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	rdb := cache.NewRedisClient(&cache.RedisConfig{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr(),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	queueClient := queue.NewClient(redisOpt)
	defer queueClient.Close()

	repo := repositories.NewTransferRepository(db)
	accounts := account.NewInMemoryService(seedAccounts()...)
	limitSvc := limits.NewInMemoryService()
	rail := paymentrail.NewInMemoryService()
	notifier := notification.NewLogService()
	audits := audit.NewInMemoryService()

	svc := transfer.NewService(repo, accounts, limitSvc, rail, notifier, audits, queueClient)

	worker := queue.NewWorker(redisOpt, svc, rdb, queue.WorkerConfig{
		SingleConcurrency: cfg.SingleQueueConcurrency,
		BulkConcurrency:   cfg.BulkQueueConcurrency,
	})
	if err := worker.Start(); err != nil {
		log.Fatalf("failed to start queue workers: %v", err)
	}

	scheduler := queue.NewScheduler(redisOpt)
	if err := scheduler.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}

	coordinator := idempotency.NewCoordinator(idempotency.NewRedisStore(rdb))

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return response.Error(c, code, err.Error())
		},
	})

	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	transferHandler := handlers.NewTransferHandler(svc, rdb)
	healthHandler := handlers.NewHealthHandler(db, rdb)
	handlers.SetupRoutes(app, transferHandler, healthHandler, idempotency.Middleware(coordinator))

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("server stopped: %v", err)
		}
	}()
	log.Printf("transfer service listening on :%s", cfg.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")
	scheduler.Shutdown()
	worker.Shutdown()
	if err := app.Shutdown(); err != nil {
		log.Printf("server shutdown error: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Println("shutdown complete")
}

// seedAccounts provisions demo ledger accounts so the service is usable
// out of the box. Real deployments replace the in-memory ledger with the
// core banking integration.
func seedAccounts() []*account.Account {
	return []*account.Account{
		{
			ID:               "acc-alice",
			AccountNumber:    "0123456789",
			UserID:           "user-alice",
			Balance:          decimal.NewFromInt(1_000_000),
			AvailableBalance: decimal.NewFromInt(1_000_000),
			Currency:         "NGN",
			Type:             "SAVINGS",
			Status:           account.StatusActive,
		},
		{
			ID:               "acc-bob",
			AccountNumber:    "9876543210",
			UserID:           "user-bob",
			Balance:          decimal.NewFromInt(250_000),
			AvailableBalance: decimal.NewFromInt(250_000),
			Currency:         "NGN",
			Type:             "CURRENT",
			Status:           account.StatusActive,
		},
	}
}
