package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/payflow/backend/internal/config"
	"github.com/payflow/backend/internal/db"
	"github.com/payflow/backend/internal/events"
	apphttp "github.com/payflow/backend/internal/http"
	"github.com/payflow/backend/internal/http/handlers"
	"github.com/payflow/backend/internal/payments"
	"github.com/payflow/backend/internal/repositories"
	"github.com/payflow/backend/internal/services"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, pool, os.DirFS("migrations"), log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Repositories
	actionRepo := repositories.NewActionRepo(pool)
	historyRepo := repositories.NewHistoryRepo(pool)
	auditRepo := repositories.NewWebhookAuditRepo(pool)

	// Events
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)

	// Payment adapters and router
	facilitator := payments.NewFacilitatorClient(cfg.FacilitatorURL, log)
	relayer := payments.NewRelayerClient(cfg.RelayerURL, log)
	router := payments.NewRouter(facilitator, relayer, cfg.PaymentTimeoutSeconds, log)

	// Services
	actionService := services.NewActionService(actionRepo, publisher, log)
	executorService := services.NewExecutorService(router, log)
	historyService := services.NewHistoryService(historyRepo, log)
	flowService := services.NewFlowService(publisher, log)
	webhookService := services.NewWebhookService(actionService, executorService, historyService, auditRepo, publisher, cfg, log)

	// Handlers
	authHandler := handlers.NewAuthHandler(cfg, rdb, log)
	actionHandler := handlers.NewActionHandler(actionService, log)
	historyHandler := handlers.NewHistoryHandler(historyService, log)
	flowHandler := handlers.NewFlowHandler(flowService, log)
	webhookHandler := handlers.NewWebhookHandler(webhookService, cfg, log)
	wsHub := handlers.NewWSHub(cfg, subscriber, log)

	// Start WS hub
	wsHub.Start(ctx)

	// Flows live in this process, so the stale-flow sweep runs here too.
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed := flowService.CleanupOldFlows(cfg.FlowMaxAge)
				if removed > 0 {
					log.Info("cleaned up stale flows", zap.Int("removed", removed))
				}
			}
		}
	}()

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, authHandler, actionHandler, historyHandler, flowHandler, webhookHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
