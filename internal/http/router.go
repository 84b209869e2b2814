package http

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/payflow/backend/internal/config"
	"github.com/payflow/backend/internal/http/handlers"
	"github.com/payflow/backend/internal/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	authHandler *handlers.AuthHandler,
	actionHandler *handlers.ActionHandler,
	historyHandler *handlers.HistoryHandler,
	flowHandler *handlers.FlowHandler,
	webhookHandler *handlers.WebhookHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID, X-Webhook-Signature, X-Agent-Id",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Agent webhooks (HMAC-verified in the handlers, no JWT)
	webhooks := app.Group("/api/webhooks")
	webhooks.Use(middleware.RateLimitMiddleware(rdb, 60, time.Minute))
	webhooks.Post("/execute-action", webhookHandler.ExecuteAction)
	webhooks.Post("/execute-batch", webhookHandler.ExecuteBatch)
	webhooks.Post("/create-action", webhookHandler.CreateAction)
	webhooks.Get("/history/:wallet_address", webhookHandler.GetHistory)

	api := app.Group("/api/v1")

	// Auth (public)
	api.Get("/auth/nonce", authHandler.GetNonce)
	api.Post("/auth/wallet", authHandler.WalletAuth)

	api.Use(middleware.RateLimitMiddleware(rdb, 100, time.Minute))

	// Protected endpoints
	protected := api.Group("", middleware.AuthMiddleware(cfg, log))

	// Payment actions
	protected.Post("/actions", actionHandler.CreateAction)
	protected.Get("/actions", actionHandler.ListActions)
	protected.Get("/actions/quick", actionHandler.GetQuickActions)
	protected.Get("/actions/:id", actionHandler.GetAction)
	protected.Put("/actions/:id", actionHandler.UpdateAction)
	protected.Delete("/actions/:id", actionHandler.DeleteAction)

	// Transaction history
	protected.Get("/transactions", historyHandler.ListTransactions)
	protected.Put("/transactions/:id", historyHandler.UpdateTransaction)

	// Transaction flows
	protected.Post("/flows", flowHandler.CreateFlow)
	protected.Get("/flows/current", flowHandler.GetFlow)
	protected.Get("/flows/next-step", flowHandler.GetNextStep)
	protected.Post("/flows/complete-step", flowHandler.CompleteStep)
	protected.Delete("/flows/current", flowHandler.CancelFlow)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}
