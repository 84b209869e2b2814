package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/payflow/backend/internal/config"
	"github.com/payflow/backend/internal/db"
	"github.com/payflow/backend/internal/events"
	"github.com/payflow/backend/internal/payments"
	"github.com/payflow/backend/internal/repositories"
	"github.com/payflow/backend/internal/services"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Repos
	actionRepo := repositories.NewActionRepo(pool)

	// Services
	publisher := events.NewRedisPublisher(rdb, log)
	facilitator := payments.NewFacilitatorClient(cfg.FacilitatorURL, log)
	relayer := payments.NewRelayerClient(cfg.RelayerURL, log)
	router := payments.NewRouter(facilitator, relayer, cfg.PaymentTimeoutSeconds, log)

	actionService := services.NewActionService(actionRepo, publisher, log)
	executorService := services.NewExecutorService(router, log)

	// The keeper runs headless, so x402 actions that need a user signature
	// surface as awaiting_signature and are skipped.
	keeper := services.NewKeeperService(actionService, executorService, nil, log)

	log.Info("keeper started", zap.Duration("interval", cfg.KeeperInterval))

	sweepTicker := time.NewTicker(cfg.KeeperInterval)
	defer sweepTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-sweepTicker.C:
			runSweep(ctx, keeper, cfg, log)
		case <-sigCh:
			log.Info("shutting down keeper")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

func runSweep(ctx context.Context, keeper *services.KeeperService, cfg *config.Config, log *zap.Logger) {
	sweepCtx, cancel := context.WithTimeout(ctx, cfg.KeeperSweepTimeout)
	defer cancel()

	summary, err := keeper.RunCheck(sweepCtx)
	if err != nil {
		log.Error("keeper sweep failed", zap.Error(err))
		return
	}

	log.Info("keeper sweep finished",
		zap.Int("wallets_checked", summary.WalletsChecked),
		zap.Int("actions_checked", summary.ActionsChecked),
		zap.Int("actions_executed", summary.ActionsExecuted),
		zap.Int("actions_failed", summary.ActionsFailed),
		zap.Float64("success_rate", summary.SuccessRate),
		zap.Duration("duration", summary.Duration),
	)
}
