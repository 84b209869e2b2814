package handlers

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/payflow/backend/internal/auth"
	"github.com/payflow/backend/internal/config"
	"github.com/payflow/backend/internal/http/dto"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const nonceTTL = 5 * time.Minute

// AuthHandler issues login nonces and exchanges a personal_sign signature
// over the nonce message for a JWT scoped to the wallet address.
type AuthHandler struct {
	cfg *config.Config
	rdb *redis.Client
	log *zap.Logger
}

func NewAuthHandler(cfg *config.Config, rdb *redis.Client, log *zap.Logger) *AuthHandler {
	return &AuthHandler{cfg: cfg, rdb: rdb, log: log}
}

func (h *AuthHandler) GetNonce(c *fiber.Ctx) error {
	wallet := strings.ToLower(c.Query("wallet_address"))
	if wallet == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "wallet_address is required"})
	}

	nonce := uuid.New().String()
	message := fmt.Sprintf("Sign in to PayFlow\nWallet: %s\nNonce: %s", wallet, nonce)

	if err := h.rdb.Set(c.Context(), "auth:nonce:"+wallet, message, nonceTTL).Err(); err != nil {
		h.log.Error("failed to store nonce", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: fiber.Map{"message": message}})
}

func (h *AuthHandler) WalletAuth(c *fiber.Ctx) error {
	var req dto.WalletAuthRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	if req.WalletAddress == "" || req.Message == "" || req.Signature == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "wallet_address, message and signature are required"})
	}

	wallet := strings.ToLower(req.WalletAddress)

	stored, err := h.rdb.Get(c.Context(), "auth:nonce:"+wallet).Result()
	if err != nil || stored != req.Message {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "unknown or expired nonce"})
	}

	if err := auth.VerifyWalletSignature(req.WalletAddress, req.Message, req.Signature); err != nil {
		h.log.Debug("wallet signature rejected", zap.String("wallet", wallet), zap.Error(err))
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "invalid signature"})
	}

	// Nonce is single use
	h.rdb.Del(c.Context(), "auth:nonce:"+wallet)

	token, err := auth.GenerateJWT(h.cfg.JWTSecret, wallet, h.cfg.JWTExpiration)
	if err != nil {
		h.log.Error("failed to generate jwt", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.AuthResponse{Token: token, WalletAddress: wallet})
}
