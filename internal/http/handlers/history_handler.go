package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/payflow/backend/internal/http/dto"
	"github.com/payflow/backend/internal/middleware"
	"github.com/payflow/backend/internal/models"
	"github.com/payflow/backend/internal/repositories"
	"github.com/payflow/backend/internal/services"
	"go.uber.org/zap"
)

type HistoryHandler struct {
	historyService *services.HistoryService
	log            *zap.Logger
}

func NewHistoryHandler(historyService *services.HistoryService, log *zap.Logger) *HistoryHandler {
	return &HistoryHandler{historyService: historyService, log: log}
}

func (h *HistoryHandler) ListTransactions(c *fiber.Ctx) error {
	wallet := middleware.GetWalletAddress(c)

	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	txs, err := h.historyService.List(c.Context(), wallet, limit)
	if err != nil {
		h.log.Error("list transactions failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: txs})
}

func (h *HistoryHandler) UpdateTransaction(c *fiber.Ctx) error {
	wallet := middleware.GetWalletAddress(c)

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid transaction id"})
	}

	var req dto.UpdateTransactionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	if !isKnownTxStatus(req.Status) {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "unknown status"})
	}

	if err := h.historyService.UpdateStatus(c.Context(), wallet, id, req.Status, req.TransactionHash); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "transaction not found"})
		}
		var vErr *services.ValidationError
		if errors.As(err, &vErr) {
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: vErr.Error()})
		}
		h.log.Error("update transaction failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.SuccessResponse{OK: true})
}

func isKnownTxStatus(s string) bool {
	switch s {
	case models.TxStatusPending, models.TxStatusProcessing, models.TxStatusConfirmed,
		models.TxStatusFailed, models.TxStatusCancelled:
		return true
	}
	return false
}
