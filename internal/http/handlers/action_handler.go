package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/payflow/backend/internal/http/dto"
	"github.com/payflow/backend/internal/middleware"
	"github.com/payflow/backend/internal/repositories"
	"github.com/payflow/backend/internal/services"
	"go.uber.org/zap"
)

type ActionHandler struct {
	actionService *services.ActionService
	log           *zap.Logger
}

func NewActionHandler(actionService *services.ActionService, log *zap.Logger) *ActionHandler {
	return &ActionHandler{actionService: actionService, log: log}
}

func (h *ActionHandler) CreateAction(c *fiber.Ctx) error {
	var req services.CreateActionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	// Actions are always created under the authenticated wallet
	req.WalletAddress = middleware.GetWalletAddress(c)

	action, err := h.actionService.CreateAction(c.Context(), req)
	if err != nil {
		return actionError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: action})
}

func (h *ActionHandler) ListActions(c *fiber.Ctx) error {
	wallet := middleware.GetWalletAddress(c)

	filter := repositories.ActionFilter{}
	if v := c.Query("action_type"); v != "" {
		filter.ActionType = &v
	}
	if v := c.Query("enabled"); v != "" {
		enabled := v == "true"
		filter.Enabled = &enabled
	}

	actions, err := h.actionService.GetActions(c.Context(), wallet, filter)
	if err != nil {
		h.log.Error("list actions failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: actions})
}

func (h *ActionHandler) GetAction(c *fiber.Ctx) error {
	wallet := middleware.GetWalletAddress(c)

	action, err := h.actionService.GetAction(c.Context(), wallet, c.Params("id"))
	if err != nil {
		return actionError(c, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: action})
}

func (h *ActionHandler) UpdateAction(c *fiber.Ctx) error {
	wallet := middleware.GetWalletAddress(c)

	var params services.UpdateActionParams
	if err := c.BodyParser(&params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	action, err := h.actionService.UpdateAction(c.Context(), wallet, c.Params("id"), params)
	if err != nil {
		return actionError(c, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: action})
}

func (h *ActionHandler) DeleteAction(c *fiber.Ctx) error {
	wallet := middleware.GetWalletAddress(c)

	if err := h.actionService.DeleteAction(c.Context(), wallet, c.Params("id")); err != nil {
		return actionError(c, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *ActionHandler) GetQuickActions(c *fiber.Ctx) error {
	wallet := middleware.GetWalletAddress(c)

	actions, err := h.actionService.GetQuickActions(c.Context(), wallet)
	if err != nil {
		h.log.Error("quick actions failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: actions})
}

func actionError(c *fiber.Ctx, err error) error {
	var vErr *services.ValidationError
	switch {
	case errors.As(err, &vErr):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: vErr.Error()})
	case errors.Is(err, repositories.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "action not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
}
