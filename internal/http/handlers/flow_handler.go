package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/payflow/backend/internal/http/dto"
	"github.com/payflow/backend/internal/middleware"
	"github.com/payflow/backend/internal/services"
	"go.uber.org/zap"
)

type FlowHandler struct {
	flowService *services.FlowService
	log         *zap.Logger
}

func NewFlowHandler(flowService *services.FlowService, log *zap.Logger) *FlowHandler {
	return &FlowHandler{flowService: flowService, log: log}
}

func (h *FlowHandler) CreateFlow(c *fiber.Ctx) error {
	wallet := middleware.GetWalletAddress(c)

	var req dto.CreateFlowRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	if len(req.Steps) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "steps list is empty"})
	}

	steps := make([]services.RawStep, 0, len(req.Steps))
	for _, s := range req.Steps {
		steps = append(steps, services.RawStep{Target: s.Target, CallData: s.CallData, Value: s.Value})
	}

	flow, err := h.flowService.CreateFlow(wallet, req.ChainID, req.OperationType, steps)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: flow})
}

func (h *FlowHandler) GetFlow(c *fiber.Ctx) error {
	wallet := middleware.GetWalletAddress(c)

	flow, err := h.flowService.GetFlowStatus(wallet)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "no flow for wallet"})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: flow})
}

func (h *FlowHandler) GetNextStep(c *fiber.Ctx) error {
	wallet := middleware.GetWalletAddress(c)

	step := h.flowService.GetNextStep(wallet)
	if step == nil {
		return c.JSON(dto.SuccessResponse{OK: true, Data: nil})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: step})
}

func (h *FlowHandler) CompleteStep(c *fiber.Ctx) error {
	wallet := middleware.GetWalletAddress(c)

	var req dto.CompleteStepRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	flow, err := h.flowService.CompleteStep(wallet, req.TxHash, req.Success, req.Error)
	if err != nil {
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: flow})
}

func (h *FlowHandler) CancelFlow(c *fiber.Ctx) error {
	wallet := middleware.GetWalletAddress(c)

	if err := h.flowService.CancelFlow(wallet); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	return c.JSON(dto.SuccessResponse{OK: true})
}
