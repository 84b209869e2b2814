package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/payflow/backend/internal/config"
	"github.com/payflow/backend/internal/http/dto"
	"github.com/payflow/backend/internal/middleware"
	"github.com/payflow/backend/internal/repositories"
	"github.com/payflow/backend/internal/services"
	"go.uber.org/zap"
)

const (
	signatureHeader = "X-Webhook-Signature"
	agentIDHeader   = "X-Agent-Id"
)

// WebhookHandler is the agent-facing surface. Every endpoint verifies the
// HMAC over the raw request body before parsing it, and every response
// carries the request id.
type WebhookHandler struct {
	webhookService *services.WebhookService
	cfg            *config.Config
	log            *zap.Logger
}

func NewWebhookHandler(webhookService *services.WebhookService, cfg *config.Config, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{webhookService: webhookService, cfg: cfg, log: log}
}

func (h *WebhookHandler) ExecuteAction(c *fiber.Ctx) error {
	requestID, _ := c.Locals(middleware.CtxRequestID).(string)

	body, ok := h.verifiedBody(c, requestID)
	if !ok {
		return nil
	}

	var req services.ExecuteActionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return h.fail(c, fiber.StatusBadRequest, requestID, "invalid request body")
	}
	req.AgentID = resolveAgent(c, req.AgentID)
	if !h.agentAllowed(req.AgentID) {
		return h.fail(c, fiber.StatusForbidden, requestID, "agent is not allowed")
	}

	result, err := h.webhookService.ExecuteAction(c.Context(), requestID, req)
	if err != nil {
		return h.serviceError(c, requestID, err)
	}

	return c.JSON(dto.WebhookEnvelope{
		Success:   result.Succeeded(),
		RequestID: requestID,
		Result:    result,
	})
}

func (h *WebhookHandler) ExecuteBatch(c *fiber.Ctx) error {
	requestID, _ := c.Locals(middleware.CtxRequestID).(string)

	body, ok := h.verifiedBody(c, requestID)
	if !ok {
		return nil
	}

	var req services.ExecuteBatchRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return h.fail(c, fiber.StatusBadRequest, requestID, "invalid request body")
	}
	req.AgentID = resolveAgent(c, req.AgentID)
	if !h.agentAllowed(req.AgentID) {
		return h.fail(c, fiber.StatusForbidden, requestID, "agent is not allowed")
	}

	batch, err := h.webhookService.ExecuteBatch(c.Context(), requestID, req)
	if err != nil {
		return h.serviceError(c, requestID, err)
	}

	return c.JSON(dto.WebhookEnvelope{
		Success:   batch.Failed == 0,
		RequestID: requestID,
		Result:    batch,
	})
}

func (h *WebhookHandler) CreateAction(c *fiber.Ctx) error {
	requestID, _ := c.Locals(middleware.CtxRequestID).(string)

	body, ok := h.verifiedBody(c, requestID)
	if !ok {
		return nil
	}

	var req struct {
		AgentID *string `json:"agent_id,omitempty"`
		services.CreateActionRequest
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return h.fail(c, fiber.StatusBadRequest, requestID, "invalid request body")
	}
	req.AgentID = resolveAgent(c, req.AgentID)
	if !h.agentAllowed(req.AgentID) {
		return h.fail(c, fiber.StatusForbidden, requestID, "agent is not allowed")
	}

	action, err := h.webhookService.CreateAction(c.Context(), requestID, req.AgentID, req.CreateActionRequest)
	if err != nil {
		return h.serviceError(c, requestID, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.WebhookEnvelope{
		Success:   true,
		RequestID: requestID,
		Result:    action,
	})
}

func (h *WebhookHandler) GetHistory(c *fiber.Ctx) error {
	requestID, _ := c.Locals(middleware.CtxRequestID).(string)

	wallet := c.Params("wallet_address")
	if wallet == "" {
		return h.fail(c, fiber.StatusBadRequest, requestID, "wallet_address is required")
	}

	// GET carries no body, so the HMAC covers the wallet the caller is
	// asking about instead.
	payload := fmt.Sprintf(`{"wallet_address":%q}`, wallet)
	if err := h.webhookService.VerifySignature([]byte(payload), c.Get(signatureHeader)); err != nil {
		h.log.Warn("webhook signature rejected",
			zap.String("request_id", requestID),
			zap.String("path", c.Path()),
		)
		return h.fail(c, fiber.StatusUnauthorized, requestID, "invalid signature")
	}

	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := h.webhookService.ExecutionHistory(c.Context(), wallet, limit)
	if err != nil {
		h.log.Error("webhook history failed", zap.Error(err))
		return h.fail(c, fiber.StatusInternalServerError, requestID, "internal error")
	}

	return c.JSON(dto.WebhookEnvelope{
		Success:   true,
		RequestID: requestID,
		Result:    entries,
	})
}

// verifiedBody checks the HMAC header against the raw body. On failure it
// writes the 401 response itself and returns ok=false.
func (h *WebhookHandler) verifiedBody(c *fiber.Ctx, requestID string) ([]byte, bool) {
	body := c.Body()
	if err := h.webhookService.VerifySignature(body, c.Get(signatureHeader)); err != nil {
		h.log.Warn("webhook signature rejected",
			zap.String("request_id", requestID),
			zap.String("path", c.Path()),
		)
		_ = h.fail(c, fiber.StatusUnauthorized, requestID, "invalid signature")
		return nil, false
	}
	return body, true
}

// resolveAgent prefers the X-Agent-Id header, falling back to the agent_id
// body field some callers send instead.
func resolveAgent(c *fiber.Ctx, bodyAgent *string) *string {
	if v := c.Get(agentIDHeader); v != "" {
		return &v
	}
	return bodyAgent
}

func (h *WebhookHandler) agentAllowed(agentID *string) bool {
	if agentID == nil {
		return true
	}
	return h.cfg.IsAgentAllowed(*agentID)
}

func (h *WebhookHandler) serviceError(c *fiber.Ctx, requestID string, err error) error {
	var vErr *services.ValidationError
	var sErr *services.SignatureError
	switch {
	case errors.As(err, &vErr):
		return h.fail(c, fiber.StatusBadRequest, requestID, vErr.Error())
	case errors.As(err, &sErr):
		return h.fail(c, fiber.StatusUnauthorized, requestID, sErr.Error())
	case errors.Is(err, repositories.ErrNotFound):
		return h.fail(c, fiber.StatusNotFound, requestID, "action not found")
	default:
		h.log.Error("webhook request failed", zap.String("request_id", requestID), zap.Error(err))
		return h.fail(c, fiber.StatusInternalServerError, requestID, "internal error")
	}
}

func (h *WebhookHandler) fail(c *fiber.Ctx, status int, requestID, msg string) error {
	return c.Status(status).JSON(dto.WebhookEnvelope{
		Success:   false,
		RequestID: requestID,
		Error:     msg,
	})
}
