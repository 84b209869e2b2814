package services

import (
	"context"
	"fmt"

	"github.com/payflow/backend/internal/auth"
	"github.com/payflow/backend/internal/config"
	"github.com/payflow/backend/internal/events"
	"github.com/payflow/backend/internal/models"
	"github.com/payflow/backend/internal/repositories"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Webhook event types
const (
	WebhookEventExecuteAction = "execute_action"
	WebhookEventExecuteBatch  = "execute_batch"
	WebhookEventCreateAction  = "create_action"
)

// WebhookService is the signature-verified entry point for external
// agents. It delegates to the action service and executor and records an
// audit entry per request id.
type WebhookService struct {
	actions   *ActionService
	executor  *ExecutorService
	history   *HistoryService
	audit     repositories.WebhookAuditStore
	publisher events.Publisher
	cfg       *config.Config
	log       *zap.Logger
}

func NewWebhookService(
	actions *ActionService,
	executor *ExecutorService,
	history *HistoryService,
	audit repositories.WebhookAuditStore,
	publisher events.Publisher,
	cfg *config.Config,
	log *zap.Logger,
) *WebhookService {
	return &WebhookService{
		actions:   actions,
		executor:  executor,
		history:   history,
		audit:     audit,
		publisher: publisher,
		cfg:       cfg,
		log:       log,
	}
}

// VerifySignature checks the HMAC over the raw payload. With no secret
// configured, checking is skipped entirely (development-mode escape hatch).
func (s *WebhookService) VerifySignature(rawBody []byte, signatureHex string) error {
	if s.cfg.WebhookSecret == "" {
		s.log.Debug("webhook signature checking skipped, no secret configured")
		return nil
	}
	if err := auth.VerifySignature(s.cfg.WebhookSecret, rawBody, signatureHex); err != nil {
		return &SignatureError{Reason: err.Error()}
	}
	return nil
}

type ActionOverrides struct {
	Amount    *string `json:"amount,omitempty"`
	Recipient *string `json:"recipient,omitempty"`
}

type ExecuteActionRequest struct {
	WalletAddress string          `json:"wallet_address"`
	ActionID      string          `json:"action_id"`
	AgentID       *string         `json:"agent_id,omitempty"`
	Overrides     ActionOverrides `json:"overrides"`
}

// ExecuteAction loads the stored action, applies overrides in memory only
// (the stored record is unchanged), executes, and marks the action used on
// success.
func (s *WebhookService) ExecuteAction(ctx context.Context, requestID string, req ExecuteActionRequest) (*models.ExecutionResult, error) {
	action, err := s.actions.GetAction(ctx, req.WalletAddress, req.ActionID)
	if err != nil {
		return nil, err
	}

	exec := action.Clone()
	if req.Overrides.Amount != nil {
		exec.Amount = *req.Overrides.Amount
	}
	if req.Overrides.Recipient != nil {
		exec.RecipientAddress = *req.Overrides.Recipient
	}

	result := s.executor.ExecuteAction(ctx, exec, req.WalletAddress, nil)

	if result.Succeeded() {
		if err := s.actions.MarkUsed(ctx, req.WalletAddress, req.ActionID); err != nil {
			s.log.Error("failed to mark action used",
				zap.String("wallet", req.WalletAddress),
				zap.String("action_id", req.ActionID),
				zap.Error(err),
			)
		}
		s.recordTransaction(ctx, exec, req.WalletAddress, result)
	}

	s.recordAudit(ctx, requestID, req.AgentID, req.WalletAddress, WebhookEventExecuteAction, &req.ActionID, result)
	return result, nil
}

type BatchRecipient struct {
	Address string   `json:"address"`
	Amount  *string  `json:"amount,omitempty"`
	Percent *float64 `json:"percent,omitempty"`
}

type ExecuteBatchRequest struct {
	WalletAddress string           `json:"wallet_address"`
	TotalAmount   string           `json:"total_amount"`
	Token         string           `json:"token"`
	ChainID       int64            `json:"chain_id"`
	Recipients    []BatchRecipient `json:"recipients"`
	AgentID       *string          `json:"agent_id,omitempty"`
}

type BatchLeg struct {
	Recipient string
	Amount    decimal.Decimal
}

type BatchLegResult struct {
	Recipient string  `json:"recipient"`
	Amount    string  `json:"amount"`
	Status    string  `json:"status"`
	TicketID  *string `json:"ticket_id,omitempty"`
	Error     *string `json:"error,omitempty"`
}

type BatchResult struct {
	TotalAmount string           `json:"total_amount"`
	Legs        []BatchLegResult `json:"legs"`
	Submitted   int              `json:"submitted"`
	Failed      int              `json:"failed"`
}

// ComputeBatchLegs splits a total across recipients. Fixed amounts are
// subtracted from the total first; percentage entries then split the
// remainder. Percentages summing past 100 are rejected before any leg
// executes.
func ComputeBatchLegs(total decimal.Decimal, recipients []BatchRecipient) ([]BatchLeg, error) {
	if len(recipients) == 0 {
		return nil, &ValidationError{Violations: []string{"recipients list is empty"}}
	}
	if total.Sign() <= 0 {
		return nil, &ValidationError{Violations: []string{"total_amount must be positive"}}
	}

	var violations []string
	fixedSum := decimal.Zero
	pctSum := decimal.Zero
	for i, r := range recipients {
		if r.Address == "" {
			violations = append(violations, fmt.Sprintf("recipient %d is missing an address", i))
		}
		switch {
		case r.Amount != nil && r.Percent != nil:
			violations = append(violations, fmt.Sprintf("recipient %d has both amount and percent", i))
		case r.Amount == nil && r.Percent == nil:
			violations = append(violations, fmt.Sprintf("recipient %d has neither amount nor percent", i))
		case r.Amount != nil:
			amt, err := decimal.NewFromString(*r.Amount)
			if err != nil || amt.Sign() <= 0 {
				violations = append(violations, fmt.Sprintf("recipient %d has invalid amount", i))
				continue
			}
			fixedSum = fixedSum.Add(amt)
		default:
			if *r.Percent <= 0 {
				violations = append(violations, fmt.Sprintf("recipient %d has invalid percent", i))
				continue
			}
			pctSum = pctSum.Add(decimal.NewFromFloat(*r.Percent))
		}
	}
	if pctSum.GreaterThan(decimal.NewFromInt(100)) {
		violations = append(violations, fmt.Sprintf("percentages sum to %s, must be <= 100", pctSum))
	}
	if fixedSum.GreaterThan(total) {
		violations = append(violations, fmt.Sprintf("fixed amounts sum to %s, exceeding total %s", fixedSum, total))
	}
	if len(violations) > 0 {
		return nil, &ValidationError{Violations: violations}
	}

	remainder := total.Sub(fixedSum)
	hundred := decimal.NewFromInt(100)

	legs := make([]BatchLeg, 0, len(recipients))
	for _, r := range recipients {
		if r.Amount != nil {
			amt, _ := decimal.NewFromString(*r.Amount)
			legs = append(legs, BatchLeg{Recipient: r.Address, Amount: amt})
			continue
		}
		pct := decimal.NewFromFloat(*r.Percent)
		legs = append(legs, BatchLeg{Recipient: r.Address, Amount: remainder.Mul(pct).Div(hundred)})
	}
	return legs, nil
}

// ExecuteBatch runs each leg as an independent, ephemeral action. Legs run
// strictly sequentially; a failing leg is recorded and skipped, with no
// rollback of already-submitted legs.
func (s *WebhookService) ExecuteBatch(ctx context.Context, requestID string, req ExecuteBatchRequest) (*BatchResult, error) {
	total, err := decimal.NewFromString(req.TotalAmount)
	if err != nil {
		return nil, &ValidationError{Violations: []string{fmt.Sprintf("total_amount %q is not a valid decimal", req.TotalAmount)}}
	}
	if len(req.Recipients) > s.cfg.MaxBatchRecipients {
		return nil, &ValidationError{Violations: []string{fmt.Sprintf("too many recipients (%d, max %d)", len(req.Recipients), s.cfg.MaxBatchRecipients)}}
	}

	legs, err := ComputeBatchLegs(total, req.Recipients)
	if err != nil {
		return nil, err
	}

	batch := &BatchResult{TotalAmount: req.TotalAmount}
	for i, leg := range legs {
		action := &models.PaymentAction{
			ID:               fmt.Sprintf("%s-leg-%d", requestID, i),
			WalletAddress:    req.WalletAddress,
			Name:             fmt.Sprintf("batch leg %d", i),
			ActionType:       models.ActionTypeSend,
			RecipientAddress: leg.Recipient,
			Amount:           leg.Amount.String(),
			Token:            req.Token,
			ChainID:          req.ChainID,
			IsEnabled:        true,
		}

		result := s.executor.ExecuteAction(ctx, action, req.WalletAddress, nil)

		legResult := BatchLegResult{
			Recipient: leg.Recipient,
			Amount:    leg.Amount.String(),
			Status:    result.Status,
			TicketID:  result.TicketID,
			Error:     result.ErrorMessage,
		}
		batch.Legs = append(batch.Legs, legResult)

		if result.Succeeded() {
			batch.Submitted++
			s.recordTransaction(ctx, action, req.WalletAddress, result)
		} else {
			batch.Failed++
		}
		s.recordAudit(ctx, requestID, req.AgentID, req.WalletAddress, WebhookEventExecuteBatch, &action.ID, result)
	}

	return batch, nil
}

// CreateAction delegates directly to the action service.
func (s *WebhookService) CreateAction(ctx context.Context, requestID string, agentID *string, req CreateActionRequest) (*models.PaymentAction, error) {
	action, err := s.actions.CreateAction(ctx, req)
	if err != nil {
		return nil, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, &models.WebhookExecution{
			RequestID:     requestID,
			AgentID:       agentID,
			WalletAddress: req.WalletAddress,
			EventType:     WebhookEventCreateAction,
			ActionID:      &action.ID,
			Status:        "created",
		})
	}
	return action, nil
}

// ExecutionHistory returns the audit entries for a wallet, newest first.
func (s *WebhookService) ExecutionHistory(ctx context.Context, wallet string, limit int) ([]models.WebhookExecution, error) {
	return s.audit.ListByWallet(ctx, wallet, limit)
}

func (s *WebhookService) recordTransaction(ctx context.Context, action *models.PaymentAction, wallet string, result *models.ExecutionResult) {
	if s.history == nil {
		return
	}
	var txHash *string
	if h, ok := result.Metadata["tx_hash"].(string); ok && h != "" {
		txHash = &h
	}
	actionID := action.ID
	tx := &models.PaymentTransaction{
		WalletAddress:   wallet,
		ActionID:        &actionID,
		Status:          models.TxStatusProcessing,
		TicketID:        result.TicketID,
		TransactionHash: txHash,
		FromAddress:     wallet,
		ToAddress:       action.RecipientAddress,
		Amount:          action.Amount,
		Token:           action.Token,
		ChainID:         action.ChainID,
		Metadata:        result.Metadata,
	}
	if err := s.history.Record(ctx, tx); err != nil {
		s.log.Error("failed to record transaction", zap.Error(err))
	}

	if s.publisher != nil {
		_ = s.publisher.Publish(ctx, events.ChannelPayments, events.Event{
			Type: events.EventPaymentExecuted,
			Payload: map[string]any{
				"wallet_address": wallet,
				"action_id":      action.ID,
				"status":         result.Status,
			},
		})
	}
}

func (s *WebhookService) recordAudit(ctx context.Context, requestID string, agentID *string, wallet, eventType string, actionID *string, result *models.ExecutionResult) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, &models.WebhookExecution{
		RequestID:     requestID,
		AgentID:       agentID,
		WalletAddress: wallet,
		EventType:     eventType,
		ActionID:      actionID,
		Status:        result.Status,
		TicketID:      result.TicketID,
		Error:         result.ErrorMessage,
	})
}
