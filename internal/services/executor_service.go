package services

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/payflow/backend/internal/models"
	"github.com/payflow/backend/internal/payments"
	"go.uber.org/zap"
)

// SigningCallback produces a signature over the prepared typed data. When
// absent, execution stops at AwaitingSignature and the caller drives
// submission separately.
type SigningCallback func(ctx context.Context, typedData *apitypes.TypedData) (string, error)

// ExecutorService validates an action and drives it through the router to
// an execution result. It never marks the action used; that is the caller's
// responsibility on confirmed success.
type ExecutorService struct {
	router *payments.Router
	log    *zap.Logger
}

func NewExecutorService(router *payments.Router, log *zap.Logger) *ExecutorService {
	return &ExecutorService{router: router, log: log}
}

// ValidateActionForExecution returns every violated rule, not just the
// first.
func (s *ExecutorService) ValidateActionForExecution(action *models.PaymentAction) []string {
	var violations []string
	if !action.IsEnabled {
		violations = append(violations, "action is disabled")
	}
	if action.ActionType == models.ActionTypeTemplate {
		violations = append(violations, "TEMPLATE actions cannot be executed directly")
	}
	if action.RecipientAddress == "" {
		violations = append(violations, "recipient_address is required")
	}
	if action.Amount == "" {
		violations = append(violations, "amount is required")
	}
	if action.Token == "" {
		violations = append(violations, "token is required")
	}

	network, ok := payments.NetworkForChainID(action.ChainID)
	if !ok {
		violations = append(violations, fmt.Sprintf("chain %d has no payment route", action.ChainID))
	} else if action.Token != "" {
		if _, err := payments.GetRoute(network, action.Token); err != nil {
			violations = append(violations, err.Error())
		}
	}
	return violations
}

// ExecuteAction runs validation, prepares the payment and, when possible,
// submits it. Every attempt yields a fresh ExecutionResult.
func (s *ExecutorService) ExecuteAction(ctx context.Context, action *models.PaymentAction, wallet string, signer SigningCallback) *models.ExecutionResult {
	if violations := s.ValidateActionForExecution(action); len(violations) > 0 {
		return s.failed(action, wallet, (&ValidationError{Violations: violations}).Error(), nil)
	}

	network, _ := payments.NetworkForChainID(action.ChainID)

	prep, err := s.router.Prepare(ctx, network, wallet, action.RecipientAddress, action.Amount, action.Token)
	if err != nil {
		s.log.Error("payment preparation failed",
			zap.String("wallet", wallet),
			zap.String("action_id", action.ID),
			zap.Error(err),
		)
		return s.failed(action, wallet, "payment preparation failed", map[string]any{
			"technical_detail": err.Error(),
		})
	}

	switch prep.ActionType {
	case payments.PrepareSignTypedData:
		if signer == nil {
			return &models.ExecutionResult{
				Status:        models.ExecutionStatusAwaitingSignature,
				ActionID:      action.ID,
				WalletAddress: wallet,
				Metadata:      map[string]any{"preparation": prep},
				Timestamp:     time.Now().UTC(),
			}
		}
		signature, err := signer(ctx, prep.TypedData)
		if err != nil {
			return s.failed(action, wallet, "signing failed", map[string]any{
				"technical_detail": err.Error(),
			})
		}
		return s.submit(ctx, action, wallet, payments.Submission{
			Protocol:         prep.Protocol,
			Network:          prep.Network,
			UserAddress:      wallet,
			RecipientAddress: action.RecipientAddress,
			AmountAtomic:     prep.RequiredAtomic,
			Signature:        signature,
			Message:          prep.TypedData.Message,
			Metadata:         prep.Metadata,
		})

	case payments.PrepareApproveAllowance:
		// No automatic transition out of the approval state: the caller
		// must grant the allowance and re-invoke.
		return s.failed(action, wallet, "relayer allowance is insufficient, approve and retry", map[string]any{
			"preparation": prep,
		})

	case payments.PrepareReadyToExecute:
		return s.submit(ctx, action, wallet, payments.Submission{
			Protocol:         prep.Protocol,
			Network:          prep.Network,
			UserAddress:      wallet,
			RecipientAddress: action.RecipientAddress,
			AmountAtomic:     prep.RequiredAtomic,
			Metadata:         prep.Metadata,
		})

	default:
		return s.failed(action, wallet, fmt.Sprintf("unknown preparation action type %q", prep.ActionType), nil)
	}
}

func (s *ExecutorService) submit(ctx context.Context, action *models.PaymentAction, wallet string, sub payments.Submission) *models.ExecutionResult {
	res, err := s.router.Submit(ctx, sub)
	if err != nil {
		s.log.Error("payment submission failed",
			zap.String("wallet", wallet),
			zap.String("action_id", action.ID),
			zap.Error(err),
		)
		return s.failed(action, wallet, "payment submission failed", map[string]any{
			"technical_detail": err.Error(),
		})
	}
	if !res.Success {
		return s.failed(action, wallet, "payment rejected by facilitator", map[string]any{
			"technical_detail": res.Err,
			"network":          res.Network,
		})
	}

	var ticket *string
	if res.TicketID != "" {
		t := res.TicketID
		ticket = &t
	}
	return &models.ExecutionResult{
		Status:        models.ExecutionStatusSubmitted,
		ActionID:      action.ID,
		WalletAddress: wallet,
		TicketID:      ticket,
		Metadata: map[string]any{
			"tx_hash": res.TxHash,
			"network": res.Network,
		},
		Timestamp: time.Now().UTC(),
	}
}

func (s *ExecutorService) failed(action *models.PaymentAction, wallet, message string, meta map[string]any) *models.ExecutionResult {
	msg := message
	return &models.ExecutionResult{
		Status:        models.ExecutionStatusFailed,
		ActionID:      action.ID,
		WalletAddress: wallet,
		ErrorMessage:  &msg,
		Metadata:      meta,
		Timestamp:     time.Now().UTC(),
	}
}
