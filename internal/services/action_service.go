package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/payflow/backend/internal/events"
	"github.com/payflow/backend/internal/models"
	"github.com/payflow/backend/internal/repositories"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ActionService owns CRUD and usage bookkeeping over payment actions,
// namespaced by wallet address.
type ActionService struct {
	store     repositories.ActionStore
	publisher events.Publisher
	log       *zap.Logger
}

func NewActionService(store repositories.ActionStore, publisher events.Publisher, log *zap.Logger) *ActionService {
	return &ActionService{store: store, publisher: publisher, log: log}
}

type CreateActionRequest struct {
	WalletAddress    string           `json:"wallet_address"`
	Name             string           `json:"name"`
	ActionType       string           `json:"action_type"`
	RecipientAddress string           `json:"recipient_address"`
	Amount           string           `json:"amount"`
	Token            string           `json:"token"`
	ChainID          int64            `json:"chain_id"`
	Schedule         *models.Schedule `json:"schedule,omitempty"`
	Triggers         []string         `json:"triggers,omitempty"`
	IsPinned         bool             `json:"is_pinned"`
}

func (s *ActionService) CreateAction(ctx context.Context, req CreateActionRequest) (*models.PaymentAction, error) {
	var violations []string
	if req.WalletAddress == "" {
		violations = append(violations, "wallet_address is required")
	}
	if req.Name == "" {
		violations = append(violations, "name is required")
	}
	if !models.IsValidActionType(req.ActionType) {
		violations = append(violations, fmt.Sprintf("invalid action_type %q", req.ActionType))
	}
	if req.Amount != "" {
		if _, err := decimal.NewFromString(req.Amount); err != nil {
			violations = append(violations, fmt.Sprintf("amount %q is not a valid decimal", req.Amount))
		}
	}
	if req.ActionType == models.ActionTypeRecurring {
		if req.Schedule == nil {
			violations = append(violations, "RECURRING action requires a schedule")
		} else {
			violations = append(violations, scheduleViolations(req.Schedule)...)
		}
	} else if req.Schedule != nil {
		violations = append(violations, "schedule is only meaningful for RECURRING actions")
	}
	if len(violations) > 0 {
		return nil, &ValidationError{Violations: violations}
	}

	action := &models.PaymentAction{
		ID:               uuid.New().String(),
		WalletAddress:    req.WalletAddress,
		Name:             req.Name,
		ActionType:       req.ActionType,
		RecipientAddress: req.RecipientAddress,
		Amount:           req.Amount,
		Token:            req.Token,
		ChainID:          req.ChainID,
		Schedule:         req.Schedule,
		Triggers:         req.Triggers,
		IsPinned:         req.IsPinned,
		IsEnabled:        true,
	}

	if err := s.store.Create(ctx, action); err != nil {
		return nil, err
	}

	s.publish(ctx, events.EventActionCreated, map[string]any{
		"wallet_address": action.WalletAddress,
		"action_id":      action.ID,
		"action_type":    action.ActionType,
	})

	s.log.Info("action created",
		zap.String("wallet", action.WalletAddress),
		zap.String("action_id", action.ID),
		zap.String("type", action.ActionType),
	)

	return action, nil
}

// scheduleViolations validates a schedule's frequency and day fields.
// DayOfWeek follows time.Weekday numbering, DayOfMonth is 1-based.
func scheduleViolations(sch *models.Schedule) []string {
	var violations []string
	if !models.IsValidFrequency(sch.Frequency) {
		violations = append(violations, fmt.Sprintf("invalid schedule frequency %q", sch.Frequency))
	}
	if sch.DayOfWeek != nil && (*sch.DayOfWeek < 0 || *sch.DayOfWeek > 6) {
		violations = append(violations, fmt.Sprintf("day_of_week %d is out of range 0-6", *sch.DayOfWeek))
	}
	if sch.DayOfMonth != nil && (*sch.DayOfMonth < 1 || *sch.DayOfMonth > 31) {
		violations = append(violations, fmt.Sprintf("day_of_month %d is out of range 1-31", *sch.DayOfMonth))
	}
	return violations
}

func (s *ActionService) GetAction(ctx context.Context, wallet, id string) (*models.PaymentAction, error) {
	return s.store.Get(ctx, wallet, id)
}

func (s *ActionService) GetActions(ctx context.Context, wallet string, f repositories.ActionFilter) ([]*models.PaymentAction, error) {
	return s.store.List(ctx, wallet, f)
}

// UpdateActionParams is a partial field merge; nil fields keep the stored
// value.
type UpdateActionParams struct {
	Name             *string          `json:"name,omitempty"`
	RecipientAddress *string          `json:"recipient_address,omitempty"`
	Amount           *string          `json:"amount,omitempty"`
	Token            *string          `json:"token,omitempty"`
	ChainID          *int64           `json:"chain_id,omitempty"`
	Schedule         *models.Schedule `json:"schedule,omitempty"`
	Triggers         []string         `json:"triggers,omitempty"`
	IsPinned         *bool            `json:"is_pinned,omitempty"`
	IsEnabled        *bool            `json:"is_enabled,omitempty"`
}

func (s *ActionService) UpdateAction(ctx context.Context, wallet, id string, params UpdateActionParams) (*models.PaymentAction, error) {
	action, err := s.store.Get(ctx, wallet, id)
	if err != nil {
		return nil, err
	}

	if params.Name != nil {
		action.Name = *params.Name
	}
	if params.RecipientAddress != nil {
		action.RecipientAddress = *params.RecipientAddress
	}
	if params.Amount != nil {
		if _, err := decimal.NewFromString(*params.Amount); err != nil {
			return nil, &ValidationError{Violations: []string{fmt.Sprintf("amount %q is not a valid decimal", *params.Amount)}}
		}
		action.Amount = *params.Amount
	}
	if params.Token != nil {
		action.Token = *params.Token
	}
	if params.ChainID != nil {
		action.ChainID = *params.ChainID
	}
	if params.Schedule != nil {
		if action.ActionType != models.ActionTypeRecurring {
			return nil, &ValidationError{Violations: []string{"schedule is only meaningful for RECURRING actions"}}
		}
		if violations := scheduleViolations(params.Schedule); len(violations) > 0 {
			return nil, &ValidationError{Violations: violations}
		}
		action.Schedule = params.Schedule
	}
	if params.Triggers != nil {
		action.Triggers = params.Triggers
	}
	if params.IsPinned != nil {
		action.IsPinned = *params.IsPinned
	}
	if params.IsEnabled != nil {
		action.IsEnabled = *params.IsEnabled
	}

	if err := s.store.Update(ctx, action); err != nil {
		return nil, err
	}

	s.publish(ctx, events.EventActionUpdated, map[string]any{
		"wallet_address": wallet,
		"action_id":      id,
	})

	return action, nil
}

func (s *ActionService) DeleteAction(ctx context.Context, wallet, id string) error {
	return s.store.Delete(ctx, wallet, id)
}

// MarkUsed increments usage_count and stamps last_used. Called by the
// keeper or webhook service on confirmed/submitted execution only.
func (s *ActionService) MarkUsed(ctx context.Context, wallet, id string) error {
	return s.store.MarkUsed(ctx, wallet, id, time.Now().UTC())
}

// GetQuickActions returns actions that are both enabled and pinned.
func (s *ActionService) GetQuickActions(ctx context.Context, wallet string) ([]*models.PaymentAction, error) {
	enabled := true
	actions, err := s.store.List(ctx, wallet, repositories.ActionFilter{Enabled: &enabled})
	if err != nil {
		return nil, err
	}
	var quick []*models.PaymentAction
	for _, a := range actions {
		if a.IsPinned {
			quick = append(quick, a)
		}
	}
	return quick, nil
}

func (s *ActionService) Wallets(ctx context.Context) ([]string, error) {
	return s.store.Wallets(ctx)
}

func (s *ActionService) publish(ctx context.Context, eventType string, payload map[string]any) {
	if s.publisher == nil {
		return
	}
	_ = s.publisher.Publish(ctx, events.ChannelPayments, events.Event{Type: eventType, Payload: payload})
}
