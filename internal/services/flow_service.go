package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/payflow/backend/internal/events"
	"github.com/payflow/backend/internal/models"
	"github.com/payflow/backend/internal/repositories"
	"go.uber.org/zap"
)

// RawStep is an unclassified on-chain call supplied by the caller.
type RawStep struct {
	Target   string `json:"target"`
	CallData string `json:"call_data"`
	Value    string `json:"value"`
}

// FlowService tracks one ordered sequence of on-chain steps per wallet,
// advancing a cursor as steps complete. Creating a new flow replaces any
// unfinished one for that wallet.
type FlowService struct {
	publisher events.Publisher
	log       *zap.Logger
	now       func() time.Time

	mu    sync.Mutex
	flows map[string]*models.TransactionFlow
}

func NewFlowService(publisher events.Publisher, log *zap.Logger) *FlowService {
	return &FlowService{
		publisher: publisher,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
		flows:     make(map[string]*models.TransactionFlow),
	}
}

func (s *FlowService) publishUpdate(flow *models.TransactionFlow) {
	if s.publisher == nil {
		return
	}
	_ = s.publisher.Publish(context.Background(), events.ChannelPayments, events.Event{
		Type: events.EventFlowUpdated,
		Payload: map[string]any{
			"wallet_address": flow.WalletAddress,
			"flow_id":        flow.FlowID.String(),
			"status":         flow.Status,
			"current_step":   flow.CurrentStep,
		},
	})
}

func (s *FlowService) CreateFlow(wallet string, chainID int64, operationType string, rawSteps []RawStep) (*models.TransactionFlow, error) {
	if len(rawSteps) == 0 {
		return nil, &ValidationError{Violations: []string{"flow requires at least one step"}}
	}

	steps := make([]models.TransactionStep, 0, len(rawSteps))
	for i, raw := range rawSteps {
		steps = append(steps, models.TransactionStep{
			StepNumber: i,
			StepType:   models.ClassifyStepType(raw.CallData),
			Target:     raw.Target,
			CallData:   raw.CallData,
			Value:      raw.Value,
			Status:     models.StepStatusPending,
		})
	}

	now := s.now()
	flow := &models.TransactionFlow{
		FlowID:        uuid.New(),
		WalletAddress: wallet,
		ChainID:       chainID,
		OperationType: operationType,
		Steps:         steps,
		CurrentStep:   0,
		Status:        models.FlowStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	s.mu.Lock()
	if prev, ok := s.flows[wallet]; ok && !prev.IsTerminal() {
		s.log.Warn("replacing unfinished flow",
			zap.String("wallet", wallet),
			zap.String("flow_id", prev.FlowID.String()),
			zap.String("status", prev.Status),
		)
	}
	s.flows[wallet] = flow
	s.mu.Unlock()

	s.publishUpdate(flow)
	return flow.Clone(), nil
}

// GetNextStep returns the step at the current cursor, or nil when the flow
// is finished or absent.
func (s *FlowService) GetNextStep(wallet string) *models.TransactionStep {
	s.mu.Lock()
	defer s.mu.Unlock()

	flow, ok := s.flows[wallet]
	if !ok || flow.IsTerminal() || flow.CurrentStep >= len(flow.Steps) {
		return nil
	}
	step := flow.Steps[flow.CurrentStep]
	if step.TxHash != nil {
		h := *step.TxHash
		step.TxHash = &h
	}
	if step.Error != nil {
		e := *step.Error
		step.Error = &e
	}
	return &step
}

// CompleteStep marks the step at the cursor Completed or Failed. On success
// the cursor advances; on failure the flow is Failed with the cursor left
// in place, so the caller can inspect the failing step. No automatic retry.
func (s *FlowService) CompleteStep(wallet, txHash string, success bool, errMsg string) (*models.TransactionFlow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	flow, ok := s.flows[wallet]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	if flow.IsTerminal() {
		return nil, fmt.Errorf("flow %s is already %s", flow.FlowID, flow.Status)
	}
	if flow.CurrentStep >= len(flow.Steps) {
		return nil, fmt.Errorf("flow %s has no pending step", flow.FlowID)
	}

	step := &flow.Steps[flow.CurrentStep]
	if txHash != "" {
		h := txHash
		step.TxHash = &h
	}
	flow.UpdatedAt = s.now()

	if !success {
		step.Status = models.StepStatusFailed
		if errMsg != "" {
			e := errMsg
			step.Error = &e
		}
		flow.Status = models.FlowStatusFailed
		s.publishUpdate(flow)
		return flow.Clone(), nil
	}

	step.Status = models.StepStatusCompleted
	flow.CurrentStep++
	if flow.CurrentStep >= len(flow.Steps) {
		flow.Status = models.FlowStatusCompleted
	} else {
		flow.Status = models.FlowStatusInProgress
	}
	s.publishUpdate(flow)
	return flow.Clone(), nil
}

func (s *FlowService) CancelFlow(wallet string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	flow, ok := s.flows[wallet]
	if !ok {
		return repositories.ErrNotFound
	}
	if flow.IsTerminal() {
		return fmt.Errorf("flow %s is already %s", flow.FlowID, flow.Status)
	}
	flow.Status = models.FlowStatusCancelled
	flow.UpdatedAt = s.now()
	s.publishUpdate(flow)
	return nil
}

func (s *FlowService) GetFlowStatus(wallet string) (*models.TransactionFlow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	flow, ok := s.flows[wallet]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return flow.Clone(), nil
}

// CleanupOldFlows purges terminal flows older than maxAge and returns the
// number removed.
func (s *FlowService) CleanupOldFlows(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxAge)
	removed := 0
	for wallet, flow := range s.flows {
		if flow.IsTerminal() && flow.UpdatedAt.Before(cutoff) {
			delete(s.flows, wallet)
			removed++
		}
	}
	return removed
}
