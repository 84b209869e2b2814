package services

import (
	"context"
	"sync"
	"time"

	"github.com/payflow/backend/internal/models"
	"github.com/payflow/backend/internal/repositories"
	"go.uber.org/zap"
)

// KeeperService sweeps every known wallet, decides which recurring actions
// are due and executes them. A failing action never aborts the sweep.
type KeeperService struct {
	actions  *ActionService
	executor *ExecutorService
	signer   SigningCallback
	log      *zap.Logger
	now      func() time.Time

	// Per-wallet locks close the double-execution race between
	// overlapping sweeps and manual webhook executions in this process.
	walletLocks sync.Map

	mu      sync.Mutex
	execLog []ExecutionLogEntry
}

// ExecutionLogEntry is the keeper's in-memory audit record for one
// attempted execution.
type ExecutionLogEntry struct {
	ActionID      string    `json:"action_id"`
	WalletAddress string    `json:"wallet_address"`
	Status        string    `json:"status"`
	TicketID      *string   `json:"ticket_id,omitempty"`
	Error         *string   `json:"error,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// SweepSummary reports one RunCheck pass.
type SweepSummary struct {
	WalletsChecked  int           `json:"wallets_checked"`
	ActionsChecked  int           `json:"actions_checked"`
	ActionsExecuted int           `json:"actions_executed"`
	ActionsFailed   int           `json:"actions_failed"`
	SuccessRate     float64       `json:"success_rate"`
	Duration        time.Duration `json:"duration"`
}

func NewKeeperService(actions *ActionService, executor *ExecutorService, signer SigningCallback, log *zap.Logger) *KeeperService {
	return &KeeperService{
		actions:  actions,
		executor: executor,
		signer:   signer,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// IsDue evaluates a recurring action's schedule against now.
//
// The >=14d (weekly) and >=35d (monthly) catch-up windows deliberately pay
// out a missed target day instead of waiting for the next exact match.
func IsDue(action *models.PaymentAction, now time.Time) bool {
	if action.Schedule == nil {
		return false
	}
	if action.LastUsed == nil {
		// First-ever execution is always due.
		return true
	}

	last := *action.LastUsed
	elapsed := now.Sub(last)

	switch action.Schedule.Frequency {
	case models.FrequencyDaily:
		return elapsed >= 24*time.Hour

	case models.FrequencyWeekly:
		if elapsed >= 14*24*time.Hour {
			return true
		}
		target := int(last.Weekday())
		if action.Schedule.DayOfWeek != nil {
			target = *action.Schedule.DayOfWeek
		}
		return elapsed >= 7*24*time.Hour && int(now.Weekday()) == target

	case models.FrequencyMonthly:
		if elapsed >= 35*24*time.Hour {
			return true
		}
		target := last.Day()
		if action.Schedule.DayOfMonth != nil {
			target = *action.Schedule.DayOfMonth
		}
		return elapsed >= 28*24*time.Hour && now.Day() == target

	default:
		return false
	}
}

// RunCheck performs one full sweep. Per-wallet failures are logged and the
// sweep continues.
func (k *KeeperService) RunCheck(ctx context.Context) (*SweepSummary, error) {
	start := k.now()
	summary := &SweepSummary{}

	wallets, err := k.actions.Wallets(ctx)
	if err != nil {
		return nil, err
	}

	for _, wallet := range wallets {
		summary.WalletsChecked++
		k.sweepWallet(ctx, wallet, summary)
	}

	summary.Duration = k.now().Sub(start)
	attempted := summary.ActionsExecuted + summary.ActionsFailed
	if attempted > 0 {
		summary.SuccessRate = float64(summary.ActionsExecuted) / float64(attempted)
	} else {
		summary.SuccessRate = 1
	}

	k.log.Info("keeper sweep finished",
		zap.Int("wallets", summary.WalletsChecked),
		zap.Int("checked", summary.ActionsChecked),
		zap.Int("executed", summary.ActionsExecuted),
		zap.Int("failed", summary.ActionsFailed),
		zap.Duration("duration", summary.Duration),
	)
	return summary, nil
}

func (k *KeeperService) sweepWallet(ctx context.Context, wallet string, summary *SweepSummary) {
	defer func() {
		if r := recover(); r != nil {
			k.log.Error("keeper wallet sweep panicked",
				zap.String("wallet", wallet),
				zap.Any("panic", r),
			)
		}
	}()

	lock := k.lockFor(wallet)
	lock.Lock()
	defer lock.Unlock()

	recurring := models.ActionTypeRecurring
	enabled := true
	actions, err := k.actions.GetActions(ctx, wallet, repositories.ActionFilter{
		ActionType: &recurring,
		Enabled:    &enabled,
	})
	if err != nil {
		k.log.Error("failed to list recurring actions", zap.String("wallet", wallet), zap.Error(err))
		return
	}

	now := k.now()
	for _, action := range actions {
		if action.Schedule == nil {
			continue
		}
		summary.ActionsChecked++
		if !IsDue(action, now) {
			continue
		}

		result := k.executor.ExecuteAction(ctx, action, wallet, k.signer)
		k.record(result)

		if result.Succeeded() {
			summary.ActionsExecuted++
			if err := k.actions.MarkUsed(ctx, wallet, action.ID); err != nil {
				k.log.Error("failed to mark action used",
					zap.String("wallet", wallet),
					zap.String("action_id", action.ID),
					zap.Error(err),
				)
			}
		} else if result.Status == models.ExecutionStatusFailed {
			summary.ActionsFailed++
			k.log.Warn("recurring action execution failed",
				zap.String("wallet", wallet),
				zap.String("action_id", action.ID),
				zap.Stringp("error", result.ErrorMessage),
			)
		}
	}
}

func (k *KeeperService) lockFor(wallet string) *sync.Mutex {
	lock, _ := k.walletLocks.LoadOrStore(wallet, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

func (k *KeeperService) record(result *models.ExecutionResult) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.execLog = append(k.execLog, ExecutionLogEntry{
		ActionID:      result.ActionID,
		WalletAddress: result.WalletAddress,
		Status:        result.Status,
		TicketID:      result.TicketID,
		Error:         result.ErrorMessage,
		Timestamp:     result.Timestamp,
	})
}

// ExecutionLog returns a copy of the in-memory audit log.
func (k *KeeperService) ExecutionLog() []ExecutionLogEntry {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]ExecutionLogEntry(nil), k.execLog...)
}
