package models

import (
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
)

// Flow statuses
const (
	FlowStatusPending    = "pending"
	FlowStatusInProgress = "in_progress"
	FlowStatusCompleted  = "completed"
	FlowStatusFailed     = "failed"
	FlowStatusCancelled  = "cancelled"
)

// Step types
const (
	StepTypeApproval = "approval"
	StepTypeSwap     = "swap"
	StepTypeBridge   = "bridge"
	StepTypeOther    = "other"
)

// Step statuses
const (
	StepStatusPending   = "pending"
	StepStatusCompleted = "completed"
	StepStatusFailed    = "failed"
)

// Known 4-byte function selectors -> step type. Extend here when a new
// router or bridge contract enters the product.
var stepTypeBySelector = map[string]string{
	"0x095ea7b3": StepTypeApproval, // approve(address,uint256)
	"0x38ed1739": StepTypeSwap,     // swapExactTokensForTokens
	"0x7ff36ab5": StepTypeSwap,     // swapExactETHForTokens
	"0x18cbafe5": StepTypeSwap,     // swapExactTokensForETH
	"0x04e45aaf": StepTypeSwap,     // exactInputSingle
	"0xc04b8d59": StepTypeSwap,     // exactInput
	"0x5ae401dc": StepTypeSwap,     // multicall(uint256,bytes[])
	"0x9fbf10fc": StepTypeBridge,   // stargate swap
}

// Calldata longer than selector + two ABI words is assumed to be a swap-like
// call against an unknown router.
const substantialCalldataBytes = 4 + 2*32

// ClassifyStepType maps a hex-encoded calldata payload to a step type by its
// leading function selector.
func ClassifyStepType(callData string) string {
	data, err := hexutil.Decode(callData)
	if err != nil || len(data) < 4 {
		return StepTypeOther
	}
	selector := hexutil.Encode(data[:4])
	if t, ok := stepTypeBySelector[selector]; ok {
		return t
	}
	if len(data) > substantialCalldataBytes {
		return StepTypeSwap
	}
	return StepTypeOther
}

// TransactionStep is one on-chain call inside a flow.
type TransactionStep struct {
	StepNumber int     `json:"step_number"`
	StepType   string  `json:"step_type"`
	Target     string  `json:"target"`
	CallData   string  `json:"call_data"`
	Value      string  `json:"value"`
	Status     string  `json:"status"`
	TxHash     *string `json:"tx_hash,omitempty"`
	Error      *string `json:"error,omitempty"`
}

// TransactionFlow is an ordered, cursor-tracked sequence of on-chain steps
// for one operation (e.g. approve then swap). At most one active flow exists
// per wallet.
type TransactionFlow struct {
	FlowID        uuid.UUID         `json:"flow_id"`
	WalletAddress string            `json:"wallet_address"`
	ChainID       int64             `json:"chain_id"`
	OperationType string            `json:"operation_type"`
	Steps         []TransactionStep `json:"steps"`
	CurrentStep   int               `json:"current_step"`
	Status        string            `json:"status"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Clone returns a deep copy safe to hand to callers while the original
// keeps mutating under the flow tracker's lock.
func (f *TransactionFlow) Clone() *TransactionFlow {
	cp := *f
	cp.Steps = make([]TransactionStep, len(f.Steps))
	for i, step := range f.Steps {
		if step.TxHash != nil {
			h := *step.TxHash
			step.TxHash = &h
		}
		if step.Error != nil {
			e := *step.Error
			step.Error = &e
		}
		cp.Steps[i] = step
	}
	return &cp
}

func (f *TransactionFlow) IsTerminal() bool {
	switch f.Status {
	case FlowStatusCompleted, FlowStatusFailed, FlowStatusCancelled:
		return true
	default:
		return false
	}
}
