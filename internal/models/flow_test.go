package models

import (
	"strings"
	"testing"
)

func TestClassifyStepType(t *testing.T) {
	tests := []struct {
		name     string
		callData string
		expected string
	}{
		{"erc20 approve", "0x095ea7b3" + strings.Repeat("00", 64), StepTypeApproval},
		{"v2 swapExactTokensForTokens", "0x38ed1739" + strings.Repeat("00", 160), StepTypeSwap},
		{"v2 swapExactETHForTokens", "0x7ff36ab5" + strings.Repeat("00", 128), StepTypeSwap},
		{"v2 swapExactTokensForETH", "0x18cbafe5" + strings.Repeat("00", 160), StepTypeSwap},
		{"v3 exactInputSingle", "0x04e45aaf" + strings.Repeat("00", 256), StepTypeSwap},
		{"v3 exactInput", "0xc04b8d59" + strings.Repeat("00", 256), StepTypeSwap},
		{"v3 multicall", "0x5ae401dc" + strings.Repeat("00", 96), StepTypeSwap},
		{"stargate swap", "0x9fbf10fc" + strings.Repeat("00", 320), StepTypeBridge},

		// Unknown selector, long calldata assumed to be a swap
		{"unknown selector long", "0xdeadbeef" + strings.Repeat("00", 96), StepTypeSwap},
		// Unknown selector, short calldata
		{"unknown selector short", "0xdeadbeef" + strings.Repeat("00", 32), StepTypeOther},
		// Selector match wins regardless of length
		{"approve without args", "0x095ea7b3", StepTypeApproval},

		{"empty", "", StepTypeOther},
		{"bare 0x", "0x", StepTypeOther},
		{"not hex", "hello", StepTypeOther},
		{"too short", "0x0102", StepTypeOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyStepType(tt.callData)
			if got != tt.expected {
				t.Errorf("ClassifyStepType(%q) = %q, want %q", tt.callData, got, tt.expected)
			}
		})
	}
}

func TestFlowIsTerminal(t *testing.T) {
	tests := []struct {
		status   string
		terminal bool
	}{
		{FlowStatusPending, false},
		{FlowStatusInProgress, false},
		{FlowStatusCompleted, true},
		{FlowStatusFailed, true},
		{FlowStatusCancelled, true},
	}
	for _, tt := range tests {
		f := &TransactionFlow{Status: tt.status}
		if f.IsTerminal() != tt.terminal {
			t.Errorf("IsTerminal() for %q = %v, want %v", tt.status, f.IsTerminal(), tt.terminal)
		}
	}
}

func TestPaymentActionClone(t *testing.T) {
	day := 3
	action := &PaymentAction{
		ID:         "a1",
		ActionType: ActionTypeRecurring,
		Amount:     "10",
		Schedule:   &Schedule{Frequency: FrequencyWeekly, DayOfWeek: &day},
		Triggers:   []string{"payday"},
	}

	clone := action.Clone()
	clone.Amount = "99"
	*clone.Schedule.DayOfWeek = 5
	clone.Triggers[0] = "changed"

	if action.Amount != "10" {
		t.Errorf("clone mutated original amount: %q", action.Amount)
	}
	if *action.Schedule.DayOfWeek != 3 {
		t.Errorf("clone shares schedule with original, day_of_week = %d", *action.Schedule.DayOfWeek)
	}
	if action.Triggers[0] != "payday" {
		t.Errorf("clone shares triggers with original: %v", action.Triggers)
	}
}
