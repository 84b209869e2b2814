package dto

// WalletAuthRequest carries a personal_sign login. The message must contain
// the nonce previously issued for this wallet.
type WalletAuthRequest struct {
	WalletAddress string `json:"wallet_address"`
	Message       string `json:"message"`
	Signature     string `json:"signature"`
}

type CreateFlowRequest struct {
	ChainID       int64          `json:"chain_id"`
	OperationType string         `json:"operation_type"`
	Steps         []FlowStepItem `json:"steps"`
}

type FlowStepItem struct {
	Target   string `json:"target"`
	CallData string `json:"call_data"`
	Value    string `json:"value"`
}

type CompleteStepRequest struct {
	TxHash  string `json:"tx_hash"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type UpdateTransactionRequest struct {
	Status          string  `json:"status"`
	TransactionHash *string `json:"transaction_hash,omitempty"`
}
