package dto

type AuthResponse struct {
	Token         string `json:"token"`
	WalletAddress string `json:"wallet_address"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

// WebhookEnvelope is the response shape for all webhook endpoints. Exactly
// one of Result and Error is set.
type WebhookEnvelope struct {
	Success   bool   `json:"success"`
	RequestID string `json:"request_id"`
	Message   string `json:"message,omitempty"`
	Result    any    `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
}
