package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// RelayerClient talks to the mnee relayer service, which custodies the
// token-spend authority granted by on-chain allowances.
type RelayerClient struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

func NewRelayerClient(baseURL string, log *zap.Logger) *RelayerClient {
	return &RelayerClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log,
	}
}

func (c *RelayerClient) CheckAllowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	url := fmt.Sprintf("%s/allowance?owner=%s&spender=%s", c.baseURL, owner.Hex(), spender.Hex())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("relayer unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("relayer returned %d: %s", resp.StatusCode, string(raw))
	}

	var result struct {
		Allowance string `json:"allowance"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	allowance, ok := new(big.Int).SetString(result.Allowance, 10)
	if !ok {
		return nil, fmt.Errorf("relayer returned invalid allowance %q", result.Allowance)
	}
	return allowance, nil
}

func (c *RelayerClient) RelayerAddress(ctx context.Context) (common.Address, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/address", nil)
	if err != nil {
		return common.Address{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return common.Address{}, fmt.Errorf("relayer unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return common.Address{}, fmt.Errorf("relayer returned %d: %s", resp.StatusCode, string(raw))
	}

	var result struct {
		Address string `json:"address"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return common.Address{}, err
	}
	if !common.IsHexAddress(result.Address) {
		return common.Address{}, fmt.Errorf("relayer returned invalid address %q", result.Address)
	}
	return common.HexToAddress(result.Address), nil
}

type relayedTransferRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"` // atomic units
}

func (c *RelayerClient) ExecuteRelayedTransfer(ctx context.Context, user, recipient common.Address, amountAtomic *big.Int) (string, error) {
	body, err := json.Marshal(relayedTransferRequest{
		From:   user.Hex(),
		To:     recipient.Hex(),
		Amount: amountAtomic.String(),
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transfer", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("relayer unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("relayer returned %d: %s", resp.StatusCode, string(raw))
	}

	var result struct {
		TxHash string `json:"tx_hash"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if result.TxHash == "" {
		return "", fmt.Errorf("relayer returned empty tx hash")
	}

	c.log.Debug("relayed transfer submitted",
		zap.String("from", user.Hex()),
		zap.String("tx_hash", result.TxHash),
	)
	return result.TxHash, nil
}
