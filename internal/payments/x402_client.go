package payments

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"go.uber.org/zap"
)

// FacilitatorClient talks to the x402 facilitator service. It builds the
// EIP-3009 TransferWithAuthorization typed data for the user to sign and
// submits the packed payment header for verify-and-settle.
type FacilitatorClient struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

func NewFacilitatorClient(baseURL string, log *zap.Logger) *FacilitatorClient {
	return &FacilitatorClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log,
	}
}

const validAfterSkewSeconds = 60

var transferWithAuthTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"TransferWithAuthorization": {
		{Name: "from", Type: "address"},
		{Name: "to", Type: "address"},
		{Name: "value", Type: "uint256"},
		{Name: "validAfter", Type: "uint256"},
		{Name: "validBefore", Type: "uint256"},
		{Name: "nonce", Type: "bytes32"},
	},
}

func (c *FacilitatorClient) CreateUnsignedPaymentPayload(ctx context.Context, req PaymentRequirements, amountAtomic *big.Int) (*apitypes.TypedData, map[string]any, error) {
	chainID, ok := chainIDForNetwork(req.Network)
	if !ok {
		return nil, nil, fmt.Errorf("no chain id for network %q", req.Network)
	}

	if req.Payer == "" {
		return nil, nil, fmt.Errorf("payer address is required")
	}

	now := time.Now().Unix()
	// validAfter trails the wall clock so mild skew between us, the signer
	// and the token contract cannot invalidate a fresh authorization.
	validAfter := now - validAfterSkewSeconds
	validBefore := now + int64(req.MaxTimeoutSeconds)

	// Random 32-byte authorization nonce; the token contract enforces
	// replay protection per (from, nonce).
	var nonceBytes [32]byte
	if _, err := rand.Read(nonceBytes[:]); err != nil {
		return nil, nil, err
	}
	nonce := hexutil.Encode(nonceBytes[:])

	typedData := &apitypes.TypedData{
		Types:       transferWithAuthTypes,
		PrimaryType: "TransferWithAuthorization",
		Domain: apitypes.TypedDataDomain{
			Name:              "USD Coin",
			Version:           "2",
			ChainId:           math.NewHexOrDecimal256(chainID),
			VerifyingContract: req.Asset,
		},
		Message: apitypes.TypedDataMessage{
			"from":        common.HexToAddress(req.Payer).Hex(),
			"to":          req.PayTo,
			"value":       amountAtomic.String(),
			"validAfter":  fmt.Sprintf("%d", validAfter),
			"validBefore": fmt.Sprintf("%d", validBefore),
			"nonce":       nonce,
		},
	}

	meta := map[string]any{
		"nonce":        nonce,
		"valid_after":  validAfter,
		"valid_before": validBefore,
	}
	return typedData, meta, nil
}

// paymentHeader is the opaque envelope the facilitator settles against,
// transmitted base64-encoded.
type paymentHeader struct {
	X402Version int            `json:"x402Version"`
	Scheme      string         `json:"scheme"`
	Network     string         `json:"network"`
	Payload     headerPayload  `json:"payload"`
	Extra       map[string]any `json:"extra,omitempty"`
}

type headerPayload struct {
	Signature     string                    `json:"signature"`
	Authorization apitypes.TypedDataMessage `json:"authorization"`
}

func (c *FacilitatorClient) ConstructPaymentHeader(ctx context.Context, signature string, userAddress common.Address, metadata map[string]any, message apitypes.TypedDataMessage) (string, error) {
	if signature == "" {
		return "", fmt.Errorf("signature is required")
	}

	authorization := apitypes.TypedDataMessage{"from": userAddress.Hex()}
	for k, v := range message {
		authorization[k] = v
	}

	scheme, _ := metadata["scheme"].(string)
	network, _ := metadata["network"].(string)
	header := paymentHeader{
		X402Version: 1,
		Scheme:      scheme,
		Network:     network,
		Payload: headerPayload{
			Signature:     signature,
			Authorization: authorization,
		},
	}

	data, err := json.Marshal(header)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

type settleRequest struct {
	PaymentHeader       string              `json:"payment_header"`
	PaymentRequirements PaymentRequirements `json:"payment_requirements"`
}

func (c *FacilitatorClient) SettlePayment(ctx context.Context, header string, req PaymentRequirements) (*SettleResult, error) {
	body, err := json.Marshal(settleRequest{PaymentHeader: header, PaymentRequirements: req})
	if err != nil {
		return nil, err
	}

	url := c.baseURL + "/settle"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("facilitator unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("facilitator returned %d: %s", resp.StatusCode, string(raw))
	}

	var result SettleResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

func chainIDForNetwork(network string) (int64, bool) {
	for _, r := range routingTable {
		if r.Network == network {
			return r.ChainID, true
		}
	}
	return 0, false
}
