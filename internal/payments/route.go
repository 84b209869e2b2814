package payments

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Protocol is the closed set of supported payment protocols.
type Protocol string

const (
	ProtocolX402 Protocol = "x402" // gasless signed-authorization scheme
	ProtocolMNEE Protocol = "mnee" // allowance/relayer scheme
)

// Supported networks
const (
	NetworkCronos        = "cronos"
	NetworkCronosTestnet = "cronos-testnet"
	NetworkEthereum      = "ethereum"
)

// Asset is the settlement token behind a route.
type Asset struct {
	Symbol   string `json:"symbol"`
	Contract string `json:"contract"`
	Decimals int32  `json:"decimals"`
}

// Route is the resolved mapping of (network, token) to a protocol and asset.
// Derived from the static table below, never persisted.
type Route struct {
	Network  string   `json:"network"`
	ChainID  int64    `json:"chain_id"`
	Token    string   `json:"token"`
	Protocol Protocol `json:"protocol"`
	Asset    Asset    `json:"asset"`
}

type routeKey struct {
	network string
	token   string
}

var routingTable = map[routeKey]Route{
	{NetworkCronos, "USDC"}: {
		Network:  NetworkCronos,
		ChainID:  25,
		Token:    "USDC",
		Protocol: ProtocolX402,
		Asset:    Asset{Symbol: "USDC", Contract: "0xc21223249CA28397B4B6541dfFaEcC539BfF0c59", Decimals: 6},
	},
	{NetworkCronosTestnet, "USDC"}: {
		Network:  NetworkCronosTestnet,
		ChainID:  338,
		Token:    "USDC",
		Protocol: ProtocolX402,
		Asset:    Asset{Symbol: "USDC", Contract: "0x6a3173618859C7cd40fAF6921b5E9eB6A76f1fD1", Decimals: 6},
	},
	{NetworkEthereum, "MNEE"}: {
		Network:  NetworkEthereum,
		ChainID:  1,
		Token:    "MNEE",
		Protocol: ProtocolMNEE,
		Asset:    Asset{Symbol: "MNEE", Contract: "0x8cCE22c4AFeCBcF22baf6D38dF5EbF89b1BBe444", Decimals: 5},
	},
}

// GetRoute resolves a (network, token) pair against the static table.
// Token matching is case-insensitive.
func GetRoute(network, token string) (Route, error) {
	r, ok := routingTable[routeKey{network, strings.ToUpper(token)}]
	if !ok {
		return Route{}, &RoutingError{Network: network, Token: token}
	}
	return r, nil
}

// NetworkForChainID maps a chain id back to its network name.
func NetworkForChainID(chainID int64) (string, bool) {
	for _, r := range routingTable {
		if r.ChainID == chainID {
			return r.Network, true
		}
	}
	return "", false
}

// HasRouteForChain reports whether any route settles on the given chain.
func HasRouteForChain(chainID int64) bool {
	_, ok := NetworkForChainID(chainID)
	return ok
}

// ToAtomic converts a decimal amount string to the asset's smallest unit
// (amount * 10^decimals). Sub-atomic precision is rejected rather than
// silently truncated.
func ToAtomic(amount string, decimals int32) (*big.Int, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, err
	}
	shifted := d.Shift(decimals)
	if !shifted.IsInteger() {
		return nil, &PreparationError{Protocol: "atomic", Err: errSubAtomic(amount, decimals)}
	}
	return shifted.BigInt(), nil
}

// FromAtomic converts an atomic amount back to its decimal representation.
func FromAtomic(atomic *big.Int, decimals int32) string {
	return decimal.NewFromBigInt(atomic, -decimals).String()
}

type subAtomicError struct {
	amount   string
	decimals int32
}

func errSubAtomic(amount string, decimals int32) error {
	return &subAtomicError{amount: amount, decimals: decimals}
}

func (e *subAtomicError) Error() string {
	return "amount " + e.amount + " has more precision than the asset supports (" + decimal.NewFromInt32(e.decimals).String() + " decimals)"
}
