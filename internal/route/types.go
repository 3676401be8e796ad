// Package route talks to the external cross-chain routing service: computing
// a route for a source/destination asset pair and executing its hops with
// caller-supplied signers.
package route

import (
	"context"
	"encoding/json"
)

// RouteRequest is the route computation call.
type RouteRequest struct {
	SourceAssetDenom   string `json:"sourceAssetDenom"`
	SourceAssetChainID string `json:"sourceAssetChainId"`
	DestAssetDenom     string `json:"destAssetDenom"`
	DestAssetChainID   string `json:"destAssetChainId"`
	AmountIn           string `json:"amountIn"`
	SmartRelay         bool   `json:"smartRelay"`
}

// Hop is one operation of a route: a transfer, swap or bridge step on a
// single chain.
type Hop struct {
	ChainID  string `json:"chainId"`
	Type     string `json:"type"`
	DenomIn  string `json:"denomIn"`
	DenomOut string `json:"denomOut"`
}

// Route is the plan returned by the routing service. The core treats it as
// opaque apart from the fields below; it is never persisted.
type Route struct {
	SourceAssetDenom       string   `json:"sourceAssetDenom"`
	SourceAssetChainID     string   `json:"sourceAssetChainId"`
	DestAssetDenom         string   `json:"destAssetDenom"`
	DestAssetChainID       string   `json:"destAssetChainId"`
	AmountIn               string   `json:"amountIn"`
	AmountOut              string   `json:"amountOut"`
	RequiredChainAddresses []string `json:"requiredChainAddresses"`
	Operations             []Hop    `json:"operations"`
}

// ChainAddress pairs a chain with the payer's address on it, in the order
// the route requires.
type ChainAddress struct {
	ChainID string `json:"chainId"`
	Address string `json:"address"`
}

// UnsignedTx is one transaction the payer must sign, produced by the routing
// service from a route plus the resolved addresses.
type UnsignedTx struct {
	ChainID string          `json:"chainId"`
	Tx      json.RawMessage `json:"tx"`
}

// Transaction states reported by the routing service.
const (
	StatePending          = "STATE_PENDING"
	StateCompletedSuccess = "STATE_COMPLETED_SUCCESS"
	StateCompletedError   = "STATE_COMPLETED_ERROR"
)

// TxStatus is the confirmation state of one submitted transaction.
type TxStatus struct {
	ChainID string `json:"chainId"`
	TxHash  string `json:"txHash"`
	State   string `json:"state"`
	Error   string `json:"error,omitempty"`
}

// TxBroadcast notifies that a hop transaction has been submitted.
type TxBroadcast struct {
	TxHash  string `json:"txHash"`
	ChainID string `json:"chainId"`
}

// TxComplete notifies that a hop transaction reached final confirmation.
type TxComplete struct {
	ChainID string `json:"chainId"`
	TxHash  string `json:"txHash"`
	Status  string `json:"status"`
}

// Hooks surface execution progress to the caller.
type Hooks struct {
	OnTransactionBroadcast func(TxBroadcast)
	OnTransactionCompleted func(TxComplete)
}

// Signer authorizes transactions for one chain on behalf of the payer.
type Signer interface {
	Address() string
	Sign(ctx context.Context, tx []byte) ([]byte, error)
}

// SignerProvider resolves a signer for a chain at execution time.
type SignerProvider func(ctx context.Context, chainID string) (Signer, error)
