package route

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ExecutionError is a failure while executing a route, naming the chain and
// hop at which it occurred. Transactions broadcast before the failure are
// already on-chain and cannot be rolled back.
type ExecutionError struct {
	ChainID string
	Hop     int
	TxHash  string
	Err     error
}

func (e *ExecutionError) Error() string {
	if e.TxHash != "" {
		return fmt.Sprintf("executing hop %d on chain %s (tx %s): %v", e.Hop, e.ChainID, e.TxHash, e.Err)
	}
	return fmt.Sprintf("executing hop %d on chain %s: %v", e.Hop, e.ChainID, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Executor runs a computed route hop by hop: obtain the unsigned transactions
// from the routing service, then for each one sign, broadcast and await final
// confirmation before moving on. Hops are strictly sequential.
type Executor struct {
	client       *Client
	log          *slog.Logger
	pollInterval time.Duration
}

func NewExecutor(client *Client, log *slog.Logger) *Executor {
	return &Executor{client: client, log: log, pollInterval: 2 * time.Second}
}

// Execute runs the route to completion. addrs must cover every chain in
// route.RequiredChainAddresses; signerFor supplies a signer per chain.
// The final hop's transaction hash is returned on success.
func (ex *Executor) Execute(ctx context.Context, r *Route, addrs map[string]string, signerFor SignerProvider, hooks Hooks) (string, error) {
	ordered := make([]ChainAddress, 0, len(r.RequiredChainAddresses))
	for _, chainID := range r.RequiredChainAddresses {
		addr, ok := addrs[chainID]
		if !ok {
			return "", fmt.Errorf("no address resolved for chain %s", chainID)
		}
		ordered = append(ordered, ChainAddress{ChainID: chainID, Address: addr})
	}

	txs, err := ex.client.Msgs(ctx, r, ordered)
	if err != nil {
		return "", fmt.Errorf("building route transactions: %w", err)
	}

	var lastHash string
	for i, utx := range txs {
		if err := ctx.Err(); err != nil {
			return "", &ExecutionError{ChainID: utx.ChainID, Hop: i, Err: err}
		}

		signer, err := signerFor(ctx, utx.ChainID)
		if err != nil {
			return "", &ExecutionError{ChainID: utx.ChainID, Hop: i, Err: err}
		}
		signed, err := signer.Sign(ctx, utx.Tx)
		if err != nil {
			return "", &ExecutionError{ChainID: utx.ChainID, Hop: i, Err: fmt.Errorf("signing: %w", err)}
		}

		hash, err := ex.client.SubmitTx(ctx, utx.ChainID, signed)
		if err != nil {
			return "", &ExecutionError{ChainID: utx.ChainID, Hop: i, Err: fmt.Errorf("broadcasting: %w", err)}
		}
		ex.log.Info("transaction broadcast", "chain", utx.ChainID, "tx", hash, "hop", i)
		if hooks.OnTransactionBroadcast != nil {
			hooks.OnTransactionBroadcast(TxBroadcast{TxHash: hash, ChainID: utx.ChainID})
		}

		status, err := ex.awaitFinal(ctx, utx.ChainID, hash)
		if err != nil {
			return "", &ExecutionError{ChainID: utx.ChainID, Hop: i, TxHash: hash, Err: err}
		}
		ex.log.Info("transaction completed", "chain", utx.ChainID, "tx", hash, "state", status.State)
		if hooks.OnTransactionCompleted != nil {
			hooks.OnTransactionCompleted(TxComplete{ChainID: utx.ChainID, TxHash: hash, Status: status.State})
		}
		lastHash = hash
	}
	return lastHash, nil
}

func (ex *Executor) awaitFinal(ctx context.Context, chainID, txHash string) (*TxStatus, error) {
	ticker := time.NewTicker(ex.pollInterval)
	defer ticker.Stop()

	for {
		status, err := ex.client.TxStatus(ctx, chainID, txHash)
		if err != nil {
			return nil, err
		}
		switch status.State {
		case StateCompletedSuccess:
			return status, nil
		case StateCompletedError:
			if status.Error != "" {
				return nil, fmt.Errorf("transaction failed: %s", status.Error)
			}
			return nil, fmt.Errorf("transaction failed on chain %s", chainID)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
