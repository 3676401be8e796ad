// Package payment drives a single payment attempt against a bill: route
// calculation through the external routing service, per-chain signer
// resolution, route execution, and finally recording the paid amount in the
// bill ledger.
package payment

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fissionlabs/fissionpay/internal/amount"
	"github.com/fissionlabs/fissionpay/internal/billing"
	"github.com/fissionlabs/fissionpay/internal/chain"
	"github.com/fissionlabs/fissionpay/internal/route"
	"github.com/fissionlabs/fissionpay/internal/wallet"
)

// Status of a payment attempt. Error is retry-eligible: the caller re-enters
// the failed phase; nothing retries automatically.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRouting   Status = "routing"
	StatusExecuting Status = "executing"
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
)

// MissingSignerError reports that no connected wallet can produce an address
// for a chain the route requires.
type MissingSignerError struct {
	ChainID string
	Family  chain.Family
}

func (e *MissingSignerError) Error() string {
	if e.Family == chain.FamilyUnknown {
		return fmt.Sprintf("no wallet can sign for unrecognized chain %s", e.ChainID)
	}
	return fmt.Sprintf("no connected %s wallet can sign for chain %s: connect a %s wallet and retry",
		e.Family, e.ChainID, e.Family)
}

// Router computes cross-chain routes.
type Router interface {
	Route(ctx context.Context, req route.RouteRequest) (*route.Route, error)
}

// RouteExecutor runs a computed route and returns the final hop's tx hash.
type RouteExecutor interface {
	Execute(ctx context.Context, r *route.Route, addrs map[string]string, signerFor route.SignerProvider, hooks route.Hooks) (string, error)
}

// Source identifies the asset the payer spends.
type Source struct {
	ChainID string
	Denom   string
}

// Receipt is the outcome of a completed payment attempt.
type Receipt struct {
	Bill       *billing.Bill
	AmountPaid string // in the bill's accounting units
	TxHash     string // final hop transaction
	Broadcasts []route.TxBroadcast
}

// Orchestrator runs one payment attempt at a time. Concurrent attempts
// against the same bill use separate orchestrators and compete only through
// the ledger's serialized decrement.
type Orchestrator struct {
	router    Router
	executor  RouteExecutor
	ledger    *billing.Ledger
	registry  *chain.Registry
	ring      *wallet.Ring
	destDenom string
	log       *slog.Logger

	mu         sync.Mutex
	status     Status
	broadcasts []route.TxBroadcast
}

func New(router Router, executor RouteExecutor, ledger *billing.Ledger, registry *chain.Registry, ring *wallet.Ring, destDenom string, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		router:    router,
		executor:  executor,
		ledger:    ledger,
		registry:  registry,
		ring:      ring,
		destDenom: destDenom,
		log:       log,
		status:    StatusIdle,
	}
}

func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// Broadcasts lists the transactions already broadcast during the current or
// last attempt. After a mid-execution failure or cancellation these are
// on-chain and irreversible; callers must surface them, not discard them.
func (o *Orchestrator) Broadcasts() []route.TxBroadcast {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]route.TxBroadcast, len(o.broadcasts))
	copy(out, o.broadcasts)
	return out
}

func (o *Orchestrator) transition(from []Status, to Status) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, s := range from {
		if o.status == s {
			o.status = to
			return nil
		}
	}
	return fmt.Errorf("payment attempt is %s, cannot enter %s", o.status, to)
}

func (o *Orchestrator) setStatus(s Status) {
	o.mu.Lock()
	o.status = s
	o.mu.Unlock()
}

// PaymentAmount computes the fixed-point sub-amount for a fractional payment
// of the bill's remaining balance.
func (o *Orchestrator) PaymentAmount(bill *billing.Bill, fraction float64) (string, error) {
	amt, err := amount.PercentageOf(bill.RemainingAmount, fraction)
	if err != nil {
		return "", fmt.Errorf("%w: %v", billing.ErrInvalidInput, err)
	}
	return amt, nil
}

// CalculateRoute queries the routing service for a path from the payer's
// source asset to the bill's destination (USDC on the merchant chain).
// On success the attempt returns to idle, carrying the route for the caller
// to confirm; on failure it enters the error state.
func (o *Orchestrator) CalculateRoute(ctx context.Context, bill *billing.Bill, src Source, amountIn string) (*route.Route, error) {
	if !amount.ValidFixedPoint(amountIn) || amount.IsZero(amountIn) {
		return nil, fmt.Errorf("%w: payment amount %q", billing.ErrInvalidInput, amountIn)
	}
	if src.ChainID == "" || src.Denom == "" {
		return nil, fmt.Errorf("%w: source chain and asset are required", billing.ErrInvalidInput)
	}
	if err := o.transition([]Status{StatusIdle, StatusError}, StatusRouting); err != nil {
		return nil, err
	}

	r, err := o.router.Route(ctx, route.RouteRequest{
		SourceAssetDenom:   src.Denom,
		SourceAssetChainID: src.ChainID,
		DestAssetDenom:     o.destDenom,
		DestAssetChainID:   bill.MerchantChainID,
		AmountIn:           amountIn,
		SmartRelay:         true,
	})
	if err != nil {
		o.setStatus(StatusError)
		return nil, fmt.Errorf("calculating route for bill %s: %w", bill.ID, err)
	}

	o.setStatus(StatusIdle)
	o.log.Info("route calculated",
		"bill", bill.ID, "source", src.ChainID, "dest", bill.MerchantChainID,
		"amountIn", amountIn, "amountOut", r.AmountOut, "chains", r.RequiredChainAddresses)
	return r, nil
}

// ResolveAddresses produces the chainId→address mapping for every chain the
// route requires. The chain's family is resolved once through the registry
// and only wallets of that family are consulted; an address is never
// substituted from an unrelated chain.
func (o *Orchestrator) ResolveAddresses(ctx context.Context, r *route.Route) (map[string]string, error) {
	addrs := make(map[string]string, len(r.RequiredChainAddresses))
	for _, chainID := range r.RequiredChainAddresses {
		family := o.registry.FamilyOf(chainID)
		sessions := o.ring.ByFamily(family)
		if family == chain.FamilyUnknown || len(sessions) == 0 {
			return nil, &MissingSignerError{ChainID: chainID, Family: family}
		}

		var resolved string
		for _, s := range sessions {
			addr, err := s.Address(ctx, chainID)
			if err != nil {
				o.log.Debug("wallet cannot supply address", "chain", chainID, "err", err)
				continue
			}
			if !chain.ValidAddress(family, addr) {
				continue
			}
			resolved = addr
			break
		}
		if resolved == "" {
			return nil, &MissingSignerError{ChainID: chainID, Family: family}
		}
		addrs[chainID] = resolved
	}
	return addrs, nil
}

// Execute runs the route and, once every hop has reached final confirmation,
// records amountPaid against the bill using the final transaction hash as the
// idempotency token. A mid-route failure leaves the ledger untouched: partial
// execution earns no partial credit.
func (o *Orchestrator) Execute(ctx context.Context, bill *billing.Bill, r *route.Route, addrs map[string]string, amountPaid string) (*Receipt, error) {
	if err := o.transition([]Status{StatusIdle, StatusError}, StatusExecuting); err != nil {
		return nil, err
	}
	o.mu.Lock()
	o.broadcasts = nil
	o.mu.Unlock()

	hooks := route.Hooks{
		OnTransactionBroadcast: func(b route.TxBroadcast) {
			o.mu.Lock()
			o.broadcasts = append(o.broadcasts, b)
			o.mu.Unlock()
			o.log.Info("hop broadcast", "bill", bill.ID, "chain", b.ChainID, "tx", b.TxHash)
		},
		OnTransactionCompleted: func(c route.TxComplete) {
			o.log.Info("hop completed", "bill", bill.ID, "chain", c.ChainID, "tx", c.TxHash, "status", c.Status)
		},
	}

	finalTx, err := o.executor.Execute(ctx, r, addrs, o.signerFor, hooks)
	if err != nil {
		o.setStatus(StatusError)
		return nil, fmt.Errorf("executing route for bill %s: %w", bill.ID, err)
	}

	updated, err := o.ledger.ApplyPayment(ctx, bill.ID, amountPaid, finalTx)
	if err != nil {
		o.setStatus(StatusError)
		return nil, fmt.Errorf("route completed (tx %s) but recording payment failed: %w", finalTx, err)
	}

	o.setStatus(StatusSuccess)
	o.log.Info("payment succeeded",
		"bill", bill.ID, "amount", amountPaid, "tx", finalTx, "remaining", updated.RemainingAmount)
	return &Receipt{
		Bill:       updated,
		AmountPaid: amountPaid,
		TxHash:     finalTx,
		Broadcasts: o.Broadcasts(),
	}, nil
}

func (o *Orchestrator) signerFor(ctx context.Context, chainID string) (route.Signer, error) {
	family := o.registry.FamilyOf(chainID)
	for _, s := range o.ring.ByFamily(family) {
		signer, err := s.Signer(ctx, chainID)
		if err != nil {
			continue
		}
		return signer, nil
	}
	return nil, &MissingSignerError{ChainID: chainID, Family: family}
}
