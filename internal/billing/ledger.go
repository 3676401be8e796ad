package billing

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"time"

	"github.com/fissionlabs/fissionpay/internal/amount"
	"github.com/fissionlabs/fissionpay/internal/chain"
)

// Ledger is the authoritative bill service and the only component allowed to
// mutate a bill's remaining balance. Overpayment clamps the balance at zero;
// a payment whose transaction hash was already applied is a no-op.
type Ledger struct {
	store    Store
	registry *chain.Registry
	log      *slog.Logger
}

func NewLedger(store Store, registry *chain.Registry, log *slog.Logger) *Ledger {
	return &Ledger{store: store, registry: registry, log: log}
}

func (l *Ledger) Create(ctx context.Context, merchantAddress, merchantChainID, totalAmount string) (*Bill, error) {
	if merchantAddress == "" || merchantChainID == "" || totalAmount == "" {
		return nil, fmt.Errorf("%w: missing required fields", ErrInvalidInput)
	}
	if !amount.ValidFixedPoint(totalAmount) {
		return nil, fmt.Errorf("%w: totalAmount %q is not a fixed-point amount", ErrInvalidInput, totalAmount)
	}
	if fam := l.registry.FamilyOf(merchantChainID); fam != chain.FamilyUnknown {
		if !l.registry.ValidAddressForChain(merchantChainID, merchantAddress) {
			return nil, fmt.Errorf("%w: address %q is not valid on chain %s", ErrInvalidInput, merchantAddress, merchantChainID)
		}
	}

	bill := &Bill{
		ID:              newBillID(),
		MerchantAddress: merchantAddress,
		MerchantChainID: merchantChainID,
		TotalAmount:     totalAmount,
		RemainingAmount: totalAmount,
		CreatedAt:       time.Now().UTC(),
	}
	if err := l.store.Create(ctx, bill); err != nil {
		return nil, fmt.Errorf("storing bill: %w", err)
	}
	l.log.Info("bill created",
		"bill", bill.ID, "chain", merchantChainID, "total", totalAmount)
	return bill, nil
}

func (l *Ledger) Get(ctx context.Context, id string) (*Bill, error) {
	return l.store.Get(ctx, id)
}

func (l *Ledger) List(ctx context.Context) ([]*Bill, error) {
	return l.store.List(ctx)
}

// Override replaces the remaining balance directly. Admin/test path only;
// payments go through ApplyPayment.
func (l *Ledger) Override(ctx context.Context, id, remaining string) (*Bill, error) {
	if !amount.ValidFixedPoint(remaining) {
		return nil, fmt.Errorf("%w: remainingAmount %q is not a fixed-point amount", ErrInvalidInput, remaining)
	}
	return l.store.SetRemaining(ctx, id, remaining)
}

// ApplyPayment decrements the bill's remaining balance by paid, clamped at
// zero. txHash is the idempotency token: replaying a confirmation with the
// same hash leaves the balance untouched.
func (l *Ledger) ApplyPayment(ctx context.Context, id, paid, txHash string) (*Bill, error) {
	if !amount.ValidFixedPoint(paid) {
		return nil, fmt.Errorf("%w: paymentAmount %q is not a fixed-point amount", ErrInvalidInput, paid)
	}
	bill, err := l.store.ApplyPayment(ctx, id, paid, txHash)
	if err != nil {
		return nil, err
	}
	l.log.Info("payment applied",
		"bill", id, "amount", paid, "tx", txHash, "remaining", bill.RemainingAmount)
	return bill, nil
}

func newBillID() string {
	b := make([]byte, 18)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
