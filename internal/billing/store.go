package billing

import (
	"context"
	"errors"
)

var (
	ErrNotFound     = errors.New("bill not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Store is a keyed bill store with atomic read-modify-write per bill.
// Implementations must serialize ApplyPayment calls for the same id so that
// concurrent payment confirmations never lose an update, and must treat a
// transaction hash already applied to a bill as a no-op.
type Store interface {
	Create(ctx context.Context, bill *Bill) error
	Get(ctx context.Context, id string) (*Bill, error)
	List(ctx context.Context) ([]*Bill, error)
	SetRemaining(ctx context.Context, id, remaining string) (*Bill, error)
	ApplyPayment(ctx context.Context, id, paid, txHash string) (*Bill, error)
}
