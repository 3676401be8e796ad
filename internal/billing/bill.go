package billing

import (
	"time"

	"github.com/fissionlabs/fissionpay/internal/amount"
)

// State of a bill, derived from its remaining balance. Paid is terminal.
type State string

const (
	StateOpen State = "open"
	StatePaid State = "paid"
)

// Bill is an amount owed to a merchant, denominated in fixed-point USDC.
// TotalAmount and RemainingAmount are integer strings with 6 implied
// decimals; RemainingAmount only ever decreases.
type Bill struct {
	ID              string    `json:"id"`
	MerchantAddress string    `json:"merchantAddress"`
	MerchantChainID string    `json:"merchantChainId"`
	TotalAmount     string    `json:"totalAmount"`
	RemainingAmount string    `json:"remainingAmount"`
	CreatedAt       time.Time `json:"createdAt"`
}

func (b *Bill) State() State {
	if amount.IsZero(b.RemainingAmount) {
		return StatePaid
	}
	return StateOpen
}

func (b *Bill) clone() *Bill {
	c := *b
	return &c
}
