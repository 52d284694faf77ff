package market

import (
	"fmt"
	"math/big"
)

// Order captures the pooled escrow accounting for a single sell order. The
// identity fields (seller, price, asset, verifier, scheduler) are the inputs
// to the order key derivation and never change for a live entry; repricing is
// modelled as closing the old entry and opening a new one. An entry is
// logically deleted once Amount reaches zero.
type Order struct {
	Seller    [20]byte `json:"seller"`
	Price     *big.Int `json:"price"`
	Asset     [20]byte `json:"asset"`
	Verifier  [20]byte `json:"verifier"`
	Scheduler [20]byte `json:"scheduler"`

	// Amount is the total token balance held in escrow, in native asset
	// units. TotalReserved sums the active claims in payment-currency minor
	// units; TotalReserved*Price must never exceed Amount.
	Amount          *big.Int `json:"amount"`
	TotalReserved   uint64   `json:"total_reserved"`
	ScheduleCloseAt int64    `json:"schedule_close_at"`
	MaxClaimAmount  uint64   `json:"max_claim_amount"`
}

// Clone returns a deep copy of the order so callers can safely mutate the copy
// without affecting the stored instance.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	if o.Price != nil {
		clone.Price = new(big.Int).Set(o.Price)
	} else {
		clone.Price = big.NewInt(0)
	}
	if o.Amount != nil {
		clone.Amount = new(big.Int).Set(o.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	return &clone
}

// SanitizeOrder validates and normalises the supplied order record, returning
// a cloned instance with non-nil numeric fields. The original value is never
// mutated.
func SanitizeOrder(o *Order) (*Order, error) {
	if o == nil {
		return nil, fmt.Errorf("nil order")
	}
	clone := o.Clone()
	if clone.Price.Sign() <= 0 {
		return nil, fmt.Errorf("order price must be positive")
	}
	if clone.Amount.Sign() < 0 {
		return nil, fmt.Errorf("order amount must be non-negative")
	}
	if clone.ScheduleCloseAt < 0 {
		return nil, fmt.Errorf("invalid close schedule timestamp: %d", clone.ScheduleCloseAt)
	}
	return clone, nil
}

// Claim is one reservation slot against an order. A zero Timestamp marks a
// tombstoned slot whose index may be reused; tombstoned slots always carry a
// zero Amount so reclaiming them twice is harmless.
type Claim struct {
	Recipient [20]byte `json:"recipient"`
	MaxFee    uint64   `json:"max_fee"`
	Amount    uint64   `json:"amount"`
	Timestamp int64    `json:"timestamp"`
}

// Active reports whether the claim still reserves capacity: the slot is live
// and its reservation window has not elapsed.
func (c Claim) Active(now, window int64) bool {
	return c.Timestamp != 0 && now-c.Timestamp < window
}
