package market

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"rampnet/core/types"
)

const (
	EventTypeOrderCreated    = "market.order_created"
	EventTypeAmountIncreased = "market.amount_increased"
	EventTypeAmountDecreased = "market.amount_decreased"
	EventTypeOrderClosed     = "market.order_closed"
	EventTypePriceChanged    = "market.price_changed"
	EventTypeCloseScheduled  = "market.close_scheduled"
	EventTypeCloseCancelled  = "market.close_cancelled"
	EventTypeClaimPlaced     = "market.claim_placed"
	EventTypeClaimDeleted    = "market.claim_deleted"
	EventTypePaymentComplete = "market.payment_complete"
)

func orderAttrs(key [32]byte, order *Order) map[string]string {
	attrs := map[string]string{"orderKey": hex.EncodeToString(key[:])}
	if order == nil {
		return attrs
	}
	attrs["seller"] = hex.EncodeToString(order.Seller[:])
	attrs["asset"] = hex.EncodeToString(order.Asset[:])
	if order.Price != nil {
		attrs["price"] = order.Price.String()
	}
	if order.Amount != nil {
		attrs["amount"] = order.Amount.String()
	}
	attrs["totalReserved"] = strconv.FormatUint(order.TotalReserved, 10)
	attrs["maxClaimAmount"] = strconv.FormatUint(order.MaxClaimAmount, 10)
	return attrs
}

// NewOrderCreatedEvent returns the canonical payload for a newly opened sell
// order.
func NewOrderCreatedEvent(key [32]byte, order *Order) *types.Event {
	return &types.Event{Type: EventTypeOrderCreated, Attributes: orderAttrs(key, order)}
}

// NewAmountIncreasedEvent returns the payload emitted when a deposit merges
// into an existing order.
func NewAmountIncreasedEvent(key [32]byte, order *Order, delta *big.Int) *types.Event {
	attrs := orderAttrs(key, order)
	if delta != nil {
		attrs["delta"] = delta.String()
	}
	return &types.Event{Type: EventTypeAmountIncreased, Attributes: attrs}
}

// NewAmountDecreasedEvent returns the payload emitted when escrowed funds
// leave an order without closing it outright; full marks a withdrawal that
// drained the entire unreserved balance.
func NewAmountDecreasedEvent(key [32]byte, order *Order, delta *big.Int, full bool) *types.Event {
	attrs := orderAttrs(key, order)
	if delta != nil {
		attrs["delta"] = delta.String()
	}
	attrs["full"] = strconv.FormatBool(full)
	return &types.Event{Type: EventTypeAmountDecreased, Attributes: attrs}
}

// NewOrderClosedEvent returns the payload emitted when an order entry is
// deleted and its residual balance refunded to the seller.
func NewOrderClosedEvent(key [32]byte, seller [20]byte, refunded *big.Int) *types.Event {
	attrs := map[string]string{
		"orderKey": hex.EncodeToString(key[:]),
		"seller":   hex.EncodeToString(seller[:]),
	}
	if refunded != nil {
		attrs["refunded"] = refunded.String()
	}
	return &types.Event{Type: EventTypeOrderClosed, Attributes: attrs}
}

// NewPriceChangedEvent returns the payload emitted when an order is repriced
// onto a new key.
func NewPriceChangedEvent(oldKey, newKey [32]byte, order *Order) *types.Event {
	attrs := orderAttrs(newKey, order)
	attrs["previousOrderKey"] = hex.EncodeToString(oldKey[:])
	return &types.Event{Type: EventTypePriceChanged, Attributes: attrs}
}

// NewCloseScheduledEvent returns the payload emitted when the close intent is
// signalled on an order.
func NewCloseScheduledEvent(key [32]byte, at int64) *types.Event {
	return &types.Event{Type: EventTypeCloseScheduled, Attributes: map[string]string{
		"orderKey":    hex.EncodeToString(key[:]),
		"scheduledAt": strconv.FormatInt(at, 10),
	}}
}

// NewCloseCancelledEvent returns the payload emitted when the close intent is
// cleared again.
func NewCloseCancelledEvent(key [32]byte) *types.Event {
	return &types.Event{Type: EventTypeCloseCancelled, Attributes: map[string]string{
		"orderKey": hex.EncodeToString(key[:]),
	}}
}

// NewClaimPlacedEvent returns the payload emitted when a reservation is
// written to a claim slot.
func NewClaimPlacedEvent(key [32]byte, index uint64, claim Claim) *types.Event {
	return &types.Event{Type: EventTypeClaimPlaced, Attributes: map[string]string{
		"orderKey":   hex.EncodeToString(key[:]),
		"claimIndex": strconv.FormatUint(index, 10),
		"recipient":  hex.EncodeToString(claim.Recipient[:]),
		"amount":     strconv.FormatUint(claim.Amount, 10),
		"maxFee":     strconv.FormatUint(claim.MaxFee, 10),
		"timestamp":  strconv.FormatInt(claim.Timestamp, 10),
	}}
}

// NewClaimDeletedEvent returns the payload emitted when a claim slot is
// tombstoned or popped, either by the expiry sweep or by a release.
func NewClaimDeletedEvent(key [32]byte, index uint64, amount uint64, reason string) *types.Event {
	return &types.Event{Type: EventTypeClaimDeleted, Attributes: map[string]string{
		"orderKey":   hex.EncodeToString(key[:]),
		"claimIndex": strconv.FormatUint(index, 10),
		"amount":     strconv.FormatUint(amount, 10),
		"reason":     reason,
	}}
}

// NewPaymentCompleteEvent returns the payload emitted when a verified payment
// releases escrowed funds to the claim recipient.
func NewPaymentCompleteEvent(key [32]byte, index uint64, recipient, facilitator [20]byte, transferred, fee *big.Int) *types.Event {
	attrs := map[string]string{
		"orderKey":   hex.EncodeToString(key[:]),
		"claimIndex": strconv.FormatUint(index, 10),
		"recipient":  hex.EncodeToString(recipient[:]),
	}
	if facilitator != ([20]byte{}) {
		attrs["facilitator"] = hex.EncodeToString(facilitator[:])
	}
	if transferred != nil {
		attrs["transferred"] = transferred.String()
	}
	if fee != nil && fee.Sign() > 0 {
		attrs["fee"] = fee.String()
	}
	return &types.Event{Type: EventTypePaymentComplete, Attributes: attrs}
}
