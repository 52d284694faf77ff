package market

import (
	"fmt"
	"math/big"
	"math/bits"
	"time"

	"github.com/holiman/uint256"

	"rampnet/core/events"
	"rampnet/core/types"
)

// DefaultReserveWindow is the time budget, in seconds, during which a claim
// stays active and fund-releasable.
const DefaultReserveWindow int64 = 3600

type engineState interface {
	OrderPut(key [32]byte, order *Order) error
	OrderGet(key [32]byte) (*Order, bool)
	OrderDelete(key [32]byte) error
	ClaimsGet(key [32]byte) ([]Claim, error)
	ClaimsPut(key [32]byte, claims []Claim) error
	ClaimsDelete(key [32]byte) error
	CachedBalance(asset [20]byte) (*big.Int, error)
	SetCachedBalance(asset [20]byte, balance *big.Int) error
	AssetAllowed(asset [20]byte) (bool, error)
	SetAssetAllowed(asset [20]byte, allowed bool) error
	FrontDoorAllowed(caller [20]byte) (bool, error)
	SetFrontDoorAllowed(caller [20]byte, allowed bool) error
}

// TokenBackend is the balance-transfer primitive the engine escrows funds
// with. Transfers originate from the engine's custody address; the backend is
// assumed to deliver exactly the requested amount and to check return values.
// The engine, not the backend, guards against reentrancy.
type TokenBackend interface {
	BalanceOf(asset, holder [20]byte) (*big.Int, error)
	Transfer(asset, to [20]byte, amount *big.Int) error
}

// PaymentVerifier is the external proof-verification gateway consumed by
// Release. VerifyPayment consumes a nullifier at most once globally and binds
// the proof to an order key and claim index. QuoteFacilitatorFee resolves the
// fee schedule for a facilitator; RegisterOrder primes the gateway's
// per-order anti-replay counter for a freshly derived key.
type PaymentVerifier interface {
	VerifyPayment(nullifier [32]byte, orderIndex, claimIndex uint64) (facilitator [20]byte, orderKey [32]byte, err error)
	QuoteFacilitatorFee(asset [20]byte, price *big.Int, claimAmount uint64, facilitator [20]byte) (*big.Int, error)
	RegisterOrder(orderKey [32]byte) error
}

// Authority decides who may mutate the engine's allow lists.
type Authority interface {
	IsAdmin(addr [20]byte) bool
}

// AdminSet is a fixed-membership Authority.
type AdminSet map[[20]byte]bool

// IsAdmin implements the Authority interface.
func (s AdminSet) IsAdmin(addr [20]byte) bool { return s[addr] }

type marketEvent struct {
	evt *types.Event
}

func (e marketEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e marketEvent) Event() *types.Event { return e.evt }

// Engine owns custody of escrowed funds and the claim-reservation accounting
// for every sell order. All operations are atomic: they validate fully before
// the first state write, and every outbound token transfer happens strictly
// after the last internal mutation. A per-engine latch rejects nested
// mutating calls so untrusted transfer targets cannot reenter mid-operation.
type Engine struct {
	state         engineState
	token         TokenBackend
	authority     Authority
	emitter       events.Emitter
	verifiers     map[[20]byte]PaymentVerifier
	custody       [20]byte
	reserveWindow int64
	nowFn         func() int64
	busy          bool
}

// NewEngine creates a market engine with a no-op emitter and the default
// reservation window. Callers wire the state, token backend, and authority
// before use.
func NewEngine() *Engine {
	return &Engine{
		emitter:       events.NoopEmitter{},
		verifiers:     make(map[[20]byte]PaymentVerifier),
		reserveWindow: DefaultReserveWindow,
		nowFn:         func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetToken configures the token transfer primitive.
func (e *Engine) SetToken(token TokenBackend) { e.token = token }

// SetAuthority configures the admin policy guarding allow-list mutation.
func (e *Engine) SetAuthority(authority Authority) { e.authority = authority }

// SetCustody configures the address whose token balance the engine owns.
func (e *Engine) SetCustody(addr [20]byte) { e.custody = addr }

// SetReserveWindow overrides the reservation window, in seconds. Non-positive
// values reset the default.
func (e *Engine) SetReserveWindow(seconds int64) {
	if seconds <= 0 {
		e.reserveWindow = DefaultReserveWindow
		return
	}
	e.reserveWindow = seconds
}

// ReserveWindow returns the active reservation window in seconds.
func (e *Engine) ReserveWindow() int64 { return e.reserveWindow }

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// RegisterVerifier binds a verification gateway implementation to the
// identity orders reference in their descriptor tuple.
func (e *Engine) RegisterVerifier(addr [20]byte, verifier PaymentVerifier) {
	if verifier == nil {
		delete(e.verifiers, addr)
		return
	}
	e.verifiers[addr] = verifier
}

// Verifier resolves a registered verification gateway by identity.
func (e *Engine) Verifier(addr [20]byte) (PaymentVerifier, bool) {
	v, ok := e.verifiers[addr]
	return v, ok
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(marketEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// enter acquires the reentrancy latch. Every mutating operation takes it on
// entry and releases it on every exit path, so a transfer target that calls
// back into the engine is rejected instead of observing half-applied state.
func (e *Engine) enter() error {
	if e.busy {
		return ErrReentrantCall
	}
	e.busy = true
	return nil
}

func (e *Engine) exit() { e.busy = false }

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// tokensForMinor converts a minor-unit quantity to native token units at the
// order's price, failing closed if the product would exceed 256 bits.
func tokensForMinor(minor uint64, price *big.Int) (*big.Int, error) {
	p, overflow := uint256.FromBig(price)
	if overflow {
		return nil, ErrAmountOverflow
	}
	prod, overflow := new(uint256.Int).MulOverflow(new(uint256.Int).SetUint64(minor), p)
	if overflow {
		return nil, ErrAmountOverflow
	}
	return prod.ToBig(), nil
}

func (e *Engine) loadOrder(key [32]byte) (*Order, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	order, ok := e.state.OrderGet(key)
	if !ok {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (e *Engine) requireToken() error {
	if e == nil || e.token == nil {
		return errNilToken
	}
	return nil
}

// refreshCachedBalance re-observes the real custody balance so the next
// deposit detection starts from ground truth. Called after every outbound
// transfer; the cache is the sole arbiter of "how much is genuinely new".
func (e *Engine) refreshCachedBalance(asset [20]byte) error {
	balance, err := e.token.BalanceOf(asset, e.custody)
	if err != nil {
		return err
	}
	return e.state.SetCachedBalance(asset, balance)
}

// Deposit escrows newly received tokens into the sell order derived from the
// descriptor tuple, creating the entry or merging into an existing one. The
// credited amount is the custody balance delta observed since the last
// observation, never the caller's word: declared must match that delta
// exactly. The per-claim ceiling is overwritten on merge (last writer wins).
func (e *Engine) Deposit(seller [20]byte, price *big.Int, asset, verifier, scheduler [20]byte, declared *big.Int, maxClaimAmount uint64) ([32]byte, error) {
	var key [32]byte
	if e == nil || e.state == nil {
		return key, errNilState
	}
	if err := e.requireToken(); err != nil {
		return key, err
	}
	if err := e.enter(); err != nil {
		return key, err
	}
	defer e.exit()
	if price == nil || price.Sign() <= 0 {
		return key, fmt.Errorf("market: price must be positive")
	}
	if maxClaimAmount == 0 {
		return key, fmt.Errorf("market: max claim amount must be positive")
	}
	allowed, err := e.state.AssetAllowed(asset)
	if err != nil {
		return key, err
	}
	if !allowed {
		return key, ErrAssetNotAllowed
	}
	real, err := e.token.BalanceOf(asset, e.custody)
	if err != nil {
		return key, err
	}
	cached, err := e.state.CachedBalance(asset)
	if err != nil {
		return key, err
	}
	delta := new(big.Int).Sub(cloneBigInt(real), cloneBigInt(cached))
	if delta.Sign() <= 0 {
		return key, ErrNoDeposit
	}
	if declared == nil || declared.Cmp(delta) != 0 {
		return key, ErrAmountMismatch
	}
	key = DeriveOrderKey(seller, price, asset, verifier, scheduler)
	if err := e.state.SetCachedBalance(asset, real); err != nil {
		return key, err
	}
	existing, ok := e.state.OrderGet(key)
	if ok {
		existing.Amount = new(big.Int).Add(cloneBigInt(existing.Amount), delta)
		existing.MaxClaimAmount = maxClaimAmount
		if err := e.state.OrderPut(key, existing); err != nil {
			return key, err
		}
		e.emit(NewAmountIncreasedEvent(key, existing, delta))
		return key, nil
	}
	order := &Order{
		Seller:         seller,
		Price:          cloneBigInt(price),
		Asset:          asset,
		Verifier:       verifier,
		Scheduler:      scheduler,
		Amount:         delta,
		MaxClaimAmount: maxClaimAmount,
	}
	if err := e.state.OrderPut(key, order); err != nil {
		return key, err
	}
	e.emit(NewOrderCreatedEvent(key, order))
	return key, nil
}

// Reserve places a claim against the order, reclaiming capacity from the
// caller-hinted expired slots first. Hints must be strictly decreasing claim
// indices; a caller who supplies none always appends, which is correct but
// never reclaims. Returns the claim index the reservation was written to.
func (e *Engine) Reserve(key [32]byte, caller, recipient [20]byte, amount, maxFee uint64, staleSlotHints []uint64) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	if err := e.enter(); err != nil {
		return 0, err
	}
	defer e.exit()
	order, err := e.loadOrder(key)
	if err != nil {
		return 0, err
	}
	if caller != recipient {
		allowed, err := e.state.FrontDoorAllowed(caller)
		if err != nil {
			return 0, err
		}
		if !allowed {
			return 0, ErrUnauthorized
		}
	}
	if order.ScheduleCloseAt != 0 {
		return 0, ErrOrderClosing
	}
	if amount > order.MaxClaimAmount {
		return 0, ErrClaimTooLarge
	}
	if amount <= maxFee {
		return 0, ErrFeeExceedsAmount
	}
	claims, err := e.state.ClaimsGet(key)
	if err != nil {
		return 0, err
	}
	now := e.now()
	swept := sweepClaims(claims, staleSlotHints, now, e.reserveWindow)
	if swept.reclaimed > order.TotalReserved {
		return 0, fmt.Errorf("market: reclaimed %d exceeds reserved %d", swept.reclaimed, order.TotalReserved)
	}
	reserved, carry := bits.Add64(order.TotalReserved-swept.reclaimed, amount, 0)
	if carry != 0 {
		return 0, ErrInsufficientCapacity
	}
	reservedValue, err := tokensForMinor(reserved, order.Price)
	if err != nil {
		return 0, ErrInsufficientCapacity
	}
	if reservedValue.Cmp(order.Amount) > 0 {
		return 0, ErrInsufficientCapacity
	}
	claim := Claim{Recipient: recipient, MaxFee: maxFee, Amount: amount, Timestamp: now}
	index := uint64(swept.firstFree)
	if swept.firstFree == len(swept.claims) {
		swept.claims = append(swept.claims, claim)
	} else {
		swept.claims[swept.firstFree] = claim
	}
	order.TotalReserved = reserved
	if err := e.state.ClaimsPut(key, swept.claims); err != nil {
		return 0, err
	}
	if err := e.state.OrderPut(key, order); err != nil {
		return 0, err
	}
	for _, removed := range swept.removed {
		e.emit(NewClaimDeletedEvent(key, removed.index, removed.amount, "expired"))
	}
	e.emit(NewClaimPlacedEvent(key, index, claim))
	return index, nil
}

// Release pays out a claim once the verification gateway confirms the
// off-chain payment. All accounting mutations land before any token leaves
// custody, and the latch rejects reentry from the untrusted facilitator or
// recipient during the transfers. Returns the token amount delivered to the
// claim recipient, net of any facilitator fee.
func (e *Engine) Release(key [32]byte, orderIndexForProof, claimIndex uint64, nullifier [32]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := e.requireToken(); err != nil {
		return nil, err
	}
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.exit()
	order, err := e.loadOrder(key)
	if err != nil {
		return nil, err
	}
	claims, err := e.state.ClaimsGet(key)
	if err != nil {
		return nil, err
	}
	if claimIndex >= uint64(len(claims)) {
		return nil, ErrClaimExpiredOrMissing
	}
	claim := claims[claimIndex]
	now := e.now()
	if !claim.Active(now, e.reserveWindow) {
		return nil, ErrClaimExpiredOrMissing
	}
	gateway, ok := e.verifiers[order.Verifier]
	if !ok {
		return nil, ErrVerifierUnknown
	}
	facilitator, verifiedKey, err := gateway.VerifyPayment(nullifier, orderIndexForProof, claimIndex)
	if err != nil {
		return nil, fmt.Errorf("market: payment verification: %w", err)
	}
	if verifiedKey != key {
		return nil, ErrProofKeyMismatch
	}
	transferAmount, err := tokensForMinor(claim.Amount, order.Price)
	if err != nil {
		return nil, err
	}
	fee := big.NewInt(0)
	if facilitator != ([20]byte{}) {
		quoted, err := gateway.QuoteFacilitatorFee(order.Asset, order.Price, claim.Amount, facilitator)
		if err != nil {
			return nil, fmt.Errorf("market: fee schedule: %w", err)
		}
		feeCeiling, err := tokensForMinor(claim.MaxFee, order.Price)
		if err != nil {
			return nil, err
		}
		fee = cloneBigInt(quoted)
		if fee.Sign() < 0 {
			return nil, ErrFeeTooHigh
		}
		if fee.Cmp(feeCeiling) > 0 {
			return nil, ErrFeeTooHigh
		}
	}
	if order.Amount.Cmp(transferAmount) < 0 {
		return nil, ErrInsufficientCapacity
	}
	if claim.Amount > order.TotalReserved {
		return nil, fmt.Errorf("market: claim amount %d exceeds reserved %d", claim.Amount, order.TotalReserved)
	}

	// Effects before interactions.
	order.Amount = new(big.Int).Sub(order.Amount, transferAmount)
	order.TotalReserved -= claim.Amount
	if int(claimIndex) == len(claims)-1 {
		claims = claims[:claimIndex]
	} else {
		claims[claimIndex] = Claim{}
	}
	if order.Amount.Sign() == 0 {
		if err := e.state.OrderDelete(key); err != nil {
			return nil, err
		}
		if err := e.state.ClaimsDelete(key); err != nil {
			return nil, err
		}
	} else {
		if err := e.state.ClaimsPut(key, claims); err != nil {
			return nil, err
		}
		if err := e.state.OrderPut(key, order); err != nil {
			return nil, err
		}
	}

	payout := new(big.Int).Sub(transferAmount, fee)
	if fee.Sign() > 0 {
		if err := e.token.Transfer(order.Asset, facilitator, fee); err != nil {
			return nil, err
		}
	}
	if payout.Sign() > 0 {
		if err := e.token.Transfer(order.Asset, claim.Recipient, payout); err != nil {
			return nil, err
		}
	}
	if err := e.refreshCachedBalance(order.Asset); err != nil {
		return nil, err
	}
	e.emit(NewClaimDeletedEvent(key, claimIndex, claim.Amount, "released"))
	e.emit(NewPaymentCompleteEvent(key, claimIndex, claim.Recipient, facilitator, payout, fee))
	return payout, nil
}

// WithdrawUnreserved returns unreserved escrow back to the seller. A zero
// requested amount withdraws everything unreserved. Any withdrawal that
// drains the entire balance with nothing reserved closes the entry instead of
// persisting it at zero. A zero unreserved balance is a silent no-op.
func (e *Engine) WithdrawUnreserved(key [32]byte, caller [20]byte, requested *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := e.requireToken(); err != nil {
		return nil, err
	}
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.exit()
	order, err := e.loadOrder(key)
	if err != nil {
		return nil, err
	}
	if caller != order.Seller {
		return nil, ErrUnauthorized
	}
	if requested != nil && requested.Sign() < 0 {
		return nil, ErrWithdrawNegative
	}
	reservedValue, err := tokensForMinor(order.TotalReserved, order.Price)
	if err != nil {
		return nil, err
	}
	unreserved := new(big.Int).Sub(order.Amount, reservedValue)
	if unreserved.Sign() == 0 {
		return big.NewInt(0), nil
	}
	if unreserved.Sign() < 0 {
		return nil, fmt.Errorf("market: reserved value exceeds escrowed amount")
	}
	amount := cloneBigInt(requested)
	if amount.Sign() == 0 {
		if order.TotalReserved == 0 {
			return e.closeLocked(key, order)
		}
		amount = unreserved
	}
	if amount.Cmp(unreserved) > 0 {
		return nil, ErrWithdrawTooLarge
	}
	// Draining the entire balance deletes the entry rather than persisting a
	// zero-amount order.
	if order.TotalReserved == 0 && amount.Cmp(order.Amount) == 0 {
		return e.closeLocked(key, order)
	}
	order.Amount = new(big.Int).Sub(order.Amount, amount)
	if err := e.state.OrderPut(key, order); err != nil {
		return nil, err
	}
	if err := e.token.Transfer(order.Asset, order.Seller, amount); err != nil {
		return nil, err
	}
	if err := e.refreshCachedBalance(order.Asset); err != nil {
		return nil, err
	}
	e.emit(NewAmountDecreasedEvent(key, order, amount, amount.Cmp(unreserved) == 0))
	return amount, nil
}

// closeEligible reports whether the order may be closed or repriced: either
// the close intent has been signalled for at least the reservation window, or
// no claim in the sequence is still active. The fallback path scans every
// claim, so orders with long histories should go through the scheduler.
func (e *Engine) closeEligible(key [32]byte, order *Order, now int64) error {
	if order.ScheduleCloseAt != 0 {
		if now-order.ScheduleCloseAt >= e.reserveWindow {
			return nil
		}
		return ErrOrderNotCloseable
	}
	claims, err := e.state.ClaimsGet(key)
	if err != nil {
		return err
	}
	if !allClaimsInactive(claims, now, e.reserveWindow) {
		return ErrOrderNotCloseable
	}
	return nil
}

// closeLocked deletes the entry and refunds the full residual amount to the
// seller. Callers hold the latch and have already authorized the close.
func (e *Engine) closeLocked(key [32]byte, order *Order) (*big.Int, error) {
	refund := cloneBigInt(order.Amount)
	if err := e.state.OrderDelete(key); err != nil {
		return nil, err
	}
	if err := e.state.ClaimsDelete(key); err != nil {
		return nil, err
	}
	if refund.Sign() > 0 {
		if err := e.token.Transfer(order.Asset, order.Seller, refund); err != nil {
			return nil, err
		}
		if err := e.refreshCachedBalance(order.Asset); err != nil {
			return nil, err
		}
	}
	e.emit(NewOrderClosedEvent(key, order.Seller, refund))
	return refund, nil
}

// CloseOrder deletes the order and refunds the full escrowed amount to the
// seller. Permitted to the seller or the order's scheduler identity once the
// order is eligible to close.
func (e *Engine) CloseOrder(key [32]byte, caller [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := e.requireToken(); err != nil {
		return nil, err
	}
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.exit()
	order, err := e.loadOrder(key)
	if err != nil {
		return nil, err
	}
	if caller != order.Seller && caller != order.Scheduler {
		return nil, ErrUnauthorized
	}
	if err := e.closeEligible(key, order, e.now()); err != nil {
		return nil, err
	}
	return e.closeLocked(key, order)
}

// UpdateSellPrice moves the order onto the key derived from the new price.
// Price is part of the order's identity, so this is close-old plus open-new:
// the escrowed amount and claim ceiling carry over, claims and reserved
// capacity are discarded, and the old entry is deleted in the same operation.
// Deposits already pooled at the destination key are merged. Eligibility
// matches CloseOrder.
func (e *Engine) UpdateSellPrice(key [32]byte, caller [20]byte, newPrice *big.Int) ([32]byte, error) {
	if e == nil || e.state == nil {
		return key, errNilState
	}
	if err := e.enter(); err != nil {
		return key, err
	}
	defer e.exit()
	order, err := e.loadOrder(key)
	if err != nil {
		return key, err
	}
	if caller != order.Seller && caller != order.Scheduler {
		return key, ErrUnauthorized
	}
	if newPrice == nil || newPrice.Sign() <= 0 {
		return key, fmt.Errorf("market: price must be positive")
	}
	if err := e.closeEligible(key, order, e.now()); err != nil {
		return key, err
	}
	newKey := DeriveOrderKey(order.Seller, newPrice, order.Asset, order.Verifier, order.Scheduler)
	if newKey == key {
		return key, nil
	}
	moved := &Order{
		Seller:          order.Seller,
		Price:           cloneBigInt(newPrice),
		Asset:           order.Asset,
		Verifier:        order.Verifier,
		Scheduler:       order.Scheduler,
		Amount:          cloneBigInt(order.Amount),
		MaxClaimAmount:  order.MaxClaimAmount,
		ScheduleCloseAt: order.ScheduleCloseAt,
	}
	if existing, ok := e.state.OrderGet(newKey); ok {
		moved.Amount = new(big.Int).Add(cloneBigInt(existing.Amount), moved.Amount)
		moved.TotalReserved = existing.TotalReserved
	}
	if err := e.state.OrderPut(newKey, moved); err != nil {
		return key, err
	}
	if err := e.state.OrderDelete(key); err != nil {
		return key, err
	}
	if err := e.state.ClaimsDelete(key); err != nil {
		return key, err
	}
	e.emit(NewPriceChangedEvent(key, newKey, moved))
	return newKey, nil
}

// SignalClose records the intent to close the order, freezing it against new
// claims. The order becomes closeable once the reservation window has elapsed
// since the signal. Signalling an already-frozen order is a no-op.
func (e *Engine) SignalClose(key [32]byte, caller [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()
	order, err := e.loadOrder(key)
	if err != nil {
		return err
	}
	if caller != order.Seller && caller != order.Scheduler {
		return ErrUnauthorized
	}
	if order.ScheduleCloseAt != 0 {
		return nil
	}
	order.ScheduleCloseAt = e.now()
	if err := e.state.OrderPut(key, order); err != nil {
		return err
	}
	e.emit(NewCloseScheduledEvent(key, order.ScheduleCloseAt))
	return nil
}

// ClearCloseSignal re-opens the order for new claims. Clearing an order with
// no close intent is a no-op.
func (e *Engine) ClearCloseSignal(key [32]byte, caller [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.enter(); err != nil {
		return err
	}
	defer e.exit()
	order, err := e.loadOrder(key)
	if err != nil {
		return err
	}
	if caller != order.Seller && caller != order.Scheduler {
		return ErrUnauthorized
	}
	if order.ScheduleCloseAt == 0 {
		return nil
	}
	order.ScheduleCloseAt = 0
	if err := e.state.OrderPut(key, order); err != nil {
		return err
	}
	e.emit(NewCloseCancelledEvent(key))
	return nil
}

// SetAssetAllowed mutates the accepted-asset allow list. Admin only.
func (e *Engine) SetAssetAllowed(caller, asset [20]byte, allowed bool) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.authority == nil {
		return errNilAuthority
	}
	if !e.authority.IsAdmin(caller) {
		return ErrUnauthorized
	}
	return e.state.SetAssetAllowed(asset, allowed)
}

// SetFrontDoorAllowed mutates the allow list of callers permitted to reserve
// on behalf of other recipients. Admin only.
func (e *Engine) SetFrontDoorAllowed(caller, frontDoor [20]byte, allowed bool) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.authority == nil {
		return errNilAuthority
	}
	if !e.authority.IsAdmin(caller) {
		return ErrUnauthorized
	}
	return e.state.SetFrontDoorAllowed(frontDoor, allowed)
}

// Order returns a copy of the live order entry for the key, if any.
func (e *Engine) Order(key [32]byte) (*Order, bool) {
	if e == nil || e.state == nil {
		return nil, false
	}
	return e.state.OrderGet(key)
}

// Claims returns a copy of the order's claim sequence.
func (e *Engine) Claims(key [32]byte) ([]Claim, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.ClaimsGet(key)
}
