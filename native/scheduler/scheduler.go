package scheduler

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"rampnet/core/events"
	"rampnet/core/types"
	"rampnet/native/market"
)

// Kind enumerates the ledger operations the scheduler can timelock.
type Kind uint8

const (
	KindNone Kind = iota
	KindClose
	KindReprice
)

// Valid reports whether the kind names a schedulable operation.
func (k Kind) Valid() bool { return k == KindClose || k == KindReprice }

// String implements fmt.Stringer for logging and event emission.
func (k Kind) String() string {
	switch k {
	case KindClose:
		return "close"
	case KindReprice:
		return "reprice"
	default:
		return "none"
	}
}

// Operation is one scheduled intent per order key. Created by Schedule,
// consumed and cleared by Execute, or cleared by Cancel.
type Operation struct {
	OrderKey    [32]byte `json:"order_key"`
	Kind        Kind     `json:"kind"`
	EffectiveAt int64    `json:"effective_at"`
	NewPrice    *big.Int `json:"new_price,omitempty"`
}

// Clone returns a deep copy of the operation.
func (o *Operation) Clone() *Operation {
	if o == nil {
		return nil
	}
	clone := *o
	if o.NewPrice != nil {
		clone.NewPrice = new(big.Int).Set(o.NewPrice)
	}
	return &clone
}

type schedulerState interface {
	OperationPut(key [32]byte, op *Operation) error
	OperationGet(key [32]byte) (*Operation, bool)
	OperationDelete(key [32]byte) error
}

// ledger is the slice of the market engine the scheduler drives. The
// scheduler holds no funds itself; it only ever invokes the ledger's public
// operations.
type ledger interface {
	Order(key [32]byte) (*market.Order, bool)
	ReserveWindow() int64
	ClearCloseSignal(key [32]byte, caller [20]byte) error
	CloseOrder(key [32]byte, caller [20]byte) (*big.Int, error)
	UpdateSellPrice(key [32]byte, caller [20]byte, newPrice *big.Int) ([32]byte, error)
	Verifier(addr [20]byte) (market.PaymentVerifier, bool)
}

var (
	errNilState  = errors.New("scheduler: state not configured")
	errNilLedger = errors.New("scheduler: ledger not configured")

	// ErrOrderNotFound is returned when the order key has no live ledger entry.
	ErrOrderNotFound = errors.New("scheduler: order not found")
	// ErrUnauthorized is returned when the caller lacks the role the
	// transition requires.
	ErrUnauthorized = errors.New("scheduler: unauthorized caller")
	// ErrAlreadyScheduled rejects scheduling over a pending operation.
	ErrAlreadyScheduled = errors.New("scheduler: operation already scheduled")
	// ErrNotScheduled is returned when no pending operation of the requested
	// kind exists for the key.
	ErrNotScheduled = errors.New("scheduler: no matching operation scheduled")
	// ErrNotReady is returned when the timelock delay has not elapsed.
	ErrNotReady = errors.New("scheduler: delay not elapsed")
)

const (
	EventTypeOperationScheduled = "scheduler.operation_scheduled"
	EventTypeOperationCancelled = "scheduler.operation_cancelled"
	EventTypeOperationExecuted  = "scheduler.operation_executed"
)

type schedulerEvent struct {
	evt *types.Event
}

func (e schedulerEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e schedulerEvent) Event() *types.Event { return e.evt }

// Scheduler timelocks close and reprice intents per order key and lets a
// permissionless executor apply them to the ledger once the delay elapses.
type Scheduler struct {
	state    schedulerState
	ledger   ledger
	emitter  events.Emitter
	identity [20]byte
	nowFn    func() int64
}

// NewScheduler creates a scheduler with a no-op emitter. Callers wire the
// state, ledger, and identity before use.
func NewScheduler() *Scheduler {
	return &Scheduler{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend holding scheduled operations.
func (s *Scheduler) SetState(state schedulerState) { s.state = state }

// SetLedger configures the market engine the scheduler drives.
func (s *Scheduler) SetLedger(l ledger) { s.ledger = l }

// SetIdentity configures the address the scheduler acts under. Orders name it
// in their descriptor tuple to delegate close and reprice authority.
func (s *Scheduler) SetIdentity(addr [20]byte) { s.identity = addr }

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (s *Scheduler) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		s.emitter = events.NoopEmitter{}
		return
	}
	s.emitter = emitter
}

// SetNowFunc overrides the time source, primarily for tests.
func (s *Scheduler) SetNowFunc(now func() int64) {
	if now == nil {
		s.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	s.nowFn = now
}

func (s *Scheduler) now() int64 {
	if s == nil || s.nowFn == nil {
		return time.Now().Unix()
	}
	return s.nowFn()
}

func (s *Scheduler) emit(event *types.Event) {
	if s == nil || s.emitter == nil || event == nil {
		return
	}
	s.emitter.Emit(schedulerEvent{evt: event})
}

func (s *Scheduler) ready() error {
	if s == nil || s.state == nil {
		return errNilState
	}
	if s.ledger == nil {
		return errNilLedger
	}
	return nil
}

// Schedule records a timelocked close or reprice intent for the order. Only
// the order's seller may schedule; the seller is expected to have already
// signalled intent-to-close on the ledger, which enforces that precondition
// itself when the operation eventually executes. The delay equals the
// ledger's reservation window.
func (s *Scheduler) Schedule(key [32]byte, caller [20]byte, kind Kind, newPrice *big.Int) (*Operation, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("scheduler: invalid operation kind %d", kind)
	}
	if kind == KindReprice && (newPrice == nil || newPrice.Sign() <= 0) {
		return nil, fmt.Errorf("scheduler: reprice requires a positive price")
	}
	order, ok := s.ledger.Order(key)
	if !ok {
		return nil, ErrOrderNotFound
	}
	if caller != order.Seller {
		return nil, ErrUnauthorized
	}
	if _, exists := s.state.OperationGet(key); exists {
		return nil, ErrAlreadyScheduled
	}
	op := &Operation{
		OrderKey:    key,
		Kind:        kind,
		EffectiveAt: s.now() + s.ledger.ReserveWindow(),
	}
	if kind == KindReprice {
		op.NewPrice = new(big.Int).Set(newPrice)
	}
	if err := s.state.OperationPut(key, op); err != nil {
		return nil, err
	}
	s.emit(newOperationEvent(EventTypeOperationScheduled, op, key))
	return op.Clone(), nil
}

// Cancel clears a pending operation and un-signals the close intent on the
// ledger. Permitted to the seller or the order's scheduler identity.
func (s *Scheduler) Cancel(key [32]byte, caller [20]byte) error {
	if err := s.ready(); err != nil {
		return err
	}
	op, ok := s.state.OperationGet(key)
	if !ok {
		return ErrNotScheduled
	}
	order, ok := s.ledger.Order(key)
	if !ok {
		return ErrOrderNotFound
	}
	if caller != order.Seller && caller != order.Scheduler {
		return ErrUnauthorized
	}
	// Un-signal the ledger before dropping the record so a failed clear
	// leaves the cancellation retryable instead of half-applied.
	if err := s.ledger.ClearCloseSignal(key, s.identity); err != nil {
		return err
	}
	if err := s.state.OperationDelete(key); err != nil {
		return err
	}
	s.emit(newOperationEvent(EventTypeOperationCancelled, op, key))
	return nil
}

// Execute applies a pending operation of the given kind once its delay has
// elapsed. Execution is permissionless. A reprice additionally registers the
// newly derived order key with the order's verification gateway so its
// anti-replay counter tracks the new key, then re-opens the new key for
// claims.
func (s *Scheduler) Execute(key [32]byte, kind Kind) error {
	if err := s.ready(); err != nil {
		return err
	}
	op, ok := s.state.OperationGet(key)
	if !ok || op.Kind != kind {
		return ErrNotScheduled
	}
	if s.now() < op.EffectiveAt {
		return ErrNotReady
	}
	order, ok := s.ledger.Order(key)
	if !ok {
		return ErrOrderNotFound
	}
	switch op.Kind {
	case KindClose:
		if _, err := s.ledger.CloseOrder(key, s.identity); err != nil {
			return err
		}
		if err := s.state.OperationDelete(key); err != nil {
			return err
		}
	case KindReprice:
		newKey, err := s.ledger.UpdateSellPrice(key, s.identity, op.NewPrice)
		if err != nil {
			return err
		}
		if err := s.state.OperationDelete(key); err != nil {
			return err
		}
		if gateway, ok := s.ledger.Verifier(order.Verifier); ok {
			if err := gateway.RegisterOrder(newKey); err != nil {
				return fmt.Errorf("scheduler: register repriced order: %w", err)
			}
		}
		if err := s.ledger.ClearCloseSignal(newKey, s.identity); err != nil {
			return err
		}
	default:
		return ErrNotScheduled
	}
	s.emit(newOperationEvent(EventTypeOperationExecuted, op, key))
	return nil
}

// Operation returns the pending scheduled operation for the key, if any.
func (s *Scheduler) Operation(key [32]byte) (*Operation, bool) {
	if s == nil || s.state == nil {
		return nil, false
	}
	op, ok := s.state.OperationGet(key)
	if !ok {
		return nil, false
	}
	return op.Clone(), true
}
