package scheduler

import (
	"errors"
	"math/big"
	"testing"

	"rampnet/native/market"
)

type mockSchedulerState struct {
	ops map[[32]byte]*Operation
}

func newMockSchedulerState() *mockSchedulerState {
	return &mockSchedulerState{ops: make(map[[32]byte]*Operation)}
}

func (m *mockSchedulerState) OperationPut(key [32]byte, op *Operation) error {
	m.ops[key] = op.Clone()
	return nil
}

func (m *mockSchedulerState) OperationGet(key [32]byte) (*Operation, bool) {
	op, ok := m.ops[key]
	if !ok {
		return nil, false
	}
	return op.Clone(), true
}

func (m *mockSchedulerState) OperationDelete(key [32]byte) error {
	delete(m.ops, key)
	return nil
}

type mockGateway struct {
	registered [][32]byte
}

func (m *mockGateway) VerifyPayment(_ [32]byte, _, _ uint64) ([20]byte, [32]byte, error) {
	return [20]byte{}, [32]byte{}, errors.New("not used")
}

func (m *mockGateway) QuoteFacilitatorFee(_ [20]byte, _ *big.Int, _ uint64, _ [20]byte) (*big.Int, error) {
	return big.NewInt(0), nil
}

func (m *mockGateway) RegisterOrder(key [32]byte) error {
	m.registered = append(m.registered, key)
	return nil
}

type mockLedger struct {
	orders  map[[32]byte]*market.Order
	window  int64
	gateway *mockGateway

	closed    [][32]byte
	cleared   [][32]byte
	repriced  [][32]byte
	repriceTo [32]byte

	closeErr   error
	repriceErr error
	clearErr   error
}

func newMockLedger() *mockLedger {
	return &mockLedger{
		orders:  make(map[[32]byte]*market.Order),
		window:  3600,
		gateway: &mockGateway{},
	}
}

func (m *mockLedger) Order(key [32]byte) (*market.Order, bool) {
	order, ok := m.orders[key]
	if !ok {
		return nil, false
	}
	return order.Clone(), true
}

func (m *mockLedger) ReserveWindow() int64 { return m.window }

func (m *mockLedger) ClearCloseSignal(key [32]byte, _ [20]byte) error {
	if m.clearErr != nil {
		return m.clearErr
	}
	m.cleared = append(m.cleared, key)
	return nil
}

func (m *mockLedger) CloseOrder(key [32]byte, _ [20]byte) (*big.Int, error) {
	if m.closeErr != nil {
		return nil, m.closeErr
	}
	m.closed = append(m.closed, key)
	delete(m.orders, key)
	return big.NewInt(0), nil
}

func (m *mockLedger) UpdateSellPrice(key [32]byte, _ [20]byte, newPrice *big.Int) ([32]byte, error) {
	if m.repriceErr != nil {
		return key, m.repriceErr
	}
	m.repriced = append(m.repriced, key)
	order := m.orders[key]
	delete(m.orders, key)
	moved := order.Clone()
	moved.Price = new(big.Int).Set(newPrice)
	m.orders[m.repriceTo] = moved
	return m.repriceTo, nil
}

func (m *mockLedger) Verifier(_ [20]byte) (market.PaymentVerifier, bool) {
	return m.gateway, true
}

func testAddr(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

const testEpoch = int64(1_700_000_000)

type testRig struct {
	sched  *Scheduler
	state  *mockSchedulerState
	ledger *mockLedger
	now    int64

	seller   [20]byte
	identity [20]byte
	key      [32]byte
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	rig := &testRig{
		state:    newMockSchedulerState(),
		ledger:   newMockLedger(),
		now:      testEpoch,
		seller:   testAddr(0x01),
		identity: testAddr(0xD0),
		key:      [32]byte{0xAA},
	}
	rig.ledger.repriceTo = [32]byte{0xBB}
	rig.ledger.orders[rig.key] = &market.Order{
		Seller:    rig.seller,
		Price:     big.NewInt(100),
		Scheduler: rig.identity,
		Amount:    big.NewInt(1000),
	}
	rig.sched = NewScheduler()
	rig.sched.SetState(rig.state)
	rig.sched.SetLedger(rig.ledger)
	rig.sched.SetIdentity(rig.identity)
	rig.sched.SetNowFunc(func() int64 { return rig.now })
	return rig
}

func TestScheduleValidations(t *testing.T) {
	rig := newTestRig(t)

	if _, err := rig.sched.Schedule(rig.key, rig.seller, KindNone, nil); err == nil {
		t.Fatalf("invalid kind accepted")
	}
	if _, err := rig.sched.Schedule(rig.key, rig.seller, KindReprice, nil); err == nil {
		t.Fatalf("reprice without price accepted")
	}
	if _, err := rig.sched.Schedule([32]byte{0xEE}, rig.seller, KindClose, nil); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
	if _, err := rig.sched.Schedule(rig.key, testAddr(0x09), KindClose, nil); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	op, err := rig.sched.Schedule(rig.key, rig.seller, KindClose, nil)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if op.EffectiveAt != testEpoch+rig.ledger.window {
		t.Fatalf("unexpected effective time %d", op.EffectiveAt)
	}
	if _, err := rig.sched.Schedule(rig.key, rig.seller, KindClose, nil); !errors.Is(err, ErrAlreadyScheduled) {
		t.Fatalf("expected ErrAlreadyScheduled, got %v", err)
	}
}

func TestExecuteClose(t *testing.T) {
	rig := newTestRig(t)
	if _, err := rig.sched.Schedule(rig.key, rig.seller, KindClose, nil); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	if err := rig.sched.Execute(rig.key, KindReprice); !errors.Is(err, ErrNotScheduled) {
		t.Fatalf("expected kind mismatch to fail, got %v", err)
	}
	if err := rig.sched.Execute(rig.key, KindClose); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady before delay, got %v", err)
	}

	rig.now += rig.ledger.window
	if err := rig.sched.Execute(rig.key, KindClose); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(rig.ledger.closed) != 1 || rig.ledger.closed[0] != rig.key {
		t.Fatalf("close not applied to ledger: %v", rig.ledger.closed)
	}
	if _, ok := rig.sched.Operation(rig.key); ok {
		t.Fatalf("operation record survived execution")
	}
	if err := rig.sched.Execute(rig.key, KindClose); !errors.Is(err, ErrNotScheduled) {
		t.Fatalf("expected re-execution to fail, got %v", err)
	}
}

func TestExecuteCloseLedgerFailureKeepsRecord(t *testing.T) {
	rig := newTestRig(t)
	if _, err := rig.sched.Schedule(rig.key, rig.seller, KindClose, nil); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	rig.now += rig.ledger.window
	rig.ledger.closeErr = market.ErrOrderNotCloseable
	if err := rig.sched.Execute(rig.key, KindClose); !errors.Is(err, market.ErrOrderNotCloseable) {
		t.Fatalf("expected ledger error surfaced, got %v", err)
	}
	if _, ok := rig.sched.Operation(rig.key); !ok {
		t.Fatalf("failed execution must keep the record for retry")
	}
}

func TestExecuteReprice(t *testing.T) {
	rig := newTestRig(t)
	if _, err := rig.sched.Schedule(rig.key, rig.seller, KindReprice, big.NewInt(250)); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	rig.now += rig.ledger.window

	if err := rig.sched.Execute(rig.key, KindReprice); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(rig.ledger.repriced) != 1 {
		t.Fatalf("reprice not applied: %v", rig.ledger.repriced)
	}
	newKey := rig.ledger.repriceTo
	if len(rig.ledger.gateway.registered) != 1 || rig.ledger.gateway.registered[0] != newKey {
		t.Fatalf("new key not registered with gateway: %v", rig.ledger.gateway.registered)
	}
	if len(rig.ledger.cleared) != 1 || rig.ledger.cleared[0] != newKey {
		t.Fatalf("close signal not cleared on new key: %v", rig.ledger.cleared)
	}
	if _, ok := rig.sched.Operation(rig.key); ok {
		t.Fatalf("operation record survived execution")
	}
}

func TestCancel(t *testing.T) {
	rig := newTestRig(t)
	if err := rig.sched.Cancel(rig.key, rig.seller); !errors.Is(err, ErrNotScheduled) {
		t.Fatalf("expected ErrNotScheduled, got %v", err)
	}
	if _, err := rig.sched.Schedule(rig.key, rig.seller, KindClose, nil); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if err := rig.sched.Cancel(rig.key, testAddr(0x09)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := rig.sched.Cancel(rig.key, rig.seller); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, ok := rig.sched.Operation(rig.key); ok {
		t.Fatalf("operation record survived cancel")
	}
	if len(rig.ledger.cleared) != 1 || rig.ledger.cleared[0] != rig.key {
		t.Fatalf("close signal not cleared: %v", rig.ledger.cleared)
	}
}

func TestCancelClearFailureKeepsRecord(t *testing.T) {
	rig := newTestRig(t)
	if _, err := rig.sched.Schedule(rig.key, rig.seller, KindClose, nil); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	rig.ledger.clearErr = errors.New("signal clear rejected")
	if err := rig.sched.Cancel(rig.key, rig.seller); err == nil {
		t.Fatalf("expected clear failure to surface")
	}
	if _, ok := rig.sched.Operation(rig.key); !ok {
		t.Fatalf("failed cancel must keep the record for retry")
	}

	rig.ledger.clearErr = nil
	if err := rig.sched.Cancel(rig.key, rig.seller); err != nil {
		t.Fatalf("retry cancel: %v", err)
	}
	if _, ok := rig.sched.Operation(rig.key); ok {
		t.Fatalf("operation record survived retried cancel")
	}
}

func TestCancelBySchedulerIdentity(t *testing.T) {
	rig := newTestRig(t)
	if _, err := rig.sched.Schedule(rig.key, rig.seller, KindClose, nil); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if err := rig.sched.Cancel(rig.key, rig.identity); err != nil {
		t.Fatalf("cancel by scheduler identity: %v", err)
	}
}

func TestKindString(t *testing.T) {
	if KindClose.String() != "close" || KindReprice.String() != "reprice" || KindNone.String() != "none" {
		t.Fatalf("unexpected kind strings: %s %s %s", KindClose, KindReprice, KindNone)
	}
	if KindNone.Valid() || !KindClose.Valid() || !KindReprice.Valid() {
		t.Fatalf("kind validity wrong")
	}
}
