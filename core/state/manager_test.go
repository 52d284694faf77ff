package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"rampnet/native/market"
	"rampnet/native/scheduler"
	"rampnet/storage"
)

func addr(fill byte) [20]byte {
	var a [20]byte
	for i := range a {
		a[i] = fill
	}
	return a
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(storage.NewMemDB())
}

func TestOrderRoundTrip(t *testing.T) {
	mgr := newTestManager(t)
	key := [32]byte{0x01}

	if _, ok := mgr.OrderGet(key); ok {
		t.Fatalf("unexpected order before put")
	}

	order := &market.Order{
		Seller:          addr(0x01),
		Price:           big.NewInt(100),
		Asset:           addr(0xA0),
		Verifier:        addr(0xE0),
		Scheduler:       addr(0xD0),
		Amount:          big.NewInt(1000),
		TotalReserved:   300,
		ScheduleCloseAt: 1_700_000_000,
		MaxClaimAmount:  500,
	}
	require.NoError(t, mgr.OrderPut(key, order))

	loaded, ok := mgr.OrderGet(key)
	require.True(t, ok)
	require.Equal(t, order, loaded)

	// Mutating the loaded copy must not leak back into storage.
	loaded.Amount.SetInt64(7)
	reloaded, ok := mgr.OrderGet(key)
	require.True(t, ok)
	require.Equal(t, int64(1000), reloaded.Amount.Int64())

	require.NoError(t, mgr.OrderDelete(key))
	_, ok = mgr.OrderGet(key)
	require.False(t, ok)
}

func TestOrderPutRejectsInvalid(t *testing.T) {
	mgr := newTestManager(t)
	err := mgr.OrderPut([32]byte{0x01}, &market.Order{Price: big.NewInt(0), Amount: big.NewInt(1)})
	require.Error(t, err)
}

func TestClaimsRoundTrip(t *testing.T) {
	mgr := newTestManager(t)
	key := [32]byte{0x02}

	claims, err := mgr.ClaimsGet(key)
	require.NoError(t, err)
	require.Empty(t, claims)

	stored := []market.Claim{
		{Recipient: addr(0x02), MaxFee: 10, Amount: 300, Timestamp: 1_700_000_000},
		{},
	}
	require.NoError(t, mgr.ClaimsPut(key, stored))
	claims, err = mgr.ClaimsGet(key)
	require.NoError(t, err)
	require.Equal(t, stored, claims)

	require.NoError(t, mgr.ClaimsDelete(key))
	claims, err = mgr.ClaimsGet(key)
	require.NoError(t, err)
	require.Empty(t, claims)
}

func TestCachedBalance(t *testing.T) {
	mgr := newTestManager(t)
	asset := addr(0xA0)

	balance, err := mgr.CachedBalance(asset)
	require.NoError(t, err)
	require.Zero(t, balance.Sign())

	require.NoError(t, mgr.SetCachedBalance(asset, big.NewInt(12345)))
	balance, err = mgr.CachedBalance(asset)
	require.NoError(t, err)
	require.Equal(t, int64(12345), balance.Int64())

	require.Error(t, mgr.SetCachedBalance(asset, big.NewInt(-1)))
}

func TestAllowListFlags(t *testing.T) {
	mgr := newTestManager(t)
	asset := addr(0xA0)
	caller := addr(0x77)

	allowed, err := mgr.AssetAllowed(asset)
	require.NoError(t, err)
	require.False(t, allowed)

	require.NoError(t, mgr.SetAssetAllowed(asset, true))
	allowed, err = mgr.AssetAllowed(asset)
	require.NoError(t, err)
	require.True(t, allowed)

	require.NoError(t, mgr.SetAssetAllowed(asset, false))
	allowed, err = mgr.AssetAllowed(asset)
	require.NoError(t, err)
	require.False(t, allowed)

	require.NoError(t, mgr.SetFrontDoorAllowed(caller, true))
	allowed, err = mgr.FrontDoorAllowed(caller)
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestOperationRoundTrip(t *testing.T) {
	mgr := newTestManager(t)
	key := [32]byte{0x03}

	_, ok := mgr.OperationGet(key)
	require.False(t, ok)
	require.Error(t, mgr.OperationPut(key, nil))

	op := &scheduler.Operation{
		OrderKey:    key,
		Kind:        scheduler.KindReprice,
		EffectiveAt: 1_700_003_600,
		NewPrice:    big.NewInt(250),
	}
	require.NoError(t, mgr.OperationPut(key, op))
	loaded, ok := mgr.OperationGet(key)
	require.True(t, ok)
	require.Equal(t, op, loaded)

	require.NoError(t, mgr.OperationDelete(key))
	_, ok = mgr.OperationGet(key)
	require.False(t, ok)
}

func TestTokenBalance(t *testing.T) {
	mgr := newTestManager(t)
	asset := addr(0xA0)
	holder := addr(0x05)

	balance, err := mgr.TokenBalance(asset, holder)
	require.NoError(t, err)
	require.Zero(t, balance.Sign())

	require.NoError(t, mgr.SetTokenBalance(asset, holder, big.NewInt(999)))
	balance, err = mgr.TokenBalance(asset, holder)
	require.NoError(t, err)
	require.Equal(t, int64(999), balance.Int64())

	// Distinct assets and holders never collide.
	other, err := mgr.TokenBalance(addr(0xA1), holder)
	require.NoError(t, err)
	require.Zero(t, other.Sign())
	other, err = mgr.TokenBalance(asset, addr(0x06))
	require.NoError(t, err)
	require.Zero(t, other.Sign())
}
