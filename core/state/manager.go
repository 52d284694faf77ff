package state

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"rampnet/native/market"
	"rampnet/native/scheduler"
	"rampnet/storage"
)

// Key prefixes for the persisted layout. Every record is JSON-encoded under a
// prefix plus the hex form of its identifier.
const (
	prefixOrder       = "market/order/"
	prefixClaims      = "market/claims/"
	prefixBalance     = "market/balance/"
	prefixAssetAllow  = "market/allow/asset/"
	prefixCallerAllow = "market/allow/caller/"
	prefixOperation   = "sched/op/"
)

// Manager persists the market engine's and scheduler's keyed state on a
// storage.Database. It satisfies both engines' state interfaces; records are
// cloned on read so callers never alias stored values.
type Manager struct {
	db storage.Database
}

// NewManager wraps the supplied database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func keyFor(prefix string, id []byte) []byte {
	return []byte(prefix + hex.EncodeToString(id))
}

func (m *Manager) getJSON(key []byte, out interface{}) (bool, error) {
	raw, err := m.db.Get(key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("state: decode %s: %w", string(key), err)
	}
	return true, nil
}

func (m *Manager) putJSON(key []byte, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("state: encode %s: %w", string(key), err)
	}
	return m.db.Put(key, raw)
}

// OrderPut sanitizes and stores the order record.
func (m *Manager) OrderPut(id [32]byte, order *market.Order) error {
	sanitized, err := market.SanitizeOrder(order)
	if err != nil {
		return err
	}
	return m.putJSON(keyFor(prefixOrder, id[:]), sanitized)
}

// OrderGet loads the order record for the key, if present.
func (m *Manager) OrderGet(id [32]byte) (*market.Order, bool) {
	var order market.Order
	ok, err := m.getJSON(keyFor(prefixOrder, id[:]), &order)
	if err != nil || !ok {
		return nil, false
	}
	return order.Clone(), true
}

// OrderDelete removes the order record.
func (m *Manager) OrderDelete(id [32]byte) error {
	return m.db.Delete(keyFor(prefixOrder, id[:]))
}

// ClaimsGet loads the order's claim sequence; absence is an empty sequence.
func (m *Manager) ClaimsGet(id [32]byte) ([]market.Claim, error) {
	var claims []market.Claim
	if _, err := m.getJSON(keyFor(prefixClaims, id[:]), &claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// ClaimsPut stores the order's claim sequence.
func (m *Manager) ClaimsPut(id [32]byte, claims []market.Claim) error {
	if claims == nil {
		claims = []market.Claim{}
	}
	return m.putJSON(keyFor(prefixClaims, id[:]), claims)
}

// ClaimsDelete removes the order's claim sequence.
func (m *Manager) ClaimsDelete(id [32]byte) error {
	return m.db.Delete(keyFor(prefixClaims, id[:]))
}

// CachedBalance returns the engine's last-observed custody balance for the
// asset. Never-observed assets report zero.
func (m *Manager) CachedBalance(asset [20]byte) (*big.Int, error) {
	balance := new(big.Int)
	if _, err := m.getJSON(keyFor(prefixBalance, asset[:]), balance); err != nil {
		return nil, err
	}
	return balance, nil
}

// SetCachedBalance records the last-observed custody balance for the asset.
func (m *Manager) SetCachedBalance(asset [20]byte, balance *big.Int) error {
	if balance == nil {
		balance = big.NewInt(0)
	}
	if balance.Sign() < 0 {
		return fmt.Errorf("state: negative cached balance")
	}
	return m.putJSON(keyFor(prefixBalance, asset[:]), balance)
}

// AssetAllowed reports whether the asset is on the accepted-asset allow list.
func (m *Manager) AssetAllowed(asset [20]byte) (bool, error) {
	return m.flag(keyFor(prefixAssetAllow, asset[:]))
}

// SetAssetAllowed mutates the accepted-asset allow list.
func (m *Manager) SetAssetAllowed(asset [20]byte, allowed bool) error {
	return m.setFlag(keyFor(prefixAssetAllow, asset[:]), allowed)
}

// FrontDoorAllowed reports whether the caller may reserve on behalf of other
// recipients.
func (m *Manager) FrontDoorAllowed(caller [20]byte) (bool, error) {
	return m.flag(keyFor(prefixCallerAllow, caller[:]))
}

// SetFrontDoorAllowed mutates the front-door caller allow list.
func (m *Manager) SetFrontDoorAllowed(caller [20]byte, allowed bool) error {
	return m.setFlag(keyFor(prefixCallerAllow, caller[:]), allowed)
}

func (m *Manager) flag(key []byte) (bool, error) {
	var allowed bool
	if _, err := m.getJSON(key, &allowed); err != nil {
		return false, err
	}
	return allowed, nil
}

func (m *Manager) setFlag(key []byte, allowed bool) error {
	if !allowed {
		return m.db.Delete(key)
	}
	return m.putJSON(key, true)
}

// OperationPut stores a scheduled operation for the order key.
func (m *Manager) OperationPut(id [32]byte, op *scheduler.Operation) error {
	if op == nil {
		return fmt.Errorf("state: nil scheduled operation")
	}
	return m.putJSON(keyFor(prefixOperation, id[:]), op)
}

// OperationGet loads the scheduled operation for the order key, if present.
func (m *Manager) OperationGet(id [32]byte) (*scheduler.Operation, bool) {
	var op scheduler.Operation
	ok, err := m.getJSON(keyFor(prefixOperation, id[:]), &op)
	if err != nil || !ok {
		return nil, false
	}
	return op.Clone(), true
}

// OperationDelete removes the scheduled operation for the order key.
func (m *Manager) OperationDelete(id [32]byte) error {
	return m.db.Delete(keyFor(prefixOperation, id[:]))
}
