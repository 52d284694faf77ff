package state

import (
	"fmt"
	"math/big"
)

const prefixTokenBalance = "token/balance/"

func tokenKey(asset, holder [20]byte) []byte {
	combined := make([]byte, 0, len(asset)+len(holder))
	combined = append(combined, asset[:]...)
	combined = append(combined, holder[:]...)
	return keyFor(prefixTokenBalance, combined)
}

// TokenBalance returns the holder's balance for the asset; never-credited
// holders report zero.
func (m *Manager) TokenBalance(asset, holder [20]byte) (*big.Int, error) {
	balance := new(big.Int)
	if _, err := m.getJSON(tokenKey(asset, holder), balance); err != nil {
		return nil, err
	}
	return balance, nil
}

// SetTokenBalance overwrites the holder's balance for the asset.
func (m *Manager) SetTokenBalance(asset, holder [20]byte, balance *big.Int) error {
	if balance == nil {
		balance = big.NewInt(0)
	}
	if balance.Sign() < 0 {
		return fmt.Errorf("state: negative token balance")
	}
	return m.putJSON(tokenKey(asset, holder), balance)
}
