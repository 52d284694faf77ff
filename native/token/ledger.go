package token

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	errNilState = errors.New("token ledger: state not configured")

	// ErrInsufficientBalance is returned when a transfer would overdraw the
	// sender.
	ErrInsufficientBalance = errors.New("token: insufficient balance")
)

type ledgerState interface {
	TokenBalance(asset, holder [20]byte) (*big.Int, error)
	SetTokenBalance(asset, holder [20]byte, balance *big.Int) error
}

// Ledger is an in-process fungible-token ledger used as the balance-transfer
// primitive by the daemon and by integration tests. It delivers exactly the
// requested amount with no transfer fees; the escrow engine never assumes
// more than that.
type Ledger struct {
	state ledgerState
}

// NewLedger creates a ledger over the supplied state backend.
func NewLedger(state ledgerState) *Ledger {
	return &Ledger{state: state}
}

// BalanceOf returns the holder's balance for the asset.
func (l *Ledger) BalanceOf(asset, holder [20]byte) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	return l.state.TokenBalance(asset, holder)
}

// Mint credits freshly issued units to the holder.
func (l *Ledger) Mint(asset, to [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("token: mint amount must be positive")
	}
	balance, err := l.state.TokenBalance(asset, to)
	if err != nil {
		return err
	}
	return l.state.SetTokenBalance(asset, to, new(big.Int).Add(balance, amount))
}

// Transfer moves units between holders, rejecting overdrafts.
func (l *Ledger) Transfer(asset, from, to [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("token: negative transfer amount")
	}
	if amount.Sign() == 0 {
		return nil
	}
	fromBalance, err := l.state.TokenBalance(asset, from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	toBalance, err := l.state.TokenBalance(asset, to)
	if err != nil {
		return err
	}
	if err := l.state.SetTokenBalance(asset, from, new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	return l.state.SetTokenBalance(asset, to, new(big.Int).Add(toBalance, amount))
}

// Vault binds the ledger to the escrow engine's custody address so it can
// serve as the engine's token backend.
type Vault struct {
	ledger  *Ledger
	custody [20]byte
}

// NewVault wraps the ledger for the given custody address.
func NewVault(ledger *Ledger, custody [20]byte) *Vault {
	return &Vault{ledger: ledger, custody: custody}
}

// BalanceOf implements the engine's token backend.
func (v *Vault) BalanceOf(asset, holder [20]byte) (*big.Int, error) {
	return v.ledger.BalanceOf(asset, holder)
}

// Transfer sends tokens out of custody.
func (v *Vault) Transfer(asset, to [20]byte, amount *big.Int) error {
	return v.ledger.Transfer(asset, v.custody, to, amount)
}
