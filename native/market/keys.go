package market

import (
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// DeriveOrderKey computes the deterministic identifier for a sell order from
// its immutable descriptor tuple. Two deposits that derive the same key are
// the same order and are merged. The key is never stored; it is recomputed on
// demand from the descriptor.
//
// The price contributes its 32-byte big-endian encoding so that byte-length
// ambiguity cannot produce colliding preimages across tuples.
func DeriveOrderKey(seller [20]byte, price *big.Int, asset, verifier, scheduler [20]byte) [32]byte {
	var priceBytes [32]byte
	if price != nil {
		price.FillBytes(priceBytes[:])
	}
	hash := ethcrypto.Keccak256Hash(seller[:], priceBytes[:], asset[:], verifier[:], scheduler[:])
	var key [32]byte
	copy(key[:], hash[:])
	return key
}
