package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"rampnet/native/market"
	"rampnet/native/scheduler"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	writeJSON(w, status, errorBody{Code: code, Message: err.Error()})
}

// writeEngineError maps the engine's typed failure reasons onto HTTP statuses
// so callers can decide whether to resubmit.
func writeEngineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := "internal"
	switch {
	case errors.Is(err, market.ErrOrderNotFound), errors.Is(err, scheduler.ErrOrderNotFound):
		status, code = http.StatusNotFound, "order_not_found"
	case errors.Is(err, market.ErrUnauthorized), errors.Is(err, scheduler.ErrUnauthorized):
		status, code = http.StatusForbidden, "unauthorized"
	case errors.Is(err, market.ErrNoDeposit):
		status, code = http.StatusBadRequest, "no_deposit"
	case errors.Is(err, market.ErrAmountMismatch):
		status, code = http.StatusBadRequest, "amount_mismatch"
	case errors.Is(err, market.ErrAssetNotAllowed):
		status, code = http.StatusForbidden, "asset_not_allowed"
	case errors.Is(err, market.ErrOrderClosing):
		status, code = http.StatusConflict, "order_closing"
	case errors.Is(err, market.ErrClaimTooLarge):
		status, code = http.StatusBadRequest, "claim_too_large"
	case errors.Is(err, market.ErrFeeExceedsAmount):
		status, code = http.StatusBadRequest, "fee_exceeds_amount"
	case errors.Is(err, market.ErrInsufficientCapacity):
		status, code = http.StatusConflict, "insufficient_capacity"
	case errors.Is(err, market.ErrClaimExpiredOrMissing):
		status, code = http.StatusConflict, "claim_expired_or_missing"
	case errors.Is(err, market.ErrProofKeyMismatch):
		status, code = http.StatusConflict, "proof_key_mismatch"
	case errors.Is(err, market.ErrFeeTooHigh):
		status, code = http.StatusConflict, "fee_too_high"
	case errors.Is(err, market.ErrVerifierUnknown):
		status, code = http.StatusBadRequest, "verifier_unknown"
	case errors.Is(err, market.ErrOrderNotCloseable):
		status, code = http.StatusConflict, "order_not_closeable"
	case errors.Is(err, market.ErrWithdrawTooLarge):
		status, code = http.StatusBadRequest, "withdraw_too_large"
	case errors.Is(err, market.ErrWithdrawNegative):
		status, code = http.StatusBadRequest, "withdraw_negative"
	case errors.Is(err, market.ErrReentrantCall):
		status, code = http.StatusConflict, "reentrant_call"
	case errors.Is(err, scheduler.ErrAlreadyScheduled):
		status, code = http.StatusConflict, "already_scheduled"
	case errors.Is(err, scheduler.ErrNotScheduled):
		status, code = http.StatusNotFound, "not_scheduled"
	case errors.Is(err, scheduler.ErrNotReady):
		status, code = http.StatusConflict, "not_ready"
	}
	writeError(w, status, code, err)
}

func decodeBody(w http.ResponseWriter, r *http.Request, out interface{}) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err)
		return false
	}
	return true
}

func parseAddress(value string) ([20]byte, error) {
	var addr [20]byte
	decoded, err := parseHex(value, 20)
	if err != nil {
		return addr, err
	}
	copy(addr[:], decoded)
	return addr, nil
}

func parseHash(value string) ([32]byte, error) {
	var hash [32]byte
	decoded, err := parseHex(value, 32)
	if err != nil {
		return hash, err
	}
	copy(hash[:], decoded)
	return hash, nil
}

func parseHex(value string, size int) ([]byte, error) {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		trimmed = trimmed[2:]
	}
	if len(trimmed) != size*2 {
		return nil, fmt.Errorf("expected %d bytes (got %d hex chars)", size, len(trimmed))
	}
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	return decoded, nil
}

func parseAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("malformed amount %q", value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return amount, nil
}
