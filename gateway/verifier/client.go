// Package verifier provides an HTTP client for an external zero-knowledge
// payment-proof verification service. The engine only consumes the verify,
// fee-quote, and order-registration capabilities; proof contents and
// cryptography stay on the remote side.
package verifier

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"
)

// Client implements the engine's PaymentVerifier contract against a remote
// verification gateway.
type Client struct {
	baseURL   string
	authToken string
	http      *http.Client
}

// NewClient creates a client for the gateway at baseURL. The auth token is
// optional and sent as a bearer credential when present.
func NewClient(baseURL, authToken string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		authToken: authToken,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type verifyRequest struct {
	Nullifier  string `json:"nullifier"`
	OrderIndex uint64 `json:"orderIndex"`
	ClaimIndex uint64 `json:"claimIndex"`
}

type verifyResponse struct {
	Facilitator string `json:"facilitator"`
	OrderKey    string `json:"orderKey"`
}

type feeRequest struct {
	Asset       string `json:"asset"`
	Price       string `json:"price"`
	ClaimAmount uint64 `json:"claimAmount"`
	Facilitator string `json:"facilitator"`
}

type feeResponse struct {
	Fee string `json:"fee"`
}

type registerRequest struct {
	OrderKey string `json:"orderKey"`
}

// VerifyPayment submits the nullifier and claim coordinates for proof
// verification. The gateway consumes the nullifier at most once globally.
func (c *Client) VerifyPayment(nullifier [32]byte, orderIndex, claimIndex uint64) ([20]byte, [32]byte, error) {
	var facilitator [20]byte
	var orderKey [32]byte
	req := verifyRequest{
		Nullifier:  hex.EncodeToString(nullifier[:]),
		OrderIndex: orderIndex,
		ClaimIndex: claimIndex,
	}
	var resp verifyResponse
	if err := c.post("/v1/verify", req, &resp); err != nil {
		return facilitator, orderKey, err
	}
	if resp.Facilitator != "" {
		decoded, err := hex.DecodeString(strings.TrimPrefix(resp.Facilitator, "0x"))
		if err != nil || len(decoded) != 20 {
			return facilitator, orderKey, fmt.Errorf("verifier: malformed facilitator %q", resp.Facilitator)
		}
		copy(facilitator[:], decoded)
	}
	decoded, err := hex.DecodeString(strings.TrimPrefix(resp.OrderKey, "0x"))
	if err != nil || len(decoded) != 32 {
		return facilitator, orderKey, fmt.Errorf("verifier: malformed order key %q", resp.OrderKey)
	}
	copy(orderKey[:], decoded)
	return facilitator, orderKey, nil
}

// QuoteFacilitatorFee resolves the fee schedule for the facilitator, in token
// units.
func (c *Client) QuoteFacilitatorFee(asset [20]byte, price *big.Int, claimAmount uint64, facilitator [20]byte) (*big.Int, error) {
	req := feeRequest{
		Asset:       hex.EncodeToString(asset[:]),
		ClaimAmount: claimAmount,
		Facilitator: hex.EncodeToString(facilitator[:]),
	}
	if price != nil {
		req.Price = price.String()
	}
	var resp feeResponse
	if err := c.post("/v1/fee", req, &resp); err != nil {
		return nil, err
	}
	fee, ok := new(big.Int).SetString(strings.TrimSpace(resp.Fee), 10)
	if !ok {
		return nil, fmt.Errorf("verifier: malformed fee %q", resp.Fee)
	}
	return fee, nil
}

// RegisterOrder primes the gateway's per-order anti-replay counter for a
// freshly derived order key.
func (c *Client) RegisterOrder(orderKey [32]byte) error {
	return c.post("/v1/orders", registerRequest{OrderKey: hex.EncodeToString(orderKey[:])}, nil)
}

func (c *Client) post(path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("verifier: encode request: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("verifier: %s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("verifier: decode response: %w", err)
	}
	return nil
}
