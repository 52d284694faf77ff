package market

// removedClaim records a slot reclaimed by the sweep so the engine can emit a
// deletion event per slot.
type removedClaim struct {
	index  uint64
	amount uint64
}

// sweepResult carries the outcome of one caller-directed expiry sweep.
// firstFree is the index a new claim may be written to; when it equals
// len(claims) the caller appends.
type sweepResult struct {
	claims    []Claim
	firstFree int
	reclaimed uint64
	removed   []removedClaim
}

// sweepClaims walks the caller-supplied candidate indices, reclaiming reserved
// capacity from inactive slots and locating a reusable slot for the next
// claim. Hints must be supplied in strictly decreasing order: tail slots are
// physically popped, which shrinks the sequence, and decreasing order keeps
// the remaining smaller indices valid. Interior inactive slots are zeroed in
// place and recorded as the first free slot. Out-of-bounds hints are skipped,
// so stale hints against an already-shrunk sequence are harmless. With no
// confirmed inactive candidate the first free slot defaults to an append.
func sweepClaims(claims []Claim, hints []uint64, now, window int64) sweepResult {
	res := sweepResult{claims: claims, firstFree: -1}
	for _, idx := range hints {
		if idx >= uint64(len(res.claims)) {
			continue
		}
		slot := res.claims[idx]
		if slot.Active(now, window) {
			continue
		}
		if slot.Timestamp != 0 {
			res.reclaimed += slot.Amount
			res.removed = append(res.removed, removedClaim{index: idx, amount: slot.Amount})
		}
		if int(idx) == len(res.claims)-1 {
			res.claims = res.claims[:idx]
		} else {
			res.claims[idx] = Claim{}
			res.firstFree = int(idx)
		}
	}
	if res.firstFree < 0 || res.firstFree > len(res.claims) {
		res.firstFree = len(res.claims)
	}
	return res
}

// allClaimsInactive reports whether no slot in the sequence still reserves
// capacity. This is the manual close-eligibility fallback; it scans the whole
// sequence, so orders with long claim histories should prefer the scheduled
// path.
func allClaimsInactive(claims []Claim, now, window int64) bool {
	for _, c := range claims {
		if c.Active(now, window) {
			return false
		}
	}
	return true
}
