package market

import "testing"

func activeClaim(amount uint64, placedAt int64) Claim {
	return Claim{Recipient: newTestAddress(0x02), Amount: amount, Timestamp: placedAt}
}

func TestSweepClaimsNoHintsAppends(t *testing.T) {
	claims := []Claim{activeClaim(100, testEpoch)}
	res := sweepClaims(claims, nil, testEpoch+10, 3600)
	if res.reclaimed != 0 {
		t.Fatalf("reclaimed %d without hints", res.reclaimed)
	}
	if res.firstFree != 1 {
		t.Fatalf("expected append slot 1, got %d", res.firstFree)
	}
	if len(res.removed) != 0 {
		t.Fatalf("unexpected removals: %v", res.removed)
	}
}

func TestSweepClaimsSkipsActiveAndOutOfBounds(t *testing.T) {
	claims := []Claim{activeClaim(100, testEpoch), activeClaim(200, testEpoch)}
	res := sweepClaims(claims, []uint64{9, 1, 0}, testEpoch+10, 3600)
	if res.reclaimed != 0 {
		t.Fatalf("active slots reclaimed: %d", res.reclaimed)
	}
	if len(res.claims) != 2 {
		t.Fatalf("active slots mutated: %d", len(res.claims))
	}
	if res.firstFree != 2 {
		t.Fatalf("expected append slot 2, got %d", res.firstFree)
	}
}

func TestSweepClaimsPopsTail(t *testing.T) {
	old := testEpoch - 4000
	claims := []Claim{activeClaim(100, testEpoch), activeClaim(200, old), activeClaim(300, old)}
	res := sweepClaims(claims, []uint64{2, 1}, testEpoch, 3600)
	if res.reclaimed != 500 {
		t.Fatalf("expected 500 reclaimed, got %d", res.reclaimed)
	}
	if len(res.claims) != 1 {
		t.Fatalf("expected tail popped to 1 slot, got %d", len(res.claims))
	}
	if res.firstFree != 1 {
		t.Fatalf("expected append slot 1, got %d", res.firstFree)
	}
	if len(res.removed) != 2 {
		t.Fatalf("expected 2 removals, got %d", len(res.removed))
	}
}

func TestSweepClaimsZeroesInterior(t *testing.T) {
	old := testEpoch - 4000
	claims := []Claim{activeClaim(100, old), activeClaim(200, testEpoch)}
	res := sweepClaims(claims, []uint64{0}, testEpoch, 3600)
	if res.reclaimed != 100 {
		t.Fatalf("expected 100 reclaimed, got %d", res.reclaimed)
	}
	if res.firstFree != 0 {
		t.Fatalf("expected reusable slot 0, got %d", res.firstFree)
	}
	if res.claims[0] != (Claim{}) {
		t.Fatalf("interior slot not tombstoned: %+v", res.claims[0])
	}
	if len(res.claims) != 2 {
		t.Fatalf("interior sweep changed length: %d", len(res.claims))
	}
}

func TestSweepClaimsTombstoneReclaimsNothing(t *testing.T) {
	claims := []Claim{{}, activeClaim(200, testEpoch)}
	res := sweepClaims(claims, []uint64{0}, testEpoch, 3600)
	if res.reclaimed != 0 {
		t.Fatalf("tombstone reclaimed %d", res.reclaimed)
	}
	if len(res.removed) != 0 {
		t.Fatalf("tombstone recorded a removal")
	}
	if res.firstFree != 0 {
		t.Fatalf("tombstone slot should still be reusable, got %d", res.firstFree)
	}
}

func TestAllClaimsInactive(t *testing.T) {
	old := testEpoch - 4000
	if !allClaimsInactive(nil, testEpoch, 3600) {
		t.Fatalf("empty sequence should be inactive")
	}
	if !allClaimsInactive([]Claim{{}, activeClaim(100, old)}, testEpoch, 3600) {
		t.Fatalf("expired and tombstoned slots should be inactive")
	}
	if allClaimsInactive([]Claim{activeClaim(100, testEpoch)}, testEpoch+10, 3600) {
		t.Fatalf("live claim reported inactive")
	}
}
