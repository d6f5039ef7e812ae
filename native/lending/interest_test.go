package lending

import (
	"math/big"
	"testing"
)

func TestInterestDegenerateInputs(t *testing.T) {
	cases := []struct {
		name      string
		principal *big.Int
		rateBps   uint64
		duration  int64
		elapsed   int64
	}{
		{"nil principal", nil, 500, 100, 50},
		{"zero principal", big.NewInt(0), 500, 100, 50},
		{"negative principal", big.NewInt(-5), 500, 100, 50},
		{"zero rate", big.NewInt(1_000), 0, 100, 50},
		{"zero duration", big.NewInt(1_000), 500, 0, 50},
		{"zero elapsed", big.NewInt(1_000), 500, 100, 0},
		{"negative elapsed", big.NewInt(1_000), 500, 100, -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Interest(tc.principal, tc.rateBps, tc.duration, tc.elapsed); got.Sign() != 0 {
				t.Fatalf("expected zero interest, got %s", got)
			}
		})
	}
}

func TestInterestLinearAccrual(t *testing.T) {
	principal := big.NewInt(1_000)

	// 500 bps over a 100 unit term accrues 50 at full term, 25 at half.
	if got := Interest(principal, 500, 100, 50); got.Cmp(big.NewInt(25)) != 0 {
		t.Fatalf("half term: expected 25, got %s", got)
	}
	if got := Interest(principal, 500, 100, 100); got.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("full term: expected 50, got %s", got)
	}
}

func TestInterestFloorsTwice(t *testing.T) {
	// perUnit = floor(100*333/7) = 4757; floor(3*4757/10000) = 1.
	if got := Interest(big.NewInt(100), 333, 7, 3); got.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("expected 1, got %s", got)
	}
	// Small principals truncate to zero rather than rounding up.
	if got := Interest(big.NewInt(10), 250, 1_000, 100); got.Sign() != 0 {
		t.Fatalf("expected 0, got %s", got)
	}
}

func TestInterestMonotonicInElapsed(t *testing.T) {
	principal := big.NewInt(123_457)
	prev := big.NewInt(0)
	for elapsed := int64(0); elapsed <= 360; elapsed += 30 {
		got := Interest(principal, 799, 360, elapsed)
		if got.Cmp(prev) < 0 {
			t.Fatalf("interest decreased at elapsed=%d: %s < %s", elapsed, got, prev)
		}
		prev = got
	}
}

func TestInterestBeyondTermKeepsAccruing(t *testing.T) {
	// The calculator itself is pure; the engine enforces the expiry window.
	full := Interest(big.NewInt(1_000), 500, 100, 100)
	over := Interest(big.NewInt(1_000), 500, 100, 150)
	if over.Cmp(full) <= 0 {
		t.Fatalf("expected over-term interest above full-term: %s <= %s", over, full)
	}
}
