package lending

import "math/big"

var basisPoints = big.NewInt(10_000)

// Interest computes the interest owed on a loan after elapsed time units.
//
// The rate is expressed in basis points of principal amortized linearly over
// the planned duration, not over the actual elapsed time: the per-unit rate is
// fixed when the offer is created, so repaying early pays proportionally less
// than the full planned-duration interest.
//
//	interest = floor(elapsed * floor(principal * rateBps / duration) / 10000)
//
// Multiplication happens before division to minimize truncation error. The
// quoting path and the repayment path both call this function, so a previewed
// amount can never mismatch the amount charged for the same elapsed value.
func Interest(principal *big.Int, rateBps uint64, duration, elapsed int64) *big.Int {
	if principal == nil || principal.Sign() <= 0 || rateBps == 0 || duration <= 0 || elapsed <= 0 {
		return big.NewInt(0)
	}
	perDuration := new(big.Int).Mul(principal, new(big.Int).SetUint64(rateBps))
	perDuration.Quo(perDuration, big.NewInt(duration))
	owed := perDuration.Mul(perDuration, big.NewInt(elapsed))
	return owed.Quo(owed, basisPoints)
}
