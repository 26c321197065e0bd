package currency

import (
	"math"
	"math/big"
)

// DefaultEpsilon is the absolute tolerance for whole-unit amount comparison.
const DefaultEpsilon = 1e-8

// FromBaseUnits converts an integer base-unit amount (satoshis, lamports,
// token units) to a whole-unit value. Conversion always happens before any
// comparison against a declared amount.
func FromBaseUnits(amount int64, decimals int) float64 {
	return float64(amount) / math.Pow(10, float64(decimals))
}

// FromBigBaseUnits converts an arbitrary-precision base-unit amount (wei,
// uint256 token amounts) to a whole-unit value.
func FromBigBaseUnits(amount *big.Int, decimals int) float64 {
	if amount == nil {
		return 0
	}
	f := new(big.Float).SetInt(amount)
	scale := new(big.Float).SetFloat64(math.Pow(10, float64(decimals)))
	out, _ := new(big.Float).Quo(f, scale).Float64()
	return out
}

// AmountsMatch reports whether two whole-unit amounts are equal within an
// absolute epsilon.
func AmountsMatch(got, want, epsilon float64) bool {
	if epsilon <= 0 {
		epsilon = DefaultEpsilon
	}
	return math.Abs(got-want) <= epsilon
}

// RelativeDeviation returns |got-want| / want, or 0 when want is zero.
func RelativeDeviation(got, want float64) float64 {
	if want == 0 {
		return 0
	}
	return math.Abs(got-want) / math.Abs(want)
}
