package mathhelp

import (
	"math"

	"golang.org/x/exp/constraints"
)

func BetweenInc[T constraints.Ordered](f, p, q T) bool {
	if p <= q {
		return p <= f && f <= q
	}
	return q <= f && f <= p
}

func Pow2(n int) float64 {
	return math.Ldexp(1, n)
}

// EuclidianMod yields the remainder of floor division, so the result
// follows the sign of m instead of the sign of d (as math.Mod does).
func EuclidianMod(d, m float64) float64 {
	r := math.Mod(d, m)
	if (r < 0 && m > 0) || (r > 0 && m < 0) {
		return r + m
	}
	return r
}

// AlmostEqual reports whether a and b are equal when their difference
// is rounded to the given number of decimals.
func AlmostEqual(a, b float64, decimals int) bool {
	p := math.Pow(10, float64(decimals))
	return math.Round((a-b)*p) == 0
}
