package htb

import (
	"fmt"
	"math/bits"
	"time"
)

// Rate describes token generation as an exact ratio: Tokens per Interval.
//
// Rates are never converted to floating point. Comparison and refill
// arithmetic use integer cross-multiplication on 128-bit intermediates, so
// two rates compare equal exactly when their ratios are equal and refill
// accrual never drifts, no matter how finely time is sliced.
type Rate struct {
	// Tokens is the number of tokens generated every Interval. Must be positive.
	Tokens int64

	// Interval is the period over which Tokens are generated. Must be positive.
	Interval time.Duration
}

// PerSecond returns a Rate generating n tokens per second.
func PerSecond(n int64) Rate {
	return Rate{Tokens: n, Interval: time.Second}
}

// PerMinute returns a Rate generating n tokens per minute.
func PerMinute(n int64) Rate {
	return Rate{Tokens: n, Interval: time.Minute}
}

// PerHour returns a Rate generating n tokens per hour.
func PerHour(n int64) Rate {
	return Rate{Tokens: n, Interval: time.Hour}
}

// String returns the rate in "tokens/interval" form, e.g. "250/1s".
// The format round-trips through config.ParseRate.
func (r Rate) String() string {
	return fmt.Sprintf("%d/%s", r.Tokens, r.Interval)
}

// valid reports whether the rate can drive refill arithmetic.
func (r Rate) valid() bool {
	return r.Tokens > 0 && r.Interval > 0
}

// less reports whether r generates tokens strictly slower than other.
// Exact comparison: a/b < c/d iff a*d < c*b. Products are computed in
// 128 bits, so no representable pair of rates can overflow.
func (r Rate) less(other Rate) bool {
	lhi, llo := bits.Mul64(uint64(r.Tokens), uint64(other.Interval))
	rhi, rlo := bits.Mul64(uint64(other.Tokens), uint64(r.Interval))
	if lhi != rhi {
		return lhi < rhi
	}
	return llo < rlo
}

// reduced returns the rate as tokens per nanosecond in lowest terms.
// Equal rates reduce to the same pair, and smaller terms keep the refill
// intermediates small.
func (r Rate) reduced() (num, den uint64) {
	num, den = uint64(r.Tokens), uint64(r.Interval)
	g := gcd(num, den)
	return num / g, den / g
}

func gcd(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
