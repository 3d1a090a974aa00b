package htb

import (
	"fmt"
	"math"
	"math/bits"
	"slices"
	"time"
)

// node holds one bucket's frozen parameters and mutable state. The
// effective rate is stored reduced, as num tokens per den nanoseconds, and
// rem carries fractional refill progress between Advance calls as a
// numerator over den.
type node struct {
	parent int // index of the parent node, -1 for roots
	rate   Rate
	num    uint64
	den    uint64
	cap    uint64
	stock  uint64
	rem    uint64 // always < den
}

// Tree is a frozen hierarchy of token buckets sharing one virtual clock.
//
// A Tree owns no clock, starts no goroutines, and takes no locks. The
// caller drives time explicitly through Advance and must serialize access:
// interleave Advance and Take calls from a single goroutine, or guard the
// Tree with a mutex. The limiter package provides a wall-clock,
// mutex-guarded wrapper for callers that want one.
//
// Every bucket starts full. Consumption is strictly local to the bucket
// named in the call; ancestors influence a bucket only through the
// effective refill rate fixed at construction.
type Tree[ID comparable] struct {
	nodes []node
	ids   []ID
	index map[ID]int
}

// lookup resolves id to its dense index. The topology is closed at
// construction, so a miss can only mean the caller built the id from the
// wrong source. That is a bug in the caller, surfaced immediately.
func (t *Tree[ID]) lookup(id ID) int {
	i, ok := t.index[id]
	if !ok {
		panic(fmt.Sprintf("htb: unknown bucket id: %v", id))
	}
	return i
}

// Advance moves the tree's virtual clock forward by dt, refilling every
// bucket at its effective rate. Refill is independent per bucket: tokens
// never flow between buckets.
//
// Accrual is exact. Fractional progress toward the next token carries over
// between calls, so splitting an interval across any number of Advance
// calls leaves exactly the same state as advancing once by the total:
//
//	t.Advance(a)
//	t.Advance(b) // state now identical to a single t.Advance(a + b)
//
// Durations dt <= 0 are no-ops. Cost is O(number of buckets) with no
// allocation.
func (t *Tree[ID]) Advance(dt time.Duration) {
	if dt <= 0 {
		return
	}
	d := uint64(dt)
	for i := range t.nodes {
		n := &t.nodes[i]

		// Accrued progress in 1/den token units: num*dt + rem, in 128 bits.
		hi, lo := bits.Mul64(n.num, d)
		var carry uint64
		lo, carry = bits.Add64(lo, n.rem, 0)
		hi += carry

		if hi >= n.den {
			// The whole-token count exceeds 64 bits, far beyond any
			// capacity. Saturate the stock; the remainder stays exact
			// because (hi·2^64 + lo) mod den == ((hi mod den)·2^64 + lo) mod den.
			_, n.rem = bits.Div64(hi%n.den, lo, n.den)
			n.stock = n.cap
			continue
		}

		whole, rem := bits.Div64(hi, lo, n.den)
		// The remainder advances even while the stock sits at capacity;
		// that is what keeps split and one-shot advances identical.
		n.rem = rem
		if whole >= n.cap-n.stock {
			n.stock = n.cap
		} else {
			n.stock += whole
		}
	}
}

// TakeN consumes n tokens from the bucket's current stock. It reports true
// and subtracts exactly n when the stock covers the request; otherwise it
// reports false and changes nothing at all. There is no partial
// consumption, and no other bucket is touched either way.
//
// n == 0 trivially succeeds. A request larger than the bucket's capacity
// simply reports false; use UntilAvailable to tell "not yet" from "never".
// Unknown ids and negative n panic.
func (t *Tree[ID]) TakeN(id ID, n int64) bool {
	b := &t.nodes[t.lookup(id)]
	if n < 0 {
		panic(fmt.Sprintf("htb: negative token count: %d", n))
	}
	if n == 0 {
		return true
	}
	if uint64(n) > b.stock {
		return false
	}
	b.stock -= uint64(n)
	return true
}

// Take consumes a single token: shorthand for TakeN(id, 1).
func (t *Tree[ID]) Take(id ID) bool {
	return t.TakeN(id, 1)
}

// Peek reports whether a single token is available, consuming nothing:
// shorthand for PeekN(id, 1).
func (t *Tree[ID]) Peek(id ID) bool {
	return t.PeekN(id, 1)
}

// PeekN reports whether TakeN(id, n) would currently succeed, consuming
// nothing. Unknown ids and negative n panic.
func (t *Tree[ID]) PeekN(id ID, n int64) bool {
	b := &t.nodes[t.lookup(id)]
	if n < 0 {
		panic(fmt.Sprintf("htb: negative token count: %d", n))
	}
	if n == 0 {
		return true
	}
	return uint64(n) <= b.stock
}

// Available returns the bucket's current whole-token stock.
func (t *Tree[ID]) Available(id ID) int64 {
	return int64(t.nodes[t.lookup(id)].stock)
}

// UntilAvailable returns the exact duration the virtual clock must still
// advance, with no consumption in between, before TakeN(id, n) would
// succeed. It returns (0, true) when the take would already succeed. The
// second result is false when the take can never succeed: n exceeds the
// bucket's capacity, or the required wait does not fit in a time.Duration.
//
// The bound is tight in both directions: advancing by the returned duration
// makes the take succeed, advancing by one nanosecond less does not.
func (t *Tree[ID]) UntilAvailable(id ID, n int64) (time.Duration, bool) {
	b := &t.nodes[t.lookup(id)]
	if n < 0 {
		panic(fmt.Sprintf("htb: negative token count: %d", n))
	}
	if n == 0 || uint64(n) <= b.stock {
		return 0, true
	}
	if uint64(n) > b.cap {
		return 0, false
	}

	// Smallest dt with floor((rem + num*dt)/den) >= needed is
	// ceil((needed*den - rem) / num), all in 128-bit arithmetic. The
	// numerator is positive because needed >= 1 and rem < den.
	needed := uint64(n) - b.stock
	hi, lo := bits.Mul64(needed, b.den)
	var borrow uint64
	lo, borrow = bits.Sub64(lo, b.rem, 0)
	hi -= borrow

	if hi >= b.num {
		return 0, false // quotient needs more than 64 bits
	}
	q, r := bits.Div64(hi, lo, b.num)
	if q > math.MaxInt64 || (q == math.MaxInt64 && r != 0) {
		return 0, false
	}
	if r != 0 {
		q++
	}
	return time.Duration(q), true
}

// Has reports whether id names a bucket in the tree.
func (t *Tree[ID]) Has(id ID) bool {
	_, ok := t.index[id]
	return ok
}

// Len returns the number of buckets in the tree.
func (t *Tree[ID]) Len() int {
	return len(t.nodes)
}

// IDs returns the bucket identifiers in construction order.
func (t *Tree[ID]) IDs() []ID {
	return slices.Clone(t.ids)
}

// Capacity returns the bucket's maximum token stock.
func (t *Tree[ID]) Capacity(id ID) int64 {
	return int64(t.nodes[t.lookup(id)].cap)
}

// EffectiveRate returns the refill rate actually applied to the bucket:
// the minimum of its configured rate and all of its ancestors' rates. The
// rate is returned in the form it was configured, so a bucket throttled by
// an ancestor reports that ancestor's rate verbatim.
func (t *Tree[ID]) EffectiveRate(id ID) Rate {
	return t.nodes[t.lookup(id)].rate
}

// Parent returns the id of the bucket's parent. The second result is false
// for root buckets.
func (t *Tree[ID]) Parent(id ID) (ID, bool) {
	p := t.nodes[t.lookup(id)].parent
	if p < 0 {
		var zero ID
		return zero, false
	}
	return t.ids[p], true
}
