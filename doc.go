// Package htb implements hierarchical token bucket admission control over
// an explicit virtual clock.
//
// A fixed tree of token buckets is declared up front and frozen. Each
// bucket refills at an effective rate equal to the minimum rate along its
// ancestor chain, so a parent's rate caps the long-run throughput of every
// bucket beneath it while each bucket's own capacity bounds its bursts.
// The package owns no clock, starts no goroutines, and takes no locks:
// callers advance time explicitly and decide themselves how to serialize
// access. That makes admission decisions deterministic and replayable,
// which the limiter subpackage builds on to provide an ordinary wall-clock
// rate limiter.
//
// # Token Bucket Hierarchy
//
// Each bucket is declared with an id, an optional parent, a refill rate,
// and a capacity:
//  1. The rate is an exact ratio (tokens per interval), never a float.
//  2. The effective rate is min(own rate, parent's effective rate),
//     settled once at construction.
//  3. Refill accrues continuously at the effective rate, with fractional
//     progress carried between calls, and the stock saturates at capacity.
//  4. Consumption is all-or-nothing against a single bucket's stock and
//     never cascades to other buckets.
//
// A parent therefore shapes its children purely through rate inheritance:
// a zero-capacity root is a pure throttle that holds no tokens itself but
// bounds the refill of its whole subtree.
//
// # Usage
//
// Declare buckets parents-first, then drive the tree:
//
//	tree, err := htb.New([]htb.BucketConfig[string]{
//		{ID: "global", Rate: htb.Rate{Tokens: 1500, Interval: 15 * time.Second}},
//		{ID: "api", Parent: htb.Parent("global"), Rate: htb.PerSecond(250), Capacity: 250},
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	tree.Advance(time.Since(last)) // caller-owned clock
//	if tree.TakeN("api", 5) {
//		// admitted: 5 tokens consumed atomically
//	} else {
//		wait, ok := tree.UntilAvailable("api", 5)
//		// ok: retry after wait; !ok: the request can never succeed
//	}
//
// Identifiers are generic over any comparable type; small enums or ints
// work as well as strings:
//
//	tree, err := htb.New([]htb.BucketConfig[int]{...})
//
// # Exact Arithmetic
//
// All refill math is integer math. A rate of 1500 tokens per 15 seconds is
// exactly one token per 10ms: advancing by 77ms one thousand times yields
// exactly the same stock as advancing once by 77 seconds, with the
// sub-token remainder preserved bit-for-bit. There is no float rounding,
// no drift, and no dependence on call granularity. Intermediate products
// use 128-bit arithmetic (math/bits), so no representable rate, capacity,
// or duration can overflow; refill past capacity saturates.
//
// # Concurrency Contract
//
// A Tree is deliberately not safe for concurrent use. Admission control
// wants "advance, then decide" to be one atomic step, and only the caller
// knows the right scope for that atomicity. Wrap the Tree in a mutex, or
// confine it to one goroutine. The limiter package packages the common
// case: one mutex, one monotonic clock, one critical section per decision.
//
// # Error Handling
//
// Construction validates everything and returns wrapped sentinel errors
// (ErrDuplicateID, ErrUnknownParent, ErrInvalidRate, ErrInvalidCapacity,
// ErrNoBuckets); a Tree that constructs successfully can no longer fail.
// At runtime, an insufficient stock is an ordinary false return, while an
// unknown id or negative token count panics: the topology is closed at
// construction, so those can only be caller bugs, and they surface
// immediately rather than skewing admission decisions silently.
//
// # Performance Characteristics
//
//   - TakeN/Peek/Available: O(1), no allocation
//   - Advance: O(number of buckets), no allocation
//   - Construction: O(number of buckets), single pass
//
// The per-bucket state is a few machine words in one contiguous slice, so
// advancing even thousands of buckets stays in the microsecond range.
package htb
