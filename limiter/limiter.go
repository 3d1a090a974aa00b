package limiter

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/htb"
)

// Result reports the outcome of one admission decision.
type Result struct {
	// Allowed reports whether the requested tokens were consumed.
	Allowed bool
	// Limit is the capacity of the bucket consulted.
	Limit int64
	// Remaining is the bucket's token stock after the decision.
	Remaining int64
	// RetryAfter is how long to wait before the same request would be
	// admitted. Zero when the request was allowed, and zero when it can
	// never be admitted because it asks for more than the bucket's capacity.
	RetryAfter time.Duration
	// ResetAfter is how long until the bucket is back at full capacity.
	ResetAfter time.Duration
}

// Stats provides admission counters for observability.
type Stats struct {
	Allowed int64 // decisions that consumed tokens
	Denied  int64 // decisions that were refused
}

// Limiter drives one htb.Tree from a wall clock behind a mutex.
//
// Every admission is a single critical section: measure the elapsed time,
// advance the tree, then consume. The clock defaults to time.Now, whose
// monotonic reading keeps wall-clock jumps from inflating or starving
// refill.
type Limiter[ID comparable] struct {
	mu   sync.Mutex
	tree *htb.Tree[ID]
	now  func() time.Time
	last time.Time

	allowed atomic.Int64
	denied  atomic.Int64
}

// Option configures a Limiter.
type Option[ID comparable] func(*Limiter[ID])

// WithNow sets the clock used to measure elapsed time between admissions.
// Defaults to time.Now; inject a fake clock in tests for determinism.
func WithNow[ID comparable](now func() time.Time) Option[ID] {
	return func(l *Limiter[ID]) {
		if now != nil {
			l.now = now
		}
	}
}

// New validates the topology and returns a ready Limiter. Buckets start
// full, so an initial burst up to capacity is admitted immediately.
func New[ID comparable](buckets []htb.BucketConfig[ID], opts ...Option[ID]) (*Limiter[ID], error) {
	tree, err := htb.New(buckets)
	if err != nil {
		return nil, err
	}

	l := &Limiter[ID]{
		tree: tree,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.last = l.now()

	return l, nil
}

// Allow attempts to consume a single token from bucket id.
func (l *Limiter[ID]) Allow(id ID) Result {
	return l.AllowN(id, 1)
}

// AllowN advances the clock and attempts to consume n tokens from bucket
// id as one atomic step. Unknown ids and negative n panic, matching the
// underlying tree.
func (l *Limiter[ID]) AllowN(id ID, n int64) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.advance()
	allowed := l.tree.TakeN(id, n)
	if allowed {
		l.allowed.Add(1)
	} else {
		l.denied.Add(1)
	}
	return l.result(id, n, allowed)
}

// Status reports the bucket's state after advancing the clock, consuming
// nothing. Allowed reflects whether a single token is available.
func (l *Limiter[ID]) Status(id ID) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.advance()
	return l.result(id, 1, l.tree.Peek(id))
}

// Available returns the bucket's token stock after advancing the clock.
func (l *Limiter[ID]) Available(id ID) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.advance()
	return l.tree.Available(id)
}

// BucketStatus is one bucket's entry in a Snapshot.
type BucketStatus[ID comparable] struct {
	ID        ID
	Capacity  int64
	Available int64
	Rate      htb.Rate // effective refill rate
}

// Snapshot advances the clock and returns every bucket's state in
// construction order. Intended for metrics scrapes and debugging.
func (l *Limiter[ID]) Snapshot() []BucketStatus[ID] {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.advance()
	out := make([]BucketStatus[ID], 0, l.tree.Len())
	for _, id := range l.tree.IDs() {
		out = append(out, BucketStatus[ID]{
			ID:        id,
			Capacity:  l.tree.Capacity(id),
			Available: l.tree.Available(id),
			Rate:      l.tree.EffectiveRate(id),
		})
	}
	return out
}

// Stats returns admission counters. Safe to call from any goroutine.
func (l *Limiter[ID]) Stats() Stats {
	return Stats{
		Allowed: l.allowed.Load(),
		Denied:  l.denied.Load(),
	}
}

// advance moves the tree forward by the elapsed wall time. Called with
// l.mu held. l.last is a high-water mark: a clock reading earlier than the
// previous one counts as zero elapsed time, and refill resumes only once
// the clock passes the mark again.
func (l *Limiter[ID]) advance() {
	now := l.now()
	if elapsed := now.Sub(l.last); elapsed > 0 {
		l.tree.Advance(elapsed)
		l.last = now
	}
}

// result assembles a Result for bucket id after a decision on n tokens.
// Called with l.mu held.
func (l *Limiter[ID]) result(id ID, n int64, allowed bool) Result {
	res := Result{
		Allowed:   allowed,
		Limit:     l.tree.Capacity(id),
		Remaining: l.tree.Available(id),
	}
	if !allowed {
		if wait, ok := l.tree.UntilAvailable(id, n); ok {
			res.RetryAfter = wait
		}
	}
	if reset, ok := l.tree.UntilAvailable(id, res.Limit); ok {
		res.ResetAfter = reset
	}
	return res
}
