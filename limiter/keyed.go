package limiter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/htb"
)

// entry pairs a per-key Limiter with its last use for stale cleanup.
type entry[ID comparable] struct {
	lim        *Limiter[ID]
	lastAccess time.Time
}

// Keyed maintains an independent bucket tree per string key, built lazily
// from one topology validated up front. Typical keys are client IPs, user
// ids, or API keys; every key gets the full hierarchy, so a tenant's
// global budget and its per-endpoint budgets are enforced per key.
type Keyed[ID comparable] struct {
	mu      sync.RWMutex
	entries map[string]*entry[ID]
	buckets []htb.BucketConfig[ID]

	// Configuration
	cleanupInterval time.Duration
	shutdownTimeout time.Duration
	logger          *slog.Logger
	now             func() time.Time

	// State management
	ctx     context.Context
	cancel  context.CancelFunc
	running atomic.Bool
	wg      sync.WaitGroup

	// Observability metrics
	treesCreated atomic.Int64
	treesEvicted atomic.Int64
	allowedTotal atomic.Int64
	deniedTotal  atomic.Int64
}

// KeyedStats provides observability metrics for monitoring and debugging.
type KeyedStats struct {
	TreesCreated int64 // Total number of per-key trees created
	TreesEvicted int64 // Total number of stale trees evicted
	ActiveTrees  int   // Current number of live per-key trees
	Allowed      int64 // Total decisions that consumed tokens
	Denied       int64 // Total decisions that were refused
	IsRunning    bool  // Whether the cleanup goroutine is running
}

// KeyedOption configures a Keyed limiter.
type KeyedOption[ID comparable] func(*Keyed[ID])

// WithCleanupInterval sets how often stale per-key trees are evicted.
// Set to 0 to disable automatic cleanup.
func WithCleanupInterval[ID comparable](interval time.Duration) KeyedOption[ID] {
	return func(k *Keyed[ID]) {
		k.cleanupInterval = interval
	}
}

// WithShutdownTimeout sets the graceful shutdown timeout for Stop.
func WithShutdownTimeout[ID comparable](timeout time.Duration) KeyedOption[ID] {
	return func(k *Keyed[ID]) {
		if timeout > 0 {
			k.shutdownTimeout = timeout
		}
	}
}

// WithLogger sets the logger for lifecycle operations. Admission decisions
// are never logged.
func WithLogger[ID comparable](logger *slog.Logger) KeyedOption[ID] {
	return func(k *Keyed[ID]) {
		if logger != nil {
			k.logger = logger
		}
	}
}

// WithKeyedNow sets the clock shared by every per-key limiter and by the
// staleness bookkeeping. Defaults to time.Now.
func WithKeyedNow[ID comparable](now func() time.Time) KeyedOption[ID] {
	return func(k *Keyed[ID]) {
		if now != nil {
			k.now = now
		}
	}
}

// NewKeyed validates the topology once and returns a Keyed limiter.
// Call Start or Run to begin background cleanup of stale keys.
func NewKeyed[ID comparable](buckets []htb.BucketConfig[ID], opts ...KeyedOption[ID]) (*Keyed[ID], error) {
	if _, err := htb.New(buckets); err != nil {
		return nil, err
	}

	// Deep-copy the declarations so mutations through retained pointers
	// cannot invalidate what was just validated.
	cfgs := make([]htb.BucketConfig[ID], len(buckets))
	copy(cfgs, buckets)
	for i := range cfgs {
		if cfgs[i].Parent != nil {
			p := *cfgs[i].Parent
			cfgs[i].Parent = &p
		}
	}

	k := &Keyed[ID]{
		entries:         make(map[string]*entry[ID]),
		buckets:         cfgs,
		cleanupInterval: 5 * time.Minute,
		shutdownTimeout: 30 * time.Second,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:             time.Now,
	}

	for _, opt := range opts {
		opt(k)
	}

	return k, nil
}

// Allow attempts to consume a single token from bucket id under key.
func (k *Keyed[ID]) Allow(key string, id ID) Result {
	return k.AllowN(key, id, 1)
}

// AllowN attempts to consume n tokens from bucket id under key, creating
// the key's tree on first use.
func (k *Keyed[ID]) AllowN(key string, id ID, n int64) Result {
	res := k.limiter(key).AllowN(id, n)
	if res.Allowed {
		k.allowedTotal.Add(1)
	} else {
		k.deniedTotal.Add(1)
	}
	return res
}

// Status reports the state of bucket id under key without consuming
// tokens, creating the key's tree on first use.
func (k *Keyed[ID]) Status(key string, id ID) Result {
	return k.limiter(key).Status(id)
}

// Remove drops the key's tree immediately. The next request under key
// starts from full buckets again. Intended for administrative overrides.
func (k *Keyed[ID]) Remove(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	delete(k.entries, key)
}

// limiter returns the key's Limiter, building it on first use.
func (k *Keyed[ID]) limiter(key string) *Limiter[ID] {
	k.mu.Lock()
	defer k.mu.Unlock()

	e, ok := k.entries[key]
	if !ok {
		lim, err := New(k.buckets, WithNow[ID](k.now))
		if err != nil {
			// NewKeyed validated this exact topology and the declarations
			// are private copies, so failure here is unreachable.
			panic(fmt.Sprintf("limiter: keyed topology no longer valid: %v", err))
		}
		e = &entry[ID]{lim: lim}
		k.entries[key] = e
		k.treesCreated.Add(1)
	}
	e.lastAccess = k.now()
	return e.lim
}

// Start begins the background cleanup goroutine. This is a blocking
// operation that runs until the context is cancelled. Use Run for the
// errgroup pattern, or call Start in a goroutine.
func (k *Keyed[ID]) Start(ctx context.Context) error {
	k.mu.Lock()
	if k.cancel != nil {
		k.mu.Unlock()
		return fmt.Errorf("keyed limiter already started")
	}

	if k.cleanupInterval <= 0 {
		k.mu.Unlock()
		return fmt.Errorf("cleanup interval must be > 0, got %v (use WithCleanupInterval to configure)", k.cleanupInterval)
	}

	k.ctx, k.cancel = context.WithCancel(ctx)
	k.mu.Unlock()

	k.running.Store(true)
	defer k.running.Store(false)

	k.logger.InfoContext(k.ctx, "keyed limiter cleanup started",
		slog.Duration("cleanup_interval", k.cleanupInterval))

	ticker := time.NewTicker(k.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-k.ctx.Done():
			k.logger.InfoContext(context.Background(), "keyed limiter cleanup stopping")
			return k.ctx.Err()
		case <-ticker.C:
			k.cleanupWithWait()
		}
	}
}

// Stop gracefully shuts down the background cleanup with a timeout.
// Returns an error if the shutdown timeout is exceeded.
func (k *Keyed[ID]) Stop() error {
	k.mu.Lock()
	if k.cancel == nil {
		k.mu.Unlock()
		return fmt.Errorf("keyed limiter not started")
	}

	cancel := k.cancel
	k.cancel = nil
	k.mu.Unlock()

	// Cancel context to stop the main loop
	cancel()

	k.logger.InfoContext(context.Background(), "keyed limiter stopping, waiting for cleanup to complete",
		slog.Duration("timeout", k.shutdownTimeout))

	ctx, ctxCancel := context.WithTimeout(context.Background(), k.shutdownTimeout)
	defer ctxCancel()

	done := make(chan struct{})
	go func() {
		k.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		k.logger.InfoContext(context.Background(), "keyed limiter stopped cleanly")
		return nil
	case <-ctx.Done():
		k.logger.WarnContext(context.Background(), "keyed limiter shutdown timeout exceeded",
			slog.Duration("timeout", k.shutdownTimeout))
		return fmt.Errorf("shutdown timeout exceeded after %s", k.shutdownTimeout)
	}
}

// Run provides errgroup compatibility for coordinated lifecycle management.
// It returns a function that starts the cleanup, watches the context, and
// shuts down gracefully when the context is cancelled.
func (k *Keyed[ID]) Run(ctx context.Context) func() error {
	return func() error {
		errCh := make(chan error, 1)
		go func() {
			errCh <- k.Start(ctx)
		}()

		select {
		case <-ctx.Done():
			_ = k.Stop() // Ignore stop error in normal shutdown
			<-errCh      // Wait for Start() to exit
			return nil
		case err := <-errCh:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
	}
}

// cleanupWithWait wraps removeStale so Stop can wait for an in-progress sweep.
func (k *Keyed[ID]) cleanupWithWait() {
	k.mu.RLock()
	if k.cancel == nil {
		k.mu.RUnlock()
		return
	}
	k.wg.Add(1)
	k.mu.RUnlock()

	defer k.wg.Done()
	k.removeStale()
}

// removeStale evicts trees whose keys have been idle for over an hour.
// The threshold balances memory growth under churning key populations
// (per-IP limiting and the like) against discarding refill state of
// infrequently used but still active keys.
func (k *Keyed[ID]) removeStale() {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.now()
	const staleThreshold = 1 * time.Hour

	removed := 0
	for key, e := range k.entries {
		if now.Sub(e.lastAccess) > staleThreshold {
			delete(k.entries, key)
			removed++
		}
	}

	if removed > 0 {
		k.treesEvicted.Add(int64(removed))
		k.logger.InfoContext(context.Background(), "evicted stale limiter trees",
			slog.Int("count", removed))
	}
}

// Stats returns current statistics for observability and monitoring.
// This method is thread-safe and can be called at any time.
func (k *Keyed[ID]) Stats() KeyedStats {
	k.mu.RLock()
	isRunning := k.cancel != nil
	active := len(k.entries)
	k.mu.RUnlock()

	return KeyedStats{
		TreesCreated: k.treesCreated.Load(),
		TreesEvicted: k.treesEvicted.Load(),
		ActiveTrees:  active,
		Allowed:      k.allowedTotal.Load(),
		Denied:       k.deniedTotal.Load(),
		IsRunning:    isRunning,
	}
}

// Healthcheck validates that the keyed limiter is operational. Returns nil
// if healthy, or an error describing the health issue. Suitable for use in
// health check endpoints.
func (k *Keyed[ID]) Healthcheck(ctx context.Context) error {
	stats := k.Stats()

	// If cleanup is configured but not running, it's unhealthy
	if k.cleanupInterval > 0 && !stats.IsRunning {
		return errors.New("cleanup is configured but not running")
	}

	return nil
}
