// Package limiter turns the htb package's virtual-clock bucket trees into
// ordinary wall-clock rate limiters.
//
// The htb core owns no clock and no locks; this package supplies both.
// Limiter wraps one tree behind a mutex and a monotonic clock: every
// admission measures elapsed time, advances the tree, and consumes, all in
// one critical section. Keyed manages an independent tree per string key
// (client IP, user id, API key) with lazy construction and background
// cleanup of idle keys.
//
// # Single Tree
//
//	lim, err := limiter.New([]htb.BucketConfig[string]{
//		{ID: "global", Rate: htb.PerSecond(100), Capacity: 0},
//		{ID: "api", Parent: htb.Parent("global"), Rate: htb.PerSecond(250), Capacity: 250},
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	res := lim.AllowN("api", 5)
//	if !res.Allowed {
//		log.Printf("rate limited, retry after %s", res.RetryAfter)
//	}
//
// Result carries the decision plus the numbers clients want echoed back:
// capacity, remaining stock, retry and reset waits. RetryAfter is exact,
// not an estimate, because the underlying arithmetic is rational.
//
// # Per-Key Trees
//
//	keyed, err := limiter.NewKeyed(buckets)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Each client IP gets its own full hierarchy.
//	res := keyed.AllowN(clientIP, "api", 1)
//
// Keyed validates the topology once, then stamps out a tree per key on
// first use. Idle keys are evicted by a background sweep started with
// Start or Run:
//
//	g, ctx := errgroup.WithContext(ctx)
//	g.Go(keyed.Run(ctx))
//
// # Configuration
//
// Operational knobs load from the environment in the usual way:
//
//	var cfg limiter.Config
//	config.MustLoad(&cfg)
//	keyed, err := limiter.NewKeyedFromConfig(cfg, buckets)
//
// # Determinism in Tests
//
// Inject a clock to make admission sequences reproducible:
//
//	clock := time.Unix(0, 0)
//	lim, _ := limiter.New(buckets, limiter.WithNow[string](func() time.Time {
//		return clock
//	}))
//	clock = clock.Add(time.Second) // "one second later"
//
// # Concurrency
//
// Limiter and Keyed are safe for concurrent use. A Limiter serializes all
// admissions on one mutex, which is exactly the semantics hierarchical
// admission needs: advance-then-decide as one atomic step. Keyed shards
// naturally since every key owns an independent tree and lock.
package limiter
