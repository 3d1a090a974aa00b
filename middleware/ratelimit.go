package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrymomot/htb/limiter"
)

// RateLimitConfig configures the rate limiting middleware.
type RateLimitConfig[ID comparable] struct {
	// Skip defines a function to skip middleware execution for specific requests
	Skip func(r *http.Request) bool
	// Limiter is the keyed admission store shared by all requests (required)
	Limiter *limiter.Keyed[ID]
	// Bucket selects which bucket of the key's tree a request charges (required)
	Bucket func(r *http.Request) ID
	// Key groups requests into per-client trees (default: client IP)
	Key func(r *http.Request) string
	// Cost is the number of tokens a request consumes (default: 1)
	Cost func(r *http.Request) int64
	// ErrorHandler defines how to handle rate limit violations (default: 429 Too Many Requests)
	ErrorHandler func(w http.ResponseWriter, r *http.Request, res limiter.Result)
	// SetHeaders determines whether to include rate limit information in response headers
	SetHeaders bool
}

// RateLimit creates a rate limiting middleware with the provided configuration.
// Each key (typically a client IP) gets its own token bucket tree, so one
// client exhausting its budget never affects another. The Bucket selector
// maps a request onto the tree, which lets a single middleware enforce
// different budgets per endpoint class while a shared ancestor caps the
// client's total throughput.
//
// Panics if no limiter or bucket selector is provided.
//
// Basic usage:
//
//	keyed, err := limiter.NewKeyed([]htb.BucketConfig[string]{
//		{ID: "client", Rate: htb.PerMinute(600), Capacity: 100},
//		{ID: "reads", Parent: htb.Parent("client"), Rate: htb.PerSecond(50), Capacity: 50},
//		{ID: "writes", Parent: htb.Parent("client"), Rate: htb.PerSecond(5), Capacity: 10},
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	mux.Handle("/", middleware.RateLimit(middleware.RateLimitConfig[string]{
//		Limiter:    keyed,
//		SetHeaders: true,
//		Bucket: func(r *http.Request) string {
//			if r.Method == http.MethodGet {
//				return "reads"
//			}
//			return "writes"
//		},
//	})(handler))
func RateLimit[ID comparable](cfg RateLimitConfig[ID]) func(http.Handler) http.Handler {
	if cfg.Limiter == nil {
		panic("ratelimit middleware: limiter is required")
	}
	if cfg.Bucket == nil {
		panic("ratelimit middleware: bucket selector is required")
	}

	// Default to using client IP as the rate limiting key
	if cfg.Key == nil {
		cfg.Key = ClientIP
	}

	if cfg.Cost == nil {
		cfg.Cost = func(*http.Request) int64 { return 1 }
	}

	// Default error handler returns 429 with retry information
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(w http.ResponseWriter, r *http.Request, res limiter.Result) {
			if res.RetryAfter > 0 {
				w.Header().Set("Retry-After", strconv.FormatInt(ceilSeconds(res.RetryAfter), 10))
			}
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Skip != nil && cfg.Skip(r) {
				next.ServeHTTP(w, r)
				return
			}

			res := cfg.Limiter.AllowN(cfg.Key(r), cfg.Bucket(r), cfg.Cost(r))

			if cfg.SetHeaders {
				setRateLimitHeaders(w, res)
			}

			if !res.Allowed {
				cfg.ErrorHandler(w, r, res)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// setRateLimitHeaders adds standard rate limiting headers to the response.
//
// Headers added:
//   - X-RateLimit-Limit: capacity of the charged bucket
//   - X-RateLimit-Remaining: tokens remaining after this decision (clamped to 0)
//   - X-RateLimit-Reset: seconds until the bucket refills completely
//   - Retry-After: seconds to wait before retrying (only when blocked)
//
// Durations are rounded up to whole seconds so a client that waits the
// advertised time is guaranteed admission.
func setRateLimitHeaders(w http.ResponseWriter, res limiter.Result) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.FormatInt(res.Limit, 10))
	h.Set("X-RateLimit-Remaining", strconv.FormatInt(max(res.Remaining, 0), 10))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(ceilSeconds(res.ResetAfter), 10))

	if !res.Allowed && res.RetryAfter > 0 {
		h.Set("Retry-After", strconv.FormatInt(ceilSeconds(res.RetryAfter), 10))
	}
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	secs := int64(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}
