// Package middleware provides HTTP middleware for enforcing hierarchical
// rate limits on standard net/http handlers.
//
// The middleware charges every request against a per-client token bucket
// tree managed by the limiter package. A bucket selector maps requests
// onto tree buckets, so a single middleware instance can enforce separate
// budgets for different endpoint classes while a shared ancestor bucket
// caps each client's total throughput.
//
// # Rate Limiting Middleware
//
// RateLimit wraps any http.Handler. The only required configuration is
// the keyed limiter and the bucket selector:
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
//	handler := middleware.RateLimit(middleware.RateLimitConfig[string]{
//		Limiter:    keyed,
//		SetHeaders: true,
//		Bucket: func(r *http.Request) string {
//			if r.Method == http.MethodGet {
//				return "reads"
//			}
//			return "writes"
//		},
//	})(mux)
//
// Requests are grouped into per-client trees by the Key function, which
// defaults to ClientIP. Override it to limit by API key, account, or any
// other request attribute:
//
//	cfg.Key = func(r *http.Request) string {
//		return r.Header.Get("X-API-Key")
//	}
//
// Expensive operations can charge more than one token per request:
//
//	cfg.Cost = func(r *http.Request) int64 {
//		if r.URL.Path == "/export" {
//			return 25
//		}
//		return 1
//	}
//
// # Client Attribution
//
// ClientIP resolves the originating client address behind proxies, load
// balancers, and CDNs. It checks CF-Connecting-IP, DO-Connecting-IP,
// X-Forwarded-For, and X-Real-IP in that order before falling back to the
// connection's remote address, validating and normalizing every candidate.
//
// # Response Headers
//
// With SetHeaders enabled, responses carry the de facto standard headers:
// X-RateLimit-Limit, X-RateLimit-Remaining, and X-RateLimit-Reset on every
// decision, plus Retry-After on rejections. Clients can implement backoff
// from the headers alone without parsing response bodies.
//
// # Rejections
//
// Rejected requests receive a plain 429 Too Many Requests with a
// Retry-After header by default. Supply an ErrorHandler to render a
// custom body; the handler receives the full admission Result including
// the exact wait duration.
package middleware
