// Package metrics provides Prometheus collectors for limiter observability.
//
// Two collectors cover the two limiter shapes. Collector walks the
// buckets of a single tree and exports available tokens, capacity, and
// effective refill rate per bucket. KeyedCollector exports the aggregate
// counters of a keyed limiter: admissions, rejections, and the lifecycle
// of per-key trees.
//
// Both collectors read limiter state at scrape time and hold no state of
// their own, so registering one has no effect on admission throughput
// between scrapes.
//
// Usage:
//
//	registry := prometheus.NewRegistry()
//	registry.MustRegister(
//		metrics.NewCollector(lim),
//		metrics.NewKeyedCollector(keyed),
//	)
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
//
// Bucket ids become the "bucket" label via fmt.Sprint; supply
// WithBucketLabel to render custom id types:
//
//	metrics.NewCollector(lim, metrics.WithBucketLabel(func(id TenantID) string {
//		return id.Slug()
//	}))
package metrics
