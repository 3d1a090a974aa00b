package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrymomot/htb/limiter"
)

// Collector exposes per-bucket state of a single limiter tree as
// Prometheus gauges. Values are read from the limiter at scrape time, so
// the exported numbers always reflect the tree as of the scrape rather
// than a periodically copied snapshot.
//
// Metrics:
//   - htb_bucket_available_tokens: tokens currently available, by bucket
//   - htb_bucket_capacity_tokens: configured bucket capacity, by bucket
//   - htb_bucket_effective_rate_tokens_per_second: refill rate after
//     ancestor clamping, by bucket
type Collector[ID comparable] struct {
	lim   *limiter.Limiter[ID]
	label func(ID) string

	available *prometheus.Desc
	capacity  *prometheus.Desc
	rate      *prometheus.Desc
}

// CollectorOption configures a Collector.
type CollectorOption[ID comparable] func(*Collector[ID])

// WithBucketLabel sets how bucket ids are rendered into the "bucket"
// label. Defaults to fmt.Sprint.
func WithBucketLabel[ID comparable](label func(ID) string) CollectorOption[ID] {
	return func(c *Collector[ID]) {
		if label != nil {
			c.label = label
		}
	}
}

// NewCollector builds a Collector for the given limiter. Register it with
// a prometheus.Registry to expose the tree's state:
//
//	registry.MustRegister(metrics.NewCollector(lim))
func NewCollector[ID comparable](lim *limiter.Limiter[ID], opts ...CollectorOption[ID]) *Collector[ID] {
	c := &Collector[ID]{
		lim:   lim,
		label: func(id ID) string { return fmt.Sprint(id) },

		available: prometheus.NewDesc(
			"htb_bucket_available_tokens",
			"Tokens currently available in the bucket.",
			[]string{"bucket"}, nil,
		),
		capacity: prometheus.NewDesc(
			"htb_bucket_capacity_tokens",
			"Configured capacity of the bucket.",
			[]string{"bucket"}, nil,
		),
		rate: prometheus.NewDesc(
			"htb_bucket_effective_rate_tokens_per_second",
			"Effective refill rate of the bucket after ancestor clamping.",
			[]string{"bucket"}, nil,
		),
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Describe implements prometheus.Collector.
func (c *Collector[ID]) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.available
	ch <- c.capacity
	ch <- c.rate
}

// Collect implements prometheus.Collector.
func (c *Collector[ID]) Collect(ch chan<- prometheus.Metric) {
	for _, b := range c.lim.Snapshot() {
		label := c.label(b.ID)
		ch <- prometheus.MustNewConstMetric(c.available, prometheus.GaugeValue, float64(b.Available), label)
		ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(b.Capacity), label)
		ch <- prometheus.MustNewConstMetric(c.rate, prometheus.GaugeValue,
			float64(b.Rate.Tokens)/b.Rate.Interval.Seconds(), label)
	}
}

// KeyedCollector exposes aggregate statistics of a keyed limiter.
//
// Metrics:
//   - htb_keyed_allowed_total: admission decisions that consumed tokens
//   - htb_keyed_denied_total: admission decisions that were refused
//   - htb_keyed_trees_created_total: per-key trees created
//   - htb_keyed_trees_evicted_total: stale per-key trees evicted
//   - htb_keyed_active_trees: per-key trees currently live
type KeyedCollector[ID comparable] struct {
	keyed *limiter.Keyed[ID]

	allowed *prometheus.Desc
	denied  *prometheus.Desc
	created *prometheus.Desc
	evicted *prometheus.Desc
	active  *prometheus.Desc
}

// NewKeyedCollector builds a KeyedCollector for the given keyed limiter.
func NewKeyedCollector[ID comparable](keyed *limiter.Keyed[ID]) *KeyedCollector[ID] {
	return &KeyedCollector[ID]{
		keyed: keyed,

		allowed: prometheus.NewDesc(
			"htb_keyed_allowed_total",
			"Total admission decisions that consumed tokens.",
			nil, nil,
		),
		denied: prometheus.NewDesc(
			"htb_keyed_denied_total",
			"Total admission decisions that were refused.",
			nil, nil,
		),
		created: prometheus.NewDesc(
			"htb_keyed_trees_created_total",
			"Total per-key trees created.",
			nil, nil,
		),
		evicted: prometheus.NewDesc(
			"htb_keyed_trees_evicted_total",
			"Total stale per-key trees evicted by cleanup.",
			nil, nil,
		),
		active: prometheus.NewDesc(
			"htb_keyed_active_trees",
			"Per-key trees currently held in memory.",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *KeyedCollector[ID]) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.allowed
	ch <- c.denied
	ch <- c.created
	ch <- c.evicted
	ch <- c.active
}

// Collect implements prometheus.Collector.
func (c *KeyedCollector[ID]) Collect(ch chan<- prometheus.Metric) {
	stats := c.keyed.Stats()
	ch <- prometheus.MustNewConstMetric(c.allowed, prometheus.CounterValue, float64(stats.Allowed))
	ch <- prometheus.MustNewConstMetric(c.denied, prometheus.CounterValue, float64(stats.Denied))
	ch <- prometheus.MustNewConstMetric(c.created, prometheus.CounterValue, float64(stats.TreesCreated))
	ch <- prometheus.MustNewConstMetric(c.evicted, prometheus.CounterValue, float64(stats.TreesEvicted))
	ch <- prometheus.MustNewConstMetric(c.active, prometheus.GaugeValue, float64(stats.ActiveTrees))
}
