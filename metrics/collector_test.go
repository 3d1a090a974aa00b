package metrics_test

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/htb"
	"github.com/dmitrymomot/htb/limiter"
	"github.com/dmitrymomot/htb/metrics"
)

// frozenClock returns a clock stuck at a fixed instant so collected
// values do not drift between setup and scrape.
func frozenClock() func() time.Time {
	now := time.Unix(1700000000, 0)
	return func() time.Time { return now }
}

func TestCollector(t *testing.T) {
	t.Parallel()

	lim, err := limiter.New([]htb.BucketConfig[string]{
		{ID: "global", Rate: htb.Rate{Tokens: 1500, Interval: 15 * time.Second}, Capacity: 0},
		{ID: "api", Parent: htb.Parent("global"), Rate: htb.PerSecond(250), Capacity: 250},
	}, limiter.WithNow[string](frozenClock()))
	require.NoError(t, err)

	require.True(t, lim.AllowN("api", 100).Allowed)

	expected := `
# HELP htb_bucket_available_tokens Tokens currently available in the bucket.
# TYPE htb_bucket_available_tokens gauge
htb_bucket_available_tokens{bucket="api"} 150
htb_bucket_available_tokens{bucket="global"} 0
# HELP htb_bucket_capacity_tokens Configured capacity of the bucket.
# TYPE htb_bucket_capacity_tokens gauge
htb_bucket_capacity_tokens{bucket="api"} 250
htb_bucket_capacity_tokens{bucket="global"} 0
# HELP htb_bucket_effective_rate_tokens_per_second Effective refill rate of the bucket after ancestor clamping.
# TYPE htb_bucket_effective_rate_tokens_per_second gauge
htb_bucket_effective_rate_tokens_per_second{bucket="api"} 100
htb_bucket_effective_rate_tokens_per_second{bucket="global"} 100
`
	require.NoError(t, testutil.CollectAndCompare(metrics.NewCollector(lim), strings.NewReader(expected)))
}

func TestCollectorWithBucketLabel(t *testing.T) {
	t.Parallel()

	const (
		root = iota
		leaf
	)

	lim, err := limiter.New([]htb.BucketConfig[int]{
		{ID: root, Rate: htb.PerSecond(10), Capacity: 10},
		{ID: leaf, Parent: htb.Parent(root), Rate: htb.PerSecond(5), Capacity: 5},
	}, limiter.WithNow[int](frozenClock()))
	require.NoError(t, err)

	names := map[int]string{root: "root", leaf: "leaf"}
	c := metrics.NewCollector(lim, metrics.WithBucketLabel[int](func(id int) string {
		return names[id]
	}))

	expected := `
# HELP htb_bucket_capacity_tokens Configured capacity of the bucket.
# TYPE htb_bucket_capacity_tokens gauge
htb_bucket_capacity_tokens{bucket="leaf"} 5
htb_bucket_capacity_tokens{bucket="root"} 10
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected), "htb_bucket_capacity_tokens"))
}

func TestKeyedCollector(t *testing.T) {
	t.Parallel()

	keyed, err := limiter.NewKeyed([]htb.BucketConfig[string]{
		{ID: "api", Rate: htb.PerSecond(250), Capacity: 250},
	}, limiter.WithKeyedNow[string](frozenClock()))
	require.NoError(t, err)

	require.True(t, keyed.AllowN("alice", "api", 200).Allowed)
	require.False(t, keyed.AllowN("alice", "api", 200).Allowed)
	require.True(t, keyed.AllowN("bob", "api", 100).Allowed)

	expected := `
# HELP htb_keyed_active_trees Per-key trees currently held in memory.
# TYPE htb_keyed_active_trees gauge
htb_keyed_active_trees 2
# HELP htb_keyed_allowed_total Total admission decisions that consumed tokens.
# TYPE htb_keyed_allowed_total counter
htb_keyed_allowed_total 2
# HELP htb_keyed_denied_total Total admission decisions that were refused.
# TYPE htb_keyed_denied_total counter
htb_keyed_denied_total 1
# HELP htb_keyed_trees_created_total Total per-key trees created.
# TYPE htb_keyed_trees_created_total counter
htb_keyed_trees_created_total 2
# HELP htb_keyed_trees_evicted_total Total stale per-key trees evicted by cleanup.
# TYPE htb_keyed_trees_evicted_total counter
htb_keyed_trees_evicted_total 0
`
	require.NoError(t, testutil.CollectAndCompare(metrics.NewKeyedCollector(keyed), strings.NewReader(expected)))
}

func TestCollectorsRegister(t *testing.T) {
	t.Parallel()

	lim, err := limiter.New([]htb.BucketConfig[string]{
		{ID: "api", Rate: htb.PerSecond(10), Capacity: 10},
	}, limiter.WithNow[string](frozenClock()))
	require.NoError(t, err)

	keyed, err := limiter.NewKeyed([]htb.BucketConfig[string]{
		{ID: "api", Rate: htb.PerSecond(10), Capacity: 10},
	}, limiter.WithKeyedNow[string](frozenClock()))
	require.NoError(t, err)

	registry := prometheus.NewRegistry()
	require.NoError(t, registry.Register(metrics.NewCollector(lim)))
	require.NoError(t, registry.Register(metrics.NewKeyedCollector(keyed)))

	families, err := registry.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 8)
}
