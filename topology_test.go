package htb_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/htb"
)

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	valid := htb.Rate{Tokens: 100, Interval: time.Second}

	t.Run("rejects empty bucket list", func(t *testing.T) {
		tree, err := htb.New[string](nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, htb.ErrNoBuckets)
		assert.Nil(t, tree)
	})

	t.Run("rejects duplicate id", func(t *testing.T) {
		tree, err := htb.New([]htb.BucketConfig[string]{
			{ID: "a", Rate: valid, Capacity: 10},
			{ID: "a", Rate: valid, Capacity: 10},
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, htb.ErrDuplicateID)
		assert.ErrorContains(t, err, "a")
		assert.Nil(t, tree)
	})

	t.Run("rejects unknown parent", func(t *testing.T) {
		tree, err := htb.New([]htb.BucketConfig[string]{
			{ID: "a", Parent: htb.Parent("nope"), Rate: valid, Capacity: 10},
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, htb.ErrUnknownParent)
		assert.ErrorContains(t, err, "nope")
		assert.Nil(t, tree)
	})

	t.Run("rejects forward parent reference", func(t *testing.T) {
		// Parents must appear before their children in the list.
		_, err := htb.New([]htb.BucketConfig[string]{
			{ID: "child", Parent: htb.Parent("root"), Rate: valid, Capacity: 10},
			{ID: "root", Rate: valid, Capacity: 10},
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, htb.ErrUnknownParent)
	})

	t.Run("rejects self parent", func(t *testing.T) {
		_, err := htb.New([]htb.BucketConfig[string]{
			{ID: "a", Parent: htb.Parent("a"), Rate: valid, Capacity: 10},
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, htb.ErrUnknownParent)
	})

	t.Run("rejects invalid rates", func(t *testing.T) {
		bad := []htb.Rate{
			{},
			{Tokens: 0, Interval: time.Second},
			{Tokens: -5, Interval: time.Second},
			{Tokens: 5, Interval: 0},
			{Tokens: 5, Interval: -time.Second},
		}
		for _, rate := range bad {
			_, err := htb.New([]htb.BucketConfig[string]{
				{ID: "a", Rate: rate, Capacity: 10},
			})
			require.Error(t, err, "rate %s", rate)
			assert.ErrorIs(t, err, htb.ErrInvalidRate, "rate %s", rate)
		}
	})

	t.Run("rejects negative capacity", func(t *testing.T) {
		_, err := htb.New([]htb.BucketConfig[string]{
			{ID: "a", Rate: valid, Capacity: -1},
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, htb.ErrInvalidCapacity)
	})

	t.Run("reports first violation in list order", func(t *testing.T) {
		_, err := htb.New([]htb.BucketConfig[string]{
			{ID: "a", Rate: valid, Capacity: 10},
			{ID: "b", Rate: htb.Rate{}, Capacity: 10},
			{ID: "a", Rate: valid, Capacity: 10},
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, htb.ErrInvalidRate)
		assert.NotErrorIs(t, err, htb.ErrDuplicateID)
	})
}

func TestNew_Topology(t *testing.T) {
	t.Parallel()

	t.Run("buckets start full", func(t *testing.T) {
		tree, err := htb.New([]htb.BucketConfig[string]{
			{ID: "root", Rate: htb.PerSecond(100), Capacity: 500},
			{ID: "child", Parent: htb.Parent("root"), Rate: htb.PerSecond(10), Capacity: 50},
		})
		require.NoError(t, err)

		assert.Equal(t, int64(500), tree.Available("root"))
		assert.Equal(t, int64(50), tree.Available("child"))
	})

	t.Run("preserves construction order", func(t *testing.T) {
		tree, err := htb.New([]htb.BucketConfig[string]{
			{ID: "root", Rate: htb.PerSecond(100), Capacity: 10},
			{ID: "b", Parent: htb.Parent("root"), Rate: htb.PerSecond(10), Capacity: 10},
			{ID: "a", Parent: htb.Parent("root"), Rate: htb.PerSecond(10), Capacity: 10},
		})
		require.NoError(t, err)

		assert.Equal(t, 3, tree.Len())
		assert.Equal(t, []string{"root", "b", "a"}, tree.IDs())
	})

	t.Run("resolves parents", func(t *testing.T) {
		tree, err := htb.New([]htb.BucketConfig[string]{
			{ID: "root", Rate: htb.PerSecond(100), Capacity: 10},
			{ID: "mid", Parent: htb.Parent("root"), Rate: htb.PerSecond(50), Capacity: 10},
			{ID: "leaf", Parent: htb.Parent("mid"), Rate: htb.PerSecond(25), Capacity: 10},
		})
		require.NoError(t, err)

		_, ok := tree.Parent("root")
		assert.False(t, ok)

		p, ok := tree.Parent("leaf")
		require.True(t, ok)
		assert.Equal(t, "mid", p)

		p, ok = tree.Parent("mid")
		require.True(t, ok)
		assert.Equal(t, "root", p)
	})

	t.Run("allows multiple roots", func(t *testing.T) {
		tree, err := htb.New([]htb.BucketConfig[string]{
			{ID: "tenant-a", Rate: htb.PerSecond(100), Capacity: 100},
			{ID: "tenant-b", Rate: htb.PerSecond(200), Capacity: 200},
			{ID: "a-api", Parent: htb.Parent("tenant-a"), Rate: htb.PerSecond(500), Capacity: 50},
		})
		require.NoError(t, err)

		assert.True(t, tree.Has("tenant-a"))
		assert.True(t, tree.Has("tenant-b"))
		assert.False(t, tree.Has("tenant-c"))
		assert.Equal(t, htb.PerSecond(100), tree.EffectiveRate("a-api"))
	})

	t.Run("works with integer ids", func(t *testing.T) {
		const (
			root = iota
			api
		)
		tree, err := htb.New([]htb.BucketConfig[int]{
			{ID: root, Rate: htb.PerSecond(100), Capacity: 100},
			{ID: api, Parent: htb.Parent(root), Rate: htb.PerSecond(10), Capacity: 10},
		})
		require.NoError(t, err)

		assert.True(t, tree.TakeN(api, 10))
		assert.False(t, tree.Peek(api))
	})
}

func TestNew_EffectiveRates(t *testing.T) {
	t.Parallel()

	t.Run("minimum along ancestor chain", func(t *testing.T) {
		tree, err := htb.New([]htb.BucketConfig[string]{
			{ID: "root", Rate: htb.PerSecond(100), Capacity: 10},
			{ID: "mid", Rate: htb.PerSecond(10), Parent: htb.Parent("root"), Capacity: 10},
			{ID: "leaf", Rate: htb.PerSecond(50), Parent: htb.Parent("mid"), Capacity: 10},
			{ID: "deep", Rate: htb.PerSecond(200), Parent: htb.Parent("leaf"), Capacity: 10},
		})
		require.NoError(t, err)

		assert.Equal(t, htb.PerSecond(100), tree.EffectiveRate("root"))
		assert.Equal(t, htb.PerSecond(10), tree.EffectiveRate("mid"))
		// The slowest ancestor's rate propagates in its configured form.
		assert.Equal(t, htb.PerSecond(10), tree.EffectiveRate("leaf"))
		assert.Equal(t, htb.PerSecond(10), tree.EffectiveRate("deep"))
	})

	t.Run("own rate wins when slower than parent", func(t *testing.T) {
		tree, err := htb.New([]htb.BucketConfig[string]{
			{ID: "root", Rate: htb.Rate{Tokens: 1500, Interval: 15 * time.Second}},
			{ID: "api", Parent: htb.Parent("root"), Rate: htb.PerSecond(50), Capacity: 50},
		})
		require.NoError(t, err)

		assert.Equal(t, htb.PerSecond(50), tree.EffectiveRate("api"))
	})

	t.Run("equal rates keep the bucket's own form", func(t *testing.T) {
		tree, err := htb.New([]htb.BucketConfig[string]{
			{ID: "root", Rate: htb.PerSecond(100), Capacity: 10},
			{ID: "child", Parent: htb.Parent("root"), Rate: htb.PerMinute(6000), Capacity: 10},
		})
		require.NoError(t, err)

		// 6000/min == 100/s exactly; the child's configured form is kept.
		assert.Equal(t, htb.PerMinute(6000), tree.EffectiveRate("child"))
	})

	t.Run("comparison is exact beyond float precision", func(t *testing.T) {
		// Both ratios round to exactly 1.0 as float64; only exact integer
		// cross-multiplication can order them.
		const interval = time.Duration(1 << 62)
		slower := htb.Rate{Tokens: 1<<62 - 1, Interval: interval}
		faster := htb.Rate{Tokens: 1<<62 + 1, Interval: interval}

		tree, err := htb.New([]htb.BucketConfig[string]{
			{ID: "root", Rate: slower, Capacity: 10},
			{ID: "child", Parent: htb.Parent("root"), Rate: faster, Capacity: 10},
		})
		require.NoError(t, err)

		assert.Equal(t, slower, tree.EffectiveRate("child"))
	})
}
