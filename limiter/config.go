package limiter

import (
	"time"

	"github.com/dmitrymomot/htb"
)

// Config holds keyed limiter settings loaded from environment variables.
// Bucket topology is code or file driven (see the config package); only
// operational knobs live here.
type Config struct {
	// CleanupInterval is how often stale per-key trees are evicted.
	CleanupInterval time.Duration `env:"LIMITER_CLEANUP_INTERVAL" envDefault:"5m"`

	// ShutdownTimeout bounds how long Stop waits for cleanup to finish.
	ShutdownTimeout time.Duration `env:"LIMITER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// DefaultConfig returns a Config with sensible defaults, matching the
// envDefault values. Useful for tests and non-env construction.
func DefaultConfig() Config {
	return Config{
		CleanupInterval: 5 * time.Minute,
		ShutdownTimeout: 30 * time.Second,
	}
}

// NewKeyedFromConfig creates a Keyed limiter from configuration, with
// optional overrides applied after the config-derived options.
//
//	var cfg limiter.Config
//	config.MustLoad(&cfg)
//	keyed, err := limiter.NewKeyedFromConfig(cfg, buckets)
func NewKeyedFromConfig[ID comparable](cfg Config, buckets []htb.BucketConfig[ID], opts ...KeyedOption[ID]) (*Keyed[ID], error) {
	base := []KeyedOption[ID]{
		WithCleanupInterval[ID](cfg.CleanupInterval),
		WithShutdownTimeout[ID](cfg.ShutdownTimeout),
	}
	return NewKeyed(buckets, append(base, opts...)...)
}
