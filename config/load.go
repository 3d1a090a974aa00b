package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	cache   sync.Map // reflect.Type -> parsed config value
	envOnce sync.Once
)

// Load populates cfg from environment variables using `env` struct tags,
// caching the parsed value per concrete type. Subsequent calls for the
// same type return the cached value, so every component sees identical
// configuration regardless of load order.
//
// On first use a .env file is loaded into the process environment if one
// exists; a missing file is not an error.
func Load[T any](cfg *T) error {
	if cfg == nil {
		return errors.New("config: nil target")
	}

	envOnce.Do(func() {
		_ = godotenv.Load()
	})

	key := reflect.TypeOf((*T)(nil)).Elem()
	if cached, ok := cache.Load(key); ok {
		*cfg = cached.(T)
		return nil
	}

	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("config: parse %T: %w", *cfg, err)
	}

	cache.Store(key, *cfg)
	return nil
}

// MustLoad is Load that panics on failure. Intended for application
// startup where a missing required variable should abort immediately.
func MustLoad[T any](cfg *T) {
	if err := Load(cfg); err != nil {
		panic(err)
	}
}
