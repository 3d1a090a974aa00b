// Package config provides type-safe environment variable loading with
// caching and parsing of bucket topology files.
//
// # Environment Configuration
//
// Load populates tagged structs from environment variables, loading once
// and caching per concrete type. A .env file is read automatically on
// first use.
//
//	import "github.com/dmitrymomot/htb/config"
//
//	type AppConfig struct {
//		ListenAddr string        `env:"LISTEN_ADDR" envDefault:":8080"`
//		Topology   string        `env:"TOPOLOGY_FILE,required"`
//		Cleanup    time.Duration `env:"CLEANUP_INTERVAL" envDefault:"5m"`
//	}
//
//	func main() {
//		var cfg AppConfig
//		if err := config.Load(&cfg); err != nil {
//			log.Fatal(err)
//		}
//		// Or panic on failure during startup
//		config.MustLoad(&cfg)
//	}
//
// Each configuration type is loaded only once per application lifetime:
//
//	var cfg1 AppConfig
//	config.Load(&cfg1) // Loads from environment
//
//	var cfg2 AppConfig
//	config.Load(&cfg2) // Returns cached value, cfg1 == cfg2
//
// # Topology Files
//
// Bucket topologies can live in YAML files instead of code, using the
// same declaration order rules as htb.New:
//
//	buckets:
//	  - id: global
//	    rate: 1500/15s
//	    capacity: 0
//	  - id: api
//	    parent: global
//	    rate: 250/1s
//	    capacity: 250
//
// Rates use the compact "<tokens>/<interval>" notation; the interval part
// accepts any time.ParseDuration form. Loading a file yields declarations
// ready for htb.New or limiter.NewKeyed:
//
//	buckets, err := config.LoadTopology(cfg.Topology)
//	if err != nil {
//		log.Fatal(err)
//	}
//	keyed, err := limiter.NewKeyed(buckets)
//
// Parsing rejects unknown YAML fields, so a typo like "capactiy" fails at
// startup rather than configuring an unintended default.
package config
