package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/htb"
)

// BucketSpec declares one bucket of a topology file. Declaration order
// matters: parents must appear before the buckets that reference them.
type BucketSpec struct {
	ID       string `yaml:"id"`
	Parent   string `yaml:"parent,omitempty"`
	Rate     string `yaml:"rate"`
	Capacity int64  `yaml:"capacity"`
}

// Topology is the document structure of a bucket topology file:
//
//	buckets:
//	  - id: global
//	    rate: 1500/15s
//	    capacity: 0
//	  - id: api
//	    parent: global
//	    rate: 250/1s
//	    capacity: 250
type Topology struct {
	Buckets []BucketSpec `yaml:"buckets"`
}

// ParseTopology decodes a YAML topology document into bucket declarations
// ready for htb.New. Unknown fields are rejected so typos in bucket
// declarations fail loudly instead of silently configuring nothing.
//
// Only file-format problems are reported here; semantic validation of the
// resulting topology is htb.New's job.
func ParseTopology(r io.Reader) ([]htb.BucketConfig[string], error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc Topology
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: parse topology: %w", err)
	}

	buckets := make([]htb.BucketConfig[string], 0, len(doc.Buckets))
	for i, spec := range doc.Buckets {
		if spec.ID == "" {
			return nil, fmt.Errorf("config: %w: bucket %d", ErrMissingBucketID, i)
		}

		rate, err := ParseRate(spec.Rate)
		if err != nil {
			return nil, fmt.Errorf("config: bucket %q: %w", spec.ID, err)
		}

		cfg := htb.BucketConfig[string]{
			ID:       spec.ID,
			Rate:     rate,
			Capacity: spec.Capacity,
		}
		if spec.Parent != "" {
			cfg.Parent = htb.Parent(spec.Parent)
		}
		buckets = append(buckets, cfg)
	}
	return buckets, nil
}

// LoadTopology reads and parses a topology file from disk.
func LoadTopology(path string) ([]htb.BucketConfig[string], error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read topology file %q: %w", path, err)
	}
	return ParseTopology(bytes.NewReader(data))
}

// ParseRate parses the "<tokens>/<interval>" rate notation used in
// topology files, e.g. "250/1s", "1500/15s" or "600/1m". The interval
// accepts any time.ParseDuration form, and the notation round-trips
// htb.Rate.String.
func ParseRate(s string) (htb.Rate, error) {
	tokensPart, intervalPart, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return htb.Rate{}, fmt.Errorf("%w: %q (want \"<tokens>/<interval>\")", ErrInvalidRateFormat, s)
	}

	tokens, err := strconv.ParseInt(strings.TrimSpace(tokensPart), 10, 64)
	if err != nil {
		return htb.Rate{}, fmt.Errorf("%w: %q: bad token count", ErrInvalidRateFormat, s)
	}

	interval, err := time.ParseDuration(strings.TrimSpace(intervalPart))
	if err != nil {
		return htb.Rate{}, fmt.Errorf("%w: %q: bad interval", ErrInvalidRateFormat, s)
	}

	return htb.Rate{Tokens: tokens, Interval: interval}, nil
}
