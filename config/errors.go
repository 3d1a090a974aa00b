package config

import "errors"

// Errors returned by topology file parsing. Semantic validation of the
// parsed declarations (rates, capacities, parent references) happens in
// htb.New, not here.
var (
	ErrInvalidRateFormat = errors.New("invalid rate format")
	ErrMissingBucketID   = errors.New("missing bucket id")
)
