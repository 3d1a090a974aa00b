package htb

import "errors"

// Package-level error definitions for topology construction. New wraps each
// with the offending bucket id; test with errors.Is.
var (
	ErrNoBuckets       = errors.New("no buckets configured")
	ErrDuplicateID     = errors.New("duplicate bucket id")
	ErrUnknownParent   = errors.New("unknown parent")
	ErrInvalidRate     = errors.New("invalid rate")
	ErrInvalidCapacity = errors.New("invalid capacity")
)
