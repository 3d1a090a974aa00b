package htb

// BucketConfig declares one bucket of a topology passed to New.
//
// Buckets are declared as a flat list ordered parents-first: Parent must
// name a bucket that appears strictly earlier in the list, or be nil for a
// root. The one ordering rule rules out cycles, self-parenting, and forward
// references in a single pass.
type BucketConfig[ID comparable] struct {
	// ID uniquely identifies the bucket within the topology.
	ID ID

	// Parent is the id of the parent bucket, or nil for a root. Use the
	// package-level Parent helper to build the pointer in literals.
	Parent *ID

	// Rate is the bucket's own refill rate. The rate actually applied is
	// the minimum of this and every ancestor's rate.
	Rate Rate

	// Capacity is the maximum token stock. Zero is legal: such a bucket can
	// never satisfy a take itself, while its rate still bounds every
	// descendant.
	Capacity int64
}

// Parent returns a pointer to id for use in BucketConfig literals:
//
//	htb.BucketConfig[string]{ID: "api", Parent: htb.Parent("global"), ...}
func Parent[ID comparable](id ID) *ID {
	return &id
}
