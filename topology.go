package htb

import "fmt"

// New validates the bucket declarations and builds a frozen Tree.
//
// Buckets are processed in list order. Each bucket receives a dense index,
// its parent is resolved among the buckets already processed, and its
// effective rate is fixed as the minimum of its own rate and its parent's
// effective rate. Because parents are fully resolved before any child, one
// linear pass settles the whole hierarchy.
//
// Validation is all-or-nothing: the first violation aborts construction
// with a wrapped sentinel error and no Tree. A list may declare several
// roots; each root simply anchors an independent subtree.
func New[ID comparable](buckets []BucketConfig[ID]) (*Tree[ID], error) {
	if len(buckets) == 0 {
		return nil, ErrNoBuckets
	}

	t := &Tree[ID]{
		nodes: make([]node, len(buckets)),
		ids:   make([]ID, len(buckets)),
		index: make(map[ID]int, len(buckets)),
	}

	for i, b := range buckets {
		if _, exists := t.index[b.ID]; exists {
			return nil, fmt.Errorf("%w: %v", ErrDuplicateID, b.ID)
		}
		if !b.Rate.valid() {
			return nil, fmt.Errorf("%w: bucket %v: %s", ErrInvalidRate, b.ID, b.Rate)
		}
		if b.Capacity < 0 {
			return nil, fmt.Errorf("%w: bucket %v: %d", ErrInvalidCapacity, b.ID, b.Capacity)
		}

		parent := -1
		eff := b.Rate
		if b.Parent != nil {
			// Only ids already registered qualify, so a bucket can never
			// name itself or a later bucket as its parent.
			p, ok := t.index[*b.Parent]
			if !ok {
				return nil, fmt.Errorf("%w: bucket %v declares parent %v", ErrUnknownParent, b.ID, *b.Parent)
			}
			parent = p
			if t.nodes[p].rate.less(eff) {
				eff = t.nodes[p].rate
			}
		}

		num, den := eff.reduced()
		t.nodes[i] = node{
			parent: parent,
			rate:   eff,
			num:    num,
			den:    den,
			cap:    uint64(b.Capacity),
			stock:  uint64(b.Capacity),
		}
		t.ids[i] = b.ID
		t.index[b.ID] = i
	}

	return t, nil
}
