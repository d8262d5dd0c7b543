// Package ridx implements a disk-resident, concurrent B+Tree index mapping
// fixed-size keys to record identifiers. Nodes persist as fixed-size pages
// through a buffer pool; operations follow a pessimistic latch-coupling
// protocol (mutators hold write guards root-to-leaf, readers hold at most
// parent and child).
package ridx

import (
	"ridx/internal/base"
)

// Aliases so callers never import internal packages.
type (
	Key        = base.Key
	RID        = base.RID
	PageID     = base.PageID
	Comparator = base.Comparator
)

const InvalidPageID = base.InvalidPageID

// KeyFromInteger encodes v as an index key.
func KeyFromInteger(v int64) Key {
	return base.KeyFromInteger(v)
}

// NewRIDFromInt64 splits v into (high 32 bits → page, low 32 bits → slot).
func NewRIDFromInt64(v int64) RID {
	return base.NewRIDFromInt64(v)
}

// IntegerComparator orders keys by their int64 encoding.
func IntegerComparator(a, b Key) int {
	return base.IntegerComparator(a, b)
}

// Txn is an opaque transaction handle threaded through mutating operations
// for callers that track page accesses per transaction. The index itself
// does not interpret it.
type Txn struct{}
