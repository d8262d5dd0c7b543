package base

import (
	"encoding/binary"
	"fmt"
)

const (
	KeySize = 8
	RIDSize = 8
)

// Key is a fixed-width index key. The byte interpretation belongs to the
// Comparator injected at tree construction; the integer helpers cover the
// common case of an 8-byte integer column.
type Key [KeySize]byte

// Comparator imposes a total order on keys: negative if a < b, zero if
// equal, positive if a > b.
type Comparator func(a, b Key) int

// SetFromInteger encodes v into the key.
func (k *Key) SetFromInteger(v int64) {
	binary.LittleEndian.PutUint64(k[:], uint64(v))
}

// ToInteger decodes the key as the integer written by SetFromInteger.
func (k Key) ToInteger() int64 {
	return int64(binary.LittleEndian.Uint64(k[:]))
}

func (k Key) String() string {
	return fmt.Sprintf("%d", k.ToInteger())
}

// KeyFromInteger is shorthand for a SetFromInteger'd key.
func KeyFromInteger(v int64) Key {
	var k Key
	k.SetFromInteger(v)
	return k
}

// IntegerComparator orders keys by their int64 encoding.
func IntegerComparator(a, b Key) int {
	av, bv := a.ToInteger(), b.ToInteger()
	switch {
	case av < bv:
		return -1
	case av > bv:
		return 1
	default:
		return 0
	}
}

// RID identifies a tuple in the heap: the page it lives on and its slot
// within that page. Stored only in leaves.
type RID struct {
	PageID  PageID
	SlotNum uint32
}

// NewRIDFromInt64 splits v into (high 32 bits → page, low 32 bits → slot).
func NewRIDFromInt64(v int64) RID {
	return RID{
		PageID:  PageID(v >> 32),
		SlotNum: uint32(v & 0xFFFFFFFF),
	}
}

func (r RID) String() string {
	return fmt.Sprintf("(%d,%d)", r.PageID, r.SlotNum)
}
