package ridx

import (
	"ridx/internal/base"
	"ridx/internal/bufferpool"
)

// Iterator is a forward cursor over the leaf chain. It holds no latch
// between calls; each dereference or advance takes a read guard for just
// that step, so iteration is only consistent under concurrent writers if
// the caller serializes with a coarser mechanism. A failed page fetch
// parks the iterator at the end with the error in Err.
type Iterator struct {
	bpm    *bufferpool.Manager
	pageID base.PageID
	slot   int32
	err    error
}

// IsEnd reports whether the iterator is exhausted.
func (it *Iterator) IsEnd() bool {
	return it.pageID == InvalidPageID
}

// Err returns the first page-fetch failure encountered, if any.
func (it *Iterator) Err() error {
	return it.err
}

// Entry reads the (key, rid) pair under the cursor.
func (it *Iterator) Entry() (Key, RID) {
	base.Assert(!it.IsEnd(), "dereference of end iterator")

	guard, err := it.bpm.FetchPageRead(it.pageID)
	if err != nil {
		it.fail(err)
		return Key{}, RID{}
	}
	defer guard.Drop()

	leaf := guard.Page().AsLeaf()
	base.Assert(it.slot < leaf.Size, "iterator slot %d past leaf size %d", it.slot, leaf.Size)
	return leaf.Keys[it.slot], leaf.RIDs[it.slot]
}

// Next advances one entry, hopping to the next leaf when the current one
// is exhausted.
func (it *Iterator) Next() {
	if it.IsEnd() {
		return
	}

	guard, err := it.bpm.FetchPageRead(it.pageID)
	if err != nil {
		it.fail(err)
		return
	}
	leaf := guard.Page().AsLeaf()
	it.slot++
	if it.slot >= leaf.Size {
		it.pageID = leaf.NextPageID
		it.slot = 0
	}
	guard.Drop()
}

func (it *Iterator) fail(err error) {
	it.err = err
	it.pageID = InvalidPageID
	it.slot = 0
}

// Begin positions an iterator at the smallest key: descend leftmost from
// the root with read-guard coupling.
func (t *BPlusTree) Begin() *Iterator {
	headerGuard, err := t.bpm.FetchPageRead(t.headerPageID)
	if err != nil {
		return &Iterator{bpm: t.bpm, pageID: InvalidPageID, err: err}
	}
	rootID := headerGuard.Page().AsHeader().RootPageID
	if rootID == InvalidPageID {
		headerGuard.Drop()
		return t.End()
	}

	guard, err := t.bpm.FetchPageRead(rootID)
	headerGuard.Drop()
	if err != nil {
		return &Iterator{bpm: t.bpm, pageID: InvalidPageID, err: err}
	}

	for {
		tp := guard.Page().AsTree()
		if tp.IsLeaf() {
			id := guard.PageID()
			empty := tp.Size == 0
			guard.Drop()
			if empty {
				// an empty leaf can only be an empty-ish root
				return t.End()
			}
			return &Iterator{bpm: t.bpm, pageID: id, slot: 0}
		}
		childID := guard.Page().AsInternal().Children[0]
		childGuard, err := t.bpm.FetchPageRead(childID)
		if err != nil {
			guard.Drop()
			return &Iterator{bpm: t.bpm, pageID: InvalidPageID, err: err}
		}
		guard.Drop()
		guard = childGuard
	}
}

// BeginAt positions an iterator at key by scanning forward from the
// smallest entry; an absent key yields the end iterator.
func (t *BPlusTree) BeginAt(key Key) *Iterator {
	it := t.Begin()
	for !it.IsEnd() {
		k, _ := it.Entry()
		if it.err != nil || t.cmp(k, key) == 0 {
			break
		}
		it.Next()
	}
	return it
}

// End returns the exhausted iterator.
func (t *BPlusTree) End() *Iterator {
	return &Iterator{bpm: t.bpm, pageID: InvalidPageID}
}
