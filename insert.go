package ridx

import (
	"ridx/internal/base"
)

// Insert adds (key, value) to the tree. Returns false (and no mutation)
// when key is already present. Splits cascade upward while the context
// still holds every ancestor's write guard, so readers observe either the
// full pre- or full post-state of the cascade.
func (t *BPlusTree) Insert(key Key, value RID, txn *Txn) (bool, error) {
	ctx := &opContext{}
	defer ctx.release()

	headerGuard, err := t.bpm.FetchPageWrite(t.headerPageID)
	if err != nil {
		return false, err
	}
	ctx.header = headerGuard
	header := headerGuard.Page().AsHeader()
	ctx.rootID = header.RootPageID

	// empty tree: the new leaf is the root
	if ctx.rootID == InvalidPageID {
		id, guard, err := t.bpm.NewPage()
		if err != nil {
			return false, err
		}
		leaf := guard.Page().AsLeaf()
		leaf.Init(t.leafMaxSize)
		leaf.Size = 1
		leaf.SetKeyAt(0, key)
		leaf.SetValueAt(0, value)
		guard.Drop()
		header.RootPageID = id
		return true, nil
	}

	leafGuard, err := t.descendWrite(ctx, key)
	if err != nil {
		return false, err
	}
	defer leafGuard.Drop()
	leaf := leafGuard.Page().AsLeaf()

	for i := int32(0); i < leaf.Size; i++ {
		if t.cmp(key, leaf.Keys[i]) == 0 {
			return false, nil
		}
	}

	if leaf.Size < leaf.MaxSize {
		t.leafInsert(leaf, key, value)
		return true, nil
	}

	// Split the leaf: upper half moves to a new right sibling, the
	// separator is a copy of the right sibling's first key, and the
	// incoming pair lands on whichever side owns it (right when
	// key >= separator).
	newID, newGuard, err := t.bpm.NewPage()
	if err != nil {
		return false, err
	}
	defer newGuard.Drop()
	right := newGuard.Page().AsLeaf()
	right.Init(t.leafMaxSize)

	m := leaf.Size
	mid := (m + 1) / 2
	for i := mid; i < m; i++ {
		right.Keys[i-mid] = leaf.Keys[i]
		right.RIDs[i-mid] = leaf.RIDs[i]
	}
	right.Size = m - mid
	leaf.Size = mid

	// thread the leaf chain
	right.NextPageID = leaf.NextPageID
	leaf.NextPageID = newID

	sep := right.Keys[0]
	if t.cmp(key, sep) >= 0 {
		t.leafInsert(right, key, value)
	} else {
		t.leafInsert(leaf, key, value)
	}

	if err := t.insertIntoParent(ctx, sep, newID); err != nil {
		return false, err
	}
	return true, nil
}

// leafInsert shift-inserts (key, value) keeping the leaf sorted. Caller
// guarantees room and absence of key.
func (t *BPlusTree) leafInsert(leaf *base.LeafPage, key Key, value RID) {
	base.Assert(leaf.Size < leaf.MaxSize, "leaf insert into full page")

	pos := leaf.Size
	for i := int32(0); i < leaf.Size; i++ {
		if t.cmp(key, leaf.Keys[i]) < 0 {
			pos = i
			break
		}
	}
	leaf.Size++
	for j := leaf.Size - 1; j > pos; j-- {
		leaf.Keys[j] = leaf.Keys[j-1]
		leaf.RIDs[j] = leaf.RIDs[j-1]
	}
	leaf.Keys[pos] = key
	leaf.RIDs[pos] = value
}

// internalInsert shift-inserts (key, child) into an internal node at the
// slot that keeps routing keys ordered. Caller guarantees room.
func (t *BPlusTree) internalInsert(node *base.InternalPage, key Key, child PageID) {
	base.Assert(node.Size < node.MaxSize, "internal insert into full page")
	base.Assert(node.Size >= 1, "internal insert into uninitialized page")

	pos := node.Size
	for i := int32(1); i < node.Size; i++ {
		if t.cmp(key, node.Keys[i]) < 0 {
			pos = i
			break
		}
	}
	node.Size++
	for j := node.Size - 1; j > pos; j-- {
		node.Keys[j] = node.Keys[j-1]
		node.Children[j] = node.Children[j-1]
	}
	node.Keys[pos] = key
	node.Children[pos] = child
}

// insertIntoParent propagates a split upward: (sep, rightID) describes the
// new right sibling produced one level below. Ancestor guards are consumed
// from the context as each level either absorbs the pair or splits in turn;
// running out of ancestors means the old root split and a new root is
// published through the header.
func (t *BPlusTree) insertIntoParent(ctx *opContext, sep Key, rightID PageID) error {
	for {
		if ctx.depth() == 0 {
			// root split
			id, guard, err := t.bpm.NewPage()
			if err != nil {
				return err
			}
			root := guard.Page().AsInternal()
			root.Init(t.internalMaxSize)
			root.Size = 2
			root.Children[0] = ctx.rootID
			root.Keys[1] = sep
			root.Children[1] = rightID
			guard.Drop()

			ctx.header.Page().AsHeader().RootPageID = id
			ctx.rootID = id
			return nil
		}

		parentGuard, _ := ctx.pop()
		parent := parentGuard.Page().AsInternal()

		if parent.Size < parent.MaxSize {
			t.internalInsert(parent, sep, rightID)
			parentGuard.Drop()
			return nil
		}

		// Split the internal node. The key at mid moves up as the
		// promoted separator; the child it carried becomes slot 0 of
		// the new right sibling. The incoming pair then lands on the
		// side that owns it (right when sep >= promoted).
		newID, newGuard, err := t.bpm.NewPage()
		if err != nil {
			parentGuard.Drop()
			return err
		}
		right := newGuard.Page().AsInternal()
		right.Init(t.internalMaxSize)

		m := parent.Size
		mid := (m + 1) / 2
		promoted := parent.Keys[mid]
		right.Children[0] = parent.Children[mid]
		for i := mid + 1; i < m; i++ {
			right.Keys[i-mid] = parent.Keys[i]
			right.Children[i-mid] = parent.Children[i]
		}
		right.Size = m - mid
		parent.Size = mid

		if t.cmp(sep, promoted) >= 0 {
			t.internalInsert(right, sep, rightID)
		} else {
			t.internalInsert(parent, sep, rightID)
		}

		parentGuard.Drop()
		newGuard.Drop()

		sep = promoted
		rightID = newID
	}
}
