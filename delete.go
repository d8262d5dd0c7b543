package ridx

import (
	"ridx/internal/base"
	"ridx/internal/bufferpool"
)

// Remove deletes key from the tree. Absent keys are tolerated silently.
// Underflow is repaired by borrowing from the richer sibling when that
// leaves the donor at or above its floor, otherwise by merging (into the
// left sibling when one exists); merges cascade upward and may collapse
// the root. All ancestor write guards stay held until the repair is done.
func (t *BPlusTree) Remove(key Key, txn *Txn) error {
	ctx := &opContext{}
	defer ctx.release()

	headerGuard, err := t.bpm.FetchPageWrite(t.headerPageID)
	if err != nil {
		return err
	}
	ctx.header = headerGuard
	header := headerGuard.Page().AsHeader()
	ctx.rootID = header.RootPageID

	if ctx.rootID == InvalidPageID {
		return nil
	}

	leafGuard, err := t.descendWrite(ctx, key)
	if err != nil {
		return err
	}
	leaf := leafGuard.Page().AsLeaf()

	idx := int32(-1)
	for i := int32(0); i < leaf.Size; i++ {
		if t.cmp(key, leaf.Keys[i]) == 0 {
			idx = i
			break
		}
	}
	if idx < 0 {
		leafGuard.Drop()
		return nil
	}

	for j := idx + 1; j < leaf.Size; j++ {
		leaf.Keys[j-1] = leaf.Keys[j]
		leaf.RIDs[j-1] = leaf.RIDs[j]
	}
	leaf.Size--

	// the root is a leaf: no floor applies, but an emptied root unroots
	// the tree
	if ctx.depth() == 0 {
		if leaf.Size > 0 {
			leafGuard.Drop()
			return nil
		}
		header.RootPageID = InvalidPageID
		id := leafGuard.PageID()
		leafGuard.Drop()
		return t.bpm.DeletePage(id)
	}

	if leaf.Size >= leaf.MinSize() {
		newMin := leaf.Keys[0]
		leafGuard.Drop()
		t.fixSeparators(ctx, key, newMin)
		return nil
	}

	// bring routing keys in line with the leaf's new minimum while every
	// ancestor is still on the stack; a borrow or merge below may pull a
	// stale separator down out of fixSeparators' reach
	if leaf.Size > 0 {
		t.fixSeparators(ctx, key, leaf.Keys[0])
	}

	updateKey, merged, err := t.rebalanceLeaf(ctx, leafGuard)
	if err != nil {
		return err
	}
	if merged {
		if err := t.rebalanceUp(ctx); err != nil {
			return err
		}
	}
	t.fixSeparators(ctx, key, updateKey)
	return nil
}

// fixSeparators restores routing keys after a leaf's minimum changed: any
// ancestor still on the stack whose traversed-slot key equals the deleted
// key takes the subtree's new minimum. Slot 0 carries no key and is
// skipped.
func (t *BPlusTree) fixSeparators(ctx *opContext, deleted, newMin Key) {
	for i := len(ctx.ancestors) - 1; i >= 0; i-- {
		slot := ctx.childSlots[i]
		if slot < 1 {
			continue
		}
		node := ctx.ancestors[i].Page().AsInternal()
		if t.cmp(node.Keys[slot], deleted) == 0 {
			node.Keys[slot] = newMin
		}
	}
}

// rebalanceLeaf repairs an under-full leaf. The parent guard is the top of
// the context stack and stays there; sibling guards are taken and released
// locally. Returns the surviving leaf's minimum key and whether a merge
// removed a separator from the parent (requiring the cascade to continue).
// Consumes leafGuard.
func (t *BPlusTree) rebalanceLeaf(ctx *opContext, leafGuard *bufferpool.WritePageGuard) (Key, bool, error) {
	parentGuard := ctx.ancestors[len(ctx.ancestors)-1]
	pos := ctx.childSlots[len(ctx.childSlots)-1]
	parent := parentGuard.Page().AsInternal()
	leaf := leafGuard.Page().AsLeaf()

	var leftGuard, rightGuard *bufferpool.WritePageGuard
	var left, right *base.LeafPage
	if pos > 0 {
		g, err := t.bpm.FetchPageWrite(parent.Children[pos-1])
		if err != nil {
			leafGuard.Drop()
			return Key{}, false, err
		}
		leftGuard, left = g, g.Page().AsLeaf()
	}
	if pos < parent.Size-1 {
		g, err := t.bpm.FetchPageWrite(parent.Children[pos+1])
		if err != nil {
			leftGuard.Drop()
			leafGuard.Drop()
			return Key{}, false, err
		}
		rightGuard, right = g, g.Page().AsLeaf()
	}
	base.Assert(left != nil || right != nil, "under-full leaf with no siblings")

	// donor is the richer sibling, ties prefer the left
	fromLeft := left != nil && (right == nil || right.Size <= left.Size)
	var donorSize int32
	if fromLeft {
		donorSize = left.Size
	} else {
		donorSize = right.Size
	}

	if donorSize-1 >= leaf.MinSize() {
		if fromLeft {
			// prepend the left sibling's last entry
			for j := leaf.Size; j >= 1; j-- {
				leaf.Keys[j] = leaf.Keys[j-1]
				leaf.RIDs[j] = leaf.RIDs[j-1]
			}
			leaf.Keys[0] = left.Keys[left.Size-1]
			leaf.RIDs[0] = left.RIDs[left.Size-1]
			leaf.Size++
			left.Size--
		} else {
			// append the right sibling's first entry
			leaf.Keys[leaf.Size] = right.Keys[0]
			leaf.RIDs[leaf.Size] = right.RIDs[0]
			leaf.Size++
			for j := int32(1); j < right.Size; j++ {
				right.Keys[j-1] = right.Keys[j]
				right.RIDs[j-1] = right.RIDs[j]
			}
			right.Size--
			parent.SetKeyAt(pos+1, right.Keys[0])
		}
		if pos >= 1 {
			parent.SetKeyAt(pos, leaf.Keys[0])
		}
		newMin := leaf.Keys[0]
		leftGuard.Drop()
		rightGuard.Drop()
		leafGuard.Drop()
		return newMin, false, nil
	}

	// merge: fold into the left sibling when one exists, otherwise fold
	// the right sibling in; the separator between the two is deleted
	// from the parent and the emptied page freed
	var newMin Key
	var sepSlot int32
	var freeID base.PageID
	if left != nil {
		for i := int32(0); i < leaf.Size; i++ {
			left.Keys[left.Size] = leaf.Keys[i]
			left.RIDs[left.Size] = leaf.RIDs[i]
			left.Size++
		}
		left.NextPageID = leaf.NextPageID
		newMin = left.Keys[0]
		sepSlot = pos
		freeID = leafGuard.PageID()
		leafGuard.Drop()
		leftGuard.Drop()
		rightGuard.Drop()
	} else {
		for i := int32(0); i < right.Size; i++ {
			leaf.Keys[leaf.Size] = right.Keys[i]
			leaf.RIDs[leaf.Size] = right.RIDs[i]
			leaf.Size++
		}
		leaf.NextPageID = right.NextPageID
		newMin = leaf.Keys[0]
		sepSlot = pos + 1
		freeID = rightGuard.PageID()
		rightGuard.Drop()
		leafGuard.Drop()
	}
	if err := t.bpm.DeletePage(freeID); err != nil {
		return Key{}, false, err
	}

	t.deleteSeparator(parent, sepSlot)
	return newMin, true, nil
}

// deleteSeparator removes routing key slot (and the child pointer it
// carries) from node.
func (t *BPlusTree) deleteSeparator(node *base.InternalPage, slot int32) {
	base.Assert(slot >= 1 && slot < node.Size, "separator slot %d out of range", slot)
	for j := slot + 1; j < node.Size; j++ {
		node.Keys[j-1] = node.Keys[j]
		node.Children[j-1] = node.Children[j]
	}
	node.Size--
}

// rebalanceUp walks the cascade after a merge removed a separator below:
// each under-full internal node borrows or merges in turn, and a root left
// with a single child collapses into that child.
func (t *BPlusTree) rebalanceUp(ctx *opContext) error {
	for {
		top := ctx.ancestors[len(ctx.ancestors)-1]
		node := top.Page().AsInternal()

		if ctx.depth() == 1 {
			// top is the root; it holds no floor but collapses when a
			// single child remains
			if node.Size > 1 {
				return nil
			}
			rootGuard, _ := ctx.pop()
			id := rootGuard.PageID()
			ctx.header.Page().AsHeader().RootPageID = node.Children[0]
			ctx.rootID = node.Children[0]
			rootGuard.Drop()
			return t.bpm.DeletePage(id)
		}

		if node.Size >= node.MinSize() {
			return nil
		}

		curGuard, _ := ctx.pop()
		merged, err := t.rebalanceInternal(ctx, curGuard)
		if err != nil {
			return err
		}
		if !merged {
			return nil
		}
	}
}

// rebalanceInternal repairs an under-full internal node against its
// siblings. Borrowing rotates an entry through the parent separator;
// merging pulls the separator down as the new middle key. Consumes
// curGuard; reports whether a separator was deleted from the parent.
func (t *BPlusTree) rebalanceInternal(ctx *opContext, curGuard *bufferpool.WritePageGuard) (bool, error) {
	parentGuard := ctx.ancestors[len(ctx.ancestors)-1]
	pos := ctx.childSlots[len(ctx.childSlots)-1]
	parent := parentGuard.Page().AsInternal()
	cur := curGuard.Page().AsInternal()

	var leftGuard, rightGuard *bufferpool.WritePageGuard
	var left, right *base.InternalPage
	if pos > 0 {
		g, err := t.bpm.FetchPageWrite(parent.Children[pos-1])
		if err != nil {
			curGuard.Drop()
			return false, err
		}
		leftGuard, left = g, g.Page().AsInternal()
	}
	if pos < parent.Size-1 {
		g, err := t.bpm.FetchPageWrite(parent.Children[pos+1])
		if err != nil {
			leftGuard.Drop()
			curGuard.Drop()
			return false, err
		}
		rightGuard, right = g, g.Page().AsInternal()
	}
	base.Assert(left != nil || right != nil, "under-full node with no siblings")

	fromLeft := left != nil && (right == nil || right.Size <= left.Size)
	var donorSize int32
	if fromLeft {
		donorSize = left.Size
	} else {
		donorSize = right.Size
	}

	if donorSize-1 >= cur.MinSize() {
		if fromLeft {
			// rotate through the parent: separator comes down as
			// Keys[1], the donor's last child becomes Children[0],
			// the donor's last key goes up
			cur.Size++
			for j := cur.Size - 1; j >= 2; j-- {
				cur.Keys[j] = cur.Keys[j-1]
			}
			for j := cur.Size - 1; j >= 1; j-- {
				cur.Children[j] = cur.Children[j-1]
			}
			cur.Keys[1] = parent.Keys[pos]
			cur.Children[0] = left.Children[left.Size-1]
			parent.Keys[pos] = left.Keys[left.Size-1]
			left.Size--
		} else {
			cur.Keys[cur.Size] = parent.Keys[pos+1]
			cur.Children[cur.Size] = right.Children[0]
			cur.Size++
			parent.Keys[pos+1] = right.Keys[1]
			for j := int32(1); j+1 < right.Size; j++ {
				right.Keys[j] = right.Keys[j+1]
			}
			for j := int32(0); j+1 < right.Size; j++ {
				right.Children[j] = right.Children[j+1]
			}
			right.Size--
		}
		leftGuard.Drop()
		rightGuard.Drop()
		curGuard.Drop()
		return false, nil
	}

	// merge: the parent separator becomes the survivor's new middle key,
	// followed by the folded node's entries
	var sepSlot int32
	var freeID base.PageID
	if left != nil {
		sepSlot = pos
		sep := parent.Keys[sepSlot]
		left.Keys[left.Size] = sep
		left.Children[left.Size] = cur.Children[0]
		left.Size++
		for i := int32(1); i < cur.Size; i++ {
			left.Keys[left.Size] = cur.Keys[i]
			left.Children[left.Size] = cur.Children[i]
			left.Size++
		}
		freeID = curGuard.PageID()
		curGuard.Drop()
		leftGuard.Drop()
		rightGuard.Drop()
	} else {
		sepSlot = pos + 1
		sep := parent.Keys[sepSlot]
		cur.Keys[cur.Size] = sep
		cur.Children[cur.Size] = right.Children[0]
		cur.Size++
		for i := int32(1); i < right.Size; i++ {
			cur.Keys[cur.Size] = right.Keys[i]
			cur.Children[cur.Size] = right.Children[i]
			cur.Size++
		}
		freeID = rightGuard.PageID()
		rightGuard.Drop()
		curGuard.Drop()
	}
	if err := t.bpm.DeletePage(freeID); err != nil {
		return false, err
	}

	t.deleteSeparator(parent, sepSlot)
	return true, nil
}
