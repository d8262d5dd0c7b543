package ridx

import (
	"bufio"
	"fmt"
	"os"
	"strconv"

	"ridx/internal/base"
	"ridx/internal/bufferpool"
)

// BPlusTree is a disk-resident index over unique fixed-size keys. All node
// access goes through the buffer pool; the only global mutable state is
// the root pointer in the header page, so the header's write latch doubles
// as the root-change latch. There is no tree-level mutex.
type BPlusTree struct {
	name            string
	bpm             *bufferpool.Manager
	cmp             base.Comparator
	leafMaxSize     int32
	internalMaxSize int32
	headerPageID    base.PageID
	log             Logger
}

// Open constructs a tree over bpm. Pass InvalidPageID as headerPageID to
// allocate a fresh header (new tree); pass an existing header's id to
// reopen a persisted tree.
func Open(name string, headerPageID PageID, bpm *BufferPool, opts ...TreeOption) (*BPlusTree, error) {
	o := defaultTreeOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.leafMaxSize > base.LeafSlotCap {
		o.leafMaxSize = base.LeafSlotCap
	}
	if o.internalMaxSize > base.InternalSlotCap {
		o.internalMaxSize = base.InternalSlotCap
	}

	t := &BPlusTree{
		name:            name,
		bpm:             bpm,
		cmp:             o.comparator,
		leafMaxSize:     o.leafMaxSize,
		internalMaxSize: o.internalMaxSize,
		headerPageID:    headerPageID,
		log:             o.logger,
	}

	if headerPageID == InvalidPageID {
		id, guard, err := bpm.NewPage()
		if err != nil {
			return nil, fmt.Errorf("allocate header page: %w", err)
		}
		guard.Page().AsHeader().RootPageID = InvalidPageID
		guard.Drop()
		t.headerPageID = id
		t.log.Info("initialized index header", "name", name, "header_page_id", id)
	}

	return t, nil
}

// HeaderPageID reports where the tree's header lives, for reopening later.
func (t *BPlusTree) HeaderPageID() PageID {
	return t.headerPageID
}

// RootPageID reads the current root pointer.
func (t *BPlusTree) RootPageID() PageID {
	guard, err := t.bpm.FetchPageRead(t.headerPageID)
	if err != nil {
		t.log.Error("fetch header page", "error", err)
		return InvalidPageID
	}
	defer guard.Drop()
	return guard.Page().AsHeader().RootPageID
}

// IsEmpty reports whether the tree holds no keys. An internal root with
// fewer than two children cannot legitimately exist (root collapse removes
// it), so that shape trips an assertion rather than counting as empty.
func (t *BPlusTree) IsEmpty() bool {
	guard, err := t.bpm.FetchPageRead(t.headerPageID)
	if err != nil {
		t.log.Error("fetch header page", "error", err)
		return true
	}
	rootID := guard.Page().AsHeader().RootPageID
	guard.Drop()

	if rootID == InvalidPageID {
		return true
	}

	rootGuard, err := t.bpm.FetchPageRead(rootID)
	if err != nil {
		t.log.Error("fetch root page", "page_id", rootID, "error", err)
		return true
	}
	defer rootGuard.Drop()

	tp := rootGuard.Page().AsTree()
	if tp.IsLeaf() {
		return tp.Size == 0
	}
	base.Assert(tp.Size >= 2, "internal root with %d children", tp.Size)
	return false
}

// Get returns the record id stored under key, or ErrKeyNotFound. Readers
// latch-couple: at most the parent and child read guards are held at once,
// the parent released as soon as the child is latched.
func (t *BPlusTree) Get(key Key, txn *Txn) (RID, error) {
	headerGuard, err := t.bpm.FetchPageRead(t.headerPageID)
	if err != nil {
		return RID{}, err
	}
	rootID := headerGuard.Page().AsHeader().RootPageID
	if rootID == InvalidPageID {
		headerGuard.Drop()
		return RID{}, ErrKeyNotFound
	}

	guard, err := t.bpm.FetchPageRead(rootID)
	headerGuard.Drop()
	if err != nil {
		return RID{}, err
	}

	for {
		tp := guard.Page().AsTree()
		if tp.IsLeaf() {
			leaf := guard.Page().AsLeaf()
			for i := int32(0); i < leaf.Size; i++ {
				if t.cmp(key, leaf.Keys[i]) == 0 {
					rid := leaf.RIDs[i]
					guard.Drop()
					return rid, nil
				}
			}
			guard.Drop()
			return RID{}, ErrKeyNotFound
		}

		node := guard.Page().AsInternal()
		childID := node.Children[t.childIndexFor(node, key)]
		childGuard, err := t.bpm.FetchPageRead(childID)
		if err != nil {
			guard.Drop()
			return RID{}, err
		}
		guard.Drop()
		guard = childGuard
	}
}

// childIndexFor picks the slot to follow for key: the largest i with
// Keys[i] <= key for i >= 1, or 0 when key precedes every routing key.
func (t *BPlusTree) childIndexFor(node *base.InternalPage, key Key) int32 {
	for i := int32(1); i < node.Size; i++ {
		if t.cmp(key, node.Keys[i]) < 0 {
			return i - 1
		}
	}
	return node.Size - 1
}

// descendWrite walks from the root to the leaf owning key, pushing every
// internal guard (and the slot taken through it) into ctx. The returned
// leaf guard is owned by the caller. Pessimistic coupling: nothing is
// released until the operation proves its edits cannot propagate upward.
func (t *BPlusTree) descendWrite(ctx *opContext, key Key) (*bufferpool.WritePageGuard, error) {
	guard, err := t.bpm.FetchPageWrite(ctx.rootID)
	if err != nil {
		return nil, err
	}

	for {
		tp := guard.Page().AsTree()
		if tp.IsLeaf() {
			return guard, nil
		}
		node := guard.Page().AsInternal()
		slot := t.childIndexFor(node, key)
		childID := node.Children[slot]
		ctx.push(guard, slot)

		guard, err = t.bpm.FetchPageWrite(childID)
		if err != nil {
			return nil, err
		}
	}
}

// InsertFromFile reads whitespace-separated integers from path and inserts
// each as (key, RID(key)). Test utility.
func (t *BPlusTree) InsertFromFile(path string, txn *Txn) error {
	return t.eachIntegerInFile(path, func(v int64) error {
		_, err := t.Insert(KeyFromInteger(v), NewRIDFromInt64(v), txn)
		return err
	})
}

// RemoveFromFile reads whitespace-separated integers from path and removes
// each. Test utility.
func (t *BPlusTree) RemoveFromFile(path string, txn *Txn) error {
	return t.eachIntegerInFile(path, func(v int64) error {
		return t.Remove(KeyFromInteger(v), txn)
	})
}

func (t *BPlusTree) eachIntegerInFile(path string, fn func(int64) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Split(bufio.ScanWords)
	for scanner.Scan() {
		v, err := strconv.ParseInt(scanner.Text(), 10, 64)
		if err != nil {
			return fmt.Errorf("parse %q: %w", scanner.Text(), err)
		}
		if err := fn(v); err != nil {
			return err
		}
	}
	return scanner.Err()
}
