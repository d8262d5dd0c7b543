package ridx

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setup opens a fresh tree with the small fanout used by the boundary
// scenarios (leaf and internal max size 4).
func setup(t *testing.T, opts ...TreeOption) (*BPlusTree, *BufferPool) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "index.db")
	pool, err := NewBufferPool(path, 64)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	all := append([]TreeOption{WithLeafMaxSize(4), WithInternalMaxSize(4)}, opts...)
	tree, err := Open("test_index", InvalidPageID, pool, all...)
	require.NoError(t, err)
	return tree, pool
}

func mustInsert(t *testing.T, tree *BPlusTree, keys ...int64) {
	t.Helper()
	for _, k := range keys {
		ok, err := tree.Insert(KeyFromInteger(k), NewRIDFromInt64(k), nil)
		require.NoError(t, err)
		require.True(t, ok, "insert %d", k)
	}
}

func mustRemove(t *testing.T, tree *BPlusTree, keys ...int64) {
	t.Helper()
	for _, k := range keys {
		require.NoError(t, tree.Remove(KeyFromInteger(k), nil))
	}
}

func requireHas(t *testing.T, tree *BPlusTree, keys ...int64) {
	t.Helper()
	for _, k := range keys {
		rid, err := tree.Get(KeyFromInteger(k), nil)
		require.NoError(t, err, "get %d", k)
		require.Equal(t, NewRIDFromInt64(k), rid, "rid of %d", k)
	}
}

func requireAbsent(t *testing.T, tree *BPlusTree, keys ...int64) {
	t.Helper()
	for _, k := range keys {
		_, err := tree.Get(KeyFromInteger(k), nil)
		require.ErrorIs(t, err, ErrKeyNotFound, "get %d", k)
	}
}

// dumpLeaves walks the leaf chain and returns the key runs per leaf.
func dumpLeaves(t *testing.T, tree *BPlusTree) [][]int64 {
	t.Helper()

	id := leftmostLeaf(t, tree)
	var out [][]int64
	for id != InvalidPageID {
		guard, err := tree.bpm.FetchPageBasic(id)
		require.NoError(t, err)
		leaf := guard.Page().AsLeaf()
		run := make([]int64, 0, leaf.Size)
		for i := int32(0); i < leaf.Size; i++ {
			run = append(run, leaf.Keys[i].ToInteger())
		}
		id = leaf.NextPageID
		guard.Drop()
		out = append(out, run)
	}
	return out
}

func leftmostLeaf(t *testing.T, tree *BPlusTree) PageID {
	t.Helper()

	id := tree.RootPageID()
	for id != InvalidPageID {
		guard, err := tree.bpm.FetchPageBasic(id)
		require.NoError(t, err)
		if guard.Page().AsTree().IsLeaf() {
			guard.Drop()
			return id
		}
		id = guard.Page().AsInternal().Children[0]
		guard.Drop()
	}
	return InvalidPageID
}

// rootKeys returns the routing keys of an internal root.
func rootKeys(t *testing.T, tree *BPlusTree) []int64 {
	t.Helper()

	guard, err := tree.bpm.FetchPageBasic(tree.RootPageID())
	require.NoError(t, err)
	defer guard.Drop()
	require.False(t, guard.Page().AsTree().IsLeaf(), "root is a leaf")

	node := guard.Page().AsInternal()
	keys := make([]int64, 0, node.Size-1)
	for i := int32(1); i < node.Size; i++ {
		keys = append(keys, node.Keys[i].ToInteger())
	}
	return keys
}

// checkIntegrity verifies the structural invariants: equal leaf depth,
// occupancy bounds off the root, strictly increasing keys, separators equal
// to subtree minimums, and the leaf chain spelling out the in-order keys.
func checkIntegrity(t *testing.T, tree *BPlusTree) {
	t.Helper()

	rootID := tree.RootPageID()
	if rootID == InvalidPageID {
		require.True(t, tree.IsEmpty())
		return
	}

	leafDepth := -1
	var inOrder []int64
	checkSubtree(t, tree, rootID, 0, true, &leafDepth, &inOrder)

	for i := 1; i < len(inOrder); i++ {
		require.Less(t, inOrder[i-1], inOrder[i], "in-order keys not strictly increasing")
	}

	var chained []int64
	for _, run := range dumpLeaves(t, tree) {
		chained = append(chained, run...)
	}
	require.Equal(t, inOrder, chained, "leaf chain disagrees with tree order")
}

// checkSubtree returns nothing; it appends the subtree's keys to inOrder
// in order and asserts local invariants on the way.
func checkSubtree(t *testing.T, tree *BPlusTree, id PageID, depth int, isRoot bool, leafDepth *int, inOrder *[]int64) {
	t.Helper()

	guard, err := tree.bpm.FetchPageBasic(id)
	require.NoError(t, err)
	defer guard.Drop()

	tp := guard.Page().AsTree()
	if tp.IsLeaf() {
		leaf := guard.Page().AsLeaf()
		if *leafDepth == -1 {
			*leafDepth = depth
		}
		require.Equal(t, *leafDepth, depth, "leaves at unequal depth")
		require.LessOrEqual(t, leaf.Size, leaf.MaxSize)
		if !isRoot {
			require.GreaterOrEqual(t, leaf.Size, leaf.MinSize(), "leaf %d under-full", id)
		}
		for i := int32(0); i < leaf.Size; i++ {
			if i > 0 {
				require.Less(t, leaf.Keys[i-1].ToInteger(), leaf.Keys[i].ToInteger())
			}
			*inOrder = append(*inOrder, leaf.Keys[i].ToInteger())
		}
		return
	}

	node := guard.Page().AsInternal()
	require.LessOrEqual(t, node.Size, node.MaxSize)
	if isRoot {
		require.GreaterOrEqual(t, node.Size, int32(2), "internal root with one child")
	} else {
		require.GreaterOrEqual(t, node.Size, node.MinSize(), "internal %d under-full", id)
	}
	for i := int32(2); i < node.Size; i++ {
		require.Less(t, node.Keys[i-1].ToInteger(), node.Keys[i].ToInteger())
	}

	for i := int32(0); i < node.Size; i++ {
		before := len(*inOrder)
		checkSubtree(t, tree, node.Children[i], depth+1, false, leafDepth, inOrder)
		require.Greater(t, len(*inOrder), before, "empty subtree under internal %d", id)
		if i >= 1 {
			require.Equal(t, node.Keys[i].ToInteger(), (*inOrder)[before],
				"separator %d of internal %d is not its subtree minimum", i, id)
		}
	}
}

// Basic Operations Tests

func TestEmptyTree(t *testing.T) {
	t.Parallel()

	tree, _ := setup(t)
	assert.True(t, tree.IsEmpty())
	assert.Equal(t, InvalidPageID, tree.RootPageID())

	requireAbsent(t, tree, 42)

	// removing from an empty tree is a no-op
	require.NoError(t, tree.Remove(KeyFromInteger(42), nil))
	assert.True(t, tree.IsEmpty())
}

func TestInsertSingle(t *testing.T) {
	t.Parallel()

	tree, _ := setup(t)
	mustInsert(t, tree, 10)

	requireHas(t, tree, 10)
	assert.False(t, tree.IsEmpty())
	checkIntegrity(t, tree)
}

func TestLeafSplit(t *testing.T) {
	t.Parallel()

	tree, _ := setup(t)
	mustInsert(t, tree, 1, 2, 3, 4, 5)

	assert.Equal(t, [][]int64{{1, 2}, {3, 4, 5}}, dumpLeaves(t, tree))
	assert.Equal(t, []int64{3}, rootKeys(t, tree))
	requireHas(t, tree, 1, 2, 3, 4, 5)
	checkIntegrity(t, tree)
}

func TestDuplicateInsert(t *testing.T) {
	t.Parallel()

	tree, _ := setup(t)
	mustInsert(t, tree, 1, 2, 3, 4, 5)

	ok, err := tree.Insert(KeyFromInteger(3), NewRIDFromInt64(333), nil)
	require.NoError(t, err)
	assert.False(t, ok, "duplicate insert must be rejected")

	// the stored value is untouched and the shape unchanged
	requireHas(t, tree, 3)
	assert.Equal(t, [][]int64{{1, 2}, {3, 4, 5}}, dumpLeaves(t, tree))
	checkIntegrity(t, tree)
}

func TestInsertUpdatesNothingOnDuplicate(t *testing.T) {
	t.Parallel()

	tree, _ := setup(t)
	mustInsert(t, tree, 7)

	ok, err := tree.Insert(KeyFromInteger(7), NewRIDFromInt64(999), nil)
	require.NoError(t, err)
	require.False(t, ok)

	rid, err := tree.Get(KeyFromInteger(7), nil)
	require.NoError(t, err)
	assert.Equal(t, NewRIDFromInt64(7), rid)
}

// Deletion and Rebalancing Tests

func TestBorrowFromRight(t *testing.T) {
	t.Parallel()

	tree, _ := setup(t)
	mustInsert(t, tree, 1, 2, 3, 4, 5)
	mustRemove(t, tree, 1)

	assert.Equal(t, [][]int64{{2, 3}, {4, 5}}, dumpLeaves(t, tree))
	assert.Equal(t, []int64{4}, rootKeys(t, tree))
	requireAbsent(t, tree, 1)
	requireHas(t, tree, 2, 3, 4, 5)
	checkIntegrity(t, tree)
}

func TestBorrowFromLeft(t *testing.T) {
	t.Parallel()

	tree, _ := setup(t)
	mustInsert(t, tree, 1, 2, 3, 4, 5, 0) // leaves [0,1,2] and [3,4,5]
	mustRemove(t, tree, 4, 5)             // right leaf down to [3]: borrow

	assert.Equal(t, [][]int64{{0, 1}, {2, 3}}, dumpLeaves(t, tree))
	assert.Equal(t, []int64{2}, rootKeys(t, tree))
	requireHas(t, tree, 0, 1, 2, 3)
	checkIntegrity(t, tree)
}

func TestMergeRight(t *testing.T) {
	t.Parallel()

	tree, _ := setup(t)
	mustInsert(t, tree, 1, 2, 3, 4, 5, 6, 7) // [1,2] [3,4] [5,6,7], root (3,5)
	mustRemove(t, tree, 1)                   // [2] merges with right sibling

	assert.Equal(t, [][]int64{{2, 3, 4}, {5, 6, 7}}, dumpLeaves(t, tree))
	assert.Equal(t, []int64{5}, rootKeys(t, tree))
	requireAbsent(t, tree, 1)
	requireHas(t, tree, 2, 3, 4, 5, 6, 7)
	checkIntegrity(t, tree)
}

func TestMergeLeft(t *testing.T) {
	t.Parallel()

	tree, _ := setup(t)
	mustInsert(t, tree, 1, 2, 3, 4, 5, 6, 7) // [1,2] [3,4] [5,6,7], root (3,5)
	mustRemove(t, tree, 6, 7)                // [5] merges into left sibling

	assert.Equal(t, [][]int64{{1, 2}, {3, 4, 5}}, dumpLeaves(t, tree))
	assert.Equal(t, []int64{3}, rootKeys(t, tree))
	requireHas(t, tree, 1, 2, 3, 4, 5)
	checkIntegrity(t, tree)
}

func TestMergeAndRootCollapse(t *testing.T) {
	t.Parallel()

	tree, _ := setup(t)
	mustInsert(t, tree, 1, 2, 3, 4, 5, 6, 7)
	mustRemove(t, tree, 1, 2, 3)

	requireAbsent(t, tree, 1, 2, 3)
	requireHas(t, tree, 4, 5, 6, 7)
	checkIntegrity(t, tree)

	// shrink all the way back to a root leaf
	mustRemove(t, tree, 4, 5)
	requireHas(t, tree, 6, 7)
	checkIntegrity(t, tree)

	guard, err := tree.bpm.FetchPageBasic(tree.RootPageID())
	require.NoError(t, err)
	assert.True(t, guard.Page().AsTree().IsLeaf(), "root should have collapsed to a leaf")
	guard.Drop()
}

func TestDeleteLastKeyEmptiesTree(t *testing.T) {
	t.Parallel()

	tree, _ := setup(t)
	mustInsert(t, tree, 10)
	mustRemove(t, tree, 10)

	assert.True(t, tree.IsEmpty())
	assert.Equal(t, InvalidPageID, tree.RootPageID())
	requireAbsent(t, tree, 10)

	// removing again stays a no-op
	mustRemove(t, tree, 10)
	assert.True(t, tree.IsEmpty())
}

func TestSeparatorUpdatedOnDeletedMinimum(t *testing.T) {
	t.Parallel()

	tree, _ := setup(t)
	mustInsert(t, tree, 1, 2, 3, 4, 5) // root separator is 3
	mustRemove(t, tree, 3)             // right leaf keeps enough keys, no rebalance

	assert.Equal(t, []int64{4}, rootKeys(t, tree), "separator must follow the subtree minimum")
	requireHas(t, tree, 1, 2, 4, 5)
	checkIntegrity(t, tree)
}

func TestInsertKeyEqualToSplitSeparator(t *testing.T) {
	t.Parallel()

	// Remove a key that was promoted as a separator, then reinsert it:
	// routing must follow the updated separator.
	tree, _ := setup(t)
	mustInsert(t, tree, 1, 2, 3, 4, 5)
	mustRemove(t, tree, 3)
	mustInsert(t, tree, 3)

	requireHas(t, tree, 1, 2, 3, 4, 5)
	checkIntegrity(t, tree)
}

// Scale and Property Tests

func TestSequentialInsertAndScan(t *testing.T) {
	t.Parallel()

	tree, _ := setup(t)
	const n = 1000
	for k := int64(1); k <= n; k++ {
		mustInsert(t, tree, k)
	}
	checkIntegrity(t, tree)

	for k := int64(1); k <= n; k++ {
		requireHas(t, tree, k)
	}
}

func TestReverseInsert(t *testing.T) {
	t.Parallel()

	tree, _ := setup(t)
	for k := int64(500); k >= 1; k-- {
		mustInsert(t, tree, k)
	}
	checkIntegrity(t, tree)
	for k := int64(1); k <= 500; k++ {
		requireHas(t, tree, k)
	}
}

func TestPermutationInsertReverseRemove(t *testing.T) {
	t.Parallel()

	tree, _ := setup(t)
	const n = 300
	rng := rand.New(rand.NewSource(0xbee))
	perm := rng.Perm(n)

	for _, p := range perm {
		mustInsert(t, tree, int64(p+1))
	}
	checkIntegrity(t, tree)

	for i := len(perm) - 1; i >= 0; i-- {
		mustRemove(t, tree, int64(perm[i]+1))
	}
	assert.True(t, tree.IsEmpty())
	assert.Equal(t, InvalidPageID, tree.RootPageID())
}

func TestInterleavedInsertRemove(t *testing.T) {
	t.Parallel()

	tree, _ := setup(t)
	live := make(map[int64]bool)
	rng := rand.New(rand.NewSource(0xcafe))

	for i := 0; i < 2000; i++ {
		k := int64(rng.Intn(400))
		if live[k] {
			mustRemove(t, tree, k)
			delete(live, k)
		} else {
			mustInsert(t, tree, k)
			live[k] = true
		}
	}
	checkIntegrity(t, tree)

	for k := int64(0); k < 400; k++ {
		if live[k] {
			requireHas(t, tree, k)
		} else {
			requireAbsent(t, tree, k)
		}
	}
}

// Persistence Tests

func TestReopenPersistedTree(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "index.db")

	pool, err := NewBufferPool(path, 64)
	require.NoError(t, err)
	tree, err := Open("persisted", InvalidPageID, pool, WithLeafMaxSize(4), WithInternalMaxSize(4))
	require.NoError(t, err)
	headerID := tree.HeaderPageID()
	mustInsert(t, tree, 1, 2, 3, 4, 5, 6, 7)
	require.NoError(t, pool.Close())

	pool2, err := NewBufferPool(path, 64)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool2.Close() })
	tree2, err := Open("persisted", headerID, pool2, WithLeafMaxSize(4), WithInternalMaxSize(4))
	require.NoError(t, err)

	requireHas(t, tree2, 1, 2, 3, 4, 5, 6, 7)
	checkIntegrity(t, tree2)
}

// File-Driven Test Utilities

func TestInsertAndRemoveFromFile(t *testing.T) {
	t.Parallel()

	tree, _ := setup(t)
	dir := t.TempDir()

	insertPath := filepath.Join(dir, "insert.txt")
	require.NoError(t, os.WriteFile(insertPath, []byte("5 3 8 1 9\n2 7 4 6 10"), 0o644))
	require.NoError(t, tree.InsertFromFile(insertPath, nil))
	requireHas(t, tree, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10)
	checkIntegrity(t, tree)

	removePath := filepath.Join(dir, "remove.txt")
	require.NoError(t, os.WriteFile(removePath, []byte("1 2 3 4 5"), 0o644))
	require.NoError(t, tree.RemoveFromFile(removePath, nil))
	requireAbsent(t, tree, 1, 2, 3, 4, 5)
	requireHas(t, tree, 6, 7, 8, 9, 10)
	checkIntegrity(t, tree)
}

// Concurrency Tests

func TestConcurrentInserts(t *testing.T) {
	t.Parallel()

	tree, _ := setup(t)
	const (
		workers   = 8
		perWorker = 100
	)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				k := int64(w*perWorker + i + 1)
				ok, err := tree.Insert(KeyFromInteger(k), NewRIDFromInt64(k), nil)
				assert.NoError(t, err)
				assert.True(t, ok)
			}
		}(w)
	}
	wg.Wait()

	checkIntegrity(t, tree)
	for k := int64(1); k <= workers*perWorker; k++ {
		requireHas(t, tree, k)
	}
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	t.Parallel()

	tree, _ := setup(t)
	for k := int64(1); k <= 200; k++ {
		mustInsert(t, tree, k)
	}

	var wg sync.WaitGroup
	// writers extend the key space while readers hammer the stable range
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				k := int64(1000 + w*50 + i)
				_, err := tree.Insert(KeyFromInteger(k), NewRIDFromInt64(k), nil)
				assert.NoError(t, err)
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				k := int64(i%200 + 1)
				rid, err := tree.Get(KeyFromInteger(k), nil)
				if assert.NoError(t, err) {
					assert.Equal(t, NewRIDFromInt64(k), rid)
				}
			}
		}()
	}
	wg.Wait()
	checkIntegrity(t, tree)
}

func TestConcurrentRemoves(t *testing.T) {
	t.Parallel()

	tree, _ := setup(t)
	const n = 400
	for k := int64(1); k <= n; k++ {
		mustInsert(t, tree, k)
	}

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for k := int64(w + 1); k <= n; k += 4 {
				assert.NoError(t, tree.Remove(KeyFromInteger(k), nil))
			}
		}(w)
	}
	wg.Wait()

	assert.True(t, tree.IsEmpty())
}

// Debug Printer Tests

func TestDrawTree(t *testing.T) {
	t.Parallel()

	tree, _ := setup(t)
	assert.Equal(t, "()", tree.DrawTree())

	mustInsert(t, tree, 1, 2, 3, 4, 5)
	out := tree.DrawTree()
	assert.Contains(t, out, "internal")
	assert.Contains(t, out, "leaf")
	assert.Contains(t, out, "3")
}

func TestDrawDOT(t *testing.T) {
	t.Parallel()

	tree, _ := setup(t)
	mustInsert(t, tree, 1, 2, 3, 4, 5)

	path := filepath.Join(t.TempDir(), "tree.dot")
	require.NoError(t, tree.Draw(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "digraph G {")
	assert.Contains(t, out, "color=green")
	assert.Contains(t, out, "color=pink")
	assert.Contains(t, out, fmt.Sprintf("LEAF_%d", leftmostLeaf(t, tree)))
}
