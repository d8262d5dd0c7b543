package bufferpool

import (
	"ridx/internal/base"
)

// guard is the shared core of the three guard kinds: a pin on a frame plus
// responsibility for releasing it exactly once. Handing a guard to a
// container (the traversal context) hands over that responsibility; Drop
// is idempotent so double-release is harmless.
type guard struct {
	mgr      *Manager
	fr       *frame
	id       base.PageID
	released bool
}

func (g *guard) PageID() base.PageID {
	return g.id
}

// Page exposes the raw frame. Only valid until Drop.
func (g *guard) Page() *base.Page {
	base.Assert(!g.released, "page access after guard release")
	return &g.fr.page
}

// ReadPageGuard holds the frame latch shared. Concurrent readers may hold
// guards on the same page; writers are excluded until all are dropped.
type ReadPageGuard struct {
	guard
}

// Drop releases the latch and the pin. Safe to call more than once.
func (g *ReadPageGuard) Drop() {
	if g == nil || g.released {
		return
	}
	g.released = true
	g.fr.latch.RUnlock()
	g.mgr.unpin(g.fr)
}

// WritePageGuard holds the frame latch exclusive. The frame was marked
// dirty at acquisition; dropping the guard publishes the mutations.
type WritePageGuard struct {
	guard
}

func (g *WritePageGuard) Drop() {
	if g == nil || g.released {
		return
	}
	g.released = true
	g.fr.latch.Unlock()
	g.mgr.unpin(g.fr)
}

// BasicPageGuard holds only a pin, no latch. Exploratory debug paths that
// tolerate torn reads use it to walk the tree without blocking writers.
type BasicPageGuard struct {
	guard
}

func (g *BasicPageGuard) Drop() {
	if g == nil || g.released {
		return
	}
	g.released = true
	g.mgr.unpin(g.fr)
}
