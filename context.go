package ridx

import (
	"ridx/internal/base"
	"ridx/internal/bufferpool"
)

// opContext carries the state of one mutating descent: the header guard,
// the stack of write guards from the root down to the current node's
// parent, and the child slot followed at each of them. Guards handed to
// the context are released by release(), so every exit path of an
// operation cleans up with a single deferred call.
type opContext struct {
	header     *bufferpool.WritePageGuard
	rootID     base.PageID
	ancestors  []*bufferpool.WritePageGuard
	childSlots []int32
}

func (c *opContext) push(g *bufferpool.WritePageGuard, slot int32) {
	c.ancestors = append(c.ancestors, g)
	c.childSlots = append(c.childSlots, slot)
}

// pop hands the deepest ancestor guard (and its slot) back to the caller,
// transferring release responsibility.
func (c *opContext) pop() (*bufferpool.WritePageGuard, int32) {
	n := len(c.ancestors) - 1
	g, slot := c.ancestors[n], c.childSlots[n]
	c.ancestors = c.ancestors[:n]
	c.childSlots = c.childSlots[:n]
	return g, slot
}

func (c *opContext) depth() int {
	return len(c.ancestors)
}

// release drops every guard still owned by the context: the ancestors
// root first, then the header.
func (c *opContext) release() {
	for _, g := range c.ancestors {
		g.Drop()
	}
	c.ancestors = c.ancestors[:0]
	c.childSlots = c.childSlots[:0]
	if c.header != nil {
		c.header.Drop()
		c.header = nil
	}
}
