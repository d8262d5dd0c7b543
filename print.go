package ridx

import (
	"fmt"
	"os"
	"strings"

	"ridx/internal/base"
)

// Draw writes a Graphviz DOT rendering of the tree to path: leaves green,
// internals pink, leaf-chain edges keeping siblings on one rank. Debug
// only; walks with basic guards and tolerates concurrent mutation giving a
// torn picture.
func (t *BPlusTree) Draw(path string) error {
	if t.IsEmpty() {
		t.log.Warn("drawing an empty tree")
		return nil
	}

	var b strings.Builder
	b.WriteString("digraph G {\n")
	if err := t.toGraph(t.RootPageID(), &b); err != nil {
		return err
	}
	b.WriteString("}\n")

	return os.WriteFile(path, []byte(b.String()), 0o644)
}

func (t *BPlusTree) toGraph(id base.PageID, b *strings.Builder) error {
	guard, err := t.bpm.FetchPageBasic(id)
	if err != nil {
		return err
	}
	defer guard.Drop()

	tp := guard.Page().AsTree()
	if tp.IsLeaf() {
		leaf := guard.Page().AsLeaf()
		fmt.Fprintf(b, "LEAF_%d [shape=plain color=green label=<<TABLE BORDER=\"0\" CELLBORDER=\"1\" CELLSPACING=\"0\" CELLPADDING=\"4\">\n", id)
		fmt.Fprintf(b, "<TR><TD COLSPAN=\"%d\">P=%d</TD></TR>\n", max(leaf.Size, 1), id)
		fmt.Fprintf(b, "<TR><TD COLSPAN=\"%d\">max_size=%d,min_size=%d,size=%d</TD></TR>\n",
			max(leaf.Size, 1), leaf.MaxSize, leaf.MinSize(), leaf.Size)
		b.WriteString("<TR>")
		for i := int32(0); i < leaf.Size; i++ {
			fmt.Fprintf(b, "<TD>%s</TD>\n", leaf.Keys[i])
		}
		b.WriteString("</TR></TABLE>>];\n")
		if leaf.NextPageID != InvalidPageID {
			fmt.Fprintf(b, "LEAF_%d -> LEAF_%d;\n", id, leaf.NextPageID)
			fmt.Fprintf(b, "{rank=same LEAF_%d LEAF_%d};\n", id, leaf.NextPageID)
		}
		return nil
	}

	node := guard.Page().AsInternal()
	fmt.Fprintf(b, "INT_%d [shape=plain color=pink label=<<TABLE BORDER=\"0\" CELLBORDER=\"1\" CELLSPACING=\"0\" CELLPADDING=\"4\">\n", id)
	fmt.Fprintf(b, "<TR><TD COLSPAN=\"%d\">P=%d</TD></TR>\n", node.Size, id)
	fmt.Fprintf(b, "<TR><TD COLSPAN=\"%d\">max_size=%d,min_size=%d,size=%d</TD></TR>\n",
		node.Size, node.MaxSize, node.MinSize(), node.Size)
	b.WriteString("<TR>")
	for i := int32(0); i < node.Size; i++ {
		fmt.Fprintf(b, "<TD PORT=\"p%d\">", node.Children[i])
		if i > 0 {
			fmt.Fprintf(b, "%s", node.Keys[i])
		} else {
			b.WriteString(" ")
		}
		b.WriteString("</TD>\n")
	}
	b.WriteString("</TR></TABLE>>];\n")

	for i := int32(0); i < node.Size; i++ {
		childID := node.Children[i]
		if err := t.toGraph(childID, b); err != nil {
			return err
		}
		childGuard, err := t.bpm.FetchPageBasic(childID)
		if err != nil {
			return err
		}
		childIsLeaf := childGuard.Page().AsTree().IsLeaf()
		childGuard.Drop()

		if childIsLeaf {
			fmt.Fprintf(b, "INT_%d:p%d -> LEAF_%d;\n", id, childID, childID)
		} else {
			fmt.Fprintf(b, "INT_%d:p%d -> INT_%d;\n", id, childID, childID)
			if i > 0 {
				fmt.Fprintf(b, "{rank=same INT_%d INT_%d};\n", node.Children[i-1], childID)
			}
		}
	}
	return nil
}

// DrawTree returns the nested plain-text rendering of the tree, one node
// per line, children indented under their parent. "()" for an empty tree.
func (t *BPlusTree) DrawTree() string {
	if t.IsEmpty() {
		return "()"
	}

	var b strings.Builder
	t.printNode(t.RootPageID(), 0, &b)
	return b.String()
}

func (t *BPlusTree) printNode(id base.PageID, depth int, b *strings.Builder) {
	guard, err := t.bpm.FetchPageBasic(id)
	if err != nil {
		fmt.Fprintf(b, "%s<unreadable page %d: %v>\n", strings.Repeat("  ", depth), id, err)
		return
	}

	indent := strings.Repeat("  ", depth)
	tp := guard.Page().AsTree()
	if tp.IsLeaf() {
		leaf := guard.Page().AsLeaf()
		keys := make([]string, 0, leaf.Size)
		for i := int32(0); i < leaf.Size; i++ {
			keys = append(keys, leaf.Keys[i].String())
		}
		next := "end"
		if leaf.NextPageID != InvalidPageID {
			next = fmt.Sprintf("%d", leaf.NextPageID)
		}
		fmt.Fprintf(b, "%sleaf p%d (%s) -> %s\n", indent, id, strings.Join(keys, ","), next)
		guard.Drop()
		return
	}

	node := guard.Page().AsInternal()
	keys := make([]string, 0, node.Size)
	for i := int32(1); i < node.Size; i++ {
		keys = append(keys, node.Keys[i].String())
	}
	size := node.Size
	children := make([]base.PageID, size)
	copy(children, node.Children[:size])
	guard.Drop()

	fmt.Fprintf(b, "%sinternal p%d (%s)\n", indent, id, strings.Join(keys, ","))
	for _, childID := range children {
		t.printNode(childID, depth+1, b)
	}
}
