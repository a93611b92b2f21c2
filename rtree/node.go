package rtree

// nodeID addresses a node in the tree's arena.
type nodeID int32

const noNode nodeID = -1

// entry is either a record (child == noNode) or a reference to a child node.
// Entries are never edited in place; a changed box means a new entry.
type entry[T any] struct {
	box   BBox
	child nodeID
	value T
}

func recordEntry[T any](box BBox, value T) entry[T] {
	return entry[T]{box: box, child: noNode, value: value}
}

func childEntry[T any](box BBox, child nodeID) entry[T] {
	return entry[T]{box: box, child: child}
}

func (e entry[T]) isChild() bool {
	return e.child != noNode
}

// extentSet holds the distinct widths (or heights) seen across a node's
// entries. It is a set: removing a value drops it even when another entry
// still carries the same value.
type extentSet map[int32]struct{}

func (s extentSet) add(v int32) { s[v] = struct{}{} }
func (s extentSet) del(v int32) { delete(s, v) }

func (s extentSet) max() int32 {
	var m int32
	first := true
	for v := range s {
		if first || v > m {
			m = v
			first = false
		}
	}
	return m
}

type node[T any] struct {
	leaf   bool
	parent nodeID
	// room for one entry past capacity so inserts can overflow before a split
	entries []entry[T]
	widths  extentSet
	heights extentSet
}

func newNode[T any](leaf bool, parent nodeID, maxEntries int) node[T] {
	return node[T]{
		leaf:    leaf,
		parent:  parent,
		entries: make([]entry[T], 0, maxEntries+1),
		widths:  make(extentSet, maxEntries+1),
		heights: make(extentSet, maxEntries+1),
	}
}

func (n *node[T]) hasSpace(maxEntries int) bool {
	return len(n.entries) < maxEntries
}

func (n *node[T]) add(e entry[T]) {
	n.entries = append(n.entries, e)
	n.widths.add(e.box.Width)
	n.heights.add(e.box.Height)
}

// forget drops the extents of an entry that left the node.
func (n *node[T]) forget(e entry[T]) {
	n.widths.del(e.box.Width)
	n.heights.del(e.box.Height)
}

// replace overwrites slot i. Unlike forget, the old box's extents are only
// dropped when no other entry still carries them.
func (n *node[T]) replace(i int, e entry[T]) {
	old := n.entries[i]
	n.entries[i] = e
	if !n.hasWidth(old.box.Width) {
		n.widths.del(old.box.Width)
	}
	if !n.hasHeight(old.box.Height) {
		n.heights.del(old.box.Height)
	}
	n.widths.add(e.box.Width)
	n.heights.add(e.box.Height)
}

func (n *node[T]) hasWidth(w int32) bool {
	for _, e := range n.entries {
		if e.box.Width == w {
			return true
		}
	}
	return false
}

func (n *node[T]) hasHeight(h int32) bool {
	for _, e := range n.entries {
		if e.box.Height == h {
			return true
		}
	}
	return false
}

// indexOf returns the slot holding the entry for child, or -1.
func (n *node[T]) indexOf(child nodeID) int {
	for i, e := range n.entries {
		if e.child == child {
			return i
		}
	}
	return -1
}

// box is the extent a parent stores for this node. Boxes in this tree are
// all anchored at the origin, so the largest width and height cover them.
func (n *node[T]) box() BBox {
	return BBox{Width: n.widths.max(), Height: n.heights.max()}
}
