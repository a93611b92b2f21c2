package rtree

import "testing"

func boxes(bs ...BBox) []entry[int] {
	entries := make([]entry[int], len(bs))
	for i, b := range bs {
		entries[i] = recordEntry(b, i)
	}
	return entries
}

func TestPickSeeds(t *testing.T) {
	entries := boxes(
		BBox{0, 0, 1, 1},
		BBox{0, 0, 2, 2},
		BBox{100, 100, 1, 1},
		BBox{1, 1, 1, 1},
	)
	first, second := pickSeeds(entries)
	if first != 0 || second != 2 {
		t.Errorf("Expected seeds (0,2), got (%d,%d)", first, second)
	}

	// identical boxes waste the same amount, the first pair wins
	same := boxes(BBox{0, 0, 3, 3}, BBox{0, 0, 3, 3}, BBox{0, 0, 3, 3})
	first, second = pickSeeds(same)
	if first != 0 || second != 1 {
		t.Errorf("Expected seeds (0,1) on a tie, got (%d,%d)", first, second)
	}
}

func TestPickNext(t *testing.T) {
	entries := boxes(
		BBox{0, 0, 1, 1},
		BBox{0, 0, 50, 1},
		BBox{0, 0, 2, 2},
	)
	original, sibling := BBox{0, 0, 1, 1}, BBox{0, 0, 2, 2}
	k := pickNext(entries, []int{0, 1, 2}, original, sibling)
	if k != 1 {
		t.Errorf("Expected the wide entry to be picked, got %d", k)
	}
}

func TestChooseGroup(t *testing.T) {
	cases := []struct {
		name                        string
		box, original, sibling      BBox
		originalCount, siblingCount int
		expected                    int
	}{
		{"less enlargement", BBox{0, 0, 2, 2}, BBox{0, 0, 2, 2}, BBox{0, 0, 1, 1}, 1, 1, groupOriginal},
		{"less enlargement sibling", BBox{0, 0, 2, 2}, BBox{0, 0, 1, 1}, BBox{0, 0, 3, 3}, 1, 1, groupSibling},
		{"smaller area", BBox{0, 0, 1, 1}, BBox{0, 0, 4, 4}, BBox{0, 0, 2, 2}, 1, 1, groupSibling},
		{"fewer entries", BBox{0, 0, 1, 1}, BBox{0, 0, 2, 2}, BBox{0, 0, 2, 2}, 5, 2, groupSibling},
		{"full tie", BBox{0, 0, 1, 1}, BBox{0, 0, 2, 2}, BBox{0, 0, 2, 2}, 2, 2, groupOriginal},
	}
	for _, c := range cases {
		got := chooseGroup(c.box, c.original, c.sibling, c.originalCount, c.siblingCount)
		if got != c.expected {
			t.Errorf("%s: expected group %d, got %d", c.name, c.expected, got)
		}
	}
}

func TestSplitSizes(t *testing.T) {
	tree := New[int](6)
	defer tree.Close()

	leaf := tree.root
	for i := 0; i <= tree.MaxEntries(); i++ {
		x, y := gridCoord(i)
		tree.nodes[leaf].add(recordEntry(PointBox(x, y), i))
	}
	sibling := tree.split(leaf)

	kept, moved := len(tree.nodes[leaf].entries), len(tree.nodes[sibling].entries)
	if kept+moved != tree.MaxEntries()+1 {
		t.Errorf("Expected %d entries across both nodes, got %d", tree.MaxEntries()+1, kept+moved)
	}
	if moved < tree.MinEntries() || kept < tree.MinEntries() {
		t.Errorf("Expected both nodes to hold at least %d entries, got %d and %d", tree.MinEntries(), kept, moved)
	}
	if tree.nodes[sibling].leaf != tree.nodes[leaf].leaf {
		t.Error("Expected the sibling to be of the same kind")
	}

	seen := map[int]bool{}
	for _, id := range []nodeID{leaf, sibling} {
		for _, e := range tree.nodes[id].entries {
			if seen[e.value] {
				t.Errorf("Expected record %d once, found it twice", e.value)
			}
			seen[e.value] = true
		}
	}
	if len(seen) != tree.MaxEntries()+1 {
		t.Errorf("Expected %d distinct records, got %d", tree.MaxEntries()+1, len(seen))
	}
}

func TestSplitForcesMinimum(t *testing.T) {
	tree := New[int](6)
	defer tree.Close()

	// The first and last boxes seed the sibling and the original. The rest
	// sit inside the original seed, so the sibling only reaches its minimum
	// when it is handed the last entries.
	leaf := tree.root
	bs := []BBox{
		{1001, 1001, 1, 1},
		{991, 991, 1, 1},
		{992, 992, 1, 1},
		{993, 993, 1, 1},
		{994, 994, 1, 1},
		{995, 995, 1, 1},
		{0, 0, 1000, 1000},
	}
	for i, b := range bs {
		tree.nodes[leaf].add(recordEntry(b, i))
	}
	sibling := tree.split(leaf)

	if got := len(tree.nodes[sibling].entries); got != tree.MinEntries() {
		t.Errorf("Expected sibling to hold %d entries, got %d", tree.MinEntries(), got)
	}
	if got := len(tree.nodes[leaf].entries); got != len(bs)-tree.MinEntries() {
		t.Errorf("Expected original to keep %d entries, got %d", len(bs)-tree.MinEntries(), got)
	}
}

func TestExtentSetDropsSharedValues(t *testing.T) {
	n := newNode[int](true, noNode, 6)
	n.add(recordEntry(BBox{Width: 5, Height: 7}, 1))
	n.add(recordEntry(BBox{Width: 5, Height: 3}, 2))
	if b := n.box(); b.Width != 5 || b.Height != 7 {
		t.Errorf("Expected box (5,7), got (%d,%d)", b.Width, b.Height)
	}

	n.forget(n.entries[0])
	n.entries = n.entries[1:]
	if b := n.box(); b.Width != 0 || b.Height != 3 {
		t.Errorf("Expected box (0,3) once width 5 is forgotten, got (%d,%d)", b.Width, b.Height)
	}

	n.replace(0, recordEntry(BBox{Width: 9, Height: 1}, 3))
	if b := n.box(); b.Width != 9 || b.Height != 1 {
		t.Errorf("Expected box (9,1), got (%d,%d)", b.Width, b.Height)
	}
}
