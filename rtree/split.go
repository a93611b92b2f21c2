package rtree

import (
	log "github.com/sirupsen/logrus"
)

const (
	groupOriginal = 1
	groupSibling  = 2
)

// split distributes the entries of an overflowing node between the node
// itself and a new sibling (quadratic split) and returns the sibling. The
// sibling is created under the same parent but is not yet referenced by it.
func (t *Tree[T]) split(id nodeID) nodeID {
	sibling := t.newNode(t.nodes[id].leaf, t.nodes[id].parent)
	n, s := &t.nodes[id], &t.nodes[sibling]

	all := n.entries
	moved := make([]bool, len(all))

	siblingSeed, originalSeed := pickSeeds(all)
	s.add(all[siblingSeed])
	moved[siblingSeed] = true
	originalBox, siblingBox := all[originalSeed].box, all[siblingSeed].box

	remaining := make([]int, 0, len(all)-2)
	for i := range all {
		if i != siblingSeed && i != originalSeed {
			remaining = append(remaining, i)
		}
	}

	originalCount := len(all) - 1
	for len(remaining) > 0 && len(s.entries) < t.minEntries {
		k := pickNext(all, remaining, originalBox, siblingBox)
		i := remaining[k]
		remaining = append(remaining[:k], remaining[k+1:]...)

		box := all[i].box
		// once the sibling needs every remaining entry to reach the minimum,
		// it gets them regardless of preference
		forced := len(remaining)+1 <= t.minEntries-len(s.entries)
		if forced || chooseGroup(box, originalBox, siblingBox, originalCount, len(s.entries)) == groupSibling {
			s.add(all[i])
			moved[i] = true
			originalCount--
			siblingBox = siblingBox.Union(box)
		} else {
			originalBox = originalBox.Union(box)
		}
	}

	// Whatever was not handed to the sibling stays, in its original order.
	kept := make([]entry[T], 0, cap(all))
	for i, e := range all {
		if moved[i] {
			n.forget(e)
			if e.isChild() {
				t.nodes[e.child].parent = sibling
			}
			continue
		}
		kept = append(kept, e)
	}
	n.entries = kept

	t.log.WithFields(log.Fields{
		"node":     id,
		"sibling":  sibling,
		"leaf":     n.leaf,
		"kept":     len(n.entries),
		"moved":    len(s.entries),
		"capacity": t.maxEntries,
	}).Debug("rtree: split node")

	return sibling
}

// pickSeeds returns the pair of entries that would waste the most area if
// they shared a node. The first pair found wins ties.
func pickSeeds[T any](entries []entry[T]) (int, int) {
	var (
		first, second int
		worst         int64 = -1
	)
	for i := 0; i < len(entries); i++ {
		for j := i + 1; j < len(entries); j++ {
			a, b := entries[i].box, entries[j].box
			d := a.Union(b).Area() - a.Area() - b.Area()
			if d < 0 {
				d = -d
			}
			if d > worst {
				worst, first, second = d, i, j
			}
		}
	}
	return first, second
}

// pickNext returns the position in remaining of the entry with the strongest
// preference for one group over the other.
func pickNext[T any](entries []entry[T], remaining []int, original, sibling BBox) int {
	best := 0
	var strongest int64 = -1
	for k, i := range remaining {
		box := entries[i].box
		d := original.Enlargement(box) - sibling.Enlargement(box)
		if d < 0 {
			d = -d
		}
		if d > strongest {
			strongest, best = d, k
		}
	}
	return best
}

// chooseGroup picks the group that grows least to take box, then the smaller
// group by area, then the group holding fewer entries. Full ties stay put.
func chooseGroup(box, original, sibling BBox, originalCount, siblingCount int) int {
	e1, e2 := original.Enlargement(box), sibling.Enlargement(box)
	switch {
	case e1 < e2:
		return groupOriginal
	case e1 > e2:
		return groupSibling
	}

	a1, a2 := original.Area(), sibling.Area()
	switch {
	case a1 < a2:
		return groupOriginal
	case a1 > a2:
		return groupSibling
	}

	if originalCount > siblingCount {
		return groupSibling
	}
	return groupOriginal
}
