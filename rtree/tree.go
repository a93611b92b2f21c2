// Package rtree implements an in-memory R-tree (Guttman, 1984) keyed by
// integer bounding boxes, with quadratic splits and parallel search.
//
// Coordinates are keyed the way the index has always keyed them: a pair
// (x, y) becomes a box anchored at the origin whose width and height are the
// scaled absolute coordinates. Internal nodes prune with box tests against
// that encoding and leaves only match boxes equal to the query, so a point
// search is an exact lookup.
//
// A Tree is safe for concurrent use: inserts are serialized behind a write
// lock and searches share a read lock.
package rtree

import (
	"errors"
	"fmt"
	"io"
	"math"
	"runtime"
	"sync"

	log "github.com/sirupsen/logrus"
)

const (
	DefaultMaxEntries = 50
	// capacities at or below this are replaced with DefaultMaxEntries
	minAllowedEntries = 5
	minFillFactor     = 0.45
)

// ErrUnanchoredBox is returned for boxes that do not start at the origin.
var ErrUnanchoredBox = errors.New("rtree: box is not anchored at the origin")

type Options struct {
	// MaxEntries is the node capacity. Values <= 5 fall back to 50.
	MaxEntries int
	// Workers sizes the search pool; <= 0 means runtime.NumCPU()+1.
	Workers int
	// Logger receives split and growth events at debug level.
	Logger log.FieldLogger
}

// Item pairs a value with its coordinates for batch loading.
type Item[T any] struct {
	Value T
	X, Y  float64
}

type Tree[T any] struct {
	mu         sync.RWMutex
	nodes      []node[T] // arena, addressed by nodeID
	root       nodeID
	maxEntries int
	minEntries int
	size       int
	height     int
	pool       *workerPool
	log        log.FieldLogger
}

// New creates a tree with the given node capacity and default options.
func New[T any](maxEntries int) *Tree[T] {
	return NewWithOptions[T](Options{MaxEntries: maxEntries})
}

// NewWithOptions creates a tree, correcting out-of-range options instead of
// rejecting them.
func NewWithOptions[T any](options Options) *Tree[T] {
	if options.MaxEntries <= minAllowedEntries {
		options.MaxEntries = DefaultMaxEntries
	}
	if options.Workers <= 0 {
		options.Workers = runtime.NumCPU() + 1
	}
	if options.Logger == nil {
		options.Logger = discardLogger()
	}

	t := &Tree[T]{
		maxEntries: options.MaxEntries,
		minEntries: int(math.Round(minFillFactor * float64(options.MaxEntries))),
		height:     1,
		pool:       newWorkerPool(options.Workers),
		log:        options.Logger,
	}
	t.root = t.newNode(true, noNode)
	return t
}

func discardLogger() log.FieldLogger {
	l := log.New()
	l.SetOutput(io.Discard)
	return l
}

func (t *Tree[T]) MaxEntries() int { return t.maxEntries }
func (t *Tree[T]) MinEntries() int { return t.minEntries }

// Len returns the number of records stored.
func (t *Tree[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.size
}

// Height returns the number of levels, 1 for a tree whose root is a leaf.
func (t *Tree[T]) Height() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.height
}

// Close stops the search workers. Inserts keep working; searches that need
// the pool fail with ErrClosed.
func (t *Tree[T]) Close() {
	t.pool.close()
}

// Insert stores value under the coordinate pair (x, y).
func (t *Tree[T]) Insert(value T, x, y float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.insert(recordEntry(PointBox(x, y), value))
}

// InsertBox stores value under box, which has to be anchored at the origin
// (see PointBox). Node extents only cover anchored boxes, so any other box
// is refused with ErrUnanchoredBox.
func (t *Tree[T]) InsertBox(value T, box BBox) error {
	if !box.Anchored() {
		return fmt.Errorf("%w: %+v", ErrUnanchoredBox, box)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.insert(recordEntry(box, value))
	return nil
}

// Load inserts a batch of items under a single write lock.
func (t *Tree[T]) Load(items []Item[T]) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, it := range items {
		t.insert(recordEntry(PointBox(it.X, it.Y), it.Value))
	}
}

func (t *Tree[T]) newNode(leaf bool, parent nodeID) nodeID {
	id := nodeID(len(t.nodes))
	t.nodes = append(t.nodes, newNode[T](leaf, parent, t.maxEntries))
	return id
}

func (t *Tree[T]) insert(e entry[T]) {
	leaf := t.chooseLeaf(t.root, e.box)

	// A full leaf still takes the entry; nodes carry one slot of slack and
	// the split redistributes the overflow.
	full := !t.nodes[leaf].hasSpace(t.maxEntries)
	t.nodes[leaf].add(e)
	split := noNode
	if full {
		split = t.split(leaf)
	}

	if sibling := t.adjust(leaf, split); sibling != noNode {
		t.growRoot(sibling)
	}
	t.size++
}

// chooseLeaf descends from id to the leaf whose entry needs the least
// enlargement to take box. Ties go to the smaller entry, then the lower index.
func (t *Tree[T]) chooseLeaf(id nodeID, box BBox) nodeID {
	for {
		n := &t.nodes[id]
		if n.leaf {
			return id
		}
		if len(n.entries) == 0 {
			panic(fmt.Sprintf("rtree: internal node %d has no entries", id))
		}

		best := 0
		bestEnlargement := box.Enlargement(n.entries[0].box)
		bestArea := n.entries[0].box.Area()
		for i := 1; i < len(n.entries); i++ {
			candidate := n.entries[i].box
			enlargement := box.Enlargement(candidate)
			area := candidate.Area()
			if enlargement < bestEnlargement || (enlargement == bestEnlargement && area < bestArea) {
				best, bestEnlargement, bestArea = i, enlargement, area
			}
		}
		id = n.entries[best].child
	}
}

// adjust walks from a modified node up to the root, refreshing each parent's
// entry for the node below it and hooking in split-off siblings. It returns
// the sibling split off the root, if any.
func (t *Tree[T]) adjust(id, split nodeID) nodeID {
	for t.nodes[id].parent != noNode {
		parent := t.nodes[id].parent
		t.refresh(parent, id)

		next := noNode
		if split != noNode {
			if t.nodes[split].parent != parent {
				panic(fmt.Sprintf("rtree: sibling %d of node %d has parent %d, want %d",
					split, id, t.nodes[split].parent, parent))
			}
			full := !t.nodes[parent].hasSpace(t.maxEntries)
			t.nodes[parent].add(childEntry[T](t.nodes[split].box(), split))
			if full {
				next = t.split(parent)
			}
		}
		id, split = parent, next
	}
	return split
}

// refresh rebuilds the entry parent holds for child from child's extents.
func (t *Tree[T]) refresh(parent, child nodeID) {
	p := &t.nodes[parent]
	i := p.indexOf(child)
	if i < 0 {
		panic(fmt.Sprintf("rtree: node %d is not referenced by its parent %d", child, parent))
	}
	p.replace(i, childEntry[T](t.nodes[child].box(), child))
}

// growRoot makes a new root over the old root and the sibling split off it.
func (t *Tree[T]) growRoot(sibling nodeID) {
	old := t.root
	if t.nodes[old].parent != noNode {
		panic(fmt.Sprintf("rtree: root %d has parent %d", old, t.nodes[old].parent))
	}

	root := t.newNode(false, noNode)
	t.nodes[old].parent = root
	t.nodes[sibling].parent = root
	t.nodes[root].add(childEntry[T](t.nodes[old].box(), old))
	t.nodes[root].add(childEntry[T](t.nodes[sibling].box(), sibling))
	t.root = root
	t.height++

	t.log.WithFields(log.Fields{
		"root":    root,
		"old":     old,
		"sibling": sibling,
		"height":  t.height,
	}).Debug("rtree: grew root")
}
