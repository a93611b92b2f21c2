package rtree

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"strings"

	"golang.org/x/image/bmp"
)

// Dump writes the tree structure, one node or record per line, indented by
// depth.
func (t *Tree[T]) Dump(w io.Writer) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "rtree: %d records, height %d, capacity %d/%d\n",
		t.size, t.height, t.minEntries, t.maxEntries)
	t.dump(bw, t.root, 0)
	return bw.Flush()
}

func (t *Tree[T]) dump(w io.Writer, id nodeID, depth int) {
	n := &t.nodes[id]
	indent := strings.Repeat("  ", depth)
	kind := "internal"
	if n.leaf {
		kind = "leaf"
	}
	b := n.box()
	fmt.Fprintf(w, "%s%s %d (%d,%d) entries=%d\n", indent, kind, id, b.Width, b.Height, len(n.entries))
	for _, e := range n.entries {
		if e.isChild() {
			t.dump(w, e.child, depth+1)
			continue
		}
		fmt.Fprintf(w, "%s  record (%d,%d) %v\n", indent, e.box.Width, e.box.Height, e.value)
	}
}

// Check verifies the structural invariants of the tree and reports every
// violation found.
func (t *Tree[T]) Check() error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var errs []error
	if p := t.nodes[t.root].parent; p != noNode {
		errs = append(errs, fmt.Errorf("root %d has parent %d", t.root, p))
	}

	refs := make([]int, len(t.nodes))
	records, leafDepth := 0, -1
	var walk func(id nodeID, depth int)
	walk = func(id nodeID, depth int) {
		n := &t.nodes[id]
		if len(n.entries) > t.maxEntries {
			errs = append(errs, fmt.Errorf("node %d holds %d entries, capacity is %d", id, len(n.entries), t.maxEntries))
		}
		if id != t.root && len(n.entries) < t.minEntries {
			errs = append(errs, fmt.Errorf("node %d holds %d entries, minimum is %d", id, len(n.entries), t.minEntries))
		}
		if n.leaf {
			if leafDepth < 0 {
				leafDepth = depth
			} else if depth != leafDepth {
				errs = append(errs, fmt.Errorf("leaf %d at depth %d, other leaves at %d", id, depth, leafDepth))
			}
		}
		for _, e := range n.entries {
			switch {
			case n.leaf && e.isChild():
				errs = append(errs, fmt.Errorf("leaf %d references node %d", id, e.child))
			case !n.leaf && !e.isChild():
				errs = append(errs, fmt.Errorf("internal node %d holds a record", id))
			case e.isChild():
				refs[e.child]++
				if p := t.nodes[e.child].parent; p != id {
					errs = append(errs, fmt.Errorf("node %d is referenced by %d but has parent %d", e.child, id, p))
				}
				walk(e.child, depth+1)
			default:
				records++
				if !e.box.Anchored() {
					errs = append(errs, fmt.Errorf("leaf %d holds unanchored box %+v", id, e.box))
				}
			}
		}
	}
	walk(t.root, 1)

	for id, n := range refs {
		switch {
		case nodeID(id) == t.root && n != 0:
			errs = append(errs, fmt.Errorf("root %d is referenced %d times", id, n))
		case nodeID(id) != t.root && n != 1:
			errs = append(errs, fmt.Errorf("node %d is referenced %d times", id, n))
		}
	}
	if leafDepth != t.height {
		errs = append(errs, fmt.Errorf("leaves at depth %d, height is %d", leafDepth, t.height))
	}
	if records != t.size {
		errs = append(errs, fmt.Errorf("found %d records, size is %d", records, t.size))
	}
	return errors.Join(errs...)
}

var levelColors = []color.RGBA{
	{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
	{R: 0xff, G: 0x7f, B: 0x0e, A: 0xff},
	{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff},
	{R: 0xd6, G: 0x27, B: 0x28, A: 0xff},
	{R: 0x94, G: 0x67, B: 0xbd, A: 0xff},
}

// RenderBMP draws the node boxes (coloured by level) and the records of the
// tree into a size x size bitmap.
func (t *Tree[T]) RenderBMP(w io.Writer, size int) error {
	if size <= 0 {
		return fmt.Errorf("rtree: invalid image size %d", size)
	}

	t.mu.RLock()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	extent := t.nodes[t.root].box()
	scale := func(v, max int32) int {
		if max <= 0 {
			return 0
		}
		return int(int64(v) * int64(size-1) / int64(max))
	}
	var paint func(id nodeID, depth int)
	paint = func(id nodeID, depth int) {
		n := &t.nodes[id]
		b := n.box()
		outline(img, scale(b.MinX, extent.Width), scale(b.MinY, extent.Height),
			scale(b.MaxX(), extent.Width), scale(b.MaxY(), extent.Height),
			levelColors[depth%len(levelColors)])
		for _, e := range n.entries {
			if e.isChild() {
				paint(e.child, depth+1)
				continue
			}
			img.Set(scale(e.box.MaxX(), extent.Width), flip(scale(e.box.MaxY(), extent.Height), size), color.Black)
		}
	}
	paint(t.root, 0)
	t.mu.RUnlock()

	return bmp.Encode(w, img)
}

func flip(y, size int) int { return size - 1 - y }

func outline(img *image.RGBA, x0, y0, x1, y1 int, c color.Color) {
	y0, y1 = flip(y1, img.Bounds().Dy()), flip(y0, img.Bounds().Dy())
	for x := x0; x <= x1; x++ {
		img.Set(x, y0, c)
		img.Set(x, y1, c)
	}
	for y := y0; y <= y1; y++ {
		img.Set(x0, y, c)
		img.Set(x1, y, c)
	}
}
